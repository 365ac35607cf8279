package apm

import (
	"github.com/sirupsen/logrus"
)

// SetAgc configures send-path automatic gain control.
//
// AgcDefault resolves to the platform default mode and AgcUnchanged keeps
// the current mode. AgcAdaptiveAnalog is rejected with ErrInvalidMode on
// mobile platforms. On any error the stored state is unchanged.
func (ap *AudioProcessing) SetAgc(enabled bool, mode AgcMode) error {
	return ap.updateGlobal(func(cur GlobalConfig) (GlobalConfig, error) {
		resolved, err := ap.policy.resolveAgc(mode, cur.AgcMode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetAgc",
				"platform": ap.platform.String(),
				"mode":     mode.String(),
				"error":    err.Error(),
			}).Warn("Rejected AGC mode")
			return cur, err
		}

		if err := ap.pipeline.SetAgc(enabled, resolved); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetAgc",
				"error":    err.Error(),
			}).Error("Pipeline rejected AGC configuration")
			return cur, pipelineError(err)
		}

		cur.AgcEnabled = enabled
		cur.AgcMode = resolved

		logrus.WithFields(logrus.Fields{
			"function": "SetAgc",
			"enabled":  enabled,
			"mode":     resolved.String(),
		}).Info("AGC configured")
		return cur, nil
	})
}

// GetAgc returns the send-path AGC state.
func (ap *AudioProcessing) GetAgc() (bool, AgcMode) {
	g := ap.global.Load()
	return g.AgcEnabled, g.AgcMode
}

// SetRxAgc configures receive-path gain control on channel.
// AgcAdaptiveAnalog is rejected on every platform.
func (ap *AudioProcessing) SetRxAgc(channel int, enabled bool, mode AgcMode) error {
	return ap.updateChannel(channel, "SetRxAgc", func(cur channelState) (channelState, error) {
		resolved, err := resolveRxAgc(mode, cur.config.RxAgcMode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetRxAgc",
				"channel":  channel,
				"mode":     mode.String(),
			}).Warn("Rejected receive AGC mode")
			return cur, err
		}

		if err := ap.pipeline.SetRxAgc(channel, enabled, resolved); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetRxAgc",
				"channel":  channel,
				"error":    err.Error(),
			}).Error("Pipeline rejected receive AGC configuration")
			return cur, pipelineError(err)
		}

		cur.config.RxAgcEnabled = enabled
		cur.config.RxAgcMode = resolved

		logrus.WithFields(logrus.Fields{
			"function": "SetRxAgc",
			"channel":  channel,
			"enabled":  enabled,
			"mode":     resolved.String(),
		}).Info("Receive AGC configured")
		return cur, nil
	})
}

// GetRxAgc returns the receive-path AGC state of channel.
func (ap *AudioProcessing) GetRxAgc(channel int) (bool, AgcMode, error) {
	s, err := ap.readChannel(channel, "GetRxAgc")
	if err != nil {
		return false, 0, err
	}
	return s.config.RxAgcEnabled, s.config.RxAgcMode, nil
}
