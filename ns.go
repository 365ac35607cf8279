package apm

import (
	"github.com/sirupsen/logrus"
)

// SetNs configures send-path noise suppression. NsConference resolves to
// NsHighSuppression and NsDefault to NsModerateSuppression.
func (ap *AudioProcessing) SetNs(enabled bool, mode NsMode) error {
	return ap.updateGlobal(func(cur GlobalConfig) (GlobalConfig, error) {
		resolved, err := resolveNs(mode, cur.NsMode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetNs",
				"mode":     mode.String(),
			}).Warn("Rejected NS mode")
			return cur, err
		}

		if err := ap.pipeline.SetNs(enabled, resolved); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetNs",
				"error":    err.Error(),
			}).Error("Pipeline rejected NS configuration")
			return cur, pipelineError(err)
		}

		cur.NsEnabled = enabled
		cur.NsMode = resolved

		logrus.WithFields(logrus.Fields{
			"function":  "SetNs",
			"enabled":   enabled,
			"requested": mode.String(),
			"mode":      resolved.String(),
		}).Info("NS configured")
		return cur, nil
	})
}

// GetNs returns the send-path NS state with the resolved mode.
func (ap *AudioProcessing) GetNs() (bool, NsMode) {
	g := ap.global.Load()
	return g.NsEnabled, g.NsMode
}

// SetRxNs configures receive-path noise suppression on channel using the
// same aliases as SetNs.
func (ap *AudioProcessing) SetRxNs(channel int, enabled bool, mode NsMode) error {
	return ap.updateChannel(channel, "SetRxNs", func(cur channelState) (channelState, error) {
		resolved, err := resolveNs(mode, cur.config.RxNsMode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetRxNs",
				"channel":  channel,
				"mode":     mode.String(),
			}).Warn("Rejected receive NS mode")
			return cur, err
		}

		if err := ap.pipeline.SetRxNs(channel, enabled, resolved); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetRxNs",
				"channel":  channel,
				"error":    err.Error(),
			}).Error("Pipeline rejected receive NS configuration")
			return cur, pipelineError(err)
		}

		cur.config.RxNsEnabled = enabled
		cur.config.RxNsMode = resolved

		logrus.WithFields(logrus.Fields{
			"function": "SetRxNs",
			"channel":  channel,
			"enabled":  enabled,
			"mode":     resolved.String(),
		}).Info("Receive NS configured")
		return cur, nil
	})
}

// SetRxNsEnabled toggles receive-path noise suppression on channel and keeps
// the previously configured mode.
func (ap *AudioProcessing) SetRxNsEnabled(channel int, enabled bool) error {
	return ap.SetRxNs(channel, enabled, NsUnchanged)
}

// GetRxNs returns the receive-path NS state of channel.
func (ap *AudioProcessing) GetRxNs(channel int) (bool, NsMode, error) {
	s, err := ap.readChannel(channel, "GetRxNs")
	if err != nil {
		return false, 0, err
	}
	return s.config.RxNsEnabled, s.config.RxNsMode, nil
}
