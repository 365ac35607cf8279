package apm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetVad toggles voice activity detection on channel, keeping the current
// detector mode and DTX setting.
func (ap *AudioProcessing) SetVad(channel int, enabled bool) error {
	return ap.configureVad(channel, "SetVad", func(c PerChannelConfig) PerChannelConfig {
		c.VadEnabled = enabled
		return c
	})
}

// SetVadMode configures voice activity detection on channel completely.
// disableDTX keeps every frame encoded even while the detector is inactive.
func (ap *AudioProcessing) SetVadMode(channel int, enabled bool, mode VadMode, disableDTX bool) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: vad mode %d", ErrInvalidMode, int(mode))
	}
	return ap.configureVad(channel, "SetVadMode", func(c PerChannelConfig) PerChannelConfig {
		c.VadEnabled = enabled
		c.VadMode = mode
		c.VadDtxDisabled = disableDTX
		return c
	})
}

func (ap *AudioProcessing) configureVad(channel int, function string, change func(PerChannelConfig) PerChannelConfig) error {
	return ap.updateChannel(channel, function, func(cur channelState) (channelState, error) {
		next := change(cur.config)
		if err := ap.pipeline.SetVad(channel, next.VadEnabled, next.VadMode, next.VadDtxDisabled); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": function,
				"channel":  channel,
				"error":    err.Error(),
			}).Error("Pipeline rejected VAD configuration")
			return cur, pipelineError(err)
		}
		cur.config = next

		logrus.WithFields(logrus.Fields{
			"function":     function,
			"channel":      channel,
			"enabled":      next.VadEnabled,
			"mode":         next.VadMode.String(),
			"dtx_disabled": next.VadDtxDisabled,
		}).Info("VAD configured")
		return cur, nil
	})
}

// GetVad returns the VAD state of channel.
func (ap *AudioProcessing) GetVad(channel int) (enabled bool, mode VadMode, dtxDisabled bool, err error) {
	s, err := ap.readChannel(channel, "GetVad")
	if err != nil {
		return false, 0, false, err
	}
	return s.config.VadEnabled, s.config.VadMode, s.config.VadDtxDisabled, nil
}

// VoiceActivityIndicator returns the detector's live decision for channel.
// The value is read from the pipeline on every call and never cached; after
// speech resumes or stops callers poll until it settles.
func (ap *AudioProcessing) VoiceActivityIndicator(channel int) (VadDecision, error) {
	if err := ap.checkChannel(channel, "VoiceActivityIndicator"); err != nil {
		return VadUnavailable, err
	}
	decision, err := ap.pipeline.VoiceActivity(channel)
	if err != nil {
		return VadUnavailable, pipelineError(err)
	}
	return decision, nil
}

// RegisterRxVadObserver binds observer to channel. A previously bound
// observer is replaced and receives no further notifications.
func (ap *AudioProcessing) RegisterRxVadObserver(channel int, observer VadObserver) error {
	if observer == nil {
		return ErrNilObserver
	}

	return ap.updateChannel(channel, "RegisterRxVadObserver", func(cur channelState) (channelState, error) {
		if err := ap.pipeline.SetRxVadObserver(channel, observer); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "RegisterRxVadObserver",
				"channel":  channel,
				"error":    err.Error(),
			}).Error("Pipeline rejected VAD observer")
			return cur, pipelineError(err)
		}

		replaced := cur.observer != nil
		cur.observer = observer

		logrus.WithFields(logrus.Fields{
			"function": "RegisterRxVadObserver",
			"channel":  channel,
			"replaced": replaced,
		}).Info("VAD observer registered")
		return cur, nil
	})
}

// DeregisterRxVadObserver unbinds the observer of channel. Deregistering a
// channel without an observer succeeds without contacting the pipeline.
func (ap *AudioProcessing) DeregisterRxVadObserver(channel int) error {
	return ap.updateChannel(channel, "DeregisterRxVadObserver", func(cur channelState) (channelState, error) {
		if cur.observer == nil {
			return cur, nil
		}
		if err := ap.pipeline.SetRxVadObserver(channel, nil); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "DeregisterRxVadObserver",
				"channel":  channel,
				"error":    err.Error(),
			}).Error("Pipeline rejected VAD observer removal")
			return cur, pipelineError(err)
		}
		cur.observer = nil

		logrus.WithFields(logrus.Fields{
			"function": "DeregisterRxVadObserver",
			"channel":  channel,
		}).Info("VAD observer deregistered")
		return cur, nil
	})
}

// HasRxVadObserver reports whether channel has a bound observer.
func (ap *AudioProcessing) HasRxVadObserver(channel int) (bool, error) {
	s, err := ap.readChannel(channel, "HasRxVadObserver")
	if err != nil {
		return false, err
	}
	return s.observer != nil, nil
}
