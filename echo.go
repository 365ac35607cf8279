package apm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetEc configures send-path echo control.
//
// EcConference resolves to EcAec, EcDefault to the platform family and
// EcUnchanged keeps the current family. Enabling EcAecm pushes the stored
// AECM routing mode and comfort noise flag to the pipeline first.
func (ap *AudioProcessing) SetEc(enabled bool, mode EcMode) error {
	return ap.updateGlobal(func(cur GlobalConfig) (GlobalConfig, error) {
		resolved, err := ap.policy.resolveEc(mode, cur.EcMode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetEc",
				"mode":     mode.String(),
			}).Warn("Rejected echo control mode")
			return cur, err
		}

		if enabled && resolved == EcAecm {
			if err := ap.pipeline.SetAecmMode(cur.AecmMode, cur.AecmCngEnabled); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "SetEc",
					"error":    err.Error(),
				}).Error("Pipeline rejected AECM routing")
				return cur, pipelineError(err)
			}
		}

		if err := ap.pipeline.SetEc(enabled, resolved); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetEc",
				"error":    err.Error(),
			}).Error("Pipeline rejected echo control configuration")
			return cur, pipelineError(err)
		}

		cur.EcEnabled = enabled
		cur.EcMode = resolved

		logrus.WithFields(logrus.Fields{
			"function":  "SetEc",
			"enabled":   enabled,
			"requested": mode.String(),
			"family":    resolved.String(),
		}).Info("Echo control configured")
		return cur, nil
	})
}

// GetEc returns the send-path echo control state with the resolved family.
func (ap *AudioProcessing) GetEc() (bool, EcMode) {
	g := ap.global.Load()
	return g.EcEnabled, g.EcMode
}

// SetAecmMode stores the AECM routing mode together with its comfort noise
// flag. Every valid combination is accepted.
func (ap *AudioProcessing) SetAecmMode(mode AecmMode, cngEnabled bool) error {
	return ap.configureAecm("SetAecmMode", &mode, &cngEnabled)
}

// configureAecm updates the AECM pair. A nil argument keeps the stored value.
func (ap *AudioProcessing) configureAecm(function string, mode *AecmMode, cngEnabled *bool) error {
	if mode != nil && !mode.IsValid() {
		return fmt.Errorf("%w: aecm mode %d", ErrInvalidMode, int(*mode))
	}

	return ap.updateGlobal(func(cur GlobalConfig) (GlobalConfig, error) {
		nextMode, nextCng := cur.AecmMode, cur.AecmCngEnabled
		if mode != nil {
			nextMode = *mode
		}
		if cngEnabled != nil {
			nextCng = *cngEnabled
		}

		if err := ap.pipeline.SetAecmMode(nextMode, nextCng); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": function,
				"error":    err.Error(),
			}).Error("Pipeline rejected AECM configuration")
			return cur, pipelineError(err)
		}

		cur.AecmMode = nextMode
		cur.AecmCngEnabled = nextCng

		logrus.WithFields(logrus.Fields{
			"function": function,
			"mode":     nextMode.String(),
			"cng":      nextCng,
		}).Info("AECM configured")
		return cur, nil
	})
}

// GetAecmMode returns the AECM routing mode and comfort noise flag.
func (ap *AudioProcessing) GetAecmMode() (AecmMode, bool) {
	g := ap.global.Load()
	return g.AecmMode, g.AecmCngEnabled
}

// SetEcMetrics toggles echo metric collection.
func (ap *AudioProcessing) SetEcMetrics(enabled bool) error {
	return ap.updateGlobal(func(cur GlobalConfig) (GlobalConfig, error) {
		if err := ap.pipeline.SetEcMetrics(enabled); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SetEcMetrics",
				"error":    err.Error(),
			}).Error("Pipeline rejected echo metrics toggle")
			return cur, pipelineError(err)
		}
		cur.EcMetricsEnabled = enabled

		logrus.WithFields(logrus.Fields{
			"function": "SetEcMetrics",
			"enabled":  enabled,
		}).Info("Echo metrics toggled")
		return cur, nil
	})
}

// GetEcMetrics reports whether echo metric collection is enabled.
func (ap *AudioProcessing) GetEcMetrics() bool {
	return ap.global.Load().EcMetricsEnabled
}

// GetEchoMetrics returns the pipeline's echo measurement snapshot.
// It fails with ErrMetricsDisabled while collection is off.
func (ap *AudioProcessing) GetEchoMetrics() (EchoMetrics, error) {
	if !ap.GetEcMetrics() {
		return EchoMetrics{}, ErrMetricsDisabled
	}
	m, err := ap.pipeline.EchoMetrics()
	if err != nil {
		return EchoMetrics{}, pipelineError(err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "GetEchoMetrics",
		"erl":      m.ERL,
		"erle":     m.ERLE,
	}).Debug("Read echo metrics")
	return m, nil
}

// GetEcDelayMetrics returns the pipeline's echo path delay estimate.
// It fails with ErrMetricsDisabled while collection is off.
func (ap *AudioProcessing) GetEcDelayMetrics() (DelayMetrics, error) {
	if !ap.GetEcMetrics() {
		return DelayMetrics{}, ErrMetricsDisabled
	}
	m, err := ap.pipeline.EcDelayMetrics()
	if err != nil {
		return DelayMetrics{}, pipelineError(err)
	}
	return m, nil
}
