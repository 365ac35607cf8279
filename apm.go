package apm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/apm/interfaces"
	"github.com/sirupsen/logrus"
)

// Options contains configuration for creating an AudioProcessing instance.
type Options struct {
	// Platform selects the default-mode and validation tables
	Platform Platform

	// SyncOnCreate pushes the default configuration to the pipeline in New
	SyncOnCreate bool
}

// NewOptions creates default options for the running platform.
func NewOptions() *Options {
	return &Options{
		Platform:     interfaces.DetectPlatform(),
		SyncOnCreate: true,
	}
}

// AudioProcessing is the control plane of an audio pipeline's processing
// stages. Send-path settings are global; receive-path settings are scoped to
// a channel id supplied by the ChannelRegistry.
//
// Getters are single atomic snapshot loads. Setters hold the lock of their
// scope (the global lock, or one lock per channel) while they validate,
// forward to the pipeline and publish the new snapshot, so setters on
// different channels never block each other.
type AudioProcessing struct {
	platform Platform
	policy   platformPolicy
	pipeline interfaces.AudioPipeline
	registry interfaces.ChannelRegistry

	globalMu sync.Mutex
	global   atomic.Pointer[GlobalConfig]

	channelsMu sync.RWMutex
	channels   map[int]*channelEntry
}

// New creates an AudioProcessing bound to pipeline and registry.
//
// Parameters:
//   - options: Platform and startup behavior; nil uses NewOptions()
//   - pipeline: The effector every setter forwards to
//   - registry: Source of valid channel ids
//
// Returns:
//   - *AudioProcessing: Instance holding the platform defaults
//   - error: ErrNilDependency, or the pipeline error from the initial sync
func New(options *Options, pipeline interfaces.AudioPipeline, registry interfaces.ChannelRegistry) (*AudioProcessing, error) {
	if options == nil {
		options = NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"platform": options.Platform.String(),
	}).Info("Creating audio processing configuration")

	if pipeline == nil || registry == nil {
		logrus.WithFields(logrus.Fields{
			"function":     "New",
			"has_pipeline": pipeline != nil,
			"has_registry": registry != nil,
		}).Error("Missing dependency")
		return nil, fmt.Errorf("%w: pipeline and registry are required", ErrNilDependency)
	}
	if !options.Platform.IsValid() {
		return nil, fmt.Errorf("%w: %d", interfaces.ErrInvalidPlatform, int(options.Platform))
	}

	ap := &AudioProcessing{
		platform: options.Platform,
		policy:   policyFor(options.Platform),
		pipeline: pipeline,
		registry: registry,
		channels: make(map[int]*channelEntry),
	}
	defaults := ap.policy.defaultGlobal()
	ap.global.Store(&defaults)

	if notifier, ok := registry.(interfaces.ChannelRemovalNotifier); ok {
		notifier.OnChannelRemoved(ap.ForgetChannel)
	}

	if options.SyncOnCreate {
		if err := ap.Sync(); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"platform":    ap.platform.String(),
		"agc_mode":    defaults.AgcMode.String(),
		"ec_family":   defaults.EcMode.String(),
		"synced":      options.SyncOnCreate,
		"policy_name": ap.policy.name,
	}).Info("Audio processing configuration created")

	return ap, nil
}

// Platform returns the platform whose policy tables are in effect.
func (ap *AudioProcessing) Platform() Platform {
	return ap.platform
}

// Global returns the current send-path snapshot.
func (ap *AudioProcessing) Global() GlobalConfig {
	return *ap.global.Load()
}

// Sync re-applies the complete stored configuration to the pipeline, for
// example after the engine behind it was restarted. Stored state is never
// modified; the first pipeline error is returned.
func (ap *AudioProcessing) Sync() error {
	ap.globalMu.Lock()
	g := *ap.global.Load()
	err := ap.applyGlobal(g)
	ap.globalMu.Unlock()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Sync",
			"error":    err.Error(),
		}).Error("Failed to sync send-path configuration")
		return err
	}

	for _, channel := range ap.configuredChannels() {
		entry := ap.existingEntry(channel)
		if entry == nil {
			continue
		}
		entry.mu.Lock()
		err := ap.applyChannel(channel, *entry.state.Load())
		entry.mu.Unlock()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Sync",
				"channel":  channel,
				"error":    err.Error(),
			}).Error("Failed to sync channel configuration")
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Sync",
	}).Debug("Configuration synced to pipeline")
	return nil
}

func (ap *AudioProcessing) applyGlobal(g GlobalConfig) error {
	if err := ap.pipeline.SetAgc(g.AgcEnabled, g.AgcMode); err != nil {
		return pipelineError(err)
	}
	if err := ap.pipeline.SetAecmMode(g.AecmMode, g.AecmCngEnabled); err != nil {
		return pipelineError(err)
	}
	if err := ap.pipeline.SetEc(g.EcEnabled, g.EcMode); err != nil {
		return pipelineError(err)
	}
	if err := ap.pipeline.SetEcMetrics(g.EcMetricsEnabled); err != nil {
		return pipelineError(err)
	}
	return pipelineError(ap.pipeline.SetNs(g.NsEnabled, g.NsMode))
}

// updateGlobal runs fn under the global lock and publishes its result.
// fn performs validation and pipeline forwarding; on error nothing is stored.
func (ap *AudioProcessing) updateGlobal(fn func(cur GlobalConfig) (GlobalConfig, error)) error {
	ap.globalMu.Lock()
	defer ap.globalMu.Unlock()

	next, err := fn(*ap.global.Load())
	if err != nil {
		return err
	}
	ap.global.Store(&next)
	return nil
}
