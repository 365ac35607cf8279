package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/opd-ai/apm/interfaces"
	"github.com/opd-ai/apm/limits"
	"github.com/opd-ai/apm/real"
	"github.com/opd-ai/apm/testing"
	"github.com/sirupsen/logrus"
)

// Default pipeline configuration values.
const (
	// DefaultFrameSize is the noise suppression analysis frame in samples.
	DefaultFrameSize = 512
	// DefaultVadHangoverMs keeps speech decisions through short pauses.
	DefaultVadHangoverMs = 200
	// DefaultVadThreshold is the conventional-mode speech level (-40 dBFS).
	DefaultVadThreshold = 0.01
)

// PipelineFactory creates audio pipeline implementations based on configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type PipelineFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.PipelineConfig
}

// ConfigOption is a functional option for customizing a pipeline configuration.
type ConfigOption func(*interfaces.PipelineConfig)

// NewPipelineFactory creates a new factory with default configuration
func NewPipelineFactory() *PipelineFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &PipelineFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig initializes the default pipeline configuration.
//
// Default Value Rationale:
//   - UseSimulation: false - Production mode by default; simulation must be explicitly enabled
//   - Platform: detected from runtime.GOOS
//   - SampleRate: 48000 Hz - Native Opus rate, no resampling on the receive path
//   - FrameSize: 512 samples - About 10 ms at 48 kHz, the nearest power of 2
//   - VadHangoverMs: 200 ms - Bridges pauses between words
//   - VadThreshold: 0.01 - About -40 dBFS
func createDefaultConfig() *interfaces.PipelineConfig {
	return &interfaces.PipelineConfig{
		UseSimulation: false,
		Platform:      interfaces.DetectPlatform(),
		SampleRate:    limits.DefaultSampleRate,
		FrameSize:     DefaultFrameSize,
		VadHangoverMs: DefaultVadHangoverMs,
		VadThreshold:  DefaultVadThreshold,
	}
}

// applyEnvironmentOverrides updates configuration based on environment variables.
// It checks for APM_* environment variables and overrides defaults if valid values are found.
func applyEnvironmentOverrides(config *interfaces.PipelineConfig) {
	parseSimulationSetting(config)
	parsePlatformSetting(config)
	parseSampleRateSetting(config)
	parseFrameSizeSetting(config)
	parseHangoverSetting(config)
}

// parseSimulationSetting updates UseSimulation from APM_USE_SIMULATION.
func parseSimulationSetting(config *interfaces.PipelineConfig) {
	if useSimStr := os.Getenv("APM_USE_SIMULATION"); useSimStr != "" {
		useSim, err := strconv.ParseBool(useSimStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseSimulationSetting",
				"env_var":     "APM_USE_SIMULATION",
				"value":       useSimStr,
				"error":       err.Error(),
				"using_value": config.UseSimulation,
			}).Warn("Failed to parse APM_USE_SIMULATION environment variable, using default")
			return
		}
		config.UseSimulation = useSim
	}
}

// parsePlatformSetting updates Platform from APM_PLATFORM.
func parsePlatformSetting(config *interfaces.PipelineConfig) {
	if platformStr := os.Getenv("APM_PLATFORM"); platformStr != "" {
		platform, err := interfaces.ParsePlatform(platformStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parsePlatformSetting",
				"env_var":     "APM_PLATFORM",
				"value":       platformStr,
				"error":       err.Error(),
				"using_value": config.Platform.String(),
			}).Warn("Failed to parse APM_PLATFORM environment variable, using default")
			return
		}
		config.Platform = platform
	}
}

// parseSampleRateSetting updates SampleRate from APM_SAMPLE_RATE. Only the
// rates in limits.SupportedSampleRates are accepted.
func parseSampleRateSetting(config *interfaces.PipelineConfig) {
	if rateStr := os.Getenv("APM_SAMPLE_RATE"); rateStr != "" {
		rate, err := strconv.Atoi(rateStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseSampleRateSetting",
				"env_var":     "APM_SAMPLE_RATE",
				"value":       rateStr,
				"error":       err.Error(),
				"using_value": config.SampleRate,
			}).Warn("Failed to parse APM_SAMPLE_RATE environment variable, using default")
			return
		}
		if err := limits.ValidateSampleRate(rate); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseSampleRateSetting",
				"env_var":     "APM_SAMPLE_RATE",
				"value":       rate,
				"supported":   limits.SupportedSampleRates,
				"using_value": config.SampleRate,
			}).Warn("APM_SAMPLE_RATE value not supported, using default")
			return
		}
		config.SampleRate = rate
	}
}

// parseFrameSizeSetting updates FrameSize from APM_FRAME_SIZE. The value must
// be a power of 2 within the limits frame bounds.
func parseFrameSizeSetting(config *interfaces.PipelineConfig) {
	if sizeStr := os.Getenv("APM_FRAME_SIZE"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseFrameSizeSetting",
				"env_var":     "APM_FRAME_SIZE",
				"value":       sizeStr,
				"error":       err.Error(),
				"using_value": config.FrameSize,
			}).Warn("Failed to parse APM_FRAME_SIZE environment variable, using default")
			return
		}
		if limits.ValidateFrameSize(size) != nil || size&(size-1) != 0 {
			logrus.WithFields(logrus.Fields{
				"function":    "parseFrameSizeSetting",
				"env_var":     "APM_FRAME_SIZE",
				"value":       size,
				"min":         limits.MinFrameSamples,
				"max":         limits.MaxFrameSamples,
				"using_value": config.FrameSize,
			}).Warn("APM_FRAME_SIZE value out of bounds or not a power of 2, using default")
			return
		}
		config.FrameSize = size
	}
}

// parseHangoverSetting updates VadHangoverMs from APM_VAD_HANGOVER_MS.
func parseHangoverSetting(config *interfaces.PipelineConfig) {
	if hangoverStr := os.Getenv("APM_VAD_HANGOVER_MS"); hangoverStr != "" {
		hangover, err := strconv.Atoi(hangoverStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseHangoverSetting",
				"env_var":     "APM_VAD_HANGOVER_MS",
				"value":       hangoverStr,
				"error":       err.Error(),
				"using_value": config.VadHangoverMs,
			}).Warn("Failed to parse APM_VAD_HANGOVER_MS environment variable, using default")
			return
		}
		if hangover < 0 || hangover > interfaces.MaxVadHangoverMs {
			logrus.WithFields(logrus.Fields{
				"function":    "parseHangoverSetting",
				"env_var":     "APM_VAD_HANGOVER_MS",
				"value":       hangover,
				"min":         0,
				"max":         interfaces.MaxVadHangoverMs,
				"using_value": config.VadHangoverMs,
			}).Warn("APM_VAD_HANGOVER_MS value out of bounds, using default")
			return
		}
		config.VadHangoverMs = hangover
	}
}

// logConfigurationInfo logs the final configuration settings for debugging purposes.
func logConfigurationInfo(config *interfaces.PipelineConfig) {
	logrus.WithFields(logrus.Fields{
		"function":        "NewPipelineFactory",
		"use_simulation":  config.UseSimulation,
		"platform":        config.Platform.String(),
		"sample_rate":     config.SampleRate,
		"frame_size":      config.FrameSize,
		"vad_hangover_ms": config.VadHangoverMs,
		"vad_threshold":   config.VadThreshold,
	}).Info("Created pipeline factory with configuration")
}

// CreatePipeline creates a pipeline implementation based on the default configuration.
// When registry can announce channel removal, the software pipeline releases
// its per-channel state on removal.
func (f *PipelineFactory) CreatePipeline(registry interfaces.ChannelRegistry) (interfaces.AudioPipeline, error) {
	return f.CreatePipelineWithConfig(registry, nil)
}

// CreatePipelineWithConfig creates a pipeline implementation with custom configuration.
// A nil config selects the factory default.
func (f *PipelineFactory) CreatePipelineWithConfig(registry interfaces.ChannelRegistry, config *interfaces.PipelineConfig) (interfaces.AudioPipeline, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}

	logrus.WithFields(logrus.Fields{
		"function":       "CreatePipelineWithConfig",
		"use_simulation": config.UseSimulation,
		"platform":       config.Platform.String(),
		"sample_rate":    config.SampleRate,
	}).Info("Creating audio pipeline implementation")

	if config.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreatePipelineWithConfig",
			"type":     "simulation",
		}).Info("Creating simulation pipeline implementation")

		return testing.NewSimulatedPipeline(config), nil
	}

	if registry == nil {
		return nil, fmt.Errorf("channel registry is required for the software pipeline")
	}
	return f.CreateSoftwarePipeline(registry, *config)
}

// CreateSoftwarePipeline creates the software pipeline regardless of
// UseSimulation and subscribes it to channel removal when registry supports it.
func (f *PipelineFactory) CreateSoftwarePipeline(registry interfaces.ChannelRegistry, config interfaces.PipelineConfig) (*real.Pipeline, error) {
	pipeline, err := real.NewPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("create software pipeline: %w", err)
	}

	notifier, listening := registry.(interfaces.ChannelRemovalNotifier)
	if listening {
		notifier.OnChannelRemoved(pipeline.RemoveChannel)
	}

	logrus.WithFields(logrus.Fields{
		"function":          "CreateSoftwarePipeline",
		"type":              "real",
		"removal_listening": listening,
	}).Info("Created software pipeline implementation")

	return pipeline, nil
}

// WithPlatform sets the platform for the test configuration.
func WithPlatform(platform interfaces.Platform) ConfigOption {
	return func(c *interfaces.PipelineConfig) {
		c.Platform = platform
	}
}

// WithSampleRate sets the processing rate for the test configuration.
func WithSampleRate(rate int) ConfigOption {
	return func(c *interfaces.PipelineConfig) {
		c.SampleRate = rate
	}
}

// WithVadHangover sets the detector hangover for the test configuration.
func WithVadHangover(ms int) ConfigOption {
	return func(c *interfaces.PipelineConfig) {
		c.VadHangoverMs = ms
	}
}

// CreateSimulationForTesting creates a simulation implementation specifically for testing.
// It accepts optional ConfigOption functions to override default test values.
// Default test configuration uses: Desktop, 16000 Hz, 256 samples, no hangover.
func (f *PipelineFactory) CreateSimulationForTesting(opts ...ConfigOption) *testing.SimulatedPipeline {
	testConfig := &interfaces.PipelineConfig{
		UseSimulation: true,
		Platform:      interfaces.PlatformDesktop,
		SampleRate:    16000,
		FrameSize:     256,
		VadHangoverMs: 0,
		VadThreshold:  DefaultVadThreshold,
	}

	for _, opt := range opts {
		opt(testConfig)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "CreateSimulationForTesting",
		"platform":    testConfig.Platform.String(),
		"sample_rate": testConfig.SampleRate,
	}).Info("Creating simulation implementation for testing")

	return testing.NewSimulatedPipeline(testConfig)
}

// SwitchToSimulation switches the configuration to use simulation
func (f *PipelineFactory) SwitchToSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToSimulation",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to simulation mode")

	f.defaultConfig.UseSimulation = true
}

// SwitchToReal switches the configuration to use the software pipeline
func (f *PipelineFactory) SwitchToReal() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToReal",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to real mode")

	f.defaultConfig.UseSimulation = false
}

// GetCurrentConfig returns a copy of the current default configuration
func (f *PipelineFactory) GetCurrentConfig() *interfaces.PipelineConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	config := *f.defaultConfig
	return &config
}

// IsUsingSimulation returns true if the factory is configured for simulation
func (f *PipelineFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.defaultConfig.UseSimulation
}

// UpdateConfig validates config and makes a copy of it the factory default.
func (f *PipelineFactory) UpdateConfig(config *interfaces.PipelineConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "UpdateConfig",
			"error":    err.Error(),
		}).Warn("Rejected factory configuration")
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":        "UpdateConfig",
		"old_simulation":  f.defaultConfig.UseSimulation,
		"new_simulation":  config.UseSimulation,
		"old_sample_rate": f.defaultConfig.SampleRate,
		"new_sample_rate": config.SampleRate,
	}).Info("Updating factory configuration")

	updated := *config
	f.defaultConfig = &updated
	return nil
}
