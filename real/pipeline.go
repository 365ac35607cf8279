package real

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/apm/audio"
	"github.com/opd-ai/apm/interfaces"
	"github.com/opd-ai/apm/limits"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedMode indicates a mode the software stages cannot run.
var ErrUnsupportedMode = errors.New("mode not supported by software pipeline")

// Pipeline is a software implementation of interfaces.AudioPipeline.
//
// The send path runs echo suppression, noise suppression and gain control on
// capture frames. Each receive channel runs its own noise suppression, gain
// control and voice activity detector on render frames. Configuration takes
// effect on the next frame.
type Pipeline struct {
	config  interfaces.PipelineConfig
	running atomic.Bool

	// send path
	mu        sync.Mutex
	agc       stage
	ns        stage
	echo      *echoSuppressor
	capture   *audio.LevelDetector
	captureVA interfaces.VadDecision

	chMu     sync.RWMutex
	channels map[int]*rxChannel
}

// stage is one switchable processing step.
type stage struct {
	enabled bool
	mode    int
	effect  audio.Effect
}

func (s *stage) process(pcm []int16) ([]int16, error) {
	if !s.enabled || s.effect == nil {
		return pcm, nil
	}
	return s.effect.Process(pcm)
}

// NewPipeline creates a started pipeline.
//
// Parameters:
//   - config: Validated processing configuration
//
// Returns:
//   - *Pipeline: Pipeline with every stage disabled
//   - error: Validation error from config
func NewPipeline(config interfaces.PipelineConfig) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewPipeline",
			"error":    err.Error(),
		}).Error("Invalid pipeline configuration")
		return nil, err
	}

	capture, err := audio.NewLevelDetector(config.VadThreshold, hangoverSamples(config))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:    config,
		echo:      newEchoSuppressor(),
		capture:   capture,
		captureVA: interfaces.VadInactive,
		channels:  make(map[int]*rxChannel),
	}
	p.running.Store(true)

	logrus.WithFields(logrus.Fields{
		"function":    "NewPipeline",
		"sample_rate": config.SampleRate,
		"frame_size":  config.FrameSize,
		"platform":    config.Platform.String(),
	}).Info("Software audio pipeline created")

	return p, nil
}

// hangoverSamples converts the configured hangover to samples, so it holds
// for any frame length.
func hangoverSamples(config interfaces.PipelineConfig) int {
	return config.VadHangoverMs * config.SampleRate / 1000
}

// Start accepts configuration and frames again after Stop.
func (p *Pipeline) Start() {
	p.running.Store(true)
	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.Start",
	}).Info("Pipeline started")
}

// Stop makes every call fail with ErrPipelineUnavailable until Start.
func (p *Pipeline) Stop() {
	p.running.Store(false)
	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.Stop",
	}).Info("Pipeline stopped")
}

// Running reports whether the pipeline accepts calls.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// IsSimulation reports that this pipeline processes audio.
func (p *Pipeline) IsSimulation() bool {
	return false
}

// SampleRate returns the processing rate.
func (p *Pipeline) SampleRate() int {
	return p.config.SampleRate
}

func (p *Pipeline) checkRunning() error {
	if !p.running.Load() {
		return fmt.Errorf("%w: software pipeline stopped", interfaces.ErrPipelineUnavailable)
	}
	return nil
}

func unsupported(err error) error {
	return fmt.Errorf("%w: %w", interfaces.ErrPipelineUnavailable, err)
}

// newAgcEffect builds the gain stage for a concrete mode.
func newAgcEffect(mode interfaces.AgcMode) (audio.Effect, error) {
	if mode == interfaces.AgcFixedDigital {
		return audio.NewGainEffect(audio.FixedDigitalGain)
	}
	profile, err := audio.AgcProfileFor(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedMode, err)
	}
	return audio.NewAutoGainEffect(profile)
}

func (p *Pipeline) newNsEffect(mode interfaces.NsMode) (audio.Effect, error) {
	level, err := audio.SuppressionLevelFor(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedMode, err)
	}
	return audio.NewNoiseSuppressionEffect(level, p.config.FrameSize)
}

// configureAgc rebuilds s only when the mode changes, so the adaptive loop
// keeps its state across enable toggles.
func configureAgc(s *stage, enabled bool, mode interfaces.AgcMode) error {
	if s.effect == nil || s.mode != int(mode) {
		effect, err := newAgcEffect(mode)
		if err != nil {
			return unsupported(err)
		}
		s.effect = effect
		s.mode = int(mode)
	}
	s.enabled = enabled
	return nil
}

func (p *Pipeline) configureNs(s *stage, enabled bool, mode interfaces.NsMode) error {
	if s.effect == nil || s.mode != int(mode) {
		level, err := audio.SuppressionLevelFor(mode)
		if err != nil {
			return unsupported(fmt.Errorf("%w: %w", ErrUnsupportedMode, err))
		}
		// Changing the level keeps the learned noise floor.
		if ns, ok := s.effect.(*audio.NoiseSuppressionEffect); ok {
			if err := ns.SetLevel(level); err != nil {
				return unsupported(err)
			}
		} else {
			effect, err := p.newNsEffect(mode)
			if err != nil {
				return unsupported(err)
			}
			s.effect = effect
		}
		s.mode = int(mode)
	}
	s.enabled = enabled
	return nil
}

// SetAgc implements interfaces.AudioPipeline.
func (p *Pipeline) SetAgc(enabled bool, mode interfaces.AgcMode) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return configureAgc(&p.agc, enabled, mode)
}

// SetEc implements interfaces.AudioPipeline.
func (p *Pipeline) SetEc(enabled bool, mode interfaces.EcMode) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if mode != interfaces.EcAec && mode != interfaces.EcAecm {
		return unsupported(fmt.Errorf("%w: ec mode %s", ErrUnsupportedMode, mode))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.echo.configure(enabled, mode)
	return nil
}

// SetAecmMode implements interfaces.AudioPipeline.
func (p *Pipeline) SetAecmMode(mode interfaces.AecmMode, cngEnabled bool) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if !mode.IsValid() {
		return unsupported(fmt.Errorf("%w: aecm mode %d", ErrUnsupportedMode, int(mode)))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.echo.setRouting(mode, cngEnabled)
	return nil
}

// SetEcMetrics implements interfaces.AudioPipeline.
func (p *Pipeline) SetEcMetrics(enabled bool) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	p.echo.setMetrics(enabled)
	return nil
}

// EchoMetrics implements interfaces.AudioPipeline.
func (p *Pipeline) EchoMetrics() (interfaces.EchoMetrics, error) {
	if err := p.checkRunning(); err != nil {
		return interfaces.EchoMetrics{}, err
	}
	return p.echo.metrics(), nil
}

// EcDelayMetrics implements interfaces.AudioPipeline.
func (p *Pipeline) EcDelayMetrics() (interfaces.DelayMetrics, error) {
	if err := p.checkRunning(); err != nil {
		return interfaces.DelayMetrics{}, err
	}
	return p.echo.delayMetrics(), nil
}

// ReportStreamDelay records the measured render-to-capture delay in
// milliseconds for the delay metrics.
func (p *Pipeline) ReportStreamDelay(ms int) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if ms < 0 || ms > maxStreamDelayMs {
		return fmt.Errorf("%w: %d ms (range 0..%d)", ErrInvalidDelay, ms, maxStreamDelayMs)
	}
	p.echo.reportDelay(ms)
	return nil
}

// SetNs implements interfaces.AudioPipeline.
func (p *Pipeline) SetNs(enabled bool, mode interfaces.NsMode) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configureNs(&p.ns, enabled, mode)
}

// ProcessCapture runs one near-end frame through echo suppression, noise
// suppression and gain control. The input slice is not modified.
func (p *Pipeline) ProcessCapture(pcm []int16) ([]int16, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}
	if err := limits.ValidateFrame(pcm); err != nil {
		return nil, err
	}

	frame := make([]int16, len(pcm))
	copy(frame, pcm)

	p.mu.Lock()
	defer p.mu.Unlock()

	frame = p.echo.process(frame)

	frame, err := p.ns.process(frame)
	if err != nil {
		return nil, fmt.Errorf("capture noise suppression: %w", err)
	}
	frame, err = p.agc.process(frame)
	if err != nil {
		return nil, fmt.Errorf("capture gain control: %w", err)
	}

	p.captureVA = p.capture.Process(frame)
	return frame, nil
}

// CaptureVoiceActivity returns the decision for the last capture frame.
func (p *Pipeline) CaptureVoiceActivity() interfaces.VadDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captureVA
}
