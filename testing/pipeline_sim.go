package testing

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/apm/interfaces"
	"github.com/sirupsen/logrus"
)

// SendPath is the Channel value recorded for send-path calls.
const SendPath = -1

// SimulatedPipeline implements interfaces.AudioPipeline in memory for testing.
type SimulatedPipeline struct {
	config    *interfaces.PipelineConfig
	calls     []PipelineCall
	available bool
	failures  map[interfaces.ProcessingStage]error
	voice     map[int]interfaces.VadDecision
	observers map[int]interfaces.VadObserver
	metrics   interfaces.EchoMetrics
	delay     interfaces.DelayMetrics
	mu        sync.RWMutex
}

// PipelineCall records one configuration request for test verification.
type PipelineCall struct {
	Operation string
	Stage     interfaces.ProcessingStage
	Channel   int
	Enabled   bool
	Mode      string
	Timestamp int64
	Err       error
}

// SimulationStats summarizes the call log.
type SimulationStats struct {
	TotalCalls     int
	FailedCalls    int
	BoundObservers int
	Available      bool
}

// NewSimulatedPipeline creates an available simulated pipeline. A nil config
// is accepted.
func NewSimulatedPipeline(config *interfaces.PipelineConfig) *SimulatedPipeline {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedPipeline",
	}).Info("Creating simulated audio pipeline for testing")

	return &SimulatedPipeline{
		config:    config,
		calls:     make([]PipelineCall, 0),
		available: true,
		failures:  make(map[interfaces.ProcessingStage]error),
		voice:     make(map[int]interfaces.VadDecision),
		observers: make(map[int]interfaces.VadObserver),
	}
}

// record appends a call and returns the error configured for its stage.
func (s *SimulatedPipeline) record(op string, stage interfaces.ProcessingStage, channel int, enabled bool, mode fmt.Stringer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if !s.available {
		err = fmt.Errorf("%w: simulated pipeline stopped", interfaces.ErrPipelineUnavailable)
	} else if cause, ok := s.failures[stage]; ok {
		err = fmt.Errorf("%w: stage %s: %w", interfaces.ErrPipelineUnavailable, stage, cause)
	}

	call := PipelineCall{
		Operation: op,
		Stage:     stage,
		Channel:   channel,
		Enabled:   enabled,
		Timestamp: time.Now().UnixNano(),
		Err:       err,
	}
	if mode != nil {
		call.Mode = mode.String()
	}
	s.calls = append(s.calls, call)

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedPipeline." + op,
		"channel":  channel,
		"enabled":  enabled,
		"mode":     call.Mode,
		"failed":   err != nil,
	}).Debug("Simulating pipeline configuration")

	return err
}

// SetAgc implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetAgc(enabled bool, mode interfaces.AgcMode) error {
	return s.record("SetAgc", interfaces.StageAgc, SendPath, enabled, mode)
}

// SetEc implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetEc(enabled bool, mode interfaces.EcMode) error {
	return s.record("SetEc", interfaces.StageEchoCancellation, SendPath, enabled, mode)
}

// SetAecmMode implements interfaces.AudioPipeline. Enabled carries the
// comfort noise flag.
func (s *SimulatedPipeline) SetAecmMode(mode interfaces.AecmMode, cngEnabled bool) error {
	return s.record("SetAecmMode", interfaces.StageEchoCancellationMobile, SendPath, cngEnabled, mode)
}

// SetEcMetrics implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetEcMetrics(enabled bool) error {
	return s.record("SetEcMetrics", interfaces.StageEchoCancellation, SendPath, enabled, nil)
}

// EchoMetrics implements interfaces.AudioPipeline with the scripted values.
func (s *SimulatedPipeline) EchoMetrics() (interfaces.EchoMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return interfaces.EchoMetrics{}, fmt.Errorf("%w: simulated pipeline stopped", interfaces.ErrPipelineUnavailable)
	}
	return s.metrics, nil
}

// EcDelayMetrics implements interfaces.AudioPipeline with the scripted values.
func (s *SimulatedPipeline) EcDelayMetrics() (interfaces.DelayMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return interfaces.DelayMetrics{}, fmt.Errorf("%w: simulated pipeline stopped", interfaces.ErrPipelineUnavailable)
	}
	return s.delay, nil
}

// SetNs implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetNs(enabled bool, mode interfaces.NsMode) error {
	return s.record("SetNs", interfaces.StageNoiseSuppression, SendPath, enabled, mode)
}

// SetRxAgc implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetRxAgc(channel int, enabled bool, mode interfaces.AgcMode) error {
	return s.record("SetRxAgc", interfaces.StageAgc, channel, enabled, mode)
}

// SetRxNs implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetRxNs(channel int, enabled bool, mode interfaces.NsMode) error {
	return s.record("SetRxNs", interfaces.StageNoiseSuppression, channel, enabled, mode)
}

// SetVad implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetVad(channel int, enabled bool, mode interfaces.VadMode, disableDTX bool) error {
	return s.record("SetVad", interfaces.StageVoiceActivityDetection, channel, enabled, mode)
}

// VoiceActivity implements interfaces.AudioPipeline. Channels without a
// scripted decision report VadInactive.
func (s *SimulatedPipeline) VoiceActivity(channel int) (interfaces.VadDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return interfaces.VadUnavailable, fmt.Errorf("%w: simulated pipeline stopped", interfaces.ErrPipelineUnavailable)
	}
	if d, ok := s.voice[channel]; ok {
		return d, nil
	}
	return interfaces.VadInactive, nil
}

// SetRxVadObserver implements interfaces.AudioPipeline.
func (s *SimulatedPipeline) SetRxVadObserver(channel int, observer interfaces.VadObserver) error {
	if err := s.record("SetRxVadObserver", interfaces.StageVoiceActivityDetection, channel, observer != nil, nil); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if observer == nil {
		delete(s.observers, channel)
	} else {
		s.observers[channel] = observer
	}
	return nil
}

// SetVoiceActivity scripts the detector decision for channel. The bound
// observer is notified only when the decision changes.
func (s *SimulatedPipeline) SetVoiceActivity(channel int, decision interfaces.VadDecision) {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")

	s.mu.Lock()
	prev, ok := s.voice[channel]
	if !ok {
		prev = interfaces.VadInactive
	}
	s.voice[channel] = decision
	observer := s.observers[channel]
	s.mu.Unlock()

	if decision == prev || observer == nil {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedPipeline.SetVoiceActivity",
		"channel":  channel,
		"decision": decision.String(),
	}).Info("Notifying VAD observer")
	observer.OnRxVad(channel, decision)
}

// SetEchoMetrics scripts the values returned by EchoMetrics.
func (s *SimulatedPipeline) SetEchoMetrics(m interfaces.EchoMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// SetDelayMetrics scripts the values returned by EcDelayMetrics.
func (s *SimulatedPipeline) SetDelayMetrics(m interfaces.DelayMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = m
}

// SetAvailable toggles whether the pipeline accepts requests.
func (s *SimulatedPipeline) SetAvailable(available bool) {
	logrus.WithFields(logrus.Fields{
		"function":  "SimulatedPipeline.SetAvailable",
		"available": available,
	}).Info("Changing simulated pipeline availability")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

// FailStage makes every later request for stage fail with cause.
func (s *SimulatedPipeline) FailStage(stage interfaces.ProcessingStage, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[stage] = cause
}

// ClearFailures removes all injected stage failures.
func (s *SimulatedPipeline) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[interfaces.ProcessingStage]error)
}

// HasObserver reports whether an observer is bound to channel.
func (s *SimulatedPipeline) HasObserver(channel int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.observers[channel]
	return ok
}

// Calls returns a copy of the call log.
func (s *SimulatedPipeline) Calls() []PipelineCall {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls := make([]PipelineCall, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// CallsFor returns the logged calls of one operation.
func (s *SimulatedPipeline) CallsFor(op string) []PipelineCall {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var calls []PipelineCall
	for _, c := range s.calls {
		if c.Operation == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// LastCall returns the most recent call of op on channel.
func (s *SimulatedPipeline) LastCall(op string, channel int) (PipelineCall, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Operation == op && s.calls[i].Channel == channel {
			return s.calls[i], true
		}
	}
	return PipelineCall{}, false
}

// ClearCalls empties the call log.
func (s *SimulatedPipeline) ClearCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make([]PipelineCall, 0)
}

// Stats summarizes the simulation state.
func (s *SimulatedPipeline) Stats() SimulationStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SimulationStats{
		TotalCalls:     len(s.calls),
		BoundObservers: len(s.observers),
		Available:      s.available,
	}
	for _, c := range s.calls {
		if c.Err != nil {
			stats.FailedCalls++
		}
	}
	return stats
}

// IsSimulation reports that this pipeline performs no processing.
func (s *SimulatedPipeline) IsSimulation() bool {
	return true
}
