package interfaces

import (
	"errors"
	"fmt"

	"github.com/opd-ai/apm/limits"
)

// Sentinel errors shared by pipeline implementations and their consumers.
var (
	// ErrPipelineUnavailable indicates the pipeline is not initialized or not started.
	ErrPipelineUnavailable = errors.New("audio pipeline unavailable")

	// ErrUnknownName indicates a mode or platform name could not be parsed.
	ErrUnknownName = errors.New("unknown name")

	// ErrInvalidPlatform indicates an undefined Platform value in a config.
	ErrInvalidPlatform = errors.New("invalid platform")

	// ErrInvalidHangover indicates a negative or excessive VAD hangover.
	ErrInvalidHangover = errors.New("invalid vad hangover")

	// ErrInvalidThreshold indicates a VAD threshold outside (0, 1).
	ErrInvalidThreshold = errors.New("invalid vad threshold")

	// ErrFrameNotPowerOfTwo indicates an analysis frame the FFT cannot use.
	ErrFrameNotPowerOfTwo = errors.New("frame size must be a power of 2")
)

// MaxVadHangoverMs bounds PipelineConfig.VadHangoverMs.
const MaxVadHangoverMs = 5000

// EchoMetrics is a live echo measurement snapshot in dB.
type EchoMetrics struct {
	// ERL is the echo return loss
	ERL int
	// ERLE is the echo return loss enhancement
	ERLE int
	// RERL is ERL + ERLE
	RERL int
	// ANLP is the non-linear processing attenuation
	ANLP int
}

// DelayMetrics is a live echo path delay estimate in milliseconds.
type DelayMetrics struct {
	Median int
	Std    int
}

// VadObserver receives receive-path voice activity decisions for a channel.
// Delivery goroutine and ordering are owned by the pipeline.
type VadObserver interface {
	OnRxVad(channel int, decision VadDecision)
}

// VadObserverFunc adapts a function to the VadObserver interface.
type VadObserverFunc func(channel int, decision VadDecision)

// OnRxVad calls f(channel, decision).
func (f VadObserverFunc) OnRxVad(channel int, decision VadDecision) {
	f(channel, decision)
}

// ChannelRegistry supplies the set of valid channel ids.
type ChannelRegistry interface {
	// ChannelExists reports whether channel is currently allocated
	ChannelExists(channel int) bool
}

// ChannelRemovalNotifier is implemented by registries that can announce
// channel removal so per-channel state can be released eagerly.
type ChannelRemovalNotifier interface {
	// OnChannelRemoved registers fn to be called after a channel is removed
	OnChannelRemoved(fn func(channel int))
}

// AudioPipeline is the processing chain configured by the control surface.
//
// Every mode passed to a setter is already resolved to a concrete value.
// Implementations must be safe for concurrent use and must return an error
// wrapping ErrPipelineUnavailable when they cannot apply a request.
type AudioPipeline interface {
	// SetAgc configures send-path gain control
	SetAgc(enabled bool, mode AgcMode) error

	// SetEc configures send-path echo control with family EcAec or EcAecm
	SetEc(enabled bool, mode EcMode) error

	// SetAecmMode configures the mobile echo canceller routing and comfort noise
	SetAecmMode(mode AecmMode, cngEnabled bool) error

	// SetEcMetrics toggles echo metric collection
	SetEcMetrics(enabled bool) error

	// EchoMetrics returns the current echo measurement snapshot
	EchoMetrics() (EchoMetrics, error)

	// EcDelayMetrics returns the current echo path delay estimate
	EcDelayMetrics() (DelayMetrics, error)

	// SetNs configures send-path noise suppression
	SetNs(enabled bool, mode NsMode) error

	// SetRxAgc configures receive-path gain control for channel
	SetRxAgc(channel int, enabled bool, mode AgcMode) error

	// SetRxNs configures receive-path noise suppression for channel
	SetRxNs(channel int, enabled bool, mode NsMode) error

	// SetVad configures voice activity detection and DTX for channel
	SetVad(channel int, enabled bool, mode VadMode, disableDTX bool) error

	// VoiceActivity returns the detector's current decision for channel
	VoiceActivity(channel int) (VadDecision, error)

	// SetRxVadObserver binds observer to channel; nil unbinds
	SetRxVadObserver(channel int, observer VadObserver) error
}

// PipelineConfig holds configuration for pipeline implementations.
type PipelineConfig struct {
	// UseSimulation selects the deterministic simulated pipeline
	UseSimulation bool

	// Platform selects default and validation policies
	Platform Platform

	// SampleRate is the processing rate in Hz
	SampleRate int

	// FrameSize is the noise suppression analysis frame in samples (power of 2)
	FrameSize int

	// VadHangoverMs keeps the detector active after speech stops
	VadHangoverMs int

	// VadThreshold is the RMS level (0..1) treated as speech in conventional mode
	VadThreshold float64
}

// Validate checks every field against its bounds.
func (c *PipelineConfig) Validate() error {
	if !c.Platform.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidPlatform, int(c.Platform))
	}
	if err := limits.ValidateSampleRate(c.SampleRate); err != nil {
		return err
	}
	if err := limits.ValidateFrameSize(c.FrameSize); err != nil {
		return err
	}
	if c.FrameSize&(c.FrameSize-1) != 0 {
		return fmt.Errorf("%w: %d", ErrFrameNotPowerOfTwo, c.FrameSize)
	}
	if c.VadHangoverMs < 0 || c.VadHangoverMs > MaxVadHangoverMs {
		return fmt.Errorf("%w: %d ms (max %d)", ErrInvalidHangover, c.VadHangoverMs, MaxVadHangoverMs)
	}
	if c.VadThreshold <= 0 || c.VadThreshold >= 1 {
		return fmt.Errorf("%w: %f", ErrInvalidThreshold, c.VadThreshold)
	}
	return nil
}
