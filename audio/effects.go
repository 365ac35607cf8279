package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/opd-ai/apm/interfaces"
	"github.com/sirupsen/logrus"
)

// Sentinel errors for effect construction.
var (
	ErrInvalidGain        = errors.New("invalid gain")
	ErrInvalidLevel       = errors.New("invalid level")
	ErrInvalidFrameSize   = errors.New("frame size must be a power of 2 between 64 and 4096")
	ErrUnsupportedAgcMode = errors.New("agc mode has no software profile")
)

// MaxGain bounds every gain multiplier (+12 dB).
const MaxGain = 4.0

// Effect processes PCM frames. Effects keep state between frames and are
// not safe for concurrent use; callers serialize access.
type Effect interface {
	// Process applies the effect, possibly in place
	Process(samples []int16) ([]int16, error)

	// Name identifies the effect in logs
	Name() string

	// Close releases the effect's buffers
	Close() error
}

func clampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// applyGain scales samples in place and returns the number of clipped samples.
func applyGain(samples []int16, gain float64) int {
	clipped := 0
	for i, s := range samples {
		v := float64(s) * gain
		if v > math.MaxInt16 || v < math.MinInt16 {
			clipped++
		}
		samples[i] = clampSample(v)
	}
	return clipped
}

// GainEffect applies a fixed linear gain with hard limiting. It implements
// the fixed-digital AGC mode.
type GainEffect struct {
	gain float64
}

// NewGainEffect creates a fixed gain effect.
//
// Parameters:
//   - gain: Linear multiplier (0.0 = silence, 1.0 = unity, 2.0 = +6 dB)
//
// Returns:
//   - *GainEffect: New effect
//   - error: ErrInvalidGain outside [0, MaxGain]
func NewGainEffect(gain float64) (*GainEffect, error) {
	if err := validateGain(gain); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewGainEffect",
			"gain":     gain,
			"error":    err.Error(),
		}).Error("Gain validation failed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewGainEffect",
		"gain":     gain,
	}).Debug("Gain effect created")

	return &GainEffect{gain: gain}, nil
}

func validateGain(gain float64) error {
	if gain < 0 || gain > MaxGain || math.IsNaN(gain) {
		return fmt.Errorf("%w: %f (range 0..%.1f)", ErrInvalidGain, gain, MaxGain)
	}
	return nil
}

// Process implements Effect.
func (g *GainEffect) Process(samples []int16) ([]int16, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	if clipped := applyGain(samples, g.gain); clipped > 0 {
		logrus.WithFields(logrus.Fields{
			"function":      "GainEffect.Process",
			"clipped_count": clipped,
			"total_samples": len(samples),
			"gain":          g.gain,
		}).Debug("Limiter engaged")
	}
	return samples, nil
}

// Name implements Effect.
func (g *GainEffect) Name() string {
	return fmt.Sprintf("Gain(%.2f)", g.gain)
}

// SetGain changes the multiplier.
func (g *GainEffect) SetGain(gain float64) error {
	if err := validateGain(gain); err != nil {
		return err
	}
	g.gain = gain
	return nil
}

// Gain returns the multiplier.
func (g *GainEffect) Gain() float64 {
	return g.gain
}

// Close implements Effect.
func (g *GainEffect) Close() error {
	return nil
}

// AgcProfile tunes the adaptive gain loop.
type AgcProfile struct {
	// TargetLevel is the smoothed peak level the loop converges to (0..1)
	TargetLevel float64
	// AttackRate is the per-sample gain increase
	AttackRate float64
	// ReleaseRate is the per-sample gain decrease
	ReleaseRate float64
	MinGain     float64
	MaxGain     float64
}

// FixedDigitalGain is the gain applied in the fixed-digital mode (+6 dB).
const FixedDigitalGain = 2.0

// AgcProfileFor returns the adaptive loop tuning for mode.
// The analog mode is emulated with a slower loop over a wider range, the
// way a microphone level control would move.
func AgcProfileFor(mode interfaces.AgcMode) (AgcProfile, error) {
	switch mode {
	case interfaces.AgcAdaptiveAnalog:
		return AgcProfile{TargetLevel: 0.3, AttackRate: 0.0002, ReleaseRate: 0.00005, MinGain: 0.05, MaxGain: MaxGain}, nil
	case interfaces.AgcAdaptiveDigital:
		return AgcProfile{TargetLevel: 0.3, AttackRate: 0.001, ReleaseRate: 0.0001, MinGain: 0.1, MaxGain: MaxGain}, nil
	}
	return AgcProfile{}, fmt.Errorf("%w: %s", ErrUnsupportedAgcMode, mode)
}

// AutoGainEffect is a peak-following adaptive gain loop.
type AutoGainEffect struct {
	profile AgcProfile
	gain    float64
	peak    float64
}

// NewAutoGainEffect creates an adaptive gain effect starting at unity gain.
func NewAutoGainEffect(profile AgcProfile) (*AutoGainEffect, error) {
	if profile.TargetLevel <= 0 || profile.TargetLevel > 1 {
		return nil, fmt.Errorf("%w: target %f", ErrInvalidLevel, profile.TargetLevel)
	}
	if profile.MinGain < 0 || profile.MinGain > profile.MaxGain {
		return nil, fmt.Errorf("%w: range %f..%f", ErrInvalidGain, profile.MinGain, profile.MaxGain)
	}
	if err := validateGain(profile.MaxGain); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewAutoGainEffect",
		"target_level": profile.TargetLevel,
		"min_gain":     profile.MinGain,
		"max_gain":     profile.MaxGain,
	}).Debug("Adaptive gain effect created")

	return &AutoGainEffect{profile: profile, gain: 1.0}, nil
}

// Process implements Effect.
func (a *AutoGainEffect) Process(samples []int16) ([]int16, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	a.trackPeak(Peak(samples))
	a.moveGain(a.desiredGain(), len(samples))
	applyGain(samples, a.gain)
	return samples, nil
}

// Fast attack, slow release.
func (a *AutoGainEffect) trackPeak(peak float64) {
	if peak > a.peak {
		a.peak += (peak - a.peak) * 0.1
	} else {
		a.peak += (peak - a.peak) * 0.01
	}
}

func (a *AutoGainEffect) desiredGain() float64 {
	desired := a.profile.MaxGain
	if a.peak > 0.001 {
		desired = a.profile.TargetLevel / a.peak
	}
	return math.Max(a.profile.MinGain, math.Min(desired, a.profile.MaxGain))
}

func (a *AutoGainEffect) moveGain(desired float64, n int) {
	if desired > a.gain {
		a.gain = math.Min(a.gain+a.profile.AttackRate*float64(n), desired)
	} else {
		a.gain = math.Max(a.gain-a.profile.ReleaseRate*float64(n), desired)
	}
}

// Name implements Effect.
func (a *AutoGainEffect) Name() string {
	return fmt.Sprintf("AutoGain(%.2f)", a.gain)
}

// CurrentGain returns the gain applied to the last frame.
func (a *AutoGainEffect) CurrentGain() float64 {
	return a.gain
}

// Close implements Effect.
func (a *AutoGainEffect) Close() error {
	return nil
}

// EffectChain applies effects in insertion order.
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates an empty chain.
func NewEffectChain() *EffectChain {
	return &EffectChain{effects: make([]Effect, 0)}
}

// Add appends effect to the chain.
func (e *EffectChain) Add(effect Effect) {
	e.effects = append(e.effects, effect)

	logrus.WithFields(logrus.Fields{
		"function":     "EffectChain.Add",
		"effect_name":  effect.Name(),
		"effect_count": len(e.effects),
	}).Debug("Effect added to chain")
}

// Process runs samples through every effect and stops at the first error.
func (e *EffectChain) Process(samples []int16) ([]int16, error) {
	current := samples
	for i, effect := range e.effects {
		out, err := effect.Process(current)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "EffectChain.Process",
				"effect_index": i,
				"effect_name":  effect.Name(),
				"error":        err.Error(),
			}).Error("Effect processing failed")
			return nil, fmt.Errorf("effect %d (%s): %w", i, effect.Name(), err)
		}
		current = out
	}
	return current, nil
}

// Len returns the number of effects.
func (e *EffectChain) Len() int {
	return len(e.effects)
}

// Names returns the effect names in processing order.
func (e *EffectChain) Names() []string {
	names := make([]string, len(e.effects))
	for i, effect := range e.effects {
		names[i] = effect.Name()
	}
	return names
}

// Clear closes and removes every effect. All close errors are joined.
func (e *EffectChain) Clear() error {
	var errs []error
	for i, effect := range e.effects {
		if err := effect.Close(); err != nil {
			errs = append(errs, fmt.Errorf("effect %d (%s) close: %w", i, effect.Name(), err))
		}
	}
	e.effects = e.effects[:0]
	return errors.Join(errs...)
}

// Close implements Effect.
func (e *EffectChain) Close() error {
	return e.Clear()
}

// Name implements Effect.
func (e *EffectChain) Name() string {
	return fmt.Sprintf("Chain(%d)", len(e.effects))
}
