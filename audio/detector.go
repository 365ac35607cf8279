package audio

import (
	"fmt"
	"math"

	"github.com/opd-ai/apm/interfaces"
)

// Peak returns the largest absolute sample normalized to 0..1.
func Peak(samples []int16) float64 {
	var peak float64
	for _, s := range samples {
		if v := math.Abs(float64(s) / 32768.0); v > peak {
			peak = v
		}
	}
	return peak
}

// RMS returns the root mean square level normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// LevelToDb converts a normalized level to dBFS, floored at -100.
func LevelToDb(level float64) float64 {
	if level <= 1e-5 {
		return -100
	}
	return 20 * math.Log10(level)
}

// thresholdScale raises the speech threshold for the aggressive modes, which
// report fewer frames as active.
var thresholdScale = map[interfaces.VadMode]float64{
	interfaces.VadConventional:   1.0,
	interfaces.VadAggressiveLow:  1.5,
	interfaces.VadAggressiveMid:  2.0,
	interfaces.VadAggressiveHigh: 3.0,
}

// LevelDetector decides voice activity from frame energy. After the level
// drops below the threshold the decision stays active until the hangover,
// counted in samples, has elapsed. Frames may have any length.
type LevelDetector struct {
	threshold float64
	scale     float64
	hangover  int
	remaining int
	decision  interfaces.VadDecision
}

// NewLevelDetector creates a detector.
//
// Parameters:
//   - threshold: RMS level (0..1) treated as speech in conventional mode
//   - hangoverSamples: Samples the decision stays active after speech stops
func NewLevelDetector(threshold float64, hangoverSamples int) (*LevelDetector, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("%w: threshold %f", ErrInvalidLevel, threshold)
	}
	if hangoverSamples < 0 {
		return nil, fmt.Errorf("%w: hangover %d", ErrInvalidLevel, hangoverSamples)
	}
	return &LevelDetector{
		threshold: threshold,
		scale:     1.0,
		hangover:  hangoverSamples,
		decision:  interfaces.VadInactive,
	}, nil
}

// SetMode selects the aggressiveness.
func (d *LevelDetector) SetMode(mode interfaces.VadMode) error {
	scale, ok := thresholdScale[mode]
	if !ok {
		return fmt.Errorf("%w: vad mode %d", ErrInvalidLevel, int(mode))
	}
	d.scale = scale
	return nil
}

// Process classifies one frame and returns the resulting decision.
func (d *LevelDetector) Process(samples []int16) interfaces.VadDecision {
	if RMS(samples) >= d.threshold*d.scale {
		d.remaining = d.hangover
		d.decision = interfaces.VadActive
		return d.decision
	}

	if d.remaining > 0 {
		d.remaining -= len(samples)
		return d.decision
	}
	d.decision = interfaces.VadInactive
	return d.decision
}

// Decision returns the last decision.
func (d *LevelDetector) Decision() interfaces.VadDecision {
	return d.decision
}

// Reset returns the detector to inactive.
func (d *LevelDetector) Reset() {
	d.remaining = 0
	d.decision = interfaces.VadInactive
}
