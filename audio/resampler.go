package audio

import (
	"fmt"

	"github.com/opd-ai/apm/limits"
	"github.com/sirupsen/logrus"
)

// Resampler converts mono PCM between sample rates by linear interpolation.
// The fractional read position and the last input sample carry over between
// calls, so consecutive frames join without discontinuity.
type Resampler struct {
	inputRate  int
	outputRate int
	position   float64
	last       int16
}

// NewResampler creates a mono resampler. outputRate must be a supported
// processing rate; inputRate may be any positive rate.
func NewResampler(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 {
		return nil, fmt.Errorf("%w: input %d Hz", limits.ErrUnsupportedSampleRate, inputRate)
	}
	if err := limits.ValidateSampleRate(outputRate); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  inputRate,
		"output_rate": outputRate,
	}).Debug("Resampler created")

	return &Resampler{inputRate: inputRate, outputRate: outputRate}, nil
}

// Resample converts one block of input.
func (r *Resampler) Resample(input []int16) []int16 {
	if len(input) == 0 {
		return input
	}
	if r.inputRate == r.outputRate {
		out := make([]int16, len(input))
		copy(out, input)
		r.last = input[len(input)-1]
		return out
	}

	step := float64(r.inputRate) / float64(r.outputRate)
	out := make([]int16, 0, int(float64(len(input))/step)+1)

	// position is relative to input[0]; -1 addresses the previous block's
	// last sample.
	for r.position < float64(len(input)-1) {
		q := r.position + 1
		idx := int(q)
		frac := q - float64(idx)
		a := r.sampleAt(input, idx)
		b := r.sampleAt(input, idx+1)
		out = append(out, clampSample(float64(a)+(float64(b)-float64(a))*frac))
		r.position += step
	}

	r.position -= float64(len(input))
	r.last = input[len(input)-1]
	return out
}

// sampleAt indexes input with the carried sample prepended at 0.
func (r *Resampler) sampleAt(input []int16, idx int) int16 {
	if idx == 0 {
		return r.last
	}
	return input[idx-1]
}

// InputRate returns the source rate.
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// OutputRate returns the target rate.
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// Reset clears the carried state.
func (r *Resampler) Reset() {
	r.position = 0
	r.last = 0
}
