package audio

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/opd-ai/apm/interfaces"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/dsp/fourier"
)

// noiseLearningFrames is the number of analysis frames averaged into the
// initial noise floor.
const noiseLearningFrames = 10

// SuppressionLevelFor maps a concrete noise suppression mode to the
// subtraction strength used by NoiseSuppressionEffect.
func SuppressionLevelFor(mode interfaces.NsMode) (float64, error) {
	switch mode {
	case interfaces.NsLowSuppression:
		return 0.25, nil
	case interfaces.NsModerateSuppression:
		return 0.5, nil
	case interfaces.NsHighSuppression:
		return 0.75, nil
	case interfaces.NsVeryHighSuppression:
		return 1.0, nil
	}
	return 0, fmt.Errorf("%w: ns mode %s is not concrete", ErrInvalidLevel, mode)
}

// NoiseSuppressionEffect reduces stationary background noise by spectral
// subtraction over 50% overlapping frames.
//
// The noise floor is learned from the first frames after creation or Reset,
// so processing should start on background noise. The square-root Hann
// window is applied at analysis and synthesis; the product sums to one at
// 50% overlap.
//
// Frames are cut from a continuous stream, independent of how the input is
// split across Process calls. Output lags input by Latency samples.
type NoiseSuppressionEffect struct {
	level      float64
	frameSize  int
	window     []float64
	noiseFloor []float64
	fft        *fourier.FFT
	frame      []float64
	spectrum   []complex128
	learned    int

	// pending holds input not yet consumed by a full frame, starting at the
	// next frame boundary. tail is the second half of the last synthesized
	// frame awaiting overlap. ready holds finished output.
	pending []float64
	tail    []float64
	ready   []float64
}

// NewNoiseSuppressionEffect creates a suppressor.
//
// Parameters:
//   - level: Subtraction strength (0.0 = bypass, 1.0 = maximum)
//   - frameSize: Analysis frame, a power of 2 between 64 and 4096
func NewNoiseSuppressionEffect(level float64, frameSize int) (*NoiseSuppressionEffect, error) {
	if level < 0 || level > 1 {
		return nil, fmt.Errorf("%w: suppression %f", ErrInvalidLevel, level)
	}
	if frameSize < 64 || frameSize > 4096 || frameSize&(frameSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, frameSize)
	}

	window := make([]float64, frameSize)
	for i := range window {
		window[i] = math.Sqrt(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(frameSize))))
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewNoiseSuppressionEffect",
		"level":      level,
		"frame_size": frameSize,
	}).Debug("Noise suppression effect created")

	ns := &NoiseSuppressionEffect{
		level:      level,
		frameSize:  frameSize,
		window:     window,
		noiseFloor: make([]float64, frameSize/2+1),
		fft:        fourier.NewFFT(frameSize),
		frame:      make([]float64, frameSize),
		spectrum:   make([]complex128, frameSize/2+1),
	}
	ns.resetStream()
	return ns, nil
}

// resetStream primes the stream with one hop of silence on each side so the
// first real samples receive full overlap.
func (ns *NoiseSuppressionEffect) resetStream() {
	hop := ns.frameSize / 2
	ns.pending = make([]float64, hop, ns.frameSize*2)
	ns.tail = make([]float64, hop)
	ns.ready = make([]float64, hop, ns.frameSize*2)
}

// SetLevel changes the subtraction strength without relearning the floor.
func (ns *NoiseSuppressionEffect) SetLevel(level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("%w: suppression %f", ErrInvalidLevel, level)
	}
	ns.level = level
	return nil
}

// Level returns the subtraction strength.
func (ns *NoiseSuppressionEffect) Level() float64 {
	return ns.level
}

// Latency returns the delay in samples between input and output.
func (ns *NoiseSuppressionEffect) Latency() int {
	return ns.frameSize
}

// Learned reports whether the noise floor estimate is complete.
func (ns *NoiseSuppressionEffect) Learned() bool {
	return ns.learned >= noiseLearningFrames
}

// Reset discards the noise floor estimate and any buffered audio.
func (ns *NoiseSuppressionEffect) Reset() {
	for i := range ns.noiseFloor {
		ns.noiseFloor[i] = 0
	}
	ns.learned = 0
	ns.resetStream()
}

// Process implements Effect. The output has the length of the input.
func (ns *NoiseSuppressionEffect) Process(samples []int16) ([]int16, error) {
	if len(samples) == 0 {
		return samples, nil
	}

	for _, s := range samples {
		ns.pending = append(ns.pending, float64(s)/32768.0)
	}

	hop := ns.frameSize / 2
	consumed := 0
	for len(ns.pending)-consumed >= ns.frameSize {
		copy(ns.frame, ns.pending[consumed:consumed+ns.frameSize])
		ns.processFrame(ns.frame)
		for i := 0; i < hop; i++ {
			ns.ready = append(ns.ready, ns.tail[i]+ns.frame[i])
		}
		copy(ns.tail, ns.frame[hop:])
		consumed += hop
	}
	ns.pending = append(ns.pending[:0], ns.pending[consumed:]...)

	result := make([]int16, len(samples))
	for i := range result {
		result[i] = clampSample(ns.ready[i] * 32768.0)
	}
	ns.ready = append(ns.ready[:0], ns.ready[len(samples):]...)
	return result, nil
}

// processFrame replaces frame with its noise-reduced, windowed synthesis.
func (ns *NoiseSuppressionEffect) processFrame(frame []float64) {
	for i, v := range frame {
		frame[i] = v * ns.window[i]
	}
	ns.spectrum = ns.fft.Coefficients(ns.spectrum, frame)

	magnitude := make([]float64, len(ns.spectrum))
	for i, c := range ns.spectrum {
		magnitude[i] = cmplx.Abs(c)
	}

	if !ns.Learned() {
		ns.learn(magnitude)
	} else {
		ns.subtract(magnitude)
	}

	// Sequence is unnormalized.
	ns.fft.Sequence(frame, ns.spectrum)
	scale := 1 / float64(ns.frameSize)
	for i, v := range frame {
		frame[i] = v * scale * ns.window[i]
	}
}

func (ns *NoiseSuppressionEffect) learn(magnitude []float64) {
	const alpha = 0.8
	for i, m := range magnitude {
		if ns.learned == 0 {
			ns.noiseFloor[i] = m
		} else {
			ns.noiseFloor[i] = alpha*ns.noiseFloor[i] + (1-alpha)*m
		}
	}
	ns.learned++

	if ns.Learned() {
		logrus.WithFields(logrus.Fields{
			"function": "NoiseSuppressionEffect.learn",
			"frames":   ns.learned,
		}).Debug("Noise floor estimated")
	}
}

// subtract applies over-subtraction with a spectral floor of 10% of the
// original magnitude.
func (ns *NoiseSuppressionEffect) subtract(magnitude []float64) {
	const overSubtraction = 2.0
	for i, m := range magnitude {
		if m == 0 {
			continue
		}
		kept := math.Max(m-overSubtraction*ns.level*ns.noiseFloor[i], 0.1*m)
		ns.spectrum[i] *= complex(kept/m, 0)
	}
}

// Name implements Effect.
func (ns *NoiseSuppressionEffect) Name() string {
	return fmt.Sprintf("NoiseSuppression(%.2f)", ns.level)
}

// Close implements Effect.
func (ns *NoiseSuppressionEffect) Close() error {
	ns.noiseFloor = nil
	ns.spectrum = nil
	ns.window = nil
	ns.pending = nil
	ns.tail = nil
	ns.ready = nil
	return nil
}
