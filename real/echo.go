package real

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/opd-ai/apm/audio"
	"github.com/opd-ai/apm/interfaces"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidDelay indicates a stream delay outside 0..maxStreamDelayMs.
var ErrInvalidDelay = errors.New("invalid stream delay")

const (
	maxStreamDelayMs = 1000
	delayWindow      = 100

	// farActiveLevel is the render RMS above which echo is expected.
	farActiveLevel = 0.005

	// Near-end frames louder than the far end are treated as double talk
	// and pass unsuppressed.
	doubleTalkRatio = 1.0

	metricSmoothing = 0.1
)

// aecmDepth is the residual gain applied to echo-dominated frames per
// acoustic routing; louder routings couple more echo.
var aecmDepth = map[interfaces.AecmMode]float64{
	interfaces.AecmQuietEarpieceOrHeadset: 0.5,
	interfaces.AecmEarpiece:               0.3,
	interfaces.AecmLoudEarpiece:           0.2,
	interfaces.AecmSpeakerphone:           0.1,
	interfaces.AecmLoudSpeakerphone:       0.05,
}

const aecDepth = 0.1

// echoSuppressor attenuates capture frames while the far end is talking
// and the near end is quieter than it.
type echoSuppressor struct {
	mu         sync.Mutex
	enabled    bool
	mode       interfaces.EcMode
	routing    interfaces.AecmMode
	cng        bool
	collect    bool
	far        float64
	noiseFloor float64
	rng        *rand.Rand

	erl, erle, anlp float64
	delays          []int
}

func newEchoSuppressor() *echoSuppressor {
	return &echoSuppressor{
		mode:    interfaces.EcAec,
		routing: interfaces.AecmSpeakerphone,
		cng:     true,
		rng:     rand.New(rand.NewSource(1)),
	}
}

func (e *echoSuppressor) configure(enabled bool, mode interfaces.EcMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
	e.mode = mode
}

func (e *echoSuppressor) setRouting(mode interfaces.AecmMode, cng bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routing = mode
	e.cng = cng
}

func (e *echoSuppressor) setMetrics(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if enabled && !e.collect {
		e.erl, e.erle, e.anlp = 0, 0, 0
	}
	e.collect = enabled
}

// observeRender tracks the far-end level with fast attack and slow release.
func (e *echoSuppressor) observeRender(pcm []int16) {
	level := audio.RMS(pcm)

	e.mu.Lock()
	defer e.mu.Unlock()
	if level > e.far {
		e.far += (level - e.far) * 0.5
	} else {
		e.far += (level - e.far) * 0.05
	}
}

func (e *echoSuppressor) depth() float64 {
	if e.mode == interfaces.EcAecm {
		return aecmDepth[e.routing]
	}
	return aecDepth
}

func (e *echoSuppressor) process(frame []int16) []int16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	near := audio.RMS(frame)
	if e.noiseFloor == 0 || near < e.noiseFloor {
		e.noiseFloor = near
	} else {
		e.noiseFloor += (near - e.noiseFloor) * 0.001
	}

	if !e.enabled {
		return frame
	}

	farActive := e.far > farActiveLevel
	gain := 1.0
	if farActive && near < e.far*doubleTalkRatio {
		gain = e.depth()
	}

	if gain < 1 {
		comfort := 0.0
		if e.mode == interfaces.EcAecm && e.cng {
			comfort = e.noiseFloor * 32767 * (1 - gain)
		}
		for i, s := range frame {
			v := float64(s) * gain
			if comfort > 0 {
				v += comfort * (2*e.rng.Float64() - 1)
			}
			frame[i] = clamp(v)
		}
	}

	if e.collect && farActive {
		out := audio.RMS(frame)
		e.erl += (audio.LevelToDb(e.far) - audio.LevelToDb(near) - e.erl) * metricSmoothing
		e.erle += (audio.LevelToDb(near) - audio.LevelToDb(out) - e.erle) * metricSmoothing
		e.anlp += (-audio.LevelToDb(gain) - e.anlp) * metricSmoothing
	}
	return frame
}

func clamp(v float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v)))
}

func (e *echoSuppressor) metrics() interfaces.EchoMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return interfaces.EchoMetrics{
		ERL:  int(math.Round(e.erl)),
		ERLE: int(math.Round(e.erle)),
		RERL: int(math.Round(e.erl + e.erle)),
		ANLP: int(math.Round(e.anlp)),
	}
}

func (e *echoSuppressor) reportDelay(ms int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delays = append(e.delays, ms)
	if len(e.delays) > delayWindow {
		e.delays = e.delays[len(e.delays)-delayWindow:]
	}
}

// delayMetrics returns the median and population standard deviation over
// the window. Even windows report the lower median.
func (e *echoSuppressor) delayMetrics() interfaces.DelayMetrics {
	e.mu.Lock()
	sorted := make([]float64, len(e.delays))
	for i, d := range e.delays {
		sorted[i] = float64(d)
	}
	e.mu.Unlock()

	if len(sorted) == 0 {
		return interfaces.DelayMetrics{}
	}
	sort.Float64s(sorted)

	return interfaces.DelayMetrics{
		Median: int(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		Std:    int(math.Round(stat.PopStdDev(sorted, nil))),
	}
}
