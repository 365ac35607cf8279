package audio

import (
	"math"
	"math/rand"
)

func sine(n int, freq float64, rate int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func noise(n int, amplitude float64, seed int64) []int16 {
	r := rand.New(rand.NewSource(seed))
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * 32767 * (2*r.Float64() - 1))
	}
	return out
}
