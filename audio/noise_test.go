package audio

import (
	"testing"

	"github.com/opd-ai/apm/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuppressionLevelFor(t *testing.T) {
	levels := []interfaces.NsMode{
		interfaces.NsLowSuppression,
		interfaces.NsModerateSuppression,
		interfaces.NsHighSuppression,
		interfaces.NsVeryHighSuppression,
	}

	prev := 0.0
	for _, mode := range levels {
		level, err := SuppressionLevelFor(mode)
		require.NoError(t, err)
		assert.Greater(t, level, prev, "mode %s", mode)
		prev = level
	}

	_, err := SuppressionLevelFor(interfaces.NsConference)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestNewNoiseSuppressionEffectValidation(t *testing.T) {
	_, err := NewNoiseSuppressionEffect(1.5, 512)
	assert.ErrorIs(t, err, ErrInvalidLevel)

	for _, size := range []int{0, 32, 500, 8192} {
		_, err := NewNoiseSuppressionEffect(0.5, size)
		assert.ErrorIs(t, err, ErrInvalidFrameSize, "size %d", size)
	}
}

func TestNoiseSuppressionPassesThroughWhileLearning(t *testing.T) {
	ns, err := NewNoiseSuppressionEffect(1.0, 256)
	require.NoError(t, err)
	require.Equal(t, 256, ns.Latency())

	in := sine(480, 440, 48000, 0.5)
	out, err := ns.Process(append([]int16(nil), in...))
	require.NoError(t, err)
	require.Len(t, out, len(in))

	flushed, err := ns.Process(make([]int16, ns.Latency()))
	require.NoError(t, err)
	out = append(out, flushed...)

	for i := 0; i < ns.Latency(); i++ {
		assert.Zero(t, out[i], "sample %d", i)
	}
	for i := range in {
		assert.InDelta(t, float64(in[i]), float64(out[i+ns.Latency()]), 3, "sample %d", i)
	}
	assert.False(t, ns.Learned())
}

func TestNoiseSuppressionIsIndependentOfChunking(t *testing.T) {
	whole, err := NewNoiseSuppressionEffect(0.75, 256)
	require.NoError(t, err)
	chunked, err := NewNoiseSuppressionEffect(0.75, 256)
	require.NoError(t, err)

	in := append(noise(4096, 0.05, 7), sine(1600, 440, 16000, 0.3)...)

	want, err := whole.Process(append([]int16(nil), in...))
	require.NoError(t, err)

	// 10 ms frames at 16 kHz do not align with the analysis hop.
	var got []int16
	for pos := 0; pos < len(in); pos += 160 {
		end := min(pos+160, len(in))
		out, err := chunked.Process(append([]int16(nil), in[pos:end]...))
		require.NoError(t, err)
		require.Len(t, out, end-pos)
		got = append(got, out...)
	}

	assert.Equal(t, want, got)
}

func TestNoiseSuppressionResetClearsStream(t *testing.T) {
	ns, err := NewNoiseSuppressionEffect(0.5, 128)
	require.NoError(t, err)

	_, err = ns.Process(sine(300, 440, 16000, 0.5))
	require.NoError(t, err)
	ns.Reset()

	out, err := ns.Process(sine(100, 440, 16000, 0.5))
	require.NoError(t, err)
	assert.Equal(t, make([]int16, 100), out)
}

func TestNoiseSuppressionReducesStationaryNoise(t *testing.T) {
	ns, err := NewNoiseSuppressionEffect(1.0, 256)
	require.NoError(t, err)

	// Each 1024-sample block spans several analysis frames.
	for i := 0; !ns.Learned() && i < 10; i++ {
		_, err := ns.Process(noise(1024, 0.1, int64(i)))
		require.NoError(t, err)
	}
	require.True(t, ns.Learned())

	in := noise(2048, 0.1, 99)
	out, err := ns.Process(in)
	require.NoError(t, err)

	assert.Less(t, RMS(out), RMS(in)*0.8)
}

func TestNoiseSuppressionResetAndLevel(t *testing.T) {
	ns, err := NewNoiseSuppressionEffect(0.5, 128)
	require.NoError(t, err)

	_, _ = ns.Process(noise(4096, 0.1, 1))
	require.True(t, ns.Learned())

	ns.Reset()
	assert.False(t, ns.Learned())

	require.NoError(t, ns.SetLevel(0.75))
	assert.Equal(t, 0.75, ns.Level())
	assert.ErrorIs(t, ns.SetLevel(-0.1), ErrInvalidLevel)
	assert.NoError(t, ns.Close())
}
