package real

import (
	"math"
	"sync"
	"testing"

	"github.com/opd-ai/apm/audio"
	"github.com/opd-ai/apm/interfaces"
	"github.com/opd-ai/apm/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.AudioPipeline = (*Pipeline)(nil)

func testConfig() interfaces.PipelineConfig {
	return interfaces.PipelineConfig{
		Platform:      interfaces.PlatformDesktop,
		SampleRate:    16000,
		FrameSize:     256,
		VadHangoverMs: 0,
		VadThreshold:  0.01,
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)
	return p
}

func sine(n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func peak(pcm []int16) int {
	m := 0
	for _, s := range pcm {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []interfaces.VadDecision
}

func (r *recordingObserver) OnRxVad(_ int, decision interfaces.VadDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, decision)
}

func (r *recordingObserver) seen() []interfaces.VadDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interfaces.VadDecision(nil), r.decisions...)
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	config := testConfig()
	config.FrameSize = 480
	_, err := NewPipeline(config)
	assert.ErrorIs(t, err, interfaces.ErrFrameNotPowerOfTwo)

	config = testConfig()
	config.SampleRate = 44100
	_, err = NewPipeline(config)
	assert.ErrorIs(t, err, limits.ErrUnsupportedSampleRate)
}

func TestPipelineStopStart(t *testing.T) {
	p := newTestPipeline(t)
	assert.True(t, p.Running())
	assert.False(t, p.IsSimulation())
	assert.Equal(t, 16000, p.SampleRate())

	p.Stop()
	assert.False(t, p.Running())
	assert.ErrorIs(t, p.SetAgc(true, interfaces.AgcAdaptiveDigital), interfaces.ErrPipelineUnavailable)
	assert.ErrorIs(t, p.SetRxNs(0, true, interfaces.NsHighSuppression), interfaces.ErrPipelineUnavailable)
	_, err := p.ProcessCapture(sine(160, 1000))
	assert.ErrorIs(t, err, interfaces.ErrPipelineUnavailable)
	_, err = p.VoiceActivity(0)
	assert.ErrorIs(t, err, interfaces.ErrPipelineUnavailable)

	p.Start()
	assert.NoError(t, p.SetAgc(true, interfaces.AgcAdaptiveDigital))
}

func TestPipelineRejectsUnresolvedModes(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"ec default", func() error { return p.SetEc(true, interfaces.EcDefault) }},
		{"ec conference", func() error { return p.SetEc(true, interfaces.EcConference) }},
		{"agc unchanged", func() error { return p.SetAgc(true, interfaces.AgcUnchanged) }},
		{"ns default", func() error { return p.SetNs(true, interfaces.NsDefault) }},
		{"rx agc analog", func() error { return p.SetRxAgc(0, true, interfaces.AgcAdaptiveAnalog) }},
		{"aecm routing", func() error { return p.SetAecmMode(interfaces.AecmMode(9), true) }},
		{"vad mode", func() error { return p.SetVad(0, true, interfaces.VadMode(7), false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrPipelineUnavailable)
		})
	}
}

func TestPipelineChannelOutOfRange(t *testing.T) {
	p := newTestPipeline(t)

	err := p.SetRxAgc(limits.MaxChannels, true, interfaces.AgcAdaptiveDigital)
	assert.ErrorIs(t, err, limits.ErrChannelOutOfRange)

	_, err = p.ProcessRender(-1, sine(160, 1000))
	assert.ErrorIs(t, err, limits.ErrChannelOutOfRange)
	assert.True(t, p.ShouldTransmit(-1))
}

func TestProcessCaptureFixedDigitalGain(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.SetAgc(true, interfaces.AgcFixedDigital))

	in := sine(160, 1000)
	original := append([]int16(nil), in...)

	out, err := p.ProcessCapture(in)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	assert.Equal(t, original, in, "input frame must not be modified")
	for i := range in {
		assert.Equal(t, int(in[i])*2, int(out[i]))
	}
	assert.Equal(t, interfaces.VadActive, p.CaptureVoiceActivity())

	require.NoError(t, p.SetAgc(false, interfaces.AgcFixedDigital))
	out, err = p.ProcessCapture(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestProcessCaptureRejectsBadFrames(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ProcessCapture(nil)
	assert.ErrorIs(t, err, limits.ErrFrameEmpty)

	_, err = p.ProcessCapture(make([]int16, limits.MaxFrameSamples+1))
	assert.ErrorIs(t, err, limits.ErrFrameTooLarge)
}

func TestProcessRenderNoiseSuppressionKeepsLength(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.SetRxNs(0, true, interfaces.NsHighSuppression))
	require.NoError(t, p.SetRxNs(0, true, interfaces.NsLowSuppression))

	out, err := p.ProcessRender(0, sine(320, 2000))
	require.NoError(t, err)
	assert.Len(t, out, 320)
}

func TestReceiveVadObserver(t *testing.T) {
	p := newTestPipeline(t)
	observer := &recordingObserver{}

	decision, err := p.VoiceActivity(0)
	require.NoError(t, err)
	assert.Equal(t, interfaces.VadUnavailable, decision, "detector disabled")

	require.NoError(t, p.SetVad(0, true, interfaces.VadConventional, false))
	require.NoError(t, p.SetRxVadObserver(0, observer))

	decision, err = p.VoiceActivity(0)
	require.NoError(t, err)
	assert.Equal(t, interfaces.VadInactive, decision)

	_, err = p.ProcessRender(0, sine(160, 8000))
	require.NoError(t, err)
	_, err = p.ProcessRender(0, sine(160, 8000))
	require.NoError(t, err)
	_, err = p.ProcessRender(0, make([]int16, 160))
	require.NoError(t, err)

	assert.Equal(t, []interfaces.VadDecision{interfaces.VadActive, interfaces.VadInactive}, observer.seen(),
		"observer is notified on changes only")

	require.NoError(t, p.SetRxVadObserver(0, nil))
	_, err = p.ProcessRender(0, sine(160, 8000))
	require.NoError(t, err)
	assert.Len(t, observer.seen(), 2)

	require.NoError(t, p.SetVad(0, false, interfaces.VadConventional, false))
	decision, err = p.VoiceActivity(0)
	require.NoError(t, err)
	assert.Equal(t, interfaces.VadUnavailable, decision)
}

func TestReceiveVadHangoverHoldsForAnyFrameLength(t *testing.T) {
	config := testConfig()
	config.VadHangoverMs = 40
	p, err := NewPipeline(config)
	require.NoError(t, err)

	// 40 ms at 16 kHz is two 20 ms frames or four 10 ms frames.
	for _, frameLen := range []int{320, 160} {
		require.NoError(t, p.SetVad(1, true, interfaces.VadConventional, false))
		_, err := p.ProcessRender(1, sine(frameLen, 8000))
		require.NoError(t, err)

		quiet := 40 * 16 / frameLen
		for i := 0; i < quiet; i++ {
			_, err := p.ProcessRender(1, make([]int16, frameLen))
			require.NoError(t, err)
			decision, err := p.VoiceActivity(1)
			require.NoError(t, err)
			assert.Equal(t, interfaces.VadActive, decision, "frame length %d, quiet frame %d", frameLen, i)
		}

		_, err = p.ProcessRender(1, make([]int16, frameLen))
		require.NoError(t, err)
		decision, err := p.VoiceActivity(1)
		require.NoError(t, err)
		assert.Equal(t, interfaces.VadInactive, decision, "frame length %d", frameLen)
	}
}

func TestAggressiveVadIgnoresQuietSpeech(t *testing.T) {
	p := newTestPipeline(t)
	// RMS of about 0.015: above the conventional threshold, below 3x.
	frame := sine(160, 700)

	require.NoError(t, p.SetVad(0, true, interfaces.VadConventional, false))
	_, err := p.ProcessRender(0, frame)
	require.NoError(t, err)
	decision, _ := p.VoiceActivity(0)
	assert.Equal(t, interfaces.VadActive, decision)

	require.NoError(t, p.SetVad(1, true, interfaces.VadAggressiveHigh, false))
	_, err = p.ProcessRender(1, frame)
	require.NoError(t, err)
	decision, _ = p.VoiceActivity(1)
	assert.Equal(t, interfaces.VadInactive, decision)
}

func TestShouldTransmit(t *testing.T) {
	p := newTestPipeline(t)
	silence := make([]int16, 160)

	assert.True(t, p.ShouldTransmit(0), "vad disabled")

	require.NoError(t, p.SetVad(0, true, interfaces.VadConventional, false))
	_, err := p.ProcessRender(0, silence)
	require.NoError(t, err)
	assert.False(t, p.ShouldTransmit(0), "silence is skipped with dtx")

	require.NoError(t, p.SetVad(0, true, interfaces.VadConventional, true))
	assert.True(t, p.ShouldTransmit(0), "dtx disabled")
}

func TestRemoveChannelDropsObserver(t *testing.T) {
	p := newTestPipeline(t)
	table := NewChannelTable()
	table.OnChannelRemoved(p.RemoveChannel)

	id, err := table.CreateChannel()
	require.NoError(t, err)

	observer := &recordingObserver{}
	require.NoError(t, p.SetVad(id, true, interfaces.VadConventional, false))
	require.NoError(t, p.SetRxVadObserver(id, observer))
	require.NoError(t, table.DeleteChannel(id))

	require.NoError(t, p.SetVad(id, true, interfaces.VadConventional, false))
	_, err = p.ProcessRender(id, sine(160, 8000))
	require.NoError(t, err)
	assert.Empty(t, observer.seen())

	p.RemoveChannel(42)
}

func TestEchoSuppression(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.SetEc(true, interfaces.EcAec))
	require.NoError(t, p.SetEcMetrics(true))

	_, err := p.ProcessRender(0, sine(160, 10000))
	require.NoError(t, err)

	out, err := p.ProcessCapture(sine(160, 1000))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak(out), 110)

	metrics, err := p.EchoMetrics()
	require.NoError(t, err)
	assert.Greater(t, metrics.ERLE, 0)
	assert.Greater(t, metrics.ANLP, 0)
	assert.GreaterOrEqual(t, metrics.RERL, metrics.ERLE)
}

func TestEchoSuppressionPassesDoubleTalk(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.SetEc(true, interfaces.EcAec))

	_, err := p.ProcessRender(0, sine(160, 1000))
	require.NoError(t, err)

	in := sine(160, 12000)
	out, err := p.ProcessCapture(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEchoSuppressionDisabled(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ProcessRender(0, sine(160, 10000))
	require.NoError(t, err)

	in := sine(160, 1000)
	out, err := p.ProcessCapture(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAecmRoutingDepth(t *testing.T) {
	tests := []struct {
		routing interfaces.AecmMode
		depth   float64
	}{
		{interfaces.AecmQuietEarpieceOrHeadset, 0.5},
		{interfaces.AecmSpeakerphone, 0.1},
		{interfaces.AecmLoudSpeakerphone, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.routing.String(), func(t *testing.T) {
			p := newTestPipeline(t)
			require.NoError(t, p.SetEc(true, interfaces.EcAecm))
			require.NoError(t, p.SetAecmMode(tt.routing, false))

			_, err := p.ProcessRender(0, sine(160, 10000))
			require.NoError(t, err)

			in := sine(160, 1000)
			out, err := p.ProcessCapture(in)
			require.NoError(t, err)
			assert.InDelta(t, audio.RMS(in)*tt.depth, audio.RMS(out), 0.0005)
		})
	}
}

func TestStreamDelayMetrics(t *testing.T) {
	p := newTestPipeline(t)

	m, err := p.EcDelayMetrics()
	require.NoError(t, err)
	assert.Equal(t, interfaces.DelayMetrics{}, m)

	for _, d := range []int{30, 10, 20} {
		require.NoError(t, p.ReportStreamDelay(d))
	}
	m, err = p.EcDelayMetrics()
	require.NoError(t, err)
	assert.Equal(t, 20, m.Median)
	assert.Equal(t, 8, m.Std)

	assert.ErrorIs(t, p.ReportStreamDelay(-1), ErrInvalidDelay)
	assert.ErrorIs(t, p.ReportStreamDelay(maxStreamDelayMs+1), ErrInvalidDelay)
}

func TestStreamDelayEvenWindowReportsLowerMedian(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.SetEcMetrics(true))
	for _, d := range []int{40, 10, 30, 20} {
		require.NoError(t, p.ReportStreamDelay(d))
	}

	m, err := p.EcDelayMetrics()
	require.NoError(t, err)
	assert.Equal(t, 20, m.Median)
	assert.Equal(t, 11, m.Std)
}

func TestStreamDelayWindow(t *testing.T) {
	p := newTestPipeline(t)
	for i := 0; i < delayWindow; i++ {
		require.NoError(t, p.ReportStreamDelay(500))
	}
	for i := 0; i < delayWindow; i++ {
		require.NoError(t, p.ReportStreamDelay(40))
	}

	m, err := p.EcDelayMetrics()
	require.NoError(t, err)
	assert.Equal(t, interfaces.DelayMetrics{Median: 40, Std: 0}, m)
}

func TestProcessRenderPacketRejectsBadInput(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ProcessRenderPacket(0, nil)
	assert.ErrorIs(t, err, audio.ErrEmptyPacket)

	p.Stop()
	_, err = p.ProcessRenderPacket(0, []byte{0x08})
	assert.ErrorIs(t, err, interfaces.ErrPipelineUnavailable)
}

func TestConcurrentChannels(t *testing.T) {
	p := newTestPipeline(t)

	var wg sync.WaitGroup
	for ch := 0; ch < 8; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			assert.NoError(t, p.SetRxAgc(ch, true, interfaces.AgcAdaptiveDigital))
			assert.NoError(t, p.SetVad(ch, true, interfaces.VadAggressiveLow, false))
			for i := 0; i < 20; i++ {
				_, err := p.ProcessRender(ch, sine(160, 4000))
				assert.NoError(t, err)
			}
		}(ch)
	}
	wg.Wait()
}
