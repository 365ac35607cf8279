package real

import (
	"fmt"
	"sync"

	"github.com/opd-ai/apm/audio"
	"github.com/opd-ai/apm/interfaces"
	"github.com/opd-ai/apm/limits"
	"github.com/sirupsen/logrus"
)

// rxChannel is the receive-path state of one channel.
type rxChannel struct {
	mu         sync.Mutex
	agc        stage
	ns         stage
	vadEnabled bool
	dtxOff     bool
	detector   *audio.LevelDetector
	decision   interfaces.VadDecision
	observer   interfaces.VadObserver
	decoder    *audio.Decoder
	resampler  *audio.Resampler
}

func (p *Pipeline) channel(id int) (*rxChannel, error) {
	if err := limits.ValidateChannel(id); err != nil {
		return nil, err
	}

	p.chMu.RLock()
	ch, ok := p.channels[id]
	p.chMu.RUnlock()
	if ok {
		return ch, nil
	}

	detector, err := audio.NewLevelDetector(p.config.VadThreshold, hangoverSamples(p.config))
	if err != nil {
		return nil, err
	}

	p.chMu.Lock()
	defer p.chMu.Unlock()
	if ch, ok := p.channels[id]; ok {
		return ch, nil
	}
	ch = &rxChannel{detector: detector, decision: interfaces.VadUnavailable}
	p.channels[id] = ch
	return ch, nil
}

// RemoveChannel releases the receive state of a deleted channel.
func (p *Pipeline) RemoveChannel(id int) {
	p.chMu.Lock()
	_, ok := p.channels[id]
	delete(p.channels, id)
	p.chMu.Unlock()

	if ok {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.RemoveChannel",
			"channel":  id,
		}).Debug("Released receive channel state")
	}
}

// SetRxAgc implements interfaces.AudioPipeline.
func (p *Pipeline) SetRxAgc(channel int, enabled bool, mode interfaces.AgcMode) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	if mode == interfaces.AgcAdaptiveAnalog {
		return unsupported(fmt.Errorf("%w: analog gain on the receive path", ErrUnsupportedMode))
	}
	ch, err := p.channel(channel)
	if err != nil {
		return unsupported(err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	return configureAgc(&ch.agc, enabled, mode)
}

// SetRxNs implements interfaces.AudioPipeline.
func (p *Pipeline) SetRxNs(channel int, enabled bool, mode interfaces.NsMode) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	ch, err := p.channel(channel)
	if err != nil {
		return unsupported(err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	return p.configureNs(&ch.ns, enabled, mode)
}

// SetVad implements interfaces.AudioPipeline.
func (p *Pipeline) SetVad(channel int, enabled bool, mode interfaces.VadMode, disableDTX bool) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	ch, err := p.channel(channel)
	if err != nil {
		return unsupported(err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if err := ch.detector.SetMode(mode); err != nil {
		return unsupported(err)
	}
	ch.vadEnabled = enabled
	ch.dtxOff = disableDTX
	if enabled {
		if ch.decision == interfaces.VadUnavailable {
			ch.decision = interfaces.VadInactive
		}
	} else {
		ch.detector.Reset()
		ch.decision = interfaces.VadUnavailable
	}
	return nil
}

// VoiceActivity implements interfaces.AudioPipeline. Channels with the
// detector disabled report VadUnavailable.
func (p *Pipeline) VoiceActivity(channel int) (interfaces.VadDecision, error) {
	if err := p.checkRunning(); err != nil {
		return interfaces.VadUnavailable, err
	}
	ch, err := p.channel(channel)
	if err != nil {
		return interfaces.VadUnavailable, unsupported(err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.decision, nil
}

// SetRxVadObserver implements interfaces.AudioPipeline.
func (p *Pipeline) SetRxVadObserver(channel int, observer interfaces.VadObserver) error {
	if err := p.checkRunning(); err != nil {
		return err
	}
	ch, err := p.channel(channel)
	if err != nil {
		return unsupported(err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.observer = observer
	return nil
}

// ShouldTransmit reports whether the last frame of channel must be encoded.
// With VAD on and DTX allowed, inactive frames are skipped.
func (p *Pipeline) ShouldTransmit(channel int) bool {
	ch, err := p.channel(channel)
	if err != nil {
		return true
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return !ch.vadEnabled || ch.dtxOff || ch.decision != interfaces.VadInactive
}

// ProcessRender runs one far-end frame of channel through noise suppression,
// gain control and voice activity detection. The bound observer is called
// after the channel lock is released when the decision changes.
func (p *Pipeline) ProcessRender(channel int, pcm []int16) ([]int16, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}
	if err := limits.ValidateFrame(pcm); err != nil {
		return nil, err
	}
	ch, err := p.channel(channel)
	if err != nil {
		return nil, err
	}

	frame := make([]int16, len(pcm))
	copy(frame, pcm)

	ch.mu.Lock()
	frame, err = ch.ns.process(frame)
	if err == nil {
		frame, err = ch.agc.process(frame)
	}
	if err != nil {
		ch.mu.Unlock()
		return nil, fmt.Errorf("render channel %d: %w", channel, err)
	}

	var notify interfaces.VadObserver
	decision := ch.decision
	if ch.vadEnabled {
		decision = ch.detector.Process(frame)
		if decision != ch.decision {
			notify = ch.observer
		}
		ch.decision = decision
	}
	ch.mu.Unlock()

	p.echo.observeRender(frame)

	if notify != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.ProcessRender",
			"channel":  channel,
			"decision": decision.String(),
		}).Debug("Receive voice activity changed")
		notify.OnRxVad(channel, decision)
	}
	return frame, nil
}

// ProcessRenderPacket decodes an Opus packet of channel, converts it to the
// processing rate and runs it through ProcessRender.
func (p *Pipeline) ProcessRenderPacket(channel int, packet []byte) ([]int16, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}
	ch, err := p.channel(channel)
	if err != nil {
		return nil, err
	}

	ch.mu.Lock()
	if ch.decoder == nil {
		ch.decoder = audio.NewDecoder()
	}
	pcm, rate, err := ch.decoder.Decode(packet)
	if err == nil && (ch.resampler == nil || ch.resampler.InputRate() != rate) {
		ch.resampler, err = audio.NewResampler(rate, p.config.SampleRate)
	}
	if err == nil {
		pcm = ch.resampler.Resample(pcm)
	}
	ch.mu.Unlock()

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Pipeline.ProcessRenderPacket",
			"channel":     channel,
			"packet_size": len(packet),
			"error":       err.Error(),
		}).Warn("Failed to decode receive packet")
		return nil, fmt.Errorf("render channel %d: %w", channel, err)
	}
	return p.ProcessRender(channel, pcm)
}
