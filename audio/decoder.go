package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// Decoder errors.
var (
	ErrEmptyPacket     = errors.New("empty opus packet")
	ErrMalformedPacket = errors.New("malformed opus packet")
)

// maxPacketSamples is 120 ms at 48 kHz, the longest Opus packet.
const maxPacketSamples = 5760

// frameDurations is the frame length in microseconds per TOC configuration
// number (RFC 6716 section 3.1).
var frameDurations = [32]int{
	10000, 20000, 40000, 60000, // SILK NB
	10000, 20000, 40000, 60000, // SILK MB
	10000, 20000, 40000, 60000, // SILK WB
	10000, 20000, // Hybrid SWB
	10000, 20000, // Hybrid FB
	2500, 5000, 10000, 20000, // CELT NB
	2500, 5000, 10000, 20000, // CELT WB
	2500, 5000, 10000, 20000, // CELT SWB
	2500, 5000, 10000, 20000, // CELT FB
}

// PacketDuration returns the audio duration of an Opus packet in
// microseconds, read from its TOC byte and frame count.
func PacketDuration(packet []byte) (int, error) {
	if len(packet) == 0 {
		return 0, ErrEmptyPacket
	}
	toc := packet[0]
	perFrame := frameDurations[toc>>3]

	var frames int
	switch toc & 0x03 {
	case 0:
		frames = 1
	case 1, 2:
		frames = 2
	default:
		if len(packet) < 2 {
			return 0, fmt.Errorf("%w: code 3 packet without frame count", ErrMalformedPacket)
		}
		frames = int(packet[1] & 0x3F)
		if frames == 0 {
			return 0, fmt.Errorf("%w: zero frames", ErrMalformedPacket)
		}
	}

	duration := perFrame * frames
	if duration > 120000 {
		return 0, fmt.Errorf("%w: %d us exceeds 120 ms", ErrMalformedPacket, duration)
	}
	return duration, nil
}

// Decoder turns receive-path Opus packets into mono PCM.
// It keeps decoder state and is not safe for concurrent use.
type Decoder struct {
	decoder *opus.Decoder
	buf     []byte
}

// NewDecoder creates an Opus decoder.
func NewDecoder() *Decoder {
	d := opus.NewDecoder()
	return &Decoder{
		decoder: &d,
		buf:     make([]byte, maxPacketSamples*2),
	}
}

// Decode decodes one packet.
//
// Returns:
//   - []int16: Mono PCM; stereo streams are downmixed
//   - int: Sample rate of the PCM in Hz
//   - error: ErrEmptyPacket, ErrMalformedPacket or the decoder's error
func (d *Decoder) Decode(packet []byte) ([]int16, int, error) {
	duration, err := PacketDuration(packet)
	if err != nil {
		return nil, 0, err
	}

	bandwidth, isStereo, err := d.decoder.Decode(packet, d.buf)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Decoder.Decode",
			"packet_size": len(packet),
			"error":       err.Error(),
		}).Debug("Opus decode failed")
		return nil, 0, fmt.Errorf("opus decode: %w", err)
	}

	rate := bandwidth.SampleRate()
	channels := 1
	if isStereo {
		channels = 2
	}

	samples := rate * duration / 1000000
	if limit := len(d.buf) / (2 * channels); samples > limit {
		samples = limit
	}

	pcm := make([]int16, samples)
	for i := range pcm {
		if channels == 1 {
			pcm[i] = int16(binary.LittleEndian.Uint16(d.buf[i*2:]))
			continue
		}
		l := int32(int16(binary.LittleEndian.Uint16(d.buf[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(d.buf[i*4+2:])))
		pcm[i] = int16((l + r) / 2)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Decoder.Decode",
		"bandwidth":   bandwidth.String(),
		"stereo":      isStereo,
		"samples":     len(pcm),
		"sample_rate": rate,
	}).Debug("Decoded opus packet")

	return pcm, rate, nil
}
