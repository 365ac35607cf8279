// Package limits provides centralized processing bounds for the audio
// processing control surface.
package limits

import (
	"errors"
	"fmt"
)

const (
	// FrameDurationMs is the duration of one processing frame.
	FrameDurationMs = 10

	// MinFrameSamples is the smallest frame accepted by a processing stage.
	// It matches a 10 ms frame at 8 kHz.
	MinFrameSamples = 80

	// MaxFrameSamples is the absolute maximum number of samples per call.
	MaxFrameSamples = 4096

	// MaxChannels bounds channel ids to [0, MaxChannels).
	MaxChannels = 1024

	// DefaultSampleRate is the pipeline rate used when none is configured.
	DefaultSampleRate = 48000
)

// SupportedSampleRates lists the processing rates in ascending order.
var SupportedSampleRates = []int{8000, 16000, 32000, 48000}

var (
	// ErrFrameEmpty indicates an empty sample buffer was provided
	ErrFrameEmpty = errors.New("empty audio frame")

	// ErrFrameTooLarge indicates the buffer exceeds MaxFrameSamples
	ErrFrameTooLarge = errors.New("audio frame too large")

	// ErrFrameTooSmall indicates the configured frame size is below MinFrameSamples
	ErrFrameTooSmall = errors.New("audio frame too small")

	// ErrUnsupportedSampleRate indicates a rate outside SupportedSampleRates
	ErrUnsupportedSampleRate = errors.New("unsupported sample rate")

	// ErrChannelOutOfRange indicates a channel id outside [0, MaxChannels)
	ErrChannelOutOfRange = errors.New("channel id out of range")
)

// ValidateFrame checks a PCM buffer against MaxFrameSamples.
// Returns an error with context if the buffer is empty or exceeds the limit.
func ValidateFrame(pcm []int16) error {
	if len(pcm) == 0 {
		return ErrFrameEmpty
	}
	if len(pcm) > MaxFrameSamples {
		return fmt.Errorf("%w: %d samples exceeds limit %d", ErrFrameTooLarge, len(pcm), MaxFrameSamples)
	}
	return nil
}

// ValidateFrameSize checks a configured frame size in samples.
func ValidateFrameSize(samples int) error {
	if samples < MinFrameSamples {
		return fmt.Errorf("%w: %d samples is below minimum %d", ErrFrameTooSmall, samples, MinFrameSamples)
	}
	if samples > MaxFrameSamples {
		return fmt.Errorf("%w: %d samples exceeds limit %d", ErrFrameTooLarge, samples, MaxFrameSamples)
	}
	return nil
}

// ValidateSampleRate checks that rate is one of SupportedSampleRates.
func ValidateSampleRate(rate int) error {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return nil
		}
	}
	return fmt.Errorf("%w: %d Hz (supported: %v)", ErrUnsupportedSampleRate, rate, SupportedSampleRates)
}

// ValidateChannel checks that a channel id is within [0, MaxChannels).
func ValidateChannel(channel int) error {
	if channel < 0 || channel >= MaxChannels {
		return fmt.Errorf("%w: %d (max %d)", ErrChannelOutOfRange, channel, MaxChannels-1)
	}
	return nil
}

// FrameSizeFor returns the number of samples in one FrameDurationMs frame at rate.
func FrameSizeFor(rate int) int {
	return rate * FrameDurationMs / 1000
}
