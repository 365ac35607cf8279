package apm

import (
	"errors"
	"fmt"

	"github.com/opd-ai/apm/interfaces"
)

// Sentinel errors for audio processing configuration.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrInvalidMode indicates a mode not permitted in the current scope or platform.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrUnknownChannel indicates the channel id is not present in the registry.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrPipelineUnavailable indicates forwarding to the audio pipeline failed.
	ErrPipelineUnavailable = interfaces.ErrPipelineUnavailable

	// ErrMetricsDisabled indicates echo metrics were read while collection is off.
	ErrMetricsDisabled = errors.New("echo metrics disabled")

	// ErrNilObserver indicates a nil VadObserver was registered.
	ErrNilObserver = errors.New("vad observer cannot be nil")

	// ErrNilDependency indicates a nil pipeline or registry at construction.
	ErrNilDependency = errors.New("dependency cannot be nil")
)

// pipelineError classifies a pipeline failure. Errors already wrapping
// ErrPipelineUnavailable are returned verbatim.
func pipelineError(err error) error {
	if err == nil || errors.Is(err, ErrPipelineUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPipelineUnavailable, err)
}
