// Package limits provides centralized processing bounds for the audio
// processing control surface. It keeps sample rate, frame size and channel
// id validation consistent between the software pipeline, the simulated
// pipeline and the factory configuration.
//
// # Processing Bounds
//
//   - SupportedSampleRates: 8, 16, 32 and 48 kHz, the rates the processing
//     stages are tuned for.
//
//   - FrameDurationMs (10 ms): the unit of work of every stage. A frame at
//     48 kHz is therefore 480 samples.
//
//   - MaxFrameSamples (4096): the absolute maximum accepted in one call. It
//     bounds the work done per call on the audio thread.
//
//   - MaxChannels (1024): the highest channel id plus one accepted by the
//     channel table.
//
// # Validation Functions
//
// Each validation function wraps a sentinel error with context:
//
//	err := limits.ValidateFrame(pcm)
//	if errors.Is(err, limits.ErrFrameTooLarge) {
//	    // split the buffer
//	}
package limits
