// Package audio provides the software signal processing used by the real
// pipeline: gain stages, noise suppression, a level-based voice activity
// detector, an Opus packet decoder and a mono resampler.
//
// # Effects
//
// Every stage implements Effect and can be composed with EffectChain:
//
//	chain := audio.NewEffectChain()
//	ns, _ := audio.NewNoiseSuppressionEffect(0.5, 512)
//	agc, _ := audio.NewAutoGainEffect(profile)
//	chain.Add(ns)
//	chain.Add(agc)
//	out, err := chain.Process(frame)
//
// GainEffect implements the fixed-digital gain mode. AutoGainEffect is a
// peak-following loop whose tuning comes from AgcProfileFor. The strength of
// NoiseSuppressionEffect comes from SuppressionLevelFor. Its transforms run
// on gonum.org/v1/gonum/dsp/fourier; it buffers across calls and delays its
// output by Latency samples.
//
// # Voice Activity
//
// LevelDetector compares frame RMS against a threshold scaled by the VAD
// mode and holds an active decision for a hangover given in samples, so
// frames of any length may be mixed.
//
// # Decoding
//
// Decoder wraps github.com/pion/opus and returns mono PCM together with the
// stream's sample rate; Resampler brings it to the processing rate.
//
// # Thread Safety
//
// Effects, detectors, decoders and resamplers keep per-stream state and
// are not safe for concurrent use. The real pipeline owns one set per
// channel and serializes access.
package audio
