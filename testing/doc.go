// Package testing provides in-memory doubles of the audio pipeline and the
// channel registry for deterministic tests of the audio processing control
// surface.
//
// # Simulation vs Real Implementation
//
//   - Simulation (this package): configuration requests are recorded in a
//     call log and never touch audio. Voice activity decisions and echo
//     metrics are scripted by the test.
//
//   - Real (real package): a software pipeline that processes PCM frames
//     with the effects from the audio package.
//
// Both implement interfaces.AudioPipeline and are selected by the factory
// package.
//
// # Usage
//
//	pipeline := testing.NewSimulatedPipeline(nil)
//	registry := testing.NewSimulatedChannelRegistry(0, 1)
//	ap, err := apm.New(apm.NewOptions(), pipeline, registry)
//
//	_ = ap.SetNs(true, apm.NsConference)
//	call, _ := pipeline.LastCall("SetNs", testing.SendPath)
//	// call.Mode == "high"
//
// # Failure Injection
//
// SetAvailable(false) makes every request fail with
// interfaces.ErrPipelineUnavailable. FailStage fails only the requests of
// one processing stage, wrapping the supplied cause.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Observers are notified outside
// the internal lock.
package testing
