// Package interfaces defines the abstractions shared by the audio processing
// control surface and the pipelines it configures.
//
// This package provides the contracts that enable switching between the
// simulated pipeline used in deterministic tests and the software pipeline
// used at runtime, together with the mode enumerations both sides speak.
//
// # Core Interfaces
//
// [AudioPipeline] is the effector. The control surface resolves every mode
// alias before forwarding, so implementations only ever see concrete values:
//
//	pipeline := factory.NewPipelineFactory().CreatePipeline()
//	err := pipeline.SetNs(true, interfaces.NsHighSuppression)
//	if errors.Is(err, interfaces.ErrPipelineUnavailable) {
//	    // engine not started
//	}
//
// [ChannelRegistry] answers whether a channel id exists. Registries that also
// implement [ChannelRemovalNotifier] let per-channel state be released as soon
// as a channel goes away.
//
// [VadObserver] receives receive-path voice activity decisions. Plain
// functions can be used through [VadObserverFunc]:
//
//	observer := interfaces.VadObserverFunc(func(ch int, d interfaces.VadDecision) {
//	    log.Printf("channel %d: %s", ch, d)
//	})
//
// # Modes
//
// AgcMode, EcMode and NsMode contain request-only aliases (Unchanged,
// Default, Conference) next to concrete values; IsConcrete tells them apart.
// All enumerations implement encoding.TextMarshaler so they can be written by
// name in YAML profiles:
//
//	var m interfaces.NsMode
//	_ = m.UnmarshalText([]byte("very_high"))
//
// # Configuration
//
// [PipelineConfig] holds settings for pipeline implementations and is checked
// by Validate against the bounds in the limits package.
//
// # Thread Safety
//
// All implementations of these interfaces must be safe for concurrent use.
// Observers may be invoked from the pipeline's audio goroutine.
package interfaces
