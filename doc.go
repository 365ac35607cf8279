// Package apm implements the configuration surface of an audio processing
// module: automatic gain control, echo control, noise suppression and voice
// activity detection for a voice engine.
//
// AudioProcessing stores a validated configuration and forwards every change
// to an interfaces.AudioPipeline that does the signal processing. Send-path
// settings (AGC, echo control, NS) are global. Receive-path settings (AGC,
// NS, VAD and a VAD observer) are kept per channel, and channel ids are
// checked against an interfaces.ChannelRegistry.
//
// # Getting Started
//
//	f := factory.NewPipelineFactory()
//	table := real.NewChannelTable()
//	pipeline, err := f.CreatePipeline(table)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ap, err := apm.New(apm.NewOptions(), pipeline, table)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Send path
//	err = ap.SetAgc(true, apm.AgcAdaptiveDigital)
//	err = ap.SetNs(true, apm.NsConference)
//	err = ap.SetEc(true, apm.EcDefault)
//
//	// Receive path
//	ch, _ := table.CreateChannel()
//	err = ap.SetVadMode(ch, true, apm.VadAggressiveMid, false)
//	err = ap.RegisterRxVadObserver(ch, apm.VadObserverFunc(func(ch int, d apm.VadDecision) {
//	    fmt.Printf("channel %d: %s\n", ch, d)
//	}))
//
// # Platforms
//
// Options.Platform selects the policy tables. Desktop defaults to adaptive
// analog AGC and the full echo canceller (AEC). Android and iOS default to
// adaptive digital AGC and the mobile echo canceller (AECM), and reject
// analog AGC because mobile devices expose no microphone level control.
//
// # Mode Resolution
//
// Alias modes are resolved before they are stored or forwarded:
//
//   - AgcDefault: the platform default, or AdaptiveDigital on the receive path
//   - EcDefault: the platform default; EcConference is AEC
//   - NsDefault: ModerateSuppression; NsConference is HighSuppression
//   - AgcUnchanged, EcUnchanged, NsUnchanged: keep the stored mode
//
// Getters therefore never report an alias.
//
// # Failure Semantics
//
// A setter either succeeds and stores the new configuration, or fails and
// leaves every stored value untouched. Errors are classified with
// errors.Is against ErrInvalidMode, ErrUnknownChannel,
// ErrPipelineUnavailable, ErrMetricsDisabled and ErrNilObserver.
//
// # Profiles
//
// A Profile is a YAML document holding any subset of the configuration.
// LoadProfile and ParseProfile read it, ApplyProfile applies it and Snapshot
// captures the current state as a Profile:
//
//	platform: android
//	agc:
//	  enabled: true
//	  mode: adaptive_digital
//	ec:
//	  enabled: true
//	  mode: aecm
//	aecm:
//	  mode: loud_speakerphone
//	  cng: true
//	channels:
//	  0:
//	    vad:
//	      enabled: true
//	      mode: aggressive_low
//
// # Thread Safety
//
// All methods are safe for concurrent use. Getters read an atomic snapshot
// and never block. Send-path setters serialize on one lock; receive-path
// setters serialize per channel, so different channels never contend.
//
// # Related Packages
//
//   - interfaces: mode types, the pipeline and registry contracts
//   - real: software pipeline and channel table
//   - testing: simulated pipeline and registry for tests
//   - factory: pipeline construction from configuration and environment
//   - audio: gain, noise suppression, level detection, Opus decoding
//   - limits: processing bounds
package apm
