// Package factory creates audio pipeline implementations for the audio
// processing control surface.
//
// The factory abstracts the choice between the deterministic simulated
// pipeline (for testing) and the software pipeline in package real, so the
// control surface is built the same way in both cases.
//
// # Configuration
//
// The factory supports configuration via environment variables:
//   - APM_USE_SIMULATION: "true" or "false" to enable simulation mode
//   - APM_PLATFORM: "desktop", "android" or "ios"
//   - APM_SAMPLE_RATE: 8000, 16000, 32000 or 48000
//   - APM_FRAME_SIZE: noise suppression frame, a power of 2 from 128 to 4096
//   - APM_VAD_HANGOVER_MS: integer milliseconds, 0 to 5000
//
// Invalid or out-of-range values are logged and the default is kept.
//
// # Usage
//
//	factory := factory.NewPipelineFactory()
//	table := real.NewChannelTable()
//
//	pipeline, err := factory.CreatePipeline(table)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ap, err := apm.New(apm.NewOptions(), pipeline, table)
//
// The software pipeline subscribes to channel removal when the registry
// implements interfaces.ChannelRemovalNotifier.
//
// # Testing Support
//
//	func TestMyFeature(t *testing.T) {
//	    factory := NewPipelineFactory()
//	    sim := factory.CreateSimulationForTesting(WithPlatform(interfaces.PlatformAndroid))
//	    // Use sim in tests...
//	}
//
// # Mode Switching
//
//	factory := NewPipelineFactory()
//	factory.SwitchToSimulation()
//	factory.SwitchToReal()
package factory
