// Package real provides the software audio pipeline and channel table used
// in production by the audio processing control surface.
//
// Pipeline implements interfaces.AudioPipeline with working processing
// stages built from the audio package, so configuration applied through
// apm.AudioProcessing is audible in the frames it processes.
//
// # Architecture
//
//	capture ──► echo suppression ──► noise suppression ──► gain control ──► VAD
//	                   ▲
//	                   │ far-end level
//	                   │
//	render  ──► noise suppression ──► gain control ──► VAD ──► VadObserver
//	   ▲
//	   └── Opus packet ──► audio.Decoder ──► audio.Resampler
//
// The send path has one set of stages guarded by a single mutex. Each
// receive channel owns its stages, detector, decoder and resampler behind
// its own mutex, so channels are processed in parallel.
//
// # Usage
//
//	table := real.NewChannelTable()
//	pipeline, err := real.NewPipeline(config)
//	if err != nil {
//	    return err
//	}
//	table.OnChannelRemoved(pipeline.RemoveChannel)
//
//	ch, _ := table.CreateChannel()
//	out, err := pipeline.ProcessRender(ch, pcm)
//
// The factory package performs this wiring.
//
// # Echo Metrics
//
// The echo suppressor measures ERL, ERLE and the non-linear attenuation in
// dB while metrics are enabled and the far end is active. Delay metrics are
// computed from the values passed to ReportStreamDelay over the last 100
// reports.
//
// # Thread Safety
//
// All exported methods of Pipeline and ChannelTable are safe for concurrent
// use. VadObserver callbacks run on the goroutine that called ProcessRender,
// after every pipeline lock is released.
//
// # Stopping
//
// Stop makes every configuration and processing call fail with an error
// wrapping interfaces.ErrPipelineUnavailable until Start is called.
package real
