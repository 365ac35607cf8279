package apm

import (
	"errors"
	"sync"
	"testing"

	apmtesting "github.com/opd-ai/apm/testing"
	"github.com/stretchr/testify/suite"
)

const (
	testChannel    = 0
	otherChannel   = 1
	unknownChannel = 99
)

// AudioProcessingSuite runs every scenario against a fresh instance with a
// simulated pipeline. It is run once per platform.
type AudioProcessingSuite struct {
	suite.Suite
	platform Platform
	pipeline *apmtesting.SimulatedPipeline
	registry *apmtesting.SimulatedChannelRegistry
	ap       *AudioProcessing
}

func (s *AudioProcessingSuite) SetupTest() {
	s.pipeline = apmtesting.NewSimulatedPipeline(nil)
	s.registry = apmtesting.NewSimulatedChannelRegistry(testChannel, otherChannel)

	ap, err := New(&Options{Platform: s.platform, SyncOnCreate: true}, s.pipeline, s.registry)
	s.Require().NoError(err)
	s.ap = ap
	s.pipeline.ClearCalls()
}

func TestAudioProcessingDesktop(t *testing.T) {
	suite.Run(t, &AudioProcessingSuite{platform: PlatformDesktop})
}

func TestAudioProcessingAndroid(t *testing.T) {
	suite.Run(t, &AudioProcessingSuite{platform: PlatformAndroid})
}

func TestAudioProcessingIOS(t *testing.T) {
	suite.Run(t, &AudioProcessingSuite{platform: PlatformIOS})
}

func (s *AudioProcessingSuite) mobile() bool {
	return s.platform.IsMobile()
}

func (s *AudioProcessingSuite) TestDefaults() {
	wantAgc, wantEc := AgcAdaptiveAnalog, EcAec
	if s.mobile() {
		wantAgc, wantEc = AgcAdaptiveDigital, EcAecm
	}

	enabled, mode := s.ap.GetAgc()
	s.True(enabled)
	s.Equal(wantAgc, mode)

	ecEnabled, family := s.ap.GetEc()
	s.False(ecEnabled)
	s.Equal(wantEc, family)

	aecm, cng := s.ap.GetAecmMode()
	s.Equal(AecmSpeakerphone, aecm)
	s.True(cng)
	s.False(s.ap.GetEcMetrics())

	nsEnabled, nsMode := s.ap.GetNs()
	s.False(nsEnabled)
	s.Equal(NsModerateSuppression, nsMode)

	rxAgc, rxAgcMode, err := s.ap.GetRxAgc(testChannel)
	s.Require().NoError(err)
	s.False(rxAgc)
	s.Equal(AgcAdaptiveDigital, rxAgcMode)

	rxNs, rxNsMode, err := s.ap.GetRxNs(testChannel)
	s.Require().NoError(err)
	s.False(rxNs)
	s.Equal(NsModerateSuppression, rxNsMode)

	vad, vadMode, dtxDisabled, err := s.ap.GetVad(testChannel)
	s.Require().NoError(err)
	s.False(vad)
	s.Equal(VadConventional, vadMode)
	s.False(dtxDisabled)

	s.Empty(s.ap.ConfiguredChannels(), "reads must not create channel state")
}

func (s *AudioProcessingSuite) TestAgcRoundTrip() {
	modes := []AgcMode{AgcAdaptiveDigital, AgcFixedDigital}
	if !s.mobile() {
		modes = append(modes, AgcAdaptiveAnalog)
	}

	for _, m := range modes {
		s.Require().NoError(s.ap.SetAgc(true, m))
		enabled, got := s.ap.GetAgc()
		s.True(enabled)
		s.Equal(m, got)

		call, ok := s.pipeline.LastCall("SetAgc", apmtesting.SendPath)
		s.Require().True(ok)
		s.Equal(m.String(), call.Mode)
	}

	s.Require().NoError(s.ap.SetAgc(false, AgcUnchanged))
	enabled, got := s.ap.GetAgc()
	s.False(enabled)
	s.Equal(modes[len(modes)-1], got)

	s.Require().NoError(s.ap.SetAgc(true, AgcDefault))
	_, got = s.ap.GetAgc()
	s.Equal(policyFor(s.platform).defaultAgcMode, got)
}

func (s *AudioProcessingSuite) TestAgcAnalogRejection() {
	s.Require().NoError(s.ap.SetAgc(true, AgcFixedDigital))
	s.pipeline.ClearCalls()

	err := s.ap.SetAgc(true, AgcAdaptiveAnalog)
	if s.mobile() {
		s.ErrorIs(err, ErrInvalidMode)
		_, mode := s.ap.GetAgc()
		s.Equal(AgcFixedDigital, mode)
		s.Empty(s.pipeline.Calls())
	} else {
		s.NoError(err)
	}

	before, beforeMode, err := s.ap.GetRxAgc(testChannel)
	s.Require().NoError(err)
	s.ErrorIs(s.ap.SetRxAgc(testChannel, true, AgcAdaptiveAnalog), ErrInvalidMode)
	after, afterMode, err := s.ap.GetRxAgc(testChannel)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.Equal(beforeMode, afterMode)
}

func (s *AudioProcessingSuite) TestRxAgcRoundTrip() {
	for _, m := range []AgcMode{AgcFixedDigital, AgcAdaptiveDigital} {
		s.Require().NoError(s.ap.SetRxAgc(testChannel, true, m))
		enabled, got, err := s.ap.GetRxAgc(testChannel)
		s.Require().NoError(err)
		s.True(enabled)
		s.Equal(m, got)
	}

	s.Require().NoError(s.ap.SetRxAgc(testChannel, false, AgcUnchanged))
	enabled, got, err := s.ap.GetRxAgc(testChannel)
	s.Require().NoError(err)
	s.False(enabled)
	s.Equal(AgcAdaptiveDigital, got)

	otherEnabled, _, err := s.ap.GetRxAgc(otherChannel)
	s.Require().NoError(err)
	s.False(otherEnabled)
}

func (s *AudioProcessingSuite) TestNsAliases() {
	tests := []struct {
		requested NsMode
		want      NsMode
	}{
		{NsConference, NsHighSuppression},
		{NsDefault, NsModerateSuppression},
		{NsLowSuppression, NsLowSuppression},
		{NsModerateSuppression, NsModerateSuppression},
		{NsHighSuppression, NsHighSuppression},
		{NsVeryHighSuppression, NsVeryHighSuppression},
	}

	for _, tt := range tests {
		s.Require().NoError(s.ap.SetNs(true, tt.requested))
		enabled, got := s.ap.GetNs()
		s.True(enabled)
		s.Equal(tt.want, got, "send path %s", tt.requested)

		s.Require().NoError(s.ap.SetRxNs(testChannel, true, tt.requested))
		rxEnabled, rxGot, err := s.ap.GetRxNs(testChannel)
		s.Require().NoError(err)
		s.True(rxEnabled)
		s.Equal(tt.want, rxGot, "receive path %s", tt.requested)
	}

	s.ErrorIs(s.ap.SetNs(true, NsMode(42)), ErrInvalidMode)
}

func (s *AudioProcessingSuite) TestRxNsEnabledPreservesMode() {
	s.Require().NoError(s.ap.SetRxNs(testChannel, true, NsVeryHighSuppression))
	s.Require().NoError(s.ap.SetRxNsEnabled(testChannel, false))

	enabled, mode, err := s.ap.GetRxNs(testChannel)
	s.Require().NoError(err)
	s.False(enabled)
	s.Equal(NsVeryHighSuppression, mode)

	s.Require().NoError(s.ap.SetRxNsEnabled(testChannel, true))
	enabled, mode, err = s.ap.GetRxNs(testChannel)
	s.Require().NoError(err)
	s.True(enabled)
	s.Equal(NsVeryHighSuppression, mode)
}

func (s *AudioProcessingSuite) TestEcAliases() {
	s.Require().NoError(s.ap.SetEc(true, EcConference))
	enabled, family := s.ap.GetEc()
	s.True(enabled)
	s.Equal(EcAec, family)

	s.Require().NoError(s.ap.SetEc(true, EcAecm))
	enabled, family = s.ap.GetEc()
	s.True(enabled)
	s.Equal(EcAecm, family)

	s.Require().NoError(s.ap.SetEc(false, EcUnchanged))
	enabled, family = s.ap.GetEc()
	s.False(enabled)
	s.Equal(EcAecm, family)

	s.Require().NoError(s.ap.SetEc(true, EcDefault))
	_, family = s.ap.GetEc()
	if s.mobile() {
		s.Equal(EcAecm, family)
	} else {
		s.Equal(EcAec, family)
	}

	s.ErrorIs(s.ap.SetEc(true, EcMode(17)), ErrInvalidMode)
}

func (s *AudioProcessingSuite) TestEcAecmPushesStoredRouting() {
	s.Require().NoError(s.ap.SetAecmMode(AecmLoudEarpiece, false))
	s.pipeline.ClearCalls()

	s.Require().NoError(s.ap.SetEc(true, EcAecm))

	calls := s.pipeline.Calls()
	s.Require().Len(calls, 2)
	s.Equal("SetAecmMode", calls[0].Operation)
	s.Equal(AecmLoudEarpiece.String(), calls[0].Mode)
	s.False(calls[0].Enabled)
	s.Equal("SetEc", calls[1].Operation)

	mode, cng := s.ap.GetAecmMode()
	s.Equal(AecmLoudEarpiece, mode)
	s.False(cng)
}

func (s *AudioProcessingSuite) TestAecmUnit() {
	modes := []AecmMode{
		AecmEarpiece,
		AecmLoudEarpiece,
		AecmLoudSpeakerphone,
		AecmQuietEarpieceOrHeadset,
		AecmSpeakerphone,
	}
	for _, m := range modes {
		for _, cng := range []bool{true, false} {
			s.Require().NoError(s.ap.SetAecmMode(m, cng))
			gotMode, gotCng := s.ap.GetAecmMode()
			s.Equal(m, gotMode)
			s.Equal(cng, gotCng)
		}
	}

	s.ErrorIs(s.ap.SetAecmMode(AecmMode(9), true), ErrInvalidMode)
}

func (s *AudioProcessingSuite) TestEcMetrics() {
	_, err := s.ap.GetEchoMetrics()
	s.ErrorIs(err, ErrMetricsDisabled)
	_, err = s.ap.GetEcDelayMetrics()
	s.ErrorIs(err, ErrMetricsDisabled)

	s.pipeline.SetEchoMetrics(EchoMetrics{ERL: 10, ERLE: 25, RERL: 35, ANLP: 12})
	s.pipeline.SetDelayMetrics(DelayMetrics{Median: 60, Std: 7})

	s.Require().NoError(s.ap.SetEcMetrics(true))
	s.True(s.ap.GetEcMetrics())

	m, err := s.ap.GetEchoMetrics()
	s.Require().NoError(err)
	s.Equal(EchoMetrics{ERL: 10, ERLE: 25, RERL: 35, ANLP: 12}, m)

	d, err := s.ap.GetEcDelayMetrics()
	s.Require().NoError(err)
	s.Equal(60, d.Median)
	s.Equal(7, d.Std)

	s.Require().NoError(s.ap.SetEcMetrics(false))
	s.False(s.ap.GetEcMetrics())
}

func (s *AudioProcessingSuite) TestVad() {
	s.Require().NoError(s.ap.SetVad(testChannel, true))
	enabled, mode, dtx, err := s.ap.GetVad(testChannel)
	s.Require().NoError(err)
	s.True(enabled)
	s.Equal(VadConventional, mode)
	s.False(dtx)

	s.Require().NoError(s.ap.SetVadMode(testChannel, true, VadAggressiveHigh, true))
	s.Require().NoError(s.ap.SetVad(testChannel, false))
	enabled, mode, dtx, err = s.ap.GetVad(testChannel)
	s.Require().NoError(err)
	s.False(enabled)
	s.Equal(VadAggressiveHigh, mode)
	s.True(dtx)

	s.ErrorIs(s.ap.SetVadMode(testChannel, true, VadMode(8), false), ErrInvalidMode)
}

func (s *AudioProcessingSuite) TestVoiceActivityIndicator() {
	d, err := s.ap.VoiceActivityIndicator(testChannel)
	s.Require().NoError(err)
	s.Equal(VadInactive, d)

	s.pipeline.SetVoiceActivity(testChannel, VadActive)
	d, err = s.ap.VoiceActivityIndicator(testChannel)
	s.Require().NoError(err)
	s.Equal(VadActive, d)

	s.pipeline.SetAvailable(false)
	d, err = s.ap.VoiceActivityIndicator(testChannel)
	s.ErrorIs(err, ErrPipelineUnavailable)
	s.Equal(VadUnavailable, d)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []VadDecision
}

func (o *recordingObserver) OnRxVad(channel int, decision VadDecision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, decision)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func (s *AudioProcessingSuite) TestObserverReplace() {
	first := &recordingObserver{}
	second := &recordingObserver{}

	s.Require().NoError(s.ap.RegisterRxVadObserver(testChannel, first))
	s.Require().NoError(s.ap.RegisterRxVadObserver(testChannel, second))

	s.pipeline.SetVoiceActivity(testChannel, VadActive)
	s.Equal(0, first.count())
	s.Equal(1, second.count())

	has, err := s.ap.HasRxVadObserver(testChannel)
	s.Require().NoError(err)
	s.True(has)

	s.Require().NoError(s.ap.DeregisterRxVadObserver(testChannel))
	s.False(s.pipeline.HasObserver(testChannel))
	s.pipeline.SetVoiceActivity(testChannel, VadInactive)
	s.Equal(1, second.count())

	s.ErrorIs(s.ap.RegisterRxVadObserver(testChannel, nil), ErrNilObserver)
}

func (s *AudioProcessingSuite) TestDeregisterWithoutObserver() {
	s.NoError(s.ap.DeregisterRxVadObserver(otherChannel))
	s.Empty(s.pipeline.CallsFor("SetRxVadObserver"))

	s.pipeline.SetAvailable(false)
	s.NoError(s.ap.DeregisterRxVadObserver(otherChannel))
}

func (s *AudioProcessingSuite) TestUnknownChannel() {
	obs := VadObserverFunc(func(int, VadDecision) {})

	errs := []error{
		s.ap.SetRxAgc(unknownChannel, true, AgcFixedDigital),
		s.ap.SetRxNs(unknownChannel, true, NsHighSuppression),
		s.ap.SetRxNsEnabled(unknownChannel, true),
		s.ap.SetVad(unknownChannel, true),
		s.ap.SetVadMode(unknownChannel, true, VadAggressiveLow, false),
		s.ap.RegisterRxVadObserver(unknownChannel, obs),
		s.ap.DeregisterRxVadObserver(unknownChannel),
	}
	_, _, err := s.ap.GetRxAgc(unknownChannel)
	errs = append(errs, err)
	_, _, err = s.ap.GetRxNs(unknownChannel)
	errs = append(errs, err)
	_, _, _, err = s.ap.GetVad(unknownChannel)
	errs = append(errs, err)
	_, err = s.ap.HasRxVadObserver(unknownChannel)
	errs = append(errs, err)
	_, err = s.ap.Channel(unknownChannel)
	errs = append(errs, err)

	d, err := s.ap.VoiceActivityIndicator(unknownChannel)
	errs = append(errs, err)
	s.Equal(VadUnavailable, d)

	for i, err := range errs {
		s.ErrorIs(err, ErrUnknownChannel, "operation %d", i)
	}
	s.Empty(s.pipeline.Calls())
	s.Empty(s.ap.ConfiguredChannels())
}

func (s *AudioProcessingSuite) TestPipelineFailureLeavesStateUnchanged() {
	s.Require().NoError(s.ap.SetNs(true, NsLowSuppression))
	s.Require().NoError(s.ap.SetRxAgc(testChannel, true, AgcFixedDigital))
	before := s.ap.Global()

	cause := errors.New("engine not started")
	s.pipeline.FailStage(StageNoiseSuppression, cause)
	s.pipeline.FailStage(StageAgc, cause)

	err := s.ap.SetNs(false, NsVeryHighSuppression)
	s.ErrorIs(err, ErrPipelineUnavailable)
	s.ErrorIs(err, cause)
	s.ErrorIs(s.ap.SetAgc(false, AgcFixedDigital), ErrPipelineUnavailable)
	s.ErrorIs(s.ap.SetRxAgc(testChannel, false, AgcAdaptiveDigital), ErrPipelineUnavailable)
	s.ErrorIs(s.ap.SetRxNs(testChannel, true, NsHighSuppression), ErrPipelineUnavailable)

	s.Equal(before, s.ap.Global())
	cfg, err := s.ap.Channel(testChannel)
	s.Require().NoError(err)
	s.True(cfg.RxAgcEnabled)
	s.Equal(AgcFixedDigital, cfg.RxAgcMode)
	s.False(cfg.RxNsEnabled)

	s.pipeline.ClearFailures()
	s.pipeline.SetAvailable(false)
	s.ErrorIs(s.ap.SetEcMetrics(true), ErrPipelineUnavailable)
	s.False(s.ap.GetEcMetrics())
	s.ErrorIs(s.ap.SetAecmMode(AecmEarpiece, false), ErrPipelineUnavailable)
	s.Equal(before, s.ap.Global())
}

func (s *AudioProcessingSuite) TestChannelRemovalForgetsState() {
	s.Require().NoError(s.ap.SetRxNs(otherChannel, true, NsHighSuppression))
	s.Equal([]int{otherChannel}, s.ap.ConfiguredChannels())

	s.registry.RemoveChannel(otherChannel)
	s.Empty(s.ap.ConfiguredChannels())

	s.registry.AddChannel(otherChannel)
	enabled, mode, err := s.ap.GetRxNs(otherChannel)
	s.Require().NoError(err)
	s.False(enabled)
	s.Equal(NsModerateSuppression, mode)
}

func (s *AudioProcessingSuite) TestSyncReplaysConfiguration() {
	obs := &recordingObserver{}
	s.Require().NoError(s.ap.SetNs(true, NsConference))
	s.Require().NoError(s.ap.SetRxAgc(testChannel, true, AgcFixedDigital))
	s.Require().NoError(s.ap.RegisterRxVadObserver(testChannel, obs))
	s.pipeline.ClearCalls()

	s.Require().NoError(s.ap.Sync())

	ns, ok := s.pipeline.LastCall("SetNs", apmtesting.SendPath)
	s.Require().True(ok)
	s.True(ns.Enabled)
	s.Equal(NsHighSuppression.String(), ns.Mode)

	rx, ok := s.pipeline.LastCall("SetRxAgc", testChannel)
	s.Require().True(ok)
	s.Equal(AgcFixedDigital.String(), rx.Mode)

	_, ok = s.pipeline.LastCall("SetRxVadObserver", testChannel)
	s.True(ok)

	s.pipeline.SetAvailable(false)
	s.ErrorIs(s.ap.Sync(), ErrPipelineUnavailable)
}

func (s *AudioProcessingSuite) TestConcurrentChannelSetters() {
	channels := []int{10, 11, 12, 13}
	for _, ch := range channels {
		s.registry.AddChannel(ch)
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(2)
		go func(ch int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = s.ap.SetRxNs(ch, i%2 == 0, NsHighSuppression)
				_, _, _ = s.ap.GetRxNs(ch)
			}
		}(ch)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = s.ap.SetNs(i%2 == 0, NsLowSuppression)
				_, _ = s.ap.GetNs()
			}
		}()
	}
	wg.Wait()

	for _, ch := range channels {
		enabled, mode, err := s.ap.GetRxNs(ch)
		s.Require().NoError(err)
		s.False(enabled)
		s.Equal(NsHighSuppression, mode)
	}
	_, mode := s.ap.GetNs()
	s.Equal(NsLowSuppression, mode)
}
