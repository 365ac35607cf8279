package apm

import "github.com/opd-ai/apm/interfaces"

// Mode and policy types are defined in the interfaces package so pipelines
// can share them; they are re-exported here for callers of this package.
type (
	AgcMode         = interfaces.AgcMode
	EcMode          = interfaces.EcMode
	AecmMode        = interfaces.AecmMode
	NsMode          = interfaces.NsMode
	VadMode         = interfaces.VadMode
	VadDecision     = interfaces.VadDecision
	Platform        = interfaces.Platform
	ProcessingStage = interfaces.ProcessingStage
	EchoMetrics     = interfaces.EchoMetrics
	DelayMetrics    = interfaces.DelayMetrics
	VadObserver     = interfaces.VadObserver
	VadObserverFunc = interfaces.VadObserverFunc
)

const (
	AgcUnchanged       = interfaces.AgcUnchanged
	AgcDefault         = interfaces.AgcDefault
	AgcAdaptiveAnalog  = interfaces.AgcAdaptiveAnalog
	AgcAdaptiveDigital = interfaces.AgcAdaptiveDigital
	AgcFixedDigital    = interfaces.AgcFixedDigital
)

const (
	EcUnchanged  = interfaces.EcUnchanged
	EcDefault    = interfaces.EcDefault
	EcConference = interfaces.EcConference
	EcAec        = interfaces.EcAec
	EcAecm       = interfaces.EcAecm
)

const (
	AecmQuietEarpieceOrHeadset = interfaces.AecmQuietEarpieceOrHeadset
	AecmEarpiece               = interfaces.AecmEarpiece
	AecmLoudEarpiece           = interfaces.AecmLoudEarpiece
	AecmSpeakerphone           = interfaces.AecmSpeakerphone
	AecmLoudSpeakerphone       = interfaces.AecmLoudSpeakerphone
)

const (
	NsUnchanged           = interfaces.NsUnchanged
	NsDefault             = interfaces.NsDefault
	NsConference          = interfaces.NsConference
	NsLowSuppression      = interfaces.NsLowSuppression
	NsModerateSuppression = interfaces.NsModerateSuppression
	NsHighSuppression     = interfaces.NsHighSuppression
	NsVeryHighSuppression = interfaces.NsVeryHighSuppression
)

const (
	VadConventional   = interfaces.VadConventional
	VadAggressiveLow  = interfaces.VadAggressiveLow
	VadAggressiveMid  = interfaces.VadAggressiveMid
	VadAggressiveHigh = interfaces.VadAggressiveHigh
)

const (
	VadUnavailable = interfaces.VadUnavailable
	VadInactive    = interfaces.VadInactive
	VadActive      = interfaces.VadActive
)

const (
	PlatformDesktop = interfaces.PlatformDesktop
	PlatformAndroid = interfaces.PlatformAndroid
	PlatformIOS     = interfaces.PlatformIOS
)

const (
	StageAgc                    = interfaces.StageAgc
	StageEchoCancellation       = interfaces.StageEchoCancellation
	StageEchoCancellationMobile = interfaces.StageEchoCancellationMobile
	StageNoiseSuppression       = interfaces.StageNoiseSuppression
	StageVoiceActivityDetection = interfaces.StageVoiceActivityDetection
)

// GlobalConfig is an immutable snapshot of the send-path configuration.
type GlobalConfig struct {
	AgcEnabled       bool
	AgcMode          AgcMode
	EcEnabled        bool
	EcMode           EcMode
	AecmMode         AecmMode
	AecmCngEnabled   bool
	EcMetricsEnabled bool
	NsEnabled        bool
	NsMode           NsMode
}

// PerChannelConfig is an immutable snapshot of one channel's receive-path
// configuration.
type PerChannelConfig struct {
	RxAgcEnabled   bool
	RxAgcMode      AgcMode
	RxNsEnabled    bool
	RxNsMode       NsMode
	VadEnabled     bool
	VadMode        VadMode
	VadDtxDisabled bool
}
