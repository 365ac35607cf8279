package apm

import "fmt"

// platformPolicy holds the default and validation tables for one platform class.
type platformPolicy struct {
	name           string
	defaultAgcMode AgcMode
	defaultEcMode  EcMode
	agcModes       map[AgcMode]bool
}

var desktopPolicy = platformPolicy{
	name:           "desktop",
	defaultAgcMode: AgcAdaptiveAnalog,
	defaultEcMode:  EcAec,
	agcModes: map[AgcMode]bool{
		AgcAdaptiveAnalog:  true,
		AgcAdaptiveDigital: true,
		AgcFixedDigital:    true,
	},
}

// Mobile devices expose no analog gain control to the engine.
var mobilePolicy = platformPolicy{
	name:           "mobile",
	defaultAgcMode: AgcAdaptiveDigital,
	defaultEcMode:  EcAecm,
	agcModes: map[AgcMode]bool{
		AgcAdaptiveDigital: true,
		AgcFixedDigital:    true,
	},
}

func policyFor(p Platform) platformPolicy {
	if p.IsMobile() {
		return mobilePolicy
	}
	return desktopPolicy
}

// Receive-path AGC has no physical gain to adjust per remote stream.
var rxAgcModes = map[AgcMode]bool{
	AgcAdaptiveDigital: true,
	AgcFixedDigital:    true,
}

const rxDefaultAgcMode = AgcAdaptiveDigital

// nsAliases is shared by the send and receive paths.
var nsAliases = map[NsMode]NsMode{
	NsDefault:             NsModerateSuppression,
	NsConference:          NsHighSuppression,
	NsLowSuppression:      NsLowSuppression,
	NsModerateSuppression: NsModerateSuppression,
	NsHighSuppression:     NsHighSuppression,
	NsVeryHighSuppression: NsVeryHighSuppression,
}

const defaultNsMode = NsModerateSuppression

// ecAliases excludes EcDefault, which depends on the platform.
var ecAliases = map[EcMode]EcMode{
	EcConference: EcAec,
	EcAec:        EcAec,
	EcAecm:       EcAecm,
}

const (
	defaultAecmMode       = AecmSpeakerphone
	defaultAecmCngEnabled = true
	defaultVadMode        = VadConventional
)

func (p platformPolicy) resolveAgc(requested, current AgcMode) (AgcMode, error) {
	switch requested {
	case AgcUnchanged:
		return current, nil
	case AgcDefault:
		return p.defaultAgcMode, nil
	}
	if !p.agcModes[requested] {
		return current, fmt.Errorf("%w: agc mode %s not supported on %s", ErrInvalidMode, requested, p.name)
	}
	return requested, nil
}

func (p platformPolicy) resolveEc(requested, current EcMode) (EcMode, error) {
	switch requested {
	case EcUnchanged:
		return current, nil
	case EcDefault:
		return p.defaultEcMode, nil
	}
	resolved, ok := ecAliases[requested]
	if !ok {
		return current, fmt.Errorf("%w: ec mode %s", ErrInvalidMode, requested)
	}
	return resolved, nil
}

func resolveRxAgc(requested, current AgcMode) (AgcMode, error) {
	switch requested {
	case AgcUnchanged:
		return current, nil
	case AgcDefault:
		return rxDefaultAgcMode, nil
	}
	if !rxAgcModes[requested] {
		return current, fmt.Errorf("%w: agc mode %s not supported on the receive path", ErrInvalidMode, requested)
	}
	return requested, nil
}

func resolveNs(requested, current NsMode) (NsMode, error) {
	if requested == NsUnchanged {
		return current, nil
	}
	resolved, ok := nsAliases[requested]
	if !ok {
		return current, fmt.Errorf("%w: ns mode %s", ErrInvalidMode, requested)
	}
	return resolved, nil
}

func (p platformPolicy) defaultGlobal() GlobalConfig {
	return GlobalConfig{
		AgcEnabled:       true,
		AgcMode:          p.defaultAgcMode,
		EcEnabled:        false,
		EcMode:           p.defaultEcMode,
		AecmMode:         defaultAecmMode,
		AecmCngEnabled:   defaultAecmCngEnabled,
		EcMetricsEnabled: false,
		NsEnabled:        false,
		NsMode:           defaultNsMode,
	}
}

func defaultChannel() PerChannelConfig {
	return PerChannelConfig{
		RxAgcEnabled:   false,
		RxAgcMode:      rxDefaultAgcMode,
		RxNsEnabled:    false,
		RxNsMode:       defaultNsMode,
		VadEnabled:     false,
		VadMode:        defaultVadMode,
		VadDtxDisabled: false,
	}
}
