package interfaces

import (
	"fmt"
	"runtime"
	"strings"
)

// AgcMode selects the automatic gain control strategy.
// The numeric values follow the voice engine API ordering.
type AgcMode int

const (
	// AgcUnchanged keeps the current mode and only toggles the enable flag
	AgcUnchanged AgcMode = iota
	// AgcDefault resolves to the scope default (platform default on the send path)
	AgcDefault
	// AgcAdaptiveAnalog adjusts the analog microphone level
	AgcAdaptiveAnalog
	// AgcAdaptiveDigital adapts a digital gain toward the target level
	AgcAdaptiveDigital
	// AgcFixedDigital applies a fixed digital gain with limiting
	AgcFixedDigital
)

// EcMode selects the echo control family.
type EcMode int

const (
	// EcUnchanged keeps the current family and only toggles the enable flag
	EcUnchanged EcMode = iota
	// EcDefault resolves to the platform default family
	EcDefault
	// EcConference is an alias of EcAec
	EcConference
	// EcAec is the full acoustic echo canceller
	EcAec
	// EcAecm is the mobile echo control variant
	EcAecm
)

// AecmMode selects the acoustic routing assumed by the mobile echo canceller.
type AecmMode int

const (
	// AecmQuietEarpieceOrHeadset assumes a headset or quiet earpiece
	AecmQuietEarpieceOrHeadset AecmMode = iota
	// AecmEarpiece assumes a normal earpiece
	AecmEarpiece
	// AecmLoudEarpiece assumes a loud earpiece
	AecmLoudEarpiece
	// AecmSpeakerphone assumes a speakerphone
	AecmSpeakerphone
	// AecmLoudSpeakerphone assumes a loud speakerphone
	AecmLoudSpeakerphone
)

// NsMode selects the noise suppression level.
type NsMode int

const (
	// NsUnchanged keeps the current level and only toggles the enable flag
	NsUnchanged NsMode = iota
	// NsDefault is an alias of NsModerateSuppression
	NsDefault
	// NsConference is an alias of NsHighSuppression
	NsConference
	// NsLowSuppression is the mildest level
	NsLowSuppression
	// NsModerateSuppression is the default level
	NsModerateSuppression
	// NsHighSuppression suppresses aggressively
	NsHighSuppression
	// NsVeryHighSuppression is the strongest level
	NsVeryHighSuppression
)

// VadMode selects the voice activity detector aggressiveness.
type VadMode int

const (
	// VadConventional is the least aggressive detector
	VadConventional VadMode = iota
	// VadAggressiveLow reports speech less eagerly
	VadAggressiveLow
	// VadAggressiveMid is the middle setting
	VadAggressiveMid
	// VadAggressiveHigh reports speech least eagerly
	VadAggressiveHigh
)

// VadDecision is the instantaneous detector output.
type VadDecision int

const (
	// VadUnavailable indicates the detector cannot report a decision
	VadUnavailable VadDecision = -1
	// VadInactive indicates silence
	VadInactive VadDecision = 0
	// VadActive indicates speech
	VadActive VadDecision = 1
)

// Platform selects the default and validation policy tables.
type Platform int

const (
	// PlatformDesktop covers Linux, macOS, Windows and the BSDs
	PlatformDesktop Platform = iota
	// PlatformAndroid is a mobile platform
	PlatformAndroid
	// PlatformIOS is a mobile platform
	PlatformIOS
)

// ProcessingStage tags the stage a configuration call applies to.
type ProcessingStage int

const (
	// StageAgc is automatic gain control
	StageAgc ProcessingStage = iota
	// StageEchoCancellation is the desktop echo canceller
	StageEchoCancellation
	// StageEchoCancellationMobile is the mobile echo canceller
	StageEchoCancellationMobile
	// StageNoiseSuppression is noise suppression
	StageNoiseSuppression
	// StageVoiceActivityDetection is voice activity detection
	StageVoiceActivityDetection
)

var agcModeNames = map[AgcMode]string{
	AgcUnchanged:       "unchanged",
	AgcDefault:         "default",
	AgcAdaptiveAnalog:  "adaptive_analog",
	AgcAdaptiveDigital: "adaptive_digital",
	AgcFixedDigital:    "fixed_digital",
}

var ecModeNames = map[EcMode]string{
	EcUnchanged:  "unchanged",
	EcDefault:    "default",
	EcConference: "conference",
	EcAec:        "aec",
	EcAecm:       "aecm",
}

var aecmModeNames = map[AecmMode]string{
	AecmQuietEarpieceOrHeadset: "quiet_earpiece_or_headset",
	AecmEarpiece:               "earpiece",
	AecmLoudEarpiece:           "loud_earpiece",
	AecmSpeakerphone:           "speakerphone",
	AecmLoudSpeakerphone:       "loud_speakerphone",
}

var nsModeNames = map[NsMode]string{
	NsUnchanged:           "unchanged",
	NsDefault:             "default",
	NsConference:          "conference",
	NsLowSuppression:      "low",
	NsModerateSuppression: "moderate",
	NsHighSuppression:     "high",
	NsVeryHighSuppression: "very_high",
}

var vadModeNames = map[VadMode]string{
	VadConventional:   "conventional",
	VadAggressiveLow:  "aggressive_low",
	VadAggressiveMid:  "aggressive_mid",
	VadAggressiveHigh: "aggressive_high",
}

var vadDecisionNames = map[VadDecision]string{
	VadUnavailable: "unavailable",
	VadInactive:    "inactive",
	VadActive:      "active",
}

var platformNames = map[Platform]string{
	PlatformDesktop: "desktop",
	PlatformAndroid: "android",
	PlatformIOS:     "ios",
}

var stageNames = map[ProcessingStage]string{
	StageAgc:                    "agc",
	StageEchoCancellation:       "ec",
	StageEchoCancellationMobile: "aecm",
	StageNoiseSuppression:       "ns",
	StageVoiceActivityDetection: "vad",
}

// enumName returns the registered name of v or a numeric fallback.
func enumName[T ~int](names map[T]string, kind string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", kind, int(v))
}

// parseEnum resolves a case-insensitive name; '-' and '_' are interchangeable.
func parseEnum[T ~int](names map[T]string, kind, text string) (T, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(text)), "-", "_")
	for v, name := range names {
		if name == key {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", ErrUnknownName, kind, text)
}

func (m AgcMode) String() string { return enumName(agcModeNames, "AgcMode", m) }

// IsConcrete reports whether m names an actual strategy rather than an alias.
func (m AgcMode) IsConcrete() bool {
	return m == AgcAdaptiveAnalog || m == AgcAdaptiveDigital || m == AgcFixedDigital
}

// MarshalText implements encoding.TextMarshaler.
func (m AgcMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AgcMode) UnmarshalText(text []byte) error {
	v, err := parseEnum(agcModeNames, "agc mode", string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m EcMode) String() string { return enumName(ecModeNames, "EcMode", m) }

// IsConcrete reports whether m names an echo control family.
func (m EcMode) IsConcrete() bool { return m == EcAec || m == EcAecm }

// MarshalText implements encoding.TextMarshaler.
func (m EcMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EcMode) UnmarshalText(text []byte) error {
	v, err := parseEnum(ecModeNames, "ec mode", string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m AecmMode) String() string { return enumName(aecmModeNames, "AecmMode", m) }

// IsValid reports whether m is a defined routing mode.
func (m AecmMode) IsValid() bool {
	_, ok := aecmModeNames[m]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (m AecmMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AecmMode) UnmarshalText(text []byte) error {
	v, err := parseEnum(aecmModeNames, "aecm mode", string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m NsMode) String() string { return enumName(nsModeNames, "NsMode", m) }

// IsConcrete reports whether m names an actual suppression level.
func (m NsMode) IsConcrete() bool {
	return m >= NsLowSuppression && m <= NsVeryHighSuppression
}

// MarshalText implements encoding.TextMarshaler.
func (m NsMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *NsMode) UnmarshalText(text []byte) error {
	v, err := parseEnum(nsModeNames, "ns mode", string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m VadMode) String() string { return enumName(vadModeNames, "VadMode", m) }

// IsValid reports whether m is a defined detector mode.
func (m VadMode) IsValid() bool {
	_, ok := vadModeNames[m]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (m VadMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *VadMode) UnmarshalText(text []byte) error {
	v, err := parseEnum(vadModeNames, "vad mode", string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (d VadDecision) String() string { return enumName(vadDecisionNames, "VadDecision", d) }

func (p Platform) String() string { return enumName(platformNames, "Platform", p) }

// IsMobile reports whether p uses the mobile policy table.
func (p Platform) IsMobile() bool { return p == PlatformAndroid || p == PlatformIOS }

// IsValid reports whether p is a defined platform.
func (p Platform) IsValid() bool {
	_, ok := platformNames[p]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (p Platform) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(text []byte) error {
	v, err := ParsePlatform(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePlatform resolves a platform name such as "desktop" or "android".
func ParsePlatform(name string) (Platform, error) {
	return parseEnum(platformNames, "platform", name)
}

// DetectPlatform maps the running GOOS onto a Platform.
func DetectPlatform() Platform {
	return platformForGOOS(runtime.GOOS)
}

func platformForGOOS(goos string) Platform {
	switch goos {
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	default:
		return PlatformDesktop
	}
}

func (s ProcessingStage) String() string { return enumName(stageNames, "ProcessingStage", s) }
