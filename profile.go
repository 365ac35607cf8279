package apm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidProfile indicates a processing profile that could not be parsed.
var ErrInvalidProfile = errors.New("invalid processing profile")

// Profile is a declarative processing configuration, stored as YAML.
// Absent sections leave the corresponding state untouched. Modes are
// written by name, for example "adaptive_digital" or "conference".
type Profile struct {
	Platform  *Platform              `yaml:"platform,omitempty"`
	Agc       *AgcProfile            `yaml:"agc,omitempty"`
	Aecm      *AecmProfile           `yaml:"aecm,omitempty"`
	Ec        *EcProfile             `yaml:"ec,omitempty"`
	EcMetrics *bool                  `yaml:"ec_metrics,omitempty"`
	Ns        *NsProfile             `yaml:"ns,omitempty"`
	Channels  map[int]ChannelProfile `yaml:"channels,omitempty"`
}

// AgcProfile configures a gain control stage. An omitted mode keeps the
// current one.
type AgcProfile struct {
	Enabled bool    `yaml:"enabled"`
	Mode    AgcMode `yaml:"mode,omitempty"`
}

// EcProfile configures send-path echo control.
type EcProfile struct {
	Enabled bool   `yaml:"enabled"`
	Mode    EcMode `yaml:"mode,omitempty"`
}

// AecmProfile configures the mobile echo canceller. Omitted fields keep
// their current values.
type AecmProfile struct {
	Mode *AecmMode `yaml:"mode,omitempty"`
	Cng  *bool     `yaml:"cng,omitempty"`
}

// NsProfile configures a noise suppression stage.
type NsProfile struct {
	Enabled bool   `yaml:"enabled"`
	Mode    NsMode `yaml:"mode,omitempty"`
}

// VadProfile configures voice activity detection. An omitted mode keeps the
// current one.
type VadProfile struct {
	Enabled    bool     `yaml:"enabled"`
	Mode       *VadMode `yaml:"mode,omitempty"`
	DisableDTX bool     `yaml:"disable_dtx"`
}

// ChannelProfile configures one receive channel.
type ChannelProfile struct {
	RxAgc *AgcProfile `yaml:"rx_agc,omitempty"`
	RxNs  *NsProfile  `yaml:"rx_ns,omitempty"`
	Vad   *VadProfile `yaml:"vad,omitempty"`
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "LoadProfile",
			"path":     path,
			"error":    err.Error(),
		}).Error("Failed to read profile")
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "LoadProfile",
		"path":     path,
		"channels": len(p.Channels),
	}).Info("Loaded processing profile")
	return p, nil
}

// ParseProfile decodes a YAML profile. Unknown keys and unknown mode names
// are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return &p, nil
}

// Marshal encodes the profile as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// ApplyProfile applies every section present in p, send path first and then
// channels in ascending order. It stops at the first failing setter; sections
// applied before it stay in effect.
func (ap *AudioProcessing) ApplyProfile(p *Profile) error {
	if p == nil {
		return nil
	}
	if p.Platform != nil && *p.Platform != ap.platform {
		logrus.WithFields(logrus.Fields{
			"function":         "ApplyProfile",
			"profile_platform": p.Platform.String(),
			"platform":         ap.platform.String(),
		}).Warn("Profile written for a different platform")
	}

	if p.Agc != nil {
		if err := ap.SetAgc(p.Agc.Enabled, p.Agc.Mode); err != nil {
			return fmt.Errorf("agc: %w", err)
		}
	}
	if p.Aecm != nil {
		if err := ap.configureAecm("ApplyProfile", p.Aecm.Mode, p.Aecm.Cng); err != nil {
			return fmt.Errorf("aecm: %w", err)
		}
	}
	if p.Ec != nil {
		if err := ap.SetEc(p.Ec.Enabled, p.Ec.Mode); err != nil {
			return fmt.Errorf("ec: %w", err)
		}
	}
	if p.EcMetrics != nil {
		if err := ap.SetEcMetrics(*p.EcMetrics); err != nil {
			return fmt.Errorf("ec_metrics: %w", err)
		}
	}
	if p.Ns != nil {
		if err := ap.SetNs(p.Ns.Enabled, p.Ns.Mode); err != nil {
			return fmt.Errorf("ns: %w", err)
		}
	}

	ids := make([]int, 0, len(p.Channels))
	for id := range p.Channels {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if err := ap.applyChannelProfile(id, p.Channels[id]); err != nil {
			return fmt.Errorf("channel %d: %w", id, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "ApplyProfile",
		"channels": len(ids),
	}).Info("Applied processing profile")
	return nil
}

func (ap *AudioProcessing) applyChannelProfile(channel int, c ChannelProfile) error {
	if c.RxAgc != nil {
		if err := ap.SetRxAgc(channel, c.RxAgc.Enabled, c.RxAgc.Mode); err != nil {
			return fmt.Errorf("rx_agc: %w", err)
		}
	}
	if c.RxNs != nil {
		if err := ap.SetRxNs(channel, c.RxNs.Enabled, c.RxNs.Mode); err != nil {
			return fmt.Errorf("rx_ns: %w", err)
		}
	}
	if c.Vad != nil {
		v := *c.Vad
		if v.Mode != nil && !v.Mode.IsValid() {
			return fmt.Errorf("vad: %w: vad mode %d", ErrInvalidMode, int(*v.Mode))
		}
		err := ap.configureVad(channel, "ApplyProfile", func(cfg PerChannelConfig) PerChannelConfig {
			cfg.VadEnabled = v.Enabled
			if v.Mode != nil {
				cfg.VadMode = *v.Mode
			}
			cfg.VadDtxDisabled = v.DisableDTX
			return cfg
		})
		if err != nil {
			return fmt.Errorf("vad: %w", err)
		}
	}
	return nil
}

// Snapshot captures the complete stored configuration as a profile.
// Applying it to a fresh instance on the same platform reproduces the state.
func (ap *AudioProcessing) Snapshot() *Profile {
	g := ap.Global()
	platform := ap.platform
	metrics := g.EcMetricsEnabled
	aecmMode, cng := g.AecmMode, g.AecmCngEnabled

	p := &Profile{
		Platform:  &platform,
		Agc:       &AgcProfile{Enabled: g.AgcEnabled, Mode: g.AgcMode},
		Aecm:      &AecmProfile{Mode: &aecmMode, Cng: &cng},
		Ec:        &EcProfile{Enabled: g.EcEnabled, Mode: g.EcMode},
		EcMetrics: &metrics,
		Ns:        &NsProfile{Enabled: g.NsEnabled, Mode: g.NsMode},
	}

	for _, id := range ap.configuredChannels() {
		e := ap.existingEntry(id)
		if e == nil {
			continue
		}
		c := e.state.Load().config
		vadMode := c.VadMode
		if p.Channels == nil {
			p.Channels = make(map[int]ChannelProfile)
		}
		p.Channels[id] = ChannelProfile{
			RxAgc: &AgcProfile{Enabled: c.RxAgcEnabled, Mode: c.RxAgcMode},
			RxNs:  &NsProfile{Enabled: c.RxNsEnabled, Mode: c.RxNsMode},
			Vad:   &VadProfile{Enabled: c.VadEnabled, Mode: &vadMode, DisableDTX: c.VadDtxDisabled},
		}
	}
	return p
}
