package apm

import (
	"os"
	"path/filepath"
	"testing"

	apmtesting "github.com/opd-ai/apm/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conferenceProfile = `
platform: desktop
agc:
  enabled: true
  mode: fixed_digital
aecm:
  mode: loud_earpiece
  cng: false
ec:
  enabled: true
  mode: conference
ec_metrics: true
ns:
  enabled: true
  mode: conference
channels:
  1:
    rx_ns:
      enabled: true
      mode: default
    vad:
      enabled: true
      mode: aggressive_mid
      disable_dtx: true
`

func newProfileTarget(t *testing.T, platform Platform) *AudioProcessing {
	t.Helper()
	ap, err := New(&Options{Platform: platform},
		apmtesting.NewSimulatedPipeline(nil), apmtesting.NewSimulatedChannelRegistry(0, 1))
	require.NoError(t, err)
	return ap
}

func TestParseAndApplyProfile(t *testing.T) {
	p, err := ParseProfile([]byte(conferenceProfile))
	require.NoError(t, err)

	ap := newProfileTarget(t, PlatformDesktop)
	require.NoError(t, ap.ApplyProfile(p))

	g := ap.Global()
	assert.True(t, g.AgcEnabled)
	assert.Equal(t, AgcFixedDigital, g.AgcMode)
	assert.True(t, g.EcEnabled)
	assert.Equal(t, EcAec, g.EcMode)
	assert.Equal(t, AecmLoudEarpiece, g.AecmMode)
	assert.False(t, g.AecmCngEnabled)
	assert.True(t, g.EcMetricsEnabled)
	assert.Equal(t, NsHighSuppression, g.NsMode)

	c, err := ap.Channel(1)
	require.NoError(t, err)
	assert.True(t, c.RxNsEnabled)
	assert.Equal(t, NsModerateSuppression, c.RxNsMode)
	assert.True(t, c.VadEnabled)
	assert.Equal(t, VadAggressiveMid, c.VadMode)
	assert.True(t, c.VadDtxDisabled)
	assert.False(t, c.RxAgcEnabled)
}

func TestParseProfileRejectsUnknownInput(t *testing.T) {
	_, err := ParseProfile([]byte("agc:\n  enabled: true\n  mode: turbo\n"))
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = ParseProfile([]byte("echo:\n  enabled: true\n"))
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestParseEmptyProfile(t *testing.T) {
	p, err := ParseProfile(nil)
	require.NoError(t, err)
	assert.Nil(t, p.Agc)
	assert.Empty(t, p.Channels)
}

func TestApplyProfileOmittedModeKeepsCurrent(t *testing.T) {
	ap := newProfileTarget(t, PlatformDesktop)
	require.NoError(t, ap.SetNs(true, NsVeryHighSuppression))

	p, err := ParseProfile([]byte("ns:\n  enabled: false\n"))
	require.NoError(t, err)
	require.NoError(t, ap.ApplyProfile(p))

	enabled, mode := ap.GetNs()
	assert.False(t, enabled)
	assert.Equal(t, NsVeryHighSuppression, mode)
}

func TestApplyProfilePartialAecmAndVadKeepStoredValues(t *testing.T) {
	ap := newProfileTarget(t, PlatformAndroid)
	require.NoError(t, ap.SetAecmMode(AecmLoudSpeakerphone, true))
	require.NoError(t, ap.SetVadMode(1, false, VadAggressiveHigh, false))

	p, err := ParseProfile([]byte("aecm:\n  cng: false\nchannels:\n  1:\n    vad:\n      enabled: true\n"))
	require.NoError(t, err)
	require.NoError(t, ap.ApplyProfile(p))

	mode, cng := ap.GetAecmMode()
	assert.Equal(t, AecmLoudSpeakerphone, mode)
	assert.False(t, cng)

	enabled, vadMode, _, err := ap.GetVad(1)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, VadAggressiveHigh, vadMode)

	p, err = ParseProfile([]byte("aecm:\n  mode: earpiece\n"))
	require.NoError(t, err)
	require.NoError(t, ap.ApplyProfile(p))

	mode, cng = ap.GetAecmMode()
	assert.Equal(t, AecmEarpiece, mode)
	assert.False(t, cng)
}

func TestApplyProfileRejectedMode(t *testing.T) {
	p, err := ParseProfile([]byte("agc:\n  enabled: true\n  mode: adaptive_analog\n"))
	require.NoError(t, err)

	ap := newProfileTarget(t, PlatformAndroid)
	err = ap.ApplyProfile(p)
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Contains(t, err.Error(), "agc")

	p, err = ParseProfile([]byte("channels:\n  7:\n    rx_ns:\n      enabled: true\n"))
	require.NoError(t, err)
	err = ap.ApplyProfile(p)
	assert.ErrorIs(t, err, ErrUnknownChannel)

	assert.NoError(t, ap.ApplyProfile(nil))
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newProfileTarget(t, PlatformIOS)
	require.NoError(t, src.SetAgc(true, AgcFixedDigital))
	require.NoError(t, src.SetEc(true, EcAecm))
	require.NoError(t, src.SetAecmMode(AecmEarpiece, false))
	require.NoError(t, src.SetRxAgc(0, true, AgcFixedDigital))
	require.NoError(t, src.SetVadMode(1, true, VadAggressiveLow, false))

	data, err := src.Snapshot().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "fixed_digital")
	assert.Contains(t, string(data), "platform: ios")

	p, err := ParseProfile(data)
	require.NoError(t, err)

	dst := newProfileTarget(t, PlatformIOS)
	require.NoError(t, dst.ApplyProfile(p))

	assert.Equal(t, src.Global(), dst.Global())
	for _, ch := range []int{0, 1} {
		want, err := src.Channel(ch)
		require.NoError(t, err)
		got, err := dst.Channel(ch)
		require.NoError(t, err)
		assert.Equal(t, want, got, "channel %d", ch)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conference.yaml")
	require.NoError(t, os.WriteFile(path, []byte(conferenceProfile), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.NotNil(t, p.Ns)
	assert.Equal(t, NsConference, p.Ns.Mode)
	assert.Len(t, p.Channels, 1)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
