package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/opd-ai/apm"
	"github.com/opd-ai/apm/factory"
	"github.com/opd-ai/apm/interfaces"
	"github.com/opd-ai/apm/limits"
	"github.com/opd-ai/apm/real"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// errOddLength indicates a raw PCM file that ends inside a sample.
var errOddLength = errors.New("raw pcm length is not a multiple of 2 bytes")

// session is an AudioProcessing bound to the software pipeline.
type session struct {
	ap       *apm.AudioProcessing
	pipeline *real.Pipeline
	table    *real.ChannelTable
}

func newSession(platformName string, sampleRate int, profile *apm.Profile) (*session, error) {
	f := factory.NewPipelineFactory()
	config := f.GetCurrentConfig()

	if platformName != "" {
		platform, err := interfaces.ParsePlatform(platformName)
		if err != nil {
			return nil, fmt.Errorf("--platform: %w", err)
		}
		config.Platform = platform
	} else if profile != nil && profile.Platform != nil {
		config.Platform = *profile.Platform
	}
	if sampleRate != 0 {
		config.SampleRate = sampleRate
	}

	table := real.NewChannelTable()
	pipeline, err := f.CreateSoftwarePipeline(table, *config)
	if err != nil {
		return nil, err
	}

	if profile != nil {
		if err := createChannels(table, profile.Channels); err != nil {
			return nil, err
		}
	}

	options := apm.NewOptions()
	options.Platform = config.Platform
	ap, err := apm.New(options, pipeline, table)
	if err != nil {
		return nil, err
	}

	if profile != nil {
		if err := ap.ApplyProfile(profile); err != nil {
			return nil, fmt.Errorf("apply profile: %w", err)
		}
	}
	return &session{ap: ap, pipeline: pipeline, table: table}, nil
}

// createChannels allocates table ids until every channel named by the
// profile exists.
func createChannels(table *real.ChannelTable, channels map[int]apm.ChannelProfile) error {
	ids := make([]int, 0, len(channels))
	for id := range channels {
		if err := limits.ValidateChannel(id); err != nil {
			return fmt.Errorf("profile channel: %w", err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Ints(ids)

	for !table.ChannelExists(ids[len(ids)-1]) {
		if _, err := table.CreateChannel(); err != nil {
			return err
		}
	}
	return nil
}

func loadOptionalProfile(path string) (*apm.Profile, error) {
	if path == "" {
		return nil, nil
	}
	return apm.LoadProfile(path)
}

func writeSnapshot(w io.Writer, ap *apm.AudioProcessing) error {
	data, err := ap.Snapshot().Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func newDefaultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the default processing state of a platform as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, _ := cmd.Flags().GetString("platform")

			s, err := newSession(platform, 0, nil)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), s.ap)
		},
	}
	cmd.Flags().String("platform", "", "Platform (desktop, android, ios); detected when empty")
	return cmd
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a YAML profile and print the resulting state",
		RunE: func(cmd *cobra.Command, args []string) error {
			profilePath, _ := cmd.Flags().GetString("profile")
			platform, _ := cmd.Flags().GetString("platform")

			if profilePath == "" {
				return fmt.Errorf("--profile is required")
			}
			profile, err := apm.LoadProfile(profilePath)
			if err != nil {
				return err
			}

			s, err := newSession(platform, 0, profile)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), s.ap)
		},
	}
	cmd.Flags().String("profile", "", "YAML processing profile")
	cmd.Flags().String("platform", "", "Platform (desktop, android, ios); profile or detected when empty")
	return cmd
}

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run 16-bit little-endian mono PCM through the send path",
		RunE: func(cmd *cobra.Command, args []string) error {
			profilePath, _ := cmd.Flags().GetString("profile")
			platform, _ := cmd.Flags().GetString("platform")
			sampleRate, _ := cmd.Flags().GetInt("sample-rate")
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")

			if in == "" || out == "" {
				return fmt.Errorf("--in and --out are required")
			}
			profile, err := loadOptionalProfile(profilePath)
			if err != nil {
				return err
			}
			s, err := newSession(platform, sampleRate, profile)
			if err != nil {
				return err
			}

			stats, err := processFile(s.pipeline, in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "frames=%d active=%d samples=%d\n", stats.frames, stats.active, stats.samples)
			return nil
		},
	}
	cmd.Flags().String("profile", "", "YAML processing profile (optional)")
	cmd.Flags().String("platform", "", "Platform (desktop, android, ios)")
	cmd.Flags().Int("sample-rate", 0, "Input sample rate in Hz; factory default when 0")
	cmd.Flags().String("in", "", "Raw capture input file")
	cmd.Flags().String("out", "", "Raw processed output file")
	return cmd
}

type processStats struct {
	frames  int
	active  int
	samples int
}

// processFile feeds the input file to the capture path in 10 ms frames.
// A short final frame is processed as is.
func processFile(pipeline *real.Pipeline, inPath, outPath string) (processStats, error) {
	pcm, err := readPCM(inPath)
	if err != nil {
		return processStats{}, err
	}

	frameSize := limits.FrameSizeFor(pipeline.SampleRate())
	output := make([]int16, 0, len(pcm))
	var stats processStats

	for start := 0; start < len(pcm); start += frameSize {
		end := start + frameSize
		if end > len(pcm) {
			end = len(pcm)
		}
		frame, err := pipeline.ProcessCapture(pcm[start:end])
		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.frames, err)
		}
		output = append(output, frame...)
		stats.frames++
		if pipeline.CaptureVoiceActivity() == interfaces.VadActive {
			stats.active++
		}
	}
	stats.samples = len(output)

	logrus.WithFields(logrus.Fields{
		"function":      "processFile",
		"input":         inPath,
		"output":        outPath,
		"frames":        stats.frames,
		"active_frames": stats.active,
		"sample_rate":   pipeline.SampleRate(),
	}).Info("Processed capture file")

	return stats, writePCM(outPath, output)
}

func readPCM(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%s: %w", path, errOddLength)
	}
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm, nil
}

func writePCM(path string, pcm []int16) error {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
