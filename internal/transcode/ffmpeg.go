// Package transcode converts provider audio into the telephony format
// using external tools: ffmpeg for conversion, ffprobe for duration.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Transcoder converts one audio file into 8 kHz mono 16-bit PCM WAV and
// can probe artifact durations.
type Transcoder interface {
	// Transcode converts src into dst in the telephony format.
	Transcode(ctx context.Context, src, dst string) error

	// Duration reports the playable duration of the artifact at path.
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// FFmpeg implements Transcoder by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	FFmpegBin  string
	FFprobeBin string
}

var _ Transcoder = (*FFmpeg)(nil)

// NewFFmpeg returns a Transcoder using the ffmpeg/ffprobe binaries on PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe"}
}

// Transcode runs ffmpeg to produce 8 kHz mono s16le WAV at dst,
// overwriting any existing file.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, f.FFmpegBin,
		"-y",
		"-i", src,
		"-ar", "8000",
		"-ac", "1",
		"-f", "wav",
		"-acodec", "pcm_s16le",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// Duration runs ffprobe and parses the container duration.
func (f *FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, lastLine(stderr.String()))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: unreadable duration %q", strings.TrimSpace(stdout.String()))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
