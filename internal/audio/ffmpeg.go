// Package audio reads narration clip metadata before a clip is recorded.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// Static errors for audio probing.
var (
	// ErrNoDuration is returned when the input carries no readable duration.
	ErrNoDuration = errors.New("audio: no duration in metadata")
	// ErrNoAudioStream is returned when the input has no audio stream.
	ErrNoAudioStream = errors.New("audio: no audio stream")
	// ErrDecode is returned when the header reads but the stream does not decode.
	ErrDecode = errors.New("audio: stream does not decode")
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	streamRe   = regexp.MustCompile(`Stream #\d+:\d+[^:]*: Audio:\s*([^\s,]+)[^,]*(?:,\s*(\d+)\s*Hz)?`)
)

// Metadata describes a loaded audio clip.
type Metadata struct {
	Duration   time.Duration
	Codec      string
	SampleRate int
}

// Seconds returns the duration in seconds.
func (m Metadata) Seconds() float64 {
	return m.Duration.Seconds()
}

// Prober loads audio metadata.
type Prober interface {
	Metadata(ctx context.Context, path string) (Metadata, error)
}

// FFmpegProber implements Prober by reading the ffmpeg input banner.
type FFmpegProber struct {
	ffmpegPath string
}

// NewFFmpegProber creates a new FFmpegProber.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegProber(ffmpegPath string) *FFmpegProber {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProber{ffmpegPath: ffmpegPath}
}

// Metadata decodes the input header of an audio file.
func (p *FFmpegProber) Metadata(ctx context.Context, path string) (Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return Metadata{}, fmt.Errorf("audio: stat input: %w", err)
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner",
		"-i", path,
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes input info to stderr before decoding, so the banner is
	// parsed first to report the most specific failure.
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Metadata{}, fmt.Errorf("audio: probe cancelled: %w", ctx.Err())
	}
	return readRun(stderr.String(), runErr)
}

// readRun turns one ffmpeg run into metadata. A clip whose header parses but
// whose body fails to decode is rejected: it could not be recorded either.
func readRun(output string, runErr error) (Metadata, error) {
	md, err := parseMetadata(output)
	switch {
	case err != nil && runErr != nil:
		return Metadata{}, fmt.Errorf("%w (ffmpeg: %v)", err, runErr)
	case err != nil:
		return Metadata{}, err
	case runErr != nil:
		return Metadata{}, fmt.Errorf("%w: %w", ErrDecode, runErr)
	}
	return md, nil
}

// parseMetadata extracts duration, codec and sample rate from ffmpeg stderr.
func parseMetadata(output string) (Metadata, error) {
	stream := streamRe.FindStringSubmatch(output)
	if stream == nil {
		return Metadata{}, ErrNoAudioStream
	}

	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return Metadata{}, ErrNoDuration
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat(matches[4], 64)

	// Fraction precision varies between ffmpeg builds
	divisor := 1.0
	for i := 0; i < len(matches[4]); i++ {
		divisor *= 10
	}

	total := hours*3600 + minutes*60 + seconds + frac/divisor
	if total <= 0 {
		return Metadata{}, ErrNoDuration
	}

	md := Metadata{
		Duration: time.Duration(total * float64(time.Second)),
		Codec:    stream[1],
	}
	if stream[2] != "" {
		md.SampleRate, _ = strconv.Atoi(stream[2])
	}
	return md, nil
}

// Verify interface implementation at compile time.
var _ Prober = (*FFmpegProber)(nil)
