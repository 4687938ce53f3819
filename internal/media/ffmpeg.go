package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultFrameRate is the frame rate of the still video track.
const DefaultFrameRate = 30

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrMissingInput is returned when the image or audio path is empty.
	ErrMissingInput = errors.New("image and audio inputs are required")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Binary returns the ffmpeg binary this processor runs.
func (p *FFmpegProcessor) Binary() string {
	return p.ffmpegPath
}

// WithBinary returns a copy of the processor that runs the given ffmpeg binary.
func (p *FFmpegProcessor) WithBinary(path string) *FFmpegProcessor {
	cp := *p
	cp.ffmpegPath = path
	return &cp
}

// Encoders lists the encoders reported by `ffmpeg -encoders`.
func (p *FFmpegProcessor) Encoders(ctx context.Context) ([]string, error) {
	args := []string{"-hide_banner", "-encoders"}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}

	return parseEncoders(stdout.String()), nil
}

// parseEncoders extracts encoder names from `ffmpeg -encoders` output.
// Entries follow a "------" separator line as "<flags> <name> <description>".
func parseEncoders(output string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			if strings.HasPrefix(line, "---") {
				listing = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		names = append(names, fields[1])
	}
	return names
}

// Capture starts ffmpeg with the still image looped as the video input and the
// audio as the second input. The muxed container is written to stdout.
func (p *FFmpegProcessor) Capture(ctx context.Context, spec StillSpec) (Stream, error) {
	args, err := stillArgs(spec)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(runCtx, p.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}

	c := &capture{
		parent: ctx,
		cmd:    cmd,
		args:   args,
		stdout: stdout,
		stderr: stderr,
		cancel: cancel,
	}
	c.running.Store(true)
	return c, nil
}

// stillArgs builds the ffmpeg argument list for a still capture.
func stillArgs(spec StillSpec) ([]string, error) {
	if spec.ImagePath == "" || spec.AudioPath == "" {
		return nil, ErrMissingInput
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, spec.Width, spec.Height)
	}
	if spec.Duration <= 0 {
		return nil, fmt.Errorf("%w: got %.2f", ErrInvalidDuration, spec.Duration)
	}

	fps := spec.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	fpsArg := strconv.Itoa(fps)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-loop", "1", // Hold the single frame
		"-framerate", fpsArg,
		"-i", spec.ImagePath,
		"-i", spec.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", spec.VideoCodec,
	}
	if spec.VideoCodec == "libx264" {
		args = append(args, "-tune", "stillimage")
	}
	if spec.PixelFormat != "" {
		args = append(args, "-pix_fmt", spec.PixelFormat)
	}
	args = append(args,
		"-r", fpsArg,
		"-c:a", spec.AudioCodec,
		"-t", strconv.FormatFloat(spec.Duration, 'f', 3, 64),
		"-shortest", // Audio end stops the recording
		"-f", spec.Muxer,
	)
	args = append(args, spec.MuxerArgs...)
	args = append(args, "pipe:1")

	return args, nil
}

// capture is a running ffmpeg still capture.
type capture struct {
	parent context.Context
	cmd    *exec.Cmd
	args   []string
	stdout io.ReadCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc

	waitOnce sync.Once
	waitErr  error
	running  atomic.Bool
}

func (c *capture) Output() io.Reader {
	return c.stdout
}

func (c *capture) Wait() error {
	c.waitOnce.Do(func() {
		err := c.cmd.Wait()
		c.running.Store(false)
		c.cancel()
		if err == nil {
			return
		}
		if c.parent.Err() != nil {
			c.waitErr = fmt.Errorf("ffmpeg cancelled: %w", c.parent.Err())
			return
		}
		c.waitErr = &FFmpegError{Args: c.args, Stderr: c.stderr.String(), Err: err}
	})
	return c.waitErr
}

func (c *capture) Stop() {
	c.cancel()
	_ = c.Wait()
}

func (c *capture) Running() bool {
	return c.running.Load()
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// GetMediaDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)
