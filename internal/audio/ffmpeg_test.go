package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestWAV creates a sine tone WAV of the given duration.
func createTestWAV(t *testing.T, outputPath string, durationSec float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:duration=%.3f", durationSec),
		"-ar", "16000", "-ac", "1",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test WAV: %v\n%s", err, output)
	}
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantErr    error
		duration   time.Duration
		codec      string
		sampleRate int
	}{
		{
			name: "mp3",
			output: `Input #0, mp3, from 'narration.mp3':
  Duration: 00:00:03.20, start: 0.025057, bitrate: 128 kb/s
  Stream #0:0: Audio: mp3 (mp3float), 44100 Hz, mono, fltp, 128 kb/s`,
			duration:   3200 * time.Millisecond,
			codec:      "mp3",
			sampleRate: 44100,
		},
		{
			name: "aac in mp4 with language tag",
			output: `  Duration: 01:02:03.5, start: 0.000000, bitrate: 130 kb/s
  Stream #0:0(und): Audio: aac (LC) (mp4a / 0x6134706D), 48000 Hz, stereo, fltp`,
			duration:   time.Hour + 2*time.Minute + 3500*time.Millisecond,
			codec:      "aac",
			sampleRate: 48000,
		},
		{
			name: "image only",
			output: `  Duration: 00:00:00.04, start: 0.000000, bitrate: N/A
  Stream #0:0: Video: png, rgb24(pc), 512x512, 25 fps`,
			wantErr: ErrNoAudioStream,
		},
		{
			name:    "no duration",
			output:  `  Stream #0:0: Audio: pcm_s16le, 16000 Hz, mono, s16`,
			wantErr: ErrNoDuration,
		},
		{
			name: "zero duration",
			output: `  Duration: 00:00:00.00, start: 0.000000
  Stream #0:0: Audio: opus, 48000 Hz, mono`,
			wantErr: ErrNoDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := parseMetadata(tt.output)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.duration, md.Duration)
			assert.Equal(t, tt.codec, md.Codec)
			assert.Equal(t, tt.sampleRate, md.SampleRate)
		})
	}
}

func TestFFmpegProber_Metadata(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	createTestWAV(t, path, 2.5)

	md, err := NewFFmpegProber("").Metadata(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, md.Seconds(), 0.05)
	assert.Equal(t, 16000, md.SampleRate)
	assert.Equal(t, "pcm_s16le", md.Codec)
}

func TestFFmpegProber_CorruptInput(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "garbage.mp3")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0600))

	_, err := NewFFmpegProber("").Metadata(context.Background(), path)
	assert.Error(t, err)
}

const mp3Banner = `Input #0, mp3, from 'narration.mp3':
  Duration: 00:00:03.20, start: 0.025057, bitrate: 128 kb/s
  Stream #0:0: Audio: mp3 (mp3float), 44100 Hz, mono, fltp, 128 kb/s`

func TestReadRun(t *testing.T) {
	exit := errors.New("exit status 1")

	md, err := readRun(mp3Banner, nil)
	require.NoError(t, err)
	assert.Equal(t, 3200*time.Millisecond, md.Duration)

	_, err = readRun(mp3Banner, exit)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, exit)

	_, err = readRun("", exit)
	assert.ErrorIs(t, err, ErrNoAudioStream)
	assert.NotErrorIs(t, err, ErrDecode)
}

func TestFFmpegProber_HeaderReadsBodyFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()

	// Stands in for ffmpeg on a clip whose frames are corrupt past the header.
	bin := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\ncat >&2 <<'EOF'\n" + mp3Banner + "\n[mp3float @ 0x1] Header missing\nEOF\nexit 1\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	path := filepath.Join(dir, "narration.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o600))

	_, err := NewFFmpegProber(bin).Metadata(context.Background(), path)
	require.ErrorIs(t, err, ErrDecode)

	var exitErr *exec.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestFFmpegProber_NonExistentFile(t *testing.T) {
	_, err := NewFFmpegProber("").Metadata(context.Background(), "/non/existent/file.wav")
	assert.Error(t, err)
}

func TestFFmpegProber_ContextCancellation(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	createTestWAV(t, path, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFFmpegProber("").Metadata(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFFmpegProber_DefaultPath(t *testing.T) {
	assert.Equal(t, "ffmpeg", NewFFmpegProber("").ffmpegPath)
	assert.Equal(t, "/opt/ffmpeg", NewFFmpegProber("/opt/ffmpeg").ffmpegPath)
}
