// Package media provides still-image video capture and media probing on top of ffmpeg.
package media

import (
	"context"
	"io"
)

// StillSpec describes a capture of one still image held for the length of an audio clip.
type StillSpec struct {
	// ImagePath is the decoded-ready still image file.
	ImagePath string
	// AudioPath is the narration audio file.
	AudioPath string
	// Width and Height are the native pixel dimensions of the image.
	// The output keeps them exactly: no scaling, no padding.
	Width  int
	Height int
	// FrameRate of the derived video track. Defaults to DefaultFrameRate.
	FrameRate int
	// Duration bounds the recording in seconds, normally the audio duration.
	Duration float64
	// VideoCodec and AudioCodec are ffmpeg encoder names (e.g. libx264, aac).
	VideoCodec string
	AudioCodec string
	// PixelFormat of the video track (e.g. yuv420p).
	PixelFormat string
	// Muxer is the ffmpeg output format name (e.g. mp4, webm).
	Muxer string
	// MuxerArgs are extra output options for the muxer (e.g. -movflags ...).
	MuxerArgs []string
}

// Stream is a running capture whose muxed output is read as it is emitted.
type Stream interface {
	// Output returns the muxed container bytes in emission order.
	Output() io.Reader
	// Wait blocks until the capture has exited and its output is flushed.
	// Output must be drained before calling Wait.
	Wait() error
	// Stop halts the capture. It is safe to call more than once and after Wait.
	Stop()
	// Running reports whether the capture process is still alive.
	Running() bool
}

// Processor defines the media operations used by the compositor.
type Processor interface {
	// Encoders lists the encoder names the toolchain supports at call time.
	Encoders(ctx context.Context) ([]string, error)

	// Capture starts recording a still image with an audio track.
	Capture(ctx context.Context, spec StillSpec) (Stream, error)

	// GetMediaDuration returns the duration in seconds of a media file.
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}
