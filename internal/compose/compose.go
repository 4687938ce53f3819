// Package compose turns a still image and a narration clip into one video file:
// the image held static for the length of the audio, with the audio attached.
//
// A composition runs as a linear pipeline. The image is loaded and decoded, the
// audio is loaded and its metadata read, the capture toolchain records the still
// frame at a fixed frame rate together with the audio until the audio ends, and
// the recorded chunks are packaged into a named file. Every composition owns its
// capture process and temporary inputs and releases them before it returns.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Static errors for composition.
var (
	// ErrResourceLoad is returned when the image or audio cannot be fetched,
	// decoded, or have its metadata read.
	ErrResourceLoad = errors.New("compose: resource could not be loaded")
	// ErrUnsupported is returned when the runtime has no audio capture toolchain
	// or none of the output containers can be produced.
	ErrUnsupported = errors.New("compose: audio capture is not supported in this runtime")
	// ErrCompose is returned for unexpected failures during capture or recording.
	ErrCompose = errors.New("compose: composition failed")
)

// State is a step of a single composition.
type State string

const (
	StateIdle         State = "idle"
	StateLoadingImage State = "loading-image"
	StateLoadingAudio State = "loading-audio"
	StateCapturing    State = "capturing"
	StateRecording    State = "recording"
	StateSucceeded    State = "stopped-success"
	StateFailed       State = "failed"
)

// IsTerminal returns true for the success and failure states.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Error reports the state a composition failed in.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compose: %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Source is the part of a generation the compositor reads.
type Source struct {
	// ID identifies the generation in logs.
	ID string
	// Prompt names the output file.
	Prompt string
	// ImageURL is an http(s) URL or a data URL.
	ImageURL string
	// AudioURL is an http(s) URL or a data URL. Empty means nothing to compose.
	AudioURL string
}

// File is a packaged composition.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the length of the file content in bytes.
func (f *File) Size() int {
	return len(f.Data)
}

// Reader returns a reader over the file content.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}
