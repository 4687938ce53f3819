// Package animate provides the common interface for image-to-video providers.
// Veo (through genai), RunPod and Beam adapters implement it.
package animate

import (
	"context"
	"errors"
)

// Status represents the status of an animation job.
type Status string

// Common job statuses across providers.
const (
	StatusPending   Status = "PENDING"   // Job submitted but not yet running
	StatusInQueue   Status = "IN_QUEUE"  // Job waiting in queue
	StatusRunning   Status = "RUNNING"   // Job is currently processing
	StatusCompleted Status = "COMPLETED" // Job finished successfully
	StatusFailed    Status = "FAILED"    // Job failed with error
	StatusCancelled Status = "CANCELLED" // Job was cancelled
	StatusTimedOut  Status = "TIMED_OUT" // Job exceeded time limit
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// ErrDownloadUnsupported is returned by providers that only return inline video.
var ErrDownloadUnsupported = errors.New("animate: provider returns inline video only")

// SubmitOptions contains parameters for submitting a job.
type SubmitOptions struct {
	Prompt   string // Motion prompt
	MIMEType string // Media type of the source image
	Width    int    // Source width in pixels, when known
	Height   int    // Source height in pixels, when known
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Status      Status // Current job status
	VideoBase64 string // Base64-encoded video, when returned inline
	VideoURL    string // URL to download the video from (Veo returns file URIs)
	MIMEType    string // Media type of the video, when known
	Error       string // Error message (if failed)
}

// Generator defines the interface for image-to-video providers.
type Generator interface {
	// Submit sends an animation job and returns a job ID.
	Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (jobID string, err error)

	// Poll checks the status of a job and returns the result.
	Poll(ctx context.Context, jobID string) (PollResult, error)

	// Download fetches a finished video from its URL.
	Download(ctx context.Context, videoURL string) ([]byte, error)
}
