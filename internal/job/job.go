// Package job provides the animation Job aggregate: one image-to-video request
// for a generation record, with a state machine aligned with provider states,
// its repository, and the service that runs it.
package job

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/maauso/moments-api/internal/job/id"
)

// Provider represents the image-to-video provider for the job.
type Provider string

const (
	// ProviderVeo uses Google Veo through the Gemini API.
	ProviderVeo Provider = "veo"
	// ProviderRunPod uses a RunPod serverless endpoint.
	ProviderRunPod Provider = "runpod"
	// ProviderBeam uses a Beam.cloud task queue.
	ProviderBeam Provider = "beam"
)

// IsValid returns true if the provider is valid.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderVeo, ProviderRunPod, ProviderBeam:
		return true
	}
	return false
}

// Status is the state of an animation job. Provider states are mapped onto
// these by the animate adapters.
type Status string

const (
	StatusInQueue   Status = "IN_QUEUE"  // accepted, not yet submitted
	StatusRunning   Status = "RUNNING"   // submitted to the provider
	StatusCompleted Status = "COMPLETED" // video stored on the result
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusTimedOut  Status = "TIMED_OUT"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// transitions lists the states reachable from each state.
var transitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: nil,
	StatusFailed:    nil,
	StatusCancelled: nil,
	StatusTimedOut:  nil,
}

// Job represents an animation job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// ResultID is the generation record being animated.
	ResultID string
	// Provider is the image-to-video provider.
	Provider Provider
	// ProviderJobID is the ID assigned by the provider.
	ProviderJobID string
	// Status is the current job state.
	Status Status
	// Prompt is the motion prompt.
	Prompt string
	// Error contains any error message if the job failed.
	Error string
	// VideoURL is where the finished video was stored: an S3 URL or a data URL.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates an IN_QUEUE job for the given result.
func New(resultID string, provider Provider) *Job {
	return NewWithID(id.Generate(), resultID, provider)
}

// NewWithID creates an IN_QUEUE job with the given ID.
func NewWithID(jobID, resultID string, provider Provider) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		ResultID:  resultID,
		Provider:  provider,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !slices.Contains(transitions[j.Status], status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, j.Status, status)
	}

	j.Status = status
	j.UpdatedAt = time.Now()
	if status == StatusRunning {
		j.StartedAt = j.UpdatedAt
	}
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start marks the job as submitted to the provider.
func (j *Job) Start() error { return j.TransitionTo(StatusRunning) }

// Complete marks the video as stored.
func (j *Job) Complete() error { return j.TransitionTo(StatusCompleted) }

// Cancel marks the job as cancelled.
func (j *Job) Cancel() error { return j.TransitionTo(StatusCancelled) }

// Timeout marks the job as timed out.
func (j *Job) Timeout() error { return j.TransitionTo(StatusTimedOut) }

// Fail marks the job as failed with msg. The message is kept only when the
// transition is allowed.
func (j *Job) Fail(msg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = msg
	j.mu.Unlock()
	return nil
}

// GetStatus returns the current status.
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetProviderJobID records the ID assigned by the provider.
func (j *Job) SetProviderJobID(providerJobID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ProviderJobID = providerJobID
	j.UpdatedAt = time.Now()
}

// SetOutput sets the stored video URL.
func (j *Job) SetOutput(videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool {
	return j.GetStatus().IsTerminal()
}

// Clone returns an unlocked copy of the job.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:            j.ID,
		ResultID:      j.ResultID,
		Provider:      j.Provider,
		ProviderJobID: j.ProviderJobID,
		Status:        j.Status,
		Prompt:        j.Prompt,
		Error:         j.Error,
		VideoURL:      j.VideoURL,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}
