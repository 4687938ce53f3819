package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository stores animation jobs.
type Repository interface {
	// Save stores job, replacing any job with the same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID returns ErrJobNotFound for an unknown ID.
	FindByID(ctx context.Context, id string) (*Job, error)

	// ListByResult returns the jobs of a result, newest first.
	ListByResult(ctx context.Context, resultID string) ([]*Job, error)

	// Clear removes every job.
	Clear(ctx context.Context) error
}
