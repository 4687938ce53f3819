package result

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a result cannot be found by ID.
var ErrNotFound = errors.New("result not found")

// Repository defines the interface for result persistence.
type Repository interface {
	// Save persists a result, replacing any result with the same ID.
	Save(ctx context.Context, r *Result) error

	// FindByID retrieves a result by its ID.
	// Returns ErrNotFound if the result does not exist.
	FindByID(ctx context.Context, id string) (*Result, error)

	// Update applies fn to the stored result and saves it atomically.
	// Returns ErrNotFound if the result does not exist; an error from fn
	// leaves the stored result unchanged.
	Update(ctx context.Context, id string, fn func(*Result) error) (*Result, error)

	// List returns all results, newest first.
	List(ctx context.Context) ([]*Result, error)

	// Clear removes every result.
	Clear(ctx context.Context) error
}
