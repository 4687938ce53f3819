// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuid without dashes>
// Example: job-9b2e4c1a0f6d4d3b8a7e5c2f1d0e9a8b
func Generate() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s has the job ID format.
func Valid(s string) bool {
	raw, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
