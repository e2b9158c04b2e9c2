package repository

import (
	"context"
	"errors"
	"time"

	"docex/internal/model"
)

var (
	// ErrNotFound is returned when no job exists for the given ID.
	ErrNotFound = errors.New("job not found")
	// ErrDuplicateID is returned by Create when the ID is already registered.
	ErrDuplicateID = errors.New("duplicate job id")
	// ErrInvalidTransition is returned when a status update would move a job backwards
	// or out of a terminal status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobUpdate describes a status change. Result is only honoured for StatusCompleted
// and Error only for StatusFailed.
type JobUpdate struct {
	Status model.JobStatus
	Result *model.ExtractionResult
	Error  string
}

// JobStats is a point-in-time summary of the registry contents.
type JobStats struct {
	ByStatus   map[model.JobStatus]int
	Images     int
	ImageBytes int64
}

// JobRepository owns every job record and the image payloads waiting to be processed.
// Implementations must be safe for concurrent use and must return copies, never
// references to stored records.
type JobRepository interface {
	// Create registers a pending job and stores its image under the same ID.
	Create(ctx context.Context, id, filename string, image []byte) (*model.Job, error)

	// Get returns a job by its ID.
	Get(ctx context.Context, id string) (*model.Job, error)

	// GetImage returns the stored image payload without removing it.
	GetImage(ctx context.Context, id string) ([]byte, error)

	// UpdateStatus applies a monotonic status transition. Moving into a terminal status
	// sets CompletedAt and releases the image payload within the same call.
	UpdateStatus(ctx context.Context, id string, upd JobUpdate) (*model.Job, error)

	// List returns a snapshot of all jobs.
	List(ctx context.Context) ([]model.Job, error)

	// RemoveExpired deletes every job created more than maxAge ago, whatever its status,
	// and returns how many were removed.
	RemoveExpired(ctx context.Context, maxAge time.Duration) (int, error)

	// Stats summarizes the registry contents.
	Stats(ctx context.Context) (JobStats, error)
}
