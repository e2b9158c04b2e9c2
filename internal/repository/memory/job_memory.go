package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docex/internal/model"
	"docex/internal/repository"
)

// JobMemory is an in-process implementation of repository.JobRepository.
// A single lock guards both the job map and the image map so that a terminal
// status and the release of its image are observed together.
type JobMemory struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	images map[string][]byte
	now    func() time.Time
}

// Option configures a JobMemory.
type Option func(*JobMemory)

// WithClock overrides the time source used for CreatedAt, CompletedAt and expiry.
func WithClock(now func() time.Time) Option {
	return func(m *JobMemory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewJobMemory creates an empty registry.
func NewJobMemory(opts ...Option) *JobMemory {
	m := &JobMemory{
		jobs:   make(map[string]*model.Job),
		images: make(map[string][]byte),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var _ repository.JobRepository = (*JobMemory)(nil)

// Create stores a new pending job together with a private copy of its image.
func (m *JobMemory) Create(_ context.Context, id, filename string, image []byte) (*model.Job, error) {
	buf := make([]byte, len(image))
	copy(buf, image)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; ok {
		return nil, fmt.Errorf("create %s: %w", id, repository.ErrDuplicateID)
	}
	job := &model.Job{
		ID:        id,
		Status:    model.StatusPending,
		CreatedAt: m.now(),
		Filename:  filename,
	}
	m.jobs[id] = job
	m.images[id] = buf
	return job.Clone(), nil
}

// Get returns a copy of the job.
func (m *JobMemory) Get(_ context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return job.Clone(), nil
}

// GetImage returns the stored payload. The slice is shared and must be treated as read-only.
func (m *JobMemory) GetImage(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	img, ok := m.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return img, nil
}

// UpdateStatus moves the job forward and, on a terminal status, stamps CompletedAt
// and drops the image before releasing the lock.
func (m *JobMemory) UpdateStatus(_ context.Context, id string, upd repository.JobUpdate) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !job.Status.CanTransitionTo(upd.Status) {
		return nil, fmt.Errorf("%s -> %s: %w", job.Status, upd.Status, repository.ErrInvalidTransition)
	}

	job.Status = upd.Status
	switch upd.Status {
	case model.StatusCompleted:
		job.Result = upd.Result.Clone()
		if job.Result == nil {
			job.Result = &model.ExtractionResult{Fields: map[string]*string{}}
		}
	case model.StatusFailed:
		job.Error = upd.Error
		if job.Error == "" {
			job.Error = "unknown error"
		}
	}
	if upd.Status.Terminal() {
		t := m.now()
		job.CompletedAt = &t
		delete(m.images, id)
	}
	return job.Clone(), nil
}

// List returns copies of all jobs ordered by creation time.
func (m *JobMemory) List(_ context.Context) ([]model.Job, error) {
	m.mu.RLock()
	out := make([]model.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *job.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// RemoveExpired deletes jobs whose CreatedAt is older than now-maxAge.
func (m *JobMemory) RemoveExpired(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := m.now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.CreatedAt.Before(threshold) {
			delete(m.jobs, id)
			delete(m.images, id)
			removed++
		}
	}
	return removed, nil
}

// Stats counts jobs per status and the images still held.
func (m *JobMemory) Stats(_ context.Context) (repository.JobStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := repository.JobStats{ByStatus: make(map[model.JobStatus]int, 4)}
	for _, job := range m.jobs {
		st.ByStatus[job.Status]++
	}
	for _, img := range m.images {
		st.Images++
		st.ImageBytes += int64(len(img))
	}
	return st, nil
}
