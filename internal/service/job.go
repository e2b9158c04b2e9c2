package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"docex/internal/metrics"
	"docex/internal/model"
	"docex/internal/repository"
	"docex/internal/worker"
)

var (
	ErrIDRequired = errors.New("job id is required")
	ErrNotFound   = errors.New("job not found")
	// ErrBusy means the job was created but no runner could be scheduled; the job
	// has already been marked failed.
	ErrBusy = errors.New("extraction queue is full")
)

// QueueFullMessage is recorded on jobs rejected by a saturated worker queue.
const QueueFullMessage = "Job queue is full, please resubmit later"

// Dispatcher schedules a background task. worker.Pool satisfies it.
type Dispatcher interface {
	Submit(t worker.Task) error
}

// JobService is the boundary used by HTTP handlers to create and inspect jobs.
type JobService interface {
	// Submit registers a pending job and schedules exactly one task runner for it.
	// It never waits for the extraction itself.
	Submit(ctx context.Context, filename string, image []byte) (*model.Job, error)

	// Get returns a single job by its ID.
	Get(ctx context.Context, id string) (*model.Job, error)

	// List returns every job currently held.
	List(ctx context.Context) ([]model.Job, error)

	// Cleanup removes expired jobs and reports how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Stats summarizes the jobs currently held.
	Stats(ctx context.Context) (repository.JobStats, error)
}

type jobService struct {
	repo       repository.JobRepository
	runner     *TaskRunner
	reaper     *Reaper
	dispatcher Dispatcher
	metrics    *metrics.JobMetrics
	log        logrus.FieldLogger
	newID      func() string
}

// NewJobService constructs a JobService.
func NewJobService(repo repository.JobRepository, runner *TaskRunner, reaper *Reaper, d Dispatcher, m *metrics.JobMetrics, log logrus.FieldLogger) JobService {
	return &jobService{
		repo:       repo,
		runner:     runner,
		reaper:     reaper,
		dispatcher: d,
		metrics:    m,
		log:        log.WithField("component", "job_service"),
		newID:      uuid.NewString,
	}
}

func (s *jobService) Submit(ctx context.Context, filename string, image []byte) (*model.Job, error) {
	if filename == "" {
		filename = "document.jpg"
	}
	id := s.newID()

	// The record exists before the runner is scheduled, so the runner never races creation.
	job, err := s.repo.Create(ctx, id, filename, image)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			s.log.WithField("job_id", id).Error("duplicate_job_id")
		}
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.metrics.Submitted()

	err = s.dispatcher.Submit(worker.Task{
		Key: id,
		// The runner must outlive the HTTP request, so it runs on the pool's context.
		Run: func(ctx context.Context) { s.runner.Run(ctx, id) },
	})
	if err != nil {
		s.log.WithError(err).WithField("job_id", id).Error("job_dispatch_failed")
		s.runner.Fail(context.WithoutCancel(ctx), id, QueueFullMessage)
		return nil, fmt.Errorf("dispatch job %s: %w", id, ErrBusy)
	}

	s.log.WithFields(logrus.Fields{"job_id": id, "filename": filename, "image_bytes": len(image)}).Info("job_submitted")
	return job, nil
}

func (s *jobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context) ([]model.Job, error) {
	return s.repo.List(ctx)
}

func (s *jobService) Cleanup(ctx context.Context) (int, error) {
	return s.reaper.Sweep(ctx)
}

func (s *jobService) Stats(ctx context.Context) (repository.JobStats, error) {
	return s.repo.Stats(ctx)
}
