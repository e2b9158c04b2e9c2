package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docex/internal/extractor"
	"docex/internal/metrics"
	"docex/internal/model"
	"docex/internal/repository"
)

// ImageMissingMessage is recorded on a job whose payload vanished before extraction.
const ImageMissingMessage = "Image data not found"

var tracer = otel.Tracer("docex/internal/service")

// TaskRunner drives a single job from pending to a terminal status.
type TaskRunner struct {
	repo      repository.JobRepository
	extractor extractor.Extractor
	timeout   time.Duration
	metrics   *metrics.JobMetrics
	log       logrus.FieldLogger
}

// NewTaskRunner constructs a TaskRunner. timeout bounds each extraction call.
func NewTaskRunner(repo repository.JobRepository, ex extractor.Extractor, timeout time.Duration, m *metrics.JobMetrics, log logrus.FieldLogger) *TaskRunner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TaskRunner{
		repo:      repo,
		extractor: ex,
		timeout:   timeout,
		metrics:   m,
		log:       log.WithField("component", "task_runner"),
	}
}

// Run processes jobID. Failures are recorded on the job itself; a job that
// disappears mid-run (reaped) ends the run silently.
func (r *TaskRunner) Run(ctx context.Context, jobID string) {
	ctx, span := tracer.Start(ctx, "TaskRunner.Run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("job.id", jobID)),
	)
	defer span.End()

	defer r.metrics.Started()()
	log := r.log.WithField("job_id", jobID)

	job, err := r.repo.UpdateStatus(ctx, jobID, repository.JobUpdate{Status: model.StatusProcessing})
	if err != nil {
		r.abort(log, err, "mark_processing")
		return
	}
	log.Info("job_processing")

	image, err := r.repo.GetImage(ctx, jobID)
	if err != nil || len(image) == 0 {
		log.Error("job_image_missing")
		r.finish(ctx, log, jobID, repository.JobUpdate{Status: model.StatusFailed, Error: ImageMissingMessage})
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	start := time.Now()
	result, err := r.extractor.Extract(callCtx, image, job.Filename)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		r.metrics.ObserveExtraction(metrics.OutcomeFailed, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		log.WithError(err).WithField("elapsed_ms", elapsed.Milliseconds()).Error("job_extraction_failed")
		r.finish(ctx, log, jobID, repository.JobUpdate{Status: model.StatusFailed, Error: err.Error()})
		return
	}

	r.metrics.ObserveExtraction(metrics.OutcomeCompleted, elapsed)
	r.finish(ctx, log, jobID, repository.JobUpdate{Status: model.StatusCompleted, Result: result})
}

// Fail marks a job failed outside the normal flow (recovered panic, queue rejection).
func (r *TaskRunner) Fail(ctx context.Context, jobID, message string) {
	log := r.log.WithField("job_id", jobID)
	r.finish(ctx, log, jobID, repository.JobUpdate{Status: model.StatusFailed, Error: message})
}

// HandlePanic is a worker.PanicHandler that records a recovered panic on the job.
func (r *TaskRunner) HandlePanic(jobID string, recovered any) {
	r.metrics.Panicked()
	r.Fail(context.Background(), jobID, fmt.Sprintf("internal error: %v", recovered))
}

func (r *TaskRunner) finish(ctx context.Context, log logrus.FieldLogger, jobID string, upd repository.JobUpdate) {
	job, err := r.repo.UpdateStatus(ctx, jobID, upd)
	if err != nil {
		r.abort(log, err, "mark_"+upd.Status.String())
		return
	}
	r.metrics.Finished(job.Status.String())
	log.WithField("status", job.Status.String()).Info("job_finished")
}

func (r *TaskRunner) abort(log logrus.FieldLogger, err error, step string) {
	r.metrics.Finished(metrics.OutcomeAborted)
	if errors.Is(err, repository.ErrNotFound) {
		log.WithField("step", step).Debug("job_gone")
		return
	}
	log.WithError(err).WithField("step", step).Warn("job_update_rejected")
}
