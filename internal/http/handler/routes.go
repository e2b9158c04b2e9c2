package handler

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docex/internal/config"
	"docex/internal/model"
	"docex/internal/service"
)

const submitMessage = "Document submitted for extraction. Use the job ID to check status."

// ServerConfig returns the fiber settings the routes depend on. The request
// body is streamed so oversized uploads reach SubmitDocument and get the
// FILE_TOO_LARGE response instead of being cut off by the body limit.
func ServerConfig(upload config.UploadConfig) fiber.Config {
	return fiber.Config{
		ErrorHandler:      ErrorHandler(),
		BodyLimit:         upload.MaxFileSize + 1024*1024,
		StreamRequestBody: true,
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate between HTTP and the job service.
func RegisterRoutes(app *fiber.App, upload config.UploadConfig, jobSvc service.JobService) {
	app.Get("/", Root())
	app.Get("/health", HealthCheck(jobSvc))
	// Simple liveness probe
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api/extract")
	api.Post("/submit", SubmitDocument(upload, jobSvc))
	api.Get("/status/:job_id", GetJobStatus(jobSvc))
	api.Get("/jobs", ListJobs(jobSvc))
	api.Delete("/jobs/cleanup", CleanupJobs(jobSvc))
}

// Root describes the service and its endpoints.
func Root() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":        "DocEx API",
			"version":     "1.0.0",
			"description": "Document Information Extraction API",
			"endpoints": fiber.Map{
				"submit": "POST /api/extract/submit",
				"status": "GET /api/extract/status/{job_id}",
				"jobs":   "GET /api/extract/jobs",
			},
		})
	}
}

// HealthCheck reports the job registry contents.
//
// @Summary  Health check
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /health [get]
func HealthCheck(jobSvc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := jobSvc.Stats(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "job registry unavailable")
		}
		jobs := fiber.Map{}
		for _, s := range []model.JobStatus{model.StatusPending, model.StatusProcessing, model.StatusCompleted, model.StatusFailed} {
			jobs[s.String()] = st.ByStatus[s]
		}
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"jobs":        jobs,
			"images_held": st.Images,
			"image_bytes": st.ImageBytes,
		})
	}
}

// LivenessProbe always answers 200.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// SubmitDocument accepts an ID document image for asynchronous extraction.
//
// @Summary  Submit a document for extraction
// @Tags     extraction
// @Accept   multipart/form-data
// @Produce  json
// @Param    file  formData  file  true  "ID document image"
// @Success  200  {object}  SubmitResponse
// @Failure  400  {object}  errorPayload
// @Failure  503  {object}  errorPayload
// @Router   /api/extract/submit [post]
func SubmitDocument(upload config.UploadConfig, jobSvc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		if fh.Filename != "" {
			ext := strings.ToLower(filepath.Ext(fh.Filename))
			if !slices.Contains(upload.AllowedExtensions, ext) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_TYPE",
					fmt.Sprintf("File type '%s' not allowed. Allowed types: %s", ext, strings.Join(upload.AllowedExtensions, ", ")))
			}
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		content, err := io.ReadAll(io.LimitReader(f, int64(upload.MaxFileSize)+1))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}
		if len(content) > upload.MaxFileSize {
			return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE",
				fmt.Sprintf("File too large. Maximum size is %dMB", upload.MaxFileSize/(1024*1024)))
		}

		job, err := jobSvc.Submit(c.UserContext(), fh.Filename, content)
		if err != nil {
			if errors.Is(err, service.ErrBusy) {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_BUSY", "extraction queue is full, retry later")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(SubmitResponse{
			JobID:   job.ID,
			Status:  job.Status,
			Message: submitMessage,
		})
	}
}

// GetJobStatus returns the current state of a job and its result once available.
//
// @Summary  Check job status
// @Tags     extraction
// @Produce  json
// @Param    job_id  path  string  true  "Job ID"
// @Success  200  {object}  JobStatusResponse
// @Failure  404  {object}  errorPayload
// @Router   /api/extract/status/{job_id} [get]
func GetJobStatus(jobSvc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("job_id")
		job, err := jobSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrIDRequired) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Job '%s' not found", id))
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(toJobStatusResponse(job))
	}
}

// ListJobs returns every job currently held.
//
// @Summary  List jobs
// @Tags     extraction
// @Produce  json
// @Success  200  {array}  JobStatusResponse
// @Router   /api/extract/jobs [get]
func ListJobs(jobSvc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jobs, err := jobSvc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		out := make([]JobStatusResponse, 0, len(jobs))
		for i := range jobs {
			out = append(out, toJobStatusResponse(&jobs[i]))
		}
		return c.JSON(out)
	}
}

// CleanupJobs removes expired jobs.
//
// @Summary  Remove expired jobs
// @Tags     extraction
// @Produce  json
// @Success  200  {object}  CleanupResponse
// @Router   /api/extract/jobs/cleanup [delete]
func CleanupJobs(jobSvc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := jobSvc.Cleanup(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(CleanupResponse{
			RemovedCount: n,
			Message:      fmt.Sprintf("Cleaned up %d expired jobs", n),
		})
	}
}
