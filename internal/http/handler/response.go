package handler

import (
	"time"

	"docex/internal/model"
)

// SubmitResponse is returned when a document has been accepted for extraction.
type SubmitResponse struct {
	JobID   string          `json:"job_id"`
	Status  model.JobStatus `json:"status" swaggertype:"string" enums:"pending,processing,completed,failed"`
	Message string          `json:"message"`
}

// JobStatusResponse is the public view of a job.
type JobStatusResponse struct {
	JobID       string                  `json:"job_id"`
	Status      model.JobStatus         `json:"status" swaggertype:"string" enums:"pending,processing,completed,failed"`
	CreatedAt   time.Time               `json:"created_at"`
	CompletedAt *time.Time              `json:"completed_at"`
	Result      *model.ExtractionResult `json:"result"`
	Error       *string                 `json:"error"`
}

// CleanupResponse reports the outcome of a reaper sweep.
type CleanupResponse struct {
	RemovedCount int    `json:"removed_count"`
	Message      string `json:"message"`
}

func toJobStatusResponse(j *model.Job) JobStatusResponse {
	res := JobStatusResponse{
		JobID:       j.ID,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
	if j.Error != "" {
		e := j.Error
		res.Error = &e
	}
	return res
}
