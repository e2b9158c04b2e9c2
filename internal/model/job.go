package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an extraction job.
// The zero value is not a valid status.
type JobStatus uint8

const (
	StatusPending JobStatus = iota + 1
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = map[JobStatus]string{
	StatusPending:    "pending",
	StatusProcessing: "processing",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

// ParseJobStatus converts the wire representation back into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown job status %q", s)
}

func (s JobStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses; both terminal statuses share the highest rank.
func (s JobStatus) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
// Terminal statuses accept no transition at all, so at most one terminal value is ever reached.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid job status %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	st, err := ParseJobStatus(str)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ExtractionResult holds the fields recognized on a document image.
// Field values are nil when the model reported them as not visible.
type ExtractionResult struct {
	DocumentType *string           `json:"document_type"`
	Fields       map[string]*string `json:"fields"`
	RawResponse  string            `json:"raw_response"`
}

// Clone returns a deep copy so callers cannot mutate registry-owned state.
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	out := &ExtractionResult{RawResponse: r.RawResponse}
	if r.DocumentType != nil {
		dt := *r.DocumentType
		out.DocumentType = &dt
	}
	out.Fields = make(map[string]*string, len(r.Fields))
	for k, v := range r.Fields {
		if v == nil {
			out.Fields[k] = nil
			continue
		}
		val := *v
		out.Fields[k] = &val
	}
	return out
}

// Job represents one submitted document and its extraction outcome.
// Result is set only for completed jobs and Error only for failed ones.
type Job struct {
	ID          string            `json:"job_id"`
	Status      JobStatus         `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Filename    string            `json:"filename"`
	Result      *ExtractionResult `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	out.Result = j.Result.Clone()
	return &out
}

// StringPtr is a small helper for building nullable field values.
func StringPtr(s string) *string { return &s }
