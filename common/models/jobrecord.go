package models

import (
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JOB_PENDING    JobStatus = "pending"
	JOB_PROCESSING JobStatus = "processing"
	JOB_COMPLETED  JobStatus = "completed"
	JOB_FAILED     JobStatus = "failed"
)

var terminalStatuses = mapset.NewSetFromSlice([]interface{}{JOB_COMPLETED, JOB_FAILED})

func (s JobStatus) IsTerminal() bool {
	return terminalStatuses.Contains(s)
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JOB_PENDING, JOB_PROCESSING, JOB_COMPLETED, JOB_FAILED:
		return true
	default:
		return false
	}
}

/**
rank gives the position of a status in the lifecycle. A record may only move to a status of higher rank.
*/
func (s JobStatus) rank() int {
	switch s {
	case JOB_PENDING:
		return 0
	case JOB_PROCESSING:
		return 1
	case JOB_COMPLETED, JOB_FAILED:
		return 2
	default:
		return -1
	}
}

type JobRecord struct {
	Uuid      uuid.UUID `json:"uuid" mapstructure:"uuid"`
	Status    JobStatus `json:"status" mapstructure:"status"`
	Query     string    `json:"query" mapstructure:"query"`
	Url       string    `json:"url,omitempty" mapstructure:"url"`
	Error     string    `json:"error,omitempty" mapstructure:"error"`
	RunId     string    `json:"-" mapstructure:"run_id"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`
}

/**
the client-facing view of a job record
*/
type JobStatusResponse struct {
	Uuid   string    `json:"uuid"`
	Status JobStatus `json:"status"`
	Url    string    `json:"url,omitempty"`
	Error  string    `json:"error,omitempty"`
}

func (r *JobRecord) ToResponse() JobStatusResponse {
	return JobStatusResponse{
		Uuid:   r.Uuid.String(),
		Status: r.Status,
		Url:    r.Url,
		Error:  r.Error,
	}
}
