package jobs

import (
	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/models"
)

/**
request body for POST /run
*/
type RunRequest struct {
	Uuid  string `json:"uuid" validate:"required"`
	Query string `json:"query" validate:"required"`
}

type RunResponse struct {
	Uuid   string           `json:"uuid"`
	Status models.JobStatus `json:"status"`
}

/**
what the long poll and the push channels send. TimedOut marks a wait that ran out, not a failed job.
*/
type ResultResponse struct {
	Uuid     string           `json:"uuid"`
	Status   models.JobStatus `json:"status"`
	Url      string           `json:"url,omitempty"`
	Error    string           `json:"error,omitempty"`
	TimedOut bool             `json:"timed_out,omitempty"`
}

func resultResponseFor(jobId uuid.UUID, record *models.JobRecord, timedOut bool) ResultResponse {
	return ResultResponse{
		Uuid:     jobId.String(),
		Status:   record.Status,
		Url:      record.Url,
		Error:    record.Error,
		TimedOut: timedOut,
	}
}
