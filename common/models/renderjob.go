package models

import "time"

/**
request body for POST /trigger-rendering
*/
type RenderTriggerRequest struct {
	Uuid      string `json:"uuid" validate:"required"`
	Code      string `json:"code" validate:"required"`
	SceneName string `json:"scene_name" validate:"required"`
	Quality   string `json:"quality,omitempty" validate:"omitempty,oneof=low medium high production"`
}

type RenderTriggerResponse struct {
	Success bool      `json:"success"`
	Uuid    string    `json:"uuid"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

/**
response body for GET /render-result/{uuid}
*/
type RenderResultResponse struct {
	Success  bool      `json:"success"`
	Uuid     string    `json:"uuid"`
	Status   JobStatus `json:"status"`
	VideoUrl string    `json:"video_url,omitempty"`
	PublicId string    `json:"public_id,omitempty"`
	Error    string    `json:"error,omitempty"`
	TimedOut bool      `json:"timed_out,omitempty"`
}

/**
body that the CI pipeline posts to /webhook/render-complete once a render finishes
*/
type RenderWebhookPayload struct {
	Uuid        string     `json:"uuid" validate:"required"`
	Status      JobStatus  `json:"status" validate:"required,oneof=completed failed"`
	VideoUrl    string     `json:"video_url,omitempty" validate:"required_if=Status completed"`
	PublicId    string     `json:"public_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type RenderWebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Uuid    string `json:"uuid,omitempty"`
}
