// Package server provides the HTTP server for the Moments API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/moments-api/internal/job"
	"github.com/maauso/moments-api/internal/result"
	"github.com/maauso/moments-api/internal/speech"
)

// GenerateRequest is the HTTP request body for generating an image from text.
type GenerateRequest struct {
	// Prompt describes the image.
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// EditRequest is the HTTP request body for editing an image.
// Either BaseResultID or Image must be set.
type EditRequest struct {
	// BaseResultID edits the image of an existing result.
	BaseResultID string `json:"base_result_id" validate:"required_without=Image"`
	// Image is an uploaded image as a data URL.
	Image string `json:"image" validate:"omitempty,datauri"`
	// Prompt describes the edit.
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// EnhanceRequest is the HTTP request body for enhancing a prompt.
type EnhanceRequest struct {
	Prompt string `json:"prompt" validate:"max=2000"`
}

// PromptResponse is the HTTP response for prompt helpers.
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

// NarrateRequest is the HTTP request body for narrating a result.
type NarrateRequest struct {
	// Text is spoken over the image.
	Text string `json:"text" validate:"required,max=5000"`
	// VoiceID selects the voice; empty uses the default voice.
	VoiceID string `json:"voice_id"`
}

// AnimateRequest is the HTTP request body for animating a result.
type AnimateRequest struct {
	// Prompt optionally describes the motion.
	Prompt string `json:"prompt" validate:"max=1000"`
}

// ResultResponse is the HTTP representation of a generation result.
type ResultResponse struct {
	ID            string    `json:"id"`
	Prompt        string    `json:"prompt"`
	ImageURL      string    `json:"image_url"`
	RevisedPrompt string    `json:"revised_prompt,omitempty"`
	AltText       string    `json:"alt_text"`
	AudioURL      string    `json:"audio_url,omitempty"`
	AudioPrompt   string    `json:"audio_prompt,omitempty"`
	VoiceID       string    `json:"voice_id,omitempty"`
	VideoURL      string    `json:"video_url,omitempty"`
	MediaState    string    `json:"media_state"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newResultResponse(r *result.Result) ResultResponse {
	return ResultResponse{
		ID:            r.ID,
		Prompt:        r.Prompt,
		ImageURL:      r.ImageURL,
		RevisedPrompt: r.RevisedPrompt,
		AltText:       r.AltText,
		AudioURL:      r.AudioURL,
		AudioPrompt:   r.AudioPrompt,
		VoiceID:       r.VoiceID,
		VideoURL:      r.VideoURL,
		MediaState:    string(r.MediaState()),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// ListResponse is the HTTP response for listing results.
type ListResponse struct {
	Results []ResultResponse `json:"results"`
}

// VoicesResponse is the HTTP response for the voice table.
type VoicesResponse struct {
	Voices []speech.Voice `json:"voices"`
}

// CreateJobResponse is the HTTP response after starting an animation job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting animation job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// ResultID is the animated result.
	ResultID string `json:"result_id"`
	// Provider is the image-to-video provider.
	Provider string `json:"provider"`
	// Status is the current job status.
	Status string `json:"status"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// VideoURL is the finished video: an S3 URL or a data URL.
	VideoURL string `json:"video_url,omitempty"`
}

func newJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:       j.ID,
		ResultID: j.ResultID,
		Provider: string(j.Provider),
		Status:   string(j.Status),
		Error:    j.Error,
		VideoURL: j.VideoURL,
	}
}

// ListJobsResponse lists the animation jobs of one result.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ShareResponse is the HTTP response after sharing a result.
type ShareResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Compose reports whether narrated videos can be composed.
	Compose bool `json:"compose"`
}
