package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/moments-api/internal/apiclient"
	"github.com/maauso/moments-api/internal/compose"
	"github.com/maauso/moments-api/internal/dataurl"
	"github.com/maauso/moments-api/internal/imagegen"
	"github.com/maauso/moments-api/internal/job"
	"github.com/maauso/moments-api/internal/result"
	"github.com/maauso/moments-api/internal/speech"
	"github.com/maauso/moments-api/internal/studio"
)

// maxBodyBytes bounds JSON request bodies, which may carry inline images.
const maxBodyBytes = 32 << 20

// Studio is the set of use cases served over HTTP.
type Studio interface {
	Generate(ctx context.Context, prompt string) (*result.Result, error)
	Edit(ctx context.Context, in studio.EditInput) (*result.Result, error)
	InspirePrompt(ctx context.Context) (string, error)
	EnhancePrompt(ctx context.Context, prompt string) (string, error)
	Voices() []speech.Voice
	Narrate(ctx context.Context, id, text, voiceID string) (*result.Result, error)
	Animate(ctx context.Context, id, prompt string) (*job.Job, error)
	GetAnimation(ctx context.Context, jobID string) (*job.Job, error)
	ListAnimations(ctx context.Context, id string) ([]*job.Job, error)
	Download(ctx context.Context, id string) (*compose.File, error)
	Share(ctx context.Context, id string) (string, error)
	List(ctx context.Context) ([]*result.Result, error)
	Get(ctx context.Context, id string) (*result.Result, error)
	Clear(ctx context.Context) error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	studio         Studio
	validator      *validator.Validate
	logger         *slog.Logger
	composeTimeout time.Duration
	probe          func() compose.Capability
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithComposeTimeout bounds downloads and shares, which may compose a video.
func WithComposeTimeout(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		h.composeTimeout = d
	}
}

// WithCapabilityProbe reports composition support on the health endpoint.
func WithCapabilityProbe(probe func() compose.Capability) HandlerOption {
	return func(h *Handlers) {
		h.probe = probe
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(s Studio, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		studio:         s,
		validator:      validator.New(),
		logger:         logger,
		composeTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.probe != nil {
		resp.Compose = h.probe().Supported()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Voices handles GET /voices requests.
func (h *Handlers) Voices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VoicesResponse{Voices: h.studio.Voices()})
}

// InspirePrompt handles POST /prompts/inspire requests.
func (h *Handlers) InspirePrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.studio.InspirePrompt(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PromptResponse{Prompt: prompt})
}

// EnhancePrompt handles POST /prompts/enhance requests.
func (h *Handlers) EnhancePrompt(w http.ResponseWriter, r *http.Request) {
	var req EnhanceRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	prompt, err := h.studio.EnhancePrompt(r.Context(), req.Prompt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PromptResponse{Prompt: prompt})
}

// ListResults handles GET /results requests.
func (h *Handlers) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.studio.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := ListResponse{Results: make([]ResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, newResultResponse(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearResults handles DELETE /results requests.
func (h *Handlers) ClearResults(w http.ResponseWriter, r *http.Request) {
	if err := h.studio.Clear(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Generate handles POST /results requests.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	res, err := h.studio.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultResponse(res))
}

// Edit handles POST /results/edits requests.
func (h *Handlers) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	in := studio.EditInput{BaseResultID: req.BaseResultID, Prompt: req.Prompt}
	if in.BaseResultID == "" {
		mimeType, data, err := dataurl.Decode(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image must be a base64 data URL", "VALIDATION_ERROR")
			return
		}
		in.SourceImage, in.MIMEType = data, mimeType
	}

	res, err := h.studio.Edit(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultResponse(res))
}

// GetResult handles GET /results/{id} requests.
func (h *Handlers) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.studio.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

// Narrate handles POST /results/{id}/narration requests.
func (h *Handlers) Narrate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req NarrateRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	res, err := h.studio.Narrate(r.Context(), id, req.Text, req.VoiceID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

// Animate handles POST /results/{id}/animations requests.
// The job runs in the background; its status is read from GET /jobs/{id}.
func (h *Handlers) Animate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AnimateRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	created, err := h.studio.Animate(r.Context(), id, req.Prompt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("animation job created",
		slog.String("job_id", created.ID),
		slog.String("result_id", id),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.studio.GetAnimation(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(found))
}

// ListAnimations handles GET /results/{id}/animations requests.
func (h *Handlers) ListAnimations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	jobs, err := h.studio.ListAnimations(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, newJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Download handles GET /results/{id}/download requests: the composed video
// of a narrated result, otherwise the image.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.composeTimeout)
	defer cancel()

	file, err := h.studio.Download(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(file.Size()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Warn("failed to write download",
			slog.String("result_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// Share handles POST /results/{id}/share requests.
func (h *Handlers) Share(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.composeTimeout)
	defer cancel()

	url, err := h.studio.Share(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ShareResponse{URL: url})
}

// decode reads and validates a JSON body. An empty body is accepted when
// required is false.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any, required bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !(errors.Is(err, io.EOF) && !required) {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "result ID is required", "MISSING_RESULT_ID")
		return "", false
	}
	return id, true
}

// writeServiceError maps domain errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"

	switch {
	case errors.Is(err, result.ErrNotFound):
		status, code, message = http.StatusNotFound, "RESULT_NOT_FOUND", "result not found"
	case errors.Is(err, job.ErrJobNotFound):
		status, code, message = http.StatusNotFound, "JOB_NOT_FOUND", "job not found"
	case errors.Is(err, compose.ErrResourceLoad):
		status, code, message = http.StatusUnprocessableEntity, "RESOURCE_LOAD_FAILED", err.Error()
	case errors.Is(err, compose.ErrUnsupported):
		status, code, message = http.StatusNotImplemented, "CAPTURE_UNSUPPORTED", err.Error()
	case errors.Is(err, studio.ErrBusy):
		status, code, message = http.StatusConflict, "COMPOSITION_IN_PROGRESS", err.Error()
	case errors.Is(err, job.ErrAnimationInProgress):
		status, code, message = http.StatusConflict, "ANIMATION_IN_PROGRESS", err.Error()
	case errors.Is(err, studio.ErrUnknownVoice):
		status, code, message = http.StatusBadRequest, "UNKNOWN_VOICE", err.Error()
	case errors.Is(err, studio.ErrNoSourceImage),
		errors.Is(err, imagegen.ErrEmptyPrompt),
		errors.Is(err, speech.ErrEmptyText):
		status, code, message = http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, studio.ErrNoNarration):
		status, code, message = http.StatusUnprocessableEntity, "NO_NARRATION", err.Error()
	case errors.Is(err, studio.ErrShareUnavailable),
		errors.Is(err, studio.ErrNarrationUnavailable),
		errors.Is(err, studio.ErrAnimationUnavailable):
		status, code, message = http.StatusServiceUnavailable, "FEATURE_UNAVAILABLE", err.Error()
	case errors.Is(err, imagegen.ErrNoImage),
		errors.Is(err, imagegen.ErrNoText),
		errors.Is(err, speech.ErrEmptyAudio),
		errors.Is(err, apiclient.ErrServerError),
		errors.Is(err, apiclient.ErrRateLimited),
		errors.Is(err, apiclient.ErrRequestFailed):
		status, code, message = http.StatusBadGateway, "GENERATION_FAILED", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "TIMEOUT", "operation timed out"
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("code", code),
		slog.String("error", err.Error()),
	)
	writeError(w, status, message, code)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
