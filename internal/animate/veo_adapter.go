package animate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultVeoModel is the Veo model used when none is configured.
const DefaultVeoModel = "veo-2.0-generate-001"

// defaultVeoPrompt animates without a motion prompt.
const defaultVeoPrompt = "Bring this image to life with subtle, natural motion."

// maxVideoBytes bounds a downloaded video.
const maxVideoBytes = 200 << 20

// ErrNoVideo is returned when a finished operation carries no video.
var ErrNoVideo = errors.New("animate: no video returned")

// VideoModels is the subset of the genai models service used by Veo.
type VideoModels interface {
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// VideoOperations is the subset of the genai operations service used by Veo.
type VideoOperations interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// VeoAdapter runs animation jobs as Veo long-running operations.
type VeoAdapter struct {
	models     VideoModels
	operations VideoOperations
	model      string
	apiKey     string
	httpClient *http.Client
}

// VeoOption configures a VeoAdapter.
type VeoOption func(*VeoAdapter)

// WithVeoModel sets the Veo model.
func WithVeoModel(model string) VeoOption {
	return func(a *VeoAdapter) {
		if model != "" {
			a.model = model
		}
	}
}

// WithDownloadClient sets the HTTP client used to download finished videos.
func WithDownloadClient(c *http.Client) VeoOption {
	return func(a *VeoAdapter) {
		a.httpClient = c
	}
}

// NewVeoAdapter creates a Veo adapter. apiKey authenticates video downloads.
func NewVeoAdapter(models VideoModels, operations VideoOperations, apiKey string, opts ...VeoOption) *VeoAdapter {
	a := &VeoAdapter{
		models:     models,
		operations: operations,
		model:      DefaultVeoModel,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewVeoAdapterFromClient creates a Veo adapter over a genai client.
func NewVeoAdapterFromClient(client *genai.Client, apiKey string, opts ...VeoOption) *VeoAdapter {
	return NewVeoAdapter(client.Models, client.Operations, apiKey, opts...)
}

// Submit starts a video generation operation and returns its name.
func (a *VeoAdapter) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	data, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return "", fmt.Errorf("veo adapter submit: decode image: %w", err)
	}
	mimeType := opts.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	prompt := strings.TrimSpace(opts.Prompt)
	if prompt == "" {
		prompt = defaultVeoPrompt
	}

	op, err := a.models.GenerateVideos(ctx, a.model, prompt,
		&genai.Image{ImageBytes: data, MIMEType: mimeType},
		&genai.GenerateVideosConfig{NumberOfVideos: 1},
	)
	if err != nil {
		return "", fmt.Errorf("veo adapter submit: %w", err)
	}
	if op == nil || op.Name == "" {
		return "", fmt.Errorf("veo adapter submit: %w", errNoOperation)
	}
	return op.Name, nil
}

var errNoOperation = errors.New("no operation returned")

// Poll refreshes the operation and maps it to a PollResult.
func (a *VeoAdapter) Poll(ctx context.Context, jobID string) (PollResult, error) {
	op, err := a.operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: jobID}, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("veo adapter poll: %w", err)
	}
	return mapOperation(op), nil
}

func mapOperation(op *genai.GenerateVideosOperation) PollResult {
	if op == nil || !op.Done {
		return PollResult{Status: StatusRunning}
	}
	if len(op.Error) > 0 {
		msg, _ := op.Error["message"].(string)
		if msg == "" {
			msg = fmt.Sprint(op.Error)
		}
		return PollResult{Status: StatusFailed, Error: msg}
	}

	resp := op.Response
	if resp == nil || len(resp.GeneratedVideos) == 0 || resp.GeneratedVideos[0].Video == nil {
		msg := ErrNoVideo.Error()
		if resp != nil && len(resp.RAIMediaFilteredReasons) > 0 {
			msg = strings.Join(resp.RAIMediaFilteredReasons, "; ")
		}
		return PollResult{Status: StatusFailed, Error: msg}
	}

	video := resp.GeneratedVideos[0].Video
	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	switch {
	case len(video.VideoBytes) > 0:
		return PollResult{
			Status:      StatusCompleted,
			VideoBase64: base64.StdEncoding.EncodeToString(video.VideoBytes),
			MIMEType:    mimeType,
		}
	case video.URI != "":
		return PollResult{Status: StatusCompleted, VideoURL: video.URI, MIMEType: mimeType}
	default:
		return PollResult{Status: StatusFailed, Error: ErrNoVideo.Error()}
	}
}

// Download fetches a finished video. Veo file URIs need the API key.
func (a *VeoAdapter) Download(ctx context.Context, videoURL string) ([]byte, error) {
	if videoURL == "" {
		return nil, ErrNoVideo
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("veo adapter: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("veo adapter: download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("veo adapter: download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVideoBytes))
	if err != nil {
		return nil, fmt.Errorf("veo adapter: read download: %w", err)
	}
	return data, nil
}

// Compile-time check that VeoAdapter implements Generator.
var _ Generator = (*VeoAdapter)(nil)
