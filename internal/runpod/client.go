package runpod

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/maauso/moments-api/internal/apiclient"
)

// DefaultBaseURL is the RunPod serverless API.
const DefaultBaseURL = "https://api.runpod.ai/v2"

var (
	ErrEndpointIDRequired = errors.New("runpod: endpoint ID is required")
	ErrAPIKeyNotSet       = errors.New("runpod: RUNPOD_API_KEY environment variable is not set")
	ErrImageRequired      = errors.New("runpod: source image is required")
	ErrJobIDRequired      = errors.New("runpod: job ID is required")
	ErrNoJobIDReturned    = errors.New("runpod: submit failed: no job ID returned")
	ErrSubmitFailed       = errors.New("runpod: submit failed")
)

// Client talks to a RunPod serverless image-to-video endpoint.
type Client interface {
	// Submit queues an animation job and returns its RunPod ID.
	Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (jobID string, err error)

	// Poll reads the job status; a completed job carries the video inline.
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// HTTPClient implements Client over the /run and /status routes.
type HTTPClient struct {
	api      *apiclient.Client
	endpoint string // base URL joined with the endpoint ID
}

type settings struct {
	apiKey  string
	baseURL string
	api     []apiclient.Option
}

// ClientOption configures an HTTPClient.
type ClientOption func(*settings)

// WithAPIKey sets the API key. Without it RUNPOD_API_KEY is read.
func WithAPIKey(key string) ClientOption {
	return func(s *settings) { s.apiKey = key }
}

// WithBaseURL points the client at another API root.
func WithBaseURL(url string) ClientOption {
	return func(s *settings) { s.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *settings) { s.api = append(s.api, apiclient.WithHTTPClient(c)) }
}

// WithRetry sets the retry count and the first backoff delay.
func WithRetry(maxRetries int, backoff time.Duration) ClientOption {
	return func(s *settings) {
		s.api = append(s.api, apiclient.WithMaxRetries(maxRetries), apiclient.WithBaseBackoff(backoff))
	}
}

// NewClient creates a client for one serverless endpoint.
func NewClient(endpointID string, opts ...ClientOption) (*HTTPClient, error) {
	if endpointID == "" {
		return nil, ErrEndpointIDRequired
	}

	s := settings{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&s)
	}
	if s.apiKey == "" {
		s.apiKey = os.Getenv("RUNPOD_API_KEY")
	}
	if s.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return &HTTPClient{
		api:      apiclient.New("runpod", append(s.api, apiclient.WithToken(s.apiKey))...),
		endpoint: strings.TrimRight(s.baseURL, "/") + "/" + endpointID,
	}, nil
}

// Submit queues an animation job. Zero options fall back to DefaultSubmitOptions.
func (c *HTTPClient) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	if imageB64 == "" {
		return "", ErrImageRequired
	}
	opts = opts.withDefaults()

	req := runRequest{Input: runInput{
		Prompt:         opts.Prompt,
		NegativePrompt: opts.NegativePrompt,
		ImageBase64:    imageB64,
		Width:          opts.Width,
		Height:         opts.Height,
		FPS:            opts.FPS,
		NumFrames:      opts.FPS * opts.Seconds,
		Seed:           opts.Seed,
	}}

	var resp runResponse
	if err := c.api.JSON(ctx, http.MethodPost, c.endpoint+"/run", req, &resp); err != nil {
		return "", err
	}
	switch {
	case resp.ID != "":
		return resp.ID, nil
	case resp.Error != "":
		return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
	default:
		return "", ErrNoJobIDReturned
	}
}

// Poll reads the status of a job.
func (c *HTTPClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	if jobID == "" {
		return PollResult{}, ErrJobIDRequired
	}

	var resp statusResponse
	if err := c.api.JSON(ctx, http.MethodGet, c.endpoint+"/status/"+jobID, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{Status: Status(resp.Status)}
	switch result.Status {
	case StatusCompleted:
		result.VideoBase64 = resp.Output.Video
		if result.VideoBase64 == "" {
			result.Error = "no video in output"
		}
	case StatusFailed:
		result.Error = resp.Error
	}
	return result, nil
}

var _ Client = (*HTTPClient)(nil)
