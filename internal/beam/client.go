package beam

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

// DefaultStatusURL is the base of Beam's task status endpoint.
const DefaultStatusURL = "https://api.beam.cloud/v2/task"

var (
	ErrQueueURLRequired = errors.New("beam: queue URL is required")
	ErrTokenNotSet      = errors.New("beam: token is required")
	ErrImageRequired    = errors.New("beam: image is required")
	ErrTaskIDRequired   = errors.New("beam: task ID is required")
	ErrNoTaskIDReturned = errors.New("beam: submit failed: no task ID returned")
	ErrSubmitFailed     = errors.New("beam: submit failed")
	ErrNoOutputURL      = errors.New("beam: no output URL in completed task")
)

// Client talks to a Beam task queue running an image-to-video model.
type Client interface {
	// Submit enqueues a task and returns its ID.
	Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (taskID string, err error)

	// Poll reads the task status.
	Poll(ctx context.Context, taskID string) (PollResult, error)

	// Download fetches the video at a task output URL.
	Download(ctx context.Context, outputURL string) ([]byte, error)
}

// HTTPClient implements Client.
type HTTPClient struct {
	api       *apiclient.Client
	queueURL  string
	statusURL string
}

type settings struct {
	token     string
	statusURL string
	api       []apiclient.Option
}

// ClientOption configures an HTTPClient.
type ClientOption func(*settings)

// WithToken sets the API token. Without it BEAM_TOKEN is read.
func WithToken(token string) ClientOption {
	return func(s *settings) { s.token = token }
}

// WithStatusURL sets the base of the task status endpoint.
func WithStatusURL(url string) ClientOption {
	return func(s *settings) { s.statusURL = url }
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

// NewClient creates a client for the task queue at queueURL.
func NewClient(queueURL string, opts ...ClientOption) (*HTTPClient, error) {
	if queueURL == "" {
		return nil, ErrQueueURLRequired
	}

	s := settings{statusURL: DefaultStatusURL}
	for _, opt := range opts {
		opt(&s)
	}
	if s.token == "" {
		s.token = os.Getenv("BEAM_TOKEN")
	}
	if s.token == "" {
		return nil, ErrTokenNotSet
	}

	return &HTTPClient{
		api:       apiclient.New("beam", append(s.api, apiclient.WithToken(s.token))...),
		queueURL:  queueURL,
		statusURL: strings.TrimRight(s.statusURL, "/"),
	}, nil
}

// Submit enqueues an image-to-video task.
func (c *HTTPClient) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	if imageB64 == "" {
		return "", ErrImageRequired
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultSubmitOptions().Prompt
	}

	req := taskRequest{
		Prompt:      opts.Prompt,
		Width:       opts.Width,
		Height:      opts.Height,
		ImageBase64: imageB64,
	}
	var resp taskResponse
	if err := c.api.JSON(ctx, http.MethodPost, c.queueURL, req, &resp); err != nil {
		return "", err
	}
	switch {
	case resp.TaskID != "":
		return resp.TaskID, nil
	case resp.Error != "":
		return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
	default:
		return "", ErrNoTaskIDReturned
	}
}

// Poll reads the task status. COMPLETE and ERROR are folded into
// StatusCompleted and StatusFailed.
func (c *HTTPClient) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if taskID == "" {
		return PollResult{}, ErrTaskIDRequired
	}

	var resp statusResponse
	if err := c.api.JSON(ctx, http.MethodGet, c.statusURL+"/"+taskID+"/", nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{Status: normalize(Status(resp.Status))}
	switch result.Status {
	case StatusCompleted:
		if len(resp.Outputs) > 0 && resp.Outputs[0].URL != "" {
			result.OutputURL = resp.Outputs[0].URL
		} else {
			result.Error = "no output URL available"
		}
	case StatusFailed:
		result.Error = resp.Error
		if result.Error == "" {
			result.Error = "task failed"
		}
	}
	return result, nil
}

// Download fetches the video at outputURL. Output URLs are presigned, so the
// token is not sent.
func (c *HTTPClient) Download(ctx context.Context, outputURL string) ([]byte, error) {
	if outputURL == "" {
		return nil, ErrNoOutputURL
	}
	return c.api.Download(ctx, outputURL)
}

var _ Client = (*HTTPClient)(nil)
