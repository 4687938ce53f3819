// Package speech provides an HTTP client for the narration text-to-speech endpoint.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/maauso/moments-api/internal/apiclient"
)

// DefaultURL is the text-to-speech endpoint.
const DefaultURL = "https://fal.run/moments-ai/text-to-speech"

var (
	ErrAPIKeyNotSet = errors.New("speech: API key is not configured")
	ErrEmptyText    = errors.New("speech: text is required")
	ErrEmptyAudio   = errors.New("speech: empty audio response")
)

// Audio is a synthesized narration clip.
type Audio struct {
	Data     []byte
	MIMEType string
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (Audio, error)
}

// HTTPClient is the HTTP implementation of Synthesizer. The voice provider
// key travels in the request body; the endpoint forwards it.
type HTTPClient struct {
	api    *apiclient.Client
	apiKey string
	url    string
}

type settings struct {
	url string
	api []apiclient.Option
}

// ClientOption configures an HTTPClient.
type ClientOption func(*settings)

// WithURL sets the endpoint URL. An empty url keeps DefaultURL.
func WithURL(url string) ClientOption {
	return func(s *settings) {
		if url != "" {
			s.url = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(s *settings) { s.api = append(s.api, apiclient.WithHTTPClient(hc)) }
}

// WithRetry sets the retry count and the first backoff delay.
func WithRetry(maxRetries int, backoff time.Duration) ClientOption {
	return func(s *settings) {
		s.api = append(s.api, apiclient.WithMaxRetries(maxRetries), apiclient.WithBaseBackoff(backoff))
	}
}

// NewClient creates a speech client for the given voice provider key.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	s := settings{url: DefaultURL}
	for _, opt := range opts {
		opt(&s)
	}
	api := append([]apiclient.Option{
		apiclient.WithTimeout(60 * time.Second),
		apiclient.WithErrorMessage(errorMessage),
	}, s.api...)

	return &HTTPClient{
		api:    apiclient.New("speech", api...),
		apiKey: apiKey,
		url:    s.url,
	}, nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	APIKey  string `json:"api_key"`
}

// Synthesize speaks text with the given voice. Replies without an audio
// media type are assumed to be MP3.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voiceID string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, ErrEmptyText
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID, APIKey: c.apiKey})
	if err != nil {
		return Audio{}, fmt.Errorf("speech: marshal request: %w", err)
	}

	resp, err := c.api.Do(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Audio{}, err
	}
	if len(resp.Body) == 0 {
		return Audio{}, ErrEmptyAudio
	}

	mimeType, _, err := mime.ParseMediaType(resp.ContentType)
	if err != nil || !strings.HasPrefix(mimeType, "audio/") {
		mimeType = "audio/mpeg"
	}
	return Audio{Data: resp.Body, MIMEType: mimeType}, nil
}

// errorMessage reads detail.message from an error body.
func errorMessage(body []byte) string {
	var er struct {
		Detail struct {
			Message string `json:"message"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &er); err == nil && er.Detail.Message != "" {
		return er.Detail.Message
	}
	return "failed to generate speech"
}

var _ Synthesizer = (*HTTPClient)(nil)
