package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/moments-api/internal/apiclient"
)

func newTestClient(t *testing.T, url string) *HTTPClient {
	t.Helper()
	c, err := NewClient("eleven-key", WithURL(url), WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.url)
	assert.Equal(t, 3, c.api.MaxRetries())
	assert.Empty(t, c.api.Token())
}

func TestSynthesize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello there", req.Text)
		assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", req.VoiceID)
		assert.Equal(t, "eleven-key", req.APIKey)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	audio, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "Hello there", "21m00Tcm4TlvDq8ikWAM")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.MIMEType)
	assert.Equal(t, []byte("ID3-audio"), audio.Data)
}

func TestSynthesize_DefaultsMIMEType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	audio, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "x", "v")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.MIMEType)
}

func TestSynthesize_ErrorDetail(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":{"message":"voice not found"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "x", "bad")
	require.ErrorIs(t, err, apiclient.ErrRequestFailed)
	assert.Contains(t, err.Error(), "voice not found")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestSynthesize_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "x", "v")
	require.ErrorIs(t, err, apiclient.ErrRequestFailed)
	assert.Contains(t, err.Error(), "failed to generate speech")
}

func TestSynthesize_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	audio, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "x", "v")
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", audio.MIMEType)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSynthesize_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "x", "v")
	require.ErrorIs(t, err, apiclient.ErrRateLimited)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestSynthesize_EmptyText(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)
	_, err = c.Synthesize(context.Background(), "  ", "v")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Synthesize(context.Background(), "x", "v")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestVoices(t *testing.T) {
	v := Voices()
	require.Len(t, v, 4)
	assert.Equal(t, "Rachel", v[0].Name)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", DefaultVoiceID())

	v[0].Name = "changed"
	assert.Equal(t, "Rachel", Voices()[0].Name)

	gigi, ok := LookupVoice("jBpfuIE2acCO8z3wKNLl")
	require.True(t, ok)
	assert.Equal(t, "Playful & Animated", gigi.Description)

	_, ok = LookupVoice("unknown")
	assert.False(t, ok)
}
