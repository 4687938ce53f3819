package apiclient

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
)

func newTestClient(opts ...Option) *Client {
	return New("test", append([]Option{WithBaseBackoff(time.Millisecond), WithMaxRetries(2)}, opts...)...)
}

func TestNew_Defaults(t *testing.T) {
	c := New("runpod")
	assert.Equal(t, 3, c.MaxRetries())
	assert.Equal(t, time.Second, c.baseBackoff)
	assert.Empty(t, c.Token())
}

func TestJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "fox", in["prompt"])

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-1"})
	}))
	defer srv.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := newTestClient(WithToken("secret")).JSON(context.Background(), http.MethodPost, srv.URL,
		map[string]string{"prompt": "fox"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "task-1", out.ID)
}

func TestJSON_NoTokenNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient().JSON(context.Background(), http.MethodGet, srv.URL, nil, nil))
}

func TestJSON_BadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient().JSON(context.Background(), http.MethodGet, srv.URL, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test: unmarshal response")
}

func TestDo_RetriesTemporaryFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	resp, err := newTestClient().Do(context.Background(), http.MethodPost, srv.URL, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Body)
	assert.Equal(t, "audio/mpeg", resp.ContentType)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	_, err := newTestClient().Do(context.Background(), http.MethodGet, srv.URL, nil)
	require.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, int32(3), calls.Load())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"bad voice"}`))
	}))
	defer srv.Close()

	c := newTestClient(WithErrorMessage(func(body []byte) string {
		var v struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &v)
		return v.Detail
	}))
	_, err := c.Do(context.Background(), http.MethodPost, srv.URL, nil)

	require.ErrorIs(t, err, ErrRequestFailed)
	assert.EqualError(t, err, "test: status 400: bad voice")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := New("test", WithBaseBackoff(time.Hour))
	_, err := c.Do(ctx, http.MethodGet, srv.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownload_Anonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("video"))
	}))
	defer srv.Close()

	data, err := newTestClient(WithToken("secret")).Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("video"), data)
}

func TestStatusError_Classes(t *testing.T) {
	tests := []struct {
		code      int
		class     error
		temporary bool
	}{
		{http.StatusInternalServerError, ErrServerError, true},
		{http.StatusTooManyRequests, ErrRateLimited, true},
		{http.StatusNotFound, ErrRequestFailed, false},
		{http.StatusUnauthorized, ErrRequestFailed, false},
	}
	for _, tt := range tests {
		err := &StatusError{StatusCode: tt.code}
		assert.ErrorIs(t, err, tt.class, tt.code)
		assert.Equal(t, tt.temporary, err.Temporary(), tt.code)
	}
}
