package compose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/moments-api/internal/audio"
	"github.com/maauso/moments-api/internal/dataurl"
	"github.com/maauso/moments-api/internal/media"
	"github.com/maauso/moments-api/internal/storage"
)

// fakeStream replays chunks and records whether it was stopped.
type fakeStream struct {
	out     io.Reader
	waitErr error

	mu      sync.Mutex
	stopped bool
	waited  bool
}

func (s *fakeStream) Output() io.Reader { return s.out }

func (s *fakeStream) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waited = true
	return s.waitErr
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && !s.waited
}

// fakeToolchain is an in-memory capture toolchain.
type fakeToolchain struct {
	encoders    []string
	metadata    audio.Metadata
	metadataErr error
	chunks      [][]byte
	waitErr     error
	captureErr  error

	mu       sync.Mutex
	binary   string
	specs    []media.StillSpec
	streams  []*fakeStream
	captured bool
}

func (f *fakeToolchain) factory() ToolchainFactory {
	return func(binary string) Toolchain {
		f.mu.Lock()
		f.binary = binary
		f.mu.Unlock()
		return f
	}
}

func (f *fakeToolchain) Encoders(context.Context) ([]string, error) {
	return f.encoders, nil
}

func (f *fakeToolchain) Capture(_ context.Context, spec media.StillSpec) (media.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = true
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	chunks := make([][]byte, len(f.chunks))
	for i, c := range f.chunks {
		chunks[i] = append([]byte(nil), c...)
	}
	s := &fakeStream{out: &chunkReader{chunks: chunks}, waitErr: f.waitErr}
	f.specs = append(f.specs, spec)
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeToolchain) GetMediaDuration(context.Context, string) (float64, error) {
	return f.metadata.Seconds(), nil
}

func (f *fakeToolchain) Metadata(_ context.Context, path string) (audio.Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return audio.Metadata{}, err
	}
	return f.metadata, f.metadataErr
}

func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{
		encoders: []string{"libx264", "aac", "libvpx-vp9", "libopus"},
		metadata: audio.Metadata{Duration: 3200 * time.Millisecond, Codec: "mp3", SampleRate: 44100},
		chunks:   [][]byte{[]byte("chunk-1"), []byte("chunk-2"), []byte("chunk-3")},
	}
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return dataurl.Encode("image/png", buf.Bytes())
}

func found(name string) LookPathFunc {
	return func(n string) (string, error) {
		if n == name {
			return "/usr/bin/" + n, nil
		}
		return "", errors.New("not found")
	}
}

type compositorFixture struct {
	compositor *Compositor
	toolchain  *fakeToolchain
	tempDir    string
	states     []State
}

func newFixture(t *testing.T, opts ...Option) *compositorFixture {
	t.Helper()
	tempDir := t.TempDir()
	store, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	fx := &compositorFixture{toolchain: newFakeToolchain(), tempDir: tempDir}
	base := []Option{
		WithLookPath(found("ffmpeg")),
		WithStateObserver(func(s State) { fx.states = append(fx.states, s) }),
	}
	fx.compositor = NewCompositor(store, fx.toolchain.factory(), append(base, opts...)...)
	return fx
}

func (fx *compositorFixture) assertNoTempFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(fx.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary inputs must be released")
}

func TestCompose_NoAudio(t *testing.T) {
	fx := newFixture(t, WithLookPath(func(string) (string, error) {
		t.Fatal("probe must not run without audio")
		return "", nil
	}))

	file, err := fx.compositor.Compose(context.Background(), Source{
		Prompt:   "a cat",
		ImageURL: "data:image/png;base64,not-even-decoded",
	})
	assert.NoError(t, err)
	assert.Nil(t, file)
	assert.Empty(t, fx.states)
	assert.False(t, fx.toolchain.captured)
}

func TestCompose_Success(t *testing.T) {
	fx := newFixture(t)
	prompt := "A lighthouse at dusk with waves crashing softly"
	require.Greater(t, len(prompt), 40)

	file, err := fx.compositor.Compose(context.Background(), Source{
		ID:       "r1",
		Prompt:   prompt,
		ImageURL: pngDataURL(t, 512, 512),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("ID3 fake mp3")),
	})
	require.NoError(t, err)
	require.NotNil(t, file)

	assert.Equal(t, "momentsai_a_lighthouse_at_dusk_with_wave.mp4", file.Name)
	assert.Equal(t, "video/mp4", file.MIMEType)
	assert.Equal(t, "chunk-1chunk-2chunk-3", string(file.Data))
	assert.Equal(t, len("chunk-1chunk-2chunk-3"), file.Size())

	require.Len(t, fx.toolchain.specs, 1)
	spec := fx.toolchain.specs[0]
	assert.Equal(t, 512, spec.Width)
	assert.Equal(t, 512, spec.Height)
	assert.Equal(t, 30, spec.FrameRate)
	assert.InDelta(t, 3.2, spec.Duration, 0.001)
	assert.Equal(t, "libx264", spec.VideoCodec)
	assert.Equal(t, "aac", spec.AudioCodec)
	assert.Equal(t, "yuv420p", spec.PixelFormat)
	assert.True(t, strings.HasSuffix(spec.AudioPath, ".mp3"))
	assert.Equal(t, "/usr/bin/ffmpeg", fx.toolchain.binary)

	assert.Equal(t, []State{
		StateIdle, StateLoadingImage, StateLoadingAudio, StateCapturing, StateRecording, StateSucceeded,
	}, fx.states)

	require.Len(t, fx.toolchain.streams, 1)
	assert.True(t, fx.toolchain.streams[0].stopped, "capture must be stopped after success")
	assert.False(t, fx.toolchain.streams[0].Running())
	fx.assertNoTempFiles(t)
}

func TestCompose_WebMFallback(t *testing.T) {
	fx := newFixture(t)
	fx.toolchain.encoders = []string{"libvpx-vp9", "libopus"}

	file, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 63, 41),
		AudioURL: dataurl.Encode("audio/wav", []byte("RIFF")),
	})
	require.NoError(t, err)

	assert.Equal(t, "momentsai_video.webm", file.Name)
	assert.Equal(t, "video/webm", file.MIMEType)
	spec := fx.toolchain.specs[0]
	assert.Equal(t, 63, spec.Width)
	assert.Equal(t, 41, spec.Height)
	assert.Equal(t, "yuv444p", spec.PixelFormat)
}

func TestCompose_Unsupported(t *testing.T) {
	fx := newFixture(t, WithLookPath(found("nothing")))

	file, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	assert.Nil(t, file)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "not supported")
	assert.Equal(t, []State{StateIdle, StateFailed}, fx.states)
	assert.False(t, fx.toolchain.captured)
}

func TestCompose_FallbackBinary(t *testing.T) {
	fx := newFixture(t, WithLookPath(found("avconv")))

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/avconv", fx.toolchain.binary)
}

func TestCompose_NoContainer(t *testing.T) {
	fx := newFixture(t)
	fx.toolchain.encoders = []string{"mpeg4"}

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	require.ErrorIs(t, err, ErrUnsupported)

	var stateErr *Error
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateCapturing, stateErr.State)
	fx.assertNoTempFiles(t)
}

func TestCompose_ImageLoadFailure(t *testing.T) {
	tests := []struct {
		name     string
		imageURL string
	}{
		{"undecodable", dataurl.Encode("image/png", []byte("not an image"))},
		{"malformed data url", "data:image/png;base64"},
		{"unsupported scheme", "ftp://example.com/a.png"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			file, err := fx.compositor.Compose(context.Background(), Source{
				ImageURL: tt.imageURL,
				AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
			})
			assert.Nil(t, file)
			require.ErrorIs(t, err, ErrResourceLoad)

			var stateErr *Error
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, StateLoadingImage, stateErr.State)
			assert.False(t, fx.toolchain.captured)
			fx.assertNoTempFiles(t)
		})
	}
}

func TestCompose_AudioMetadataFailure(t *testing.T) {
	fx := newFixture(t)
	fx.toolchain.metadataErr = audio.ErrNoDuration

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("corrupt")),
	})
	require.ErrorIs(t, err, ErrResourceLoad)
	assert.ErrorIs(t, err, audio.ErrNoDuration)
	assert.Equal(t, StateFailed, fx.states[len(fx.states)-1])
	assert.False(t, fx.toolchain.captured, "recording must not start before metadata is loaded")
	fx.assertNoTempFiles(t)
}

func TestCompose_CaptureFailure(t *testing.T) {
	fx := newFixture(t)
	fx.toolchain.waitErr = errors.New("exit status 1")

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	require.ErrorIs(t, err, ErrCompose)

	var stateErr *Error
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateRecording, stateErr.State)
	require.Len(t, fx.toolchain.streams, 1)
	assert.True(t, fx.toolchain.streams[0].stopped, "capture must be stopped after failure")
	fx.assertNoTempFiles(t)
}

func TestCompose_TerminalStateAfterTeardown(t *testing.T) {
	tests := []struct {
		name    string
		waitErr error
		want    State
	}{
		{"failed", errors.New("exit status 1"), StateFailed},
		{"succeeded", nil, StateSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fx *compositorFixture
			var reached bool
			fx = newFixture(t, WithStateObserver(func(s State) {
				if s != tt.want {
					return
				}
				reached = true
				entries, err := os.ReadDir(fx.tempDir)
				assert.NoError(t, err)
				assert.Empty(t, entries, "inputs must be released before %s is reported", s)
				require.Len(t, fx.toolchain.streams, 1)
				assert.True(t, fx.toolchain.streams[0].stopped, "capture must be stopped before %s is reported", s)
			}))
			fx.toolchain.waitErr = tt.waitErr

			_, _ = fx.compositor.Compose(context.Background(), Source{
				ImageURL: pngDataURL(t, 8, 8),
				AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
			})
			assert.True(t, reached)
		})
	}
}

func TestCompose_WithToolchain(t *testing.T) {
	replacement := newFakeToolchain()
	fx := newFixture(t, WithToolchain(replacement.factory()))

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	require.NoError(t, err)
	assert.True(t, replacement.captured)
	assert.False(t, fx.toolchain.captured)
}

func TestCompose_EmptyRecording(t *testing.T) {
	fx := newFixture(t)
	fx.toolchain.chunks = nil

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	assert.ErrorIs(t, err, ErrCompose)
}

func TestCompose_RemoteResourcesAreAnonymous(t *testing.T) {
	imageURL := pngDataURL(t, 16, 16)
	_, pngBytes, err := dataurl.Decode(imageURL)
	require.NoError(t, err)

	var sawCredentials bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" || r.Header.Get("Cookie") != "" {
			sawCredentials = true
		}
		switch r.URL.Path {
		case "/still.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes)
		case "/voice.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fx := newFixture(t, WithFetcher(NewFetcher(WithHTTPClient(srv.Client()))))

	file, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: srv.URL + "/still.png",
		AudioURL: srv.URL + "/voice.mp3",
	})
	require.NoError(t, err)
	assert.NotNil(t, file)
	assert.False(t, sawCredentials)

	_, err = fx.compositor.Compose(context.Background(), Source{
		ImageURL: srv.URL + "/missing.png",
		AudioURL: srv.URL + "/voice.mp3",
	})
	assert.ErrorIs(t, err, ErrResourceLoad)
}

func TestCompose_CancelledContext(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.compositor.Compose(ctx, Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	assert.Error(t, err)
	assert.Equal(t, StateFailed, fx.states[len(fx.states)-1])
	fx.assertNoTempFiles(t)
}

func TestCompose_PanicIsReported(t *testing.T) {
	fx := newFixture(t)
	fx.compositor.toolchain = func(string) Toolchain { panic("boom") }

	_, err := fx.compositor.Compose(context.Background(), Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	})
	require.ErrorIs(t, err, ErrCompose)
	assert.Contains(t, err.Error(), "boom")
}

func TestCompose_ConcurrentCallsAreIndependent(t *testing.T) {
	fx := newFixture(t, WithStateObserver(nil))

	src := Source{
		ImageURL: pngDataURL(t, 8, 8),
		AudioURL: dataurl.Encode("audio/mpeg", []byte("x")),
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = fx.compositor.Compose(context.Background(), src)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, fx.toolchain.streams, 4)
	fx.assertNoTempFiles(t)
}
