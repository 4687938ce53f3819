package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/maauso/moments-api/internal/audio"
	"github.com/maauso/moments-api/internal/dataurl"
)

// DefaultMaxFetchBytes bounds a single fetched resource.
const DefaultMaxFetchBytes = 100 << 20

var (
	errUnsupportedScheme = errors.New("unsupported reference scheme")
	errTooLarge          = errors.New("resource exceeds size limit")
)

// Fetcher resolves image and audio references to bytes.
// Remote references are fetched anonymously.
type Fetcher struct {
	httpClient      *http.Client
	maxBytes        int64
	allowLocalFiles bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for http(s) references.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithMaxFetchBytes sets the size limit of a fetched resource.
func WithMaxFetchBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithLocalFiles allows file:// URLs and bare paths. Only the CLI enables it.
func WithLocalFiles() FetcherOption {
	return func(f *Fetcher) {
		f.allowLocalFiles = true
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		maxBytes:   DefaultMaxFetchBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the content and media type of ref. ref is a data URL, an
// http(s) URL, or, when local files are allowed, a file URL or path.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	if ref == "" {
		return nil, "", errors.New("empty reference")
	}
	if dataurl.Is(ref) {
		mimeType, data, err := dataurl.Decode(ref)
		if err != nil {
			return nil, "", err
		}
		if int64(len(data)) > f.maxBytes {
			return nil, "", errTooLarge
		}
		return data, mimeType, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, "", fmt.Errorf("parse reference: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "file":
		if f.allowLocalFiles {
			return f.readFile(u.Path)
		}
	case "":
		if f.allowLocalFiles {
			return f.readFile(ref)
		}
	}
	return nil, "", fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", errTooLarge
	}

	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return data, mimeType, nil
}

func (f *Fetcher) readFile(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.Size() > f.maxBytes {
		return nil, "", errTooLarge
	}
	data, err := os.ReadFile(path) // #nosec G304 - local files are only enabled for the CLI
	if err != nil {
		return nil, "", err
	}
	mimeType, _, _ := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(path)))
	return data, mimeType, nil
}

// Still is a decoded image written to temporary storage as PNG.
type Still struct {
	Path   string
	Width  int
	Height int
	// Format is the source encoding ("png", "jpeg", "gif", "webp").
	Format string
}

// decodeStill decodes the full image and re-encodes its first frame as PNG,
// keeping native dimensions.
func decodeStill(data []byte) (image.Image, string, []byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "png" {
		return img, format, data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", nil, fmt.Errorf("encode still: %w", err)
	}
	return img, format, buf.Bytes(), nil
}

// loadImage fetches and decodes the image reference and saves the still frame.
func (c *Compositor) loadImage(ctx context.Context, ref string) (Still, error) {
	data, _, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return Still{}, fmt.Errorf("%w: image: %w", ErrResourceLoad, err)
	}

	img, format, encoded, err := decodeStill(data)
	if err != nil {
		return Still{}, fmt.Errorf("%w: image: %w", ErrResourceLoad, err)
	}

	path, err := c.store.SaveTemp(ctx, "still.png", bytes.NewReader(encoded))
	if err != nil {
		return Still{}, fmt.Errorf("%w: save still: %w", ErrCompose, err)
	}

	bounds := img.Bounds()
	return Still{
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// Narration is a loaded audio clip.
type Narration struct {
	Path     string
	Metadata audio.Metadata
}

// audioExtensions maps narration media types to file extensions.
var audioExtensions = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
	"audio/ogg":   ".ogg",
	"audio/opus":  ".opus",
	"audio/webm":  ".webm",
	"audio/aac":   ".aac",
	"audio/mp4":   ".m4a",
	"audio/flac":  ".flac",
}

func audioExtension(mimeType string) string {
	if ext, ok := audioExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return ".audio"
}

// loadAudio fetches the audio reference, saves it and reads its metadata.
// The returned path is set whenever a temporary file was written, even on error.
func (c *Compositor) loadAudio(ctx context.Context, tc Toolchain, ref string) (Narration, error) {
	data, mimeType, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return Narration{}, fmt.Errorf("%w: audio: %w", ErrResourceLoad, err)
	}

	path, err := c.store.SaveTemp(ctx, "narration"+audioExtension(mimeType), bytes.NewReader(data))
	if err != nil {
		return Narration{}, fmt.Errorf("%w: save narration: %w", ErrCompose, err)
	}

	md, err := tc.Metadata(ctx, path)
	if err != nil {
		return Narration{Path: path}, fmt.Errorf("%w: audio metadata: %w", ErrResourceLoad, err)
	}
	return Narration{Path: path, Metadata: md}, nil
}
