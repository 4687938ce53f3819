// Package config loads the service settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

var (
	// ErrGeminiAPIKeyRequired is returned when GEMINI_API_KEY is not set.
	ErrGeminiAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")
	// ErrRunPodEndpointIDRequired is returned for ANIMATE_PROVIDER=runpod
	// without RUNPOD_ENDPOINT_ID.
	ErrRunPodEndpointIDRequired = errors.New("config: RUNPOD_ENDPOINT_ID is required when ANIMATE_PROVIDER=runpod")
	// ErrBeamQueueURLRequired is returned for ANIMATE_PROVIDER=beam without
	// BEAM_QUEUE_URL.
	ErrBeamQueueURLRequired = errors.New("config: BEAM_QUEUE_URL is required when ANIMATE_PROVIDER=beam")
	// ErrUnknownAnimateProvider is returned for an unsupported ANIMATE_PROVIDER.
	ErrUnknownAnimateProvider = errors.New("config: ANIMATE_PROVIDER must be veo, runpod or beam")
	// ErrNegativeDuration is returned when a timeout or interval is negative.
	ErrNegativeDuration = errors.New("config: duration must not be negative")
)

// Animation providers.
const (
	AnimateProviderVeo    = "veo"
	AnimateProviderRunPod = "runpod"
	AnimateProviderBeam   = "beam"
)

// Config holds every setting of the service. Secrets carry json:"-".
type Config struct {
	Port            int           `env:"PORT, default=8080" json:"port"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s" json:"shutdown_timeout"`

	// Gemini models
	GeminiAPIKey string `env:"GEMINI_API_KEY, required" json:"-"`
	ImageModel   string `env:"IMAGE_MODEL, default=imagen-4.0-generate-001" json:"image_model"`
	EditModel    string `env:"EDIT_MODEL, default=gemini-2.5-flash-image-preview" json:"edit_model"`
	TextModel    string `env:"TEXT_MODEL, default=gemini-2.5-flash" json:"text_model"`
	VideoModel   string `env:"VIDEO_MODEL, default=veo-2.0-generate-001" json:"video_model"`

	// Narration; disabled without a key
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY" json:"-"`
	SpeechURL        string `env:"SPEECH_URL, default=https://fal.run/moments-ai/text-to-speech" json:"speech_url"`

	AnimateProvider     string        `env:"ANIMATE_PROVIDER, default=veo" json:"animate_provider"`
	AnimatePollInterval time.Duration `env:"ANIMATE_POLL_INTERVAL, default=10s" json:"animate_poll_interval"`
	AnimateTimeout      time.Duration `env:"ANIMATE_TIMEOUT, default=10m" json:"animate_timeout"`
	RunPodAPIKey        string        `env:"RUNPOD_API_KEY" json:"-"`
	RunPodEndpointID    string        `env:"RUNPOD_ENDPOINT_ID" json:"runpod_endpoint_id,omitempty"`
	BeamQueueURL        string        `env:"BEAM_QUEUE_URL" json:"beam_queue_url,omitempty"`
	BeamToken           string        `env:"BEAM_TOKEN" json:"-"`

	FFmpegPath     string        `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath    string        `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`
	ComposeTimeout time.Duration `env:"COMPOSE_TIMEOUT, default=5m" json:"compose_timeout"`
	TempDir        string        `env:"TEMP_DIR, default=/tmp/moments" json:"temp_dir"`

	// Sharing; disabled without bucket and region
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"`

	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // json or text
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`
}

// S3Enabled reports whether sharing can upload.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads a .env file when present, then the process environment, which
// wins over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		if errors.Is(err, envconfig.ErrMissingRequired) {
			return nil, fmt.Errorf("%w: %w", ErrGeminiAPIKeyRequired, err)
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every inconsistency at once.
func (c *Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, ErrGeminiAPIKeyRequired)
	}

	switch strings.ToLower(c.AnimateProvider) {
	case AnimateProviderVeo:
	case AnimateProviderRunPod:
		if c.RunPodEndpointID == "" {
			errs = append(errs, ErrRunPodEndpointIDRequired)
		}
	case AnimateProviderBeam:
		if c.BeamQueueURL == "" {
			errs = append(errs, ErrBeamQueueURLRequired)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrUnknownAnimateProvider, c.AnimateProvider))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"ANIMATE_POLL_INTERVAL", c.AnimatePollInterval},
		{"ANIMATE_TIMEOUT", c.AnimateTimeout},
		{"COMPOSE_TIMEOUT", c.ComposeTimeout},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%s", ErrNegativeDuration, d.name, d.value))
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger on stdout.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// String renders the non-secret settings; secrets only show whether they are set.
func (c *Config) String() string {
	set := func(s string) string {
		if s == "" {
			return "unset"
		}
		return "set"
	}

	var b strings.Builder
	b.WriteString("Config{")
	for i, kv := range [][2]string{
		{"Port", fmt.Sprint(c.Port)},
		{"ImageModel", c.ImageModel},
		{"EditModel", c.EditModel},
		{"TextModel", c.TextModel},
		{"VideoModel", c.VideoModel},
		{"GeminiAPIKey", set(c.GeminiAPIKey)},
		{"ElevenLabsAPIKey", set(c.ElevenLabsAPIKey)},
		{"AnimateProvider", c.AnimateProvider},
		{"RunPodEndpointID", c.RunPodEndpointID},
		{"RunPodAPIKey", set(c.RunPodAPIKey)},
		{"BeamQueueURL", c.BeamQueueURL},
		{"BeamToken", set(c.BeamToken)},
		{"TempDir", c.TempDir},
		{"ComposeTimeout", c.ComposeTimeout.String()},
		{"S3Bucket", c.S3Bucket},
		{"S3Region", c.S3Region},
		{"AWSSecretAccessKey", set(c.AWSSecretAccessKey)},
		{"LogFormat", c.LogFormat},
		{"LogLevel", c.LogLevel},
	} {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(kv[0] + ": " + kv[1])
	}
	b.WriteString("}")
	return b.String()
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
