// Package bootstrap provides dependency initialization for the Moments API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/maauso/moments-api/internal/animate"
	"github.com/maauso/moments-api/internal/beam"
	"github.com/maauso/moments-api/internal/compose"
	"github.com/maauso/moments-api/internal/config"
	"github.com/maauso/moments-api/internal/imagegen"
	"github.com/maauso/moments-api/internal/job"
	"github.com/maauso/moments-api/internal/media"
	"github.com/maauso/moments-api/internal/result"
	"github.com/maauso/moments-api/internal/runpod"
	"github.com/maauso/moments-api/internal/speech"
	"github.com/maauso/moments-api/internal/storage"
	"github.com/maauso/moments-api/internal/studio"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Studio     *studio.Service
	Compositor *compose.Compositor
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize the Gemini client shared by image and video generation
	genaiClient, err := imagegen.NewGenAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	images := imagegen.NewClient(genaiClient.Models,
		imagegen.WithImageModel(cfg.ImageModel),
		imagegen.WithEditModel(cfg.EditModel),
		imagegen.WithTextModel(cfg.TextModel),
		imagegen.WithLogger(logger),
	)

	compositor := NewCompositor(cfg.FFmpegPath, cfg.FFprobePath, store, logger)
	if capability := compositor.Probe(); capability.Supported() {
		logger.Info("audio capture available", slog.String("binary", capability.Binary))
	} else {
		logger.Warn("audio capture unavailable, narrated videos cannot be composed")
	}

	results := result.NewMemoryRepository()
	opts := []studio.Option{studio.WithLogger(logger)}

	// Narration is optional
	if cfg.ElevenLabsAPIKey != "" {
		synth, err := speech.NewClient(cfg.ElevenLabsAPIKey, speech.WithURL(cfg.SpeechURL))
		if err != nil {
			return nil, fmt.Errorf("create speech client: %w", err)
		}
		opts = append(opts, studio.WithSynthesizer(synth))
	} else {
		logger.Warn("ELEVENLABS_API_KEY not set, narration disabled")
	}

	// Initialize the animation provider
	gen, provider, err := initAnimator(cfg, genaiClient)
	if err != nil {
		return nil, err
	}
	animator := job.NewAnimateService(job.NewMemoryRepository(), results, gen, provider, store,
		job.WithPollInterval(cfg.AnimatePollInterval),
		job.WithTimeout(cfg.AnimateTimeout),
		job.WithLogger(logger),
	)
	opts = append(opts, studio.WithAnimator(animator))
	logger.Info("animation provider configured", slog.String("provider", string(provider)))

	return &Dependencies{
		Studio:     studio.New(results, images, compositor, store, opts...),
		Compositor: compositor,
	}, nil
}

// NewCompositor builds a compositor on the ffmpeg toolchain. Empty paths
// resolve the binaries from PATH.
func NewCompositor(ffmpegPath, ffprobePath string, store compose.TempStore, logger *slog.Logger, opts ...compose.Option) *compose.Compositor {
	processor := media.NewFFmpegProcessor(ffmpegPath, ffprobePath)
	opts = append([]compose.Option{
		compose.WithCandidates(compose.DefaultCandidates(ffmpegPath)...),
		compose.WithLogger(logger),
	}, opts...)
	return compose.NewCompositor(store, compose.FFmpegToolchain(processor), opts...)
}

// initAnimator selects the image-to-video provider.
func initAnimator(cfg *config.Config, genaiClient *genai.Client) (animate.Generator, job.Provider, error) {
	switch job.Provider(strings.ToLower(cfg.AnimateProvider)) {
	case job.ProviderRunPod:
		client, err := runpod.NewClient(cfg.RunPodEndpointID, runpod.WithAPIKey(cfg.RunPodAPIKey))
		if err != nil {
			return nil, "", fmt.Errorf("create RunPod client: %w", err)
		}
		return animate.NewRunPodAdapter(client), job.ProviderRunPod, nil
	case job.ProviderBeam:
		opts := []beam.ClientOption{}
		if cfg.BeamToken != "" {
			opts = append(opts, beam.WithToken(cfg.BeamToken))
		}
		client, err := beam.NewClient(cfg.BeamQueueURL, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("create Beam client: %w", err)
		}
		return animate.NewBeamAdapter(client), job.ProviderBeam, nil
	default:
		return animate.NewVeoAdapterFromClient(genaiClient, cfg.GeminiAPIKey,
			animate.WithVeoModel(cfg.VideoModel),
		), job.ProviderVeo, nil
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured, sharing disabled",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
