// Package studio provides the use cases of the moments studio: generating and
// editing images, narrating them, animating them, composing narrated videos,
// and downloading or sharing the results.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/maauso/moments-api/internal/compose"
	"github.com/maauso/moments-api/internal/dataurl"
	"github.com/maauso/moments-api/internal/imagegen"
	"github.com/maauso/moments-api/internal/job"
	"github.com/maauso/moments-api/internal/result"
	"github.com/maauso/moments-api/internal/speech"
	"github.com/maauso/moments-api/internal/storage"
)

// Static errors for studio operations.
var (
	// ErrUnknownVoice is returned when a narration names a voice outside the table.
	ErrUnknownVoice = errors.New("studio: unknown voice")
	// ErrBusy is returned when a composition is already running for the result.
	ErrBusy = errors.New("studio: composition already in progress")
	// ErrShareUnavailable is returned when no publishing storage is configured.
	ErrShareUnavailable = errors.New("studio: sharing is not configured")
	// ErrNarrationUnavailable is returned when no speech provider is configured.
	ErrNarrationUnavailable = errors.New("studio: narration is not configured")
	// ErrAnimationUnavailable is returned when no animation provider is configured.
	ErrAnimationUnavailable = errors.New("studio: animation is not configured")
	// ErrNoNarration is returned when a video is requested for a result without audio.
	ErrNoNarration = errors.New("studio: result has no narration")
	// ErrNoSourceImage is returned when an edit names neither a base result nor an image.
	ErrNoSourceImage = errors.New("studio: edit requires a base result or a source image")
)

// Composer renders a narrated generation into a video file.
type Composer interface {
	Compose(ctx context.Context, src compose.Source) (*compose.File, error)
}

// Animator runs image-to-video jobs.
type Animator interface {
	Start(ctx context.Context, in job.AnimateInput) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context, resultID string) ([]*job.Job, error)
	Clear(ctx context.Context) error
}

// EditInput contains the parameters of an image edit.
type EditInput struct {
	// BaseResultID edits the image of an existing result.
	BaseResultID string
	// SourceImage is an uploaded image, used when BaseResultID is empty.
	SourceImage []byte
	// MIMEType of SourceImage.
	MIMEType string
	// Prompt describes the edit.
	Prompt string
}

// Service orchestrates the studio use cases.
type Service struct {
	results  result.Repository
	images   imagegen.Generator
	composer Composer
	store    storage.Storage
	speech   speech.Synthesizer
	animator Animator
	fetcher  *compose.Fetcher
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithSynthesizer enables narration.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(svc *Service) {
		svc.speech = s
	}
}

// WithAnimator enables animation.
func WithAnimator(a Animator) Option {
	return func(svc *Service) {
		svc.animator = a
	}
}

// WithFetcher sets the resolver used to read result images.
func WithFetcher(f *compose.Fetcher) Option {
	return func(svc *Service) {
		svc.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) {
		if logger != nil {
			svc.logger = logger
		}
	}
}

// New creates a Service.
func New(results result.Repository, images imagegen.Generator, composer Composer, store storage.Storage, opts ...Option) *Service {
	s := &Service{
		results:  results,
		images:   images,
		composer: composer,
		store:    store,
		logger:   slog.Default(),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = compose.NewFetcher()
	}
	return s
}

// Generate creates a result from a text prompt.
func (s *Service) Generate(ctx context.Context, prompt string) (*result.Result, error) {
	prompt = strings.TrimSpace(prompt)
	img, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return s.saveResult(ctx, prompt, img)
}

// Edit creates a result by editing a base result's image or an uploaded image.
func (s *Service) Edit(ctx context.Context, in EditInput) (*result.Result, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, imagegen.ErrEmptyPrompt
	}

	source, mimeType := in.SourceImage, in.MIMEType
	if in.BaseResultID != "" {
		base, err := s.results.FindByID(ctx, in.BaseResultID)
		if err != nil {
			return nil, err
		}
		source, mimeType, err = s.fetcher.Fetch(ctx, base.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("%w: base image: %w", compose.ErrResourceLoad, err)
		}
	}
	if len(source) == 0 {
		return nil, ErrNoSourceImage
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(source)
	}

	img, err := s.images.EditImage(ctx, source, mimeType, prompt)
	if err != nil {
		return nil, err
	}
	return s.saveResult(ctx, prompt, img)
}

func (s *Service) saveResult(ctx context.Context, prompt string, img imagegen.Image) (*result.Result, error) {
	r := result.New(prompt, img.URL)
	r.SetRevisedPrompt(img.RevisedPrompt)
	if err := s.results.Save(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("result created",
		slog.String("result_id", r.ID),
		slog.String("mime_type", img.MIMEType),
	)
	return r, nil
}

// InspirePrompt asks the text model for a creative prompt.
func (s *Service) InspirePrompt(ctx context.Context) (string, error) {
	return s.images.CreativePrompt(ctx)
}

// EnhancePrompt rewrites prompt to be more descriptive. A blank prompt
// returns "" without calling the model.
func (s *Service) EnhancePrompt(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", nil
	}
	return s.images.EnhancePrompt(ctx, prompt)
}

// Voices returns the narration voice table.
func (s *Service) Voices() []speech.Voice {
	return speech.Voices()
}

// Narrate synthesizes text with voiceID and stores the audio on the result.
// An empty voiceID selects the default voice.
func (s *Service) Narrate(ctx context.Context, id, text, voiceID string) (*result.Result, error) {
	if s.speech == nil {
		return nil, ErrNarrationUnavailable
	}
	if voiceID == "" {
		voiceID = speech.DefaultVoiceID()
	}
	if _, ok := speech.LookupVoice(voiceID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, voiceID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, speech.ErrEmptyText
	}
	if _, err := s.results.FindByID(ctx, id); err != nil {
		return nil, err
	}

	audio, err := s.speech.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}
	audioURL := dataurl.Encode(audio.MIMEType, audio.Data)

	r, err := s.results.Update(ctx, id, func(r *result.Result) error {
		r.SetNarration(audioURL, text, voiceID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("narration added",
		slog.String("result_id", id),
		slog.String("voice_id", voiceID),
		slog.Int("bytes", len(audio.Data)),
	)
	return r, nil
}

// Animate starts an image-to-video job for the result.
func (s *Service) Animate(ctx context.Context, id, prompt string) (*job.Job, error) {
	if s.animator == nil {
		return nil, ErrAnimationUnavailable
	}
	return s.animator.Start(ctx, job.AnimateInput{ResultID: id, Prompt: prompt})
}

// GetAnimation returns an animation job.
func (s *Service) GetAnimation(ctx context.Context, jobID string) (*job.Job, error) {
	if s.animator == nil {
		return nil, ErrAnimationUnavailable
	}
	return s.animator.GetJob(ctx, jobID)
}

// ListAnimations returns the result's animation jobs, newest first.
func (s *Service) ListAnimations(ctx context.Context, id string) ([]*job.Job, error) {
	if s.animator == nil {
		return nil, ErrAnimationUnavailable
	}
	if _, err := s.results.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.animator.ListJobs(ctx, id)
}

// ComposeVideo renders the result's image and narration into a video.
// Only one composition runs per result at a time; an overlapping call
// returns ErrBusy.
func (s *Service) ComposeVideo(ctx context.Context, id string) (*compose.File, error) {
	r, err := s.results.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.HasAudio() {
		return nil, ErrNoNarration
	}

	if !s.acquire(id) {
		return nil, ErrBusy
	}
	defer s.release(id)

	file, err := s.composer.Compose(ctx, compose.Source{
		ID:       r.ID,
		Prompt:   r.Prompt,
		ImageURL: r.ImageURL,
		AudioURL: r.AudioURL,
	})
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrNoNarration
	}
	return file, nil
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// imageExtensions maps image media types to file extensions.
var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// DownloadImage returns the result's image as a named file.
func (s *Service) DownloadImage(ctx context.Context, id string) (*compose.File, error) {
	r, err := s.results.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	data, mimeType, err := s.fetcher.Fetch(ctx, r.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: image: %w", compose.ErrResourceLoad, err)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	ext, ok := imageExtensions[mimeType]
	if !ok {
		ext = "png"
	}
	return &compose.File{
		Name:     compose.FileName(r.Prompt, "image", ext),
		MIMEType: mimeType,
		Data:     data,
	}, nil
}

// Download returns the composed video of a narrated result, or its image.
func (s *Service) Download(ctx context.Context, id string) (*compose.File, error) {
	r, err := s.results.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.HasAudio() {
		return s.ComposeVideo(ctx, id)
	}
	return s.DownloadImage(ctx, id)
}

// Share publishes the result's downloadable file and returns its URL.
// The file is staged in temporary storage and released once uploaded.
func (s *Service) Share(ctx context.Context, id string) (string, error) {
	if !storage.CanPublish(s.store) {
		return "", ErrShareUnavailable
	}

	file, err := s.Download(ctx, id)
	if err != nil {
		return "", err
	}

	path, err := s.store.SaveTemp(ctx, file.Name, file.Reader())
	if err != nil {
		return "", fmt.Errorf("stage shared file: %w", err)
	}
	defer func() {
		if err := s.store.CleanupTemp(context.WithoutCancel(ctx), []string{path}); err != nil {
			s.logger.Warn("failed to cleanup shared file",
				slog.String("result_id", id),
				slog.String("error", err.Error()),
			)
		}
	}()

	staged, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", fmt.Errorf("load shared file: %w", err)
	}
	defer staged.Close()

	key := fmt.Sprintf("shares/%s/%s", id, file.Name)
	url, err := s.store.UploadToS3(ctx, key, file.MIMEType, staged)
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return "", ErrShareUnavailable
	}
	if err != nil {
		return "", err
	}

	s.logger.Info("result shared",
		slog.String("result_id", id),
		slog.String("key", key),
		slog.Int("bytes", file.Size()),
	)
	return url, nil
}

// List returns every result, newest first.
func (s *Service) List(ctx context.Context) ([]*result.Result, error) {
	return s.results.List(ctx)
}

// Get returns a result.
func (s *Service) Get(ctx context.Context, id string) (*result.Result, error) {
	return s.results.FindByID(ctx, id)
}

// Clear removes every result and, when animation is enabled, its jobs.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.results.Clear(ctx); err != nil {
		return err
	}
	if s.animator == nil {
		return nil
	}
	return s.animator.Clear(ctx)
}
