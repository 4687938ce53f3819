package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maauso/moments-api/internal/animate"
	"github.com/maauso/moments-api/internal/dataurl"
	"github.com/maauso/moments-api/internal/result"
	"github.com/maauso/moments-api/internal/storage"
)

const (
	// DefaultPollInterval is the delay between provider status checks.
	DefaultPollInterval = 10 * time.Second
	// DefaultTimeout bounds a whole animation job.
	DefaultTimeout = 10 * time.Minute
)

var (
	// ErrUnsupportedImage is returned when the result image is not inline data.
	ErrUnsupportedImage = errors.New("animation source image must be a data URL")
	// ErrAnimationTimeout is returned when the provider does not finish in time.
	ErrAnimationTimeout = errors.New("animation timed out")
	// ErrNoVideo is returned when the provider completes without a video.
	ErrNoVideo = errors.New("provider returned no video")
	// ErrAnimationFailed is returned when the provider reports a failure.
	ErrAnimationFailed = errors.New("animation failed")
	// ErrAnimationInProgress is returned when the result already has an
	// unfinished animation job.
	ErrAnimationInProgress = errors.New("animation already in progress for this result")
)

// AnimateInput contains the parameters of an animation request.
type AnimateInput struct {
	// ResultID is the generation record to animate.
	ResultID string
	// Prompt is an optional motion prompt.
	Prompt string
}

// AnimateService turns a generation's image into a short video through an
// image-to-video provider and stores the video on the generation.
type AnimateService struct {
	repo         Repository
	results      result.Repository
	gen          animate.Generator
	provider     Provider
	store        storage.Storage
	logger       *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration

	// createMu serializes the in-progress check with job creation.
	createMu sync.Mutex
}

// ServiceOption configures an AnimateService.
type ServiceOption func(*AnimateService)

// WithPollInterval sets the delay between provider status checks.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *AnimateService) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithTimeout sets the overall job timeout.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *AnimateService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *AnimateService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAnimateService creates a new AnimateService.
func NewAnimateService(
	repo Repository,
	results result.Repository,
	gen animate.Generator,
	provider Provider,
	store storage.Storage,
	opts ...ServiceOption,
) *AnimateService {
	s := &AnimateService{
		repo:         repo,
		results:      results,
		gen:          gen,
		provider:     provider,
		store:        store,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob stores an IN_QUEUE job for the result. A result has at most one
// unfinished job; a second request returns ErrAnimationInProgress.
func (s *AnimateService) CreateJob(ctx context.Context, in AnimateInput) (*Job, error) {
	if _, err := s.results.FindByID(ctx, in.ResultID); err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	existing, err := s.repo.ListByResult(ctx, in.ResultID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	for _, j := range existing {
		if !j.IsTerminal() {
			return nil, fmt.Errorf("%w: %s", ErrAnimationInProgress, j.ID)
		}
	}

	job := New(in.ResultID, s.provider)
	job.Prompt = strings.TrimSpace(in.Prompt)

	s.logger.Info("creating animation job",
		slog.String("job_id", job.ID),
		slog.String("result_id", in.ResultID),
		slog.String("provider", string(s.provider)),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a job by ID.
func (s *AnimateService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns the animation jobs of a result, newest first.
func (s *AnimateService) ListJobs(ctx context.Context, resultID string) ([]*Job, error) {
	return s.repo.ListByResult(ctx, resultID)
}

// Clear forgets every job. Jobs still running finish against results that
// may no longer exist.
func (s *AnimateService) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

// Start creates a job and runs it in the background. The job outlives the
// caller's context; its own timeout bounds it.
func (s *AnimateService) Start(ctx context.Context, in AnimateInput) (*Job, error) {
	job, err := s.CreateJob(ctx, in)
	if err != nil {
		return nil, err
	}
	snapshot := job.Clone()

	go func() {
		if err := s.Run(context.WithoutCancel(ctx), job); err != nil {
			s.logger.Warn("animation job did not complete",
				slog.String("job_id", job.ID),
				slog.String("status", string(job.GetStatus())),
				slog.String("error", err.Error()),
			)
		}
	}()
	return snapshot, nil
}

// Run executes the animation workflow for job:
//  1. Submit the result image to the provider
//  2. Poll until the provider reaches a terminal state or the timeout expires
//  3. Fetch the video and store it on S3, or inline as a data URL without S3
//  4. Record the video on the result and complete the job
//
// Every outcome is persisted on the job; the returned error mirrors it.
func (s *AnimateService) Run(ctx context.Context, job *Job) error {
	if err := job.Start(); err != nil {
		return err
	}
	s.save(ctx, job)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.run(runCtx, job)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAnimationTimeout):
		_ = job.Timeout()
	case errors.Is(err, context.Canceled):
		_ = job.Cancel()
	default:
		_ = job.Fail(err.Error())
	}
	s.save(ctx, job)

	s.logger.Error("animation job failed",
		slog.String("job_id", job.ID),
		slog.String("result_id", job.ResultID),
		slog.String("status", string(job.GetStatus())),
		slog.String("error", err.Error()),
	)
	return err
}

func (s *AnimateService) run(ctx context.Context, job *Job) error {
	res, err := s.results.FindByID(ctx, job.ResultID)
	if err != nil {
		return err
	}
	if !dataurl.Is(res.ImageURL) {
		return ErrUnsupportedImage
	}
	mimeType, image, err := dataurl.Decode(res.ImageURL)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	providerJobID, err := s.gen.Submit(ctx, base64.StdEncoding.EncodeToString(image), animate.SubmitOptions{
		Prompt:   job.Prompt,
		MIMEType: mimeType,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	job.SetProviderJobID(providerJobID)
	s.save(ctx, job)

	s.logger.Info("animation submitted",
		slog.String("job_id", job.ID),
		slog.String("provider_job_id", providerJobID),
	)

	poll, err := s.await(ctx, providerJobID)
	if err != nil {
		return err
	}

	switch poll.Status {
	case animate.StatusCompleted:
	case animate.StatusCancelled:
		return fmt.Errorf("provider: %w", context.Canceled)
	case animate.StatusTimedOut:
		return fmt.Errorf("%w: provider timed out", ErrAnimationTimeout)
	default:
		msg := poll.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: %s", ErrAnimationFailed, msg)
	}

	video, err := s.fetchVideo(ctx, poll)
	if err != nil {
		return err
	}
	contentType := poll.MIMEType
	if contentType == "" {
		contentType = "video/mp4"
	}

	videoURL, err := s.publish(ctx, job, contentType, video)
	if err != nil {
		return err
	}

	if _, err := s.results.Update(ctx, job.ResultID, func(r *result.Result) error {
		r.SetVideo(videoURL)
		return nil
	}); err != nil {
		return fmt.Errorf("update result: %w", err)
	}

	job.SetOutput(videoURL)
	if err := job.Complete(); err != nil {
		return err
	}
	s.save(ctx, job)

	s.logger.Info("animation completed",
		slog.String("job_id", job.ID),
		slog.String("result_id", job.ResultID),
		slog.Int("bytes", len(video)),
	)
	return nil
}

// await polls the provider until the job reaches a terminal state.
// Poll errors are logged and retried on the next tick.
func (s *AnimateService) await(ctx context.Context, providerJobID string) (animate.PollResult, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return animate.PollResult{}, fmt.Errorf("%w after %s", ErrAnimationTimeout, s.timeout)
			}
			return animate.PollResult{}, ctx.Err()
		case <-ticker.C:
		}

		poll, err := s.gen.Poll(ctx, providerJobID)
		if err != nil {
			s.logger.Warn("poll failed",
				slog.String("provider_job_id", providerJobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if poll.Status.IsTerminal() {
			return poll, nil
		}
	}
}

func (s *AnimateService) fetchVideo(ctx context.Context, poll animate.PollResult) ([]byte, error) {
	if poll.VideoBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(poll.VideoBase64)
		if err != nil {
			return nil, fmt.Errorf("decode video: %w", err)
		}
		return data, nil
	}
	if poll.VideoURL == "" {
		return nil, ErrNoVideo
	}
	data, err := s.gen.Download(ctx, poll.VideoURL)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	return data, nil
}

// publish uploads the video under animations/<result-id>/<job-id>, falling
// back to a data URL when S3 is not configured.
func (s *AnimateService) publish(ctx context.Context, job *Job, contentType string, video []byte) (string, error) {
	ext := ".mp4"
	if contentType == "video/webm" {
		ext = ".webm"
	}
	key := fmt.Sprintf("animations/%s/%s%s", job.ResultID, job.ID, ext)

	url, err := s.store.UploadToS3(ctx, key, contentType, bytes.NewReader(video))
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return dataurl.Encode(contentType, video), nil
	}
	if err != nil {
		return "", err
	}
	return url, nil
}

// save persists job, detached from cancellation so terminal states are kept.
func (s *AnimateService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
