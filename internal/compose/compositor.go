package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maauso/moments-api/internal/media"
)

// TempStore holds composition inputs for the duration of one call.
type TempStore interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)
	CleanupTemp(ctx context.Context, paths []string) error
}

// Compositor turns a still image and a narration clip into a video file.
// A Compositor is safe for concurrent use; every call owns its own capture.
type Compositor struct {
	store      TempStore
	toolchain  ToolchainFactory
	fetcher    *Fetcher
	lookPath   LookPathFunc
	candidates []string
	formats    []Format
	frameRate  int
	logger     *slog.Logger
	observer   func(State)
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithFetcher sets the resolver for image and audio references.
func WithFetcher(f *Fetcher) Option {
	return func(c *Compositor) {
		c.fetcher = f
	}
}

// WithToolchain replaces the factory that binds a probed binary to media operations.
func WithToolchain(factory ToolchainFactory) Option {
	return func(c *Compositor) {
		c.toolchain = factory
	}
}

// WithLookPath sets the function used by the capability probe.
func WithLookPath(fn LookPathFunc) Option {
	return func(c *Compositor) {
		c.lookPath = fn
	}
}

// WithCandidates sets the toolchain names probed, in order.
func WithCandidates(names ...string) Option {
	return func(c *Compositor) {
		c.candidates = names
	}
}

// WithFormats sets the container preference order.
func WithFormats(formats ...Format) Option {
	return func(c *Compositor) {
		c.formats = formats
	}
}

// WithFrameRate sets the frame rate of the still video track.
func WithFrameRate(fps int) Option {
	return func(c *Compositor) {
		c.frameRate = fps
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) {
		c.logger = logger
	}
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(c *Compositor) {
		c.observer = fn
	}
}

// NewCompositor creates a Compositor.
func NewCompositor(store TempStore, toolchain ToolchainFactory, opts ...Option) *Compositor {
	c := &Compositor{
		store:      store,
		toolchain:  toolchain,
		candidates: DefaultCandidates(""),
		formats:    DefaultFormats,
		frameRate:  media.DefaultFrameRate,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = NewFetcher()
	}
	return c
}

// Probe reports whether the capture toolchain is available.
func (c *Compositor) Probe() Capability {
	return Probe(c.lookPath, c.candidates...)
}

// composition is the per-call state.
type composition struct {
	source Source
	state  State
	temps  []string
	stream media.Stream
	start  time.Time
}

// Compose renders src into a single video file: the image held static at its
// native size for the length of the audio, with the audio attached.
// It returns (nil, nil) when src has no audio.
//
// The capture is stopped and temporary inputs are released before Compose
// returns, whatever the outcome.
func (c *Compositor) Compose(ctx context.Context, src Source) (file *File, err error) {
	if src.AudioURL == "" {
		return nil, nil
	}

	run := &composition{source: src, state: StateIdle, start: time.Now()}
	c.notify(StateIdle)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCompose, r)
		}
		// Terminal states are only reported once the capture is down and
		// the inputs are gone.
		c.teardown(ctx, run)
		if err == nil {
			c.transition(run, StateSucceeded)
			return
		}
		var stateErr *Error
		if !errors.As(err, &stateErr) {
			err = &Error{State: run.state, Err: err}
		}
		c.logger.Error("composition failed",
			slog.String("result_id", src.ID),
			slog.String("state", string(run.state)),
			slog.String("error", err.Error()),
		)
		c.transition(run, StateFailed)
		file = nil
	}()

	capability := c.Probe()
	if !capability.Supported() {
		return nil, capability.Err()
	}
	tc := c.toolchain(capability.Binary)

	c.transition(run, StateLoadingImage)
	still, err := c.loadImage(ctx, src.ImageURL)
	if err != nil {
		return nil, err
	}
	run.temps = append(run.temps, still.Path)

	c.transition(run, StateLoadingAudio)
	narration, err := c.loadAudio(ctx, tc, src.AudioURL)
	if narration.Path != "" {
		run.temps = append(run.temps, narration.Path)
	}
	if err != nil {
		return nil, err
	}

	c.transition(run, StateCapturing)
	encoders, err := tc.Encoders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list encoders: %w", ErrCompose, err)
	}
	format, err := Negotiate(encoders, c.formats)
	if err != nil {
		return nil, err
	}

	stream, err := tc.Capture(ctx, media.StillSpec{
		ImagePath:   still.Path,
		AudioPath:   narration.Path,
		Width:       still.Width,
		Height:      still.Height,
		FrameRate:   c.frameRate,
		Duration:    narration.Metadata.Seconds(),
		VideoCodec:  format.VideoCodec,
		AudioCodec:  format.AudioCodec,
		PixelFormat: pixelFormat(still.Width, still.Height),
		Muxer:       format.Muxer,
		MuxerArgs:   format.MuxerArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: start capture: %w", ErrCompose, err)
	}
	run.stream = stream

	c.transition(run, StateRecording)
	recorder, err := c.record(ctx, stream, format)
	if err != nil {
		return nil, err
	}

	file = &File{
		Name:     FileName(src.Prompt, "video", format.Extension),
		MIMEType: recorder.MIMEType(),
		Data:     recorder.Bytes(),
	}

	c.logger.Info("composition completed",
		slog.String("result_id", src.ID),
		slog.String("file", file.Name),
		slog.String("format", format.Name),
		slog.Int("width", still.Width),
		slog.Int("height", still.Height),
		slog.Duration("audio", narration.Metadata.Duration),
		slog.Int("bytes", file.Size()),
		slog.Duration("elapsed", time.Since(run.start)),
	)
	return file, nil
}

// record drains the capture into a recorder until the audio ends, then waits
// for the capture to exit. It returns once every chunk has been flushed.
func (c *Compositor) record(ctx context.Context, stream media.Stream, format Format) (*Recorder, error) {
	recorder := NewRecorder(format.MIMEType)
	flushed := newFuture[int64]()
	go func() {
		n, err := recorder.ReadFrom(stream.Output())
		flushed.resolve(n, err)
	}()

	if _, err := flushed.await(ctx); err != nil {
		if ctx.Err() != nil {
			// Killing the capture closes its output, which ends the reader.
			stream.Stop()
			<-flushed.Done()
			return nil, fmt.Errorf("%w: %w", ErrCompose, ctx.Err())
		}
		return nil, fmt.Errorf("%w: read capture: %w", ErrCompose, err)
	}

	if err := stream.Wait(); err != nil {
		return nil, fmt.Errorf("%w: capture: %w", ErrCompose, err)
	}
	if recorder.Len() == 0 {
		return nil, fmt.Errorf("%w: capture produced no data", ErrCompose)
	}
	return recorder, nil
}

// teardown stops the capture and releases temporary inputs.
func (c *Compositor) teardown(ctx context.Context, run *composition) {
	if run.stream != nil {
		run.stream.Stop()
	}
	if len(run.temps) == 0 {
		return
	}
	if err := c.store.CleanupTemp(context.WithoutCancel(ctx), run.temps); err != nil {
		c.logger.Warn("failed to cleanup composition inputs",
			slog.String("result_id", run.source.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Compositor) transition(run *composition, next State) {
	run.state = next
	c.logger.Debug("composition state",
		slog.String("result_id", run.source.ID),
		slog.String("state", string(next)),
	)
	c.notify(next)
}

func (c *Compositor) notify(s State) {
	if c.observer != nil {
		c.observer(s)
	}
}
