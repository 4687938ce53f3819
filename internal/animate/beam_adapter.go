package animate

import (
	"context"
	"fmt"

	"github.com/maauso/moments-api/internal/beam"
)

var beamStatuses = map[beam.Status]Status{
	beam.StatusPending:   StatusPending,
	beam.StatusRunning:   StatusRunning,
	beam.StatusCompleted: StatusCompleted,
	beam.StatusComplete:  StatusCompleted,
	beam.StatusFailed:    StatusFailed,
	beam.StatusError:     StatusFailed,
	beam.StatusCanceled:  StatusCancelled,
}

// BeamAdapter runs animations on a Beam task queue. Finished clips are
// published at an output URL and fetched with Download.
type BeamAdapter struct {
	client beam.Client
}

// NewBeamAdapter wraps a Beam client.
func NewBeamAdapter(client beam.Client) *BeamAdapter {
	return &BeamAdapter{client: client}
}

func (a *BeamAdapter) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	req := beam.DefaultSubmitOptions()
	if opts.Prompt != "" {
		req.Prompt = opts.Prompt
	}
	req.Width, req.Height = opts.Width, opts.Height

	id, err := a.client.Submit(ctx, imageB64, req)
	if err != nil {
		return "", fmt.Errorf("beam adapter submit: %w", err)
	}
	return id, nil
}

// Poll maps the task state. A completed task without output URL counts as failed.
func (a *BeamAdapter) Poll(ctx context.Context, taskID string) (PollResult, error) {
	res, err := a.client.Poll(ctx, taskID)
	if err != nil {
		return PollResult{}, fmt.Errorf("beam adapter poll: %w", err)
	}

	status, ok := beamStatuses[res.Status]
	if !ok {
		status = Status(res.Status)
	}
	if status == StatusCompleted && res.OutputURL == "" {
		status = StatusFailed
	}
	return PollResult{
		Status:   status,
		VideoURL: res.OutputURL,
		MIMEType: "video/mp4",
		Error:    res.Error,
	}, nil
}

func (a *BeamAdapter) Download(ctx context.Context, videoURL string) ([]byte, error) {
	data, err := a.client.Download(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("beam adapter download: %w", err)
	}
	return data, nil
}

var _ Generator = (*BeamAdapter)(nil)
