package animate

import (
	"context"
	"fmt"

	"github.com/maauso/moments-api/internal/runpod"
)

var runpodStatuses = map[runpod.Status]Status{
	runpod.StatusInQueue:    StatusInQueue,
	runpod.StatusRunning:    StatusRunning,
	runpod.StatusInProgress: StatusRunning,
	runpod.StatusCompleted:  StatusCompleted,
	runpod.StatusFailed:     StatusFailed,
	runpod.StatusCancelled:  StatusCancelled,
	runpod.StatusTimedOut:   StatusTimedOut,
}

// RunPodAdapter runs animations on a RunPod serverless worker. The worker
// returns the video inline, so Download is unsupported.
type RunPodAdapter struct {
	client runpod.Client
}

// NewRunPodAdapter wraps a RunPod client.
func NewRunPodAdapter(client runpod.Client) *RunPodAdapter {
	return &RunPodAdapter{client: client}
}

// Submit queues the image on the worker. Source dimensions are passed
// through so the clip keeps the image aspect.
func (a *RunPodAdapter) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	req := runpod.DefaultSubmitOptions()
	if opts.Prompt != "" {
		req.Prompt = opts.Prompt
	}
	req.Width, req.Height = opts.Width, opts.Height

	jobID, err := a.client.Submit(ctx, imageB64, req)
	if err != nil {
		return "", fmt.Errorf("runpod adapter submit: %w", err)
	}
	return jobID, nil
}

// Poll maps the worker state. A completed job without video counts as failed.
func (a *RunPodAdapter) Poll(ctx context.Context, jobID string) (PollResult, error) {
	res, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return PollResult{}, fmt.Errorf("runpod adapter poll: %w", err)
	}

	status, ok := runpodStatuses[res.Status]
	if !ok {
		status = Status(res.Status)
	}
	if status == StatusCompleted && res.VideoBase64 == "" {
		status = StatusFailed
	}
	return PollResult{
		Status:      status,
		VideoBase64: res.VideoBase64,
		MIMEType:    "video/mp4",
		Error:       res.Error,
	}, nil
}

// Download always returns ErrDownloadUnsupported.
func (a *RunPodAdapter) Download(context.Context, string) ([]byte, error) {
	return nil, ErrDownloadUnsupported
}

var _ Generator = (*RunPodAdapter)(nil)
