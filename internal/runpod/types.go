// Package runpod is a client for a RunPod serverless endpoint running an
// image-to-video worker.
package runpod

// Status is a RunPod job state as returned by /status.
type Status string

const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// SubmitOptions are the worker inputs besides the image.
type SubmitOptions struct {
	Prompt         string
	NegativePrompt string
	Width          int // 0 keeps the worker default
	Height         int // 0 keeps the worker default
	FPS            int
	Seconds        int
	Seed           int64
}

// DefaultSubmitOptions returns a five second clip at 16 fps.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Prompt:  "subtle natural motion, cinematic",
		FPS:     16,
		Seconds: 5,
	}
}

func (o SubmitOptions) withDefaults() SubmitOptions {
	d := DefaultSubmitOptions()
	if o.Prompt == "" {
		o.Prompt = d.Prompt
	}
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.Seconds <= 0 {
		o.Seconds = d.Seconds
	}
	return o
}

type runRequest struct {
	Input runInput `json:"input"`
}

type runInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImageBase64    string `json:"image_base64"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	FPS            int    `json:"fps"`
	NumFrames      int    `json:"num_frames"`
	Seed           int64  `json:"seed,omitempty"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output struct {
		Video string `json:"video,omitempty"`
	} `json:"output,omitempty"`
	Error string `json:"error,omitempty"`
}

// PollResult is the state of a job. VideoBase64 is set once it completed.
type PollResult struct {
	Status      Status
	VideoBase64 string
	Error       string
}
