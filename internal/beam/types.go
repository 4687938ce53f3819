// Package beam is a client for a Beam.cloud task queue running an
// image-to-video model.
package beam

// Status is a Beam task state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusComplete  Status = "COMPLETE" // returned by some queue versions
	StatusFailed    Status = "FAILED"
	StatusError     Status = "ERROR"
	StatusCanceled  Status = "CANCELED"
)

func normalize(s Status) Status {
	switch s {
	case StatusComplete:
		return StatusCompleted
	case StatusError:
		return StatusFailed
	}
	return s
}

// IsTerminal reports whether the task has finished.
func (s Status) IsTerminal() bool {
	switch normalize(s) {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// SubmitOptions are the model inputs besides the image.
type SubmitOptions struct {
	Prompt string
	Width  int // 0 keeps the image width
	Height int // 0 keeps the image height
}

// DefaultSubmitOptions returns the default motion prompt.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{Prompt: "subtle natural motion, cinematic"}
}

type taskRequest struct {
	Prompt      string `json:"prompt,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type taskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type statusResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Outputs []struct {
		Name string `json:"name,omitempty"`
		URL  string `json:"url,omitempty"`
	} `json:"outputs,omitempty"`
	Error string `json:"error,omitempty"`
}

// PollResult is the state of a task. OutputURL is set once it completed.
type PollResult struct {
	Status    Status
	OutputURL string
	Error     string
}
