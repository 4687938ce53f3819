// Package result provides the generation record aggregate: one generated or
// edited image with its prompt and the media attached to it afterwards.
package result

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MediaState is the kind of moving media a result carries.
type MediaState string

const (
	// MediaNone means the result is a still image only.
	MediaNone MediaState = "none"
	// MediaAudio means the result has narration; its video is composed on demand.
	MediaAudio MediaState = "audio"
	// MediaVideo means an animated video was generated for the result.
	MediaVideo MediaState = "video"
)

// Result is a single generation record.
type Result struct {
	mu sync.RWMutex

	// ID is a UUID assigned at creation.
	ID string
	// Prompt is the text the image was generated or edited with.
	Prompt string
	// ImageURL is the generated image, usually a data URL.
	ImageURL string
	// RevisedPrompt is the prompt the model actually used, when it reports one.
	RevisedPrompt string
	// AltText describes the image for assistive technology.
	AltText string
	// AudioURL is the narration clip, usually a data URL. Empty without narration.
	AudioURL string
	// AudioPrompt is the narrated text.
	AudioPrompt string
	// VoiceID is the voice the narration was spoken with.
	VoiceID string
	// VideoURL is an animated video from an image-to-video provider.
	// Videos composed from narration are never stored here.
	VideoURL string
	// CreatedAt is when the result was created.
	CreatedAt time.Time
	// UpdatedAt is when the result was last updated.
	UpdatedAt time.Time
}

// New creates a result for an image generated from prompt.
func New(prompt, imageURL string) *Result {
	now := time.Now()
	return &Result{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		ImageURL:  imageURL,
		AltText:   prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a result with the specified ID.
func NewWithID(id, prompt, imageURL string) *Result {
	r := New(prompt, imageURL)
	r.ID = id
	return r
}

// SetNarration attaches a narration clip.
func (r *Result) SetNarration(audioURL, text, voiceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AudioURL = audioURL
	r.AudioPrompt = text
	r.VoiceID = voiceID
	r.UpdatedAt = time.Now()
}

// SetVideo attaches an animated video.
func (r *Result) SetVideo(videoURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.VideoURL = videoURL
	r.UpdatedAt = time.Now()
}

// SetRevisedPrompt records the prompt reported by the model.
func (r *Result) SetRevisedPrompt(prompt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RevisedPrompt = prompt
	if prompt != "" {
		r.AltText = prompt
	}
	r.UpdatedAt = time.Now()
}

// MediaState reports the moving media of the result. Narration wins over an
// animated video since it is what the download composes.
func (r *Result) MediaState() MediaState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.AudioURL != "":
		return MediaAudio
	case r.VideoURL != "":
		return MediaVideo
	default:
		return MediaNone
	}
}

// HasAudio returns true when narration is attached.
func (r *Result) HasAudio() bool {
	return r.MediaState() == MediaAudio
}

// Clone creates a copy of the result for safe reads.
func (r *Result) Clone() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Result{
		ID:            r.ID,
		Prompt:        r.Prompt,
		ImageURL:      r.ImageURL,
		RevisedPrompt: r.RevisedPrompt,
		AltText:       r.AltText,
		AudioURL:      r.AudioURL,
		AudioPrompt:   r.AudioPrompt,
		VoiceID:       r.VoiceID,
		VideoURL:      r.VideoURL,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
