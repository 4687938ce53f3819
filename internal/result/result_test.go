package result

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New("a red fox", "data:image/png;base64,AAAA")

	_, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "a red fox", r.Prompt)
	assert.Equal(t, "a red fox", r.AltText)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)
	assert.Equal(t, MediaNone, r.MediaState())
}

func TestResult_MediaState(t *testing.T) {
	t.Run("narration", func(t *testing.T) {
		r := New("p", "img")
		r.SetNarration("data:audio/mpeg;base64,AAAA", "hello", "voice-1")
		assert.Equal(t, MediaAudio, r.MediaState())
		assert.True(t, r.HasAudio())
		assert.Equal(t, "hello", r.AudioPrompt)
		assert.Equal(t, "voice-1", r.VoiceID)
		assert.Empty(t, r.VideoURL, "narration never stores a composed video")
	})

	t.Run("animated video", func(t *testing.T) {
		r := New("p", "img")
		r.SetVideo("https://cdn.example.com/v.mp4")
		assert.Equal(t, MediaVideo, r.MediaState())
		assert.False(t, r.HasAudio())
	})

	t.Run("narration wins", func(t *testing.T) {
		r := New("p", "img")
		r.SetVideo("https://cdn.example.com/v.mp4")
		r.SetNarration("data:audio/mpeg;base64,AAAA", "hi", "v")
		assert.Equal(t, MediaAudio, r.MediaState())
	})
}

func TestResult_SetRevisedPrompt(t *testing.T) {
	r := New("cat", "img")
	r.SetRevisedPrompt("a tabby cat on a windowsill")
	assert.Equal(t, "a tabby cat on a windowsill", r.RevisedPrompt)
	assert.Equal(t, "a tabby cat on a windowsill", r.AltText)

	r.SetRevisedPrompt("")
	assert.Equal(t, "a tabby cat on a windowsill", r.AltText)
}

func TestResult_Clone(t *testing.T) {
	r := New("p", "img")
	r.SetNarration("a", "b", "c")

	c := r.Clone()
	c.Prompt = "changed"
	c.SetVideo("v")

	assert.Equal(t, "p", r.Prompt)
	assert.Empty(t, r.VideoURL)
	assert.Equal(t, r.AudioURL, c.AudioURL)
}
