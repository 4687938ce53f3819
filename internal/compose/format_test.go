package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate(t *testing.T) {
	t.Run("prefers mp4", func(t *testing.T) {
		f, err := Negotiate([]string{"libvpx-vp9", "libopus", "libx264", "aac"}, DefaultFormats)
		require.NoError(t, err)
		assert.Equal(t, "video/mp4", f.MIMEType)
		assert.Equal(t, "mp4", f.Extension)
	})

	t.Run("falls back to webm", func(t *testing.T) {
		f, err := Negotiate([]string{"libvpx-vp9", "libopus", "aac"}, DefaultFormats)
		require.NoError(t, err)
		assert.Equal(t, "video/webm", f.MIMEType)
		assert.Equal(t, "webm", f.Extension)
	})

	t.Run("needs both codecs", func(t *testing.T) {
		_, err := Negotiate([]string{"libx264", "libopus"}, DefaultFormats)
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("nothing available", func(t *testing.T) {
		_, err := Negotiate(nil, DefaultFormats)
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestPixelFormat(t *testing.T) {
	assert.Equal(t, "yuv420p", pixelFormat(512, 512))
	assert.Equal(t, "yuv444p", pixelFormat(511, 512))
	assert.Equal(t, "yuv444p", pixelFormat(512, 1))
}
