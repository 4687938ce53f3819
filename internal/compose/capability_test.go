package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lookPathIn(found map[string]string) LookPathFunc {
	return func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func TestDefaultCandidates(t *testing.T) {
	assert.Equal(t, []string{"ffmpeg", "avconv"}, DefaultCandidates(""))
	assert.Equal(t, []string{"ffmpeg", "avconv"}, DefaultCandidates("ffmpeg"))
	assert.Equal(t, []string{"/opt/bin/ffmpeg", "ffmpeg", "avconv"}, DefaultCandidates("/opt/bin/ffmpeg"))
}

func TestProbe(t *testing.T) {
	t.Run("primary name", func(t *testing.T) {
		c := Probe(lookPathIn(map[string]string{"ffmpeg": "/usr/bin/ffmpeg", "avconv": "/usr/bin/avconv"}), "ffmpeg", "avconv")
		assert.True(t, c.Supported())
		assert.Equal(t, Supported, c.Status)
		assert.Equal(t, "/usr/bin/ffmpeg", c.Binary)
		assert.NoError(t, c.Err())
	})

	t.Run("fallback name", func(t *testing.T) {
		c := Probe(lookPathIn(map[string]string{"avconv": "/usr/bin/avconv"}), "ffmpeg", "avconv")
		assert.True(t, c.Supported())
		assert.Equal(t, "/usr/bin/avconv", c.Binary)
		assert.Equal(t, []string{"ffmpeg", "avconv"}, c.Tried)
	})

	t.Run("unsupported", func(t *testing.T) {
		c := Probe(lookPathIn(nil), "ffmpeg", "avconv")
		assert.False(t, c.Supported())
		assert.Equal(t, "unsupported", c.Status.String())
		assert.ErrorIs(t, c.Err(), ErrUnsupported)
		assert.Contains(t, c.Err().Error(), "ffmpeg, avconv")
	})
}
