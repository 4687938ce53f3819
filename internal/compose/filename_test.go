package compose

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"simple", "A Cat", "a_cat"},
		{"whitespace runs collapse", "a  cat\t\non a mat", "a_cat_on_a_mat"},
		{"truncated", "The quick brown fox jumps over the lazy dog", "the_quick_brown_fox_jumps_over"},
		{"empty", "", ""},
		{"multibyte runes", strings.Repeat("é", 40), strings.Repeat("é", 30)},
		{"unicode space separators", "a\u00a0cat\u3000on\u2028a\ufeffmat", "a_cat_on_a_mat"},
		{"separators keep slashes", "50/50 sunset", "50/50_sunset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slug(tt.prompt)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxSlugLength)
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "momentsai_a_cat.mp4", FileName("A Cat", "video", "mp4"))
	assert.Equal(t, "momentsai_video.webm", FileName("", "video", "webm"))
	assert.Equal(t, "momentsai_image.png", FileName("", "image", "png"))

	prompt := strings.Repeat("x", 40)
	assert.Equal(t, "momentsai_"+strings.Repeat("x", 30)+".mp4", FileName(prompt, "video", "mp4"))
}

func TestFileName_SinglePathElement(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"50/50 sunset", "momentsai_50_50_sunset.mp4"},
		{`C:\temp\cat`, "momentsai_c:_temp_cat.mp4"},
		{"../../etc/passwd", "momentsai_.._.._etc_passwd.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			got := FileName(tt.prompt, "video", "mp4")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, filepath.Base(got))
			assert.NotContains(t, got, "\\")
		})
	}
}
