package compose

import (
	"regexp"
	"strings"
)

const (
	// FilePrefix starts every packaged file name.
	FilePrefix = "momentsai_"
	// MaxSlugLength bounds the prompt-derived part of a file name, in runes.
	MaxSlugLength = 30
)

// whitespaceRun matches ASCII whitespace and Unicode space separators
// (no-break space, ideographic space, line and paragraph separators, BOM).
var whitespaceRun = regexp.MustCompile(`[\s\p{Z}\x{FEFF}]+`)

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// Slug derives a file name stem from a prompt: lower-cased, whitespace runs
// replaced by "_", truncated to MaxSlugLength runes.
func Slug(prompt string) string {
	s := whitespaceRun.ReplaceAllString(strings.ToLower(prompt), "_")
	runes := []rune(s)
	if len(runes) > MaxSlugLength {
		runes = runes[:MaxSlugLength]
	}
	return string(runes)
}

// FileName builds "momentsai_<slug>.<ext>", using fallback when the slug is empty.
// Path separators in the slug become "_" so the name is always a single path
// element, safe to join onto a directory or an object key prefix.
func FileName(prompt, fallback, ext string) string {
	slug := Slug(prompt)
	if slug == "" {
		slug = fallback
	}
	return FilePrefix + pathSeparators.Replace(slug) + "." + ext
}
