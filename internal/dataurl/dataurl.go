// Package dataurl encodes and decodes RFC 2397 data URLs, the form in which
// generated images and narration clips are embedded in generation records.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformed is returned for strings that are not data URLs.
var ErrMalformed = errors.New("dataurl: malformed data URL")

// defaultMIMEType applies when a data URL omits its media type.
const defaultMIMEType = "text/plain"

// Encode returns data as a base64 data URL of the given media type.
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Is reports whether s looks like a data URL.
func Is(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// Decode returns the media type and payload of a data URL.
func Decode(s string) (mimeType string, data []byte, err error) {
	if !Is(s) {
		return "", nil, ErrMalformed
	}
	header, payload, ok := strings.Cut(s[5:], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}

	params := strings.Split(header, ";")
	mimeType = strings.TrimSpace(params[0])
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			// Some encoders drop padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
			if err != nil {
				return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
		}
		return mimeType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return mimeType, []byte(unescaped), nil
}

// Base64Payload returns the base64 payload of a base64 data URL without decoding it.
func Base64Payload(s string) (string, error) {
	if !Is(s) {
		return "", ErrMalformed
	}
	header, payload, ok := strings.Cut(s[5:], ",")
	if !ok || !strings.HasSuffix(strings.ToLower(header), ";base64") {
		return "", fmt.Errorf("%w: not base64 encoded", ErrMalformed)
	}
	return payload, nil
}
