// Package media checks uploaded images and videos against their file
// extension.
package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is how many leading bytes CheckContent needs.
const SniffLen = 3072

// ErrContentMismatch is returned when the bytes do not match the extension.
var ErrContentMismatch = errors.New("media: content does not match extension")

// extMIME maps accepted extensions to their content type.
var extMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
}

// Allowed reports whether ext (with dot, any case) is an accepted extension.
// Video is only accepted when video is true.
func Allowed(ext string, video bool) bool {
	m, ok := extMIME[strings.ToLower(ext)]
	if !ok {
		return false
	}
	return video || !strings.HasPrefix(m, "video/")
}

// ExtForMIME returns the extension stored for a content type, or "".
func ExtForMIME(contentType string) string {
	ct := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if ct == "image/jpeg" {
		return ".jpg"
	}
	for ext, m := range extMIME {
		if m == ct {
			return ext
		}
	}
	return ""
}

// CheckContent verifies that the leading bytes of a file are of the type its
// extension claims.
func CheckContent(head []byte, ext string) error {
	want, ok := extMIME[strings.ToLower(ext)]
	if !ok {
		return fmt.Errorf("media: unsupported extension %q", ext)
	}
	got := mimetype.Detect(head)
	for m := got; m != nil; m = m.Parent() {
		if m.Is(want) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is %s", ErrContentMismatch, ext, got.String())
}
