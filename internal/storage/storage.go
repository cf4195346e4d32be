// Package storage persists uploaded listing images and returns the public
// URL each one is served from.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownURL is returned by Delete for URLs the store did not issue.
var ErrUnknownURL = errors.New("url not managed by this store")

// ImageStore saves image bytes under a key and removes them by public URL.
type ImageStore interface {
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewKey returns a unique object key that keeps a sanitized form of the
// uploaded file name, e.g. "3f0c...-front-door.jpg".
func NewKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = unsafeKeyChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "image"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return uuid.NewString() + "-" + strings.ToLower(base)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
