package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// ErrNotFound is returned by Open for an unknown key.
var ErrNotFound = errors.New("asset not found")

// AssetStore keeps uploaded ticket images under opaque keys.
type AssetStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Uploader validates uploads and stores them under generated keys.
type Uploader struct {
	store    AssetStore
	maxBytes int64
	allowed  map[string]struct{}
	now      func() time.Time
}

// NewUploader builds an uploader from the storage settings.
func NewUploader(store AssetStore, cfg config.StorageConfig) *Uploader {
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Uploader{store: store, maxBytes: cfg.MaxUploadBytes, allowed: allowed, now: time.Now}
}

// MaxBytes is the per-file size limit.
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Save validates every upload before storing any of them and returns their keys in order.
func (u *Uploader) Save(ctx context.Context, userID string, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, errorutil.NewValidationError("no files uploaded", nil)
	}
	for _, up := range uploads {
		if err := u.validate(up); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(uploads))
	for _, up := range uploads {
		key := NewKey(userID, contentType(up), u.now())
		if err := u.store.Put(ctx, key, io.LimitReader(up.Body, u.maxBytes), up.Size, contentType(up)); err != nil {
			return nil, fmt.Errorf("store %s: %w", up.Filename, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (u *Uploader) validate(up Upload) error {
	if _, ok := u.allowed[contentType(up)]; !ok {
		return errorutil.NewValidationError("unsupported file type", map[string]any{
			"file":         up.Filename,
			"content_type": up.ContentType,
		})
	}
	if u.maxBytes > 0 && up.Size > u.maxBytes {
		return errorutil.NewValidationError("file too large", map[string]any{
			"file":      up.Filename,
			"max_bytes": u.maxBytes,
		})
	}
	return nil
}

// NewKey builds ticket-<userID>-<unixMillis>-<uuid><ext>. The extension follows the
// validated content type; types without a known image extension get none.
func NewKey(userID, contentType string, now time.Time) string {
	ext := extensions[strings.ToLower(contentType)]
	return fmt.Sprintf("ticket-%s-%d-%s%s", userID, now.UnixMilli(), uuid.NewString(), ext)
}

// ContentTypeForKey returns the image type implied by the key's extension,
// or application/octet-stream for anything else.
func ContentTypeForKey(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	for contentType, known := range extensions {
		if known == ext {
			return contentType
		}
	}
	return "application/octet-stream"
}

// ValidKey rejects keys that could escape the store namespace.
func ValidKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}

func contentType(up Upload) string {
	ct := strings.ToLower(strings.TrimSpace(up.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
