// Package blobstore stores uploaded files (attorney profile images) behind a
// small Store interface with local disk and S3 backends, and serves
// them back under /uploads.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidKey         = errors.New("invalid blob key")
)

// imageTypes maps the accepted image MIME types to the extension used in keys.
var imageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

// URLPrefix is prepended to keys to form the public path stored on records.
const URLPrefix = "/uploads/"

func PublicPath(key string) string { return URLPrefix + key }

// KeyFromPublicPath reverses PublicPath. It returns "" for anything else.
func KeyFromPublicPath(p string) string {
	if !strings.HasPrefix(p, URLPrefix) {
		return ""
	}
	return strings.TrimPrefix(p, URLPrefix)
}

// cleanKey rejects absolute keys and any key that escapes its root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// SaveImage validates an uploaded image by sniffing its first bytes, stores it
// under prefix/<uuid><ext>, and returns the key.
func SaveImage(ctx context.Context, store Store, fh *multipart.FileHeader, prefix string, maxBytes int64) (string, error) {
	if fh.Size > maxBytes {
		return "", ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", ErrInvalidContentType
	}

	key := path.Join(prefix, uuid.NewString()+ext)
	body := io.MultiReader(bytes.NewReader(head), f)
	if err := store.Put(ctx, key, contentType, body, fh.Size); err != nil {
		return "", err
	}
	return key, nil
}
