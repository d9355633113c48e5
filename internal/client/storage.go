package client

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
)

// ErrObjectNotFound is returned when a key does not exist in storage.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// StorageClient defines the interface for object storage operations
type StorageClient interface {
	Upload(ctx context.Context, localPath, key, contentType string) (*Object, error)
	Download(ctx context.Context, key, localPath string) error
	Stat(ctx context.Context, key string) (*Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// ContentType guesses a MIME type from the file extension.
func ContentType(path string) string {
	switch filepath.Ext(path) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func exists(ctx context.Context, stat func(context.Context, string) (*Object, error), key string) (bool, error) {
	_, err := stat(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
