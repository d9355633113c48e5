package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements StorageClient on a directory. It backs development
// setups and the CLI when no bucket is configured.
type LocalStorage struct {
	root      string
	publicURL string
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(root, publicURL string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStorage{root: abs, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Upload copies a local file into the store.
func (s *LocalStorage) Upload(_ context.Context, localPath, key, _ string) (*Object, error) {
	dst, err := s.path(key)
	if err != nil {
		return nil, err
	}
	size, err := copyFile(localPath, dst)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}
	return &Object{Key: key, URL: s.GetPublicURL(key), Size: size}, nil
}

// Download copies a stored object to localPath.
func (s *LocalStorage) Download(_ context.Context, key, localPath string) error {
	src, err := s.path(key)
	if err != nil {
		return err
	}
	if _, err := copyFile(src, localPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return err
	}
	return nil
}

// Stat returns the stored size of an object.
func (s *LocalStorage) Stat(_ context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return &Object{Key: key, URL: s.GetPublicURL(key), Size: st.Size()}, nil
}

// Exists reports whether the key is present.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, s.Stat, key)
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// GetPublicURL returns an http URL when one is configured, otherwise a file URL.
func (s *LocalStorage) GetPublicURL(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, strings.TrimLeft(key, "/"))
	}
	p, _ := s.path(key)
	return "file://" + filepath.ToSlash(p)
}

// LocalPath returns the file backing key.
func (s *LocalStorage) LocalPath(key string) (string, error) {
	return s.path(key)
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, os.Rename(tmp, dst)
}
