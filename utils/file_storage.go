package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalImageStore keeps measure images on disk. Files are served by the HTTP
// server under /uploads, so the returned URL is publicBaseURL + "/uploads/" + key.
type LocalImageStore struct {
	uploadPath    string
	publicBaseURL string
}

func NewLocalImageStore(uploadPath, publicBaseURL string) *LocalImageStore {
	return &LocalImageStore{
		uploadPath:    uploadPath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *LocalImageStore) Upload(ctx context.Context, data []byte, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.UploadFileFromReader(bytes.NewReader(data), key); err != nil {
		return "", err
	}
	return s.ObjectURL(key), nil
}

func (s *LocalImageStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.DeleteFile(key)
}

// ObjectURL escapes each path segment of key.
func (s *LocalImageStore) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.publicBaseURL + "/uploads/" + strings.Join(segments, "/")
}

// UploadFileFromReader writes src to key below the upload directory.
func (s *LocalImageStore) UploadFileFromReader(src io.Reader, key string) (string, error) {
	filePath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	return filePath, nil
}

// DeleteFile removes key. A missing file is not an error.
func (s *LocalImageStore) DeleteFile(key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListImages returns the keys of files last modified before olderThan.
func (s *LocalImageStore) ListImages(ctx context.Context, olderThan time.Time) ([]string, error) {
	root, err := filepath.Abs(s.uploadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}

	var keys []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && path == root {
				return filepath.SkipDir
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(olderThan) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list uploaded images: %w", err)
	}
	return keys, nil
}

// resolve keeps keys such as "../x" from escaping the upload directory.
func (s *LocalImageStore) resolve(key string) (string, error) {
	root, err := filepath.Abs(s.uploadPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	fullPath := filepath.Join(root, filepath.FromSlash(key))
	if fullPath == root || !strings.HasPrefix(fullPath, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return fullPath, nil
}
