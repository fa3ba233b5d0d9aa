package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// URLPrefix is the path under which the API serves locally stored files.
const URLPrefix = "/uploads/"

// LocalStore writes files below {root}/uploads and serves them as /uploads/...
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root (the directory Fiber serves statically).
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the directory that must be served statically.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Save(ctx context.Context, category, originalName string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := objectName(category, originalName)
	path := filepath.Join(s.root, "uploads", filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}

	return URLPrefix + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, URLPrefix) {
		return fmt.Errorf("not a local upload url: %s", url)
	}
	rel := filepath.FromSlash(strings.TrimPrefix(url, URLPrefix))
	if strings.Contains(rel, "..") {
		return fmt.Errorf("invalid upload path: %s", url)
	}

	err := os.Remove(filepath.Join(s.root, "uploads", rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
