// Package storagetest provides an in-memory FileStore and multipart helpers for tests.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"sync"
	"testing"
)

// ErrInjected is returned by MemoryStore.Save once FailAfter saves succeeded.
var ErrInjected = errors.New("injected storage failure")

// MemoryStore keeps saved files in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int

	// FailAfter makes Save fail once this many saves succeeded. Negative disables.
	FailAfter int
	Deleted   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: map[string][]byte{}, FailAfter: -1}
}

func (s *MemoryStore) Save(ctx context.Context, category, originalName string, content io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAfter >= 0 && s.seq >= s.FailAfter {
		return "", ErrInjected
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.seq++
	url := fmt.Sprintf("/uploads/%s/%d-%s", category, s.seq, originalName)
	s.files[url] = data
	return url, nil
}

func (s *MemoryStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, url)
	s.Deleted = append(s.Deleted, url)
	return nil
}

// Has reports whether url is currently stored.
func (s *MemoryStore) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[url]
	return ok
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// File is one file part of a multipart form built by Form.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// Form encodes values and files as multipart and parses them back, giving the
// exact *multipart.Form a handler would see.
func Form(t testing.TB, values map[string][]string, files ...File) *multipart.Form {
	t.Helper()

	body, contentType := Encode(t, values, files...)
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("content type: %v", err)
	}
	form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form
}

// Encode writes a multipart body and returns it with its content type.
func Encode(t testing.TB, values map[string][]string, files ...File) ([]byte, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, list := range values {
		for _, v := range list {
			if err := w.WriteField(key, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

// FileHeader returns a single parsed file header.
func FileHeader(t testing.TB, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	form := Form(t, nil, File{Field: "file", Name: name, Content: content})
	return form.File["file"][0]
}
