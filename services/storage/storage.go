// Package storage persists uploaded files and hands back the public URL the
// API stores in the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sahilchouksey/uniportal-api/utils/pdfvalidation"
)

// Upload categories, used as the directory (or key prefix) of a stored file.
const (
	CategoryStudyPlans    = "study-plans"
	CategoryFaculties     = "faculties"
	CategoryUniversities  = "universities"
	CategoryDocuments     = "documents"
	CategoryArticles      = "articles"
	CategoryAdvertisement = "advertisements"
	CategoryCourses       = "courses"
)

// Kind restricts the accepted file types of an upload.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindPDF   Kind = "pdf"
	// KindMedia accepts anything a study plan year can show.
	KindMedia Kind = "media"
)

var allowedExtensions = map[Kind][]string{
	KindImage: {".jpg", ".jpeg", ".png", ".webp", ".gif"},
	KindVideo: {".mp4", ".mov"},
	KindPDF:   {".pdf"},
	KindMedia: {".jpg", ".jpeg", ".png", ".webp", ".gif", ".mp4", ".mov", ".pdf"},
}

// ErrInvalidUpload wraps every rejection produced by ValidateUpload.
var ErrInvalidUpload = errors.New("invalid upload")

// FileStore saves and removes uploaded files.
type FileStore interface {
	// Save stores the content under category and returns its public URL.
	Save(ctx context.Context, category, originalName string, content io.Reader) (string, error)
	// Delete removes a file previously returned by Save.
	Delete(ctx context.Context, url string) error
}

// ValidateUpload checks extension and size of an upload, and for PDFs that the
// document parses and stays within the page limit. maxBytes <= 0 disables the
// size check.
func ValidateUpload(header *multipart.FileHeader, kind Kind, maxBytes int64) error {
	if header == nil {
		return fmt.Errorf("%w: missing file", ErrInvalidUpload)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !extensionAllowed(kind, ext) {
		return fmt.Errorf("%w: %q is not an accepted %s file", ErrInvalidUpload, header.Filename, kind)
	}

	if maxBytes > 0 && header.Size > maxBytes {
		return fmt.Errorf("%w: %q exceeds the maximum size of %d MB", ErrInvalidUpload, header.Filename, maxBytes/(1024*1024))
	}

	if ext == ".pdf" {
		limits := pdfvalidation.StudyPlanLimits
		if maxBytes > 0 {
			limits.MaxFileSizeMB = int((maxBytes + 1024*1024 - 1) / (1024 * 1024))
		}
		result, err := pdfvalidation.ValidatePDFFile(header, limits)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpload, err)
		}
		if !result.Valid {
			return fmt.Errorf("%w: %s", ErrInvalidUpload, result.Error)
		}
	}
	return nil
}

// MediaKindOf maps an extension to the media type stored for a study plan file.
func MediaKindOf(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case extensionAllowed(KindPDF, ext):
		return KindPDF
	case extensionAllowed(KindVideo, ext):
		return KindVideo
	default:
		return KindImage
	}
}

// SaveUpload opens a multipart file and stores it.
func SaveUpload(ctx context.Context, store FileStore, category string, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	return store.Save(ctx, category, header.Filename, file)
}

func extensionAllowed(kind Kind, ext string) bool {
	for _, allowed := range allowedExtensions[kind] {
		if ext == allowed {
			return true
		}
	}
	return false
}

// objectName builds the stored name of a file: a random id keeping the
// original extension.
func objectName(category, originalName string) string {
	return category + "/" + uuid.New().String() + strings.ToLower(filepath.Ext(originalName))
}
