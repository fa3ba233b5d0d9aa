package handlers

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/services/storage"
)

// IsMultipart reports whether the request body is multipart/form-data.
func IsMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// FormFile returns the file part named field, or nil when the request is not
// multipart or carries no such part.
func FormFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	if !IsMultipart(c) {
		return nil
	}
	header, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return header
}

// StoreUpload validates and saves an optional upload. It returns "" when
// header is nil. Validation failures wrap storage.ErrInvalidUpload.
func StoreUpload(ctx context.Context, store storage.FileStore, category string, kind storage.Kind, maxBytes int64, header *multipart.FileHeader) (string, error) {
	if header == nil {
		return "", nil
	}
	if err := storage.ValidateUpload(header, kind, maxBytes); err != nil {
		return "", err
	}
	return storage.SaveUpload(ctx, store, category, header)
}
