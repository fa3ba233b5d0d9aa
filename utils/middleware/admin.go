package middleware

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// redactedFields never reach the audit log.
var redactedFields = map[string]struct{}{
	"password":         {},
	"current_password": {},
	"new_password":     {},
	"token":            {},
	"refresh_token":    {},
}

// AdminAuditLog records admin write requests after the handler ran. It must
// run after RequireAdmin. Everything the log needs is copied out of the
// request context before the write, since fiber reuses the context once the
// handler returns.
func AdminAuditLog(db *gorm.DB, log *utils.Logger, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminID, ok := GetUserID(c)
		if !ok {
			return c.Next()
		}

		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsed, err := strconv.ParseUint(id, 10, 32); err == nil {
				resourceID = uint(parsed)
			}
		}
		payload := auditPayload(c)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		entry := model.AdminAuditLog{
			AdminID:     adminID,
			Action:      action,
			Resource:    resource,
			ResourceID:  resourceID,
			NewValue:    payload,
			StatusCode:  status,
			IPAddress:   c.IP(),
			UserAgent:   strings.Clone(c.Get(fiber.HeaderUserAgent)),
			Description: c.Method() + " " + c.Path(),
		}

		go func() {
			if werr := db.Create(&entry).Error; werr != nil && log != nil {
				log.Warn("failed to write admin audit log", "action", entry.Action, "error", werr)
			}
		}()

		return err
	}
}

// auditPayload captures JSON bodies and multipart text fields. File contents
// are recorded by name only.
func auditPayload(c *fiber.Ctx) datatypes.JSON {
	var value map[string]interface{}

	switch {
	case strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON):
		if err := json.Unmarshal(c.Body(), &value); err != nil {
			return nil
		}
	case strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil
		}
		value = make(map[string]interface{}, len(form.Value)+len(form.File))
		for k, v := range form.Value {
			if len(v) == 1 {
				value[k] = v[0]
			} else {
				value[k] = v
			}
		}
		for k, files := range form.File {
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, f.Filename)
			}
			value[k] = names
		}
	default:
		return nil
	}

	for k := range value {
		if _, ok := redactedFields[k]; ok {
			value[k] = "[redacted]"
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
