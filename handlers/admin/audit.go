package admin

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// AdminHandler serves the admin dashboard and the audit trail
type AdminHandler struct {
	db        *gorm.DB
	dashboard *services.DashboardService
	log       *utils.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, dashboard *services.DashboardService, log *utils.Logger) *AdminHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &AdminHandler{db: db, dashboard: dashboard, log: log}
}

// ListAuditLogs retrieves admin audit logs with pagination
// GET /api/Admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.db.WithContext(c.UserContext()).Model(&model.AdminAuditLog{})
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if adminID, ok := handlers.QueryID(c, "admin_id"); ok {
		query = query.Where("admin_id = ?", adminID)
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return response.BadRequest(c, "since must be an RFC 3339 timestamp")
		}
		query = query.Where("created_at >= ?", t.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count audit logs", err)
	}

	var logs []model.AdminAuditLog
	err := query.Preload("Admin", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	if err != nil {
		return response.Internal(c, h.log, "Failed to fetch audit logs", err)
	}
	return response.Paginated(c, logs, response.CalculatePagination(page, limit, total))
}

// GetAuditLog retrieves a specific audit log entry
// GET /api/Admin/audit-logs/:id
func (h *AdminHandler) GetAuditLog(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid log ID")
	}

	var entry model.AdminAuditLog
	err := h.db.WithContext(c.UserContext()).
		Preload("Admin", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&entry, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Audit log not found")
		}
		return response.Internal(c, h.log, "Failed to fetch audit log", err)
	}
	return response.Success(c, entry)
}
