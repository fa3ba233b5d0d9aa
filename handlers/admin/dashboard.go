package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// GetDashboard handles GET /api/Admin/dashboard
func (h *AdminHandler) GetDashboard(c *fiber.Ctx) error {
	d, err := h.dashboard.Build(c.UserContext())
	if err != nil {
		return response.Internal(c, h.log, "Failed to build dashboard", err)
	}
	return response.Success(c, d)
}
