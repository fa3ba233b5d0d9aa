package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/utils/middleware"
)

// ParseID reads a positive numeric route parameter.
func ParseID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// QueryID reads an optional positive numeric query parameter.
func QueryID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// IncludeDeleted is set only when an admin asks for include_deleted=true.
func IncludeDeleted(c *fiber.Ctx) bool {
	return middleware.IsAdmin(c) && c.QueryBool("include_deleted", false)
}

// SearchPattern builds a LIKE pattern for LOWER(column) LIKE ? lookups, which
// behave the same on postgres and sqlite.
func SearchPattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
