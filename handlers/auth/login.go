package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login. Every failure counts toward the
// brute force lockout of the caller's IP.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ip := c.IP()
	fail := func() error {
		if err := h.bruteForceProtection.RecordFailedAttempt(c.UserContext(), ip); err != nil {
			h.log.Warn("failed to record login attempt", "ip", ip, "error", err)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	var user model.User
	if err := h.db.Preload("Profile").Where("email = ?", req.Email).First(&user).Error; err != nil {
		return fail()
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return fail()
	}

	h.bruteForceProtection.RecordSuccessfulAttempt(c.UserContext(), ip)

	res, err := h.issue(&user)
	if err != nil {
		return response.Internal(c, h.log, "Failed to generate tokens", err)
	}
	return response.Success(c, res)
}
