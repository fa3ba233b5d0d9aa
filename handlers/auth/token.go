package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/model"
	authutil "github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally carries the refresh token to revoke with the
// access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken handles POST /api/auth/refresh. The presented refresh token is
// revoked so it can be used only once.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	claims, err := h.jwtManager.ValidateKind(req.RefreshToken, authutil.TokenRefresh)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}

	revoked, err := h.blacklistService.IsTokenRevoked(c.UserContext(), claims.ID)
	if err != nil {
		return response.Internal(c, h.log, "Failed to check token status", err)
	}
	if revoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	var user model.User
	if err := h.db.Preload("Profile").First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	if err := h.blacklistService.RevokeToken(c.UserContext(), claims.ID, user.ID, claims.ExpiresAtTime(), authutil.ReasonRefresh); err != nil {
		return response.Internal(c, h.log, "Failed to rotate refresh token", err)
	}

	res, err := h.issue(&user)
	if err != nil {
		return response.Internal(c, h.log, "Failed to generate tokens", err)
	}
	return response.Success(c, res)
}

// Logout handles POST /api/auth/logout by blacklisting the access token and,
// when supplied, the refresh token of the session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	ctx := c.UserContext()
	if err := h.blacklistService.RevokeToken(ctx, claims.ID, claims.UserID, claims.ExpiresAtTime(), authutil.ReasonLogout); err != nil {
		return response.Internal(c, h.log, "Failed to logout", err)
	}

	var req LogoutRequest
	if len(c.Body()) > 0 && c.BodyParser(&req) == nil && req.RefreshToken != "" {
		refresh, err := h.jwtManager.ValidateKind(req.RefreshToken, authutil.TokenRefresh)
		if err == nil && refresh.UserID == claims.UserID {
			if err := h.blacklistService.RevokeToken(ctx, refresh.ID, refresh.UserID, refresh.ExpiresAtTime(), authutil.ReasonLogout); err != nil {
				h.log.Warn("failed to revoke refresh token on logout", "user_id", claims.UserID, "error", err)
			}
		}
	}

	return response.SuccessWithMessage(c, "Successfully logged out", nil)
}

// LogoutAll handles POST /api/auth/logout-all: every token issued to the user
// so far stops working.
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	if err := h.blacklistService.RevokeAllUserTokens(c.UserContext(), userID); err != nil {
		return response.Internal(c, h.log, "Failed to logout", err)
	}
	return response.SuccessWithMessage(c, "All sessions have been closed", nil)
}
