package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/model"
	authutil "github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// UpdateProfileRequest represents a profile update request. Omitted fields
// keep their value.
type UpdateProfileRequest struct {
	Name                *string  `json:"name" validate:"omitempty,min=2,max=255"`
	Phone               *string  `json:"phone" validate:"omitempty,max=30"`
	Nationality         *string  `json:"nationality" validate:"omitempty,max=100"`
	City                *string  `json:"city" validate:"omitempty,max=100"`
	BirthDate           *string  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	HighSchoolGPA       *float64 `json:"high_school_gpa" validate:"omitempty,gte=0,lte=100"`
	InterestedFacultyID *uint    `json:"interested_faculty_id"`
	CurrentPassword     string   `json:"current_password"`
	NewPassword         string   `json:"new_password" validate:"omitempty,min=8,max=72"`
}

// GetProfile handles GET /api/profile
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var user model.User
	if err := h.db.Preload("Profile").First(&user, userID).Error; err != nil {
		return response.NotFound(c, "User not found")
	}
	return response.Success(c, userResponse(&user))
}

// UpdateProfile handles PUT /api/profile. Changing the password invalidates
// every other session of the user.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	if err := h.db.Preload("Profile").First(&user, userID).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	passwordChanged := false
	if req.NewPassword != "" {
		if err := authutil.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
			return response.Unauthorized(c, "Current password is incorrect")
		}
		if ok, problems := validation.ValidatePassword(req.NewPassword); !ok {
			return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Password is too weak", "VALIDATION_ERROR", strings.Join(problems, "; "))
		}
		hashed, err := authutil.HashPassword(req.NewPassword)
		if err != nil {
			return response.Internal(c, h.log, "Failed to process password", err)
		}
		user.PasswordHash = hashed
		user.TokenVersion++
		passwordChanged = true
	}
	if req.Name != nil {
		user.Name = validation.SanitizeString(*req.Name)
	}

	profile := user.Profile
	if profile == nil {
		profile = &model.StudentProfile{UserID: user.ID}
	}
	if req.Phone != nil {
		profile.Phone = *req.Phone
	}
	if req.Nationality != nil {
		profile.Nationality = *req.Nationality
	}
	if req.City != nil {
		profile.City = *req.City
	}
	if req.BirthDate != nil {
		birth, _ := time.Parse("2006-01-02", *req.BirthDate)
		profile.BirthDate = &birth
	}
	if req.HighSchoolGPA != nil {
		profile.HighSchoolGPA = *req.HighSchoolGPA
	}
	if req.InterestedFacultyID != nil {
		if err := h.db.First(&model.Faculty{}, *req.InterestedFacultyID).Error; err != nil {
			return response.NotFound(c, "Faculty not found")
		}
		profile.InterestedFacultyID = req.InterestedFacultyID
	}

	tx := h.db.Begin()
	if err := tx.Omit("Profile").Save(&user).Error; err != nil {
		tx.Rollback()
		return response.Internal(c, h.log, "Failed to update profile", err)
	}
	if err := tx.Save(profile).Error; err != nil {
		tx.Rollback()
		return response.Internal(c, h.log, "Failed to update profile", err)
	}
	if err := tx.Commit().Error; err != nil {
		return response.Internal(c, h.log, "Failed to update profile", err)
	}
	user.Profile = profile

	if passwordChanged {
		return response.SuccessWithMessage(c, "Profile updated, please log in again", userResponse(&user))
	}
	return response.Success(c, userResponse(&user))
}
