package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/utils"
	authutil "github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
	log                  *utils.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection, log *utils.Logger) *AuthHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForceProtection,
		validator:            validation.NewValidator(),
		log:                  log,
	}
}

// RegisterRequest represents a student registration request. Admin accounts
// are only created by the seed command.
type RegisterRequest struct {
	Email               string  `json:"email" validate:"required,email,max=255"`
	Password            string  `json:"password" validate:"required,min=8,max=72"`
	Name                string  `json:"name" validate:"required,min=2,max=255"`
	Phone               string  `json:"phone" validate:"omitempty,max=30"`
	Nationality         string  `json:"nationality" validate:"omitempty,max=100"`
	City                string  `json:"city" validate:"omitempty,max=100"`
	BirthDate           string  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	HighSchoolGPA       float64 `json:"high_school_gpa" validate:"gte=0,lte=100"`
	InterestedFacultyID *uint   `json:"interested_faculty_id"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint                  `json:"id"`
	Email     string                `json:"email"`
	Name      string                `json:"name"`
	Role      string                `json:"role"`
	Profile   *model.StudentProfile `json:"profile,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func userResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Profile:   user.Profile,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (h *AuthHandler) issue(user *model.User) (*AuthResponse, error) {
	pair, err := h.jwtManager.GeneratePair(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:         userResponse(user),
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		ExpiresIn:    int(time.Until(pair.Access.ExpiresAt).Seconds()),
	}, nil
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = validation.SanitizeString(req.Name)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if ok, problems := validation.ValidatePassword(req.Password); !ok {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Password is too weak", "VALIDATION_ERROR", strings.Join(problems, "; "))
	}

	var existing int64
	if err := h.db.Unscoped().Model(&model.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return response.Internal(c, h.log, "Failed to check email", err)
	}
	if existing > 0 {
		return response.Conflict(c, "User with this email already exists")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.Internal(c, h.log, "Failed to process password", err)
	}

	profile := &model.StudentProfile{
		Phone:               req.Phone,
		Nationality:         req.Nationality,
		City:                req.City,
		HighSchoolGPA:       req.HighSchoolGPA,
		InterestedFacultyID: req.InterestedFacultyID,
	}
	if req.BirthDate != "" {
		birth, _ := time.Parse("2006-01-02", req.BirthDate)
		profile.BirthDate = &birth
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Role:         model.RoleStudent,
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if req.InterestedFacultyID != nil {
			if err := tx.First(&model.Faculty{}, *req.InterestedFacultyID).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "Faculty not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to create user", err)
	}
	user.Profile = profile

	res, err := h.issue(&user)
	if err != nil {
		return response.Internal(c, h.log, "Failed to generate tokens", err)
	}
	h.log.Info("student registered", "user_id", user.ID)
	return response.Created(c, res)
}
