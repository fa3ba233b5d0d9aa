package consultation

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/sanitize"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// ConsultationHandler handles consultation requests
type ConsultationHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	log       *utils.Logger
	now       func() time.Time
}

// NewConsultationHandler creates a new consultation handler
func NewConsultationHandler(db *gorm.DB, log *utils.Logger) *ConsultationHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &ConsultationHandler{
		db:        db,
		validator: validation.NewValidator(),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest is the body of a new consultation
type CreateRequest struct {
	UniversityID *uint  `json:"university_id"`
	FacultyID    *uint  `json:"faculty_id"`
	Subject      string `json:"subject" validate:"required,min=3,max=255"`
	Message      string `json:"message" validate:"required,min=10,max=5000"`
}

// ReplyRequest is the body of an advisor reply
type ReplyRequest struct {
	Reply string `json:"reply" validate:"required,max=5000"`
}

// CreateConsultation handles POST /api/consultations
func (h *ConsultationHandler) CreateConsultation(c *fiber.Ctx) error {
	studentID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	if req.FacultyID != nil {
		var faculty model.Faculty
		if err := h.db.WithContext(ctx).Select("id", "university_id").First(&faculty, *req.FacultyID).Error; err != nil {
			return response.NotFound(c, "Faculty not found")
		}
		if req.UniversityID != nil && *req.UniversityID != faculty.UniversityID {
			return response.BadRequest(c, "Faculty does not belong to the university")
		}
		req.UniversityID = &faculty.UniversityID
	} else if req.UniversityID != nil {
		if err := h.db.WithContext(ctx).First(&model.University{}, *req.UniversityID).Error; err != nil {
			return response.NotFound(c, "University not found")
		}
	}

	consultation := model.Consultation{
		StudentID:    studentID,
		UniversityID: req.UniversityID,
		FacultyID:    req.FacultyID,
		Subject:      validation.SanitizeString(req.Subject),
		Message:      sanitize.Text(req.Message),
		Status:       model.ConsultationPending,
	}
	if err := h.db.WithContext(ctx).Create(&consultation).Error; err != nil {
		return response.Internal(c, h.log, "Failed to create consultation", err)
	}
	return response.Created(c, consultation)
}

// ListMine handles GET /api/consultations
func (h *ConsultationHandler) ListMine(c *fiber.Ctx) error {
	studentID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	page, limit, offset := response.PageParams(c)

	query := h.db.WithContext(c.UserContext()).Model(&model.Consultation{}).Where("student_id = ?", studentID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count consultations", err)
	}
	var items []model.Consultation
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch consultations", err)
	}
	return response.Paginated(c, items, response.CalculatePagination(page, limit, total))
}

// ListConsultations handles GET /api/Admin/consultations
func (h *ConsultationHandler) ListConsultations(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.db.WithContext(c.UserContext()).Model(&model.Consultation{})
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if universityID, ok := handlers.QueryID(c, "university_id"); ok {
		query = query.Where("university_id = ?", universityID)
	}
	if search := c.Query("search"); search != "" {
		pattern := handlers.SearchPattern(search)
		query = query.Where("LOWER(subject) LIKE ? OR LOWER(message) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count consultations", err)
	}
	var items []model.Consultation
	err := query.Preload("Student", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&items).Error
	if err != nil {
		return response.Internal(c, h.log, "Failed to fetch consultations", err)
	}
	return response.Paginated(c, items, response.CalculatePagination(page, limit, total))
}

func (h *ConsultationHandler) load(c *fiber.Ctx) (*model.Consultation, error) {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return nil, response.BadRequest(c, "Invalid consultation ID")
	}
	var consultation model.Consultation
	if err := h.db.WithContext(c.UserContext()).First(&consultation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "Consultation not found")
		}
		return nil, response.Internal(c, h.log, "Failed to fetch consultation", err)
	}
	return &consultation, nil
}

// ReplyConsultation handles PUT /api/Admin/consultations/:id/reply
func (h *ConsultationHandler) ReplyConsultation(c *fiber.Ctx) error {
	consultation, err := h.load(c)
	if consultation == nil {
		return err
	}
	if consultation.Status == model.ConsultationClosed {
		return response.Conflict(c, "Consultation is closed")
	}
	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	adminID, _ := middleware.GetUserID(c)
	now := h.now()
	consultation.Reply = sanitize.Text(req.Reply)
	consultation.Status = model.ConsultationAnswered
	consultation.RepliedByID = &adminID
	consultation.RepliedAt = &now
	if err := h.db.WithContext(c.UserContext()).Omit("Student").Save(consultation).Error; err != nil {
		return response.Internal(c, h.log, "Failed to save reply", err)
	}
	return response.SuccessWithMessage(c, "Reply sent", consultation)
}

// CloseConsultation handles PUT /api/Admin/consultations/:id/close
func (h *ConsultationHandler) CloseConsultation(c *fiber.Ctx) error {
	consultation, err := h.load(c)
	if consultation == nil {
		return err
	}
	if consultation.Status == model.ConsultationClosed {
		return response.Conflict(c, "Consultation is already closed")
	}
	if err := h.db.WithContext(c.UserContext()).Model(consultation).Update("status", model.ConsultationClosed).Error; err != nil {
		return response.Internal(c, h.log, "Failed to close consultation", err)
	}
	consultation.Status = model.ConsultationClosed
	return response.SuccessWithMessage(c, "Consultation closed", consultation)
}

// DeleteConsultation handles DELETE /api/Admin/consultations/:id
func (h *ConsultationHandler) DeleteConsultation(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid consultation ID")
	}
	err := softdelete.Delete(h.db.WithContext(c.UserContext()), softdelete.Consultations, id)
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "Consultation not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete consultation", err)
	}
	return response.SuccessWithMessage(c, "Consultation deleted successfully", nil)
}
