package university

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// UniversityHandler handles university-related requests
type UniversityHandler struct {
	db             *gorm.DB
	store          storage.FileStore
	aggregator     *studyplan.Aggregator
	validator      *validation.Validator
	log            *utils.Logger
	maxUploadBytes int64
}

// NewUniversityHandler creates a new university handler
func NewUniversityHandler(db *gorm.DB, store storage.FileStore, aggregator *studyplan.Aggregator, log *utils.Logger, maxUploadBytes int64) *UniversityHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &UniversityHandler{
		db:             db,
		store:          store,
		aggregator:     aggregator,
		validator:      validation.NewValidator(),
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// UniversityRequest is the body of create and update. It is accepted as JSON
// or as multipart form fields next to an optional "logo" file.
type UniversityRequest struct {
	NameAr       string            `json:"name_ar" form:"name_ar" validate:"required,max=255"`
	NameEn       string            `json:"name_en" form:"name_en" validate:"required,max=255"`
	Type         string            `json:"type" form:"type" validate:"omitempty,oneof=public private"`
	FoundingYear int               `json:"founding_year" form:"founding_year" validate:"omitempty,gte=800,lte=2100"`
	Ranking      int               `json:"ranking" form:"ranking" validate:"gte=0"`
	City         string            `json:"city" form:"city" validate:"omitempty,max=100"`
	Website      string            `json:"website" form:"website" validate:"omitempty,url,max=255"`
	Email        string            `json:"email" form:"email" validate:"omitempty,email,max=255"`
	Phone        string            `json:"phone" form:"phone" validate:"omitempty,max=30"`
	Description  string            `json:"description" form:"description"`
	ContactInfo  map[string]string `json:"contact_info" form:"-"`
}

func (h *UniversityHandler) parseRequest(c *fiber.Ctx) (*UniversityRequest, error) {
	var req UniversityRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	if handlers.IsMultipart(c) {
		if raw := c.FormValue("contact_info"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.ContactInfo); err != nil {
				return nil, err
			}
		}
	}
	req.NameAr = validation.SanitizeString(req.NameAr)
	req.NameEn = validation.SanitizeString(req.NameEn)
	req.City = validation.SanitizeString(req.City)
	if req.Type == "" {
		req.Type = string(model.UniversityTypePublic)
	}
	return &req, nil
}

func (req *UniversityRequest) apply(u *model.University) {
	u.NameAr = req.NameAr
	u.NameEn = req.NameEn
	u.Type = model.UniversityType(req.Type)
	u.FoundingYear = req.FoundingYear
	u.Ranking = req.Ranking
	u.City = req.City
	u.Website = req.Website
	u.Email = req.Email
	u.Phone = req.Phone
	u.Description = req.Description
	if req.ContactInfo != nil {
		raw, _ := json.Marshal(req.ContactInfo)
		u.ContactInfo = datatypes.JSON(raw)
	}
}

// ListUniversities handles GET /api/universities
func (h *UniversityHandler) ListUniversities(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.db.Model(&model.University{})
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	if search := c.Query("search"); search != "" {
		pattern := handlers.SearchPattern(search)
		query = query.Where("LOWER(name_ar) LIKE ? OR LOWER(name_en) LIKE ? OR LOWER(city) LIKE ?", pattern, pattern, pattern)
	}
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	if city := c.Query("city"); city != "" {
		query = query.Where("city = ?", city)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count universities", err)
	}

	var universities []model.University
	if err := query.Order("ranking ASC, id ASC").Limit(limit).Offset(offset).Find(&universities).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch universities", err)
	}
	return response.Paginated(c, universities, response.CalculatePagination(page, limit, total))
}

// GetUniversity handles GET /api/universities/:id
func (h *UniversityHandler) GetUniversity(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid university ID")
	}

	query := h.db
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	var university model.University
	if err := query.Preload("HousingOptions").Preload("DocumentsRequired").First(&university, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "University not found")
		}
		return response.Internal(c, h.log, "Failed to fetch university", err)
	}
	return response.Success(c, university)
}

// GetCompleteDetails handles GET /api/universities/:id/complete-details
func (h *UniversityHandler) GetCompleteDetails(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid university ID")
	}
	details, err := h.aggregator.UniversityCompleteDetails(c.UserContext(), id)
	if errors.Is(err, studyplan.ErrUniversityNotFound) {
		return response.NotFound(c, "University not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to load university details", err)
	}
	return response.Success(c, details)
}

// CreateUniversity handles POST /api/Admin/universities
func (h *UniversityHandler) CreateUniversity(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	logoURL, err := handlers.StoreUpload(ctx, h.store, storage.CategoryUniversities, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "logo"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store logo", err)
	}

	university := model.University{LogoURL: logoURL}
	req.apply(&university)
	if err := h.db.WithContext(ctx).Create(&university).Error; err != nil {
		h.removeFile(c, logoURL)
		return response.Internal(c, h.log, "Failed to create university", err)
	}
	return response.Created(c, university)
}

// UpdateUniversity handles PUT /api/Admin/universities/:id
func (h *UniversityHandler) UpdateUniversity(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid university ID")
	}
	req, err := h.parseRequest(c)
	if err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	var university model.University
	if err := h.db.WithContext(ctx).First(&university, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "University not found")
		}
		return response.Internal(c, h.log, "Failed to fetch university", err)
	}

	logoURL, err := handlers.StoreUpload(ctx, h.store, storage.CategoryUniversities, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "logo"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store logo", err)
	}

	oldLogo := ""
	if logoURL != "" {
		oldLogo, university.LogoURL = university.LogoURL, logoURL
	}
	req.apply(&university)
	if err := h.db.WithContext(ctx).Save(&university).Error; err != nil {
		h.removeFile(c, logoURL)
		return response.Internal(c, h.log, "Failed to update university", err)
	}
	h.removeFile(c, oldLogo)
	h.aggregator.InvalidateUniversityTree(ctx, university.ID)

	return response.SuccessWithMessage(c, "University updated successfully", university)
}

// DeleteUniversity handles DELETE /api/Admin/universities/:id. Faculties with
// their study plans, housing options and required documents are soft deleted
// with it.
func (h *UniversityHandler) DeleteUniversity(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid university ID")
	}

	ctx := c.UserContext()
	var facultyIDs []uint
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Faculty{}).Where("university_id = ?", id).Pluck("id", &facultyIDs).Error; err != nil {
			return err
		}
		return softdelete.Delete(tx, softdelete.Universities, id)
	})
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "University not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete university", err)
	}

	h.aggregator.InvalidateUniversity(ctx, id, facultyIDs)
	h.log.Info("university deleted", "university_id", id, "faculties", len(facultyIDs))
	return response.SuccessWithMessage(c, "University and all related data deleted successfully", nil)
}

// PurgeUniversity handles DELETE /api/Admin/universities/:id/permanent. Rows
// are removed physically, deleted or not, and their files after the commit.
func (h *UniversityHandler) PurgeUniversity(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid university ID")
	}

	ctx := c.UserContext()
	var (
		facultyIDs []uint
		files      []string
	)
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var university model.University
		if err := tx.Unscoped().First(&university, id).Error; err != nil {
			return err
		}
		if university.LogoURL != "" {
			files = append(files, university.LogoURL)
		}

		var faculties []model.Faculty
		if err := tx.Unscoped().Where("university_id = ?", id).Find(&faculties).Error; err != nil {
			return err
		}
		for _, f := range faculties {
			facultyIDs = append(facultyIDs, f.ID)
			if f.ImageURL != "" {
				files = append(files, f.ImageURL)
			}
		}
		if len(facultyIDs) > 0 {
			var media []string
			if err := tx.Unscoped().Model(&model.StudyPlanMedia{}).
				Joins("JOIN study_plan_years ON study_plan_years.id = study_plan_media.study_plan_year_id").
				Where("study_plan_years.faculty_id IN ?", facultyIDs).
				Pluck("study_plan_media.url", &media).Error; err != nil {
				return err
			}
			files = append(files, media...)
		}
		var templates []string
		if err := tx.Unscoped().Model(&model.DocumentRequired{}).
			Where("university_id = ? AND template_url <> ''", id).
			Pluck("template_url", &templates).Error; err != nil {
			return err
		}
		files = append(files, templates...)

		return softdelete.PurgeOne(tx, softdelete.Universities, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "University not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete university", err)
	}

	for _, url := range files {
		h.removeFile(c, url)
	}
	h.aggregator.InvalidateUniversity(ctx, id, facultyIDs)
	h.log.Info("university purged", "university_id", id, "files", len(files))
	return response.SuccessWithMessage(c, "University permanently deleted", nil)
}

func (h *UniversityHandler) removeFile(c *fiber.Ctx, url string) {
	if url == "" {
		return
	}
	if err := h.store.Delete(c.UserContext(), url); err != nil {
		h.log.Warn("failed to remove file", "url", url, "error", err)
	}
}
