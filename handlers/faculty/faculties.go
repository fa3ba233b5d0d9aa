package faculty

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// FacultyHandler handles faculty and study plan requests
type FacultyHandler struct {
	db        *gorm.DB
	service   *services.FacultyService
	validator *validation.Validator
	log       *utils.Logger
}

// NewFacultyHandler creates a new faculty handler
func NewFacultyHandler(db *gorm.DB, service *services.FacultyService, log *utils.Logger) *FacultyHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &FacultyHandler{
		db:        db,
		service:   service,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// SpecializationsRequest is the body of the specialization upsert.
type SpecializationsRequest struct {
	Specializations []studyplan.SpecializationInput `json:"specializations" validate:"required,min=1,dive"`
}

// writeError maps the faculty write errors to responses.
func (h *FacultyHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidUpload),
		errors.Is(err, studyplan.ErrInvalidPlan),
		errors.Is(err, model.ErrMaterialParent):
		return response.ValidationError(c, err)
	case errors.Is(err, services.ErrUniversityNotFound):
		return response.NotFound(c, "University not found")
	case errors.Is(err, services.ErrFacultyNotFound):
		return response.NotFound(c, "Faculty not found")
	case errors.Is(err, studyplan.ErrStaleFaculty):
		return response.Conflict(c, "Faculty was modified by another request, reload and retry")
	default:
		return response.Internal(c, h.log, "Failed to save faculty", err)
	}
}

// parseWrite reads the scalar fields, the image and the study plan of a
// multipart faculty request.
func (h *FacultyHandler) parseWrite(c *fiber.Ctx) (*services.FacultyFields, *studyplan.Tree, error) {
	if !handlers.IsMultipart(c) {
		return nil, nil, response.BadRequest(c, "Expected multipart/form-data")
	}
	var fields services.FacultyFields
	if err := c.BodyParser(&fields); err != nil {
		return nil, nil, response.BadRequest(c, "Invalid request body")
	}
	fields.NameAr = validation.SanitizeString(fields.NameAr)
	fields.NameEn = validation.SanitizeString(fields.NameEn)
	if err := h.validator.ValidateStruct(fields); err != nil {
		return nil, nil, response.ValidationError(c, err)
	}
	fields.Image = handlers.FormFile(c, "image")

	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, response.BadRequest(c, "Invalid multipart form")
	}
	tree, err := studyplan.Decode(h.validator, form)
	if err != nil {
		return nil, nil, response.ValidationError(c, err)
	}
	return &fields, tree, nil
}

// ListFaculties handles GET /api/faculties
func (h *FacultyHandler) ListFaculties(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.db.Model(&model.Faculty{})
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	if universityID, ok := handlers.QueryID(c, "university_id"); ok {
		query = query.Where("university_id = ?", universityID)
	}
	if search := c.Query("search"); search != "" {
		pattern := handlers.SearchPattern(search)
		query = query.Where("LOWER(name_ar) LIKE ? OR LOWER(name_en) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count faculties", err)
	}

	var faculties []model.Faculty
	if err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&faculties).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch faculties", err)
	}
	return response.Paginated(c, faculties, response.CalculatePagination(page, limit, total))
}

// GetFaculty handles GET /api/faculties/:id with the full study plan tree.
// Admins may pass include_deleted=true to see soft deleted rows at every level.
func (h *FacultyHandler) GetFaculty(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid faculty ID")
	}
	details, err := h.service.Details(c.UserContext(), id, handlers.IncludeDeleted(c))
	if errors.Is(err, services.ErrFacultyNotFound) {
		return response.NotFound(c, "Faculty not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to load faculty", err)
	}
	return response.Success(c, details)
}

// CreateFaculty handles POST /api/Admin/faculties
func (h *FacultyHandler) CreateFaculty(c *fiber.Ctx) error {
	fields, tree, err := h.parseWrite(c)
	if fields == nil {
		return err
	}
	faculty, err := h.service.Create(c.UserContext(), fields, tree)
	if err != nil {
		return h.writeError(c, err)
	}
	details, err := h.service.Details(c.UserContext(), faculty.ID, false)
	if err != nil {
		return response.Internal(c, h.log, "Failed to load faculty", err)
	}
	return response.Created(c, details)
}

// ReplaceFaculty handles PUT /api/Admin/faculties/:id. The submitted study
// plan replaces the current one. A "version" field equal to the faculty's
// current version guards against concurrent edits; omitting it overwrites.
func (h *FacultyHandler) ReplaceFaculty(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid faculty ID")
	}
	fields, tree, err := h.parseWrite(c)
	if fields == nil {
		return err
	}
	version := 0
	if raw := c.FormValue("version"); raw != "" {
		if version, err = strconv.Atoi(raw); err != nil || version < 0 {
			return response.BadRequest(c, "Invalid version")
		}
	}

	if _, err := h.service.Replace(c.UserContext(), id, version, fields, tree); err != nil {
		return h.writeError(c, err)
	}
	details, err := h.service.Details(c.UserContext(), id, false)
	if err != nil {
		return response.Internal(c, h.log, "Failed to load faculty", err)
	}
	return response.SuccessWithMessage(c, "Faculty updated successfully", details)
}

// DeleteFaculty handles DELETE /api/Admin/faculties/:id
func (h *FacultyHandler) DeleteFaculty(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid faculty ID")
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.writeError(c, err)
	}
	return response.SuccessWithMessage(c, "Faculty deleted successfully", nil)
}

// PurgeFaculty handles DELETE /api/Admin/faculties/:id/permanent
func (h *FacultyHandler) PurgeFaculty(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid faculty ID")
	}
	if err := h.service.Purge(c.UserContext(), id); err != nil {
		return h.writeError(c, err)
	}
	return response.SuccessWithMessage(c, "Faculty permanently deleted", nil)
}

// UpsertSpecializations handles POST /api/Admin/faculties/:id/specializations.
// Entries carrying the id of one of the faculty's specializations reactivate
// and update it, the rest are inserted.
func (h *FacultyHandler) UpsertSpecializations(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid faculty ID")
	}
	var req SpecializationsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	nodes := make([]studyplan.SpecializationNode, 0, len(req.Specializations))
	for _, s := range req.Specializations {
		nodes = append(nodes, studyplan.SpecializationNode{
			ID:          s.ID,
			Name:        validation.SanitizeString(s.Name),
			Description: s.Description,
		})
	}
	specs, err := h.service.UpsertSpecializations(c.UserContext(), id, nodes)
	if err != nil {
		return h.writeError(c, err)
	}
	return response.Success(c, specs)
}
