package course

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// CourseHandler handles course and video requests
type CourseHandler struct {
	db             *gorm.DB
	store          storage.FileStore
	videos         *services.VideoService
	validator      *validation.Validator
	log            *utils.Logger
	maxUploadBytes int64
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, store storage.FileStore, videos *services.VideoService, log *utils.Logger, maxUploadBytes int64) *CourseHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &CourseHandler{
		db:             db,
		store:          store,
		videos:         videos,
		validator:      validation.NewValidator(),
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// CourseRequest is the body of course create and update, JSON or multipart
// with an optional "thumbnail" image.
type CourseRequest struct {
	UniversityID *uint   `json:"university_id" form:"university_id"`
	Title        string  `json:"title" form:"title" validate:"required,min=3,max=255"`
	Description  string  `json:"description" form:"description"`
	Instructor   string  `json:"instructor" form:"instructor" validate:"omitempty,max=255"`
	Level        string  `json:"level" form:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Price        float64 `json:"price" form:"price" validate:"gte=0"`
	IsPublished  bool    `json:"is_published" form:"is_published"`
}

func (req *CourseRequest) apply(course *model.Course) {
	course.UniversityID = req.UniversityID
	course.Title = validation.SanitizeString(req.Title)
	course.Description = req.Description
	course.Instructor = validation.SanitizeString(req.Instructor)
	course.Level = req.Level
	course.Price = req.Price
	course.IsPublished = req.IsPublished
}

// visible restricts non admins to published courses.
func visible(c *fiber.Ctx, query *gorm.DB) *gorm.DB {
	if middleware.IsAdmin(c) {
		if handlers.IncludeDeleted(c) {
			return query.Unscoped()
		}
		return query
	}
	return query.Where("is_published = ?", true)
}

// ListCourses handles GET /api/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := visible(c, h.db.Model(&model.Course{}))
	if universityID, ok := handlers.QueryID(c, "university_id"); ok {
		query = query.Where("university_id = ?", universityID)
	}
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}
	if search := c.Query("search"); search != "" {
		pattern := handlers.SearchPattern(search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(instructor) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count courses", err)
	}

	var courses []model.Course
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&courses).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch courses", err)
	}
	return response.Paginated(c, courses, response.CalculatePagination(page, limit, total))
}

// GetCourse handles GET /api/courses/:id with its available videos
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	err := visible(c, h.db).
		Preload("Videos", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", model.VideoStatusAvailable).Order("sort_order ASC, id ASC")
		}).
		First(&course, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.Internal(c, h.log, "Failed to fetch course", err)
	}
	return response.Success(c, course)
}

// CreateCourse handles POST /api/Admin/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.UniversityID != nil {
		if err := h.db.First(&model.University{}, *req.UniversityID).Error; err != nil {
			return response.NotFound(c, "University not found")
		}
	}

	ctx := c.UserContext()
	thumbnail, err := handlers.StoreUpload(ctx, h.store, storage.CategoryCourses, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "thumbnail"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store thumbnail", err)
	}

	course := model.Course{ThumbnailURL: thumbnail}
	req.apply(&course)
	if err := h.db.WithContext(ctx).Create(&course).Error; err != nil {
		h.removeFile(c, thumbnail)
		return response.Internal(c, h.log, "Failed to create course", err)
	}
	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/Admin/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	var course model.Course
	if err := h.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.Internal(c, h.log, "Failed to fetch course", err)
	}

	thumbnail, err := handlers.StoreUpload(ctx, h.store, storage.CategoryCourses, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "thumbnail"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store thumbnail", err)
	}
	oldThumbnail := ""
	if thumbnail != "" {
		oldThumbnail, course.ThumbnailURL = course.ThumbnailURL, thumbnail
	}

	req.apply(&course)
	if err := h.db.WithContext(ctx).Omit("Videos").Save(&course).Error; err != nil {
		h.removeFile(c, thumbnail)
		return response.Internal(c, h.log, "Failed to update course", err)
	}
	h.removeFile(c, oldThumbnail)
	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/Admin/courses/:id. Its videos are soft
// deleted with it.
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		return softdelete.Delete(tx, softdelete.Courses, id)
	})
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "Course not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete course", err)
	}
	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}

func (h *CourseHandler) removeFile(c *fiber.Ctx, url string) {
	if url == "" {
		return
	}
	if err := h.store.Delete(c.UserContext(), url); err != nil {
		h.log.Warn("failed to remove file", "url", url, "error", err)
	}
}
