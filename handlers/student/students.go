package student

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// StudentHandler serves the admin view of student accounts
type StudentHandler struct {
	db  *gorm.DB
	log *utils.Logger
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(db *gorm.DB, log *utils.Logger) *StudentHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &StudentHandler{db: db, log: log}
}

// StudentDetail is a student with their consultation history
type StudentDetail struct {
	model.User
	Consultations []model.Consultation `json:"consultations"`
}

func (h *StudentHandler) students(c *fiber.Ctx) *gorm.DB {
	query := h.db.WithContext(c.UserContext()).Model(&model.User{}).Where("role = ?", model.RoleStudent)
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	return query
}

// ListStudents handles GET /api/Admin/students
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.students(c)
	if search := c.Query("search"); search != "" {
		pattern := handlers.SearchPattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if facultyID, ok := handlers.QueryID(c, "faculty_id"); ok {
		query = query.Where("id IN (?)", h.db.Model(&model.StudentProfile{}).Select("user_id").Where("interested_faculty_id = ?", facultyID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count students", err)
	}

	var users []model.User
	err := query.Preload("Profile", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		return response.Internal(c, h.log, "Failed to fetch students", err)
	}
	return response.Paginated(c, users, response.CalculatePagination(page, limit, total))
}

// GetStudent handles GET /api/Admin/students/:id
func (h *StudentHandler) GetStudent(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid student ID")
	}

	var detail StudentDetail
	err := h.students(c).Preload("Profile", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).First(&detail.User, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.Internal(c, h.log, "Failed to fetch student", err)
	}

	query := h.db.Where("student_id = ?", id)
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	if err := query.Order("created_at DESC, id DESC").Find(&detail.Consultations).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch consultations", err)
	}
	return response.Success(c, detail)
}

// isStudent reports whether id names a student account, deleted or not.
func (h *StudentHandler) isStudent(tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := tx.Unscoped().Model(&model.User{}).Where("id = ? AND role = ?", id, model.RoleStudent).Count(&count).Error
	return count > 0, err
}

// DeleteStudent handles DELETE /api/Admin/students/:id. The profile and
// consultations are soft deleted with the account; its tokens stop working
// because the account no longer resolves.
func (h *StudentHandler) DeleteStudent(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid student ID")
	}
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		student, err := h.isStudent(tx, id)
		if err != nil {
			return err
		}
		if !student {
			return softdelete.ErrNotFound
		}
		return softdelete.Delete(tx, softdelete.Users, id)
	})
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "Student not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete student", err)
	}
	return response.SuccessWithMessage(c, "Student deleted successfully", nil)
}

// PurgeStudent handles DELETE /api/Admin/students/:id/permanent
func (h *StudentHandler) PurgeStudent(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid student ID")
	}
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		student, err := h.isStudent(tx, id)
		if err != nil {
			return err
		}
		if !student {
			return softdelete.ErrNotFound
		}
		return softdelete.PurgeOne(tx, softdelete.Users, id)
	})
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "Student not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to purge student", err)
	}
	h.log.Info("student permanently deleted", "student_id", id)
	return response.SuccessWithMessage(c, "Student permanently deleted", nil)
}
