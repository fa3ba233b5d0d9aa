package university

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// HousingRequest is the body of housing option create and update.
type HousingRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Type        string  `json:"type" validate:"omitempty,oneof=dorm apartment partner"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
}

// DocumentRequest is the body of required document create and update; the
// optional "template" file must be a PDF.
type DocumentRequest struct {
	Name        string `json:"name" form:"name" validate:"required,max=255"`
	Description string `json:"description" form:"description"`
}

// activeUniversity loads the university of the :id route parameter.
func (h *UniversityHandler) activeUniversity(c *fiber.Ctx) (uint, error) {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return 0, response.BadRequest(c, "Invalid university ID")
	}
	var count int64
	if err := h.db.WithContext(c.UserContext()).Model(&model.University{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return 0, response.Internal(c, h.log, "Failed to fetch university", err)
	}
	if count == 0 {
		return 0, response.NotFound(c, "University not found")
	}
	return id, nil
}

// ListHousingOptions handles GET /api/universities/:id/housing-options
func (h *UniversityHandler) ListHousingOptions(c *fiber.Ctx) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	var options []model.HousingOption
	if err := h.db.Where("university_id = ?", universityID).Order("price ASC, id ASC").Find(&options).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch housing options", err)
	}
	return response.Success(c, options)
}

// CreateHousingOption handles POST /api/Admin/universities/:id/housing-options
func (h *UniversityHandler) CreateHousingOption(c *fiber.Ctx) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	var req HousingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	option := model.HousingOption{
		UniversityID: universityID,
		Name:         req.Name,
		Type:         req.Type,
		Price:        req.Price,
		Description:  req.Description,
	}
	if err := h.db.Create(&option).Error; err != nil {
		return response.Internal(c, h.log, "Failed to create housing option", err)
	}
	h.aggregator.Invalidate(c.UserContext(), 0, universityID)
	return response.Created(c, option)
}

// UpdateHousingOption handles PUT /api/Admin/universities/:id/housing-options/:itemId
func (h *UniversityHandler) UpdateHousingOption(c *fiber.Ctx) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	itemID, ok := handlers.ParseID(c, "itemId")
	if !ok {
		return response.BadRequest(c, "Invalid housing option ID")
	}
	var req HousingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var option model.HousingOption
	if err := h.db.Where("university_id = ?", universityID).First(&option, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Housing option not found")
		}
		return response.Internal(c, h.log, "Failed to fetch housing option", err)
	}
	option.Name, option.Type, option.Price, option.Description = req.Name, req.Type, req.Price, req.Description
	if err := h.db.Save(&option).Error; err != nil {
		return response.Internal(c, h.log, "Failed to update housing option", err)
	}
	h.aggregator.Invalidate(c.UserContext(), 0, universityID)
	return response.Success(c, option)
}

// DeleteHousingOption handles DELETE /api/Admin/universities/:id/housing-options/:itemId
func (h *UniversityHandler) DeleteHousingOption(c *fiber.Ctx) error {
	return h.deleteChild(c, softdelete.HousingOptions, "Housing option not found")
}

// ListDocuments handles GET /api/universities/:id/documents
func (h *UniversityHandler) ListDocuments(c *fiber.Ctx) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	var docs []model.DocumentRequired
	if err := h.db.Where("university_id = ?", universityID).Order("id ASC").Find(&docs).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch documents", err)
	}
	return response.Success(c, docs)
}

// CreateDocument handles POST /api/Admin/universities/:id/documents
func (h *UniversityHandler) CreateDocument(c *fiber.Ctx) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	var req DocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	templateURL, err := handlers.StoreUpload(ctx, h.store, storage.CategoryDocuments, storage.KindPDF, h.maxUploadBytes, handlers.FormFile(c, "template"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store template", err)
	}

	doc := model.DocumentRequired{
		UniversityID: universityID,
		Name:         req.Name,
		Description:  req.Description,
		TemplateURL:  templateURL,
	}
	if err := h.db.Create(&doc).Error; err != nil {
		h.removeFile(c, templateURL)
		return response.Internal(c, h.log, "Failed to create document", err)
	}
	h.aggregator.Invalidate(ctx, 0, universityID)
	return response.Created(c, doc)
}

// UpdateDocument handles PUT /api/Admin/universities/:id/documents/:itemId
func (h *UniversityHandler) UpdateDocument(c *fiber.Ctx) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	itemID, ok := handlers.ParseID(c, "itemId")
	if !ok {
		return response.BadRequest(c, "Invalid document ID")
	}
	var req DocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	var doc model.DocumentRequired
	if err := h.db.Where("university_id = ?", universityID).First(&doc, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Document not found")
		}
		return response.Internal(c, h.log, "Failed to fetch document", err)
	}

	templateURL, err := handlers.StoreUpload(ctx, h.store, storage.CategoryDocuments, storage.KindPDF, h.maxUploadBytes, handlers.FormFile(c, "template"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store template", err)
	}

	oldTemplate := ""
	if templateURL != "" {
		oldTemplate, doc.TemplateURL = doc.TemplateURL, templateURL
	}
	doc.Name, doc.Description = req.Name, req.Description
	if err := h.db.Save(&doc).Error; err != nil {
		h.removeFile(c, templateURL)
		return response.Internal(c, h.log, "Failed to update document", err)
	}
	h.removeFile(c, oldTemplate)
	h.aggregator.Invalidate(ctx, 0, universityID)
	return response.Success(c, doc)
}

// DeleteDocument handles DELETE /api/Admin/universities/:id/documents/:itemId
func (h *UniversityHandler) DeleteDocument(c *fiber.Ctx) error {
	return h.deleteChild(c, softdelete.DocumentsRequired, "Document not found")
}

func (h *UniversityHandler) deleteChild(c *fiber.Ctx, table, notFound string) error {
	universityID, err := h.activeUniversity(c)
	if universityID == 0 {
		return err
	}
	itemID, ok := handlers.ParseID(c, "itemId")
	if !ok {
		return response.BadRequest(c, "Invalid ID")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table(table).Where("id = ? AND university_id = ?", itemID, universityID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return softdelete.ErrNotFound
		}
		return softdelete.Delete(tx, table, itemID)
	})
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, notFound)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete", err)
	}
	h.aggregator.Invalidate(c.UserContext(), 0, universityID)
	return response.SuccessWithMessage(c, "Deleted successfully", nil)
}
