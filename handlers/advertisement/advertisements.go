package advertisement

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/sanitize"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// Placements an advertisement can be shown in.
var Placements = map[string]bool{
	"home":         true,
	"universities": true,
	"faculty":      true,
	"articles":     true,
}

// AdvertisementHandler handles advertisement requests
type AdvertisementHandler struct {
	db             *gorm.DB
	store          storage.FileStore
	validator      *validation.Validator
	log            *utils.Logger
	maxUploadBytes int64
	now            func() time.Time
}

// NewAdvertisementHandler creates a new advertisement handler
func NewAdvertisementHandler(db *gorm.DB, store storage.FileStore, log *utils.Logger, maxUploadBytes int64) *AdvertisementHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &AdvertisementHandler{
		db:             db,
		store:          store,
		validator:      validation.NewValidator(),
		log:            log,
		maxUploadBytes: maxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AdvertisementRequest is the multipart body of advertisement create and
// update; the banner comes in the "image" file. Placements are comma separated
// and the window bounds are RFC 3339 timestamps.
type AdvertisementRequest struct {
	Title      string `json:"title" form:"title" validate:"required,max=255"`
	LinkURL    string `json:"link_url" form:"link_url" validate:"omitempty,url,max=512"`
	Placements string `json:"placements" form:"placements" validate:"required"`
	StartsAt   string `json:"starts_at" form:"starts_at"`
	EndsAt     string `json:"ends_at" form:"ends_at"`
	IsActive   *bool  `json:"is_active" form:"is_active"`
	SortOrder  int    `json:"sort_order" form:"sort_order" validate:"gte=0"`
}

type window struct {
	startsAt, endsAt *time.Time
}

func parseTime(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

// parse validates the request and returns its placements and display window.
func (h *AdvertisementHandler) parse(c *fiber.Ctx) (*AdvertisementRequest, pq.StringArray, window, error) {
	var req AdvertisementRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, nil, window{}, response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return nil, nil, window{}, response.ValidationError(c, err)
	}
	if req.LinkURL != "" && !sanitize.SafeURL(req.LinkURL) {
		return nil, nil, window{}, response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "link_url must be an http(s) URL")
	}
	var w window
	var ok bool
	if w.startsAt, ok = parseTime(req.StartsAt); !ok {
		return nil, nil, window{}, response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "starts_at must be an RFC 3339 timestamp")
	}
	if w.endsAt, ok = parseTime(req.EndsAt); !ok {
		return nil, nil, window{}, response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "ends_at must be an RFC 3339 timestamp")
	}
	if w.startsAt != nil && w.endsAt != nil && !w.endsAt.After(*w.startsAt) {
		return nil, nil, window{}, response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "ends_at must be after starts_at")
	}

	placements := pq.StringArray{}
	for _, p := range strings.Split(req.Placements, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !Placements[p] {
			return nil, nil, window{}, response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "unknown placement "+p)
		}
		placements = append(placements, p)
	}
	if len(placements) == 0 {
		return nil, nil, window{}, response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "at least one placement is required")
	}
	return &req, placements, w, nil
}

func apply(ad *model.Advertisement, req *AdvertisementRequest, placements pq.StringArray, w window) {
	ad.Title = validation.SanitizeString(req.Title)
	ad.LinkURL = req.LinkURL
	ad.Placements = placements
	ad.StartsAt = w.startsAt
	ad.EndsAt = w.endsAt
	ad.SortOrder = req.SortOrder
	if req.IsActive != nil {
		ad.IsActive = *req.IsActive
	}
}

// ListActive handles GET /api/advertisements?placement=. Only active
// advertisements inside their display window are returned.
func (h *AdvertisementHandler) ListActive(c *fiber.Ctx) error {
	now := h.now()
	var ads []model.Advertisement
	err := h.db.
		Where("is_active = ?", true).
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at > ?", now).
		Order("sort_order ASC, id ASC").
		Find(&ads).Error
	if err != nil {
		return response.Internal(c, h.log, "Failed to fetch advertisements", err)
	}

	// placements live in a postgres array; the active set is small enough to filter here
	placement := strings.ToLower(c.Query("placement"))
	if placement == "" {
		return response.Success(c, ads)
	}
	filtered := make([]model.Advertisement, 0, len(ads))
	for _, ad := range ads {
		for _, p := range ad.Placements {
			if p == placement {
				filtered = append(filtered, ad)
				break
			}
		}
	}
	return response.Success(c, filtered)
}

// ListAdvertisements handles GET /api/Admin/advertisements
func (h *AdvertisementHandler) ListAdvertisements(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.db.Model(&model.Advertisement{})
	if handlers.IncludeDeleted(c) {
		query = query.Unscoped()
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(title) LIKE ?", handlers.SearchPattern(search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count advertisements", err)
	}
	var ads []model.Advertisement
	if err := query.Order("sort_order ASC, id DESC").Limit(limit).Offset(offset).Find(&ads).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch advertisements", err)
	}
	return response.Paginated(c, ads, response.CalculatePagination(page, limit, total))
}

// CreateAdvertisement handles POST /api/Admin/advertisements
func (h *AdvertisementHandler) CreateAdvertisement(c *fiber.Ctx) error {
	req, placements, w, err := h.parse(c)
	if req == nil {
		return err
	}
	header := handlers.FormFile(c, "image")
	if header == nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Validation failed", "VALIDATION_ERROR", "image is required")
	}

	ctx := c.UserContext()
	image, err := handlers.StoreUpload(ctx, h.store, storage.CategoryAdvertisement, storage.KindImage, h.maxUploadBytes, header)
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store image", err)
	}

	ad := model.Advertisement{ImageURL: image, IsActive: true}
	apply(&ad, req, placements, w)
	if err := h.db.WithContext(ctx).Create(&ad).Error; err != nil {
		h.removeFile(c, image)
		return response.Internal(c, h.log, "Failed to create advertisement", err)
	}
	// gorm skips false for a column with a default, write it explicitly
	if !ad.IsActive {
		if err := h.db.WithContext(ctx).Model(&ad).Update("is_active", false).Error; err != nil {
			return response.Internal(c, h.log, "Failed to create advertisement", err)
		}
	}
	return response.Created(c, ad)
}

// UpdateAdvertisement handles PUT /api/Admin/advertisements/:id
func (h *AdvertisementHandler) UpdateAdvertisement(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid advertisement ID")
	}
	req, placements, w, err := h.parse(c)
	if req == nil {
		return err
	}

	ctx := c.UserContext()
	var ad model.Advertisement
	if err := h.db.WithContext(ctx).First(&ad, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Advertisement not found")
		}
		return response.Internal(c, h.log, "Failed to fetch advertisement", err)
	}

	image, err := handlers.StoreUpload(ctx, h.store, storage.CategoryAdvertisement, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "image"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store image", err)
	}
	oldImage := ""
	if image != "" {
		oldImage, ad.ImageURL = ad.ImageURL, image
	}

	apply(&ad, req, placements, w)
	if err := h.db.WithContext(ctx).Save(&ad).Error; err != nil {
		h.removeFile(c, image)
		return response.Internal(c, h.log, "Failed to update advertisement", err)
	}
	h.removeFile(c, oldImage)
	return response.SuccessWithMessage(c, "Advertisement updated successfully", ad)
}

// DeleteAdvertisement handles DELETE /api/Admin/advertisements/:id
func (h *AdvertisementHandler) DeleteAdvertisement(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid advertisement ID")
	}
	err := softdelete.Delete(h.db.WithContext(c.UserContext()), softdelete.Advertisements, id)
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "Advertisement not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete advertisement", err)
	}
	return response.SuccessWithMessage(c, "Advertisement deleted successfully", nil)
}

func (h *AdvertisementHandler) removeFile(c *fiber.Ctx, url string) {
	if url == "" {
		return
	}
	if err := h.store.Delete(c.UserContext(), url); err != nil {
		h.log.Warn("failed to remove file", "url", url, "error", err)
	}
}
