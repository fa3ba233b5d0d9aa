package article

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
	"github.com/sahilchouksey/uniportal-api/utils/sanitize"
	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// ArticleHandler handles article requests
type ArticleHandler struct {
	db             *gorm.DB
	store          storage.FileStore
	validator      *validation.Validator
	log            *utils.Logger
	maxUploadBytes int64
	now            func() time.Time
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(db *gorm.DB, store storage.FileStore, log *utils.Logger, maxUploadBytes int64) *ArticleHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &ArticleHandler{
		db:             db,
		store:          store,
		validator:      validation.NewValidator(),
		log:            log,
		maxUploadBytes: maxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ArticleRequest is the body of article create and update. Tags are a comma
// separated list; the body is HTML and is sanitised before storage.
type ArticleRequest struct {
	Title       string `json:"title" form:"title" validate:"required,min=3,max=255"`
	Slug        string `json:"slug" form:"slug" validate:"omitempty,max=255"`
	Summary     string `json:"summary" form:"summary" validate:"max=1000"`
	Body        string `json:"body" form:"body" validate:"required"`
	Tags        string `json:"tags" form:"tags"`
	IsPublished bool   `json:"is_published" form:"is_published"`
}

// Slugify lowercases s and joins its letter and digit runs with dashes.
// Non latin letters are kept.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

func splitTags(s string) pq.StringArray {
	tags := pq.StringArray{}
	seen := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(validation.SanitizeString(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// uniqueSlug returns base, or base suffixed with a counter, such that no
// other article, deleted ones included, uses it.
func (h *ArticleHandler) uniqueSlug(tx *gorm.DB, base string, exceptID uint) (string, error) {
	if base == "" {
		base = "article"
	}
	slug := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Unscoped().Model(&model.Article{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func (h *ArticleHandler) apply(article *model.Article, req *ArticleRequest) {
	article.Title = validation.SanitizeString(req.Title)
	article.Summary = sanitize.Text(req.Summary)
	article.Body = sanitize.HTML(req.Body)
	article.Tags = splitTags(req.Tags)
	if req.IsPublished && article.PublishedAt == nil {
		now := h.now()
		article.PublishedAt = &now
	}
	if !req.IsPublished {
		article.PublishedAt = nil
	}
	article.IsPublished = req.IsPublished
}

// ListArticles handles GET /api/articles
func (h *ArticleHandler) ListArticles(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	query := h.db.Model(&model.Article{})
	if middleware.IsAdmin(c) {
		if handlers.IncludeDeleted(c) {
			query = query.Unscoped()
		}
	} else {
		query = query.Where("is_published = ?", true)
	}
	if search := c.Query("search"); search != "" {
		pattern := handlers.SearchPattern(search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(summary) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.Internal(c, h.log, "Failed to count articles", err)
	}

	var articles []model.Article
	if err := query.Order("published_at DESC, id DESC").Limit(limit).Offset(offset).Find(&articles).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch articles", err)
	}

	return response.Paginated(c, articles, response.CalculatePagination(page, limit, total))
}

// GetArticle handles GET /api/articles/:slug
func (h *ArticleHandler) GetArticle(c *fiber.Ctx) error {
	query := h.db.Preload("Author").Where("slug = ?", c.Params("slug"))
	if !middleware.IsAdmin(c) {
		query = query.Where("is_published = ?", true)
	}
	var article model.Article
	if err := query.First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.Internal(c, h.log, "Failed to fetch article", err)
	}
	return response.Success(c, article)
}

// CreateArticle handles POST /api/Admin/articles
func (h *ArticleHandler) CreateArticle(c *fiber.Ctx) error {
	var req ArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	authorID, _ := middleware.GetUserID(c)

	ctx := c.UserContext()
	cover, err := handlers.StoreUpload(ctx, h.store, storage.CategoryArticles, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "cover"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store cover", err)
	}

	article := model.Article{AuthorID: authorID, CoverURL: cover}
	h.apply(&article, &req)
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := Slugify(req.Slug)
		if base == "" {
			base = Slugify(req.Title)
		}
		slug, err := h.uniqueSlug(tx, base, 0)
		if err != nil {
			return err
		}
		article.Slug = slug
		return tx.Create(&article).Error
	})
	if err != nil {
		h.removeFile(c, cover)
		return response.Internal(c, h.log, "Failed to create article", err)
	}
	return response.Created(c, article)
}

// UpdateArticle handles PUT /api/Admin/articles/:id
func (h *ArticleHandler) UpdateArticle(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid article ID")
	}
	var req ArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ctx := c.UserContext()
	var article model.Article
	if err := h.db.WithContext(ctx).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.Internal(c, h.log, "Failed to fetch article", err)
	}

	cover, err := handlers.StoreUpload(ctx, h.store, storage.CategoryArticles, storage.KindImage, h.maxUploadBytes, handlers.FormFile(c, "cover"))
	if errors.Is(err, storage.ErrInvalidUpload) {
		return response.ValidationError(c, err)
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to store cover", err)
	}
	oldCover := ""
	if cover != "" {
		oldCover, article.CoverURL = article.CoverURL, cover
	}

	h.apply(&article, &req)
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the slug only changes when asked for explicitly so links stay stable
		if base := Slugify(req.Slug); base != "" && base != article.Slug {
			slug, err := h.uniqueSlug(tx, base, article.ID)
			if err != nil {
				return err
			}
			article.Slug = slug
		}
		return tx.Omit("Author").Save(&article).Error
	})
	if err != nil {
		h.removeFile(c, cover)
		return response.Internal(c, h.log, "Failed to update article", err)
	}
	h.removeFile(c, oldCover)
	return response.SuccessWithMessage(c, "Article updated successfully", article)
}

// DeleteArticle handles DELETE /api/Admin/articles/:id
func (h *ArticleHandler) DeleteArticle(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid article ID")
	}
	err := softdelete.Delete(h.db.WithContext(c.UserContext()), softdelete.Articles, id)
	if errors.Is(err, softdelete.ErrNotFound) {
		return response.NotFound(c, "Article not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete article", err)
	}
	return response.SuccessWithMessage(c, "Article deleted successfully", nil)
}

func (h *ArticleHandler) removeFile(c *fiber.Ctx, url string) {
	if url == "" {
		return
	}
	if err := h.store.Delete(c.UserContext(), url); err != nil {
		h.log.Warn("failed to remove file", "url", url, "error", err)
	}
}
