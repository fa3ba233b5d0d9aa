package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/handlers"
	admin_handlers "github.com/sahilchouksey/uniportal-api/handlers/admin"
	advertisement_handlers "github.com/sahilchouksey/uniportal-api/handlers/advertisement"
	article_handlers "github.com/sahilchouksey/uniportal-api/handlers/article"
	auth_handlers "github.com/sahilchouksey/uniportal-api/handlers/auth"
	consultation_handlers "github.com/sahilchouksey/uniportal-api/handlers/consultation"
	course_handlers "github.com/sahilchouksey/uniportal-api/handlers/course"
	faculty_handlers "github.com/sahilchouksey/uniportal-api/handlers/faculty"
	student_handlers "github.com/sahilchouksey/uniportal-api/handlers/student"
	university_handlers "github.com/sahilchouksey/uniportal-api/handlers/university"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/cache"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
)

// Deps are the shared collaborators the routes are built from. Redis and the
// video service may be nil; brute force protection, detail caching and video
// uploads are then disabled.
type Deps struct {
	DB             *gorm.DB
	Log            *utils.Logger
	JWT            *auth.JWTManager
	Redis          *cache.RedisCache
	Store          storage.FileStore
	Aggregator     *studyplan.Aggregator
	Faculties      *services.FacultyService
	Videos         *services.VideoService
	Dashboard      *services.DashboardService
	MaxUploadBytes int64
	Security       middleware.SecurityConfig
	// UploadRoot is served under /uploads when files are stored locally.
	UploadRoot string
}

func SetupRoutes(app *fiber.App, d Deps) {
	if d.Log == nil {
		d.Log = utils.NewNopLogger()
	}

	// Initialize brute force protection, only with redis
	var bruteForceProtection *middleware.BruteForceProtection
	if d.Redis != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(d.Redis)
	}

	authMiddleware := middleware.NewAuthMiddleware(d.JWT, d.DB)
	authHandler := auth_handlers.NewAuthHandler(d.DB, d.JWT, bruteForceProtection, d.Log)
	universityHandler := university_handlers.NewUniversityHandler(d.DB, d.Store, d.Aggregator, d.Log, d.MaxUploadBytes)
	facultyHandler := faculty_handlers.NewFacultyHandler(d.DB, d.Faculties, d.Log)
	courseHandler := course_handlers.NewCourseHandler(d.DB, d.Store, d.Videos, d.Log, d.MaxUploadBytes)
	articleHandler := article_handlers.NewArticleHandler(d.DB, d.Store, d.Log, d.MaxUploadBytes)
	advertisementHandler := advertisement_handlers.NewAdvertisementHandler(d.DB, d.Store, d.Log, d.MaxUploadBytes)
	studentHandler := student_handlers.NewStudentHandler(d.DB, d.Log)
	consultationHandler := consultation_handlers.NewConsultationHandler(d.DB, d.Log)
	adminHandler := admin_handlers.NewAdminHandler(d.DB, d.Dashboard, d.Log)

	// Apply security middleware
	if d.Security.RateLimitWindow == 0 {
		d.Security.RateLimitWindow = time.Minute
	}
	middleware.SetupSecurity(app, d.Security)

	// Health check endpoint (public)
	if d.Redis != nil {
		app.Get("/ping", handlers.Ping(d.DB, d.Redis))
	} else {
		app.Get("/ping", handlers.Ping(d.DB, nil))
	}

	if d.UploadRoot != "" {
		app.Static("/uploads", d.UploadRoot+"/uploads", fiber.Static{ByteRange: true})
	}

	api := app.Group("/api")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/logout-all", authMiddleware.Required(), authHandler.LogoutAll)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Public catalogue. An admin token unlocks include_deleted and drafts.
	optional := authMiddleware.Optional()

	universities := api.Group("/universities", optional)
	universities.Get("/", universityHandler.ListUniversities)
	universities.Get("/:id", universityHandler.GetUniversity)
	universities.Get("/:id/complete-details", universityHandler.GetCompleteDetails)
	universities.Get("/:id/housing-options", universityHandler.ListHousingOptions)
	universities.Get("/:id/documents", universityHandler.ListDocuments)

	faculties := api.Group("/faculties", optional)
	faculties.Get("/", facultyHandler.ListFaculties)
	faculties.Get("/:id", facultyHandler.GetFaculty)

	courses := api.Group("/courses", optional)
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Get("/:id/videos", courseHandler.ListVideos)

	articles := api.Group("/articles", optional)
	articles.Get("/", articleHandler.ListArticles)
	articles.Get("/:slug", articleHandler.GetArticle)

	api.Get("/advertisements", advertisementHandler.ListActive)

	// Student consultations
	consultations := api.Group("/consultations", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleStudent))
	consultations.Post("/", consultationHandler.CreateConsultation)
	consultations.Get("/", consultationHandler.ListMine)

	// ==================== Admin ====================
	admin := api.Group("/Admin", authMiddleware.RequireAdmin())
	audit := func(action, resource string) fiber.Handler {
		return middleware.AdminAuditLog(d.DB, d.Log, action, resource)
	}

	admin.Get("/dashboard", adminHandler.GetDashboard)
	admin.Get("/audit-logs", adminHandler.ListAuditLogs)
	admin.Get("/audit-logs/:id", adminHandler.GetAuditLog)

	adminUniversities := admin.Group("/universities")
	adminUniversities.Get("/", universityHandler.ListUniversities)
	adminUniversities.Post("/", audit("university_create", "universities"), universityHandler.CreateUniversity)
	adminUniversities.Put("/:id", audit("university_update", "universities"), universityHandler.UpdateUniversity)
	adminUniversities.Delete("/:id", audit("university_delete", "universities"), universityHandler.DeleteUniversity)
	adminUniversities.Delete("/:id/permanent", audit("university_purge", "universities"), universityHandler.PurgeUniversity)
	adminUniversities.Post("/:id/housing-options", audit("housing_create", "housing_options"), universityHandler.CreateHousingOption)
	adminUniversities.Put("/:id/housing-options/:itemId", audit("housing_update", "housing_options"), universityHandler.UpdateHousingOption)
	adminUniversities.Delete("/:id/housing-options/:itemId", audit("housing_delete", "housing_options"), universityHandler.DeleteHousingOption)
	adminUniversities.Post("/:id/documents", audit("document_create", "documents_required"), universityHandler.CreateDocument)
	adminUniversities.Put("/:id/documents/:itemId", audit("document_update", "documents_required"), universityHandler.UpdateDocument)
	adminUniversities.Delete("/:id/documents/:itemId", audit("document_delete", "documents_required"), universityHandler.DeleteDocument)

	adminFaculties := admin.Group("/faculties")
	adminFaculties.Get("/", facultyHandler.ListFaculties)
	adminFaculties.Get("/:id", facultyHandler.GetFaculty)
	adminFaculties.Post("/", audit("faculty_create", "faculties"), facultyHandler.CreateFaculty)
	adminFaculties.Put("/:id", audit("faculty_replace", "faculties"), facultyHandler.ReplaceFaculty)
	adminFaculties.Delete("/:id", audit("faculty_delete", "faculties"), facultyHandler.DeleteFaculty)
	adminFaculties.Delete("/:id/permanent", audit("faculty_purge", "faculties"), facultyHandler.PurgeFaculty)
	adminFaculties.Post("/:id/specializations", audit("specializations_upsert", "faculties"), facultyHandler.UpsertSpecializations)

	adminCourses := admin.Group("/courses")
	adminCourses.Get("/", courseHandler.ListCourses)
	adminCourses.Post("/", audit("course_create", "courses"), courseHandler.CreateCourse)
	adminCourses.Put("/:id", audit("course_update", "courses"), courseHandler.UpdateCourse)
	adminCourses.Delete("/:id", audit("course_delete", "courses"), courseHandler.DeleteCourse)
	adminCourses.Get("/:id/videos", courseHandler.ListVideos)
	if d.Videos != nil {
		adminCourses.Post("/:id/videos", audit("video_upload", "courses"), courseHandler.UploadVideo)
		admin.Get("/videos/:id/status", courseHandler.GetVideoStatus)
		admin.Delete("/videos/:id", audit("video_delete", "videos"), courseHandler.DeleteVideo)
	}

	adminArticles := admin.Group("/articles")
	adminArticles.Get("/", articleHandler.ListArticles)
	adminArticles.Post("/", audit("article_create", "articles"), articleHandler.CreateArticle)
	adminArticles.Put("/:id", audit("article_update", "articles"), articleHandler.UpdateArticle)
	adminArticles.Delete("/:id", audit("article_delete", "articles"), articleHandler.DeleteArticle)

	adminAdvertisements := admin.Group("/advertisements")
	adminAdvertisements.Get("/", advertisementHandler.ListAdvertisements)
	adminAdvertisements.Post("/", audit("advertisement_create", "advertisements"), advertisementHandler.CreateAdvertisement)
	adminAdvertisements.Put("/:id", audit("advertisement_update", "advertisements"), advertisementHandler.UpdateAdvertisement)
	adminAdvertisements.Delete("/:id", audit("advertisement_delete", "advertisements"), advertisementHandler.DeleteAdvertisement)

	adminStudents := admin.Group("/students")
	adminStudents.Get("/", studentHandler.ListStudents)
	adminStudents.Get("/:id", studentHandler.GetStudent)
	adminStudents.Delete("/:id", audit("student_delete", "users"), studentHandler.DeleteStudent)
	adminStudents.Delete("/:id/permanent", audit("student_purge", "users"), studentHandler.PurgeStudent)

	adminConsultations := admin.Group("/consultations")
	adminConsultations.Get("/", consultationHandler.ListConsultations)
	adminConsultations.Put("/:id/reply", audit("consultation_reply", "consultations"), consultationHandler.ReplyConsultation)
	adminConsultations.Put("/:id/close", audit("consultation_close", "consultations"), consultationHandler.CloseConsultation)
	adminConsultations.Delete("/:id", audit("consultation_delete", "consultations"), consultationHandler.DeleteConsultation)
}
