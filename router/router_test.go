package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/router"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/storage/storagetest"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
	"github.com/sahilchouksey/uniportal-api/utils/auth"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
)

const maxUpload = 5 << 20

type env struct {
	db    *gorm.DB
	app   *fiber.App
	store *storagetest.MemoryStore
	jwt   *auth.JWTManager
	admin model.User
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)
	store := storagetest.NewMemoryStore()
	jwt := auth.NewJWTManager(auth.JWTConfig{Secret: "test-secret", Issuer: "test"})
	agg := studyplan.NewAggregator(db, nil, time.Minute, nil)

	app := fiber.New()
	router.SetupRoutes(app, router.Deps{
		DB:             db,
		JWT:            jwt,
		Store:          store,
		Aggregator:     agg,
		Faculties:      services.NewFacultyService(db, store, agg, nil, maxUpload),
		Dashboard:      services.NewDashboardService(db),
		MaxUploadBytes: maxUpload,
		Security:       middleware.SecurityConfig{AllowedOrigins: "http://localhost:3000"},
	})

	e := &env{db: db, app: app, store: store, jwt: jwt}
	e.admin = model.User{Email: "admin@portal.test", Name: "Admin", PasswordHash: "x", Role: model.RoleAdmin}
	require.NoError(t, db.Create(&e.admin).Error)
	return e
}

func (e *env) token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := e.jwt.GenerateAccessToken(u.ID, u.Email, u.Role, u.TokenVersion)
	require.NoError(t, err)
	return tok.Value
}

func (e *env) send(t *testing.T, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (e *env) json(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return e.send(t, req, token)
}

func (e *env) multipart(t *testing.T, method, path, token string, values map[string][]string, files ...storagetest.File) (int, envelope) {
	t.Helper()
	body, contentType := storagetest.Encode(t, values, files...)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return e.send(t, req, token)
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst), string(raw))
}

func (e *env) student(t *testing.T, email string) model.User {
	t.Helper()
	u := model.User{Email: email, Name: "Student", PasswordHash: "x", Role: model.RoleStudent}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

func (e *env) university(t *testing.T) uint {
	t.Helper()
	status, res := e.json(t, http.MethodPost, "/api/Admin/universities", e.token(t, e.admin), map[string]interface{}{
		"name_ar": "جامعة الشمال",
		"name_en": "Northern University",
		"city":    "Amman",
		"ranking": 3,
	})
	require.Equal(t, fiber.StatusCreated, status, res.Error)
	var u model.University
	decode(t, res.Data, &u)
	return u.ID
}

const plan = `{
  "specializations": [{"name": "Software"}, {"name": "Networks"}],
  "job_opportunities": ["Developer"],
  "years": [
    {"name": "First", "semesters": [
      {"materials": [{"name": "Calculus", "credit_hours": 3}, {"name": "Physics", "credit_hours": 4}]},
      {"sections": [{"name": "A", "materials": [{"name": "Programming", "credit_hours": 3}]}]}
    ]},
    {"name": "Second", "has_specialization": true, "semesters": [
      {"materials": [{"name": "Databases", "credit_hours": 3}]}
    ]}
  ]
}`

func (e *env) faculty(t *testing.T, universityID uint) studyplan.FacultyDetails {
	t.Helper()
	status, res := e.multipart(t, http.MethodPost, "/api/Admin/faculties", e.token(t, e.admin),
		map[string][]string{
			"university_id":  {fmt.Sprint(universityID)},
			"name_ar":        {"كلية الهندسة"},
			"name_en":        {"Engineering"},
			"study_duration": {"4 years"},
			"study_plan":     {plan},
		},
		storagetest.File{Field: "image", Name: "cover.png", Content: []byte("png")},
	)
	require.Equal(t, fiber.StatusCreated, status, res.Error)
	var details studyplan.FacultyDetails
	decode(t, res.Data, &details)
	return details
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	status, _ := e.send(t, httptest.NewRequest(http.MethodGet, "/ping", nil), "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)

	register := map[string]interface{}{
		"email":    "Layla@Portal.test",
		"password": "correct horse 1",
		"name":     "Layla",
		"city":     "Irbid",
	}
	status, res := e.json(t, http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, fiber.StatusCreated, status, res.Error)

	status, _ = e.json(t, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = e.json(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "layla@portal.test", "password": "wrong password 1"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, res = e.json(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "layla@portal.test", "password": "correct horse 1"})
	require.Equal(t, fiber.StatusOK, status, res.Error)
	var tokens struct {
		User struct {
			Role    string               `json:"role"`
			Profile model.StudentProfile `json:"profile"`
		} `json:"user"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decode(t, res.Data, &tokens)
	assert.Equal(t, model.RoleStudent, tokens.User.Role)
	assert.Equal(t, "Irbid", tokens.User.Profile.City)

	status, _ = e.json(t, http.MethodGet, "/api/profile", tokens.AccessToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = e.json(t, http.MethodPut, "/api/profile", tokens.AccessToken, map[string]string{
		"current_password": "correct horse 1",
		"new_password":     "12345678",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status, "new passwords need a letter")

	status, _ = e.json(t, http.MethodGet, "/api/Admin/dashboard", tokens.AccessToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status, "students cannot reach admin routes")

	status, res = e.json(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
	require.Equal(t, fiber.StatusOK, status, res.Error)
	status, _ = e.json(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
	assert.Equal(t, fiber.StatusUnauthorized, status, "refresh tokens are single use")

	status, _ = e.json(t, http.MethodPost, "/api/auth/logout", tokens.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = e.json(t, http.MethodGet, "/api/profile", tokens.AccessToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestFacultyCreateAndReplace(t *testing.T) {
	e := newEnv(t)
	uniID := e.university(t)
	created := e.faculty(t, uniID)

	assert.Equal(t, 2, created.Stats.YearsCount)
	assert.Equal(t, 4, created.Stats.MaterialsCount)
	assert.Equal(t, 13, created.Stats.TotalCreditHours)
	assert.Equal(t, 1, created.Stats.SectionsCount)
	assert.Equal(t, 1, e.store.Len(), "faculty image stored")

	path := fmt.Sprintf("/api/Admin/faculties/%d", created.ID)
	replace := map[string][]string{
		"university_id": {fmt.Sprint(uniID)},
		"name_ar":       {"كلية الهندسة"},
		"name_en":       {"Engineering"},
		"study_plan":    {`{"years": [{"name": "Only", "semesters": [{"materials": [{"name": "Logic", "credit_hours": 2}]}]}]}`},
	}

	replace["version"] = []string{fmt.Sprint(created.Version + 5)}
	status, _ := e.multipart(t, http.MethodPut, path, e.token(t, e.admin), replace)
	assert.Equal(t, fiber.StatusConflict, status, "stale version is rejected")

	replace["version"] = []string{fmt.Sprint(created.Version)}
	status, res := e.multipart(t, http.MethodPut, path, e.token(t, e.admin), replace)
	require.Equal(t, fiber.StatusOK, status, res.Error)
	var replaced studyplan.FacultyDetails
	decode(t, res.Data, &replaced)
	assert.Equal(t, created.Version+1, replaced.Version)
	assert.Equal(t, 1, replaced.Stats.YearsCount)
	assert.Equal(t, 2, replaced.Stats.TotalCreditHours)

	status, _ = e.json(t, http.MethodGet, fmt.Sprintf("/api/faculties/%d", created.ID), "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	// the replaced tree is still visible to admins asking for deleted rows
	status, res = e.json(t, http.MethodGet, fmt.Sprintf("/api/faculties/%d?include_deleted=true", created.ID), e.token(t, e.admin), nil)
	require.Equal(t, fiber.StatusOK, status)
	var withDeleted studyplan.FacultyDetails
	decode(t, res.Data, &withDeleted)
	assert.Equal(t, 3, len(withDeleted.Years))
}

func TestFacultyRejectsInvalidPlan(t *testing.T) {
	e := newEnv(t)
	uniID := e.university(t)

	status, _ := e.multipart(t, http.MethodPost, "/api/Admin/faculties", e.token(t, e.admin), map[string][]string{
		"university_id": {fmt.Sprint(uniID)},
		"name_ar":       {"كلية"},
		"study_plan":    {`{"years": [{"name": "One", "semesters": [{"sections": [{"name": "A"}], "materials": [{"name": "X"}]}]}]}`},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = e.multipart(t, http.MethodPost, "/api/Admin/faculties", e.token(t, e.admin), map[string][]string{
		"university_id": {fmt.Sprint(uniID)},
		"name_ar":       {"كلية"},
	}, storagetest.File{Field: "image", Name: "virus.exe", Content: []byte("MZ")})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	var count int64
	require.NoError(t, e.db.Model(&model.Faculty{}).Count(&count).Error)
	assert.Zero(t, count, "rejected requests write nothing")
	assert.Zero(t, e.store.Len())
}

func TestUniversityDeleteCascades(t *testing.T) {
	e := newEnv(t)
	uniID := e.university(t)
	faculty := e.faculty(t, uniID)
	admin := e.token(t, e.admin)

	status, res := e.json(t, http.MethodPost, fmt.Sprintf("/api/Admin/universities/%d/housing-options", uniID), admin, map[string]interface{}{
		"name": "Campus dorm", "type": "dorm", "price": 120,
	})
	require.Equal(t, fiber.StatusCreated, status, res.Error)

	status, res = e.json(t, http.MethodGet, fmt.Sprintf("/api/universities/%d/complete-details", uniID), "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var details studyplan.UniversityDetails
	decode(t, res.Data, &details)
	assert.Equal(t, 1, details.FacultiesCount)
	assert.Equal(t, 2, details.SpecializationsCount)
	assert.Len(t, details.HousingOptions, 1)

	path := fmt.Sprintf("/api/Admin/universities/%d", uniID)
	status, _ = e.json(t, http.MethodDelete, path, admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = e.json(t, http.MethodDelete, path, admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status, "deleting twice reports not found")

	status, _ = e.json(t, http.MethodGet, fmt.Sprintf("/api/faculties/%d", faculty.ID), "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	var active int64
	require.NoError(t, e.db.Model(&model.AcademicMaterial{}).Count(&active).Error)
	assert.Zero(t, active, "materials are deleted with the university")
	require.NoError(t, e.db.Unscoped().Model(&model.AcademicMaterial{}).Where("is_deleted = ?", true).Count(&active).Error)
	assert.Equal(t, int64(4), active)

	status, _ = e.json(t, http.MethodDelete, path+"/permanent", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var remaining int64
	require.NoError(t, e.db.Unscoped().Model(&model.Faculty{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
	assert.Zero(t, e.store.Len(), "files of purged rows are removed")
}

func TestArticles(t *testing.T) {
	e := newEnv(t)
	admin := e.token(t, e.admin)

	body := map[string][]string{
		"title": {"Admission Guide 2026"},
		"body":  {`<p onclick="steal()">Apply early</p><script>alert(1)</script>`},
		"tags":  {"Admission, guide,admission"},
	}
	status, res := e.multipart(t, http.MethodPost, "/api/Admin/articles", admin, body,
		storagetest.File{Field: "cover", Name: "cover.jpg", Content: []byte("jpg")})
	require.Equal(t, fiber.StatusCreated, status, res.Error)
	var draft model.Article
	decode(t, res.Data, &draft)
	assert.Equal(t, "admission-guide-2026", draft.Slug)
	assert.Equal(t, "<p>Apply early</p>", draft.Body)
	assert.Equal(t, []string{"admission", "guide"}, []string(draft.Tags))
	assert.Nil(t, draft.PublishedAt)

	status, _ = e.json(t, http.MethodGet, "/api/articles/admission-guide-2026", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status, "drafts are hidden from the public")

	body["is_published"] = []string{"true"}
	status, res = e.multipart(t, http.MethodPost, "/api/Admin/articles", admin, body)
	require.Equal(t, fiber.StatusCreated, status, res.Error)
	var published model.Article
	decode(t, res.Data, &published)
	assert.Equal(t, "admission-guide-2026-2", published.Slug)
	assert.NotNil(t, published.PublishedAt)

	status, res = e.json(t, http.MethodGet, "/api/articles", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []model.Article
	decode(t, res.Data, &list)
	require.Len(t, list, 1)
	assert.Equal(t, published.ID, list[0].ID)
}

func TestAdvertisementsWindowAndPlacement(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	ads := []model.Advertisement{
		{Title: "home now", ImageURL: "/a.png", Placements: []string{"home"}, IsActive: true},
		{Title: "faculty now", ImageURL: "/b.png", Placements: []string{"faculty", "home"}, IsActive: true, SortOrder: 1},
		{Title: "expired", ImageURL: "/c.png", Placements: []string{"home"}, IsActive: true, EndsAt: &past},
		{Title: "upcoming", ImageURL: "/d.png", Placements: []string{"home"}, IsActive: true, StartsAt: &future},
	}
	require.NoError(t, e.db.Create(&ads).Error)

	status, res := e.json(t, http.MethodGet, "/api/advertisements?placement=home", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var home []model.Advertisement
	decode(t, res.Data, &home)
	require.Len(t, home, 2)
	assert.Equal(t, "home now", home[0].Title)

	status, res = e.json(t, http.MethodGet, "/api/advertisements?placement=faculty", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var faculty []model.Advertisement
	decode(t, res.Data, &faculty)
	require.Len(t, faculty, 1)
	assert.Equal(t, "faculty now", faculty[0].Title)

	status, _ = e.multipart(t, http.MethodPost, "/api/Admin/advertisements", e.token(t, e.admin), map[string][]string{
		"title":      {"bad"},
		"placements": {"sidebar"},
	}, storagetest.File{Field: "image", Name: "ad.png", Content: []byte("png")})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Zero(t, e.store.Len())
}

func TestConsultationLifecycle(t *testing.T) {
	e := newEnv(t)
	student := e.student(t, "sami@portal.test")
	studentToken := e.token(t, student)
	admin := e.token(t, e.admin)

	status, res := e.json(t, http.MethodPost, "/api/consultations", studentToken, map[string]interface{}{
		"subject": "Scholarships",
		"message": "Are there scholarships for engineering?",
	})
	require.Equal(t, fiber.StatusCreated, status, res.Error)
	var created model.Consultation
	decode(t, res.Data, &created)
	assert.Equal(t, model.ConsultationPending, created.Status)

	status, _ = e.json(t, http.MethodPost, "/api/consultations", admin, map[string]interface{}{
		"subject": "Scholarships", "message": "Admins do not open consultations",
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	base := fmt.Sprintf("/api/Admin/consultations/%d", created.ID)
	status, res = e.json(t, http.MethodPut, base+"/reply", admin, map[string]string{"reply": "Yes, up to 50%."})
	require.Equal(t, fiber.StatusOK, status, res.Error)
	var replied model.Consultation
	decode(t, res.Data, &replied)
	assert.Equal(t, model.ConsultationAnswered, replied.Status)
	require.NotNil(t, replied.RepliedByID)
	assert.Equal(t, e.admin.ID, *replied.RepliedByID)

	status, _ = e.json(t, http.MethodPut, base+"/close", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = e.json(t, http.MethodPut, base+"/reply", admin, map[string]string{"reply": "again"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, res = e.json(t, http.MethodGet, "/api/consultations", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var mine []model.Consultation
	decode(t, res.Data, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, model.ConsultationClosed, mine[0].Status)
}

func TestStudentDeletion(t *testing.T) {
	e := newEnv(t)
	student := e.student(t, "nour@portal.test")
	studentToken := e.token(t, student)
	admin := e.token(t, e.admin)

	status, _ := e.json(t, http.MethodDelete, fmt.Sprintf("/api/Admin/students/%d", e.admin.ID), admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status, "admins are not students")

	status, _ = e.json(t, http.MethodDelete, fmt.Sprintf("/api/Admin/students/%d", student.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = e.json(t, http.MethodGet, "/api/profile", studentToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status, "deleted accounts lose access")

	status, res := e.json(t, http.MethodGet, "/api/Admin/students?include_deleted=true", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var all []model.User
	decode(t, res.Data, &all)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)

	status, _ = e.json(t, http.MethodDelete, fmt.Sprintf("/api/Admin/students/%d/permanent", student.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var count int64
	require.NoError(t, e.db.Unscoped().Model(&model.User{}).Where("id = ?", student.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDashboardAndAuditTrail(t *testing.T) {
	e := newEnv(t)
	admin := e.token(t, e.admin)
	e.university(t)

	status, res := e.json(t, http.MethodGet, "/api/Admin/dashboard", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var d services.Dashboard
	decode(t, res.Data, &d)
	assert.Equal(t, int64(1), d.Counts.Universities)

	require.Eventually(t, func() bool {
		var count int64
		e.db.Model(&model.AdminAuditLog{}).Where("action = ?", "university_create").Count(&count)
		return count == 1
	}, 2*time.Second, 20*time.Millisecond)

	status, res = e.json(t, http.MethodGet, "/api/Admin/audit-logs?resource=universities", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var logs []model.AdminAuditLog
	decode(t, res.Data, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, e.admin.ID, logs[0].AdminID)
	assert.Equal(t, fiber.StatusCreated, logs[0].StatusCode)
}

func TestCoursesHideDrafts(t *testing.T) {
	e := newEnv(t)
	admin := e.token(t, e.admin)

	status, res := e.json(t, http.MethodPost, "/api/Admin/courses", admin, map[string]interface{}{
		"title": "IELTS preparation", "level": "beginner", "price": 49.5,
	})
	require.Equal(t, fiber.StatusCreated, status, res.Error)
	var course model.Course
	decode(t, res.Data, &course)

	require.NoError(t, e.db.Create(&[]model.Video{
		{CourseID: course.ID, Title: "Listening", Status: model.VideoStatusAvailable},
		{CourseID: course.ID, Title: "Reading", Status: model.VideoStatusProcessing},
	}).Error)

	path := fmt.Sprintf("/api/courses/%d", course.ID)
	status, _ = e.json(t, http.MethodGet, path, "", nil)
	assert.Equal(t, fiber.StatusNotFound, status, "unpublished courses are hidden")

	status, res = e.json(t, http.MethodGet, path+"/videos", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var adminVideos []model.Video
	decode(t, res.Data, &adminVideos)
	assert.Len(t, adminVideos, 2)

	require.NoError(t, e.db.Model(&course).Update("is_published", true).Error)
	status, res = e.json(t, http.MethodGet, path+"/videos", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var public []model.Video
	decode(t, res.Data, &public)
	require.Len(t, public, 1)
	assert.Equal(t, "Listening", public[0].Title)

	status, _ = e.json(t, http.MethodDelete, fmt.Sprintf("/api/Admin/courses/%d", course.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var videos int64
	require.NoError(t, e.db.Model(&model.Video{}).Where("course_id = ?", course.ID).Count(&videos).Error)
	assert.Zero(t, videos, "videos are deleted with the course")
}
