package studyplan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrUniversityNotFound = errors.New("university not found")

// DetailsCache is the subset of the redis cache used for detail projections.
type DetailsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func FacultyCacheKey(id uint) string    { return fmt.Sprintf("details:faculty:%d", id) }
func UniversityCacheKey(id uint) string { return fmt.Sprintf("details:university:%d", id) }

// Aggregator reassembles persisted study plans into nested read models with
// rollup statistics.
type Aggregator struct {
	db    *gorm.DB
	cache DetailsCache
	ttl   time.Duration
	log   *utils.Logger
}

// NewAggregator creates an aggregator. cache may be nil.
func NewAggregator(db *gorm.DB, cache DetailsCache, ttl time.Duration, log *utils.Logger) *Aggregator {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Aggregator{db: db, cache: cache, ttl: ttl, log: log}
}

type FacultyDetails struct {
	ID                 uint                 `json:"id"`
	UniversityID       uint                 `json:"university_id"`
	UniversityName     string               `json:"university_name"`
	NameAr             string               `json:"name_ar"`
	NameEn             string               `json:"name_en"`
	Description        string               `json:"description"`
	StudyDuration      string               `json:"study_duration"`
	StudyDurationYears Years                `json:"study_duration_years"`
	TuitionFee         float64              `json:"tuition_fee"`
	AdmissionRate      float64              `json:"admission_rate"`
	ImageURL           string               `json:"image_url"`
	Version            int                  `json:"version"`
	IsDeleted          bool                 `json:"is_deleted"`
	Specializations    []SpecializationView `json:"specializations"`
	JobOpportunities   []JobView            `json:"job_opportunities"`
	Years              []YearView           `json:"study_plan_years"`
	Stats              FacultyStats         `json:"stats"`
}

type FacultyStats struct {
	SpecializationsCount  int `json:"specializations_count"`
	YearsCount            int `json:"years_count"`
	SectionsCount         int `json:"sections_count"`
	MaterialsCount        int `json:"materials_count"`
	JobOpportunitiesCount int `json:"job_opportunities_count"`
	TotalCreditHours      int `json:"total_credit_hours"`
}

type SpecializationView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDeleted   bool   `json:"is_deleted"`
}

type JobView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"is_deleted"`
}

type YearView struct {
	ID                uint           `json:"id"`
	YearNumber        int            `json:"year_number"`
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	HasSpecialization bool           `json:"has_specialization"`
	IsDeleted         bool           `json:"is_deleted"`
	Media             []MediaView    `json:"media"`
	Semesters         []SemesterView `json:"semesters"`
	CreditHours       int            `json:"credit_hours"`
}

type MediaView struct {
	ID        uint   `json:"id"`
	Type      string `json:"media_type"`
	URL       string `json:"url"`
	IsDeleted bool   `json:"is_deleted"`
}

type SemesterView struct {
	Number      int            `json:"number"`
	Sectioned   bool           `json:"sectioned"`
	Sections    []SectionView  `json:"sections,omitempty"`
	Materials   []MaterialView `json:"materials,omitempty"`
	CreditHours int            `json:"credit_hours"`
}

type SectionView struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	IsDeleted   bool           `json:"is_deleted"`
	Materials   []MaterialView `json:"materials"`
	CreditHours int            `json:"credit_hours"`
}

type MaterialView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Type        string `json:"type"`
	Semester    int    `json:"semester"`
	CreditHours int    `json:"credit_hours"`
	Description string `json:"description,omitempty"`
	IsDeleted   bool   `json:"is_deleted"`
}

type UniversityDetails struct {
	ID                   uint                     `json:"id"`
	NameAr               string                   `json:"name_ar"`
	NameEn               string                   `json:"name_en"`
	Type                 string                   `json:"type"`
	FoundingYear         int                      `json:"founding_year"`
	Ranking              int                      `json:"ranking"`
	City                 string                   `json:"city"`
	Website              string                   `json:"website"`
	Email                string                   `json:"email"`
	Phone                string                   `json:"phone"`
	LogoURL              string                   `json:"logo_url"`
	Description          string                   `json:"description"`
	ContactInfo          datatypes.JSON           `json:"contact_info,omitempty"`
	HousingOptions       []model.HousingOption    `json:"housing_options"`
	DocumentsRequired    []model.DocumentRequired `json:"documents_required"`
	Faculties            []FacultySummary         `json:"faculties"`
	FacultiesCount       int                      `json:"faculties_count"`
	SpecializationsCount int                      `json:"specializations_count"`
	AverageStudyDuration Years                    `json:"average_study_duration"`
}

type FacultySummary struct {
	ID                 uint                 `json:"id"`
	NameAr             string               `json:"name_ar"`
	NameEn             string               `json:"name_en"`
	ImageURL           string               `json:"image_url"`
	StudyDuration      string               `json:"study_duration"`
	StudyDurationYears Years                `json:"study_duration_years"`
	Specializations    []SpecializationView `json:"specializations"`
	YearsCount         int                  `json:"years_count"`
	MaterialsCount     int                  `json:"materials_count"`
	TotalCreditHours   int                  `json:"total_credit_hours"`
}

// FacultyDetails returns the full tree of a faculty. Every level is filtered
// on its own soft delete state; includeDeleted lifts the filter at all levels.
func (a *Aggregator) FacultyDetails(ctx context.Context, id uint, includeDeleted bool) (*FacultyDetails, error) {
	key := FacultyCacheKey(id)
	if !includeDeleted && a.cache != nil {
		var cached FacultyDetails
		if err := a.cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	scope := scoped(includeDeleted)
	var faculty model.Faculty
	err := scope(a.db.WithContext(ctx)).
		Preload("University", scope).
		Preload("Specializations", orderedBy(scope, "id ASC")).
		Preload("JobOpportunities", orderedBy(scope, "id ASC")).
		Preload("StudyPlanYears", orderedBy(scope, "year_number ASC, id ASC")).
		Preload("StudyPlanYears.Media", orderedBy(scope, "id ASC")).
		Preload("StudyPlanYears.Materials", orderedBy(scope, "semester ASC, id ASC")).
		Preload("StudyPlanYears.Sections", orderedBy(scope, "semester ASC, id ASC")).
		Preload("StudyPlanYears.Sections.Materials", orderedBy(scope, "id ASC")).
		First(&faculty, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFacultyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load faculty %d: %w", id, err)
	}

	details := projectFaculty(&faculty)

	if !includeDeleted && a.cache != nil {
		if err := a.cache.SetJSON(ctx, key, details, a.ttl); err != nil {
			a.log.Warn("failed to cache faculty details", "faculty_id", id, "error", err)
		}
	}
	return details, nil
}

// UniversityCompleteDetails returns a university with its active faculties,
// housing, required documents and rollups.
func (a *Aggregator) UniversityCompleteDetails(ctx context.Context, id uint) (*UniversityDetails, error) {
	key := UniversityCacheKey(id)
	if a.cache != nil {
		var cached UniversityDetails
		if err := a.cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	var university model.University
	err := a.db.WithContext(ctx).
		Preload("HousingOptions", orderBy("id ASC")).
		Preload("DocumentsRequired", orderBy("id ASC")).
		Preload("Faculties", orderBy("id ASC")).
		Preload("Faculties.Specializations", orderBy("id ASC")).
		Preload("Faculties.StudyPlanYears").
		Preload("Faculties.StudyPlanYears.Materials").
		Preload("Faculties.StudyPlanYears.Sections").
		Preload("Faculties.StudyPlanYears.Sections.Materials").
		First(&university, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUniversityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load university %d: %w", id, err)
	}

	details := &UniversityDetails{
		ID:                university.ID,
		NameAr:            university.NameAr,
		NameEn:            university.NameEn,
		Type:              string(university.Type),
		FoundingYear:      university.FoundingYear,
		Ranking:           university.Ranking,
		City:              university.City,
		Website:           university.Website,
		Email:             university.Email,
		Phone:             university.Phone,
		LogoURL:           university.LogoURL,
		Description:       university.Description,
		ContactInfo:       university.ContactInfo,
		HousingOptions:    nonNil(university.HousingOptions),
		DocumentsRequired: nonNil(university.DocumentsRequired),
		Faculties:         []FacultySummary{},
		FacultiesCount:    len(university.Faculties),
	}

	durations := make([]Years, 0, len(university.Faculties))
	for i := range university.Faculties {
		f := &university.Faculties[i]
		full := projectFaculty(f)
		summary := FacultySummary{
			ID:                 f.ID,
			NameAr:             f.NameAr,
			NameEn:             f.NameEn,
			ImageURL:           f.ImageURL,
			StudyDuration:      f.StudyDuration,
			StudyDurationYears: full.StudyDurationYears,
			Specializations:    full.Specializations,
			YearsCount:         full.Stats.YearsCount,
			MaterialsCount:     full.Stats.MaterialsCount,
			TotalCreditHours:   full.Stats.TotalCreditHours,
		}
		details.Faculties = append(details.Faculties, summary)
		details.SpecializationsCount += full.Stats.SpecializationsCount
		durations = append(durations, full.StudyDurationYears)
	}
	details.AverageStudyDuration = AverageYears(durations)

	if a.cache != nil {
		if err := a.cache.SetJSON(ctx, key, details, a.ttl); err != nil {
			a.log.Warn("failed to cache university details", "university_id", id, "error", err)
		}
	}
	return details, nil
}

// Invalidate drops the cached projections of a faculty and its university.
func (a *Aggregator) Invalidate(ctx context.Context, facultyID, universityID uint) {
	if a == nil || a.cache == nil {
		return
	}
	var keys []string
	if facultyID != 0 {
		keys = append(keys, FacultyCacheKey(facultyID))
	}
	if universityID != 0 {
		keys = append(keys, UniversityCacheKey(universityID))
	}
	if len(keys) == 0 {
		return
	}
	if err := a.cache.Delete(ctx, keys...); err != nil {
		a.log.Warn("failed to invalidate details cache", "keys", keys, "error", err)
	}
}

func projectFaculty(f *model.Faculty) *FacultyDetails {
	details := &FacultyDetails{
		ID:                 f.ID,
		UniversityID:       f.UniversityID,
		NameAr:             f.NameAr,
		NameEn:             f.NameEn,
		Description:        f.Description,
		StudyDuration:      f.StudyDuration,
		StudyDurationYears: DurationOf(f.StudyDuration),
		TuitionFee:         f.TuitionFee,
		AdmissionRate:      f.AdmissionRate,
		ImageURL:           f.ImageURL,
		Version:            f.Version,
		IsDeleted:          f.IsDeleted,
		Specializations:    []SpecializationView{},
		JobOpportunities:   []JobView{},
		Years:              []YearView{},
	}
	if f.University != nil {
		details.UniversityName = f.University.NameAr
	}

	for _, s := range f.Specializations {
		details.Specializations = append(details.Specializations, SpecializationView{
			ID: s.ID, Name: s.Name, Description: s.Description, IsDeleted: s.IsDeleted,
		})
	}
	for _, j := range f.JobOpportunities {
		details.JobOpportunities = append(details.JobOpportunities, JobView{ID: j.ID, Name: j.Name, IsDeleted: j.IsDeleted})
	}

	years := append([]model.StudyPlanYear(nil), f.StudyPlanYears...)
	sort.SliceStable(years, func(i, j int) bool { return years[i].YearNumber < years[j].YearNumber })

	for i := range years {
		year := projectYear(&years[i])
		details.Years = append(details.Years, year)
		details.Stats.TotalCreditHours += year.CreditHours
		details.Stats.SectionsCount += len(years[i].Sections)
		details.Stats.MaterialsCount += len(years[i].Materials)
		for _, sec := range years[i].Sections {
			details.Stats.MaterialsCount += len(sec.Materials)
		}
	}

	details.Stats.SpecializationsCount = len(details.Specializations)
	details.Stats.JobOpportunitiesCount = len(details.JobOpportunities)
	details.Stats.YearsCount = len(details.Years)
	return details
}

func projectYear(y *model.StudyPlanYear) YearView {
	view := YearView{
		ID:                y.ID,
		YearNumber:        y.YearNumber,
		Name:              y.Name,
		Type:              string(y.Type),
		HasSpecialization: len(y.Sections) > 0,
		IsDeleted:         y.IsDeleted,
		Media:             []MediaView{},
		Semesters:         []SemesterView{},
	}
	for _, m := range y.Media {
		view.Media = append(view.Media, MediaView{ID: m.ID, Type: string(m.MediaType), URL: m.URL, IsDeleted: m.IsDeleted})
	}

	for number := 1; number <= SemestersPerYear; number++ {
		sem := SemesterView{Number: number}
		for _, sec := range y.Sections {
			if sec.Semester != number {
				continue
			}
			sv := SectionView{ID: sec.ID, Name: sec.Name, Code: sec.Code, IsDeleted: sec.IsDeleted, Materials: []MaterialView{}}
			for _, m := range sec.Materials {
				sv.Materials = append(sv.Materials, projectMaterial(m))
				sv.CreditHours += m.CreditHours
			}
			sem.Sections = append(sem.Sections, sv)
			sem.CreditHours += sv.CreditHours
		}
		for _, m := range y.Materials {
			if m.Semester != number {
				continue
			}
			sem.Materials = append(sem.Materials, projectMaterial(m))
			sem.CreditHours += m.CreditHours
		}
		sem.Sectioned = len(sem.Sections) > 0
		if len(sem.Sections) == 0 && len(sem.Materials) == 0 {
			continue
		}
		view.Semesters = append(view.Semesters, sem)
		view.CreditHours += sem.CreditHours
	}
	return view
}

func projectMaterial(m model.AcademicMaterial) MaterialView {
	return MaterialView{
		ID:          m.ID,
		Name:        m.Name,
		Code:        m.Code,
		Type:        string(m.Type),
		Semester:    m.Semester,
		CreditHours: m.CreditHours,
		Description: m.Description,
		IsDeleted:   m.IsDeleted,
	}
}

type scopeFunc = func(*gorm.DB) *gorm.DB

func scoped(includeDeleted bool) scopeFunc {
	if includeDeleted {
		return func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	}
	return func(db *gorm.DB) *gorm.DB { return db }
}

func orderedBy(scope scopeFunc, order string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return scope(db).Order(order) }
}

func orderBy(order string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// InvalidateUniversity drops the projection of a university and of each of
// the given faculties.
func (a *Aggregator) InvalidateUniversity(ctx context.Context, universityID uint, facultyIDs []uint) {
	a.Invalidate(ctx, 0, universityID)
	for _, id := range facultyIDs {
		a.Invalidate(ctx, id, 0)
	}
}

// InvalidateUniversityTree drops the projection of a university together with
// those of all its faculties, which embed the university name.
func (a *Aggregator) InvalidateUniversityTree(ctx context.Context, universityID uint) {
	if a == nil || a.cache == nil {
		return
	}
	var facultyIDs []uint
	if err := a.db.WithContext(ctx).Model(&model.Faculty{}).
		Where("university_id = ?", universityID).
		Pluck("id", &facultyIDs).Error; err != nil {
		a.log.Warn("failed to list faculties for cache invalidation", "university_id", universityID, "error", err)
	}
	a.InvalidateUniversity(ctx, universityID, facultyIDs)
}
