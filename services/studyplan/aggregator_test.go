package studyplan_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage/storagetest"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
)

type memoryCache struct {
	data    map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

var errMiss = errors.New("miss")

func (c *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return errMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func TestFacultyDetailsRollups(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	w := studyplan.NewWriter(storagetest.NewMemoryStore(), nil)
	_, err := w.Write(context.Background(), db, faculty.ID, sampleTree(t, "v1"))
	require.NoError(t, err)

	agg := studyplan.NewAggregator(db, nil, time.Minute, nil)
	details, err := agg.FacultyDetails(context.Background(), faculty.ID, false)
	require.NoError(t, err)

	assert.Equal(t, studyplan.KnownYears(4), details.StudyDurationYears)
	assert.Equal(t, "جامعة", details.UniversityName)
	assert.Equal(t, studyplan.FacultyStats{
		SpecializationsCount:  1,
		YearsCount:            2,
		SectionsCount:         2,
		MaterialsCount:        5,
		JobOpportunitiesCount: 1,
		TotalCreditHours:      15,
	}, details.Stats)

	require.Len(t, details.Years, 2)
	assert.Equal(t, 7, details.Years[0].CreditHours)
	assert.False(t, details.Years[0].HasSpecialization)

	second := details.Years[1]
	assert.Equal(t, 8, second.CreditHours)
	assert.True(t, second.HasSpecialization)
	require.Len(t, second.Semesters, 2)
	assert.False(t, second.Semesters[0].Sectioned)
	assert.True(t, second.Semesters[1].Sectioned)
	assert.Equal(t, 6, second.Semesters[1].CreditHours)
	assert.Equal(t, 5, second.Semesters[1].Sections[0].CreditHours)
}

func TestFacultyDetailsFiltersEachLevel(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	w := studyplan.NewWriter(storagetest.NewMemoryStore(), nil)
	_, err := w.Write(context.Background(), db, faculty.ID, sampleTree(t, "v1"))
	require.NoError(t, err)

	var section model.StudyPlanSection
	require.NoError(t, db.Where("name = ?", "A").First(&section).Error)
	require.NoError(t, softdelete.Delete(db, softdelete.StudyPlanSections, section.ID))

	var physics model.AcademicMaterial
	require.NoError(t, db.Where("code = ?", "PHY-101").First(&physics).Error)
	require.NoError(t, softdelete.Delete(db, softdelete.AcademicMaterials, physics.ID))

	agg := studyplan.NewAggregator(db, nil, time.Minute, nil)

	details, err := agg.FacultyDetails(context.Background(), faculty.ID, false)
	require.NoError(t, err)
	// the years stay visible while their deleted children disappear
	assert.Equal(t, 2, details.Stats.YearsCount)
	assert.Equal(t, 1, details.Stats.SectionsCount)
	assert.Equal(t, 3, details.Stats.MaterialsCount)
	assert.Equal(t, 6, details.Stats.TotalCreditHours)

	all, err := agg.FacultyDetails(context.Background(), faculty.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Stats.SectionsCount)
	assert.Equal(t, 5, all.Stats.MaterialsCount)
	assert.True(t, all.Years[0].Semesters[0].Materials[1].IsDeleted)

	require.NoError(t, softdelete.Delete(db, softdelete.Faculties, faculty.ID))
	_, err = agg.FacultyDetails(context.Background(), faculty.ID, false)
	assert.ErrorIs(t, err, studyplan.ErrFacultyNotFound)

	deleted, err := agg.FacultyDetails(context.Background(), faculty.ID, true)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, 2, deleted.Stats.YearsCount)
}

func TestUniversityWithoutFaculties(t *testing.T) {
	db := dbtest.New(t)
	uni := model.University{NameAr: "جامعة فارغة", NameEn: "Empty"}
	require.NoError(t, db.Create(&uni).Error)

	details, err := studyplan.NewAggregator(db, nil, time.Minute, nil).UniversityCompleteDetails(context.Background(), uni.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, details.FacultiesCount)
	assert.NotNil(t, details.Faculties)
	assert.Empty(t, details.Faculties)
	assert.False(t, details.AverageStudyDuration.Known)

	out, err := json.Marshal(details)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"faculties":[]`)
	assert.Contains(t, string(out), `"average_study_duration":"unspecified"`)

	_, err = studyplan.NewAggregator(db, nil, time.Minute, nil).UniversityCompleteDetails(context.Background(), 404)
	assert.ErrorIs(t, err, studyplan.ErrUniversityNotFound)
}

func TestUniversityRollups(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	second := model.Faculty{UniversityID: faculty.UniversityID, NameAr: "كلية الطب", StudyDuration: "6 سنوات"}
	third := model.Faculty{UniversityID: faculty.UniversityID, NameAr: "كلية جديدة", StudyDuration: "غير محدد"}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&third).Error)
	require.NoError(t, db.Create(&model.Specialization{FacultyID: second.ID, Name: "Surgery"}).Error)

	w := studyplan.NewWriter(storagetest.NewMemoryStore(), nil)
	_, err := w.Write(context.Background(), db, faculty.ID, sampleTree(t, "v1"))
	require.NoError(t, err)

	details, err := studyplan.NewAggregator(db, nil, time.Minute, nil).UniversityCompleteDetails(context.Background(), faculty.UniversityID)
	require.NoError(t, err)
	assert.Equal(t, 3, details.FacultiesCount)
	assert.Equal(t, 2, details.SpecializationsCount)
	assert.Equal(t, studyplan.KnownYears(5), details.AverageStudyDuration)
	assert.Equal(t, 15, details.Faculties[0].TotalCreditHours)

	require.NoError(t, softdelete.Delete(db, softdelete.Faculties, second.ID))
	details, err = studyplan.NewAggregator(db, nil, time.Minute, nil).UniversityCompleteDetails(context.Background(), faculty.UniversityID)
	require.NoError(t, err)
	assert.Equal(t, 2, details.FacultiesCount)
	assert.Equal(t, studyplan.KnownYears(4), details.AverageStudyDuration)
}

func TestDetailsAreCachedUntilInvalidated(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	cache := newMemoryCache()
	agg := studyplan.NewAggregator(db, cache, time.Minute, nil)

	first, err := agg.FacultyDetails(context.Background(), faculty.ID, false)
	require.NoError(t, err)
	require.Contains(t, cache.data, studyplan.FacultyCacheKey(faculty.ID))

	require.NoError(t, db.Model(&model.Faculty{}).Where("id = ?", faculty.ID).Update("name_ar", "changed").Error)

	cached, err := agg.FacultyDetails(context.Background(), faculty.ID, false)
	require.NoError(t, err)
	assert.Equal(t, first.NameAr, cached.NameAr)
	assert.Equal(t, first.StudyDurationYears, cached.StudyDurationYears)

	agg.Invalidate(context.Background(), faculty.ID, faculty.UniversityID)
	assert.Contains(t, cache.deleted, studyplan.UniversityCacheKey(faculty.UniversityID))

	fresh, err := agg.FacultyDetails(context.Background(), faculty.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "changed", fresh.NameAr)

	// deleted views bypass the cache
	_, err = agg.FacultyDetails(context.Background(), faculty.ID, true)
	require.NoError(t, err)
}

func TestUniversityRenameRefreshesFacultyDetails(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	cache := newMemoryCache()
	agg := studyplan.NewAggregator(db, cache, time.Minute, nil)
	ctx := context.Background()

	before, err := agg.FacultyDetails(ctx, faculty.ID, false)
	require.NoError(t, err)
	_, err = agg.UniversityCompleteDetails(ctx, faculty.UniversityID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.University{}).Where("id = ?", faculty.UniversityID).Update("name_ar", "renamed").Error)

	// dropping only the university entry leaves the faculty view stale
	agg.Invalidate(ctx, 0, faculty.UniversityID)
	stale, err := agg.FacultyDetails(ctx, faculty.ID, false)
	require.NoError(t, err)
	assert.Equal(t, before.UniversityName, stale.UniversityName)

	agg.InvalidateUniversityTree(ctx, faculty.UniversityID)
	assert.NotContains(t, cache.data, studyplan.FacultyCacheKey(faculty.ID))
	assert.NotContains(t, cache.data, studyplan.UniversityCacheKey(faculty.UniversityID))

	fresh, err := agg.FacultyDetails(ctx, faculty.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "renamed", fresh.UniversityName)
}
