package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/storage/storagetest"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
)

type facultyFixture struct {
	db    *gorm.DB
	store *storagetest.MemoryStore
	svc   *services.FacultyService
	uni   model.University
}

func newFacultyFixture(t *testing.T) *facultyFixture {
	t.Helper()
	db := dbtest.New(t)
	store := storagetest.NewMemoryStore()
	agg := studyplan.NewAggregator(db, nil, 0, nil)
	f := &facultyFixture{
		db:    db,
		store: store,
		svc:   services.NewFacultyService(db, store, agg, nil, 5*1024*1024),
		uni:   model.University{NameAr: "جامعة القاهرة", NameEn: "Cairo University"},
	}
	require.NoError(t, db.Create(&f.uni).Error)
	return f
}

func (f *facultyFixture) fields(name string) *services.FacultyFields {
	return &services.FacultyFields{UniversityID: f.uni.ID, NameAr: name, StudyDuration: "4 سنوات"}
}

func planTree(t *testing.T, label string) *studyplan.Tree {
	return &studyplan.Tree{
		Specializations:  []studyplan.SpecializationNode{{Name: label + " track"}},
		JobOpportunities: []string{label + " job"},
		Years: []studyplan.YearNode{{
			Name: label + " year",
			Type: model.StudyPlanYearGeneral,
			Media: []studyplan.MediaNode{
				{Type: model.MediaImage, File: storagetest.FileHeader(t, "plan.png", []byte("png"))},
			},
			Semesters: []studyplan.SemesterNode{
				{Materials: []studyplan.MaterialNode{{Name: label + " math", CreditHours: 3}}},
				{Sections: []studyplan.SectionNode{{Name: "A", Materials: []studyplan.MaterialNode{{Name: label + " algo", CreditHours: 4}}}}},
			},
		}},
	}
}

func TestFacultyCreate(t *testing.T) {
	f := newFacultyFixture(t)
	ctx := context.Background()

	fields := f.fields("الهندسة")
	fields.Image = storagetest.FileHeader(t, "cover.jpg", []byte("jpg"))
	faculty, err := f.svc.Create(ctx, fields, planTree(t, "v1"))
	require.NoError(t, err)
	assert.Equal(t, 1, faculty.Version)
	assert.True(t, f.store.Has(faculty.ImageURL))
	assert.Equal(t, 2, f.store.Len())

	details, err := f.svc.Details(ctx, faculty.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, details.Stats.YearsCount)
	assert.Equal(t, 1, details.Stats.SectionsCount)
	assert.Equal(t, 2, details.Stats.MaterialsCount)
	assert.Equal(t, 7, details.Stats.TotalCreditHours)
}

func TestFacultyCreateRejectsBeforeWriting(t *testing.T) {
	f := newFacultyFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &services.FacultyFields{UniversityID: 9999, NameAr: "x"}, planTree(t, "v1"))
	assert.ErrorIs(t, err, services.ErrUniversityNotFound)

	tree := planTree(t, "v1")
	tree.Years[0].Media[0].File = storagetest.FileHeader(t, "payload.exe", []byte("MZ"))
	_, err = f.svc.Create(ctx, f.fields("x"), tree)
	assert.ErrorIs(t, err, storage.ErrInvalidUpload)

	var count int64
	require.NoError(t, f.db.Model(&model.Faculty{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.store.Len())
}

func TestFacultyReplace(t *testing.T) {
	f := newFacultyFixture(t)
	ctx := context.Background()

	fields := f.fields("الطب")
	fields.Image = storagetest.FileHeader(t, "old.jpg", []byte("old"))
	created, err := f.svc.Create(ctx, fields, planTree(t, "v1"))
	require.NoError(t, err)
	oldImage := created.ImageURL

	next := f.fields("الطب البشري")
	next.Image = storagetest.FileHeader(t, "new.jpg", []byte("new"))
	replaced, err := f.svc.Replace(ctx, created.ID, created.Version, next, planTree(t, "v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, replaced.Version)
	assert.Equal(t, "الطب البشري", replaced.NameAr)
	assert.NotEqual(t, oldImage, replaced.ImageURL)
	assert.False(t, f.store.Has(oldImage))

	details, err := f.svc.Details(ctx, created.ID, false)
	require.NoError(t, err)
	require.Len(t, details.Years, 1)
	assert.Equal(t, "v2 year", details.Years[0].Name)
	require.Len(t, details.JobOpportunities, 1)
	assert.Equal(t, "v2 job", details.JobOpportunities[0].Name)

	_, err = f.svc.Replace(ctx, created.ID, created.Version, f.fields("stale"), planTree(t, "v3"))
	assert.True(t, errors.Is(err, studyplan.ErrStaleFaculty))
}

func TestFacultyReplaceFailureKeepsPreviousTree(t *testing.T) {
	f := newFacultyFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.fields("العلوم"), planTree(t, "v1"))
	require.NoError(t, err)

	fields := f.fields("العلوم")
	fields.Image = storagetest.FileHeader(t, "new.jpg", []byte("new"))
	f.store.FailAfter = f.store.Len() + 1 // plan media saves, image save fails

	_, err = f.svc.Replace(ctx, created.ID, 0, fields, planTree(t, "v2"))
	require.ErrorIs(t, err, storagetest.ErrInjected)

	details, err := f.svc.Details(ctx, created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, details.Version)
	require.Len(t, details.Years, 1)
	assert.Equal(t, "v1 year", details.Years[0].Name)
	assert.Equal(t, 1, f.store.Len(), "media saved by the failed replace must be removed")
}

func TestFacultyDeleteAndPurge(t *testing.T) {
	f := newFacultyFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.fields("الآداب"), planTree(t, "v1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, created.ID), services.ErrFacultyNotFound)

	var years []model.StudyPlanYear
	require.NoError(t, f.db.Unscoped().Find(&years, "faculty_id = ?", created.ID).Error)
	require.Len(t, years, 1)
	assert.True(t, years[0].IsDeleted)

	_, err = f.svc.Details(ctx, created.ID, false)
	assert.ErrorIs(t, err, services.ErrFacultyNotFound)
	deleted, err := f.svc.Details(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	require.NoError(t, f.svc.Purge(ctx, created.ID))
	var count int64
	require.NoError(t, f.db.Unscoped().Model(&model.AcademicMaterial{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.store.Len())
	assert.ErrorIs(t, f.svc.Purge(ctx, created.ID), services.ErrFacultyNotFound)
}

func TestFacultyUpsertSpecializations(t *testing.T) {
	f := newFacultyFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.fields("الحاسبات"), planTree(t, "v1"))
	require.NoError(t, err)

	specs, err := f.svc.UpsertSpecializations(ctx, created.ID, []studyplan.SpecializationNode{{Name: "Security"}})
	require.NoError(t, err)
	require.Len(t, specs, 2)

	_, err = f.svc.UpsertSpecializations(ctx, 4242, nil)
	assert.ErrorIs(t, err, services.ErrFacultyNotFound)
}
