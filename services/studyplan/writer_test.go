package studyplan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/storage/storagetest"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
)

func newFaculty(t *testing.T, db *gorm.DB) model.Faculty {
	t.Helper()
	uni := model.University{NameAr: "جامعة", NameEn: "Uni"}
	require.NoError(t, db.Create(&uni).Error)
	faculty := model.Faculty{UniversityID: uni.ID, NameAr: "كلية", StudyDuration: "4 سنوات"}
	require.NoError(t, db.Create(&faculty).Error)
	return faculty
}

func sampleTree(t *testing.T, prefix string) *studyplan.Tree {
	return &studyplan.Tree{
		Specializations:  []studyplan.SpecializationNode{{Name: prefix + " AI"}},
		JobOpportunities: []string{prefix + " Engineer"},
		Years: []studyplan.YearNode{
			{
				Name: prefix + " Year 1",
				Type: model.StudyPlanYearGeneral,
				Media: []studyplan.MediaNode{
					{Type: model.MediaImage, File: storagetest.FileHeader(t, "cover.png", []byte("png"))},
				},
				Semesters: []studyplan.SemesterNode{
					{Materials: []studyplan.MaterialNode{
						{Name: prefix + " Math", CreditHours: 3},
						{Name: prefix + " Physics", Code: "PHY-101", CreditHours: 4},
					}},
				},
			},
			{
				Name: prefix + " Year 2",
				Type: model.StudyPlanYearSpecialized,
				Semesters: []studyplan.SemesterNode{
					{Materials: []studyplan.MaterialNode{{Name: prefix + " Stats", CreditHours: 2}}},
					{Sections: []studyplan.SectionNode{
						{Name: "A", Materials: []studyplan.MaterialNode{{Name: prefix + " Algo", CreditHours: 5}}},
						{Name: "B", Code: "SEC-B", Materials: []studyplan.MaterialNode{{Name: prefix + " Nets", CreditHours: 1}}},
					}},
				},
			},
		},
	}
}

func TestWriterPersistsTree(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	store := storagetest.NewMemoryStore()
	w := studyplan.NewWriter(store, nil)

	saved, err := w.Write(context.Background(), db, faculty.ID, sampleTree(t, "v1"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, store.Has(saved[0]))

	var years []model.StudyPlanYear
	require.NoError(t, db.Order("year_number").Find(&years, "faculty_id = ?", faculty.ID).Error)
	require.Len(t, years, 2)
	assert.Equal(t, 1, years[0].YearNumber)
	assert.Equal(t, 2, years[1].YearNumber)

	var direct []model.AcademicMaterial
	require.NoError(t, db.Order("id").Find(&direct, "study_plan_year_id IS NOT NULL").Error)
	require.Len(t, direct, 3)
	assert.Equal(t, "MAT-1-1-1", direct[0].Code)
	assert.Equal(t, "PHY-101", direct[1].Code)
	assert.Equal(t, "MAT-2-1-1", direct[2].Code)
	assert.Nil(t, direct[0].StudyPlanSectionID)

	var sections []model.StudyPlanSection
	require.NoError(t, db.Order("id").Preload("Materials").Find(&sections).Error)
	require.Len(t, sections, 2)
	assert.Equal(t, 2, sections[0].Semester)
	assert.Equal(t, "MAT-2-2-1-1", sections[0].Materials[0].Code)
	assert.Equal(t, "SEC-B", sections[1].Code)
	assert.Equal(t, "MAT-2-2-2-1", sections[1].Materials[0].Code)
	assert.Nil(t, sections[0].Materials[0].StudyPlanYearID)

	var media []model.StudyPlanMedia
	require.NoError(t, db.Find(&media).Error)
	require.Len(t, media, 1)
	assert.Equal(t, saved[0], media[0].URL)

	var jobs, specs int64
	db.Model(&model.JobOpportunity{}).Count(&jobs)
	db.Model(&model.Specialization{}).Count(&specs)
	assert.Equal(t, int64(1), jobs)
	assert.Equal(t, int64(1), specs)
}

func TestMaterialNeedsExactlyOneParent(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	year := model.StudyPlanYear{FacultyID: faculty.ID, YearNumber: 1}
	require.NoError(t, db.Create(&year).Error)
	section := model.StudyPlanSection{StudyPlanYearID: year.ID, Semester: 1, Name: "A"}
	require.NoError(t, db.Create(&section).Error)

	err := db.Create(&model.AcademicMaterial{Name: "orphan", Semester: 1}).Error
	assert.ErrorIs(t, err, model.ErrMaterialParent)

	err = db.Create(&model.AcademicMaterial{Name: "both", Semester: 1, StudyPlanYearID: &year.ID, StudyPlanSectionID: &section.ID}).Error
	assert.ErrorIs(t, err, model.ErrMaterialParent)
}

func replaceInTx(t *testing.T, db *gorm.DB, w *studyplan.Writer, facultyID uint, version int, tree *studyplan.Tree) error {
	t.Helper()
	var saved []string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		saved, err = studyplan.Replace(context.Background(), tx, w, facultyID, version, tree)
		return err
	})
	if err != nil {
		w.Cleanup(context.Background(), saved)
	}
	return err
}

func TestReplaceLeavesOnlyNewPayloadVisible(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	w := studyplan.NewWriter(storagetest.NewMemoryStore(), nil)

	require.NoError(t, replaceInTx(t, db, w, faculty.ID, 1, sampleTree(t, "v1")))
	require.NoError(t, replaceInTx(t, db, w, faculty.ID, 2, sampleTree(t, "v2")))

	var active []model.AcademicMaterial
	require.NoError(t, db.Find(&active).Error)
	require.Len(t, active, 5)
	for _, m := range active {
		assert.Contains(t, m.Name, "v2")
	}

	var old []model.AcademicMaterial
	require.NoError(t, db.Unscoped().Where("name LIKE ?", "v1%").Find(&old).Error)
	require.Len(t, old, 5)
	for _, m := range old {
		assert.True(t, m.IsDeleted)
		assert.True(t, m.DeletedAt.Valid)
	}

	var years, sections, media, jobs int64
	db.Model(&model.StudyPlanYear{}).Count(&years)
	db.Model(&model.StudyPlanSection{}).Count(&sections)
	db.Model(&model.StudyPlanMedia{}).Count(&media)
	db.Model(&model.JobOpportunity{}).Count(&jobs)
	assert.Equal(t, int64(2), years)
	assert.Equal(t, int64(2), sections)
	assert.Equal(t, int64(1), media)
	assert.Equal(t, int64(1), jobs)

	var reloaded model.Faculty
	require.NoError(t, db.First(&reloaded, faculty.ID).Error)
	assert.Equal(t, 3, reloaded.Version)
}

func TestReplaceRejectsStaleVersion(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	w := studyplan.NewWriter(storagetest.NewMemoryStore(), nil)

	require.NoError(t, replaceInTx(t, db, w, faculty.ID, 1, sampleTree(t, "v1")))
	err := replaceInTx(t, db, w, faculty.ID, 1, sampleTree(t, "v2"))
	assert.True(t, errors.Is(err, studyplan.ErrStaleFaculty), "got %v", err)

	var count int64
	db.Model(&model.AcademicMaterial{}).Where("name LIKE ?", "v1%").Count(&count)
	assert.Equal(t, int64(5), count)

	err = replaceInTx(t, db, w, 9999, 0, sampleTree(t, "v3"))
	assert.True(t, errors.Is(err, studyplan.ErrFacultyNotFound), "got %v", err)
}

func TestReplaceRollsBackOnFileFailure(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	store := storagetest.NewMemoryStore()
	w := studyplan.NewWriter(store, nil)

	require.NoError(t, replaceInTx(t, db, w, faculty.ID, 0, sampleTree(t, "v1")))
	require.Equal(t, 1, store.Len())

	tree := sampleTree(t, "v2")
	tree.Years[1].Media = []studyplan.MediaNode{
		{Type: model.MediaImage, File: storagetest.FileHeader(t, "second.png", []byte("png"))},
	}
	// first upload of the new tree succeeds, the second fails
	store.FailAfter = 2

	err := replaceInTx(t, db, w, faculty.ID, 0, tree)
	assert.ErrorIs(t, err, storagetest.ErrInjected)

	// previous tree intact, new file removed again
	var active []model.AcademicMaterial
	require.NoError(t, db.Find(&active).Error)
	require.Len(t, active, 5)
	for _, m := range active {
		assert.Contains(t, m.Name, "v1")
	}
	assert.Equal(t, 1, store.Len())
	assert.Len(t, store.Deleted, 1)

	var reloaded model.Faculty
	require.NoError(t, db.First(&reloaded, faculty.ID).Error)
	assert.Equal(t, 2, reloaded.Version)
}

func TestReplaceReactivatesSpecializationByID(t *testing.T) {
	db := dbtest.New(t)
	faculty := newFaculty(t, db)
	w := studyplan.NewWriter(storagetest.NewMemoryStore(), nil)

	require.NoError(t, replaceInTx(t, db, w, faculty.ID, 0, sampleTree(t, "v1")))
	var spec model.Specialization
	require.NoError(t, db.First(&spec).Error)

	tree := sampleTree(t, "v2")
	tree.Specializations = []studyplan.SpecializationNode{{ID: spec.ID, Name: "Renamed"}}
	require.NoError(t, replaceInTx(t, db, w, faculty.ID, 0, tree))

	var all []model.Specialization
	require.NoError(t, db.Unscoped().Find(&all).Error)
	require.Len(t, all, 1)
	assert.Equal(t, spec.ID, all[0].ID)
	assert.Equal(t, "Renamed", all[0].Name)
	assert.False(t, all[0].IsDeleted)
	assert.False(t, all[0].DeletedAt.Valid)
}

func TestUpsertIgnoresForeignSpecializationID(t *testing.T) {
	db := dbtest.New(t)
	a := newFaculty(t, db)
	b := newFaculty(t, db)

	other := model.Specialization{FacultyID: b.ID, Name: "Theirs"}
	require.NoError(t, db.Create(&other).Error)

	require.NoError(t, studyplan.UpsertSpecializations(db, a.ID, []studyplan.SpecializationNode{{ID: other.ID, Name: "Mine"}}))

	var reloaded model.Specialization
	require.NoError(t, db.First(&reloaded, other.ID).Error)
	assert.Equal(t, "Theirs", reloaded.Name)

	var count int64
	db.Model(&model.Specialization{}).Where("faculty_id = ?", a.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}
