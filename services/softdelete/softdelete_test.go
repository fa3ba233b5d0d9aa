package softdelete_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"gorm.io/gorm"
)

type fixture struct {
	university model.University
	faculty    model.Faculty
	year       model.StudyPlanYear
	section    model.StudyPlanSection
	yearMat    model.AcademicMaterial
	sectionMat model.AcademicMaterial
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	var f fixture

	f.university = model.University{NameAr: "جامعة", NameEn: "Uni"}
	require.NoError(t, db.Create(&f.university).Error)

	f.faculty = model.Faculty{UniversityID: f.university.ID, NameAr: "كلية"}
	require.NoError(t, db.Create(&f.faculty).Error)
	require.NoError(t, db.Create(&model.Specialization{FacultyID: f.faculty.ID, Name: "AI"}).Error)
	require.NoError(t, db.Create(&model.HousingOption{UniversityID: f.university.ID, Name: "Dorm"}).Error)

	f.year = model.StudyPlanYear{FacultyID: f.faculty.ID, YearNumber: 1}
	require.NoError(t, db.Create(&f.year).Error)

	f.section = model.StudyPlanSection{StudyPlanYearID: f.year.ID, Semester: 1, Name: "A"}
	require.NoError(t, db.Create(&f.section).Error)

	f.yearMat = model.AcademicMaterial{StudyPlanYearID: &f.year.ID, Semester: 2, Name: "Math", CreditHours: 3}
	require.NoError(t, db.Create(&f.yearMat).Error)

	f.sectionMat = model.AcademicMaterial{StudyPlanSectionID: &f.section.ID, Semester: 1, Name: "Algo", CreditHours: 4}
	require.NoError(t, db.Create(&f.sectionMat).Error)

	return f
}

func countActive(t *testing.T, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(value).Count(&n).Error)
	return n
}

func TestDeleteCascadesThroughWholeTree(t *testing.T) {
	db := dbtest.New(t)
	f := seed(t, db)

	require.NoError(t, softdelete.Delete(db, softdelete.Universities, f.university.ID))

	assert.Zero(t, countActive(t, db, &model.University{}))
	assert.Zero(t, countActive(t, db, &model.Faculty{}))
	assert.Zero(t, countActive(t, db, &model.HousingOption{}))
	assert.Zero(t, countActive(t, db, &model.Specialization{}))
	assert.Zero(t, countActive(t, db, &model.StudyPlanYear{}))
	assert.Zero(t, countActive(t, db, &model.StudyPlanSection{}))
	assert.Zero(t, countActive(t, db, &model.AcademicMaterial{}))

	var materials []model.AcademicMaterial
	require.NoError(t, db.Unscoped().Find(&materials).Error)
	require.Len(t, materials, 2)
	for _, m := range materials {
		assert.True(t, m.IsDeleted)
		assert.True(t, m.DeletedAt.Valid)
	}
}

func TestDeleteTwiceIsNotFound(t *testing.T) {
	db := dbtest.New(t)
	f := seed(t, db)

	require.NoError(t, softdelete.Delete(db, softdelete.Faculties, f.faculty.ID))
	err := softdelete.Delete(db, softdelete.Faculties, f.faculty.ID)
	assert.ErrorIs(t, err, softdelete.ErrNotFound)

	// the university above the faculty is untouched
	assert.Equal(t, int64(1), countActive(t, db, &model.University{}))
}

func TestCascadeWithoutRootKeepsParent(t *testing.T) {
	db := dbtest.New(t)
	f := seed(t, db)

	require.NoError(t, softdelete.Cascade(db, softdelete.Faculties, []uint{f.faculty.ID}, false))

	assert.Equal(t, int64(1), countActive(t, db, &model.Faculty{}))
	assert.Zero(t, countActive(t, db, &model.StudyPlanYear{}))
	assert.Zero(t, countActive(t, db, &model.AcademicMaterial{}))
}

func TestRestoreReactivatesRow(t *testing.T) {
	db := dbtest.New(t)
	f := seed(t, db)

	var spec model.Specialization
	require.NoError(t, db.First(&spec).Error)
	require.NoError(t, softdelete.Delete(db, softdelete.Specializations, spec.ID))

	affected, err := softdelete.Restore(db, softdelete.Specializations, spec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	var restored model.Specialization
	require.NoError(t, db.First(&restored, spec.ID).Error)
	assert.False(t, restored.IsDeleted)
	assert.Equal(t, f.faculty.ID, restored.FacultyID)
}

func TestPurgeRemovesRowsPhysically(t *testing.T) {
	db := dbtest.New(t)
	f := seed(t, db)

	require.NoError(t, softdelete.Delete(db, softdelete.Faculties, f.faculty.ID))
	require.NoError(t, softdelete.PurgeOne(db, softdelete.Universities, f.university.ID))

	var n int64
	require.NoError(t, db.Unscoped().Model(&model.AcademicMaterial{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Unscoped().Model(&model.Faculty{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Unscoped().Model(&model.University{}).Count(&n).Error)
	assert.Zero(t, n)

	assert.ErrorIs(t, softdelete.PurgeOne(db, softdelete.Universities, f.university.ID), softdelete.ErrNotFound)
}
