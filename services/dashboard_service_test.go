package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
)

func TestDashboardBuild(t *testing.T) {
	db := dbtest.New(t)

	uni := model.University{NameAr: "جامعة", NameEn: "North"}
	require.NoError(t, db.Create(&uni).Error)
	faculties := []model.Faculty{
		{UniversityID: uni.ID, NameAr: "طب", NameEn: "Medicine"},
		{UniversityID: uni.ID, NameAr: "هندسة", NameEn: "Engineering"},
	}
	require.NoError(t, db.Create(&faculties).Error)
	require.NoError(t, softdelete.Delete(db, softdelete.Faculties, faculties[1].ID))

	users := []model.User{
		{Email: "admin@uni.test", PasswordHash: "x", Name: "Admin", Role: model.RoleAdmin},
		{Email: "a@uni.test", PasswordHash: "x", Name: "A", Role: model.RoleStudent},
		{Email: "b@uni.test", PasswordHash: "x", Name: "B", Role: model.RoleStudent},
	}
	require.NoError(t, db.Create(&users).Error)

	consultations := []model.Consultation{
		{StudentID: users[1].ID, Subject: "Fees", Message: "How much are the fees?", Status: model.ConsultationPending},
		{StudentID: users[1].ID, Subject: "Housing", Message: "Is there a dorm nearby?", Status: model.ConsultationPending},
		{StudentID: users[2].ID, Subject: "Visa", Message: "Which documents are needed?", Status: model.ConsultationAnswered},
	}
	require.NoError(t, db.Create(&consultations).Error)

	course := model.Course{Title: "Anatomy", IsPublished: true}
	require.NoError(t, db.Create(&course).Error)
	require.NoError(t, db.Create(&[]model.Video{
		{CourseID: course.ID, Title: "Intro", Status: model.VideoStatusAvailable},
		{CourseID: course.ID, Title: "Bones", Status: model.VideoStatusProcessing},
	}).Error)

	d, err := services.NewDashboardService(db).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), d.Counts.Universities)
	assert.Equal(t, int64(1), d.Counts.Faculties, "deleted faculty is not counted")
	assert.Equal(t, int64(2), d.Counts.Students)
	assert.Equal(t, int64(1), d.Counts.Courses)
	assert.Equal(t, int64(2), d.Counts.Videos)
	assert.Equal(t, int64(3), d.Counts.Consultations)

	assert.Equal(t, int64(2), d.ConsultationsByStat[model.ConsultationPending])
	assert.Equal(t, int64(1), d.ConsultationsByStat[model.ConsultationAnswered])
	assert.Equal(t, int64(0), d.ConsultationsByStat[model.ConsultationClosed])
	assert.Equal(t, int64(1), d.VideosByStatus[model.VideoStatusAvailable])

	require.Len(t, d.RecentStudents, 2)
	for _, s := range d.RecentStudents {
		assert.Equal(t, model.RoleStudent, s.Role)
	}
	assert.Len(t, d.RecentConsultations, 3)
	require.Len(t, d.RecentFaculties, 1)
	assert.Equal(t, "Medicine", d.RecentFaculties[0].NameEn)
}
