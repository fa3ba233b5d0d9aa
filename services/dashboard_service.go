package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/model"
)

// recentLimit bounds each "recent" list on the dashboard
const recentLimit = 5

// DashboardCounts holds the number of active rows per resource
type DashboardCounts struct {
	Universities   int64 `json:"universities"`
	Faculties      int64 `json:"faculties"`
	Students       int64 `json:"students"`
	Courses        int64 `json:"courses"`
	Videos         int64 `json:"videos"`
	Articles       int64 `json:"articles"`
	Advertisements int64 `json:"advertisements"`
	Consultations  int64 `json:"consultations"`
}

// Dashboard is the admin landing page summary
type Dashboard struct {
	Counts              DashboardCounts                    `json:"counts"`
	ConsultationsByStat map[model.ConsultationStatus]int64 `json:"consultations_by_status"`
	VideosByStatus      map[model.VideoStatus]int64        `json:"videos_by_status"`
	RecentStudents      []model.User                       `json:"recent_students"`
	RecentConsultations []model.Consultation               `json:"recent_consultations"`
	RecentFaculties     []model.Faculty                    `json:"recent_faculties"`
}

// DashboardService builds the admin dashboard from the live tables
type DashboardService struct {
	db *gorm.DB
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Build collects counts, status breakdowns and the latest items. Soft
// deleted rows are never counted.
func (s *DashboardService) Build(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	d := &Dashboard{
		ConsultationsByStat: map[model.ConsultationStatus]int64{
			model.ConsultationPending:  0,
			model.ConsultationAnswered: 0,
			model.ConsultationClosed:   0,
		},
		VideosByStatus: map[model.VideoStatus]int64{},
	}

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"universities", db.Model(&model.University{}), &d.Counts.Universities},
		{"faculties", db.Model(&model.Faculty{}), &d.Counts.Faculties},
		{"students", db.Model(&model.User{}).Where("role = ?", model.RoleStudent), &d.Counts.Students},
		{"courses", db.Model(&model.Course{}), &d.Counts.Courses},
		{"videos", db.Model(&model.Video{}), &d.Counts.Videos},
		{"articles", db.Model(&model.Article{}), &d.Counts.Articles},
		{"advertisements", db.Model(&model.Advertisement{}).Where("is_active = ?", true), &d.Counts.Advertisements},
		{"consultations", db.Model(&model.Consultation{}), &d.Counts.Consultations},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", c.name, err)
		}
	}

	var consultationRows []struct {
		Status model.ConsultationStatus
		Count  int64
	}
	if err := db.Model(&model.Consultation{}).Select("status, COUNT(*) AS count").Group("status").Scan(&consultationRows).Error; err != nil {
		return nil, fmt.Errorf("consultation breakdown: %w", err)
	}
	for _, r := range consultationRows {
		d.ConsultationsByStat[r.Status] = r.Count
	}

	var videoRows []struct {
		Status model.VideoStatus
		Count  int64
	}
	if err := db.Model(&model.Video{}).Select("status, COUNT(*) AS count").Group("status").Scan(&videoRows).Error; err != nil {
		return nil, fmt.Errorf("video breakdown: %w", err)
	}
	for _, r := range videoRows {
		d.VideosByStatus[r.Status] = r.Count
	}

	if err := db.Where("role = ?", model.RoleStudent).Order("created_at DESC, id DESC").Limit(recentLimit).Find(&d.RecentStudents).Error; err != nil {
		return nil, fmt.Errorf("recent students: %w", err)
	}
	if err := db.Order("created_at DESC, id DESC").Limit(recentLimit).Find(&d.RecentConsultations).Error; err != nil {
		return nil, fmt.Errorf("recent consultations: %w", err)
	}
	if err := db.Order("created_at DESC, id DESC").Limit(recentLimit).Find(&d.RecentFaculties).Error; err != nil {
		return nil, fmt.Errorf("recent faculties: %w", err)
	}
	return d, nil
}
