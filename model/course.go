package model

import (
	"time"

	"gorm.io/datatypes"
)

// Course is a recorded video course published on the portal
type Course struct {
	SoftDeleteModel
	UniversityID *uint   `gorm:"index" json:"university_id,omitempty"`
	Title        string  `gorm:"not null" json:"title"`
	Description  string  `gorm:"type:text" json:"description"`
	Instructor   string  `gorm:"type:varchar(255)" json:"instructor"`
	Level        string  `gorm:"type:varchar(50)" json:"level"` // beginner, intermediate, advanced
	Price        float64 `json:"price"`
	ThumbnailURL string  `gorm:"type:varchar(512)" json:"thumbnail_url"`
	IsPublished  bool    `gorm:"default:false" json:"is_published"`

	// Relationships
	Videos []Video `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"videos,omitempty"`
}

// VideoStatus tracks a video through the external host's processing pipeline
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusUploading  VideoStatus = "uploading"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusAvailable  VideoStatus = "available"
	VideoStatusFailed     VideoStatus = "failed"
)

// Video is a lesson of a course hosted by the external video provider
type Video struct {
	SoftDeleteModel
	CourseID        uint        `gorm:"not null;index" json:"course_id"`
	Title           string      `gorm:"not null" json:"title"`
	Description     string      `gorm:"type:text" json:"description"`
	DurationSeconds int         `json:"duration_seconds"`
	SortOrder       int         `gorm:"default:0" json:"sort_order"`
	Status          VideoStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	HostVideoID     string      `gorm:"type:varchar(100);index" json:"host_video_id,omitempty"`
	PlayerURL       string      `gorm:"type:varchar(512)" json:"player_url,omitempty"`

	// Relationships
	Course *Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// VideoJobStatus is the state of a video upload polling job
type VideoJobStatus string

const (
	VideoJobPolling   VideoJobStatus = "polling"
	VideoJobCompleted VideoJobStatus = "completed"
	VideoJobFailed    VideoJobStatus = "failed"
)

// VideoUploadJob tracks the asynchronous processing of an uploaded video on the
// external host. The poller only picks rows whose NextCheckAt has passed.
type VideoUploadJob struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	VideoID     uint           `gorm:"not null;index" json:"video_id"`
	HostVideoID string         `gorm:"type:varchar(100);not null" json:"host_video_id"`
	Status      VideoJobStatus `gorm:"type:varchar(20);default:'polling';index" json:"status"`
	HostStatus  string         `gorm:"type:varchar(30)" json:"host_status"`
	Attempts    int            `gorm:"default:0" json:"attempts"`
	NextCheckAt time.Time      `gorm:"index" json:"next_check_at"`
	LastError   string         `gorm:"type:text" json:"last_error,omitempty"`
	Payload     datatypes.JSON `json:"payload,omitempty"` // {title, description} sent on finalize
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Relationships
	Video *Video `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
}
