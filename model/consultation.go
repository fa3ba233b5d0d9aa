package model

import "time"

// ConsultationStatus is the lifecycle of a student consultation request
type ConsultationStatus string

const (
	ConsultationPending  ConsultationStatus = "pending"
	ConsultationAnswered ConsultationStatus = "answered"
	ConsultationClosed   ConsultationStatus = "closed"
)

// Consultation is a question a student sends to the portal's advisors
type Consultation struct {
	SoftDeleteModel
	StudentID    uint               `gorm:"not null;index" json:"student_id"`
	UniversityID *uint              `gorm:"index" json:"university_id,omitempty"`
	FacultyID    *uint              `gorm:"index" json:"faculty_id,omitempty"`
	Subject      string             `gorm:"not null" json:"subject"`
	Message      string             `gorm:"type:text;not null" json:"message"`
	Status       ConsultationStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Reply        string             `gorm:"type:text" json:"reply,omitempty"`
	RepliedByID  *uint              `json:"replied_by_id,omitempty"`
	RepliedAt    *time.Time         `json:"replied_at,omitempty"`

	// Relationships
	Student *User `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
}
