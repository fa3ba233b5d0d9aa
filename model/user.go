package model

import (
	"time"
)

// User represents a registered account (admin or student)
type User struct {
	SoftDeleteModel
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string `gorm:"not null" json:"name"`
	Role         string `gorm:"type:varchar(20);default:'student'" json:"role"` // student, admin
	TokenVersion int    `gorm:"default:0" json:"-"`                             // Increment to invalidate all user tokens

	// Relationships
	Profile        *StudentProfile     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	Consultations  []Consultation      `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// StudentProfile holds the admission-related details of a student account
type StudentProfile struct {
	SoftDeleteModel
	UserID              uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Phone               string     `gorm:"type:varchar(30)" json:"phone"`
	Nationality         string     `gorm:"type:varchar(100)" json:"nationality"`
	City                string     `gorm:"type:varchar(100)" json:"city"`
	BirthDate           *time.Time `json:"birth_date,omitempty"`
	HighSchoolGPA       float64    `json:"high_school_gpa"`
	InterestedFacultyID *uint      `gorm:"index" json:"interested_faculty_id,omitempty"`
}
