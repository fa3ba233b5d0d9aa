package model

import (
	"time"

	"gorm.io/gorm"
)

// SoftDeleteModel is embedded by every entity that follows the soft delete
// lifecycle. DeletedAt drives GORM's default read filter; IsDeleted mirrors it
// for API consumers and is only ever written by services/softdelete.
type SoftDeleteModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	IsDeleted bool           `gorm:"not null;default:false;index" json:"is_deleted"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// Role values carried in the JWT role claim
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// All returns every model managed by AutoMigrate, parents before children.
func All() []interface{} {
	return []interface{}{
		&User{},
		&StudentProfile{},

		&University{},
		&HousingOption{},
		&DocumentRequired{},
		&Faculty{},
		&Specialization{},
		&JobOpportunity{},
		&StudyPlanYear{},
		&StudyPlanMedia{},
		&StudyPlanSection{},
		&AcademicMaterial{},

		&Course{},
		&Video{},
		&VideoUploadJob{},
		&Article{},
		&Advertisement{},
		&Consultation{},

		&JWTTokenBlacklist{},
		&AdminAuditLog{},
		&CronJobLog{},
	}
}
