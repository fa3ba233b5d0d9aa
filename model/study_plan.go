package model

import (
	"errors"

	"gorm.io/gorm"
)

// StudyPlanYearType tags a year as common to all students or split into tracks
type StudyPlanYearType string

const (
	StudyPlanYearGeneral     StudyPlanYearType = "General"
	StudyPlanYearSpecialized StudyPlanYearType = "Specialized"
)

// MaterialType marks an academic material as mandatory or elective
type MaterialType string

const (
	MaterialMandatory MaterialType = "Mandatory"
	MaterialOptional  MaterialType = "Optional"
)

// MediaType is the kind of file attached to a study plan year
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaPDF   MediaType = "pdf"
)

// ErrMaterialParent is returned when a material is attached to both or neither
// of a study plan year and a section.
var ErrMaterialParent = errors.New("academic material must belong to exactly one of a year or a section")

// StudyPlanYear is one academic year of a faculty's curriculum
type StudyPlanYear struct {
	SoftDeleteModel
	FacultyID  uint              `gorm:"not null;index" json:"faculty_id"`
	YearNumber int               `gorm:"not null" json:"year_number"` // 1-based position in the plan
	Name       string            `gorm:"type:varchar(100)" json:"name"`
	Type       StudyPlanYearType `gorm:"type:varchar(20);default:'General'" json:"type"`

	// Relationships
	Faculty   *Faculty           `gorm:"foreignKey:FacultyID;constraint:OnDelete:CASCADE" json:"-"`
	Media     []StudyPlanMedia   `gorm:"foreignKey:StudyPlanYearID;constraint:OnDelete:CASCADE" json:"media,omitempty"`
	Sections  []StudyPlanSection `gorm:"foreignKey:StudyPlanYearID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Materials []AcademicMaterial `gorm:"foreignKey:StudyPlanYearID;constraint:OnDelete:CASCADE" json:"materials,omitempty"`
}

// StudyPlanMedia is an uploaded file illustrating a study plan year
type StudyPlanMedia struct {
	SoftDeleteModel
	StudyPlanYearID uint      `gorm:"not null;index" json:"study_plan_year_id"`
	MediaType       MediaType `gorm:"type:varchar(20);not null" json:"media_type"`
	URL             string    `gorm:"type:varchar(512);not null" json:"url"`
}

// TableName specifies the table name for StudyPlanMedia
func (StudyPlanMedia) TableName() string {
	return "study_plan_media"
}

// StudyPlanSection groups the materials of one specialization track in a semester
type StudyPlanSection struct {
	SoftDeleteModel
	StudyPlanYearID uint   `gorm:"not null;index" json:"study_plan_year_id"`
	Semester        int    `gorm:"not null" json:"semester"` // 1 or 2
	Name            string `gorm:"not null" json:"name"`
	Code            string `gorm:"type:varchar(50)" json:"code"`

	// Relationships
	Materials []AcademicMaterial `gorm:"foreignKey:StudyPlanSectionID;constraint:OnDelete:CASCADE" json:"materials,omitempty"`
}

// AcademicMaterial is a single course/subject of the study plan. Exactly one of
// StudyPlanYearID and StudyPlanSectionID is set.
type AcademicMaterial struct {
	SoftDeleteModel
	StudyPlanYearID    *uint        `gorm:"index" json:"study_plan_year_id,omitempty"`
	StudyPlanSectionID *uint        `gorm:"index" json:"study_plan_section_id,omitempty"`
	Semester           int          `gorm:"not null" json:"semester"` // 1 or 2
	Name               string       `gorm:"not null" json:"name"`
	Code               string       `gorm:"type:varchar(50);index" json:"code"`
	Type               MaterialType `gorm:"type:varchar(20);default:'Mandatory'" json:"type"`
	CreditHours        int          `gorm:"default:0" json:"credit_hours"`
	Description        string       `gorm:"type:text" json:"description"`
}

// BeforeCreate enforces the year XOR section parent rule on insert
func (m *AcademicMaterial) BeforeCreate(tx *gorm.DB) error {
	if (m.StudyPlanYearID == nil) == (m.StudyPlanSectionID == nil) {
		return ErrMaterialParent
	}
	return nil
}
