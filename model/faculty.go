package model

// Faculty belongs to exactly one university and owns its study plan tree.
// Version is bumped by every study plan replace and guards against lost updates.
type Faculty struct {
	SoftDeleteModel
	UniversityID  uint    `gorm:"not null;index" json:"university_id"`
	NameAr        string  `gorm:"type:varchar(255);not null" json:"name_ar"`
	NameEn        string  `gorm:"type:varchar(255)" json:"name_en"`
	Description   string  `gorm:"type:text" json:"description"`
	StudyDuration string  `gorm:"type:varchar(100)" json:"study_duration"` // free text, e.g. "4 سنوات"
	TuitionFee    float64 `json:"tuition_fee"`
	AdmissionRate float64 `json:"admission_rate"`
	ImageURL      string  `gorm:"type:varchar(512)" json:"image_url"`
	Version       int     `gorm:"not null;default:1" json:"version"`

	// Relationships
	University       *University      `gorm:"foreignKey:UniversityID;constraint:OnDelete:CASCADE" json:"university,omitempty"`
	StudyPlanYears   []StudyPlanYear  `gorm:"foreignKey:FacultyID;constraint:OnDelete:CASCADE" json:"study_plan_years,omitempty"`
	Specializations  []Specialization `gorm:"foreignKey:FacultyID;constraint:OnDelete:CASCADE" json:"specializations,omitempty"`
	JobOpportunities []JobOpportunity `gorm:"foreignKey:FacultyID;constraint:OnDelete:CASCADE" json:"job_opportunities,omitempty"`
}

// Specialization is a degree track offered by a faculty, independent of the study plan
type Specialization struct {
	SoftDeleteModel
	FacultyID   uint   `gorm:"not null;index" json:"faculty_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

// JobOpportunity is a career a faculty's graduates can pursue
type JobOpportunity struct {
	SoftDeleteModel
	FacultyID uint   `gorm:"not null;index" json:"faculty_id"`
	Name      string `gorm:"not null" json:"name"`
}
