package model

import (
	"gorm.io/datatypes"
)

// UniversityType distinguishes public from private institutions
type UniversityType string

const (
	UniversityTypePublic  UniversityType = "public"
	UniversityTypePrivate UniversityType = "private"
)

// University represents an educational institution listed on the portal
type University struct {
	SoftDeleteModel
	NameAr       string         `gorm:"type:varchar(255);not null" json:"name_ar"`
	NameEn       string         `gorm:"type:varchar(255);not null;index" json:"name_en"`
	Type         UniversityType `gorm:"type:varchar(20);default:'public'" json:"type"`
	FoundingYear int            `json:"founding_year"`
	Ranking      int            `json:"ranking"`
	City         string         `gorm:"type:varchar(100)" json:"city"`
	Website      string         `gorm:"type:varchar(255)" json:"website"`
	Email        string         `gorm:"type:varchar(255)" json:"email"`
	Phone        string         `gorm:"type:varchar(30)" json:"phone"`
	LogoURL      string         `gorm:"type:varchar(512)" json:"logo_url"`
	Description  string         `gorm:"type:text" json:"description"`
	ContactInfo  datatypes.JSON `json:"contact_info,omitempty"` // social links, extra phones

	// Relationships
	Faculties         []Faculty          `gorm:"foreignKey:UniversityID;constraint:OnDelete:CASCADE" json:"faculties,omitempty"`
	HousingOptions    []HousingOption    `gorm:"foreignKey:UniversityID;constraint:OnDelete:CASCADE" json:"housing_options,omitempty"`
	DocumentsRequired []DocumentRequired `gorm:"foreignKey:UniversityID;constraint:OnDelete:CASCADE" json:"documents_required,omitempty"`
}

// HousingOption is a dormitory or partner housing offer of a university
type HousingOption struct {
	SoftDeleteModel
	UniversityID uint    `gorm:"not null;index" json:"university_id"`
	Name         string  `gorm:"not null" json:"name"`
	Type         string  `gorm:"type:varchar(50)" json:"type"` // dorm, apartment, partner
	Price        float64 `json:"price"`
	Description  string  `gorm:"type:text" json:"description"`
}

// DocumentRequired is a document an applicant must submit to a university
type DocumentRequired struct {
	SoftDeleteModel
	UniversityID uint   `gorm:"not null;index" json:"university_id"`
	Name         string `gorm:"not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	TemplateURL  string `gorm:"type:varchar(512)" json:"template_url,omitempty"`
}

// TableName specifies the table name for DocumentRequired
func (DocumentRequired) TableName() string {
	return "documents_required"
}
