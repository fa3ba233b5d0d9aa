package model

import (
	"time"

	"github.com/lib/pq"
)

// Article is a news item or guide published on the portal
type Article struct {
	SoftDeleteModel
	Title       string         `gorm:"not null" json:"title"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Summary     string         `gorm:"type:text" json:"summary"`
	Body        string         `gorm:"type:text" json:"body"` // sanitised HTML
	CoverURL    string         `gorm:"type:varchar(512)" json:"cover_url"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	IsPublished bool           `gorm:"default:false;index" json:"is_published"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	AuthorID    uint           `gorm:"index" json:"author_id"`

	// Relationships
	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// Advertisement is a banner shown in one or more placements of the site
type Advertisement struct {
	SoftDeleteModel
	Title      string         `gorm:"not null" json:"title"`
	ImageURL   string         `gorm:"type:varchar(512);not null" json:"image_url"`
	LinkURL    string         `gorm:"type:varchar(512)" json:"link_url"`
	Placements pq.StringArray `gorm:"type:text[]" json:"placements"` // home, universities, faculty
	StartsAt   *time.Time     `json:"starts_at,omitempty"`
	EndsAt     *time.Time     `gorm:"index" json:"ends_at,omitempty"`
	IsActive   bool           `gorm:"default:true;index" json:"is_active"`
	SortOrder  int            `gorm:"default:0" json:"sort_order"`
}
