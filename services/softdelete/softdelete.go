// Package softdelete implements the shared soft delete lifecycle: every
// deletable row carries is_deleted and deleted_at, and deleting a parent walks
// a fixed set of cascade rules so no active child is left under a deleted
// parent.
package softdelete

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the root of a delete is missing or already deleted.
var ErrNotFound = errors.New("record not found or already deleted")

// Table names participating in the cascade.
const (
	Universities      = "universities"
	HousingOptions    = "housing_options"
	DocumentsRequired = "documents_required"
	Faculties         = "faculties"
	Specializations   = "specializations"
	JobOpportunities  = "job_opportunities"
	StudyPlanYears    = "study_plan_years"
	StudyPlanMedia    = "study_plan_media"
	StudyPlanSections = "study_plan_sections"
	AcademicMaterials = "academic_materials"
	Courses           = "courses"
	Videos            = "videos"
	VideoUploadJobs   = "video_upload_jobs"
	Users             = "users"
	StudentProfiles   = "student_profiles"
	Consultations     = "consultations"
	TokenBlacklist    = "jwt_token_blacklist"
	AuditLogs         = "admin_audit_logs"
	Articles          = "articles"
	Advertisements    = "advertisements"
)

// Child links a parent table to a dependent table through ForeignKey.
// HardOnly children have no soft delete columns and are only touched by Purge.
type Child struct {
	Table      string
	ForeignKey string
	HardOnly   bool
}

// Rules is the cascade graph, parent table to dependents.
var Rules = map[string][]Child{
	Universities: {
		{Table: Faculties, ForeignKey: "university_id"},
		{Table: HousingOptions, ForeignKey: "university_id"},
		{Table: DocumentsRequired, ForeignKey: "university_id"},
	},
	Faculties: {
		{Table: StudyPlanYears, ForeignKey: "faculty_id"},
		{Table: Specializations, ForeignKey: "faculty_id"},
		{Table: JobOpportunities, ForeignKey: "faculty_id"},
	},
	StudyPlanYears: {
		{Table: StudyPlanMedia, ForeignKey: "study_plan_year_id"},
		{Table: StudyPlanSections, ForeignKey: "study_plan_year_id"},
		{Table: AcademicMaterials, ForeignKey: "study_plan_year_id"},
	},
	StudyPlanSections: {
		{Table: AcademicMaterials, ForeignKey: "study_plan_section_id"},
	},
	Courses: {
		{Table: Videos, ForeignKey: "course_id"},
	},
	Videos: {
		{Table: VideoUploadJobs, ForeignKey: "video_id", HardOnly: true},
	},
	Users: {
		{Table: StudentProfiles, ForeignKey: "user_id"},
		{Table: Consultations, ForeignKey: "student_id"},
		{Table: TokenBlacklist, ForeignKey: "user_id", HardOnly: true},
		{Table: AuditLogs, ForeignKey: "admin_id", HardOnly: true},
	},
}

// SoftDelete marks the active rows of table with the given ids as deleted and
// returns how many rows changed. Rows that are already deleted are left alone.
func SoftDelete(tx *gorm.DB, table string, ids ...uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	result := tx.Table(table).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("soft delete %s: %w", table, result.Error)
	}
	return result.RowsAffected, nil
}

// Cascade soft deletes every active descendant of the given rows, breadth
// first along Rules. When includeRoot is set the roots themselves are deleted
// too.
func Cascade(tx *gorm.DB, table string, ids []uint, includeRoot bool) error {
	if includeRoot {
		if _, err := SoftDelete(tx, table, ids...); err != nil {
			return err
		}
	}

	type level struct {
		table string
		ids   []uint
	}
	queue := []level{{table: table, ids: ids}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.ids) == 0 {
			continue
		}

		for _, child := range Rules[current.table] {
			if child.HardOnly {
				continue
			}
			var childIDs []uint
			if err := tx.Table(child.Table).
				Where(child.ForeignKey+" IN ? AND deleted_at IS NULL", current.ids).
				Pluck("id", &childIDs).Error; err != nil {
				return fmt.Errorf("collect %s: %w", child.Table, err)
			}
			if len(childIDs) == 0 {
				continue
			}
			if _, err := SoftDelete(tx, child.Table, childIDs...); err != nil {
				return err
			}
			queue = append(queue, level{table: child.Table, ids: childIDs})
		}
	}
	return nil
}

// Delete soft deletes one row and its subtree. It returns ErrNotFound when the
// row does not exist or is already deleted.
func Delete(tx *gorm.DB, table string, id uint) error {
	affected, err := SoftDelete(tx, table, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return Cascade(tx, table, []uint{id}, false)
}

// Restore reactivates a soft deleted row. Descendants are not restored.
func Restore(tx *gorm.DB, table string, id uint) (int64, error) {
	result := tx.Table(table).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("restore %s: %w", table, result.Error)
	}
	return result.RowsAffected, nil
}

// Purge physically removes rows and all their descendants, deleted or not,
// children first.
func Purge(tx *gorm.DB, table string, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	for _, child := range Rules[table] {
		var childIDs []uint
		if err := tx.Table(child.Table).
			Where(child.ForeignKey+" IN ?", ids).
			Pluck("id", &childIDs).Error; err != nil {
			return fmt.Errorf("collect %s: %w", child.Table, err)
		}
		if err := Purge(tx, child.Table, childIDs...); err != nil {
			return err
		}
	}
	if err := tx.Exec("DELETE FROM "+table+" WHERE id IN ?", ids).Error; err != nil {
		return fmt.Errorf("purge %s: %w", table, err)
	}
	return nil
}

// PurgeOne removes a single row and its subtree, returning ErrNotFound when
// the row does not exist at all.
func PurgeOne(tx *gorm.DB, table string, id uint) error {
	var count int64
	if err := tx.Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return Purge(tx, table, id)
}
