package studyplan

import (
	"context"
	"fmt"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"gorm.io/gorm"
)

// BumpVersion increments the faculty's version inside tx. With
// expectedVersion > 0 the update only applies when the stored version still
// matches, otherwise ErrStaleFaculty is returned. The updated row stays
// locked until tx ends, which serialises concurrent replaces of one faculty.
func BumpVersion(tx *gorm.DB, facultyID uint, expectedVersion int) (int, error) {
	query := tx.Model(&model.Faculty{}).Where("id = ?", facultyID)
	if expectedVersion > 0 {
		query = query.Where("version = ?", expectedVersion)
	}
	result := query.UpdateColumn("version", gorm.Expr("version + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("bump faculty version: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&model.Faculty{}).Where("id = ?", facultyID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, ErrFacultyNotFound
		}
		return 0, ErrStaleFaculty
	}

	var versions []int
	if err := tx.Model(&model.Faculty{}).Where("id = ?", facultyID).Pluck("version", &versions).Error; err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, ErrFacultyNotFound
	}
	return versions[0], nil
}

// Replace swaps the whole content of a faculty for tree inside tx: the
// version is checked and bumped, every existing descendant is soft deleted,
// and the new tree is written. Nothing is merged; the only identity carried
// over is that of specializations resubmitted with their id.
func Replace(ctx context.Context, tx *gorm.DB, w *Writer, facultyID uint, expectedVersion int, tree *Tree) ([]string, error) {
	if _, err := BumpVersion(tx, facultyID, expectedVersion); err != nil {
		return nil, err
	}

	if err := softdelete.Cascade(tx, softdelete.Faculties, []uint{facultyID}, false); err != nil {
		return nil, fmt.Errorf("soft delete previous content: %w", err)
	}

	return w.Write(ctx, tx, facultyID, tree)
}
