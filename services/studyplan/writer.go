package studyplan

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/utils"
	"gorm.io/gorm"
)

// Writer persists a decoded Tree below an existing faculty.
type Writer struct {
	store storage.FileStore
	log   *utils.Logger
}

func NewWriter(store storage.FileStore, log *utils.Logger) *Writer {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Writer{store: store, log: log}
}

// Write inserts the tree in dependency order inside tx: specializations,
// then every year with its media, sections and materials, then job
// opportunities. It returns the URLs of the files it saved, also when it
// fails, so the caller can remove them if the transaction does not commit.
func (w *Writer) Write(ctx context.Context, tx *gorm.DB, facultyID uint, tree *Tree) ([]string, error) {
	var saved []string
	if tree == nil {
		return saved, nil
	}

	if err := UpsertSpecializations(tx, facultyID, tree.Specializations); err != nil {
		return saved, err
	}

	for y, yearNode := range tree.Years {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		year := model.StudyPlanYear{
			FacultyID:  facultyID,
			YearNumber: y + 1,
			Name:       yearNode.Name,
			Type:       yearNode.Type,
		}
		if err := tx.Create(&year).Error; err != nil {
			return saved, fmt.Errorf("create year %d: %w", y+1, err)
		}

		for _, media := range yearNode.Media {
			if media.File == nil {
				continue
			}
			url, err := storage.SaveUpload(ctx, w.store, storage.CategoryStudyPlans, media.File)
			if err != nil {
				return saved, fmt.Errorf("save media %q of year %d: %w", media.File.Filename, y+1, err)
			}
			saved = append(saved, url)

			row := model.StudyPlanMedia{StudyPlanYearID: year.ID, MediaType: media.Type, URL: url}
			if err := tx.Create(&row).Error; err != nil {
				return saved, fmt.Errorf("create media of year %d: %w", y+1, err)
			}
		}

		for s, semester := range yearNode.Semesters {
			if s >= SemestersPerYear {
				break
			}
			if err := w.writeSemester(tx, &year, y, s, semester); err != nil {
				return saved, err
			}
		}
	}

	for _, name := range tree.JobOpportunities {
		job := model.JobOpportunity{FacultyID: facultyID, Name: name}
		if err := tx.Create(&job).Error; err != nil {
			return saved, fmt.Errorf("create job opportunity: %w", err)
		}
	}

	return saved, nil
}

func (w *Writer) writeSemester(tx *gorm.DB, year *model.StudyPlanYear, y, s int, semester SemesterNode) error {
	if semester.Sectioned() {
		for sec, sectionNode := range semester.Sections {
			section := model.StudyPlanSection{
				StudyPlanYearID: year.ID,
				Semester:        s + 1,
				Name:            sectionNode.Name,
				Code:            sectionNode.Code,
			}
			if err := tx.Create(&section).Error; err != nil {
				return fmt.Errorf("create section %d of year %d semester %d: %w", sec+1, y+1, s+1, err)
			}

			materials := make([]model.AcademicMaterial, 0, len(sectionNode.Materials))
			for m, node := range sectionNode.Materials {
				row := materialRow(node, s, MaterialCode(y, s, sec, m))
				row.StudyPlanSectionID = &section.ID
				materials = append(materials, row)
			}
			if err := createMaterials(tx, materials); err != nil {
				return fmt.Errorf("create materials of section %d year %d: %w", sec+1, y+1, err)
			}
		}
		return nil
	}

	materials := make([]model.AcademicMaterial, 0, len(semester.Materials))
	for m, node := range semester.Materials {
		row := materialRow(node, s, MaterialCode(y, s, -1, m))
		row.StudyPlanYearID = &year.ID
		materials = append(materials, row)
	}
	if err := createMaterials(tx, materials); err != nil {
		return fmt.Errorf("create materials of year %d semester %d: %w", y+1, s+1, err)
	}
	return nil
}

func materialRow(node MaterialNode, s int, fallbackCode string) model.AcademicMaterial {
	code := node.Code
	if code == "" {
		code = fallbackCode
	}
	return model.AcademicMaterial{
		Semester:    s + 1,
		Name:        node.Name,
		Code:        code,
		Type:        node.Type,
		CreditHours: node.CreditHours,
		Description: node.Description,
	}
}

func createMaterials(tx *gorm.DB, materials []model.AcademicMaterial) error {
	if len(materials) == 0 {
		return nil
	}
	return tx.Create(&materials).Error
}

// UpsertSpecializations writes specializations of a faculty. A node whose id
// names a specialization of the same faculty, active or soft deleted, is
// reactivated and updated in place; any other node is inserted.
func UpsertSpecializations(tx *gorm.DB, facultyID uint, nodes []SpecializationNode) error {
	for _, node := range nodes {
		if node.ID != 0 {
			var existing model.Specialization
			err := tx.Unscoped().Where("id = ? AND faculty_id = ?", node.ID, facultyID).First(&existing).Error
			switch {
			case err == nil:
				if _, err := softdelete.Restore(tx, softdelete.Specializations, existing.ID); err != nil {
					return err
				}
				if err := tx.Model(&model.Specialization{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
					"name":        node.Name,
					"description": node.Description,
				}).Error; err != nil {
					return fmt.Errorf("update specialization %d: %w", existing.ID, err)
				}
				continue
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("load specialization %d: %w", node.ID, err)
			}
		}

		spec := model.Specialization{FacultyID: facultyID, Name: node.Name, Description: node.Description}
		if err := tx.Create(&spec).Error; err != nil {
			return fmt.Errorf("create specialization: %w", err)
		}
	}
	return nil
}

// Cleanup removes files saved by a write that did not commit. Failures are
// logged and otherwise ignored.
func (w *Writer) Cleanup(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := w.store.Delete(ctx, url); err != nil {
			w.log.Warn("failed to remove orphaned upload", "url", url, "error", err)
		}
	}
}
