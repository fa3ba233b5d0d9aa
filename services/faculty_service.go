package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/studyplan"
	"github.com/sahilchouksey/uniportal-api/utils"
	"gorm.io/gorm"
)

var (
	ErrUniversityNotFound = studyplan.ErrUniversityNotFound
	ErrFacultyNotFound    = studyplan.ErrFacultyNotFound
)

// FacultyFields are the scalar columns of a faculty as submitted by an admin.
type FacultyFields struct {
	UniversityID  uint    `json:"university_id" form:"university_id" validate:"required"`
	NameAr        string  `json:"name_ar" form:"name_ar" validate:"required,max=255"`
	NameEn        string  `json:"name_en" form:"name_en" validate:"omitempty,max=255"`
	Description   string  `json:"description" form:"description"`
	StudyDuration string  `json:"study_duration" form:"study_duration" validate:"omitempty,max=100"`
	TuitionFee    float64 `json:"tuition_fee" form:"tuition_fee" validate:"gte=0"`
	AdmissionRate float64 `json:"admission_rate" form:"admission_rate" validate:"gte=0,lte=100"`

	Image *multipart.FileHeader `json:"-" form:"-"`
}

// FacultyService runs the multi-step faculty writes: every create, replace
// and delete is one transaction, files saved by a failed write are removed,
// and cached detail projections are dropped after a commit.
type FacultyService struct {
	db             *gorm.DB
	store          storage.FileStore
	writer         *studyplan.Writer
	aggregator     *studyplan.Aggregator
	log            *utils.Logger
	maxUploadBytes int64
}

// NewFacultyService creates a faculty service.
func NewFacultyService(db *gorm.DB, store storage.FileStore, aggregator *studyplan.Aggregator, log *utils.Logger, maxUploadBytes int64) *FacultyService {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &FacultyService{
		db:             db,
		store:          store,
		writer:         studyplan.NewWriter(store, log),
		aggregator:     aggregator,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// ValidateFiles checks every upload of a request before anything is written.
func (s *FacultyService) ValidateFiles(fields *FacultyFields, tree *studyplan.Tree) error {
	if fields != nil && fields.Image != nil {
		if err := storage.ValidateUpload(fields.Image, storage.KindImage, s.maxUploadBytes); err != nil {
			return err
		}
	}
	if tree == nil {
		return nil
	}
	for _, file := range tree.Files() {
		if err := storage.ValidateUpload(file, storage.KindMedia, s.maxUploadBytes); err != nil {
			return err
		}
	}
	return nil
}

func ensureUniversity(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&model.University{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUniversityNotFound
	}
	return nil
}

// saveImage stores the faculty image when one was submitted.
func (s *FacultyService) saveImage(ctx context.Context, fields *FacultyFields, saved *[]string) (string, error) {
	if fields.Image == nil {
		return "", nil
	}
	url, err := storage.SaveUpload(ctx, s.store, storage.CategoryFaculties, fields.Image)
	if err != nil {
		return "", fmt.Errorf("save faculty image: %w", err)
	}
	*saved = append(*saved, url)
	return url, nil
}

// Create inserts a faculty with its whole study plan.
func (s *FacultyService) Create(ctx context.Context, fields *FacultyFields, tree *studyplan.Tree) (*model.Faculty, error) {
	if err := s.ValidateFiles(fields, tree); err != nil {
		return nil, err
	}

	faculty := model.Faculty{
		UniversityID:  fields.UniversityID,
		NameAr:        fields.NameAr,
		NameEn:        fields.NameEn,
		Description:   fields.Description,
		StudyDuration: fields.StudyDuration,
		TuitionFee:    fields.TuitionFee,
		AdmissionRate: fields.AdmissionRate,
		Version:       1,
	}

	var saved []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniversity(tx, fields.UniversityID); err != nil {
			return err
		}

		url, err := s.saveImage(ctx, fields, &saved)
		if err != nil {
			return err
		}
		faculty.ImageURL = url

		if err := tx.Create(&faculty).Error; err != nil {
			return fmt.Errorf("create faculty: %w", err)
		}

		urls, err := s.writer.Write(ctx, tx, faculty.ID, tree)
		saved = append(saved, urls...)
		return err
	})
	if err != nil {
		s.writer.Cleanup(ctx, saved)
		return nil, err
	}

	s.log.Info("faculty created", "faculty_id", faculty.ID, "university_id", faculty.UniversityID, "files", len(saved))
	s.aggregator.Invalidate(ctx, faculty.ID, faculty.UniversityID)
	return &faculty, nil
}

// Replace updates the scalar fields of a faculty and swaps its study plan for
// tree. expectedVersion > 0 rejects the write with ErrStaleFaculty when
// another replace committed in between.
func (s *FacultyService) Replace(ctx context.Context, facultyID uint, expectedVersion int, fields *FacultyFields, tree *studyplan.Tree) (*model.Faculty, error) {
	if err := s.ValidateFiles(fields, tree); err != nil {
		return nil, err
	}

	var (
		saved         []string
		faculty       model.Faculty
		oldUniversity uint
		oldImage      string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&faculty, facultyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFacultyNotFound
			}
			return err
		}
		oldUniversity = faculty.UniversityID

		urls, err := studyplan.Replace(ctx, tx, s.writer, facultyID, expectedVersion, tree)
		saved = append(saved, urls...)
		if err != nil {
			return err
		}

		if fields.UniversityID != faculty.UniversityID {
			if err := ensureUniversity(tx, fields.UniversityID); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"university_id":  fields.UniversityID,
			"name_ar":        fields.NameAr,
			"name_en":        fields.NameEn,
			"description":    fields.Description,
			"study_duration": fields.StudyDuration,
			"tuition_fee":    fields.TuitionFee,
			"admission_rate": fields.AdmissionRate,
		}
		url, err := s.saveImage(ctx, fields, &saved)
		if err != nil {
			return err
		}
		if url != "" {
			oldImage = faculty.ImageURL
			updates["image_url"] = url
		}

		if err := tx.Model(&model.Faculty{}).Where("id = ?", facultyID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update faculty: %w", err)
		}
		return tx.First(&faculty, facultyID).Error
	})
	if err != nil {
		s.writer.Cleanup(ctx, saved)
		return nil, err
	}

	if oldImage != "" {
		s.writer.Cleanup(ctx, []string{oldImage})
	}
	s.log.Info("faculty replaced", "faculty_id", facultyID, "version", faculty.Version, "files", len(saved))
	s.aggregator.Invalidate(ctx, facultyID, faculty.UniversityID)
	if oldUniversity != faculty.UniversityID {
		s.aggregator.Invalidate(ctx, 0, oldUniversity)
	}
	return &faculty, nil
}

// Delete soft deletes a faculty and everything below it. Deleting a faculty
// that is already deleted reports ErrFacultyNotFound.
func (s *FacultyService) Delete(ctx context.Context, facultyID uint) error {
	var faculty model.Faculty
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&faculty, facultyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFacultyNotFound
			}
			return err
		}
		if err := softdelete.Delete(tx, softdelete.Faculties, facultyID); err != nil {
			if errors.Is(err, softdelete.ErrNotFound) {
				return ErrFacultyNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.aggregator.Invalidate(ctx, facultyID, faculty.UniversityID)
	return nil
}

// Purge physically removes a faculty, active or soft deleted, with all of its
// rows. Stored files are removed after the commit.
func (s *FacultyService) Purge(ctx context.Context, facultyID uint) error {
	var (
		faculty model.Faculty
		files   []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().First(&faculty, facultyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFacultyNotFound
			}
			return err
		}
		if err := tx.Unscoped().Model(&model.StudyPlanMedia{}).
			Joins("JOIN study_plan_years ON study_plan_years.id = study_plan_media.study_plan_year_id").
			Where("study_plan_years.faculty_id = ?", facultyID).
			Pluck("study_plan_media.url", &files).Error; err != nil {
			return fmt.Errorf("collect media files: %w", err)
		}
		if faculty.ImageURL != "" {
			files = append(files, faculty.ImageURL)
		}
		return softdelete.PurgeOne(tx, softdelete.Faculties, facultyID)
	})
	if err != nil {
		return err
	}

	s.writer.Cleanup(ctx, files)
	s.log.Info("faculty purged", "faculty_id", facultyID, "files", len(files))
	s.aggregator.Invalidate(ctx, facultyID, faculty.UniversityID)
	return nil
}

// UpsertSpecializations adds or reactivates specializations of an active faculty.
func (s *FacultyService) UpsertSpecializations(ctx context.Context, facultyID uint, nodes []studyplan.SpecializationNode) ([]model.Specialization, error) {
	var (
		faculty model.Faculty
		specs   []model.Specialization
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&faculty, facultyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFacultyNotFound
			}
			return err
		}
		if err := studyplan.UpsertSpecializations(tx, facultyID, nodes); err != nil {
			return err
		}
		return tx.Where("faculty_id = ?", facultyID).Order("id").Find(&specs).Error
	})
	if err != nil {
		return nil, err
	}
	s.aggregator.Invalidate(ctx, facultyID, faculty.UniversityID)
	return specs, nil
}

// Details returns the faculty projection.
func (s *FacultyService) Details(ctx context.Context, facultyID uint, includeDeleted bool) (*studyplan.FacultyDetails, error) {
	return s.aggregator.FacultyDetails(ctx, facultyID, includeDeleted)
}
