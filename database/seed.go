package database

import (
	"fmt"
	"os"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db  *gorm.DB
	log *utils.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log *utils.Logger) *Seeder {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Seeder{db: db, log: log}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	s.log.Info("starting database seeding")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedUniversities(); err != nil {
		return fmt.Errorf("failed to seed universities: %w", err)
	}

	if err := s.SeedFaculties(); err != nil {
		return fmt.Errorf("failed to seed faculties: %w", err)
	}

	s.log.Info("database seeding completed")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	// Check if admin already exists
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.log.Info("admin user already exists, skipping")
		return nil
	}

	// Get admin credentials from environment variables
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		s.log.Warn("ADMIN_EMAIL and ADMIN_PASSWORD not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         model.RoleAdmin,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	s.log.Info("created admin user", "email", admin.Email)
	return nil
}

// SeedUniversities creates sample universities with their housing and documents
func (s *Seeder) SeedUniversities() error {
	var count int64
	if err := s.db.Model(&model.University{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.log.Info("universities already exist, skipping")
		return nil
	}

	universities := []model.University{
		{
			NameAr:       "جامعة دمشق",
			NameEn:       "Damascus University",
			Type:         model.UniversityTypePublic,
			FoundingYear: 1923,
			City:         "Damascus",
			Website:      "https://damascusuniversity.edu.sy",
			HousingOptions: []model.HousingOption{
				{Name: "المدينة الجامعية", Type: "dorm", Price: 150},
			},
			DocumentsRequired: []model.DocumentRequired{
				{Name: "الشهادة الثانوية", Description: "صورة مصدقة"},
				{Name: "صورة الهوية"},
			},
		},
		{
			NameAr:       "جامعة حلب",
			NameEn:       "University of Aleppo",
			Type:         model.UniversityTypePublic,
			FoundingYear: 1958,
			City:         "Aleppo",
		},
		{
			NameAr:       "الجامعة العربية الدولية",
			NameEn:       "Arab International University",
			Type:         model.UniversityTypePrivate,
			FoundingYear: 2005,
			City:         "Ghabagheb",
		},
	}

	if err := s.db.Create(&universities).Error; err != nil {
		return err
	}

	s.log.Info("created universities", "count", len(universities))
	return nil
}

// SeedFaculties creates one faculty with a small study plan on the first university
func (s *Seeder) SeedFaculties() error {
	var count int64
	if err := s.db.Model(&model.Faculty{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.log.Info("faculties already exist, skipping")
		return nil
	}

	var university model.University
	if err := s.db.Order("id ASC").First(&university).Error; err != nil {
		return fmt.Errorf("no universities found, seed universities first: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		faculty := model.Faculty{
			UniversityID:  university.ID,
			NameAr:        "كلية الهندسة المعلوماتية",
			NameEn:        "Faculty of Information Engineering",
			StudyDuration: "5 سنوات",
			Specializations: []model.Specialization{
				{Name: "هندسة البرمجيات"},
				{Name: "الذكاء الاصطناعي"},
			},
			JobOpportunities: []model.JobOpportunity{
				{Name: "مطور برمجيات"},
				{Name: "مهندس شبكات"},
			},
		}
		if err := tx.Create(&faculty).Error; err != nil {
			return err
		}

		year := model.StudyPlanYear{FacultyID: faculty.ID, YearNumber: 1, Name: "السنة الأولى", Type: model.StudyPlanYearGeneral}
		if err := tx.Create(&year).Error; err != nil {
			return err
		}

		materials := []model.AcademicMaterial{
			{StudyPlanYearID: &year.ID, Semester: 1, Name: "تحليل رياضي 1", Code: "MAT-1-1-1", Type: model.MaterialMandatory, CreditHours: 4},
			{StudyPlanYearID: &year.ID, Semester: 1, Name: "فيزياء", Code: "MAT-1-1-2", Type: model.MaterialMandatory, CreditHours: 3},
			{StudyPlanYearID: &year.ID, Semester: 2, Name: "برمجة 1", Code: "MAT-1-2-1", Type: model.MaterialMandatory, CreditHours: 4},
		}
		if err := tx.Create(&materials).Error; err != nil {
			return err
		}

		s.log.Info("created faculty with study plan", "faculty", faculty.NameEn)
		return nil
	})
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB, log *utils.Logger) error {
	return NewSeeder(db, log).SeedAll()
}
