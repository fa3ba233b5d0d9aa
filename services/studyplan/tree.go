// Package studyplan builds, replaces and reads back a faculty's study plan:
// years, their semesters, optional specialization sections and the academic
// materials below them.
package studyplan

import (
	"errors"
	"mime/multipart"

	"github.com/sahilchouksey/uniportal-api/model"
)

// SemestersPerYear is fixed: generated codes and semester numbers assume a
// pair of semesters in every year.
const SemestersPerYear = 2

var (
	ErrFacultyNotFound = errors.New("faculty not found")
	ErrStaleFaculty    = errors.New("faculty was modified by another request")
	ErrInvalidPlan     = errors.New("invalid study plan")
)

// Tree is the decoded, not yet persisted, content of a faculty.
type Tree struct {
	Specializations  []SpecializationNode
	JobOpportunities []string
	Years            []YearNode
}

// SpecializationNode carries an optional id. A known id reactivates and
// updates the existing row instead of inserting a new one.
type SpecializationNode struct {
	ID          uint
	Name        string
	Description string
}

type YearNode struct {
	Name              string
	Type              model.StudyPlanYearType
	HasSpecialization bool
	Media             []MediaNode
	Semesters         []SemesterNode
}

type MediaNode struct {
	Type model.MediaType
	File *multipart.FileHeader
}

// SemesterNode is either sectioned or flat, never both.
type SemesterNode struct {
	Name      string
	Sections  []SectionNode
	Materials []MaterialNode
}

// Sectioned reports whether the semester groups its materials in sections.
func (s SemesterNode) Sectioned() bool {
	return len(s.Sections) > 0
}

type SectionNode struct {
	Name      string
	Code      string
	Materials []MaterialNode
}

type MaterialNode struct {
	Name        string
	Code        string
	Type        model.MaterialType
	CreditHours int
	Description string
}

// Files returns every uploaded file referenced by the tree, in write order.
func (t *Tree) Files() []*multipart.FileHeader {
	var files []*multipart.FileHeader
	for _, y := range t.Years {
		for _, m := range y.Media {
			if m.File != nil {
				files = append(files, m.File)
			}
		}
	}
	return files
}

// Counts summarises the size of a tree.
func (t *Tree) Counts() (years, sections, materials int) {
	for _, y := range t.Years {
		years++
		for _, s := range y.Semesters {
			sections += len(s.Sections)
			materials += len(s.Materials)
			for _, sec := range s.Sections {
				materials += len(sec.Materials)
			}
		}
	}
	return years, sections, materials
}

func normalizeYearType(v string, hasSpecialization bool) model.StudyPlanYearType {
	switch model.StudyPlanYearType(v) {
	case model.StudyPlanYearGeneral, model.StudyPlanYearSpecialized:
		return model.StudyPlanYearType(v)
	}
	if hasSpecialization {
		return model.StudyPlanYearSpecialized
	}
	return model.StudyPlanYearGeneral
}

func normalizeMaterialType(v string) model.MaterialType {
	if model.MaterialType(v) == model.MaterialOptional {
		return model.MaterialOptional
	}
	return model.MaterialMandatory
}
