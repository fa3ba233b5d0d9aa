package studyplan

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/sahilchouksey/uniportal-api/utils/validation"
)

// FieldStudyPlan is the multipart field carrying the nested JSON encoding.
const FieldStudyPlan = "study_plan"

// PlanInput is the nested request schema of a faculty's content.
type PlanInput struct {
	Specializations  []SpecializationInput `json:"specializations" validate:"omitempty,dive"`
	JobOpportunities []string              `json:"job_opportunities" validate:"omitempty,dive,notblank,max=255"`
	Years            []YearInput           `json:"years" validate:"omitempty,max=12,dive"`
}

type SpecializationInput struct {
	ID          uint   `json:"id"`
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description"`
}

type YearInput struct {
	Name              string          `json:"name" validate:"required,notblank,max=100"`
	Type              string          `json:"type" validate:"omitempty,oneof=General Specialized"`
	HasSpecialization bool            `json:"has_specialization"`
	Media             []MediaInput    `json:"media" validate:"omitempty,dive"`
	Semesters         []SemesterInput `json:"semesters" validate:"omitempty,max=2,dive"`
}

// MediaInput points at a multipart file part by name.
type MediaInput struct {
	Type      string `json:"type" validate:"omitempty,oneof=image video pdf"`
	FileField string `json:"file_field" validate:"required"`
}

type SemesterInput struct {
	Name      string          `json:"name" validate:"max=100"`
	Sections  []SectionInput  `json:"sections" validate:"omitempty,dive"`
	Materials []MaterialInput `json:"materials" validate:"omitempty,dive"`
}

type SectionInput struct {
	Name      string          `json:"name" validate:"required,notblank,max=255"`
	Code      string          `json:"code" validate:"max=50"`
	Materials []MaterialInput `json:"materials" validate:"omitempty,dive"`
}

type MaterialInput struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Code        string `json:"code" validate:"max=50"`
	Type        string `json:"type" validate:"omitempty,oneof=Mandatory Optional"`
	CreditHours int    `json:"credit_hours" validate:"gte=0,lte=30"`
	Description string `json:"description"`
}

// ParsePlanInput unmarshals the nested JSON encoding.
func ParsePlanInput(raw string) (*PlanInput, error) {
	var in PlanInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("%w: malformed study_plan json: %v", ErrInvalidPlan, err)
	}
	return &in, nil
}

// DecodeNested validates the nested schema and converts it to a Tree. Unlike
// the flat encoding it is strict: a semester may not carry both sections and
// direct materials, and every media entry must name an uploaded file.
func DecodeNested(v *validation.Validator, in *PlanInput, files map[string][]*multipart.FileHeader) (*Tree, error) {
	if err := v.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	tree := &Tree{}
	for _, job := range in.JobOpportunities {
		tree.JobOpportunities = append(tree.JobOpportunities, strings.TrimSpace(job))
	}
	for _, s := range in.Specializations {
		tree.Specializations = append(tree.Specializations, SpecializationNode{
			ID:          s.ID,
			Name:        strings.TrimSpace(s.Name),
			Description: s.Description,
		})
	}

	for y, yearIn := range in.Years {
		year := YearNode{
			Name:              strings.TrimSpace(yearIn.Name),
			HasSpecialization: yearIn.HasSpecialization,
			Type:              normalizeYearType(yearIn.Type, yearIn.HasSpecialization),
		}

		for _, m := range yearIn.Media {
			parts := files[m.FileField]
			if len(parts) == 0 {
				return nil, fmt.Errorf("%w: year %d references missing file %q", ErrInvalidPlan, y+1, m.FileField)
			}
			year.Media = append(year.Media, MediaNode{
				Type: mediaTypeFor(m.Type, parts[0].Filename),
				File: parts[0],
			})
		}

		for s, semIn := range yearIn.Semesters {
			if len(semIn.Sections) > 0 && len(semIn.Materials) > 0 {
				return nil, fmt.Errorf("%w: year %d semester %d has both sections and direct materials", ErrInvalidPlan, y+1, s+1)
			}
			sem := SemesterNode{Name: strings.TrimSpace(semIn.Name), Materials: materialNodes(semIn.Materials)}
			for _, secIn := range semIn.Sections {
				sem.Sections = append(sem.Sections, SectionNode{
					Name:      strings.TrimSpace(secIn.Name),
					Code:      strings.TrimSpace(secIn.Code),
					Materials: materialNodes(secIn.Materials),
				})
			}
			year.Semesters = append(year.Semesters, sem)
		}

		tree.Years = append(tree.Years, year)
	}
	return tree, nil
}

// Decode picks the encoding of a multipart faculty request: the nested
// study_plan JSON when present, the flat lists otherwise.
func Decode(v *validation.Validator, form *multipart.Form) (*Tree, error) {
	if form != nil {
		if raw := form.Value[FieldStudyPlan]; len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
			in, err := ParsePlanInput(raw[0])
			if err != nil {
				return nil, err
			}
			return DecodeNested(v, in, form.File)
		}
	}
	return DecodeForm(form), nil
}

func materialNodes(in []MaterialInput) []MaterialNode {
	var out []MaterialNode
	for _, m := range in {
		out = append(out, MaterialNode{
			Name:        strings.TrimSpace(m.Name),
			Code:        strings.TrimSpace(m.Code),
			Type:        normalizeMaterialType(m.Type),
			CreditHours: m.CreditHours,
			Description: m.Description,
		})
	}
	return out
}
