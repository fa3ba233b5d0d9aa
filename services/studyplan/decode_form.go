package studyplan

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/storage"
)

// Form field names of the legacy flat encoding. Every child list is paired
// with an index list whose element i points at the parent of child i.
const (
	FieldYearNames             = "year_names"
	FieldYearHasSpecialization = "year_has_specialization"
	FieldYearTypes             = "year_types"

	FieldSemesterNames     = "semester_names"
	FieldSemesterYearIndex = "semester_year_index"

	FieldSectionNames         = "section_names"
	FieldSectionSemesterIndex = "section_semester_index"
	FieldSectionCodes         = "section_codes"

	FieldSectionMaterialNames        = "section_material_names"
	FieldSectionMaterialSectionIndex = "section_material_section_index"
	FieldSectionMaterialCodes        = "section_material_codes"
	FieldSectionMaterialCreditHours  = "section_material_credit_hours"
	FieldSectionMaterialTypes        = "section_material_types"
	FieldSectionMaterialDescriptions = "section_material_descriptions"

	FieldSemesterMaterialNames         = "semester_material_names"
	FieldSemesterMaterialSemesterIndex = "semester_material_semester_index"
	FieldSemesterMaterialCodes         = "semester_material_codes"
	FieldSemesterMaterialCreditHours   = "semester_material_credit_hours"
	FieldSemesterMaterialTypes         = "semester_material_types"
	FieldSemesterMaterialDescriptions  = "semester_material_descriptions"

	FieldMediaType      = "media_type"
	FieldMediaYearIndex = "media_year_index"
	FieldMediaFile      = "media_file"

	FieldSpecializationIDs          = "specialization_ids"
	FieldSpecializationNames        = "specialization_names"
	FieldSpecializationDescriptions = "specialization_descriptions"

	FieldJobOpportunities = "job_opportunities"
)

type semesterRef struct{ year, semester int }

type sectionRef struct{ year, semester, section int }

// DecodeForm turns the flat parallel-list encoding into a Tree. It never
// fails: rows with empty names are skipped, missing lists mean no rows, and
// children whose parent index is malformed, out of range or points at a
// skipped row are dropped. A year keeps at most two semesters. A semester
// that ends up with at least one section is sectioned and its semester-level
// materials are discarded.
func DecodeForm(form *multipart.Form) *Tree {
	values := map[string][]string{}
	var files map[string][]*multipart.FileHeader
	if form != nil {
		values = form.Value
		files = form.File
	}
	get := func(key string) []string { return values[key] }

	tree := &Tree{}

	// specializations and job opportunities
	ids := get(FieldSpecializationIDs)
	descriptions := get(FieldSpecializationDescriptions)
	for i, name := range get(FieldSpecializationNames) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, _ := uintAt(ids, i)
		tree.Specializations = append(tree.Specializations, SpecializationNode{
			ID:          id,
			Name:        name,
			Description: strings.TrimSpace(at(descriptions, i)),
		})
	}
	for _, name := range get(FieldJobOpportunities) {
		if name = strings.TrimSpace(name); name != "" {
			tree.JobOpportunities = append(tree.JobOpportunities, name)
		}
	}

	// years
	yearMap := map[int]int{}
	hasSpec := get(FieldYearHasSpecialization)
	yearTypes := get(FieldYearTypes)
	for i, name := range get(FieldYearNames) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		spec := parseBool(at(hasSpec, i))
		yearMap[i] = len(tree.Years)
		tree.Years = append(tree.Years, YearNode{
			Name:              name,
			HasSpecialization: spec,
			Type:              normalizeYearType(at(yearTypes, i), spec),
		})
	}

	// semesters
	semMap := map[int]semesterRef{}
	semYear := get(FieldSemesterYearIndex)
	for i, name := range get(FieldSemesterNames) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		raw, ok := intAt(semYear, i)
		if !ok {
			continue
		}
		y, ok := yearMap[raw]
		if !ok {
			continue
		}
		year := &tree.Years[y]
		if len(year.Semesters) >= SemestersPerYear {
			continue
		}
		semMap[i] = semesterRef{year: y, semester: len(year.Semesters)}
		year.Semesters = append(year.Semesters, SemesterNode{Name: name})
	}

	// sections
	secMap := map[int]sectionRef{}
	secSem := get(FieldSectionSemesterIndex)
	secCodes := get(FieldSectionCodes)
	for i, name := range get(FieldSectionNames) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		raw, ok := intAt(secSem, i)
		if !ok {
			continue
		}
		ref, ok := semMap[raw]
		if !ok {
			continue
		}
		sem := &tree.Years[ref.year].Semesters[ref.semester]
		secMap[i] = sectionRef{year: ref.year, semester: ref.semester, section: len(sem.Sections)}
		sem.Sections = append(sem.Sections, SectionNode{
			Name: name,
			Code: strings.TrimSpace(at(secCodes, i)),
		})
	}

	// materials under sections
	sectionMaterials := materialColumns{
		names:        get(FieldSectionMaterialNames),
		parents:      get(FieldSectionMaterialSectionIndex),
		codes:        get(FieldSectionMaterialCodes),
		creditHours:  get(FieldSectionMaterialCreditHours),
		types:        get(FieldSectionMaterialTypes),
		descriptions: get(FieldSectionMaterialDescriptions),
	}
	sectionMaterials.each(func(parent int, m MaterialNode) {
		ref, ok := secMap[parent]
		if !ok {
			return
		}
		sec := &tree.Years[ref.year].Semesters[ref.semester].Sections[ref.section]
		sec.Materials = append(sec.Materials, m)
	})

	// materials directly under semesters, only for flat semesters
	semesterMaterials := materialColumns{
		names:        get(FieldSemesterMaterialNames),
		parents:      get(FieldSemesterMaterialSemesterIndex),
		codes:        get(FieldSemesterMaterialCodes),
		creditHours:  get(FieldSemesterMaterialCreditHours),
		types:        get(FieldSemesterMaterialTypes),
		descriptions: get(FieldSemesterMaterialDescriptions),
	}
	semesterMaterials.each(func(parent int, m MaterialNode) {
		ref, ok := semMap[parent]
		if !ok {
			return
		}
		sem := &tree.Years[ref.year].Semesters[ref.semester]
		if sem.Sectioned() {
			return
		}
		sem.Materials = append(sem.Materials, m)
	})

	// media, positional with the uploaded files
	mediaFiles := files[FieldMediaFile]
	mediaYear := get(FieldMediaYearIndex)
	mediaTypes := get(FieldMediaType)
	for i, file := range mediaFiles {
		raw, ok := intAt(mediaYear, i)
		if !ok {
			continue
		}
		y, ok := yearMap[raw]
		if !ok {
			continue
		}
		tree.Years[y].Media = append(tree.Years[y].Media, MediaNode{
			Type: mediaTypeFor(at(mediaTypes, i), file.Filename),
			File: file,
		})
	}

	return tree
}

type materialColumns struct {
	names, parents, codes, creditHours, types, descriptions []string
}

func (c materialColumns) each(fn func(parent int, m MaterialNode)) {
	for i, name := range c.names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		parent, ok := intAt(c.parents, i)
		if !ok {
			continue
		}
		hours, _ := intAt(c.creditHours, i)
		if hours < 0 {
			hours = 0
		}
		fn(parent, MaterialNode{
			Name:        name,
			Code:        strings.TrimSpace(at(c.codes, i)),
			Type:        normalizeMaterialType(at(c.types, i)),
			CreditHours: hours,
			Description: strings.TrimSpace(at(c.descriptions, i)),
		})
	}
}

func mediaTypeFor(declared, filename string) model.MediaType {
	switch model.MediaType(strings.ToLower(strings.TrimSpace(declared))) {
	case model.MediaImage:
		return model.MediaImage
	case model.MediaVideo:
		return model.MediaVideo
	case model.MediaPDF:
		return model.MediaPDF
	}
	return model.MediaType(storage.MediaKindOf(filename))
}

func at(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

func intAt(values []string, i int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(at(values, i)))
	if err != nil {
		return 0, false
	}
	return n, true
}

func uintAt(values []string, i int) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(at(values, i)), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return strings.EqualFold(strings.TrimSpace(v), "on") || strings.EqualFold(strings.TrimSpace(v), "yes")
	}
	return b
}
