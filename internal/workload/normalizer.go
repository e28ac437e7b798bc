// Package workload turns course mappings into billable teaching hours.
//
// Everything in this package is pure: no I/O, no clocks, no shared state.
package workload

import (
	"strings"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
)

// HourSize is the session length of one theory group.
type HourSize int

const (
	HourSizeNone HourSize = 0
	HourSize15   HourSize = 15
	HourSize30   HourSize = 30
)

// LabHoursPerGroup is the fixed session length of one lab group.
const LabHoursPerGroup = 30

// Load is the canonical teaching shape of a course mapping.
type Load struct {
	TheoryGroups int
	TheorySize   HourSize
	LabGroups    int
	Combined     bool
	DefaultHours int
}

// schema reads one historical shape of the teaching columns.
type schema interface {
	applies(f models.TeachingFields) bool
	load(f models.TeachingFields) Load
}

// Order matters: the first schema that applies wins.
var schemas = []schema{currentSchema{}, legacySchema{}}

// Normalize resolves the teaching fields of a record or line item into a Load.
// Empty input yields the zero Load.
func Normalize(f models.TeachingFields) Load {
	var l Load
	for _, s := range schemas {
		if s.applies(f) {
			l = s.load(f)
			break
		}
	}
	l.DefaultHours = intValue(f.DefaultHours)
	return l.clamped()
}

func (l Load) clamped() Load {
	if l.TheoryGroups < 0 {
		l.TheoryGroups = 0
	}
	if l.LabGroups < 0 {
		l.LabGroups = 0
	}
	if l.DefaultHours < 0 {
		l.DefaultHours = 0
	}
	if l.TheorySize == HourSizeNone || l.TheoryGroups <= 1 {
		l.Combined = false
	}
	return l
}

// currentSchema reads theory_hours/theory_groups/lab_groups.
type currentSchema struct{}

func (currentSchema) applies(f models.TeachingFields) bool {
	return f.TheoryGroups != nil || f.LabGroups != nil
}

func (currentSchema) load(f models.TeachingFields) Load {
	return Load{
		TheoryGroups: intValue(f.TheoryGroups),
		TheorySize:   parseHourSize(stringValue(f.TheoryHours)),
		LabGroups:    intValue(f.LabGroups),
		Combined:     f.TheoryCombined,
	}
}

// legacySchema reads type_hours/group_count, where one count serves one type.
type legacySchema struct{}

func (legacySchema) applies(models.TeachingFields) bool { return true }

func (legacySchema) load(f models.TeachingFields) Load {
	text := stringValue(f.TypeHours)
	if strings.TrimSpace(text) == "" {
		text = stringValue(f.TheoryHours)
	}
	text = compact(text)
	if text == "" {
		return Load{}
	}

	size := parseHourSize(text)
	groups := intValue(f.GroupCount)
	hasTheory := strings.Contains(text, "theory")
	hasLab := strings.Contains(text, "lab")

	switch {
	case hasTheory, size != HourSizeNone && !hasLab:
		return Load{TheoryGroups: groups, TheorySize: size, Combined: f.TheoryCombined}
	case hasLab:
		return Load{LabGroups: groups}
	}
	return Load{}
}

func parseHourSize(raw string) HourSize {
	text := compact(raw)
	switch {
	case strings.Contains(text, "15h"):
		return HourSize15
	case strings.Contains(text, "30h"):
		return HourSize30
	}
	return HourSizeNone
}

func compact(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "")
}

func intValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
