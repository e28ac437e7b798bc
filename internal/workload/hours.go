package workload

import "github.com/noah-isme/lecturer-contract-api/internal/models"

// Hours returns the total teaching hours of a normalized load.
//
// Combined theory groups are taught as a single session, so they count the
// hour size once. Lab groups are never combined. A load with no resolvable
// groups falls back to the course default hours.
func Hours(l Load) int {
	theory := 0
	if l.TheorySize != HourSizeNone && l.TheoryGroups > 0 {
		if l.Combined {
			theory = int(l.TheorySize)
		} else {
			theory = int(l.TheorySize) * l.TheoryGroups
		}
	}

	lab := 0
	if l.LabGroups > 0 {
		lab = LabHoursPerGroup * l.LabGroups
	}

	total := theory + lab
	if total == 0 && l.DefaultHours > 0 {
		return l.DefaultHours
	}
	return total
}

// RecordHours normalizes raw teaching fields and computes their hours.
func RecordHours(f models.TeachingFields) int {
	return Hours(Normalize(f))
}
