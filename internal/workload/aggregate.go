package workload

import "github.com/noah-isme/lecturer-contract-api/internal/models"

// LineSource tells where the hours of a contract line came from.
type LineSource string

const (
	SourceOverride   LineSource = "OVERRIDE"
	SourceAssignment LineSource = "ASSIGNMENT"
	SourceSnapshot   LineSource = "SNAPSHOT"
)

// LineHours is the resolved hour count of one contract line item.
type LineHours struct {
	Position     int        `json:"position"`
	CourseID     string     `json:"course_id"`
	ClassID      string     `json:"class_id"`
	Hours        int        `json:"hours"`
	Source       LineSource `json:"source"`
	AssignmentID string     `json:"assignment_id,omitempty"`
}

// Aggregate returns the billable hours of a contract. Lines that cannot be
// resolved contribute zero.
func Aggregate(contract *models.TeachingContract, pool []models.AssignmentRecord) int {
	total := 0
	for _, line := range ResolveLines(contract, pool) {
		total += line.Hours
	}
	return total
}

// ResolveLines resolves each line item of the contract in order.
func ResolveLines(contract *models.TeachingContract, pool []models.AssignmentRecord) []LineHours {
	if contract == nil {
		return nil
	}
	lines := make([]LineHours, 0, len(contract.Items))
	for _, item := range contract.Items {
		lines = append(lines, resolveLine(contract, item, pool))
	}
	return lines
}

func resolveLine(contract *models.TeachingContract, item models.ContractLineItem, pool []models.AssignmentRecord) LineHours {
	line := LineHours{
		Position: item.Position,
		CourseID: item.CourseID,
		ClassID:  item.ClassID,
	}

	if item.HoursOverride != nil && *item.HoursOverride > 0 {
		line.Hours = *item.HoursOverride
		line.Source = SourceOverride
		return line
	}

	if record := Match(contract, item, pool); record != nil {
		fields := record.TeachingFields
		fields.TheoryCombined = item.TheoryCombined
		line.Hours = RecordHours(fields)
		line.Source = SourceAssignment
		line.AssignmentID = record.ID
		return line
	}

	line.Hours = RecordHours(item.TeachingFields)
	line.Source = SourceSnapshot
	return line
}

// Match finds the assignment record backing a line item. Matching is by
// course and class within the contract's academic year. An accepted record of
// the contract's lecturer is preferred; a record without a lecturer is a
// universal match. Records of other lecturers never match.
func Match(contract *models.TeachingContract, item models.ContractLineItem, pool []models.AssignmentRecord) *models.AssignmentRecord {
	var universal *models.AssignmentRecord
	for i := range pool {
		record := &pool[i]
		if record.AcademicYear != contract.AcademicYear {
			continue
		}
		if record.CourseID != item.CourseID || record.ClassID != item.ClassID {
			continue
		}
		if record.LecturerID == nil || *record.LecturerID == "" {
			if universal == nil {
				universal = record
			}
			continue
		}
		if *record.LecturerID == contract.LecturerID && record.Status == models.AssignmentStatusAccepted {
			return record
		}
	}
	return universal
}
