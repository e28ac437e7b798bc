package models

import "time"

// AssignmentStatus captures the recruitment workflow of a course mapping.
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "PENDING"
	AssignmentStatusContacting AssignmentStatus = "CONTACTING"
	AssignmentStatusAccepted   AssignmentStatus = "ACCEPTED"
	AssignmentStatusRejected   AssignmentStatus = "REJECTED"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusPending:    {AssignmentStatusContacting, AssignmentStatusRejected},
	AssignmentStatusContacting: {AssignmentStatusAccepted, AssignmentStatusRejected, AssignmentStatusPending},
	AssignmentStatusRejected:   {AssignmentStatusPending},
}

// Valid reports whether the status is a known workflow state.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusPending, AssignmentStatusContacting, AssignmentStatusAccepted, AssignmentStatusRejected:
		return true
	}
	return false
}

// CanMoveTo reports whether the recruitment workflow allows moving to next.
func (s AssignmentStatus) CanMoveTo(next AssignmentStatus) bool {
	for _, candidate := range assignmentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TeachingFields holds every column describing the teaching type of a course
// mapping. Both schema generations live side by side; only the workload
// normalizer interprets them.
type TeachingFields struct {
	TheoryHours    *string `db:"theory_hours" json:"theory_hours,omitempty"`
	TheoryGroups   *int    `db:"theory_groups" json:"theory_groups,omitempty"`
	TheoryCombined bool    `db:"theory_combined" json:"theory_combined"`
	LabGroups      *int    `db:"lab_groups" json:"lab_groups,omitempty"`

	// Legacy columns.
	TypeHours  *string `db:"type_hours" json:"type_hours,omitempty"`
	GroupCount *int    `db:"group_count" json:"group_count,omitempty"`

	// DefaultHours is the course-level hour count predating the theory/lab split.
	DefaultHours *int `db:"default_hours" json:"default_hours,omitempty"`
}

// AssignmentRecord links a course and class to a (candidate) lecturer for an academic year.
type AssignmentRecord struct {
	ID           string           `db:"id" json:"id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	LecturerID   *string          `db:"lecturer_id" json:"lecturer_id,omitempty"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	Term         string           `db:"term" json:"term"`
	YearLevel    int              `db:"year_level" json:"year_level"`
	Status       AssignmentStatus `db:"status" json:"status"`
	TeachingFields
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter constrains assignment listings.
type AssignmentFilter struct {
	AcademicYear string
	Term         string
	LecturerID   string
	Status       []AssignmentStatus
	Limit        int
	Offset       int
}
