package dto

import "github.com/noah-isme/lecturer-contract-api/internal/models"

// CreateAssignmentRequest registers a course mapping for a class.
type CreateAssignmentRequest struct {
	ClassID      string  `json:"class_id" validate:"required"`
	CourseID     string  `json:"course_id" validate:"required"`
	LecturerID   *string `json:"lecturer_id,omitempty"`
	AcademicYear string  `json:"academic_year" validate:"required"`
	Term         string  `json:"term" validate:"required"`
	YearLevel    int     `json:"year_level" validate:"gte=0"`
	models.TeachingFields
}

// AssignmentListQuery holds the query string accepted by assignment listings.
type AssignmentListQuery struct {
	AcademicYear string `form:"academicYear"`
	Term         string `form:"term"`
	LecturerID   string `form:"lecturerId"`
	Status       string `form:"status"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// UpdateAssignmentStatusRequest moves a record through the recruitment workflow.
type UpdateAssignmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONTACTING ACCEPTED REJECTED"`
}

// AssignLecturerRequest (re)assigns a candidate lecturer.
type AssignLecturerRequest struct {
	LecturerID string `json:"lecturer_id" validate:"required"`
}

// AssignmentView is an assignment record with its computed hours.
type AssignmentView struct {
	models.AssignmentRecord
	Hours int `json:"hours"`
}
