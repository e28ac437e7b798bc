package models

import "time"

// Lecturer is a teaching staff profile that can hold contracts.
type Lecturer struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	NIDN      *string   `db:"nidn" json:"nidn,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LecturerRate is the hourly rate a lecturer is paid in an academic year.
type LecturerRate struct {
	LecturerID   string    `db:"lecturer_id" json:"lecturer_id"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	HourlyRate   float64   `db:"hourly_rate" json:"hourly_rate"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
