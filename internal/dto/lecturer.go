package dto

import "github.com/noah-isme/lecturer-contract-api/internal/models"

// UpsertRateRequest sets a lecturer's hourly rate for an academic year.
type UpsertRateRequest struct {
	HourlyRate float64 `json:"hourly_rate" validate:"gte=0"`
}

// LecturerProfile is a lecturer with the configured rates.
type LecturerProfile struct {
	models.Lecturer
	Rates []models.LecturerRate `json:"rates"`
}
