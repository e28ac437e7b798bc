package dto

import (
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	"github.com/noah-isme/lecturer-contract-api/internal/workload"
)

// CreateContractRequest is the payload for generating a teaching contract.
type CreateContractRequest struct {
	LecturerID   string                `json:"lecturer_id" validate:"required"`
	AcademicYear string                `json:"academic_year" validate:"required"`
	Term         string                `json:"term" validate:"required"`
	YearLevel    int                   `json:"year_level" validate:"gte=0"`
	StartDate    string                `json:"start_date" validate:"required"`
	EndDate      string                `json:"end_date" validate:"required"`
	Duties       []string              `json:"duties" validate:"required,min=1"`
	Items        []ContractItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ContractItemRequest describes one line item. When AssignmentID is set the
// teaching fields are copied from that assignment record; explicit fields in
// the request take precedence.
type ContractItemRequest struct {
	AssignmentID  string `json:"assignment_id,omitempty"`
	CourseID      string `json:"course_id" validate:"required_without=AssignmentID"`
	ClassID       string `json:"class_id" validate:"required_without=AssignmentID"`
	HoursOverride *int   `json:"hours_override,omitempty" validate:"omitempty,gte=0"`
	models.TeachingFields
}

// ContractListQuery holds the query string accepted by contract listings.
type ContractListQuery struct {
	AcademicYear string `form:"academicYear"`
	Term         string `form:"term"`
	LecturerID   string `form:"lecturerId"`
	Status       string `form:"status"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// SetContractStatusRequest is the administrative status override payload.
type SetContractStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// ContractSummary is the computed view of a contract.
type ContractSummary struct {
	Contract    *models.TeachingContract `json:"contract"`
	StatusLabel string                   `json:"status_label"`
	Lines       []workload.LineHours     `json:"lines"`
	TotalHours  int                      `json:"total_hours"`
	HourlyRate  *float64                 `json:"hourly_rate"`
	Salary      *float64                 `json:"salary"`
}

// ContractHours is the billable hour total of a contract.
type ContractHours struct {
	ContractID string `json:"contract_id"`
	TotalHours int    `json:"total_hours"`
}

// ContractSalary is the computed salary of a contract; nil while the rate is pending.
type ContractSalary struct {
	ContractID string   `json:"contract_id"`
	TotalHours int      `json:"total_hours"`
	HourlyRate *float64 `json:"hourly_rate"`
	Salary     *float64 `json:"salary"`
}

// SignatureUpload is a validated signature artifact ready for storage.
type SignatureUpload struct {
	Filename string
	Content  []byte
}

// SignatureURLResponse carries a signed artifact download link.
type SignatureURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ContractView adds the display label of the status to a contract.
type ContractView struct {
	models.TeachingContract
	StatusLabel string `json:"status_label"`
}

// NewContractView wraps a contract for API responses.
func NewContractView(contract *models.TeachingContract) ContractView {
	return ContractView{TeachingContract: *contract, StatusLabel: contract.Status.Label()}
}
