package models

import (
	"strings"
	"time"
)

// ContractStatus is the lifecycle state of a teaching contract.
type ContractStatus string

const (
	ContractStatusDraft            ContractStatus = "DRAFT"
	ContractStatusLecturerSigned   ContractStatus = "LECTURER_SIGNED"
	ContractStatusManagementSigned ContractStatus = "MANAGEMENT_SIGNED"
	ContractStatusCompleted        ContractStatus = "COMPLETED"
)

// SignatureRole identifies the party approving a contract.
type SignatureRole string

const (
	SignatureRoleLecturer   SignatureRole = "LECTURER"
	SignatureRoleManagement SignatureRole = "MANAGEMENT"
)

// contractTransitions is the complete signature transition table. Any
// (status, role) pair missing here is an invalid transition.
var contractTransitions = map[ContractStatus]map[SignatureRole]ContractStatus{
	ContractStatusDraft: {
		SignatureRoleLecturer:   ContractStatusLecturerSigned,
		SignatureRoleManagement: ContractStatusManagementSigned,
	},
	ContractStatusLecturerSigned: {
		SignatureRoleManagement: ContractStatusCompleted,
	},
	ContractStatusManagementSigned: {
		SignatureRoleLecturer: ContractStatusCompleted,
	},
}

var contractStatusLabels = map[ContractStatus]string{
	ContractStatusDraft:            "DRAFT",
	ContractStatusLecturerSigned:   "WAITING_MANAGEMENT",
	ContractStatusManagementSigned: "WAITING_LECTURER",
	ContractStatusCompleted:        "COMPLETED",
}

// Next returns the status reached when role signs a contract in status s.
func (s ContractStatus) Next(role SignatureRole) (ContractStatus, bool) {
	next, ok := contractTransitions[s][role]
	return next, ok
}

// CanDelete reports whether a contract in this status may be removed.
func (s ContractStatus) CanDelete() bool {
	return s.Valid() && s != ContractStatusCompleted
}

// Terminal reports whether no signature transition leaves s.
func (s ContractStatus) Terminal() bool {
	return len(contractTransitions[s]) == 0
}

// Valid reports whether s is one of the four lifecycle states.
func (s ContractStatus) Valid() bool {
	_, ok := contractStatusLabels[s]
	return ok
}

// Label returns the user facing name of the status.
func (s ContractStatus) Label() string {
	if label, ok := contractStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseContractStatus accepts canonical names and the WAITING_* display labels.
func ParseContractStatus(raw string) (ContractStatus, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch value {
	case "WAITING_MANAGEMENT":
		return ContractStatusLecturerSigned, true
	case "WAITING_LECTURER":
		return ContractStatusManagementSigned, true
	}
	status := ContractStatus(value)
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// ParseSignatureRole normalises a role string.
func ParseSignatureRole(raw string) (SignatureRole, bool) {
	role := SignatureRole(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case SignatureRoleLecturer, SignatureRoleManagement:
		return role, true
	}
	return "", false
}

// ContractLineItem is the frozen course/class context of one billed assignment.
type ContractLineItem struct {
	ID           string `db:"id" json:"id"`
	ContractID   string `db:"contract_id" json:"contract_id"`
	Position     int    `db:"position" json:"position"`
	CourseID     string `db:"course_id" json:"course_id"`
	ClassID      string `db:"class_id" json:"class_id"`
	AcademicYear string `db:"academic_year" json:"academic_year"`
	Term         string `db:"term" json:"term"`
	YearLevel    int    `db:"year_level" json:"year_level"`
	TeachingFields
	HoursOverride *int `db:"hours_override" json:"hours_override,omitempty"`
}

// ContractSignature records the artifact reference a party uploaded.
type ContractSignature struct {
	ContractID string        `db:"contract_id" json:"contract_id"`
	Role       SignatureRole `db:"role" json:"role"`
	FileRef    string        `db:"file_ref" json:"-"`
	MimeType   string        `db:"mime_type" json:"mime_type"`
	SizeBytes  int64         `db:"size_bytes" json:"size_bytes"`
	SignedBy   string        `db:"signed_by" json:"signed_by"`
	SignedAt   time.Time     `db:"signed_at" json:"signed_at"`
}

// TeachingContract is the billable agreement with a lecturer for a term.
type TeachingContract struct {
	ID           string         `db:"id" json:"id"`
	LecturerID   string         `db:"lecturer_id" json:"lecturer_id"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	Term         string         `db:"term" json:"term"`
	YearLevel    int            `db:"year_level" json:"year_level"`
	StartDate    time.Time      `db:"start_date" json:"start_date"`
	EndDate      time.Time      `db:"end_date" json:"end_date"`
	HourlyRate   *float64       `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Status       ContractStatus `db:"status" json:"status"`
	Version      int            `db:"version" json:"version"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`

	Duties     []string            `db:"-" json:"duties"`
	Items      []ContractLineItem  `db:"-" json:"items"`
	Signatures []ContractSignature `db:"-" json:"signatures,omitempty"`
}

// Signature returns the signature stored for role, if any.
func (c *TeachingContract) Signature(role SignatureRole) *ContractSignature {
	for i := range c.Signatures {
		if c.Signatures[i].Role == role {
			return &c.Signatures[i]
		}
	}
	return nil
}

// ContractFilter constrains contract listings.
type ContractFilter struct {
	AcademicYear string
	Term         string
	LecturerID   string
	Status       []ContractStatus
	Limit        int
	Offset       int
}
