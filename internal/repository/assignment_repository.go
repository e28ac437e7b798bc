package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
)

// The course level default hours only apply when the mapping has none of its own.
const assignmentSelect = `SELECT a.id, a.class_id, a.course_id, a.lecturer_id, a.academic_year, a.term, a.year_level, a.status,
	a.theory_hours, a.theory_groups, a.theory_combined, a.lab_groups, a.type_hours, a.group_count,
	COALESCE(a.default_hours, c.default_hours) AS default_hours, a.created_at, a.updated_at
FROM assignment_records a
LEFT JOIN courses c ON c.id = a.course_id`

// AssignmentRepository persists course mappings.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByAcademicYear returns every mapping of the academic year in a stable order.
func (r *AssignmentRepository) ListByAcademicYear(ctx context.Context, academicYear string) ([]models.AssignmentRecord, error) {
	query := assignmentSelect + `
WHERE a.academic_year = $1
ORDER BY a.created_at, a.id`
	var records []models.AssignmentRecord
	if err := r.db.SelectContext(ctx, &records, query, academicYear); err != nil {
		return nil, fmt.Errorf("list assignments by academic year: %w", err)
	}
	return records, nil
}

// FindByID returns one mapping.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentRecord, error) {
	query := assignmentSelect + `
WHERE a.id = $1`
	var record models.AssignmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &record, nil
}

// List returns mappings matching the filter and the total count.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentRecord, int, error) {
	var conditions []string
	var args []interface{}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("a.academic_year = $%d", len(args)))
	}
	if filter.Term != "" {
		args = append(args, filter.Term)
		conditions = append(conditions, fmt.Sprintf("a.term = $%d", len(args)))
	}
	if filter.LecturerID != "" {
		args = append(args, filter.LecturerID)
		conditions = append(conditions, fmt.Sprintf("a.lecturer_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("a.status = ANY($%d)", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "\nWHERE " + strings.Join(conditions, " AND ")
	}

	query := assignmentSelect + where + "\nORDER BY a.created_at, a.id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}
	var records []models.AssignmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM assignment_records a"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return records, total, nil
}

// Create inserts a mapping.
func (r *AssignmentRepository) Create(ctx context.Context, record *models.AssignmentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = models.AssignmentStatusPending
	}
	const query = `INSERT INTO assignment_records (id, class_id, course_id, lecturer_id, academic_year, term, year_level, status, theory_hours, theory_groups, theory_combined, lab_groups, type_hours, group_count, default_hours, created_at, updated_at)
VALUES (:id, :class_id, :course_id, :lecturer_id, :academic_year, :term, :year_level, :status, :theory_hours, :theory_groups, :theory_combined, :lab_groups, :type_hours, :group_count, :default_hours, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// UpdateStatus moves a mapping from expected to next. It returns
// ErrStaleStatus when the record is missing or no longer in expected.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, expected, next models.AssignmentStatus) error {
	const query = `UPDATE assignment_records SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, id, next, time.Now().UTC(), expected)
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return expectOneRow(result, "assignment status")
}

// AssignLecturer sets the candidate lecturer and status when the record is still in expected.
func (r *AssignmentRepository) AssignLecturer(ctx context.Context, id, lecturerID string, expected, next models.AssignmentStatus) error {
	const query = `UPDATE assignment_records SET lecturer_id = $2, status = $3, updated_at = $4 WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, lecturerID, next, time.Now().UTC(), expected)
	if err != nil {
		return fmt.Errorf("assign lecturer: %w", err)
	}
	return expectOneRow(result, "assignment lecturer")
}

func expectOneRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", what, err)
	}
	if rows == 0 {
		return ErrStaleStatus
	}
	return nil
}
