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

var (
	// ErrContractCompleted is returned when deleting a completed contract.
	ErrContractCompleted = errors.New("contract is completed")
	// ErrStaleStatus is returned by status guarded updates when the row has
	// already moved to another status.
	ErrStaleStatus = errors.New("status changed concurrently")
)

const contractColumns = `id, lecturer_id, academic_year, term, year_level, start_date, end_date, hourly_rate, status, version, created_by, created_at, updated_at`

const lineItemColumns = `id, contract_id, position, course_id, class_id, academic_year, term, year_level, theory_hours, theory_groups, theory_combined, lab_groups, type_hours, group_count, default_hours, hours_override`

// SignatureTransition computes the status reached from the locked current status.
type SignatureTransition func(current models.ContractStatus) (models.ContractStatus, error)

// ContractRepository persists teaching contracts with their duties, line items and signatures.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs the repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts the contract, its duties and its line items in one transaction.
func (r *ContractRepository) Create(ctx context.Context, contract *models.TeachingContract) (err error) {
	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	contract.CreatedAt = now
	contract.UpdatedAt = now
	if contract.Version == 0 {
		contract.Version = 1
	}
	if contract.Status == "" {
		contract.Status = models.ContractStatusDraft
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contract transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertContract = `INSERT INTO teaching_contracts (id, lecturer_id, academic_year, term, year_level, start_date, end_date, hourly_rate, status, version, created_by, created_at, updated_at)
VALUES (:id, :lecturer_id, :academic_year, :term, :year_level, :start_date, :end_date, :hourly_rate, :status, :version, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertContract, contract); err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}

	const insertDuty = `INSERT INTO contract_duties (contract_id, position, duty) VALUES ($1, $2, $3)`
	for i, duty := range contract.Duties {
		if _, err = tx.ExecContext(ctx, insertDuty, contract.ID, i+1, duty); err != nil {
			return fmt.Errorf("insert contract duty: %w", err)
		}
	}

	const insertItem = `INSERT INTO contract_line_items (` + lineItemColumns + `)
VALUES (:id, :contract_id, :position, :course_id, :class_id, :academic_year, :term, :year_level, :theory_hours, :theory_groups, :theory_combined, :lab_groups, :type_hours, :group_count, :default_hours, :hours_override)`
	for i := range contract.Items {
		item := &contract.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.ContractID = contract.ID
		item.Position = i + 1
		if _, err = tx.NamedExecContext(ctx, insertItem, item); err != nil {
			return fmt.Errorf("insert contract line item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit contract: %w", err)
	}
	return nil
}

// GetByID loads a contract with duties, items and signatures.
func (r *ContractRepository) GetByID(ctx context.Context, id string) (*models.TeachingContract, error) {
	query := `SELECT ` + contractColumns + ` FROM teaching_contracts WHERE id = $1`
	var contract models.TeachingContract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	contracts := []models.TeachingContract{contract}
	if err := r.attachDetails(ctx, contracts); err != nil {
		return nil, err
	}
	return &contracts[0], nil
}

// List returns contracts matching the filter with their details and the total count.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter) ([]models.TeachingContract, int, error) {
	var conditions []string
	var args []interface{}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)))
	}
	if filter.Term != "" {
		args = append(args, filter.Term)
		conditions = append(conditions, fmt.Sprintf("term = $%d", len(args)))
	}
	if filter.LecturerID != "" {
		args = append(args, filter.LecturerID)
		conditions = append(conditions, fmt.Sprintf("lecturer_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	listQuery := `SELECT ` + contractColumns + ` FROM teaching_contracts` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		listQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	var contracts []models.TeachingContract
	if err := r.db.SelectContext(ctx, &contracts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM teaching_contracts`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count contracts: %w", err)
	}

	if err := r.attachDetails(ctx, contracts); err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

func (r *ContractRepository) attachDetails(ctx context.Context, contracts []models.TeachingContract) error {
	if len(contracts) == 0 {
		return nil
	}
	ids := make([]string, len(contracts))
	index := make(map[string]int, len(contracts))
	for i := range contracts {
		ids[i] = contracts[i].ID
		index[contracts[i].ID] = i
		contracts[i].Duties = []string{}
		contracts[i].Items = []models.ContractLineItem{}
	}

	var duties []struct {
		ContractID string `db:"contract_id"`
		Duty       string `db:"duty"`
	}
	const dutyQuery = `SELECT contract_id, duty FROM contract_duties WHERE contract_id = ANY($1) ORDER BY contract_id, position`
	if err := r.db.SelectContext(ctx, &duties, dutyQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("list contract duties: %w", err)
	}
	for _, d := range duties {
		if i, ok := index[d.ContractID]; ok {
			contracts[i].Duties = append(contracts[i].Duties, d.Duty)
		}
	}

	var items []models.ContractLineItem
	itemQuery := `SELECT ` + lineItemColumns + ` FROM contract_line_items WHERE contract_id = ANY($1) ORDER BY contract_id, position`
	if err := r.db.SelectContext(ctx, &items, itemQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("list contract line items: %w", err)
	}
	for _, item := range items {
		if i, ok := index[item.ContractID]; ok {
			contracts[i].Items = append(contracts[i].Items, item)
		}
	}

	var signatures []models.ContractSignature
	const signatureQuery = `SELECT contract_id, role, file_ref, mime_type, size_bytes, signed_by, signed_at FROM contract_signatures WHERE contract_id = ANY($1) ORDER BY contract_id, role`
	if err := r.db.SelectContext(ctx, &signatures, signatureQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("list contract signatures: %w", err)
	}
	for _, sig := range signatures {
		if i, ok := index[sig.ContractID]; ok {
			contracts[i].Signatures = append(contracts[i].Signatures, sig)
		}
	}
	return nil
}

// ApplySignature records a signature and advances the contract status in one
// transaction. The contract row is locked and transition decides the next
// status from the locked value. It returns the updated contract header and the
// file reference of a replaced signature, if any.
func (r *ContractRepository) ApplySignature(ctx context.Context, sig *models.ContractSignature, transition SignatureTransition) (updated *models.TeachingContract, replacedRef string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin signature transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var contract models.TeachingContract
	lockQuery := `SELECT ` + contractColumns + ` FROM teaching_contracts WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &contract, lockQuery, sig.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("lock contract: %w", err)
	}

	next, err := transition(contract.Status)
	if err != nil {
		return nil, "", err
	}

	const previousQuery = `SELECT file_ref FROM contract_signatures WHERE contract_id = $1 AND role = $2`
	if err = tx.GetContext(ctx, &replacedRef, previousQuery, sig.ContractID, sig.Role); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("find previous signature: %w", err)
		}
		err = nil
	}

	const upsertSignature = `INSERT INTO contract_signatures (contract_id, role, file_ref, mime_type, size_bytes, signed_by, signed_at)
VALUES (:contract_id, :role, :file_ref, :mime_type, :size_bytes, :signed_by, :signed_at)
ON CONFLICT (contract_id, role) DO UPDATE SET file_ref = EXCLUDED.file_ref, mime_type = EXCLUDED.mime_type, size_bytes = EXCLUDED.size_bytes, signed_by = EXCLUDED.signed_by, signed_at = EXCLUDED.signed_at`
	if _, err = tx.NamedExecContext(ctx, upsertSignature, sig); err != nil {
		return nil, "", fmt.Errorf("upsert signature: %w", err)
	}

	now := time.Now().UTC()
	if err = guardedStatusUpdate(ctx, tx, contract.ID, contract.Status, next, now); err != nil {
		return nil, "", err
	}

	if err = tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit signature: %w", err)
	}
	contract.Status = next
	contract.Version++
	contract.UpdatedAt = now
	return &contract, replacedRef, nil
}

// UpdateStatus sets the status when the contract is still in expected.
// It returns ErrStaleStatus when the contract is missing or has moved on.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id string, expected, next models.ContractStatus) error {
	return guardedStatusUpdate(ctx, r.db, id, expected, next, time.Now().UTC())
}

func guardedStatusUpdate(ctx context.Context, exec sqlx.ExecerContext, id string, expected, next models.ContractStatus, now time.Time) error {
	const query = `UPDATE teaching_contracts SET status = $2, version = version + 1, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := exec.ExecContext(ctx, query, id, next, now, expected)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check contract update rows: %w", err)
	}
	if rows == 0 {
		return ErrStaleStatus
	}
	return nil
}

// Delete removes a contract that is not completed and returns the file
// references of its signatures.
func (r *ContractRepository) Delete(ctx context.Context, id string) (fileRefs []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.ContractStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM teaching_contracts WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock contract: %w", err)
	}
	if !status.CanDelete() {
		err = ErrContractCompleted
		return nil, err
	}

	if err = tx.SelectContext(ctx, &fileRefs, `SELECT file_ref FROM contract_signatures WHERE contract_id = $1`, id); err != nil {
		return nil, fmt.Errorf("list signature files: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM teaching_contracts WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete contract: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return fileRefs, nil
}
