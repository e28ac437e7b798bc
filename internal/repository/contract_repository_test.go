package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

var contractRowColumns = []string{"id", "lecturer_id", "academic_year", "term", "year_level", "start_date", "end_date", "hourly_rate", "status", "version", "created_by", "created_at", "updated_at"}

func contractRow(status models.ContractStatus, version int) *sqlmock.Rows {
	now := time.Date(2024, 8, 20, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(contractRowColumns).AddRow(
		"contract-1", "lecturer-1", "2024/2025", "ODD", 1,
		time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		10.0, string(status), version, "admin-1", now, now,
	)
}

func TestContractRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO teaching_contracts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contract_duties").WithArgs(sqlmock.AnyArg(), 1, "Teach").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contract_duties").WithArgs(sqlmock.AnyArg(), 2, "Grade").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contract_line_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	contract := &models.TeachingContract{
		LecturerID: "lecturer-1",
		Duties:     []string{"Teach", "Grade"},
		Items:      []models.ContractLineItem{{CourseID: "MATH", ClassID: "A"}},
	}
	require.NoError(t, repo.Create(context.Background(), contract))
	assert.NotEmpty(t, contract.ID)
	assert.Equal(t, models.ContractStatusDraft, contract.Status)
	assert.Equal(t, 1, contract.Version)
	assert.Equal(t, contract.ID, contract.Items[0].ContractID)
	assert.Equal(t, 1, contract.Items[0].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryCreateRollsBackOnItemFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO teaching_contracts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contract_duties").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contract_line_items").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.TeachingContract{
		Duties: []string{"Teach"},
		Items:  []models.ContractLineItem{{CourseID: "MATH", ClassID: "A"}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectQuery("FROM teaching_contracts WHERE id = \\$1").
		WithArgs("contract-1").
		WillReturnRows(contractRow(models.ContractStatusLecturerSigned, 2))
	mock.ExpectQuery("FROM contract_duties").
		WillReturnRows(sqlmock.NewRows([]string{"contract_id", "duty"}).AddRow("contract-1", "Teach").AddRow("contract-1", "Grade"))
	mock.ExpectQuery("FROM contract_line_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "contract_id", "position", "course_id", "class_id", "academic_year", "term", "year_level", "theory_hours", "theory_groups", "theory_combined", "lab_groups", "type_hours", "group_count", "default_hours", "hours_override"}).
			AddRow("item-1", "contract-1", 1, "MATH", "A", "2024/2025", "ODD", 1, "30h", 2, false, nil, nil, nil, nil, nil))
	mock.ExpectQuery("FROM contract_signatures").
		WillReturnRows(sqlmock.NewRows([]string{"contract_id", "role", "file_ref", "mime_type", "size_bytes", "signed_by", "signed_at"}).
			AddRow("contract-1", "LECTURER", "contract-1/lecturer.png", "image/png", 120, "user-1", time.Now()))

	contract, err := repo.GetByID(context.Background(), "contract-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Teach", "Grade"}, contract.Duties)
	require.Len(t, contract.Items, 1)
	require.NotNil(t, contract.Items[0].TheoryGroups)
	assert.Equal(t, 2, *contract.Items[0].TheoryGroups)
	require.NotNil(t, contract.HourlyRate)
	assert.Equal(t, 10.0, *contract.HourlyRate)
	assert.NotNil(t, contract.Signature(models.SignatureRoleLecturer))
	assert.Nil(t, contract.Signature(models.SignatureRoleManagement))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryApplySignature(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM teaching_contracts WHERE id = \\$1 FOR UPDATE").
		WithArgs("contract-1").
		WillReturnRows(contractRow(models.ContractStatusLecturerSigned, 2))
	mock.ExpectQuery("SELECT file_ref FROM contract_signatures").
		WithArgs("contract-1", models.SignatureRoleManagement).
		WillReturnRows(sqlmock.NewRows([]string{"file_ref"}))
	mock.ExpectExec("INSERT INTO contract_signatures").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE teaching_contracts SET status = \\$2, version = version \\+ 1").
		WithArgs("contract-1", models.ContractStatusCompleted, sqlmock.AnyArg(), models.ContractStatusLecturerSigned).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sig := &models.ContractSignature{ContractID: "contract-1", Role: models.SignatureRoleManagement, FileRef: "contract-1/management.png", SignedAt: time.Now()}
	updated, replaced, err := repo.ApplySignature(context.Background(), sig, func(current models.ContractStatus) (models.ContractStatus, error) {
		next, _ := current.Next(models.SignatureRoleManagement)
		return next, nil
	})
	require.NoError(t, err)
	assert.Empty(t, replaced)
	assert.Equal(t, models.ContractStatusCompleted, updated.Status)
	assert.Equal(t, 3, updated.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryApplySignatureRejectedUnderLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(contractRow(models.ContractStatusCompleted, 3))
	mock.ExpectRollback()

	sig := &models.ContractSignature{ContractID: "contract-1", Role: models.SignatureRoleLecturer}
	_, _, err := repo.ApplySignature(context.Background(), sig, func(models.ContractStatus) (models.ContractStatus, error) {
		return "", appErrors.ErrInvalidTransition
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryApplySignatureLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(contractRow(models.ContractStatusDraft, 1))
	mock.ExpectQuery("SELECT file_ref FROM contract_signatures").
		WillReturnRows(sqlmock.NewRows([]string{"file_ref"}).AddRow("contract-1/lecturer-old.png"))
	mock.ExpectExec("INSERT INTO contract_signatures").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE teaching_contracts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	sig := &models.ContractSignature{ContractID: "contract-1", Role: models.SignatureRoleLecturer}
	_, _, err := repo.ApplySignature(context.Background(), sig, func(current models.ContractStatus) (models.ContractStatus, error) {
		next, _ := current.Next(models.SignatureRoleLecturer)
		return next, nil
	})
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM teaching_contracts").
		WithArgs("contract-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("LECTURER_SIGNED"))
	mock.ExpectQuery("SELECT file_ref FROM contract_signatures").
		WillReturnRows(sqlmock.NewRows([]string{"file_ref"}).AddRow("contract-1/lecturer.png"))
	mock.ExpectExec("DELETE FROM teaching_contracts").WithArgs("contract-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	refs, err := repo.Delete(context.Background(), "contract-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"contract-1/lecturer.png"}, refs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryDeleteCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM teaching_contracts").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("COMPLETED"))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "contract-1")
	assert.ErrorIs(t, err, ErrContractCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryUpdateStatusStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	mock.ExpectExec("UPDATE teaching_contracts").
		WithArgs("contract-1", models.ContractStatusDraft, sqlmock.AnyArg(), models.ContractStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "contract-1", models.ContractStatusCompleted, models.ContractStatusDraft)
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
