package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
)

const lecturerColumns = `id, user_id, nidn, full_name, email, active, created_at, updated_at`

// LecturerRepository provides lecturer profiles and hourly rates.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository constructs the repository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

// FindByID returns a lecturer by id.
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, `SELECT `+lecturerColumns+` FROM lecturers WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lecturer: %w", err)
	}
	return &lecturer, nil
}

// FindByUserID returns the lecturer profile linked to a login.
func (r *LecturerRepository) FindByUserID(ctx context.Context, userID string) (*models.Lecturer, error) {
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, `SELECT `+lecturerColumns+` FROM lecturers WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lecturer by user: %w", err)
	}
	return &lecturer, nil
}

// GetHourlyRate returns the configured rate or nil when none is set.
func (r *LecturerRepository) GetHourlyRate(ctx context.Context, lecturerID, academicYear string) (*float64, error) {
	const query = `SELECT hourly_rate FROM lecturer_rates WHERE lecturer_id = $1 AND academic_year = $2`
	var rate float64
	if err := r.db.GetContext(ctx, &rate, query, lecturerID, academicYear); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hourly rate: %w", err)
	}
	return &rate, nil
}

// ListRates returns every configured rate of a lecturer, newest year first.
func (r *LecturerRepository) ListRates(ctx context.Context, lecturerID string) ([]models.LecturerRate, error) {
	const query = `SELECT lecturer_id, academic_year, hourly_rate, updated_at FROM lecturer_rates WHERE lecturer_id = $1 ORDER BY academic_year DESC`
	var rates []models.LecturerRate
	if err := r.db.SelectContext(ctx, &rates, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list hourly rates: %w", err)
	}
	return rates, nil
}

// UpsertRate stores the hourly rate of a lecturer for an academic year.
func (r *LecturerRepository) UpsertRate(ctx context.Context, rate *models.LecturerRate) error {
	rate.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO lecturer_rates (lecturer_id, academic_year, hourly_rate, updated_at)
VALUES (:lecturer_id, :academic_year, :hourly_rate, :updated_at)
ON CONFLICT (lecturer_id, academic_year) DO UPDATE SET hourly_rate = EXCLUDED.hourly_rate, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rate); err != nil {
		return fmt.Errorf("upsert hourly rate: %w", err)
	}
	return nil
}
