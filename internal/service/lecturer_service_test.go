package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

type mockLecturerStore struct {
	lecturer *models.Lecturer
	rates    []models.LecturerRate
	upserted []*models.LecturerRate
	listErr  error
}

func (m *mockLecturerStore) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	if m.lecturer == nil || m.lecturer.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.lecturer, nil
}

func (m *mockLecturerStore) ListRates(ctx context.Context, lecturerID string) ([]models.LecturerRate, error) {
	return m.rates, m.listErr
}

func (m *mockLecturerStore) UpsertRate(ctx context.Context, rate *models.LecturerRate) error {
	m.upserted = append(m.upserted, rate)
	return nil
}

func TestLecturerServiceGet(t *testing.T) {
	store := &mockLecturerStore{
		lecturer: &models.Lecturer{ID: "lec-1", FullName: "Dr. Ayu Lestari"},
		rates:    []models.LecturerRate{{LecturerID: "lec-1", AcademicYear: "2024/2025", HourlyRate: 150000}},
	}
	svc := NewLecturerService(store, &recordingAudit{}, nil, nil)

	profile, err := svc.Get(context.Background(), "lec-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ayu Lestari", profile.FullName)
	require.Len(t, profile.Rates, 1)

	_, err = svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	store.listErr = errors.New("db down")
	_, err = svc.Get(context.Background(), "lec-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestLecturerServiceUpsertRate(t *testing.T) {
	store := &mockLecturerStore{lecturer: &models.Lecturer{ID: "lec-1"}}
	audit := &recordingAudit{}
	svc := NewLecturerService(store, audit, nil, nil)

	rate, err := svc.UpsertRate(context.Background(), "lec-1", "2024-2025", dto.UpsertRateRequest{HourlyRate: 175000}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "2024/2025", rate.AcademicYear)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, 175000.0, store.upserted[0].HourlyRate)
	assert.Equal(t, []string{models.AuditActionLecturerRate}, audit.actions())

	_, err = svc.UpsertRate(context.Background(), "lec-1", "2024-2026", dto.UpsertRateRequest{HourlyRate: 1}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpsertRate(context.Background(), "lec-1", "2024-2025", dto.UpsertRateRequest{HourlyRate: -5}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpsertRate(context.Background(), "lec-1", "2024-2025", dto.UpsertRateRequest{HourlyRate: math.Inf(1)}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpsertRate(context.Background(), "ghost", "2024-2025", dto.UpsertRateRequest{HourlyRate: 1}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestNormalizeAcademicYear(t *testing.T) {
	for input, want := range map[string]string{"2024-2025": "2024/2025", " 2024/2025 ": "2024/2025"} {
		got, err := NormalizeAcademicYear(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, input := range []string{"", "2024", "2025-2024", "24-25"} {
		_, err := NormalizeAcademicYear(input)
		assert.Error(t, err, input)
	}
}
