package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	"github.com/noah-isme/lecturer-contract-api/internal/repository"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

type memAssignmentStore struct {
	records    map[string]*models.AssignmentRecord
	seq        int
	lastFilter models.AssignmentFilter
	forceStale bool
}

func newMemAssignmentStore(records ...models.AssignmentRecord) *memAssignmentStore {
	store := &memAssignmentStore{records: map[string]*models.AssignmentRecord{}}
	for i := range records {
		rec := records[i]
		store.records[rec.ID] = &rec
	}
	return store
}

func (m *memAssignmentStore) FindByID(ctx context.Context, id string) (*models.AssignmentRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rec
	return &copied, nil
}

func (m *memAssignmentStore) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentRecord, int, error) {
	m.lastFilter = filter
	var out []models.AssignmentRecord
	for _, rec := range m.records {
		if filter.AcademicYear == "" || rec.AcademicYear == filter.AcademicYear {
			out = append(out, *rec)
		}
	}
	return out, len(out), nil
}

func (m *memAssignmentStore) Create(ctx context.Context, record *models.AssignmentRecord) error {
	m.seq++
	record.ID = fmt.Sprintf("asg-%d", m.seq)
	copied := *record
	m.records[record.ID] = &copied
	return nil
}

func (m *memAssignmentStore) UpdateStatus(ctx context.Context, id string, expected, next models.AssignmentStatus) error {
	rec, ok := m.records[id]
	if !ok || rec.Status != expected || m.forceStale {
		return repository.ErrStaleStatus
	}
	rec.Status = next
	return nil
}

func (m *memAssignmentStore) AssignLecturer(ctx context.Context, id, lecturerID string, expected, next models.AssignmentStatus) error {
	rec, ok := m.records[id]
	if !ok || rec.Status != expected || m.forceStale {
		return repository.ErrStaleStatus
	}
	rec.LecturerID = &lecturerID
	rec.Status = next
	return nil
}

func newAssignmentService(store *memAssignmentStore, audit *recordingAudit) *AssignmentService {
	lecturers := &stubLecturers{lecturers: []models.Lecturer{{ID: "lec-1", FullName: "Dr. Ayu Lestari"}}}
	return NewAssignmentService(store, lecturers, audit, nil, zap.NewNop())
}

func TestAssignmentServiceCreate(t *testing.T) {
	store := newMemAssignmentStore()
	audit := &recordingAudit{}
	svc := newAssignmentService(store, audit)

	view, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{
		ClassID: "A", CourseID: "CS101", AcademicYear: "2024/2025", Term: "ODD",
		TeachingFields: models.TeachingFields{TheoryHours: strPtr("15h"), TheoryGroups: intPtr(3), TheoryCombined: true},
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusPending, view.Status)
	assert.Equal(t, 15, view.Hours)

	withLecturer, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{
		ClassID: "B", CourseID: "CS101", AcademicYear: "2024/2025", Term: "ODD",
		LecturerID:     strPtr("lec-1"),
		TeachingFields: models.TeachingFields{LabGroups: intPtr(2)},
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusContacting, withLecturer.Status)
	assert.Equal(t, 60, withLecturer.Hours)

	_, err = svc.Create(context.Background(), dto.CreateAssignmentRequest{
		ClassID: "C", CourseID: "CS101", AcademicYear: "2024/2025", Term: "ODD", LecturerID: strPtr("ghost"),
	}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), dto.CreateAssignmentRequest{CourseID: "CS101"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, []string{models.AuditActionAssignmentCreate, models.AuditActionAssignmentCreate}, audit.actions())
}

func TestAssignmentServiceNormalizesAcademicYear(t *testing.T) {
	store := newMemAssignmentStore()
	svc := newAssignmentService(store, &recordingAudit{})

	view, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{
		ClassID: "A", CourseID: "CS101", AcademicYear: "2024-2025", Term: "ODD",
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "2024/2025", view.AcademicYear)

	_, err = svc.Create(context.Background(), dto.CreateAssignmentRequest{
		ClassID: "A", CourseID: "CS101", AcademicYear: "2024-2026", Term: "ODD",
	}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	views, _, err := svc.List(context.Background(), dto.AssignmentListQuery{AcademicYear: " 2024-2025 "})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "2024/2025", store.lastFilter.AcademicYear)
}

func TestAssignmentServiceWorkflow(t *testing.T) {
	store := newMemAssignmentStore(models.AssignmentRecord{ID: "asg-1", CourseID: "CS101", ClassID: "A", AcademicYear: "2024/2025", Status: models.AssignmentStatusPending})
	audit := &recordingAudit{}
	svc := newAssignmentService(store, audit)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "asg-1", dto.UpdateAssignmentStatusRequest{Status: "ACCEPTED"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition, "pending cannot jump to accepted")

	view, err := svc.UpdateStatus(ctx, "asg-1", dto.UpdateAssignmentStatusRequest{Status: "CONTACTING"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusContacting, view.Status)

	_, err = svc.UpdateStatus(ctx, "asg-1", dto.UpdateAssignmentStatusRequest{Status: "ACCEPTED"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition, "accepting needs a lecturer")

	view, err = svc.AssignLecturer(ctx, "asg-1", dto.AssignLecturerRequest{LecturerID: "lec-1"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "lec-1", *view.LecturerID)
	assert.Equal(t, models.AssignmentStatusContacting, view.Status)

	view, err = svc.UpdateStatus(ctx, "asg-1", dto.UpdateAssignmentStatusRequest{Status: "ACCEPTED"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusAccepted, view.Status)

	_, err = svc.AssignLecturer(ctx, "asg-1", dto.AssignLecturerRequest{LecturerID: "lec-1"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, "asg-1", dto.UpdateAssignmentStatusRequest{Status: "PENDING"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition, "accepted is final")

	_, err = svc.UpdateStatus(ctx, "missing", dto.UpdateAssignmentStatusRequest{Status: "PENDING"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.UpdateStatus(ctx, "asg-1", dto.UpdateAssignmentStatusRequest{Status: "DONE"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, []string{
		models.AuditActionAssignmentStatus,
		models.AuditActionAssignmentLecturer,
		models.AuditActionAssignmentStatus,
	}, audit.actions())
}

func TestAssignmentServiceStaleUpdate(t *testing.T) {
	store := newMemAssignmentStore(models.AssignmentRecord{ID: "asg-1", Status: models.AssignmentStatusRejected})
	store.forceStale = true
	svc := newAssignmentService(store, &recordingAudit{})

	_, err := svc.UpdateStatus(context.Background(), "asg-1", dto.UpdateAssignmentStatusRequest{Status: "PENDING"}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAssignmentServiceList(t *testing.T) {
	store := newMemAssignmentStore(
		models.AssignmentRecord{ID: "asg-1", AcademicYear: "2024/2025", TeachingFields: models.TeachingFields{TypeHours: strPtr("lab"), GroupCount: intPtr(1)}},
		models.AssignmentRecord{ID: "asg-2", AcademicYear: "2023/2024"},
	)
	svc := newAssignmentService(store, &recordingAudit{})

	views, pagination, err := svc.List(context.Background(), dto.AssignmentListQuery{AcademicYear: "2024/2025", Status: "pending, contacting", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 30, views[0].Hours)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 10, store.lastFilter.Offset)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusPending, models.AssignmentStatusContacting}, store.lastFilter.Status)

	_, _, err = svc.List(context.Background(), dto.AssignmentListQuery{Status: "HIRED"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
