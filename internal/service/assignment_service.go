package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	"github.com/noah-isme/lecturer-contract-api/internal/repository"
	"github.com/noah-isme/lecturer-contract-api/internal/workload"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

const assignmentResource = "assignment"

type assignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentRecord, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentRecord, int, error)
	Create(ctx context.Context, record *models.AssignmentRecord) error
	UpdateStatus(ctx context.Context, id string, expected, next models.AssignmentStatus) error
	AssignLecturer(ctx context.Context, id, lecturerID string, expected, next models.AssignmentStatus) error
}

type lecturerLookup interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

// AssignmentService manages course mappings and their recruitment workflow.
type AssignmentService struct {
	repo      assignmentStore
	lecturers lecturerLookup
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentStore, lecturers lecturerLookup, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, lecturers: lecturers, audit: audit, validator: validate, logger: logger}
}

// Create registers a course mapping. A record created with a lecturer starts in CONTACTING.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateAssignmentRequest, actor *models.JWTClaims) (*dto.AssignmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	year, err := NormalizeAcademicYear(req.AcademicYear)
	if err != nil {
		return nil, err
	}
	record := &models.AssignmentRecord{
		ClassID:        strings.TrimSpace(req.ClassID),
		CourseID:       strings.TrimSpace(req.CourseID),
		AcademicYear:   year,
		Term:           req.Term,
		YearLevel:      req.YearLevel,
		Status:         models.AssignmentStatusPending,
		TeachingFields: req.TeachingFields,
	}
	if req.LecturerID != nil && *req.LecturerID != "" {
		if err := s.ensureLecturer(ctx, *req.LecturerID); err != nil {
			return nil, err
		}
		record.LecturerID = req.LecturerID
		record.Status = models.AssignmentStatusContacting
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.emitAudit(ctx, actor, models.AuditActionAssignmentCreate, record.ID, nil, map[string]interface{}{
		"course_id":     record.CourseID,
		"class_id":      record.ClassID,
		"academic_year": record.AcademicYear,
		"status":        record.Status,
	})
	return viewOf(record), nil
}

// List returns assignment records with their computed hours.
func (s *AssignmentService) List(ctx context.Context, query dto.AssignmentListQuery) ([]dto.AssignmentView, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	year, err := optionalAcademicYear(query.AcademicYear)
	if err != nil {
		return nil, nil, err
	}
	filter := models.AssignmentFilter{
		AcademicYear: year,
		Term:         query.Term,
		LecturerID:   query.LecturerID,
		Limit:        size,
		Offset:       (page - 1) * size,
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status := models.AssignmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
			if !status.Valid() {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
			}
			filter.Status = append(filter.Status, status)
		}
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	views := make([]dto.AssignmentView, 0, len(records))
	for i := range records {
		views = append(views, *viewOf(&records[i]))
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateStatus moves a record through the recruitment workflow.
func (s *AssignmentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateAssignmentStatusRequest, actor *models.JWTClaims) (*dto.AssignmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	next := models.AssignmentStatus(req.Status)
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Status.CanMoveTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("assignment cannot move from %s to %s", record.Status, next))
	}
	if next == models.AssignmentStatusAccepted && (record.LecturerID == nil || *record.LecturerID == "") {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "an assignment needs a lecturer before it can be accepted")
	}

	if err := s.repo.UpdateStatus(ctx, id, record.Status, next); err != nil {
		return nil, translateAssignmentError(err)
	}
	s.emitAudit(ctx, actor, models.AuditActionAssignmentStatus, id,
		map[string]interface{}{"status": record.Status},
		map[string]interface{}{"status": next},
	)
	record.Status = next
	return viewOf(record), nil
}

// AssignLecturer (re)assigns the candidate lecturer and restarts contacting.
func (s *AssignmentService) AssignLecturer(ctx context.Context, id string, req dto.AssignLecturerRequest, actor *models.JWTClaims) (*dto.AssignmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecturer payload")
	}
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.AssignmentStatusAccepted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "accepted assignments cannot be reassigned")
	}
	if err := s.ensureLecturer(ctx, req.LecturerID); err != nil {
		return nil, err
	}

	if err := s.repo.AssignLecturer(ctx, id, req.LecturerID, record.Status, models.AssignmentStatusContacting); err != nil {
		return nil, translateAssignmentError(err)
	}
	previous := ""
	if record.LecturerID != nil {
		previous = *record.LecturerID
	}
	s.emitAudit(ctx, actor, models.AuditActionAssignmentLecturer, id,
		map[string]interface{}{"lecturer_id": previous, "status": record.Status},
		map[string]interface{}{"lecturer_id": req.LecturerID, "status": models.AssignmentStatusContacting},
	)
	lecturerID := req.LecturerID
	record.LecturerID = &lecturerID
	record.Status = models.AssignmentStatusContacting
	return viewOf(record), nil
}

func (s *AssignmentService) load(ctx context.Context, id string) (*models.AssignmentRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return record, nil
}

func (s *AssignmentService) ensureLecturer(ctx context.Context, id string) error {
	if _, err := s.lecturers.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "lecturer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	return nil
}

func (s *AssignmentService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, id string, oldValues, newValues map[string]interface{}) {
	emitAudit(ctx, s.audit, s.logger, auditEntry{
		actor:      actor,
		action:     action,
		resource:   assignmentResource,
		resourceID: id,
		oldValues:  oldValues,
		newValues:  newValues,
	})
}

func translateAssignmentError(err error) error {
	if errors.Is(err, repository.ErrStaleStatus) {
		return appErrors.Clone(appErrors.ErrConflict, "assignment status changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
}

func viewOf(record *models.AssignmentRecord) *dto.AssignmentView {
	return &dto.AssignmentView{AssignmentRecord: *record, Hours: workload.RecordHours(record.TeachingFields)}
}
