package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

const lecturerResource = "lecturer"

var academicYearPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

type lecturerStore interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
	ListRates(ctx context.Context, lecturerID string) ([]models.LecturerRate, error)
	UpsertRate(ctx context.Context, rate *models.LecturerRate) error
}

// LecturerService exposes lecturer profiles and their hourly rates.
type LecturerService struct {
	repo      lecturerStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLecturerService constructs a LecturerService.
func NewLecturerService(repo lecturerStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *LecturerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LecturerService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Get returns the lecturer profile with every configured rate.
func (s *LecturerService) Get(ctx context.Context, id string) (*dto.LecturerProfile, error) {
	lecturer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rates, err := s.repo.ListRates(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hourly rates")
	}
	if rates == nil {
		rates = []models.LecturerRate{}
	}
	return &dto.LecturerProfile{Lecturer: *lecturer, Rates: rates}, nil
}

// UpsertRate sets the hourly rate of a lecturer for an academic year. The
// year is accepted either as 2024/2025 or in its path form 2024-2025.
func (s *LecturerService) UpsertRate(ctx context.Context, lecturerID, academicYear string, req dto.UpsertRateRequest, actor *models.JWTClaims) (*models.LecturerRate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rate payload")
	}
	if math.IsNaN(req.HourlyRate) || math.IsInf(req.HourlyRate, 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hourly_rate must be a finite number")
	}
	year, err := NormalizeAcademicYear(academicYear)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, lecturerID); err != nil {
		return nil, err
	}

	rate := &models.LecturerRate{LecturerID: lecturerID, AcademicYear: year, HourlyRate: req.HourlyRate}
	if err := s.repo.UpsertRate(ctx, rate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store hourly rate")
	}
	emitAudit(ctx, s.audit, s.logger, auditEntry{
		actor:      actor,
		action:     models.AuditActionLecturerRate,
		resource:   lecturerResource,
		resourceID: lecturerID,
		newValues:  map[string]interface{}{"academic_year": year, "hourly_rate": req.HourlyRate},
	})
	return rate, nil
}

// NormalizeAcademicYear converts "2024-2025" or "2024/2025" into the stored
// "2024/2025" form. The second year must follow the first.
func NormalizeAcademicYear(raw string) (string, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), "-", "/")
	match := academicYearPattern.FindStringSubmatch(value)
	if match == nil || !consecutiveYears(match[1], match[2]) {
		return "", appErrors.Clone(appErrors.ErrValidation, "academic year must look like 2024-2025")
	}
	return value, nil
}

// optionalAcademicYear normalizes a filter value; an empty filter stays empty.
func optionalAcademicYear(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return NormalizeAcademicYear(raw)
}

func consecutiveYears(first, second string) bool {
	a, errA := strconv.Atoi(first)
	b, errB := strconv.Atoi(second)
	return errA == nil && errB == nil && b == a+1
}

func (s *LecturerService) load(ctx context.Context, id string) (*models.Lecturer, error) {
	lecturer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	return lecturer, nil
}
