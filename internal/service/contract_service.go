package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	"github.com/noah-isme/lecturer-contract-api/internal/repository"
	"github.com/noah-isme/lecturer-contract-api/internal/workload"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
	"github.com/noah-isme/lecturer-contract-api/pkg/export"
)

const (
	contractResource = "contract"
	dateLayout       = "2006-01-02"
)

type contractStore interface {
	Create(ctx context.Context, contract *models.TeachingContract) error
	GetByID(ctx context.Context, id string) (*models.TeachingContract, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.TeachingContract, int, error)
	ApplySignature(ctx context.Context, sig *models.ContractSignature, transition repository.SignatureTransition) (*models.TeachingContract, string, error)
	UpdateStatus(ctx context.Context, id string, expected, next models.ContractStatus) error
	Delete(ctx context.Context, id string) ([]string, error)
}

type assignmentPool interface {
	ListByAcademicYear(ctx context.Context, academicYear string) ([]models.AssignmentRecord, error)
	FindByID(ctx context.Context, id string) (*models.AssignmentRecord, error)
}

type lecturerDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
	FindByUserID(ctx context.Context, userID string) (*models.Lecturer, error)
	GetHourlyRate(ctx context.Context, lecturerID, academicYear string) (*float64, error)
}

type artifactStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// artifactCleanup removes orphaned artifacts off the request path.
type artifactCleanup interface {
	Enqueue(refs ...string) error
}

type downloadSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string) (string, string, time.Time, error)
}

type contractRenderer interface {
	Render(doc export.ContractDocument) ([]byte, error)
}

// ContractServiceConfig tunes signature validation and document rendering.
type ContractServiceConfig struct {
	MaxSignatureBytes int64
	AllowedMIMEs      []string
	IssuerName        string
	PDFCacheTTL       time.Duration
	DownloadPath      string
}

// ContractService coordinates contract generation, settlement and signatures.
type ContractService struct {
	store       contractStore
	assignments assignmentPool
	lecturers   lecturerDirectory
	artifacts   artifactStore
	cleanup     artifactCleanup
	signer      downloadSigner
	renderer    contractRenderer
	cache       *CacheService
	metrics     *MetricsService
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ContractServiceConfig
	allowed     map[string]struct{}
	now         func() time.Time
}

// ContractServiceDeps groups the collaborators of ContractService.
type ContractServiceDeps struct {
	Store       contractStore
	Assignments assignmentPool
	Lecturers   lecturerDirectory
	Artifacts   artifactStore
	Cleanup     artifactCleanup
	Signer      downloadSigner
	Renderer    contractRenderer
	Cache       *CacheService
	Metrics     *MetricsService
	Audit       auditLogger
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewContractService builds a ContractService with defaults for optional collaborators.
func NewContractService(deps ContractServiceDeps, cfg ContractServiceConfig) *ContractService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Renderer == nil {
		deps.Renderer = export.NewContractPDF()
	}
	if cfg.MaxSignatureBytes <= 0 {
		cfg.MaxSignatureBytes = 5 << 20
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/png", "image/jpeg", "application/pdf"}
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/signatures/download"
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &ContractService{
		store:       deps.Store,
		assignments: deps.Assignments,
		lecturers:   deps.Lecturers,
		artifacts:   deps.Artifacts,
		cleanup:     deps.Cleanup,
		signer:      deps.Signer,
		renderer:    deps.Renderer,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		audit:       deps.Audit,
		validator:   deps.Validator,
		logger:      deps.Logger,
		cfg:         cfg,
		allowed:     allowed,
		now:         time.Now,
	}
}

// Create validates the request and persists a DRAFT contract with its duties
// and line items. The lecturer's current hourly rate is snapshotted.
func (s *ContractService) Create(ctx context.Context, req dto.CreateContractRequest, actor *models.JWTClaims) (*models.TeachingContract, error) {
	req.LecturerID = strings.TrimSpace(req.LecturerID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contract payload")
	}
	year, err := NormalizeAcademicYear(req.AcademicYear)
	if err != nil {
		return nil, err
	}
	req.AcademicYear = year
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted as YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted as YYYY-MM-DD")
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	duties := make([]string, 0, len(req.Duties))
	for _, duty := range req.Duties {
		if trimmed := strings.TrimSpace(duty); trimmed != "" {
			duties = append(duties, trimmed)
		}
	}
	if len(duties) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one duty is required")
	}

	if _, err := s.lecturers.FindByID(ctx, req.LecturerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}

	items := make([]models.ContractLineItem, 0, len(req.Items))
	for i, itemReq := range req.Items {
		item, err := s.buildLineItem(ctx, req, itemReq)
		if err != nil {
			return nil, err
		}
		item.Position = i + 1
		items = append(items, item)
	}

	rate, err := s.lecturers.GetHourlyRate(ctx, req.LecturerID, req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hourly rate")
	}

	contract := &models.TeachingContract{
		LecturerID:   req.LecturerID,
		AcademicYear: req.AcademicYear,
		Term:         req.Term,
		YearLevel:    req.YearLevel,
		StartDate:    start,
		EndDate:      end,
		HourlyRate:   rate,
		Status:       models.ContractStatusDraft,
		Version:      1,
		CreatedBy:    actorID(actor),
		Duties:       duties,
		Items:        items,
	}
	if err := s.store.Create(ctx, contract); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contract")
	}

	s.emitAudit(ctx, actor, models.AuditActionContractCreate, contract.ID, nil, map[string]interface{}{
		"lecturer_id":   contract.LecturerID,
		"academic_year": contract.AcademicYear,
		"items":         len(contract.Items),
		"status":        contract.Status,
	})
	return contract, nil
}

func (s *ContractService) buildLineItem(ctx context.Context, req dto.CreateContractRequest, itemReq dto.ContractItemRequest) (models.ContractLineItem, error) {
	item := models.ContractLineItem{
		CourseID:      itemReq.CourseID,
		ClassID:       itemReq.ClassID,
		AcademicYear:  req.AcademicYear,
		Term:          req.Term,
		YearLevel:     req.YearLevel,
		HoursOverride: itemReq.HoursOverride,
	}
	fields := itemReq.TeachingFields

	if itemReq.AssignmentID != "" {
		record, err := s.assignments.FindByID(ctx, itemReq.AssignmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return item, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assignment %s not found", itemReq.AssignmentID))
			}
			return item, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
		}
		if record.AcademicYear != req.AcademicYear {
			return item, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assignment %s belongs to another academic year", record.ID))
		}
		if item.CourseID == "" {
			item.CourseID = record.CourseID
		}
		if item.ClassID == "" {
			item.ClassID = record.ClassID
		}
		fields = mergeTeachingFields(record.TeachingFields, itemReq.TeachingFields)
	}
	item.TeachingFields = fields
	return item, nil
}

// mergeTeachingFields overlays the explicitly provided fields on the base
// record. The combine flag always comes from the contract line.
func mergeTeachingFields(base, overlay models.TeachingFields) models.TeachingFields {
	merged := base
	if overlay.TheoryHours != nil {
		merged.TheoryHours = overlay.TheoryHours
	}
	if overlay.TheoryGroups != nil {
		merged.TheoryGroups = overlay.TheoryGroups
	}
	if overlay.LabGroups != nil {
		merged.LabGroups = overlay.LabGroups
	}
	if overlay.TypeHours != nil {
		merged.TypeHours = overlay.TypeHours
	}
	if overlay.GroupCount != nil {
		merged.GroupCount = overlay.GroupCount
	}
	if overlay.DefaultHours != nil {
		merged.DefaultHours = overlay.DefaultHours
	}
	merged.TheoryCombined = overlay.TheoryCombined
	return merged
}

// Get returns a contract visible to the actor.
func (s *ContractService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.TeachingContract, error) {
	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, contract, actor); err != nil {
		return nil, err
	}
	return contract, nil
}

// List returns contracts matching the query. Lecturers only see their own.
func (s *ContractService) List(ctx context.Context, query dto.ContractListQuery, actor *models.JWTClaims) ([]models.TeachingContract, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	year, err := optionalAcademicYear(query.AcademicYear)
	if err != nil {
		return nil, nil, err
	}
	filter := models.ContractFilter{
		AcademicYear: year,
		Term:         query.Term,
		LecturerID:   query.LecturerID,
		Limit:        size,
		Offset:       (page - 1) * size,
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status, ok := models.ParseContractStatus(raw)
			if !ok {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
			}
			filter.Status = append(filter.Status, status)
		}
	}
	if actor != nil && actor.Role == models.RoleLecturer {
		lecturer, err := s.actorLecturer(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		filter.LecturerID = lecturer.ID
	}

	contracts, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contracts")
	}
	return contracts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// TotalHours returns the billable hours of a contract.
func (s *ContractService) TotalHours(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ContractHours, error) {
	summary, err := s.Summary(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &dto.ContractHours{ContractID: id, TotalHours: summary.TotalHours}, nil
}

// Salary returns hours times the effective rate; Salary is nil while the rate is pending.
func (s *ContractService) Salary(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ContractSalary, error) {
	summary, err := s.Summary(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &dto.ContractSalary{
		ContractID: id,
		TotalHours: summary.TotalHours,
		HourlyRate: summary.HourlyRate,
		Salary:     summary.Salary,
	}, nil
}

// Summary resolves every line of the contract against the assignment pool.
func (s *ContractService) Summary(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ContractSummary, error) {
	contract, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	pool, err := s.assignments.ListByAcademicYear(ctx, contract.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	return s.summarize(ctx, contract, pool)
}

func (s *ContractService) summarize(ctx context.Context, contract *models.TeachingContract, pool []models.AssignmentRecord) (*dto.ContractSummary, error) {
	lines := workload.ResolveLines(contract, pool)
	total := 0
	for _, line := range lines {
		total += line.Hours
	}
	rate, err := s.effectiveRate(ctx, contract)
	if err != nil {
		return nil, err
	}
	return &dto.ContractSummary{
		Contract:    contract,
		StatusLabel: contract.Status.Label(),
		Lines:       lines,
		TotalHours:  total,
		HourlyRate:  rate,
		Salary:      workload.Salary(total, rate),
	}, nil
}

// effectiveRate prefers the snapshot taken at creation and falls back to the
// lecturer's current rate for the academic year.
func (s *ContractService) effectiveRate(ctx context.Context, contract *models.TeachingContract) (*float64, error) {
	if contract.HourlyRate != nil {
		return contract.HourlyRate, nil
	}
	rate, err := s.lecturers.GetHourlyRate(ctx, contract.LecturerID, contract.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hourly rate")
	}
	return rate, nil
}

// SubmitSignature stores the signature artifact and advances the contract
// through the signature state machine.
func (s *ContractService) SubmitSignature(ctx context.Context, contractID string, role models.SignatureRole, upload dto.SignatureUpload, actor *models.JWTClaims) (*models.TeachingContract, error) {
	mimeType, err := s.validateArtifact(upload)
	if err != nil {
		return nil, err
	}

	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSign(ctx, contract, role, actor); err != nil {
		return nil, err
	}
	if _, ok := contract.Status.Next(role); !ok {
		s.metrics.RecordSignature(role, false)
		return nil, invalidSignature(contract.Status, role)
	}

	ref := fmt.Sprintf("%s/%s-%s%s", contract.ID, strings.ToLower(string(role)), uuid.NewString(), extensionFor(mimeType))
	if _, err := s.artifacts.SaveStream(ref, bytes.NewReader(upload.Content)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store signature")
	}

	sig := &models.ContractSignature{
		ContractID: contract.ID,
		Role:       role,
		FileRef:    ref,
		MimeType:   mimeType,
		SizeBytes:  int64(len(upload.Content)),
		SignedBy:   actorID(actor),
		SignedAt:   s.now().UTC(),
	}
	var previous models.ContractStatus
	updated, replaced, err := s.store.ApplySignature(ctx, sig, func(current models.ContractStatus) (models.ContractStatus, error) {
		previous = current
		next, ok := current.Next(role)
		if !ok {
			return "", invalidSignature(current, role)
		}
		return next, nil
	})
	if err != nil {
		s.discardArtifact(ref)
		s.metrics.RecordSignature(role, false)
		return nil, translateSignatureError(err)
	}
	if replaced != "" && replaced != ref {
		s.discardArtifact(replaced)
	}

	s.metrics.RecordSignature(role, true)
	s.metrics.RecordStatusTransition(previous, updated.Status)
	s.emitAudit(ctx, actor, models.AuditActionContractSign, contract.ID,
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": updated.Status, "role": role, "version": updated.Version},
	)
	s.invalidatePDF(ctx, contract.ID)

	fresh, err := s.store.GetByID(ctx, contract.ID)
	if err != nil {
		s.logger.Warn("failed to reload contract after signature", zap.String("contract_id", contract.ID), zap.Error(err))
		return updated, nil
	}
	return fresh, nil
}

func (s *ContractService) validateArtifact(upload dto.SignatureUpload) (string, error) {
	if len(upload.Content) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "signature file is empty")
	}
	if int64(len(upload.Content)) > s.cfg.MaxSignatureBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("signature file exceeds %d bytes", s.cfg.MaxSignatureBytes))
	}
	mimeType := http.DetectContentType(upload.Content)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if _, ok := s.allowed[mimeType]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("signature file type %s is not allowed", mimeType))
	}
	return mimeType, nil
}

func (s *ContractService) authorizeSign(ctx context.Context, contract *models.TeachingContract, role models.SignatureRole, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	switch role {
	case models.SignatureRoleLecturer:
		lecturer, err := s.actorLecturer(ctx, actor)
		if err != nil {
			return err
		}
		if lecturer.ID != contract.LecturerID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the contracted lecturer can sign as lecturer")
		}
	case models.SignatureRoleManagement:
		if actor.Role != models.RoleManagement && actor.Role != models.RoleAdmin {
			return appErrors.Clone(appErrors.ErrForbidden, "only management can sign as management")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown signature role")
	}
	return nil
}

func invalidSignature(status models.ContractStatus, role models.SignatureRole) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("contract in status %s cannot be signed by %s", status.Label(), role))
}

func translateSignatureError(err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "contract not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return appErrors.Clone(appErrors.ErrInvalidTransition, "contract status changed while signing")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record signature")
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	}
	return ".bin"
}

// SetStatus is the administrative override. Any status may be set and the
// change is audited with the previous value and the reason.
func (s *ContractService) SetStatus(ctx context.Context, id string, req dto.SetContractStatusRequest, actor *models.JWTClaims) (*models.TeachingContract, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	next, ok := models.ParseContractStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == next {
		return contract, nil
	}

	if err := s.store.UpdateStatus(ctx, id, contract.Status, next); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "contract status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contract status")
	}

	s.metrics.RecordStatusTransition(contract.Status, next)
	s.emitAudit(ctx, actor, models.AuditActionContractStatusOverride, id,
		map[string]interface{}{"status": contract.Status},
		map[string]interface{}{"status": next, "reason": req.Reason},
	)
	s.invalidatePDF(ctx, id)
	return s.load(ctx, id)
}

// Delete removes a contract that has not been completed together with its
// stored signature artifacts.
func (s *ContractService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	contract, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !contract.Status.CanDelete() {
		return appErrors.Clone(appErrors.ErrForbidden, "completed contracts cannot be deleted")
	}

	refs, err := s.store.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrContractCompleted):
			return appErrors.Clone(appErrors.ErrForbidden, "completed contracts cannot be deleted")
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contract")
	}
	for _, ref := range refs {
		s.discardArtifact(ref)
	}

	s.emitAudit(ctx, actor, models.AuditActionContractDelete, id,
		map[string]interface{}{"status": contract.Status, "lecturer_id": contract.LecturerID},
		nil,
	)
	s.invalidatePDF(ctx, id)
	return nil
}

// RenderPDF renders the contract document, served from the cache when the
// same version was rendered before.
func (s *ContractService) RenderPDF(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ExportFile, error) {
	contract, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	file := &dto.ExportFile{
		Filename:    fmt.Sprintf("contract-%s-v%d.pdf", contract.ID, contract.Version),
		ContentType: "application/pdf",
	}

	key := PDFCacheKey(contract.ID, contract.Version)
	var cached []byte
	if hit, _ := s.cache.Get(ctx, key, &cached); hit && len(cached) > 0 {
		file.Content = cached
		return file, nil
	}

	pool, err := s.assignments.ListByAcademicYear(ctx, contract.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	summary, err := s.summarize(ctx, contract, pool)
	if err != nil {
		return nil, err
	}
	lecturer, err := s.lecturers.FindByID(ctx, contract.LecturerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}

	start := s.now()
	content, err := s.renderer.Render(s.document(summary, lecturer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render contract")
	}
	s.metrics.ObservePDFRender(time.Since(start))

	if err := s.cache.Set(ctx, key, content, s.cfg.PDFCacheTTL); err != nil {
		s.logger.Warn("failed to cache contract pdf", zap.String("contract_id", contract.ID), zap.Error(err))
	}
	file.Content = content
	return file, nil
}

func (s *ContractService) document(summary *dto.ContractSummary, lecturer *models.Lecturer) export.ContractDocument {
	contract := summary.Contract
	doc := export.ContractDocument{
		Issuer:       s.cfg.IssuerName,
		ContractID:   contract.ID,
		Version:      contract.Version,
		LecturerName: contract.LecturerID,
		AcademicYear: contract.AcademicYear,
		Term:         contract.Term,
		YearLevel:    contract.YearLevel,
		StartDate:    contract.StartDate,
		EndDate:      contract.EndDate,
		Status:       summary.StatusLabel,
		Duties:       contract.Duties,
		TotalHours:   summary.TotalHours,
		HourlyRate:   summary.HourlyRate,
		Salary:       summary.Salary,
	}
	if lecturer != nil {
		doc.LecturerName = lecturer.FullName
		if lecturer.NIDN != nil {
			doc.LecturerNIDN = *lecturer.NIDN
		}
	}
	for _, line := range summary.Lines {
		doc.Lines = append(doc.Lines, export.ContractLine{
			Position: line.Position,
			CourseID: line.CourseID,
			ClassID:  line.ClassID,
			Hours:    line.Hours,
			Source:   string(line.Source),
		})
	}
	for _, role := range []models.SignatureRole{models.SignatureRoleLecturer, models.SignatureRoleManagement} {
		status := export.ContractSignatureStatus{Role: string(role)}
		if sig := contract.Signature(role); sig != nil {
			signedAt := sig.SignedAt
			status.SignedBy = sig.SignedBy
			status.SignedAt = &signedAt
		}
		doc.Signatures = append(doc.Signatures, status)
	}
	return doc
}

var registerHeaders = []string{
	"contract_id", "lecturer_id", "lecturer_name", "academic_year", "term", "year_level",
	"start_date", "end_date", "status", "version", "total_hours", "hourly_rate", "salary",
}

// ExportRegister renders every contract of an academic year as CSV or XLSX.
func (s *ContractService) ExportRegister(ctx context.Context, academicYear, format string) (*dto.ExportFile, error) {
	if strings.TrimSpace(academicYear) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYear is required")
	}
	academicYear, err := NormalizeAcademicYear(academicYear)
	if err != nil {
		return nil, err
	}
	renderer, err := export.RendererFor(export.Format(strings.ToLower(format)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or xlsx")
	}

	contracts, _, err := s.store.List(ctx, models.ContractFilter{AcademicYear: academicYear})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contracts")
	}
	pool, err := s.assignments.ListByAcademicYear(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	names := map[string]string{}
	dataset := export.Dataset{Title: "Contracts " + academicYear, Headers: registerHeaders}
	for i := range contracts {
		contract := &contracts[i]
		summary, err := s.summarize(ctx, contract, pool)
		if err != nil {
			return nil, err
		}
		name, ok := names[contract.LecturerID]
		if !ok {
			if lecturer, err := s.lecturers.FindByID(ctx, contract.LecturerID); err == nil {
				name = lecturer.FullName
			}
			names[contract.LecturerID] = name
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"contract_id":   contract.ID,
			"lecturer_id":   contract.LecturerID,
			"lecturer_name": name,
			"academic_year": contract.AcademicYear,
			"term":          contract.Term,
			"year_level":    strconv.Itoa(contract.YearLevel),
			"start_date":    contract.StartDate.Format(dateLayout),
			"end_date":      contract.EndDate.Format(dateLayout),
			"status":        summary.StatusLabel,
			"version":       strconv.Itoa(contract.Version),
			"total_hours":   strconv.Itoa(summary.TotalHours),
			"hourly_rate":   export.FormatAmount(summary.HourlyRate),
			"salary":        export.FormatAmount(summary.Salary),
		})
	}

	content, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render register")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("contracts-%s.%s", strings.ReplaceAll(academicYear, "/", "-"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

// SignatureURL issues a signed, expiring download link for a stored signature.
func (s *ContractService) SignatureURL(ctx context.Context, id string, role models.SignatureRole, actor *models.JWTClaims) (*dto.SignatureURLResponse, error) {
	contract, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	sig := contract.Signature(role)
	if sig == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "signature not found")
	}
	token, expiresAt, err := s.signer.Generate(contract.ID, sig.FileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &dto.SignatureURLResponse{
		URL:       s.cfg.DownloadPath + "?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// OpenSignature resolves a download token to the stored artifact. The token
// stops working once the signature it points to has been replaced.
func (s *ContractService) OpenSignature(ctx context.Context, token string) (*dto.ExportFile, error) {
	contractID, ref, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	var sig *models.ContractSignature
	for i := range contract.Signatures {
		if contract.Signatures[i].FileRef == ref {
			sig = &contract.Signatures[i]
		}
	}
	if sig == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "signature not found")
	}

	file, err := s.artifacts.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "signature file missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open signature")
	}
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read signature")
	}
	return &dto.ExportFile{Filename: path.Base(ref), ContentType: sig.MimeType, Content: content}, nil
}

func (s *ContractService) load(ctx context.Context, id string) (*models.TeachingContract, error) {
	contract, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	return contract, nil
}

func (s *ContractService) authorizeRead(ctx context.Context, contract *models.TeachingContract, actor *models.JWTClaims) error {
	if actor == nil || actor.Role != models.RoleLecturer {
		return nil
	}
	lecturer, err := s.actorLecturer(ctx, actor)
	if err != nil {
		return err
	}
	if lecturer.ID != contract.LecturerID {
		return appErrors.Clone(appErrors.ErrForbidden, "contract belongs to another lecturer")
	}
	return nil
}

func (s *ContractService) actorLecturer(ctx context.Context, actor *models.JWTClaims) (*models.Lecturer, error) {
	lecturer, err := s.lecturers.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a lecturer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve lecturer")
	}
	return lecturer, nil
}

func (s *ContractService) discardArtifact(ref string) {
	if s.cleanup != nil {
		err := s.cleanup.Enqueue(ref)
		if err == nil {
			return
		}
		s.logger.Warn("artifact cleanup unavailable, deleting inline", zap.String("file_ref", ref), zap.Error(err))
	}
	if err := s.artifacts.Delete(ref); err != nil {
		s.logger.Warn("failed to delete signature artifact", zap.String("file_ref", ref), zap.Error(err))
	}
}

func (s *ContractService) invalidatePDF(ctx context.Context, contractID string) {
	_ = s.cache.Invalidate(ctx, PDFCachePattern(contractID))
}

func (s *ContractService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValues, newValues map[string]interface{}) {
	emitAudit(ctx, s.audit, s.logger, auditEntry{
		actor:      actor,
		action:     action,
		resource:   contractResource,
		resourceID: resourceID,
		oldValues:  oldValues,
		newValues:  newValues,
	})
}

func actorID(actor *models.JWTClaims) string {
	if actor == nil {
		return "system"
	}
	return actor.UserID
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
