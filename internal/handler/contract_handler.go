package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
	"github.com/noah-isme/lecturer-contract-api/pkg/response"
)

type contractService interface {
	Create(ctx context.Context, req dto.CreateContractRequest, actor *models.JWTClaims) (*models.TeachingContract, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.TeachingContract, error)
	List(ctx context.Context, query dto.ContractListQuery, actor *models.JWTClaims) ([]models.TeachingContract, *models.Pagination, error)
	Summary(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ContractSummary, error)
	TotalHours(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ContractHours, error)
	Salary(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ContractSalary, error)
	SubmitSignature(ctx context.Context, id string, role models.SignatureRole, upload dto.SignatureUpload, actor *models.JWTClaims) (*models.TeachingContract, error)
	SetStatus(ctx context.Context, id string, req dto.SetContractStatusRequest, actor *models.JWTClaims) (*models.TeachingContract, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	RenderPDF(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ExportFile, error)
	ExportRegister(ctx context.Context, academicYear, format string) (*dto.ExportFile, error)
	SignatureURL(ctx context.Context, id string, role models.SignatureRole, actor *models.JWTClaims) (*dto.SignatureURLResponse, error)
	OpenSignature(ctx context.Context, token string) (*dto.ExportFile, error)
}

// ContractHandler exposes teaching contract endpoints.
type ContractHandler struct {
	service        contractService
	maxUploadBytes int64
}

// NewContractHandler constructs a contract handler. Uploads larger than
// maxUploadBytes are truncated to one byte past the limit so the service
// can reject them.
func NewContractHandler(svc contractService, maxUploadBytes int64) *ContractHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &ContractHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// Create godoc
// @Summary Generate a teaching contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateContractRequest true "Contract payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid contract payload"))
		return
	}
	contract, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewContractView(contract))
}

// List godoc
// @Summary List teaching contracts
// @Description Lecturers only see their own contracts
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param academicYear query string false "Academic year, e.g. 2024/2025"
// @Param term query string false "Term"
// @Param lecturerId query string false "Lecturer ID"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contracts [get]
func (h *ContractHandler) List(c *gin.Context) {
	var query dto.ContractListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	contracts, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]dto.ContractView, 0, len(contracts))
	for i := range contracts {
		views = append(views, dto.NewContractView(&contracts[i]))
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// Get godoc
// @Summary Get a teaching contract
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewContractView(contract), nil)
}

// Summary godoc
// @Summary Computed contract summary
// @Description Per-line hours with their source, total hours, rate and salary
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/summary [get]
func (h *ContractHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Hours godoc
// @Summary Total billable hours
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/hours [get]
func (h *ContractHandler) Hours(c *gin.Context) {
	hours, err := h.service.TotalHours(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hours, nil)
}

// Salary godoc
// @Summary Contract salary
// @Description salary is null while the hourly rate is pending
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/salary [get]
func (h *ContractHandler) Salary(c *gin.Context) {
	salary, err := h.service.Salary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, salary, nil)
}

// SubmitSignature godoc
// @Summary Upload a signature
// @Description Lecturers sign as LECTURER, management as MANAGEMENT
// @Tags Contracts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Param role path string true "LECTURER or MANAGEMENT"
// @Param file formData file true "Signature image or PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id}/signatures/{role} [post]
func (h *ContractHandler) SubmitSignature(c *gin.Context) {
	role, ok := models.ParseSignatureRole(c.Param("role"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "role must be LECTURER or MANAGEMENT"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}

	contract, err := h.service.SubmitSignature(c.Request.Context(), c.Param("id"), role, dto.SignatureUpload{Filename: header.Filename, Content: content}, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewContractView(contract), nil)
}

// SignatureURL godoc
// @Summary Signed download link for a signature
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Param role path string true "LECTURER or MANAGEMENT"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contracts/{id}/signatures/{role}/url [get]
func (h *ContractHandler) SignatureURL(c *gin.Context) {
	role, ok := models.ParseSignatureRole(c.Param("role"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "role must be LECTURER or MANAGEMENT"))
		return
	}
	link, err := h.service.SignatureURL(c.Request.Context(), c.Param("id"), role, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadSignature godoc
// @Summary Download a signature artifact
// @Description Authenticated by the signed token only
// @Tags Contracts
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /signatures/download [get]
func (h *ContractHandler) DownloadSignature(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, err := h.service.OpenSignature(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// SetStatus godoc
// @Summary Override contract status
// @Description Administrative override, audited with the reason
// @Tags Contracts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Param payload body dto.SetContractStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id}/status [patch]
func (h *ContractHandler) SetStatus(c *gin.Context) {
	var req dto.SetContractStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	contract, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewContractView(contract), nil)
}

// Delete godoc
// @Summary Delete a contract
// @Description Completed contracts cannot be deleted
// @Tags Contracts
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contracts/{id} [delete]
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PDF godoc
// @Summary Render the contract document
// @Tags Contracts
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {file} binary
// @Router /contracts/{id}/pdf [get]
func (h *ContractHandler) PDF(c *gin.Context) {
	file, err := h.service.RenderPDF(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// Export godoc
// @Summary Export the contract register
// @Tags Contracts
// @Produce octet-stream
// @Security BearerAuth
// @Param academicYear query string true "Academic year, e.g. 2024/2025"
// @Param format query string false "csv or xlsx"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /contracts/export [get]
func (h *ContractHandler) Export(c *gin.Context) {
	file, err := h.service.ExportRegister(c.Request.Context(), c.Query("academicYear"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
