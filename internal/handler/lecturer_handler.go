package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
	"github.com/noah-isme/lecturer-contract-api/pkg/response"
)

type lecturerService interface {
	Get(ctx context.Context, id string) (*dto.LecturerProfile, error)
	UpsertRate(ctx context.Context, lecturerID, academicYear string, req dto.UpsertRateRequest, actor *models.JWTClaims) (*models.LecturerRate, error)
}

// LecturerHandler exposes lecturer profile and rate endpoints.
type LecturerHandler struct {
	service lecturerService
}

// NewLecturerHandler constructs a lecturer handler.
func NewLecturerHandler(svc lecturerService) *LecturerHandler {
	return &LecturerHandler{service: svc}
}

// Get godoc
// @Summary Get a lecturer with hourly rates
// @Tags Lecturers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lecturer ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lecturers/{id} [get]
func (h *LecturerHandler) Get(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpsertRate godoc
// @Summary Set an hourly rate
// @Tags Lecturers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lecturer ID"
// @Param year path string true "Academic year, e.g. 2024-2025"
// @Param payload body dto.UpsertRateRequest true "Rate payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lecturers/{id}/rates/{year} [put]
func (h *LecturerHandler) UpsertRate(c *gin.Context) {
	var req dto.UpsertRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rate payload"))
		return
	}
	rate, err := h.service.UpsertRate(c.Request.Context(), c.Param("id"), c.Param("year"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rate, nil)
}
