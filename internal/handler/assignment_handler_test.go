package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecturer-contract-api/internal/dto"
	"github.com/noah-isme/lecturer-contract-api/internal/middleware"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

type assignmentServiceMock struct {
	view       *dto.AssignmentView
	views      []dto.AssignmentView
	err        error
	lastQuery  dto.AssignmentListQuery
	lastStatus string
	lastID     string
}

func (m *assignmentServiceMock) Create(ctx context.Context, req dto.CreateAssignmentRequest, actor *models.JWTClaims) (*dto.AssignmentView, error) {
	return m.view, m.err
}

func (m *assignmentServiceMock) List(ctx context.Context, query dto.AssignmentListQuery) ([]dto.AssignmentView, *models.Pagination, error) {
	m.lastQuery = query
	return m.views, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.views)}, m.err
}

func (m *assignmentServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateAssignmentStatusRequest, actor *models.JWTClaims) (*dto.AssignmentView, error) {
	m.lastID = id
	m.lastStatus = req.Status
	return m.view, m.err
}

func (m *assignmentServiceMock) AssignLecturer(ctx context.Context, id string, req dto.AssignLecturerRequest, actor *models.JWTClaims) (*dto.AssignmentView, error) {
	m.lastID = id
	return m.view, m.err
}

func TestAssignmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &assignmentServiceMock{view: &dto.AssignmentView{AssignmentRecord: models.AssignmentRecord{ID: "asg-1"}, Hours: 45}}
	h := NewAssignmentHandler(svc)

	payload, _ := json.Marshal(dto.CreateAssignmentRequest{ClassID: "A", CourseID: "CS101", AcademicYear: "2024/2025", Term: "ODD"})
	c, w := newGinContext(http.MethodPost, "/assignments", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 45, data["hours"])
}

func TestAssignmentHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &assignmentServiceMock{views: []dto.AssignmentView{{AssignmentRecord: models.AssignmentRecord{ID: "asg-1"}}}}
	h := NewAssignmentHandler(svc)

	c, w := newGinContext(http.MethodGet, "/assignments?academicYear=2024/2025&status=PENDING&pageSize=5", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024/2025", svc.lastQuery.AcademicYear)
	assert.Equal(t, "PENDING", svc.lastQuery.Status)
	assert.Equal(t, 5, svc.lastQuery.PageSize)
}

func TestAssignmentHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &assignmentServiceMock{view: &dto.AssignmentView{}}
	h := NewAssignmentHandler(svc)

	c, w := newGinContext(http.MethodPatch, "/assignments/asg-1/status", []byte(`{"status":"CONTACTING"}`))
	c.Params = gin.Params{{Key: "id", Value: "asg-1"}}
	h.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asg-1", svc.lastID)
	assert.Equal(t, "CONTACTING", svc.lastStatus)

	svc.err = appErrors.Clone(appErrors.ErrInvalidTransition, "assignment cannot move from PENDING to ACCEPTED")
	c, w = newGinContext(http.MethodPatch, "/assignments/asg-1/status", []byte(`{"status":"ACCEPTED"}`))
	h.UpdateStatus(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssignmentHandlerAssignLecturer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &assignmentServiceMock{view: &dto.AssignmentView{}}
	h := NewAssignmentHandler(svc)

	c, w := newGinContext(http.MethodPut, "/assignments/asg-1/lecturer", []byte(`{"lecturer_id":"lec-1"}`))
	c.Params = gin.Params{{Key: "id", Value: "asg-1"}}
	h.AssignLecturer(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPut, "/assignments/asg-1/lecturer", []byte(`not json`))
	h.AssignLecturer(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
