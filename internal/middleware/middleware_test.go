package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.err
}

type stubObserver struct {
	method string
	path   string
	status int
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.method, s.path, s.status = method, path, status
}

type stubRecorder struct {
	logs []*models.AuditLog
}

func (s *stubRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWT(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleLecturer}}
	router := gin.New()
	router.GET("/me", JWT(validator), func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.UserID)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer  ", http.StatusUnauthorized},
		{"valid", "Bearer good-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
	assert.Equal(t, "good-token", validator.token)

	validator.err = appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer stale")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestRequireRoles(t *testing.T) {
	newRouter := func(claims *models.JWTClaims) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextUserKey, claims)
			}
			c.Next()
		})
		router.GET("/rates", RequireRoles(models.RoleManagement), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return router
	}

	cases := []struct {
		name   string
		claims *models.JWTClaims
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"lecturer", &models.JWTClaims{Role: models.RoleLecturer}, http.StatusForbidden},
		{"management", &models.JWTClaims{Role: models.RoleManagement}, http.StatusNoContent},
		{"admin always allowed", &models.JWTClaims{Role: models.RoleAdmin}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tc.claims).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rates", nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	observer := &stubObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/contracts/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contracts/abc", nil))
	assert.Equal(t, "/contracts/:id", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, "unmatched", observer.path)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &stubRecorder{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u-1"})
		c.Next()
	})
	router.GET("/contracts/:id/pdf", Audit(recorder, models.AuditActionContractDownload, "contract"), func(c *gin.Context) {
		if c.Param("id") == "broken" {
			_ = c.Error(errors.New("boom"))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/contracts/c-1/pdf", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/contracts/broken/pdf", nil))

	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionContractDownload, log.Action)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "c-1", *log.ResourceID)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u-1", *log.UserID)
	assert.Contains(t, string(log.NewValues), "/contracts/:id/pdf")
}
