package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/service"
)

func TestRegisterRoutesEnforcesDeskRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenService(service.TokenConfig{Secret: "s", Issuer: "i", Audience: "a", Expiry: time.Hour})
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Students:    NewStudentHandler(nil, nil, nil),
		Courses:     NewCourseHandler(nil),
		Enrollments: NewEnrollmentHandler(&fakeEnrollmentSrv{}),
		Fees:        NewFeeHandler(&fakeFeeSrv{}),
		Analytics:   NewAnalyticsHandler(&fakeAnalyticsSrv{}),
	}, tokens)

	bearer := func(role models.Role) string {
		issued, err := tokens.Issue("desk", "", []models.Role{role})
		require.NoError(t, err)
		return "Bearer " + issued.Token
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		status int
	}{
		{name: "anonymous", method: http.MethodGet, path: "/api/v1/fees/types", status: http.StatusUnauthorized},
		{name: "bursar cannot enroll", method: http.MethodPost, path: "/api/v1/enrollments", body: `{"student_id":"S1","course_code":"CS101"}`, auth: bearer(models.RoleBursar), status: http.StatusForbidden},
		{name: "registrar enrolls", method: http.MethodPost, path: "/api/v1/enrollments", body: `{"student_id":"S1","course_code":"CS101"}`, auth: bearer(models.RoleRegistrar), status: http.StatusCreated},
		{name: "bursar reads balance", method: http.MethodGet, path: "/api/v1/students/S1/balance/CS101", auth: bearer(models.RoleBursar), status: http.StatusOK},
		{name: "analyst cannot pay", method: http.MethodPost, path: "/api/v1/payments", body: `{}`, auth: bearer(models.RoleAnalyst), status: http.StatusForbidden},
		{name: "analyst reads drift", method: http.MethodGet, path: "/api/v1/analytics/enrollment-drift", auth: bearer(models.RoleAnalyst), status: http.StatusOK},
		{name: "admin reads analytics", method: http.MethodGet, path: "/api/v1/analytics/system", auth: bearer(models.RoleAdmin), status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
