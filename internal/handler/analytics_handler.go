package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-admin-api/internal/dto"
	"github.com/noah-isme/campus-admin-api/internal/middleware"
	"github.com/noah-isme/campus-admin-api/internal/models"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
	"github.com/noah-isme/campus-admin-api/pkg/response"
)

type analyticsService interface {
	EnrollmentStatistics(ctx context.Context, filter models.EnrollmentStatsFilter) (*dto.EnrollmentStatisticsResponse, bool, error)
	StudentDemographics(ctx context.Context) (*dto.DemographicsResponse, bool, error)
	FinancialReport(ctx context.Context, timeframe models.Timeframe) (*dto.FinancialReportResponse, bool, error)
	ActivityReport(ctx context.Context, days int) (*dto.ActivityReportResponse, bool, error)
	CoursePerformance(ctx context.Context) (*dto.CoursePerformanceResponse, bool, error)
	EnrollmentDrift(ctx context.Context) (*dto.EnrollmentDriftResponse, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes the read-only reporting endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Enrollment godoc
// @Summary Enrollment statistics
// @Tags Analytics
// @Produce json
// @Param department query string false "Filter by department"
// @Param semester query string false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /analytics/enrollment [get]
func (h *AnalyticsHandler) Enrollment(c *gin.Context) {
	filter := models.EnrollmentStatsFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Semester:   strings.TrimSpace(c.Query("semester")),
	}
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.analytics.EnrollmentStatistics(ctx, filter)
	})
}

// Demographics godoc
// @Summary Student demographics
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/demographics [get]
func (h *AnalyticsHandler) Demographics(c *gin.Context) {
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.analytics.StudentDemographics(ctx)
	})
}

// Financial godoc
// @Summary Financial report
// @Tags Analytics
// @Produce json
// @Param timeframe query string false "current_semester (default), last_30_days, last_90_days or all_time"
// @Success 200 {object} response.Envelope
// @Router /analytics/financial [get]
func (h *AnalyticsHandler) Financial(c *gin.Context) {
	timeframe := models.Timeframe(strings.ToLower(strings.TrimSpace(c.Query("timeframe"))))
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.analytics.FinancialReport(ctx, timeframe)
	})
}

// Activity godoc
// @Summary Activity report
// @Tags Analytics
// @Produce json
// @Param days query int false "Window in days (default 30, max 365)"
// @Success 200 {object} response.Envelope
// @Router /analytics/activity [get]
func (h *AnalyticsHandler) Activity(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.analytics.ActivityReport(ctx, days)
	})
}

// CoursePerformance godoc
// @Summary Course performance
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/course-performance [get]
func (h *AnalyticsHandler) CoursePerformance(c *gin.Context) {
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.analytics.CoursePerformance(ctx)
	})
}

// EnrollmentDrift godoc
// @Summary Courses whose enrollment counter disagrees with active registrations
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/enrollment-drift [get]
func (h *AnalyticsHandler) EnrollmentDrift(c *gin.Context) {
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		drift, err := h.analytics.EnrollmentDrift(ctx)
		return drift, false, err
	})
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	h.report(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.analytics.SystemMetrics(), false, nil
	})
}

func (h *AnalyticsHandler) report(c *gin.Context, fetch func(ctx context.Context) (interface{}, bool, error)) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	data, cacheHit, err := fetch(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ResponseMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, data, nil, meta)
}
