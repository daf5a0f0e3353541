package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/service"
	"github.com/noah-isme/campus-admin-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.RegistrationDetail, error)
	Drop(ctx context.Context, req service.DropRequest) (*models.RegistrationDetail, error)
	Complete(ctx context.Context, req service.CompleteRequest) (*models.RegistrationDetail, error)
	StudentRegistrations(ctx context.Context, studentKey string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error)
	CourseEnrollments(ctx context.Context, courseCode string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error)
}

// EnrollmentHandler exposes the enrollment ledger.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Client = clientInfo(c)
	registration, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// Drop godoc
// @Summary Drop an active registration
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.DropRequest true "Drop payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	var req service.DropRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Client = clientInfo(c)
	registration, err := h.enrollments.Drop(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Complete godoc
// @Summary Complete an active registration with an optional grade
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CompleteRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	var req service.CompleteRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Client = clientInfo(c)
	registration, err := h.enrollments.Complete(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// StudentRegistrations godoc
// @Summary List a student's registrations
// @Tags Enrollments
// @Produce json
// @Param studentId path string true "Student ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/registrations [get]
func (h *EnrollmentHandler) StudentRegistrations(c *gin.Context) {
	registrations, err := h.enrollments.StudentRegistrations(c.Request.Context(), c.Param("studentId"), registrationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

// CourseEnrollments godoc
// @Summary List a course roster
// @Tags Enrollments
// @Produce json
// @Param courseCode path string true "Course code"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseCode}/enrollments [get]
func (h *EnrollmentHandler) CourseEnrollments(c *gin.Context) {
	registrations, err := h.enrollments.CourseEnrollments(c.Request.Context(), c.Param("courseCode"), registrationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

func registrationFilter(c *gin.Context) models.RegistrationFilter {
	return models.RegistrationFilter{Status: models.RegistrationStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))}
}
