package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-admin-api/internal/dto"
	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/service"
	"github.com/noah-isme/campus-admin-api/pkg/response"
)

type feeService interface {
	FeeTypes() []models.FeeType
	CreateFeeStructure(ctx context.Context, req service.CreateFeeStructureRequest) (*models.FeeStructure, error)
	CourseFees(ctx context.Context, courseCode string) (*dto.CourseFeesResponse, error)
	DeactivateFeeStructure(ctx context.Context, id string) error
	RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*dto.PaymentReceipt, error)
	Balance(ctx context.Context, studentKey, courseCode string) (*dto.BalanceResponse, error)
	PaymentHistory(ctx context.Context, studentKey, courseCode string) ([]models.PaymentDetail, error)
	Statement(ctx context.Context, studentKey, courseCode, format string) (*dto.Statement, error)
}

// FeeHandler exposes the fee ledger.
type FeeHandler struct {
	fees feeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees feeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Types godoc
// @Summary List fee types
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fees/types [get]
func (h *FeeHandler) Types(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.fees.FeeTypes(), nil)
}

// CourseFees godoc
// @Summary List active fees of a course
// @Tags Fees
// @Produce json
// @Param courseCode path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseCode}/fees [get]
func (h *FeeHandler) CourseFees(c *gin.Context) {
	fees, err := h.fees.CourseFees(c.Request.Context(), c.Param("courseCode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// CreateFeeStructure godoc
// @Summary Attach a fee to a course
// @Tags Fees
// @Accept json
// @Produce json
// @Param courseCode path string true "Course code"
// @Param payload body service.CreateFeeStructureRequest true "Fee payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{courseCode}/fees [post]
func (h *FeeHandler) CreateFeeStructure(c *gin.Context) {
	var req service.CreateFeeStructureRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CourseCode = c.Param("courseCode")
	fee, err := h.fees.CreateFeeStructure(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// DeactivateFeeStructure godoc
// @Summary Deactivate a fee structure
// @Tags Fees
// @Produce json
// @Param id path string true "Fee structure ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [delete]
func (h *FeeHandler) DeactivateFeeStructure(c *gin.Context) {
	if err := h.fees.DeactivateFeeStructure(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "fee structure deactivated")
}

// RecordPayment godoc
// @Summary Record a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments [post]
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Client = clientInfo(c)
	receipt, err := h.fees.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Balance godoc
// @Summary Student balance for a course
// @Tags Payments
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseCode path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/balance/{courseCode} [get]
func (h *FeeHandler) Balance(c *gin.Context) {
	balance, err := h.fees.Balance(c.Request.Context(), c.Param("studentId"), c.Param("courseCode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// PaymentHistory godoc
// @Summary Student payment history
// @Tags Payments
// @Produce json
// @Param studentId path string true "Student ID"
// @Param course_code query string false "Only payments allocated to this course"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/payments [get]
func (h *FeeHandler) PaymentHistory(c *gin.Context) {
	payments, err := h.fees.PaymentHistory(c.Request.Context(), c.Param("studentId"), c.Query("course_code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Statement godoc
// @Summary Download a fee statement
// @Tags Payments
// @Produce text/csv
// @Produce application/pdf
// @Param studentId path string true "Student ID"
// @Param courseCode path string true "Course code"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /students/{studentId}/statement/{courseCode} [get]
func (h *FeeHandler) Statement(c *gin.Context) {
	statement, err := h.fees.Statement(c.Request.Context(), c.Param("studentId"), c.Param("courseCode"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, statement.Filename, statement.ContentType, statement.Body)
}
