package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-admin-api/internal/middleware"
	"github.com/noah-isme/campus-admin-api/internal/models"
)

// Handlers groups the resource handlers mounted under the API prefix.
type Handlers struct {
	Students    *StudentHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Fees        *FeeHandler
	Analytics   *AnalyticsHandler
}

// RegisterRoutes mounts every authenticated endpoint on api. Each desk role reaches its own
// resources; ADMIN reaches everything.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	api.Use(middleware.JWT(tokens))

	registrar := middleware.RequireRoles(models.RoleRegistrar)
	courseManager := middleware.RequireRoles(models.RoleCourseManager)
	bursar := middleware.RequireRoles(models.RoleBursar)
	analyst := middleware.RequireRoles(models.RoleAnalyst)
	anyDesk := middleware.RequireRoles(models.RoleRegistrar, models.RoleCourseManager, models.RoleBursar, models.RoleAnalyst)

	students := api.Group("/students")
	students.POST("", registrar, h.Students.Create)
	students.GET("", anyDesk, h.Students.List)
	students.GET("/:studentId", anyDesk, h.Students.Get)
	students.PUT("/:studentId", registrar, h.Students.Update)
	students.DELETE("/:studentId", registrar, h.Students.Delete)
	students.GET("/:studentId/registrations", registrar, h.Enrollments.StudentRegistrations)
	students.GET("/:studentId/activities", anyDesk, h.Students.Activities)
	students.GET("/:studentId/payments", bursar, h.Fees.PaymentHistory)
	students.GET("/:studentId/balance/:courseCode", bursar, h.Fees.Balance)
	students.GET("/:studentId/statement/:courseCode", bursar, h.Fees.Statement)

	courses := api.Group("/courses")
	courses.POST("", courseManager, h.Courses.Create)
	courses.GET("", anyDesk, h.Courses.List)
	courses.GET("/:courseCode", anyDesk, h.Courses.Get)
	courses.PUT("/:courseCode", courseManager, h.Courses.Update)
	courses.DELETE("/:courseCode", courseManager, h.Courses.Deactivate)
	courses.GET("/:courseCode/enrollments", middleware.RequireRoles(models.RoleRegistrar, models.RoleCourseManager), h.Enrollments.CourseEnrollments)
	courses.GET("/:courseCode/fees", middleware.RequireRoles(models.RoleCourseManager, models.RoleBursar), h.Fees.CourseFees)
	courses.POST("/:courseCode/fees", courseManager, h.Fees.CreateFeeStructure)

	enrollments := api.Group("/enrollments", registrar)
	enrollments.POST("", h.Enrollments.Enroll)
	enrollments.POST("/drop", h.Enrollments.Drop)
	enrollments.POST("/complete", h.Enrollments.Complete)

	fees := api.Group("/fees")
	fees.GET("/types", anyDesk, h.Fees.Types)
	fees.DELETE("/:id", courseManager, h.Fees.DeactivateFeeStructure)

	api.POST("/payments", bursar, h.Fees.RecordPayment)

	analytics := api.Group("/analytics", analyst)
	analytics.GET("/enrollment", h.Analytics.Enrollment)
	analytics.GET("/demographics", h.Analytics.Demographics)
	analytics.GET("/financial", h.Analytics.Financial)
	analytics.GET("/activity", h.Analytics.Activity)
	analytics.GET("/course-performance", h.Analytics.CoursePerformance)
	analytics.GET("/enrollment-drift", h.Analytics.EnrollmentDrift)
	analytics.GET("/system", h.Analytics.System)
}
