package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/middleware"
	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth        *AuthHandler
	Schools     *SchoolHandler
	Sessions    *SessionHandler
	Users       *UserHandler
	Students    *StudentHandler
	Classes     *ClassHandler
	Enrollments *EnrollmentHandler
	Fees        *FeeHandler
	Payments    *PaymentHandler
	Discounts   *DiscountHandler
	Attendance  *AttendanceHandler
	Reports     *ReportHandler
	Exports     *ExportHandler
}

// RouteConfig toggles optional route groups.
type RouteConfig struct {
	ReportsEnabled bool
}

// RegisterRoutes mounts every API route under the prefix group. Routes are
// split into a public slice (auth) and a protected slice behind JWT, school
// scoping and per-role RBAC.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth *service.AuthService, cfg RouteConfig) {
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(auth))
	authed.GET("/auth/me", h.Auth.Me)

	// Tenant management is developer-only and needs no school scope.
	schools := authed.Group("/schools", middleware.RBAC(models.RoleDeveloper))
	{
		schools.GET("", h.Schools.List)
		schools.GET("/:id", h.Schools.Get)
		schools.POST("", h.Schools.Create)
		schools.PUT("/:id", h.Schools.Update)
		schools.POST("/:id/suspend", h.Schools.Suspend)
		schools.POST("/:id/reinstate", h.Schools.Reinstate)
	}

	scoped := authed.Group("", middleware.SchoolScope())

	admin := []models.UserRole{models.RoleAdmin}
	staff := []models.UserRole{models.RoleAdmin, models.RoleTeacher}
	everyone := []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleStudent}

	sessions := scoped.Group("/sessions")
	{
		sessions.GET("", middleware.RBAC(everyone...), h.Sessions.List)
		sessions.GET("/context", middleware.RBAC(everyone...), h.Sessions.Context)
		sessions.POST("", middleware.RBAC(admin...), h.Sessions.Create)
		sessions.PUT("/:id", middleware.RBAC(admin...), h.Sessions.Update)
		sessions.POST("/:id/current", middleware.RBAC(admin...), h.Sessions.SetCurrent)
	}

	users := scoped.Group("/users", middleware.RBAC(admin...))
	{
		users.GET("", h.Users.List)
		users.GET("/:id", h.Users.Get)
		users.POST("", h.Users.Create)
		users.PUT("/:id", h.Users.Update)
	}

	students := scoped.Group("/students")
	{
		students.GET("", middleware.RBAC(staff...), h.Students.List)
		students.GET("/:id", middleware.RBAC(everyone...), h.Students.Get)
		students.POST("", middleware.RBAC(admin...), h.Students.Create)
		students.PUT("/:id", middleware.RBAC(admin...), h.Students.Update)
		students.GET("/:id/fees", middleware.RBAC(everyone...), h.Fees.StudentLedger)
		students.GET("/:id/discounts", middleware.RBAC(staff...), h.Discounts.ListByStudent)
		students.GET("/:id/attendance", middleware.RBAC(everyone...), h.Attendance.StudentSummaries)
		students.GET("/:id/attendance/summary", middleware.RBAC(everyone...), h.Attendance.Summary)
	}

	classes := scoped.Group("/classes")
	{
		classes.GET("", middleware.RBAC(everyone...), h.Classes.List)
		classes.GET("/:id", middleware.RBAC(everyone...), h.Classes.Get)
		classes.POST("", middleware.RBAC(admin...), h.Classes.Create)
		classes.PUT("/:id", middleware.RBAC(admin...), h.Classes.Update)
		classes.DELETE("/:id", middleware.RBAC(admin...), h.Classes.Delete)
		classes.GET("/:id/roster", middleware.RBAC(staff...), h.Enrollments.Roster)
		classes.POST("/:id/attendance", middleware.RBAC(staff...), h.Attendance.Take)
		classes.GET("/:id/attendance", middleware.RBAC(staff...), h.Attendance.ForDate)
	}

	enrollments := scoped.Group("/enrollments")
	{
		enrollments.GET("", middleware.RBAC(staff...), h.Enrollments.List)
		enrollments.POST("", middleware.RBAC(admin...), h.Enrollments.Enroll)
		enrollments.POST("/:id/transfer", middleware.RBAC(admin...), h.Enrollments.Transfer)
		enrollments.DELETE("/:id", middleware.RBAC(admin...), h.Enrollments.Withdraw)
	}

	fees := scoped.Group("/fees")
	{
		fees.GET("", middleware.RBAC(staff...), h.Fees.List)
		fees.GET("/structures", middleware.RBAC(staff...), h.Fees.ListStructures)
		fees.GET("/structures/:id", middleware.RBAC(staff...), h.Fees.GetStructure)
		fees.POST("/structures", middleware.RBAC(admin...), h.Fees.CreateStructure)
		fees.PUT("/structures/:id", middleware.RBAC(admin...), h.Fees.UpdateStructure)
		fees.DELETE("/structures/:id", middleware.RBAC(admin...), h.Fees.DeleteStructure)
		fees.POST("/structures/:id/assign", middleware.RBAC(admin...), h.Fees.Assign)
		fees.POST("/assign", middleware.RBAC(admin...), h.Fees.BulkAssign)
		fees.POST("/:id/payments", middleware.RBAC(admin...), h.Payments.RecordPayment)
		fees.POST("/:id/fines", middleware.RBAC(admin...), h.Payments.RecordFine)
		fees.GET("/:id/transactions", middleware.RBAC(staff...), h.Payments.FeeHistory)
	}

	payments := scoped.Group("/payments", middleware.RBAC(staff...))
	{
		payments.GET("/receipts/:receiptNumber", h.Payments.Receipt)
		payments.GET("/transactions", h.Payments.Transactions)
	}

	discounts := scoped.Group("/discounts", middleware.RBAC(admin...))
	{
		discounts.POST("", h.Discounts.Apply)
		discounts.DELETE("/:id", h.Discounts.Revoke)
	}

	attendance := scoped.Group("/attendance", middleware.RBAC(staff...))
	{
		attendance.GET("", h.Attendance.List)
	}

	if cfg.ReportsEnabled {
		reports := scoped.Group("/reports", middleware.RBAC(staff...))
		{
			reports.GET("/fees/statistics", h.Reports.FeeStatistics)
			reports.GET("/fees/collection/daily", h.Reports.DailyCollection)
			reports.GET("/fees/collection/monthly", h.Reports.MonthlyCollection)
			reports.GET("/fees/payment-methods", h.Reports.PaymentMethods)
			reports.GET("/fees/classes", h.Reports.ClassCollections)
			reports.GET("/attendance/classes/:id", h.Reports.ClassAttendance)
			reports.GET("/attendance/classes/:id/trends", h.Reports.AttendanceTrends)
			reports.GET("/attendance/students/:id", h.Reports.StudentAttendance)
		}
	}

	exports := scoped.Group("/exports", middleware.RBAC(staff...))
	{
		exports.GET("/fees", h.Exports.FeeReportCSV)
		exports.GET("/classes/:id/attendance", h.Exports.AttendanceSheetCSV)
		exports.GET("/receipts/:receiptNumber", h.Exports.ReceiptPDF)
		exports.POST("/receipts/:receiptNumber/queue", h.Exports.QueueReceiptPDF)
	}
}
