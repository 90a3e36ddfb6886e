package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/auth"
	"github.com/thairide/service-booking/internal/platform/middleware"
	"github.com/thairide/service-booking/internal/platform/response"
)

// AdminHandler handles admin HTTP requests for bookings, policy, disputes and drivers.
type AdminHandler struct {
	bookings *application.BookingService
	disputes *application.DisputeService
	drivers  *application.DriverService
	policies *application.PolicyService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	bookings *application.BookingService,
	disputes *application.DisputeService,
	drivers *application.DriverService,
	policies *application.PolicyService,
) *AdminHandler {
	return &AdminHandler{bookings: bookings, disputes: disputes, drivers: drivers, policies: policies}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.POST("/bookings/:id/confirm", h.ConfirmBooking)
		admin.POST("/bookings/:id/assign", h.AssignDriver)
		admin.GET("/stats/bookings", h.BookingStats)

		admin.GET("/policy", h.CurrentPolicy)
		admin.GET("/policy/history", h.PolicyHistory)
		admin.POST("/policy", h.PublishPolicy)

		admin.GET("/disputes", h.ListDisputes)
		admin.POST("/disputes/:id/review", h.StartDisputeReview)
		admin.POST("/disputes/:id/resolve", h.ResolveDispute)
		admin.POST("/disputes/:id/reject", h.RejectDispute)

		admin.GET("/drivers", h.ListDrivers)
	}
}

type assignBody struct {
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	f, ok := bookingFilter(c)
	if !ok {
		return
	}

	bookings, total, err := h.bookings.ListAllBookings(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, f.Page, f.Limit)
}

// ConfirmBooking handles POST /api/v1/admin/bookings/:id/confirm.
func (h *AdminHandler) ConfirmBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.bookings.ConfirmBooking(c.Request.Context(), bookingID, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AssignDriver handles POST /api/v1/admin/bookings/:id/assign.
func (h *AdminHandler) AssignDriver(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.AssignDriver(c.Request.Context(), bookingID, body.DriverID, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// CurrentPolicy handles GET /api/v1/admin/policy.
func (h *AdminHandler) CurrentPolicy(c *gin.Context) {
	cfg, err := h.policies.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, cfg)
}

// PolicyHistory handles GET /api/v1/admin/policy/history.
func (h *AdminHandler) PolicyHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	versions, err := h.policies.History(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, versions)
}

// PublishPolicy handles POST /api/v1/admin/policy. The body is a full policy; its version is assigned on publish.
func (h *AdminHandler) PublishPolicy(c *gin.Context) {
	var cfg policy.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	published, err := h.policies.Publish(c.Request.Context(), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, published)
}

// ListDisputes handles GET /api/v1/admin/disputes.
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	page, limit := parsePagination(c)
	var status dispute.Status
	if raw := c.Query("status"); raw != "" {
		s, err := dispute.ParseStatus(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		status = s
	}

	items, total, err := h.disputes.ListDisputes(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// StartDisputeReview handles POST /api/v1/admin/disputes/:id/review.
func (h *AdminHandler) StartDisputeReview(c *gin.Context) {
	disputeID, ok := pathID(c, "id", "dispute")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.disputes.StartReview(c.Request.Context(), disputeID, caller.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ResolveDispute handles POST /api/v1/admin/disputes/:id/resolve.
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	h.closeDispute(c, h.disputes.Resolve)
}

// RejectDispute handles POST /api/v1/admin/disputes/:id/reject.
func (h *AdminHandler) RejectDispute(c *gin.Context) {
	h.closeDispute(c, h.disputes.Reject)
}

func (h *AdminHandler) closeDispute(
	c *gin.Context,
	fn func(ctx context.Context, disputeID, adminID uuid.UUID, req application.ResolveDisputeRequest) (*application.DisputeDTO, error),
) {
	disputeID, ok := pathID(c, "id", "dispute")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := fn(c.Request.Context(), disputeID, caller.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListDrivers handles GET /api/v1/admin/drivers.
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	page, limit := parsePagination(c)
	status := driver.Status(c.Query("status"))
	if status != "" && !status.IsValid() {
		response.BadRequest(c, "invalid driver status")
		return
	}

	items, total, err := h.drivers.ListDrivers(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}
