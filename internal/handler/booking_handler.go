package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/application"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/platform/auth"
	"github.com/thairide/service-booking/internal/platform/middleware"
	"github.com/thairide/service-booking/internal/platform/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	customer := middleware.RequireRole(auth.RoleCustomer)
	drv := middleware.RequireRole(auth.RoleDriver)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", customer, h.CreateBooking)
		bookings.POST("/quote", h.QuoteFare)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/transitions", h.RequestTransition)
		bookings.POST("/:id/accept", drv, h.AcceptAssignment)
		bookings.POST("/:id/reject", drv, h.RejectAssignment)
		bookings.POST("/:id/arrived", drv, h.MarkArrived)
		bookings.POST("/:id/start", drv, h.StartTrip)
		bookings.POST("/:id/complete", drv, h.CompleteTrip)
		bookings.POST("/:id/no-show", middleware.RequireRole(auth.RoleDriver, auth.RoleAdmin), h.ReportNoShow)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/rating", customer, h.SubmitRating)
	}
}

type transitionBody struct {
	Target         string     `json:"target" binding:"required"`
	Reason         string     `json:"reason" binding:"max=500"`
	DriverID       *uuid.UUID `json:"driver_id"`
	ExpectedStatus string     `json:"expected_status"`
}

type reasonBody struct {
	Reason string `json:"reason" binding:"max=500"`
}

type cancelBody struct {
	Reason         string `json:"reason" binding:"max=500"`
	ExpectedStatus string `json:"expected_status"`
}

// maxWaitSeconds caps a reported wait at one day, well inside time.Duration's range.
const maxWaitSeconds = 86400

type noShowBody struct {
	// WaitedSeconds is only consulted when no arrival was recorded.
	WaitedSeconds *int64 `json:"waited_seconds" binding:"omitempty,min=0,max=86400"`
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), caller.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// QuoteFare handles POST /api/v1/bookings/quote.
func (h *BookingHandler) QuoteFare(c *gin.Context) {
	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	fare, err := h.service.QuoteFare(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"fare_satang": fare, "currency": "THB"})
}

// ListBookings handles GET /api/v1/bookings. Customers see their own, drivers their assigned, admins all.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	f, ok := bookingFilter(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	switch caller.Actor {
	case bookingDomain.ActorCustomer:
		result, err := h.service.GetCustomerBookings(ctx, caller.UserID, f)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	case bookingDomain.ActorDriver:
		result, err := h.service.GetDriverBookings(ctx, caller.UserID, f)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	default:
		items, total, err := h.service.ListAllBookings(ctx, f)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, items, total, f.Page, f.Limit)
	}
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RequestTransition handles POST /api/v1/bookings/:id/transitions.
func (h *BookingHandler) RequestTransition(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	target, err := bookingDomain.ParseBookingStatus(body.Target)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := application.TransitionRequest{
		BookingID: bookingID,
		Target:    target,
		Caller:    caller,
		DriverID:  body.DriverID,
		Reason:    body.Reason,
	}
	if req.ExpectedStatus, ok = expectedStatus(c, body.ExpectedStatus); !ok {
		return
	}

	result, err := h.service.RequestTransition(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptAssignment handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptAssignment(c *gin.Context) {
	h.simpleTransition(c, h.service.AcceptAssignment)
}

// RejectAssignment handles POST /api/v1/bookings/:id/reject.
func (h *BookingHandler) RejectAssignment(c *gin.Context) {
	h.reasonTransition(c, h.service.RejectAssignment)
}

// StartTrip handles POST /api/v1/bookings/:id/start.
func (h *BookingHandler) StartTrip(c *gin.Context) {
	h.simpleTransition(c, h.service.StartTrip)
}

// CompleteTrip handles POST /api/v1/bookings/:id/complete.
func (h *BookingHandler) CompleteTrip(c *gin.Context) {
	h.simpleTransition(c, h.service.CompleteTrip)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel. An optional expected_status names the
// status the client saw, so a cancel that lost a race is reported as stale.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var body cancelBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	req := application.TransitionRequest{
		BookingID: bookingID,
		Target:    bookingDomain.StatusCancelled,
		Caller:    caller,
		Reason:    body.Reason,
	}
	if req.ExpectedStatus, ok = expectedStatus(c, body.ExpectedStatus); !ok {
		return
	}

	result, err := h.service.RequestTransition(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// MarkArrived handles POST /api/v1/bookings/:id/arrived.
func (h *BookingHandler) MarkArrived(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.service.MarkDriverArrived(c.Request.Context(), bookingID, caller, nil)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReportNoShow handles POST /api/v1/bookings/:id/no-show.
func (h *BookingHandler) ReportNoShow(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var body noShowBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	var waited *time.Duration
	if body.WaitedSeconds != nil {
		d := time.Duration(min(*body.WaitedSeconds, maxWaitSeconds)) * time.Second
		waited = &d
	}

	result, err := h.service.ReportNoShow(c.Request.Context(), bookingID, caller, waited)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SubmitRating handles POST /api/v1/bookings/:id/rating.
func (h *BookingHandler) SubmitRating(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SubmitRating(c.Request.Context(), bookingID, caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func (h *BookingHandler) simpleTransition(
	c *gin.Context,
	fn func(ctx context.Context, bookingID uuid.UUID, caller application.Caller) (*application.TransitionResult, error),
) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), bookingID, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func (h *BookingHandler) reasonTransition(
	c *gin.Context,
	fn func(ctx context.Context, bookingID uuid.UUID, caller application.Caller, reason string) (*application.TransitionResult, error),
) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var body reasonBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := fn(c.Request.Context(), bookingID, caller, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
