package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/platform/auth"
	"github.com/thairide/service-booking/internal/platform/middleware"
	"github.com/thairide/service-booking/internal/platform/response"
)

// DisputeHandler handles dispute submission and lookup. Review lives under the admin routes.
type DisputeHandler struct {
	service *application.DisputeService
}

// NewDisputeHandler creates a new DisputeHandler.
func NewDisputeHandler(service *application.DisputeService) *DisputeHandler {
	return &DisputeHandler{service: service}
}

// RegisterRoutes registers dispute routes.
func (h *DisputeHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	r.POST("/api/v1/bookings/:id/dispute", authMW, middleware.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.SubmitDispute)
	r.GET("/api/v1/disputes/:id", authMW, h.GetDispute)
}

// SubmitDispute handles POST /api/v1/bookings/:id/dispute.
func (h *DisputeHandler) SubmitDispute(c *gin.Context) {
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.SubmitDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SubmitDispute(c.Request.Context(), bookingID, caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetDispute handles GET /api/v1/disputes/:id.
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	disputeID, ok := pathID(c, "id", "dispute")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetDispute(c.Request.Context(), disputeID, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
