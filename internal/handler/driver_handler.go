package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/platform/auth"
	"github.com/thairide/service-booking/internal/platform/middleware"
	"github.com/thairide/service-booking/internal/platform/response"
)

// DriverHandler handles driver profile and availability requests.
type DriverHandler struct {
	service *application.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(service *application.DriverService) *DriverHandler {
	return &DriverHandler{service: service}
}

// RegisterRoutes registers driver routes.
func (h *DriverHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	driverOrAdmin := middleware.RequireRole(auth.RoleDriver, auth.RoleAdmin)

	drivers := r.Group("/api/v1/drivers")
	drivers.Use(authMW)
	{
		drivers.POST("", driverOrAdmin, h.Register)
		drivers.GET("/me", middleware.RequireRole(auth.RoleDriver), h.GetMyProfile)
		drivers.GET("/:id", h.GetDriver)
		drivers.POST("/:id/online", driverOrAdmin, h.GoOnline)
		drivers.POST("/:id/offline", driverOrAdmin, h.GoOffline)
	}
}

// Register handles POST /api/v1/drivers.
func (h *DriverHandler) Register(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Register(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetMyProfile handles GET /api/v1/drivers/me.
func (h *DriverHandler) GetMyProfile(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetMyProfile(c.Request.Context(), caller.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetDriver handles GET /api/v1/drivers/:id.
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driverID, ok := pathID(c, "id", "driver")
	if !ok {
		return
	}

	result, err := h.service.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GoOnline handles POST /api/v1/drivers/:id/online.
func (h *DriverHandler) GoOnline(c *gin.Context) {
	h.setOnline(c, true)
}

// GoOffline handles POST /api/v1/drivers/:id/offline.
func (h *DriverHandler) GoOffline(c *gin.Context) {
	h.setOnline(c, false)
}

func (h *DriverHandler) setOnline(c *gin.Context, online bool) {
	driverID, ok := pathID(c, "id", "driver")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.service.SetOnline(c.Request.Context(), caller, driverID, online)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
