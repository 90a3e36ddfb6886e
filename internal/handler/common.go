package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/application"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/platform/middleware"
	"github.com/thairide/service-booking/internal/platform/response"
)

// callerFrom builds the application caller from the authenticated token.
// It writes a 401 and returns false when the token context is missing.
func callerFrom(c *gin.Context) (application.Caller, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Caller{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Caller{}, false
	}
	actor, err := bookingDomain.ParseActor(role)
	if err != nil || actor == bookingDomain.ActorSystem {
		response.Unauthorized(c, "unknown role")
		return application.Caller{}, false
	}
	return application.Caller{Actor: actor, UserID: userID}, true
}

// pathID parses a UUID path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// bookingFilter reads page, limit and an optional status query parameter.
func bookingFilter(c *gin.Context) (bookingDomain.ListFilter, bool) {
	page, limit := parsePagination(c)
	f := bookingDomain.ListFilter{Page: page, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status, err := bookingDomain.ParseBookingStatus(raw)
		if err != nil {
			response.Error(c, err)
			return f, false
		}
		f.Status = status
	}
	return f, true
}

// expectedStatus parses an optional expected_status field. An empty value means none was given.
func expectedStatus(c *gin.Context, raw string) (bookingDomain.BookingStatus, bool) {
	if raw == "" {
		return "", true
	}
	status, err := bookingDomain.ParseBookingStatus(raw)
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return status, true
}
