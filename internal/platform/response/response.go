package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thairide/service-booking/internal/platform/domain"
)

// Envelope is the JSON body of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody carries the reason code the presentation layer renders.
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries pagination details.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes 200 with a page of items.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: total, Page: page, Limit: limit, TotalPages: pages},
	})
}

// BadRequest writes 400 with a validation message.
func BadRequest(c *gin.Context, msg string) {
	Error(c, domain.NewValidationError(msg))
}

// Unauthorized writes 401.
func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
		Error: &ErrorBody{Kind: "unauthorized", Code: "unauthorized", Message: msg},
	})
}

// Error maps err to a status code. Errors that are not DomainErrors become 500 with a generic message.
func Error(c *gin.Context, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, Envelope{
			Error: &ErrorBody{Kind: "internal", Code: "internal_error", Message: "internal server error"},
		})
		return
	}
	c.JSON(StatusFor(de.Kind), Envelope{
		Error: &ErrorBody{Kind: string(de.Kind), Code: de.Code, Message: de.Message, Details: de.Details},
	})
}

// StatusFor returns the HTTP status used for a domain error kind.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindInvalidTransition, domain.KindConflict, domain.KindDriverUnavailable:
		return http.StatusConflict
	case domain.KindPolicyViolation:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
