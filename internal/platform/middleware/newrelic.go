package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicMiddleware instruments requests when an agent is configured, and is a no-op otherwise.
func NewRelicMiddleware(app *newrelic.Application) gin.HandlerFunc {
	if app == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return nrgin.Middleware(app)
}
