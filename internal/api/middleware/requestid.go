package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/vaultd/internal/logger"
)

// NewRequestID assigns every request a UUID correlation ID, echoed in the
// X-Request-ID response header. A client-supplied ID is kept. The ID is
// also stored in the request context as the logger trace ID, so any logger
// derived with WithContext tags its lines with it.
func NewRequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	})
}

// CorrelationID returns the request's correlation ID, or a fresh one when
// the request ID middleware did not run.
func CorrelationID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}
