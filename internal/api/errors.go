package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/vaultd/internal/api/middleware"
	"github.com/tphakala/vaultd/internal/errors"
	"github.com/tphakala/vaultd/internal/logger"
	"github.com/tphakala/vaultd/internal/vault"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // matches the X-Request-ID header and the log line
}

// statusForReason maps a vault failure reason to an HTTP status.
func statusForReason(reason vault.Reason) int {
	switch reason {
	case vault.ReasonInvalidRequest:
		return http.StatusBadRequest
	case vault.ReasonNotFound:
		return http.StatusNotFound
	case vault.ReasonPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an ErrorResponse. err is logged, tagged with the
// request's trace ID, but never sent to the client; message is.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Error:         message,
		Code:          code,
		CorrelationID: mw.CorrelationID(c),
	}

	fields := []logger.Field{
		logger.String("method", c.Request().Method),
		logger.String("path", c.Path()),
		logger.Int("code", code),
		logger.String("message", message),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}

	log := s.log.WithContext(c.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}

	return c.JSON(code, resp)
}

// handleVaultError converts a vault failure into a response.
func (s *Server) handleVaultError(c echo.Context, err error) error {
	var ve *vault.Error
	if errors.As(err, &ve) {
		return s.HandleError(c, ve.Err, ve.Message, statusForReason(ve.Reason))
	}
	return s.HandleError(c, err, "Internal server error", http.StatusInternalServerError)
}

// httpErrorHandler renders errors that escape handlers, such as unknown
// routes, oversized bodies and recovered panics, in the same JSON shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = s.HandleError(c, err, message, code)
	}
	if err != nil {
		s.log.Error("failed to write error response", logger.Error(err))
	}
}
