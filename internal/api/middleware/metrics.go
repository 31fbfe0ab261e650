package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// HTTPRecorder receives per-request measurements.
type HTTPRecorder interface {
	RecordRequest(method, path, statusCode string, seconds float64, size int64)
	RequestStarted()
	RequestFinished()
}

// NewMetrics records request count, latency and response size per route.
// The route pattern is used as the path label so raw URLs never become
// label values; unmatched routes are reported as "unmatched".
func NewMetrics(rec HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rec == nil {
				return next(c)
			}

			start := time.Now()
			rec.RequestStarted()
			defer rec.RequestFinished()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				// The error handler runs after middleware; take the status it will use.
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			if status == 0 {
				status = http.StatusOK
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			rec.RecordRequest(c.Request().Method, path, strconv.Itoa(status),
				time.Since(start).Seconds(), c.Response().Size)
			return err
		}
	}
}
