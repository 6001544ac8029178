package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/services/metrics"
)

// metricsMiddleware records the count and latency of requests per registered route.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			code := ctx.Response().Status
			if err != nil {
				code = http.StatusInternalServerError
				if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
					code = herr.Code
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method

			metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
			metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// requireUser loads the authenticated user into the context, answering 404 when it no longer exists.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := getContextUser(ctx, s.deps.UserSvc); err != nil {
			return err
		}
		return next(ctx)
	}
}
