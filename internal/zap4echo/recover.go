package zap4echo

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const DefaultRecoverMsg = "recovered from panic handling job request"

// Recover logs a panicking handler and converts it into a 500 instead
// of tearing down the whole control-surface process — a malformed
// JobRequest body must never be able to crash the controller's HTTP
// front end, only fail the one request that triggered it.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", r)
					}
					c.Error(err)

					req := c.Request()
					log.Error(DefaultRecoverMsg,
						zap.Any("error", r),
						zap.String("method", req.Method),
						zap.String("path", req.RequestURI),
						zap.String("client_ip", c.RealIP()),
					)
				}
			}()
			return next(c)
		}
	}
}
