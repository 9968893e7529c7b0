// Package zap4echo adapts the job control surface's echo router to
// zap structured logging: one access-log line per request, field names
// chosen for operators correlating a request against an audit event
// rather than a generic web access log.
package zap4echo

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const DefaultLoggerMsg = "job request served"

// LoggerConfig narrows the knobs actually used by the job API down
// from the general-purpose echo/zap adapter this is descended from:
// every request here is either a job submission or a status lookup,
// so there is no per-route skip/error-only distinction worth keeping.
type LoggerConfig struct {
	// FieldAdder attaches request-specific fields, e.g. the job id
	// path parameter on a status lookup.
	FieldAdder func(c echo.Context) []zapcore.Field
}

func Logger(log *zap.Logger) echo.MiddlewareFunc {
	return LoggerWithConfig(log, LoggerConfig{})
}

func LoggerWithConfig(log *zap.Logger, config LoggerConfig) echo.MiddlewareFunc {
	log = log.WithOptions(zap.WithCaller(false))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			herr := next(c)
			if herr != nil {
				c.Error(herr)
			}

			resp := c.Response()
			req := c.Request()
			latency := time.Since(start)

			fields := []zapcore.Field{
				zap.String("method", req.Method),
				zap.String("path", req.RequestURI),
				zap.Int("status", resp.Status),
				zap.Int64("response_size", resp.Size),
				zap.Duration("latency", latency),
				zap.String("client_ip", c.RealIP()),
			}

			if config.FieldAdder != nil {
				fields = append(fields, config.FieldAdder(c)...)
			}
			if herr != nil {
				fields = append(fields, zap.Error(herr))
			}

			switch s := resp.Status; {
			case s >= 500:
				log.Error(DefaultLoggerMsg, fields...)
			case s >= 400:
				log.Warn(DefaultLoggerMsg, fields...)
			default:
				log.Info(DefaultLoggerMsg, fields...)
			}

			return nil
		}
	}
}
