// Package httpapi is the optional HTTP control surface (§6.2): an
// external caller translates user intent into job submissions over
// this, rather than any GUI or CLI being part of the core itself.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mechiko/pdfsanitize/internal/zap4echo"
	"go.uber.org/zap"
)

const (
	defaultAddr            = "127.0.0.1:8888"
	defaultShutdownTimeout = 5 * time.Second
)

// Server wraps an echo.Echo configured to expose the job submission
// API over the loopback interface. Remote exposure is an operator
// deployment decision, not something this package defaults to.
type Server struct {
	echo            *echo.Echo
	addr            string
	notify          chan error
	shutdownTimeout time.Duration
}

// New builds a Server bound to host:port, wiring zap-backed access
// logging/panic-recovery and the job routes against jobs.
func New(host, port string, jobs *JobService, log *zap.Logger) (*Server, error) {
	addr := fmt.Sprintf("%s:%s", host, port)
	if port == "" {
		addr = defaultAddr
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.Use(zap4echo.Logger(log), zap4echo.Recover(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{},
		AllowMethods: []string{echo.GET, echo.POST},
	}))

	s := &Server{
		echo:            e,
		addr:            addr,
		notify:          make(chan error, 1),
		shutdownTimeout: defaultShutdownTimeout,
	}
	registerRoutes(e, jobs)
	return s, nil
}

// Start runs the server in a goroutine; errors surface on Notify.
func (s *Server) Start() {
	go func() {
		s.notify <- s.echo.Start(s.addr)
		close(s.notify)
	}()
}

// Notify reports the server's terminal error, if any.
func (s *Server) Notify() <-chan error { return s.notify }

// Shutdown gracefully stops the server within its shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router, mainly so tests can drive
// requests against it directly without a live listener.
func (s *Server) Echo() *echo.Echo { return s.echo }
