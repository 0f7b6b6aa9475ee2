// Package api exposes jobs over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"thirdcoast.systems/shorts/internal/jobs"
)

// Store is the persistence the API reads and writes.
type Store interface {
	CreateJob(ctx context.Context, userRef, sourceRef string, settings jobs.Settings) (*jobs.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*jobs.Job, error)
	ListFragments(ctx context.Context, jobID uuid.UUID) ([]*jobs.Fragment, error)
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

type Server struct {
	*echo.Echo
	store  Store
	limits jobs.FragmentLimits
}

type requestValidator struct{ v *validator.Validate }

func (rv *requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// NewServer builds the echo instance with routes and middleware registered.
func NewServer(store Store, limits jobs.FragmentLimits) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}

	s := &Server{Echo: e, store: store, limits: limits}
	s.setupMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.Use(middleware.BodyLimit("64K"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      func(c echo.Context) bool { return c.Path() == "/healthz" },
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
}

func (s *Server) registerRoutes() {
	s.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	g := s.Group("/api/jobs")
	g.POST("", s.handleCreate)
	g.GET("", s.handleList)
	g.GET("/:id", s.handleGet)
	g.POST("/:id/cancel", s.handleCancel)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "addr", addr)
	if err := s.Start(addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
