package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/anonqr/identity-service/docs"
	"github.com/anonqr/identity-service/internal/api/handler"
	"github.com/anonqr/identity-service/internal/api/middleware"
	"github.com/anonqr/identity-service/internal/core/ports"
	"github.com/anonqr/identity-service/internal/infrastructure/http/handlers"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Service ports.UserService
	Logger  zerolog.Logger
	Handler handler.Options
	// Health lists the dependencies probed by /health/ready.
	Health map[string]handlers.Pinger
	// Registerer and Gatherer default to the process-wide Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "identity",
		Registerer: d.Registerer,
	}))
	e.Use(middleware.RequestLogger(d.Logger))

	users := handler.NewUserHandler(d.Service, d.Handler)

	// --- Identity ---
	e.POST("/start", users.Start)
	e.POST("/api/start", users.Start)
	e.PUT("/email", users.SetEmail)
	e.PUT("/pseudo", users.SetPseudo)

	// --- Scanned links: reachable by anyone holding the id ---
	noStore := middleware.NoStore()
	e.GET("/r/:id", users.Redirect, noStore)
	e.GET("/api/profile/:id", users.Profile, noStore)
	e.GET("/app/profile/:id", users.ProfilePage, noStore)
	e.GET("/qr/:file", users.QRImage, noStore)

	// --- Health probes ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewHealthDependenciesHandler(d.Health).Readiness)

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
