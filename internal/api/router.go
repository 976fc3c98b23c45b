package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/streakup/habit-tracker/docs"
	"github.com/streakup/habit-tracker/internal/api/handler"
	"github.com/streakup/habit-tracker/internal/api/metrics"
	"github.com/streakup/habit-tracker/internal/api/middleware"
	"github.com/streakup/habit-tracker/internal/core/ports"
	"github.com/streakup/habit-tracker/internal/infrastructure/config"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Auth   ports.AuthService
	Habits ports.HabitService
	Tokens ports.TokenService
	Users  ports.UserRepository

	// Registry receives the HTTP metrics and serves /metrics. Nil means a
	// fresh one from NewRegistry.
	Registry *prometheus.Registry
	// Metrics must be registered on Registry. Nil disables business metrics.
	Metrics *metrics.Metrics

	CORS   config.CORSConfig
	Checks map[string]handler.Pinger
	Log    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(cfg.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "habits",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Operational endpoints (no auth required) ---
	health := handler.NewHealthHandler(cfg.Checks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- API ---
	authHandler := handler.NewAuthHandler(cfg.Auth, cfg.Metrics)
	habitHandler := handler.NewHabitHandler(cfg.Habits, cfg.Metrics)

	api := e.Group("/api", middleware.Authenticate(cfg.Tokens, cfg.Users, cfg.Log))

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	habits := api.Group("/habits")
	habits.GET("", habitHandler.List)
	habits.POST("", habitHandler.Create)
	habits.DELETE("/:id", habitHandler.Delete)
	habits.POST("/:id/complete", habitHandler.Complete)

	return e
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
