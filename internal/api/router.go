// Package api wires the HTTP surface of the account recovery service.
//
// @title        Account Recovery API
// @version      1.0
// @description  Registration, login and password reset.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	// Registers the swagger document served under /swagger.
	_ "github.com/99minutos/account-recovery/docs"
	"github.com/99minutos/account-recovery/internal/api/handler"
	"github.com/99minutos/account-recovery/internal/api/middleware"
	"github.com/99minutos/account-recovery/internal/core/ports"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	Auth     ports.AuthService
	Sessions ports.SessionIssuer
	// Health lists the backends checked by /health/ready, keyed by name.
	Health map[string]handler.Pinger
	Log    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	e.POST("/register", authHandler.Register)
	e.POST("/login", authHandler.Login)
	e.POST("/request-password-reset", authHandler.RequestPasswordReset)
	e.POST("/set-new-password", authHandler.SetNewPassword)
	e.GET("/me", authHandler.Me, middleware.Auth(deps.Sessions))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler(deps.Health)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
