package api

import (
	"net/http"

	"tap4impact/internal/server/config"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestValidator adapts go-playground/validator to echo's Validator hook.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates the request validator used by all handlers.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator. Failures surface as 400 responses
// with the offending field in the message.
func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewRequestValidator()

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the payment endpoints only
	paymentLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health & stats
	e.GET("/api/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// PayFast checkout and callbacks
	e.POST("/api/payfast/create-payment", handler.HandleCreatePayment, paymentLimiter.Middleware())
	e.POST("/api/payfast/notify", handler.HandleNotify, paymentLimiter.Middleware())
	e.GET("/api/payfast/return", handler.HandleReturn)
	e.GET("/api/payfast/cancel", handler.HandleCancel)

	// Public project reads
	e.GET("/api/projects", handler.HandleListProjects)
	e.GET("/api/projects/featured", handler.HandleFeaturedProjects)
	e.GET("/api/projects/:id", handler.HandleGetProject)
	e.GET("/api/projects/:id/donations", handler.HandleProjectDonations)

	// Admin writes, gated on the shared bearer token
	admin := AdminAuth(cfg.AdminToken)
	e.POST("/api/donations", handler.HandleCreateDonation, admin)
	e.GET("/api/donations", handler.HandleListDonations, admin)
	e.POST("/api/projects", handler.HandleCreateProject, admin)
	e.PATCH("/api/projects/:id", handler.HandleUpdateProject, admin)
	e.POST("/api/admin/users", handler.HandleCreateUser, admin)

	return e
}
