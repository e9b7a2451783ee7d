package api

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"tap4impact/internal/payfast"
	"tap4impact/internal/server/database"
	"tap4impact/internal/server/service"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the donation API.
type Handler struct {
	ledger   *service.Ledger
	projects *service.Projects
	users    *service.Users
	payments *service.Payments
	db       *database.DB
}

// NewHandler creates a new handler with its service dependencies.
func NewHandler(ledger *service.Ledger, projects *service.Projects, users *service.Users, payments *service.Payments, db *database.DB) *Handler {
	return &Handler{
		ledger:   ledger,
		projects: projects,
		users:    users,
		payments: payments,
		db:       db,
	}
}

// HandleHealth handles GET /api/health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns the aggregate statistics singleton.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.ledger.SystemStats(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type createPaymentRequest struct {
	Amount    string `json:"amount" validate:"required"`
	Frequency string `json:"frequency" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// HandleCreatePayment handles POST /api/payfast/create-payment.
// Returns the hosted checkout URL and the signed form data to POST to it.
func (h *Handler) HandleCreatePayment(c echo.Context) error {
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	form, err := h.payments.CreateRecurringPayment(service.CreatePaymentInput{
		Amount:    req.Amount,
		Frequency: req.Frequency,
		Name:      req.Name,
		Email:     req.Email,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// HandleNotify handles POST /api/payfast/notify, the ITN callback.
// PayFast only cares about the status code: 200 acknowledges the
// notification, anything else triggers redelivery.
func (h *Handler) HandleNotify(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64*1024))
	if err != nil {
		return c.String(http.StatusBadRequest, "Bad Request")
	}

	sourceHost := resolveSourceHost(c)
	if err := h.payments.ProcessITN(c.Request().Context(), body, sourceHost); err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureMismatch):
			return c.String(http.StatusBadRequest, "Invalid signature")
		case errors.Is(err, service.ErrUntrustedSource):
			return c.String(http.StatusForbidden, "Invalid source")
		case errors.Is(err, service.ErrValidation):
			return c.String(http.StatusBadRequest, "Bad Request")
		case errors.Is(err, payfast.ErrUpstream):
			return c.String(http.StatusBadGateway, "Upstream validation failed")
		default:
			return c.String(http.StatusInternalServerError, "Internal Server Error")
		}
	}
	return c.String(http.StatusOK, "OK")
}

// resolveSourceHost reverse-resolves the caller's IP so it can be checked
// against PayFast's hostname allow-list. When the lookup fails the raw IP
// is returned, which only matches the sandbox localhost exception.
func resolveSourceHost(c echo.Context) string {
	ip := c.RealIP()
	names, err := net.DefaultResolver.LookupAddr(c.Request().Context(), ip)
	if err != nil || len(names) == 0 {
		return ip
	}
	return strings.TrimSuffix(names[0], ".")
}

// HandleReturn handles GET /api/payfast/return.
func (h *Handler) HandleReturn(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/?payment=success")
}

// HandleCancel handles GET /api/payfast/cancel.
func (h *Handler) HandleCancel(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/?payment=cancelled")
}

type createDonationRequest struct {
	Amount        string `json:"amount" validate:"required"`
	Currency      string `json:"currency" validate:"required"`
	DonorName     string `json:"donorName" validate:"omitempty,max=100"`
	DonorEmail    string `json:"donorEmail" validate:"omitempty,email,max=255"`
	ProjectID     string `json:"projectId" validate:"omitempty,uuid"`
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

// HandleCreateDonation handles POST /api/donations (admin).
func (h *Handler) HandleCreateDonation(c echo.Context) error {
	var req createDonationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	donation, err := h.ledger.RecordDonation(c.Request().Context(), service.RecordDonationInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		DonorName:     req.DonorName,
		DonorEmail:    req.DonorEmail,
		ProjectID:     req.ProjectID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, donation)
}

// HandleListDonations handles GET /api/donations (admin).
func (h *Handler) HandleListDonations(c echo.Context) error {
	donations, err := h.ledger.Donations(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	if donations == nil {
		donations = []*database.Donation{}
	}
	return c.JSON(http.StatusOK, donations)
}

// HandleProjectDonations handles GET /api/projects/:id/donations.
func (h *Handler) HandleProjectDonations(c echo.Context) error {
	donations, err := h.ledger.DonationsForProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	if donations == nil {
		donations = []*database.Donation{}
	}
	return c.JSON(http.StatusOK, donations)
}

// HandleListProjects handles GET /api/projects.
func (h *Handler) HandleListProjects(c echo.Context) error {
	projects, err := h.projects.List(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	if projects == nil {
		projects = []*database.Project{}
	}
	return c.JSON(http.StatusOK, projects)
}

// HandleFeaturedProjects handles GET /api/projects/featured.
func (h *Handler) HandleFeaturedProjects(c echo.Context) error {
	projects, err := h.projects.Featured(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	if projects == nil {
		projects = []*database.Project{}
	}
	return c.JSON(http.StatusOK, projects)
}

// HandleGetProject handles GET /api/projects/:id.
func (h *Handler) HandleGetProject(c echo.Context) error {
	project, err := h.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

type createProjectRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"required,max=2000"`
	Location     string `json:"location" validate:"required,max=200"`
	Status       string `json:"status" validate:"omitempty,oneof=active completed paused cancelled"`
	TargetAmount string `json:"targetAmount"`
	ImpactMetric string `json:"impactMetric" validate:"omitempty,max=500"`
	ImageURL     string `json:"imageUrl" validate:"omitempty,url,max=500"`
	IsFeatured   bool   `json:"isFeatured"`
}

// HandleCreateProject handles POST /api/projects (admin).
func (h *Handler) HandleCreateProject(c echo.Context) error {
	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	project, err := h.projects.Create(c.Request().Context(), service.CreateProjectInput{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Status:       req.Status,
		TargetAmount: req.TargetAmount,
		ImpactMetric: req.ImpactMetric,
		ImageURL:     req.ImageURL,
		IsFeatured:   req.IsFeatured,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, project)
}

type updateProjectRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Location     *string `json:"location"`
	Status       *string `json:"status"`
	TargetAmount *string `json:"targetAmount"`
	ImpactMetric *string `json:"impactMetric"`
	ImageURL     *string `json:"imageUrl"`
	IsFeatured   *bool   `json:"isFeatured"`
}

// HandleUpdateProject handles PATCH /api/projects/:id (admin).
func (h *Handler) HandleUpdateProject(c echo.Context) error {
	var req updateProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	project, err := h.projects.Update(c.Request().Context(), c.Param("id"), service.UpdateProjectInput{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Status:       req.Status,
		TargetAmount: req.TargetAmount,
		ImpactMetric: req.ImpactMetric,
		ImageURL:     req.ImageURL,
		IsFeatured:   req.IsFeatured,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
}

// HandleCreateUser handles POST /api/admin/users (admin).
func (h *Handler) HandleCreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.users.Create(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":       user.ID,
		"username": user.Username,
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "Validation failed",
			"field":   ve.Field,
			"message": ve.Message,
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrUsernameTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already taken"})
	case errors.Is(err, payfast.ErrUpstream):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable, retry later"})
	default:
		// Storage and other unexpected failures are logged by the layers
		// below; surface nothing internal.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
