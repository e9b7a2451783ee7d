package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"tap4impact/internal/server/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Projects manages funded initiatives.
type Projects struct {
	repo *database.Repository
}

// NewProjects creates a new project service.
func NewProjects(repo *database.Repository) *Projects {
	return &Projects{repo: repo}
}

// CreateProjectInput is the caller-supplied shape of a new project.
// Optional fields are empty strings when absent.
type CreateProjectInput struct {
	Title        string
	Description  string
	Location     string
	Status       string
	TargetAmount string
	ImpactMetric string
	ImageURL     string
	IsFeatured   bool
}

// Create validates and persists a new project, then refreshes the project
// count in the stats singleton.
func (p *Projects) Create(ctx context.Context, in CreateProjectInput) (*database.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 200 {
		return nil, invalid("title", "required, at most 200 characters")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" || len(description) > 2000 {
		return nil, invalid("description", "required, at most 2000 characters")
	}
	location := strings.TrimSpace(in.Location)
	if location == "" || len(location) > 200 {
		return nil, invalid("location", "required, at most 200 characters")
	}

	status := in.Status
	if status == "" {
		status = "active"
	}
	if !database.ValidProjectStatuses[status] {
		return nil, invalid("status", "unknown project status")
	}

	now := time.Now().UTC()
	project := &database.Project{
		ID:            uuid.New().String(),
		Title:         title,
		Description:   description,
		Location:      location,
		Status:        status,
		CurrentAmount: decimal.Zero,
		IsFeatured:    in.IsFeatured,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if in.TargetAmount != "" {
		target, err := parseAmount(in.TargetAmount)
		if err != nil {
			return nil, invalid("targetAmount", "must be a positive decimal")
		}
		project.TargetAmount = &target
	}
	if metric := strings.TrimSpace(in.ImpactMetric); metric != "" {
		if len(metric) > 500 {
			return nil, invalid("impactMetric", "at most 500 characters")
		}
		project.ImpactMetric = &metric
	}
	if img := strings.TrimSpace(in.ImageURL); img != "" {
		if err := validateImageURL(img); err != nil {
			return nil, err
		}
		project.ImageURL = &img
	}

	created, err := p.repo.CreateProject(ctx, project)
	if err != nil {
		return nil, err
	}

	// Keep the project count current; donation writes recompute too, but a
	// new project should show up without waiting for one.
	if err := p.repo.RecomputeStats(ctx); err != nil {
		slog.Error("failed to refresh stats after project create", "error", err)
	}

	slog.Info("project created", "id", created.ID, "title", created.Title)
	return created, nil
}

// UpdateProjectInput carries the optional fields of a project update.
type UpdateProjectInput struct {
	Title        *string
	Description  *string
	Location     *string
	Status       *string
	TargetAmount *string
	ImpactMetric *string
	ImageURL     *string
	IsFeatured   *bool
}

// Update applies a partial update to a project.
func (p *Projects) Update(ctx context.Context, id string, in UpdateProjectInput) (*database.Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("id", "invalid UUID format")
	}

	update := database.ProjectUpdate{
		Title:        in.Title,
		Description:  in.Description,
		Location:     in.Location,
		Status:       in.Status,
		ImpactMetric: in.ImpactMetric,
		ImageURL:     in.ImageURL,
		IsFeatured:   in.IsFeatured,
	}

	if in.Status != nil && !database.ValidProjectStatuses[*in.Status] {
		return nil, invalid("status", "unknown project status")
	}
	if in.Title != nil && (strings.TrimSpace(*in.Title) == "" || len(*in.Title) > 200) {
		return nil, invalid("title", "required, at most 200 characters")
	}
	if in.TargetAmount != nil {
		target, err := parseAmount(*in.TargetAmount)
		if err != nil {
			return nil, invalid("targetAmount", "must be a positive decimal")
		}
		update.TargetAmount = &target
	}
	if in.ImageURL != nil {
		if err := validateImageURL(*in.ImageURL); err != nil {
			return nil, err
		}
	}

	project, err := p.repo.UpdateProject(ctx, id, update)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, err
	}
	return project, nil
}

// Get retrieves a project by ID.
func (p *Projects) Get(ctx context.Context, id string) (*database.Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("id", "invalid UUID format")
	}
	project, err := p.repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, err
	}
	return project, nil
}

// List returns all projects, newest first.
func (p *Projects) List(ctx context.Context) ([]*database.Project, error) {
	return p.repo.GetProjects(ctx)
}

// Featured returns featured projects, most recently updated first.
func (p *Projects) Featured(ctx context.Context) ([]*database.Project, error) {
	return p.repo.GetFeaturedProjects(ctx)
}

func validateImageURL(raw string) error {
	if len(raw) > 500 {
		return invalid("imageUrl", "at most 500 characters")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("imageUrl", "must be an absolute http(s) URL")
	}
	return nil
}
