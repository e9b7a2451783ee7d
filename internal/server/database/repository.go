package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrDonationNotFound  = errors.New("donation not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidTransition = errors.New("invalid donation status transition")
)

// statsRowID pins the system_stats singleton to a single row.
const statsRowID = 1

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so aggregate
// recomputation can run inside or outside the donation transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for donations, projects, users and stats.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const donationColumns = `id, amount, currency, donor_name, donor_email,
	project_id, payment_method, status, created_at`

func scanDonation(row pgx.Row) (*Donation, error) {
	d := &Donation{}
	err := row.Scan(
		&d.ID,
		&d.Amount,
		&d.Currency,
		&d.DonorName,
		&d.DonorEmail,
		&d.ProjectID,
		&d.PaymentMethod,
		&d.Status,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RecordDonation persists a donation and keeps the derived aggregates
// consistent, all inside a single transaction: the donation insert, the
// relative increment of the linked project's running total, and the
// recompute-and-upsert of the system_stats singleton. Any failure rolls the
// whole operation back.
func (r *Repository) RecordDonation(ctx context.Context, d *Donation) (*Donation, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin donation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	recorded, err := scanDonation(tx.QueryRow(ctx, `
		INSERT INTO donations (
			id, amount, currency, donor_name, donor_email,
			project_id, payment_method, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+donationColumns,
		d.ID,
		d.Amount,
		d.Currency,
		d.DonorName,
		d.DonorEmail,
		d.ProjectID,
		d.PaymentMethod,
		d.Status,
		d.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert donation: %w", err)
	}

	if d.ProjectID != nil {
		// Relative update, never read-modify-write: concurrent donations to
		// the same project must not lose each other's increments.
		tag, err := tx.Exec(ctx, `
			UPDATE projects
			SET current_amount = current_amount + $1, updated_at = NOW()
			WHERE id = $2
		`, d.Amount, *d.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to increment project total: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrProjectNotFound
		}
	}

	if err := recomputeStats(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit donation transaction: %w", err)
	}
	return recorded, nil
}

// recomputeStats rebuilds the system_stats singleton from authoritative
// aggregate queries. It must run inside a transaction. The singleton row is
// created and locked first; the aggregates are read in a separate statement
// so its snapshot is taken after any concurrent writer holding the lock has
// committed. Without the lock, two concurrent recomputes could each miss the
// other's donation.
func recomputeStats(ctx context.Context, q querier) error {
	_, err := q.Exec(ctx, `
		INSERT INTO system_stats (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = system_stats.id
	`, statsRowID)
	if err != nil {
		return fmt.Errorf("failed to lock system stats: %w", err)
	}

	// A donation with no donor email does not count toward the distinct
	// donor total.
	_, err = q.Exec(ctx, `
		UPDATE system_stats SET
			total_raised   = (SELECT COALESCE(SUM(amount), 0) FROM donations),
			total_donors   = (SELECT COUNT(DISTINCT donor_email) FROM donations WHERE donor_email IS NOT NULL),
			total_projects = (SELECT COUNT(*) FROM projects),
			updated_at     = NOW()
		WHERE id = $1
	`, statsRowID)
	if err != nil {
		return fmt.Errorf("failed to recompute system stats: %w", err)
	}
	return nil
}

// RecomputeStats rebuilds the stats singleton outside a donation write.
// Used after project mutations and by the background reconciler.
func (r *Repository) RecomputeStats(ctx context.Context) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := recomputeStats(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetSystemStats returns the stats singleton, creating a zeroed row on first
// access. The insert is safe under concurrent first access.
func (r *Repository) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO system_stats (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, statsRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize system stats: %w", err)
	}

	stats := &SystemStats{}
	err = r.db.Pool.QueryRow(ctx, `
		SELECT total_raised, total_donors, total_projects, updated_at
		FROM system_stats WHERE id = $1
	`, statsRowID).Scan(
		&stats.TotalRaised,
		&stats.TotalDonors,
		&stats.TotalProjects,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get system stats: %w", err)
	}
	return stats, nil
}

// GetDonation retrieves a donation by its ID.
func (r *Repository) GetDonation(ctx context.Context, id string) (*Donation, error) {
	d, err := scanDonation(r.db.Pool.QueryRow(ctx,
		"SELECT "+donationColumns+" FROM donations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return d, nil
}

// GetDonations returns all donations, newest first.
func (r *Repository) GetDonations(ctx context.Context) ([]*Donation, error) {
	return r.queryDonations(ctx,
		"SELECT "+donationColumns+" FROM donations ORDER BY created_at DESC")
}

// GetDonationsByProject returns a project's donations, newest first.
func (r *Repository) GetDonationsByProject(ctx context.Context, projectID string) ([]*Donation, error) {
	return r.queryDonations(ctx,
		"SELECT "+donationColumns+" FROM donations WHERE project_id = $1 ORDER BY created_at DESC",
		projectID)
}

func (r *Repository) queryDonations(ctx context.Context, sql string, args ...any) ([]*Donation, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	var donations []*Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

// UpdateDonationStatus moves a donation through its status state machine.
// The update is conditional on the current status so concurrent transitions
// cannot race past the state machine.
func (r *Repository) UpdateDonationStatus(ctx context.Context, id string, next DonationStatus) (*Donation, error) {
	current, err := r.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
	}

	d, err := scanDonation(r.db.Pool.QueryRow(ctx, `
		UPDATE donations SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING `+donationColumns,
		next, id, current.Status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to another transition.
			return nil, fmt.Errorf("%w: donation %s changed concurrently", ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("failed to update donation status: %w", err)
	}
	return d, nil
}

const projectColumns = `id, title, description, location, status, target_amount,
	current_amount, impact_metric, image_url, is_featured, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	p := &Project{}
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Location,
		&p.Status,
		&p.TargetAmount,
		&p.CurrentAmount,
		&p.ImpactMetric,
		&p.ImageURL,
		&p.IsFeatured,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProject inserts a new project record.
func (r *Repository) CreateProject(ctx context.Context, p *Project) (*Project, error) {
	created, err := scanProject(r.db.Pool.QueryRow(ctx, `
		INSERT INTO projects (
			id, title, description, location, status, target_amount,
			current_amount, impact_metric, image_url, is_featured,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+projectColumns,
		p.ID,
		p.Title,
		p.Description,
		p.Location,
		p.Status,
		p.TargetAmount,
		p.CurrentAmount,
		p.ImpactMetric,
		p.ImageURL,
		p.IsFeatured,
		p.CreatedAt,
		p.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return created, nil
}

// ProjectUpdate carries the optional fields of a project update. Nil fields
// are left unchanged.
type ProjectUpdate struct {
	Title        *string
	Description  *string
	Location     *string
	Status       *string
	TargetAmount *decimal.Decimal
	ImpactMetric *string
	ImageURL     *string
	IsFeatured   *bool
}

// UpdateProject applies a partial update and refreshes updated_at.
func (r *Repository) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (*Project, error) {
	p, err := scanProject(r.db.Pool.QueryRow(ctx, `
		UPDATE projects SET
			title         = COALESCE($1, title),
			description   = COALESCE($2, description),
			location      = COALESCE($3, location),
			status        = COALESCE($4, status),
			target_amount = COALESCE($5, target_amount),
			impact_metric = COALESCE($6, impact_metric),
			image_url     = COALESCE($7, image_url),
			is_featured   = COALESCE($8, is_featured),
			updated_at    = NOW()
		WHERE id = $9
		RETURNING `+projectColumns,
		u.Title,
		u.Description,
		u.Location,
		u.Status,
		u.TargetAmount,
		u.ImpactMetric,
		u.ImageURL,
		u.IsFeatured,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by its ID.
func (r *Repository) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := scanProject(r.db.Pool.QueryRow(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// GetProjects returns all projects, newest first.
func (r *Repository) GetProjects(ctx context.Context) ([]*Project, error) {
	return r.queryProjects(ctx,
		"SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC")
}

// GetFeaturedProjects returns featured projects, most recently updated first.
func (r *Repository) GetFeaturedProjects(ctx context.Context) ([]*Project, error) {
	return r.queryProjects(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE is_featured ORDER BY updated_at DESC")
}

func (r *Repository) queryProjects(ctx context.Context, sql string, args ...any) ([]*Project, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateUser inserts an admin user.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)",
		u.ID, u.Username, u.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := r.db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = $1",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
