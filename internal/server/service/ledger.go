// Package service contains the business logic of the donation platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"tap4impact/internal/server/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports which field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Ledger records donations and serves the derived aggregates.
type Ledger struct {
	repo *database.Repository
}

// NewLedger creates a new donation ledger service.
func NewLedger(repo *database.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// RecordDonationInput is the caller-supplied shape of a donation. Amount is
// a decimal string, matching the wire format.
type RecordDonationInput struct {
	Amount        string
	Currency      string
	DonorName     string
	DonorEmail    string
	ProjectID     string
	PaymentMethod string
}

// RecordDonation validates the input, checks the referenced project exists,
// and persists the donation together with its aggregate updates in one
// transaction. It returns the persisted record.
func (l *Ledger) RecordDonation(ctx context.Context, in RecordDonationInput) (*database.Donation, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	donation := &database.Donation{
		ID:            uuid.New().String(),
		Amount:        amount,
		Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Status:        database.DonationCompleted,
		CreatedAt:     time.Now().UTC(),
	}

	if !database.ValidCurrencies[donation.Currency] {
		return nil, invalid("currency", "unsupported currency code")
	}
	if !database.ValidPaymentMethods[donation.PaymentMethod] {
		return nil, invalid("paymentMethod", "unsupported payment method")
	}

	if name := strings.TrimSpace(in.DonorName); name != "" {
		if len(name) > 100 {
			return nil, invalid("donorName", "donor name too long")
		}
		donation.DonorName = &name
	}
	if email := strings.TrimSpace(in.DonorEmail); email != "" {
		if len(email) > 255 {
			return nil, invalid("donorEmail", "email too long")
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, invalid("donorEmail", "invalid email format")
		}
		donation.DonorEmail = &email
	}

	if id := strings.TrimSpace(in.ProjectID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return nil, invalid("projectId", "invalid UUID format")
		}
		// Fail fast before writing anything; the transaction re-checks.
		if _, err := l.repo.GetProject(ctx, id); err != nil {
			if errors.Is(err, database.ErrProjectNotFound) {
				return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
			}
			return nil, err
		}
		donation.ProjectID = &id
	}

	recorded, err := l.repo.RecordDonation(ctx, donation)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, in.ProjectID)
		}
		return nil, err
	}

	slog.Info("donation recorded",
		"id", recorded.ID,
		"amount", recorded.Amount,
		"currency", recorded.Currency,
		"project_id", in.ProjectID,
		"method", recorded.PaymentMethod,
	)
	return recorded, nil
}

// Donations returns all donations, newest first.
func (l *Ledger) Donations(ctx context.Context) ([]*database.Donation, error) {
	return l.repo.GetDonations(ctx)
}

// DonationsForProject returns a project's donations, newest first.
func (l *Ledger) DonationsForProject(ctx context.Context, projectID string) ([]*database.Donation, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, invalid("projectId", "invalid UUID format")
	}
	if _, err := l.repo.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
		}
		return nil, err
	}
	return l.repo.GetDonationsByProject(ctx, projectID)
}

// UpdateDonationStatus moves a donation through its status state machine.
func (l *Ledger) UpdateDonationStatus(ctx context.Context, id string, status string) (*database.Donation, error) {
	next := database.DonationStatus(status)
	if !next.Valid() {
		return nil, invalid("status", "unknown donation status")
	}
	d, err := l.repo.UpdateDonationStatus(ctx, id, next)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDonationNotFound):
			return nil, fmt.Errorf("%w: donation %s", ErrNotFound, id)
		case errors.Is(err, database.ErrInvalidTransition):
			return nil, invalid("status", err.Error())
		}
		return nil, err
	}
	return d, nil
}

// SystemStats returns the aggregate singleton, initializing it on first use.
func (l *Ledger) SystemStats(ctx context.Context) (*database.SystemStats, error) {
	return l.repo.GetSystemStats(ctx)
}

// parseAmount parses a currency-scale decimal string and enforces that it is
// positive with at most two decimal places.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid("amount", "must be a decimal number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, invalid("amount", "must be a positive number")
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, invalid("amount", "at most two decimal places")
	}
	return amount, nil
}
