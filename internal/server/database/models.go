package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supported donation currencies.
var ValidCurrencies = map[string]bool{
	"ZAR": true, "USD": true, "EUR": true,
	"GBP": true, "CAD": true, "AUD": true,
}

// Supported payment methods.
var ValidPaymentMethods = map[string]bool{
	"tap": true, "card": true, "bank_transfer": true, "crypto": true,
}

// Valid project lifecycle states.
var ValidProjectStatuses = map[string]bool{
	"active": true, "completed": true, "paused": true, "cancelled": true,
}

// DonationStatus is the settlement state of a donation.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

// CanTransitionTo reports whether the status state machine allows moving
// from s to next. Allowed: pending -> completed | failed,
// completed -> refunded. Anything else is rejected.
func (s DonationStatus) CanTransitionTo(next DonationStatus) bool {
	switch s {
	case DonationPending:
		return next == DonationCompleted || next == DonationFailed
	case DonationCompleted:
		return next == DonationRefunded
	default:
		return false
	}
}

// Valid reports whether s is a known donation status.
func (s DonationStatus) Valid() bool {
	switch s {
	case DonationPending, DonationCompleted, DonationFailed, DonationRefunded:
		return true
	}
	return false
}

// Donation is a single recorded donation. Rows are never deleted; only the
// status may change after creation.
type Donation struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DonorName     *string         `json:"donorName"`
	DonorEmail    *string         `json:"donorEmail"`
	ProjectID     *string         `json:"projectId"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        DonationStatus  `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Project is a funded initiative. CurrentAmount is incremented only by
// linked donations inside the ledger transaction.
type Project struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Location      string           `json:"location"`
	Status        string           `json:"status"`
	TargetAmount  *decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal  `json:"currentAmount"`
	ImpactMetric  *string          `json:"impactMetric"`
	ImageURL      *string          `json:"imageUrl"`
	IsFeatured    bool             `json:"isFeatured"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// SystemStats is the singleton row of platform aggregates. It is recomputed
// from the donations and projects tables, never incremented in memory.
type SystemStats struct {
	TotalRaised   decimal.Decimal `json:"totalRaised"`
	TotalDonors   int             `json:"totalDonors"`
	TotalProjects int             `json:"totalProjects"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// User is an admin account.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
