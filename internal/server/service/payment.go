package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tap4impact/internal/payfast"

	"github.com/google/uuid"
)

// Payment-specific errors.
var (
	ErrSignatureMismatch = errors.New("itn signature mismatch")
	ErrUntrustedSource   = errors.New("itn from untrusted source")
)

// Payments orchestrates the PayFast checkout and ITN flows.
type Payments struct {
	client  *payfast.Client
	ledger  *Ledger
	confirm bool // post ITNs back to PayFast for server-side confirmation
}

// NewPayments creates a new payment service.
func NewPayments(client *payfast.Client, ledger *Ledger, confirm bool) *Payments {
	return &Payments{client: client, ledger: ledger, confirm: confirm}
}

// CreatePaymentInput is the donor-supplied part of a recurring donation.
type CreatePaymentInput struct {
	Amount    string
	Frequency string
	Name      string
	Email     string
}

// CheckoutForm is what the browser needs to POST to PayFast's hosted page.
type CheckoutForm struct {
	URL      string            `json:"url"`
	FormData map[string]string `json:"formData"`
}

// CreateRecurringPayment validates the input and returns a signed checkout
// form. Nothing is persisted here; the donation is only recorded once the
// provider confirms it.
func (p *Payments) CreateRecurringPayment(in CreatePaymentInput) (*CheckoutForm, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, invalid("email", "required")
	}

	fields := p.client.BuildRecurringPayment(payfast.PaymentRequest{
		Amount:    amount.StringFixed(2),
		Frequency: payfast.Frequency(in.Frequency),
		Name:      in.Name,
		Email:     in.Email,
		ItemName:  "Monthly Donation",
	}, time.Now())

	return &CheckoutForm{
		URL:      p.client.ProcessURL(),
		FormData: fields.Values(),
	}, nil
}

// ProcessITN handles an Instant Transaction Notification: verifies the
// signature and source host, optionally confirms with PayFast's servers,
// and applies the payment outcome to the referenced donation if one exists.
func (p *Payments) ProcessITN(ctx context.Context, body []byte, sourceHost string) error {
	fields, err := payfast.ParseForm(body)
	if err != nil {
		return invalid("body", "malformed form data")
	}

	if !p.client.VerifyITN(fields) {
		return ErrSignatureMismatch
	}
	if !p.client.ValidSourceHost(sourceHost) {
		return ErrUntrustedSource
	}

	if p.confirm {
		ok, err := p.client.ValidateWithServer(ctx, fields)
		if err != nil {
			return err // ErrUpstream, retryable by PayFast's redelivery
		}
		if !ok {
			return ErrSignatureMismatch
		}
	}

	paymentID, _ := fields.Get("pf_payment_id")
	rawStatus, _ := fields.Get("payment_status")
	status := payfast.ParsePaymentStatus(rawStatus)
	slog.Info("valid payfast itn",
		"pf_payment_id", paymentID,
		"payment_status", rawStatus,
		"normalized_status", status,
	)

	// m_payment_id carries our donation id when the checkout was started
	// for an already-recorded pending donation. Status updates are
	// best-effort; a failure here must not reject the ITN.
	if donationID, ok := fields.Get("m_payment_id"); ok && donationID != "" {
		if _, err := uuid.Parse(donationID); err != nil {
			slog.Warn("itn m_payment_id is not a donation id", "m_payment_id", donationID)
			return nil
		}
		if _, err := p.ledger.UpdateDonationStatus(ctx, donationID, status); err != nil {
			slog.Warn("could not apply itn status",
				"donation_id", donationID,
				"status", status,
				"error", err,
			)
		}
	}
	return nil
}
