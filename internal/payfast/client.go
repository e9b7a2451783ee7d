package payfast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Mode selects the PayFast environment.
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive    Mode = "live"
)

// Frequency is a recurring billing interval.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyBiannually Frequency = "biannually"
	FrequencyAnnual     Frequency = "annual"
)

// frequencyCodes maps billing intervals to PayFast's subscription frequency
// codes. Unknown intervals fall back to monthly.
var frequencyCodes = map[Frequency]string{
	FrequencyMonthly:    "3",
	FrequencyQuarterly:  "4",
	FrequencyBiannually: "5",
	FrequencyAnnual:     "6",
}

// itnHosts is the fixed set of hostnames PayFast sends ITN callbacks from.
var itnHosts = map[string]bool{
	"www.payfast.co.za":     true,
	"sandbox.payfast.co.za": true,
	"w1w.payfast.co.za":     true,
	"w2w.payfast.co.za":     true,
}

// ErrUpstream indicates the call to PayFast's validation endpoint failed or
// timed out. It is retryable; the transaction outcome is unknown.
var ErrUpstream = errors.New("payfast validation request failed")

// Config holds the merchant credentials and environment for a Client.
// Everything is passed in explicitly so the client stays testable.
type Config struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Mode        Mode
	ReturnURL   string
	CancelURL   string
}

// Client builds signed PayFast requests and verifies ITN callbacks.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a PayFast client. httpClient may be nil, in which case
// a client with a 10 second timeout is used for validation calls.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// PaymentRequest is the caller-supplied part of a recurring payment.
type PaymentRequest struct {
	Amount    string // already formatted to two decimals
	Frequency Frequency
	Name      string
	Email     string
	ItemName  string
}

// BuildRecurringPayment assembles the ordered field set for a recurring
// subscription, signs it, and returns the fields with the signature appended.
// The first billing date is the day after now.
func (c *Client) BuildRecurringPayment(req PaymentRequest, now time.Time) Fields {
	billingDate := now.AddDate(0, 0, 1).Format("2006-01-02")

	code, ok := frequencyCodes[req.Frequency]
	if !ok {
		code = frequencyCodes[FrequencyMonthly]
	}

	var fields Fields
	fields.Add("merchant_id", c.cfg.MerchantID)
	fields.Add("merchant_key", c.cfg.MerchantKey)
	fields.Add("return_url", c.cfg.ReturnURL)
	fields.Add("cancel_url", c.cfg.CancelURL)
	fields.Add("name_first", strings.TrimSpace(req.Name))
	fields.Add("email_address", strings.TrimSpace(req.Email))
	fields.Add("amount", req.Amount)
	fields.Add("item_name", req.ItemName)
	fields.Add("subscription_type", "1")
	fields.Add("billing_date", billingDate)
	fields.Add("recurring_amount", req.Amount)
	fields.Add("frequency", code)
	fields.Add("cycles", "0")

	fields.Add("signature", Sign(fields, c.cfg.Passphrase))
	return fields
}

// ProcessURL returns the hosted checkout endpoint for the configured mode.
func (c *Client) ProcessURL() string {
	if c.cfg.Mode == ModeSandbox {
		return "https://sandbox.payfast.co.za/eng/process"
	}
	return "https://www.payfast.co.za/eng/process"
}

// VerifyITN checks an ITN field set against the configured passphrase.
func (c *Client) VerifyITN(fields Fields) bool {
	return Verify(fields, c.cfg.Passphrase)
}

// ValidSourceHost reports whether an ITN came from a PayFast host.
// Sandbox mode also accepts local callers for development.
func (c *Client) ValidSourceHost(host string) bool {
	if itnHosts[host] {
		return true
	}
	if c.cfg.Mode == ModeSandbox {
		switch host {
		case "127.0.0.1", "::1", "localhost":
			return true
		}
	}
	return false
}

// ValidateWithServer posts the received parameter string back to PayFast for
// server-side confirmation. It returns true only when PayFast answers VALID.
// Transport failures are reported as ErrUpstream so callers can retry.
func (c *Client) ValidateWithServer(ctx context.Context, fields Fields) (bool, error) {
	host := "www.payfast.co.za"
	if c.cfg.Mode == ModeSandbox {
		host = "sandbox.payfast.co.za"
	}
	return c.validateAgainst(ctx, "https://"+host+"/eng/query/validate", fields)
}

func (c *Client) validateAgainst(ctx context.Context, endpoint string, fields Fields) (bool, error) {
	// The validate endpoint expects the parameter string without the
	// signature field.
	var params Fields
	for _, field := range fields {
		if field.Key == "signature" {
			continue
		}
		params = append(params, field)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return strings.TrimSpace(string(body)) == "VALID", nil
}

// ParsePaymentStatus normalizes a PayFast payment_status value.
func ParsePaymentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete", "completed":
		return "completed"
	case "failed", "cancelled":
		return "failed"
	default:
		return "pending"
	}
}

// NextPaymentDate returns the billing date that follows start for the given
// frequency.
func NextPaymentDate(start time.Time, frequency Frequency) time.Time {
	switch frequency {
	case FrequencyQuarterly:
		return start.AddDate(0, 3, 0)
	case FrequencyBiannually:
		return start.AddDate(0, 6, 0)
	case FrequencyAnnual:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
