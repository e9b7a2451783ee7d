package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tap4impact/internal/payfast"
	"tap4impact/internal/server/service"

	"github.com/labstack/echo/v4"
)

const testPassphrase = "jt7NOE43FZPn"

// testHandler wires up only the payment paths; they are the handlers that
// can be exercised without a database.
func testHandler() *Handler {
	client := payfast.NewClient(payfast.Config{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		Mode:        payfast.ModeSandbox,
		ReturnURL:   "https://tap4impact.org",
		CancelURL:   "https://tap4impact.org",
	}, nil)
	payments := service.NewPayments(client, nil, false)
	return NewHandler(nil, nil, nil, payments, nil)
}

func newTestContext(method, path, body, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewRequestValidator()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleCreatePayment(t *testing.T) {
	t.Run("returns signed form data", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/payfast/create-payment",
			`{"amount":"100","frequency":"monthly","name":"Jane","email":"jane@example.com"}`,
			echo.MIMEApplicationJSON)

		if err := testHandler().HandleCreatePayment(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp struct {
			URL      string            `json:"url"`
			FormData map[string]string `json:"formData"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response JSON: %v", err)
		}
		if resp.URL != "https://sandbox.payfast.co.za/eng/process" {
			t.Errorf("url = %s", resp.URL)
		}
		if resp.FormData["amount"] != "100.00" {
			t.Errorf("amount = %s, want 100.00", resp.FormData["amount"])
		}
		if resp.FormData["signature"] == "" {
			t.Error("signature missing")
		}
	})

	t.Run("invalid amount is a 400", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/payfast/create-payment",
			`{"amount":"-5","frequency":"monthly","name":"Jane","email":"jane@example.com"}`,
			echo.MIMEApplicationJSON)

		if err := testHandler().HandleCreatePayment(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response JSON: %v", err)
		}
		if resp["field"] != "amount" {
			t.Errorf("field = %q, want amount", resp["field"])
		}
	})

	t.Run("missing email rejected by binder validation", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/api/payfast/create-payment",
			`{"amount":"10","frequency":"monthly","name":"Jane"}`,
			echo.MIMEApplicationJSON)

		err := testHandler().HandleCreatePayment(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("got %v, want 400 HTTPError", err)
		}
	})
}

func signedNotifyBody(tamper bool) string {
	var fields payfast.Fields
	fields.Add("pf_payment_id", "1089250")
	fields.Add("payment_status", "COMPLETE")
	fields.Add("amount_gross", "200.00")
	fields.Add("signature", payfast.Sign(fields, testPassphrase))
	if tamper {
		fields[2].Value = "9999.00"
	}
	return fields.Encode()
}

func TestHandleNotify(t *testing.T) {
	t.Run("valid sandbox notification acknowledged", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/payfast/notify",
			signedNotifyBody(false), echo.MIMEApplicationForm)
		// httptest requests originate from 192.0.2.1, which reverse-resolves
		// to nothing; sandbox mode still rejects it, so pin localhost.
		c.Request().RemoteAddr = "127.0.0.1:40000"

		if err := testHandler().HandleNotify(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("tampered notification is a 400", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/payfast/notify",
			signedNotifyBody(true), echo.MIMEApplicationForm)
		c.Request().RemoteAddr = "127.0.0.1:40000"

		if err := testHandler().HandleNotify(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleRedirects(t *testing.T) {
	t.Run("return", func(t *testing.T) {
		c, rec := newTestContext(http.MethodGet, "/api/payfast/return", "", "")
		if err := testHandler().HandleReturn(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusFound {
			t.Errorf("status = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/?payment=success" {
			t.Errorf("Location = %s", loc)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		c, rec := newTestContext(http.MethodGet, "/api/payfast/cancel", "", "")
		if err := testHandler().HandleCancel(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loc := rec.Header().Get("Location"); loc != "/?payment=cancelled" {
			t.Errorf("Location = %s", loc)
		}
	})
}
