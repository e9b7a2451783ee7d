package service

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	t.Run("accepts currency-scale decimals", func(t *testing.T) {
		for _, in := range []string{"10", "10.5", "10.50", "0.01", " 250.00 "} {
			if _, err := parseAmount(in); err != nil {
				t.Errorf("parseAmount(%q) failed: %v", in, err)
			}
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, in := range []string{"", "abc", "0", "0.00", "-5", "10.123"} {
			_, err := parseAmount(in)
			if err == nil {
				t.Errorf("parseAmount(%q) accepted", in)
				continue
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("parseAmount(%q) error %v does not match ErrValidation", in, err)
			}
		}
	})
}

func TestValidationErrorDetail(t *testing.T) {
	err := invalid("amount", "must be a positive number")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("invalid() did not produce a *ValidationError")
	}
	if ve.Field != "amount" {
		t.Errorf("Field = %s, want amount", ve.Field)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError does not match ErrValidation")
	}
}
