package payfast

import (
	"testing"
)

// goldenFields matches PayFast's documented sandbox example. The expected
// digests were generated once against the reference implementation and are
// pinned here as a regression check.
func goldenFields() Fields {
	var f Fields
	f.Add("merchant_id", "10000100")
	f.Add("merchant_key", "46f0cd694581a")
	f.Add("amount", "100.00")
	f.Add("item_name", "Test Product")
	return f
}

func TestSignGoldenValues(t *testing.T) {
	t.Run("without passphrase", func(t *testing.T) {
		got := Sign(goldenFields(), "")
		want := "4199c649c988894e95a4943b309711e3"
		if got != want {
			t.Errorf("Sign() = %s, want %s", got, want)
		}
	})

	t.Run("with passphrase", func(t *testing.T) {
		got := Sign(goldenFields(), "jt7NOE43FZPn")
		want := "065ea401401305adffa928319e0be82d"
		if got != want {
			t.Errorf("Sign() = %s, want %s", got, want)
		}
	})
}

func TestSignDeterminism(t *testing.T) {
	first := Sign(goldenFields(), "secret")
	for i := 0; i < 10; i++ {
		if got := Sign(goldenFields(), "secret"); got != first {
			t.Fatalf("Sign() not deterministic: %s vs %s", got, first)
		}
	}
}

func TestSignOrderSensitivity(t *testing.T) {
	var reordered Fields
	reordered.Add("merchant_key", "46f0cd694581a")
	reordered.Add("merchant_id", "10000100")
	reordered.Add("amount", "100.00")
	reordered.Add("item_name", "Test Product")

	original := Sign(goldenFields(), "")
	swapped := Sign(reordered, "")
	if original == swapped {
		t.Error("reordering fields did not change the signature")
	}
	if want := "33944e450e9268cfbc6b5cca0876f615"; swapped != want {
		t.Errorf("Sign(reordered) = %s, want %s", swapped, want)
	}
}

func TestSignExclusionRules(t *testing.T) {
	base := Sign(goldenFields(), "")

	t.Run("signature field is ignored", func(t *testing.T) {
		fields := goldenFields()
		fields.Add("signature", "deadbeef")
		if got := Sign(fields, ""); got != base {
			t.Errorf("adding a signature field changed the digest: %s", got)
		}
	})

	t.Run("empty value is ignored", func(t *testing.T) {
		fields := goldenFields()
		fields.Add("custom_str1", "")
		if got := Sign(fields, ""); got != base {
			t.Errorf("adding an empty field changed the digest: %s", got)
		}
	})

	t.Run("whitespace-only value signs as key=", func(t *testing.T) {
		// Only the raw empty string is excluded; trimming happens after the
		// filter, so a whitespace-only field contributes a bare pair.
		fields := goldenFields()
		fields.Add("custom_str1", "   ")
		got := Sign(fields, "")
		if got == base {
			t.Error("whitespace-only field was dropped from the digest")
		}
		if want := "380c306b907b649c76bf07e9494ce9b5"; got != want {
			t.Errorf("Sign() = %s, want %s", got, want)
		}
	})

	t.Run("zero value is signed", func(t *testing.T) {
		fields := goldenFields()
		fields.Add("custom_int1", "0")
		got := Sign(fields, "")
		if got == base {
			t.Error("adding a zero-valued field did not change the digest")
		}
		if want := "5d55183f35c2d1446b82949ac225ec36"; got != want {
			t.Errorf("Sign() = %s, want %s", got, want)
		}
	})
}

func TestSignPassphraseEffect(t *testing.T) {
	withOut := Sign(goldenFields(), "")
	for _, passphrase := range []string{"secret", "s", "pass phrase"} {
		if Sign(goldenFields(), passphrase) == withOut {
			t.Errorf("passphrase %q produced the unkeyed signature", passphrase)
		}
	}

	// A blank passphrase must be treated as absent.
	if Sign(goldenFields(), "   ") != withOut {
		t.Error("whitespace passphrase changed the signature")
	}
}

func TestSignTrimsBeforeEncoding(t *testing.T) {
	var padded Fields
	padded.Add("item_name", "  Test Product  ")

	var clean Fields
	clean.Add("item_name", "Test Product")

	if Sign(padded, "") != Sign(clean, "") {
		t.Error("values are not trimmed before encoding")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	const passphrase = "jt7NOE43FZPn"

	signed := goldenFields()
	signed.Add("signature", Sign(goldenFields(), passphrase))

	t.Run("valid signature verifies", func(t *testing.T) {
		if !Verify(signed, passphrase) {
			t.Error("Verify() = false for a valid signature")
		}
	})

	t.Run("wrong passphrase fails", func(t *testing.T) {
		if Verify(signed, "wrong") {
			t.Error("Verify() = true with the wrong passphrase")
		}
	})

	t.Run("tampered field fails", func(t *testing.T) {
		tampered := goldenFields()
		tampered[2].Value = "999.00" // amount
		tampered.Add("signature", Sign(goldenFields(), passphrase))
		if Verify(tampered, passphrase) {
			t.Error("Verify() = true for a tampered amount")
		}
	})

	t.Run("missing signature fails closed", func(t *testing.T) {
		if Verify(goldenFields(), passphrase) {
			t.Error("Verify() = true with no signature field")
		}
	})
}

func TestEncode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Test Product", "Test+Product"},
		{"a&b=c d", "a%26b%3Dc+d"},
		{"jane+doe@x.co", "jane%2Bdoe%40x.co"},
		{"~!*'()-_.", "~!*'()-_."},
		{"https://tap4impact.org", "https%3A%2F%2Ftap4impact.org"},
	}
	for _, tc := range cases {
		if got := encode(tc.in); got != tc.want {
			t.Errorf("encode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
