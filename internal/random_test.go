package internal

import (
	"strings"
	"testing"
)

func TestNewCodeDigitsOnly(t *testing.T) {
	for _, digits := range []int{4, 6, 10} {
		code, err := NewCode(digits)
		if err != nil {
			t.Fatalf("NewCode(%d) failed: %v", digits, err)
		}
		if len(code) != digits {
			t.Fatalf("expected %d digits, got %q", digits, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit %q in code %q", r, code)
			}
		}
	}

	for _, digits := range []int{0, 3, 11, -1} {
		if _, err := NewCode(digits); err == nil {
			t.Fatalf("expected NewCode(%d) rejected", digits)
		}
	}
}

func TestFlowSecretRoundtrip(t *testing.T) {
	secret, err := NewFlowSecret()
	if err != nil {
		t.Fatalf("NewFlowSecret failed: %v", err)
	}

	token := EncodeFlowSecret(secret)
	if token == "" || strings.ContainsAny(token, "+/=") {
		t.Fatalf("expected url-safe unpadded token, got %q", token)
	}

	decoded, err := DecodeFlowSecret(token)
	if err != nil {
		t.Fatalf("DecodeFlowSecret failed: %v", err)
	}
	if decoded != secret {
		t.Fatal("roundtrip mismatch")
	}

	for _, garbage := range []string{"", "???", "c2hvcnQ"} {
		if _, err := DecodeFlowSecret(garbage); err == nil {
			t.Fatalf("expected decode error for %q", garbage)
		}
	}
}

func TestNewRecoveryCodeFormat(t *testing.T) {
	code, err := NewRecoveryCode(10)
	if err != nil {
		t.Fatalf("NewRecoveryCode failed: %v", err)
	}

	parts := strings.Split(code, "-")
	if len(parts) != 2 || len(parts[0]) != 5 || len(parts[1]) != 5 {
		t.Fatalf("expected XXXXX-XXXXX shape, got %q", code)
	}
	for _, r := range strings.ReplaceAll(code, "-", "") {
		if !strings.ContainsRune(recoveryCodeAlphabet, r) {
			t.Fatalf("character %q outside alphabet in %q", r, code)
		}
	}
	// Ambiguous characters never appear.
	if strings.ContainsAny(code, "0O1I") {
		t.Fatalf("ambiguous character in %q", code)
	}

	for _, length := range []int{6, 7, 9, 22} {
		if _, err := NewRecoveryCode(length); err == nil {
			t.Fatalf("expected NewRecoveryCode(%d) rejected", length)
		}
	}
}

func TestNormalizeRecoveryCode(t *testing.T) {
	cases := map[string]string{
		"XK3QT-9WMRZ":     "XK3QT9WMRZ",
		"xk3qt-9wmrz":     "XK3QT9WMRZ",
		"  XK3QT9WMRZ  ":  "XK3QT9WMRZ",
		"x-k-3-q-t-9wmrz": "XK3QT9WMRZ",
	}
	for input, want := range cases {
		if got := NormalizeRecoveryCode(input); got != want {
			t.Fatalf("NormalizeRecoveryCode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHashRecoveryCodeIgnoresFormatting(t *testing.T) {
	if HashRecoveryCode("XK3QT-9WMRZ") != HashRecoveryCode("xk3qt9wmrz") {
		t.Fatal("hash must be formatting-independent")
	}
	if HashRecoveryCode("XK3QT-9WMRZ") == HashRecoveryCode("XK3QT-9WMRA") {
		t.Fatal("distinct codes must hash differently")
	}
}

func TestHashSecretStable(t *testing.T) {
	a := HashSecret([]byte("some secret"))
	b := HashSecret([]byte("some secret"))
	c := HashSecret([]byte("other secret"))

	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == c {
		t.Fatal("distinct inputs must hash differently")
	}
}
