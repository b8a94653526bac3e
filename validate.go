package authflow

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	minPasswordLength = 10
	maxPasswordLength = 512
	minUsernameLength = 3
	maxUsernameLength = 32
)

// normalizeEmail lowercases and trims the address, then checks its shape.
// Normalization happens before encryption so the same mailbox always maps
// to the same ciphertext.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	return email, nil
}

// validatePassword checks length bounds only. Composition rules are the
// caller's policy; length is the engine's.
func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password length", ErrInvalidInput)
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username length", ErrInvalidInput)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return fmt.Errorf("%w: username characters", ErrInvalidInput)
		}
	}
	return nil
}

// validateCodeShape rejects inputs that cannot be a live code before any
// store round-trip.
func validateCodeShape(code string, digits int) error {
	if len(code) != digits {
		return fmt.Errorf("%w: code shape", ErrInvalidInput)
	}
	if err := validate.Var(code, "numeric"); err != nil {
		return fmt.Errorf("%w: code shape", ErrInvalidInput)
	}
	return nil
}
