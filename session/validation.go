package session

import (
	"net/mail"
	"strings"

	"github.com/pkg/errors"
)

const minPasswordLength = 8

// validateEmail checks the email has an address-like shape.
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.Wrap(ErrInvalidInput, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.Wrap(ErrInvalidInput, "email is not a valid address")
	}
	return nil
}

// validatePassword enforces the minimum signup password shape.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.Wrapf(ErrInvalidInput, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}
