package auth

import (
	"fmt"
	"strings"

	"github.com/stellr/server/internal/errs"
)

// CredentialKind classifies a login credential by channel
type CredentialKind int

const (
	// CredentialEmail is any credential containing '@'
	CredentialEmail CredentialKind = iota
	// CredentialPhone is everything else
	CredentialPhone
)

// ClassifyCredential normalizes the credential and reports its channel.
// The channels are disjoint by construction, so a credential can never be
// ambiguous: '@' means email, anything else is treated as a phone number.
func ClassifyCredential(credential string) (CredentialKind, string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return 0, "", fmt.Errorf("%w: empty credential", errs.ErrValidation)
	}
	if strings.Contains(credential, "@") {
		return CredentialEmail, NormalizeEmail(credential), nil
	}
	phone, err := NormalizePhone(credential)
	if err != nil {
		return 0, "", err
	}
	return CredentialPhone, phone, nil
}

// NormalizeEmail lowercases and trims the address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone canonicalizes a phone number to digits with an optional
// leading +, dropping spaces, dashes, dots, and parentheses.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			// separator, drop
		default:
			return "", fmt.Errorf("%w: invalid phone number", errs.ErrValidation)
		}
	}
	digits := strings.TrimPrefix(b.String(), "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("%w: invalid phone number", errs.ErrValidation)
	}
	return b.String(), nil
}
