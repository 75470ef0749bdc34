// Package errs defines the error taxonomy shared by the service layers.
// Repos and services return these sentinels (usually wrapped with %w);
// the HTTP handlers translate them to status codes without reinterpreting
// their meaning.
package errs

import "errors"

var (
	// ErrValidation marks malformed input (400).
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication marks bad credentials or an invalid/expired token (401).
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization marks an authenticated caller without access, e.g.
	// progress writes while not enrolled (403).
	ErrAuthorization = errors.New("not authorized")
	// ErrNotFound marks an unknown user, course, or lesson (404).
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation: duplicate email/phone or
	// duplicate enrollment (409).
	ErrConflict = errors.New("conflict")
)

// OTP verification outcomes, all mapped to 400 at the boundary.
var (
	ErrOtpNotFound    = errors.New("no active otp challenge")
	ErrOtpExpired     = errors.New("otp challenge expired")
	ErrOtpInvalidCode = errors.New("otp code mismatch")
	ErrOtpLocked      = errors.New("otp challenge locked")
	ErrOtpConsumed    = errors.New("otp challenge already consumed")
)

// ErrInvalidToken is the sentinel returned by session validation for any
// malformed, tampered, or expired token. Validation fails routinely on the
// hot path, so it is a plain value, never a panic.
var ErrInvalidToken = errors.New("invalid or expired token")

// IsOtpError reports whether err is one of the OTP verification outcomes.
func IsOtpError(err error) bool {
	return errors.Is(err, ErrOtpNotFound) ||
		errors.Is(err, ErrOtpExpired) ||
		errors.Is(err, ErrOtpInvalidCode) ||
		errors.Is(err, ErrOtpLocked) ||
		errors.Is(err, ErrOtpConsumed)
}
