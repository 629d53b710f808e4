package emailauth

import (
	"errors"

	"github.com/passwordless/emailauth/mnemonic"
)

var (
	// ErrInvalidEmail reports a malformed or empty email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrUnsupportedLanguage reports a code language outside the supported set.
	// It aliases mnemonic.ErrUnsupportedLanguage so errors.Is works across the
	// package boundary.
	ErrUnsupportedLanguage = mnemonic.ErrUnsupportedLanguage
	// ErrRateLimited reports a code request inside the issuance rate-limit window.
	ErrRateLimited = errors.New("code issuance rate limited")
	// ErrDeliveryFailed reports a mail transport failure; the stored code remains valid.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrCodeNotFound reports a missing or expired verification code.
	// Absent and expired are deliberately indistinguishable.
	ErrCodeNotFound = errors.New("verification code expired or not found")
	// ErrTooManyAttempts reports an exhausted attempt budget for the outstanding code.
	ErrTooManyAttempts = errors.New("verification attempts exceeded")
	// ErrInvalidCode reports a submitted code that does not match the stored one.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrUserNotFound reports verification for an email with no user record
	// when automatic user creation is disabled.
	ErrUserNotFound = errors.New("user not found")
	// ErrStorageUnavailable reports a transient backend connectivity failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrTokenInvalid reports an unverifiable or expired access token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrServiceNotReady reports use of a Service missing a required dependency.
	ErrServiceNotReady = errors.New("service not initialized")
)
