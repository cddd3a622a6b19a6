package service

import (
	"errors"
	"fmt"

	"authhub/internal/access"
	"authhub/internal/entity"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAppEndpoint = errors.New("unknown app endpoint")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("forbidden")
	ErrProviderConflict   = errors.New("account is linked to another identity on this provider")
	ErrEmailNotVerified   = errors.New("verify your email before changing account-wide settings")
	ErrUnverifiedEmail    = errors.New("the provider has not verified this email, sign in with your existing method")

	// ErrStoreUnavailable marks persistence failures. It is never retried here.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Re-exported so transports only need this package.
var (
	ErrAlreadyRegistered    = entity.ErrAlreadyRegistered
	ErrAccountDeactivated   = access.ErrAccountDeactivated
	ErrAppAccessDeactivated = access.ErrAppAccessDeactivated
	ErrAccountLocked        = access.ErrAccountLocked
	ErrAppAccessLocked      = access.ErrAppAccessLocked
	ErrWrongAuthMethod      = access.ErrWrongAuthMethod
	ErrRoleNotGranted       = access.ErrRoleNotGranted
)

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
}

// IsValidationError reports whether err is a caller mistake.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAppEndpoint) ||
		errors.Is(err, entity.ErrInvalidAppIdentifier) ||
		errors.Is(err, entity.ErrInvalidRole) ||
		errors.Is(err, entity.ErrInvalidAuthMethod) ||
		errors.Is(err, entity.ErrInvalidProvider) ||
		errors.Is(err, entity.ErrPasswordRequired)
}
