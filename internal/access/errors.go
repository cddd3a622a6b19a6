package access

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub/internal/entity"
)

var (
	ErrAccountDeactivated   = errors.New("account is deactivated")
	ErrAppAccessDeactivated = errors.New("access to this app is deactivated")
	ErrAccountLocked        = errors.New("account is temporarily locked")
	ErrAppAccessLocked      = errors.New("access to this app is temporarily locked due to too many failed login attempts")
	ErrWrongAuthMethod      = errors.New("wrong authentication method for this app")
	ErrRoleNotGranted       = errors.New("role not granted for this app")
)

// WrongAuthMethodError tells the caller which method the registration uses.
type WrongAuthMethodError struct {
	Required entity.AuthMethod
}

func (e *WrongAuthMethodError) Error() string {
	return fmt.Sprintf("must use %s to access this app", e.Required)
}

func (e *WrongAuthMethodError) Unwrap() error {
	return ErrWrongAuthMethod
}

// RoleNotGrantedError lists the roles the registration does hold.
type RoleNotGrantedError struct {
	Requested entity.Role
	Available []entity.Role
}

func (e *RoleNotGrantedError) Error() string {
	available := make([]string, 0, len(e.Available))
	for _, role := range e.Available {
		available = append(available, string(role))
	}
	return fmt.Sprintf("user does not have role '%s' for this app (available: %s)", e.Requested, strings.Join(available, ", "))
}

func (e *RoleNotGrantedError) Unwrap() error {
	return ErrRoleNotGranted
}

type LockedError struct {
	Until       time.Time
	AccountWide bool
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s until %s", e.Unwrap().Error(), e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error {
	if e.AccountWide {
		return ErrAccountLocked
	}
	return ErrAppAccessLocked
}
