// Package access holds the per-app access state machine:
//
//	Active --N failures--> Locked(until) --now >= until--> Active
//	Active|Locked --admin deactivate--> Deactivated --admin reactivate--> Active
//
// Expired locks are cleared lazily when checked; nothing runs in the
// background. A globally inactive account reads as Deactivated on every app
// without its registrations being touched.
package access

import (
	"time"

	"authhub/internal/entity"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

type Policy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, LockoutDuration: DefaultLockoutDuration}
}

type Status string

const (
	StatusActive      Status = "active"
	StatusLocked      Status = "locked"
	StatusDeactivated Status = "deactivated"
)

type AppState struct {
	Status      Status
	LockedUntil *time.Time
}

// State evaluates reg without mutating it.
func (p Policy) State(user *entity.User, reg *entity.AppRegistration, now time.Time) AppState {
	if !user.IsActive || !reg.IsActive {
		return AppState{Status: StatusDeactivated}
	}
	if reg.LockedUntil != nil && now.Before(*reg.LockedUntil) {
		until := *reg.LockedUntil
		return AppState{Status: StatusLocked, LockedUntil: &until}
	}
	return AppState{Status: StatusActive}
}

// CheckLogin runs the gates in order: account active, app active, auth
// method, lock, requested role. The credential itself is checked by the
// caller afterwards. A lock that has expired is cleared on reg.
func (p Policy) CheckLogin(user *entity.User, reg *entity.AppRegistration, method entity.AuthMethod, selectedRole entity.Role, now time.Time) error {
	if !user.IsActive {
		return ErrAccountDeactivated
	}
	// Legacy account-wide lock, honoured while it lasts but never set.
	if user.GlobalLockedUntil != nil && now.Before(*user.GlobalLockedUntil) {
		return &LockedError{Until: *user.GlobalLockedUntil, AccountWide: true}
	}
	if !reg.IsActive {
		return ErrAppAccessDeactivated
	}
	if reg.AuthMethod != method {
		return &WrongAuthMethodError{Required: reg.AuthMethod}
	}
	if reg.LockedUntil != nil {
		if now.Before(*reg.LockedUntil) {
			return &LockedError{Until: *reg.LockedUntil}
		}
		reg.ResetAttempts()
	}
	if selectedRole != "" && !reg.HasRole(selectedRole) {
		return &RoleNotGrantedError{Requested: selectedRole, Available: reg.RoleList()}
	}
	return nil
}

// RecordFailure counts a failed credential check and reports whether it
// pushed the registration into Locked.
func (p Policy) RecordFailure(reg *entity.AppRegistration, now time.Time) bool {
	reg.LoginAttempts++
	reg.UpdatedAt = now
	if reg.LoginAttempts >= p.maxAttempts() {
		until := now.Add(p.lockoutDuration())
		reg.LockedUntil = &until
		return true
	}
	return false
}

func (p Policy) RecordSuccess(user *entity.User, reg *entity.AppRegistration, now time.Time) {
	reg.ResetAttempts()
	reg.LastLoginAt = &now
	reg.UpdatedAt = now
	user.LastLoginAt = &now
	user.UpdatedAt = now
}

// ChooseRole returns the role a session acts as: the requested one, or the
// first granted.
func ChooseRole(reg *entity.AppRegistration, selected entity.Role) entity.Role {
	if selected != "" {
		return selected
	}
	if len(reg.Roles) == 0 {
		return ""
	}
	return reg.Roles[0]
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (p Policy) lockoutDuration() time.Duration {
	if p.LockoutDuration > 0 {
		return p.LockoutDuration
	}
	return DefaultLockoutDuration
}
