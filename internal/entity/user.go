package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is the account aggregate. Identity is the lowercased email; every app
// the user can reach has exactly one AppRegistration.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email    string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username *string   `gorm:"type:varchar(50)"`

	EmailVerified bool `gorm:"not null"`
	IsActive      bool `gorm:"not null"`

	OAuthProvider *Provider `gorm:"type:varchar(32)"`
	GoogleID      *string   `gorm:"type:varchar(255);uniqueIndex"`
	FacebookID    *string   `gorm:"type:varchar(255);uniqueIndex"`
	GithubID      *string   `gorm:"type:varchar(255);uniqueIndex"`

	PasswordChangedAt *time.Time
	LastLoginAt       *time.Time

	// Legacy account-wide counters. Lockout is tracked per app; these are
	// kept only so older documents still load.
	GlobalLoginAttempts int `gorm:"not null;default:0"`
	GlobalLockedUntil   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	AppRegistrations []AppRegistration `gorm:"constraint:OnDelete:CASCADE"`
}

func NewUser(email string, username *string, now time.Time) *User {
	return &User{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Registration returns the registration for app, or nil. The pointer aliases
// the slice element so callers can mutate it in place.
func (u *User) Registration(app AppIdentifier) *AppRegistration {
	for i := range u.AppRegistrations {
		if u.AppRegistrations[i].AppIdentifier == app {
			return &u.AppRegistrations[i]
		}
	}
	return nil
}

// HasAccessToApp reports whether the user holds an active registration for app.
func (u *User) HasAccessToApp(app AppIdentifier) bool {
	reg := u.Registration(app)
	return reg != nil && reg.IsActive
}

func (u *User) HasRoleForApp(app AppIdentifier, role Role) bool {
	reg := u.Registration(app)
	return reg != nil && reg.HasRole(role)
}

// AddRegistration appends a new registration for reg.AppIdentifier. The
// password, when the auth method needs one, must already be set on reg.
func (u *User) AddRegistration(reg AppRegistration, now time.Time) (*AppRegistration, error) {
	if !reg.AppIdentifier.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAppIdentifier, reg.AppIdentifier)
	}
	if !reg.AuthMethod.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthMethod, reg.AuthMethod)
	}
	if u.Registration(reg.AppIdentifier) != nil {
		return nil, ErrAlreadyRegistered
	}
	roles, err := NormalizeRoles(reg.Roles)
	if err != nil {
		return nil, err
	}
	if reg.AuthMethod.UsesPassword() {
		if reg.Password == nil || *reg.Password == "" {
			return nil, ErrPasswordRequired
		}
	} else {
		reg.Password = nil
	}

	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	reg.UserID = u.ID
	reg.Roles = roles
	reg.IsActive = true
	reg.ResetAttempts()
	reg.ActivatedAt = &now
	reg.DeactivatedAt = nil
	reg.DeactivatedBy = nil
	reg.DeactivationReason = nil
	reg.CreatedAt = now
	reg.UpdatedAt = now

	u.AppRegistrations = append(u.AppRegistrations, reg)
	u.UpdatedAt = now
	return &u.AppRegistrations[len(u.AppRegistrations)-1], nil
}

// GrantRoles adds roles to the app's registration, keeping the ones it has.
func (u *User) GrantRoles(app AppIdentifier, roles []Role, now time.Time) error {
	reg := u.Registration(app)
	if reg == nil {
		return ErrRegistrationNotFound
	}
	merged, err := NormalizeRoles(append(reg.RoleList(), roles...))
	if err != nil {
		return err
	}
	reg.Roles = merged
	reg.UpdatedAt = now
	u.UpdatedAt = now
	return nil
}

// OverrideRoles replaces the app's role set wholesale.
func (u *User) OverrideRoles(app AppIdentifier, roles []Role, now time.Time) error {
	reg := u.Registration(app)
	if reg == nil {
		return ErrRegistrationNotFound
	}
	normalized, err := NormalizeRoles(roles)
	if err != nil {
		return err
	}
	reg.Roles = normalized
	reg.UpdatedAt = now
	u.UpdatedAt = now
	return nil
}

// SetAppActive toggles per-app access. Deactivation records the audit trail;
// reactivation clears it and resets the attempt counters.
func (u *User) SetAppActive(app AppIdentifier, active bool, actor, reason string, now time.Time) error {
	reg := u.Registration(app)
	if reg == nil {
		return ErrRegistrationNotFound
	}
	reg.IsActive = active
	if active {
		reg.ResetAttempts()
		reg.ActivatedAt = &now
		reg.DeactivatedAt = nil
		reg.DeactivatedBy = nil
		reg.DeactivationReason = nil
	} else {
		reg.DeactivatedAt = &now
		reg.DeactivatedBy = optionalString(actor)
		reg.DeactivationReason = optionalString(reason)
	}
	reg.UpdatedAt = now
	u.UpdatedAt = now
	return nil
}

// ChangeAuthMethod switches the app's credential mechanism. The password is
// replaced by hash (email-password) or cleared (oauth).
func (u *User) ChangeAuthMethod(app AppIdentifier, method AuthMethod, passwordHash *string, now time.Time) error {
	if !method.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidAuthMethod, method)
	}
	reg := u.Registration(app)
	if reg == nil {
		return ErrRegistrationNotFound
	}
	if method.UsesPassword() {
		if passwordHash == nil || *passwordHash == "" {
			return ErrPasswordRequired
		}
		reg.Password = passwordHash
	} else {
		reg.Password = nil
	}
	reg.AuthMethod = method
	reg.ResetAttempts()
	reg.UpdatedAt = now
	u.UpdatedAt = now
	return nil
}

func (u *User) ProviderID(provider Provider) *string {
	switch provider {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderFacebook:
		return u.FacebookID
	case ProviderGithub:
		return u.GithubID
	}
	return nil
}

func (u *User) LinkProvider(provider Provider, providerID string, now time.Time) error {
	id := providerID
	switch provider {
	case ProviderGoogle:
		u.GoogleID = &id
	case ProviderFacebook:
		u.FacebookID = &id
	case ProviderGithub:
		u.GithubID = &id
	default:
		return fmt.Errorf("%w: %s", ErrInvalidProvider, provider)
	}
	if u.OAuthProvider == nil {
		p := provider
		u.OAuthProvider = &p
	}
	u.UpdatedAt = now
	return nil
}

// EnsurePasswordHashes hashes any plaintext password left on a registration.
func (u *User) EnsurePasswordHashes(cost int) error {
	for i := range u.AppRegistrations {
		if err := u.AppRegistrations[i].EnsurePasswordHash(cost); err != nil {
			return fmt.Errorf("registration %s: %w", u.AppRegistrations[i].AppIdentifier, err)
		}
	}
	return nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
