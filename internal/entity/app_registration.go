package entity

import (
	"fmt"
	"time"

	"authhub/internal/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AppRegistration is a user's credential, role and lockout record for one app.
// It is owned by its User and never addressed on its own.
type AppRegistration struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_app_registrations_user_app"`
	AppIdentifier AppIdentifier `gorm:"type:varchar(64);not null;uniqueIndex:idx_app_registrations_user_app;index"`

	Roles      datatypes.JSONSlice[Role] `gorm:"not null"`
	AuthMethod AuthMethod                `gorm:"type:varchar(32);not null"`
	Password   *string                   `gorm:"type:text"`

	IsActive      bool `gorm:"not null"`
	LoginAttempts int  `gorm:"not null"`
	LockedUntil   *time.Time
	LastLoginAt   *time.Time

	ActivatedAt        *time.Time
	DeactivatedAt      *time.Time
	DeactivatedBy      *string `gorm:"type:varchar(255)"`
	DeactivationReason *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeSave keeps the stored password hashed whatever path wrote it.
func (r *AppRegistration) BeforeSave(tx *gorm.DB) error {
	return r.EnsurePasswordHash(0)
}

func (r *AppRegistration) EnsurePasswordHash(cost int) error {
	if !r.AuthMethod.UsesPassword() {
		r.Password = nil
		return nil
	}
	if r.Password == nil || *r.Password == "" {
		return ErrPasswordRequired
	}
	hash, err := utils.EnsurePasswordHash(*r.Password, cost)
	if err != nil {
		return err
	}
	r.Password = &hash
	return nil
}

func (r *AppRegistration) HasRole(role Role) bool {
	for _, granted := range r.Roles {
		if granted == role {
			return true
		}
	}
	return false
}

// RoleList returns a copy of the granted roles.
func (r *AppRegistration) RoleList() []Role {
	roles := make([]Role, len(r.Roles))
	copy(roles, r.Roles)
	return roles
}

func (r *AppRegistration) ResetAttempts() {
	r.LoginAttempts = 0
	r.LockedUntil = nil
}

// NormalizeRoles validates roles against the closed enum and drops duplicates,
// keeping first-seen order.
func NormalizeRoles(roles []Role) ([]Role, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", ErrInvalidRole)
	}
	seen := make(map[Role]struct{}, len(roles))
	normalized := make([]Role, 0, len(roles))
	for _, role := range roles {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized, nil
}
