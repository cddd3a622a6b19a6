package entity

import (
	"time"

	"github.com/google/uuid"
)

type VerificationType string

const (
	EmailVerify   VerificationType = "email_verify"
	PasswordReset VerificationType = "password_reset"
)

// VerificationToken is a single-use emailed token. Only the hash is stored.
type VerificationToken struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	User      User             `gorm:"constraint:OnDelete:CASCADE"`
	TokenHash string           `gorm:"type:text;not null;uniqueIndex"`
	Type      VerificationType `gorm:"type:varchar(32);not null"`

	// AppIdentifier scopes a password reset to one registration.
	AppIdentifier *AppIdentifier `gorm:"type:varchar(64)"`

	ExpiresAt time.Time `gorm:"not null;index"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func NewVerificationToken(userID uuid.UUID, kind VerificationType, app *AppIdentifier, tokenHash string, now time.Time, ttl time.Duration) *VerificationToken {
	return &VerificationToken{
		ID:            uuid.New(),
		UserID:        userID,
		TokenHash:     tokenHash,
		Type:          kind,
		AppIdentifier: app,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
	}
}
