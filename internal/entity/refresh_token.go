package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted refresh session. Only the token hash is stored.
type RefreshToken struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash     string        `gorm:"type:text;not null;uniqueIndex"`
	AppIdentifier AppIdentifier `gorm:"type:varchar(64);not null"`
	Role          Role          `gorm:"type:varchar(32);not null"`

	IPAddress *string `gorm:"type:varchar(45)"`
	UserAgent *string `gorm:"type:text"`

	ExpiresAt time.Time `gorm:"index"`
	RevokedAt *time.Time

	CreatedAt time.Time
}

func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
