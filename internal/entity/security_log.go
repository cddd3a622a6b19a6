package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess       SecurityAction = "login_success"
	LoginFailed        SecurityAction = "login_failed"
	AppLocked          SecurityAction = "app_locked"
	Logout             SecurityAction = "logout"
	Reset              SecurityAction = "password_reset"
	PasswordChanged    SecurityAction = "password_changed"
	SessionRevoked     SecurityAction = "session_revoked"
	Registration       SecurityAction = "registration"
	AppDeactivated     SecurityAction = "app_deactivated"
	AppReactivated     SecurityAction = "app_reactivated"
	AccountDeactivated SecurityAction = "account_deactivated"
	AccountReactivated SecurityAction = "account_reactivated"
	OAuthLinked        SecurityAction = "oauth_linked"
	AuthMethodChanged  SecurityAction = "auth_method_changed"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	AppIdentifier *AppIdentifier `gorm:"type:varchar(64);index"`
	IPAddress     *string        `gorm:"type:varchar(45)"`
	Action        SecurityAction `gorm:"type:varchar(32);not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
