package mongo

import (
	"time"

	"authhub/internal/entity"

	"github.com/google/uuid"
)

// Documents keep ids as strings so the collections stay readable from the
// shell; conversion to the entity types happens at the repository edge.

type userDocument struct {
	ID            string  `bson:"_id"`
	Email         string  `bson:"email"`
	Username      *string `bson:"username,omitempty"`
	EmailVerified bool    `bson:"email_verified"`
	IsActive      bool    `bson:"is_active"`

	OAuthProvider *string `bson:"oauth_provider,omitempty"`
	GoogleID      *string `bson:"google_id,omitempty"`
	FacebookID    *string `bson:"facebook_id,omitempty"`
	GithubID      *string `bson:"github_id,omitempty"`

	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty"`
	LastLoginAt       *time.Time `bson:"last_login_at,omitempty"`

	GlobalLoginAttempts int        `bson:"global_login_attempts"`
	GlobalLockedUntil   *time.Time `bson:"global_locked_until,omitempty"`

	AppRegistrations []registrationDocument `bson:"app_registrations"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type registrationDocument struct {
	ID            string   `bson:"id"`
	AppIdentifier string   `bson:"app_identifier"`
	Roles         []string `bson:"roles"`
	AuthMethod    string   `bson:"auth_method"`
	Password      *string  `bson:"password,omitempty"`

	IsActive      bool       `bson:"is_active"`
	LoginAttempts int        `bson:"login_attempts"`
	LockedUntil   *time.Time `bson:"locked_until,omitempty"`
	LastLoginAt   *time.Time `bson:"last_login_at,omitempty"`

	ActivatedAt        *time.Time `bson:"activated_at,omitempty"`
	DeactivatedAt      *time.Time `bson:"deactivated_at,omitempty"`
	DeactivatedBy      *string    `bson:"deactivated_by,omitempty"`
	DeactivationReason *string    `bson:"deactivation_reason,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toUserDocument(user *entity.User) userDocument {
	doc := userDocument{
		ID:                  user.ID.String(),
		Email:               user.Email,
		Username:            user.Username,
		EmailVerified:       user.EmailVerified,
		IsActive:            user.IsActive,
		GoogleID:            user.GoogleID,
		FacebookID:          user.FacebookID,
		GithubID:            user.GithubID,
		PasswordChangedAt:   user.PasswordChangedAt,
		LastLoginAt:         user.LastLoginAt,
		GlobalLoginAttempts: user.GlobalLoginAttempts,
		GlobalLockedUntil:   user.GlobalLockedUntil,
		AppRegistrations:    make([]registrationDocument, 0, len(user.AppRegistrations)),
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
	}
	if user.OAuthProvider != nil {
		provider := string(*user.OAuthProvider)
		doc.OAuthProvider = &provider
	}
	for _, reg := range user.AppRegistrations {
		roles := make([]string, 0, len(reg.Roles))
		for _, role := range reg.Roles {
			roles = append(roles, string(role))
		}
		doc.AppRegistrations = append(doc.AppRegistrations, registrationDocument{
			ID:                 reg.ID.String(),
			AppIdentifier:      string(reg.AppIdentifier),
			Roles:              roles,
			AuthMethod:         string(reg.AuthMethod),
			Password:           reg.Password,
			IsActive:           reg.IsActive,
			LoginAttempts:      reg.LoginAttempts,
			LockedUntil:        reg.LockedUntil,
			LastLoginAt:        reg.LastLoginAt,
			ActivatedAt:        reg.ActivatedAt,
			DeactivatedAt:      reg.DeactivatedAt,
			DeactivatedBy:      reg.DeactivatedBy,
			DeactivationReason: reg.DeactivationReason,
			CreatedAt:          reg.CreatedAt,
			UpdatedAt:          reg.UpdatedAt,
		})
	}
	return doc
}

func (d userDocument) toEntity() (*entity.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	user := &entity.User{
		ID:                  id,
		Email:               d.Email,
		Username:            d.Username,
		EmailVerified:       d.EmailVerified,
		IsActive:            d.IsActive,
		GoogleID:            d.GoogleID,
		FacebookID:          d.FacebookID,
		GithubID:            d.GithubID,
		PasswordChangedAt:   d.PasswordChangedAt,
		LastLoginAt:         d.LastLoginAt,
		GlobalLoginAttempts: d.GlobalLoginAttempts,
		GlobalLockedUntil:   d.GlobalLockedUntil,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if d.OAuthProvider != nil {
		provider := entity.Provider(*d.OAuthProvider)
		user.OAuthProvider = &provider
	}
	for _, reg := range d.AppRegistrations {
		regID, err := uuid.Parse(reg.ID)
		if err != nil {
			return nil, err
		}
		roles := make([]entity.Role, 0, len(reg.Roles))
		for _, role := range reg.Roles {
			roles = append(roles, entity.Role(role))
		}
		user.AppRegistrations = append(user.AppRegistrations, entity.AppRegistration{
			ID:                 regID,
			UserID:             id,
			AppIdentifier:      entity.AppIdentifier(reg.AppIdentifier),
			Roles:              roles,
			AuthMethod:         entity.AuthMethod(reg.AuthMethod),
			Password:           reg.Password,
			IsActive:           reg.IsActive,
			LoginAttempts:      reg.LoginAttempts,
			LockedUntil:        reg.LockedUntil,
			LastLoginAt:        reg.LastLoginAt,
			ActivatedAt:        reg.ActivatedAt,
			DeactivatedAt:      reg.DeactivatedAt,
			DeactivatedBy:      reg.DeactivatedBy,
			DeactivationReason: reg.DeactivationReason,
			CreatedAt:          reg.CreatedAt,
			UpdatedAt:          reg.UpdatedAt,
		})
	}
	return user, nil
}

type verificationDocument struct {
	ID            string     `bson:"_id"`
	UserID        string     `bson:"user_id"`
	TokenHash     string     `bson:"token_hash"`
	Type          string     `bson:"type"`
	AppIdentifier *string    `bson:"app_identifier,omitempty"`
	ExpiresAt     time.Time  `bson:"expires_at"`
	UsedAt        *time.Time `bson:"used_at"`
	CreatedAt     time.Time  `bson:"created_at"`
}

func toVerificationDocument(token *entity.VerificationToken) verificationDocument {
	doc := verificationDocument{
		ID:        token.ID.String(),
		UserID:    token.UserID.String(),
		TokenHash: token.TokenHash,
		Type:      string(token.Type),
		ExpiresAt: token.ExpiresAt,
		UsedAt:    token.UsedAt,
		CreatedAt: token.CreatedAt,
	}
	if token.AppIdentifier != nil {
		app := string(*token.AppIdentifier)
		doc.AppIdentifier = &app
	}
	return doc
}

func (d verificationDocument) toEntity() (*entity.VerificationToken, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, err
	}
	token := &entity.VerificationToken{
		ID:        id,
		UserID:    userID,
		TokenHash: d.TokenHash,
		Type:      entity.VerificationType(d.Type),
		ExpiresAt: d.ExpiresAt,
		UsedAt:    d.UsedAt,
		CreatedAt: d.CreatedAt,
	}
	if d.AppIdentifier != nil {
		app := entity.AppIdentifier(*d.AppIdentifier)
		token.AppIdentifier = &app
	}
	return token, nil
}

type securityLogDocument struct {
	ID            string         `bson:"_id"`
	UserID        *string        `bson:"user_id,omitempty"`
	AppIdentifier *string        `bson:"app_identifier,omitempty"`
	IPAddress     *string        `bson:"ip_address,omitempty"`
	Action        string         `bson:"action"`
	Metadata      map[string]any `bson:"metadata,omitempty"`
	CreatedAt     time.Time      `bson:"created_at"`
}
