package service

import (
	"context"
	"time"

	"authhub/internal/entity"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email string, token string) error
	SendPasswordResetEmail(ctx context.Context, email string, appEndpoint string, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

// AccessTokenIssuer signs short-lived access tokens scoped to app and role.
// utils.JWTManager satisfies it.
type AccessTokenIssuer interface {
	IssueAccessToken(userID string, app string, role string) (string, time.Duration, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SessionMeta is request context recorded on refresh tokens and audit logs.
type SessionMeta struct {
	IPAddress *string
	UserAgent *string
}

// AuthResult is what a successful register, login or refresh hands back.
type AuthResult struct {
	User   *entity.User
	App    entity.AppIdentifier
	Role   entity.Role
	Tokens *TokenPair

	// EmailWarning is set when the account change went through but the
	// follow-up email could not be sent.
	EmailWarning string
}

// Actor is the authenticated administrator behind an admin operation.
type Actor struct {
	UserID string
	Role   entity.Role
}
