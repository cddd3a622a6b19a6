package service

import (
	"context"
	"strings"
	"time"

	"authhub/internal/entity"
	"authhub/internal/repository"
	"authhub/internal/utils"

	"github.com/google/uuid"
)

const refreshTokenBytes = 48

type TokenPair struct {
	AccessToken      string
	ExpiresIn        time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
	RefreshExpiresAt time.Time
}

// TokenIssuer mints access/refresh pairs. Refresh tokens are opaque random
// strings; only their hash is persisted.
type TokenIssuer struct {
	refreshTokens repository.RefreshTokenRepository
	accessTokens  AccessTokenIssuer
	clock         Clock
	refreshTTL    time.Duration
}

func NewTokenIssuer(refreshTokens repository.RefreshTokenRepository, accessTokens AccessTokenIssuer, clock Clock, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		refreshTokens: refreshTokens,
		accessTokens:  accessTokens,
		clock:         clock,
		refreshTTL:    refreshTTL,
	}
}

func (t *TokenIssuer) Issue(ctx context.Context, user *entity.User, app entity.AppIdentifier, role entity.Role, meta SessionMeta) (*TokenPair, error) {
	rawToken, tokenHash, err := utils.NewOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}
	now := t.now()
	refresh := &entity.RefreshToken{
		ID:            uuid.New(),
		UserID:        user.ID,
		TokenHash:     tokenHash,
		AppIdentifier: app,
		Role:          role,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		ExpiresAt:     now.Add(t.ttl()),
		CreatedAt:     now,
	}
	if err := t.refreshTokens.Create(ctx, refresh); err != nil {
		return nil, storeError("store refresh token", err)
	}

	accessToken, expiresIn, err := t.accessTokens.IssueAccessToken(user.ID.String(), string(app), string(role))
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      accessToken,
		ExpiresIn:        expiresIn,
		RefreshToken:     rawToken,
		RefreshExpiresIn: t.ttl(),
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Lookup resolves a raw refresh token to its live record.
func (t *TokenIssuer) Lookup(ctx context.Context, rawToken string) (*entity.RefreshToken, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}
	token, err := t.refreshTokens.FindByTokenHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		return nil, storeError("find refresh token", err)
	}
	if token == nil || !token.Valid(t.now()) {
		return nil, ErrInvalidToken
	}
	return token, nil
}

// Rotate revokes current and issues a fresh pair for the same app and role.
func (t *TokenIssuer) Rotate(ctx context.Context, current *entity.RefreshToken, user *entity.User, role entity.Role, meta SessionMeta) (*TokenPair, error) {
	if err := t.refreshTokens.Revoke(ctx, current.TokenHash); err != nil {
		return nil, storeError("revoke refresh token", err)
	}
	return t.Issue(ctx, user, current.AppIdentifier, role, meta)
}

func (t *TokenIssuer) Revoke(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return ErrInvalidToken
	}
	if err := t.refreshTokens.Revoke(ctx, utils.HashToken(rawToken)); err != nil {
		return storeError("revoke refresh token", err)
	}
	return nil
}

func (t *TokenIssuer) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := t.refreshTokens.RevokeAllByUser(ctx, userID); err != nil {
		return storeError("revoke refresh tokens", err)
	}
	return nil
}

func (t *TokenIssuer) now() time.Time {
	if t.clock == nil {
		return time.Now()
	}
	return t.clock.Now()
}

func (t *TokenIssuer) ttl() time.Duration {
	if t.refreshTTL > 0 {
		return t.refreshTTL
	}
	return 7 * 24 * time.Hour
}
