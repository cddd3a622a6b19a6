// Package redis keeps refresh tokens in Redis. Each token is a JSON record
// under its hash with a TTL matching its expiry; a per-user set indexes the
// hashes so every session of a user can be revoked at once.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"authhub/internal/entity"
	"authhub/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type refreshRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	TokenHash     string    `json:"token_hash"`
	AppIdentifier string    `json:"app"`
	Role          string    `json:"role"`
	IPAddress     *string   `json:"ip_address,omitempty"`
	UserAgent     *string   `json:"user_agent,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type RefreshTokenRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRefreshTokenRepository(client *redis.Client) *RefreshTokenRepository {
	return &RefreshTokenRepository{client: client, now: time.Now}
}

var _ repository.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

func tokenKey(hash string) string {
	return fmt.Sprintf("refresh:token:%s", hash)
}

func userKey(userID string) string {
	return fmt.Sprintf("refresh:user:%s", userID)
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	ttl := token.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}
	data, err := json.Marshal(refreshRecord{
		ID:            token.ID.String(),
		UserID:        token.UserID.String(),
		TokenHash:     token.TokenHash,
		AppIdentifier: string(token.AppIdentifier),
		Role:          string(token.Role),
		IPAddress:     token.IPAddress,
		UserAgent:     token.UserAgent,
		ExpiresAt:     token.ExpiresAt,
		CreatedAt:     token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, tokenKey(token.TokenHash), data, ttl)
	pipe.SAdd(ctx, userKey(token.UserID.String()), token.TokenHash)
	// Tokens share one TTL, so the newest token always expires last.
	pipe.Expire(ctx, userKey(token.UserID.String()), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) FindByTokenHash(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	data, err := r.client.Get(ctx, tokenKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	var record refreshRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(record.UserID)
	if err != nil {
		return nil, err
	}
	return &entity.RefreshToken{
		ID:            id,
		UserID:        userID,
		TokenHash:     record.TokenHash,
		AppIdentifier: entity.AppIdentifier(record.AppIdentifier),
		Role:          entity.Role(record.Role),
		IPAddress:     record.IPAddress,
		UserAgent:     record.UserAgent,
		ExpiresAt:     record.ExpiresAt,
		CreatedAt:     record.CreatedAt,
	}, nil
}

// Revoke deletes the token. Revocation in Redis is removal; there is no
// tombstone.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, hash string) error {
	token, err := r.FindByTokenHash(ctx, hash)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tokenKey(hash))
	if token != nil {
		pipe.SRem(ctx, userKey(token.UserID.String()), hash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	key := userKey(userID.String())
	hashes, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("list refresh tokens: %w", err)
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, tokenKey(hash))
	}
	keys = append(keys, key)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
