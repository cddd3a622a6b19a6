package repository

import (
	"context"
	"errors"
	"time"

	"authhub/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *entity.VerificationToken) error
	FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	// InvalidateForUser marks every outstanding token of tokenType used.
	InvalidateForUser(ctx context.Context, userID uuid.UUID, tokenType entity.VerificationType) error
}

type verificationTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &verificationTokenRepository{db: db, now: time.Now}
}

func (r *verificationTokenRepository) Create(ctx context.Context, token *entity.VerificationToken) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(token).Error
}

// FindValid only matches unused tokens whose expiry is still ahead. Expiry is
// compared against the application clock, as the document store does.
func (r *verificationTokenRepository) FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error) {
	var token entity.VerificationToken
	err := r.outstanding(ctx).
		Where("token_hash = ? AND type = ? AND expires_at > ?", tokenHash, tokenType, r.now()).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *verificationTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return r.outstanding(ctx).Where("id = ?", id).Update("used_at", r.now()).Error
}

func (r *verificationTokenRepository) InvalidateForUser(ctx context.Context, userID uuid.UUID, tokenType entity.VerificationType) error {
	return r.outstanding(ctx).
		Where("user_id = ? AND type = ?", userID, tokenType).
		Update("used_at", r.now()).Error
}

func (r *verificationTokenRepository) outstanding(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&entity.VerificationToken{}).Where("used_at IS NULL")
}
