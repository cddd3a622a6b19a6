package repository

import (
	"context"

	"authhub/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SecurityLogRepository is append-only. Callers write best effort and never
// fail a request on a log error.
type SecurityLogRepository interface {
	Log(ctx context.Context, log *entity.SecurityLog) error
}

type securityLogRepository struct {
	db *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) SecurityLogRepository {
	return &securityLogRepository{db: db}
}

// Log skips the user association so an entry for a deleted or unknown user
// still lands with a null user_id.
func (r *securityLogRepository) Log(ctx context.Context, entry *entity.SecurityLog) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error
}
