package repository

import (
	"context"
	"errors"

	"authhub/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository persists the User aggregate together with its app
// registrations. Lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error)
	Save(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]entity.User, error)
	ListByApp(ctx context.Context, app entity.AppIdentifier, limit, offset int) ([]entity.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	return r.first(ctx, column+" = ?", providerID)
}

// Save writes the user row and upserts every registration in one
// transaction.
func (r *userRepository) Save(ctx context.Context, user *entity.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(user).Error
	})
	return translate(err)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&entity.AppRegistration{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entity.User{}).Error
	})
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	query := r.db.WithContext(ctx).Preload("AppRegistrations").Order("created_at DESC")
	return page(query, limit, offset)
}

func (r *userRepository) ListByApp(ctx context.Context, app entity.AppIdentifier, limit, offset int) ([]entity.User, error) {
	query := r.db.WithContext(ctx).
		Preload("AppRegistrations").
		Where("id IN (?)", r.db.Model(&entity.AppRegistration{}).Select("user_id").Where("app_identifier = ?", app)).
		Order("created_at DESC")
	return page(query, limit, offset)
}

func (r *userRepository) first(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("AppRegistrations").
		Where(query, args...).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func page(query *gorm.DB, limit, offset int) ([]entity.User, error) {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var users []entity.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func providerColumn(provider entity.Provider) (string, error) {
	switch provider {
	case entity.ProviderGoogle:
		return "google_id", nil
	case entity.ProviderFacebook:
		return "facebook_id", nil
	case entity.ProviderGithub:
		return "github_id", nil
	}
	return "", entity.ErrInvalidProvider
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}
