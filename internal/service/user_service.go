package service

import (
	"context"
	"time"

	"authhub/internal/dto"
	"authhub/internal/entity"
	"authhub/internal/utils"

	"github.com/google/uuid"
)

// UserService is the self-service side of an account.
type UserService struct {
	credentials *CredentialStore
	tokens      *TokenIssuer
	clock       Clock
}

func NewUserService(credentials *CredentialStore, tokens *TokenIssuer, clock Clock) *UserService {
	return &UserService{credentials: credentials, tokens: tokens, clock: clock}
}

func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes username and email. Only a verified email can be
// replaced, and the new one has to be verified again.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, input dto.UpdateProfileRequest) (*entity.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Username != nil {
		username := *input.Username
		user.Username = &username
	}
	if input.Email != nil {
		email := utils.NormalizeEmail(*input.Email)
		if email == "" {
			return nil, ErrInvalidInput
		}
		if email != user.Email {
			if !user.EmailVerified {
				return nil, ErrEmailNotVerified
			}
			existing, err := s.credentials.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, ErrDuplicateEmail
			}
			user.Email = email
			user.EmailVerified = false
		}
	}
	user.UpdatedAt = s.now()
	if err := s.credentials.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the user from every app, so it needs a verified
// email.
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !user.EmailVerified {
		return ErrEmailNotVerified
	}
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	return s.credentials.Delete(ctx, userID)
}

func (s *UserService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
