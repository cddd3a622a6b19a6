package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub/internal/entity"
	"authhub/internal/repository"
	"authhub/internal/utils"

	"github.com/google/uuid"
)

// fallbackDummyHash is only used when the hasher cannot produce a dummy hash
// of its own.
const fallbackDummyHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

// CredentialStore is the persistence boundary for users and their app
// registrations. Passwords are hashed before anything reaches the repository.
type CredentialStore struct {
	users  repository.UserRepository
	hasher PasswordHasher
	clock  Clock

	// dummyHash is compared against when there is no registration, so a
	// missing account costs as much as a wrong password.
	dummyHash string
}

func NewCredentialStore(users repository.UserRepository, hasher PasswordHasher, clock Clock) *CredentialStore {
	return &CredentialStore{users: users, hasher: hasher, clock: clock, dummyHash: dummyHashFor(hasher)}
}

func dummyHashFor(hasher PasswordHasher) string {
	raw, _, err := utils.NewOpaqueToken(16)
	if err != nil {
		return fallbackDummyHash
	}
	hash, err := hasher.Hash(raw)
	if err != nil {
		return fallbackDummyHash
	}
	return hash
}

// RegistrationInput describes a registration to add or update.
type RegistrationInput struct {
	App        entity.AppIdentifier
	Roles      []entity.Role
	AuthMethod entity.AuthMethod
	// Password is plaintext; it is hashed here and ignored for oauth methods.
	Password string
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, storeError("find user by email", err)
	}
	return user, nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError("find user", err)
	}
	return user, nil
}

func (s *CredentialStore) FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error) {
	user, err := s.users.FindByProviderID(ctx, provider, providerID)
	if err != nil {
		return nil, storeError("find user by provider", err)
	}
	return user, nil
}

// Create persists a brand new user holding exactly one registration.
func (s *CredentialStore) Create(ctx context.Context, email string, username *string, first RegistrationInput) (*entity.User, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user := entity.NewUser(email, username, s.now())
	if _, err := s.addRegistration(user, first); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Insert persists a user assembled by the caller (oauth sign-up).
func (s *CredentialStore) Insert(ctx context.Context, user *entity.User) error {
	if len(user.AppRegistrations) != 1 {
		return fmt.Errorf("%w: a new user needs exactly one registration", ErrInvalidInput)
	}
	return s.insert(ctx, user)
}

func (s *CredentialStore) insert(ctx context.Context, user *entity.User) error {
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return ErrDuplicateEmail
		}
		return storeError("create user", err)
	}
	return nil
}

// GrantRegistration is the self-service path: a missing registration is
// added, an existing one keeps its roles and gains the requested ones.
func (s *CredentialStore) GrantRegistration(ctx context.Context, user *entity.User, input RegistrationInput) (*entity.AppRegistration, error) {
	reg := user.Registration(input.App)
	if reg == nil {
		added, err := s.addRegistration(user, input)
		if err != nil {
			return nil, err
		}
		if err := s.Save(ctx, user); err != nil {
			return nil, err
		}
		return added, nil
	}
	if err := user.GrantRoles(input.App, input.Roles, s.now()); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return user.Registration(input.App), nil
}

// OverrideRegistration is the admin path: the role set is replaced and, when
// a different auth method is given, the credential is switched too.
func (s *CredentialStore) OverrideRegistration(ctx context.Context, user *entity.User, input RegistrationInput) (*entity.AppRegistration, error) {
	reg := user.Registration(input.App)
	if reg == nil {
		added, err := s.addRegistration(user, input)
		if err != nil {
			return nil, err
		}
		if err := s.Save(ctx, user); err != nil {
			return nil, err
		}
		return added, nil
	}
	if err := user.OverrideRoles(input.App, input.Roles, s.now()); err != nil {
		return nil, err
	}
	if input.AuthMethod != "" && input.AuthMethod != reg.AuthMethod {
		if err := s.changeAuthMethod(user, input.App, input.AuthMethod, input.Password); err != nil {
			return nil, err
		}
	}
	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return user.Registration(input.App), nil
}

// VerifyPasswordForApp is false, never an error, when there is nothing to
// compare against.
func (s *CredentialStore) VerifyPasswordForApp(user *entity.User, app entity.AppIdentifier, candidate string) bool {
	reg := user.Registration(app)
	if reg == nil || !reg.AuthMethod.UsesPassword() || reg.Password == nil {
		s.hasher.Verify(s.dummyHash, candidate)
		return false
	}
	return s.hasher.Verify(*reg.Password, candidate)
}

func (s *CredentialStore) SetAppActive(ctx context.Context, user *entity.User, app entity.AppIdentifier, active bool, actor, reason string) error {
	if err := user.SetAppActive(app, active, actor, reason, s.now()); err != nil {
		return err
	}
	return s.Save(ctx, user)
}

func (s *CredentialStore) ChangeAuthMethod(ctx context.Context, user *entity.User, app entity.AppIdentifier, method entity.AuthMethod, password string) error {
	if err := s.changeAuthMethod(user, app, method, password); err != nil {
		return err
	}
	return s.Save(ctx, user)
}

// SetAppPassword replaces the app's password, clears its lock and stamps
// PasswordChangedAt so older access tokens stop validating.
func (s *CredentialStore) SetAppPassword(ctx context.Context, user *entity.User, app entity.AppIdentifier, password string) error {
	reg := user.Registration(app)
	if reg == nil {
		return entity.ErrRegistrationNotFound
	}
	if !reg.AuthMethod.UsesPassword() {
		return fmt.Errorf("%w: %s", ErrWrongAuthMethod, reg.AuthMethod)
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	now := s.now()
	reg.Password = &hash
	reg.ResetAttempts()
	reg.UpdatedAt = now
	user.PasswordChangedAt = &now
	user.UpdatedAt = now
	return s.Save(ctx, user)
}

func (s *CredentialStore) Save(ctx context.Context, user *entity.User) error {
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return ErrDuplicateEmail
		}
		return storeError("save user", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return storeError("delete user", err)
	}
	return nil
}

func (s *CredentialStore) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

func (s *CredentialStore) ListByApp(ctx context.Context, app entity.AppIdentifier, limit, offset int) ([]entity.User, error) {
	users, err := s.users.ListByApp(ctx, app, limit, offset)
	if err != nil {
		return nil, storeError("list users by app", err)
	}
	return users, nil
}

func (s *CredentialStore) addRegistration(user *entity.User, input RegistrationInput) (*entity.AppRegistration, error) {
	method := input.AuthMethod
	if method == "" {
		method = entity.AuthMethodEmailPassword
	}
	reg := entity.AppRegistration{
		AppIdentifier: input.App,
		Roles:         input.Roles,
		AuthMethod:    method,
	}
	if method.UsesPassword() {
		if strings.TrimSpace(input.Password) == "" {
			return nil, entity.ErrPasswordRequired
		}
		hash, err := s.hash(input.Password)
		if err != nil {
			return nil, err
		}
		reg.Password = &hash
	}
	return user.AddRegistration(reg, s.now())
}

func (s *CredentialStore) changeAuthMethod(user *entity.User, app entity.AppIdentifier, method entity.AuthMethod, password string) error {
	var hash *string
	if method.UsesPassword() {
		if strings.TrimSpace(password) == "" {
			return entity.ErrPasswordRequired
		}
		hashed, err := s.hash(password)
		if err != nil {
			return err
		}
		hash = &hashed
	}
	return user.ChangeAuthMethod(app, method, hash, s.now())
}

func (s *CredentialStore) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *CredentialStore) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
