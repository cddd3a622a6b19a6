package service

import (
	"context"
	"fmt"
	"time"

	"authhub/internal/dto"
	"authhub/internal/entity"
	"authhub/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AdminService backs the admin routes. Every change is written to the
// security log with the acting administrator.
type AdminService struct {
	credentials  *CredentialStore
	tokens       *TokenIssuer
	securityLogs repository.SecurityLogRepository
	logger       logrus.FieldLogger
	clock        Clock
}

func NewAdminService(credentials *CredentialStore, tokens *TokenIssuer, securityLogs repository.SecurityLogRepository, logger logrus.FieldLogger, clock Clock) *AdminService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdminService{
		credentials:  credentials,
		tokens:       tokens,
		securityLogs: securityLogs,
		logger:       logger,
		clock:        clock,
	}
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return s.credentials.List(ctx, limit, offset)
}

func (s *AdminService) GetUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.load(ctx, userID)
}

func (s *AdminService) ListUsersByApp(ctx context.Context, app entity.AppIdentifier, limit, offset int) ([]entity.User, error) {
	if !app.Valid() {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidAppIdentifier, app)
	}
	return s.credentials.ListByApp(ctx, app, limit, offset)
}

// GrantAppAccess adds a registration or unions roles into an existing one.
func (s *AdminService) GrantAppAccess(ctx context.Context, actor Actor, userID uuid.UUID, input dto.GrantAppAccessRequest) (*entity.User, error) {
	app := entity.AppIdentifier(input.AppIdentifier)
	if !app.Valid() {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidAppIdentifier, app)
	}
	roles := dto.Roles(input.Roles)
	if err := s.authorizeRoles(actor, roles); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, err = s.credentials.GrantRegistration(ctx, user, RegistrationInput{
		App:        app,
		Roles:      roles,
		AuthMethod: entity.AuthMethod(input.AuthMethod),
		Password:   input.Password,
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, user.ID, &app, entity.Registration, map[string]any{"roles": input.Roles, "mode": "grant"})
	return user, nil
}

// OverrideAppRoles replaces the registration's roles wholesale.
func (s *AdminService) OverrideAppRoles(ctx context.Context, actor Actor, userID uuid.UUID, app entity.AppIdentifier, raw []string) (*entity.User, error) {
	roles := dto.Roles(raw)
	if err := s.authorizeRoles(actor, roles); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Registration(app) == nil {
		return nil, entity.ErrRegistrationNotFound
	}
	if _, err := s.credentials.OverrideRegistration(ctx, user, RegistrationInput{App: app, Roles: roles}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, user.ID, &app, entity.Registration, map[string]any{"roles": raw, "mode": "override"})
	return user, nil
}

// DeactivateApp closes one app to the user. Other apps are untouched and
// refresh tokens for this app stop rotating.
func (s *AdminService) DeactivateApp(ctx context.Context, actor Actor, userID uuid.UUID, app entity.AppIdentifier, reason string) (*entity.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.SetAppActive(ctx, user, app, false, actor.UserID, reason); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, user.ID, &app, entity.AppDeactivated, map[string]any{"reason": reason})
	return user, nil
}

func (s *AdminService) ReactivateApp(ctx context.Context, actor Actor, userID uuid.UUID, app entity.AppIdentifier) (*entity.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.SetAppActive(ctx, user, app, true, actor.UserID, ""); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, user.ID, &app, entity.AppReactivated, nil)
	return user, nil
}

func (s *AdminService) ChangeAuthMethod(ctx context.Context, actor Actor, userID uuid.UUID, app entity.AppIdentifier, input dto.ChangeAuthMethodRequest) (*entity.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	method := entity.AuthMethod(input.AuthMethod)
	if err := s.credentials.ChangeAuthMethod(ctx, user, app, method, input.Password); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, user.ID, &app, entity.AuthMethodChanged, map[string]any{"auth_method": input.AuthMethod})
	return user, nil
}

// SetAccountActive is the account-wide switch. Deactivation also revokes
// every refresh token of the user.
func (s *AdminService) SetAccountActive(ctx context.Context, actor Actor, userID uuid.UUID, active bool) (*entity.User, error) {
	if actor.UserID == userID.String() && !active {
		return nil, fmt.Errorf("%w: administrators cannot deactivate themselves", ErrForbidden)
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	user.UpdatedAt = s.now()
	if err := s.credentials.Save(ctx, user); err != nil {
		return nil, err
	}
	if !active {
		if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	action := entity.AccountDeactivated
	if active {
		action = entity.AccountReactivated
	}
	s.audit(ctx, actor, user.ID, nil, action, map[string]any{"is_active": active})
	return user, nil
}

func (s *AdminService) RevokeUserSessions(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.audit(ctx, actor, userID, nil, entity.SessionRevoked, map[string]any{"scope": "all"})
	return nil
}

// authorizeRoles keeps superadmin grants with superadmins.
func (s *AdminService) authorizeRoles(actor Actor, roles []entity.Role) error {
	for _, role := range roles {
		if role == entity.RoleSuperAdmin && actor.Role != entity.RoleSuperAdmin {
			return fmt.Errorf("%w: only a superadmin can grant %s", ErrForbidden, role)
		}
	}
	return nil
}

func (s *AdminService) load(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AdminService) audit(ctx context.Context, actor Actor, userID uuid.UUID, app *entity.AppIdentifier, action entity.SecurityAction, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["actor"] = actor.UserID
	writeSecurityLog(ctx, s.securityLogs, s.logger, s.now(), &userID, app, nil, action, metadata)
}

func (s *AdminService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
