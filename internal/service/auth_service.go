package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"authhub/internal/access"
	"authhub/internal/apps"
	"authhub/internal/dto"
	"authhub/internal/entity"
	"authhub/internal/metrics"
	"authhub/internal/repository"
	"authhub/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type AuthService struct {
	apps          *apps.Registry
	credentials   *CredentialStore
	tokens        *TokenIssuer
	verifications repository.VerificationTokenRepository
	securityLogs  repository.SecurityLogRepository

	emailSender EmailSender
	policy      access.Policy
	metrics     *metrics.Metrics
	logger      logrus.FieldLogger
	clock       Clock
	config      AuthConfig
}

func NewAuthService(
	registry *apps.Registry,
	credentials *CredentialStore,
	tokens *TokenIssuer,
	verifications repository.VerificationTokenRepository,
	securityLogs repository.SecurityLogRepository,
	emailSender EmailSender,
	policy access.Policy,
	recorder *metrics.Metrics,
	logger logrus.FieldLogger,
	clock Clock,
	config AuthConfig,
) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		apps:          registry,
		credentials:   credentials,
		tokens:        tokens,
		verifications: verifications,
		securityLogs:  securityLogs,
		emailSender:   emailSender,
		policy:        policy,
		metrics:       recorder,
		logger:        logger,
		clock:         clock,
		config:        config,
	}
}

// Register creates the account on first use of an email and otherwise adds
// a registration for the new app to the existing account.
func (s *AuthService) Register(ctx context.Context, input dto.RegisterRequest, meta SessionMeta) (*AuthResult, error) {
	result, err := s.register(ctx, input, meta)
	app := "unknown"
	if resolved, ok := s.apps.Resolve(input.AppEndpoint); ok {
		app = string(resolved)
	}
	s.metrics.Registration(app, outcome(err))
	return result, err
}

func (s *AuthService) register(ctx context.Context, input dto.RegisterRequest, meta SessionMeta) (*AuthResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}
	app, ok := s.apps.Resolve(input.AppEndpoint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAppEndpoint, input.AppEndpoint)
	}
	method := entity.AuthMethod(input.AuthMethod)
	if method == "" {
		method = entity.AuthMethodEmailPassword
	}
	if !method.UsesPassword() {
		// OAuth registrations come from the provider callback only.
		return nil, fmt.Errorf("%w: %s registrations are created through the provider", ErrInvalidInput, method)
	}
	roles := dto.Roles(input.Roles)
	if len(roles) == 0 {
		roles = s.apps.DefaultRoles(app)
	}
	for _, role := range roles {
		if role.IsAdministrative() {
			return nil, fmt.Errorf("%w: role %s cannot be self-assigned", ErrForbidden, role)
		}
	}
	registration := RegistrationInput{App: app, Roles: roles, AuthMethod: method, Password: input.Password}

	user, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	created := user == nil
	if created {
		user, err = s.credentials.Create(ctx, email, input.Username, registration)
		if err != nil {
			return nil, err
		}
	} else {
		if !user.IsActive {
			return nil, ErrAccountDeactivated
		}
		if reg := user.Registration(app); reg != nil {
			if !reg.IsActive {
				return nil, ErrAppAccessDeactivated
			}
			return nil, ErrAlreadyRegistered
		}
		if _, err := s.credentials.GrantRegistration(ctx, user, registration); err != nil {
			return nil, err
		}
	}

	reg := user.Registration(app)
	role := access.ChooseRole(reg, "")
	tokens, err := s.tokens.Issue(ctx, user, app, role, meta)
	if err != nil {
		return nil, err
	}

	s.logSecurity(ctx, &user.ID, &app, meta.IPAddress, entity.Registration, map[string]any{
		"new_account": created,
		"auth_method": string(method),
	})
	result := &AuthResult{User: user, App: app, Role: role, Tokens: tokens}
	if !user.EmailVerified {
		if err := s.sendEmailVerification(ctx, user); err != nil {
			result.EmailWarning = "account created but the verification email could not be sent"
		}
	}
	return result, nil
}

// Login runs the access gates for the app before the password is checked, so
// a locked or deactivated registration never reaches the comparison.
func (s *AuthService) Login(ctx context.Context, input dto.LoginRequest, meta SessionMeta) (*AuthResult, error) {
	result, err := s.login(ctx, input, meta)
	app := "unknown"
	if resolved, ok := s.apps.Resolve(input.AppEndpoint); ok {
		app = string(resolved)
	}
	s.metrics.Login(app, outcome(err))
	return result, err
}

func (s *AuthService) login(ctx context.Context, input dto.LoginRequest, meta SessionMeta) (*AuthResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}
	app, ok := s.apps.Resolve(input.AppEndpoint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAppEndpoint, input.AppEndpoint)
	}
	selected := entity.Role(input.Role)
	if selected != "" && !s.apps.IsValidRole(input.Role) {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidRole, input.Role)
	}

	user, err := s.credentials.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	var reg *entity.AppRegistration
	if user != nil {
		reg = user.Registration(app)
	}
	if reg == nil {
		s.credentials.VerifyPasswordForApp(&entity.User{}, app, input.Password)
		var userID *uuid.UUID
		if user != nil {
			userID = &user.ID
		}
		s.logSecurity(ctx, userID, &app, meta.IPAddress, entity.LoginFailed, map[string]any{"reason": "unknown_account"})
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, selected, now); err != nil {
		s.logSecurity(ctx, &user.ID, &app, meta.IPAddress, entity.LoginFailed, map[string]any{"reason": err.Error()})
		return nil, err
	}

	if !s.credentials.VerifyPasswordForApp(user, app, input.Password) {
		locked := s.policy.RecordFailure(reg, now)
		if err := s.credentials.Save(ctx, user); err != nil {
			return nil, err
		}
		s.logSecurity(ctx, &user.ID, &app, meta.IPAddress, entity.LoginFailed, map[string]any{"attempts": reg.LoginAttempts})
		if locked {
			s.metrics.Lockout(string(app))
			s.logSecurity(ctx, &user.ID, &app, meta.IPAddress, entity.AppLocked, map[string]any{"locked_until": reg.LockedUntil})
			s.logger.WithFields(logrus.Fields{
				"user_id":      user.ID.String(),
				"app":          app,
				"locked_until": reg.LockedUntil,
			}).Warn("app access locked after repeated failures")
			return nil, &access.LockedError{Until: *reg.LockedUntil}
		}
		return nil, ErrInvalidCredentials
	}

	s.policy.RecordSuccess(user, reg, now)
	if err := s.credentials.Save(ctx, user); err != nil {
		return nil, err
	}
	role := access.ChooseRole(reg, selected)
	tokens, err := s.tokens.Issue(ctx, user, app, role, meta)
	if err != nil {
		return nil, err
	}
	s.logSecurity(ctx, &user.ID, &app, meta.IPAddress, entity.LoginSuccess, map[string]any{"role": string(role)})
	return &AuthResult{User: user, App: app, Role: role, Tokens: tokens}, nil
}

// Refresh rotates a refresh token. The registration it was issued for must
// still be usable.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*AuthResult, error) {
	current, err := s.tokens.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.credentials.FindByID(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	reg := user.Registration(current.AppIdentifier)
	if reg == nil {
		return nil, ErrInvalidToken
	}
	state := s.policy.State(user, reg, s.now())
	switch state.Status {
	case access.StatusDeactivated:
		if !user.IsActive {
			return nil, ErrAccountDeactivated
		}
		return nil, ErrAppAccessDeactivated
	case access.StatusLocked:
		return nil, &access.LockedError{Until: *state.LockedUntil}
	}
	role := current.Role
	if !reg.HasRole(role) {
		role = access.ChooseRole(reg, "")
	}

	tokens, err := s.tokens.Rotate(ctx, current, user, role, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, App: current.AppIdentifier, Role: role, Tokens: tokens}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID *uuid.UUID, meta SessionMeta) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	s.logSecurity(ctx, userID, nil, meta.IPAddress, entity.Logout, nil)
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, meta SessionMeta) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.logSecurity(ctx, &userID, nil, meta.IPAddress, entity.SessionRevoked, map[string]any{"scope": "all"})
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidInput
	}
	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.EmailVerify)
	if err != nil {
		return storeError("find verification token", err)
	}
	if verification == nil || !verification.ExpiresAt.After(s.now()) {
		return ErrInvalidToken
	}

	user, err := s.credentials.FindByID(ctx, verification.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	user.EmailVerified = true
	user.UpdatedAt = s.now()
	if err := s.credentials.Save(ctx, user); err != nil {
		return err
	}
	if err := s.verifications.MarkUsed(ctx, verification.ID); err != nil {
		return storeError("mark verification token used", err)
	}
	return nil
}

// ResendVerification answers the same way whether or not the email exists.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}
	user, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified || !user.IsActive {
		return nil
	}
	if err := s.verifications.InvalidateForUser(ctx, user.ID, entity.EmailVerify); err != nil {
		return storeError("invalidate verification tokens", err)
	}
	_ = s.sendEmailVerification(ctx, user)
	return nil
}

// RequestPasswordReset mails an app-scoped reset link. Unknown emails and
// registrations without a password succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, appEndpoint string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}
	app, ok := s.apps.Resolve(appEndpoint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidAppEndpoint, appEndpoint)
	}
	user, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return nil
	}
	reg := user.Registration(app)
	if reg == nil || !reg.AuthMethod.UsesPassword() {
		return nil
	}

	if err := s.verifications.InvalidateForUser(ctx, user.ID, entity.PasswordReset); err != nil {
		return storeError("invalidate reset tokens", err)
	}
	token, err := s.createVerificationToken(ctx, user.ID, entity.PasswordReset, &app, s.resetTokenTTL())
	if err != nil {
		return err
	}
	if s.emailSender != nil {
		if err := s.emailSender.SendPasswordResetEmail(ctx, user.Email, appEndpoint, token); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": user.ID.String(),
				"app":     app,
			}).Warn("password reset email not sent")
		}
	}
	s.logSecurity(ctx, &user.ID, &app, nil, entity.Reset, map[string]any{"stage": "requested"})
	return nil
}

// ResetPassword consumes a reset token. Tokens issued before resets were app
// scoped apply to every password registration of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}
	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.PasswordReset)
	if err != nil {
		return storeError("find reset token", err)
	}
	if verification == nil || !verification.ExpiresAt.After(s.now()) {
		return ErrInvalidToken
	}

	user, err := s.credentials.FindByID(ctx, verification.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	var targets []entity.AppIdentifier
	if verification.AppIdentifier != nil {
		targets = append(targets, *verification.AppIdentifier)
	} else {
		for _, reg := range user.AppRegistrations {
			if reg.AuthMethod.UsesPassword() {
				targets = append(targets, reg.AppIdentifier)
			}
		}
	}
	if len(targets) == 0 {
		return ErrInvalidToken
	}
	for _, app := range targets {
		if err := s.credentials.SetAppPassword(ctx, user, app, newPassword); err != nil {
			if errors.Is(err, entity.ErrRegistrationNotFound) || errors.Is(err, ErrWrongAuthMethod) {
				return ErrInvalidToken
			}
			return err
		}
	}

	if err := s.verifications.MarkUsed(ctx, verification.ID); err != nil {
		return storeError("mark reset token used", err)
	}
	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	s.logSecurity(ctx, &user.ID, verification.AppIdentifier, nil, entity.Reset, map[string]any{"stage": "completed"})
	return nil
}

// ChangePassword replaces the password of one app registration after the
// current one checks out. Every session of the user is revoked.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, app entity.AppIdentifier, current string, next string) error {
	if current == "" || strings.TrimSpace(next) == "" {
		return ErrInvalidInput
	}
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	reg := user.Registration(app)
	if reg == nil {
		return ErrInvalidCredentials
	}
	if !reg.AuthMethod.UsesPassword() {
		return &access.WrongAuthMethodError{Required: reg.AuthMethod}
	}
	if !s.credentials.VerifyPasswordForApp(user, app, current) {
		return ErrInvalidCredentials
	}
	if err := s.credentials.SetAppPassword(ctx, user, app, next); err != nil {
		return err
	}
	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	s.logSecurity(ctx, &user.ID, &app, nil, entity.PasswordChanged, nil)
	return nil
}

func (s *AuthService) sendEmailVerification(ctx context.Context, user *entity.User) error {
	if s.emailSender == nil {
		return nil
	}
	token, err := s.createVerificationToken(ctx, user.ID, entity.EmailVerify, nil, s.verificationTokenTTL())
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID.String()).Error("verification token not stored")
		return err
	}
	if err := s.emailSender.SendVerificationEmail(ctx, user.Email, token); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID.String()).Warn("verification email not sent")
		return err
	}
	return nil
}

func (s *AuthService) createVerificationToken(
	ctx context.Context,
	userID uuid.UUID,
	typeValue entity.VerificationType,
	app *entity.AppIdentifier,
	ttl time.Duration,
) (string, error) {
	rawToken, tokenHash, err := utils.NewOpaqueToken(32)
	if err != nil {
		return "", err
	}

	verification := entity.NewVerificationToken(userID, typeValue, app, tokenHash, s.now(), ttl)
	if err := s.verifications.Create(ctx, verification); err != nil {
		return "", storeError("create verification token", err)
	}
	return rawToken, nil
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	app *entity.AppIdentifier,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	writeSecurityLog(ctx, s.securityLogs, s.logger, s.now(), userID, app, ipAddress, action, metadata)
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *AuthService) verificationTokenTTL() time.Duration {
	if s.config.VerificationTokenTTL > 0 {
		return s.config.VerificationTokenTTL
	}
	return 24 * time.Hour
}

func (s *AuthService) resetTokenTTL() time.Duration {
	if s.config.ResetTokenTTL > 0 {
		return s.config.ResetTokenTTL
	}
	return time.Hour
}

// writeSecurityLog is best effort: a failed audit write is logged and the
// operation carries on.
func writeSecurityLog(
	ctx context.Context,
	logs repository.SecurityLogRepository,
	logger logrus.FieldLogger,
	now time.Time,
	userID *uuid.UUID,
	app *entity.AppIdentifier,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if logs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			logger.WithError(err).WithField("action", action).Warn("security log metadata dropped")
		} else {
			payload = datatypes.JSON(bytes)
		}
	}
	log := &entity.SecurityLog{
		ID:            uuid.New(),
		UserID:        userID,
		AppIdentifier: app,
		IPAddress:     ipAddress,
		Action:        action,
		Metadata:      payload,
		CreatedAt:     now,
	}
	if err := logs.Log(ctx, log); err != nil {
		logger.WithError(err).WithField("action", action).Warn("security log not written")
	}
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked), errors.Is(err, ErrAppAccessLocked):
		return "locked"
	case errors.Is(err, ErrAccountDeactivated), errors.Is(err, ErrAppAccessDeactivated):
		return "deactivated"
	case errors.Is(err, ErrWrongAuthMethod):
		return "wrong_auth_method"
	case errors.Is(err, ErrRoleNotGranted):
		return "role_not_granted"
	case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrDuplicateEmail):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case IsValidationError(err), errors.Is(err, ErrForbidden):
		return "rejected"
	}
	return "error"
}
