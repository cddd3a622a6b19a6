package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authhub/internal/access"
	"authhub/internal/apps"
	"authhub/internal/entity"
	"authhub/internal/metrics"
	"authhub/internal/oauth"
	"authhub/internal/repository"
	"authhub/internal/utils"

	"github.com/sirupsen/logrus"
)

type LinkOutcome string

const (
	LinkCreated  LinkOutcome = "created"
	LinkLinked   LinkOutcome = "linked"
	LinkRejected LinkOutcome = "rejected"
)

// LinkResult is what the provider callback turns into a redirect. Reason is
// set only when Outcome is LinkRejected.
type LinkResult struct {
	Outcome     LinkOutcome
	Reason      error
	AppEndpoint string
	App         entity.AppIdentifier
	Role        entity.Role
	User        *entity.User
	Tokens      *TokenPair
}

func rejected(reason error, appEndpoint string) *LinkResult {
	return &LinkResult{Outcome: LinkRejected, Reason: reason, AppEndpoint: appEndpoint}
}

type OAuthService struct {
	apps         *apps.Registry
	credentials  *CredentialStore
	tokens       *TokenIssuer
	providers    *oauth.Providers
	state        oauth.StateSigner
	securityLogs repository.SecurityLogRepository

	policy  access.Policy
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
	clock   Clock
}

func NewOAuthService(
	registry *apps.Registry,
	credentials *CredentialStore,
	tokens *TokenIssuer,
	providers *oauth.Providers,
	state oauth.StateSigner,
	securityLogs repository.SecurityLogRepository,
	policy access.Policy,
	recorder *metrics.Metrics,
	logger logrus.FieldLogger,
	clock Clock,
) *OAuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OAuthService{
		apps:         registry,
		credentials:  credentials,
		tokens:       tokens,
		providers:    providers,
		state:        state,
		securityLogs: securityLogs,
		policy:       policy,
		metrics:      recorder,
		logger:       logger,
		clock:        clock,
	}
}

// AuthURL starts the handshake. The app endpoint rides along in the signed
// state parameter.
func (s *OAuthService) AuthURL(name entity.Provider, appEndpoint string) (string, error) {
	provider, err := s.providers.Get(name)
	if err != nil {
		return "", err
	}
	if _, ok := s.apps.Resolve(appEndpoint); !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidAppEndpoint, appEndpoint)
	}
	state, err := s.state.Sign(appEndpoint)
	if err != nil {
		return "", err
	}
	return provider.AuthCodeURL(state), nil
}

// Callback completes the handshake and links the returned identity.
func (s *OAuthService) Callback(ctx context.Context, name entity.Provider, code string, state string, meta SessionMeta) (*LinkResult, error) {
	appEndpoint, err := s.state.Verify(state)
	if err != nil {
		return rejected(err, ""), nil
	}
	provider, err := s.providers.Get(name)
	if err != nil {
		return nil, err
	}
	profile, err := provider.Exchange(ctx, code)
	if err != nil {
		s.logger.WithError(err).WithField("provider", name).Warn("oauth exchange failed")
		return rejected(err, appEndpoint), nil
	}
	return s.LinkAccount(ctx, *profile, appEndpoint, meta)
}

// LinkAccount resolves a provider identity to an account: by provider id
// first, then by email, creating the account when neither matches.
func (s *OAuthService) LinkAccount(ctx context.Context, profile oauth.ProviderProfile, appEndpoint string, meta SessionMeta) (*LinkResult, error) {
	result, err := s.linkAccount(ctx, profile, appEndpoint, meta)
	switch {
	case err != nil:
		s.metrics.OAuthLink(string(profile.Provider), "error")
	default:
		s.metrics.OAuthLink(string(profile.Provider), string(result.Outcome))
	}
	return result, err
}

func (s *OAuthService) linkAccount(ctx context.Context, profile oauth.ProviderProfile, appEndpoint string, meta SessionMeta) (*LinkResult, error) {
	if !profile.Provider.Valid() {
		return rejected(fmt.Errorf("%w: %s", entity.ErrInvalidProvider, profile.Provider), appEndpoint), nil
	}
	if profile.ProviderID == "" || utils.NormalizeEmail(profile.Email) == "" {
		return rejected(oauth.ErrProfileIncomplete, appEndpoint), nil
	}
	app, ok := s.apps.Resolve(appEndpoint)
	if !ok {
		return rejected(fmt.Errorf("%w: %s", ErrInvalidAppEndpoint, appEndpoint), appEndpoint), nil
	}
	method := profile.Provider.AuthMethod()
	now := s.now()

	user, err := s.credentials.FindByProviderID(ctx, profile.Provider, profile.ProviderID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.credentials.FindByEmail(ctx, profile.Email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return s.createFromProfile(ctx, profile, app, appEndpoint, meta)
		}
		// Linking by email hands the provider identity the existing account.
		if !profile.EmailVerified {
			return rejected(ErrUnverifiedEmail, appEndpoint), nil
		}
	}

	if existing := user.ProviderID(profile.Provider); existing != nil && *existing != profile.ProviderID {
		return rejected(ErrProviderConflict, appEndpoint), nil
	}
	reg := user.Registration(app)
	if reg != nil {
		// Gates run before anything is linked so a rejection leaves the
		// account untouched.
		if err := s.policy.CheckLogin(user, reg, method, "", now); err != nil {
			return rejected(err, appEndpoint), nil
		}
	} else if !user.IsActive {
		return rejected(ErrAccountDeactivated, appEndpoint), nil
	}

	if user.ProviderID(profile.Provider) == nil {
		if err := user.LinkProvider(profile.Provider, profile.ProviderID, now); err != nil {
			return nil, err
		}
	}
	if reg == nil {
		reg, err = user.AddRegistration(entity.AppRegistration{
			AppIdentifier: app,
			Roles:         s.apps.DefaultRoles(app),
			AuthMethod:    method,
		}, now)
		if err != nil {
			return nil, err
		}
	}
	if profile.EmailVerified {
		user.EmailVerified = true
	}
	s.policy.RecordSuccess(user, reg, now)
	if err := s.credentials.Save(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return rejected(ErrProviderConflict, appEndpoint), nil
		}
		return nil, err
	}
	return s.complete(ctx, LinkLinked, user, app, appEndpoint, meta)
}

func (s *OAuthService) createFromProfile(ctx context.Context, profile oauth.ProviderProfile, app entity.AppIdentifier, appEndpoint string, meta SessionMeta) (*LinkResult, error) {
	now := s.now()
	var username *string
	if profile.DisplayName != "" {
		name := profile.DisplayName
		username = &name
	}
	user := entity.NewUser(utils.NormalizeEmail(profile.Email), username, now)
	user.EmailVerified = profile.EmailVerified
	if err := user.LinkProvider(profile.Provider, profile.ProviderID, now); err != nil {
		return nil, err
	}
	reg, err := user.AddRegistration(entity.AppRegistration{
		AppIdentifier: app,
		Roles:         s.apps.DefaultRoles(app),
		AuthMethod:    profile.Provider.AuthMethod(),
	}, now)
	if err != nil {
		return nil, err
	}
	s.policy.RecordSuccess(user, reg, now)
	if err := s.credentials.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return rejected(ErrDuplicateEmail, appEndpoint), nil
		}
		return nil, err
	}
	return s.complete(ctx, LinkCreated, user, app, appEndpoint, meta)
}

func (s *OAuthService) complete(ctx context.Context, outcome LinkOutcome, user *entity.User, app entity.AppIdentifier, appEndpoint string, meta SessionMeta) (*LinkResult, error) {
	reg := user.Registration(app)
	role := access.ChooseRole(reg, "")
	tokens, err := s.tokens.Issue(ctx, user, app, role, meta)
	if err != nil {
		return nil, err
	}
	writeSecurityLog(ctx, s.securityLogs, s.logger, s.now(), &user.ID, &app, meta.IPAddress, entity.OAuthLinked, map[string]any{
		"outcome":     string(outcome),
		"auth_method": string(reg.AuthMethod),
	})
	return &LinkResult{
		Outcome:     outcome,
		AppEndpoint: appEndpoint,
		App:         app,
		Role:        role,
		User:        user,
		Tokens:      tokens,
	}, nil
}

func (s *OAuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
