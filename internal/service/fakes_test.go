package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"authhub/internal/access"
	"authhub/internal/apps"
	"authhub/internal/entity"
	"authhub/internal/oauth"
	"authhub/internal/repository"
	"authhub/internal/service"
	"authhub/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

const (
	appA        = "http://localhost:3002" // todo-app
	appB        = "http://localhost:3000" // sera-food-customer-app
	appBusiness = "http://localhost:3001" // sera-food-business-app
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func copyUser(user *entity.User) *entity.User {
	clone := *user
	clone.AppRegistrations = make([]entity.AppRegistration, len(user.AppRegistrations))
	for i, reg := range user.AppRegistrations {
		reg.Roles = append([]entity.Role(nil), reg.Roles...)
		clone.AppRegistrations[i] = reg
	}
	return &clone
}

// fakeUserRepo stores copies so tests observe only what was persisted.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
	err   error
	saves int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) conflict(user *entity.User) bool {
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Email == user.Email {
			return true
		}
		for _, provider := range entity.AllProviders() {
			a, b := existing.ProviderID(provider), user.ProviderID(provider)
			if a != nil && b != nil && *a == *b {
				return true
			}
		}
	}
	return false
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[user.ID]; ok || r.conflict(user) {
		return repository.ErrDuplicateKey
	}
	if err := user.EnsurePasswordHashes(bcrypt.MinCost); err != nil {
		return err
	}
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if user, ok := r.users[id]; ok {
		return copyUser(user), nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, user := range r.users {
		if id := user.ProviderID(provider); id != nil && *id == providerID {
			return copyUser(user), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.conflict(user) {
		return repository.ErrDuplicateKey
	}
	if err := user.EnsurePasswordHashes(bcrypt.MinCost); err != nil {
		return err
	}
	r.saves++
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return r.ListByApp(ctx, "", limit, offset)
}

func (r *fakeUserRepo) ListByApp(ctx context.Context, app entity.AppIdentifier, limit, offset int) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var users []entity.User
	for _, user := range r.users {
		if app == "" || user.Registration(app) != nil {
			users = append(users, *copyUser(user))
		}
	}
	return users, nil
}

func (r *fakeUserRepo) get(id uuid.UUID) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.users[id])
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*entity.RefreshToken
	err    error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: make(map[string]*entity.RefreshToken)}
}

func (r *fakeRefreshRepo) Create(ctx context.Context, token *entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	stored := *token
	r.tokens[token.TokenHash] = &stored
	return nil
}

func (r *fakeRefreshRepo) FindByTokenHash(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	token, ok := r.tokens[hash]
	if !ok || token.RevokedAt != nil {
		return nil, nil
	}
	found := *token
	return &found, nil
}

func (r *fakeRefreshRepo) Revoke(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if token, ok := r.tokens[hash]; ok {
		now := time.Now()
		token.RevokedAt = &now
	}
	return nil
}

func (r *fakeRefreshRepo) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	now := time.Now()
	for _, token := range r.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeRefreshRepo) live(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, token := range r.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			count++
		}
	}
	return count
}

type fakeVerificationRepo struct {
	mu     sync.Mutex
	tokens []*entity.VerificationToken
	clock  service.Clock
}

func (r *fakeVerificationRepo) Create(ctx context.Context, token *entity.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	r.tokens = append(r.tokens, &stored)
	return nil
}

func (r *fakeVerificationRepo) FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == tokenHash && token.Type == tokenType && token.UsedAt == nil && token.ExpiresAt.After(r.clock.Now()) {
			found := *token
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeVerificationRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, token := range r.tokens {
		if token.ID == id {
			token.UsedAt = &now
		}
	}
	return nil
}

func (r *fakeVerificationRepo) InvalidateForUser(ctx context.Context, userID uuid.UUID, tokenType entity.VerificationType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, token := range r.tokens {
		if token.UserID == userID && token.Type == tokenType && token.UsedAt == nil {
			token.UsedAt = &now
		}
	}
	return nil
}

type fakeSecurityLogRepo struct {
	mu   sync.Mutex
	logs []entity.SecurityLog
}

func (r *fakeSecurityLogRepo) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *fakeSecurityLogRepo) actions() []entity.SecurityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]entity.SecurityAction, 0, len(r.logs))
	for _, log := range r.logs {
		actions = append(actions, log.Action)
	}
	return actions
}

// mockEmailSender records the raw tokens it is asked to deliver.
type mockEmailSender struct {
	mock.Mock
	mu     sync.Mutex
	tokens []string
}

func (m *mockEmailSender) SendVerificationEmail(ctx context.Context, email string, token string) error {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	return m.Called(ctx, email, token).Error(0)
}

func (m *mockEmailSender) SendPasswordResetEmail(ctx context.Context, email string, appEndpoint string, token string) error {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	return m.Called(ctx, email, appEndpoint, token).Error(0)
}

func (m *mockEmailSender) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[len(m.tokens)-1]
}

type harness struct {
	clock         *fakeClock
	users         *fakeUserRepo
	refresh       *fakeRefreshRepo
	verifications *fakeVerificationRepo
	logs          *fakeSecurityLogRepo
	email         *mockEmailSender
	jwt           utils.JWTManager
	providers     *oauth.Providers
	state         oauth.StateSigner

	credentials *service.CredentialStore
	tokens      *service.TokenIssuer
	auth        *service.AuthService
	oauth       *service.OAuthService
	admin       *service.AdminService
	user        *service.UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		clock:         clock,
		users:         newFakeUserRepo(),
		refresh:       newFakeRefreshRepo(),
		verifications: &fakeVerificationRepo{clock: clock},
		logs:          &fakeSecurityLogRepo{},
		email:         &mockEmailSender{},
		jwt:           utils.JWTManager{Secret: []byte("test-secret"), AccessTokenTTL: 15 * time.Minute, Now: clock.Now},
		state:         oauth.StateSigner{Secret: []byte("test-secret"), Now: clock.Now},
	}
	h.email.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.email.On("SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	providers, err := oauth.NewProviders(nil)
	if err != nil {
		t.Fatal(err)
	}
	h.providers = providers

	registry := apps.Default()
	policy := access.DefaultPolicy()
	h.credentials = service.NewCredentialStore(h.users, service.BcryptPasswordHasher{Cost: bcrypt.MinCost}, clock)
	h.tokens = service.NewTokenIssuer(h.refresh, h.jwt, clock, 7*24*time.Hour)
	h.auth = service.NewAuthService(registry, h.credentials, h.tokens, h.verifications, h.logs, h.email, policy, nil, logger, clock, service.AuthConfig{})
	h.oauth = service.NewOAuthService(registry, h.credentials, h.tokens, h.providers, h.state, h.logs, policy, nil, logger, clock)
	h.admin = service.NewAdminService(h.credentials, h.tokens, h.logs, logger, clock)
	h.user = service.NewUserService(h.credentials, h.tokens, clock)
	return h
}
