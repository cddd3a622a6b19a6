package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"authhub/internal/access"
	"authhub/internal/dto"
	"authhub/internal/entity"
	"authhub/internal/oauth"
	"authhub/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func googleProfile(id, email string) oauth.ProviderProfile {
	return oauth.ProviderProfile{
		Provider:      entity.ProviderGoogle,
		ProviderID:    id,
		Email:         email,
		DisplayName:   "Alice",
		EmailVerified: true,
	}
}

func TestLinkAccount_CreatesUser(t *testing.T) {
	h := newHarness(t)

	result, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "Alice@X.com"), appA, service.SessionMeta{})
	require.NoError(t, err)
	require.Equal(t, service.LinkCreated, result.Outcome)
	assert.Equal(t, entity.AppTodo, result.App)
	assert.Equal(t, entity.RoleUser, result.Role)
	assert.NotEmpty(t, result.Tokens.AccessToken)

	stored := h.users.get(result.User.ID)
	assert.Equal(t, "alice@x.com", stored.Email)
	assert.True(t, stored.EmailVerified)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-1", *stored.GoogleID)
	reg := stored.Registration(entity.AppTodo)
	require.NotNil(t, reg)
	assert.Equal(t, entity.AuthMethodGoogle, reg.AuthMethod)
	assert.Nil(t, reg.Password)
}

func TestLinkAccount_LinksByEmail(t *testing.T) {
	h := newHarness(t)
	registered := register(t, h, "alice@x.com", "pw123456", appA)

	result, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appB, service.SessionMeta{})
	require.NoError(t, err)
	require.Equal(t, service.LinkLinked, result.Outcome)
	assert.Equal(t, registered.User.ID, result.User.ID)

	stored := h.users.get(registered.User.ID)
	require.Len(t, stored.AppRegistrations, 2)
	assert.Equal(t, entity.AuthMethodEmailPassword, stored.Registration(entity.AppTodo).AuthMethod)
	assert.Equal(t, entity.AuthMethodGoogle, stored.Registration(entity.AppSeraFoodCustomer).AuthMethod)

	// The password app keeps working alongside the oauth one.
	_, err = login(h, "alice@x.com", "pw123456", appA, "")
	assert.NoError(t, err)
	_, err = login(h, "alice@x.com", "pw123456", appB, "")
	var wrong *access.WrongAuthMethodError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, entity.AuthMethodGoogle, wrong.Required)
}

func TestLinkAccount_UnverifiedEmailDoesNotLink(t *testing.T) {
	h := newHarness(t)
	registered := register(t, h, "alice@x.com", "pw123456", appA)

	profile := googleProfile("g-evil", "alice@x.com")
	profile.EmailVerified = false
	result, err := h.oauth.LinkAccount(context.Background(), profile, appB, service.SessionMeta{})
	require.NoError(t, err)
	require.Equal(t, service.LinkRejected, result.Outcome)
	assert.ErrorIs(t, result.Reason, service.ErrUnverifiedEmail)

	stored := h.users.get(registered.User.ID)
	assert.Len(t, stored.AppRegistrations, 1)
	assert.Nil(t, stored.GoogleID)
	assert.Equal(t, 1, h.users.count())
}

func TestLinkAccount_FindsByProviderIDAfterEmailChange(t *testing.T) {
	h := newHarness(t)
	first, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appA, service.SessionMeta{})
	require.NoError(t, err)

	second, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@new.com"), appA, service.SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, service.LinkLinked, second.Outcome)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 1, h.users.count())
}

func TestLinkAccount_RejectsPasswordRegistration(t *testing.T) {
	h := newHarness(t)
	registered := register(t, h, "alice@x.com", "pw123456", appA)

	result, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appA, service.SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, service.LinkRejected, result.Outcome)
	assert.ErrorIs(t, result.Reason, service.ErrWrongAuthMethod)
	assert.Equal(t, appA, result.AppEndpoint)
	assert.Nil(t, h.users.get(registered.User.ID).GoogleID)
}

func TestLinkAccount_RejectsGatedAccounts(t *testing.T) {
	h := newHarness(t)
	created, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appA, service.SessionMeta{})
	require.NoError(t, err)
	admin := service.Actor{UserID: "admin"}

	_, err = h.admin.DeactivateApp(context.Background(), admin, created.User.ID, entity.AppTodo, "")
	require.NoError(t, err)
	result, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appA, service.SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, service.LinkRejected, result.Outcome)
	assert.ErrorIs(t, result.Reason, service.ErrAppAccessDeactivated)

	_, err = h.admin.SetAccountActive(context.Background(), admin, created.User.ID, false)
	require.NoError(t, err)
	result, err = h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appB, service.SessionMeta{})
	require.NoError(t, err)
	assert.ErrorIs(t, result.Reason, service.ErrAccountDeactivated)
	assert.Nil(t, h.users.get(created.User.ID).Registration(entity.AppSeraFoodCustomer))
}

func TestLinkAccount_ProviderConflict(t *testing.T) {
	h := newHarness(t)
	_, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), appA, service.SessionMeta{})
	require.NoError(t, err)

	result, err := h.oauth.LinkAccount(context.Background(), googleProfile("g-2", "alice@x.com"), appB, service.SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, service.LinkRejected, result.Outcome)
	assert.ErrorIs(t, result.Reason, service.ErrProviderConflict)
}

func TestLinkAccount_RejectsBadInput(t *testing.T) {
	h := newHarness(t)

	result, err := h.oauth.LinkAccount(context.Background(), googleProfile("", "alice@x.com"), appA, service.SessionMeta{})
	require.NoError(t, err)
	assert.ErrorIs(t, result.Reason, oauth.ErrProfileIncomplete)

	result, err = h.oauth.LinkAccount(context.Background(), googleProfile("g-1", "alice@x.com"), "http://unknown", service.SessionMeta{})
	require.NoError(t, err)
	assert.ErrorIs(t, result.Reason, service.ErrInvalidAppEndpoint)
	assert.Zero(t, h.users.count())
}

func TestOAuthCallback_RoundTrip(t *testing.T) {
	h := newHarness(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "provider-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sub": "g-7", "email": "carol@x.com", "email_verified": true, "name": "Carol"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	provider, err := oauth.NewProvider(entity.ProviderGoogle, oauth.ProviderConfig{ClientID: "id", ClientSecret: "secret", CallbackURL: "http://localhost/cb"})
	require.NoError(t, err)
	provider.Config.Endpoint = oauth2.Endpoint{AuthURL: server.URL + "/authorize", TokenURL: server.URL + "/token"}
	provider.UserInfoURL = server.URL + "/userinfo"
	h.providers.Add(provider)

	authURL, err := h.oauth.AuthURL(entity.ProviderGoogle, appB)
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	result, err := h.oauth.Callback(context.Background(), entity.ProviderGoogle, "code", state, service.SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, service.LinkCreated, result.Outcome)
	assert.Equal(t, appB, result.AppEndpoint)
	assert.Equal(t, "carol@x.com", result.User.Email)

	result, err = h.oauth.Callback(context.Background(), entity.ProviderGoogle, "code", "forged", service.SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, service.LinkRejected, result.Outcome)
	assert.ErrorIs(t, result.Reason, oauth.ErrInvalidState)
}

func TestOAuthAuthURL_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.oauth.AuthURL(entity.ProviderGithub, appA)
	assert.ErrorIs(t, err, oauth.ErrProviderNotConfigured)

	_, err = h.oauth.AuthURL("myspace", appA)
	assert.ErrorIs(t, err, entity.ErrInvalidProvider)
}

func TestRegister_RejectsOAuthMethod(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), dto.RegisterRequest{
		Email:       "alice@x.com",
		Password:    "pw123456",
		AppEndpoint: appA,
		AuthMethod:  string(entity.AuthMethodGithub),
	}, service.SessionMeta{})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
