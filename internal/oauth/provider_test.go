package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"authhub/internal/entity"
	"authhub/internal/oauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func providerServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "provider-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer provider-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "alice", "email": nil})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@x.com", "primary": false, "verified": true},
			{"email": "alice@x.com", "primary": true, "verified": true},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestProvider_GithubExchange(t *testing.T) {
	server := providerServer(t)
	provider, err := oauth.NewProvider(entity.ProviderGithub, oauth.ProviderConfig{ClientID: "id", ClientSecret: "secret", CallbackURL: "http://localhost/cb"})
	require.NoError(t, err)
	provider.Config.Endpoint = oauth2.Endpoint{AuthURL: server.URL + "/authorize", TokenURL: server.URL + "/token"}
	provider.UserInfoURL = server.URL + "/user"
	provider.EmailsURL = server.URL + "/user/emails"

	profile, err := provider.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, entity.ProviderGithub, profile.Provider)
	assert.Equal(t, "42", profile.ProviderID)
	assert.Equal(t, "alice@x.com", profile.Email)
	assert.Equal(t, "alice", profile.DisplayName)
	assert.True(t, profile.EmailVerified)
}

func TestProvider_AuthCodeURLCarriesState(t *testing.T) {
	provider, err := oauth.NewProvider(entity.ProviderGoogle, oauth.ProviderConfig{ClientID: "id", ClientSecret: "secret", CallbackURL: "http://localhost/cb"})
	require.NoError(t, err)

	parsed, err := url.Parse(provider.AuthCodeURL("state-value"))
	require.NoError(t, err)
	assert.Equal(t, "state-value", parsed.Query().Get("state"))
	assert.Equal(t, "id", parsed.Query().Get("client_id"))
	assert.Equal(t, "http://localhost/cb", parsed.Query().Get("redirect_uri"))
}

func TestProviders_SkipsUnconfigured(t *testing.T) {
	providers, err := oauth.NewProviders(map[entity.Provider]oauth.ProviderConfig{
		entity.ProviderGoogle:   {ClientID: "id", ClientSecret: "secret"},
		entity.ProviderFacebook: {},
	})
	require.NoError(t, err)

	_, err = providers.Get(entity.ProviderGoogle)
	assert.NoError(t, err)
	_, err = providers.Get(entity.ProviderFacebook)
	assert.ErrorIs(t, err, oauth.ErrProviderNotConfigured)
	_, err = providers.Get("myspace")
	assert.ErrorIs(t, err, entity.ErrInvalidProvider)
}

func TestStateSigner(t *testing.T) {
	signer := oauth.StateSigner{Secret: []byte("secret"), TTL: time.Minute}
	state, err := signer.Sign("http://localhost:3002")
	require.NoError(t, err)

	endpoint, err := signer.Verify(state)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3002", endpoint)

	_, err = oauth.StateSigner{Secret: []byte("other")}.Verify(state)
	assert.ErrorIs(t, err, oauth.ErrInvalidState)

	later := oauth.StateSigner{Secret: []byte("secret"), Now: func() time.Time { return time.Now().Add(time.Hour) }}
	_, err = later.Verify(state)
	assert.ErrorIs(t, err, oauth.ErrInvalidState)
}
