// Package oauth runs the authorization-code handshake with the external
// identity providers and normalises what they return into a ProviderProfile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"authhub/internal/entity"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	ErrProviderNotConfigured = errors.New("oauth provider not configured")
	ErrProfileIncomplete     = errors.New("provider profile is missing an id or email")
)

// ProviderProfile is the identity an external provider vouches for.
type ProviderProfile struct {
	Provider      entity.Provider
	ProviderID    string
	Email         string
	DisplayName   string
	EmailVerified bool
}

type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (c ProviderConfig) Enabled() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

type Provider struct {
	Name        entity.Provider
	Config      *oauth2.Config
	UserInfoURL string
	// EmailsURL is only used by GitHub, whose user endpoint omits private
	// addresses.
	EmailsURL string
}

func NewProvider(name entity.Provider, cfg ProviderConfig) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	provider := &Provider{
		Name: name,
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
		},
	}
	switch name {
	case entity.ProviderGoogle:
		provider.Config.Endpoint = endpoints.Google
		provider.Config.Scopes = []string{"openid", "profile", "email"}
		provider.UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	case entity.ProviderFacebook:
		provider.Config.Endpoint = endpoints.Facebook
		provider.Config.Scopes = []string{"email", "public_profile"}
		provider.UserInfoURL = "https://graph.facebook.com/me?fields=id,name,email"
	case entity.ProviderGithub:
		provider.Config.Endpoint = endpoints.GitHub
		provider.Config.Scopes = []string{"read:user", "user:email"}
		provider.UserInfoURL = "https://api.github.com/user"
		provider.EmailsURL = "https://api.github.com/user/emails"
	default:
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidProvider, name)
	}
	return provider, nil
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for a token and fetches the profile.
func (p *Provider) Exchange(ctx context.Context, code string) (*ProviderProfile, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	client := p.Config.Client(ctx, token)

	var profile *ProviderProfile
	switch p.Name {
	case entity.ProviderGoogle:
		profile, err = p.googleProfile(ctx, client)
	case entity.ProviderFacebook:
		profile, err = p.facebookProfile(ctx, client)
	case entity.ProviderGithub:
		profile, err = p.githubProfile(ctx, client)
	default:
		err = fmt.Errorf("%w: %s", entity.ErrInvalidProvider, p.Name)
	}
	if err != nil {
		return nil, err
	}
	if profile.ProviderID == "" || profile.Email == "" {
		return nil, ErrProfileIncomplete
	}
	return profile, nil
}

func (p *Provider) googleProfile(ctx context.Context, client *http.Client) (*ProviderProfile, error) {
	var body struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &body); err != nil {
		return nil, err
	}
	return &ProviderProfile{
		Provider:      entity.ProviderGoogle,
		ProviderID:    body.Sub,
		Email:         body.Email,
		DisplayName:   body.Name,
		EmailVerified: body.EmailVerified,
	}, nil
}

func (p *Provider) facebookProfile(ctx context.Context, client *http.Client) (*ProviderProfile, error) {
	var body struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &body); err != nil {
		return nil, err
	}
	// Facebook only returns confirmed addresses.
	return &ProviderProfile{
		Provider:      entity.ProviderFacebook,
		ProviderID:    body.ID,
		Email:         body.Email,
		DisplayName:   body.Name,
		EmailVerified: body.Email != "",
	}, nil
}

func (p *Provider) githubProfile(ctx context.Context, client *http.Client) (*ProviderProfile, error) {
	var body struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &body); err != nil {
		return nil, err
	}
	profile := &ProviderProfile{
		Provider:    entity.ProviderGithub,
		ProviderID:  strconv.FormatInt(body.ID, 10),
		Email:       body.Email,
		DisplayName: body.Name,
	}
	if body.ID == 0 {
		profile.ProviderID = ""
	}
	if profile.DisplayName == "" {
		profile.DisplayName = body.Login
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.EmailsURL, &emails); err != nil {
		return nil, err
	}
	for _, candidate := range emails {
		if candidate.Primary {
			profile.Email = candidate.Email
			profile.EmailVerified = candidate.Verified
			break
		}
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch profile: status %d", response.StatusCode)
	}
	return json.NewDecoder(response.Body).Decode(target)
}
