package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

var ErrEmailNotConfigured = errors.New("email sender not configured")

// ResendEmailSender posts transactional mail to the Resend API. Verification
// links point at the frontend; reset links point back at the app that asked.
type ResendEmailSender struct {
	APIKey      string
	HTTPClient  *http.Client
	From        string
	FrontendURL string
	Endpoint    string
}

func NewResendEmailSender(apiKey string, from string, frontendURL string) *ResendEmailSender {
	return &ResendEmailSender{
		APIKey:      strings.TrimSpace(apiKey),
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		From:        strings.TrimSpace(from),
		FrontendURL: strings.TrimRight(frontendURL, "/"),
		Endpoint:    resendEndpoint,
	}
}

func (s *ResendEmailSender) SendVerificationEmail(ctx context.Context, email string, token string) error {
	link := buildLink(s.FrontendURL, "/verify-email", token)
	html := fmt.Sprintf("<p>Click to verify your email:</p><p><a href=\"%s\">Verify Email</a></p>", link)
	text := fmt.Sprintf("Verify your email: %s", link)
	return s.send(ctx, email, "Verify your email", html, text)
}

func (s *ResendEmailSender) SendPasswordResetEmail(ctx context.Context, email string, appEndpoint string, token string) error {
	link := buildLink(appEndpoint, "/reset-password", token)
	html := fmt.Sprintf("<p>Click to reset your password. The link expires in one hour.</p><p><a href=\"%s\">Reset Password</a></p>", link)
	text := fmt.Sprintf("Reset your password: %s", link)
	return s.send(ctx, email, "Reset your password", html, text)
}

func buildLink(base string, path string, token string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return token
	}
	return fmt.Sprintf("%s%s?token=%s", base, path, url.QueryEscape(token))
}

func (s *ResendEmailSender) send(ctx context.Context, to string, subject string, html string, text string) error {
	if s.APIKey == "" || s.From == "" {
		return ErrEmailNotConfigured
	}
	if s.HTTPClient == nil {
		s.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = resendEndpoint
	}
	payload := map[string]any{
		"from":    s.From,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
		"text":    text,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+s.APIKey)
	request.Header.Set("Content-Type", "application/json")
	response, err := s.HTTPClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode >= 300 {
		return fmt.Errorf("resend email failed with status %d", response.StatusCode)
	}
	return nil
}
