package handler

import (
	"net/http"

	"authhub/internal/service"

	"github.com/labstack/echo/v4"
)

// RefreshCookie writes and reads the http-only refresh token cookie.
type RefreshCookie struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func DefaultRefreshCookie() RefreshCookie {
	return RefreshCookie{Name: "refresh_token", Secure: true, SameSite: http.SameSiteLaxMode}
}

func (rc RefreshCookie) set(c echo.Context, tokens *service.TokenPair) {
	if tokens == nil || tokens.RefreshToken == "" {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     rc.Name,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Domain:   rc.Domain,
		MaxAge:   int(tokens.RefreshExpiresIn.Seconds()),
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   rc.Secure,
		SameSite: rc.SameSite,
	})
}

func (rc RefreshCookie) clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     rc.Name,
		Value:    "",
		Path:     "/",
		Domain:   rc.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   rc.Secure,
		SameSite: rc.SameSite,
	})
}

func (rc RefreshCookie) read(c echo.Context) string {
	cookie, err := c.Cookie(rc.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
