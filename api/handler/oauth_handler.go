package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"authhub/internal/dto"
	"authhub/internal/entity"
	"authhub/internal/service"

	"github.com/labstack/echo/v4"
)

type OAuthHandler struct {
	Service     *service.OAuthService
	FrontendURL string
	Cookie      RefreshCookie
}

func NewOAuthHandler(svc *service.OAuthService, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		Service:     svc,
		FrontendURL: strings.TrimRight(frontendURL, "/"),
		Cookie:      DefaultRefreshCookie(),
	}
}

// Start redirects the browser to the provider's consent page.
func (h *OAuthHandler) Start(c echo.Context) error {
	authURL, err := h.authURL(c)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Redirect(http.StatusFound, authURL)
}

// URL hands the consent page address to clients that navigate themselves.
func (h *OAuthHandler) URL(c echo.Context) error {
	authURL, err := h.authURL(c)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.OAuthURLResponse{URL: authURL})
}

func (h *OAuthHandler) Callback(c echo.Context) error {
	provider := entity.Provider(c.Param("provider"))
	if denied := c.QueryParam("error"); denied != "" {
		return h.redirectError(c, "authorization denied: "+denied)
	}
	code := c.QueryParam("code")
	if code == "" {
		return h.redirectError(c, "missing authorization code")
	}

	result, err := h.Service.Callback(c.Request().Context(), provider, code, c.QueryParam("state"), sessionMeta(c))
	if err != nil {
		c.Logger().Error(err)
		return h.redirectError(c, "authentication failed")
	}
	if result.Outcome == service.LinkRejected {
		return h.redirectError(c, rejectionMessage(result.Reason))
	}

	h.Cookie.set(c, result.Tokens)
	query := url.Values{}
	query.Set("email", result.User.Email)
	query.Set("method", string(provider))
	return c.Redirect(http.StatusFound, strings.TrimRight(result.AppEndpoint, "/")+"/auth/success?"+query.Encode())
}

func (h *OAuthHandler) authURL(c echo.Context) (string, error) {
	provider := entity.Provider(c.Param("provider"))
	appEndpoint := c.QueryParam("app_endpoint")
	if appEndpoint == "" {
		return "", fmt.Errorf("%w: app_endpoint is required", service.ErrInvalidInput)
	}
	return h.Service.AuthURL(provider, appEndpoint)
}

func (h *OAuthHandler) redirectError(c echo.Context, message string) error {
	query := url.Values{}
	query.Set("message", message)
	return c.Redirect(http.StatusFound, h.FrontendURL+"/auth/error?"+query.Encode())
}

// rejectionMessage keeps store and provider internals out of the redirect.
func rejectionMessage(reason error) string {
	switch {
	case reason == nil:
		return "authentication failed"
	case errors.Is(reason, service.ErrWrongAuthMethod),
		errors.Is(reason, service.ErrAppAccessLocked),
		errors.Is(reason, service.ErrAccountLocked),
		errors.Is(reason, service.ErrAccountDeactivated),
		errors.Is(reason, service.ErrAppAccessDeactivated),
		errors.Is(reason, service.ErrProviderConflict),
		errors.Is(reason, service.ErrUnverifiedEmail),
		errors.Is(reason, service.ErrDuplicateEmail),
		errors.Is(reason, service.ErrInvalidAppEndpoint):
		return reason.Error()
	}
	return "authentication failed"
}
