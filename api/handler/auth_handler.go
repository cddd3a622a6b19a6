package handler

import (
	"errors"
	"net/http"

	"authhub/api/middleware"
	"authhub/internal/dto"
	"authhub/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	Service  *service.AuthService
	Validate *validator.Validate
	Cookie   RefreshCookie
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:  svc,
		Validate: validate,
		Cookie:   DefaultRefreshCookie(),
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.Register(c.Request().Context(), req, sessionMeta(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	h.Cookie.set(c, result.Tokens)
	return c.JSON(http.StatusCreated, authResponse(result))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.Login(c.Request().Context(), req, sessionMeta(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	h.Cookie.set(c, result.Tokens)
	return c.JSON(http.StatusOK, authResponse(result))
}

// Refresh takes the token from the cookie, or from the body for clients
// that cannot hold cookies across origins.
func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshToken, err := h.refreshToken(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if refreshToken == "" {
		return writeError(c, http.StatusUnauthorized, errors.New("missing refresh token"))
	}
	result, err := h.Service.Refresh(c.Request().Context(), refreshToken, sessionMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			h.Cookie.clear(c)
		}
		return writeServiceError(c, err)
	}
	h.Cookie.set(c, result.Tokens)
	return c.JSON(http.StatusOK, authResponse(result))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	refreshToken, err := h.refreshToken(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if refreshToken != "" {
		if err := h.Service.Logout(c.Request().Context(), refreshToken, &userID, sessionMeta(c)); err != nil {
			return writeServiceError(c, err)
		}
	}
	h.Cookie.clear(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	if err := h.Service.LogoutAll(c.Request().Context(), userID, sessionMeta(c)); err != nil {
		return writeServiceError(c, err)
	}
	h.Cookie.clear(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req dto.VerifyEmailRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req dto.EmailRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *AuthHandler) PasswordForgot(c echo.Context) error {
	var req dto.PasswordForgotRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email, req.AppEndpoint); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req dto.PasswordResetRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return writeServiceError(c, err)
	}
	h.Cookie.clear(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) refreshToken(c echo.Context) (string, error) {
	if token := h.Cookie.read(c); token != "" {
		return token, nil
	}
	if c.Request().ContentLength == 0 {
		return "", nil
	}
	var req dto.RefreshRequest
	if err := decodeJSON(c, &req); err != nil {
		return "", err
	}
	return req.RefreshToken, nil
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		User:             dto.UserResponseFromEntity(result.User),
		App:              string(result.App),
		Role:             string(result.Role),
		AccessToken:      result.Tokens.AccessToken,
		ExpiresIn:        int64(result.Tokens.ExpiresIn.Seconds()),
		RefreshToken:     result.Tokens.RefreshToken,
		RefreshExpiresIn: int64(result.Tokens.RefreshExpiresIn.Seconds()),
		EmailWarning:     result.EmailWarning,
	}
}
