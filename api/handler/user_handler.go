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

// UserHandler serves the signed-in user's own account.
type UserHandler struct {
	Users    *service.UserService
	Auth     *service.AuthService
	Validate *validator.Validate
	Cookie   RefreshCookie
}

func NewUserHandler(users *service.UserService, auth *service.AuthService, validate *validator.Validate) *UserHandler {
	return &UserHandler{Users: users, Auth: auth, Validate: validate, Cookie: DefaultRefreshCookie()}
}

func (h *UserHandler) Profile(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	user, err := h.Users.Profile(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.UpdateProfileRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	user, err := h.Users.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

// ChangePassword applies to the app the access token was issued for.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	app, ok := middleware.AppFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.ChangePasswordRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Auth.ChangePassword(c.Request().Context(), userID, app, req.CurrentPassword, req.NewPassword); err != nil {
		return writeServiceError(c, err)
	}
	h.Cookie.clear(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) DeleteAccount(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	if err := h.Users.DeleteAccount(c.Request().Context(), userID); err != nil {
		return writeServiceError(c, err)
	}
	h.Cookie.clear(c)
	return c.NoContent(http.StatusNoContent)
}
