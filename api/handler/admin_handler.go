package handler

import (
	"errors"
	"net/http"

	"authhub/api/middleware"
	"authhub/internal/dto"
	"authhub/internal/entity"
	"authhub/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	Service  *service.AdminService
	Validate *validator.Validate
}

func NewAdminHandler(svc *service.AdminService, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{Service: svc, Validate: validate}
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	users, err := h.Service.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponsesFromEntities(users))
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	user, err := h.Service.GetUser(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) ListUsersByApp(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	app := entity.AppIdentifier(c.Param("appIdentifier"))
	users, err := h.Service.ListUsersByApp(c.Request().Context(), app, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponsesFromEntities(users))
}

func (h *AdminHandler) GrantAppAccess(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.GrantAppAccessRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	user, err := h.Service.GrantAppAccess(c.Request().Context(), actor(c), userID, req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) UpdateAppRoles(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.UpdateRolesRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	app := entity.AppIdentifier(c.Param("appIdentifier"))
	user, err := h.Service.OverrideAppRoles(c.Request().Context(), actor(c), userID, app, req.Roles)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) DeactivateApp(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.DeactivateAppRequest
	if c.Request().ContentLength != 0 {
		if err := bind(c, h.Validate, &req); err != nil {
			return writeError(c, http.StatusBadRequest, err)
		}
	}
	app := entity.AppIdentifier(c.Param("appIdentifier"))
	user, err := h.Service.DeactivateApp(c.Request().Context(), actor(c), userID, app, req.Reason)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) ReactivateApp(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	app := entity.AppIdentifier(c.Param("appIdentifier"))
	user, err := h.Service.ReactivateApp(c.Request().Context(), actor(c), userID, app)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) ChangeAuthMethod(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.ChangeAuthMethodRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	app := entity.AppIdentifier(c.Param("appIdentifier"))
	user, err := h.Service.ChangeAuthMethod(c.Request().Context(), actor(c), userID, app, req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) SetAccountStatus(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.AccountStatusRequest
	if err := bind(c, h.Validate, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	user, err := h.Service.SetAccountActive(c.Request().Context(), actor(c), userID, *req.IsActive)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AdminUserResponseFromEntity(user))
}

func (h *AdminHandler) RevokeUserSessions(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.RevokeUserSessions(c.Request().Context(), actor(c), userID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func userIDParam(c echo.Context) (uuid.UUID, error) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return uuid.Nil, errors.New("invalid user id")
	}
	return userID, nil
}

func actor(c echo.Context) service.Actor {
	var current service.Actor
	if userID, ok := middleware.UserIDFromContext(c); ok {
		current.UserID = userID.String()
	}
	if role, ok := middleware.RoleFromContext(c); ok {
		current.Role = role
	}
	return current
}
