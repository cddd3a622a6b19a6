package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"authhub/internal/access"
	"authhub/internal/apps"
	"authhub/internal/entity"
	"authhub/internal/oauth"
	"authhub/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// NewValidator returns a validator that also knows the approle and
// authmethod tags used by the request DTOs.
func NewValidator(registry *apps.Registry) (*validator.Validate, error) {
	validate := validator.New()
	if err := validate.RegisterValidation("approle", func(fl validator.FieldLevel) bool {
		return registry.IsValidRole(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := validate.RegisterValidation("authmethod", func(fl validator.FieldLevel) bool {
		return entity.AuthMethod(fl.Field().String()).Valid()
	}); err != nil {
		return nil, err
	}
	return validate, nil
}

func validate(v *validator.Validate, payload any) error {
	if v == nil {
		return nil
	}
	return v.Struct(payload)
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// bind decodes and validates a request body. Any error it returns is a 400.
func bind(c echo.Context, v *validator.Validate, target any) error {
	if err := decodeJSON(c, target); err != nil {
		return err
	}
	return validate(v, target)
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]any{"message": err.Error()})
}

func writeServiceError(c echo.Context, err error) error {
	body := map[string]any{"message": err.Error()}
	status := http.StatusInternalServerError

	var wrongMethod *access.WrongAuthMethodError
	var notGranted *access.RoleNotGrantedError
	var locked *access.LockedError
	switch {
	case errors.As(err, &wrongMethod):
		status = http.StatusForbidden
		body["requiredAuthMethod"] = wrongMethod.Required
	case errors.As(err, &notGranted):
		status = http.StatusForbidden
		body["availableRoles"] = notGranted.Available
	case errors.As(err, &locked):
		status = http.StatusLocked
		body["lockedUntil"] = locked.Until.UTC().Format(time.RFC3339)
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		body["message"] = "service temporarily unavailable"
	case errors.Is(err, oauth.ErrProviderNotConfigured):
		status = http.StatusServiceUnavailable
	case service.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateEmail), errors.Is(err, service.ErrAlreadyRegistered), errors.Is(err, service.ErrProviderConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountDeactivated), errors.Is(err, service.ErrAppAccessDeactivated), errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrEmailNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, entity.ErrRegistrationNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		body["message"] = "internal server error"
	}
	return c.JSON(status, body)
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func sessionMeta(c echo.Context) service.SessionMeta {
	return service.SessionMeta{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
}
