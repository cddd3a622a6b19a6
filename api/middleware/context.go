package middleware

import (
	"authhub/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextUserIDKey = "auth_user_id"
	contextAppKey    = "auth_app"
	contextRoleKey   = "auth_role"
)

func SetAuthContext(c echo.Context, userID uuid.UUID, app entity.AppIdentifier, role entity.Role) {
	c.Set(contextUserIDKey, userID)
	c.Set(contextAppKey, app)
	c.Set(contextRoleKey, role)
}

func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(contextUserIDKey)
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// AppFromContext is the app the access token was issued for.
func AppFromContext(c echo.Context) (entity.AppIdentifier, bool) {
	value := c.Get(contextAppKey)
	app, ok := value.(entity.AppIdentifier)
	return app, ok
}

func RoleFromContext(c echo.Context) (entity.Role, bool) {
	value := c.Get(contextRoleKey)
	role, ok := value.(entity.Role)
	return role, ok
}
