package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"authhub/internal/entity"
	"authhub/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserLoader is the slice of the credential store the middleware needs.
type UserLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type AuthMiddleware struct {
	JWT   *utils.JWTManager
	Users UserLoader
}

// RequireAuth accepts a bearer access token for a user that is still active
// on the token's app and still holds the token's role there. Tokens issued
// before the last password change are refused.
func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.JWT == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token := extractBearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		claims, err := m.JWT.ParseAccessToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		app := entity.AppIdentifier(claims.App)
		role := entity.Role(claims.Role)

		if m.Users != nil {
			user, err := m.Users.FindByID(c.Request().Context(), userID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
			}
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !user.IsActive || !user.HasAccessToApp(app) {
				return echo.NewHTTPError(http.StatusForbidden, "access deactivated")
			}
			if issuedBeforePasswordChange(claims, user.PasswordChangedAt) {
				return echo.NewHTTPError(http.StatusUnauthorized, "password changed, please log in again")
			}
			// The role claim only counts while the registration still holds it.
			if !user.HasRoleForApp(app, role) {
				return echo.NewHTTPError(http.StatusForbidden, "role no longer granted")
			}
		}

		SetAuthContext(c, userID, app, role)
		return next(c)
	}
}

// iat has second precision, so the change time is truncated before comparing.
func issuedBeforePasswordChange(claims *utils.AccessClaims, changedAt *time.Time) bool {
	if changedAt == nil || claims.IssuedAt == nil {
		return false
	}
	return claims.IssuedAt.Time.Before(changedAt.Truncate(time.Second))
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
