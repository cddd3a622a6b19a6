package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authhub/api/middleware"
	"authhub/internal/entity"
	"authhub/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type userLoader map[uuid.UUID]*entity.User

func (l userLoader) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return l[id], nil
}

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager := &utils.JWTManager{Secret: []byte("secret"), Now: func() time.Time { return now }}

	user := entity.NewUser("alice@x.com", nil, now)
	password := "hash"
	_, err := user.AddRegistration(entity.AppRegistration{
		AppIdentifier: entity.AppTodo,
		Roles:         []entity.Role{entity.RoleUser},
		AuthMethod:    entity.AuthMethodEmailPassword,
		Password:      &password,
	}, now)
	require.NoError(t, err)
	users := userLoader{user.ID: user}

	e := echo.New()
	auth := middleware.AuthMiddleware{JWT: manager, Users: users}
	e.GET("/protected", func(c echo.Context) error {
		userID, _ := middleware.UserIDFromContext(c)
		app, _ := middleware.AppFromContext(c)
		role, _ := middleware.RoleFromContext(c)
		return c.JSON(http.StatusOK, map[string]string{"user": userID.String(), "app": string(app), "role": string(role)})
	}, auth.RequireAuth)

	token, _, err := manager.IssueAccessToken(user.ID.String(), string(entity.AppTodo), string(entity.RoleUser))
	require.NoError(t, err)

	rec := serve(e, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"app":"todo-app"`)

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "garbage").Code)

	other, _, err := manager.IssueAccessToken(user.ID.String(), string(entity.AppSeraFoodCustomer), string(entity.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, other).Code)

	changed := now.Add(time.Second)
	user.PasswordChangedAt = &changed
	assert.Equal(t, http.StatusUnauthorized, serve(e, token).Code)

	now = now.Add(2 * time.Second)
	fresh, _, err := manager.IssueAccessToken(user.ID.String(), string(entity.AppTodo), string(entity.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(e, fresh).Code)

	user.IsActive = false
	assert.Equal(t, http.StatusForbidden, serve(e, fresh).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	setRole := func(role entity.Role) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				middleware.SetAuthContext(c, uuid.New(), entity.AppTodo, role)
				return next(c)
			}
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	gate := middleware.RequireRole(entity.RoleAdmin, entity.RoleSuperAdmin)
	e.GET("/admin", ok, setRole(entity.RoleAdmin), gate)
	e.GET("/user", ok, setRole(entity.RoleUser), gate)

	for path, want := range map[string]int{"/admin": http.StatusNoContent, "/user": http.StatusForbidden} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestRequireAuth_RoleMustStillBeGranted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager := &utils.JWTManager{Secret: []byte("secret"), Now: func() time.Time { return now }}

	admin := entity.NewUser("root@x.com", nil, now)
	password := "hash"
	_, err := admin.AddRegistration(entity.AppRegistration{
		AppIdentifier: entity.AppTodo,
		Roles:         []entity.Role{entity.RoleAdmin, entity.RoleUser},
		AuthMethod:    entity.AuthMethodEmailPassword,
		Password:      &password,
	}, now)
	require.NoError(t, err)

	e := echo.New()
	auth := middleware.AuthMiddleware{JWT: manager, Users: userLoader{admin.ID: admin}}
	e.GET("/protected", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, auth.RequireAuth, middleware.RequireRole(entity.RoleAdmin, entity.RoleSuperAdmin))

	token, _, err := manager.IssueAccessToken(admin.ID.String(), string(entity.AppTodo), string(entity.RoleAdmin))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, serve(e, token).Code)

	require.NoError(t, admin.OverrideRoles(entity.AppTodo, []entity.Role{entity.RoleUser}, now))
	assert.Equal(t, http.StatusForbidden, serve(e, token).Code)

	forged, _, err := manager.IssueAccessToken(admin.ID.String(), string(entity.AppTodo), string(entity.RoleSuperAdmin))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, forged).Code)
}

func TestRateLimiter(t *testing.T) {
	e := echo.New()
	limiter := middleware.NewRateLimiter(rate.Every(time.Minute), 2, time.Minute)
	e.GET("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, limiter.Middleware())

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, request("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, request("10.0.0.1").Code)
	limited := request("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, request("10.0.0.2").Code)
}
