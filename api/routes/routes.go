package routes

import (
	"net/http"
	"time"

	"authhub/api/handler"
	"authhub/api/middleware"
	"authhub/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	OAuth          *handler.OAuthHandler
	User           *handler.UserHandler
	Admin          *handler.AdminHandler
	Health         *handler.HealthHandler
	Metrics        http.Handler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler http.Handler,
	authMiddleware middleware.AuthMiddleware,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		OAuth:          oauthHandler,
		User:           userHandler,
		Admin:          adminHandler,
		Health:         healthHandler,
		Metrics:        metricsHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	requireAuth := r.AuthMiddleware.RequireAuth

	e.GET("/health", r.Health.Health)
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	auth := e.Group("/api/auth")
	auth.POST("/register", r.Auth.Register, r.AuthRate.Middleware())
	auth.POST("/login", r.Auth.Login, r.LoginRate.Middleware())
	auth.POST("/refresh", r.Auth.Refresh, r.AuthRate.Middleware())
	auth.POST("/logout", r.Auth.Logout, requireAuth)
	auth.POST("/logout-all", r.Auth.LogoutAll, requireAuth)
	auth.POST("/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())
	auth.POST("/resend-verification", r.Auth.ResendVerification, r.LoginRate.Middleware())
	auth.POST("/forgot-password", r.Auth.PasswordForgot, r.LoginRate.Middleware())
	auth.POST("/reset-password", r.Auth.PasswordReset, r.AuthRate.Middleware())
	auth.GET("/:provider", r.OAuth.Start, r.AuthRate.Middleware())
	auth.GET("/:provider/url", r.OAuth.URL, r.AuthRate.Middleware())
	auth.GET("/:provider/callback", r.OAuth.Callback)

	user := e.Group("/api/user", requireAuth)
	user.GET("/profile", r.User.Profile)
	user.PUT("/profile", r.User.UpdateProfile)
	user.POST("/change-password", r.User.ChangePassword, r.LoginRate.Middleware())
	user.DELETE("/account", r.User.DeleteAccount)

	admin := e.Group("/api/admin", requireAuth, middleware.RequireRole(entity.RoleAdmin, entity.RoleSuperAdmin))
	admin.GET("/users", r.Admin.ListUsers)
	admin.GET("/users/:userId", r.Admin.GetUser)
	admin.POST("/users/:userId/apps", r.Admin.GrantAppAccess)
	admin.PUT("/users/:userId/apps/:appIdentifier", r.Admin.UpdateAppRoles)
	admin.DELETE("/users/:userId/apps/:appIdentifier", r.Admin.DeactivateApp)
	admin.POST("/users/:userId/apps/:appIdentifier/reactivate", r.Admin.ReactivateApp)
	admin.PUT("/users/:userId/apps/:appIdentifier/auth-method", r.Admin.ChangeAuthMethod)
	admin.PUT("/users/:userId/status", r.Admin.SetAccountStatus)
	admin.POST("/users/:userId/revoke-sessions", r.Admin.RevokeUserSessions)
	admin.GET("/apps/:appIdentifier/users", r.Admin.ListUsersByApp)
}
