package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authhub/api/handler"
	apiMiddleware "authhub/api/middleware"
	"authhub/api/routes"
	"authhub/config"
	"authhub/internal/access"
	"authhub/internal/apps"
	"authhub/internal/metrics"
	"authhub/internal/oauth"
	"authhub/internal/service"
	"authhub/internal/utils"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := config.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("store connection failed")
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("store close failed")
		}
	}()
	repos := config.NewRepositories(cfg, stores)

	registry, err := apps.NewRegistry(cfg.AppEndpoints)
	if err != nil {
		logger.WithError(err).Fatal("invalid APP_ENDPOINTS")
	}
	validate, err := handler.NewValidator(registry)
	if err != nil {
		logger.WithError(err).Fatal("validator setup failed")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.New(promRegistry, promRegistry)
	if err != nil {
		logger.WithError(err).Fatal("metrics setup failed")
	}

	accessManager := utils.JWTManager{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
	}
	clock := service.RealClock{}
	policy := access.Policy{MaxAttempts: cfg.MaxLoginAttempts, LockoutDuration: cfg.LockoutDuration}

	var emailSender service.EmailSender
	if cfg.ResendAPIKey != "" {
		emailSender = service.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.FrontendURL)
	} else {
		logger.Warn("RESEND_API_KEY not set, emails are disabled")
	}

	providers, err := oauth.NewProviders(cfg.OAuthProviders())
	if err != nil {
		logger.WithError(err).Fatal("oauth setup failed")
	}
	stateSigner := oauth.StateSigner{Secret: []byte(cfg.JWTSecret)}

	credentials := service.NewCredentialStore(repos.Users, service.BcryptPasswordHasher{Cost: cfg.BcryptCost}, clock)
	tokens := service.NewTokenIssuer(repos.RefreshTokens, accessManager, clock, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(
		registry,
		credentials,
		tokens,
		repos.Verifications,
		repos.SecurityLogs,
		emailSender,
		policy,
		recorder,
		logger,
		clock,
		service.AuthConfig{
			RefreshTokenTTL:      cfg.RefreshTokenTTL,
			VerificationTokenTTL: cfg.VerificationTokenTTL,
			ResetTokenTTL:        cfg.ResetTokenTTL,
		},
	)
	oauthService := service.NewOAuthService(registry, credentials, tokens, providers, stateSigner, repos.SecurityLogs, policy, recorder, logger, clock)
	adminService := service.NewAdminService(credentials, tokens, repos.SecurityLogs, logger, clock)
	userService := service.NewUserService(credentials, tokens, clock)

	cookie := handler.DefaultRefreshCookie()
	cookie.Domain = cfg.CookieDomain
	cookie.Secure = cfg.CookieSecure

	authHandler := handler.NewAuthHandler(authService, validate)
	authHandler.Cookie = cookie
	oauthHandler := handler.NewOAuthHandler(oauthService, cfg.FrontendURL)
	oauthHandler.Cookie = cookie
	userHandler := handler.NewUserHandler(userService, authService, validate)
	userHandler.Cookie = cookie
	adminHandler := handler.NewAdminHandler(adminService, validate)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     registry.Endpoints(),
		AllowCredentials: true,
	}))
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager, Users: credentials}
	router := routes.NewRouter(
		app,
		authHandler,
		oauthHandler,
		userHandler,
		adminHandler,
		&handler.HealthHandler{Stores: stores},
		recorder.Handler(),
		authMiddleware,
	)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":        cfg.HTTPAddr,
			"store":       cfg.StoreDriver,
			"token_store": cfg.TokenStore,
		}).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
