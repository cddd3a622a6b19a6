// Command createadmin creates a superadmin account for one app, or promotes
// an existing account to superadmin there and resets its password.
//
//	ADMIN_PASSWORD=... go run ./cmd/createadmin -email admin@example.com -app https://food-delivery-business-app-sera.vercel.app
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"authhub/config"
	"authhub/internal/apps"
	"authhub/internal/entity"
	"authhub/internal/service"

	"github.com/sirupsen/logrus"
)

func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "admin email")
	appEndpoint := flag.String("app", os.Getenv("ADMIN_APP_ENDPOINT"), "app endpoint the account administers")
	username := flag.String("username", "", "display name for a new account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, cfg, logger, *email, *appEndpoint, *username, os.Getenv("ADMIN_PASSWORD")); err != nil {
		logger.WithError(err).Fatal("createadmin failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger, email, appEndpoint, username, password string) error {
	if email == "" || appEndpoint == "" {
		return errors.New("-email and -app are required")
	}
	if password == "" {
		return errors.New("ADMIN_PASSWORD is required")
	}

	registry, err := apps.NewRegistry(cfg.AppEndpoints)
	if err != nil {
		return err
	}
	app, ok := registry.Resolve(appEndpoint)
	if !ok {
		return fmt.Errorf("unknown app endpoint %q", appEndpoint)
	}

	stores, err := config.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("store close failed")
		}
	}()
	repos := config.NewRepositories(cfg, stores)
	credentials := service.NewCredentialStore(repos.Users, service.BcryptPasswordHasher{Cost: cfg.BcryptCost}, service.RealClock{})

	input := service.RegistrationInput{
		App:        app,
		Roles:      []entity.Role{entity.RoleSuperAdmin},
		AuthMethod: entity.AuthMethodEmailPassword,
		Password:   password,
	}

	user, err := credentials.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	fields := logrus.Fields{"email": email, "app": app}
	if user == nil {
		var name *string
		if username != "" {
			name = &username
		}
		user, err = credentials.Create(ctx, email, name, input)
		if err != nil {
			return err
		}
		user.EmailVerified = true
		if err := credentials.Save(ctx, user); err != nil {
			return err
		}
		logger.WithFields(fields).WithField("user_id", user.ID).Info("admin account created")
		return nil
	}

	usedPassword := false
	if reg := user.Registration(app); reg != nil {
		usedPassword = reg.AuthMethod.UsesPassword()
	}
	if _, err := credentials.OverrideRegistration(ctx, user, input); err != nil {
		return err
	}
	if usedPassword {
		if err := credentials.SetAppPassword(ctx, user, app, password); err != nil {
			return err
		}
	}
	user.IsActive = true
	user.EmailVerified = true
	if err := credentials.Save(ctx, user); err != nil {
		return err
	}
	logger.WithFields(fields).WithField("user_id", user.ID).Info("admin account updated")
	return nil
}
