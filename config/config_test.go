package config_test

import (
	"testing"
	"time"

	"authhub/config"
	"authhub/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{
		"JWT_SECRET":   "secret",
		"DATABASE_URL": "postgres://localhost/auth",
	})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.StorePostgres, cfg.StoreDriver)
	assert.Equal(t, config.StorePostgres, cfg.TokenStore)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.True(t, cfg.CookieSecure)
}

func TestFromMap_AppEndpointsAndProviders(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{
		"JWT_SECRET":           "secret",
		"DATABASE_URL":         "postgres://localhost/auth",
		"APP_ENDPOINTS":        "https://todo.example.com|todo-app,https://shop.example.com|sera-food-customer-app",
		"GOOGLE_CLIENT_ID":     "gid",
		"GOOGLE_CLIENT_SECRET": "gsecret",
		"GOOGLE_CALLBACK_URL":  "http://localhost:8080/api/auth/google/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"https://todo.example.com": "todo-app",
		"https://shop.example.com": "sera-food-customer-app",
	}, cfg.AppEndpoints)

	providers := cfg.OAuthProviders()
	assert.True(t, providers[entity.ProviderGoogle].Enabled())
	assert.Equal(t, "http://localhost:8080/api/auth/google/callback", providers[entity.ProviderGoogle].CallbackURL)
	assert.False(t, providers[entity.ProviderGithub].Enabled())
}

func TestFromMap_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {"DATABASE_URL": "postgres://localhost/auth"},
		"missing dsn":    {"JWT_SECRET": "secret"},
		"mongo without redis": {
			"JWT_SECRET": "secret", "STORE_DRIVER": "mongo", "MONGO_URI": "mongodb://localhost",
		},
		"redis without addr": {
			"JWT_SECRET": "secret", "DATABASE_URL": "postgres://localhost/auth", "TOKEN_STORE": "redis",
		},
		"unknown driver": {"JWT_SECRET": "secret", "STORE_DRIVER": "sqlite"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromMap(vars)
			assert.Error(t, err)
		})
	}

	cfg, err := config.FromMap(map[string]string{
		"JWT_SECRET":   "secret",
		"STORE_DRIVER": "Mongo",
		"MONGO_URI":    "mongodb://localhost",
		"TOKEN_STORE":  "redis",
		"REDIS_ADDR":   "localhost:6379",
	})
	require.NoError(t, err)
	assert.Equal(t, config.StoreMongo, cfg.StoreDriver)
}

func TestNewLogger(t *testing.T) {
	logger, err := config.NewLogger("debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())

	_, err = config.NewLogger("chatty")
	assert.Error(t, err)
}
