package config

import (
	"authhub/internal/repository"
	mongorepo "authhub/internal/repository/mongo"
	redisrepo "authhub/internal/repository/redis"
)

// Repositories is the store-backed side of the services, picked per
// STORE_DRIVER and TOKEN_STORE.
type Repositories struct {
	Users         repository.UserRepository
	RefreshTokens repository.RefreshTokenRepository
	Verifications repository.VerificationTokenRepository
	SecurityLogs  repository.SecurityLogRepository
}

func NewRepositories(cfg Config, stores *Stores) Repositories {
	var repos Repositories
	switch cfg.StoreDriver {
	case StoreMongo:
		repos.Users = mongorepo.NewUserRepository(stores.MongoDB)
		repos.Verifications = mongorepo.NewVerificationTokenRepository(stores.MongoDB)
		repos.SecurityLogs = mongorepo.NewSecurityLogRepository(stores.MongoDB)
	default:
		repos.Users = repository.NewUserRepository(stores.Postgres)
		repos.Verifications = repository.NewVerificationTokenRepository(stores.Postgres)
		repos.SecurityLogs = repository.NewSecurityLogRepository(stores.Postgres)
	}
	if cfg.TokenStore == StoreRedis {
		repos.RefreshTokens = redisrepo.NewRefreshTokenRepository(stores.Redis)
	} else {
		repos.RefreshTokens = repository.NewRefreshTokenRepository(stores.Postgres)
	}
	return repos
}
