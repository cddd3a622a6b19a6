package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authhub/internal/entity"
	mongorepo "authhub/internal/repository/mongo"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Stores holds the open connections. Only the ones the configuration asks
// for are set.
type Stores struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	Redis    *redis.Client
}

// OpenStores connects every store cfg selects and checks each with a ping.
func OpenStores(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Stores, error) {
	stores := &Stores{}
	var err error
	switch cfg.StoreDriver {
	case StorePostgres:
		stores.Postgres, err = OpenPostgres(ctx, cfg.DatabaseURL, logger)
	case StoreMongo:
		stores.Mongo, stores.MongoDB, err = OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	if err != nil {
		return nil, err
	}
	if cfg.TokenStore == StoreRedis {
		stores.Redis, err = OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			stores.Close(ctx)
			return nil, err
		}
	}
	return stores, nil
}

func OpenPostgres(ctx context.Context, dsn string, logger logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disable prepared statements completely
	}), &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(
		&entity.User{},
		&entity.AppRegistration{},
		&entity.RefreshToken{},
		&entity.VerificationToken{},
		&entity.SecurityLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

func OpenMongo(ctx context.Context, uri string, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return client, db, nil
}

func OpenRedis(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Ping reports the first store that does not answer.
func (s *Stores) Ping(ctx context.Context) error {
	if s.Postgres != nil {
		sqlDB, err := s.Postgres.DB()
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if s.Mongo != nil {
		if err := s.Mongo.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Postgres != nil {
		if sqlDB, err := s.Postgres.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if s.Mongo != nil {
		errs = append(errs, s.Mongo.Disconnect(ctx))
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}
