package mongo

import (
	"context"
	"encoding/json"

	"authhub/internal/entity"
	"authhub/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
)

type securityLogRepository struct {
	logs *mongo.Collection
}

func NewSecurityLogRepository(db *mongo.Database) repository.SecurityLogRepository {
	return &securityLogRepository{logs: db.Collection(securityLogsCollection)}
}

func (r *securityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	doc := securityLogDocument{
		ID:        log.ID.String(),
		IPAddress: log.IPAddress,
		Action:    string(log.Action),
		CreatedAt: log.CreatedAt,
	}
	if log.UserID != nil {
		userID := log.UserID.String()
		doc.UserID = &userID
	}
	if log.AppIdentifier != nil {
		app := string(*log.AppIdentifier)
		doc.AppIdentifier = &app
	}
	if len(log.Metadata) > 0 {
		if err := json.Unmarshal(log.Metadata, &doc.Metadata); err != nil {
			return err
		}
	}
	_, err := r.logs.InsertOne(ctx, doc)
	return err
}
