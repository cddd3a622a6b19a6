package mongo

import (
	"context"
	"errors"
	"time"

	"authhub/internal/entity"
	"authhub/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type verificationTokenRepository struct {
	tokens *mongo.Collection
	now    func() time.Time
}

func NewVerificationTokenRepository(db *mongo.Database) repository.VerificationTokenRepository {
	return &verificationTokenRepository{tokens: db.Collection(verificationsCollection), now: time.Now}
}

func (r *verificationTokenRepository) Create(ctx context.Context, token *entity.VerificationToken) error {
	_, err := r.tokens.InsertOne(ctx, toVerificationDocument(token))
	return err
}

func (r *verificationTokenRepository) FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error) {
	filter := bson.M{
		"token_hash": tokenHash,
		"type":       string(tokenType),
		"used_at":    nil,
		"expires_at": bson.M{"$gt": r.now()},
	}
	var doc verificationDocument
	err := r.tokens.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

func (r *verificationTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.tokens.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{"used_at": r.now()}})
	return err
}

func (r *verificationTokenRepository) InvalidateForUser(ctx context.Context, userID uuid.UUID, tokenType entity.VerificationType) error {
	filter := bson.M{"user_id": userID.String(), "type": string(tokenType), "used_at": nil}
	_, err := r.tokens.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"used_at": r.now()}})
	return err
}
