// Package mongo stores users and their side records in MongoDB. A user and
// all of its app registrations live in one document, so every write to the
// aggregate is a single-document replace.
package mongo

import (
	"context"
	"errors"

	"authhub/internal/entity"
	"authhub/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection         = "users"
	verificationsCollection = "verification_tokens"
	securityLogsCollection  = "security_logs"
)

type userRepository struct {
	users *mongo.Collection
}

func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userRepository{users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys: bson.D{{Key: field, Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{field: bson.M{"$exists": true}}),
		}
	}
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("email"),
		unique("google_id"),
		unique("facebook_id"),
		unique("github_id"),
		{Keys: bson.D{{Key: "app_registrations.app_identifier", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(verificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "token_hash", Value: 1}},
	})
	return err
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	if err := user.EnsurePasswordHashes(0); err != nil {
		return err
	}
	_, err := r.users.InsertOne(ctx, toUserDocument(user))
	return translate(err)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error) {
	if !provider.Valid() {
		return nil, entity.ErrInvalidProvider
	}
	return r.findOne(ctx, bson.M{string(provider) + "_id": providerID})
}

func (r *userRepository) Save(ctx context.Context, user *entity.User) error {
	if err := user.EnsurePasswordHashes(0); err != nil {
		return err
	}
	doc := toUserDocument(user)
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.users.DeleteOne(ctx, bson.M{"_id": id.String()})
	return err
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return r.find(ctx, bson.M{}, limit, offset)
}

func (r *userRepository) ListByApp(ctx context.Context, app entity.AppIdentifier, limit, offset int) ([]entity.User, error) {
	return r.find(ctx, bson.M{"app_registrations.app_identifier": string(app)}, limit, offset)
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

func (r *userRepository) find(ctx context.Context, filter bson.M, limit, offset int) ([]entity.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	cursor, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]entity.User, 0, len(docs))
	for _, doc := range docs {
		user, err := doc.toEntity()
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func translate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateKey
	}
	return err
}
