// Package mongostore implements the repositories on MongoDB using the
// document layout of the users and properties collections.
package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/casaplus/listing-service/internal/repository"
)

const (
	usersCollection      = "users"
	propertiesCollection = "properties"
)

// NewStore returns Mongo-backed repositories sharing db.
func NewStore(db *mongo.Database) repository.Store {
	return repository.Store{
		Users:      NewUserRepository(db),
		Properties: NewPropertyRepository(db),
		Statistics: NewStatisticsRepository(db),
	}
}

// EnsureIndexes creates the unique email index and the listing indexes used
// by search and statistics.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_users_email").SetUnique(true),
		},
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	propertyIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_properties_status_created"),
		},
		{
			Keys:    bson.D{{Key: "user", Value: 1}},
			Options: options.Index().SetName("idx_properties_user"),
		},
		{
			Keys:    bson.D{{Key: "views", Value: -1}},
			Options: options.Index().SetName("idx_properties_views"),
		},
		{
			Keys:    bson.D{{Key: "estado", Value: 1}, {Key: "municipio", Value: 1}},
			Options: options.Index().SetName("idx_properties_location"),
		},
	}
	_, err := db.Collection(propertiesCollection).Indexes().CreateMany(ctx, propertyIndexes)
	return err
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func parseID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
