package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/casaplus/listing-service/internal/domain"
)

type legacyLocationDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	Location string             `bson:"location"`
	Estado   string             `bson:"estado"`
}

// MigrateLegacyLocations rewrites listings that still carry the flat
// location string into the decomposed address fields and unsets the flat
// field. Documents that already have an address only lose the flat field.
// Listings without a status are marked active. It returns the number of
// documents whose location was rewritten.
func MigrateLegacyLocations(ctx context.Context, db *mongo.Database, logger *zap.Logger) (int, error) {
	c := db.Collection(propertiesCollection)

	res, err := c.UpdateMany(ctx,
		bson.M{"status": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"status": domain.PropertyStatusActive}})
	if err != nil {
		return 0, fmt.Errorf("backfill listing status: %w", err)
	}
	logger.Info("legacy statuses backfilled", zap.Int64("count", res.ModifiedCount))

	cur, err := c.Find(ctx, bson.M{"location": bson.M{"$type": "string"}})
	if err != nil {
		return 0, fmt.Errorf("find legacy listings: %w", err)
	}
	defer cur.Close(ctx)

	migrated := 0
	for cur.Next(ctx) {
		var doc legacyLocationDocument
		if err := cur.Decode(&doc); err != nil {
			return migrated, err
		}

		update := bson.M{"$unset": bson.M{"location": ""}}
		if doc.Estado == "" {
			addr := domain.AddressFromLegacy(doc.Location)
			update["$set"] = bson.M{
				"calleYNumero": addr.CalleYNumero,
				"colonia":      addr.Colonia,
				"codigoPostal": addr.CodigoPostal,
				"estado":       addr.Estado,
				"municipio":    addr.Municipio,
				"updatedAt":    time.Now().UTC(),
			}
		}

		if _, err := c.UpdateOne(ctx, bson.M{"_id": doc.ID}, update); err != nil {
			return migrated, fmt.Errorf("migrate listing %s: %w", doc.ID.Hex(), err)
		}
		migrated++
	}
	if err := cur.Err(); err != nil {
		return migrated, err
	}

	logger.Info("legacy locations migrated", zap.Int("count", migrated))
	return migrated, nil
}
