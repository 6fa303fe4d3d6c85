package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates every collection's indexes. Safe to call on every
// startup; Mongo treats existing identical indexes as a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	carts := &mongoCartRepository{collection: db.Collection("carts")}
	if err := carts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("carts: %w", err)
	}

	otps := &mongoOtpRepository{collection: db.Collection("otps")}
	if err := otps.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("otps: %w", err)
	}
	return nil
}
