package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/EdrumVIOT/Back-End/internal/domain"
)

// OtpRepository persists one-time codes per phone number. Expiry and
// cooldown decisions live in the ledger; this layer only stores and looks up.
type OtpRepository interface {
	// Latest returns the most recently created record for the number.
	Latest(ctx context.Context, number string) (*domain.OtpRecord, error)
	// Find returns the record matching both number and code exactly.
	Find(ctx context.Context, number, code string) (*domain.OtpRecord, error)
	Create(ctx context.Context, record domain.OtpRecord) error
	// DeleteAll removes every record for the number.
	DeleteAll(ctx context.Context, number string) error
}

type mongoOtpRepository struct {
	collection *mongo.Collection
}

func NewMongoOtpRepository(db *mongo.Database) OtpRepository {
	return &mongoOtpRepository{collection: db.Collection("otps")}
}

func (m *mongoOtpRepository) Latest(ctx context.Context, number string) (*domain.OtpRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var record domain.OtpRecord
	err := m.collection.FindOne(ctx, bson.M{"number": number}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to get otp record: %w", err)
	}
	return &record, nil
}

func (m *mongoOtpRepository) Find(ctx context.Context, number, code string) (*domain.OtpRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var record domain.OtpRecord
	err := m.collection.FindOne(ctx, bson.M{"number": number, "otp": code}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to find otp record: %w", err)
	}
	return &record, nil
}

func (m *mongoOtpRepository) Create(ctx context.Context, record domain.OtpRecord) error {
	if _, err := m.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create otp record: %w", err)
	}
	return nil
}

func (m *mongoOtpRepository) DeleteAll(ctx context.Context, number string) error {
	if _, err := m.collection.DeleteMany(ctx, bson.M{"number": number}); err != nil {
		return fmt.Errorf("failed to delete otp records: %w", err)
	}
	return nil
}

// CreateIndexes adds a lookup index and a TTL backstop. The ledger enforces
// the real 60s window at read time; the TTL only keeps dead records from
// piling up for numbers that never come back.
func (m *mongoOtpRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "number", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(600),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
