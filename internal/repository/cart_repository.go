package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/EdrumVIOT/Back-End/internal/domain"
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	// GetActive returns the non-ordered cart for the scope.
	GetActive(ctx context.Context, scope domain.CartScope) (*domain.Cart, error)
	// AddItem increments the line for the product in the scope's active cart,
	// appending the line or creating the cart as needed. Returns the updated
	// cart, which carries a newly minted id when one was created.
	AddItem(ctx context.Context, scope domain.CartScope, item domain.CartItem) (*domain.Cart, error)
	// RemoveItem drops the product's line from the active cart.
	RemoveItem(ctx context.Context, scope domain.CartScope, productID string) (*domain.Cart, error)
	// Clear empties the active cart's lines in place.
	Clear(ctx context.Context, scope domain.CartScope) (*domain.Cart, error)
	// Claim atomically flips is_ordered false->true and returns the sealed
	// cart. cartID, when non-empty, additionally constrains an owned scope to
	// one specific cart. A second Claim of the same cart fails ErrCartOrdered.
	Claim(ctx context.Context, scope domain.CartScope, cartID string) (*domain.Cart, error)
	// Unclaim reverts a Claim whose order insert failed.
	Unclaim(ctx context.Context, id primitive.ObjectID) error
	// Reparent assigns an owner to an ownerless active cart.
	Reparent(ctx context.Context, cartID, userID string) (*domain.Cart, error)
	// TakeGuest atomically removes and returns an ownerless active cart, so a
	// concurrent reader can never observe its lines in two carts at once.
	TakeGuest(ctx context.Context, cartID string) (*domain.Cart, error)
	// IDsByUser returns the ids of every cart (ordered or not) the user has held.
	IDsByUser(ctx context.Context, userID string) ([]primitive.ObjectID, error)
}

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{collection: db.Collection("carts")}
}

// activeFilter matches the scope's single non-ordered cart. Ordered carts
// never match, which is what makes them immutable through this API.
func activeFilter(scope domain.CartScope) (bson.M, error) {
	if userID, ok := scope.Owned(); ok {
		return bson.M{"user_id": userID, "is_ordered": false}, nil
	}
	cartID, ok := scope.Guest()
	if !ok {
		return nil, ErrCartNotFound
	}
	oid, err := primitive.ObjectIDFromHex(cartID)
	if err != nil {
		return nil, ErrCartNotFound
	}
	return bson.M{"_id": oid, "is_ordered": false}, nil
}

func (m *mongoCartRepository) GetActive(ctx context.Context, scope domain.CartScope) (*domain.Cart, error) {
	filter, err := activeFilter(scope)
	if err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := m.collection.FindOne(ctx, filter).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

func (m *mongoCartRepository) AddItem(ctx context.Context, scope domain.CartScope, item domain.CartItem) (*domain.Cart, error) {
	now := time.Now()
	item.AddedAt = now

	filter, err := activeFilter(scope)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}
	if err != nil {
		// Guest scope with no usable id: mint a fresh cart.
		return m.createCart(ctx, scope, item, now)
	}

	// Increment, push, or create. The $ne guard on the push makes each step
	// atomic; a concurrent writer can only bounce us to the next attempt.
	for attempt := 0; attempt < 3; attempt++ {
		incFilter := bson.M{"items.product_id": item.ProductID}
		for k, v := range filter {
			incFilter[k] = v
		}
		res, err := m.collection.UpdateOne(ctx, incFilter, bson.M{
			"$inc": bson.M{"items.$.quantity": item.Quantity},
			"$set": bson.M{"items.$.added_at": now, "updated_at": now},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to increment item: %w", err)
		}
		if res.MatchedCount > 0 {
			return m.GetActive(ctx, scope)
		}

		pushFilter := bson.M{"items.product_id": bson.M{"$ne": item.ProductID}}
		for k, v := range filter {
			pushFilter[k] = v
		}
		res, err = m.collection.UpdateOne(ctx, pushFilter, bson.M{
			"$push": bson.M{"items": item},
			"$set":  bson.M{"updated_at": now},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to push item: %w", err)
		}
		if res.MatchedCount > 0 {
			return m.GetActive(ctx, scope)
		}

		// No active cart matched. For an owned scope the partial unique index
		// on user_id turns a concurrent create into a duplicate-key error, in
		// which case we loop back to the increment path.
		cart, err := m.createCart(ctx, scope, item, now)
		if err == nil {
			return cart, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to add item: too many concurrent writers")
}

func (m *mongoCartRepository) createCart(ctx context.Context, scope domain.CartScope, item domain.CartItem, now time.Time) (*domain.Cart, error) {
	cart := &domain.Cart{
		Items:     []domain.CartItem{item},
		IsOrdered: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if userID, ok := scope.Owned(); ok {
		cart.UserID = userID
	}

	res, err := m.collection.InsertOne(ctx, cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	cart.ID = res.InsertedID.(primitive.ObjectID)
	return cart, nil
}

func (m *mongoCartRepository) RemoveItem(ctx context.Context, scope domain.CartScope, productID string) (*domain.Cart, error) {
	filter, err := activeFilter(scope)
	if err != nil {
		return nil, err
	}

	pullFilter := bson.M{"items.product_id": productID}
	for k, v := range filter {
		pullFilter[k] = v
	}

	res, err := m.collection.UpdateOne(ctx, pullFilter, bson.M{
		"$pull": bson.M{"items": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove item: %w", err)
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing cart from a missing line.
		if _, errGet := m.GetActive(ctx, scope); errGet != nil {
			return nil, errGet
		}
		return nil, ErrItemNotFound
	}

	return m.GetActive(ctx, scope)
}

func (m *mongoCartRepository) Clear(ctx context.Context, scope domain.CartScope) (*domain.Cart, error) {
	filter, err := activeFilter(scope)
	if err != nil {
		return nil, err
	}

	res, err := m.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"items": []domain.CartItem{}, "updated_at": time.Now()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrCartNotFound
	}

	return m.GetActive(ctx, scope)
}

func (m *mongoCartRepository) Claim(ctx context.Context, scope domain.CartScope, cartID string) (*domain.Cart, error) {
	filter, err := activeFilter(scope)
	if err != nil {
		return nil, err
	}
	if cartID != "" {
		oid, errID := primitive.ObjectIDFromHex(cartID)
		if errID != nil {
			return nil, ErrCartNotFound
		}
		filter["_id"] = oid
	}

	now := time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var cart domain.Cart
	err = m.collection.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"is_ordered": true, "updated_at": now}}, opts).Decode(&cart)
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to claim cart: %w", err)
	}

	// Either the cart does not exist or it was already sealed.
	delete(filter, "is_ordered")
	var sealed domain.Cart
	errGet := m.collection.FindOne(ctx, filter).Decode(&sealed)
	if errGet == nil && sealed.IsOrdered {
		return nil, ErrCartOrdered
	}
	return nil, ErrCartNotFound
}

func (m *mongoCartRepository) Unclaim(ctx context.Context, id primitive.ObjectID) error {
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": id, "is_ordered": true},
		bson.M{"$set": bson.M{"is_ordered": false, "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("failed to unclaim cart: %w", err)
	}
	return nil
}

func (m *mongoCartRepository) Reparent(ctx context.Context, cartID, userID string) (*domain.Cart, error) {
	oid, err := primitive.ObjectIDFromHex(cartID)
	if err != nil {
		return nil, ErrCartNotFound
	}

	filter := bson.M{
		"_id":        oid,
		"is_ordered": false,
		"user_id":    bson.M{"$exists": false},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var cart domain.Cart
	err = m.collection.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"user_id": userID, "updated_at": time.Now()}}, opts).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		// The partial unique index rejects a second active cart per owner.
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrOwnerHasCart
		}
		return nil, fmt.Errorf("failed to reparent cart: %w", err)
	}
	return &cart, nil
}

func (m *mongoCartRepository) TakeGuest(ctx context.Context, cartID string) (*domain.Cart, error) {
	oid, err := primitive.ObjectIDFromHex(cartID)
	if err != nil {
		return nil, ErrCartNotFound
	}

	filter := bson.M{
		"_id":        oid,
		"is_ordered": false,
		"user_id":    bson.M{"$exists": false},
	}
	var cart domain.Cart
	if err := m.collection.FindOneAndDelete(ctx, filter).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to take guest cart: %w", err)
	}
	return &cart, nil
}

func (m *mongoCartRepository) IDsByUser(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := m.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode cart id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

// CreateIndexes sets up the partial unique index that enforces at most one
// active cart per owner. Concurrent creates for the same user collapse into
// a duplicate-key error that AddItem retries as an increment.
func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"is_ordered": false,
				"user_id":    bson.M{"$exists": true},
			}),
	}

	if _, err := m.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
