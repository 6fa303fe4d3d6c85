package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/EdrumVIOT/Back-End/internal/domain"
)

func setupTestDB(t *testing.T) (*mongo.Database, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	require.NoError(t, EnsureIndexes(ctx, db))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func setupCartRepo(t *testing.T) (CartRepository, func()) {
	db, cleanup := setupTestDB(t)
	return NewMongoCartRepository(db), cleanup
}

func TestGetActive_NotFound(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()

	cart, err := repo.GetActive(ctx, domain.OwnedScope("nonexistent"))
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)

	// A guest scope with a malformed id behaves the same.
	cart, err = repo.GetActive(ctx, domain.GuestScope("not-a-hex-id"))
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddItem_NewOwnedCart(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	cart, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 3})
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.False(t, cart.ID.IsZero())

	got, err := repo.GetActive(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "user123", got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "prod-1", got.Items[0].ProductID)
	assert.Equal(t, 3, got.Items[0].Quantity)
}

func TestAddItem_NewGuestCart_MintsID(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()

	cart, err := repo.AddItem(ctx, domain.GuestScope(""), domain.CartItem{ProductID: "prod-1", Quantity: 1})
	require.NoError(t, err)
	require.False(t, cart.ID.IsZero())
	assert.Empty(t, cart.UserID)

	// The minted id addresses the cart from then on.
	got, err := repo.GetActive(ctx, domain.GuestScope(cart.ID.Hex()))
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
}

func TestAddItem_ExistingLine_Increments(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	_, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 2})
	require.NoError(t, err)
	cart, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 5})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
}

func TestAddItem_ConcurrentSameLine(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 1})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	cart, err := repo.GetActive(ctx, scope)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "one line per product despite concurrent writers")
	assert.Equal(t, writers, cart.Items[0].Quantity)
}

func TestRemoveItem_Accounting(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	_, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 2})
	require.NoError(t, err)
	_, err = repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-2", Quantity: 3})
	require.NoError(t, err)

	cart, err := repo.RemoveItem(ctx, scope, "prod-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "prod-2", cart.Items[0].ProductID)

	// Removing an absent line reports the line, not the cart, as missing.
	_, err = repo.RemoveItem(ctx, scope, "prod-1")
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = repo.RemoveItem(ctx, domain.OwnedScope("nobody"), "prod-1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestClear(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	_, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 2})
	require.NoError(t, err)

	cart, err := repo.Clear(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// The cart document survives a clear.
	got, err := repo.GetActive(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
}

func TestClaim_SealsExactlyOnce(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	created, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 1})
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, scope, "")
	require.NoError(t, err)
	assert.True(t, claimed.IsOrdered)
	assert.Equal(t, created.ID, claimed.ID)

	// The sealed cart no longer matches the active filter.
	_, err = repo.GetActive(ctx, scope)
	assert.ErrorIs(t, err, ErrCartNotFound)

	// A second claim by the minted id reports the seal.
	_, err = repo.Claim(ctx, domain.GuestScope(created.ID.Hex()), "")
	assert.ErrorIs(t, err, ErrCartOrdered)

	// And the owner is free to start a fresh cart.
	fresh, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-2", Quantity: 1})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, fresh.ID)
}

func TestClaim_Unclaim_RestoresCart(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	created, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 1})
	require.NoError(t, err)

	_, err = repo.Claim(ctx, scope, "")
	require.NoError(t, err)
	require.NoError(t, repo.Unclaim(ctx, created.ID))

	got, err := repo.GetActive(ctx, scope)
	require.NoError(t, err)
	assert.False(t, got.IsOrdered)
}

func TestReparent(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()

	guest, err := repo.AddItem(ctx, domain.GuestScope(""), domain.CartItem{ProductID: "prod-1", Quantity: 2})
	require.NoError(t, err)

	adopted, err := repo.Reparent(ctx, guest.ID.Hex(), "user123")
	require.NoError(t, err)
	assert.Equal(t, guest.ID, adopted.ID)
	assert.Equal(t, "user123", adopted.UserID)

	// The same cart now resolves through the owner scope.
	got, err := repo.GetActive(ctx, domain.OwnedScope("user123"))
	require.NoError(t, err)
	assert.Equal(t, guest.ID, got.ID)

	// Reparenting an already-owned cart fails.
	_, err = repo.Reparent(ctx, guest.ID.Hex(), "user456")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestReparent_OwnerAlreadyHasCart(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.AddItem(ctx, domain.OwnedScope("user123"), domain.CartItem{ProductID: "prod-1", Quantity: 1})
	require.NoError(t, err)
	guest, err := repo.AddItem(ctx, domain.GuestScope(""), domain.CartItem{ProductID: "prod-2", Quantity: 1})
	require.NoError(t, err)

	_, err = repo.Reparent(ctx, guest.ID.Hex(), "user123")
	assert.ErrorIs(t, err, ErrOwnerHasCart)
}

func TestTakeGuest(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()

	guest, err := repo.AddItem(ctx, domain.GuestScope(""), domain.CartItem{ProductID: "prod-1", Quantity: 2})
	require.NoError(t, err)

	taken, err := repo.TakeGuest(ctx, guest.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, guest.ID, taken.ID)
	require.Len(t, taken.Items, 1)

	// Gone for good; a second take and a lookup both miss.
	_, err = repo.TakeGuest(ctx, guest.ID.Hex())
	assert.ErrorIs(t, err, ErrCartNotFound)
	_, err = repo.GetActive(ctx, domain.GuestScope(guest.ID.Hex()))
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestTakeGuest_RefusesOwnedCart(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()

	owned, err := repo.AddItem(ctx, domain.OwnedScope("user123"), domain.CartItem{ProductID: "prod-1", Quantity: 1})
	require.NoError(t, err)

	_, err = repo.TakeGuest(ctx, owned.ID.Hex())
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestIDsByUser_IncludesOrderedCarts(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx := context.Background()
	scope := domain.OwnedScope("user123")

	first, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-1", Quantity: 1})
	require.NoError(t, err)
	_, err = repo.Claim(ctx, scope, "")
	require.NoError(t, err)
	second, err := repo.AddItem(ctx, scope, domain.CartItem{ProductID: "prod-2", Quantity: 1})
	require.NoError(t, err)

	ids, err := repo.IDsByUser(ctx, "user123")
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{first.ID, second.ID}, []interface{}{ids[0], ids[1]})
	assert.Len(t, ids, 2)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupCartRepo(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetActive(ctx, domain.OwnedScope("user123"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
