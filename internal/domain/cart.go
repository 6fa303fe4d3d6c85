package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Items     []CartItem         `bson:"items" json:"items"`
	IsOrdered bool               `bson:"is_ordered" json:"is_ordered"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Quantity returns the line quantity for the given product, 0 if absent.
func (c *Cart) Quantity(productID string) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// CartScope addresses a cart either by its authenticated owner or by the
// opaque guest cart id handed back to the client on first add. Exactly one
// of the two is set; the Owned branch wins when a session is authenticated.
type CartScope struct {
	userID string
	cartID string
}

func OwnedScope(userID string) CartScope {
	return CartScope{userID: userID}
}

func GuestScope(cartID string) CartScope {
	return CartScope{cartID: cartID}
}

// Owned reports the owner id when the scope addresses an authenticated
// user's cart.
func (s CartScope) Owned() (string, bool) {
	return s.userID, s.userID != ""
}

// Guest reports the guest cart id when the scope addresses an anonymous cart.
func (s CartScope) Guest() (string, bool) {
	if s.userID != "" {
		return "", false
	}
	return s.cartID, s.cartID != ""
}

func (s CartScope) IsZero() bool {
	return s.userID == "" && s.cartID == ""
}

// Key is a stable cache key for the scope.
func (s CartScope) Key() string {
	if s.userID != "" {
		return fmt.Sprintf("user:%s", s.userID)
	}
	return fmt.Sprintf("guest:%s", s.cartID)
}
