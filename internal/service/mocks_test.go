package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/EdrumVIOT/Back-End/internal/cache"
	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/repository"
)

// mockCartRepo is an in-memory CartRepository mirroring the Mongo
// implementation's matching rules closely enough for service-level tests.
type mockCartRepo struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*domain.Cart)}
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

func (m *mockCartRepo) findActive(scope domain.CartScope) *domain.Cart {
	if userID, ok := scope.Owned(); ok {
		for _, c := range m.carts {
			if c.UserID == userID && !c.IsOrdered {
				return c
			}
		}
		return nil
	}
	cartID, ok := scope.Guest()
	if !ok {
		return nil
	}
	if c, found := m.carts[cartID]; found && !c.IsOrdered {
		return c
	}
	return nil
}

func (m *mockCartRepo) GetActive(_ context.Context, scope domain.CartScope) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if c := m.findActive(scope); c != nil {
		return copyCart(c), nil
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCartRepo) AddItem(_ context.Context, scope domain.CartScope, item domain.CartItem) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	item.AddedAt = time.Now()

	cart := m.findActive(scope)
	if cart == nil {
		cart = &domain.Cart{
			ID:        primitive.NewObjectID(),
			Items:     nil,
			CreatedAt: time.Now(),
		}
		if userID, ok := scope.Owned(); ok {
			cart.UserID = userID
		}
		m.carts[cart.ID.Hex()] = cart
	}

	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity += item.Quantity
			cart.UpdatedAt = time.Now()
			return copyCart(cart), nil
		}
	}
	cart.Items = append(cart.Items, item)
	cart.UpdatedAt = time.Now()
	return copyCart(cart), nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, scope domain.CartScope, productID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	cart := m.findActive(scope)
	if cart == nil {
		return nil, repository.ErrCartNotFound
	}
	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.UpdatedAt = time.Now()
			return copyCart(cart), nil
		}
	}
	return nil, repository.ErrItemNotFound
}

func (m *mockCartRepo) Clear(_ context.Context, scope domain.CartScope) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	cart := m.findActive(scope)
	if cart == nil {
		return nil, repository.ErrCartNotFound
	}
	cart.Items = []domain.CartItem{}
	cart.UpdatedAt = time.Now()
	return copyCart(cart), nil
}

func (m *mockCartRepo) Claim(_ context.Context, scope domain.CartScope, cartID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	cart := m.findActive(scope)
	if cart != nil && cartID != "" && cart.ID.Hex() != cartID {
		cart = nil
	}
	if cart == nil {
		// Distinguish an already-sealed cart from a missing one.
		lookup := cartID
		if lookup == "" {
			if id, ok := scope.Guest(); ok {
				lookup = id
			}
		}
		if sealed, found := m.carts[lookup]; found && sealed.IsOrdered {
			return nil, repository.ErrCartOrdered
		}
		return nil, repository.ErrCartNotFound
	}

	cart.IsOrdered = true
	cart.UpdatedAt = time.Now()
	return copyCart(cart), nil
}

func (m *mockCartRepo) Unclaim(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, found := m.carts[id.Hex()]; found {
		cart.IsOrdered = false
	}
	return nil
}

func (m *mockCartRepo) Reparent(_ context.Context, cartID, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.UserID == userID && !c.IsOrdered {
			return nil, repository.ErrOwnerHasCart
		}
	}

	cart, found := m.carts[cartID]
	if !found || cart.IsOrdered || cart.UserID != "" {
		return nil, repository.ErrCartNotFound
	}
	cart.UserID = userID
	cart.UpdatedAt = time.Now()
	return copyCart(cart), nil
}

func (m *mockCartRepo) TakeGuest(_ context.Context, cartID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, found := m.carts[cartID]
	if !found || cart.IsOrdered || cart.UserID != "" {
		return nil, repository.ErrCartNotFound
	}
	delete(m.carts, cartID)
	return copyCart(cart), nil
}

func (m *mockCartRepo) IDsByUser(_ context.Context, userID string) ([]primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []primitive.ObjectID
	for _, c := range m.carts {
		if c.UserID == userID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[string]domain.Product)}
}

func (m *mockProductRepo) add(price float64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domain.Product{ID: primitive.NewObjectID(), Title: "p", Price: price}
	m.products[p.ID.Hex()] = p
	return p.ID.Hex()
}

func (m *mockProductRepo) Create(_ context.Context, product *domain.Product) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = primitive.NewObjectID()
	m.products[product.ID.Hex()] = *product
	return product.ID, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, found := m.products[id]; found {
		return &p, nil
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepo) List(_ context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *mockProductRepo) Update(_ context.Context, id string, fields map[string]interface{}) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.products[id]
	if !found {
		return nil, repository.ErrProductNotFound
	}
	if price, ok := fields["price"].(float64); ok {
		p.Price = price
	}
	if title, ok := fields["title"].(string); ok {
		p.Title = title
	}
	m.products[id] = p
	return &p, nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.products[id]; !found {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) PricesByIDs(_ context.Context, ids []string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prices := make(map[string]float64)
	for _, id := range ids {
		if p, found := m.products[id]; found {
			prices[id] = p.Price
		}
	}
	return prices, nil
}

type mockOtpRepo struct {
	mu      sync.Mutex
	records []domain.OtpRecord
}

func (m *mockOtpRepo) Latest(_ context.Context, number string) (*domain.OtpRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.OtpRecord
	for i := range m.records {
		r := m.records[i]
		if r.Number != number {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = &m.records[i]
		}
	}
	if latest == nil {
		return nil, repository.ErrOtpNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockOtpRepo) Find(_ context.Context, number, code string) (*domain.OtpRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Number == number && r.Code == code {
			cp := r
			return &cp, nil
		}
	}
	return nil, repository.ErrOtpNotFound
}

func (m *mockOtpRepo) Create(_ context.Context, record domain.OtpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockOtpRepo) DeleteAll(_ context.Context, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if r.Number != number {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *mockOtpRepo) count(number string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Number == number {
			n++
		}
	}
	return n
}

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	err    error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, order *domain.Order) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return primitive.NilObjectID, m.err
	}
	order.ID = primitive.NewObjectID()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID.Hex()] = *order
	return order.ID, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, found := m.orders[id]; found {
		return &o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepo) ListByCartIDs(_ context.Context, cartIDs []primitive.ObjectID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		for _, id := range cartIDs {
			if o.CartID == id {
				out = append(out, o)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, found := m.orders[id]
	if !found {
		return nil, repository.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return &o, nil
}

type mockCache struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, scope domain.CartScope) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, found := m.carts[scope.Key()]; found {
		return copyCart(c), nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mockCache) Set(_ context.Context, scope domain.CartScope, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[scope.Key()] = copyCart(cart)
	return nil
}

func (m *mockCache) Delete(_ context.Context, scope domain.CartScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, scope.Key())
	return nil
}

type mockSender struct {
	mu   sync.Mutex
	sent []string // "number:text"
	err  error
}

func (m *mockSender) Send(_ context.Context, phoneNumber, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, phoneNumber+":"+text)
	return nil
}

func (m *mockSender) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	last := m.sent[len(m.sent)-1]
	for i := range last {
		if last[i] == ':' {
			return last[i+1:]
		}
	}
	return ""
}

type mockPublisher struct {
	mu        sync.Mutex
	published []string
}

func (m *mockPublisher) PublishOrderCreated(_ context.Context, order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, order.ID.Hex())
}

func (m *mockPublisher) Close() error { return nil }
