package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/models"
)

// document identifies a persisted collection
type document uint8

const (
	docProducts document = 1 << iota
	docOrders
	docUsers
)

// state is the full content of the store at one point in time
type state struct {
	products map[int64]models.Product
	orders   []models.Order
	users    []models.User
	next     sequences
}

// sequences holds the next id of each collection. Ids are never reused, even
// after the row holding the highest one is deleted.
type sequences struct {
	Product int64 `json:"product"`
	Order   int64 `json:"order"`
	User    int64 `json:"user"`
}

// persistFunc durably records the documents named in changed. When it fails the
// mutation is discarded and the in-memory state stays as it was.
type persistFunc func(changed document, st state) error

// MemoryStore keeps the catalog, ledger and credentials in process memory.
// Every mutation runs under one mutex, so check-then-decrement in PlaceOrder
// cannot interleave with another writer.
type MemoryStore struct {
	mu sync.RWMutex

	products map[int64]models.Product
	orders   []models.Order
	users    []models.User
	next     sequences

	persist persistFunc
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(state{}, nil)
}

func newMemoryStore(st state, persist persistFunc) *MemoryStore {
	s := &MemoryStore{
		products: st.products,
		orders:   st.orders,
		users:    st.users,
		next:     seedSequences(st),
		persist:  persist,
		now:      time.Now,
	}
	if s.products == nil {
		s.products = make(map[int64]models.Product)
	}
	return s
}

// seedSequences never goes below a recorded counter or an id still referenced
// by a product, an order line or a user
func seedSequences(st state) sequences {
	next := sequences{
		Product: max(st.next.Product, 1),
		Order:   max(st.next.Order, 1),
		User:    max(st.next.User, 1),
	}
	for id := range st.products {
		next.Product = max(next.Product, id+1)
	}
	for _, o := range st.orders {
		next.Order = max(next.Order, o.ID+1)
		for _, item := range o.Items {
			next.Product = max(next.Product, item.ProductID+1)
		}
	}
	for _, u := range st.users {
		next.User = max(next.User, u.ID+1)
	}
	return next
}

func (s *MemoryStore) save(changed document, st state) error {
	if s.persist == nil {
		return nil
	}
	return s.persist(changed, st)
}

func (s *MemoryStore) current() state {
	return state{products: s.products, orders: s.orders, users: s.users, next: s.next}
}

// ListAvailable returns in-stock products ordered by id
func (s *MemoryStore) ListAvailable(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.products))
	for _, id := range sortedIDs(s.products) {
		if p := s.products[id]; p.Available() {
			products = append(products, p)
		}
	}
	return products, nil
}

// ListAll returns every product, including sold-out ones
func (s *MemoryStore) ListAll(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.products))
	for _, id := range sortedIDs(s.products) {
		products = append(products, s.products[id])
	}
	return products, nil
}

// GetByID returns a product by its ID regardless of stock
func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, productNotFound(id)
	}
	return &product, nil
}

// Create stores a new product and assigns its ID
func (s *MemoryStore) Create(ctx context.Context, product *models.Product) error {
	if err := validateProduct(*product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := *product
	created.ID = s.next.Product

	next := maps.Clone(s.products)
	next[created.ID] = created

	st := s.current()
	st.products = next
	st.next.Product++
	if err := s.save(docProducts, st); err != nil {
		return fmt.Errorf("failed to persist product: %w", err)
	}

	s.products = next
	s.next = st.next
	*product = created
	return nil
}

// Update applies a partial change to an existing product
func (s *MemoryStore) Update(ctx context.Context, id int64, changes models.ProductChanges) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, productNotFound(id)
	}
	changes.Apply(&product)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	next := maps.Clone(s.products)
	next[id] = product

	st := s.current()
	st.products = next
	if err := s.save(docProducts, st); err != nil {
		return nil, fmt.Errorf("failed to persist product %d: %w", id, err)
	}

	s.products = next
	return &product, nil
}

// Delete removes a product
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return productNotFound(id)
	}

	next := maps.Clone(s.products)
	delete(next, id)

	st := s.current()
	st.products = next
	if err := s.save(docProducts, st); err != nil {
		return fmt.Errorf("failed to persist deletion of product %d: %w", id, err)
	}

	s.products = next
	return nil
}

// PlaceOrder decrements stock for all lines and appends the order atomically
func (s *MemoryStore) PlaceOrder(ctx context.Context, order *models.Order) error {
	if err := validateOrderLines(order.Items); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.products)
	items, err := reserveStock(next, order.Items)
	if err != nil {
		return err
	}

	placed := *order
	placed.ID = s.next.Order
	placed.Items = items
	placed.CreatedAt = s.now().UTC()

	orders := append(s.orders[:len(s.orders):len(s.orders)], placed)

	st := s.current()
	st.products = next
	st.orders = orders
	st.next.Order++
	if err := s.save(docProducts|docOrders, st); err != nil {
		return fmt.Errorf("failed to persist order: %w", err)
	}

	s.products = next
	s.orders = orders
	s.next = st.next
	*order = placed
	return nil
}

// ListOrders returns the ledger, oldest first
func (s *MemoryStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		orders[i] = o
	}
	return orders, nil
}

// GetUserByUsername looks up an administrator
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser stores a new administrator
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	if strings.TrimSpace(user.Username) == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: username and password hash are required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: user %q already exists", ErrInvalidInput, user.Username)
		}
	}

	created := *user
	created.ID = s.next.User
	users := append(s.users[:len(s.users):len(s.users)], created)

	st := s.current()
	st.users = users
	st.next.User++
	if err := s.save(docUsers, st); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}

	s.users = users
	s.next = st.next
	*user = created
	return nil
}

// CountUsers returns the number of stored administrators
func (s *MemoryStore) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

// reserveStock walks the lines in listed order against a working copy of the
// catalog, so repeated products see the already-reserved amount. The returned
// lines carry the catalog name and price at decrement time.
func reserveStock(products map[int64]models.Product, lines []models.OrderItem) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		p, exists := products[line.ProductID]
		if !exists {
			return nil, productNotFound(line.ProductID)
		}
		if p.Quantity < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Quantity,
				Requested: line.Quantity,
			}
		}
		p.Quantity -= line.Quantity
		products[p.ID] = p

		items[i] = models.OrderItem{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			Name:      p.Name,
			UnitPrice: p.Price,
		}
	}
	return items, nil
}

func validateOrderLines(lines []models.OrderItem) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for product %d must be positive", ErrInvalidInput, line.ProductID)
		}
	}
	return nil
}

func validateProduct(p models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: product price cannot be negative", ErrInvalidInput)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: product quantity cannot be negative", ErrInvalidInput)
	}
	return nil
}

func sortedIDs(products map[int64]models.Product) []int64 {
	return slices.Sorted(maps.Keys(products))
}
