package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/delifood/delifood/internal/replica"
	"github.com/delifood/delifood/internal/shared"
)

type memRepo struct {
	mu    sync.Mutex
	items map[string]map[string]Item
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[string]map[string]Item{}}
}

func (m *memRepo) AddItem(_ context.Context, item Item) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.items[item.UserID]
	if lines == nil {
		lines = map[string]Item{}
		m.items[item.UserID] = lines
	}
	if cur, ok := lines[item.ProductID]; ok {
		cur.Quantity += item.Quantity
		cur.UpdatedAt = item.UpdatedAt
		item = cur
	}
	lines[item.ProductID] = item
	return item, nil
}

func (m *memRepo) Items(_ context.Context, userID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.items[userID]))
	for _, it := range m.items[userID] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memRepo) SetQuantity(_ context.Context, userID, productID string, qty int, at time.Time) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[userID][productID]
	if !ok {
		return Item{}, fmt.Errorf("cart_items: %w", shared.ErrNotFound)
	}
	it.Quantity = qty
	it.UpdatedAt = at
	m.items[userID][productID] = it
	return it, nil
}

func (m *memRepo) RemoveItem(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[userID][productID]; !ok {
		return fmt.Errorf("cart_items: %w", shared.ErrNotFound)
	}
	delete(m.items[userID], productID)
	return nil
}

// replicaStore satisfies both replica stores so tests can run the real consumer.
type replicaStore struct {
	mu       sync.Mutex
	users    map[string]replica.User
	products map[string]replica.Product
}

func newReplicaStore() *replicaStore {
	return &replicaStore{users: map[string]replica.User{}, products: map[string]replica.Product{}}
}

func (s *replicaStore) InsertUser(_ context.Context, u replica.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return &shared.ConflictError{Entity: "replica_users", Constraint: "replica_users_pkey"}
	}
	s.users[u.ID] = u
	return nil
}

func (s *replicaStore) UpsertUser(_ context.Context, u replica.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.users[u.ID]; ok && cur.UpdatedAt.After(u.UpdatedAt) {
		return false, nil
	}
	s.users[u.ID] = u
	return true, nil
}

func (s *replicaStore) GetUser(_ context.Context, id string) (replica.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return replica.User{}, fmt.Errorf("replica_users: %w", shared.ErrNotFound)
	}
	return u, nil
}

func (s *replicaStore) InsertProduct(_ context.Context, p replica.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return &shared.ConflictError{Entity: "replica_products", Constraint: "replica_products_pkey"}
	}
	s.products[p.ID] = p
	return nil
}

func (s *replicaStore) UpsertProduct(_ context.Context, p replica.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.products[p.ID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return false, nil
	}
	s.products[p.ID] = p
	return true, nil
}

func (s *replicaStore) GetProduct(_ context.Context, id string) (replica.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return replica.Product{}, fmt.Errorf("replica_products: %w", shared.ErrNotFound)
	}
	return p, nil
}

func (s *replicaStore) hasUser(id string) bool {
	_, err := s.GetUser(context.Background(), id)
	return err == nil
}

func (s *replicaStore) productPrice(id string) int64 {
	p, _ := s.GetProduct(context.Background(), id)
	return p.Price
}
