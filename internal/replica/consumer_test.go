package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/shared"
)

type memStore struct {
	mu       sync.Mutex
	users    map[string]User
	products map[string]Product
	failNext atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{users: map[string]User{}, products: map[string]Product{}}
}

func (m *memStore) fail() error {
	if m.failNext.Load() > 0 {
		m.failNext.Add(-1)
		return errors.New("connection refused")
	}
	return nil
}

func (m *memStore) InsertUser(_ context.Context, u User) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return &shared.ConflictError{Entity: "replica_users", Constraint: "replica_users_pkey"}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memStore) UpsertUser(_ context.Context, u User) (bool, error) {
	if err := m.fail(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.users[u.ID]; ok && cur.UpdatedAt.After(u.UpdatedAt) {
		return false, nil
	}
	m.users[u.ID] = u
	return true, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("replica_users: %w", shared.ErrNotFound)
	}
	return u, nil
}

func (m *memStore) InsertProduct(_ context.Context, p Product) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return &shared.ConflictError{Entity: "replica_products", Constraint: "replica_products_pkey"}
	}
	m.products[p.ID] = p
	return nil
}

func (m *memStore) UpsertProduct(_ context.Context, p Product) (bool, error) {
	if err := m.fail(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.products[p.ID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return false, nil
	}
	m.products[p.ID] = p
	return true, nil
}

func (m *memStore) GetProduct(_ context.Context, id string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("replica_products: %w", shared.ErrNotFound)
	}
	return p, nil
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func startConsumer(t *testing.T, ch *events.MemoryChannel, store *memStore) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewConsumer(ch, store, store, nil).Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("consumer did not stop")
		}
	})
	for _, topic := range []string{events.TopicUserCreated, events.TopicUserUpdated, events.TopicProductCreated, events.TopicProductUpdated} {
		assert.Eventually(t, func() bool {
			bound, _ := ch.Bindings(context.Background(), topic)
			return len(bound) == 1
		}, time.Second, 5*time.Millisecond, topic)
	}
}

func TestDuplicateCreatedEventIsAcknowledged(t *testing.T) {
	ch := events.NewMemoryChannel(nil, events.WithRetryDelay(0))
	store := newMemStore()
	startConsumer(t, ch, store)

	payload := events.UserPayload{ID: "u-1", Email: "a@b.io", UpdatedAt: time.Now()}
	require.NoError(t, ch.Publish(context.Background(), events.TopicUserCreated, payload))
	require.NoError(t, ch.Publish(context.Background(), events.TopicUserCreated, payload))

	queue := events.QueueName(events.TopicUserCreated)
	assert.Eventually(t, func() bool {
		stats, _ := ch.Stats(context.Background(), queue)
		return stats.Acked == 2
	}, time.Second, 5*time.Millisecond)
	stats, err := ch.Stats(context.Background(), queue)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Redelivered)
	assert.Equal(t, 0, stats.DeadLettered)
	assert.Equal(t, 1, store.userCount())
}

func TestStoreFailureIsRedelivered(t *testing.T) {
	ch := events.NewMemoryChannel(nil, events.WithRetryDelay(0))
	store := newMemStore()
	store.failNext.Store(1)
	startConsumer(t, ch, store)

	require.NoError(t, ch.Publish(context.Background(), events.TopicProductCreated,
		events.ProductPayload{ID: "p-1", Name: "Pizza", SKU: "PZ-1", Price: 1299}))

	queue := events.QueueName(events.TopicProductCreated)
	assert.Eventually(t, func() bool {
		stats, _ := ch.Stats(context.Background(), queue)
		return stats.Acked == 1
	}, time.Second, 5*time.Millisecond)
	stats, err := ch.Stats(context.Background(), queue)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Redelivered)

	p, err := store.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1299), p.Price)
}

func TestUpdatedEventsNeverRegress(t *testing.T) {
	store := newMemStore()
	c := NewConsumer(events.NopChannel{}, store, store, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	update := func(name string, at time.Time) events.Envelope {
		return envelope(t, events.TopicProductUpdated, events.ProductPayload{ID: "p-1", Name: name, SKU: "S", UpdatedAt: at})
	}

	require.NoError(t, c.HandleProductUpdated(ctx, update("v2", t0.Add(time.Minute))))
	require.NoError(t, c.HandleProductUpdated(ctx, update("v1", t0)))

	p, err := store.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Name)

	created := envelope(t, events.TopicProductCreated, events.ProductPayload{ID: "p-1", Name: "v0", UpdatedAt: t0.Add(-time.Hour)})
	require.NoError(t, c.HandleProductCreated(ctx, created))
	p, err = store.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Name)
}

func TestUpdatedEventForUnknownUserCreatesReplica(t *testing.T) {
	store := newMemStore()
	c := NewConsumer(events.NopChannel{}, store, store, nil)
	ctx := context.Background()

	require.NoError(t, c.HandleUserUpdated(ctx, envelope(t, events.TopicUserUpdated, events.UserPayload{ID: "u-9", Email: "x@y.io"})))
	u, err := store.GetUser(ctx, "u-9")
	require.NoError(t, err)
	assert.Equal(t, "x@y.io", u.Email)
	assert.False(t, u.UpdatedAt.IsZero())
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	store := newMemStore()
	c := NewConsumer(events.NopChannel{}, store, store, nil)
	ctx := context.Background()

	err := c.HandleUserCreated(ctx, events.Envelope{Topic: events.TopicUserCreated, Payload: []byte(`"nope"`)})
	assert.ErrorIs(t, err, events.ErrSkipRetry)

	err = c.HandleProductCreated(ctx, envelope(t, events.TopicProductCreated, events.ProductPayload{Name: "no id"}))
	assert.ErrorIs(t, err, events.ErrSkipRetry)
}

func envelope(t *testing.T, topic string, payload any) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Envelope{ID: "e-" + topic, Topic: topic, Payload: raw, Timestamp: time.Now().UTC(), Attempt: 1}
}
