package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryOption configures a MemoryChannel.
type MemoryOption func(*MemoryChannel)

// WithMaxDeliveries bounds redelivery before a message is dead-lettered.
func WithMaxDeliveries(n int) MemoryOption {
	return func(c *MemoryChannel) {
		if n > 0 {
			c.maxDeliveries = n
		}
	}
}

// WithRetryDelay pauses before a nacked message is redelivered.
func WithRetryDelay(d time.Duration) MemoryOption {
	return func(c *MemoryChannel) { c.retryDelay = d }
}

// WithMemoryMetrics instruments the channel.
func WithMemoryMetrics(m *Metrics) MemoryOption {
	return func(c *MemoryChannel) { c.metrics = m }
}

type memQueue struct {
	pending     []Envelope
	dead        []Envelope
	notify      chan struct{}
	acked       int
	redelivered int
}

func (q *memQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// MemoryChannel is an in-process Channel with per-queue FIFO delivery and a
// dead-letter list. Messages published to a topic with no bound queue are
// dropped.
type MemoryChannel struct {
	mu            sync.Mutex
	bindings      map[string]map[string]struct{}
	queues        map[string]*memQueue
	maxDeliveries int
	retryDelay    time.Duration
	metrics       *Metrics
	logger        *slog.Logger
	closed        bool
	done          chan struct{}
}

// NewMemoryChannel constructs an empty MemoryChannel.
func NewMemoryChannel(logger *slog.Logger, opts ...MemoryOption) *MemoryChannel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &MemoryChannel{
		bindings:      make(map[string]map[string]struct{}),
		queues:        make(map[string]*memQueue),
		maxDeliveries: 10,
		retryDelay:    10 * time.Millisecond,
		logger:        logger,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind attaches queue to topic without consuming. Binding is idempotent.
func (c *MemoryChannel) Bind(topic, queue string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindLocked(topic, queue)
}

func (c *MemoryChannel) bindLocked(topic, queue string) *memQueue {
	if c.bindings[topic] == nil {
		c.bindings[topic] = make(map[string]struct{})
	}
	c.bindings[topic][queue] = struct{}{}
	q, ok := c.queues[queue]
	if !ok {
		q = &memQueue{notify: make(chan struct{}, 1)}
		c.queues[queue] = q
	}
	return q
}

// Publish implements Channel.
func (c *MemoryChannel) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := newEnvelope(topic, payload, time.Now())
	if err != nil {
		c.metrics.Published(topic, err)
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.metrics.Published(topic, ErrClosed)
		return ErrClosed
	}
	for queue := range c.bindings[topic] {
		q := c.queues[queue]
		q.pending = append(q.pending, env)
		q.signal()
	}
	c.mu.Unlock()
	c.metrics.Published(topic, nil)
	return nil
}

// Subscribe implements Channel.
func (c *MemoryChannel) Subscribe(ctx context.Context, topic, queue string, h Handler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	q := c.bindLocked(topic, queue)
	c.mu.Unlock()

	for {
		env, ok := c.next(q)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return ErrClosed
			case <-q.notify:
				continue
			}
		}
		c.deliver(ctx, queue, q, env, h)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *MemoryChannel) next(q *memQueue) (Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(q.pending) == 0 {
		return Envelope{}, false
	}
	env := q.pending[0]
	q.pending = q.pending[1:]
	return env, true
}

func (c *MemoryChannel) deliver(ctx context.Context, queue string, q *memQueue, env Envelope, h Handler) {
	env.Attempt++
	tracker := c.metrics.Track(queue)
	err := h(ctx, env)
	exhausted := env.Attempt >= c.maxDeliveries
	outcome := outcomeFor(err, exhausted)
	_ = tracker.End(outcome, err)

	c.mu.Lock()
	switch outcome {
	case OutcomeAck:
		q.acked++
	case OutcomeDead:
		q.dead = append(q.dead, env)
	default:
		q.redelivered++
		q.pending = append([]Envelope{env}, q.pending...)
	}
	c.mu.Unlock()

	switch outcome {
	case OutcomeDead:
		c.logger.Warn("event dead-lettered",
			slog.String("queue", queue),
			slog.String("event_id", env.ID),
			slog.Int("attempt", env.Attempt),
			slog.Any("error", err))
	case OutcomeNack:
		c.logger.Debug("event nacked",
			slog.String("queue", queue),
			slog.String("event_id", env.ID),
			slog.Int("attempt", env.Attempt),
			slog.Any("error", err))
		if c.retryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// Close stops every subscriber and rejects further publishes.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Bindings implements Inspector.
func (c *MemoryChannel) Bindings(_ context.Context, topic string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.bindings[topic]))
	for q := range c.bindings[topic] {
		out = append(out, q)
	}
	sort.Strings(out)
	return out, nil
}

// DeadLetters implements Inspector.
func (c *MemoryChannel) DeadLetters(_ context.Context, queue string) ([]Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[queue]
	if !ok {
		return nil, nil
	}
	return append([]Envelope(nil), q.dead...), nil
}

// Replay moves dead letters back to the tail of the queue with a fresh
// delivery count.
func (c *MemoryChannel) Replay(_ context.Context, queue string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[queue]
	if !ok {
		return 0, nil
	}
	n := len(q.dead)
	for _, env := range q.dead {
		env.Attempt = 0
		q.pending = append(q.pending, env)
	}
	q.dead = nil
	if n > 0 {
		q.signal()
	}
	return n, nil
}

// Stats implements Inspector.
func (c *MemoryChannel) Stats(_ context.Context, queue string) (QueueStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := QueueStats{Queue: queue}
	if q, ok := c.queues[queue]; ok {
		stats.Pending = len(q.pending)
		stats.Acked = q.acked
		stats.Redelivered = q.redelivered
		stats.DeadLettered = len(q.dead)
	}
	return stats, nil
}

var (
	_ Channel   = (*MemoryChannel)(nil)
	_ Inspector = (*MemoryChannel)(nil)
)
