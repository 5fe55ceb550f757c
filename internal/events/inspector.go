package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// AsynqInspector reads queue state and dead letters from asynq.
type AsynqInspector struct {
	rdb       redis.UniversalClient
	inspector *asynq.Inspector
}

// NewAsynqInspector builds an inspector over rdb.
func NewAsynqInspector(rdb *redis.Client) *AsynqInspector {
	return &AsynqInspector{rdb: rdb, inspector: asynq.NewInspector(RedisConnOpt(rdb.Options()))}
}

// Bindings lists the queues bound to topic.
func (i *AsynqInspector) Bindings(ctx context.Context, topic string) ([]string, error) {
	queues, err := i.rdb.SMembers(ctx, bindingKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("events: load bindings for %s: %w", topic, err)
	}
	sort.Strings(queues)
	return queues, nil
}

// DeadLetters lists archived tasks on queue.
func (i *AsynqInspector) DeadLetters(_ context.Context, queue string) ([]Envelope, error) {
	tasks, err := i.inspector.ListArchivedTasks(queue, asynq.PageSize(1000))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("events: list archived %s: %w", queue, err)
	}
	out := make([]Envelope, 0, len(tasks))
	for _, t := range tasks {
		var env Envelope
		if err := json.Unmarshal(t.Payload, &env); err != nil {
			env = Envelope{ID: t.ID, Topic: t.Type}
		}
		env.Attempt = t.Retried + 1
		out = append(out, env)
	}
	return out, nil
}

// Replay moves every archived task on queue back to pending.
func (i *AsynqInspector) Replay(_ context.Context, queue string) (int, error) {
	n, err := i.inspector.RunAllArchivedTasks(queue)
	if err != nil {
		return 0, fmt.Errorf("events: replay %s: %w", queue, err)
	}
	return n, nil
}

// Stats summarises queue.
func (i *AsynqInspector) Stats(_ context.Context, queue string) (QueueStats, error) {
	info, err := i.inspector.GetQueueInfo(queue)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return QueueStats{Queue: queue}, nil
		}
		return QueueStats{}, fmt.Errorf("events: queue info %s: %w", queue, err)
	}
	return QueueStats{
		Queue:        queue,
		Pending:      info.Pending + info.Active,
		Acked:        info.ProcessedTotal - info.FailedTotal,
		Redelivered:  info.Retry,
		DeadLettered: info.Archived,
	}, nil
}

// Close releases the inspector connection.
func (i *AsynqInspector) Close() error {
	return i.inspector.Close()
}

var _ Inspector = (*AsynqInspector)(nil)
