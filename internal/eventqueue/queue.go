// Package eventqueue is the durable FIFO of encoded events between event
// producers (HTTP and RPC handlers) and the event processor. It is backed
// by Redis, the same client library (rueidis) the Redis update channel
// uses, so the queue and the update channel can share one Redis
// deployment.
package eventqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/lirancohen/questengine/internal/questdef"
)

// Queue is a named Redis list used as a durable FIFO.
type Queue struct {
	client rueidis.Client
	key    string
}

// New connects to Redis at addr and returns a Queue operating on the named
// list key.
func New(addr, key string) (*Queue, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect to event queue redis: %w", err)
	}
	return &Queue{client: client, key: key}, nil
}

// Close releases the underlying Redis connections.
func (q *Queue) Close() {
	q.client.Close()
}

// Push encodes and appends an event to the tail of the queue, returning
// the queue's new length.
func (q *Queue) Push(ctx context.Context, event questdef.Event) (int64, error) {
	encoded, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	cmd := q.client.B().Rpush().Key(q.key).Element(string(encoded)).Build()
	length, err := q.client.Do(ctx, cmd).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("push event: %w", err)
	}
	return length, nil
}

// Pop blocks until an event is available or ctx is canceled. It re-issues
// a bounded BLPOP in a loop so cancellation is observed promptly rather
// than blocking forever on a single call.
func (q *Queue) Pop(ctx context.Context) (questdef.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return questdef.Event{}, ctx.Err()
		default:
		}

		cmd := q.client.B().Blpop().Key(q.key).Timeout(1).Build()
		resp, err := q.client.Do(ctx, cmd).ToArray()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return questdef.Event{}, fmt.Errorf("pop event: %w", err)
		}
		if len(resp) != 2 {
			continue
		}
		payload, err := resp[1].ToString()
		if err != nil {
			return questdef.Event{}, fmt.Errorf("decode popped value: %w", err)
		}

		var event questdef.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return questdef.Event{}, fmt.Errorf("decode event: %w", err)
		}
		return event, nil
	}
}

// Requeue re-pushes an event to the tail of the queue, used on processing
// failure to preserve at-least-once delivery.
func (q *Queue) Requeue(ctx context.Context, event questdef.Event) error {
	_, err := q.Push(ctx, event)
	return err
}
