package updatechannel

import (
	"context"
	"fmt"
	"sync"

	"github.com/lirancohen/questengine/internal/wire"
)

// subscriberBuffer bounds how many undelivered updates a single subscription
// holds before Publish drops new updates for that subscriber rather than
// blocking every publisher on it.
const subscriberBuffer = 32

// MemoryChannel is the default, single-process Channel: an in-process
// fan-out keyed by instance id. It has no external dependency and is the
// right choice whenever the engine runs as one process.
type MemoryChannel struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan wire.UserUpdate
	nextID int
	closed bool
}

// NewMemoryChannel returns an empty, ready-to-use in-process channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[string]map[int]chan wire.UserUpdate)}
}

// Publish delivers update to every live subscriber of instanceID. A
// subscriber whose buffer is full has the update dropped for it rather than
// stalling the publisher; per spec, publish is fire-and-forget.
func (c *MemoryChannel) Publish(ctx context.Context, instanceID string, update wire.UserUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("updatechannel: channel closed")
	}
	for _, ch := range c.subs[instanceID] {
		select {
		case ch <- update:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscription for instanceID.
func (c *MemoryChannel) Subscribe(ctx context.Context, instanceID string) (<-chan wire.UserUpdate, func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("updatechannel: channel closed")
	}
	id := c.nextID
	c.nextID++
	ch := make(chan wire.UserUpdate, subscriberBuffer)
	if c.subs[instanceID] == nil {
		c.subs[instanceID] = make(map[int]chan wire.UserUpdate)
	}
	c.subs[instanceID][id] = ch
	c.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			// After Close, ch is already closed and c.subs is nil.
			if bucket, ok := c.subs[instanceID]; ok {
				delete(bucket, id)
				if len(bucket) == 0 {
					delete(c.subs, instanceID)
				}
				close(ch)
			}
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			remove()
		}()
	}

	return ch, remove, nil
}

// Close tears down every live subscription and rejects further use.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, bucket := range c.subs {
		for _, ch := range bucket {
			close(ch)
		}
	}
	c.subs = nil
	return nil
}
