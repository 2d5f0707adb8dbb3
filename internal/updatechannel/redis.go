package updatechannel

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/rueidis"

	"github.com/lirancohen/questengine/internal/wire"
)

// channelPrefix namespaces this engine's pub/sub traffic within a shared
// Redis deployment (the same one internal/eventqueue uses).
const channelPrefix = "questengine:instance:"

// RedisChannel is the multi-process Channel backend: it publishes and
// subscribes over Redis's native pub/sub, so every engine process sees every
// update regardless of which process the publishing event processor runs in.
type RedisChannel struct {
	client rueidis.Client

	mu   sync.Mutex
	subs map[string]*redisSubscription
}

type redisSubscription struct {
	cancel    context.CancelFunc
	listeners map[int]chan wire.UserUpdate
	nextID    int
}

// NewRedisChannel connects to Redis at addr for pub/sub fan-out.
func NewRedisChannel(addr string) (*RedisChannel, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect to update channel redis: %w", err)
	}
	return &RedisChannel{client: client, subs: make(map[string]*redisSubscription)}, nil
}

// Publish encodes update and publishes it to instanceID's Redis channel.
func (c *RedisChannel) Publish(ctx context.Context, instanceID string, update wire.UserUpdate) error {
	encoded, err := wire.MarshalUserUpdate(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	cmd := c.client.B().Publish().Channel(channelPrefix + instanceID).Message(string(encoded)).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

// Subscribe joins instanceID's Redis channel, decoding each message as it
// arrives. A dedicated subscription goroutine is shared across every local
// subscriber of the same instance id, since rueidis's Receive blocks for the
// lifetime of one subscribe call.
func (c *RedisChannel) Subscribe(ctx context.Context, instanceID string) (<-chan wire.UserUpdate, func(), error) {
	redisChannel := channelPrefix + instanceID

	c.mu.Lock()
	if c.subs == nil {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("updatechannel: channel closed")
	}
	sub, ok := c.subs[redisChannel]
	if !ok {
		subCtx, cancel := context.WithCancel(context.Background())
		sub = &redisSubscription{cancel: cancel, listeners: make(map[int]chan wire.UserUpdate)}
		c.subs[redisChannel] = sub
		go c.runSubscription(subCtx, redisChannel, sub)
	}
	id := sub.nextID
	sub.nextID++
	ch := make(chan wire.UserUpdate, subscriberBuffer)
	sub.listeners[id] = ch
	c.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[redisChannel]; ok {
				delete(sub.listeners, id)
				close(ch)
				if len(sub.listeners) == 0 {
					sub.cancel()
					delete(c.subs, redisChannel)
				}
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

// runSubscription owns one live rueidis Receive call for redisChannel,
// fanning decoded messages out to every locally registered listener until
// subCtx is canceled (the last local subscriber unsubscribed).
func (c *RedisChannel) runSubscription(subCtx context.Context, redisChannel string, sub *redisSubscription) {
	cmd := c.client.B().Subscribe().Channel(redisChannel).Build()
	_ = c.client.Receive(subCtx, cmd, func(msg rueidis.PubSubMessage) {
		update, err := wire.UnmarshalUserUpdate([]byte(msg.Message))
		if err != nil {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, ch := range sub.listeners {
			select {
			case ch <- update:
			default:
			}
		}
	})
}

// Close releases the underlying Redis connections and every active
// subscription goroutine.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	for _, sub := range c.subs {
		sub.cancel()
	}
	c.subs = nil
	c.mu.Unlock()
	c.client.Close()
	return nil
}
