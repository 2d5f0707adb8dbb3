// Package updatechannel is the real-time pub/sub fan-out of per-instance
// UserUpdate messages (C6). It replaces this codebase's previous
// client-protocol-coupled pub/sub node with a headless bus the RPC session
// layer can subscribe to directly: Publish is fire-and-forget, a
// subscription receives every message published once it is registered
// (MemoryChannel registers before Subscribe returns; RedisChannel issues its
// Redis SUBSCRIBE from a background goroutine, so registration can complete
// shortly after Subscribe returns), and no history is retained, matching the wire contract's "subscribers see only what is
// published from here on" rule.
package updatechannel

import (
	"context"

	"github.com/lirancohen/questengine/internal/wire"
)

// Channel publishes and subscribes to per-instance UserUpdate streams.
// Channel names are quest instance ids, plus the caller address under which
// the RPC session layer publishes NewQuestStarted notifications. A
// subscription receives only updates published under its own name.
type Channel interface {
	// Publish fans update out to every current subscriber of instanceID.
	// It does not block on slow subscribers beyond the channel's own
	// delivery buffer, and it never returns an error for "no subscribers".
	Publish(ctx context.Context, instanceID string, update wire.UserUpdate) error

	// Subscribe registers for instanceID's updates. The returned channel is
	// closed, and the cancel func becomes a no-op, once either ctx is
	// canceled or cancel is called. Callers must call cancel when done to
	// release the subscription slot.
	Subscribe(ctx context.Context, instanceID string) (updates <-chan wire.UserUpdate, cancel func(), err error)

	// Close releases any resources held by the channel (connections,
	// background goroutines). Subsequent Publish/Subscribe calls fail.
	Close() error
}
