// Package eventprocessor drains the durable event queue (C5) and folds each
// event into every quest instance it touches (C7): the heart of the
// engine's write path. It is the only place state is advanced and
// persisted; the RPC and HTTP layers only ever enqueue events and read
// derived state back out.
package eventprocessor

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/lirancohen/questengine/internal/eventqueue"
	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/questgraph"
	"github.com/lirancohen/questengine/internal/queststate"
	"github.com/lirancohen/questengine/internal/rewarddispatcher"
	"github.com/lirancohen/questengine/internal/store"
	"github.com/lirancohen/questengine/internal/updatechannel"
	"github.com/lirancohen/questengine/internal/wire"
)

// shardCount sizes the per-instance lock table that serializes event
// application. Per spec, at most one worker may fold-then-write a given
// instance at a time; a fixed shard count keeps this cheap without a
// per-instance map that would grow unbounded.
const shardCount = 256

// maxConcurrentEvents bounds how many events are handled by goroutines at
// once, so a queue backlog cannot spawn unbounded concurrent store/channel
// traffic.
const maxConcurrentEvents = 32

// Processor is the long-running C7 worker: pop, fan out to a bounded pool,
// fold each event into every instance it touches.
type Processor struct {
	queue   *eventqueue.Queue
	store   *store.Store
	channel updatechannel.Channel
	rewards *rewarddispatcher.Dispatcher
	logger  *slog.Logger
	shards  [shardCount]sync.Mutex
	sema    chan struct{}
}

// New constructs a Processor wired to its queue, store, update channel, and
// reward dispatcher.
func New(q *eventqueue.Queue, st *store.Store, ch updatechannel.Channel, rewards *rewarddispatcher.Dispatcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		queue:   q,
		store:   st,
		channel: ch,
		rewards: rewards,
		logger:  logger,
		sema:    make(chan struct{}, maxConcurrentEvents),
	}
}

// Run pops events in a loop until ctx is canceled, handling each on a
// bounded worker goroutine.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Error("event processor: pop failed", "error", err)
			continue
		}

		select {
		case p.sema <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		go func(event questdef.Event) {
			defer func() { <-p.sema }()
			p.handle(ctx, event)
		}(event)
	}
}

// handle runs the per-event procedure: load every active instance for the
// event's address, fold the event into each, and publish/persist/dispatch
// rewards as needed.
func (p *Processor) handle(ctx context.Context, event questdef.Event) {
	instances, err := p.store.GetActiveUserQuestInstances(event.Address)
	if err != nil {
		p.logger.Error("event processor: load active instances failed, re-enqueuing", "address", event.Address, "error", err)
		if reErr := p.queue.Requeue(ctx, event); reErr != nil {
			p.logger.Error("event processor: re-enqueue failed, event dropped", "event_id", event.ID, "error", reErr)
		}
		return
	}

	for _, instance := range instances {
		p.handleInstance(ctx, instance, event)
	}
}

func (p *Processor) handleInstance(ctx context.Context, instance questdef.QuestInstance, event questdef.Event) {
	lock := &p.shards[shardFor(instance.ID)]
	lock.Lock()
	defer lock.Unlock()

	quest, err := p.store.GetQuest(instance.QuestID)
	if err != nil {
		p.logger.Warn("event processor: load quest failed, skipping instance", "instance_id", instance.ID, "quest_id", instance.QuestID, "error", err)
		return
	}
	if err := quest.Definition.Validate(); err != nil {
		p.logger.Warn("event processor: quest definition invalid, skipping instance", "instance_id", instance.ID, "quest_id", instance.QuestID, "error", err)
		return
	}

	pastEvents, err := p.store.GetEvents(instance.ID)
	if err != nil {
		p.logger.Warn("event processor: load events failed, skipping instance", "instance_id", instance.ID, "error", err)
		return
	}

	graph := questgraph.New(quest.Definition)
	actions := make([]questdef.Action, len(pastEvents))
	for i, e := range pastEvents {
		actions[i] = e.Action
	}
	current := queststate.GetState(graph, actions)
	next := queststate.ApplyEvent(graph, current, event.Action)

	if current.Equal(next) {
		return
	}

	if err := p.store.AddEvent(event, instance.ID); err != nil {
		p.logger.Warn("event processor: persist event failed, skipping instance", "instance_id", instance.ID, "event_id", event.ID, "error", err)
		return
	}

	if err := p.channel.Publish(ctx, instance.ID, wire.UserUpdate{
		Kind: wire.UserUpdateQuestStateUpdate,
		QuestStateUpdate: wire.QuestStateUpdate{
			InstanceID: instance.ID,
			QuestState: next,
			EventID:    event.ID,
		},
	}); err != nil {
		p.logger.Warn("event processor: publish state update failed", "instance_id", instance.ID, "error", err)
	}

	if !next.IsCompleted() {
		return
	}

	alreadyCompleted, err := p.store.IsCompletedInstance(instance.ID)
	if err != nil {
		p.logger.Warn("event processor: check completion state failed", "instance_id", instance.ID, "error", err)
		return
	}
	if alreadyCompleted {
		return
	}

	if err := p.store.CompleteQuestInstance(instance.ID); err != nil {
		p.logger.Warn("event processor: mark instance completed failed", "instance_id", instance.ID, "error", err)
		return
	}

	if err := p.channel.Publish(ctx, instance.ID, wire.UserUpdate{
		Kind:             wire.UserUpdateQuestCompleted,
		QuestCompletedID: instance.ID,
	}); err != nil {
		p.logger.Warn("event processor: publish completion failed", "instance_id", instance.ID, "error", err)
	}

	if p.rewards != nil {
		go p.rewards.Dispatch(context.Background(), instance.QuestID, instance.ID, instance.UserAddress)
	}
}

func shardFor(instanceID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(instanceID))
	return h.Sum32() % shardCount
}
