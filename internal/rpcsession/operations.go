package rpcsession

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/questgraph"
	"github.com/lirancohen/questengine/internal/queststate"
	"github.com/lirancohen/questengine/internal/store"
	"github.com/lirancohen/questengine/internal/wire"
)

func (s *session) handleStartQuest(env wire.Envelope) {
	questID, err := wire.UnmarshalStartQuestRequest(env.Payload)
	if err != nil {
		s.sendError(env.Port, env.RequestID, err)
		return
	}

	active, err := s.srv.store.IsActiveQuest(questID)
	if err != nil || !active {
		kind := wire.StartQuestInvalidQuest
		if errors.Is(err, store.ErrNotUuid) {
			kind = wire.StartQuestNotUuid
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			kind = wire.StartQuestInternalServerError
		}
		s.sendResponse(env.Port, env.RequestID, wire.MarshalStartQuestResponse(wire.StartQuestResponse{Kind: kind}))
		return
	}

	instanceID, err := s.srv.store.StartQuest(questID, s.address)
	if err != nil {
		kind := wire.StartQuestInternalServerError
		switch {
		case errors.Is(err, store.ErrQuestAlreadyStarted):
			kind = wire.StartQuestAlreadyStarted
		case errors.Is(err, store.ErrNotUuid):
			kind = wire.StartQuestNotUuid
		}
		s.sendResponse(env.Port, env.RequestID, wire.MarshalStartQuestResponse(wire.StartQuestResponse{Kind: kind}))
		return
	}

	s.sendResponse(env.Port, env.RequestID, wire.MarshalStartQuestResponse(wire.StartQuestResponse{
		Kind:       wire.StartQuestAccepted,
		InstanceID: instanceID,
	}))

	if s.srv.channel == nil {
		return
	}
	inst, err := s.srv.store.GetQuestInstance(instanceID)
	if err != nil {
		return
	}
	update := wire.UserUpdate{Kind: wire.UserUpdateNewQuestStarted, NewQuestStarted: inst}
	s.srv.channel.Publish(s.ctx, s.address, update)
}

func (s *session) handleAbortQuest(env wire.Envelope) {
	instanceID, err := wire.UnmarshalAbortQuestRequest(env.Payload)
	if err != nil {
		s.sendResponse(env.Port, env.RequestID, wire.MarshalAbortQuestResponse(wire.AbortQuestInternalServerError))
		return
	}

	inst, err := s.srv.store.GetQuestInstance(instanceID)
	if err != nil {
		kind := wire.AbortQuestInternalServerError
		switch {
		case errors.Is(err, store.ErrNotUuid):
			kind = wire.AbortQuestNotUuid
		case errors.Is(err, store.ErrNotFound):
			kind = wire.AbortQuestNotFoundQuestInstance
		}
		s.sendResponse(env.Port, env.RequestID, wire.MarshalAbortQuestResponse(kind))
		return
	}
	if !strings.EqualFold(inst.UserAddress, s.address) {
		s.sendResponse(env.Port, env.RequestID, wire.MarshalAbortQuestResponse(wire.AbortQuestNotOwner))
		return
	}
	if err := s.srv.store.AbandonQuestInstance(instanceID); err != nil {
		s.sendResponse(env.Port, env.RequestID, wire.MarshalAbortQuestResponse(wire.AbortQuestInternalServerError))
		return
	}
	s.sendResponse(env.Port, env.RequestID, wire.MarshalAbortQuestResponse(wire.AbortQuestAccepted))
}

// handleSendEvent synthesizes the event's id and address server-side (the
// caller only supplies the action) and pushes it onto the durable queue for
// the event processor to fold in.
func (s *session) handleSendEvent(env wire.Envelope) {
	action, err := wire.UnmarshalEventRequest(env.Payload)
	if err != nil {
		s.sendResponse(env.Port, env.RequestID, wire.MarshalEventResponse(wire.EventResponse{Kind: wire.EventResponseInternalServerError}))
		return
	}

	event := questdef.Event{ID: uuid.NewString(), Address: s.address, Action: action}
	if _, err := s.srv.queue.Push(s.ctx, event); err != nil {
		s.sendResponse(env.Port, env.RequestID, wire.MarshalEventResponse(wire.EventResponse{Kind: wire.EventResponseInternalServerError}))
		return
	}
	s.sendResponse(env.Port, env.RequestID, wire.MarshalEventResponse(wire.EventResponse{
		Kind:    wire.EventResponseAcceptedEventID,
		EventID: event.ID,
	}))
}

// handleGetAllQuests returns every active instance the caller holds, the
// same data the HTTP creator-facing instances listing and the Subscribe
// back-fill already use - not the global set of quest templates.
func (s *session) handleGetAllQuests(env wire.Envelope) {
	instances, err := s.srv.store.GetActiveUserQuestInstances(s.address)
	if err != nil {
		s.sendError(env.Port, env.RequestID, err)
		return
	}
	s.sendResponse(env.Port, env.RequestID, wire.MarshalQuestInstanceList(instances))
}

// handleGetQuestDefinition decodes its payload with the same single-string
// wire shape as StartQuestRequest (field 1, a quest id) rather than
// defining a redundant message type for it.
func (s *session) handleGetQuestDefinition(env wire.Envelope) {
	questID, err := wire.UnmarshalStartQuestRequest(env.Payload)
	if err != nil {
		s.sendError(env.Port, env.RequestID, err)
		return
	}
	q, err := s.srv.store.GetQuest(questID)
	if err != nil {
		s.sendError(env.Port, env.RequestID, err)
		return
	}
	if !strings.EqualFold(q.CreatorAddress, s.address) {
		s.sendError(env.Port, env.RequestID, store.ErrNotQuestCreator)
		return
	}
	s.sendResponse(env.Port, env.RequestID, wire.MarshalQuestDefinition(q.Definition))
}

// handleSubscribe back-fills the current state of every active instance the
// caller owns, then forwards live updates for those instances plus any
// instance started later in the same session - back-fill always precedes
// the first live update.
func (s *session) handleSubscribe(env wire.Envelope) {
	instances, err := s.srv.store.GetActiveUserQuestInstances(s.address)
	if err != nil {
		s.sendError(env.Port, env.RequestID, err)
		return
	}

	merged := make(chan wire.UserUpdate, 64)
	var mu sync.Mutex
	var cancels []func()
	watch := func(id string) {
		updates, cancel, err := s.srv.channel.Subscribe(s.ctx, id)
		if err != nil {
			s.srv.logger.Warn("rpcsession: subscribe failed", "id", id, "error", err)
			return
		}
		mu.Lock()
		cancels = append(cancels, cancel)
		mu.Unlock()
		go forward(s.ctx, updates, merged)
	}

	watch(s.address) // carries NewQuestStarted notifications for this caller
	for _, inst := range instances {
		watch(inst.ID)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			mu.Lock()
			for _, cancel := range cancels {
				cancel()
			}
			mu.Unlock()
		}()

		for _, inst := range instances {
			if payload, ok := s.backfillPayload(inst); ok {
				s.sendResponse(env.Port, env.RequestID, payload)
			}
		}

		for {
			select {
			case <-s.ctx.Done():
				return
			case update := <-merged:
				if update.Kind == wire.UserUpdateNewQuestStarted {
					watch(update.NewQuestStarted.ID)
				}
				payload, err := wire.MarshalUserUpdate(update)
				if err != nil {
					s.srv.logger.Warn("rpcsession: encode update failed", "error", err)
					continue
				}
				s.sendResponse(env.Port, env.RequestID, payload)
			}
		}
	}()
}

func (s *session) backfillPayload(inst questdef.QuestInstance) ([]byte, bool) {
	q, err := s.srv.store.GetQuest(inst.QuestID)
	if err != nil {
		return nil, false
	}
	events, err := s.srv.store.GetEvents(inst.ID)
	if err != nil {
		return nil, false
	}
	actions := make([]questdef.Action, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	state := queststate.GetState(questgraph.New(q.Definition), actions)
	payload, err := wire.MarshalUserUpdate(wire.UserUpdate{
		Kind: wire.UserUpdateQuestStateUpdate,
		QuestStateUpdate: wire.QuestStateUpdate{
			InstanceID: inst.ID,
			QuestState: state,
		},
	})
	if err != nil {
		return nil, false
	}
	return payload, true
}

func forward(ctx context.Context, in <-chan wire.UserUpdate, out chan<- wire.UserUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}
}
