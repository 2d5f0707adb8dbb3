package rpcsession

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/lirancohen/questengine/internal/wire"
)

// session is one established, authenticated WebSocket connection. Reads run
// on a single goroutine that fans each frame out to its own dispatch
// goroutine, so a slow service call or a long-lived Subscribe stream can
// never block handling of other requests on the same connection. Writes are
// serialized through a single writer goroutine fed by the out channel,
// since the underlying connection does not support concurrent writers.
type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	conn    *websocket.Conn
	address string
	srv     *Server
	out     chan wire.Envelope
	wg      sync.WaitGroup
}

func newSession(ctx context.Context, conn *websocket.Conn, address string, srv *Server) *session {
	sctx, cancel := context.WithCancel(ctx)
	return &session{
		ctx:     sctx,
		cancel:  cancel,
		conn:    conn,
		address: address,
		srv:     srv,
		out:     make(chan wire.Envelope, 32),
	}
}

func (s *session) run() {
	s.wg.Add(2)
	go s.writeLoop()
	go s.pingLoop()

	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			break
		}
		if typ != websocket.MessageBinary {
			continue
		}
		env, err := wire.UnmarshalEnvelope(data)
		if err != nil {
			s.srv.logger.Warn("rpcsession: malformed envelope", "address", s.address, "error", err)
			continue
		}
		s.wg.Add(1)
		go func(env wire.Envelope) {
			defer s.wg.Done()
			s.dispatch(env)
		}(env)
	}

	s.cancel()
	s.wg.Wait()
}

func (s *session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.out:
			data := wire.MarshalEnvelope(env)
			wctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageBinary, data)
			cancel()
			if err != nil {
				s.cancel()
				return
			}
		}
	}
}

func (s *session) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.cancel()
				return
			}
		}
	}
}

// send enqueues env for delivery, dropping it silently if the session has
// already ended.
func (s *session) send(env wire.Envelope) {
	select {
	case s.out <- env:
	case <-s.ctx.Done():
	}
}

func (s *session) sendResponse(port string, requestID uint32, payload []byte) {
	s.send(wire.Envelope{Port: port, RequestID: requestID, Payload: payload})
}

func (s *session) sendError(port string, requestID uint32, err error) {
	s.send(wire.Envelope{Port: port, RequestID: requestID, Error: err.Error()})
}

func (s *session) dispatch(env wire.Envelope) {
	switch env.Port {
	case "start_quest":
		s.handleStartQuest(env)
	case "abort_quest":
		s.handleAbortQuest(env)
	case "send_event":
		s.handleSendEvent(env)
	case "get_all_quests":
		s.handleGetAllQuests(env)
	case "get_quest_definition":
		s.handleGetQuestDefinition(env)
	case "subscribe":
		s.handleSubscribe(env)
	default:
		s.send(wire.Envelope{Port: env.Port, RequestID: env.RequestID, Error: "unknown port"})
	}
}
