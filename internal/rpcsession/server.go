// Package rpcsession is the engine's RPC Session Layer (C8): a multiplexed
// WebSocket transport that, after a signature-chain handshake, carries
// binary protobuf-framed requests and a server-streamed feed of state
// updates for the caller's own quest instances.
package rpcsession

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/lirancohen/questengine/internal/auth"
	"github.com/lirancohen/questengine/internal/eventqueue"
	"github.com/lirancohen/questengine/internal/store"
	"github.com/lirancohen/questengine/internal/updatechannel"
)

const (
	handshakeTimeout = 30 * time.Second
	pingInterval     = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Server accepts WebSocket connections, performs the signature-chain
// handshake, and runs the multiplexed session loop for each one.
type Server struct {
	store   *store.Store
	queue   *eventqueue.Queue
	channel updatechannel.Channel
	logger  *slog.Logger
}

// NewServer builds a Server wired to its store, event queue, and update
// channel.
func NewServer(st *store.Store, q *eventqueue.Queue, ch updatechannel.Channel, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, queue: q, channel: ch, logger: logger}
}

// ServeHTTP upgrades the request to a WebSocket and blocks for the
// session's lifetime.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		srv.logger.Warn("rpcsession: accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	address, err := srv.handshake(r.Context(), conn)
	if err != nil {
		srv.logger.Warn("rpcsession: handshake failed", "error", err)
		conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return
	}
	srv.logger.Info("rpcsession: session established", "address", address)

	sess := newSession(r.Context(), conn, address, srv)
	sess.run()
}

// handshake sends a text challenge, reads the caller's signed-chain reply
// within handshakeTimeout, and verifies it, returning the recovered
// address.
func (srv *Server) handshake(ctx context.Context, conn *websocket.Conn) (string, error) {
	challenge, err := newChallenge()
	if err != nil {
		return "", err
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(challenge)); err != nil {
		return "", err
	}

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	typ, data, err := conn.Read(hctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("rpcsession: expected a text handshake reply")
	}

	var chain auth.Chain
	if err := json.Unmarshal(data, &chain); err != nil {
		return "", fmt.Errorf("rpcsession: malformed auth chain: %w", err)
	}
	return auth.VerifyChain(chain, challenge)
}

func newChallenge() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "signature_challenge_" + hex.EncodeToString(raw), nil
}
