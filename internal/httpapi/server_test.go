package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/lirancohen/questengine/internal/auth"
	"github.com/lirancohen/questengine/internal/eventqueue"
	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/store"
	"github.com/lirancohen/questengine/internal/updatechannel"
	"github.com/lirancohen/questengine/internal/wire"
)

func newTestServer(t *testing.T) (*Server, *auth.TokenConfig) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tc := &auth.TokenConfig{Issuer: "test", ExpiryHours: 1, SigningKey: priv, VerifyingKey: pub}

	s := NewServer(Config{Store: st, TokenConfig: tc, MetricsBearerToken: "secret"})
	return s, tc
}

func newTestServerWithChannel(t *testing.T) (*Server, *auth.TokenConfig, *updatechannel.MemoryChannel) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tc := &auth.TokenConfig{Issuer: "test", ExpiryHours: 1, SigningKey: priv, VerifyingKey: pub}
	ch := updatechannel.NewMemoryChannel()

	s := NewServer(Config{Store: st, Channel: ch, TokenConfig: tc, MetricsBearerToken: "secret"})
	return s, tc, ch
}

func bearerFor(t *testing.T, tc *auth.TokenConfig, address string) string {
	t.Helper()
	tok, err := auth.GenerateToken(address, tc)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func linearQuestDefinition(name string) questdef.Quest {
	return questdef.Quest{
		Name: name,
		Definition: questdef.Definition{
			Steps: []questdef.Step{
				{ID: "A", Tasks: []questdef.Task{{ID: name + "-A", ActionItems: []questdef.Action{
					{Type: questdef.ActionLocation, Parameters: map[string]string{"x": "10", "y": "20"}},
				}}}},
				{ID: "B", Tasks: []questdef.Task{{ID: name + "-B", ActionItems: []questdef.Action{
					{Type: questdef.ActionLocation, Parameters: map[string]string{"x": "13", "y": "20"}},
				}}}},
			},
			Connections: []questdef.Connection{{StepFrom: "A", StepTo: "B"}},
		},
	}
}

func TestHealthLive(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsRequiresBearerToken(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer_token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics?bearer_token=secret", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct bearer_token, got %d", rec.Code)
	}
}

func TestCreateAndGetQuestHidesDefinitionFromNonCreator(t *testing.T) {
	s, tc := newTestServer(t)
	creatorToken := bearerFor(t, tc, "0xcreator")

	body, _ := json.Marshal(linearQuestDefinition("q"))
	req := httptest.NewRequest(http.MethodPost, "/api/quests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	id := created["id"]

	// A newly created quest is already active; GET /api/quests/:id serves
	// it whether or not it is active.
	req = httptest.NewRequest(http.MethodGet, "/api/quests/"+id, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var anon questdef.Quest
	if err := json.Unmarshal(rec.Body.Bytes(), &anon); err != nil {
		t.Fatalf("decode quest: %v", err)
	}
	if len(anon.Definition.Steps) != 0 {
		t.Fatalf("expected definition hidden from non-creator, got %+v", anon.Definition)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/quests/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var asCreator questdef.Quest
	if err := json.Unmarshal(rec.Body.Bytes(), &asCreator); err != nil {
		t.Fatalf("decode quest: %v", err)
	}
	if len(asCreator.Definition.Steps) == 0 {
		t.Fatalf("expected definition visible to creator")
	}
}

func TestUpdateQuestRejectsNonCreator(t *testing.T) {
	s, tc := newTestServer(t)
	creatorToken := bearerFor(t, tc, "0xcreator")
	otherToken := bearerFor(t, tc, "0xother")

	body, _ := json.Marshal(linearQuestDefinition("q"))
	req := httptest.NewRequest(http.MethodPost, "/api/quests", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var created map[string]string
	json.Unmarshal(rec.Body.Bytes(), &created)
	id := created["id"]

	req = httptest.NewRequest(http.MethodPut, "/api/quests/"+id, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator update, got %d", rec.Code)
	}
}

func TestPutEventEnqueuesWithoutAuth(t *testing.T) {
	addr := os.Getenv("QUESTENGINE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QUESTENGINE_TEST_REDIS_ADDR not set; skipping live Redis test")
	}
	s, _ := newTestServer(t)
	q, err := eventqueue.New(addr, "test:events:queue:"+t.Name())
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer q.Close()
	s.queue = q

	event := questdef.Event{ID: "evt-1", Address: "0xplayer", Action: questdef.Action{Type: questdef.ActionJump}}
	body, _ := json.Marshal(event)
	req := httptest.NewRequest(http.MethodPut, "/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResetInstancePublishesInitialState(t *testing.T) {
	s, tc, ch := newTestServerWithChannel(t)
	creatorToken := bearerFor(t, tc, "0xcreator")

	id, err := s.store.CreateQuest(linearQuestDefinition("q"), "0xcreator")
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	if active, err := s.store.IsActiveQuest(id); err != nil || !active {
		t.Fatalf("expected newly created quest to be active: active=%v err=%v", active, err)
	}
	instanceID, err := s.store.StartQuest(id, "0xplayer")
	if err != nil {
		t.Fatalf("start quest: %v", err)
	}

	updates, cancel, err := ch.Subscribe(context.Background(), instanceID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	req := httptest.NewRequest(http.MethodPatch, "/api/instances/"+instanceID+"/reset", nil)
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case update := <-updates:
		if update.Kind != wire.UserUpdateQuestStateUpdate {
			t.Fatalf("expected QuestStateUpdate, got %v", update.Kind)
		}
		if update.QuestStateUpdate.InstanceID != instanceID {
			t.Fatalf("expected instance id %q, got %q", instanceID, update.QuestStateUpdate.InstanceID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reset update")
	}
}
