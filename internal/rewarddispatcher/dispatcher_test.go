package rewarddispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/store"
)

// createTestQuest stores a minimal valid quest, since reward hooks may only
// be attached to a quest that exists.
func createTestQuest(t *testing.T, st *store.Store) string {
	t.Helper()
	task := func(id string) []questdef.Task {
		return []questdef.Task{{ID: id, ActionItems: []questdef.Action{{Type: questdef.ActionJump}}}}
	}
	questID, err := st.CreateQuest(questdef.Quest{Name: "q", Definition: questdef.Definition{
		Steps:       []questdef.Step{{ID: "A", Tasks: task("a")}, {ID: "B", Tasks: task("b")}},
		Connections: []questdef.Connection{{StepFrom: "A", StepTo: "B"}},
	}}, "0xcreator")
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	return questID
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDispatchGrantsOnOKResponse(t *testing.T) {
	var gotURL string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	st := openTestStore(t)
	questID := createTestQuest(t, st)
	if err := st.AddRewardHookToQuest(questID, store.RewardHook{
		WebhookURL:  server.URL + "/grant/{quest_id}",
		RequestBody: map[string]string{"user": "{user_address}"},
	}); err != nil {
		t.Fatalf("add reward hook: %v", err)
	}

	d := New(st, server.Client(), nil)
	d.Dispatch(context.Background(), questID, "22222222-2222-2222-2222-222222222222", "0xplayer")

	if gotURL != "/grant/"+questID {
		t.Fatalf("expected templated URL path '/grant/%s', got %q", questID, gotURL)
	}
	if gotBody["user"] != "0xplayer" {
		t.Fatalf("expected templated body user=0xplayer, got %+v", gotBody)
	}
}

func TestDispatchNoHookIsNoOp(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	st := openTestStore(t)
	d := New(st, server.Client(), nil)
	d.Dispatch(context.Background(), "33333333-3333-3333-3333-333333333333", "inst-1", "0xplayer")

	if called {
		t.Fatal("expected no webhook call when no reward hook is configured")
	}
}

func TestDispatchNonJSONResponseIsDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	st := openTestStore(t)
	questID := createTestQuest(t, st)
	if err := st.AddRewardHookToQuest(questID, store.RewardHook{WebhookURL: server.URL}); err != nil {
		t.Fatalf("add reward hook: %v", err)
	}

	d := New(st, server.Client(), nil)
	// Dispatch must not panic and must simply drop a non-JSON response.
	d.Dispatch(context.Background(), questID, "22222222-2222-2222-2222-222222222222", "0xplayer")
}
