package queststate

import (
	"testing"

	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/questgraph"
)

func locationStep(id string, x, y string) questdef.Step {
	return questdef.Step{
		ID: id,
		Tasks: []questdef.Task{
			{ID: id + "-task", ActionItems: []questdef.Action{
				{Type: questdef.ActionLocation, Parameters: map[string]string{"x": x, "y": y}},
			}},
		},
	}
}

func locationEvent(x, y string) questdef.Action {
	return questdef.Action{Type: questdef.ActionLocation, Parameters: map[string]string{"x": x, "y": y}}
}

// Scenario 1: linear quest, full completion.
func TestLinearQuestFullCompletion(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{
			locationStep("A", "10", "20"),
			locationStep("B", "13", "20"),
			locationStep("C", "10", "24"),
			locationStep("D", "40", "20"),
		},
		Connections: []questdef.Connection{
			{StepFrom: "A", StepTo: "B"},
			{StepFrom: "B", StepTo: "C"},
			{StepFrom: "C", StepTo: "D"},
		},
	}
	g := questgraph.New(def)
	state := Initial(g)

	state = ApplyEvent(g, state, locationEvent("10", "20"))
	if _, ok := state.CurrentSteps["B"]; !ok {
		t.Fatalf("expected current_steps={B}, got %v", state.CurrentSteps)
	}
	if len(state.StepsCompleted) != 1 || state.StepsCompleted[0] != "A" {
		t.Fatalf("expected steps_completed=[A], got %v", state.StepsCompleted)
	}
	if state.StepsLeft != 3 {
		t.Fatalf("expected steps_left=3, got %d", state.StepsLeft)
	}

	state = ApplyEvent(g, state, locationEvent("13", "20"))
	state = ApplyEvent(g, state, locationEvent("10", "24"))
	state = ApplyEvent(g, state, locationEvent("40", "20"))

	if len(state.CurrentSteps) != 0 {
		t.Fatalf("expected current_steps={}, got %v", state.CurrentSteps)
	}
	if state.StepsLeft != 0 {
		t.Fatalf("expected steps_left=0, got %d", state.StepsLeft)
	}
	if !state.IsCompleted() {
		t.Fatal("expected quest to be completed")
	}
}

// Scenario 2: branching quest.
func TestBranchingQuest(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{
			locationStep("A1", "1", "1"),
			locationStep("B", "2", "2"),
			locationStep("C", "3", "3"),
			locationStep("A2", "4", "4"),
			locationStep("D", "5", "5"),
		},
		Connections: []questdef.Connection{
			{StepFrom: "A1", StepTo: "B"},
			{StepFrom: "B", StepTo: "C"},
			{StepFrom: "A2", StepTo: "D"},
		},
	}
	g := questgraph.New(def)
	state := Initial(g)

	if len(state.RequiredSteps) != 2 {
		t.Fatalf("expected 2 required steps, got %v", state.RequiredSteps)
	}

	state = ApplyEvent(g, state, locationEvent("1", "1")) // A1
	if _, ok := state.CurrentSteps["B"]; !ok {
		t.Fatalf("expected B current after A1, got %v", state.CurrentSteps)
	}
	if _, ok := state.CurrentSteps["A2"]; !ok {
		t.Fatalf("expected A2 still current after A1, got %v", state.CurrentSteps)
	}

	state = ApplyEvent(g, state, locationEvent("2", "2")) // B
	state = ApplyEvent(g, state, locationEvent("3", "3")) // C
	state = ApplyEvent(g, state, locationEvent("4", "4")) // A2
	state = ApplyEvent(g, state, locationEvent("5", "5")) // D

	if !state.IsCompleted() {
		t.Fatal("expected quest to be completed")
	}
	expectedOrder := []string{"A1", "B", "C", "A2", "D"}
	if len(state.StepsCompleted) != len(expectedOrder) {
		t.Fatalf("expected steps_completed %v, got %v", expectedOrder, state.StepsCompleted)
	}
}

// Scenario 3: irrelevant event leaves state unchanged.
func TestIrrelevantEventIsNoOp(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{
			locationStep("A", "10", "20"),
			locationStep("B", "13", "20"),
		},
		Connections: []questdef.Connection{{StepFrom: "A", StepTo: "B"}},
	}
	g := questgraph.New(def)
	state := Initial(g)

	jumpEvent := questdef.Action{Type: questdef.ActionJump, Parameters: map[string]string{"x": "10", "y": "20"}}
	next := ApplyEvent(g, state, jumpEvent)

	if !state.Equal(next) {
		t.Fatalf("expected state unchanged for irrelevant event, got %v vs %v", state, next)
	}
}

// Scenario 4: case-insensitive matching.
func TestCaseInsensitiveMatching(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{
			{ID: "A", Tasks: []questdef.Task{{ID: "A-task", ActionItems: []questdef.Action{
				{Type: "EMOTE", Parameters: map[string]string{"x": "1", "y": "2", "id": "Wave"}},
			}}}},
			{ID: "B", Tasks: []questdef.Task{{ID: "B-task"}}},
		},
		Connections: []questdef.Connection{{StepFrom: "A", StepTo: "B"}},
	}
	g := questgraph.New(def)
	state := Initial(g)

	event := questdef.Action{Type: "emote", Parameters: map[string]string{"X": "1", "Y": "2", "ID": "wave"}}
	next := ApplyEvent(g, state, event)

	if state.Equal(next) {
		t.Fatal("expected case-insensitive match to advance the task")
	}
	if len(next.StepsCompleted) != 1 || next.StepsCompleted[0] != "A" {
		t.Fatalf("expected A completed, got %v", next.StepsCompleted)
	}
}

func TestStepsLeftInvariant(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{
			locationStep("A", "1", "1"),
			locationStep("B", "2", "2"),
			locationStep("C", "3", "3"),
		},
		Connections: []questdef.Connection{
			{StepFrom: "A", StepTo: "B"},
			{StepFrom: "B", StepTo: "C"},
		},
	}
	g := questgraph.New(def)
	state := Initial(g)

	for _, ev := range []questdef.Action{locationEvent("1", "1"), locationEvent("2", "2"), locationEvent("3", "3")} {
		state = ApplyEvent(g, state, ev)
		if int(state.StepsLeft) != g.TotalSteps()-len(state.StepsCompleted) {
			t.Fatalf("steps_left invariant violated: %d != %d - %d", state.StepsLeft, g.TotalSteps(), len(state.StepsCompleted))
		}
	}
}

func TestGetStateIsFoldOfApplyEvent(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{
			locationStep("A", "1", "1"),
			locationStep("B", "2", "2"),
		},
		Connections: []questdef.Connection{{StepFrom: "A", StepTo: "B"}},
	}
	g := questgraph.New(def)
	events := []questdef.Action{locationEvent("1", "1"), locationEvent("2", "2")}

	viaGetState := GetState(g, events)

	manual := Initial(g)
	for _, e := range events {
		manual = ApplyEvent(g, manual, e)
	}

	if !viaGetState.Equal(manual) {
		t.Fatalf("GetState diverged from manual fold: %v vs %v", viaGetState, manual)
	}
}
