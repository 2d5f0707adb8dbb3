package questgraph

import (
	"reflect"
	"sort"
	"testing"

	"github.com/lirancohen/questengine/internal/questdef"
)

func step(id string) questdef.Step {
	return questdef.Step{ID: id, Tasks: []questdef.Task{{ID: id + "-t"}}}
}

func TestGraphLinear(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{step("A"), step("B"), step("C"), step("D")},
		Connections: []questdef.Connection{
			{StepFrom: "A", StepTo: "B"},
			{StepFrom: "B", StepTo: "C"},
			{StepFrom: "C", StepTo: "D"},
		},
	}
	g := New(def)

	if g.TotalSteps() != 4 {
		t.Fatalf("expected 4 total steps, got %d", g.TotalSteps())
	}
	if got := g.Next(questdef.StartStepID); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("expected _START_ -> [A], got %v", got)
	}
	if got := g.Next("D"); !reflect.DeepEqual(got, []string{questdef.EndStepID}) {
		t.Fatalf("expected D -> [_END_], got %v", got)
	}
	if got := g.RequiredForEnd(); !reflect.DeepEqual(got, []string{"D"}) {
		t.Fatalf("expected required_for_end = [D], got %v", got)
	}
}

func TestGraphBranching(t *testing.T) {
	def := questdef.Definition{
		Steps: []questdef.Step{step("A1"), step("B"), step("C"), step("A2"), step("D")},
		Connections: []questdef.Connection{
			{StepFrom: "A1", StepTo: "B"},
			{StepFrom: "B", StepTo: "C"},
			{StepFrom: "A2", StepTo: "D"},
		},
	}
	g := New(def)

	sources := g.Next(questdef.StartStepID)
	sort.Strings(sources)
	if !reflect.DeepEqual(sources, []string{"A1", "A2"}) {
		t.Fatalf("expected sources [A1 A2], got %v", sources)
	}

	required := g.RequiredForEnd()
	sort.Strings(required)
	if !reflect.DeepEqual(required, []string{"C", "D"}) {
		t.Fatalf("expected required_for_end [C D], got %v", required)
	}
}

func TestTasksForStepPrecomputed(t *testing.T) {
	def := questdef.Definition{
		Steps:       []questdef.Step{step("A"), step("B")},
		Connections: []questdef.Connection{{StepFrom: "A", StepTo: "B"}},
	}
	g := New(def)
	tasks := g.TasksForStep("A")
	if len(tasks) != 1 || tasks[0].ID != "A-t" {
		t.Fatalf("expected task A-t, got %v", tasks)
	}
}
