package questdef

import (
	"errors"
	"testing"
)

func singleTaskStep(id string) Step {
	return Step{
		ID: id,
		Tasks: []Task{
			{ID: id + "-task", ActionItems: []Action{
				{Type: ActionLocation, Parameters: map[string]string{"x": "1", "y": "2"}},
			}},
		},
	}
}

func linearDefinition() Definition {
	return Definition{
		Steps: []Step{singleTaskStep("A"), singleTaskStep("B"), singleTaskStep("C"), singleTaskStep("D")},
		Connections: []Connection{
			{StepFrom: "A", StepTo: "B"},
			{StepFrom: "B", StepTo: "C"},
			{StepFrom: "C", StepTo: "D"},
		},
	}
}

func TestValidateAcceptsValidDefinition(t *testing.T) {
	if err := linearDefinition().Validate(); err != nil {
		t.Fatalf("expected valid definition, got %v", err)
	}
}

func TestValidateRejectsNoSteps(t *testing.T) {
	d := Definition{Connections: []Connection{{StepFrom: "A", StepTo: "B"}}}
	if err := d.Validate(); !errors.Is(err, ErrNoSteps) {
		t.Fatalf("expected ErrNoSteps, got %v", err)
	}
}

func TestValidateRejectsNoConnections(t *testing.T) {
	d := Definition{Steps: []Step{singleTaskStep("A")}}
	if err := d.Validate(); !errors.Is(err, ErrNoConnections) {
		t.Fatalf("expected ErrNoConnections, got %v", err)
	}
}

func TestValidateRejectsUndefinedStepInConnection(t *testing.T) {
	d := Definition{
		Steps:       []Step{singleTaskStep("A")},
		Connections: []Connection{{StepFrom: "A", StepTo: "B"}},
	}
	if err := d.Validate(); !errors.Is(err, ErrUndefinedStep) {
		t.Fatalf("expected ErrUndefinedStep, got %v", err)
	}
}

func TestValidateRejectsUnconnectedStep(t *testing.T) {
	d := Definition{
		Steps:       []Step{singleTaskStep("A"), singleTaskStep("B"), singleTaskStep("orphan")},
		Connections: []Connection{{StepFrom: "A", StepTo: "B"}},
	}
	if err := d.Validate(); !errors.Is(err, ErrUnconnectedStep) {
		t.Fatalf("expected ErrUnconnectedStep, got %v", err)
	}
}

func TestValidateRejectsDuplicateStepID(t *testing.T) {
	d := Definition{
		Steps:       []Step{singleTaskStep("A"), singleTaskStep("A")},
		Connections: []Connection{{StepFrom: "A", StepTo: "A"}},
	}
	if err := d.Validate(); !errors.Is(err, ErrDuplicateStepID) {
		t.Fatalf("expected ErrDuplicateStepID, got %v", err)
	}
}

func TestValidateRejectsDuplicateTaskID(t *testing.T) {
	a := singleTaskStep("A")
	b := Step{ID: "B", Tasks: []Task{{ID: "A-task"}}}
	d := Definition{
		Steps:       []Step{a, b},
		Connections: []Connection{{StepFrom: "A", StepTo: "B"}},
	}
	if err := d.Validate(); !errors.Is(err, ErrDuplicateTaskID) {
		t.Fatalf("expected ErrDuplicateTaskID, got %v", err)
	}
}

func TestValidateRejectsEmptyTaskList(t *testing.T) {
	d := Definition{
		Steps:       []Step{{ID: "A"}, singleTaskStep("B")},
		Connections: []Connection{{StepFrom: "A", StepTo: "B"}},
	}
	if err := d.Validate(); !errors.Is(err, ErrEmptyTaskList) {
		t.Fatalf("expected ErrEmptyTaskList, got %v", err)
	}
}

func TestValidateRejectsNoSourceOrSink(t *testing.T) {
	// A cycle has no source and no sink.
	d := Definition{
		Steps:       []Step{singleTaskStep("A"), singleTaskStep("B")},
		Connections: []Connection{{StepFrom: "A", StepTo: "B"}, {StepFrom: "B", StepTo: "A"}},
	}
	err := d.Validate()
	if !errors.Is(err, ErrNoSourceStep) && !errors.Is(err, ErrNoSinkStep) {
		t.Fatalf("expected ErrNoSourceStep or ErrNoSinkStep, got %v", err)
	}
}

func TestValidateRejectsReservedStepID(t *testing.T) {
	d := Definition{
		Steps:       []Step{singleTaskStep(StartStepID), singleTaskStep("B")},
		Connections: []Connection{{StepFrom: StartStepID, StepTo: "B"}},
	}
	if err := d.Validate(); !errors.Is(err, ErrReservedStepID) {
		t.Fatalf("expected ErrReservedStepID, got %v", err)
	}
}
