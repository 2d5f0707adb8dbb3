// Package queststate folds a quest instance's event log over its graph to
// produce a deterministic, derived QuestState. State is never persisted;
// only the event log is — this package is the single source of truth for
// "what does this instance's progress look like right now".
package queststate

import (
	"strings"

	"github.com/lirancohen/questengine/internal/questdef"
	"github.com/lirancohen/questengine/internal/questgraph"
)

// StepContent is the progress of one currently-active step: the tasks
// still outstanding and the tasks already completed.
type StepContent struct {
	ToDos          []questdef.Task `json:"to_dos"`
	TasksCompleted []questdef.Task `json:"tasks_completed"`
}

// State is the derived view of a quest instance's progress.
type State struct {
	CurrentSteps   map[string]StepContent `json:"current_steps"`
	StepsLeft      uint32                 `json:"steps_left"`
	RequiredSteps  []string               `json:"required_steps"`
	StepsCompleted []string               `json:"steps_completed"`
}

// IsCompleted reports whether every required step (the graph's
// required-for-end set) has been completed.
func (s State) IsCompleted() bool {
	completed := make(map[string]bool, len(s.StepsCompleted))
	for _, id := range s.StepsCompleted {
		completed[id] = true
	}
	for _, req := range s.RequiredSteps {
		if !completed[req] {
			return false
		}
	}
	return true
}

// Equal reports whether two states represent the same progress. Used by
// the event processor to detect an irrelevant event (apply_event(s, e) ==
// s) without writing anything to the store.
func (s State) Equal(other State) bool {
	if s.StepsLeft != other.StepsLeft {
		return false
	}
	if !stringSliceEqual(s.RequiredSteps, other.RequiredSteps) {
		return false
	}
	if !stringSliceEqual(s.StepsCompleted, other.StepsCompleted) {
		return false
	}
	if len(s.CurrentSteps) != len(other.CurrentSteps) {
		return false
	}
	for id, content := range s.CurrentSteps {
		oc, ok := other.CurrentSteps[id]
		if !ok {
			return false
		}
		if !stepContentEqual(content, oc) {
			return false
		}
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stepContentEqual(a, b StepContent) bool {
	if len(a.ToDos) != len(b.ToDos) || len(a.TasksCompleted) != len(b.TasksCompleted) {
		return false
	}
	for i := range a.ToDos {
		if a.ToDos[i].ID != b.ToDos[i].ID || len(a.ToDos[i].ActionItems) != len(b.ToDos[i].ActionItems) {
			return false
		}
	}
	for i := range a.TasksCompleted {
		if a.TasksCompleted[i].ID != b.TasksCompleted[i].ID {
			return false
		}
	}
	return true
}

// Initial returns the starting state for a quest's graph: every direct
// successor of `_START_` (every source step) is current, with its full task list
// outstanding; required steps are the graph's required-for-end set;
// steps_left is the graph's total step count.
func Initial(g *questgraph.Graph) State {
	current := make(map[string]StepContent)
	for _, stepID := range g.Next(questdef.StartStepID) {
		current[stepID] = StepContent{
			ToDos: cloneTasks(g.TasksForStep(stepID)),
		}
	}
	return State{
		CurrentSteps:   current,
		StepsLeft:      uint32(g.TotalSteps()),
		RequiredSteps:  append([]string(nil), g.RequiredForEnd()...),
		StepsCompleted: nil,
	}
}

// ApplyEvent folds one event into a state, returning the resulting state.
// The input state is never mutated.
//
// Per event, at most one matching action is consumed per task; multiple
// tasks within the same step may each consume a match independently. A
// step's successors become current only once the step itself completes,
// and only for the *next* event — this single apply does not cascade
// into a just-inserted successor's tasks.
func ApplyEvent(g *questgraph.Graph, state State, event questdef.Action) State {
	next := State{
		CurrentSteps:   make(map[string]StepContent, len(state.CurrentSteps)),
		StepsLeft:      state.StepsLeft,
		RequiredSteps:  state.RequiredSteps,
		StepsCompleted: append([]string(nil), state.StepsCompleted...),
	}
	for id, content := range state.CurrentSteps {
		next.CurrentSteps[id] = content
	}

	for stepID, content := range state.CurrentSteps {
		newToDos := make([]questdef.Task, 0, len(content.ToDos))
		newCompleted := append([]questdef.Task(nil), content.TasksCompleted...)

		for _, task := range content.ToDos {
			idx := firstMatchingActionIndex(task.ActionItems, event)
			if idx < 0 {
				newToDos = append(newToDos, task)
				continue
			}
			remaining := make([]questdef.Action, 0, len(task.ActionItems)-1)
			remaining = append(remaining, task.ActionItems[:idx]...)
			remaining = append(remaining, task.ActionItems[idx+1:]...)
			if len(remaining) == 0 {
				newCompleted = append(newCompleted, questdef.Task{ID: task.ID, Description: task.Description})
			} else {
				newToDos = append(newToDos, questdef.Task{ID: task.ID, Description: task.Description, ActionItems: remaining})
			}
		}

		if len(newToDos) == 0 {
			delete(next.CurrentSteps, stepID)
			next.StepsLeft--
			next.StepsCompleted = append(next.StepsCompleted, stepID)

			for _, succ := range g.Next(stepID) {
				if succ == questdef.EndStepID {
					continue
				}
				next.CurrentSteps[succ] = StepContent{ToDos: cloneTasks(g.TasksForStep(succ))}
			}
		} else {
			next.CurrentSteps[stepID] = StepContent{ToDos: newToDos, TasksCompleted: newCompleted}
		}
	}

	return next
}

// GetState replays a full event log over a quest's graph from the initial
// state. Deterministic and pure: the evaluator takes no other input.
func GetState(g *questgraph.Graph, events []questdef.Action) State {
	state := Initial(g)
	for _, e := range events {
		state = ApplyEvent(g, state, e)
	}
	return state
}

// firstMatchingActionIndex finds the first action in items matching the
// event, per the case-insensitive type/parameter matching rule, or -1.
func firstMatchingActionIndex(items []questdef.Action, event questdef.Action) int {
	for i, a := range items {
		if matchesAction(a, event) {
			return i
		}
	}
	return -1
}

// matchesAction reports whether a definition action matches an incoming
// event action: case-insensitive on Type, and the two parameter maps must
// have equal key sets with each value matching case-insensitively.
func matchesAction(defined, event questdef.Action) bool {
	if !strings.EqualFold(defined.Type, event.Type) {
		return false
	}
	if len(defined.Parameters) != len(event.Parameters) {
		return false
	}
	eventParams := make(map[string]string, len(event.Parameters))
	for k, v := range event.Parameters {
		eventParams[strings.ToLower(k)] = v
	}
	for k, v := range defined.Parameters {
		ev, ok := eventParams[strings.ToLower(k)]
		if !ok || !strings.EqualFold(v, ev) {
			return false
		}
	}
	return true
}

func cloneTasks(tasks []questdef.Task) []questdef.Task {
	out := make([]questdef.Task, len(tasks))
	for i, t := range tasks {
		items := make([]questdef.Action, len(t.ActionItems))
		copy(items, t.ActionItems)
		out[i] = questdef.Task{ID: t.ID, Description: t.Description, ActionItems: items}
	}
	return out
}
