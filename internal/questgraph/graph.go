// Package questgraph builds the DAG of a quest's step definition, adding
// synthetic start/end sentinel nodes, and answers the adjacency and
// reachability queries the state evaluator needs.
package questgraph

import "github.com/lirancohen/questengine/internal/questdef"

// Graph is the DAG of a single quest's definition, including the
// synthetic `_START_` and `_END_` sentinel nodes. It holds no reference to
// the originating Quest and is cheap to rebuild per event-processing pass.
type Graph struct {
	nodes      []string
	index      map[string]int
	next       map[string][]string
	prev       map[string][]string
	tasksByStep map[string][]questdef.Task
	totalSteps int
}

// New constructs a Graph from a validated quest definition. Edges run from
// `_START_` to every source step (no incoming connection) and from every
// sink step (no outgoing connection) to `_END_`, in addition to the
// definition's own connections.
func New(def questdef.Definition) *Graph {
	g := &Graph{
		index:       make(map[string]int),
		next:        make(map[string][]string),
		prev:        make(map[string][]string),
		tasksByStep: make(map[string][]questdef.Task),
	}

	addNode := func(id string) {
		if _, ok := g.index[id]; ok {
			return
		}
		g.index[id] = len(g.nodes)
		g.nodes = append(g.nodes, id)
	}

	addNode(questdef.StartStepID)
	for _, s := range def.Steps {
		addNode(s.ID)
		g.tasksByStep[s.ID] = s.Tasks
	}
	addNode(questdef.EndStepID)
	g.totalSteps = len(def.Steps)

	addEdge := func(from, to string) {
		g.next[from] = append(g.next[from], to)
		g.prev[to] = append(g.prev[to], from)
	}

	hasIncoming := make(map[string]bool)
	hasOutgoing := make(map[string]bool)
	for _, c := range def.Connections {
		addEdge(c.StepFrom, c.StepTo)
		hasOutgoing[c.StepFrom] = true
		hasIncoming[c.StepTo] = true
	}

	for _, s := range def.Steps {
		if !hasIncoming[s.ID] {
			addEdge(questdef.StartStepID, s.ID)
		}
		if !hasOutgoing[s.ID] {
			addEdge(s.ID, questdef.EndStepID)
		}
	}

	return g
}

// Next returns the out-neighbours of a node (empty if none or the node is
// unknown).
func (g *Graph) Next(nodeID string) []string {
	return g.next[nodeID]
}

// Prev returns the in-neighbours of a node (empty if none or the node is
// unknown).
func (g *Graph) Prev(nodeID string) []string {
	return g.prev[nodeID]
}

// RequiredForEnd returns the steps that must be completed for the quest to
// be considered complete: the in-neighbours of `_END_`.
func (g *Graph) RequiredForEnd() []string {
	return g.Prev(questdef.EndStepID)
}

// TotalSteps returns the number of real (non-sentinel) steps in the quest.
func (g *Graph) TotalSteps() int {
	return g.totalSteps
}

// TasksForStep returns the precomputed task list for a step id, avoiding a
// re-walk of the definition on every event.
func (g *Graph) TasksForStep(stepID string) []questdef.Task {
	return g.tasksByStep[stepID]
}
