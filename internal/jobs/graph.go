package jobs

import (
	"fmt"
	"sort"
	"strconv"
)

// TaskID addresses a node within one TaskGraph.
type TaskID uint32

// Conventional ids for the first and the terminal task of a job. The engine
// does not enforce them.
const (
	SpawnTaskID   TaskID = 0
	DespawnTaskID TaskID = 1000
)

// ParseTaskID parses an authored string key into a TaskID.
func ParseTaskID(s string) (TaskID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("task key %q is not a non-negative integer", s)
	}
	return TaskID(n), nil
}

// TaskNode is one task in a graph plus its optional explicit successor.
type TaskNode struct {
	ID   TaskID
	Next *TaskID
	Task Task
}

// TaskGraph holds a job's tasks and the cursor pointing at the active one.
type TaskGraph struct {
	Nodes   map[TaskID]*TaskNode
	Current TaskID
}

// NewTaskGraph creates an empty graph whose cursor starts at SpawnTaskID.
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{Nodes: make(map[TaskID]*TaskNode)}
}

// Next is a helper for authoring explicit successors.
func Next(id TaskID) *TaskID { return &id }

// First adds task under id 0.
func (g *TaskGraph) First(task Task, next *TaskID) {
	g.AddAt(SpawnTaskID, task, next)
}

// Then adds task under the id following the highest id in the graph.
func (g *TaskGraph) Then(task Task, next *TaskID) TaskID {
	id := g.nextIndex()
	g.AddAt(id, task, next)
	return id
}

// AddAt adds or replaces the node at id.
func (g *TaskGraph) AddAt(id TaskID, task Task, next *TaskID) {
	if g.Nodes == nil {
		g.Nodes = make(map[TaskID]*TaskNode)
	}
	g.Nodes[id] = &TaskNode{ID: id, Next: next, Task: task}
}

func (g *TaskGraph) nextIndex() TaskID {
	if len(g.Nodes) == 0 {
		return 0
	}
	var highest TaskID
	for id := range g.Nodes {
		if id > highest {
			highest = id
		}
	}
	return highest + 1
}

// Node returns the node at id.
func (g *TaskGraph) Node(id TaskID) (*TaskNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// CurrentNode returns the node under the cursor, or false if the cursor
// points at a missing id.
func (g *TaskGraph) CurrentNode() (*TaskNode, bool) {
	return g.Node(g.Current)
}

// ResolveNext returns the explicit successor of n, or n.ID+1.
func (g *TaskGraph) ResolveNext(n *TaskNode) TaskID {
	if n.Next != nil {
		return *n.Next
	}
	return n.ID + 1
}

// AdvanceCursor moves the cursor to the successor of the current node. It
// returns false when the current node or its successor is missing; the cursor
// only moves in the latter case.
func (g *TaskGraph) AdvanceCursor() (*TaskNode, bool) {
	cur, ok := g.CurrentNode()
	if !ok {
		return nil, false
	}
	g.Current = g.ResolveNext(cur)
	return g.CurrentNode()
}

// JumpCursor sets the cursor to id without validation.
func (g *TaskGraph) JumpCursor(id TaskID) (*TaskNode, bool) {
	g.Current = id
	return g.CurrentNode()
}

// IDs returns the node ids in ascending order.
func (g *TaskGraph) IDs() []TaskID {
	ids := make([]TaskID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone deep-copies the graph, including every task.
func (g *TaskGraph) Clone() *TaskGraph {
	c := &TaskGraph{
		Nodes:   make(map[TaskID]*TaskNode, len(g.Nodes)),
		Current: g.Current,
	}
	for id, n := range g.Nodes {
		cn := &TaskNode{ID: n.ID, Task: n.Task.Clone()}
		if n.Next != nil {
			next := *n.Next
			cn.Next = &next
		}
		c.Nodes[id] = cn
	}
	return c
}

// Validate checks the structural rules for an authored graph: the cursor
// exists, every node id matches its key, and every explicit reference
// (next, decision options, loop start) points at an existing node. Implicit
// +1 successors may be missing; that is how a graph ends.
func (g *TaskGraph) Validate() error {
	if len(g.Nodes) == 0 {
		return invalidf("graph has no tasks")
	}
	if _, ok := g.Nodes[g.Current]; !ok {
		return &JobError{Kind: ErrNodeNotFound, Task: g.Current, Msg: fmt.Sprintf("start task %d", g.Current)}
	}
	for _, id := range g.IDs() {
		n := g.Nodes[id]
		if n.ID != id {
			return invalidf("task %d stored under key %d", n.ID, id)
		}
		if n.Task == nil {
			return invalidf("task %d has no descriptor", id)
		}
		if n.Next != nil {
			if err := g.requireRef(id, "next", *n.Next); err != nil {
				return err
			}
		}
		switch t := n.Task.(type) {
		case *Decision:
			if err := g.requireRef(id, "opt1", t.Opt1); err != nil {
				return err
			}
			if err := g.requireRef(id, "opt2", t.Opt2); err != nil {
				return err
			}
		case *Loop:
			if err := g.requireRef(id, "start_id", t.StartID); err != nil {
				return err
			}
		case *RandomWait:
			if t.Min < 0 || t.Max < t.Min {
				return invalidf("task %d: random wait range [%v, %v] is invalid", id, t.Min, t.Max)
			}
		case *Wait:
			if err := t.Schedule.Parse(); err != nil {
				return invalidf("task %d: %v", id, err)
			}
		}
	}
	return nil
}

func (g *TaskGraph) requireRef(from TaskID, field string, to TaskID) error {
	if _, ok := g.Nodes[to]; ok {
		return nil
	}
	return &JobError{
		Kind: ErrNodeNotFound,
		Task: to,
		Msg:  fmt.Sprintf("task %d %s references missing task %d", from, field, to),
	}
}
