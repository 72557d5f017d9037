package planner

import (
	"fmt"
	"sort"
)

// DAG holds subtasks in plan order with an id index. Construction validates
// shape once; afterwards the graph is read-only.
type DAG struct {
	nodes []Subtask
	index map[string]int
	preds map[string][]string
}

// New validates the subtask set and builds the graph. Violations come back
// as plain errors except the size cap, which is a PlanningError so callers
// can degrade.
func New(subtasks []Subtask) (*DAG, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("planner: empty plan")
	}
	if len(subtasks) > MaxSubtasks {
		return nil, &PlanningError{
			Reason: ReasonTooManySubtasks,
			Detail: fmt.Sprintf("%d subtasks, cap is %d", len(subtasks), MaxSubtasks),
		}
	}

	valid := map[Role]bool{
		RoleSearch: true, RoleExtract: true, RoleMath: true,
		RoleVerify: true, RoleSynthesize: true,
	}
	index := make(map[string]int, len(subtasks))
	for i, st := range subtasks {
		if st.ID == "" {
			return nil, fmt.Errorf("planner: subtask %d has empty id", i)
		}
		if _, dup := index[st.ID]; dup {
			return nil, fmt.Errorf("planner: duplicate subtask id %s", st.ID)
		}
		if !valid[st.Role] {
			return nil, fmt.Errorf("planner: subtask %s has unknown role %q", st.ID, st.Role)
		}
		if st.SuccessCriterion == "" {
			return nil, fmt.Errorf("planner: subtask %s has no success criterion", st.ID)
		}
		index[st.ID] = i
	}

	preds := make(map[string][]string)
	indegree := make(map[string]int, len(subtasks))
	for _, st := range subtasks {
		for _, next := range st.Next {
			if _, ok := index[next]; !ok {
				return nil, fmt.Errorf("planner: subtask %s points at unknown id %s", st.ID, next)
			}
			if next == st.ID {
				return nil, fmt.Errorf("planner: subtask %s points at itself", st.ID)
			}
			preds[next] = append(preds[next], st.ID)
			indegree[next]++
		}
	}

	// Kahn's walk; anything left over sits on a cycle.
	queue := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		if indegree[st.ID] == 0 {
			queue = append(queue, st.ID)
		}
	}
	seen := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		seen++
		for _, next := range subtasks[index[id]].Next {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if seen != len(subtasks) {
		return nil, fmt.Errorf("planner: subtask graph has a cycle")
	}

	nodes := make([]Subtask, len(subtasks))
	copy(nodes, subtasks)
	return &DAG{nodes: nodes, index: index, preds: preds}, nil
}

// Subtasks returns the nodes in plan order.
func (d *DAG) Subtasks() []Subtask {
	out := make([]Subtask, len(d.nodes))
	copy(out, d.nodes)
	return out
}

// Get looks up one subtask by id.
func (d *DAG) Get(id string) (Subtask, bool) {
	i, ok := d.index[id]
	if !ok {
		return Subtask{}, false
	}
	return d.nodes[i], true
}

// Predecessors returns the ids that must finish before id may start,
// sorted for stable iteration.
func (d *DAG) Predecessors(id string) []string {
	out := append([]string(nil), d.preds[id]...)
	sort.Strings(out)
	return out
}

// Len is the node count.
func (d *DAG) Len() int { return len(d.nodes) }
