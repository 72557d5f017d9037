// Package pipeline orchestrates a research run: planning, concurrent
// subtask execution, verification with bounded recrawl, and synthesis.
// All run state mutation happens on the coordinator goroutine; workers
// report back through a single outcome channel.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/planner"
	"github.com/stake-plus/deepresearch/src/search"
)

// RunState is the global lifecycle of one run.
type RunState string

const (
	StatePlanning       RunState = "planning"
	StateExecuting      RunState = "executing"
	StateVerifying      RunState = "verifying"
	StateRecrawl        RunState = "recrawl"
	StateSynthesizing   RunState = "synthesizing"
	StateCompleted      RunState = "completed"
	StateStoppedPartial RunState = "stopped_partial"
)

// SubtaskStatus tracks one DAG node.
type SubtaskStatus string

const (
	StatusPending SubtaskStatus = "pending"
	StatusRunning SubtaskStatus = "running"
	StatusDone    SubtaskStatus = "done"
	StatusFailed  SubtaskStatus = "failed"
)

// stopFailThreshold ends the run after this many consecutive failures to
// acquire a critical source.
const stopFailThreshold = 3

// Run is the per-request state. Only the coordinator touches it after
// construction.
type Run struct {
	ID       string
	Question string
	AsOf     time.Time
	State    RunState
	Degraded bool

	dag    *planner.DAG
	status map[string]SubtaskStatus
	detail map[string]string

	evidenceByURL map[string]evidence.Evidence
	evidenceOrder []string

	candidates []search.Candidate
	assigned   map[string]bool // normalized urls already bound to a subtask
	deadURLs   map[string]bool
	recrawled  map[string]bool

	claims      []evidence.Claim
	labels      []evidence.LabeledClaim
	verified    bool
	mathResults map[string]string
	finalAnswer string

	failures   int
	stopReason string
}

func newRun(question string, asOf time.Time) *Run {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return &Run{
		ID:            uuid.NewString(),
		Question:      question,
		AsOf:          asOf,
		State:         StatePlanning,
		status:        make(map[string]SubtaskStatus),
		detail:        make(map[string]string),
		evidenceByURL: make(map[string]evidence.Evidence),
		assigned:      make(map[string]bool),
		deadURLs:      make(map[string]bool),
		recrawled:     make(map[string]bool),
		mathResults:   make(map[string]string),
	}
}

func (r *Run) setPlan(dag *planner.DAG) {
	r.dag = dag
	for _, st := range dag.Subtasks() {
		r.status[st.ID] = StatusPending
	}
}

// addEvidence records or replaces the run's snapshot for a URL while
// keeping first-seen ordering stable for reports and verification.
func (r *Run) addEvidence(ev evidence.Evidence) {
	if _, seen := r.evidenceByURL[ev.URL]; !seen {
		r.evidenceOrder = append(r.evidenceOrder, ev.URL)
	}
	r.evidenceByURL[ev.URL] = ev
}

func (r *Run) evidenceSet() []evidence.Evidence {
	out := make([]evidence.Evidence, 0, len(r.evidenceOrder))
	for _, url := range r.evidenceOrder {
		out = append(out, r.evidenceByURL[url])
	}
	return out
}

// nextTarget binds a candidate URL to an extraction subtask. Unclaimed
// candidates go first; once exhausted, the first valid candidate is shared
// so duplicate targets collapse onto the same single-flight fetch.
func (r *Run) nextTarget() string {
	fallback := ""
	for _, cand := range r.candidates {
		norm, err := evidence.NormalizeURL(cand.URL)
		if err != nil {
			continue
		}
		if fallback == "" {
			fallback = norm
		}
		if !r.assigned[norm] {
			r.assigned[norm] = true
			return norm
		}
	}
	return fallback
}

// substituteTarget picks an unclaimed candidate for a dead URL's recrawl.
func (r *Run) substituteTarget() string {
	for _, cand := range r.candidates {
		norm, err := evidence.NormalizeURL(cand.URL)
		if err != nil || r.assigned[norm] || r.deadURLs[norm] {
			continue
		}
		r.assigned[norm] = true
		return norm
	}
	return ""
}

func (r *Run) stop(reason string) {
	if r.State == StateStoppedPartial {
		return
	}
	r.State = StateStoppedPartial
	r.stopReason = reason
}

func (r *Run) stopped() bool { return r.State == StateStoppedPartial }

func (r *Run) terminalStatus(id string) bool {
	s := r.status[id]
	return s == StatusDone || s == StatusFailed
}
