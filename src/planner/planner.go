// Package planner decomposes a research request into a bounded DAG of
// subtasks. Plans are deterministic; the language model contributes prose
// later (claims, synthesis), never plan structure.
package planner

import (
	"fmt"
	"strings"
	"time"
)

// Role names the worker that executes a subtask.
type Role string

const (
	RoleSearch     Role = "search"
	RoleExtract    Role = "extract"
	RoleMath       Role = "math"
	RoleVerify     Role = "verify"
	RoleSynthesize Role = "synthesize"
)

// MaxSubtasks caps plan size. Three slots are always spent on search,
// verify, and synthesize; the rest go to extraction and math.
const MaxSubtasks = 6

// Subtask is one DAG node. Next lists forward edges; an empty Next marks a
// sink. Critical subtasks feed the run's consecutive-failure counter when
// they fail. MinDeliverables is the machine-checkable floor behind
// SuccessCriterion.
type Subtask struct {
	ID               string   `json:"id"`
	Role             Role     `json:"role"`
	Goal             string   `json:"goal"`
	DeliverableSpec  string   `json:"deliverable_spec"`
	SuccessCriterion string   `json:"success_criterion"`
	Next             []string `json:"next,omitempty"`
	Critical         bool     `json:"critical"`
	MinDeliverables  int      `json:"-"`
	Target           string   `json:"target,omitempty"`
}

// Request is the planner's input.
type Request struct {
	Question string
	// Sources is how many distinct sources to snapshot. Zero means two.
	Sources int
	// MathExpression, when set, adds a numeric computation step.
	MathExpression string
}

// Reason partitions planning failures.
type Reason string

const (
	ReasonTooManySubtasks Reason = "too_many_subtasks"
	ReasonUnresolvable    Reason = "unresolvable"
)

// PlanningError is returned instead of a DAG when decomposition fails. The
// caller decides whether to degrade to a fallback plan.
type PlanningError struct {
	Reason Reason
	Detail string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planner: %s: %s", e.Reason, e.Detail)
}

// Plan builds the standard research DAG: search, one extraction per source,
// optional math, verification, synthesis. asOf anchors recency language in
// the synthesis goal.
func Plan(req Request, asOf time.Time) (*DAG, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, &PlanningError{Reason: ReasonUnresolvable, Detail: "empty question"}
	}
	sources := req.Sources
	if sources <= 0 {
		sources = 2
	}
	withMath := strings.TrimSpace(req.MathExpression) != ""

	total := 3 + sources
	if withMath {
		total++
	}
	if total > MaxSubtasks {
		return nil, &PlanningError{
			Reason: ReasonTooManySubtasks,
			Detail: fmt.Sprintf("%d subtasks needed, cap is %d", total, MaxSubtasks),
		}
	}

	extractIDs := make([]string, sources)
	for i := range extractIDs {
		extractIDs[i] = fmt.Sprintf("S2%c", 'a'+i)
	}

	searchNext := append([]string(nil), extractIDs...)
	subtasks := []Subtask{{
		ID:               "S1",
		Role:             RoleSearch,
		Goal:             "find candidate sources for: " + question,
		DeliverableSpec:  "ranked candidate urls with titles and snippets",
		SuccessCriterion: fmt.Sprintf("at least %d distinct candidate urls found", sources),
		Next:             searchNext,
		MinDeliverables:  sources,
	}}

	extractNext := []string{"S4"}
	if withMath {
		extractNext = []string{"S3", "S4"}
	}
	for _, id := range extractIDs {
		subtasks = append(subtasks, Subtask{
			ID:               id,
			Role:             RoleExtract,
			Goal:             "snapshot an authoritative source for: " + question,
			DeliverableSpec:  "normalized, hashed snapshot of one assigned source",
			SuccessCriterion: "fresh snapshot available for the assigned url",
			Next:             append([]string(nil), extractNext...),
			Critical:         true,
			MinDeliverables:  1,
		})
	}

	if withMath {
		subtasks = append(subtasks, Subtask{
			ID:               "S3",
			Role:             RoleMath,
			Goal:             "compute: " + req.MathExpression,
			DeliverableSpec:  "numeric result of the expression",
			SuccessCriterion: "expression evaluates without error",
			Next:             []string{"S5"},
			MinDeliverables:  1,
			Target:           req.MathExpression,
		})
	}

	subtasks = append(subtasks,
		Subtask{
			ID:               "S4",
			Role:             RoleVerify,
			Goal:             "label every claim against the gathered evidence",
			DeliverableSpec:  "one label per claim with evidence references",
			SuccessCriterion: "every claim carries a label",
			Next:             []string{"S5"},
			MinDeliverables:  1,
		},
		Subtask{
			ID:               "S5",
			Role:             RoleSynthesize,
			Goal:             fmt.Sprintf("compose the final answer as of %s with citations", asOf.Format("2006-01-02")),
			DeliverableSpec:  "final answer text plus citations and uncertainties",
			SuccessCriterion: "answer cites only labeled claims",
			MinDeliverables:  1,
		},
	)

	return New(subtasks)
}

// Fallback is the degraded plan used when Plan fails: one search feeding one
// synthesis, nothing snapshotted, nothing verifiable.
func Fallback(req Request) *DAG {
	question := strings.TrimSpace(req.Question)
	d, err := New([]Subtask{
		{
			ID:               "S1",
			Role:             RoleSearch,
			Goal:             "best-effort source scan for: " + question,
			DeliverableSpec:  "candidate urls with snippets",
			SuccessCriterion: "at least 1 candidate url found",
			Next:             []string{"S2"},
			MinDeliverables:  1,
		},
		{
			ID:               "S2",
			Role:             RoleSynthesize,
			Goal:             "summarize what was found, flagging that nothing was verified",
			DeliverableSpec:  "caveated summary",
			SuccessCriterion: "summary names its own limitations",
			MinDeliverables:  1,
		},
	})
	if err != nil {
		// The fallback shape is fixed; construction cannot fail.
		panic(err)
	}
	return d
}
