// Package report shapes a finished run into the terminal output contract:
// question, assumptions, subtask trace, answer, citations, uncertainties,
// and the stop reason when the run ended early.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stake-plus/deepresearch/src/evidence"
)

// Assumptions records the inputs the answer is conditioned on.
type Assumptions struct {
	AsOfDate string `json:"as_of_date"`
}

// SubtaskResult is the per-subtask trace line.
type SubtaskResult struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Goal   string `json:"goal"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Citation points at one snapshot the answer rests on.
type Citation struct {
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Report is the terminal output of one run.
type Report struct {
	RunID         string                  `json:"run_id"`
	Question      string                  `json:"question"`
	Assumptions   Assumptions             `json:"assumptions"`
	Subtasks      []SubtaskResult         `json:"subtasks"`
	Claims        []evidence.LabeledClaim `json:"claims,omitempty"`
	FinalAnswer   string                  `json:"final_answer"`
	Citations     []Citation              `json:"citations"`
	Uncertainties []string                `json:"uncertainties"`
	StopReason    string                  `json:"stop_reason,omitempty"`
}

// BuildCitations collects one citation per URL backing a Supported or
// Outdated-Only claim, resolving titles and access times from the evidence
// set. Output is sorted by URL for stable rendering.
func BuildCitations(labeled []evidence.LabeledClaim, set []evidence.Evidence) []Citation {
	byURL := make(map[string]evidence.Evidence, len(set))
	for _, ev := range set {
		byURL[ev.URL] = ev
	}
	seen := make(map[string]bool)
	var out []Citation
	for _, lc := range labeled {
		if lc.Label != evidence.LabelSupported && lc.Label != evidence.LabelOutdatedOnly {
			continue
		}
		for _, url := range lc.EvidenceURLs {
			if seen[url] {
				continue
			}
			seen[url] = true
			c := Citation{URL: url}
			if ev, ok := byURL[url]; ok {
				c.Title = ev.Title
				c.AccessedAt = ev.AccessedAt
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// BuildUncertainties names every claim the answer cannot lean on.
func BuildUncertainties(labeled []evidence.LabeledClaim) []string {
	var out []string
	for _, lc := range labeled {
		switch lc.Label {
		case evidence.LabelUnsupported, evidence.LabelContradicted:
			out = append(out, fmt.Sprintf("%s [%s]", lc.Claim.Text, lc.Label))
		}
	}
	return out
}

// JSON renders the report for API responses and persistence.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// RenderText is the CLI rendering.
func (r *Report) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", r.Question)
	fmt.Fprintf(&b, "As of: %s\n", r.Assumptions.AsOfDate)
	if r.StopReason != "" {
		fmt.Fprintf(&b, "Stopped early: %s\n", r.StopReason)
	}
	b.WriteString("\nSubtasks:\n")
	for _, st := range r.Subtasks {
		fmt.Fprintf(&b, "  [%s] %-10s %-7s %s", st.ID, st.Role, st.Status, st.Goal)
		if st.Detail != "" {
			fmt.Fprintf(&b, " (%s)", st.Detail)
		}
		b.WriteByte('\n')
	}
	if len(r.Claims) > 0 {
		b.WriteString("\nClaims:\n")
		for _, lc := range r.Claims {
			fmt.Fprintf(&b, "  [%s] %s\n", lc.Label, lc.Claim.Text)
		}
	}
	fmt.Fprintf(&b, "\nAnswer:\n%s\n", r.FinalAnswer)
	if len(r.Citations) > 0 {
		b.WriteString("\nCitations:\n")
		for i, c := range r.Citations {
			fmt.Fprintf(&b, "  [%d] %s - %s (accessed %s)\n", i+1, c.Title, c.URL,
				c.AccessedAt.Format("2006-01-02"))
		}
	}
	if len(r.Uncertainties) > 0 {
		b.WriteString("\nUncertainties:\n")
		for _, u := range r.Uncertainties {
			fmt.Fprintf(&b, "  - %s\n", u)
		}
	}
	return b.String()
}
