package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stake-plus/deepresearch/src/ai"
	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/search"
)

// SynthesisInput is everything the answer may draw on. Candidates are
// unverified search leads; they can be mentioned but never cited.
type SynthesisInput struct {
	Question    string
	Labeled     []evidence.LabeledClaim
	Evidence    []evidence.Evidence
	Candidates  []search.Candidate
	MathResults map[string]string
	Degraded    bool
}

// Synthesizer composes the final answer from labeled claims. Implementations
// must not assert anything that lacks a Supported claim behind it.
type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (string, error)
}

// LLMSynthesizer writes the answer with a model, constrained to the
// verified claim list.
type LLMSynthesizer struct {
	client ai.Client
}

func NewLLMSynthesizer(client ai.Client) *LLMSynthesizer {
	return &LLMSynthesizer{client: client}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no ai client configured")
	}

	var sb strings.Builder
	sb.WriteString("Write a concise answer to the question using ONLY the verified claims below.\n")
	sb.WriteString("State facts only from claims labeled Supported. Mention Outdated-Only claims with their age caveat. ")
	sb.WriteString("Name what remains Unsupported or Contradicted instead of guessing. Do not invent sources.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n", in.Question)
	if len(in.Labeled) > 0 {
		sb.WriteString("\nVerified claims:\n")
		for _, lc := range in.Labeled {
			fmt.Fprintf(&sb, "- [%s] %s", lc.Label, lc.Claim.Text)
			if lc.Reason != "" {
				fmt.Fprintf(&sb, " (%s)", lc.Reason)
			}
			sb.WriteString("\n")
		}
	}
	if len(in.MathResults) > 0 {
		sb.WriteString("\nComputed values:\n")
		for _, kv := range sortedPairs(in.MathResults) {
			fmt.Fprintf(&sb, "- %s = %s\n", kv[0], kv[1])
		}
	}
	if len(in.Evidence) > 0 {
		sb.WriteString("\nSources on hand:\n")
		for _, ev := range in.Evidence {
			fmt.Fprintf(&sb, "- %s (%s, accessed %s)\n", ev.Title, ev.URL, ev.AccessedAt.Format("2006-01-02"))
		}
	}
	if in.Degraded && len(in.Candidates) > 0 {
		sb.WriteString("\nUNVERIFIED search leads (snippets only, nothing was snapshotted or checked; ")
		sb.WriteString("say so explicitly if you mention them):\n")
		for _, cand := range in.Candidates {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", cand.Title, cand.URL, cand.Snippet)
		}
	}

	answer, err := s.client.Complete(ctx, sb.String(), ai.Options{})
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("synthesis: empty reply")
	}
	return answer, nil
}

// TextSynthesizer is the deterministic fallback: it reports supported
// findings verbatim and names everything it could not establish.
type TextSynthesizer struct{}

func (TextSynthesizer) Synthesize(_ context.Context, in SynthesisInput) (string, error) {
	var supported, outdated, open []string
	for _, lc := range in.Labeled {
		switch lc.Label {
		case evidence.LabelSupported:
			supported = append(supported, lc.Claim.Text)
		case evidence.LabelOutdatedOnly:
			outdated = append(outdated, fmt.Sprintf("%s (%s)", lc.Claim.Text, lc.Reason))
		default:
			open = append(open, fmt.Sprintf("%s [%s]", lc.Claim.Text, lc.Label))
		}
	}

	var sb strings.Builder
	switch {
	case len(supported) > 0:
		fmt.Fprintf(&sb, "Findings for %q:\n", in.Question)
		for _, text := range supported {
			fmt.Fprintf(&sb, "- %s\n", text)
		}
	case len(outdated) > 0:
		fmt.Fprintf(&sb, "No current evidence answers %q; the latest available snapshots say:\n", in.Question)
	default:
		fmt.Fprintf(&sb, "The gathered evidence does not answer %q.\n", in.Question)
	}
	if len(outdated) > 0 {
		sb.WriteString("Outdated evidence only:\n")
		for _, text := range outdated {
			fmt.Fprintf(&sb, "- %s\n", text)
		}
	}
	for _, kv := range sortedPairs(in.MathResults) {
		fmt.Fprintf(&sb, "Computed %s = %s\n", kv[0], kv[1])
	}
	if len(open) > 0 {
		sb.WriteString("Unresolved:\n")
		for _, text := range open {
			fmt.Fprintf(&sb, "- %s\n", text)
		}
	}
	if in.Degraded && len(in.Candidates) > 0 {
		sb.WriteString("Unverified leads (not snapshotted, not checked):\n")
		for _, cand := range in.Candidates {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", cand.Title, cand.URL, cand.Snippet)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// sortedPairs returns map entries ordered by key so output stays stable.
func sortedPairs(m map[string]string) [][2]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, m[k]})
	}
	return pairs
}
