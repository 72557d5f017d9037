package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/stake-plus/deepresearch/src/ai"
	"github.com/stake-plus/deepresearch/src/evidence"
)

const llmExcerptLimit = 6000

// LLMMatcher delegates the support/contradict judgment to a language model.
// Slower and non-deterministic; wire it only when lexical matching is too
// blunt for the material.
type LLMMatcher struct {
	client ai.Client
}

func NewLLMMatcher(client ai.Client) *LLMMatcher {
	return &LLMMatcher{client: client}
}

func (m *LLMMatcher) Assess(ctx context.Context, claim evidence.Claim, ev evidence.Evidence) (Assessment, error) {
	excerpt := ev.Content
	if len(excerpt) > llmExcerptLimit {
		excerpt = excerpt[:llmExcerptLimit]
	}
	prompt := fmt.Sprintf(`You are checking one factual claim against one document excerpt.

Claim: %q

Document (%s):
%s

Judge only from the document text above. Respond with EXACTLY this format:
VERDICT: [SUPPORTS/CONTRADICTS/UNRELATED]
BASIS: [one sentence quoting the decisive passage]`, claim.Text, ev.Title, excerpt)

	reply, err := m.client.Complete(ctx, prompt, ai.Options{Temperature: 0})
	if err != nil {
		return Assessment{}, fmt.Errorf("llm matcher: %w", err)
	}
	return parseVerdict(reply), nil
}

func parseVerdict(reply string) Assessment {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "VERDICT:") {
			continue
		}
		verdict := strings.TrimSpace(strings.TrimPrefix(upper, "VERDICT:"))
		verdict = strings.Trim(verdict, "[]")
		switch verdict {
		case "SUPPORTS":
			return Assessment{Relevant: true, Supports: true}
		case "CONTRADICTS":
			return Assessment{Relevant: true, Contradicts: true}
		default:
			return Assessment{}
		}
	}
	return Assessment{}
}
