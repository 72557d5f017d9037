// Package verify labels claims against snapshotted evidence. The verifier
// never fetches; its only inputs are the claims, the evidence set, and the
// as-of date.
package verify

import (
	"context"
	"strings"

	"github.com/stake-plus/deepresearch/src/evidence"
)

// Assessment is one matcher judgment of one document against one claim.
type Assessment struct {
	Relevant    bool
	Supports    bool
	Contradicts bool
}

// Matcher decides support or contradiction. The strategy is pluggable; the
// pipeline fixes only this contract.
type Matcher interface {
	Assess(ctx context.Context, claim evidence.Claim, ev evidence.Evidence) (Assessment, error)
}

// LexicalMatcher is the deterministic default: token overlap picks the most
// relevant sentence, then negation parity and numeric agreement decide
// between support and contradiction. No I/O, no randomness.
type LexicalMatcher struct {
	// MinOverlap is the fraction of claim tokens that must appear in a
	// sentence before the document counts as relevant. Zero means 0.5.
	MinOverlap float64
}

func (m *LexicalMatcher) Assess(_ context.Context, claim evidence.Claim, ev evidence.Evidence) (Assessment, error) {
	minOverlap := m.MinOverlap
	if minOverlap <= 0 {
		minOverlap = 0.5
	}
	claimTokens := tokenize(claim.Text)
	if len(claimTokens) == 0 {
		return Assessment{}, nil
	}

	best := 0.0
	var bestSentence map[string]bool
	for _, sentence := range splitSentences(ev.Content) {
		sentTokens := tokenize(sentence)
		if len(sentTokens) == 0 {
			continue
		}
		overlap := overlapRatio(claimTokens, sentTokens)
		if overlap > best {
			best = overlap
			bestSentence = sentTokens
		}
	}
	if best < minOverlap {
		return Assessment{}, nil
	}

	contradicts := negated(claimTokens) != negated(bestSentence) ||
		numericConflict(claimTokens, bestSentence)
	return Assessment{
		Relevant:    true,
		Supports:    !contradicts,
		Contradicts: contradicts,
	}, nil
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "with": true,
	"by": true, "as": true, "it": true, "its": true, "this": true,
	"that": true, "and": true, "or": true, "but": true, "from": true,
	"has": true, "have": true, "had": true, "will": true, "would": true,
	"does": true, "did": true, "do": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "how": true, "s": true,
}

var negationTokens = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "neither": true,
	"denied": true, "denies": true, "retracted": true, "false": true,
	"incorrect": true, "discontinued": true, "ceased": true, "longer": true,
}

func tokenize(text string) map[string]bool {
	out := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := strings.Trim(b.String(), ".")
		b.Reset()
		if tok == "" || stopwords[tok] {
			return
		}
		if len(tok) < 2 && !isDigit(tok) {
			return
		}
		out[normalizeToken(tok)] = true
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '%':
			b.WriteRune(r)
		case r == ',' && b.Len() > 0 && isDigit(b.String()):
			// Keep digit grouping together; normalizeToken strips it.
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func normalizeToken(tok string) string {
	if !isDigit(tok) {
		return tok
	}
	tok = strings.ReplaceAll(tok, ",", "")
	tok = strings.TrimSuffix(tok, "%")
	return strings.TrimSuffix(tok, ".")
}

func isDigit(tok string) bool {
	return len(tok) > 0 && tok[0] >= '0' && tok[0] <= '9'
}

func splitSentences(text string) []string {
	chunks := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '!' || r == '?' || r == ';'
	})
	// Period+space ends a sentence; bare periods inside numbers survive.
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, strings.Split(chunk, ". ")...)
	}
	return out
}

func overlapRatio(claim, sentence map[string]bool) float64 {
	hits := 0
	for tok := range claim {
		if sentence[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(claim))
}

func negated(tokens map[string]bool) bool {
	for tok := range tokens {
		if negationTokens[tok] {
			return true
		}
	}
	return false
}

// numericConflict fires when the claim states numbers, the sentence states
// numbers, and none of the claim's numbers survived. A sentence repeating
// the topic with different figures is disagreement, not support.
func numericConflict(claim, sentence map[string]bool) bool {
	claimNums, sentNums := numericTokens(claim), numericTokens(sentence)
	if len(claimNums) == 0 || len(sentNums) == 0 {
		return false
	}
	for tok := range claimNums {
		if !sentNums[tok] {
			return true
		}
	}
	return false
}

func numericTokens(tokens map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for tok := range tokens {
		if isDigit(tok) {
			out[tok] = true
		}
	}
	return out
}
