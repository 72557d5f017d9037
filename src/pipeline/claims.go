package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/stake-plus/deepresearch/src/ai"
	"github.com/stake-plus/deepresearch/src/evidence"
)

// maxClaims bounds how many claims one run verifies.
const maxClaims = 8

// claimExcerptLimit caps how much of each document the extraction prompt sees.
const claimExcerptLimit = 2000

// ClaimExtractor distills checkable claims from the gathered evidence.
type ClaimExtractor interface {
	Extract(ctx context.Context, question string, set []evidence.Evidence) ([]evidence.Claim, error)
}

// LLMClaimExtractor asks a model for claims in a fixed line format and
// parses the reply by prefix.
type LLMClaimExtractor struct {
	client ai.Client
}

func NewLLMClaimExtractor(client ai.Client) *LLMClaimExtractor {
	return &LLMClaimExtractor{client: client}
}

func (x *LLMClaimExtractor) Extract(ctx context.Context, question string, set []evidence.Evidence) ([]evidence.Claim, error) {
	if x.client == nil {
		return nil, fmt.Errorf("no ai client configured")
	}
	if len(set) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Extract the factual claims needed to answer the research question below.\n")
	sb.WriteString("Use only facts stated in the documents. One claim per line, at most ")
	fmt.Fprintf(&sb, "%d lines, in this exact format:\n", maxClaims)
	sb.WriteString("CLAIM: <one sentence> | RECENCY: <yes/no> | CRITICAL: <yes/no>\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nDocuments:\n", question)
	for i, ev := range set {
		excerpt := ev.Content
		if len(excerpt) > claimExcerptLimit {
			excerpt = excerpt[:claimExcerptLimit]
		}
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, ev.Title, ev.URL, excerpt)
	}

	reply, err := x.client.Complete(ctx, sb.String(), ai.Options{})
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}

	claims := parseClaimLines(reply)
	if len(claims) == 0 {
		return nil, fmt.Errorf("claim extraction: no parseable claims in reply")
	}
	return claims, nil
}

func parseClaimLines(reply string) []evidence.Claim {
	var claims []evidence.Claim
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "CLAIM:") {
			continue
		}
		body := strings.TrimSpace(line[len("CLAIM:"):])
		claim := evidence.Claim{Critical: true}
		parts := strings.Split(body, "|")
		claim.Text = strings.TrimSpace(parts[0])
		if claim.Text == "" {
			continue
		}
		for _, part := range parts[1:] {
			key, value, found := strings.Cut(part, ":")
			if !found {
				continue
			}
			yes := strings.EqualFold(strings.TrimSpace(value), "yes")
			switch strings.ToUpper(strings.TrimSpace(key)) {
			case "RECENCY":
				claim.RecencySensitive = yes
			case "CRITICAL":
				claim.Critical = yes
			}
		}
		claims = append(claims, claim)
		if len(claims) == maxClaims {
			break
		}
	}
	return claims
}

// HeuristicClaimExtractor derives one claim per evidence document from its
// leading sentence. It is the fallback when no model is configured or the
// model call fails, and it keeps verification deterministic.
type HeuristicClaimExtractor struct{}

func (HeuristicClaimExtractor) Extract(_ context.Context, question string, set []evidence.Evidence) ([]evidence.Claim, error) {
	recency := recencySensitive(question)
	var claims []evidence.Claim
	for _, ev := range set {
		text := leadingSentence(ev.Content)
		if text == "" {
			continue
		}
		claims = append(claims, evidence.Claim{
			Text:             text,
			EvidenceURLs:     []string{ev.URL},
			RecencySensitive: recency,
			Critical:         true,
		})
		if len(claims) == maxClaims {
			break
		}
	}
	if len(claims) == 0 && question != "" {
		claims = append(claims, evidence.Claim{
			Text:             question,
			RecencySensitive: recency,
			Critical:         true,
		})
	}
	return claims, nil
}

// recencyCues mark questions whose answers drift: prices, rates, rankings,
// anything asked about "now".
var recencyCues = []string{
	"current", "currently", "today", "now", "latest", "recent",
	"this year", "this quarter", "price", "rate", "yield", "market cap",
}

func recencySensitive(question string) bool {
	q := strings.ToLower(question)
	for _, cue := range recencyCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

func leadingSentence(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	for i, r := range content {
		if r == '\n' || ((r == '.' || r == '!' || r == '?') && followedBySpace(content, i)) {
			return strings.TrimSpace(content[:i+1])
		}
	}
	if len(content) > 200 {
		content = content[:200]
	}
	return content
}

func followedBySpace(s string, i int) bool {
	for _, r := range s[i+1:] {
		return unicode.IsSpace(r)
	}
	return true
}
