package verify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stake-plus/deepresearch/src/evidence"
)

// freshnessMonths is how far back a snapshot may reach and still support a
// recency-sensitive claim.
const freshnessMonths = 3

// StaleView is the read-only slice of the snapshot store the verifier may
// consult when deciding whether an Outdated-Only label warrants a recrawl
// request. It never triggers fetches.
type StaleView interface {
	IsStale(url, probeHash string) bool
}

// RecrawlRequest asks the coordinator to consider refreshing one URL. It is
// advisory; authorization happens elsewhere.
type RecrawlRequest struct {
	URL    string
	Reason string
}

// Verifier labels claims against an evidence set. All store writes and
// fetches stay outside; given identical inputs it returns identical labels.
type Verifier struct {
	matcher Matcher
}

// New builds a verifier. A nil matcher gets the lexical default.
func New(matcher Matcher) *Verifier {
	if matcher == nil {
		matcher = &LexicalMatcher{}
	}
	return &Verifier{matcher: matcher}
}

// Verify labels every claim. Precedence: Contradicted beats Supported beats
// Outdated-Only beats Unsupported. Claims that are not recency-sensitive
// treat all supporting evidence as fresh. RecrawlRequests are emitted only
// for Outdated-Only claims whose supporting URL the store also reports
// stale, deduplicated across claims.
func (v *Verifier) Verify(ctx context.Context, claims []evidence.Claim, set []evidence.Evidence, asOf time.Time, stale StaleView) ([]evidence.LabeledClaim, []RecrawlRequest) {
	cutoff := asOf.AddDate(0, -freshnessMonths, 0)
	labeled := make([]evidence.LabeledClaim, 0, len(claims))
	var recrawls []RecrawlRequest
	requested := make(map[string]bool)

	for _, claim := range claims {
		pool := restrict(set, claim.EvidenceURLs)
		var supporters, contradictors []evidence.Evidence
		for _, ev := range pool {
			a, err := v.matcher.Assess(ctx, claim, ev)
			if err != nil {
				log.Printf("verify: assess %s against %s: %v", snippet(claim.Text), evidence.Key(ev.URL), err)
				continue
			}
			switch {
			case a.Contradicts:
				contradictors = append(contradictors, ev)
			case a.Supports:
				supporters = append(supporters, ev)
			}
		}

		lc := evidence.LabeledClaim{Claim: claim}
		switch {
		case len(contradictors) > 0:
			lc.Label = evidence.LabelContradicted
			lc.EvidenceURLs = urlsOf(contradictors)
			lc.Reason = fmt.Sprintf("negated by %d source(s)", len(contradictors))

		case len(supporters) == 0:
			lc.Label = evidence.LabelUnsupported
			lc.Reason = "no relevant evidence in the gathered set"

		case !claim.RecencySensitive || anyFresh(supporters, cutoff):
			lc.Label = evidence.LabelSupported
			lc.EvidenceURLs = urlsOf(supporters)
			lc.Reason = fmt.Sprintf("supported by %d source(s)", len(supporters))

		default:
			lc.Label = evidence.LabelOutdatedOnly
			lc.EvidenceURLs = urlsOf(supporters)
			lc.Reason = fmt.Sprintf("all supporting snapshots predate %s", cutoff.Format("2006-01-02"))
			if stale != nil {
				for _, ev := range supporters {
					if requested[ev.URL] || !stale.IsStale(ev.URL, "") {
						continue
					}
					requested[ev.URL] = true
					recrawls = append(recrawls, RecrawlRequest{
						URL:    ev.URL,
						Reason: fmt.Sprintf("outdated-only support for %q", snippet(claim.Text)),
					})
				}
			}
		}
		labeled = append(labeled, lc)
	}
	return labeled, recrawls
}

func restrict(set []evidence.Evidence, urls []string) []evidence.Evidence {
	if len(urls) == 0 {
		return set
	}
	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[u] = true
	}
	out := make([]evidence.Evidence, 0, len(urls))
	for _, ev := range set {
		if want[ev.URL] {
			out = append(out, ev)
		}
	}
	return out
}

func anyFresh(evs []evidence.Evidence, cutoff time.Time) bool {
	for _, ev := range evs {
		if !ev.AccessedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func urlsOf(evs []evidence.Evidence) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.URL)
	}
	return out
}

func snippet(text string) string {
	if len(text) > 60 {
		return text[:57] + "..."
	}
	return text
}
