package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/deepresearch/src/evidence"
)

var verifyAsOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type staleMap map[string]bool

func (m staleMap) IsStale(url, _ string) bool { return m[url] }

func ev(url, content string, accessed time.Time) evidence.Evidence {
	return evidence.Evidence{
		URL:         url,
		Title:       "title",
		AccessedAt:  accessed,
		Content:     content,
		ContentHash: evidence.HashContent([]byte(content)),
		SourceType:  evidence.SourceSecondary,
	}
}

func TestSupportedWithFreshEvidence(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{{Text: "ACME revenue reached 120.5 million in 2024", RecencySensitive: true}}
	set := []evidence.Evidence{
		ev("https://example.com/report", "ACME revenue reached 120.5 million in 2024.", verifyAsOf.AddDate(0, -1, 0)),
	}

	labeled, recrawls := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelSupported, labeled[0].Label)
	assert.Equal(t, []string{"https://example.com/report"}, labeled[0].EvidenceURLs)
	assert.Empty(t, recrawls)
}

func TestOutdatedOnlyTenMonthScenario(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{{Text: "ACME still operates the Berlin plant", RecencySensitive: true}}
	set := []evidence.Evidence{
		ev("https://example.com/a", "ACME still operates the Berlin plant.", verifyAsOf.AddDate(0, -10, 0)),
	}

	labeled, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelOutdatedOnly, labeled[0].Label)
	assert.NotEqual(t, evidence.LabelSupported, labeled[0].Label)
}

func TestOldEvidenceFineWhenNotRecencySensitive(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{{Text: "ACME was founded in 1987", RecencySensitive: false}}
	set := []evidence.Evidence{
		ev("https://example.com/history", "ACME was founded in 1987.", verifyAsOf.AddDate(-2, 0, 0)),
	}

	labeled, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelSupported, labeled[0].Label)
}

func TestContradictedBeatsSupport(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{{Text: "Jane Doe is the chief executive of ACME", RecencySensitive: true}}
	set := []evidence.Evidence{
		ev("https://example.com/old", "Jane Doe is the chief executive of ACME.", verifyAsOf.AddDate(0, -1, 0)),
		ev("https://example.com/new", "Jane Doe is no longer chief executive of ACME.", verifyAsOf.AddDate(0, 0, -3)),
	}

	labeled, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelContradicted, labeled[0].Label)
	assert.Equal(t, []string{"https://example.com/new"}, labeled[0].EvidenceURLs)
}

func TestUnsupportedWhenNothingRelevant(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{{Text: "ACME acquired Widgets GmbH for 40 million", RecencySensitive: false}}
	set := []evidence.Evidence{
		ev("https://example.com/weather", "Tomorrow brings scattered showers across the region.", verifyAsOf),
	}

	labeled, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelUnsupported, labeled[0].Label)
	assert.Empty(t, labeled[0].EvidenceURLs)
}

func TestVerifyIsIdempotent(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{
		{Text: "ACME revenue reached 120.5 million in 2024", RecencySensitive: true},
		{Text: "ACME was founded in 1987"},
		{Text: "ACME acquired Widgets GmbH"},
	}
	set := []evidence.Evidence{
		ev("https://example.com/report", "ACME revenue reached 120.5 million in 2024.", verifyAsOf.AddDate(0, -1, 0)),
		ev("https://example.com/history", "ACME was founded in 1987.", verifyAsOf.AddDate(-3, 0, 0)),
	}

	first, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	second, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	assert.Equal(t, first, second)
}

func TestRecrawlOnlyWhenStoreAgrees(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{
		{Text: "ACME still operates the Berlin plant", RecencySensitive: true},
		{Text: "ACME Berlin plant still operates at full capacity", RecencySensitive: true},
	}
	old := verifyAsOf.AddDate(0, -10, 0)
	set := []evidence.Evidence{
		ev("https://example.com/stale", "ACME still operates the Berlin plant at full capacity.", old),
	}

	// Store says the entry is stale: one deduplicated request.
	labeled, recrawls := v.Verify(context.Background(), claims, set, verifyAsOf, staleMap{"https://example.com/stale": true})
	require.Len(t, labeled, 2)
	assert.Equal(t, evidence.LabelOutdatedOnly, labeled[0].Label)
	require.Len(t, recrawls, 1)
	assert.Equal(t, "https://example.com/stale", recrawls[0].URL)
	assert.NotEmpty(t, recrawls[0].Reason)

	// Store says fresh: outdated label stands but nothing is requested.
	_, recrawls = v.Verify(context.Background(), claims, set, verifyAsOf, staleMap{})
	assert.Empty(t, recrawls)

	// No store view at all: advisory channel stays silent.
	_, recrawls = v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	assert.Empty(t, recrawls)
}

func TestClaimRestrictedToReferencedEvidence(t *testing.T) {
	v := New(nil)
	claims := []evidence.Claim{{
		Text:         "ACME was founded in 1987",
		EvidenceURLs: []string{"https://example.com/other"},
	}}
	set := []evidence.Evidence{
		ev("https://example.com/history", "ACME was founded in 1987.", verifyAsOf),
		ev("https://example.com/other", "Unrelated filler text about farming.", verifyAsOf),
	}

	labeled, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelUnsupported, labeled[0].Label,
		"evidence outside the referenced set must not leak into the label")
}

type erroringMatcher struct{ calls int }

func (m *erroringMatcher) Assess(context.Context, evidence.Claim, evidence.Evidence) (Assessment, error) {
	m.calls++
	return Assessment{}, errors.New("model unavailable")
}

func TestMatcherErrorsDegradeToUnsupported(t *testing.T) {
	m := &erroringMatcher{}
	v := New(m)
	claims := []evidence.Claim{{Text: "anything"}}
	set := []evidence.Evidence{ev("https://example.com/a", "anything", verifyAsOf)}

	labeled, _ := v.Verify(context.Background(), claims, set, verifyAsOf, nil)
	require.Len(t, labeled, 1)
	assert.Equal(t, evidence.LabelUnsupported, labeled[0].Label)
	assert.Equal(t, 1, m.calls)
}
