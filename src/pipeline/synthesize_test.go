package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/search"
)

func labeledFixture() []evidence.LabeledClaim {
	return []evidence.LabeledClaim{
		{
			Claim: evidence.Claim{Text: "Revenue was 100 million dollars."},
			Label: evidence.LabelSupported, Reason: "supported by 2 source(s)",
		},
		{
			Claim: evidence.Claim{Text: "The CEO owns 10 percent."},
			Label: evidence.LabelOutdatedOnly, Reason: "all supporting snapshots predate 2026-05-25",
		},
		{
			Claim: evidence.Claim{Text: "Headcount doubled."},
			Label: evidence.LabelUnsupported, Reason: "no relevant evidence in the gathered set",
		},
	}
}

func TestTextSynthesizer(t *testing.T) {
	answer, err := TextSynthesizer{}.Synthesize(context.Background(), SynthesisInput{
		Question:    "How is Acme doing?",
		Labeled:     labeledFixture(),
		MathResults: map[string]string{"S3": "42"},
	})
	require.NoError(t, err)

	assert.Contains(t, answer, "Revenue was 100 million dollars.")
	assert.Contains(t, answer, "Outdated evidence only:")
	assert.Contains(t, answer, "The CEO owns 10 percent.")
	assert.Contains(t, answer, "Computed S3 = 42")
	assert.Contains(t, answer, "Headcount doubled. [Unsupported]")
}

func TestTextSynthesizerNothingEstablished(t *testing.T) {
	answer, err := TextSynthesizer{}.Synthesize(context.Background(), SynthesisInput{
		Question: "How is Acme doing?",
	})
	require.NoError(t, err)
	assert.Contains(t, answer, "does not answer")
}

func TestTextSynthesizerDegradedListsLeads(t *testing.T) {
	answer, err := TextSynthesizer{}.Synthesize(context.Background(), SynthesisInput{
		Question: "How is Acme doing?",
		Degraded: true,
		Candidates: []search.Candidate{
			{URL: "https://example.com/a", Title: "Lead A", Snippet: "Acme may be fine"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, answer, "Unverified leads")
	assert.Contains(t, answer, "Lead A")
	assert.Contains(t, answer, "not snapshotted, not checked")
}

func TestLLMSynthesizerPrompt(t *testing.T) {
	client := &stubAI{reply: "  Acme's revenue was 100 million dollars. [1]  "}
	s := NewLLMSynthesizer(client)

	answer, err := s.Synthesize(context.Background(), SynthesisInput{
		Question: "How is Acme doing?",
		Labeled:  labeledFixture(),
		Evidence: []evidence.Evidence{{URL: "https://sec.gov/acme", Title: "10-K"}},
		Degraded: false,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme's revenue was 100 million dollars. [1]", answer)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "How is Acme doing?")
	assert.Contains(t, prompt, "[Supported] Revenue was 100 million dollars.")
	assert.Contains(t, prompt, "[Outdated-Only] The CEO owns 10 percent.")
	assert.Contains(t, prompt, "https://sec.gov/acme")
	assert.NotContains(t, prompt, "UNVERIFIED search leads")
}

func TestLLMSynthesizerErrors(t *testing.T) {
	s := NewLLMSynthesizer(&stubAI{err: errors.New("overloaded")})
	_, err := s.Synthesize(context.Background(), SynthesisInput{Question: "q"})
	assert.Error(t, err)

	s = NewLLMSynthesizer(&stubAI{reply: "   "})
	_, err = s.Synthesize(context.Background(), SynthesisInput{Question: "q"})
	assert.Error(t, err)
}
