package evidence

// Label classifies a claim against the evidence that was consulted for it.
type Label string

const (
	LabelSupported    Label = "Supported"
	LabelContradicted Label = "Contradicted"
	LabelUnsupported  Label = "Unsupported"
	LabelOutdatedOnly Label = "Outdated-Only"
)

// Claim is one factual assertion distilled from a research question or a
// draft answer. EvidenceURLs, when non-empty, restricts verification to
// those snapshots; an empty set means the whole evidence set is in play.
type Claim struct {
	Text             string   `json:"text"`
	EvidenceURLs     []string `json:"evidence_urls,omitempty"`
	RecencySensitive bool     `json:"recency_sensitive"`
	Critical         bool     `json:"critical"`
}

// LabeledClaim is the verification verdict for one claim. EvidenceURLs names
// the snapshots the label was derived from: supporters for Supported and
// Outdated-Only, contradictors for Contradicted, empty for Unsupported.
type LabeledClaim struct {
	Claim        Claim    `json:"claim"`
	Label        Label    `json:"label"`
	EvidenceURLs []string `json:"evidence_urls,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}
