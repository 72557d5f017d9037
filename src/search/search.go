// Package search finds candidate source URLs for a research question.
// Snippets returned here are leads only; nothing from a search result is
// citable until the extraction path has snapshotted the page itself.
package search

import (
	"context"
)

// Candidate is one search hit.
type Candidate struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Adapter is the pluggable search backend.
type Adapter interface {
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)
}
