package extract

import (
	"context"
	"net/http"
	"time"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/snapshot"
	"github.com/stake-plus/deepresearch/src/webclient"
)

const (
	// Two retries after the first failed attempt. Timeouts and 5xx both
	// spend the budget.
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
	defaultMaxBytes = 8 << 20
)

// Worker turns a URL into Evidence. It is stateless and safe for
// concurrent use; all store writes stay with the caller.
type Worker struct {
	client   *http.Client
	policy   *snapshot.Policy
	norm     *normalizer
	attempts int
	backoff  time.Duration
	maxBytes int64
}

// NewWorker wires a worker against the TTL/source policy. A nil client gets
// the shared default.
func NewWorker(policy *snapshot.Policy, client *http.Client) *Worker {
	if policy == nil {
		policy = snapshot.DefaultPolicy()
	}
	if client == nil {
		client = webclient.NewDefault(30 * time.Second)
	}
	return &Worker{
		client:   client,
		policy:   policy,
		norm:     newNormalizer(),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		maxBytes: defaultMaxBytes,
	}
}

// Fetch retrieves and normalizes one document. The returned Evidence is
// revision 0; the store assigns the real revision at Put. Failures come
// back as *FetchError.
func (w *Worker) Fetch(ctx context.Context, url string) (evidence.Evidence, error) {
	raw, contentType, ferr := w.download(ctx, url)
	if ferr != nil {
		return evidence.Evidence{}, ferr
	}
	title, text, err := w.norm.normalize(raw, contentType)
	if err != nil {
		return evidence.Evidence{}, &FetchError{URL: url, Kind: KindMalformed, Err: err}
	}
	domain := evidence.Domain(url)
	if title == "" {
		title = domain
	}
	return evidence.Evidence{
		URL:         url,
		Title:       title,
		AccessedAt:  time.Now().UTC(),
		Content:     text,
		ContentHash: evidence.HashContent(raw),
		SourceType:  w.policy.SourceType(domain),
	}, nil
}

// Probe fetches the document and returns only the hash of the raw bytes.
// Nothing is normalized or stored; the caller compares the hash against the
// store to decide whether a full refetch is warranted.
func (w *Worker) Probe(ctx context.Context, url string) (string, error) {
	raw, _, ferr := w.download(ctx, url)
	if ferr != nil {
		return "", ferr
	}
	return evidence.HashContent(raw), nil
}

func (w *Worker) download(ctx context.Context, url string) ([]byte, string, *FetchError) {
	var contentType string
	attempts := 0
	status, body, err := webclient.DoWithRetry(ctx, w.attempts, w.backoff, func() (int, []byte, error) {
		attempts++
		st, hdr, b, aerr := webclient.Get(ctx, w.client, url, nil, w.maxBytes)
		if aerr == nil {
			contentType = hdr.Get("Content-Type")
		}
		return st, b, aerr
	})
	switch {
	case err != nil:
		return nil, "", &FetchError{URL: url, Kind: KindUnreachable, Status: status, Attempts: attempts, Err: err}
	case status == 429 || status >= 500:
		return nil, "", &FetchError{URL: url, Kind: KindUnreachable, Status: status, Attempts: attempts}
	case status >= 400:
		return nil, "", &FetchError{URL: url, Kind: KindDead, Status: status, Attempts: attempts}
	}
	return body, contentType, nil
}
