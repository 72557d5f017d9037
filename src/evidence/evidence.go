// Package evidence defines the snapshot and claim types every other
// package trades in. An Evidence value is immutable once built; updates
// are expressed as new revisions, never in-place edits.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
)

// SourceType ranks how authoritative a source is.
type SourceType string

const (
	SourcePrimary   SourceType = "primary"
	SourceSecondary SourceType = "secondary"
)

// Evidence is a timestamped snapshot of one fetched document.
type Evidence struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	AccessedAt  time.Time  `json:"accessed_at"`
	Content     string     `json:"content"`
	ContentHash string     `json:"content_hash"`
	SourceType  SourceType `json:"source_type"`
	Notes       string     `json:"notes,omitempty"`
	Revision    int        `json:"revision"`
}

// Revise returns the next revision of e carrying freshly fetched content.
// The receiver is left untouched.
func (e Evidence) Revise(title, content, contentHash string, accessedAt time.Time) Evidence {
	next := e
	next.Title = title
	next.Content = content
	next.ContentHash = contentHash
	next.AccessedAt = accessedAt
	next.Revision = e.Revision + 1
	return next
}

// HashContent returns the hex sha256 digest of the raw fetched bytes.
// Probes and full fetches hash the same input so digests stay comparable.
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// NormalizeURL canonicalizes a URL so one document maps to one store key:
// scheme and host lowercased, default ports and fragments dropped, and a
// lone trailing slash on the path removed.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("normalize url: empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("normalize url %q: scheme and host required", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if host, port, ok := splitHostPort(u.Host); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}
	u.Fragment = ""
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	} else if strings.HasSuffix(u.Path, "/") && len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

func splitHostPort(host string) (string, string, bool) {
	i := strings.LastIndexByte(host, ':')
	if i < 0 {
		return host, "", false
	}
	port := host[i+1:]
	if _, err := strconv.Atoi(port); err != nil {
		return host, "", false
	}
	return host[:i], port, true
}

// Key derives a short stable identifier for a normalized URL, used for log
// lines and persisted rows where the full URL is too unwieldy to index.
func Key(normalized string) string {
	h := xxhash.New64()
	_, _ = h.WriteString(normalized)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Domain returns the host portion of a normalized URL without any port,
// lowercased, for TTL and source-type policy lookups.
func Domain(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	if h, _, ok := splitHostPort(host); ok {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}
