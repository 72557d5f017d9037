package extract

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	blockRe  = regexp.MustCompile(`(?i)</?(p|div|br|li|tr|h[1-6]|section|article|blockquote)[^>]*>`)
)

type normalizer struct {
	sanitizer *bluemonday.Policy
}

func newNormalizer() *normalizer {
	return &normalizer{sanitizer: bluemonday.StrictPolicy()}
}

// normalize reduces a fetched payload to title plus plain text. It returns
// an error when the payload cannot be treated as text; callers wrap that as
// a malformed fetch.
func (n *normalizer) normalize(raw []byte, contentType string) (title, text string, err error) {
	if len(raw) == 0 {
		return "", "", fmt.Errorf("empty body")
	}
	if !utf8.Valid(raw) {
		return "", "", fmt.Errorf("body is not valid utf-8")
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		text, err = normalizeJSON(raw)
		if err != nil {
			return "", "", err
		}
		return "", text, nil
	case strings.Contains(ct, "html"), strings.Contains(ct, "xml"), ct == "",
		strings.Contains(ct, "text/plain"):
		// Fall through to the HTML/text path. Plain text passes through
		// the sanitizer unchanged apart from whitespace.
	default:
		return "", "", fmt.Errorf("unsupported content type %q", contentType)
	}

	doc := string(raw)
	if m := titleRe.FindStringSubmatch(doc); m != nil {
		title = collapseWhitespace(html.UnescapeString(m[1]))
	}
	doc = scriptRe.ReplaceAllString(doc, " ")
	doc = blockRe.ReplaceAllString(doc, "\n")
	text = n.sanitizer.Sanitize(doc)
	text = html.UnescapeString(text)
	text = collapseLines(text)
	if text == "" {
		return "", "", fmt.Errorf("no text content after normalization")
	}
	return title, text, nil
}

func normalizeJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return string(out), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = collapseWhitespace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
