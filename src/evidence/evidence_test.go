package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"https://example.com:443/a", "https://example.com/a"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
		{"https://example.com/a/#sec", "https://example.com/a"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com/a?b=1", "https://example.com/a?b=1"},
		{"  https://example.com/x  ", "https://example.com/x"},
	}
	for _, c := range cases {
		got, err := NormalizeURL(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	for _, in := range []string{"", "   ", "example.com/a", "/relative/path"} {
		_, err := NormalizeURL(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	first, err := NormalizeURL("HTTPS://Example.com:443/data/#top")
	require.NoError(t, err)
	second, err := NormalizeURL(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("same bytes"))
	b := HashContent([]byte("same bytes"))
	c := HashContent([]byte("other bytes"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestReviseLeavesOriginalIntact(t *testing.T) {
	orig := Evidence{
		URL:         "https://example.com/report",
		Title:       "Q1 Report",
		AccessedAt:  time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Content:     "old body",
		ContentHash: HashContent([]byte("old body")),
		SourceType:  SourcePrimary,
		Revision:    1,
	}
	next := orig.Revise("Q1 Report (rev)", "new body", HashContent([]byte("new body")),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "old body", orig.Content)
	assert.Equal(t, 1, orig.Revision)
	assert.Equal(t, "new body", next.Content)
	assert.Equal(t, 2, next.Revision)
	assert.Equal(t, orig.URL, next.URL)
	assert.Equal(t, orig.SourceType, next.SourceType)
	assert.NotEqual(t, orig.ContentHash, next.ContentHash)
}

func TestKeyAndDomain(t *testing.T) {
	k1 := Key("https://example.com/a")
	k2 := Key("https://example.com/a")
	k3 := Key("https://example.com/b")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 16)

	assert.Equal(t, "example.com", Domain("https://www.example.com/a"))
	assert.Equal(t, "finance.yahoo.com", Domain("https://finance.yahoo.com/quote/ACME"))
	assert.Equal(t, "example.com", Domain("http://example.com:8080/x"))
}
