package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/deepresearch/src/evidence"
)

func TestDefaultPolicyClasses(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, ClassMarketData, p.ResolveClass("finance.yahoo.com"))
	assert.Equal(t, ClassDefault, p.ResolveClass("example.com"))
	assert.Equal(t, 24*time.Hour, p.TTL(ClassMarketData))
	assert.Equal(t, 7*24*time.Hour, p.TTL(ClassDefault))
	assert.Equal(t, 7*24*time.Hour, p.TTL("no-such-class"))
}

func TestDefaultPolicySourceType(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, evidence.SourcePrimary, p.SourceType("sec.gov"))
	assert.Equal(t, evidence.SourcePrimary, p.SourceType("efts.sec.gov"))
	assert.Equal(t, evidence.SourceSecondary, p.SourceType("notsec.gov"))
	assert.Equal(t, evidence.SourceSecondary, p.SourceType("blog.example.com"))
}

func TestLoadPolicyOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := `
classes:
  market-data: 6h
  filings: 720h
domains:
  prices.internal.example.com: market-data
  edgar-mirror.example.com: filings
primary:
  - ecb.europa.eu
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, 6*time.Hour, p.TTL(ClassMarketData))
	assert.Equal(t, 720*time.Hour, p.TTL("filings"))
	assert.Equal(t, "filings", p.ResolveClass("edgar-mirror.example.com"))
	assert.Equal(t, ClassMarketData, p.ResolveClass("prices.internal.example.com"))
	// Defaults survive the overlay.
	assert.Equal(t, ClassMarketData, p.ResolveClass("stooq.com"))
	assert.Equal(t, evidence.SourcePrimary, p.SourceType("ecb.europa.eu"))
	assert.Equal(t, evidence.SourcePrimary, p.SourceType("sec.gov"))
}

func TestLoadPolicyRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad-ttl.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("classes:\n  default: soon\n"), 0o644))
	_, err := LoadPolicy(bad)
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown-class.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("domains:\n  a.example.com: nope\n"), 0o644))
	_, err = LoadPolicy(unknown)
	assert.Error(t, err)

	_, err = LoadPolicy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveClassPrefersLongestSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := `
classes:
  slow: 2160h
domains:
  example.com: slow
  feed.example.com: market-data
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, ClassMarketData, p.ResolveClass("feed.example.com"))
	assert.Equal(t, "slow", p.ResolveClass("docs.example.com"))
	assert.Equal(t, "slow", p.ResolveClass("example.com"))
}
