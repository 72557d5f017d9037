package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "JWT_SECRET", "MYSQL_DSN", "REDIS_URL", "TAVILY_API_KEY",
		"SOURCE_BUDGET", "MAX_PARALLEL", "FETCH_TIMEOUT", "RUN_TIMEOUT",
		"AI_PROVIDER", "AI_MODEL", "OPENAI_API_KEY", "CLAUDE_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8098", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.SourceBudget)
	assert.Equal(t, 3, cfg.MaxParallel)
	assert.Equal(t, 45*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.RunTimeout)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("SOURCE_BUDGET", "3")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("AI_PROVIDER", "claude")
	t.Setenv("AI_MODEL", "")
	t.Setenv("CLAUDE_API_KEY", "k")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.SourceBudget)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.AI.Model)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadRejectsGarbageNumbers(t *testing.T) {
	t.Setenv("SOURCE_BUDGET", "banana")
	t.Setenv("MAX_PARALLEL", "-2")
	t.Setenv("RUN_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 2, cfg.SourceBudget)
	assert.Equal(t, 3, cfg.MaxParallel)
	assert.Equal(t, 5*time.Minute, cfg.RunTimeout)
}
