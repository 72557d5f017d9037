// Package config reads service configuration from the environment. Values
// with sane defaults never fail; integrations left unset (MySQL, Redis, AI
// keys) disable their feature instead of stopping the service.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// ListenAddr is the research API bind address.
	ListenAddr string
	// JWTSecret signs API tokens. The webserver refuses to start without it.
	JWTSecret string
	// APIKey is the preshared key exchanged for a JWT at /v1/auth/token.
	APIKey string

	// MySQLDSN enables snapshot and run persistence when set.
	MySQLDSN string
	// RedisURL enables run announcements and report caching when set.
	RedisURL string

	// TavilyKey authorizes the search adapter.
	TavilyKey string
	// PolicyPath points at an optional YAML TTL policy overlay.
	PolicyPath string

	// SourceBudget is the default number of sources to snapshot per run.
	SourceBudget int
	// MaxParallel bounds concurrent subtask workers.
	MaxParallel int
	// FetchTimeout bounds one snapshot fetch.
	FetchTimeout time.Duration
	// RunTimeout bounds one whole research run.
	RunTimeout time.Duration

	AI AI
}

// AI mirrors the model-provider settings shared by claim extraction,
// verification assistance, and synthesis.
type AI struct {
	Provider     string
	OpenAIKey    string
	ClaudeKey    string
	Model        string
	SystemPrompt string
}

func Load() Config {
	return Config{
		ListenAddr:   getenv("LISTEN_ADDR", ":8098"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		APIKey:       os.Getenv("API_KEY"),
		MySQLDSN:     os.Getenv("MYSQL_DSN"),
		RedisURL:     os.Getenv("REDIS_URL"),
		TavilyKey:    os.Getenv("TAVILY_API_KEY"),
		PolicyPath:   os.Getenv("SNAPSHOT_POLICY_PATH"),
		SourceBudget: getint("SOURCE_BUDGET", 2),
		MaxParallel:  getint("MAX_PARALLEL", 3),
		FetchTimeout: getdur("FETCH_TIMEOUT", 45*time.Second),
		RunTimeout:   getdur("RUN_TIMEOUT", 5*time.Minute),
		AI:           LoadAIFromEnv(),
	}
}

// LoadAIFromEnv reads just the model-provider settings.
func LoadAIFromEnv() AI {
	provider := getenv("AI_PROVIDER", "openai")
	model := os.Getenv("AI_MODEL")
	if model == "" {
		if provider == "claude" {
			model = "claude-3-5-sonnet-20241022"
		} else {
			model = "gpt-4o"
		}
	}
	return AI{
		Provider:     provider,
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		ClaudeKey:    os.Getenv("CLAUDE_API_KEY"),
		Model:        model,
		SystemPrompt: os.Getenv("AI_SYSTEM_PROMPT"),
	}
}

// Enabled reports whether any provider key is configured.
func (a AI) Enabled() bool {
	return a.OpenAIKey != "" || a.ClaudeKey != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
