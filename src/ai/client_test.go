package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorySelectsProvider(t *testing.T) {
	c := NewClient(FactoryConfig{Provider: "claude", ClaudeKey: "k"})
	_, isClaude := c.(*claudeClient)
	assert.True(t, isClaude)

	c = NewClient(FactoryConfig{Provider: "openai", OpenAIKey: "k"})
	_, isOpenAI := c.(*openAIClient)
	assert.True(t, isOpenAI)

	c = NewClient(FactoryConfig{OpenAIKey: "k"})
	_, isOpenAI = c.(*openAIClient)
	assert.True(t, isOpenAI, "openai is the default provider")
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-4o", payload["model"])

		msgs := payload["messages"].([]any)
		require.Len(t, msgs, 2)
		sys := msgs[0].(map[string]any)
		assert.Equal(t, "system", sys["role"])
		assert.Equal(t, "be terse", sys["content"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"answer text"}}]}`))
	}))
	defer srv.Close()

	c := newOpenAIClient(FactoryConfig{OpenAIKey: "k", SystemPrompt: "be terse"})
	c.endpoint = srv.URL

	got, err := c.Complete(context.Background(), "question?", Options{})
	require.NoError(t, err)
	assert.Equal(t, "answer text", got)
}

func TestClaudeComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		_, _ = w.Write([]byte(`{"content":[{"text":"claude says"}]}`))
	}))
	defer srv.Close()

	c := newClaudeClient(FactoryConfig{ClaudeKey: "k"})
	c.endpoint = srv.URL

	got, err := c.Complete(context.Background(), "question?", Options{Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "claude says", got)
}

func TestCompleteSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := newOpenAIClient(FactoryConfig{OpenAIKey: "bad"})
	c.endpoint = srv.URL
	_, err := c.Complete(context.Background(), "q", Options{})
	assert.ErrorContains(t, err, "status 401")

	cl := newClaudeClient(FactoryConfig{ClaudeKey: "bad"})
	cl.endpoint = srv.URL
	_, err = cl.Complete(context.Background(), "q", Options{})
	assert.ErrorContains(t, err, "status 401")
}

func TestOptionsMerge(t *testing.T) {
	defaults := Options{Model: "m", SystemPrompt: "s", Temperature: 0.5, MaxCompletionTokens: 100}
	merged := Options{Model: "other"}.merge(defaults)
	assert.Equal(t, "other", merged.Model)
	assert.Equal(t, "s", merged.SystemPrompt)
	assert.Equal(t, 0.5, merged.Temperature)
	assert.Equal(t, 100, merged.MaxCompletionTokens)
}
