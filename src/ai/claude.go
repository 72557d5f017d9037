package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stake-plus/deepresearch/src/webclient"
)

const claudeEndpoint = "https://api.anthropic.com/v1/messages"

type claudeClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   Options
}

func newClaudeClient(cfg FactoryConfig) *claudeClient {
	return &claudeClient{
		apiKey:     cfg.ClaudeKey,
		endpoint:   claudeEndpoint,
		httpClient: webclient.NewDefault(300 * time.Second),
		defaults: Options{
			Model:               valueOrDefault(cfg.Model, "claude-3-5-sonnet-20241022"),
			Temperature:         orFloat(cfg.Temperature, 0.2),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, 4096),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}
}

func (c *claudeClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	merged := opts.merge(c.defaults)
	payload := map[string]interface{}{
		"model": merged.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  merged.MaxCompletionTokens,
		"temperature": merged.Temperature,
	}
	if merged.SystemPrompt != "" {
		payload["system"] = merged.SystemPrompt
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	status, body, err := webclient.PostJSON(ctx, c.httpClient, c.endpoint, headers, payload)
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("claude: status %d: %s", status, string(body))
	}
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("claude: parse response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("claude: empty response")
	}
	return result.Content[0].Text, nil
}
