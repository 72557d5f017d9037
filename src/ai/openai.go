package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stake-plus/deepresearch/src/webclient"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type openAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   Options
}

func newOpenAIClient(cfg FactoryConfig) *openAIClient {
	return &openAIClient{
		apiKey:     cfg.OpenAIKey,
		endpoint:   openAIEndpoint,
		httpClient: webclient.NewDefault(300 * time.Second),
		defaults: Options{
			Model:               valueOrDefault(cfg.Model, "gpt-4o"),
			Temperature:         orFloat(cfg.Temperature, 0.2),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, 4096),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}
}

func (c *openAIClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	merged := opts.merge(c.defaults)
	messages := []map[string]string{}
	if merged.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": merged.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})
	payload := map[string]interface{}{
		"model":       merged.Model,
		"messages":    messages,
		"temperature": merged.Temperature,
		"max_tokens":  merged.MaxCompletionTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	status, body, err := webclient.PostJSON(ctx, c.httpClient, c.endpoint, headers, payload)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("openai: status %d: %s", status, string(body))
	}
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("openai: parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return result.Choices[0].Message.Content, nil
}
