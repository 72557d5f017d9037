// Package ai wraps the language-model providers behind one Complete call.
// The pipeline treats the model as a black box: no retry, no caching, no
// provider detail above this package.
package ai

import "context"

// Options tune one completion. Zero values fall back to client defaults.
type Options struct {
	Model               string
	SystemPrompt        string
	Temperature         float64
	MaxCompletionTokens int
}

// Client is the language-model collaborator: prompt in, text out.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

func (o Options) merge(defaults Options) Options {
	out := o
	if out.Model == "" {
		out.Model = defaults.Model
	}
	if out.SystemPrompt == "" {
		out.SystemPrompt = defaults.SystemPrompt
	}
	if out.Temperature == 0 {
		out.Temperature = defaults.Temperature
	}
	if out.MaxCompletionTokens == 0 {
		out.MaxCompletionTokens = defaults.MaxCompletionTokens
	}
	return out
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
