package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stake-plus/deepresearch/src/ai"
	"github.com/stake-plus/deepresearch/src/config"
)

var (
	providerFlag = flag.String("provider", "", "Override AI_PROVIDER (openai|claude)")
	modelFlag    = flag.String("model", "", "Override model name")
	systemFlag   = flag.String("system", "", "Override system prompt")
	promptFlag   = flag.String("prompt", defaultPrompt, "Prompt to send")
	timeoutFlag  = flag.Duration("timeout", 45*time.Second, "Completion timeout")
	tempFlag     = flag.Float64("temp", 0.2, "Completion temperature")
	maxLenFlag   = flag.Int("max-bytes", 1200, "Maximum bytes of output to print (0=unlimited)")
)

const defaultPrompt = "Label the claim below against the evidence excerpt.\n\n" +
	"CLAIM: The fund closed above 400 on the last trading day.\n" +
	"EVIDENCE [https://example.com/quote]: The fund closed at 412.10 yesterday.\n\n" +
	"Reply with one of: SUPPORTED, CONTRADICTED, UNSUPPORTED."

func main() {
	log.SetFlags(0)
	flag.Parse()

	aiEnv := config.LoadAIFromEnv()
	if !aiEnv.Enabled() {
		log.Fatal("no provider key set (OPENAI_API_KEY or CLAUDE_API_KEY)")
	}
	provider := pickFirst(*providerFlag, aiEnv.Provider)

	client := ai.NewClient(ai.FactoryConfig{
		Provider:     provider,
		OpenAIKey:    aiEnv.OpenAIKey,
		ClaudeKey:    aiEnv.ClaudeKey,
		Model:        pickFirst(*modelFlag, aiEnv.Model),
		SystemPrompt: pickFirst(*systemFlag, aiEnv.SystemPrompt),
		Temperature:  *tempFlag,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	reply, err := client.Complete(ctx, *promptFlag, ai.Options{})
	if err != nil {
		log.Fatalf("[%s] %v", provider, err)
	}
	fmt.Printf("=== %s (%.1fs) ===\n%s\n", provider, time.Since(start).Seconds(),
		truncate(reply, *maxLenFlag))
}

func pickFirst(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:limit]) + "...(truncated)"
}
