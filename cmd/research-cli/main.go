package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/stake-plus/deepresearch/src/ai"
	"github.com/stake-plus/deepresearch/src/config"
	"github.com/stake-plus/deepresearch/src/extract"
	"github.com/stake-plus/deepresearch/src/pipeline"
	"github.com/stake-plus/deepresearch/src/search"
	"github.com/stake-plus/deepresearch/src/snapshot"
	"github.com/stake-plus/deepresearch/src/verify"
)

var (
	questionFlag = flag.String("question", "", "Research question (required)")
	sourcesFlag  = flag.Int("sources", 0, "Sources to snapshot (default SOURCE_BUDGET)")
	mathFlag     = flag.String("math", "", "Arithmetic expression to evaluate alongside the run")
	asOfFlag     = flag.String("as-of", "", "Freshness reference date, YYYY-MM-DD (default today)")
	jsonFlag     = flag.Bool("json", false, "Print the report as JSON instead of text")
	timeoutFlag  = flag.Duration("timeout", 5*time.Minute, "Whole-run timeout")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if *questionFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.TavilyKey == "" {
		log.Fatal("TAVILY_API_KEY is required")
	}

	var asOf time.Time
	if *asOfFlag != "" {
		t, err := time.Parse("2006-01-02", *asOfFlag)
		if err != nil {
			log.Fatalf("invalid -as-of: %v", err)
		}
		asOf = t
	}

	policy := snapshot.DefaultPolicy()
	if cfg.PolicyPath != "" {
		p, err := snapshot.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			log.Fatalf("policy: %v", err)
		}
		policy = p
	}

	deps := pipeline.Deps{
		Store:    snapshot.NewStore(policy),
		Fetcher:  extract.NewWorker(policy, nil),
		Searcher: search.NewTavilyClient(cfg.TavilyKey),
		Policy:   policy,
	}
	if cfg.AI.Enabled() {
		client := ai.NewClient(ai.FactoryConfig{
			Provider:     cfg.AI.Provider,
			OpenAIKey:    cfg.AI.OpenAIKey,
			ClaudeKey:    cfg.AI.ClaudeKey,
			Model:        cfg.AI.Model,
			SystemPrompt: cfg.AI.SystemPrompt,
		})
		deps.Verifier = verify.New(verify.NewLLMMatcher(client))
		deps.Claims = pipeline.NewLLMClaimExtractor(client)
		deps.Synth = pipeline.NewLLMSynthesizer(client)
	}

	coord := pipeline.New(deps, pipeline.Config{
		MaxParallel:  cfg.MaxParallel,
		FetchTimeout: cfg.FetchTimeout,
	})

	sources := *sourcesFlag
	if sources <= 0 {
		sources = cfg.SourceBudget
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	rep, err := coord.Execute(ctx, pipeline.Request{
		Question:       *questionFlag,
		AsOf:           asOf,
		Sources:        sources,
		MathExpression: *mathFlag,
	})
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	if *jsonFlag {
		payload, err := rep.JSON()
		if err != nil {
			log.Fatalf("encode report: %v", err)
		}
		fmt.Println(string(payload))
		return
	}
	fmt.Print(rep.RenderText())
}
