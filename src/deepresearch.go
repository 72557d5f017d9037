package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/deepresearch/src/ai"
	"github.com/stake-plus/deepresearch/src/config"
	"github.com/stake-plus/deepresearch/src/data"
	"github.com/stake-plus/deepresearch/src/extract"
	"github.com/stake-plus/deepresearch/src/pipeline"
	"github.com/stake-plus/deepresearch/src/search"
	"github.com/stake-plus/deepresearch/src/snapshot"
	"github.com/stake-plus/deepresearch/src/verify"
	"github.com/stake-plus/deepresearch/src/webserver"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatalf("config: JWT_SECRET is required")
	}
	if cfg.TavilyKey == "" {
		log.Fatalf("config: TAVILY_API_KEY is required")
	}

	policy := loadPolicy(cfg.PolicyPath)
	store := snapshot.NewStore(policy)

	var runs *data.RunStore
	if cfg.MySQLDSN != "" {
		db := data.MustMySQL(cfg.MySQLDSN)
		store.SetPersister(data.NewEvidenceStore(db))
		runs = data.NewRunStore(db)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = data.MustRedis(cfg.RedisURL)
	}

	deps := pipeline.Deps{
		Store:    store,
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
	} else {
		log.Printf("ai: no provider key set, using lexical verification and template synthesis")
	}

	coord := pipeline.New(deps, pipeline.Config{
		MaxParallel:  cfg.MaxParallel,
		FetchTimeout: cfg.FetchTimeout,
	})

	router := webserver.New(cfg, webserver.Deps{
		Runner: coord,
		Store:  store,
		Runs:   runs,
		Redis:  rdb,
	})
	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("deepresearch API listening on %s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}

func loadPolicy(path string) *snapshot.Policy {
	if path == "" {
		return snapshot.DefaultPolicy()
	}
	p, err := snapshot.LoadPolicy(path)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	return p
}
