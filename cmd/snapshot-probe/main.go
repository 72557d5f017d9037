package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/extract"
	"github.com/stake-plus/deepresearch/src/snapshot"
)

var (
	urlFlag     = flag.String("url", "", "Document URL to probe (required)")
	fetchFlag   = flag.Bool("fetch", false, "Fetch and extract the full snapshot instead of only probing")
	policyFlag  = flag.String("policy", "", "YAML TTL policy overlay (default built-in)")
	timeoutFlag = flag.Duration("timeout", 30*time.Second, "Request timeout")
	maxLenFlag  = flag.Int("max-bytes", 1200, "Maximum bytes of extracted text to print (0=unlimited)")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if *urlFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	url, err := evidence.NormalizeURL(*urlFlag)
	if err != nil {
		log.Fatalf("url: %v", err)
	}

	policy := snapshot.DefaultPolicy()
	if *policyFlag != "" {
		policy, err = snapshot.LoadPolicy(*policyFlag)
		if err != nil {
			log.Fatalf("policy: %v", err)
		}
	}
	worker := extract.NewWorker(policy, nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	domain := evidence.Domain(url)
	class := policy.ResolveClass(domain)
	fmt.Printf("url:        %s\n", url)
	fmt.Printf("key:        %s\n", evidence.Key(url))
	fmt.Printf("domain:     %s\n", domain)
	fmt.Printf("ttl class:  %s (%s)\n", class, policy.TTL(class))
	fmt.Printf("source:     %s\n", policy.SourceType(domain))

	if !*fetchFlag {
		hash, err := worker.Probe(ctx, url)
		if err != nil {
			log.Fatalf("probe: %v", err)
		}
		fmt.Printf("raw hash:   %s\n", hash)
		return
	}

	ev, err := worker.Fetch(ctx, url)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	fmt.Printf("raw hash:   %s\n", ev.ContentHash)
	fmt.Printf("title:      %s\n", ev.Title)
	fmt.Printf("accessed:   %s\n", ev.AccessedAt.Format(time.RFC3339))
	fmt.Printf("\n%s\n", truncate(ev.Content, *maxLenFlag))
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "...(truncated)"
}
