// Manual round-trip check for the persistence layer: writes a snapshot
// revision to MySQL, reads it back, then publishes and re-reads a report
// through Redis. Needs MYSQL_DSN and REDIS_URL.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/stake-plus/deepresearch/src/data"
	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/report"
	"github.com/stake-plus/deepresearch/src/snapshot"
)

func main() {
	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	db := data.MustMySQL(dsn)

	store := data.NewEvidenceStore(db)
	url := "https://example.com/storage-smoke"
	now := time.Now().UTC()
	content := "Round-trip probe written " + now.Format(time.RFC3339)

	latest, err := store.Latest(url)
	if err != nil {
		log.Fatalf("latest: %v", err)
	}
	revision := 1
	if latest != nil {
		revision = latest.Revision + 1
	}

	entry := snapshot.Entry{
		Evidence: evidence.Evidence{
			URL:         url,
			Title:       "Storage smoke",
			Content:     content,
			ContentHash: evidence.HashContent([]byte(content)),
			SourceType:  evidence.SourceSecondary,
			Revision:    revision,
			AccessedAt:  now,
		},
		TTLClass:  "default",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
	if err := store.SaveSnapshot(entry); err != nil {
		log.Fatalf("save snapshot: %v", err)
	}

	history, err := store.History(url)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	log.Printf("mysql: %d revision(s) of %s", len(history), url)
	for _, row := range history {
		log.Printf("  rev %d hash %s accessed %s", row.Revision, row.ContentHash,
			row.AccessedAt.Format(time.RFC3339))
	}

	rdb := data.MustRedis(getenvRedis())
	defer rdb.Close()
	ctx := context.Background()

	rep := &report.Report{RunID: "storage-smoke", Question: "probe", FinalAnswer: "n/a"}
	if err := data.PublishRun(ctx, rdb, rep); err != nil {
		log.Fatalf("publish run: %v", err)
	}
	payload, err := rep.JSON()
	if err != nil {
		log.Fatalf("encode report: %v", err)
	}
	if err := data.CacheReport(ctx, rdb, rep.RunID, payload); err != nil {
		log.Fatalf("cache report: %v", err)
	}
	back, err := data.CachedReport(ctx, rdb, rep.RunID)
	if err != nil {
		log.Fatalf("read cached report: %v", err)
	}
	if back == nil {
		log.Fatal("cached report missing after write")
	}
	log.Printf("redis: cached report %d bytes, run announced on stream", len(back))
}

func getenvRedis() string {
	return getenv("REDIS_URL", "redis://127.0.0.1:6379/0")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
