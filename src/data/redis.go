package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/deepresearch/src/report"
)

const (
	streamRuns     = "deepresearch.runs"
	reportPrefix   = "deepresearch:report:"
	reportCacheTTL = 24 * time.Hour
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// PublishRun announces a finished run on the runs stream so downstream
// consumers (bots, indexers) can react without polling MySQL.
func PublishRun(ctx context.Context, rdb *redis.Client, rep *report.Report) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamRuns,
		Values: map[string]interface{}{
			"run_id":      rep.RunID,
			"question":    rep.Question,
			"as_of":       rep.Assumptions.AsOfDate,
			"citations":   len(rep.Citations),
			"stop_reason": rep.StopReason,
		},
	}).Result()
	return err
}

// CacheReport keeps the rendered report JSON hot for the API's GET path.
func CacheReport(ctx context.Context, rdb *redis.Client, runID string, payload []byte) error {
	if rdb == nil {
		return nil
	}
	return rdb.Set(ctx, reportPrefix+runID, payload, reportCacheTTL).Err()
}

// CachedReport returns a previously cached report, or nil when absent.
func CachedReport(ctx context.Context, rdb *redis.Client, runID string) ([]byte, error) {
	if rdb == nil {
		return nil, nil
	}
	payload, err := rdb.Get(ctx, reportPrefix+runID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return payload, err
}
