// Package webserver exposes the research pipeline over HTTP: token auth,
// run submission, run retrieval, and snapshot inspection.
package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/deepresearch/src/config"
	"github.com/stake-plus/deepresearch/src/data"
	"github.com/stake-plus/deepresearch/src/pipeline"
	"github.com/stake-plus/deepresearch/src/report"
	"github.com/stake-plus/deepresearch/src/snapshot"
)

// Runner is the pipeline seen from HTTP handlers.
type Runner interface {
	Execute(ctx context.Context, req pipeline.Request) (*report.Report, error)
}

// Deps are the handler collaborators. Runs and Redis may be nil; the
// affected endpoints then serve from memory only.
type Deps struct {
	Runner Runner
	Store  *snapshot.Store
	Runs   *data.RunStore
	Redis  *redis.Client
}

func New(cfg config.Config, deps Deps) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, deps)
	return g
}

func attachRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := NewAuth(cfg.APIKey, []byte(cfg.JWTSecret))
	researchH := NewResearch(deps.Runner, deps.Runs, deps.Redis, cfg.SourceBudget, cfg.RunTimeout)
	snapH := NewSnapshots(deps.Store)

	limiter := NewRateLimiter(10, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/token", authH.Token)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		secured.POST("/research", RateLimitMiddleware(limiter), researchH.Create)
		secured.GET("/runs/:id", researchH.Get)
		secured.GET("/runs", researchH.List)
		secured.GET("/snapshots", snapH.Get)
	}
}
