package webserver

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/deepresearch/src/data"
	"github.com/stake-plus/deepresearch/src/pipeline"
)

// Research serves run submission and retrieval. Runs execute synchronously
// inside the request; the rate limiter keeps that honest.
type Research struct {
	runner  Runner
	runs    *data.RunStore
	rdb     *redis.Client
	budget  int
	timeout time.Duration
}

func NewResearch(runner Runner, runs *data.RunStore, rdb *redis.Client, budget int, timeout time.Duration) *Research {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Research{runner: runner, runs: runs, rdb: rdb, budget: budget, timeout: timeout}
}

func (h *Research) Create(c *gin.Context) {
	var req struct {
		Question       string `json:"question" binding:"required"`
		Sources        int    `json:"sources"`
		MathExpression string `json:"math_expression"`
		AsOf           string `json:"as_of"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "question required"})
		return
	}

	var asOf time.Time
	if req.AsOf != "" {
		t, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "as_of must be YYYY-MM-DD"})
			return
		}
		asOf = t
	}
	sources := req.Sources
	if sources <= 0 {
		sources = h.budget
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	rep, err := h.runner.Execute(ctx, pipeline.Request{
		Question:       req.Question,
		AsOf:           asOf,
		Sources:        sources,
		MathExpression: req.MathExpression,
	})
	if err != nil {
		log.Printf("webserver: run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "research run failed"})
		return
	}

	if err := h.runs.Save(rep); err != nil {
		log.Printf("webserver: save run %s: %v", rep.RunID, err)
	}
	if payload, err := rep.JSON(); err == nil {
		if err := data.CacheReport(c.Request.Context(), h.rdb, rep.RunID, payload); err != nil {
			log.Printf("webserver: cache report %s: %v", rep.RunID, err)
		}
	}
	if err := data.PublishRun(c.Request.Context(), h.rdb, rep); err != nil {
		log.Printf("webserver: publish run %s: %v", rep.RunID, err)
	}

	c.JSON(http.StatusOK, rep)
}

func (h *Research) Get(c *gin.Context) {
	id := c.Param("id")

	payload, err := data.CachedReport(c.Request.Context(), h.rdb, id)
	if err != nil {
		log.Printf("webserver: report cache read %s: %v", id, err)
	}
	if payload != nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	row, err := h.runs.Get(id)
	if err != nil {
		log.Printf("webserver: load run %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not load run"})
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "run not found"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(row.Report))
}

func (h *Research) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, err := h.runs.Recent(limit)
	if err != nil {
		log.Printf("webserver: list runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not list runs"})
		return
	}

	type runSummary struct {
		ID         string    `json:"id"`
		Question   string    `json:"question"`
		AsOfDate   string    `json:"as_of_date"`
		StopReason string    `json:"stop_reason,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]runSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, runSummary{
			ID:         r.ID,
			Question:   r.Question,
			AsOfDate:   r.AsOfDate,
			StopReason: r.StopReason,
			CreatedAt:  r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}
