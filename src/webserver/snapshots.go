package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/snapshot"
)

// Snapshots is read-only inspection of the in-memory snapshot store.
type Snapshots struct {
	store *snapshot.Store
}

func NewSnapshots(store *snapshot.Store) *Snapshots {
	return &Snapshots{store: store}
}

func (h *Snapshots) Get(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "url query parameter required"})
		return
	}
	url, err := evidence.NormalizeURL(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid url"})
		return
	}

	entry, ok := h.store.Get(url)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"err": "no snapshot for url"})
		return
	}

	history := append(h.store.History(url), entry.Evidence)
	revisions := make([]gin.H, 0, len(history))
	for _, ev := range history {
		revisions = append(revisions, gin.H{
			"revision":     ev.Revision,
			"content_hash": ev.ContentHash,
			"accessed_at":  ev.AccessedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"evidence":   entry.Evidence,
		"ttl_class":  entry.TTLClass,
		"expires_at": entry.ExpiresAt,
		"stale":      h.store.IsStale(url, ""),
		"revisions":  revisions,
	})
}
