package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/orgai/internal/common"
	"github.com/suPer8Hu/orgai/internal/mode"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// Health reports queue state and per-corpus origin. A corpus serving
// cache or mock data marks the service degraded but still 200.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	var degraded []string
	for _, err := range h.Corpora.Degraded() {
		degraded = append(degraded, err.Error())
	}
	if len(degraded) > 0 {
		status = "degraded"
	}

	modes := []string{}
	for _, m := range mode.Concrete {
		if h.Svc.Modes().Enabled(m) {
			modes = append(modes, m.String())
		}
	}

	common.OK(c, gin.H{
		"status": status,
		"modes":  modes,
		"queue": gin.H{
			"depth":   h.Queue.Depth(),
			"running": h.Queue.Running(),
		},
		"corpora":  h.Corpora.Status(),
		"degraded": degraded,
		"metrics":  h.Stats.Snapshot(),
	})
}

// Metrics exposes the raw collector snapshot.
func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stats.Snapshot())
}
