package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/orgai/internal/common"
	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/httpapi/middleware"
	"github.com/suPer8Hu/orgai/internal/mode"
)

const refreshTimeout = 2 * time.Minute

// RefreshCorpus runs a synchronous refresh of one corpus.
func (h *Handler) RefreshCorpus(c *gin.Context) {
	m, err := mode.Parse(c.Param("mode"))
	if err != nil || !m.IsConcrete() {
		common.Fail(c, http.StatusBadRequest, 40002, "unknown corpus mode")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	start := time.Now()
	err = h.Corpora.Refresh(ctx, m)
	h.Logger.Info("admin corpus refresh",
		"mode", m.String(),
		"admin", c.GetString(middleware.AdminSubjectKey),
		"took", time.Since(start),
		"error", err,
	)

	var status corpus.Status
	for _, st := range h.Corpora.Status() {
		if st.Name == m.String() {
			status = st
		}
	}

	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, corpus.ErrNoSource) {
			code = http.StatusConflict
		}
		common.FailWithData(c, code, 50204, "refresh failed; previous snapshot kept", gin.H{"corpus": status})
		return
	}
	common.OK(c, gin.H{"corpus": status})
}
