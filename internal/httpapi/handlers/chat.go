package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/common"
	"gorm.io/gorm"
)

const heartbeatInterval = 15 * time.Second

type chatReq struct {
	User   string `json:"user"`
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
}

func (r chatReq) request() chat.Request {
	return chat.Request{User: r.User, Prompt: r.Prompt, Mode: r.Mode}
}

// Chat answers once the whole response is ready.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ans, err := h.Svc.Ask(c.Request.Context(), req.request())
	if err != nil {
		if ans == nil {
			failErr(c, err, nil)
			return
		}
		code, _ := chat.Describe(err)
		failErr(c, err, gin.H{
			"error":       code,
			"job_id":      ans.JobID,
			"queue":       ans.QueueNo,
			"mode":        ans.Mode,
			"response":    ans.Response,
			"is_complete": false,
		})
		return
	}

	common.OK(c, gin.H{
		"job_id":      ans.JobID,
		"queue":       ans.QueueNo,
		"mode":        ans.Mode,
		"response":    ans.Response,
		"is_complete": ans.IsComplete,
		"sources":     ans.Sources,
		// shape the legacy web client reads
		"responses": []gin.H{{
			"queue":       ans.QueueNo,
			"response":    ans.Response,
			"is_complete": ans.IsComplete,
		}},
	})
}

// ChatStream delivers the answer as server-sent events.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, 50003, "streaming unsupported")
		return
	}

	ctx := c.Request.Context()
	st, err := h.Svc.AskStream(ctx, req.request())
	if err != nil {
		failErr(c, err, nil)
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Header("X-Job-ID", st.JobID)
	c.Status(http.StatusOK)

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			// last-resort: send a simple error that won't break SSE framing
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"type\":\"error\",\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	writeJSON("meta", gin.H{
		"type":    "meta",
		"job_id":  st.JobID,
		"queue":   st.QueueNo,
		"mode":    st.Mode,
		"sources": st.Sources,
	})

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-st.Events:
			if !ok {
				return
			}
			writeJSON(string(ev.Type), ev)
			if ev.Type == chat.EventDone || ev.Type == chat.EventError {
				return
			}

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case <-ctx.Done():
			return
		}
	}
}

// ChatWS serves the same event protocol over a WebSocket. Each text
// message from the client is one request; requests run one at a time.
func (h *Handler) ChatWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	for {
		var req chatReq
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		st, err := h.Svc.AskStream(ctx, req.request())
		if err != nil {
			code, msg := chat.Describe(err)
			if err := conn.WriteJSON(chat.StreamEvent{Type: chat.EventError, Code: code, Message: msg}); err != nil {
				return
			}
			continue
		}

		for ev := range st.Events {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				// client gone; the job keeps running server-side
				h.Logger.Info("websocket write failed", "job_id", st.JobID, "error", err)
				return
			}
		}
	}
}

type clearReq struct {
	User string `json:"user"`
}

func (h *Handler) ClearChat(c *gin.Context) {
	var req clearReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Svc.Clear(req.User); err != nil {
		failErr(c, err, nil)
		return
	}
	common.OK(c, gin.H{"user": req.User, "cleared": true})
}

func (h *Handler) History(c *gin.Context) {
	user := c.Param("user")
	turns := h.Svc.History(user)
	common.OK(c, gin.H{
		"user":  user,
		"turns": turns,
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 40001, "job_id required")
		return
	}

	j, err := h.Svc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
		case errors.Is(err, chat.ErrNoLedger):
			common.Fail(c, http.StatusNotImplemented, 50101, "job ledger disabled")
		default:
			h.Logger.Error("get job failed", "job_id", jobID, "error", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		}
		return
	}

	common.OK(c, gin.H{"job": j})
}

func (h *Handler) ListChatJobs(c *gin.Context) {
	user := c.Param("user")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.Svc.ListJobs(c.Request.Context(), user, limit)
	if err != nil {
		if errors.Is(err, chat.ErrNoLedger) {
			common.Fail(c, http.StatusNotImplemented, 50101, "job ledger disabled")
			return
		}
		failErr(c, err, nil)
		return
	}
	common.OK(c, gin.H{"user": user, "jobs": jobs})
}
