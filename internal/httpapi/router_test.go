package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/orgai/internal/ai"
	"github.com/suPer8Hu/orgai/internal/auth"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/metrics"
	"github.com/suPer8Hu/orgai/internal/queue"
	"github.com/suPer8Hu/orgai/internal/retrieval"
	"github.com/suPer8Hu/orgai/internal/session"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type cannedGen struct {
	chunks []string
	err    error
}

func (g cannedGen) Stream(ctx context.Context, p ai.Prompt) <-chan ai.Chunk {
	out := make(chan ai.Chunk, len(g.chunks)+1)
	for _, c := range g.chunks {
		out <- ai.Chunk{Text: c}
	}
	if g.err != nil {
		out <- ai.Chunk{Err: g.err}
	} else {
		out <- ai.Chunk{Done: true}
	}
	close(out)
	return out
}

func newTestRouter(t *testing.T, gen queue.Generator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	require.NoError(t, err)
	repo := chat.NewRepo(db)
	require.NoError(t, repo.Migrate())

	stats := metrics.NewCollector()
	store := corpus.NewStore(nil, nil, nil, nil)
	q := queue.New(gen, queue.Options{RunTimeout: 5 * time.Second, Stats: stats})
	t.Cleanup(func() { _ = q.Close() })

	svc := chat.NewService(
		retrieval.New(store, retrieval.Options{}),
		session.NewRegistry(10, time.Hour),
		q,
		chat.Options{Repo: repo, Stats: stats},
	)
	return NewRouter(Deps{
		Chat:           svc,
		Corpora:        store,
		Queue:          q,
		Stats:          stats,
		AdminJWTSecret: testSecret,
	})
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestChat_Success(t *testing.T) {
	r := newTestRouter(t, cannedGen{chunks: []string{"Credit score ", "of 640."}})

	w, env := do(t, r, http.MethodPost, "/chat", gin.H{"user": "alice", "prompt": "auto loan requirements", "mode": "policy"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var data struct {
		JobID      string `json:"job_id"`
		Queue      int    `json:"queue"`
		Mode       string `json:"mode"`
		Response   string `json:"response"`
		IsComplete bool   `json:"is_complete"`
		Sources    []struct {
			ID string `json:"id"`
		} `json:"sources"`
		Responses []struct {
			Response string `json:"response"`
		} `json:"responses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Credit score of 640.", data.Response)
	assert.True(t, data.IsComplete)
	assert.Equal(t, 1, data.Queue)
	assert.Equal(t, "policy", data.Mode)
	require.NotEmpty(t, data.Sources)
	assert.Equal(t, "POL-1001", data.Sources[0].ID)
	require.Len(t, data.Responses, 1)
	assert.Equal(t, data.Response, data.Responses[0].Response)

	w, env = do(t, r, http.MethodGet, "/chat/jobs/"+data.JobID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"done"`)

	w, env = do(t, r, http.MethodGet, "/chat/sessions/alice/jobs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Jobs []struct {
			ID     string `json:"job_id"`
			Status string `json:"status"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Jobs, 1)
	assert.Equal(t, data.JobID, listed.Jobs[0].ID)
	assert.Equal(t, "done", listed.Jobs[0].Status)
}

func TestChat_InvalidMode(t *testing.T) {
	r := newTestRouter(t, cannedGen{})

	w, env := do(t, r, http.MethodPost, "/chat", gin.H{"user": "u", "prompt": "hi", "mode": "sql"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40002, env.Code)
	assert.Contains(t, string(env.Data), chat.CodeInvalidMode)
}

func TestChat_BadJSON(t *testing.T) {
	r := newTestRouter(t, cannedGen{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_UpstreamFailureKeepsPartial(t *testing.T) {
	r := newTestRouter(t, cannedGen{chunks: []string{"partial"}, err: ai.ErrUpstreamUnavailable})

	w, env := do(t, r, http.MethodPost, "/chat", gin.H{"user": "u", "prompt": "remote work", "mode": "policy"}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 50201, env.Code)
	assert.NotContains(t, env.Message, "upstream unavailable:")

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "partial", data["response"])
	assert.Equal(t, false, data["is_complete"])
}

func TestChatStream_SSE(t *testing.T) {
	r := newTestRouter(t, cannedGen{chunks: []string{"one ", "two"}})

	w, _ := do(t, r, http.MethodPost, "/chat/stream", gin.H{"user": "u", "prompt": "customer table", "mode": "schema"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var types []string
	var content string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		types = append(types, ev.Type)
		content += ev.Content
	}
	assert.Equal(t, []string{"meta", "status", "status", "chunk", "chunk", "done"}, types)
	assert.Equal(t, "one two", content)
	assert.Contains(t, w.Body.String(), "event: chunk\n")
}

func TestChatStream_ValidationIsPlainJSON(t *testing.T) {
	r := newTestRouter(t, cannedGen{})

	w, env := do(t, r, http.MethodPost, "/chat/stream", gin.H{"user": "u", "prompt": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, env.Code)
}

func TestClearAndHistory(t *testing.T) {
	r := newTestRouter(t, cannedGen{chunks: []string{"ok"}})

	w, _ := do(t, r, http.MethodPost, "/chat", gin.H{"user": "bob", "prompt": "travel expense", "mode": "policy"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env := do(t, r, http.MethodGet, "/chat/sessions/bob/history", nil, nil)
	var hist struct {
		Turns []session.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hist))
	assert.Len(t, hist.Turns, 2)

	w, _ = do(t, r, http.MethodPost, "/chat/clear", gin.H{"user": "bob"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env = do(t, r, http.MethodGet, "/chat/sessions/bob/history", nil, nil)
	require.NoError(t, json.Unmarshal(env.Data, &hist))
	assert.Empty(t, hist.Turns)
}

func TestGetJob_NotFound(t *testing.T) {
	r := newTestRouter(t, cannedGen{})
	w, env := do(t, r, http.MethodGet, "/chat/jobs/01HZZZZZZZZZZZZZZZZZZZZZZZ", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40402, env.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, cannedGen{})

	w, env := do(t, r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Status  string          `json:"status"`
		Modes   []string        `json:"modes"`
		Corpora []corpus.Status `json:"corpora"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "degraded", data.Status, "mock-only corpora are degraded")
	assert.Equal(t, []string{"policy", "schema", "documentation"}, data.Modes)
	require.Len(t, data.Corpora, 3)
	assert.Equal(t, corpus.OriginMock, data.Corpora[0].Origin)
}

func TestAdminRefresh_Auth(t *testing.T) {
	r := newTestRouter(t, cannedGen{})

	w, _ := do(t, r, http.MethodPost, "/admin/corpus/policy/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userTok, err := auth.SignJWT("someone", "user", testSecret, time.Hour)
	require.NoError(t, err)
	w, _ = do(t, r, http.MethodPost, "/admin/corpus/policy/refresh", nil, http.Header{"Authorization": {"Bearer " + userTok}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminTok, err := auth.SignJWT("ops", auth.RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	bearer := http.Header{"Authorization": {"Bearer " + adminTok}}

	w, _ = do(t, r, http.MethodPost, "/admin/corpus/weather/refresh", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// mock-only corpus has no live source
	w, env := do(t, r, http.MethodPost, "/admin/corpus/policy/refresh", nil, bearer)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, string(env.Data), `"origin":"mock"`)
}

func TestChatWS(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, cannedGen{chunks: []string{"hello"}}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(gin.H{"user": "ws", "prompt": "hi", "mode": "bogus"}))
	var ev chat.StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, chat.EventError, ev.Type)
	assert.Equal(t, chat.CodeInvalidMode, ev.Code)

	require.NoError(t, conn.WriteJSON(gin.H{"user": "ws", "prompt": "onboarding", "mode": "docs"}))
	var got []chat.EventType
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev chat.StreamEvent
		require.NoError(t, conn.ReadJSON(&ev))
		got = append(got, ev.Type)
		if ev.Type == chat.EventDone || ev.Type == chat.EventError {
			break
		}
	}
	assert.Equal(t, []chat.EventType{chat.EventStatus, chat.EventStatus, chat.EventChunk, chat.EventDone}, got)
}
