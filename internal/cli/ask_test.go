package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/client"
)

// fakeServer answers /chat with the prompt echoed back and records calls.
type fakeServer struct {
	mu      sync.Mutex
	modes   []string
	cleared []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/chat":
		var req chat.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.modes = append(f.modes, req.Mode)
		f.mu.Unlock()
		if req.Mode == "legal" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":40002,"message":"unknown mode \"legal\"","data":{"error":"invalid_mode"}}`)
			return
		}
		fmt.Fprintf(w, `{"code":0,"message":"ok","data":{"job_id":"J","queue":1,"mode":"policy","response":"echo: %s","is_complete":true,"sources":[{"id":"POL-1001"}]}}`, req.Prompt)
	case "/chat/clear":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.cleared = append(f.cleared, body["user"])
		f.mu.Unlock()
		fmt.Fprint(w, `{"code":0,"message":"ok","data":{"cleared":true}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":40400,"message":"route not found","data":null}`)
	}
}

func TestInteractive_Session(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	userID = "carol"
	in := strings.NewReader("credit score?\n/mode legal\nanything\n/mode schema\ncolumns\n/clear\n/quit\nnever sent\n")
	var out bytes.Buffer

	err := interactive(context.Background(), client.New(srv.URL, nil), in, &out, "auto", false)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "echo: credit score?")
	assert.Contains(t, text, "[policy mode, sources: POL-1001]")
	assert.Contains(t, text, `error: unknown mode "legal"`)
	assert.Contains(t, text, "echo: columns")
	assert.Contains(t, text, "history cleared")
	assert.NotContains(t, text, "never sent")

	assert.Equal(t, []string{"auto", "legal", "schema"}, fake.modes)
	assert.Equal(t, []string{"carol"}, fake.cleared)
}

func TestAskOnce_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: meta\ndata: {\"job_id\":\"J9\",\"queue\":2,\"mode\":\"documentation\"}\n\n")
		fmt.Fprint(w, "event: status\ndata: {\"type\":\"status\",\"message\":\"Queued.\"}\n\n")
		fmt.Fprint(w, "event: chunk\ndata: {\"type\":\"chunk\",\"content\":\"Run make \"}\n\n")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"code\":\"timeout\",\"message\":\"The request timed out.\"}\n\n")
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := askOnce(context.Background(), client.New(srv.URL, nil), &out,
		chat.Request{User: "u", Prompt: "how to build", Mode: "docs"}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, out.String(), "[job J9, #2, documentation]")
	assert.Contains(t, out.String(), "... Queued.")
	assert.Contains(t, out.String(), "Run make ")
}
