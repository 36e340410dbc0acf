package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/orgai/internal/chat"
)

func TestAsk_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		var req chat.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.User)
		assert.Equal(t, "policy", req.Mode)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code":0,"message":"ok","data":{"job_id":"J1","queue":3,"mode":"policy","response":"hi","is_complete":true,"sources":[{"id":"POL-1001","title":"Auto Loans","score":0.8}]}}`)
	}))
	defer srv.Close()

	ans, err := New(srv.URL, nil).Ask(context.Background(), chat.Request{User: "alice", Prompt: "loans", Mode: "policy"})
	require.NoError(t, err)
	assert.Equal(t, "J1", ans.JobID)
	assert.Equal(t, int64(3), ans.QueueNo)
	assert.True(t, ans.IsComplete)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "POL-1001", ans.Sources[0].ID)
}

func TestAsk_FailureKeepsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"code":50201,"message":"The language model is unavailable.","data":{"error":"upstream_unavailable","job_id":"J2","response":"Part","is_complete":false}}`)
	}))
	defer srv.Close()

	ans, err := New(srv.URL, nil).Ask(context.Background(), chat.Request{User: "a", Prompt: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, 50201, apiErr.Code)
	require.NotNil(t, ans)
	assert.Equal(t, "Part", ans.Response)
	assert.False(t, ans.IsComplete)
}

func TestAsk_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":40002,"message":"unknown mode","data":{"error":"invalid_mode"}}`)
	}))
	defer srv.Close()

	ans, err := New(srv.URL, nil).Ask(context.Background(), chat.Request{User: "a", Prompt: "q", Mode: "legal"})
	assert.Nil(t, ans)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 40002, apiErr.Code)
}

func TestStream_ParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: meta\ndata: {\"type\":\"meta\",\"job_id\":\"J3\",\"queue\":1,\"mode\":\"schema\"}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\",\"ts\":1}\n\n")
		fmt.Fprint(w, "event: status\ndata: {\"type\":\"status\",\"message\":\"Queued.\"}\n\n")
		fmt.Fprint(w, "event: chunk\ndata: {\"type\":\"chunk\",\"content\":\"Customers \"}\n\n")
		fmt.Fprint(w, "event: chunk\ndata: {\"type\":\"chunk\",\"content\":\"table\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"type\":\"done\",\"job_id\":\"J3\"}\n\n")
	}))
	defer srv.Close()

	var meta Meta
	var types []chat.EventType
	var text string
	err := New(srv.URL, nil).Stream(context.Background(), chat.Request{User: "a", Prompt: "q"},
		func(m Meta) { meta = m },
		func(ev chat.StreamEvent) {
			types = append(types, ev.Type)
			text += ev.Content
		})
	require.NoError(t, err)
	assert.Equal(t, "J3", meta.JobID)
	assert.Equal(t, "schema", meta.Mode)
	assert.Equal(t, []chat.EventType{chat.EventStatus, chat.EventChunk, chat.EventChunk, chat.EventDone}, types)
	assert.Equal(t, "Customers table", text)
}

func TestStream_TruncatedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: chunk\ndata: {\"type\":\"chunk\",\"content\":\"x\"}\n\n")
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Stream(context.Background(), chat.Request{User: "a", Prompt: "q"}, nil, func(chat.StreamEvent) {})
	assert.Error(t, err)
}

func TestStream_RejectedBeforeStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":40001,"message":"prompt is empty","data":{"error":"invalid_request"}}`)
	}))
	defer srv.Close()

	called := false
	err := New(srv.URL, nil).Stream(context.Background(), chat.Request{User: "a"}, nil, func(chat.StreamEvent) { called = true })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 40001, apiErr.Code)
	assert.False(t, called)
}

func TestRefresh_SendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/corpus/policy/refresh", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code":0,"message":"ok","data":{"corpus":{"name":"policy","origin":"live"}}}`)
	}))
	defer srv.Close()

	out, err := New(srv.URL, nil).WithToken("tok").Refresh(context.Background(), "policy")
	require.NoError(t, err)
	assert.Contains(t, out, "corpus")
}

func TestClear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob", body["user"])
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code":0,"message":"ok","data":{"user":"bob","cleared":true}}`)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, nil).Clear(context.Background(), "bob"))
}
