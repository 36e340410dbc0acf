package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(chunks <-chan string, errs <-chan error) (string, error) {
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	return b.String(), <-errs
}

func TestOllamaStreamChat(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		for _, tok := range []string{"Auto ", "loans ", "need 640."} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", tok)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "qwen", Options{Temperature: 0.3, NumCtx: 4096})
	text, err := collect(p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}))

	require.NoError(t, err)
	assert.Equal(t, "Auto loans need 640.", text)
	assert.True(t, got.Stream)
	assert.Equal(t, "qwen", got.Model)
	assert.Equal(t, 0.3, got.Options["temperature"])
	assert.EqualValues(t, 4096, got.Options["num_ctx"])
	assert.NotContains(t, got.Options, "top_p")
}

func TestOllamaStreamChat_MidStreamErrorKeepsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial "},"done":false}`)
		fmt.Fprintln(w, `{"error":"model runner crashed"}`)
	}))
	defer srv.Close()

	text, err := collect(NewOllamaProvider(srv.URL, "m", Options{}).StreamChat(context.Background(), nil))
	assert.Equal(t, "partial ", text)
	assert.ErrorIs(t, err, ErrUpstreamError)
	assert.Contains(t, err.Error(), "model runner crashed")
}

func TestOllamaStreamChat_TruncatedStreamIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"half"},"done":false}`)
	}))
	defer srv.Close()

	text, err := collect(NewOllamaProvider(srv.URL, "m", Options{}).StreamChat(context.Background(), nil))
	assert.Equal(t, "half", text)
	assert.ErrorIs(t, err, ErrUpstreamError)
}

func TestOllama_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOllamaProvider(url, "m", Options{})
	_, err := p.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = collect(p.StreamChat(context.Background(), nil))
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestOllamaChat_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusServiceUnavailable, ErrUpstreamUnavailable},
		{http.StatusBadGateway, ErrUpstreamUnavailable},
		{http.StatusNotFound, ErrUpstreamError},
		{http.StatusInternalServerError, ErrUpstreamError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"model 'm' not found"}`))
			}))
			defer srv.Close()

			_, err := NewOllamaProvider(srv.URL, "m", Options{}).Chat(context.Background(), nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"done"}}`))
	}))
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "m", Options{}).Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}
