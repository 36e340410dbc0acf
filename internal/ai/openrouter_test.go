package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"lo"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "openrouter/auto", "", "", Options{})
	text, err := collect(p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestOpenRouter_RequiresKey(t *testing.T) {
	p := NewOpenRouterProvider("", "", "m", "", "", Options{})
	_, err := p.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestOpenRouterChat_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenRouterProvider(srv.URL, "key", "m", "", "", Options{}).Chat(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUpstreamError)
	assert.Contains(t, err.Error(), "rate limited")
}
