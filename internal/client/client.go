// Package client talks to the orgai HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suPer8Hu/orgai/internal/chat"
)

// DefaultTimeout bounds non-generation calls made by the console.
const DefaultTimeout = 30 * time.Second

// APIError is a non-zero envelope code.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d (code %d): %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL string
	hc      *http.Client
	token   string
}

// New returns a client for baseURL. A nil hc uses a client with no
// overall timeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// WithToken sets the bearer token sent on admin calls.
func (c *Client) WithToken(tok string) *Client {
	cp := *c
	cp.token = tok
	return &cp
}

// Meta is the first event of a stream.
type Meta struct {
	JobID   string `json:"job_id"`
	QueueNo int64  `json:"queue"`
	Mode    string `json:"mode"`
}

// Answer mirrors the POST /chat payload.
type Answer struct {
	JobID      string `json:"job_id"`
	QueueNo    int64  `json:"queue"`
	Mode       string `json:"mode"`
	Response   string `json:"response"`
	IsComplete bool   `json:"is_complete"`
	Sources    []struct {
		ID    string  `json:"id"`
		Title string  `json:"title"`
		Score float64 `json:"score"`
	} `json:"sources"`
}

// Ask waits for the whole answer. When the job fails the partial answer is
// returned together with the *APIError.
func (c *Client) Ask(ctx context.Context, req chat.Request) (*Answer, error) {
	var ans Answer
	err := c.do(ctx, http.MethodPost, "/chat", req, &ans)
	var apiErr *APIError
	if errors.As(err, &apiErr) && ans.JobID != "" {
		return &ans, err
	}
	if err != nil {
		return nil, err
	}
	return &ans, nil
}

// Stream posts req to /chat/stream and calls onEvent for each event until
// done or error. Heartbeats are skipped.
func (c *Client) Stream(ctx context.Context, req chat.Request, onMeta func(Meta), onEvent func(chat.StreamEvent)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return decodeEnvelope(resp, nil)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var event string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "ping":
				continue
			case "meta":
				var m Meta
				if err := json.Unmarshal([]byte(data), &m); err != nil {
					return fmt.Errorf("decode meta: %w", err)
				}
				if onMeta != nil {
					onMeta(m)
				}
				continue
			}
			var ev chat.StreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			onEvent(ev)
			if ev.Type == chat.EventDone || ev.Type == chat.EventError {
				return nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func (c *Client) Clear(ctx context.Context, user string) error {
	return c.do(ctx, http.MethodPost, "/chat/clear", map[string]string{"user": user}, nil)
}

// Health returns the raw health payload.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh asks the server to refresh one corpus. Needs an admin token.
func (c *Client) Refresh(ctx context.Context, corpusMode string) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodPost, "/admin/corpus/"+url.PathEscape(corpusMode)+"/refresh", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// decodeEnvelope fills out from data even on failure, so partial payloads
// reach the caller.
func decodeEnvelope(resp *http.Response, out any) error {
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Code: -1, Message: strings.TrimSpace(string(b))}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	if env.Code != 0 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return nil
}
