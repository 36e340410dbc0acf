package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/suPer8Hu/orgai/internal/ai"
	"github.com/suPer8Hu/orgai/internal/mode"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

var (
	ErrTimeout = errors.New("job timed out")
	ErrClosed  = errors.New("queue closed")
)

// Job is one generation request.
type Job struct {
	ID     string
	Mode   mode.Mode
	Prompt ai.Prompt
}

// Event is one status update for a job. Position is set on queued
// events (1 means next to run), Text on streaming events, Err on failed.
type Event struct {
	JobID    string
	Status   Status
	Position int
	Text     string
	Err      error
	At       time.Time
}

type state int

const (
	stateQueued state = iota
	stateRunning
	stateFinished
)

type entry struct {
	job      Job
	ctx      context.Context
	box      *mailbox
	enqueued time.Time
	state    state // guarded by Queue.mu
	timer    *time.Timer
}

// mailbox is an unbounded per-job event buffer so the worker never
// blocks on a slow reader.
type mailbox struct {
	mu     sync.Mutex
	events []Event
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(e Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.events = append(m.events, e)
	if e.Status.Terminal() {
		m.closed = true
	}
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Handle is the submitter's view of a queued job.
type Handle struct {
	ID  string
	box *mailbox
}

// Next returns the next event. After the terminal event it returns io.EOF.
func (h *Handle) Next(ctx context.Context) (Event, error) {
	for {
		h.box.mu.Lock()
		if len(h.box.events) > 0 {
			e := h.box.events[0]
			h.box.events = h.box.events[1:]
			h.box.mu.Unlock()
			return e, nil
		}
		closed := h.box.closed
		h.box.mu.Unlock()
		if closed {
			return Event{}, io.EOF
		}

		select {
		case <-h.box.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
