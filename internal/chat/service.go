// Package chat validates requests, resolves their mode, retrieves context
// and drives generation jobs through the admission queue.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/orgai/internal/common"
	"github.com/suPer8Hu/orgai/internal/metrics"
	"github.com/suPer8Hu/orgai/internal/mode"
	"github.com/suPer8Hu/orgai/internal/queue"
	"github.com/suPer8Hu/orgai/internal/retrieval"
	"github.com/suPer8Hu/orgai/internal/session"
)

// Searcher is the retrieval side. *retrieval.Retriever satisfies it.
type Searcher interface {
	Search(m mode.Mode, query string, maxResults int) []retrieval.Passage
	Resolve(query string, enabled mode.Set) mode.Mode
}

// Submitter is the admission side. *queue.Queue satisfies it.
type Submitter interface {
	Submit(ctx context.Context, job queue.Job) (*queue.Handle, error)
}

// StatusPublisher receives job lifecycle changes.
type StatusPublisher interface {
	PublishJobStatus(ctx context.Context, jobID, user, status string) error
}

type Options struct {
	Modes     mode.Set
	Repo      *Repo // optional job ledger
	Publisher StatusPublisher
	Logger    *slog.Logger
	Stats     *metrics.Collector
}

type Service struct {
	search   Searcher
	sessions *session.Registry
	queue    Submitter
	repo     *Repo
	pub      StatusPublisher
	modes    mode.Set
	log      *slog.Logger
	stats    *metrics.Collector

	mu       sync.Mutex
	queueNos map[string]int64
}

func NewService(search Searcher, sessions *session.Registry, q Submitter, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Modes == nil {
		opts.Modes = mode.Set{mode.Policy: true, mode.Schema: true, mode.Documentation: true}
	}
	return &Service{
		search:   search,
		sessions: sessions,
		queue:    q,
		repo:     opts.Repo,
		pub:      opts.Publisher,
		modes:    opts.Modes,
		log:      opts.Logger.With("component", "chat"),
		stats:    opts.Stats,
		queueNos: make(map[string]int64),
	}
}

type Request struct {
	User   string `json:"user"`
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
}

type EventType string

const (
	EventStatus EventType = "status"
	EventChunk  EventType = "chunk"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// StreamEvent is one server-push event. Clients append chunk content and
// stop reading after done or error.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`
	Code    string    `json:"code,omitempty"`
	JobID   string    `json:"job_id,omitempty"`
}

// Stream is an accepted request whose events are being delivered.
type Stream struct {
	JobID   string
	QueueNo int64
	Mode    mode.Mode
	Sources []retrieval.Passage
	// Events closes after the terminal event, or early once the request
	// context ends.
	Events <-chan StreamEvent
}

// Answer is the collected result of a non-streaming request.
type Answer struct {
	JobID      string              `json:"job_id"`
	QueueNo    int64               `json:"queue"`
	Mode       mode.Mode           `json:"mode"`
	Response   string              `json:"response"`
	IsComplete bool                `json:"is_complete"`
	Sources    []retrieval.Passage `json:"sources"`
}

type validated struct {
	user  string
	query string
	mode  mode.Mode
}

func (s *Service) validate(req Request) (validated, error) {
	v := validated{
		user:  strings.TrimSpace(req.User),
		query: strings.TrimSpace(req.Prompt),
	}
	if v.user == "" {
		return v, ErrMissingUser
	}
	if v.query == "" {
		return v, ErrEmptyPrompt
	}
	m, err := mode.Parse(req.Mode)
	if err != nil {
		return v, err
	}
	if err := s.modes.Check(m); err != nil {
		return v, err
	}
	v.mode = m
	return v, nil
}

func (s *Service) nextQueueNo(user string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueNos[user]++
	return s.queueNos[user]
}

// AskStream validates req and enqueues it. Validation failures return
// before anything is queued. Once accepted, the job runs to completion
// even if ctx ends; the exchange is still recorded in the session.
func (s *Service) AskStream(ctx context.Context, req Request) (*Stream, error) {
	v, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	m := v.mode
	if m == mode.Auto {
		m = s.search.Resolve(v.query, s.modes)
	}

	start := time.Now()
	passages := s.search.Search(m, v.query, 0)
	s.stats.RecordTiming(metrics.OpRetrieval, time.Since(start))

	prompt := buildPrompt(m, v.query, passages, s.sessions.History(v.user))

	jobID, err := common.NewULID()
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}
	queueNo := s.nextQueueNo(v.user)

	s.ledger(ctx, "create", jobID, func(ctx context.Context) error {
		return s.repo.CreateJob(ctx, &Job{
			ID:      jobID,
			User:    v.user,
			Mode:    m.String(),
			QueueNo: queueNo,
			Prompt:  v.query,
			Status:  JobQueued,
		})
	})

	h, err := s.queue.Submit(ctx, queue.Job{ID: jobID, Mode: m, Prompt: prompt})
	if err != nil {
		s.ledger(ctx, "fail", jobID, func(ctx context.Context) error {
			code, _ := Describe(err)
			return s.repo.MarkJobFailed(ctx, jobID, code, err.Error(), 0, time.Now())
		})
		return nil, err
	}
	s.publish(ctx, jobID, v.user, string(JobQueued))

	s.log.Info("request accepted", "job_id", jobID, "user", v.user, "mode", m,
		"requested_mode", req.Mode, "passages", len(passages), "prompt_chars", prompt.Size(), "queue_no", queueNo)

	out := make(chan StreamEvent, 16)
	go s.drain(ctx, v, m, h, out)

	return &Stream{
		JobID:   jobID,
		QueueNo: queueNo,
		Mode:    m,
		Sources: passages,
		Events:  out,
	}, nil
}

// drain consumes every job event. Forwarding to out stops when ctx ends,
// but the job is still followed to its terminal event and recorded.
func (s *Service) drain(ctx context.Context, v validated, m mode.Mode, h *queue.Handle, out chan<- StreamEvent) {
	defer close(out)

	forwarding := true
	forward := func(ev StreamEvent) {
		if !forwarding {
			return
		}
		ev.JobID = h.ID
		select {
		case out <- ev:
		case <-ctx.Done():
			forwarding = false
			s.log.Info("client gone, job continues", "job_id", h.ID, "user", v.user)
		}
	}

	bg := context.WithoutCancel(ctx)
	var answer strings.Builder
	for {
		ev, err := h.Next(bg)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Error("job events", "job_id", h.ID, "error", err)
			}
			return
		}

		switch ev.Status {
		case queue.StatusQueued:
			msg := "Queued."
			if ev.Position > 1 {
				msg = fmt.Sprintf("Queued: %d requests ahead of yours.", ev.Position-1)
			}
			forward(StreamEvent{Type: EventStatus, Message: msg})

		case queue.StatusRunning:
			s.ledger(bg, "running", h.ID, func(ctx context.Context) error {
				return s.repo.MarkJobRunning(ctx, h.ID, ev.At)
			})
			s.publish(bg, h.ID, v.user, string(JobRunning))
			forward(StreamEvent{Type: EventStatus, Message: fmt.Sprintf("Generating answer (%s mode)...", m)})

		case queue.StatusStreaming:
			answer.WriteString(ev.Text)
			forward(StreamEvent{Type: EventChunk, Content: ev.Text})

		case queue.StatusDone:
			s.sessions.Append(v.user,
				session.Turn{Role: session.RoleUser, Text: v.query},
				session.Turn{Role: session.RoleAssistant, Text: answer.String()},
			)
			s.ledger(bg, "done", h.ID, func(ctx context.Context) error {
				return s.repo.MarkJobDone(ctx, h.ID, answer.Len(), ev.At)
			})
			s.publish(bg, h.ID, v.user, string(JobDone))
			forward(StreamEvent{Type: EventDone})

		case queue.StatusFailed:
			// the question was real even though no answer came back
			s.sessions.AppendTurn(v.user, session.RoleUser, v.query)
			code, msg := Describe(ev.Err)
			s.log.Warn("job failed", "job_id", h.ID, "user", v.user, "code", code, "partial_chars", answer.Len(), "error", ev.Err)
			s.ledger(bg, "fail", h.ID, func(ctx context.Context) error {
				return s.repo.MarkJobFailed(ctx, h.ID, code, ev.Err.Error(), answer.Len(), ev.At)
			})
			s.publish(bg, h.ID, v.user, string(JobFailed))
			forward(StreamEvent{Type: EventError, Code: code, Message: msg})
		}
	}
}

// Ask runs a request to completion and returns the whole answer. On
// failure the partial answer is returned together with the error.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	st, err := s.AskStream(ctx, req)
	if err != nil {
		return nil, err
	}

	ans := &Answer{JobID: st.JobID, QueueNo: st.QueueNo, Mode: st.Mode, Sources: st.Sources}
	var b strings.Builder
	for ev := range st.Events {
		switch ev.Type {
		case EventChunk:
			b.WriteString(ev.Content)
		case EventDone:
			ans.Response = b.String()
			ans.IsComplete = true
			return ans, nil
		case EventError:
			ans.Response = b.String()
			return ans, &JobError{Code: ev.Code, Message: ev.Message}
		}
	}
	ans.Response = b.String()
	if err := ctx.Err(); err != nil {
		return ans, err
	}
	return ans, fmt.Errorf("job %s: stream closed without a terminal event", st.JobID)
}

func (s *Service) Clear(user string) error {
	user = strings.TrimSpace(user)
	if user == "" {
		return ErrMissingUser
	}
	s.sessions.Clear(user)
	s.log.Info("session cleared", "user", user)
	return nil
}

func (s *Service) History(user string) []session.Turn {
	return s.sessions.History(strings.TrimSpace(user))
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if s.repo == nil {
		return nil, ErrNoLedger
	}
	return s.repo.GetJobByID(ctx, jobID)
}

func (s *Service) ListJobs(ctx context.Context, user string, limit int) ([]Job, error) {
	if s.repo == nil {
		return nil, ErrNoLedger
	}
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ListJobsByUser(ctx, user, limit)
}

// Modes reports the enabled modes.
func (s *Service) Modes() mode.Set { return s.modes }

// ledger runs a ledger write; failures are logged and never affect the job.
func (s *Service) ledger(ctx context.Context, op, jobID string, write func(ctx context.Context) error) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := write(ctx); err != nil {
		s.log.Error("job ledger write failed", "op", op, "job_id", jobID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, jobID, user, status string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishJobStatus(context.WithoutCancel(ctx), jobID, user, status); err != nil {
		s.log.Warn("publish job status failed", "job_id", jobID, "status", status, "error", err)
	}
}
