// Package queue serializes access to the completion service: one job
// runs at a time, in arrival order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/suPer8Hu/orgai/internal/ai"
	"github.com/suPer8Hu/orgai/internal/common"
	"github.com/suPer8Hu/orgai/internal/metrics"
)

// Generator produces a chunk stream for a prompt. The stream must end
// with exactly one chunk carrying Done or Err.
type Generator interface {
	Stream(ctx context.Context, p ai.Prompt) <-chan ai.Chunk
}

type Options struct {
	// WaitTimeout bounds time spent queued; zero waits forever.
	WaitTimeout time.Duration
	// RunTimeout bounds a single generation; zero means no limit.
	RunTimeout time.Duration
	Logger     *slog.Logger
	Stats      *metrics.Collector
}

type Queue struct {
	gen  Generator
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*entry
	running string
	closed  bool

	stopCtx context.Context
	stop    context.CancelFunc
	done    chan struct{}
}

// New starts the single worker.
func New(gen Generator, opts Options) *Queue {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	stopCtx, stop := context.WithCancel(context.Background())
	q := &Queue{
		gen:     gen,
		opts:    opts,
		log:     opts.Logger.With("component", "queue"),
		stopCtx: stopCtx,
		stop:    stop,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.work()
	return q
}

// Submit enqueues job and returns at once. Cancelling ctx after Submit
// does not cancel the job; values carried by ctx stay visible to the
// generator.
func (q *Queue) Submit(ctx context.Context, job Job) (*Handle, error) {
	if job.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		job.ID = id
	}

	e := &entry{
		job:      job,
		ctx:      context.WithoutCancel(ctx),
		box:      newMailbox(),
		enqueued: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.pending = append(q.pending, e)
	pos := len(q.pending)
	e.box.push(Event{JobID: job.ID, Status: StatusQueued, Position: pos, At: e.enqueued})
	if q.opts.WaitTimeout > 0 {
		e.timer = time.AfterFunc(q.opts.WaitTimeout, func() { q.expire(e) })
	}
	q.cond.Signal()
	q.mu.Unlock()

	q.log.Debug("job queued", "job_id", job.ID, "mode", job.Mode, "position", pos)
	return &Handle{ID: job.ID, box: e.box}, nil
}

// expire fails a job that is still waiting when its wait budget runs out.
func (q *Queue) expire(e *entry) {
	q.mu.Lock()
	if e.state != stateQueued {
		q.mu.Unlock()
		return
	}
	q.remove(e)
	e.state = stateFinished
	q.mu.Unlock()

	err := fmt.Errorf("%w: waited %s in queue", ErrTimeout, q.opts.WaitTimeout)
	q.log.Warn("job expired in queue", "job_id", e.job.ID, "wait", time.Since(e.enqueued))
	q.opts.Stats.Record(metrics.OpQueueWait, time.Since(e.enqueued), 0, err)
	e.box.push(Event{JobID: e.job.ID, Status: StatusFailed, Err: err, At: time.Now()})
}

// Caller must hold q.mu.
func (q *Queue) remove(e *entry) {
	for i, p := range q.pending {
		if p == e {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// Depth is the number of jobs waiting, not counting the running one.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running returns the ID of the in-flight job, or "".
func (q *Queue) Running() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Close rejects new jobs, fails everything still queued, abandons the
// running job and waits for the worker to exit.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return nil
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	for _, e := range dropped {
		e.state = stateFinished
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, e := range dropped {
		e.box.push(Event{JobID: e.job.ID, Status: StatusFailed, Err: ErrClosed, At: time.Now()})
	}
	q.stop()
	<-q.done
	return nil
}

func (q *Queue) next() *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil
	}
	e := q.pending[0]
	q.pending = q.pending[1:]
	e.state = stateRunning
	if e.timer != nil {
		e.timer.Stop()
	}
	q.running = e.job.ID
	return e
}

func (q *Queue) work() {
	defer close(q.done)
	for {
		e := q.next()
		if e == nil {
			return
		}
		q.run(e)

		q.mu.Lock()
		q.running = ""
		e.state = stateFinished
		q.mu.Unlock()
	}
}

func (q *Queue) run(e *entry) {
	wait := time.Since(e.enqueued)
	q.opts.Stats.Record(metrics.OpQueueWait, wait, 0, nil)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if q.opts.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(e.ctx, q.opts.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(e.ctx)
	}
	defer cancel()
	stopAfter := context.AfterFunc(q.stopCtx, cancel)
	defer stopAfter()

	start := time.Now()
	e.box.push(Event{JobID: e.job.ID, Status: StatusRunning, At: start})

	n, err := q.forward(ctx, e)
	run := time.Since(start)

	if err != nil {
		e.box.push(Event{JobID: e.job.ID, Status: StatusFailed, Err: err, At: time.Now()})
		q.log.Warn("job_timing", "job_id", e.job.ID, "mode", e.job.Mode, "wait", wait, "run", run, "chars", n, "error", err)
		return
	}
	e.box.push(Event{JobID: e.job.ID, Status: StatusDone, At: time.Now()})
	q.log.Info("job_timing", "job_id", e.job.ID, "mode", e.job.Mode, "wait", wait, "run", run, "chars", n)
}

// forward relays generator chunks into the job mailbox until the
// terminal chunk, or until ctx ends; in that case the call is abandoned.
func (q *Queue) forward(ctx context.Context, e *entry) (int, error) {
	n := 0
	chunks := q.gen.Stream(ctx, e.job.Prompt)
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return n, fmt.Errorf("%w: stream ended without a terminal marker", ai.ErrUpstreamError)
			}
			switch {
			case c.Err != nil:
				return n, q.abortErr(ctx, c.Err)
			case c.Done:
				return n, nil
			case c.Text != "":
				n += len(c.Text)
				e.box.push(Event{JobID: e.job.ID, Status: StatusStreaming, Text: c.Text, At: time.Now()})
			}
		case <-ctx.Done():
			return n, q.abortErr(ctx, ctx.Err())
		}
	}
}

func (q *Queue) abortErr(ctx context.Context, err error) error {
	if q.stopCtx.Err() != nil {
		return ErrClosed
	}
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: generation exceeded %s", ErrTimeout, q.opts.RunTimeout)
	}
	return err
}
