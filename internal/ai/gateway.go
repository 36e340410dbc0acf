package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/suPer8Hu/orgai/internal/metrics"
)

// Chunk is one element of a streamed completion. A stream carries text
// chunks followed by exactly one terminal chunk with Done or Err set.
// Text already delivered stays valid when Err ends the stream.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Gateway sends prompts to the completion service. It never retries.
type Gateway struct {
	provider Provider
	name     string
	logger   *slog.Logger
	stats    *metrics.Collector
}

func NewGateway(name string, p Provider, logger *slog.Logger, stats *metrics.Collector) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{provider: p, name: name, logger: logger.With("provider", name), stats: stats}
}

func (g *Gateway) Name() string { return g.name }

// Complete returns the whole answer.
func (g *Gateway) Complete(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	text, err := g.provider.Chat(ctx, p.Messages())
	err = g.normalize(ctx, err)
	g.stats.Record(metrics.OpCompletion, time.Since(start), len(text), err)
	if err != nil {
		g.logger.Warn("completion failed", "error", err, "took", time.Since(start))
		return "", err
	}
	return text, nil
}

// Stream returns a lazy chunk sequence. Providers without streaming
// support yield their whole answer as one chunk.
func (g *Gateway) Stream(ctx context.Context, p Prompt) <-chan Chunk {
	out := make(chan Chunk, 16)

	go func() {
		defer close(out)

		emit := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		sp, ok := g.provider.(StreamProvider)
		if !ok {
			text, err := g.Complete(ctx, p)
			if err != nil {
				emit(Chunk{Err: err})
				return
			}
			if emit(Chunk{Text: text}) {
				emit(Chunk{Done: true})
			}
			return
		}

		start := time.Now()
		n := 0
		chunks, errs := sp.StreamChat(ctx, p.Messages())
		for c := range chunks {
			n += len(c)
			if !emit(Chunk{Text: c}) {
				g.stats.Record(metrics.OpStream, time.Since(start), n, ctx.Err())
				return
			}
		}
		err := g.normalize(ctx, <-errs)
		g.stats.Record(metrics.OpStream, time.Since(start), n, err)
		if err != nil {
			g.logger.Warn("stream failed", "error", err, "partial_chars", n, "took", time.Since(start))
			emit(Chunk{Err: err})
			return
		}
		emit(Chunk{Done: true})
	}()

	return out
}

// normalize keeps context errors and taxonomy errors; anything else is
// classified.
func (g *Gateway) normalize(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return classify(ctx, g.name, err)
}
