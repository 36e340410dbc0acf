package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suPer8Hu/orgai/internal/metrics"
	"github.com/suPer8Hu/orgai/internal/mode"
)

// Store groups the per-mode corpora.
type Store struct {
	Policies *Corpus[Document]
	Schema   *Corpus[SchemaObject]
	Docs     *Corpus[DocFile]
	Stats    *metrics.Collector

	logger *slog.Logger
}

// NewStore fills nil corpora with mock-only ones.
func NewStore(policies *Corpus[Document], schema *Corpus[SchemaObject], docs *Corpus[DocFile], logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if policies == nil {
		policies = NewCorpus[Document]("policy", nil, nil, MockPolicies(), logger)
	}
	if schema == nil {
		schema = NewCorpus[SchemaObject]("schema", nil, nil, MockSchema(), logger)
	}
	if docs == nil {
		docs = NewCorpus[DocFile]("documentation", nil, nil, MockDocs(), logger)
	}
	return &Store{Policies: policies, Schema: schema, Docs: docs, logger: logger}
}

func (s *Store) PolicySnapshot() *Snapshot[Document]     { return s.Policies.Snapshot() }
func (s *Store) SchemaSnapshot() *Snapshot[SchemaObject] { return s.Schema.Snapshot() }
func (s *Store) DocSnapshot() *Snapshot[DocFile]         { return s.Docs.Snapshot() }

// Prime loads caches for every corpus.
func (s *Store) Prime(ctx context.Context) {
	s.Policies.Prime(ctx)
	s.Schema.Prime(ctx)
	s.Docs.Prime(ctx)
}

func (s *Store) Refresh(ctx context.Context, m mode.Mode) error {
	start := time.Now()
	var err error
	switch m {
	case mode.Policy:
		err = s.Policies.Refresh(ctx)
	case mode.Schema:
		err = s.Schema.Refresh(ctx)
	case mode.Documentation:
		err = s.Docs.Refresh(ctx)
	default:
		return fmt.Errorf("%w: cannot refresh %s", mode.ErrInvalidMode, m)
	}
	s.Stats.Record(metrics.OpCorpusUpdate, time.Since(start), 0, err)
	return err
}

// Schedule refreshes the corpus of m every interval until ctx is done.
// A zero interval means manual refresh only.
func (s *Store) Schedule(ctx context.Context, m mode.Mode, every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.Refresh(ctx, m); err != nil {
					s.logger.Warn("scheduled refresh failed", "mode", m.String(), "error", err)
				}
			}
		}
	}()
}

func (s *Store) Status() []Status {
	return []Status{s.Policies.Status(), s.Schema.Status(), s.Docs.Status()}
}

// Degraded returns one ErrRetrievalDegraded error per degraded corpus.
func (s *Store) Degraded() []error {
	var out []error
	for _, err := range []error{s.Policies.Err(), s.Schema.Err(), s.Docs.Err()} {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
