package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/suPer8Hu/orgai/internal/ai"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/config"
	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/db"
	"github.com/suPer8Hu/orgai/internal/httpapi"
	"github.com/suPer8Hu/orgai/internal/metrics"
	"github.com/suPer8Hu/orgai/internal/mode"
	"github.com/suPer8Hu/orgai/internal/queue"
	"github.com/suPer8Hu/orgai/internal/retrieval"
	"github.com/suPer8Hu/orgai/internal/session"
	"github.com/suPer8Hu/orgai/internal/store/rabbitmq"
	"github.com/suPer8Hu/orgai/internal/store/redisstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLogLevel(cfg.LogLevel))
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := metrics.NewCollector()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect app db: %w", err)
	}
	repo := chat.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var rdb *redisstore.Store
	if cfg.Policy.CacheBackend == "redis" {
		rdb = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pctx); err != nil {
			logger.Warn("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
	}

	store, err := buildStore(cfg, rdb, logger)
	if err != nil {
		return err
	}
	store.Stats = stats
	store.Prime(ctx)

	modes := mode.Set{
		mode.Policy:        cfg.Policy.Enabled,
		mode.Schema:        cfg.Schema.Enabled,
		mode.Documentation: cfg.Docs.Enabled,
	}
	startRefresh(ctx, cfg, store, modes, logger)

	if cfg.Docs.Enabled && cfg.Docs.Watch {
		w, err := corpus.NewWatcher(cfg.Docs.FileTypes, cfg.Docs.ExcludedDirs, logger)
		if err != nil {
			logger.Warn("doc watcher unavailable", "error", err)
		} else {
			defer w.Close()
			if err := w.Watch(ctx, cfg.Docs.Dir, func(ctx context.Context) {
				if err := store.Refresh(ctx, mode.Documentation); err != nil {
					logger.Warn("doc refresh after change failed", "error", err)
				}
			}); err != nil {
				logger.Warn("doc watcher not started", "dir", cfg.Docs.Dir, "error", err)
			}
		}
	}

	gen, err := buildGateway(ctx, cfg, logger, stats)
	if err != nil {
		return err
	}

	q := queue.New(gen, queue.Options{
		WaitTimeout: cfg.Queue.WaitTimeout,
		RunTimeout:  cfg.Queue.RunTimeout,
		Logger:      logger,
		Stats:       stats,
	})
	defer q.Close()

	opts := chat.Options{
		Modes:  modes,
		Repo:   repo,
		Logger: logger,
		Stats:  stats,
	}

	if cfg.RabbitEnabled {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitEventsQueue)
		if err != nil {
			logger.Warn("job event publisher disabled", "error", err)
		} else {
			defer pub.Close()
			opts.Publisher = pub
		}

		consumer, err := rabbitmq.NewRefreshConsumer(cfg.RabbitURL, cfg.RabbitRefreshQueue, store, logger)
		if err != nil {
			logger.Warn("refresh consumer disabled", "error", err)
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil {
					logger.Error("refresh consumer stopped", "error", err)
				}
			}()
		}
	}

	retriever := retrieval.New(store, retrieval.Options{
		MaxResults: cfg.Retrieval.MaxResults,
		MaxChars:   cfg.Retrieval.MaxContextChars,
		Restricted: cfg.Retrieval.RestrictedTables,
		Allowed:    cfg.Retrieval.AllowedTables,
	})
	sessions := session.NewRegistry(cfg.Session.MaxTurns, cfg.Session.IdleTTL)
	svc := chat.NewService(retriever, sessions, q, opts)

	router := httpapi.NewRouter(httpapi.Deps{
		Chat:           svc,
		Corpora:        store,
		Queue:          q,
		Stats:          stats,
		Logger:         logger,
		AdminJWTSecret: cfg.AdminJWTSecret,
		AllowedOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "provider", gen.Name(), "modes", enabledNames(modes))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return nil
}

func buildStore(cfg config.Config, rdb *redisstore.Store, logger *slog.Logger) (*corpus.Store, error) {
	var policies *corpus.Corpus[corpus.Document]
	if cfg.Policy.SourceURL != "" {
		var cache corpus.Cache[corpus.Document]
		switch cfg.Policy.CacheBackend {
		case "file":
			cache = corpus.NewFileCache[corpus.Document](cfg.Policy.CachePath)
		case "redis":
			cache = redisstore.NewJSONCache[corpus.Document](rdb.RDB, "policy", 0)
		}
		src := corpus.NewPolicySource(cfg.Policy.SourceURL, cfg.Policy.FetchTimeout)
		policies = corpus.NewCorpus[corpus.Document]("policy", src, cache, corpus.MockPolicies(), logger)
	}

	var schema *corpus.Corpus[corpus.SchemaObject]
	if cfg.Schema.Driver != "" {
		sdb, err := db.Connect(cfg.Schema.Driver, cfg.Schema.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect schema source: %w", err)
		}
		src := &corpus.SchemaSource{
			DB:              sdb,
			Databases:       cfg.Schema.Databases,
			ExcludedSchemas: cfg.Schema.ExcludedSchemas,
			MaxRows:         cfg.Schema.MaxRows,
			QueryTimeout:    cfg.Schema.QueryTimeout,
		}
		schema = corpus.NewCorpus[corpus.SchemaObject]("schema", src, nil, corpus.MockSchema(), logger)
	}

	var docs *corpus.Corpus[corpus.DocFile]
	if cfg.Docs.Dir != "" {
		src := &corpus.DocSource{
			Root:         cfg.Docs.Dir,
			FileTypes:    cfg.Docs.FileTypes,
			ExcludedDirs: cfg.Docs.ExcludedDirs,
			Logger:       logger.With("corpus", "documentation"),
		}
		docs = corpus.NewCorpus[corpus.DocFile]("documentation", src, nil, corpus.MockDocs(), logger)
	}

	return corpus.NewStore(policies, schema, docs, logger), nil
}

// startRefresh runs one refresh per enabled corpus in the background and
// then follows each corpus cadence. Requests are served from mock or cache
// until the first refresh lands.
func startRefresh(ctx context.Context, cfg config.Config, store *corpus.Store, modes mode.Set, logger *slog.Logger) {
	cadences := map[mode.Mode]string{
		mode.Policy:        cfg.Policy.Cadence,
		mode.Schema:        cfg.Schema.Cadence,
		mode.Documentation: cfg.Docs.Cadence,
	}
	for _, m := range mode.Concrete {
		if !modes.Enabled(m) {
			continue
		}
		every, _ := config.ParseCadence(cadences[m])
		go func(m mode.Mode) {
			if err := store.Refresh(ctx, m); err != nil && !errors.Is(err, corpus.ErrNoSource) {
				logger.Warn("initial refresh failed", "mode", m.String(), "error", err)
			}
		}(m)
		store.Schedule(ctx, m, every)
	}
}

func buildGateway(ctx context.Context, cfg config.Config, logger *slog.Logger, stats *metrics.Collector) (*ai.Gateway, error) {
	opts := ai.Options{
		Temperature: cfg.AI.Temperature,
		TopP:        cfg.AI.TopP,
		NumCtx:      cfg.AI.ContextLength,
	}

	reg := ai.NewRegistry()
	reg.Register("ollama", cfg.AI.Model, func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.AI.BaseURL, model, opts), nil
	})
	reg.Register("openrouter", cfg.AI.OpenRouterModel, func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.AI.OpenRouterBaseURL, cfg.AI.OpenRouterAPIKey, model,
			cfg.AI.OpenRouterSiteURL, cfg.AI.OpenRouterAppName, opts), nil
	})
	reg.Register("langchain", cfg.AI.Model, func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewLangchainOllama(cfg.AI.BaseURL, model, opts)
	})

	name := strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	p, err := reg.Get(ctx, name, "")
	if err != nil {
		return nil, err
	}
	return ai.NewGateway(name, p, logger, stats), nil
}

func enabledNames(modes mode.Set) []string {
	var out []string
	for _, m := range mode.Concrete {
		if modes.Enabled(m) {
			out = append(out, m.String())
		}
	}
	return out
}
