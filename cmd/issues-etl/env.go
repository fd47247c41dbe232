package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ericvolp12/bsky-experiments/pkg/tracing"
	"github.com/ericvolp12/issues-etl/pkg/bq"
	"github.com/ericvolp12/issues-etl/pkg/config"
	"github.com/ericvolp12/issues-etl/pkg/extract"
	"github.com/ericvolp12/issues-etl/pkg/github"
	"github.com/ericvolp12/issues-etl/pkg/parq"
	"github.com/ericvolp12/issues-etl/pkg/pipeline"
	"github.com/ericvolp12/issues-etl/pkg/store"
	"github.com/urfave/cli/v2"
)

type needs struct {
	github   bool
	database bool
}

// env holds the components a subcommand runs against.
type env struct {
	cfg       config.Config
	logger    *slog.Logger
	gh        *github.Client
	extractor *extract.IssueExtractor
	store     *store.Store
	pipeline  *pipeline.Pipeline

	closers []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newLogger(debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel, AddSource: true}))
	slog.SetDefault(slog.New(logger.Handler()))
	return logger
}

// setup validates the config and builds what the subcommand needs. The
// caller must Close the returned env.
func setup(cctx *cli.Context, n needs) (*env, error) {
	ctx := cctx.Context
	cfg := config.FromCLI(cctx)
	logger := newLogger(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n.github {
		if err := cfg.RequireGitHub(); err != nil {
			return nil, err
		}
	}
	if n.database {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
	}

	e := &env{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	// Registers a tracer Provider globally if the exporter endpoint is set
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		logger.Info("registering global tracer provider")
		shutdown, err := tracing.InstallExportPipeline(ctx, "issues-etl", 1)
		if err != nil {
			return nil, fmt.Errorf("failed to install export pipeline: %w", err)
		}
		e.closers = append(e.closers, func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown export pipeline", "err", err)
			}
		})
	}

	if n.github {
		ghCfg := github.DefaultClientConfig()
		ghCfg.BaseURL = cfg.GitHub.APIURL
		ghCfg.Token = cfg.GitHub.Token
		ghCfg.RateLimit = cfg.GitHub.RateLimit
		ghCfg.MaxRetries = cfg.GitHub.MaxRetries

		gh, err := github.NewClient(ghCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create github client: %w", err)
		}
		e.gh = gh
		e.extractor = extract.NewIssueExtractor(gh, logger, extract.WithCacheSize(cfg.GitHub.CacheSize))
	}

	if !n.database {
		ok = true
		return e, nil
	}

	s, err := store.Open(ctx, cfg.DatabaseURL, logger, cfg.MigrateDB)
	if err != nil {
		return nil, err
	}
	e.store = s
	e.closers = append(e.closers, func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	})

	var opts []pipeline.Option
	var x pipeline.Extractor
	if e.gh != nil {
		opts = append(opts, pipeline.WithRepositoryLister(e.gh))
		x = e.extractor
	}

	if cfg.ParquetDir != "" {
		p, err := parq.NewParq(logger, cfg.ParquetDir, "issue_events")
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithArchiver(p))
	}

	if cfg.BigQuery.Enabled() {
		logger.Info("bigquery project id set, starting bigquery client")
		b, err := bq.NewBQ(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create bigquery client: %w", err)
		}
		opts = append(opts, pipeline.WithMirror(b))
		e.closers = append(e.closers, func() {
			if err := b.Close(); err != nil {
				logger.Error("failed to close bigquery client", "err", err)
			}
		})
	}

	e.pipeline = pipeline.New(cfg.PipelineName, x, s, logger, opts...)

	ok = true
	return e, nil
}
