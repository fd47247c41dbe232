package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/extract"
	"github.com/ericvolp12/issues-etl/pkg/frame"
	"github.com/ericvolp12/issues-etl/pkg/normalize"
	"github.com/ericvolp12/issues-etl/pkg/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

const DefaultName = "github_issues"

var tracer = otel.Tracer("pipeline")

var ErrRunInProgress = errors.New("a run is already in progress")

type Extractor interface {
	Extract(ctx context.Context, since *time.Time) (frame.Frame, *extract.RunReport, error)
}

// Warehouse is the storage the pipeline reads watermarks from and loads
// into. *store.Store implements it.
type Warehouse interface {
	GetWatermark(ctx context.Context, pipeline string) (*time.Time, error)
	AdvanceWatermark(ctx context.Context, pipeline string, to time.Time) (time.Time, error)
	LoadIssues(ctx context.Context, rows []store.IssueEvent) (store.LoadResult, error)
	LoadRepositories(ctx context.Context, rows []store.Repository) (store.LoadResult, error)
	StartRun(ctx context.Context, run *store.Run) error
	FinishRun(ctx context.Context, run *store.Run) error
}

var _ Warehouse = (*store.Store)(nil)

// Mirror receives rows after they were committed to the warehouse.
type Mirror interface {
	MirrorIssues(ctx context.Context, rows []store.IssueEvent) error
}

// Archiver snapshots rows after they were committed to the warehouse.
type Archiver interface {
	ArchiveIssues(ctx context.Context, rows []store.IssueEvent) (string, error)
}

type Pipeline struct {
	name      string
	extractor Extractor
	repos     extract.RepositoryLister
	wh        Warehouse
	logger    *slog.Logger

	mirror   Mirror
	archiver Archiver
	now      func() time.Time

	mu sync.Mutex
}

type Option func(*Pipeline)

func WithRepositoryLister(l extract.RepositoryLister) Option {
	return func(p *Pipeline) { p.repos = l }
}

func WithMirror(m Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(name string, x Extractor, wh Warehouse, logger *slog.Logger, opts ...Option) *Pipeline {
	if name == "" {
		name = DefaultName
	}
	p := &Pipeline{
		name:      name,
		extractor: x,
		wh:        wh,
		logger:    logger.With("module", "pipeline", "pipeline", name),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) Name() string { return p.name }

// ReadWatermark returns the pipeline's watermark, nil before the first
// successful run.
func (p *Pipeline) ReadWatermark(ctx context.Context) (*time.Time, error) {
	w, err := p.wh.GetWatermark(ctx, p.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}
	if w != nil {
		watermarkSeconds.WithLabelValues(p.name).Set(float64(w.Unix()))
	}
	return w, nil
}

func (p *Pipeline) Extract(ctx context.Context, since *time.Time) (frame.Frame, *extract.RunReport, error) {
	return p.extractor.Extract(ctx, since)
}

// Load normalizes f and loads it into the issue table in one transaction.
// Mirroring and archiving happen only after the load committed, and their
// failures are logged without failing the load.
func (p *Pipeline) Load(ctx context.Context, f frame.Frame) (store.LoadResult, error) {
	ctx, span := tracer.Start(ctx, "Load")
	defer span.End()

	rows := normalize.IssueEvents(f)
	res, err := p.wh.LoadIssues(ctx, rows)
	if err != nil {
		return res, err
	}
	span.SetAttributes(attribute.Int("inserted", res.Inserted))

	if res.Empty {
		return res, nil
	}

	if p.mirror != nil {
		if err := p.mirror.MirrorIssues(ctx, rows); err != nil {
			p.logger.Error("failed to mirror issue events", "rows", len(rows), "err", err)
		}
	}
	if p.archiver != nil {
		path, err := p.archiver.ArchiveIssues(ctx, rows)
		if err != nil {
			p.logger.Error("failed to archive issue events", "rows", len(rows), "err", err)
		} else {
			p.logger.Info("archived issue events", "path", path, "rows", len(rows))
		}
	}
	return res, nil
}

func (p *Pipeline) AdvanceWatermark(ctx context.Context, to time.Time) (time.Time, error) {
	w, err := p.wh.AdvanceWatermark(ctx, p.name, to)
	if err != nil {
		return time.Time{}, err
	}
	watermarkSeconds.WithLabelValues(p.name).Set(float64(w.Unix()))
	return w, nil
}

type Result struct {
	RunID     string             `json:"run_id"`
	Report    *extract.RunReport `json:"report"`
	Load      store.LoadResult   `json:"load"`
	Watermark time.Time          `json:"watermark"`
}

// Run reads the watermark, extracts everything updated since it, loads the
// result and advances the watermark to the time the run started. The
// watermark is left untouched if any step before it fails.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run(ctx)
}

// TryRun is Run unless another run holds the pipeline, in which case it
// returns ErrRunInProgress.
func (p *Pipeline) TryRun(ctx context.Context) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()
	return p.run(ctx)
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	start := p.now()
	defer func() { runDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds()) }()

	since, err := p.ReadWatermark(ctx)
	if err != nil {
		runsTotal.WithLabelValues(p.name, store.RunFailed).Inc()
		return nil, err
	}

	run := &store.Run{
		RunID:        uuid.NewString(),
		PipelineName: p.name,
		Status:       store.RunRunning,
		Since:        since,
		StartedAt:    start,
	}
	if err := p.wh.StartRun(ctx, run); err != nil {
		runsTotal.WithLabelValues(p.name, store.RunFailed).Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("run_id", run.RunID))

	logger := p.logger.With("run_id", run.RunID)
	logger.Info("starting run", "since", since)

	res := &Result{RunID: run.RunID}

	f, report, err := p.Extract(ctx, since)
	if report == nil {
		report = &extract.RunReport{Since: since, StartedAt: start}
	}
	report.RunID = run.RunID
	res.Report = report
	run.RowsExtracted = report.Rows
	run.Skipped = skippedJSON(report)
	if err != nil {
		return res, p.fail(ctx, logger, run, fmt.Errorf("failed to extract: %w", err))
	}

	res.Load, err = p.Load(ctx, f)
	run.RowsLoaded = res.Load.Attempted - res.Load.Dropped
	run.RowsInserted = res.Load.Inserted
	if err != nil {
		return res, p.fail(ctx, logger, run, err)
	}

	res.Watermark, err = p.AdvanceWatermark(ctx, start)
	if err != nil {
		return res, p.fail(ctx, logger, run, err)
	}

	finished := p.now()
	run.Status = store.RunSucceeded
	run.FinishedAt = &finished
	if err := p.wh.FinishRun(ctx, run); err != nil {
		logger.Error("failed to record run result", "err", err)
	}

	runsTotal.WithLabelValues(p.name, store.RunSucceeded).Inc()
	logger.Info("run succeeded",
		"rows_extracted", run.RowsExtracted,
		"rows_inserted", run.RowsInserted,
		"skipped", len(res.Report.Skipped),
		"watermark", res.Watermark,
	)
	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, run *store.Run, err error) error {
	finished := p.now()
	run.Status = store.RunFailed
	run.Error = err.Error()
	run.FinishedAt = &finished

	// The run context may be the reason we failed.
	if ferr := p.wh.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
		logger.Error("failed to record run result", "err", ferr)
	}

	runsTotal.WithLabelValues(p.name, store.RunFailed).Inc()
	logger.Error("run failed, watermark not advanced", "err", err)
	return err
}

// SyncRepositories loads a full snapshot of the repository catalog.
func (p *Pipeline) SyncRepositories(ctx context.Context) (store.LoadResult, error) {
	ctx, span := tracer.Start(ctx, "SyncRepositories")
	defer span.End()

	if p.repos == nil {
		return store.LoadResult{}, errors.New("no repository lister configured")
	}

	f, err := extract.Repositories(ctx, p.repos)
	if err != nil {
		return store.LoadResult{}, err
	}
	return p.wh.LoadRepositories(ctx, normalize.Repositories(f))
}

func skippedJSON(r *extract.RunReport) datatypes.JSON {
	if len(r.Skipped) == 0 {
		return datatypes.JSON("[]")
	}
	b, err := json.Marshal(r.Skipped)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}
