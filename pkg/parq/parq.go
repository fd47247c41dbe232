package parq

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/store"
	"github.com/parquet-go/parquet-go"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("parq")

// Record is the parquet row of an issue event. Nullable columns are
// optional; Timestamp is unix microseconds.
type Record struct {
	DetailNodeID    string  `parquet:"detail_node_id"`
	RepoID          string  `parquet:"repo_id"`
	IssueID         *int64  `parquet:"issue_id,optional"`
	IssueTitle      *string `parquet:"issue_title,optional"`
	Source          *string `parquet:"source,optional"`
	Timestamp       *int64  `parquet:"timestamp,optional"`
	Actor           *string `parquet:"actor,optional"`
	Action          *string `parquet:"action,optional"`
	DetailID        *string `parquet:"detail_id,optional"`
	Assignee        string  `parquet:"assignee"`
	CurrentAssignee string  `parquet:"current_assignee"`
	RepoName        *string `parquet:"repo_name,optional"`
	Owner           *string `parquet:"owner,optional"`
}

func NewRecord(e store.IssueEvent) Record {
	r := Record{
		DetailNodeID:    e.DetailNodeID,
		RepoID:          e.RepoID,
		IssueID:         e.IssueID,
		IssueTitle:      e.IssueTitle,
		Source:          e.Source,
		Actor:           e.Actor,
		Action:          e.Action,
		DetailID:        e.DetailID,
		Assignee:        e.Assignee,
		CurrentAssignee: e.CurrentAssignee,
		RepoName:        e.RepoName,
		Owner:           e.Owner,
	}
	if e.Timestamp != nil {
		us := e.Timestamp.UnixMicro()
		r.Timestamp = &us
	}
	return r
}

func bloomFilters() parquet.WriterOption {
	filterBits := uint(10)
	return parquet.BloomFilters(
		parquet.SplitBlockFilter(filterBits, "detail_node_id"),
		parquet.SplitBlockFilter(filterBits, "repo_id"),
		parquet.SplitBlockFilter(filterBits, "action"),
		parquet.SplitBlockFilter(filterBits, "actor"),
	)
}

type Parq struct {
	logger  *slog.Logger
	fileDir string
	prefix  string
}

func NewParq(logger *slog.Logger, fileDir, prefix string) (*Parq, error) {
	// Make sure the file directory exists
	if err := os.MkdirAll(fileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parquet file directory: %w", err)
	}

	return &Parq{
		logger:  logger.With("module", "parq"),
		fileDir: fileDir,
		prefix:  prefix,
	}, nil
}

// ArchiveIssues writes rows to a new timestamped parquet file in the
// archive directory and returns its path.
func (p *Parq) ArchiveIssues(ctx context.Context, rows []store.IssueEvent) (string, error) {
	_, span := tracer.Start(ctx, "ArchiveIssues")
	defer span.End()

	records := make([]Record, len(rows))
	for i, e := range rows {
		records[i] = NewRecord(e)
	}

	fName := path.Join(p.fileDir, fmt.Sprintf("%s_%s.parquet", p.prefix, time.Now().UTC().Format("2006_01_02-15_04_05.000000")))
	if err := p.WriteFile(fName, records); err != nil {
		return "", err
	}
	return fName, nil
}

// WriteFile writes records to fName.
func (p *Parq) WriteFile(fName string, records []Record) error {
	p.logger.Info("writing parquet file", "file_path", fName, "num_records", len(records))

	if err := parquet.WriteFile(fName, records, bloomFilters()); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}

	p.logger.Info("wrote parquet file", "file_path", fName)
	return nil
}

// Source streams stored issue events in batches. *store.Store implements it.
type Source interface {
	EachIssueEventBatch(ctx context.Context, size int, fn func([]store.IssueEvent) error) error
}

// Export streams every stored issue event into a single parquet file at
// fName and returns the number of rows written.
func (p *Parq) Export(ctx context.Context, src Source, fName string, batchSize int) (int, error) {
	ctx, span := tracer.Start(ctx, "Export")
	defer span.End()

	f, err := os.Create(fName)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[Record](f, bloomFilters())

	total := 0
	err = src.EachIssueEventBatch(ctx, batchSize, func(batch []store.IssueEvent) error {
		records := make([]Record, len(batch))
		for i, e := range batch {
			records[i] = NewRecord(e)
		}
		n, err := w.Write(records)
		total += n
		if err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return total, err
	}

	if err := w.Close(); err != nil {
		return total, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return total, fmt.Errorf("failed to close parquet file: %w", err)
	}

	p.logger.Info("exported issue events", "file_path", fName, "num_records", total)
	return total, nil
}
