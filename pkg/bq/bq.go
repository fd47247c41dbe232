package bq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/ericvolp12/issues-etl/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultBatchSize = 500

var tracer = otel.Tracer("bq")

type inserter interface {
	Put(ctx context.Context, src interface{}) error
}

// BQ mirrors loaded issue events into a BigQuery table. Each row is sent
// with its detail_node_id as insert id so BigQuery drops retried rows.
type BQ struct {
	logger       *slog.Logger
	recordSchema bigquery.Schema
	client       *bigquery.Client
	tableName    string
	inserter     inserter
	batchSize    int
	now          func() time.Time
}

func NewBQ(
	ctx context.Context,
	projectID string,
	dataset string,
	table string,
	logger *slog.Logger,
) (*BQ, error) {
	recordSchema, err := bigquery.InferSchema(Record{})
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema: %w", err)
	}

	bqClient, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	bqDataset := bqClient.Dataset(dataset)

	if _, err := bqDataset.Metadata(ctx); err != nil {
		return nil, fmt.Errorf("failed to get dataset metadata, make sure to create it if it doesn't exist: %w", err)
	}

	t := bqDataset.Table(table)
	if _, err := t.Metadata(ctx); err != nil {
		logger.Info("table does not exist, creating", "table", t.FullyQualifiedName())
		if err := t.Create(ctx, &bigquery.TableMetadata{Schema: recordSchema}); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	b := newBQ(t.Inserter(), table, logger)
	b.recordSchema = recordSchema
	b.client = bqClient
	return b, nil
}

func newBQ(ins inserter, table string, logger *slog.Logger) *BQ {
	return &BQ{
		logger:    logger.With("module", "bq"),
		tableName: table,
		inserter:  ins,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// MirrorIssues streams rows to the mirror table in batches.
func (bq *BQ) MirrorIssues(ctx context.Context, rows []store.IssueEvent) error {
	ctx, span := tracer.Start(ctx, "MirrorIssues")
	defer span.End()
	span.SetAttributes(attribute.String("table", bq.tableName), attribute.Int("rows", len(rows)))

	at := bq.now().UTC()
	for start := 0; start < len(rows); start += bq.batchSize {
		end := min(start+bq.batchSize, len(rows))

		savers := make([]*bigquery.StructSaver, 0, end-start)
		for _, e := range rows[start:end] {
			savers = append(savers, &bigquery.StructSaver{
				Schema:   bq.recordSchema,
				InsertID: e.DetailNodeID,
				Struct:   NewRecord(e, at),
			})
		}

		if err := bq.insert(ctx, savers); err != nil {
			return err
		}
	}

	bq.logger.Debug("mirrored issue events", "table", bq.tableName, "rows", len(rows))
	return nil
}

func (bq *BQ) insert(ctx context.Context, savers []*bigquery.StructSaver) error {
	start := time.Now()
	defer func() {
		batchSubmissionDuration.WithLabelValues(bq.tableName).Observe(time.Since(start).Seconds())
		batchSizeHist.WithLabelValues(bq.tableName).Observe(float64(len(savers)))
	}()

	if err := bq.inserter.Put(ctx, savers); err != nil {
		batchFailures.WithLabelValues(bq.tableName).Inc()
		return fmt.Errorf("failed to insert records: %w", err)
	}

	recordsProcessed.WithLabelValues(bq.tableName).Add(float64(len(savers)))
	return nil
}

func (bq *BQ) Close() error {
	if bq.client == nil {
		return nil
	}
	return bq.client.Close()
}
