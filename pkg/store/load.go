package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoadResult describes one loader call. Empty means the input had no rows and
// no transaction was started.
type LoadResult struct {
	Table     string `json:"table"`
	Attempted int    `json:"attempted"`
	Inserted  int    `json:"inserted"`
	Dropped   int    `json:"dropped"`
	Empty     bool   `json:"empty"`
}

// LoadError is a failed loader call. The transaction was rolled back.
type LoadError struct {
	Table string
	// Code is the SQLSTATE reported by Postgres, if any.
	Code string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("failed to load %s (sqlstate %s): %v", e.Table, e.Code, e.Err)
	}
	return fmt.Sprintf("failed to load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func newLoadError(table string, err error) *LoadError {
	le := &LoadError{Table: table, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		le.Code = pgErr.Code
	}
	return le
}

// LoadIssues inserts issue events, ignoring rows whose detail_node_id is
// already stored. Rows without a detail_node_id, and repeats of one within
// the input, are dropped before insert with the first occurrence kept.
func (s *Store) LoadIssues(ctx context.Context, rows []IssueEvent) (LoadResult, error) {
	keep := lo.UniqBy(
		lo.Filter(rows, func(r IssueEvent, _ int) bool { return r.DetailNodeID != "" }),
		func(r IssueEvent) string { return r.DetailNodeID },
	)
	return insertIgnoring(ctx, s, IssueEvent{}.TableName(), "detail_node_id", rows, keep, s.issueBatchSize)
}

// LoadRepositories inserts repositories, ignoring ones whose repo_id is
// already stored.
func (s *Store) LoadRepositories(ctx context.Context, rows []Repository) (LoadResult, error) {
	keep := lo.UniqBy(
		lo.Filter(rows, func(r Repository, _ int) bool { return r.RepoID != "" }),
		func(r Repository) string { return r.RepoID },
	)
	return insertIgnoring(ctx, s, Repository{}.TableName(), "repo_id", rows, keep, s.repositoryBatchSize)
}

func insertIgnoring[T any](ctx context.Context, s *Store, table, key string, rows, keep []T, batchSize int) (LoadResult, error) {
	ctx, span := tracer.Start(ctx, "Load")
	defer span.End()
	span.SetAttributes(attribute.String("table", table), attribute.Int("rows", len(rows)))

	res := LoadResult{Table: table, Attempted: len(rows), Dropped: len(rows) - len(keep)}
	if len(rows) == 0 {
		res.Empty = true
		loadsTotal.WithLabelValues(table, "empty").Inc()
		return res, nil
	}
	if len(keep) == 0 {
		loadsTotal.WithLabelValues(table, "noop").Inc()
		return res, nil
	}

	start := time.Now()
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		r := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: key}},
			DoNothing: true,
		}).CreateInBatches(keep, batchSize)
		if r.Error != nil {
			return r.Error
		}
		res.Inserted = int(r.RowsAffected)
		return nil
	})
	loadDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())

	if err != nil {
		res.Inserted = 0
		loadsTotal.WithLabelValues(table, "failed").Inc()
		s.logger.Error("load rolled back", "table", table, "rows", len(keep), "err", err)
		return res, newLoadError(table, err)
	}

	loadsTotal.WithLabelValues(table, "succeeded").Inc()
	rowsLoaded.WithLabelValues(table, "inserted").Add(float64(res.Inserted))
	rowsLoaded.WithLabelValues(table, "ignored").Add(float64(len(keep) - res.Inserted))
	rowsLoaded.WithLabelValues(table, "dropped").Add(float64(res.Dropped))

	s.logger.Info("loaded rows", "table", table, "attempted", res.Attempted, "inserted", res.Inserted, "dropped", res.Dropped)
	return res, nil
}
