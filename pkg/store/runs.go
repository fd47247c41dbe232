package store

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
)

func (s *Store) StartRun(ctx context.Context, run *Run) error {
	if len(run.Skipped) == 0 {
		run.Skipped = datatypes.JSON("[]")
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	if len(run.Skipped) == 0 {
		run.Skipped = datatypes.JSON("[]")
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs of pipeline, newest first. An empty
// pipeline lists runs of every pipeline.
func (s *Store) ListRuns(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	q := s.db.WithContext(ctx)
	if pipeline != "" {
		q = q.Where("pipeline_name = ?", pipeline)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []Run
	if err := q.Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
