package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type EventQuery struct {
	RepoID  *string
	IssueID *int64
	Action  *string
	Limit   int
}

// ListIssueEvents returns stored events matching q ordered by issue and time.
func (s *Store) ListIssueEvents(ctx context.Context, q EventQuery) ([]IssueEvent, error) {
	db := s.db.WithContext(ctx)
	if q.RepoID != nil {
		db = db.Where("repo_id = ?", *q.RepoID)
	}
	if q.IssueID != nil {
		db = db.Where("issue_id = ?", *q.IssueID)
	}
	if q.Action != nil {
		db = db.Where("action = ?", *q.Action)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var out []IssueEvent
	if err := db.Order("repo_id, issue_id, timestamp, detail_node_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list issue events: %w", err)
	}
	return out, nil
}

// EachIssueEventBatch streams every stored event to fn in batches ordered
// by detail_node_id.
func (s *Store) EachIssueEventBatch(ctx context.Context, size int, fn func([]IssueEvent) error) error {
	var batch []IssueEvent
	err := s.db.WithContext(ctx).FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
	if err != nil {
		return fmt.Errorf("failed to read issue events: %w", err)
	}
	return nil
}

func (s *Store) ListRepositories(ctx context.Context, limit int) ([]Repository, error) {
	db := s.db.WithContext(ctx)
	if limit > 0 {
		db = db.Limit(limit)
	}

	var out []Repository
	if err := db.Order("repo_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return out, nil
}

func (s *Store) CountIssueEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&IssueEvent{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count issue events: %w", err)
	}
	return n, nil
}
