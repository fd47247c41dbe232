package store

import (
	"time"

	"gorm.io/datatypes"
)

// IssueEvent is a row of real_github_issues. DetailNodeID is the
// idempotency key.
type IssueEvent struct {
	DetailNodeID    string     `gorm:"column:detail_node_id;primaryKey" json:"detail_node_id"`
	RepoID          string     `gorm:"column:repo_id;index:idx_issue_events_repo_issue,priority:1" json:"repo_id"`
	IssueID         *int64     `gorm:"column:issue_id;index:idx_issue_events_repo_issue,priority:2" json:"issue_id"`
	IssueTitle      *string    `gorm:"column:issue_title" json:"issue_title"`
	Source          *string    `gorm:"column:source" json:"source"`
	Timestamp       *time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Actor           *string    `gorm:"column:actor" json:"actor"`
	Action          *string    `gorm:"column:action;index" json:"action"`
	DetailID        *string    `gorm:"column:detail_id" json:"detail_id"`
	Assignee        string     `gorm:"column:assignee;not null" json:"assignee"`
	CurrentAssignee string     `gorm:"column:current_assignee;not null" json:"current_assignee"`
	RepoName        *string    `gorm:"column:repo_name" json:"repo_name"`
	Owner           *string    `gorm:"column:owner" json:"owner"`
}

func (IssueEvent) TableName() string { return "real_github_issues" }

type Repository struct {
	RepoID       string  `gorm:"column:repo_id;primaryKey" json:"repo_id"`
	RepoName     *string `gorm:"column:repo_name" json:"repo_name"`
	RepoFullName *string `gorm:"column:repo_full_name" json:"repo_full_name"`
	// Not named CreatedAt so gorm leaves the upstream value alone.
	RepoCreatedAt *time.Time `gorm:"column:created_at" json:"created_at"`
	Owner         *string    `gorm:"column:owner" json:"owner"`
}

func (Repository) TableName() string { return "github_repositories" }

type Watermark struct {
	PipelineName  string    `gorm:"column:pipeline_name;primaryKey" json:"pipeline_name"`
	LastSuccessTS time.Time `gorm:"column:last_success_ts;not null" json:"last_success_ts"`
}

func (Watermark) TableName() string { return "github_issue_watermark" }

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one pipeline run as recorded in etl_runs.
type Run struct {
	RunID         string         `gorm:"column:run_id;primaryKey" json:"run_id"`
	PipelineName  string         `gorm:"column:pipeline_name;index:idx_etl_runs_pipeline_started,priority:1" json:"pipeline_name"`
	Status        string         `gorm:"column:status" json:"status"`
	Since         *time.Time     `gorm:"column:since" json:"since"`
	RowsExtracted int            `gorm:"column:rows_extracted" json:"rows_extracted"`
	RowsLoaded    int            `gorm:"column:rows_loaded" json:"rows_loaded"`
	RowsInserted  int            `gorm:"column:rows_inserted" json:"rows_inserted"`
	Skipped       datatypes.JSON `gorm:"column:skipped" json:"skipped"`
	Error         string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt     time.Time      `gorm:"column:started_at;index:idx_etl_runs_pipeline_started,priority:2,sort:desc" json:"started_at"`
	FinishedAt    *time.Time     `gorm:"column:finished_at" json:"finished_at"`
}

func (Run) TableName() string { return "etl_runs" }
