package bq

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/ericvolp12/issues-etl/pkg/store"
)

// Record mirrors a real_github_issues row.
type Record struct {
	DetailNodeID    string                 `bigquery:"detail_node_id"`
	RepoID          string                 `bigquery:"repo_id"`
	IssueID         bigquery.NullInt64     `bigquery:"issue_id"`
	IssueTitle      bigquery.NullString    `bigquery:"issue_title"`
	Source          bigquery.NullString    `bigquery:"source"`
	Timestamp       bigquery.NullTimestamp `bigquery:"timestamp"`
	Actor           bigquery.NullString    `bigquery:"actor"`
	Action          bigquery.NullString    `bigquery:"action"`
	DetailID        bigquery.NullString    `bigquery:"detail_id"`
	Assignee        string                 `bigquery:"assignee"`
	CurrentAssignee string                 `bigquery:"current_assignee"`
	RepoName        bigquery.NullString    `bigquery:"repo_name"`
	Owner           bigquery.NullString    `bigquery:"owner"`

	MirroredAt time.Time `bigquery:"mirrored_at"`
}

func NewRecord(e store.IssueEvent, at time.Time) *Record {
	r := &Record{
		DetailNodeID:    e.DetailNodeID,
		RepoID:          e.RepoID,
		IssueTitle:      nullString(e.IssueTitle),
		Source:          nullString(e.Source),
		Actor:           nullString(e.Actor),
		Action:          nullString(e.Action),
		DetailID:        nullString(e.DetailID),
		Assignee:        e.Assignee,
		CurrentAssignee: e.CurrentAssignee,
		RepoName:        nullString(e.RepoName),
		Owner:           nullString(e.Owner),
		MirroredAt:      at,
	}
	if e.IssueID != nil {
		r.IssueID = bigquery.NullInt64{Int64: *e.IssueID, Valid: true}
	}
	if e.Timestamp != nil {
		r.Timestamp = bigquery.NullTimestamp{Timestamp: *e.Timestamp, Valid: true}
	}
	return r
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}
