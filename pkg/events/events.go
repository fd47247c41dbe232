package events

import (
	"time"

	"github.com/ericvolp12/issues-etl/pkg/frame"
)

// Source names the sub-feed of an issue that produced an event.
type Source string

const (
	SourceIssue    Source = "issue"
	SourceComments Source = "comments"
	SourceTimeline Source = "timeline"
)

const (
	ActionIssueOpened  = "issue_opened"
	ActionCommentAdded = "comment_added"
)

// DigestColumn holds a hash of the event's canonical detail. It keys
// events that carry no node id and is not stored.
const DigestColumn = "detail_digest"

// Columns is the column order of a flattened issue frame.
var Columns = []string{
	"repo_id",
	"issue_id",
	"issue_title",
	"source",
	"timestamp",
	"actor",
	"action",
	"detail_id",
	"detail_node_id",
	"assignee",
	"current_assignee",
	"repo_name",
	"owner",
	DigestColumn,
}

// ActivityEvent is one observed action on an issue.
type ActivityEvent struct {
	RepoID     string
	IssueID    int
	IssueTitle string
	Source     Source
	Timestamp  *time.Time
	Actor      *string
	Action     string

	DetailID     *string
	DetailNodeID *string

	// Assignee is the assignee named by this event's own payload.
	Assignee *string
	// CurrentAssignee is the issue's assignee at extraction time.
	CurrentAssignee *string

	RepoName string
	Owner    string

	Detail Detail
}

// Row renders the event as a frame row. Nil pointers become untyped nils.
func (e ActivityEvent) Row() frame.Row {
	r := frame.Row{
		"repo_id":          e.RepoID,
		"issue_id":         e.IssueID,
		"issue_title":      e.IssueTitle,
		"source":           string(e.Source),
		"timestamp":        nil,
		"actor":            deref(e.Actor),
		"action":           e.Action,
		"detail_id":        deref(e.DetailID),
		"detail_node_id":   deref(e.DetailNodeID),
		"assignee":         deref(e.Assignee),
		"current_assignee": deref(e.CurrentAssignee),
		"repo_name":        e.RepoName,
		"owner":            e.Owner,
		DigestColumn:       Digest(e.Detail),
	}
	if e.Timestamp != nil {
		r["timestamp"] = *e.Timestamp
	}
	return r
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
