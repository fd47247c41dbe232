// Package normalize shapes extracted frames into the column sets and scalar
// types the warehouse tables expect. Every function here is total: malformed
// values degrade to nil or a placeholder.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/events"
	"github.com/ericvolp12/issues-etl/pkg/extract"
	"github.com/ericvolp12/issues-etl/pkg/frame"
	"github.com/ericvolp12/issues-etl/pkg/store"
)

// NotApplicable stands in for a missing assignee.
const NotApplicable = "N/A"

const syntheticPrefix = "synthetic:"

var IssueColumns = []Column{
	{"detail_node_id", Text},
	{"repo_id", Text},
	{"issue_id", Int},
	{"issue_title", Text},
	{"source", Text},
	{"timestamp", Time},
	{"actor", Text},
	{"action", Text},
	{"detail_id", Text},
	{"assignee", Text},
	{"current_assignee", Text},
	{"repo_name", Text},
	{"owner", Text},
}

// RepositoryColumns types the columns of the repository catalog frame.
var RepositoryColumns = withKinds(extract.RepositoryColumns, map[string]Kind{"created_at": Time})

// withKinds declares names as columns, Text unless kinds says otherwise.
func withKinds(names []string, kinds map[string]Kind) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		k, ok := kinds[n]
		if !ok {
			k = Text
		}
		out[i] = Column{Name: n, Kind: k}
	}
	return out
}

// Conform returns a frame with exactly cols, in order, each value coerced to
// its column kind. Missing columns are filled with nil and extra ones dropped.
func Conform(f frame.Frame, cols []Column) frame.Frame {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	out := frame.New(names...)
	out.Rows = make([]frame.Row, 0, f.Len())
	for _, r := range f.Rows {
		nr := make(frame.Row, len(cols))
		for _, c := range cols {
			nr[c.Name] = Coerce(c.Kind, r[c.Name])
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// CleanIssues conforms f to IssueColumns and applies the issue rules:
// missing assignees become "N/A", detail ids containing "/" are nulled and
// rows without a detail_node_id get a stable surrogate.
func CleanIssues(f frame.Frame) frame.Frame {
	pre := frame.Frame{Columns: f.Columns, Rows: make([]frame.Row, len(f.Rows))}
	digests := make([]string, len(f.Rows))
	for i, r := range f.Rows {
		nr := make(frame.Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		if s, ok := toText(nr["detail_id"]); ok && strings.Contains(s, "/") {
			nr["detail_id"] = nil
		}
		digests[i], _ = toText(nr[events.DigestColumn])
		pre.Rows[i] = nr
	}

	out := Conform(pre, IssueColumns)
	for i, r := range out.Rows {
		for _, c := range []string{"assignee", "current_assignee"} {
			if s, _ := r[c].(string); s == "" {
				r[c] = NotApplicable
			}
		}
		if s, _ := r["detail_node_id"].(string); s == "" {
			r["detail_node_id"] = syntheticNodeID(r, digests[i])
		}
	}
	return out
}

func CleanRepositories(f frame.Frame) frame.Frame {
	return Conform(f, RepositoryColumns)
}

// IssueEvents cleans f and converts it to storage rows.
func IssueEvents(f frame.Frame) []store.IssueEvent {
	clean := CleanIssues(f)
	out := make([]store.IssueEvent, 0, clean.Len())
	for _, r := range clean.Rows {
		e := store.IssueEvent{
			DetailNodeID:    str(r["detail_node_id"]),
			RepoID:          str(r["repo_id"]),
			IssueTitle:      strPtr(r["issue_title"]),
			Source:          strPtr(r["source"]),
			Timestamp:       timePtr(r["timestamp"]),
			Actor:           strPtr(r["actor"]),
			Action:          strPtr(r["action"]),
			DetailID:        strPtr(r["detail_id"]),
			Assignee:        str(r["assignee"]),
			CurrentAssignee: str(r["current_assignee"]),
			RepoName:        strPtr(r["repo_name"]),
			Owner:           strPtr(r["owner"]),
		}
		if i, ok := r["issue_id"].(int64); ok {
			e.IssueID = &i
		}
		out = append(out, e)
	}
	return out
}

// Repositories cleans f and converts it to storage rows.
func Repositories(f frame.Frame) []store.Repository {
	clean := CleanRepositories(f)
	out := make([]store.Repository, 0, clean.Len())
	for _, r := range clean.Rows {
		out = append(out, store.Repository{
			RepoID:        str(r["repo_id"]),
			RepoName:      strPtr(r["repo_name"]),
			RepoFullName:  strPtr(r["repo_full_name"]),
			RepoCreatedAt: timePtr(r["created_at"]),
			Owner:         strPtr(r["owner"]),
		})
	}
	return out
}

// syntheticNodeID derives a key from the fields that identify an event when
// the upstream payload carries no node id, plus the digest of its detail.
// Re-extracting the same event yields the same key.
func syntheticNodeID(r frame.Row, digest string) string {
	h := sha256.New()
	for _, c := range []string{"repo_id", "issue_id", "source", "timestamp", "actor", "action"} {
		s, _ := toText(r[c])
		h.Write([]byte(s))
		h.Write([]byte{0x1f})
	}
	h.Write([]byte(digest))
	return syntheticPrefix + hex.EncodeToString(h.Sum(nil))[:32]
}

func IsSynthetic(nodeID string) bool {
	return strings.HasPrefix(nodeID, syntheticPrefix)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func timePtr(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}
