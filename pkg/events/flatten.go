package events

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/araddon/dateparse"
	"github.com/ericvolp12/issues-etl/pkg/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("events")

// IssueFeed gives access to the sub-feeds of a single issue.
type IssueFeed interface {
	Comments(ctx context.Context) ([]github.Comment, error)
	Timeline(ctx context.Context) ([]github.TimelineEvent, error)
}

type dedupKey struct {
	source   Source
	ts       string
	actor    string
	hasActor bool
	action   string
	detail   string
}

type flattener struct {
	repoID   string
	issue    github.Issue
	assignee *string

	seen map[dedupKey]struct{}
	out  []ActivityEvent
}

func (f *flattener) add(source Source, ts *time.Time, actor *string, action string, d Detail) {
	k := dedupKey{source: source, action: action, detail: d.Canonical()}
	if ts != nil {
		k.ts = ts.UTC().Format(time.RFC3339Nano)
	}
	if actor != nil {
		k.actor, k.hasActor = *actor, true
	}
	if _, ok := f.seen[k]; ok {
		return
	}
	f.seen[k] = struct{}{}

	f.out = append(f.out, ActivityEvent{
		RepoID:          f.repoID,
		IssueID:         f.issue.Number,
		IssueTitle:      f.issue.Title,
		Source:          source,
		Timestamp:       ts,
		Actor:           actor,
		Action:          action,
		DetailID:        d.ID(),
		DetailNodeID:    d.NodeID(),
		Assignee:        d.Assignee(),
		CurrentAssignee: f.assignee,
		Detail:          d,
	})
}

// Flatten turns one issue, its comments and its timeline into activity rows
// ordered by timestamp, nil timestamps last. Pull requests yield no rows.
// Errors from the feed are returned as is.
func Flatten(ctx context.Context, repoID string, issue github.Issue, feed IssueFeed) ([]ActivityEvent, error) {
	ctx, span := tracer.Start(ctx, "Flatten")
	defer span.End()
	span.SetAttributes(attribute.String("repo_id", repoID), attribute.Int("issue", issue.Number))

	if issue.IsPullRequest() {
		return []ActivityEvent{}, nil
	}

	f := &flattener{
		repoID:   repoID,
		issue:    issue,
		assignee: issue.AssigneeLogin(),
		seen:     make(map[dedupKey]struct{}),
	}

	p := github.Payload{}
	if len(issue.Raw) > 0 {
		var err error
		if p, err = issue.Payload(); err != nil {
			return nil, fmt.Errorf("failed to decode issue %d: %w", issue.Number, err)
		}
	}
	f.add(SourceIssue, parseTime(p["created_at"]), loginOf(p["user"]), ActionIssueOpened, newIssueOpenedDetail(p))

	comments, err := feed.Comments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for issue %d: %w", issue.Number, err)
	}
	for _, c := range comments {
		cp, err := c.Payload()
		if err != nil {
			cp = github.Payload{}
		}
		f.add(SourceComments, parseTime(cp["created_at"]), loginOf(cp["user"]), ActionCommentAdded, newCommentDetail(cp))
	}

	timeline, err := feed.Timeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline for issue %d: %w", issue.Number, err)
	}
	for _, t := range timeline {
		d := newTimelineDetail(t)
		switch d := d.(type) {
		case TimelineDetail:
			f.add(SourceTimeline, parseTime(d.Fields["created_at"]), loginOf(d.Fields["actor"]), d.Event, d)
		default:
			var actor *string
			if t.Actor != nil {
				actor = &t.Actor.Login
			}
			f.add(SourceTimeline, nil, actor, t.Event, d)
		}
	}

	sort.SliceStable(f.out, func(i, j int) bool {
		a, b := f.out[i].Timestamp, f.out[j].Timestamp
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})

	return f.out, nil
}

func parseTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t, err = dateparse.ParseIn(s, time.UTC); err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}
