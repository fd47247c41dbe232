package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/events"
	"github.com/ericvolp12/issues-etl/pkg/frame"
	"github.com/ericvolp12/issues-etl/pkg/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("extract")

type IssueExtractor struct {
	src       Source
	logger    *slog.Logger
	cacheSize int
	now       func() time.Time
}

type Option func(*IssueExtractor)

func WithCacheSize(n int) Option {
	return func(x *IssueExtractor) { x.cacheSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(x *IssueExtractor) { x.now = now }
}

func NewIssueExtractor(src Source, logger *slog.Logger, opts ...Option) *IssueExtractor {
	x := &IssueExtractor{
		src:       src,
		logger:    logger.With("module", "extract"),
		cacheSize: DefaultCacheSize,
		now:       time.Now,
	}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract flattens every issue updated at or after since, across every
// repository visible to the principal. A nil since extracts everything.
//
// A repository whose issues, comments or timeline cannot be fetched is
// skipped as a whole and listed in the report. Failing to resolve the
// principal or its repositories fails the run.
func (x *IssueExtractor) Extract(ctx context.Context, since *time.Time) (frame.Frame, *RunReport, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()

	start := x.now()
	defer func() { extractDuration.Observe(time.Since(start).Seconds()) }()

	report := &RunReport{Since: since, StartedAt: start, Succeeded: []string{}, Skipped: []SkippedRepo{}}
	out := frame.New(events.Columns...)

	user, err := x.src.CurrentUser(ctx)
	if err != nil {
		return out, report, fmt.Errorf("failed to get current user: %w", err)
	}

	repos, err := x.src.ListRepositories(ctx)
	if err != nil {
		return out, report, fmt.Errorf("failed to list repositories: %w", err)
	}

	cache, err := NewCache(x.cacheSize)
	if err != nil {
		return out, report, err
	}

	x.logger.Info("extracting issues", "owner", user.Login, "repos", len(repos), "since", since)

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return out, report, err
		}

		rows, err := x.extractRepo(ctx, cache, user, repo, since)
		if err != nil {
			x.logger.Warn("skipping repository", "repo", repo.FullName, "err", err)
			report.skip(repo.FullName, err)
			continue
		}

		for _, e := range rows {
			out.Append(e.Row())
		}
		report.Succeeded = append(report.Succeeded, repo.FullName)
	}

	report.Rows = out.Len()
	report.FinishedAt = x.now()
	span.SetAttributes(attribute.Int("rows", report.Rows), attribute.Int("skipped", len(report.Skipped)))
	x.logger.Info("extracted issues", "rows", report.Rows, "succeeded", len(report.Succeeded), "skipped", len(report.Skipped))

	return out, report, nil
}

func (x *IssueExtractor) extractRepo(ctx context.Context, cache *Cache, user github.User, repo github.Repository, since *time.Time) ([]events.ActivityEvent, error) {
	ctx, span := tracer.Start(ctx, "extractRepo")
	defer span.End()
	span.SetAttributes(attribute.String("repo", repo.FullName))

	issues, err := x.src.ListIssues(ctx, repo, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	repoID := strconv.FormatInt(repo.ID, 10)

	var rows []events.ActivityEvent
	for _, issue := range issues {
		if issue.IsPullRequest() {
			issuesSeen.WithLabelValues("pull_request").Inc()
			continue
		}
		issuesSeen.WithLabelValues("issue").Inc()

		feed := &issueFeed{src: x.src, cache: cache, repo: repo, issue: issue}
		evts, err := events.Flatten(ctx, repoID, issue, feed)
		if err != nil {
			return nil, err
		}
		for i := range evts {
			evts[i].RepoName = repo.Name
			evts[i].Owner = user.Login
		}
		rows = append(rows, evts...)
	}

	eventsExtracted.Add(float64(len(rows)))
	x.logger.Debug("extracted repository", "repo", repo.FullName, "issues", len(issues), "rows", len(rows))
	return rows, nil
}
