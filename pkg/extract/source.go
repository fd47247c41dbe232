package extract

import (
	"context"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/github"
)

// Source is the upstream capability the extractors need. *github.Client
// implements it.
type Source interface {
	CurrentUser(ctx context.Context) (github.User, error)
	ListRepositories(ctx context.Context) ([]github.Repository, error)
	ListIssues(ctx context.Context, repo github.Repository, since *time.Time) ([]github.Issue, error)
	ListComments(ctx context.Context, repo github.Repository, issue github.Issue) ([]github.Comment, error)
	ListTimeline(ctx context.Context, repo github.Repository, issue github.Issue) ([]github.TimelineEvent, error)
}

type RepositoryLister interface {
	ListRepositories(ctx context.Context) ([]github.Repository, error)
}

var _ Source = (*github.Client)(nil)
