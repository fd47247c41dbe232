package extract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ericvolp12/issues-etl/pkg/frame"
)

var RepositoryColumns = []string{"repo_id", "repo_name", "repo_full_name", "created_at", "owner"}

// Repositories returns one row per repository visible to the principal.
func Repositories(ctx context.Context, src RepositoryLister) (frame.Frame, error) {
	ctx, span := tracer.Start(ctx, "Repositories")
	defer span.End()

	repos, err := src.ListRepositories(ctx)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("failed to list repositories: %w", err)
	}

	out := frame.New(RepositoryColumns...)
	for _, r := range repos {
		var created any
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt
		}
		out.Append(frame.Row{
			"repo_id":        strconv.FormatInt(r.ID, 10),
			"repo_name":      r.Name,
			"repo_full_name": r.FullName,
			"created_at":     created,
			"owner":          r.Owner.Login,
		})
	}
	return out, nil
}
