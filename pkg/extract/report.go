package extract

import "time"

type SkippedRepo struct {
	Repo   string `json:"repo"`
	Reason string `json:"reason"`
}

// RunReport records what one extraction covered. Skipped repositories
// contributed no rows.
type RunReport struct {
	RunID      string        `json:"run_id,omitempty"`
	Since      *time.Time    `json:"since,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Succeeded  []string      `json:"succeeded"`
	Skipped    []SkippedRepo `json:"skipped"`
	Rows       int           `json:"rows"`
}

func (r *RunReport) Partial() bool { return len(r.Skipped) > 0 }

func (r *RunReport) skip(repo string, err error) {
	r.Skipped = append(r.Skipped, SkippedRepo{Repo: repo, Reason: err.Error()})
	reposSkipped.Inc()
}
