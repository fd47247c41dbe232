package store_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

func openStore(opts ...store.Option) *store.Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(context.Background(), ":memory:", logger, true, opts...)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(s.Close)
	return s
}

func event(nodeID, action string, ts time.Time) store.IssueEvent {
	return store.IssueEvent{
		DetailNodeID:    nodeID,
		RepoID:          "42",
		IssueID:         ptr(int64(5)),
		IssueTitle:      ptr("broken build"),
		Source:          ptr("timeline"),
		Timestamp:       &ts,
		Actor:           ptr("alice"),
		Action:          ptr(action),
		Assignee:        "N/A",
		CurrentAssignee: "N/A",
		RepoName:        ptr("alpha"),
		Owner:           ptr("octocat"),
	}
}

var _ = Describe("Store", func() {
	var (
		ctx context.Context
		s   *store.Store
		t0  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	})

	Describe("IsPostgres", func() {
		DescribeTable("picks the dialect from the dsn",
			func(dsn string, want bool) {
				Expect(store.IsPostgres(dsn)).To(Equal(want))
			},
			Entry("postgres url", "postgres://u:p@db:5432/warehouse", true),
			Entry("postgresql url", "postgresql://db/warehouse?search_path=github_source_data", true),
			Entry("keyword dsn", "host=db user=etl dbname=warehouse", true),
			Entry("sqlite path", "./data/issues.db", false),
			Entry("sqlite memory", ":memory:", false),
		)
	})

	Describe("Open", func() {
		It("logs failed statements through the store logger", func() {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			s, err := store.Open(ctx, ":memory:", logger, false)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(s.Close)

			Expect(s.DB().Exec("SELECT * FROM no_such_table").Error).To(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("module=store"))
			Expect(buf.String()).To(ContainSubstring("no_such_table"))
		})
	})

	Describe("LoadIssues", func() {
		BeforeEach(func() {
			s = openStore()
		})

		It("is idempotent", func() {
			rows := []store.IssueEvent{
				event("I_1", "issue_opened", t0),
				event("IC_2", "comment_added", t0.Add(time.Hour)),
				event("CE_3", "closed", t0.Add(2*time.Hour)),
			}

			first, err := s.LoadIssues(ctx, rows)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Inserted).To(Equal(3))
			Expect(first.Table).To(Equal("real_github_issues"))

			before, err := s.ListIssueEvents(ctx, store.EventQuery{})
			Expect(err).NotTo(HaveOccurred())

			second, err := s.LoadIssues(ctx, rows)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Attempted).To(Equal(3))
			Expect(second.Inserted).To(BeZero())

			after, err := s.ListIssueEvents(ctx, store.EventQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(HaveLen(3))
			Expect(after).To(Equal(before))
		})

		It("keeps the first of rows sharing a detail_node_id", func() {
			a := event("I_1", "issue_opened", t0)
			b := event("I_1", "reopened", t0.Add(time.Hour))

			res, err := s.LoadIssues(ctx, []store.IssueEvent{a, b, event("", "closed", t0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Attempted).To(Equal(3))
			Expect(res.Dropped).To(Equal(2))
			Expect(res.Inserted).To(Equal(1))

			stored, err := s.ListIssueEvents(ctx, store.EventQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))
			Expect(*stored[0].Action).To(Equal("issue_opened"))
		})

		It("reports empty input without touching the database", func() {
			Expect(s.Close()).To(Succeed())

			res, err := s.LoadIssues(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Empty).To(BeTrue())
			Expect(res.Inserted).To(BeZero())
		})

		It("ignores rows already stored by an earlier load", func() {
			_, err := s.LoadIssues(ctx, []store.IssueEvent{event("I_1", "issue_opened", t0)})
			Expect(err).NotTo(HaveOccurred())

			res, err := s.LoadIssues(ctx, []store.IssueEvent{
				event("I_1", "issue_opened", t0),
				event("IC_2", "comment_added", t0.Add(time.Minute)),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(Equal(1))

			n, err := s.CountIssueEvents(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeEquivalentTo(2))
		})
	})

	Describe("LoadIssues failures", func() {
		It("rolls back every batch of the call", func() {
			s = openStore(store.WithIssueBatchSize(1))

			calls := 0
			err := s.DB().Callback().Create().After("gorm:create").Register("test:fail_second_batch", func(tx *gorm.DB) {
				if tx.Statement.Table != "real_github_issues" {
					return
				}
				calls++
				if calls == 2 {
					tx.AddError(errors.New("disk on fire"))
				}
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.LoadIssues(ctx, []store.IssueEvent{
				event("I_1", "issue_opened", t0),
				event("IC_2", "comment_added", t0.Add(time.Minute)),
				event("CE_3", "closed", t0.Add(2*time.Minute)),
			})
			Expect(err).To(MatchError(ContainSubstring("disk on fire")))

			var loadErr *store.LoadError
			Expect(errors.As(err, &loadErr)).To(BeTrue())
			Expect(loadErr.Table).To(Equal("real_github_issues"))

			n, err := s.CountIssueEvents(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("LoadRepositories", func() {
		BeforeEach(func() {
			s = openStore()
		})

		It("is idempotent by repo_id", func() {
			created := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
			rows := []store.Repository{
				{RepoID: "9", RepoName: ptr("alpha"), RepoFullName: ptr("octo/alpha"), RepoCreatedAt: &created, Owner: ptr("octo")},
				{RepoID: "10", RepoName: ptr("beta"), RepoFullName: ptr("octo/beta"), Owner: ptr("octo")},
			}

			res, err := s.LoadRepositories(ctx, rows)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(Equal(2))

			res, err = s.LoadRepositories(ctx, rows)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(BeZero())

			stored, err := s.ListRepositories(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(2))
			Expect(stored[1].RepoID).To(Equal("9"))
			Expect(*stored[1].RepoCreatedAt).To(BeTemporally("==", created))
			Expect(stored[0].RepoCreatedAt).To(BeNil())
		})

		It("reports empty input", func() {
			res, err := s.LoadRepositories(ctx, []store.Repository{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Empty).To(BeTrue())
			Expect(res.Table).To(Equal("github_repositories"))
		})
	})

	Describe("watermarks", func() {
		BeforeEach(func() {
			s = openStore()
		})

		It("is absent before the first run", func() {
			w, err := s.GetWatermark(ctx, "github_issues")
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(BeNil())
		})

		It("advances and reads back", func() {
			to := t0.Add(123456789 * time.Nanosecond)
			got, err := s.AdvanceWatermark(ctx, "github_issues", to)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeTemporally("==", to.Truncate(time.Microsecond)))

			w, err := s.GetWatermark(ctx, "github_issues")
			Expect(err).NotTo(HaveOccurred())
			Expect(*w).To(BeTemporally("==", got))
		})

		It("always moves forward", func() {
			first, err := s.AdvanceWatermark(ctx, "github_issues", t0)
			Expect(err).NotTo(HaveOccurred())

			second, err := s.AdvanceWatermark(ctx, "github_issues", t0.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeTemporally(">", first))

			w, err := s.GetWatermark(ctx, "github_issues")
			Expect(err).NotTo(HaveOccurred())
			Expect(*w).To(BeTemporally("==", second))
		})

		It("keeps pipelines apart", func() {
			_, err := s.AdvanceWatermark(ctx, "github_issues", t0)
			Expect(err).NotTo(HaveOccurred())

			w, err := s.GetWatermark(ctx, "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(BeNil())
		})
	})

	Describe("runs", func() {
		BeforeEach(func() {
			s = openStore()
		})

		It("records and lists runs newest first", func() {
			older := &store.Run{RunID: "a", PipelineName: "github_issues", Status: store.RunRunning, StartedAt: t0}
			newer := &store.Run{RunID: "b", PipelineName: "github_issues", Status: store.RunRunning, StartedAt: t0.Add(time.Hour)}
			Expect(s.StartRun(ctx, older)).To(Succeed())
			Expect(s.StartRun(ctx, newer)).To(Succeed())

			finished := t0.Add(2 * time.Hour)
			newer.Status = store.RunFailed
			newer.Error = "boom"
			newer.FinishedAt = &finished
			newer.Skipped = datatypes.JSON(`[{"repo":"octo/alpha","reason":"502"}]`)
			Expect(s.FinishRun(ctx, newer)).To(Succeed())

			runs, err := s.ListRuns(ctx, "github_issues", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
			Expect(runs[0].RunID).To(Equal("b"))
			Expect(runs[0].Status).To(Equal(store.RunFailed))
			Expect(string(runs[0].Skipped)).To(MatchJSON(`[{"repo":"octo/alpha","reason":"502"}]`))
			Expect(runs[1].Status).To(Equal(store.RunRunning))

			runs, err = s.ListRuns(ctx, "github_issues", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(1))
		})
	})

	Describe("queries", func() {
		BeforeEach(func() {
			s = openStore()
			_, err := s.LoadIssues(ctx, []store.IssueEvent{
				event("I_1", "issue_opened", t0),
				event("CE_2", "closed", t0.Add(time.Hour)),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("filters events by action", func() {
			out, err := s.ListIssueEvents(ctx, store.EventQuery{Action: ptr("closed")})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].DetailNodeID).To(Equal("CE_2"))
		})

		It("streams every event in batches", func() {
			var seen []string
			err := s.EachIssueEventBatch(ctx, 1, func(batch []store.IssueEvent) error {
				for _, e := range batch {
					seen = append(seen, e.DetailNodeID)
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(ConsistOf("I_1", "CE_2"))
		})
	})
})
