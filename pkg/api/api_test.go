package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/api"
	"github.com/ericvolp12/issues-etl/pkg/store"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func ptr[T any](v T) *T { return &v }

var _ = Describe("API", func() {
	var (
		ctx context.Context
		s   *store.Store
		e   *echo.Echo
		t0  time.Time
	)

	get := func(target string, out any) int {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		Expect(json.Unmarshal(rec.Body.Bytes(), out)).To(Succeed())
		return rec.Code
	}

	BeforeEach(func() {
		ctx = context.Background()
		t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		var err error
		s, err = store.Open(ctx, ":memory:", logger, true)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		e = echo.New()
		api.NewAPI(s, "github_issues").Register(e)

		event := func(nodeID, repoID string, issue int64, action string, ts time.Time) store.IssueEvent {
			return store.IssueEvent{
				DetailNodeID:    nodeID,
				RepoID:          repoID,
				IssueID:         ptr(issue),
				Action:          ptr(action),
				Timestamp:       &ts,
				Assignee:        "N/A",
				CurrentAssignee: "N/A",
			}
		}
		_, err = s.LoadIssues(ctx, []store.IssueEvent{
			event("I_1", "42", 5, "issue_opened", t0),
			event("IC_2", "42", 5, "comment_added", t0.Add(time.Hour)),
			event("I_3", "42", 6, "issue_opened", t0),
			event("I_4", "43", 1, "issue_opened", t0),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("GET /events", func() {
		It("lists every event by default", func() {
			var resp api.EventsResponse
			Expect(get("/events", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Error).To(BeEmpty())
			Expect(resp.Events).To(HaveLen(4))
		})

		It("filters by repository and issue", func() {
			var resp api.EventsResponse
			Expect(get("/events?repo_id=42&issue_id=5", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Events).To(HaveLen(2))
			Expect(resp.Events[0].DetailNodeID).To(Equal("I_1"))
			Expect(resp.Events[1].DetailNodeID).To(Equal("IC_2"))
		})

		It("filters by action and honors the limit", func() {
			var resp api.EventsResponse
			Expect(get("/events?action=issue_opened&limit=2", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Events).To(HaveLen(2))
			for _, ev := range resp.Events {
				Expect(*ev.Action).To(Equal("issue_opened"))
			}
		})

		It("returns an empty list rather than null", func() {
			var resp map[string]any
			Expect(get("/events?repo_id=nope", &resp)).To(Equal(http.StatusOK))
			Expect(resp["events"]).To(BeEmpty())
			Expect(resp["events"]).NotTo(BeNil())
		})

		It("rejects a malformed issue_id", func() {
			var resp api.EventsResponse
			Expect(get("/events?issue_id=five", &resp)).To(Equal(http.StatusBadRequest))
			Expect(resp.Error).To(ContainSubstring("invalid issue_id"))
		})

		It("rejects a malformed limit", func() {
			var resp api.EventsResponse
			Expect(get("/events?limit=lots", &resp)).To(Equal(http.StatusBadRequest))
			Expect(resp.Error).To(ContainSubstring("invalid limit"))
		})
	})

	Describe("GET /repositories", func() {
		It("lists loaded repositories", func() {
			_, err := s.LoadRepositories(ctx, []store.Repository{
				{RepoID: "42", RepoName: ptr("alpha")},
				{RepoID: "43", RepoName: ptr("beta")},
			})
			Expect(err).NotTo(HaveOccurred())

			var resp api.RepositoriesResponse
			Expect(get("/repositories", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Repositories).To(HaveLen(2))
			Expect(resp.Repositories[0].RepoID).To(Equal("42"))
		})
	})

	Describe("GET /watermarks/:pipeline", func() {
		It("is not found before the first run", func() {
			var resp api.WatermarkResponse
			Expect(get("/watermarks/github_issues", &resp)).To(Equal(http.StatusNotFound))
			Expect(resp.LastSuccessTS).To(BeNil())
			Expect(resp.Error).NotTo(BeEmpty())
		})

		It("returns the stored watermark", func() {
			_, err := s.AdvanceWatermark(ctx, "github_issues", t0)
			Expect(err).NotTo(HaveOccurred())

			var resp api.WatermarkResponse
			Expect(get("/watermarks/github_issues", &resp)).To(Equal(http.StatusOK))
			Expect(resp.PipelineName).To(Equal("github_issues"))
			Expect(*resp.LastSuccessTS).To(BeTemporally("==", t0))
		})
	})

	Describe("GET /runs", func() {
		It("lists runs of the served pipeline newest first", func() {
			Expect(s.StartRun(ctx, &store.Run{RunID: "a", PipelineName: "github_issues", Status: store.RunSucceeded, StartedAt: t0})).To(Succeed())
			Expect(s.StartRun(ctx, &store.Run{RunID: "b", PipelineName: "github_issues", Status: store.RunRunning, StartedAt: t0.Add(time.Hour)})).To(Succeed())
			Expect(s.StartRun(ctx, &store.Run{RunID: "c", PipelineName: "other", Status: store.RunRunning, StartedAt: t0})).To(Succeed())

			var resp api.RunsResponse
			Expect(get("/runs", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Runs).To(HaveLen(2))
			Expect(resp.Runs[0].RunID).To(Equal("b"))

			Expect(get("/runs?pipeline=other&limit=5", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Runs).To(HaveLen(1))
			Expect(resp.Runs[0].RunID).To(Equal("c"))
		})
	})
})
