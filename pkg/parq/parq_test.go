package parq_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/parq"
	"github.com/ericvolp12/issues-etl/pkg/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/parquet-go/parquet-go"
)

type batches [][]store.IssueEvent

func (b batches) EachIssueEventBatch(ctx context.Context, size int, fn func([]store.IssueEvent) error) error {
	for _, batch := range b {
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func sp(s string) *string { return &s }

var _ = Describe("Parq", func() {
	var (
		dir string
		p   *parq.Parq
		ts  time.Time
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		ts = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

		var err error
		p, err = parq.NewParq(slog.New(slog.NewTextHandler(io.Discard, nil)), filepath.Join(dir, "archive"), "issues")
		Expect(err).NotTo(HaveOccurred())
	})

	event := func(id string) store.IssueEvent {
		n := int64(5)
		return store.IssueEvent{
			DetailNodeID:    id,
			RepoID:          "42",
			IssueID:         &n,
			Timestamp:       &ts,
			Action:          sp("closed"),
			Assignee:        "N/A",
			CurrentAssignee: "N/A",
		}
	}

	It("archives rows to a new parquet file", func() {
		path, err := p.ArchiveIssues(context.Background(), []store.IssueEvent{event("CE_1"), event("CE_2")})
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HavePrefix(filepath.Join(dir, "archive", "issues_")))

		rows, err := parquet.ReadFile[parq.Record](path)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].DetailNodeID).To(Equal("CE_1"))
		Expect(*rows[0].IssueID).To(BeEquivalentTo(5))
		Expect(*rows[0].Timestamp).To(Equal(ts.UnixMicro()))
		Expect(*rows[0].Action).To(Equal("closed"))
	})

	It("keeps nulls apart from zero values", func() {
		empty := event("CE_1")
		empty.DetailID = sp("")
		empty.IssueID = nil
		empty.Timestamp = nil

		zero := event("CE_2")
		zero.IssueID = new(int64)
		epoch := time.Unix(0, 0).UTC()
		zero.Timestamp = &epoch

		path, err := p.ArchiveIssues(context.Background(), []store.IssueEvent{empty, zero})
		Expect(err).NotTo(HaveOccurred())

		rows, err := parquet.ReadFile[parq.Record](path)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))

		Expect(rows[0].Actor).To(BeNil())
		Expect(rows[0].IssueID).To(BeNil())
		Expect(rows[0].Timestamp).To(BeNil())
		Expect(rows[0].DetailID).NotTo(BeNil())
		Expect(*rows[0].DetailID).To(BeEmpty())

		Expect(rows[1].DetailID).To(BeNil())
		Expect(rows[1].IssueID).NotTo(BeNil())
		Expect(*rows[1].IssueID).To(BeZero())
		Expect(rows[1].Timestamp).NotTo(BeNil())
		Expect(*rows[1].Timestamp).To(BeZero())
	})

	It("exports every batch into one file", func() {
		out := filepath.Join(dir, "export.parquet")
		src := batches{{event("A")}, {event("B"), event("C")}}

		n, err := p.Export(context.Background(), src, out, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))

		rows, err := parquet.ReadFile[parq.Record](out)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[2].DetailNodeID).To(Equal("C"))
	})
})
