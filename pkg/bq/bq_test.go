package bq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/ericvolp12/issues-etl/pkg/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeInserter struct {
	batches [][]*bigquery.StructSaver
	err     error
}

func (f *fakeInserter) Put(ctx context.Context, src interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, src.([]*bigquery.StructSaver))
	return nil
}

var _ = Describe("BQ", func() {
	var (
		ins *fakeInserter
		b   *BQ
		at  time.Time
	)

	BeforeEach(func() {
		ins = &fakeInserter{}
		b = newBQ(ins, "issues_mirror", slog.New(slog.NewTextHandler(io.Discard, nil)))
		b.batchSize = 2
		at = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		b.now = func() time.Time { return at }
	})

	rows := func(n int) []store.IssueEvent {
		out := make([]store.IssueEvent, n)
		for i := range out {
			out[i] = store.IssueEvent{DetailNodeID: fmt.Sprintf("CE_%d", i), RepoID: "42", Assignee: "N/A", CurrentAssignee: "N/A"}
		}
		return out
	}

	It("batches rows and uses detail_node_id as insert id", func() {
		Expect(b.MirrorIssues(context.Background(), rows(3))).To(Succeed())

		Expect(ins.batches).To(HaveLen(2))
		Expect(ins.batches[0]).To(HaveLen(2))
		Expect(ins.batches[1]).To(HaveLen(1))
		Expect(ins.batches[1][0].InsertID).To(Equal("CE_2"))
	})

	It("converts rows to records with nulls for missing values", func() {
		Expect(b.MirrorIssues(context.Background(), rows(1))).To(Succeed())

		rec, ok := ins.batches[0][0].Struct.(*Record)
		Expect(ok).To(BeTrue())
		Expect(rec.DetailNodeID).To(Equal("CE_0"))
		Expect(rec.Assignee).To(Equal("N/A"))
		Expect(rec.Actor.Valid).To(BeFalse())
		Expect(rec.IssueID.Valid).To(BeFalse())
		Expect(rec.MirroredAt).To(Equal(at))
	})

	It("returns insert failures", func() {
		ins.err = errors.New("quota exceeded")
		Expect(b.MirrorIssues(context.Background(), rows(1))).To(MatchError(ContainSubstring("quota exceeded")))
	})

	It("tolerates a mirror built without a client", func() {
		Expect(b.Close()).To(Succeed())
	})
})
