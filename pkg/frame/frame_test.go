package frame_test

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ericvolp12/issues-etl/pkg/frame"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame", func() {
	It("declares new columns as rows are appended", func() {
		f := frame.New("a")
		f.Append(frame.Row{"a": 1}, frame.Row{"a": 2, "b": "x"})

		Expect(f.Columns).To(Equal([]string{"a", "b"}))
		Expect(f.Len()).To(Equal(2))
		Expect(f.Column("b")).To(Equal([]any{nil, "x"}))
	})

	It("keeps an empty frame's columns through the json codec", func() {
		var buf bytes.Buffer
		Expect(frame.Write(&buf, frame.New("repo_id", "issue_id"))).To(Succeed())

		got, err := frame.Read(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Columns).To(Equal([]string{"repo_id", "issue_id"}))
		Expect(got.Empty()).To(BeTrue())
		Expect(got.Rows).NotTo(BeNil())
	})

	It("writes column-oriented json and reads numbers exactly", func() {
		f := frame.New("repo_id", "issue_id")
		f.Append(frame.Row{"repo_id": "12", "issue_id": 9007199254740993})

		b, err := json.Marshal(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(MatchJSON(`{"columns":["repo_id","issue_id"],"data":{"repo_id":["12"],"issue_id":[9007199254740993]}}`))

		got, err := frame.Read(bytes.NewReader(b))
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Rows[0]["issue_id"]).To(Equal(json.Number("9007199254740993")))
	})

	It("rejects ragged columns", func() {
		_, err := frame.Read(strings.NewReader(`{"columns":["a","b"],"data":{"a":[1,2],"b":[1]}}`))
		Expect(err).To(HaveOccurred())
	})
})
