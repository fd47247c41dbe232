package normalize_test

import (
	"encoding/json"
	"math"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/normalize"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

func equalOrNil(want any) types.GomegaMatcher {
	if want == nil {
		return BeNil()
	}
	return Equal(want)
}

var _ = Describe("Coerce", func() {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	DescribeTable("ints",
		func(in any, want any) {
			Expect(normalize.Coerce(normalize.Int, in)).To(equalOrNil(want))
		},
		Entry("int", 5, int64(5)),
		Entry("integral float", 5.0, int64(5)),
		Entry("fractional float", 5.5, nil),
		Entry("NaN", math.NaN(), nil),
		Entry("json number", json.Number("9007199254740993"), int64(9007199254740993)),
		Entry("numeric string", " 42 ", int64(42)),
		Entry("float string", "42.0", int64(42)),
		Entry("garbage string", "forty-two", nil),
		Entry("bool", true, nil),
		Entry("nil", nil, nil),
	)

	DescribeTable("floats",
		func(in any, want any) {
			Expect(normalize.Coerce(normalize.Float, in)).To(equalOrNil(want))
		},
		Entry("float", 1.5, 1.5),
		Entry("int", 2, 2.0),
		Entry("string", "2.25", 2.25),
		Entry("json number", json.Number("3.5"), 3.5),
		Entry("infinity", math.Inf(1), nil),
		Entry("map", map[string]any{}, nil),
	)

	DescribeTable("times",
		func(in any, want any) {
			Expect(normalize.Coerce(normalize.Time, in)).To(equalOrNil(want))
		},
		Entry("time", ts.In(time.FixedZone("x", 3600)), ts),
		Entry("pointer", &ts, ts),
		Entry("nil pointer", (*time.Time)(nil), nil),
		Entry("rfc3339", "2024-03-01T12:30:00Z", ts),
		Entry("offset", "2024-03-01T13:30:00+01:00", ts),
		Entry("loose layout", "2024-03-01 12:30:00", ts),
		Entry("unix seconds", int64(1709296200), ts),
		Entry("empty", "", nil),
		Entry("garbage", "not a date", nil),
		Entry("zero time", time.Time{}, nil),
	)

	DescribeTable("text",
		func(in any, want any) {
			Expect(normalize.Coerce(normalize.Text, in)).To(equalOrNil(want))
		},
		Entry("string", "abc", "abc"),
		Entry("int", 42, "42"),
		Entry("large float without exponent", 1.23456789e+12, "1234567890000"),
		Entry("json number", json.Number("123"), "123"),
		Entry("bool", false, "false"),
		Entry("nil", nil, nil),
		Entry("time", ts, "2024-03-01T12:30:00Z"),
	)
})
