// Package frame holds a small column-declared row set passed between the
// extract, normalize and load steps.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Row is one record keyed by column name. Missing keys read as nil.
type Row map[string]any

// Frame is an ordered column declaration plus rows. A Frame with columns and
// no rows is an explicitly empty result, distinct from the zero Frame.
type Frame struct {
	Columns []string
	Rows    []Row
}

func New(columns ...string) Frame {
	return Frame{Columns: append([]string(nil), columns...), Rows: []Row{}}
}

func (f Frame) Len() int { return len(f.Rows) }

func (f Frame) Empty() bool { return len(f.Rows) == 0 }

// Append adds rows, declaring any column it has not seen before.
func (f *Frame) Append(rows ...Row) {
	seen := make(map[string]struct{}, len(f.Columns))
	for _, c := range f.Columns {
		seen[c] = struct{}{}
	}
	for _, r := range rows {
		for k := range r {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				f.Columns = append(f.Columns, k)
			}
		}
		f.Rows = append(f.Rows, r)
	}
}

// Column returns every row's value for name, in row order.
func (f Frame) Column(name string) []any {
	out := make([]any, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r[name]
	}
	return out
}

type wire struct {
	Columns []string         `json:"columns"`
	Data    map[string][]any `json:"data"`
}

// MarshalJSON writes the frame column-oriented:
// {"columns":[...],"data":{"col":[v0,v1,...]}}.
func (f Frame) MarshalJSON() ([]byte, error) {
	w := wire{Columns: f.Columns, Data: make(map[string][]any, len(f.Columns))}
	if w.Columns == nil {
		w.Columns = []string{}
	}
	for _, c := range f.Columns {
		w.Data[c] = f.Column(c)
	}
	return json.Marshal(w)
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var w wire
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}

	n := -1
	for _, c := range w.Columns {
		col := w.Data[c]
		if n >= 0 && len(col) != n {
			return fmt.Errorf("column %q has %d values, expected %d", c, len(col), n)
		}
		n = len(col)
	}
	if n < 0 {
		n = 0
	}

	rows := make([]Row, n)
	for i := range rows {
		r := make(Row, len(w.Columns))
		for _, c := range w.Columns {
			r[c] = w.Data[c][i]
		}
		rows[i] = r
	}

	f.Columns = w.Columns
	f.Rows = rows
	return nil
}

func Write(w io.Writer, f Frame) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

func Read(r io.Reader) (Frame, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
