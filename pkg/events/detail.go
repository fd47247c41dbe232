package events

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ericvolp12/issues-etl/pkg/github"
)

// Detail is the payload an event row was derived from.
type Detail interface {
	ID() *string
	NodeID() *string
	Assignee() *string
	// Canonical is a sorted-key JSON rendering used for deduplication.
	Canonical() string
}

// Digest returns a hex sha256 of d's canonical form, or nil without a detail.
func Digest(d Detail) any {
	if d == nil {
		return nil
	}
	sum := sha256.Sum256([]byte(d.Canonical()))
	return hex.EncodeToString(sum[:])
}

type IssueOpenedDetail struct {
	RawID     any
	RawNodeID any
}

func newIssueOpenedDetail(p github.Payload) IssueOpenedDetail {
	return IssueOpenedDetail{RawID: p["id"], RawNodeID: p["node_id"]}
}

func (d IssueOpenedDetail) ID() *string       { return idText(d.RawID) }
func (d IssueOpenedDetail) NodeID() *string   { return text(d.RawNodeID) }
func (d IssueOpenedDetail) Assignee() *string { return nil }
func (d IssueOpenedDetail) Canonical() string {
	return canonical(map[string]any{"id": d.RawID, "node_id": d.RawNodeID})
}

type CommentDetail struct {
	RawID     any
	RawNodeID any
}

func newCommentDetail(p github.Payload) CommentDetail {
	return CommentDetail{RawID: p["id"], RawNodeID: p["node_id"]}
}

func (d CommentDetail) ID() *string       { return idText(d.RawID) }
func (d CommentDetail) NodeID() *string   { return text(d.RawNodeID) }
func (d CommentDetail) Assignee() *string { return nil }
func (d CommentDetail) Canonical() string {
	return canonical(map[string]any{"id": d.RawID, "node_id": d.RawNodeID})
}

// TimelineDetail carries the whole timeline payload. Its shape depends on
// Event, so fields are kept untyped.
type TimelineDetail struct {
	Event  string
	Fields map[string]any
}

func (d TimelineDetail) ID() *string     { return idText(d.Fields["id"]) }
func (d TimelineDetail) NodeID() *string { return text(d.Fields["node_id"]) }

func (d TimelineDetail) Assignee() *string {
	a, ok := d.Fields["assignee"].(map[string]any)
	if !ok {
		return nil
	}
	return text(a["login"])
}

func (d TimelineDetail) Canonical() string { return canonical(d.Fields) }

// OpaqueDetail is a timeline payload that is not a JSON object.
type OpaqueDetail struct {
	Raw json.RawMessage
}

func (d OpaqueDetail) ID() *string       { return nil }
func (d OpaqueDetail) NodeID() *string   { return nil }
func (d OpaqueDetail) Assignee() *string { return nil }

func (d OpaqueDetail) Canonical() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, d.Raw); err != nil {
		return string(d.Raw)
	}
	return buf.String()
}

func newTimelineDetail(t github.TimelineEvent) Detail {
	p, err := t.Payload()
	if err != nil || p == nil {
		return OpaqueDetail{Raw: t.Raw}
	}
	event, _ := p["event"].(string)
	if event == "" {
		event = t.Event
	}
	return TimelineDetail{Event: event, Fields: p}
}

// canonical relies on encoding/json writing map keys in sorted order.
func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func text(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// idText renders a numeric id without exponent notation.
func idText(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			s = strconv.FormatInt(i, 10)
		} else if f, err := t.Float64(); err == nil {
			s = strconv.FormatFloat(f, 'f', -1, 64)
		} else {
			s = t.String()
		}
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return text(v)
	}
	return &s
}

func loginOf(v any) *string {
	u, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return text(u["login"])
}
