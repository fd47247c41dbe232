package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the raw JSON object returned by the API, decoded with
// json.Number so numeric ids survive without float rounding.
type Payload map[string]any

func decodePayload(raw json.RawMessage) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return p, nil
}

type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type Repository struct {
	ID        int64     `json:"id"`
	NodeID    string    `json:"node_id"`
	Name      string    `json:"name"`
	FullName  string    `json:"full_name"`
	Owner     User      `json:"owner"`
	CreatedAt time.Time `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

type Issue struct {
	ID          int64           `json:"id"`
	NodeID      string          `json:"node_id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	User        *User           `json:"user"`
	Assignee    *User           `json:"assignee"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// IsPullRequest reports whether the issues feed handed us a pull request.
func (i Issue) IsPullRequest() bool {
	return len(i.PullRequest) > 0 && !bytes.Equal(i.PullRequest, []byte("null"))
}

// AssigneeLogin returns the login of the issue's current assignee, or nil.
func (i Issue) AssigneeLogin() *string {
	if i.Assignee == nil || i.Assignee.Login == "" {
		return nil
	}
	login := i.Assignee.Login
	return &login
}

func (i Issue) Payload() (Payload, error) { return decodePayload(i.Raw) }

type Comment struct {
	ID     int64  `json:"id"`
	NodeID string `json:"node_id"`
	User   *User  `json:"user"`

	Raw json.RawMessage `json:"-"`
}

func (c Comment) Payload() (Payload, error) { return decodePayload(c.Raw) }

// TimelineEvent is one entry of an issue timeline. Its shape varies by
// Event; only the fields common to most kinds are typed here.
type TimelineEvent struct {
	Event string `json:"event"`
	Actor *User  `json:"actor"`

	Raw json.RawMessage `json:"-"`
}

func (t TimelineEvent) Payload() (Payload, error) { return decodePayload(t.Raw) }

// decodeList decodes each raw element into T, keeping the raw bytes on the
// value through setRaw.
func decodeList[T any](raws []json.RawMessage, setRaw func(*T, json.RawMessage)) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %T: %w", v, err)
		}
		setRaw(&v, raw)
		out = append(out, v)
	}
	return out, nil
}
