// Package change defines the records emitted by the mirror each time widget
// state is touched. Consumers (journals, webhooks, dashboards) import this
// package to follow what the toolbar shows without polling host windows.
package change

import "encoding/json"

// Op is the kind of widget change.
type Op string

const (
	OpCreate   Op = "create"   // widget created for an inserted element
	OpDestroy  Op = "destroy"  // widget removed with its element
	OpLabel    Op = "label"    // text content projected
	OpIcon     Op = "icon"     // style projected to an icon
	OpDisabled Op = "disabled" // disabled attribute projected
	OpForward  Op = "forward"  // native command forwarded as a content click
)

// Change is a single widget change.
type Change struct {
	Op        Op     `json:"op"`
	ElementID string `json:"element_id"`
	WidgetID  string `json:"widget_id"`
	Value     string `json:"value,omitempty"`
}

// Batch groups the changes caused by one mutation delivery.
type Batch struct {
	ID          string   `json:"id"` // UUIDv7
	SessionID   string   `json:"session_id"`
	DocumentURL string   `json:"document_url"`
	Seq         uint64   `json:"seq"` // monotonically increasing per session
	Changes     []Change `json:"changes"`
	Timestamp   int64    `json:"timestamp"` // epoch milliseconds
}

// MarshalBatch encodes a batch as JSON.
func MarshalBatch(b *Batch) ([]byte, error) { return json.Marshal(b) }

// UnmarshalBatch decodes a JSON batch.
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
