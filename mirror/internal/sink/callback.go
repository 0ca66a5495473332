package sink

import (
	"context"

	"github.com/hazyhaar/dommirror/mirror/change"
)

// BatchFunc is called for each batch (in-process, zero serialisation).
type BatchFunc func(ctx context.Context, batch change.Batch) error

// Callback delivers batches via a Go function call.
type Callback struct {
	onBatch BatchFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn BatchFunc) *Callback {
	return &Callback{onBatch: fn}
}

func (c *Callback) Send(ctx context.Context, batch change.Batch) error {
	if c.onBatch != nil {
		return c.onBatch(ctx, batch)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
