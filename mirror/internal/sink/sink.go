// Package sink defines output backends for mirror change batches.
package sink

import (
	"context"

	"github.com/hazyhaar/dommirror/mirror/change"
)

// Sink is the output interface. Implementations deliver change batches to
// different backends (stdout, webhook, SQLite journal, in-process callback).
type Sink interface {
	Send(ctx context.Context, batch change.Batch) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
