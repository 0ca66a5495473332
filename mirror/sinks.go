package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/dommirror/mirror/change"
	"github.com/hazyhaar/dommirror/mirror/internal/sink"
)

// Sink is the output interface for change batches.
type Sink = sink.Sink

// BatchFunc is called for each batch.
type BatchFunc = sink.BatchFunc

// Journal is the SQLite change journal.
type Journal = sink.Journal

// JournalEntry is a journaled change.
type JournalEntry = sink.Entry

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn func(ctx context.Context, batch change.Batch) error) Sink {
	return sink.NewCallback(fn)
}

// OpenJournal opens the SQLite change journal at path.
func OpenJournal(path string) (*Journal, error) {
	return sink.OpenJournal(path)
}

// SinksFromConfig builds the sinks listed in the configuration. Journals
// are also returned separately so callers can query them.
func SinksFromConfig(cfgs []SinkConfig, stdout io.Writer, logger *slog.Logger) ([]Sink, []*Journal, error) {
	var sinks []Sink
	var journals []*Journal
	for i, sc := range cfgs {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(stdout))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, logger))
		case "journal":
			j, err := OpenJournal(sc.Path)
			if err != nil {
				closeAll(sinks)
				return nil, nil, fmt.Errorf("mirror: sinks[%d]: %w", i, err)
			}
			sinks = append(sinks, j)
			journals = append(journals, j)
		default:
			closeAll(sinks)
			return nil, nil, fmt.Errorf("mirror: sinks[%d]: unknown type %q", i, sc.Type)
		}
	}
	return sinks, journals, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
