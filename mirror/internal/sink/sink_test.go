package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/dommirror/mirror/change"
)

func testBatch() change.Batch {
	return change.Batch{
		ID:          "0190c5e2-0000-7000-8000-000000000001",
		SessionID:   "s1",
		DocumentURL: "about:blank",
		Seq:         1,
		Changes: []change.Change{
			{Op: change.OpCreate, ElementID: "b1", WidgetID: "addon-dom--demo-b1"},
			{Op: change.OpLabel, ElementID: "b1", WidgetID: "addon-dom--demo-b1", Value: "Go"},
		},
		Timestamp: 1708700000000,
	}
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.Send(context.Background(), testBatch()); err != nil {
		t.Fatal(err)
	}
	var env struct {
		Type string       `json:"type"`
		Data change.Batch `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if env.Type != "batch" || len(env.Data.Changes) != 2 {
		t.Errorf("got %+v", env)
	}
}

type failing struct{ closed bool }

func (f *failing) Send(context.Context, change.Batch) error { return errors.New("down") }
func (f *failing) Close() error                             { f.closed = true; return nil }

func TestRouterFanOut(t *testing.T) {
	var got int
	cb := NewCallback(func(_ context.Context, b change.Batch) error {
		got += len(b.Changes)
		return nil
	})
	bad := &failing{}
	r := NewRouter(nil, bad, cb)

	err := r.Send(context.Background(), testBatch())
	if err == nil {
		t.Error("want the failing sink's error")
	}
	if got != 2 {
		t.Errorf("callback saw %d changes, want 2", got)
	}
	r.Close()
	if !bad.closed {
		t.Error("Close not propagated")
	}
}

func TestWebhookRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !bytes.Contains(body, []byte(`"type":"batch"`)) {
			t.Errorf("body: %s", body)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond), WithWebhookClient(srv.Client()))
	if err := wh.Send(context.Background(), testBatch()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls: got %d, want 3", n)
	}
}

func TestWebhookExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), testBatch()); err == nil {
		t.Error("want error after retries")
	}
}

func TestJournal(t *testing.T) {
	j, err := OpenJournal(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	ctx := context.Background()

	b := testBatch()
	if err := j.Send(ctx, b); err != nil {
		t.Fatal(err)
	}
	// Redelivery of the same batch is ignored.
	if err := j.Send(ctx, b); err != nil {
		t.Fatal(err)
	}
	other := testBatch()
	other.ID, other.SessionID = "0190c5e2-0000-7000-8000-000000000002", "s2"
	if err := j.Send(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := j.Changes(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2", len(got))
	}
	if got[0].Op != change.OpCreate || got[1].Op != change.OpLabel || got[1].Value != "Go" {
		t.Errorf("entries: got %+v", got)
	}
	all, err := j.Changes(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("all entries: got %d, want 4", len(all))
	}
}
