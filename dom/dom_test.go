package dom

import (
	"testing"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	d := NewDocument(WithURL("about:test"))
	t.Cleanup(d.Close)
	return d
}

func mustDo(t *testing.T, d *Document, fn func()) {
	t.Helper()
	if err := d.Do(fn); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestMutationDeliveryAfterTask(t *testing.T) {
	d := newTestDocument(t)
	var got [][]MutationRecord
	var inTask bool

	mustDo(t, d, func() {
		o := d.NewMutationObserver(func(recs []MutationRecord, _ *MutationObserver) {
			if inTask {
				t.Error("records delivered while the mutating task was still running")
			}
			got = append(got, recs)
		})
		if err := o.Observe(d.Body(), ObserveOptions{ChildList: true, Attributes: true, CharacterData: true, Subtree: true}); err != nil {
			t.Error(err)
		}
	})

	mustDo(t, d, func() {
		inTask = true
		b := d.CreateElement("button")
		b.SetAttribute("id", "b1") // detached: not observed
		d.Body().AppendChild(b)
		b.SetAttribute("disabled", "")
		txt := d.CreateTextNode("Go")
		b.AppendChild(txt)
		txt.SetData("Stop")
		inTask = false
	})

	if len(got) != 1 {
		t.Fatalf("deliveries: got %d, want 1", len(got))
	}
	recs := got[0]
	want := []MutationType{MutationChildList, MutationAttributes, MutationChildList, MutationCharacterData}
	if len(recs) != len(want) {
		t.Fatalf("records: got %d, want %d", len(recs), len(want))
	}
	for i, typ := range want {
		if recs[i].Type != typ {
			t.Errorf("record[%d]: got %s, want %s", i, recs[i].Type, typ)
		}
	}
	if recs[1].AttributeName != "disabled" {
		t.Errorf("attribute name: got %q", recs[1].AttributeName)
	}
}

func TestObserverWithoutSubtreeIgnoresDescendants(t *testing.T) {
	d := newTestDocument(t)
	var n int
	mustDo(t, d, func() {
		div := d.CreateElement("div")
		d.Body().AppendChild(div)
		o := d.NewMutationObserver(func(recs []MutationRecord, _ *MutationObserver) { n += len(recs) })
		o.Observe(d.Body(), ObserveOptions{ChildList: true})
		div.AppendChild(d.CreateElement("span"))
	})
	if n != 0 {
		t.Errorf("records: got %d, want 0", n)
	}
}

func TestDisconnect(t *testing.T) {
	d := newTestDocument(t)
	var n int
	var o *MutationObserver
	mustDo(t, d, func() {
		o = d.NewMutationObserver(func(recs []MutationRecord, _ *MutationObserver) { n += len(recs) })
		o.Observe(d.Body(), ObserveOptions{ChildList: true, Subtree: true})
	})
	if d.ObserverCount() != 1 {
		t.Fatalf("ObserverCount: got %d, want 1", d.ObserverCount())
	}
	mustDo(t, d, func() {
		d.Body().AppendChild(d.CreateElement("p"))
		o.Disconnect()
	})
	if n != 0 {
		t.Errorf("records after disconnect: got %d, want 0", n)
	}
	if d.ObserverCount() != 0 {
		t.Errorf("ObserverCount: got %d, want 0", d.ObserverCount())
	}
}

func TestOldValues(t *testing.T) {
	d := newTestDocument(t)
	var recs []MutationRecord
	mustDo(t, d, func() {
		b := d.CreateElement("button")
		b.SetAttribute("style", "a")
		d.Body().AppendChild(b)
		o := d.NewMutationObserver(func(r []MutationRecord, _ *MutationObserver) { recs = append(recs, r...) })
		o.Observe(d.Body(), ObserveOptions{Attributes: true, Subtree: true, AttributeOldValue: true})
		b.SetAttribute("style", "b")
		b.RemoveAttribute("style")
	})
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	if recs[0].OldValue != "a" || recs[1].OldValue != "b" {
		t.Errorf("old values: got %q, %q", recs[0].OldValue, recs[1].OldValue)
	}
}

func TestSetTextContent(t *testing.T) {
	d := newTestDocument(t)
	var recs []MutationRecord
	var b *Node
	mustDo(t, d, func() {
		b = d.CreateElement("button")
		b.AppendChild(d.CreateTextNode("Go"))
		d.Body().AppendChild(b)
		o := d.NewMutationObserver(func(r []MutationRecord, _ *MutationObserver) { recs = append(recs, r...) })
		o.Observe(d.Body(), ObserveOptions{ChildList: true, Subtree: true})
		b.SetTextContent("Stop")
	})
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	if len(recs[0].AddedNodes) != 1 || len(recs[0].RemovedNodes) != 1 {
		t.Errorf("added/removed: got %d/%d", len(recs[0].AddedNodes), len(recs[0].RemovedNodes))
	}
	var text string
	mustDo(t, d, func() { text = b.TextContent() })
	if text != "Stop" {
		t.Errorf("TextContent: got %q", text)
	}
}

func TestInsertFragmentAndHierarchy(t *testing.T) {
	d := newTestDocument(t)
	mustDo(t, d, func() {
		frag := d.CreateDocumentFragment()
		frag.AppendChild(d.CreateElement("a"))
		frag.AppendChild(d.CreateElement("b"))
		if err := d.Body().AppendChild(frag); err != nil {
			t.Error(err)
			return
		}
		if n := len(d.Body().ChildNodes()); n != 2 {
			t.Errorf("body children: got %d, want 2", n)
		}
		if frag.FirstChild() != nil {
			t.Error("fragment not emptied")
		}
		if err := d.Body().AppendChild(d.DocumentElement()); err != ErrHierarchy {
			t.Errorf("append ancestor: got %v, want ErrHierarchy", err)
		}
		other := NewDocument()
		defer other.Close()
		if err := d.Body().AppendChild(other.CreateElement("p")); err != ErrHierarchy {
			t.Errorf("append foreign node: got %v, want ErrHierarchy", err)
		}
	})
}

func TestListenerDedupAndCapture(t *testing.T) {
	d := newTestDocument(t)
	var order []string
	mustDo(t, d, func() {
		div := d.CreateElement("div")
		b := d.CreateElement("button")
		div.AppendChild(b)
		d.Body().AppendChild(div)

		onTarget := NewListener(func(this *Node, e *Event) {
			if this != b || e.Target() != b {
				t.Error("this/target mismatch")
			}
			order = append(order, "target")
		})
		b.AddEventListener("click", onTarget, false)
		b.AddEventListener("click", onTarget, false)
		div.AddEventListener("click", NewListener(func(this *Node, e *Event) {
			order = append(order, "capture")
		}), true)
		div.AddEventListener("click", NewListener(func(this *Node, e *Event) {
			if this != div || e.CurrentTarget() != div {
				t.Error("bubble currentTarget mismatch")
			}
			order = append(order, "bubble")
			e.PreventDefault()
		}), false)

		if b.Click() {
			t.Error("Click: want default prevented")
		}

		b.RemoveEventListener("click", onTarget, true)
		if len(b.Listeners("click")) != 1 {
			t.Error("removal with a different capture flag must not match")
		}
		b.RemoveEventListener("click", onTarget, false)
		if len(b.Listeners("click")) != 0 {
			t.Error("listener not removed")
		}
	})
	want := []string{"capture", "target", "bubble"}
	if len(order) != len(want) {
		t.Fatalf("order: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order: got %v, want %v", order, want)
		}
	}
}

type recordingHook struct{ added, removed int }

func (h *recordingHook) ListenerAdded(*Node, string, *Listener, bool) { h.added++ }
func (h *recordingHook) ListenerRemoved(*Node, string, *Listener, bool) { h.removed++ }

func TestListenerHookIsPerNode(t *testing.T) {
	d := newTestDocument(t)
	h := &recordingHook{}
	mustDo(t, d, func() {
		a := d.CreateElement("button")
		b := d.CreateElement("button")
		a.SetListenerHook(h)
		l := NewListener(func(*Node, *Event) {})
		a.AddEventListener("click", l, false)
		b.AddEventListener("click", l, false)
		a.RemoveEventListener("click", l, false)
	})
	if h.added != 1 || h.removed != 1 {
		t.Errorf("hook calls: added=%d removed=%d, want 1/1", h.added, h.removed)
	}
}

func TestBindings(t *testing.T) {
	d := newTestDocument(t)
	type key struct{ name string }
	k1, k2 := &key{"a"}, &key{"b"}
	mustDo(t, d, func() {
		n := d.CreateElement("button")
		if n.Binding(k1) != nil {
			t.Error("binding on a fresh node")
		}
		n.SetBinding(k1, "one")
		n.SetBinding(k2, 2)
		if n.Binding(k1) != "one" || n.Binding(k2) != 2 {
			t.Errorf("bindings: got %v, %v", n.Binding(k1), n.Binding(k2))
		}
		n.SetBinding(k1, nil)
		if n.Binding(k1) != nil || n.Binding(k2) != 2 {
			t.Errorf("after removal: got %v, %v", n.Binding(k1), n.Binding(k2))
		}
	})
}

func TestDispatchWrongDocument(t *testing.T) {
	d := newTestDocument(t)
	other := newTestDocument(t)
	mustDo(t, d, func() {
		ev := other.CreateEvent("click", EventInit{})
		if _, err := d.Body().DispatchEvent(ev); err != ErrWrongDocument {
			t.Errorf("got %v, want ErrWrongDocument", err)
		}
	})
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	d := newTestDocument(t)
	mustDo(t, d, func() { panic("boom") })
	ran := false
	mustDo(t, d, func() { ran = true })
	if !ran {
		t.Error("loop stopped after a panicking task")
	}
}

func TestClosedDocument(t *testing.T) {
	d := NewDocument()
	d.Close()
	if err := d.Do(func() {}); err != ErrClosed {
		t.Errorf("Do after Close: got %v, want ErrClosed", err)
	}
	if err := d.Post(func() {}); err != ErrClosed {
		t.Errorf("Post after Close: got %v, want ErrClosed", err)
	}
}

func TestGetElementByID(t *testing.T) {
	d := newTestDocument(t)
	mustDo(t, d, func() {
		b := d.CreateElement("button")
		b.SetAttribute("id", "b1")
		if d.GetElementByID("b1") != nil {
			t.Error("detached element found")
		}
		d.Body().AppendChild(b)
		if d.GetElementByID("b1") != b {
			t.Error("connected element not found")
		}
		if !b.IsConnected() {
			t.Error("IsConnected: want true")
		}
	})
}
