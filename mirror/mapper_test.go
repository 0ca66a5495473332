package mirror

import (
	"errors"
	"testing"

	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/host"
)

func TestWidgetID(t *testing.T) {
	if got := WidgetID("demo", "b1"); got != "addon-dom--demo-b1" {
		t.Errorf("got %q", got)
	}
}

func TestMapper(t *testing.T) {
	d := dom.NewDocument()
	defer d.Close()
	med := host.NewMediator()
	win := med.Open("main")
	m := NewMapper("demo", med, nil)

	var b1, b2 *dom.Node
	d.Do(func() {
		b1 = newButton(d, "b1", "")
		b2 = newButton(d, "b2", "")
	})

	w1, err := m.CreateWidget(b1)
	if err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}
	if w1.ID() != WidgetID("demo", "b1") || !w1.Attached() {
		t.Errorf("widget %q attached=%v", w1.ID(), w1.Attached())
	}
	if m.WidgetFor(b1) != w1 || m.ElementFor(w1) != b1 {
		t.Error("mapping is not bidirectional")
	}
	if m.WidgetFor(b2) != nil || !m.Tracked(b1) || m.Tracked(b2) {
		t.Error("unexpected mapping for b2")
	}

	// Same id again: the stale widget is detached and replaced.
	w1b, err := m.CreateWidget(b1)
	if err != nil {
		t.Fatal(err)
	}
	if w1.Attached() || !w1b.Attached() || win.Toolbar().Len() != 1 {
		t.Error("duplicate id left two attached widgets")
	}
	if m.ElementFor(w1) != nil {
		t.Error("stale widget still maps to the element")
	}

	if got := m.DestroyWidget(b1); got != w1b {
		t.Errorf("DestroyWidget returned %v", got)
	}
	if w1b.Attached() || m.Len() != 0 {
		t.Error("widget or mapping survived destruction")
	}
	if m.DestroyWidget(b1) != nil {
		t.Error("second destruction returned a widget")
	}
}

func TestMapperIDChangedAfterCreate(t *testing.T) {
	d := dom.NewDocument()
	defer d.Close()
	med := host.NewMediator()
	med.Open("main")
	m := NewMapper("demo", med, nil)

	var b *dom.Node
	d.Do(func() { b = newButton(d, "before", "") })
	w, err := m.CreateWidget(b)
	if err != nil {
		t.Fatal(err)
	}
	d.Do(func() { b.SetAttribute("id", "after") })

	if m.WidgetFor(b) != w {
		t.Error("lookup by identity failed after id change")
	}
	if m.DestroyWidget(b) != w || w.Attached() {
		t.Error("widget not destroyed after id change")
	}
}

func TestMapperNoWindow(t *testing.T) {
	d := dom.NewDocument()
	defer d.Close()
	m := NewMapper("demo", host.NewMediator(), nil)

	var b *dom.Node
	d.Do(func() { b = newButton(d, "b1", "") })
	if _, err := m.CreateWidget(b); !errors.Is(err, ErrNoWindow) {
		t.Errorf("got %v, want ErrNoWindow", err)
	}
	if m.Len() != 0 {
		t.Error("mapping added without a window")
	}
}
