package host

import "testing"

func TestToolbarAttachDetach(t *testing.T) {
	w := NewWindow("w1")
	a := w.CreateWidget()
	a.SetID("a")
	b := w.CreateWidget()
	b.SetID("b")

	if w.GetElementByID("a") != nil {
		t.Fatal("detached widget must not be found")
	}
	w.Toolbar().Append(a)
	w.Toolbar().Append(b)
	if got := w.Toolbar().Len(); got != 2 {
		t.Fatalf("toolbar len: got %d, want 2", got)
	}
	if w.GetElementByID("a") != a {
		t.Error("GetElementByID(a) mismatch")
	}

	a.Detach()
	if a.Attached() {
		t.Error("a still attached")
	}
	if w.GetElementByID("a") != nil {
		t.Error("detached widget still found")
	}
	if got := w.Created(); got != 2 {
		t.Errorf("Created: got %d, want 2", got)
	}
	if a.Image() != DefaultIcon {
		t.Errorf("new widget image: got %q", a.Image())
	}
}

func TestAppendForeignWidget(t *testing.T) {
	w1, w2 := NewWindow("w1"), NewWindow("w2")
	wg := w2.CreateWidget()
	w1.Toolbar().Append(wg)
	if wg.Attached() || w1.Toolbar().Len() != 0 {
		t.Error("widget from another window was attached")
	}
}

func TestClick(t *testing.T) {
	w := NewWindow("w1")
	wg := w.CreateWidget()

	var got []NativeEvent
	l := NewListener(func(ev NativeEvent) { got = append(got, ev) })
	wg.AddListener(CommandEvent, l)
	wg.AddListener(CommandEvent, l)
	if n := wg.ListenerCount(CommandEvent); n != 1 {
		t.Fatalf("ListenerCount: got %d, want 1", n)
	}

	if !wg.Click(NativeEvent{ScreenX: 3, Button: 1, ShiftKey: true}) {
		t.Fatal("Click: want delivered")
	}
	if len(got) != 1 {
		t.Fatalf("calls: got %d, want 1", len(got))
	}
	if got[0].Type != CommandEvent || got[0].ScreenX != 3 || got[0].Button != 1 || !got[0].ShiftKey {
		t.Errorf("event: got %+v", got[0])
	}

	wg.SetDisabled(true)
	if wg.Click(NativeEvent{}) {
		t.Error("disabled widget delivered a click")
	}

	wg.SetDisabled(false)
	wg.RemoveListener(CommandEvent, l)
	wg.Click(NativeEvent{})
	if len(got) != 1 {
		t.Errorf("calls after removal: got %d, want 1", len(got))
	}
}

func TestMediator(t *testing.T) {
	m := NewMediator()
	if m.MostRecentWindow() != nil {
		t.Fatal("empty mediator returned a window")
	}
	w1 := m.Open("w1")
	w2 := m.Open("w2")
	if m.MostRecentWindow() != w2 {
		t.Error("most recent: want w2")
	}
	if !m.Focus("w1") || m.MostRecentWindow() != w1 {
		t.Error("focus w1 failed")
	}
	if m.Focus("nope") {
		t.Error("focus of unknown window succeeded")
	}
	if !m.CloseWindow("w1") || !w1.Closed() {
		t.Error("close w1 failed")
	}
	if m.MostRecentWindow() != w2 || m.Window("w1") != nil {
		t.Error("closed window still reachable")
	}
}
