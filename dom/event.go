package dom

import "errors"

// ErrWrongDocument is returned when an event created by one document is
// dispatched in another.
var ErrWrongDocument = errors.New("dom: event belongs to another document")

// Phase is the event propagation phase.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCapturing
	PhaseAtTarget
	PhaseBubbling
)

// EventInit holds the flags common to every event.
type EventInit struct {
	Bubbles    bool
	Cancelable bool
}

// MouseEventInit holds the fields of a mouse event.
type MouseEventInit struct {
	EventInit
	ScreenX, ScreenY int
	ClientX, ClientY int
	Button           int
	Detail           int
	CtrlKey          bool
	AltKey           bool
	ShiftKey         bool
	MetaKey          bool
}

// Event is a DOM event. Mouse is set for mouse events.
type Event struct {
	Type       string
	Bubbles    bool
	Cancelable bool
	Mouse      *MouseEventInit

	view             *Document
	target           *Node
	currentTarget    *Node
	phase            Phase
	defaultPrevented bool
	stopped          bool
	stoppedNow       bool
}

// CreateEvent returns an event bound to the document's event model.
func (d *Document) CreateEvent(typ string, init EventInit) *Event {
	return &Event{Type: typ, Bubbles: init.Bubbles, Cancelable: init.Cancelable, view: d}
}

// CreateMouseEvent returns a mouse event bound to the document's event model.
func (d *Document) CreateMouseEvent(typ string, init MouseEventInit) *Event {
	ev := d.CreateEvent(typ, init.EventInit)
	m := init
	ev.Mouse = &m
	return ev
}

func (e *Event) View() *Document { return e.view }
func (e *Event) Target() *Node { return e.target }
func (e *Event) CurrentTarget() *Node { return e.currentTarget }
func (e *Event) EventPhase() Phase { return e.phase }
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PreventDefault cancels the event if it is cancelable.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.defaultPrevented = true
	}
}

// StopPropagation stops propagation after the current node.
func (e *Event) StopPropagation() { e.stopped = true }

// StopImmediatePropagation also skips the remaining listeners of the current node.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
	e.stoppedNow = true
}

// Listener is an event listener. Identity is the pointer: registering the
// same *Listener twice for the same type and capture flag is a no-op.
type Listener struct {
	fn func(this *Node, e *Event)
}

// NewListener wraps fn. fn receives the node the listener is registered on.
func NewListener(fn func(this *Node, e *Event)) *Listener {
	return &Listener{fn: fn}
}

// Call invokes the listener with this bound to the given node.
func (l *Listener) Call(this *Node, e *Event) { l.fn(this, e) }

// ListenerHook observes listener registration on a single node. It is how
// code outside the content document attaches to a specific element without
// touching any other node.
type ListenerHook interface {
	ListenerAdded(n *Node, typ string, l *Listener, capture bool)
	ListenerRemoved(n *Node, typ string, l *Listener, capture bool)
}

// RegisteredListener is a listener as registered on a node.
type RegisteredListener struct {
	Listener *Listener
	Capture  bool
}

type listenerEntry struct {
	typ     string
	l       *Listener
	capture bool
}

// SetListenerHook installs h on n, replacing any previous hook. nil removes it.
func (n *Node) SetListenerHook(h ListenerHook) { n.hook = h }

// ListenerHook returns the installed hook, if any.
func (n *Node) ListenerHook() ListenerHook { return n.hook }

// AddEventListener registers l for typ. The hook, if any, sees every call.
func (n *Node) AddEventListener(typ string, l *Listener, capture bool) {
	if l == nil {
		return
	}
	if n.findListener(typ, l, capture) < 0 {
		n.listeners = append(n.listeners, listenerEntry{typ: typ, l: l, capture: capture})
	}
	if n.hook != nil {
		n.hook.ListenerAdded(n, typ, l, capture)
	}
}

// RemoveEventListener unregisters l. Type, listener and capture flag must all
// match the registration.
func (n *Node) RemoveEventListener(typ string, l *Listener, capture bool) {
	if l == nil {
		return
	}
	if i := n.findListener(typ, l, capture); i >= 0 {
		n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
	}
	if n.hook != nil {
		n.hook.ListenerRemoved(n, typ, l, capture)
	}
}

// Listeners returns the listeners registered for typ, in registration order.
func (n *Node) Listeners(typ string) []RegisteredListener {
	var out []RegisteredListener
	for _, e := range n.listeners {
		if e.typ == typ {
			out = append(out, RegisteredListener{Listener: e.l, Capture: e.capture})
		}
	}
	return out
}

func (n *Node) findListener(typ string, l *Listener, capture bool) int {
	for i, e := range n.listeners {
		if e.typ == typ && e.l == l && e.capture == capture {
			return i
		}
	}
	return -1
}

// InvokeListener calls l directly with ev targeted at n, outside of normal
// propagation.
func (n *Node) InvokeListener(l *Listener, ev *Event) {
	ev.target = n
	ev.currentTarget = n
	ev.phase = PhaseAtTarget
	l.Call(n, ev)
	ev.currentTarget = nil
	ev.phase = PhaseNone
}

// DispatchEvent dispatches ev at n through capture, target and bubble
// phases. It returns false if a listener called PreventDefault.
func (n *Node) DispatchEvent(ev *Event) (bool, error) {
	if ev.view != nil && ev.view != n.owner {
		return false, ErrWrongDocument
	}
	ev.target = n
	ev.stopped, ev.stoppedNow = false, false

	var path []*Node
	for p := n.parent; p != nil; p = p.parent {
		path = append(path, p)
	}

	for i := len(path) - 1; i >= 0 && !ev.stopped; i-- {
		path[i].fire(ev, PhaseCapturing)
	}
	if !ev.stopped {
		n.fire(ev, PhaseAtTarget)
	}
	if ev.Bubbles {
		for i := 0; i < len(path) && !ev.stopped; i++ {
			path[i].fire(ev, PhaseBubbling)
		}
	}

	ev.currentTarget = nil
	ev.phase = PhaseNone
	return !ev.defaultPrevented, nil
}

func (n *Node) fire(ev *Event, phase Phase) {
	ev.currentTarget = n
	ev.phase = phase
	for _, e := range append([]listenerEntry(nil), n.listeners...) {
		if e.typ != ev.Type {
			continue
		}
		if (phase == PhaseCapturing && !e.capture) || (phase == PhaseBubbling && e.capture) {
			continue
		}
		if n.findListener(e.typ, e.l, e.capture) < 0 {
			continue
		}
		n.owner.invokeListener(n, e.l, ev)
		if ev.stoppedNow {
			return
		}
	}
}

func (d *Document) invokeListener(n *Node, l *Listener, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dom: listener panicked", "url", d.url, "type", ev.Type, "panic", r)
		}
	}()
	l.Call(n, ev)
}

// Click dispatches a synthetic, bubbling, cancelable click at n.
func (n *Node) Click() bool {
	ev := n.owner.CreateMouseEvent("click", MouseEventInit{
		EventInit: EventInit{Bubbles: true, Cancelable: true},
		Detail:    1,
	})
	ok, _ := n.DispatchEvent(ev)
	return ok
}
