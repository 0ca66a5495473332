package mirror

import (
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/host"
	"github.com/hazyhaar/dommirror/mirror/change"
)

// Forwarding maps content event types to the native event that triggers
// them. Other event types are not forwarded.
var Forwarding = map[string]string{
	"click": host.CommandEvent,
}

type shimKey struct {
	l       *dom.Listener
	capture bool
}

type shim struct {
	typ     string
	native  string
	wrapper *host.Listener
}

// bridge forwards native widget events to content listeners. It is
// installed as the listener hook of mirrored elements only, and every
// method runs on the content document loop.
type bridge struct {
	s     *session
	shims map[*dom.Node]map[shimKey]*shim
}

func newBridge(s *session) *bridge {
	return &bridge{s: s, shims: make(map[*dom.Node]map[shimKey]*shim)}
}

// install hooks el's listener registration and binds the forwarded
// listeners it already has.
func (b *bridge) install(el *dom.Node) {
	el.SetListenerHook(b)
	for typ := range Forwarding {
		for _, rl := range el.Listeners(typ) {
			b.bind(el, typ, rl.Listener, rl.Capture)
		}
	}
}

// uninstall unbinds every wrapper from w and removes the hook.
func (b *bridge) uninstall(el *dom.Node, w *host.Widget) {
	if w != nil {
		for _, sh := range b.shims[el] {
			w.RemoveListener(sh.native, sh.wrapper)
		}
	}
	delete(b.shims, el)
	if el.ListenerHook() == b {
		el.SetListenerHook(nil)
	}
}

func (b *bridge) ListenerAdded(el *dom.Node, typ string, l *dom.Listener, capture bool) {
	if _, ok := Forwarding[typ]; !ok || b.s.closed.Load() {
		return
	}
	b.bind(el, typ, l, capture)
}

func (b *bridge) ListenerRemoved(el *dom.Node, typ string, l *dom.Listener, capture bool) {
	key := shimKey{l: l, capture: capture}
	sh, ok := b.shims[el][key]
	if !ok || sh.typ != typ {
		return
	}
	if w := b.widget(el); w != nil {
		w.RemoveListener(sh.native, sh.wrapper)
	}
	delete(b.shims[el], key)
	b.s.c.logger.Debug("mirror: listener unbound", "element", el.ID(), "type", typ)
}

// bind attaches the wrapper for l, creating it on first use. Binding the
// same listener again reuses its wrapper.
func (b *bridge) bind(el *dom.Node, typ string, l *dom.Listener, capture bool) {
	native, ok := Forwarding[typ]
	if !ok {
		return
	}
	key := shimKey{l: l, capture: capture}
	byKey := b.shims[el]
	if byKey == nil {
		byKey = make(map[shimKey]*shim)
		b.shims[el] = byKey
	}
	sh, ok := byKey[key]
	if !ok || sh.typ != typ {
		sh = &shim{typ: typ, native: native, wrapper: b.wrap(el, typ, l, capture)}
		byKey[key] = sh
	}
	w := b.widget(el)
	if w == nil {
		b.s.c.logger.Debug("mirror: no widget for listener", "element", el.ID(), "type", typ)
		return
	}
	w.AddListener(native, sh.wrapper)
}

// widget resolves el's widget by namespaced id in the current window,
// falling back to the session mapping table.
func (b *bridge) widget(el *dom.Node) *host.Widget {
	if win := b.s.c.locator.MostRecentWindow(); win != nil {
		if w := win.GetElementByID(b.s.mapper.WidgetID(el)); w != nil {
			return w
		}
	}
	return b.s.mapper.WidgetFor(el)
}

// wrap returns the native listener forwarding to l. It runs on the host
// side and hands the event over to the content document loop.
func (b *bridge) wrap(el *dom.Node, typ string, l *dom.Listener, capture bool) *host.Listener {
	doc := b.s.doc
	id := el.ID()
	return host.NewListener(func(ev host.NativeEvent) {
		err := doc.Post(func() {
			if b.s.closed.Load() || !registered(el, typ, l, capture) {
				return
			}
			cev := doc.CreateMouseEvent(typ, dom.MouseEventInit{
				EventInit: dom.EventInit{Bubbles: true, Cancelable: true},
				ScreenX:   ev.ScreenX,
				ScreenY:   ev.ScreenY,
				ClientX:   ev.ClientX,
				ClientY:   ev.ClientY,
				Button:    ev.Button,
				Detail:    ev.Detail,
				CtrlKey:   ev.CtrlKey,
				AltKey:    ev.AltKey,
				ShiftKey:  ev.ShiftKey,
				MetaKey:   ev.MetaKey,
			})
			el.InvokeListener(l, cev)
			b.s.emit([]change.Change{{
				Op:        change.OpForward,
				ElementID: el.ID(),
				WidgetID:  b.s.mapper.WidgetID(el),
				Value:     typ,
			}})
		})
		if err != nil {
			b.s.c.logger.Debug("mirror: forward dropped", "element", id, "error", err)
		}
	})
}

func registered(el *dom.Node, typ string, l *dom.Listener, capture bool) bool {
	for _, rl := range el.Listeners(typ) {
		if rl.Listener == l && rl.Capture == capture {
			return true
		}
	}
	return false
}
