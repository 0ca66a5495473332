// Package host models the native side of the mirror: chrome windows, each
// with a toolbar container holding widgets. Widgets carry a label, an icon
// and a disabled flag, and fire "command" listeners when clicked.
//
// All types are safe for concurrent use.
package host

import (
	"sync"
)

// DefaultIcon is the generic widget icon used when no icon can be resolved.
const DefaultIcon = "chrome://global/skin/icons/generic-widget.svg"

// CommandEvent is the native event fired by a widget click.
const CommandEvent = "command"

// NativeEvent is a native interaction on a widget.
type NativeEvent struct {
	Type     string `json:"type,omitempty"`
	ScreenX  int    `json:"screen_x,omitempty"`
	ScreenY  int    `json:"screen_y,omitempty"`
	ClientX  int    `json:"client_x,omitempty"`
	ClientY  int    `json:"client_y,omitempty"`
	Button   int    `json:"button,omitempty"`
	Detail   int    `json:"detail,omitempty"`
	CtrlKey  bool   `json:"ctrl_key,omitempty"`
	AltKey   bool   `json:"alt_key,omitempty"`
	ShiftKey bool   `json:"shift_key,omitempty"`
	MetaKey  bool   `json:"meta_key,omitempty"`
}

// Listener is a native event listener. Identity is the pointer.
type Listener struct {
	fn func(NativeEvent)
}

// NewListener wraps fn.
func NewListener(fn func(NativeEvent)) *Listener { return &Listener{fn: fn} }

// Window is a top-level chrome window.
type Window struct {
	mu      sync.Mutex
	id      string
	toolbar *Container
	created int
	closed  bool
}

// NewWindow returns a window with an empty toolbar.
func NewWindow(id string) *Window {
	w := &Window{id: id}
	w.toolbar = &Container{win: w}
	return w
}

// ID returns the window id.
func (w *Window) ID() string { return w.id }

// Toolbar returns the window's toolbar container.
func (w *Window) Toolbar() *Container { return w.toolbar }

// CreateWidget returns a new detached widget owned by w.
func (w *Window) CreateWidget() *Widget {
	w.mu.Lock()
	w.created++
	w.mu.Unlock()
	return &Widget{win: w, image: DefaultIcon, listeners: make(map[string][]*Listener)}
}

// Created returns how many widgets were ever created in w.
func (w *Window) Created() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.created
}

// GetElementByID returns the attached widget with the given id, or nil.
func (w *Window) GetElementByID(id string) *Widget {
	if id == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wg := range w.toolbar.children {
		if wg.id == id {
			return wg
		}
	}
	return nil
}

// Widgets returns the state of every attached widget in toolbar order.
func (w *Window) Widgets() []WidgetState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WidgetState, 0, len(w.toolbar.children))
	for _, wg := range w.toolbar.children {
		out = append(out, wg.stateLocked())
	}
	return out
}

// Closed reports whether the window was closed by its Mediator.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Container is a toolbar holding widgets in order.
type Container struct {
	win      *Window
	children []*Widget
}

// Append attaches wg at the end of the container. An attached widget is
// moved. Widgets created by another window are ignored.
func (c *Container) Append(wg *Widget) {
	if wg == nil || wg.win != c.win {
		return
	}
	wg.Detach()
	c.win.mu.Lock()
	defer c.win.mu.Unlock()
	c.children = append(c.children, wg)
	wg.parent = c
}

// Len returns the number of attached widgets.
func (c *Container) Len() int {
	c.win.mu.Lock()
	defer c.win.mu.Unlock()
	return len(c.children)
}
