package host

// Widget is a toolbar button.
type Widget struct {
	win    *Window
	parent *Container

	id        string
	label     string
	image     string
	disabled  bool
	listeners map[string][]*Listener
}

// WidgetState is a point-in-time copy of a widget, for reporting.
type WidgetState struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Image     string `json:"image"`
	Disabled  bool   `json:"disabled"`
	Listeners int    `json:"listeners"`
}

func (wg *Widget) ID() string {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return wg.id
}

func (wg *Widget) SetID(id string) {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	wg.id = id
}

func (wg *Widget) Label() string {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return wg.label
}

func (wg *Widget) SetLabel(s string) {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	wg.label = s
}

func (wg *Widget) Image() string {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return wg.image
}

func (wg *Widget) SetImage(s string) {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	wg.image = s
}

func (wg *Widget) Disabled() bool {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return wg.disabled
}

func (wg *Widget) SetDisabled(v bool) {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	wg.disabled = v
}

// Window returns the window that created the widget.
func (wg *Widget) Window() *Window { return wg.win }

// Attached reports whether the widget is in a toolbar.
func (wg *Widget) Attached() bool {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return wg.parent != nil
}

// Detach removes the widget from its toolbar. Listeners are kept.
func (wg *Widget) Detach() {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	c := wg.parent
	if c == nil {
		return
	}
	for i, other := range c.children {
		if other == wg {
			c.children = append(c.children[:i], c.children[i+1:]...)
			break
		}
	}
	wg.parent = nil
}

// AddListener registers l for typ. Adding the same listener twice is a no-op.
func (wg *Widget) AddListener(typ string, l *Listener) {
	if l == nil {
		return
	}
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	for _, x := range wg.listeners[typ] {
		if x == l {
			return
		}
	}
	wg.listeners[typ] = append(wg.listeners[typ], l)
}

// RemoveListener unregisters l for typ.
func (wg *Widget) RemoveListener(typ string, l *Listener) {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	ls := wg.listeners[typ]
	for i, x := range ls {
		if x == l {
			wg.listeners[typ] = append(ls[:i], ls[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of listeners registered for typ.
func (wg *Widget) ListenerCount(typ string) int {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return len(wg.listeners[typ])
}

// Click fires the command listeners with ev. Disabled widgets ignore clicks.
// It reports whether the click was delivered.
func (wg *Widget) Click(ev NativeEvent) bool {
	wg.win.mu.Lock()
	if wg.disabled {
		wg.win.mu.Unlock()
		return false
	}
	ls := append([]*Listener(nil), wg.listeners[CommandEvent]...)
	wg.win.mu.Unlock()

	ev.Type = CommandEvent
	for _, l := range ls {
		l.fn(ev)
	}
	return true
}

// State returns a snapshot of the widget.
func (wg *Widget) State() WidgetState {
	wg.win.mu.Lock()
	defer wg.win.mu.Unlock()
	return wg.stateLocked()
}

func (wg *Widget) stateLocked() WidgetState {
	return WidgetState{
		ID:        wg.id,
		Label:     wg.label,
		Image:     wg.image,
		Disabled:  wg.disabled,
		Listeners: len(wg.listeners[CommandEvent]),
	}
}
