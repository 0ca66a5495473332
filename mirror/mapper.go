package mirror

import (
	"errors"
	"log/slog"
	"sync"
	"weak"

	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/host"
)

// WidgetIDPrefix starts every widget id created by the mirror.
const WidgetIDPrefix = "addon-dom--"

// ErrNoWindow is returned when no host window is open.
var ErrNoWindow = errors.New("mirror: no host window")

// WidgetID returns the namespaced widget id for an element id.
func WidgetID(pkgID, elementID string) string {
	return WidgetIDPrefix + pkgID + "-" + elementID
}

// mapping is one Mapping Table entry. Neither side is kept alive by it: the
// element belongs to its document, the widget to its toolbar.
type mapping struct {
	el     weak.Pointer[dom.Node]
	widget weak.Pointer[host.Widget]
}

// Mapper associates content elements with their widgets for one session.
type Mapper struct {
	pkgID   string
	locator host.Locator
	logger  *slog.Logger

	mu    sync.Mutex
	table map[string]mapping // keyed by namespaced widget id
}

// NewMapper returns a Mapper placing widgets in the window returned by
// locator, resolved again on every call.
func NewMapper(pkgID string, locator host.Locator, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{pkgID: pkgID, locator: locator, logger: logger, table: make(map[string]mapping)}
}

// WidgetID returns the namespaced id of el's widget.
func (m *Mapper) WidgetID(el *dom.Node) string { return WidgetID(m.pkgID, el.ID()) }

// CreateWidget creates, registers and attaches a fresh widget for el. An
// attached widget already using the same id is detached first.
func (m *Mapper) CreateWidget(el *dom.Node) (*host.Widget, error) {
	win := m.locator.MostRecentWindow()
	if win == nil {
		return nil, ErrNoWindow
	}
	id := m.WidgetID(el)
	if stale := win.GetElementByID(id); stale != nil {
		stale.Detach()
	}

	w := win.CreateWidget()
	w.SetID(id)

	m.mu.Lock()
	m.table[id] = mapping{el: weak.Make(el), widget: weak.Make(w)}
	m.mu.Unlock()

	win.Toolbar().Append(w)
	return w, nil
}

// DestroyWidget detaches el's widget and drops the mapping entry. It returns
// the widget, or nil when el had none.
func (m *Mapper) DestroyWidget(el *dom.Node) *host.Widget {
	m.mu.Lock()
	id, entry, ok := m.lookupLocked(el)
	if ok {
		delete(m.table, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	var w *host.Widget
	if win := m.locator.MostRecentWindow(); win != nil {
		w = win.GetElementByID(id)
	}
	if w == nil {
		w = entry.widget.Value()
	}
	if w != nil && w.Attached() {
		w.Detach()
	}
	return w
}

// WidgetFor returns el's widget, or nil.
func (m *Mapper) WidgetFor(el *dom.Node) *host.Widget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, entry, ok := m.lookupLocked(el); ok {
		return entry.widget.Value()
	}
	return nil
}

// ElementFor returns the element mirrored by w, or nil.
func (m *Mapper) ElementFor(w *host.Widget) *dom.Node {
	if w == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.table[w.ID()]
	if !ok || entry.widget.Value() != w {
		return nil
	}
	return entry.el.Value()
}

// ElementForID returns the element currently owning the widget id, or nil.
func (m *Mapper) ElementForID(id string) *dom.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.table[id]
	if !ok {
		return nil
	}
	return entry.el.Value()
}

// DestroyAll detaches every widget in the table and clears it. It does not
// touch the elements, so it is safe to call off the document loop.
func (m *Mapper) DestroyAll() []*host.Widget {
	m.mu.Lock()
	table := m.table
	m.table = make(map[string]mapping)
	m.mu.Unlock()

	win := m.locator.MostRecentWindow()
	var out []*host.Widget
	for id, entry := range table {
		var w *host.Widget
		if win != nil {
			w = win.GetElementByID(id)
		}
		if w == nil {
			w = entry.widget.Value()
		}
		if w == nil {
			continue
		}
		if w.Attached() {
			w.Detach()
		}
		out = append(out, w)
	}
	return out
}

// Tracked reports whether el has a mapping entry.
func (m *Mapper) Tracked(el *dom.Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _, ok := m.lookupLocked(el)
	return ok
}

// Len returns the number of mapping entries.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}

// lookupLocked finds el's entry by its current id, then by identity for
// elements whose id changed after their widget was created.
func (m *Mapper) lookupLocked(el *dom.Node) (string, mapping, bool) {
	if el == nil {
		return "", mapping{}, false
	}
	id := m.WidgetID(el)
	if entry, ok := m.table[id]; ok && entry.el.Value() == el {
		return id, entry, true
	}
	for id, entry := range m.table {
		if entry.el.Value() == el {
			return id, entry, true
		}
	}
	return "", mapping{}, false
}
