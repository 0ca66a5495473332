package host

import "sync"

// Locator returns the most relevant top-level window, or nil when none is open.
type Locator interface {
	MostRecentWindow() *Window
}

// Mediator tracks open windows in focus order.
type Mediator struct {
	mu      sync.Mutex
	windows []*Window // least recently focused first
}

// NewMediator returns an empty mediator.
func NewMediator() *Mediator { return &Mediator{} }

// Open creates a window and focuses it.
func (m *Mediator) Open(id string) *Window {
	w := NewWindow(id)
	m.mu.Lock()
	m.windows = append(m.windows, w)
	m.mu.Unlock()
	return w
}

// Focus makes the window with id the most recent one.
func (m *Mediator) Focus(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return false
	}
	w := m.windows[i]
	m.windows = append(append(m.windows[:i], m.windows[i+1:]...), w)
	return true
}

// CloseWindow closes and forgets the window with id.
func (m *Mediator) CloseWindow(id string) bool {
	m.mu.Lock()
	i := m.index(id)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	w := m.windows[i]
	m.windows = append(m.windows[:i], m.windows[i+1:]...)
	m.mu.Unlock()

	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return true
}

// Window returns the open window with id, or nil.
func (m *Mediator) Window(id string) *Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		return m.windows[i]
	}
	return nil
}

// MostRecentWindow implements Locator.
func (m *Mediator) MostRecentWindow() *Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.windows) == 0 {
		return nil
	}
	return m.windows[len(m.windows)-1]
}

func (m *Mediator) index(id string) int {
	for i, w := range m.windows {
		if w.id == id {
			return i
		}
	}
	return -1
}
