package mirror

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mirror/change"
)

// SessionInfo describes a live observation session.
type SessionInfo struct {
	ID          string `json:"id"`
	DocumentURL string `json:"document_url"`
	Widgets     int64  `json:"widgets"`
	Seq         uint64 `json:"seq"`
	StartedAt   int64  `json:"started_at"` // epoch milliseconds
}

// session is the observation state bound to one document. Apart from the
// atomics, its fields are only touched on the document loop.
type session struct {
	id        string
	c         *Controller
	doc       *dom.Document
	mapper    *Mapper
	projector *Projector
	bridge    *bridge
	observer  *dom.MutationObserver
	mirrored  map[*dom.Node]struct{}
	startedAt time.Time

	closed  atomic.Bool
	seq     atomic.Uint64
	widgets atomic.Int64
}

func newSession(c *Controller, doc *dom.Document) *session {
	s := &session{
		id:        c.newID(),
		c:         c,
		doc:       doc,
		mapper:    NewMapper(c.pkg.ID, c.locator, c.logger),
		projector: NewProjector(c.pkg, c.policy, c.logger),
		mirrored:  make(map[*dom.Node]struct{}),
		startedAt: time.Now(),
	}
	s.bridge = newBridge(s)
	return s
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:          s.id,
		DocumentURL: s.doc.URL(),
		Widgets:     s.widgets.Load(),
		Seq:         s.seq.Load(),
		StartedAt:   s.startedAt.UnixMilli(),
	}
}

// start mirrors the eligible elements already in the body and subscribes
// to mutations of the body subtree.
func (s *session) start() error {
	var obsErr error
	err := s.doc.Do(func() {
		if s.closed.Load() {
			return
		}
		body := s.doc.Body()
		var changes []change.Change
		body.Walk(func(n *dom.Node) bool {
			if s.c.policy.Eligible(n) {
				changes = s.mirror(n, changes)
			}
			return true
		})
		s.observer = s.doc.NewMutationObserver(s.handle)
		obsErr = s.observer.Observe(body, dom.ObserveOptions{
			ChildList:             true,
			Attributes:            true,
			CharacterData:         true,
			Subtree:               true,
			AttributeOldValue:     true,
			CharacterDataOldValue: true,
		})
		s.emit(changes)
	})
	if err != nil {
		return err
	}
	return obsErr
}

// close disconnects the subscription and tears down every widget the
// session created. It is idempotent. When the document loop is already gone
// the widgets are destroyed through the Mapper alone.
func (s *session) close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.doc.Do(func() {
		if s.observer != nil {
			s.observer.Disconnect()
		}
		var changes []change.Change
		for el := range s.mirrored {
			changes = s.unmirror(el, changes)
		}
		s.emit(changes)
		s.c.logger.Info("mirror: session closed", "session", s.id, "url", s.doc.URL())
	})
	if errors.Is(err, dom.ErrClosed) {
		s.abandon()
		return nil
	}
	return err
}

// abandon tears the widgets down without the document loop. Element state
// and listener hooks die with the closed document.
func (s *session) abandon() {
	prefix := WidgetID(s.c.pkg.ID, "")
	var changes []change.Change
	for _, w := range s.mapper.DestroyAll() {
		changes = append(changes, change.Change{
			Op:        change.OpDestroy,
			ElementID: strings.TrimPrefix(w.ID(), prefix),
			WidgetID:  w.ID(),
		})
	}
	s.widgets.Store(0)
	s.emit(changes)
	s.c.logger.Info("mirror: session abandoned", "session", s.id, "url", s.doc.URL(), "widgets", len(changes))
}

// handle is the mutation callback. Late batches for a closed session are
// dropped.
func (s *session) handle(records []dom.MutationRecord, _ *dom.MutationObserver) {
	if s.closed.Load() {
		return
	}
	var changes []change.Change
	for _, p := range s.c.policy.reduce(records, s.mapper.Tracked) {
		switch p.kind {
		case pendingInsert:
			if !s.doc.Body().Contains(p.el) {
				continue
			}
			changes = s.mirror(p.el, changes)
		case pendingRemove:
			// A move within the body also queues an insert, which recreates it.
			changes = s.unmirror(p.el, changes)
		case pendingText:
			if w := s.mapper.WidgetFor(p.el); w != nil {
				changes = append(changes, s.projector.ApplyLabel(p.el, w))
			} else {
				s.c.logger.Debug("mirror: no widget for text change", "element", p.el.ID())
			}
		case pendingAttribute:
			w := s.mapper.WidgetFor(p.el)
			if w == nil {
				s.c.logger.Debug("mirror: no widget for attribute change", "element", p.el.ID(), "attr", p.attr)
				continue
			}
			if ch, ok := s.projector.ApplyAttribute(p.el, w, p.attr); ok {
				changes = append(changes, ch)
			}
		}
	}
	s.emit(changes)
}

func (s *session) mirror(el *dom.Node, changes []change.Change) []change.Change {
	if _, ok := s.mirrored[el]; ok {
		changes = s.unmirror(el, changes)
	}
	// Element ids are unique per document; when two share one the latest
	// insertion owns the widget and the previous owner stops being mirrored.
	if prev := s.mapper.ElementForID(s.mapper.WidgetID(el)); prev != nil && prev != el {
		s.c.logger.Warn("mirror: duplicate element id", "element", el.ID())
		changes = s.unmirror(prev, changes)
	}
	w, err := s.mapper.CreateWidget(el)
	if err != nil {
		s.c.logger.Warn("mirror: create widget failed", "element", el.ID(), "error", err)
		return changes
	}
	s.mirrored[el] = struct{}{}
	s.widgets.Add(1)
	changes = append(changes, change.Change{Op: change.OpCreate, ElementID: el.ID(), WidgetID: w.ID()})
	changes = append(changes, s.projector.Apply(el, w)...)
	s.bridge.install(el)
	s.c.logger.Debug("mirror: widget created", "element", el.ID(), "widget", w.ID())
	return changes
}

func (s *session) unmirror(el *dom.Node, changes []change.Change) []change.Change {
	if _, ok := s.mirrored[el]; ok {
		delete(s.mirrored, el)
		s.widgets.Add(-1)
	}
	w := s.mapper.DestroyWidget(el)
	s.bridge.uninstall(el, w)
	if w == nil {
		return changes
	}
	s.c.logger.Debug("mirror: widget destroyed", "element", el.ID(), "widget", w.ID())
	return append(changes, change.Change{Op: change.OpDestroy, ElementID: el.ID(), WidgetID: w.ID()})
}

// emit hands a batch to the controller's sinks. Empty change lists are dropped.
func (s *session) emit(changes []change.Change) {
	if len(changes) == 0 {
		return
	}
	s.c.emit(change.Batch{
		ID:          s.c.newID(),
		SessionID:   s.id,
		DocumentURL: s.doc.URL(),
		Seq:         s.seq.Add(1),
		Changes:     changes,
		Timestamp:   time.Now().UnixMilli(),
	})
}
