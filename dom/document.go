package dom

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// ErrClosed is returned when a task is submitted to a closed document.
var ErrClosed = errors.New("dom: document closed")

// maxDeliveryRounds bounds observer callbacks that keep mutating the tree.
const maxDeliveryRounds = 1000

type task struct {
	fn   func()
	done chan struct{}
}

// Document owns a node tree (<html><body>) and the event loop that every
// access to it goes through.
type Document struct {
	url     string
	baseURI string
	root    *Node
	body    *Node

	observers []*MutationObserver

	tasks     chan task
	closed    chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithURL sets the document URL.
func WithURL(u string) Option {
	return func(d *Document) { d.url = u }
}

// WithLogger sets the logger used for task and callback failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// NewDocument creates an empty document and starts its event loop.
func NewDocument(opts ...Option) *Document {
	d := &Document{
		url:    "about:blank",
		tasks:  make(chan task, 1024),
		closed: make(chan struct{}),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	d.root = d.CreateElement("html")
	d.body = d.CreateElement("body")
	d.body.parent = d.root
	d.root.children = []*Node{d.body}

	go d.loop()
	return d
}

// URL returns the document URL.
func (d *Document) URL() string { return d.url }

// BaseURI returns the base URI, defaulting to the document URL.
func (d *Document) BaseURI() string {
	if d.baseURI != "" {
		return d.baseURI
	}
	return d.url
}

// SetBaseURI overrides the base URI.
func (d *Document) SetBaseURI(u string) { d.baseURI = u }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *Node { return d.root }

// Body returns the <body> element.
func (d *Document) Body() *Node { return d.body }

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) *Node {
	return &Node{Type: ElementNode, owner: d, tag: strings.ToUpper(tag)}
}

// CreateTextNode returns a new detached text node.
func (d *Document) CreateTextNode(s string) *Node {
	return &Node{Type: TextNode, owner: d, data: s}
}

// CreateDocumentFragment returns a new empty fragment.
func (d *Document) CreateDocumentFragment() *Node {
	return &Node{Type: DocumentFragmentNode, owner: d}
}

// GetElementByID returns the first connected element with the given id.
func (d *Document) GetElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	var found *Node
	d.root.Walk(func(n *Node) bool {
		if n.Type == ElementNode && n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Do runs fn on the event loop and waits until it and the mutation
// deliveries it caused have completed. Do must not be called from the loop.
func (d *Document) Do(fn func()) error {
	if d.isClosed() {
		return ErrClosed
	}
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case d.tasks <- t:
	case <-d.closed:
		return ErrClosed
	}
	select {
	case <-t.done:
		return nil
	case <-d.closed:
		return ErrClosed
	}
}

// Post queues fn on the event loop without waiting.
func (d *Document) Post(fn func()) error {
	if d.isClosed() {
		return ErrClosed
	}
	select {
	case d.tasks <- task{fn: fn}:
		return nil
	case <-d.closed:
		return ErrClosed
	}
}

// Sync waits until every task queued before the call has run.
func (d *Document) Sync() error {
	return d.Do(func() {})
}

// Close stops the event loop. Queued tasks are dropped.
func (d *Document) Close() {
	d.closeOnce.Do(func() { close(d.closed) })
}

// Done is closed when the document is closed.
func (d *Document) Done() <-chan struct{} { return d.closed }

func (d *Document) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *Document) loop() {
	for {
		select {
		case <-d.closed:
			return
		case t := <-d.tasks:
			d.run(t)
		}
	}
}

func (d *Document) run(t task) {
	if t.done != nil {
		defer close(t.done)
	}
	defer d.deliverMutations()
	defer d.recoverTask()
	t.fn()
}

func (d *Document) recoverTask() {
	if r := recover(); r != nil {
		d.logger.Error("dom: task panicked", "url", d.url, "panic", r)
	}
}
