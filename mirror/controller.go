// Package mirror mirrors the buttons of a sandboxed content document onto
// native toolbar widgets and forwards widget clicks back into the document.
//
// A Controller owns one observation session per document. The session
// watches the document body, reduces every mutation batch through the
// Policy whitelist, creates and destroys widgets through its Mapper,
// projects label, icon and disabled state with the Projector, and binds
// content click listeners to widget commands through the event bridge.
// Every widget change is emitted as a change.Batch to the configured sinks.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hazyhaar/dommirror/addon"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/fetch"
	"github.com/hazyhaar/dommirror/host"
	"github.com/hazyhaar/dommirror/mirror/change"
	"github.com/hazyhaar/dommirror/mirror/internal/sink"
	"github.com/hazyhaar/dommirror/sanitize"
)

var (
	// ErrClosed is returned by operations on a closed Controller.
	ErrClosed = errors.New("mirror: controller closed")
	// ErrWidgetNotFound is returned by Click for an unknown widget id.
	ErrWidgetNotFound = errors.New("mirror: widget not found")
	// ErrWidgetDisabled is returned by Click for a disabled widget.
	ErrWidgetDisabled = errors.New("mirror: widget disabled")
)

// IDGenerator produces unique session and batch identifiers.
type IDGenerator func() string

// UUIDv7 is the default IDGenerator: time-sortable RFC 9562 identifiers.
func UUIDv7() string { return uuid.Must(uuid.NewV7()).String() }

// Options configures a Controller. Package and Locator are required.
type Options struct {
	Package *addon.Package
	Locator host.Locator
	Config  *Config       // nil uses DefaultConfig
	Reader  *fetch.Reader // nil builds one from Config.Fetch and Package
	Sinks   []Sink
	IDs     IDGenerator // nil uses UUIDv7
	Logger  *slog.Logger
}

// Controller is the Observer Controller.
type Controller struct {
	pkg       *addon.Package
	locator   host.Locator
	policy    Policy
	sanitizer *sanitize.Policy
	reader    *fetch.Reader
	pageURI   string
	newID     IDGenerator
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[*dom.Document]*session
	closed   bool

	router  *sink.Router
	batches chan emitItem
	done    chan struct{}
	wg      sync.WaitGroup
}

type emitItem struct {
	batch change.Batch
	flush chan struct{}
}

// New creates a Controller. The packaged page is probed once: a missing
// page degrades to about:blank.
func New(opts Options) (*Controller, error) {
	if opts.Package == nil {
		return nil, errors.New("mirror: package required")
	}
	if opts.Locator == nil {
		return nil, errors.New("mirror: locator required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	policy := PolicyFromConfig(cfg.Policy)
	reader := opts.Reader
	if reader == nil {
		reader = fetch.New(
			fetch.WithPackage(opts.Package),
			fetch.WithCharset(cfg.Fetch.Charset),
			fetch.WithClient(&http.Client{Timeout: cfg.Fetch.Timeout}),
			fetch.WithLogger(logger),
		)
	}

	c := &Controller{
		pkg:       opts.Package,
		locator:   opts.Locator,
		policy:    policy,
		sanitizer: sanitize.NewPolicy(policy.Styles...),
		reader:    reader,
		pageURI:   resolvePage(opts.Package, cfg.Package.Page),
		newID:     opts.IDs,
		logger:    logger,
		sessions:  make(map[*dom.Document]*session),
		router:    sink.NewRouter(logger, opts.Sinks...),
		batches:   make(chan emitItem, 1024),
		done:      make(chan struct{}),
	}

	if c.newID == nil {
		c.newID = UUIDv7
	}
	if err := reader.Probe(c.pageURI); errors.Is(err, fetch.ErrNotFound) {
		logger.Info("mirror: page not found, using blank page", "page", c.pageURI)
		c.pageURI = fetch.BlankURI
	}

	c.wg.Add(1)
	go c.emitLoop()
	return c, nil
}

func resolvePage(pkg *addon.Package, page string) string {
	if page == "" {
		page = "main.html"
	}
	if strings.Contains(page, ":") {
		return page
	}
	return pkg.URL(page)
}

// PageURI returns the page loaded into documents.
func (c *Controller) PageURI() string { return c.pageURI }

// Policy returns the whitelist in use.
func (c *Controller) Policy() Policy { return c.policy }

// Load starts mirroring doc and loads the packaged page into its body.
//
// A previous session for doc is closed first, so at most one subscription
// is live per document. The subscription starts before the page is fetched
// and stays active when fetching or parsing fails; the failure is returned.
// Load must not be called from the document loop.
func (c *Controller) Load(ctx context.Context, doc *dom.Document) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prev := c.sessions[doc]
	s := newSession(c, doc)
	c.sessions[doc] = s
	c.mu.Unlock()

	if prev != nil {
		if err := prev.close(); err != nil {
			c.logger.Warn("mirror: close previous session", "session", prev.id, "error", err)
		}
	}
	if err := s.start(); err != nil {
		return fmt.Errorf("mirror: load: observe: %w", err)
	}
	c.logger.Info("mirror: observing", "session", s.id, "url", doc.URL(), "page", c.pageURI)

	markup, err := c.reader.Read(ctx, c.pageURI)
	if err != nil {
		return fmt.Errorf("mirror: load: %w", err)
	}

	var parseErr error
	err = doc.Do(func() {
		frag, err := sanitize.ParseFragment(markup, c.sanitizer, c.pageURI, doc.Body())
		if err != nil {
			parseErr = err
			return
		}
		parseErr = doc.Body().AppendChild(frag)
	})
	if err == nil {
		err = parseErr
	}
	if err != nil {
		return fmt.Errorf("mirror: load: insert page: %w", err)
	}
	return nil
}

// Unload stops mirroring doc and removes its widgets.
func (c *Controller) Unload(doc *dom.Document) error {
	c.mu.Lock()
	s := c.sessions[doc]
	delete(c.sessions, doc)
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.close()
}

// Close unloads every document, drains pending batches and closes the sinks.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := make([]*session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[*dom.Document]*session)
	c.mu.Unlock()

	for _, s := range sessions {
		if err := s.close(); err != nil && !errors.Is(err, dom.ErrClosed) {
			c.logger.Warn("mirror: close session", "session", s.id, "error", err)
		}
	}
	_ = c.Flush(context.Background())
	close(c.done)
	c.wg.Wait()
	return c.router.Close()
}

// Sessions lists the live sessions.
func (c *Controller) Sessions() []SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.info())
	}
	return out
}

// Widgets returns the package's widgets in the most recent window.
func (c *Controller) Widgets() []host.WidgetState {
	win := c.locator.MostRecentWindow()
	if win == nil {
		return nil
	}
	prefix := WidgetID(c.pkg.ID, "")
	var out []host.WidgetState
	for _, w := range win.Widgets() {
		if strings.HasPrefix(w.ID, prefix) {
			out = append(out, w)
		}
	}
	return out
}

// Click performs a native click on a widget of the most recent window and
// waits until the forwarded content listeners have run.
func (c *Controller) Click(ctx context.Context, widgetID string, ev host.NativeEvent) error {
	win := c.locator.MostRecentWindow()
	if win == nil {
		return ErrNoWindow
	}
	w := win.GetElementByID(widgetID)
	if w == nil || !strings.HasPrefix(widgetID, WidgetID(c.pkg.ID, "")) {
		return fmt.Errorf("%w: %s", ErrWidgetNotFound, widgetID)
	}
	if !w.Click(ev) {
		return fmt.Errorf("%w: %s", ErrWidgetDisabled, widgetID)
	}
	return c.sync(ctx)
}

// sync waits until every session document has run the tasks queued so far.
func (c *Controller) sync(ctx context.Context) error {
	c.mu.Lock()
	docs := make([]*dom.Document, 0, len(c.sessions))
	for doc := range c.sessions {
		docs = append(docs, doc)
	}
	c.mu.Unlock()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := doc.Sync(); err != nil && !errors.Is(err, dom.ErrClosed) {
			return err
		}
	}
	return nil
}

// Flush waits until every batch emitted so far has been handed to the sinks.
func (c *Controller) Flush(ctx context.Context) error {
	item := emitItem{flush: make(chan struct{})}
	select {
	case c.batches <- item:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-item.flush:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) emit(b change.Batch) {
	select {
	case c.batches <- emitItem{batch: b}:
	case <-c.done:
	}
}

func (c *Controller) emitLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case it := <-c.batches:
			if it.flush != nil {
				close(it.flush)
				continue
			}
			_ = c.router.Send(context.Background(), it.batch)
		}
	}
}
