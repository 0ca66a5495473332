// Package fetch reads markup from packaged resources, local files and HTTP,
// decoding it from a configurable charset.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/hazyhaar/dommirror/addon"
)

// BlankURI is the empty page.
const BlankURI = "about:blank"

// DefaultCharset is used when no charset is configured.
const DefaultCharset = "UTF-8"

// maxBody caps reads to prevent runaway downloads.
const maxBody = 10 << 20

// Error codes carried by ReadError.
const (
	CodeUnknownScheme = 1
	CodeNotFound      = 2
	CodeAccessDenied  = 3
	CodeIO            = 4
	CodeBadStatus     = 5
	CodeCharset       = 6
)

// ErrNotFound matches, via errors.Is, any ReadError for a missing resource.
var ErrNotFound = errors.New("fetch: resource not found")

// ReadError reports why a resource could not be read.
type ReadError struct {
	URI  string
	Code int
	Err  error
}

func (e *ReadError) Error() string {
	msg := fmt.Sprintf("failed to read: '%s' (error code: %d)", e.URI, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is reports not-found errors as ErrNotFound.
func (e *ReadError) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}

// Reader reads resources by URI.
type Reader struct {
	client   *http.Client
	charset  string
	packages []*addon.Package
	logger   *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithClient sets the HTTP client used for http and https URIs.
func WithClient(c *http.Client) Option {
	return func(r *Reader) { r.client = c }
}

// WithCharset sets the charset markup is decoded from. Any WHATWG encoding
// label is accepted.
func WithCharset(label string) Option {
	return func(r *Reader) { r.charset = label }
}

// WithPackage makes the resources of p readable through resource URIs.
func WithPackage(p *addon.Package) Option {
	return func(r *Reader) { r.packages = append(r.packages, p) }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// New creates a Reader.
func New(opts ...Option) *Reader {
	r := &Reader{
		client:  &http.Client{Timeout: 30 * time.Second},
		charset: DefaultCharset,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read returns the decoded content of uri.
func (r *Reader) Read(ctx context.Context, uri string) (string, error) {
	rc, err := r.open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, maxBody))
	if err != nil {
		return "", &ReadError{URI: uri, Code: CodeIO, Err: err}
	}
	text, err := r.decode(body)
	if err != nil {
		return "", &ReadError{URI: uri, Code: CodeCharset, Err: err}
	}
	r.logger.Debug("fetch: read", "uri", uri, "size", len(body), "charset", r.charset)
	return text, nil
}

// Probe opens and immediately closes uri, reporting whether it can be read.
func (r *Reader) Probe(uri string) error {
	rc, err := r.open(context.Background(), uri)
	if err != nil {
		return err
	}
	return rc.Close()
}

func (r *Reader) decode(body []byte) (string, error) {
	label := r.charset
	if label == "" {
		label = DefaultCharset
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("charset %q: %w", label, err)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *Reader) open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if uri == BlankURI {
		return io.NopCloser(strings.NewReader("")), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, &ReadError{URI: uri, Code: CodeUnknownScheme, Err: err}
	}
	switch u.Scheme {
	case addon.Scheme:
		return r.openResource(uri)
	case "file":
		return openFile(uri, u.Path)
	case "http", "https":
		return r.openHTTP(ctx, uri)
	default:
		return nil, &ReadError{URI: uri, Code: CodeUnknownScheme}
	}
}

func (r *Reader) openResource(uri string) (io.ReadCloser, error) {
	for _, p := range r.packages {
		f, err := p.Open(uri)
		if errors.Is(err, addon.ErrForeign) {
			continue
		}
		if err != nil {
			return nil, fsError(uri, err)
		}
		return f, nil
	}
	return nil, &ReadError{URI: uri, Code: CodeNotFound, Err: addon.ErrForeign}
}

func openFile(uri, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fsError(uri, err)
	}
	info, err := f.Stat()
	if err == nil && info.IsDir() {
		f.Close()
		return nil, &ReadError{URI: uri, Code: CodeNotFound, Err: fmt.Errorf("%s is a directory", path)}
	}
	return f, nil
}

func fsError(uri string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ReadError{URI: uri, Code: CodeNotFound, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &ReadError{URI: uri, Code: CodeAccessDenied, Err: err}
	default:
		return &ReadError{URI: uri, Code: CodeIO, Err: err}
	}
}

func (r *Reader) openHTTP(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &ReadError{URI: uri, Code: CodeIO, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &ReadError{URI: uri, Code: CodeIO, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, &ReadError{URI: uri, Code: CodeNotFound, Err: errors.New(resp.Status)}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, &ReadError{URI: uri, Code: CodeAccessDenied, Err: errors.New(resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, &ReadError{URI: uri, Code: CodeBadStatus, Err: errors.New(resp.Status)}
	}
	return resp.Body, nil
}
