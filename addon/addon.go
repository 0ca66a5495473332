// Package addon describes a packaged add-on: its stable identity and the data
// resources shipped with it. Resources are addressed by URIs of the form
// resource://<host>/data/<path>, where host is derived from the package ID.
package addon

import (
	"errors"
	"io/fs"
	"path"
	"strings"
)

// Scheme is the URI scheme of packaged resources.
const Scheme = "resource"

// ErrForeign is returned when a URI does not belong to the package.
var ErrForeign = errors.New("addon: uri does not belong to package")

// Package is a loaded add-on. ID namespaces everything the package puts into
// shared host windows; Data holds the files under the package data directory.
type Package struct {
	ID   string
	Data fs.FS
}

// New returns a Package with the given identity and data files.
func New(id string, data fs.FS) *Package {
	return &Package{ID: id, Data: data}
}

// Host returns the URI host for the package: the lower-cased ID with every
// character outside [a-z0-9-] replaced by '-'.
func (p *Package) Host() string {
	var b strings.Builder
	for _, r := range strings.ToLower(p.ID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// URL resolves a path relative to the data directory into an absolute
// resource URI.
func (p *Package) URL(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	return p.prefix() + rel
}

func (p *Package) prefix() string {
	return Scheme + "://" + p.Host() + "/data/"
}

// Path returns the data-relative path addressed by uri.
func (p *Package) Path(uri string) (string, error) {
	rel, ok := strings.CutPrefix(uri, p.prefix())
	if !ok {
		return "", ErrForeign
	}
	if i := strings.IndexAny(rel, "?#"); i >= 0 {
		rel = rel[:i]
	}
	if !fs.ValidPath(rel) {
		return "", &fs.PathError{Op: "open", Path: rel, Err: fs.ErrInvalid}
	}
	return rel, nil
}

// Open opens the resource addressed by uri.
func (p *Package) Open(uri string) (fs.File, error) {
	rel, err := p.Path(uri)
	if err != nil {
		return nil, err
	}
	if p.Data == nil {
		return nil, &fs.PathError{Op: "open", Path: rel, Err: fs.ErrNotExist}
	}
	return p.Data.Open(rel)
}

// Exists reports whether the data directory contains a regular file at rel.
func (p *Package) Exists(rel string) bool {
	if p.Data == nil || !fs.ValidPath(rel) {
		return false
	}
	info, err := fs.Stat(p.Data, rel)
	return err == nil && !info.IsDir()
}

// Resolve turns a reference found in content (relative path or absolute
// resource URI) into an absolute URI of an existing package resource.
// References to other schemes, other packages or missing files do not resolve.
func (p *Package) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if strings.Contains(ref, ":") {
		rel, err := p.Path(ref)
		if err != nil || !p.Exists(rel) {
			return "", false
		}
		return p.URL(rel), true
	}
	rel := strings.TrimPrefix(ref, "./")
	if !fs.ValidPath(rel) || !p.Exists(rel) {
		return "", false
	}
	return p.URL(rel), true
}
