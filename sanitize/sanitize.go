// Package sanitize turns untrusted markup into a dom fragment that is safe to
// insert: scripts, event handler attributes and every style property outside
// the allowed list are stripped before parsing.
package sanitize

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/dommirror/dom"
)

// ErrNoContext is returned when ParseFragment is called without a context node.
var ErrNoContext = errors.New("sanitize: nil context node")

var (
	// Matches none or a single url() with an optionally quoted reference.
	imageValue = regexp.MustCompile(`^(?:none|url\(\s*(?:"[^"()]*"|'[^'()]*'|[^'"()\s]*)\s*\))$`)
	urlRef     = regexp.MustCompile(`url\(\s*(?:"([^"()]*)"|'([^'()]*)'|([^'"()\s]*))\s*\)`)
	anyValue   = regexp.MustCompile(`^[^;{}<>]*$`)
)

// Policy is a sanitizing policy with an allowed-style list.
type Policy struct {
	bm     *bluemonday.Policy
	styles []string
}

// NewPolicy returns the user-generated-content policy extended with buttons
// and the given style properties. Image-valued properties only accept none
// or a single url().
func NewPolicy(styles ...string) *Policy {
	bm := bluemonday.UGCPolicy()
	bm.AllowElements("button")
	bm.AllowNoAttrs().OnElements("button")
	bm.AllowAttrs("disabled", "type", "name", "value").OnElements("button")
	for _, s := range styles {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, "-image") || s == "background" {
			bm.AllowStyles(s).Matching(imageValue).Globally()
			continue
		}
		bm.AllowStyles(s).Matching(anyValue).Globally()
	}
	return &Policy{bm: bm, styles: styles}
}

// Styles returns the allowed style properties.
func (p *Policy) Styles() []string { return p.styles }

// Sanitize returns markup with everything outside the policy removed.
func (p *Policy) Sanitize(markup string) string { return p.bm.Sanitize(markup) }

// ParseFragment sanitizes markup and parses it as the children of context,
// returning a detached fragment owned by context's document. Relative url()
// references in style attributes are resolved against baseURI.
//
// Like every dom operation it must run on the document loop.
func ParseFragment(markup string, p *Policy, baseURI string, context *dom.Node) (*dom.Node, error) {
	if context == nil {
		return nil, ErrNoContext
	}
	if p == nil {
		p = NewPolicy()
	}
	clean := p.Sanitize(markup)

	tag := strings.ToLower(context.TagName())
	if tag == "" {
		tag = "body"
	}
	ctx := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	nodes, err := html.ParseFragment(strings.NewReader(clean), ctx)
	if err != nil {
		return nil, fmt.Errorf("sanitize: parse fragment: %w", err)
	}

	base := parseBase(baseURI)
	doc := context.OwnerDocument()
	frag := doc.CreateDocumentFragment()
	for _, n := range nodes {
		if c := convert(doc, n, base); c != nil {
			if err := frag.AppendChild(c); err != nil {
				return nil, fmt.Errorf("sanitize: build fragment: %w", err)
			}
		}
	}
	return frag, nil
}

func convert(doc *dom.Document, n *html.Node, base *url.URL) *dom.Node {
	switch n.Type {
	case html.TextNode:
		return doc.CreateTextNode(n.Data)
	case html.ElementNode:
		el := doc.CreateElement(n.Data)
		for _, a := range n.Attr {
			if a.Namespace != "" {
				continue
			}
			v := a.Val
			if a.Key == "style" && base != nil {
				v = absolutize(v, base)
			}
			el.SetAttribute(a.Key, v)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if cc := convert(doc, c, base); cc != nil {
				el.AppendChild(cc)
			}
		}
		return el
	default:
		return nil
	}
}

func parseBase(baseURI string) *url.URL {
	u, err := url.Parse(baseURI)
	if err != nil || !u.IsAbs() || u.Scheme == "about" {
		return nil
	}
	return u
}

func absolutize(style string, base *url.URL) string {
	return urlRef.ReplaceAllStringFunc(style, func(m string) string {
		sub := urlRef.FindStringSubmatch(m)
		ref := sub[1] + sub[2] + sub[3]
		if ref == "" {
			return m
		}
		u, err := url.Parse(ref)
		if err != nil || u.IsAbs() {
			return m
		}
		return "url(" + base.ResolveReference(u).String() + ")"
	})
}
