package mirror

import (
	"strings"

	"github.com/hazyhaar/dommirror/dom"
)

// Policy is the whitelist deciding what crosses from the content document
// to the host. All names are compared case-insensitively.
type Policy struct {
	Elements   []string // tag names eligible for mirroring
	Attributes []string // attributes whose changes are projected
	Styles     []string // style properties considered when projecting style
}

// DefaultPolicy mirrors buttons and projects disabled and style, where
// only background-image is considered.
func DefaultPolicy() Policy {
	return Policy{
		Elements:   []string{"BUTTON"},
		Attributes: []string{"disabled", "style"},
		Styles:     []string{"background-image"},
	}
}

// Eligible reports whether n is an element of an allowed type carrying a
// non-empty id.
func (p Policy) Eligible(n *dom.Node) bool {
	if n == nil || n.Type != dom.ElementNode || n.ID() == "" {
		return false
	}
	return contains(p.Elements, n.TagName())
}

// AllowsAttribute reports whether changes to the attribute are projected.
func (p Policy) AllowsAttribute(name string) bool {
	return contains(p.Attributes, name)
}

// AllowsStyle reports whether the style property is considered.
func (p Policy) AllowsStyle(prop string) bool {
	return contains(p.Styles, strings.TrimSpace(prop))
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(strings.TrimSpace(x), s) {
			return true
		}
	}
	return false
}

type pendingKind int

const (
	pendingInsert pendingKind = iota
	pendingRemove
	pendingText
	pendingAttribute
)

func (k pendingKind) String() string {
	switch k {
	case pendingInsert:
		return "insert"
	case pendingRemove:
		return "remove"
	case pendingText:
		return "text"
	default:
		return "attribute"
	}
}

// pending is an in-scope change on an eligible element.
type pending struct {
	kind pendingKind
	el   *dom.Node
	attr string
}

// reduce turns raw mutation records into in-scope changes, in record order.
// tracked reports elements that already have a widget: their removal is
// always in scope even if they stopped being eligible.
func (p Policy) reduce(records []dom.MutationRecord, tracked func(*dom.Node) bool) []pending {
	var out []pending
	for _, rec := range records {
		switch rec.Type {
		case dom.MutationChildList:
			for _, n := range rec.AddedNodes {
				out = p.childList(out, rec.Target, n, pendingInsert, tracked)
			}
			for _, n := range rec.RemovedNodes {
				out = p.childList(out, rec.Target, n, pendingRemove, tracked)
			}
		case dom.MutationAttributes:
			if p.Eligible(rec.Target) && p.AllowsAttribute(rec.AttributeName) {
				out = append(out, pending{kind: pendingAttribute, el: rec.Target, attr: strings.ToLower(rec.AttributeName)})
			}
		case dom.MutationCharacterData:
			if parent := rec.Target.ParentNode(); p.Eligible(parent) {
				out = append(out, pending{kind: pendingText, el: parent})
			}
		}
	}
	return out
}

func (p Policy) childList(out []pending, target, n *dom.Node, kind pendingKind, tracked func(*dom.Node) bool) []pending {
	if n.Type == dom.TextNode {
		// A removed text node is already detached: its parent was the target.
		parent := n.ParentNode()
		if parent == nil {
			parent = target
		}
		if p.Eligible(parent) {
			out = append(out, pending{kind: pendingText, el: parent})
		}
		return out
	}
	if n.Type != dom.ElementNode {
		return out
	}
	n.Walk(func(c *dom.Node) bool {
		if c.Type != dom.ElementNode {
			return true
		}
		if p.Eligible(c) || (kind == pendingRemove && tracked != nil && tracked(c)) {
			out = append(out, pending{kind: kind, el: c})
		}
		return true
	})
	return out
}
