// Package dom is a small content-document model: an element/text tree owned by
// a Document, with MutationObserver delivery and DOM-style event dispatch.
//
// A Document runs a single event loop. Nodes are not safe for concurrent use:
// every read or write must happen on the loop, through Document.Do or
// Document.Post, or inside callbacks the loop invokes (observers, listeners).
package dom

import (
	"errors"
	"strings"
)

// NodeType mirrors the DOM nodeType constants.
type NodeType int

const (
	ElementNode          NodeType = 1
	TextNode             NodeType = 3
	DocumentFragmentNode NodeType = 11
)

// ErrHierarchy is returned when an insertion would produce an invalid tree.
var ErrHierarchy = errors.New("dom: hierarchy request error")

// ErrNotFound is returned when a node to remove is not a child of the parent.
var ErrNotFound = errors.New("dom: node not found")

// Attr is an element attribute. Names are lower-case.
type Attr struct {
	Name  string
	Value string
}

// Node is an element, a text node or a document fragment.
type Node struct {
	Type NodeType

	owner    *Document
	tag      string // upper-case tag name for elements
	data     string // character data for text nodes
	attrs    []Attr
	parent   *Node
	children []*Node

	listeners []listenerEntry
	hook      ListenerHook
	bindings  map[any]any
}

// Binding returns the value stored on n under key, or nil. Bindings let a
// script realm keep per-node state that is collected together with the node.
func (n *Node) Binding(key any) any { return n.bindings[key] }

// SetBinding stores v on n under key. A nil v removes the binding.
func (n *Node) SetBinding(key, v any) {
	if v == nil {
		delete(n.bindings, key)
		return
	}
	if n.bindings == nil {
		n.bindings = make(map[any]any)
	}
	n.bindings[key] = v
}

// OwnerDocument returns the document that created n.
func (n *Node) OwnerDocument() *Document { return n.owner }

// TagName returns the upper-case tag name of an element, "" otherwise.
func (n *Node) TagName() string { return n.tag }

// ID returns the id attribute.
func (n *Node) ID() string { return n.GetAttribute("id") }

// ParentNode returns the parent, nil when detached.
func (n *Node) ParentNode() *Node { return n.parent }

// ChildNodes returns a copy of the children.
func (n *Node) ChildNodes() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for c := other; c != nil; c = c.parent {
		if c == n {
			return true
		}
	}
	return false
}

// IsConnected reports whether n is attached to its document tree.
func (n *Node) IsConnected() bool {
	return n.owner != nil && n.owner.root.Contains(n)
}

// Attributes returns a copy of the attribute list.
func (n *Node) Attributes() []Attr {
	out := make([]Attr, len(n.attrs))
	copy(out, n.attrs)
	return out
}

// GetAttribute returns the attribute value, "" when absent.
func (n *Node) GetAttribute(name string) string {
	v, _ := n.lookupAttr(name)
	return v
}

// HasAttribute reports whether the attribute is present.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.lookupAttr(name)
	return ok
}

func (n *Node) lookupAttr(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttribute sets an attribute on an element and queues an "attributes"
// mutation record.
func (n *Node) SetAttribute(name, value string) {
	if n.Type != ElementNode {
		return
	}
	name = strings.ToLower(name)
	old, had := n.lookupAttr(name)
	if had {
		for i := range n.attrs {
			if n.attrs[i].Name == name {
				n.attrs[i].Value = value
			}
		}
	} else {
		n.attrs = append(n.attrs, Attr{Name: name, Value: value})
	}
	n.owner.queueMutation(MutationRecord{
		Type:          MutationAttributes,
		Target:        n,
		AttributeName: name,
		OldValue:      old,
	})
}

// RemoveAttribute removes an attribute if present.
func (n *Node) RemoveAttribute(name string) {
	name = strings.ToLower(name)
	for i, a := range n.attrs {
		if a.Name != name {
			continue
		}
		n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
		n.owner.queueMutation(MutationRecord{
			Type:          MutationAttributes,
			Target:        n,
			AttributeName: name,
			OldValue:      a.Value,
		})
		return
	}
}

// Data returns the character data of a text node.
func (n *Node) Data() string { return n.data }

// SetData replaces the character data of a text node.
func (n *Node) SetData(s string) {
	if n.Type != TextNode {
		return
	}
	old := n.data
	n.data = s
	n.owner.queueMutation(MutationRecord{
		Type:     MutationCharacterData,
		Target:   n,
		OldValue: old,
	})
}

// TextContent returns the concatenated text of all descendant text nodes.
func (n *Node) TextContent() string {
	if n.Type == TextNode {
		return n.data
	}
	var b strings.Builder
	var walk func(*Node)
	walk = func(c *Node) {
		if c.Type == TextNode {
			b.WriteString(c.data)
			return
		}
		for _, cc := range c.children {
			walk(cc)
		}
	}
	walk(n)
	return b.String()
}

// SetTextContent replaces all children with a single text node (none when s
// is empty), queueing one childList record.
func (n *Node) SetTextContent(s string) {
	if n.Type == TextNode {
		n.SetData(s)
		return
	}
	removed := n.children
	n.children = nil
	for _, c := range removed {
		c.parent = nil
	}
	var added []*Node
	if s != "" {
		t := n.owner.CreateTextNode(s)
		t.parent = n
		n.children = []*Node{t}
		added = append(added, t)
	}
	if len(removed) == 0 && len(added) == 0 {
		return
	}
	n.owner.queueMutation(MutationRecord{
		Type:         MutationChildList,
		Target:       n,
		AddedNodes:   added,
		RemovedNodes: removed,
	})
}

// AppendChild appends child (or the children of a fragment) to n.
func (n *Node) AppendChild(child *Node) error {
	return n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref; a nil ref appends. A child that
// already has a parent is moved.
func (n *Node) InsertBefore(child, ref *Node) error {
	if child == nil || n.Type == TextNode || child.Contains(n) {
		return ErrHierarchy
	}
	if child.owner != n.owner {
		return ErrHierarchy
	}
	if ref != nil && ref.parent != n {
		return ErrNotFound
	}

	var nodes []*Node
	if child.Type == DocumentFragmentNode {
		nodes = child.children
		child.children = nil
		for _, c := range nodes {
			c.parent = nil
		}
		if len(nodes) == 0 {
			return nil
		}
		child.owner.queueMutation(MutationRecord{
			Type:         MutationChildList,
			Target:       child,
			RemovedNodes: nodes,
		})
	} else {
		if child == ref {
			return nil
		}
		if child.parent != nil {
			if err := child.parent.RemoveChild(child); err != nil {
				return err
			}
		}
		nodes = []*Node{child}
	}

	idx := len(n.children)
	if ref != nil {
		idx = n.indexOf(ref)
	}
	tail := append([]*Node(nil), n.children[idx:]...)
	n.children = append(append(n.children[:idx], nodes...), tail...)
	for _, c := range nodes {
		c.parent = n
	}
	n.owner.queueMutation(MutationRecord{
		Type:       MutationChildList,
		Target:     n,
		AddedNodes: nodes,
	})
	return nil
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) error {
	if child == nil || child.parent != n {
		return ErrNotFound
	}
	idx := n.indexOf(child)
	n.children = append(n.children[:idx], n.children[idx+1:]...)
	child.parent = nil
	n.owner.queueMutation(MutationRecord{
		Type:         MutationChildList,
		Target:       n,
		RemovedNodes: []*Node{child},
	})
	return nil
}

// Remove detaches n from its parent, if any.
func (n *Node) Remove() {
	if n.parent != nil {
		_ = n.parent.RemoveChild(n)
	}
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Walk calls fn for n and every descendant in tree order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}
