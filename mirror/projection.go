package mirror

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"

	"github.com/hazyhaar/dommirror/addon"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/host"
	"github.com/hazyhaar/dommirror/mirror/change"
)

var cssURL = regexp.MustCompile(`^url\(\s*(?:"([^"]*)"|'([^']*)'|([^'"()\s]*))\s*\)$`)

// Projector computes widget state from element state.
type Projector struct {
	pkg    *addon.Package
	policy Policy
	logger *slog.Logger
}

// NewProjector returns a Projector resolving icons through pkg.
func NewProjector(pkg *addon.Package, policy Policy, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{pkg: pkg, policy: policy, logger: logger}
}

// Apply projects label, icon and disabled state.
func (p *Projector) Apply(el *dom.Node, w *host.Widget) []change.Change {
	return []change.Change{
		p.ApplyLabel(el, w),
		p.ApplyIcon(el, w),
		p.ApplyDisabled(el, w),
	}
}

// ApplyLabel sets the widget label to the element's text content.
func (p *Projector) ApplyLabel(el *dom.Node, w *host.Widget) change.Change {
	label := el.TextContent()
	w.SetLabel(label)
	return p.change(change.OpLabel, el, w, label)
}

// ApplyIcon sets the widget image from the element's style.
func (p *Projector) ApplyIcon(el *dom.Node, w *host.Widget) change.Change {
	icon := p.Icon(el.GetAttribute("style"))
	w.SetImage(icon)
	return p.change(change.OpIcon, el, w, icon)
}

// ApplyDisabled mirrors the disabled attribute.
func (p *Projector) ApplyDisabled(el *dom.Node, w *host.Widget) change.Change {
	disabled := el.HasAttribute("disabled")
	w.SetDisabled(disabled)
	return p.change(change.OpDisabled, el, w, strconv.FormatBool(disabled))
}

// ApplyAttribute projects a changed attribute. Attributes without a
// projection are ignored.
func (p *Projector) ApplyAttribute(el *dom.Node, w *host.Widget, name string) (change.Change, bool) {
	switch strings.ToLower(name) {
	case "disabled":
		return p.ApplyDisabled(el, w), true
	case "style":
		return p.ApplyIcon(el, w), true
	default:
		return change.Change{}, false
	}
}

// Icon returns the icon URI for a style attribute value. Only allowed
// properties are considered and the last url() among them wins. A missing,
// non-url or unresolvable value gives host.DefaultIcon.
func (p *Projector) Icon(style string) string {
	if strings.TrimSpace(style) == "" {
		return host.DefaultIcon
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		p.logger.Debug("mirror: unparsable style", "style", style, "error", err)
		return host.DefaultIcon
	}
	ref := ""
	for _, d := range decls {
		if !p.policy.AllowsStyle(d.Property) {
			continue
		}
		ref = ""
		if m := cssURL.FindStringSubmatch(strings.TrimSpace(d.Value)); m != nil {
			ref = m[1] + m[2] + m[3]
		}
	}
	if ref == "" || p.pkg == nil {
		return host.DefaultIcon
	}
	if uri, ok := p.pkg.Resolve(ref); ok {
		return uri
	}
	p.logger.Debug("mirror: icon not resolvable", "ref", ref)
	return host.DefaultIcon
}

func (p *Projector) change(op change.Op, el *dom.Node, w *host.Widget, value string) change.Change {
	return change.Change{Op: op, ElementID: el.ID(), WidgetID: w.ID(), Value: value}
}
