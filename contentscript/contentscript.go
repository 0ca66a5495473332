// Package contentscript runs untrusted JavaScript against a content document.
//
// Scripts see a whitelisted document binding: document.body,
// getElementById, createElement and createTextNode, and element wrappers
// exposing id, tagName, textContent, disabled, the attribute accessors,
// appendChild, removeChild, remove, add/removeEventListener and click.
// Everything runs on the document loop. Each Run and each listener call is
// bounded by the configured timeout.
package contentscript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/hazyhaar/dommirror/dom"
)

// ErrTimeout is returned when a script or listener exceeds the timeout.
var ErrTimeout = errors.New("contentscript: timeout")

// Config configures a Runner.
type Config struct {
	Timeout time.Duration // per Run and per listener call, default 5s
	Logger  *slog.Logger
}

// Runner holds one JavaScript realm bound to a document. Globals persist
// across Run calls.
//
// Node wrappers are stored on their node as a binding and point back to it
// through a symbol property, so a wrapper lives exactly as long as its node
// or a script reference to it. The Runner itself keeps no node alive.
type Runner struct {
	doc    *dom.Document
	vm     *goja.Runtime
	cfg    Config
	logger *slog.Logger

	nodeKey     *goja.Symbol
	listenerKey *goja.Symbol

	// Loop-only state.
	frozen map[*goja.Object]*dom.Listener // listeners of non-extensible functions
	depth  int
}

// nodeRef and listenerRef are opaque to scripts: they have no exported fields.
type nodeRef struct{ n *dom.Node }

type listenerRef struct {
	fn *goja.Object
	l  *dom.Listener
}

// New creates a Runner for doc.
func New(doc *dom.Document, cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		doc:         doc,
		vm:          goja.New(),
		cfg:         cfg,
		logger:      logger,
		nodeKey:     goja.NewSymbol("node"),
		listenerKey: goja.NewSymbol("listener"),
		frozen:      make(map[*goja.Object]*dom.Listener),
	}
	r.vm.SetMaxCallStackSize(1024)
	r.setupGlobals()
	return r
}

// Run evaluates script on the document loop. Exceptions, timeouts and
// cancellation are returned as errors.
func (r *Runner) Run(ctx context.Context, script string) error {
	var runErr error
	err := r.doc.Do(func() {
		runErr = r.guard(ctx, func() error {
			_, err := r.vm.RunString(script)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("contentscript: run: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("contentscript: run: %w", runErr)
	}
	return nil
}

// guard runs fn with the timeout and ctx wired to a VM interrupt. Nested
// calls, such as listeners fired by element.click(), share the outer guard.
func (r *Runner) guard(ctx context.Context, fn func() error) error {
	if r.depth > 0 {
		return fn()
	}
	r.depth++
	defer func() { r.depth-- }()

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			r.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	err := fn()
	close(done)
	<-exited
	r.vm.ClearInterrupt()

	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return cause
		}
	}
	return err
}

func (r *Runner) setupGlobals() {
	vm := r.vm
	for _, name := range []string{"require", "process", "module", "exports"} {
		vm.Set(name, goja.Undefined())
	}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		console.Set(level, r.consoleFunc(level))
	}
	vm.Set("console", console)

	document := vm.NewObject()
	document.DefineAccessorProperty("body", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return r.wrap(r.doc.Body())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	document.DefineAccessorProperty("URL", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(r.doc.URL())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return r.wrap(r.doc.GetElementByID(call.Argument(0).String()))
	})
	document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		if tag == "" || strings.ContainsAny(tag, " <>/\"'=") {
			panic(vm.NewTypeError("createElement: invalid tag name %q", tag))
		}
		return r.wrap(r.doc.CreateElement(tag))
	})
	document.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return r.wrap(r.doc.CreateTextNode(call.Argument(0).String()))
	})
	vm.Set("document", document)
}

func (r *Runner) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		r.logger.Info("contentscript: console", "level", level, "url", r.doc.URL(), "msg", strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// wrap returns the cached wrapper of n so that identity holds on the
// script side.
func (r *Runner) wrap(n *dom.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := n.Binding(r).(*goja.Object); ok {
		return obj
	}
	vm := r.vm
	obj := vm.NewObject()
	if err := obj.DefineDataPropertySymbol(r.nodeKey, vm.ToValue(&nodeRef{n: n}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		panic(vm.NewGoError(err))
	}
	n.SetBinding(r, obj)

	obj.Set("nodeType", int(n.Type))
	r.accessor(obj, "tagName", func() goja.Value { return vm.ToValue(n.TagName()) }, nil)
	r.accessor(obj, "id",
		func() goja.Value { return vm.ToValue(n.ID()) },
		func(v goja.Value) { n.SetAttribute("id", v.String()) })
	r.accessor(obj, "textContent",
		func() goja.Value { return vm.ToValue(n.TextContent()) },
		func(v goja.Value) { n.SetTextContent(v.String()) })
	r.accessor(obj, "disabled",
		func() goja.Value { return vm.ToValue(n.HasAttribute("disabled")) },
		func(v goja.Value) {
			if v.ToBoolean() {
				n.SetAttribute("disabled", "")
			} else {
				n.RemoveAttribute("disabled")
			}
		})
	r.accessor(obj, "parentNode", func() goja.Value { return r.wrap(n.ParentNode()) }, nil)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !n.HasAttribute(name) {
			return goja.Null()
		}
		return vm.ToValue(n.GetAttribute(name))
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		n.SetAttribute(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(n.HasAttribute(call.Argument(0).String()))
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		n.RemoveAttribute(call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := r.mustNode(call.Argument(0), "appendChild")
		if err := n.AppendChild(child); err != nil {
			panic(vm.NewGoError(err))
		}
		return call.Argument(0)
	})
	obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := r.mustNode(call.Argument(0), "removeChild")
		if err := n.RemoveChild(child); err != nil {
			panic(vm.NewGoError(err))
		}
		return call.Argument(0)
	})
	obj.Set("remove", func(goja.FunctionCall) goja.Value {
		n.Remove()
		return goja.Undefined()
	})
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if l := r.listener(call.Argument(1), true); l != nil {
			n.AddEventListener(call.Argument(0).String(), l, capture(call.Argument(2)))
		}
		return goja.Undefined()
	})
	obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		if l := r.listener(call.Argument(1), false); l != nil {
			n.RemoveEventListener(call.Argument(0).String(), l, capture(call.Argument(2)))
		}
		return goja.Undefined()
	})
	obj.Set("click", func(goja.FunctionCall) goja.Value {
		n.Click()
		return goja.Undefined()
	})
	return obj
}

func (r *Runner) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (r *Runner) mustNode(v goja.Value, op string) *dom.Node {
	if obj, ok := v.(*goja.Object); ok {
		if ref := obj.GetSymbol(r.nodeKey); ref != nil {
			// Objects inheriting from a wrapper see the symbol too.
			if nr, ok := ref.Export().(*nodeRef); ok && nr.n.Binding(r) == obj {
				return nr.n
			}
		}
	}
	panic(r.vm.NewTypeError("%s: argument is not a node", op))
}

// listener returns the dom listener standing for the script function v.
// The function object is the listener identity, so registering the same
// function twice yields the same listener. The listener is stored on the
// function itself, or in the frozen table when the function is not extensible.
func (r *Runner) listener(v goja.Value, create bool) *dom.Listener {
	fnObj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	if ref := fnObj.GetSymbol(r.listenerKey); ref != nil {
		if lr, ok := ref.Export().(*listenerRef); ok && lr.fn == fnObj {
			return lr.l
		}
	}
	if l, ok := r.frozen[fnObj]; ok {
		return l
	}
	fn, ok := goja.AssertFunction(fnObj)
	if !ok || !create {
		return nil
	}
	l := dom.NewListener(func(this *dom.Node, e *dom.Event) {
		err := r.guard(context.Background(), func() error {
			_, err := fn(r.wrap(this), r.event(e))
			return err
		})
		if err != nil {
			r.logger.Warn("contentscript: listener failed", "type", e.Type, "element", this.ID(), "error", err)
		}
	})
	if err := fnObj.DefineDataPropertySymbol(r.listenerKey, r.vm.ToValue(&listenerRef{fn: fnObj, l: l}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		r.frozen[fnObj] = l
	}
	return l
}

func capture(v goja.Value) bool {
	if obj, ok := v.(*goja.Object); ok {
		if c := obj.Get("capture"); c != nil {
			return c.ToBoolean()
		}
		return false
	}
	return v != nil && v.ToBoolean()
}

func (r *Runner) event(e *dom.Event) goja.Value {
	vm := r.vm
	obj := vm.NewObject()
	obj.Set("type", e.Type)
	obj.Set("bubbles", e.Bubbles)
	obj.Set("cancelable", e.Cancelable)
	obj.Set("target", r.wrap(e.Target()))
	obj.Set("currentTarget", r.wrap(e.CurrentTarget()))
	obj.Set("eventPhase", int(e.EventPhase()))
	if m := e.Mouse; m != nil {
		obj.Set("screenX", m.ScreenX)
		obj.Set("screenY", m.ScreenY)
		obj.Set("clientX", m.ClientX)
		obj.Set("clientY", m.ClientY)
		obj.Set("button", m.Button)
		obj.Set("detail", m.Detail)
		obj.Set("ctrlKey", m.CtrlKey)
		obj.Set("altKey", m.AltKey)
		obj.Set("shiftKey", m.ShiftKey)
		obj.Set("metaKey", m.MetaKey)
	}
	r.accessor(obj, "defaultPrevented", func() goja.Value { return vm.ToValue(e.DefaultPrevented()) }, nil)
	obj.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		e.PreventDefault()
		return goja.Undefined()
	})
	obj.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		e.StopPropagation()
		return goja.Undefined()
	})
	obj.Set("stopImmediatePropagation", func(goja.FunctionCall) goja.Value {
		e.StopImmediatePropagation()
		return goja.Undefined()
	})
	return obj
}
