package dom

import "errors"

// MutationType is the kind of a MutationRecord.
type MutationType string

const (
	MutationChildList     MutationType = "childList"
	MutationAttributes    MutationType = "attributes"
	MutationCharacterData MutationType = "characterData"
)

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Type          MutationType
	Target        *Node
	AddedNodes    []*Node
	RemovedNodes  []*Node
	AttributeName string
	OldValue      string
}

// ObserveOptions selects what an observer is notified about.
type ObserveOptions struct {
	ChildList             bool
	Attributes            bool
	CharacterData         bool
	Subtree               bool
	AttributeOldValue     bool
	CharacterDataOldValue bool
	AttributeFilter       []string
}

// MutationCallback receives the records queued since the last delivery.
type MutationCallback func(records []MutationRecord, o *MutationObserver)

// ErrObserveOptions is returned by Observe when no mutation type is selected.
var ErrObserveOptions = errors.New("dom: observe needs childList, attributes or characterData")

// MutationObserver batches mutation records and hands them to its callback
// after the task that caused them has returned.
type MutationObserver struct {
	doc     *Document
	cb      MutationCallback
	targets map[*Node]ObserveOptions
	records []MutationRecord
}

// NewMutationObserver creates an observer bound to the document.
func (d *Document) NewMutationObserver(cb MutationCallback) *MutationObserver {
	return &MutationObserver{doc: d, cb: cb, targets: make(map[*Node]ObserveOptions)}
}

// Observe registers target. Observing the same target again replaces its
// options.
func (o *MutationObserver) Observe(target *Node, opts ObserveOptions) error {
	if !opts.ChildList && !opts.Attributes && !opts.CharacterData {
		return ErrObserveOptions
	}
	if len(o.targets) == 0 {
		o.doc.observers = append(o.doc.observers, o)
	}
	o.targets[target] = opts
	return nil
}

// Disconnect stops all notifications and drops undelivered records.
func (o *MutationObserver) Disconnect() {
	o.targets = make(map[*Node]ObserveOptions)
	o.records = nil
	obs := o.doc.observers[:0]
	for _, other := range o.doc.observers {
		if other != o {
			obs = append(obs, other)
		}
	}
	o.doc.observers = obs
}

// TakeRecords returns and clears the pending records.
func (o *MutationObserver) TakeRecords() []MutationRecord {
	recs := o.records
	o.records = nil
	return recs
}

// ObserverCount returns the number of connected observers.
func (d *Document) ObserverCount() int { return len(d.observers) }

func (o *MutationObserver) accepts(rec MutationRecord) (ObserveOptions, bool) {
	for n := rec.Target; n != nil; n = n.parent {
		opts, ok := o.targets[n]
		if !ok || (n != rec.Target && !opts.Subtree) {
			continue
		}
		switch rec.Type {
		case MutationChildList:
			if opts.ChildList {
				return opts, true
			}
		case MutationAttributes:
			if opts.Attributes && filterAllows(opts.AttributeFilter, rec.AttributeName) {
				return opts, true
			}
		case MutationCharacterData:
			if opts.CharacterData {
				return opts, true
			}
		}
	}
	return ObserveOptions{}, false
}

func filterAllows(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == name {
			return true
		}
	}
	return false
}

func (d *Document) queueMutation(rec MutationRecord) {
	for _, o := range d.observers {
		opts, ok := o.accepts(rec)
		if !ok {
			continue
		}
		r := rec
		switch {
		case r.Type == MutationAttributes && !opts.AttributeOldValue:
			r.OldValue = ""
		case r.Type == MutationCharacterData && !opts.CharacterDataOldValue:
			r.OldValue = ""
		}
		o.records = append(o.records, r)
	}
}

// deliverMutations runs on the loop after each task. Observers are notified
// in registration order; records produced by callbacks are delivered in
// further rounds.
func (d *Document) deliverMutations() {
	for round := 0; ; round++ {
		if round == maxDeliveryRounds {
			d.logger.Warn("dom: mutation delivery did not settle", "url", d.url, "rounds", round)
			return
		}
		delivered := false
		for _, o := range append([]*MutationObserver(nil), d.observers...) {
			recs := o.TakeRecords()
			if len(recs) == 0 {
				continue
			}
			delivered = true
			d.invokeObserver(o, recs)
		}
		if !delivered {
			return
		}
	}
}

func (d *Document) invokeObserver(o *MutationObserver, recs []MutationRecord) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dom: mutation callback panicked", "url", d.url, "panic", r)
		}
	}()
	o.cb(recs, o)
}
