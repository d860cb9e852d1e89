package tracker

import "go-live-docs/internal/frame"

// Tracker owns the active heading id of one loaded document. It must only be
// used from the loop its scheduler belongs to.
type Tracker struct {
	rule   Rule
	sched  frame.Scheduler
	layout func() Layout
	emit   func(id string)

	active  string
	pending func()
	gen     uint64
	closed  bool
}

// New creates a tracker. layout is read on every evaluation; emit is called
// once per transition of the active heading.
func New(rule Rule, sched frame.Scheduler, layout func() Layout, emit func(id string)) *Tracker {
	return &Tracker{rule: rule, sched: sched, layout: layout, emit: emit}
}

// Active returns the current active heading id, empty when unset.
func (t *Tracker) Active() string {
	return t.active
}

// OnScroll schedules an evaluation on the next frame. A pending evaluation is
// cancelled and replaced, so a burst of scroll events costs one evaluation.
func (t *Tracker) OnScroll() {
	if t.closed {
		return
	}
	t.cancelPending()

	gen := t.gen
	t.pending = t.sched.RequestFrame(func() {
		if gen != t.gen {
			return
		}
		t.pending = nil
		t.Update()
	})
}

// Update evaluates the rule now and emits on transition.
func (t *Tracker) Update() {
	if t.closed {
		return
	}
	id, ok := t.rule.Select(t.layout())
	if !ok || id == t.active {
		return
	}
	t.active = id
	if t.emit != nil {
		t.emit(id)
	}
}

// Reset forgets the active heading, for use when a new heading set replaces
// the old one.
func (t *Tracker) Reset() {
	t.cancelPending()
	t.active = ""
}

// Close cancels any pending evaluation and disables the tracker.
func (t *Tracker) Close() {
	t.cancelPending()
	t.closed = true
}

func (t *Tracker) cancelPending() {
	t.gen++
	if t.pending != nil {
		t.pending()
		t.pending = nil
	}
}
