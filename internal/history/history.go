// Package history keeps undo/redo snapshots of a diagram.
package history

import "brain2-canvas/internal/domain/diagram"

// DefaultCapacity bounds the undo stack when none is configured.
const DefaultCapacity = 100

// Entry is one restorable state. Documents are immutable and shared; the
// layout is cloned on the way in and out.
type Entry struct {
	Document diagram.Document
	Layout   diagram.Layout
}

func (e Entry) clone() Entry {
	return Entry{Document: e.Document, Layout: e.Layout.Clone()}
}

// History is a bounded undo stack with a redo tail. Not safe for concurrent
// use.
type History struct {
	past     []Entry
	future   []Entry
	capacity int
}

// New returns an empty history holding at most capacity undo steps.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Record saves current as an undo point and discards the redo tail. The
// oldest entry is dropped when the stack is full.
func (h *History) Record(current Entry) {
	h.past = append(h.past, current.clone())
	if over := len(h.past) - h.capacity; over > 0 {
		h.past = append(h.past[:0:0], h.past[over:]...)
	}
	h.future = nil
}

// Undo steps backward. current becomes the first redo entry.
func (h *History) Undo(current Entry) (Entry, bool) {
	if len(h.past) == 0 {
		return Entry{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current.clone())
	return prev.clone(), true
}

// Redo steps forward again. current goes back onto the undo stack.
func (h *History) Redo(current Entry) (Entry, bool) {
	if len(h.future) == 0 {
		return Entry{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current.clone())
	return next.clone(), true
}

func (h *History) CanUndo() bool { return len(h.past) > 0 }
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Len returns the number of undo and redo steps available.
func (h *History) Len() (undo, redo int) {
	return len(h.past), len(h.future)
}

// Clear drops every entry.
func (h *History) Clear() {
	h.past, h.future = nil, nil
}
