// Package history keeps the linear undo/redo log of document snapshots.
package history

import (
	"tag-designer/document"
)

// Entry is one immutable serialized document snapshot.
type Entry string

// Document parses the snapshot back into a document.
func (e Entry) Document() (*document.Document, error) {
	return document.Parse(string(e))
}

// History is an ordered list of entries plus a cursor pointing at the
// entry that matches the current document. The cursor is -1 while the
// history is empty. It is not safe for concurrent use.
type History struct {
	entries []Entry
	cursor  int
}

func New() *History {
	return &History{cursor: -1}
}

// Record snapshots doc and pushes it. Every call appends, even when the
// snapshot equals the current entry; callers debounce upstream.
func (h *History) Record(doc *document.Document) error {
	snap, err := doc.Snapshot()
	if err != nil {
		return err
	}
	h.Push(Entry(snap))
	return nil
}

// Push drops every entry after the cursor, appends e and moves the
// cursor onto it.
func (h *History) Push(e Entry) {
	h.entries = append(h.entries[:h.cursor+1], e)
	h.cursor = len(h.entries) - 1
}

// Undo steps the cursor back and returns the entry to apply. At the
// first entry it does nothing and returns false.
func (h *History) Undo() (Entry, bool) {
	if !h.CanUndo() {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Redo steps the cursor forward and returns the entry to apply. At the
// last entry it does nothing and returns false.
func (h *History) Redo() (Entry, bool) {
	if !h.CanRedo() {
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.entries)-1 }
func (h *History) Len() int      { return len(h.entries) }
func (h *History) Cursor() int   { return h.cursor }

// Current returns the entry under the cursor.
func (h *History) Current() (Entry, bool) {
	if h.cursor < 0 {
		return "", false
	}
	return h.entries[h.cursor], true
}

// Entries returns a copy of the log.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Reset empties the history.
func (h *History) Reset() {
	h.entries = nil
	h.cursor = -1
}
