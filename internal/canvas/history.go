package canvas

// maxHistoryEntries bounds the per-page undo stack. The base entry at index 0
// is never evicted; once the cap is reached the oldest undoable entry above it
// is dropped instead.
const maxHistoryEntries = 100

// History is the snapshot-based undo stack for one page. Entries are full
// serialized scenes, oldest first, with index 0 holding the state at load.
// The stack is append-only except for Undo, which pops the top entry and
// exposes the one beneath it.
type History struct {
	entries []Payload
}

// NewHistory creates a stack seeded with the state at load time.
func NewHistory(base Payload) *History {
	return &History{entries: []Payload{base}}
}

// Push appends a snapshot, evicting the oldest non-base entry at capacity.
func (h *History) Push(p Payload) {
	if len(h.entries) >= maxHistoryEntries {
		h.entries = append(h.entries[:1], h.entries[2:]...)
	}
	h.entries = append(h.entries, p)
}

// Undo pops the most recent entry and returns the one beneath it. It reports
// false, leaving the stack untouched, when only the base entry remains.
func (h *History) Undo() (Payload, bool) {
	if len(h.entries) <= 1 {
		return Payload{}, false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// HasUndo reports whether Undo would restore anything.
func (h *History) HasUndo() bool {
	return len(h.entries) > 1
}

// Reset discards all entries and reseeds the stack with a single base state.
// Used after a resize renormalizes the scene.
func (h *History) Reset(base Payload) {
	h.entries = h.entries[:0]
	h.entries = append(h.entries, base)
}

// Len reports the stack depth, base entry included.
func (h *History) Len() int {
	return len(h.entries)
}

// Top returns the most recent snapshot.
func (h *History) Top() Payload {
	return h.entries[len(h.entries)-1]
}
