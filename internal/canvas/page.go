package canvas

import "sync/atomic"

// liveness is the explicit lifetime token for a page session. Asynchronous
// continuations (payload deserialization, debounced saves) check it before
// touching the scene, so results arriving after teardown are discarded rather
// than applied to a disposed page.
type liveness struct {
	dead atomic.Bool
}

func (l *liveness) Alive() bool { return !l.dead.Load() }
func (l *liveness) kill()       { l.dead.Store(true) }

// PageSession binds one live scene, one history stack, and one tool machine to
// a single page at its current pixel dimensions. It is not safe for concurrent
// use; the owning document session serializes access.
type PageSession struct {
	page          int
	width, height float64
	scene         *Scene
	history       *History
	machine       *Machine
	live          *liveness
}

// NewPageSession creates an empty page session at the given pixel extent.
func NewPageSession(page int, width, height float64, cfg *ToolConfig) *PageSession {
	scene := NewScene()
	ps := &PageSession{
		page:    page,
		width:   width,
		height:  height,
		scene:   scene,
		history: NewHistory(Payload{}),
		machine: NewMachine(scene, cfg),
		live:    &liveness{},
	}
	ps.machine.setExtent(width, height)
	return ps
}

// Page returns the page number this session owns.
func (ps *PageSession) Page() int { return ps.page }

// Machine exposes the page's tool state machine.
func (ps *PageSession) Machine() *Machine { return ps.machine }

// Scene exposes the live scene.
func (ps *PageSession) Scene() *Scene { return ps.scene }

// Alive reports whether the session has not been torn down.
func (ps *PageSession) Alive() bool { return ps.live.Alive() }

// Close tears the session down. Later async completions see a dead liveness
// token and discard their results.
func (ps *PageSession) Close() { ps.live.kill() }

// Load replaces the scene with a stored normalized payload, denormalized at
// the current extent, and reseeds history with that state. A load completing
// after teardown is dropped.
func (ps *PageSession) Load(stored Payload) {
	if !ps.live.Alive() {
		return
	}
	live := Denormalize(stored, ps.width, ps.height)
	ps.scene.Restore(live)
	ps.history.Reset(stored)
}

// Resize renormalizes the live scene from the previous dimensions and
// projects it onto the new ones, then resets history to a single entry so
// repeated zoom changes never compound floating-point drift.
func (ps *PageSession) Resize(width, height float64) {
	if width == ps.width && height == ps.height {
		return
	}
	stored := Normalize(ps.scene.Snapshot(), ps.width, ps.height)
	ps.width = width
	ps.height = height
	ps.machine.setExtent(width, height)
	ps.scene.Restore(Denormalize(stored, width, height))
	ps.history.Reset(stored)
}

// Commit snapshots the live scene, pushes it onto history, and returns the
// normalized payload for persistence.
func (ps *PageSession) Commit() Payload {
	stored := Normalize(ps.scene.Snapshot(), ps.width, ps.height)
	ps.history.Push(stored)
	return stored
}

// Undo restores the previous history entry into the live scene and returns
// the restored normalized payload. It is a no-op at the base entry.
func (ps *PageSession) Undo() (Payload, bool) {
	stored, ok := ps.history.Undo()
	if !ok {
		return Payload{}, false
	}
	if !ps.live.Alive() {
		return Payload{}, false
	}
	ps.scene.Restore(Denormalize(stored, ps.width, ps.height))
	return stored, true
}

// Clear empties the scene and pushes the empty state, so the clear itself is
// undoable back to the prior populated scene.
func (ps *PageSession) Clear() Payload {
	ps.scene.Restore(Payload{})
	empty := Payload{}
	ps.history.Push(empty)
	return empty
}

// HasUndo reports whether an undo would restore anything.
func (ps *PageSession) HasUndo() bool { return ps.history.HasUndo() }

// Snapshot returns the current scene as a normalized payload without touching
// history.
func (ps *PageSession) Snapshot() Payload {
	return Normalize(ps.scene.Snapshot(), ps.width, ps.height)
}
