package canvas

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultSaveDebounce coalesces bursts of edits into one save per page.
const DefaultSaveDebounce = 500 * time.Millisecond

// LegacyGlobalPage is the page-number key older clients used for a single
// cross-page annotation set. New sessions ignore it on load.
const LegacyGlobalPage = 0

// SaveFunc persists one page's normalized payload. Calls are fire and forget:
// a failure is logged, never retried, and the in-memory scene stays the
// source of truth.
type SaveFunc func(ctx context.Context, documentID string, page int, payload Payload) error

// SessionOptions tune a document session.
type SessionOptions struct {
	// Debounce overrides DefaultSaveDebounce when positive.
	Debounce time.Duration
	// OnChange receives the latest normalized payload for a page after every
	// committed edit or undo. Callbacks run on the mutating goroutine and
	// must not call back into the session.
	OnChange func(page int, payload Payload)
	// OnHistory receives undo availability for a page whenever it changes.
	OnHistory func(page int, hasUndo bool)
}

// DocumentSession coordinates one page session per visible page of a
// document: the shared active tool and color, which page owns undo targeting,
// and a debounced save timer per page so edits on one page never interleave
// with another page's persistence.
type DocumentSession struct {
	mu         sync.Mutex
	documentID string
	cfg        ToolConfig
	pages      map[int]*PageSession
	stored     map[int]Payload // loaded payloads waiting for page dimensions
	focused    int
	debounce   time.Duration
	timers     map[int]*time.Timer
	pending    map[int]Payload
	save       SaveFunc
	onChange   func(int, Payload)
	onHistory  func(int, bool)
	closed     bool
}

// NewDocumentSession creates a session for one document. save may be nil for
// a read-only session.
func NewDocumentSession(documentID string, save SaveFunc, opts SessionOptions) *DocumentSession {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultSaveDebounce
	}
	return &DocumentSession{
		documentID: documentID,
		cfg:        ToolConfig{Tool: ToolSelect, Color: "#e03131", StrokeWidth: defaultLineWidth},
		pages:      make(map[int]*PageSession),
		stored:     make(map[int]Payload),
		timers:     make(map[int]*time.Timer),
		pending:    make(map[int]Payload),
		debounce:   debounce,
		save:       save,
		onChange:   opts.OnChange,
		onHistory:  opts.OnHistory,
	}
}

// Load seeds the session with stored payloads keyed by page number, as
// returned by the persistence API at session start. The legacy cross-page set
// under page 0 is ignored. Payloads apply to each page session once its pixel
// dimensions arrive via EnsurePage.
func (ds *DocumentSession) Load(pages map[int]Payload) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return
	}
	for page, payload := range pages {
		if page == LegacyGlobalPage {
			continue
		}
		if ps, ok := ds.pages[page]; ok {
			ps.Load(payload)
			continue
		}
		ds.stored[page] = payload
	}
}

// EnsurePage creates the page session at the given pixel extent, or resizes
// an existing one when the extent changed (zoom, device change).
func (ds *DocumentSession) EnsurePage(page int, width, height float64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return
	}
	if ps, ok := ds.pages[page]; ok {
		ps.Resize(width, height)
		return
	}
	ps := NewPageSession(page, width, height, &ds.cfg)
	ds.pages[page] = ps
	if payload, ok := ds.stored[page]; ok {
		delete(ds.stored, page)
		ps.Load(payload)
	}
}

// SetActiveTool switches the shared interaction mode for every page.
func (ds *DocumentSession) SetActiveTool(tool Tool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.cfg.Tool = tool
}

// SetActiveColor switches the shared drawing color for new shapes and, via
// Recolor, for the focused page's current selection.
func (ds *DocumentSession) SetActiveColor(color string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.cfg.Color = color
}

// SetStrokeWidth switches the shared stroke width used by new shapes.
func (ds *DocumentSession) SetStrokeWidth(width float64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if width > 0 {
		ds.cfg.StrokeWidth = width
	}
}

// FocusedPage returns the page currently receiving undo and clear commands.
func (ds *DocumentSession) FocusedPage() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.focused
}

// PointerDown routes a pointer press to a page's machine and makes that page
// the focused one.
func (ds *DocumentSession) PointerDown(page int, p Point, hitID string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[page]
	if !ok {
		return
	}
	ds.focused = page
	ps.Machine().PointerDown(p, hitID)
}

// PointerMove routes a pointer drag to a page's machine.
func (ds *DocumentSession) PointerMove(page int, p Point) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ps, ok := ds.pages[page]; ok {
		ps.Machine().PointerMove(p)
	}
}

// PointerUp routes a pointer release; a resulting commit pushes history and
// schedules the page's debounced save.
func (ds *DocumentSession) PointerUp(page int, p Point) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[page]
	if !ok {
		return
	}
	if ps.Machine().PointerUp(p) {
		ds.afterCommit(ps)
	}
}

// ExitTextEdit ends a page's text edit session with its final content.
func (ds *DocumentSession) ExitTextEdit(page int, text string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[page]
	if !ok {
		return
	}
	if ps.Machine().ExitTextEdit(text) {
		ds.afterCommit(ps)
	}
}

// SetSelection records the client's current selection on a page.
func (ds *DocumentSession) SetSelection(page int, ids []string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ps, ok := ds.pages[page]; ok {
		ps.Machine().SetSelection(ids)
	}
}

// ObjectMoving applies an in-progress move on a committed shape.
func (ds *DocumentSession) ObjectMoving(page int, id string, left, top float64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ps, ok := ds.pages[page]; ok {
		ps.Machine().ObjectMoving(id, left, top)
	}
}

// ObjectScaling applies an in-progress scale on a committed shape.
func (ds *DocumentSession) ObjectScaling(page int, id string, scaleX, scaleY, left, top float64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ps, ok := ds.pages[page]; ok {
		ps.Machine().ObjectScaling(id, scaleX, scaleY, left, top)
	}
}

// ObjectModified marks the end of an interactive edit and commits it.
func (ds *DocumentSession) ObjectModified(page int, id string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[page]
	if !ok {
		return
	}
	if ps.Machine().ObjectModified(id) {
		ds.afterCommit(ps)
	}
}

// Recolor applies the color to the focused page's selection as one history
// entry. The shared default color for new shapes is left alone; that is
// SetActiveColor's job.
func (ds *DocumentSession) Recolor(color string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[ds.focused]
	if !ok {
		return
	}
	if ps.Machine().RecolorSelection(color) {
		ds.afterCommit(ps)
	}
}

// DeleteSelection removes the focused page's selected shapes as one history
// entry.
func (ds *DocumentSession) DeleteSelection() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[ds.focused]
	if !ok {
		return
	}
	if ps.Machine().DeleteSelection() {
		ds.afterCommit(ps)
	}
}

// Undo targets the focused page. A restored payload is emitted through
// OnChange and scheduled for persistence like any other edit.
func (ds *DocumentSession) Undo() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[ds.focused]
	if !ok {
		return
	}
	stored, restored := ps.Undo()
	if !restored {
		return
	}
	ds.notify(ps.Page(), stored, ps.HasUndo())
	ds.scheduleSave(ps.Page(), stored)
}

// Clear empties the focused page; the cleared state is itself undoable.
func (ds *DocumentSession) Clear() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ps, ok := ds.pages[ds.focused]
	if !ok {
		return
	}
	empty := ps.Clear()
	ds.notify(ps.Page(), empty, ps.HasUndo())
	ds.scheduleSave(ps.Page(), empty)
}

// HasUndo reports undo availability for a page.
func (ds *DocumentSession) HasUndo(page int) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ps, ok := ds.pages[page]; ok {
		return ps.HasUndo()
	}
	return false
}

// Snapshot returns the current normalized payload for a page.
func (ds *DocumentSession) Snapshot(page int) (Payload, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ps, ok := ds.pages[page]; ok {
		return ps.Snapshot(), true
	}
	return Payload{}, false
}

// Close tears down every page session and cancels pending save timers, so a
// debounced save can never fire against a closed session.
func (ds *DocumentSession) Close() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return
	}
	ds.closed = true
	for page, timer := range ds.timers {
		timer.Stop()
		delete(ds.timers, page)
	}
	for _, ps := range ds.pages {
		ps.Close()
	}
}

// afterCommit pushes the page's post-edit snapshot onto history, fans out the
// change, and schedules the debounced save. Callers hold ds.mu.
func (ds *DocumentSession) afterCommit(ps *PageSession) {
	stored := ps.Commit()
	ds.notify(ps.Page(), stored, ps.HasUndo())
	ds.scheduleSave(ps.Page(), stored)
}

func (ds *DocumentSession) notify(page int, payload Payload, hasUndo bool) {
	if ds.onChange != nil {
		ds.onChange(page, payload)
	}
	if ds.onHistory != nil {
		ds.onHistory(page, hasUndo)
	}
}

// scheduleSave arms or rearms the page's debounce timer with the latest
// payload, coalescing edit bursts into a single save. Callers hold ds.mu.
func (ds *DocumentSession) scheduleSave(page int, payload Payload) {
	if ds.save == nil || ds.closed {
		return
	}
	ds.pending[page] = payload
	if timer, ok := ds.timers[page]; ok {
		timer.Reset(ds.debounce)
		return
	}
	ds.timers[page] = time.AfterFunc(ds.debounce, func() {
		ds.flush(page)
	})
}

func (ds *DocumentSession) flush(page int) {
	ds.mu.Lock()
	if ds.closed {
		ds.mu.Unlock()
		return
	}
	payload, ok := ds.pending[page]
	delete(ds.pending, page)
	delete(ds.timers, page)
	documentID := ds.documentID
	save := ds.save
	ds.mu.Unlock()
	if !ok {
		return
	}
	if err := save(context.Background(), documentID, page, payload); err != nil {
		log.Printf("canvas: save document %s page %d: %v", documentID, page, err)
	}
}
