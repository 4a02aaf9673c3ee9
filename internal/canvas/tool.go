package canvas

import (
	"math"
	"strings"

	"redink/api/internal/util"
)

// Tool is the active interaction mode governing pointer interpretation.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolArrow  Tool = "arrow"
	ToolBox    Tool = "box"
	ToolDraw   Tool = "draw"
	ToolText   Tool = "text"
)

// Construction thresholds, in device-independent units.
const (
	// MinArrowLength is the shortest straight-line arrow that commits.
	MinArrowLength = 25.0
	// MinShapeExtent rejects a box or freehand stroke whose bounding box is
	// below this on both axes.
	MinShapeExtent = 10.0

	arrowHeadLength  = 10.0
	defaultFontSize  = 18.0
	minTextWidth     = 150.0
	maxTextWidth     = 300.0
	defaultLineWidth = 2.0
)

// ToolConfig is the active tool and style shared across every page of a
// document. The document session owns it and every page machine reads it, so
// a tool or color change applies everywhere at once.
type ToolConfig struct {
	Tool        Tool
	Color       string
	StrokeWidth float64
}

type phase int

const (
	phaseIdle phase = iota
	phaseArrow
	phaseBox
	phaseFreehand
	phaseTextEdit
)

// Machine interprets pointer-down/move/up sequences into shape construction
// and editing for one page, filtered through the shared active tool. All
// mutations of the page's scene flow through here or through history
// restoration; the machine reports whether an event produced a commit so the
// caller can push history and schedule a save.
type Machine struct {
	scene         *Scene
	cfg           *ToolConfig
	width, height float64

	state       phase
	start       Point
	previewID   string
	trail       []Point
	editingID   string
	justExited  bool
	selection   []string
	multiSelect bool
}

// NewMachine creates a tool machine bound to one scene and the shared config.
func NewMachine(scene *Scene, cfg *ToolConfig) *Machine {
	return &Machine{scene: scene, cfg: cfg, multiSelect: true}
}

func (m *Machine) setExtent(width, height float64) {
	m.width = width
	m.height = height
}

// MultiSelectEnabled reports whether scene-wide multi-select is currently
// allowed. It is disabled while a shape is under construction.
func (m *Machine) MultiSelectEnabled() bool { return m.multiSelect }

// Constructing reports whether a pointer sequence is in progress.
func (m *Machine) Constructing() bool {
	return m.state == phaseArrow || m.state == phaseBox || m.state == phaseFreehand
}

// Editing reports whether a text shape is in its edit sub-state, and which.
func (m *Machine) Editing() (string, bool) {
	return m.editingID, m.state == phaseTextEdit
}

// SetSelection records which committed shapes the client currently has
// selected; recolor and delete commands operate on this set.
func (m *Machine) SetSelection(ids []string) {
	m.selection = append(m.selection[:0], ids...)
}

func (m *Machine) strokeWidth() float64 {
	if m.cfg.StrokeWidth > 0 {
		return m.cfg.StrokeWidth
	}
	return defaultLineWidth
}

// PointerDown begins construction for the active tool. hitID names the
// committed shape under the pointer, if any; hitting one defers to the
// platform's own select/move/resize handling, so nothing starts here.
func (m *Machine) PointerDown(p Point, hitID string) {
	if m.state == phaseTextEdit {
		// The edit session swallows its own clicks until the exit event.
		return
	}
	exited := m.justExited
	m.justExited = false

	if m.cfg.Tool == ToolSelect || hitID != "" {
		return
	}

	p = clampPoint(p, m.width, m.height)
	switch m.cfg.Tool {
	case ToolArrow:
		m.state = phaseArrow
		m.start = p
		m.multiSelect = false
	case ToolBox:
		m.state = phaseBox
		m.start = p
		m.multiSelect = false
	case ToolDraw:
		m.state = phaseFreehand
		m.trail = append(m.trail[:0], p)
		m.multiSelect = false
	case ToolText:
		if exited {
			// The click that dismissed the edit UI only deselects; creating
			// a new text box here would be accidental.
			return
		}
		m.beginText(p)
	}
}

func (m *Machine) beginText(p Point) {
	width := m.width - p.X
	if width > maxTextWidth {
		width = maxTextWidth
	}
	if width < minTextWidth {
		width = minTextWidth
	}
	left := p.X
	if left+width > m.width {
		left = m.width - width
	}
	if left < 0 {
		left = 0
	}
	s := Shape{
		ID:       util.NewID("shape"),
		Kind:     KindText,
		Left:     left,
		Top:      p.Y,
		Width:    width,
		FontSize: defaultFontSize,
		Fill:     m.cfg.Color,
	}
	m.scene.Add(s)
	m.editingID = s.ID
	m.state = phaseTextEdit
	m.multiSelect = false
}

// PointerMove updates the transient preview while constructing. Text
// placement ignores moves entirely.
func (m *Machine) PointerMove(p Point) {
	p = clampPoint(p, m.width, m.height)
	switch m.state {
	case phaseArrow:
		m.previewArrow(p)
	case phaseBox:
		m.previewBox(p)
	case phaseFreehand:
		m.trail = append(m.trail, p)
		m.previewStroke()
	}
}

func (m *Machine) previewArrow(p Point) {
	// Keep the head fully on canvas.
	if p.X < arrowHeadLength/2 {
		p.X = arrowHeadLength / 2
	}
	if p.X > m.width-arrowHeadLength/2 {
		p.X = m.width - arrowHeadLength/2
	}
	s := Shape{
		ID:          m.ensurePreviewID(),
		Kind:        KindArrow,
		Left:        math.Min(m.start.X, p.X),
		Top:         math.Min(m.start.Y, p.Y),
		X1:          m.start.X,
		Y1:          m.start.Y,
		X2:          p.X,
		Y2:          p.Y,
		HeadLength:  arrowHeadLength,
		Stroke:      m.cfg.Color,
		Fill:        m.cfg.Color,
		StrokeWidth: m.strokeWidth(),
	}
	m.scene.Add(s)
}

func (m *Machine) previewBox(p Point) {
	inset := m.strokeWidth() / 2
	left := math.Min(m.start.X, p.X)
	top := math.Min(m.start.Y, p.Y)
	w := math.Abs(p.X - m.start.X)
	h := math.Abs(p.Y - m.start.Y)
	if left+w > m.width-inset {
		left = m.width - inset - w
	}
	// Near-edge clamp last: an oversized drag makes the far-edge
	// correction overshoot past the inset.
	if left < inset {
		left = inset
	}
	if top+h > m.height-inset {
		top = m.height - inset - h
	}
	if top < inset {
		top = inset
	}
	s := Shape{
		ID:          m.ensurePreviewID(),
		Kind:        KindBox,
		Left:        left,
		Top:         top,
		Width:       w,
		Height:      h,
		Stroke:      m.cfg.Color,
		StrokeWidth: m.strokeWidth(),
	}
	m.scene.Add(s)
}

func (m *Machine) previewStroke() {
	points := make([]Point, len(m.trail))
	copy(points, m.trail)
	s := Shape{
		ID:          m.ensurePreviewID(),
		Kind:        KindStroke,
		Points:      points,
		Stroke:      m.cfg.Color,
		StrokeWidth: m.strokeWidth(),
	}
	m.scene.Add(s)
}

func (m *Machine) ensurePreviewID() string {
	if m.previewID == "" {
		m.previewID = util.NewID("shape")
	}
	return m.previewID
}

// PointerUp finalizes the preview into a committed shape, or discards it when
// it falls below the construction thresholds. It reports whether a shape
// committed, which is the caller's cue to push history.
func (m *Machine) PointerUp(p Point) bool {
	if !m.Constructing() {
		return false
	}
	m.PointerMove(p)

	committed := false
	if m.previewID != "" {
		s := m.scene.Get(m.previewID)
		if s != nil && m.acceptable(s) {
			committed = true
		} else if s != nil {
			m.scene.Remove(m.previewID)
		}
	}

	m.state = phaseIdle
	m.previewID = ""
	m.trail = nil
	m.multiSelect = true
	return committed
}

func (m *Machine) acceptable(s *Shape) bool {
	switch s.Kind {
	case KindArrow:
		return math.Hypot(s.X2-s.X1, s.Y2-s.Y1) >= MinArrowLength
	case KindBox, KindStroke:
		b := s.Bounds()
		return b.Width >= MinShapeExtent || b.Height >= MinShapeExtent
	}
	return true
}

// ExitTextEdit ends the text edit sub-state with the final content. Empty or
// whitespace-only content deletes the shape without a history entry. Either
// way the next pointer-down with the text tool is consumed as a deselect.
func (m *Machine) ExitTextEdit(text string) bool {
	if m.state != phaseTextEdit {
		return false
	}
	id := m.editingID
	m.editingID = ""
	m.state = phaseIdle
	m.multiSelect = true
	m.justExited = true

	s := m.scene.Get(id)
	if s == nil {
		return false
	}
	if strings.TrimSpace(text) == "" {
		m.scene.Remove(id)
		return false
	}
	s.Text = text
	s.Height = s.FontSize * 1.2 * float64(1+strings.Count(text, "\n"))
	ClampToCanvas(s, m.width, m.height)
	return true
}

// ObjectMoving applies an in-progress interactive move, keeping the shape
// inside the canvas on every step.
func (m *Machine) ObjectMoving(id string, left, top float64) {
	s := m.scene.Get(id)
	if s == nil {
		return
	}
	b := s.Bounds()
	s.Translate(left-b.Left, top-b.Top)
	ClampToCanvas(s, m.width, m.height)
}

// ObjectScaling applies an in-progress interactive scale. The factors apply
// relative to the shape's current geometry. The proposed scale is honored and
// any resulting overshoot is corrected by shifting position, except that an
// aspect-locked variant scales uniformly by scaleX.
func (m *Machine) ObjectScaling(id string, scaleX, scaleY, left, top float64) {
	s := m.scene.Get(id)
	if s == nil {
		return
	}
	if scaleX <= 0 {
		scaleX = 1
	}
	if scaleY <= 0 {
		scaleY = 1
	}
	caps := s.Kind.Capabilities()
	if caps.LockedAspect {
		scaleY = scaleX
	}

	switch s.Kind {
	case KindArrow, KindStroke:
		b := s.Bounds()
		scaleAbout(s, b.Left, b.Top, scaleX, scaleY)
		b = s.Bounds()
		s.Translate(left-b.Left, top-b.Top)
	case KindText:
		// Corner handles grow font and width together; height follows from
		// content at the new font size.
		s.Width *= scaleX
		s.FontSize *= scaleX
		s.Height *= scaleX
		s.Left = left
		s.Top = top
	default:
		s.ScaleX = s.scaleX() * scaleX
		s.ScaleY = s.scaleY() * scaleY
		s.Left = left
		s.Top = top
	}
	ClampToCanvas(s, m.width, m.height)
}

func scaleAbout(s *Shape, originX, originY, sx, sy float64) {
	switch s.Kind {
	case KindArrow:
		s.X1 = originX + (s.X1-originX)*sx
		s.X2 = originX + (s.X2-originX)*sx
		s.Y1 = originY + (s.Y1-originY)*sy
		s.Y2 = originY + (s.Y2-originY)*sy
	case KindStroke:
		for i := range s.Points {
			s.Points[i].X = originX + (s.Points[i].X-originX)*sx
			s.Points[i].Y = originY + (s.Points[i].Y-originY)*sy
		}
	}
	b := s.Bounds()
	s.Left = b.Left
	s.Top = b.Top
}

// ObjectModified marks the end of an interactive move/resize/rotate on a
// committed shape. It re-clamps and always commits.
func (m *Machine) ObjectModified(id string) bool {
	s := m.scene.Get(id)
	if s == nil {
		return false
	}
	ClampToCanvas(s, m.width, m.height)
	return true
}

// RecolorSelection recolors every selected shape per its variant and reports
// whether anything changed; all recolors land in one history entry.
func (m *Machine) RecolorSelection(color string) bool {
	changed := false
	for _, id := range m.selection {
		if s := m.scene.Get(id); s != nil {
			s.Recolor(color)
			changed = true
		}
	}
	return changed
}

// DeleteSelection removes every selected shape. It refuses while a text edit
// session has focus, so deleting characters never deletes shapes.
func (m *Machine) DeleteSelection() bool {
	if m.state == phaseTextEdit {
		return false
	}
	removed := false
	for _, id := range m.selection {
		if m.scene.Get(id) != nil {
			m.scene.Remove(id)
			removed = true
		}
	}
	m.selection = m.selection[:0]
	return removed
}
