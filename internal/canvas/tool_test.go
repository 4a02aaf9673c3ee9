package canvas

import (
	"math"
	"testing"
)

func testPage(t *testing.T) *PageSession {
	t.Helper()
	cfg := &ToolConfig{Tool: ToolSelect, Color: "#e03131", StrokeWidth: 2}
	return NewPageSession(1, 800, 1100, cfg)
}

func draw(ps *PageSession, tool Tool, from, to Point) bool {
	ps.Machine().cfg.Tool = tool
	ps.Machine().PointerDown(from, "")
	ps.Machine().PointerMove(to)
	return ps.Machine().PointerUp(to)
}

func TestArrowRejectedBelowMinimumLength(t *testing.T) {
	ps := testPage(t)
	if draw(ps, ToolArrow, Point{X: 100, Y: 100}, Point{X: 110, Y: 100}) {
		t.Error("10-unit arrow should not commit")
	}
	if ps.Scene().Len() != 0 {
		t.Errorf("scene has %d objects, want 0", ps.Scene().Len())
	}
	if ps.HasUndo() {
		t.Error("rejected arrow must not push history")
	}
}

func TestArrowCommittedAtMinimumLength(t *testing.T) {
	ps := testPage(t)
	if !draw(ps, ToolArrow, Point{X: 100, Y: 100}, Point{X: 130, Y: 100}) {
		t.Fatal("30-unit arrow should commit")
	}
	ps.Commit()
	if ps.Scene().Len() != 1 {
		t.Fatalf("scene has %d objects, want 1", ps.Scene().Len())
	}
	if ps.history.Len() != 2 {
		t.Errorf("history depth %d, want 2", ps.history.Len())
	}
	top := ps.history.Top()
	if len(top.Objects) != 1 || top.Objects[0].Kind != KindArrow {
		t.Errorf("history top should hold exactly one arrow, got %+v", top.Objects)
	}
}

func TestBoxRejectedWhenBothDimensionsSmall(t *testing.T) {
	ps := testPage(t)
	if draw(ps, ToolBox, Point{X: 0, Y: 0}, Point{X: 5, Y: 5}) {
		t.Error("5x5 box should not commit")
	}
	if ps.Scene().Len() != 0 {
		t.Errorf("scene has %d objects, want 0", ps.Scene().Len())
	}
}

func TestBoxCommittedWhenOneDimensionSuffices(t *testing.T) {
	ps := testPage(t)
	if !draw(ps, ToolBox, Point{X: 0, Y: 0}, Point{X: 20, Y: 5}) {
		t.Fatal("20x5 box should commit")
	}
	if ps.Scene().Len() != 1 {
		t.Fatalf("scene has %d objects, want 1", ps.Scene().Len())
	}
}

func TestFreehandAccumulatesTrail(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolDraw
	m.PointerDown(Point{X: 10, Y: 10}, "")
	for _, p := range []Point{{X: 20, Y: 15}, {X: 35, Y: 30}, {X: 50, Y: 22}} {
		m.PointerMove(p)
	}
	if !m.PointerUp(Point{X: 60, Y: 40}) {
		t.Fatal("stroke should commit")
	}
	shapes := ps.Scene().Shapes()
	if len(shapes) != 1 {
		t.Fatalf("scene has %d objects, want 1", len(shapes))
	}
	// down point + 3 moves + the final up point
	if got := len(shapes[0].Points); got != 5 {
		t.Errorf("stroke has %d points, want 5", got)
	}
}

func TestDrawingClampsPointerToCanvas(t *testing.T) {
	ps := testPage(t)
	if !draw(ps, ToolBox, Point{X: 700, Y: 1000}, Point{X: 900, Y: 1300}) {
		t.Fatal("box should commit")
	}
	b := ps.Scene().Shapes()[0].Bounds()
	if b.Right() > 800 || b.Bottom() > 1100 {
		t.Errorf("box bounds %+v escape the 800x1100 canvas", b)
	}
}

func TestConstructionDisablesMultiSelect(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolArrow
	m.PointerDown(Point{X: 10, Y: 10}, "")
	if m.MultiSelectEnabled() {
		t.Error("multi-select should be disabled while constructing")
	}
	m.PointerUp(Point{X: 100, Y: 100})
	if !m.MultiSelectEnabled() {
		t.Error("multi-select should be re-enabled after pointer-up")
	}
}

func TestPointerDownOnExistingShapeDefersToPlatform(t *testing.T) {
	ps := testPage(t)
	draw(ps, ToolBox, Point{X: 10, Y: 10}, Point{X: 60, Y: 60})
	m := ps.Machine()
	m.cfg.Tool = ToolBox
	m.PointerDown(Point{X: 20, Y: 20}, ps.Scene().Shapes()[0].ID)
	if m.Constructing() {
		t.Error("hitting an existing shape must not begin construction")
	}
}

func TestEmptyTextDiscardedOnEditExit(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolText
	m.PointerDown(Point{X: 200, Y: 300}, "")
	if _, editing := m.Editing(); !editing {
		t.Fatal("text tool pointer-down should enter edit state")
	}
	if m.ExitTextEdit("   \n ") {
		t.Error("whitespace-only text must not commit")
	}
	if ps.Scene().Len() != 0 {
		t.Errorf("scene has %d objects, want 0", ps.Scene().Len())
	}
	if ps.HasUndo() {
		t.Error("discarded text must not push history")
	}
}

func TestTextCommittedWithContent(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolText
	m.PointerDown(Point{X: 200, Y: 300}, "")
	if !m.ExitTextEdit("too vague") {
		t.Fatal("non-empty text should commit")
	}
	shapes := ps.Scene().Shapes()
	if len(shapes) != 1 || shapes[0].Text != "too vague" {
		t.Fatalf("unexpected scene contents: %+v", shapes)
	}
	if shapes[0].Height == 0 {
		t.Error("committed text should carry a derived height")
	}
}

func TestTextEditExitSwallowsNextPointerDown(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolText
	m.PointerDown(Point{X: 200, Y: 300}, "")
	m.ExitTextEdit("keep")

	// The click dismissing the edit UI deselects only.
	m.PointerDown(Point{X: 400, Y: 500}, "")
	if _, editing := m.Editing(); editing {
		t.Error("pointer-down right after edit exit must not create a text box")
	}
	if ps.Scene().Len() != 1 {
		t.Errorf("scene has %d objects, want 1", ps.Scene().Len())
	}

	// The click after that creates normally again.
	m.PointerDown(Point{X: 400, Y: 500}, "")
	if _, editing := m.Editing(); !editing {
		t.Error("second pointer-down should create a text box")
	}
}

func TestTextDefaultWidthFitsCanvas(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolText
	m.PointerDown(Point{X: 790, Y: 100}, "")
	shapes := ps.Scene().Shapes()
	if len(shapes) != 1 {
		t.Fatal("expected one text shape")
	}
	s := shapes[0]
	if s.Width < minTextWidth || s.Width > maxTextWidth {
		t.Errorf("text width %v outside [%v, %v]", s.Width, minTextWidth, maxTextWidth)
	}
	if s.Left+s.Width > 800 {
		t.Errorf("text box [%v, %v] overflows canvas width", s.Left, s.Left+s.Width)
	}
}

func TestArrowPreviewKeepsHeadOnCanvas(t *testing.T) {
	ps := testPage(t)
	draw(ps, ToolArrow, Point{X: 400, Y: 100}, Point{X: 2000, Y: 100})
	s := ps.Scene().Shapes()[0]
	if want := 800 - arrowHeadLength/2; math.Abs(s.X2-want) > floatTol {
		t.Errorf("arrow tip x = %v, want %v", s.X2, want)
	}
}

func TestBoxPreviewStaysOnCanvasWhenWiderThanPage(t *testing.T) {
	ps := testPage(t)
	m := ps.Machine()
	m.cfg.Tool = ToolBox
	m.PointerDown(Point{X: 0, Y: 0}, "")
	m.PointerMove(Point{X: 900, Y: 50})

	s := ps.Scene().Shapes()[0]
	inset := m.strokeWidth() / 2
	if s.Left < inset {
		t.Errorf("preview left = %v, want >= %v", s.Left, inset)
	}
	if s.Top < inset {
		t.Errorf("preview top = %v, want >= %v", s.Top, inset)
	}
}

func TestRecolorSelectionPerVariant(t *testing.T) {
	ps := testPage(t)
	draw(ps, ToolArrow, Point{X: 10, Y: 10}, Point{X: 100, Y: 100})
	draw(ps, ToolBox, Point{X: 200, Y: 200}, Point{X: 300, Y: 280})
	m := ps.Machine()
	m.cfg.Tool = ToolText
	m.PointerDown(Point{X: 100, Y: 600}, "")
	m.ExitTextEdit("note")

	shapes := ps.Scene().Shapes()
	ids := make([]string, len(shapes))
	for i, s := range shapes {
		ids[i] = s.ID
	}
	m.SetSelection(ids)
	if !m.RecolorSelection("#1c7ed6") {
		t.Fatal("recolor should report a change")
	}
	for _, s := range ps.Scene().Shapes() {
		switch s.Kind {
		case KindArrow:
			if s.Stroke != "#1c7ed6" || s.Fill != "#1c7ed6" {
				t.Errorf("arrow recolor: stroke=%q fill=%q", s.Stroke, s.Fill)
			}
		case KindBox:
			if s.Stroke != "#1c7ed6" {
				t.Errorf("box recolor: stroke=%q", s.Stroke)
			}
		case KindText:
			if s.Fill != "#1c7ed6" {
				t.Errorf("text recolor: fill=%q", s.Fill)
			}
		}
	}
}

func TestDeleteSelectionRefusedDuringTextEdit(t *testing.T) {
	ps := testPage(t)
	draw(ps, ToolBox, Point{X: 10, Y: 10}, Point{X: 100, Y: 100})
	boxID := ps.Scene().Shapes()[0].ID

	m := ps.Machine()
	m.SetSelection([]string{boxID})
	m.cfg.Tool = ToolText
	m.PointerDown(Point{X: 300, Y: 300}, "")
	if m.DeleteSelection() {
		t.Error("delete must be refused while a text edit has focus")
	}
	m.ExitTextEdit("note")

	m.SetSelection([]string{boxID})
	if !m.DeleteSelection() {
		t.Fatal("delete should remove the selected box")
	}
	for _, s := range ps.Scene().Shapes() {
		if s.ID == boxID {
			t.Error("box still present after delete")
		}
	}
}
