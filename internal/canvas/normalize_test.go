package canvas

import (
	"math"
	"testing"
)

const floatTol = 1e-9

func sampleScene() Payload {
	return Payload{Objects: []Shape{
		{
			ID: "a1", Kind: KindArrow,
			Left: 40, Top: 60, X1: 40, Y1: 60, X2: 200, Y2: 180,
			HeadLength: 10, Stroke: "#e03131", Fill: "#e03131", StrokeWidth: 2,
		},
		{
			ID: "b1", Kind: KindBox,
			Left: 10, Top: 20, Width: 120, Height: 80, ScaleX: 2, ScaleY: 0.5,
			Stroke: "#1c7ed6", StrokeWidth: 3,
		},
		{
			ID: "t1", Kind: KindText,
			Left: 300, Top: 400, Width: 150, Height: 21.6, FontSize: 18,
			Fill: "#e03131", Text: "needs work",
		},
		{
			ID: "s1", Kind: KindStroke,
			Points: []Point{{X: 5, Y: 5}, {X: 50, Y: 40}, {X: 90, Y: 10}},
			Stroke: "#2f9e44", StrokeWidth: 2,
		},
	}}
}

func shapesEqual(t *testing.T, got, want Shape) {
	t.Helper()
	checks := []struct {
		name      string
		got, want float64
	}{
		{"left", got.Left, want.Left},
		{"top", got.Top, want.Top},
		{"width", got.Width * gotScale(got.ScaleX), want.Width * gotScale(want.ScaleX)},
		{"height", got.Height * gotScale(got.ScaleY), want.Height * gotScale(want.ScaleY)},
		{"strokeWidth", got.StrokeWidth, want.StrokeWidth},
		{"fontSize", got.FontSize, want.FontSize},
		{"x1", got.X1, want.X1},
		{"y1", got.Y1, want.Y1},
		{"x2", got.X2, want.X2},
		{"y2", got.Y2, want.Y2},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > floatTol {
			t.Errorf("shape %s: %s = %v, want %v", want.ID, c.name, c.got, c.want)
		}
	}
	if len(got.Points) != len(want.Points) {
		t.Fatalf("shape %s: %d points, want %d", want.ID, len(got.Points), len(want.Points))
	}
	for i := range got.Points {
		if math.Abs(got.Points[i].X-want.Points[i].X) > floatTol ||
			math.Abs(got.Points[i].Y-want.Points[i].Y) > floatTol {
			t.Errorf("shape %s: point %d = %v, want %v", want.ID, i, got.Points[i], want.Points[i])
		}
	}
}

func gotScale(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

func TestNormalizeRoundTrip(t *testing.T) {
	scene := sampleScene()
	for _, dims := range []struct{ w, h float64 }{
		{800, 1100},
		{1234, 777},
		{412.5, 893.25},
	} {
		got := Denormalize(Normalize(scene, dims.w, dims.h), dims.w, dims.h)
		if len(got.Objects) != len(scene.Objects) {
			t.Fatalf("dims %v: %d objects, want %d", dims, len(got.Objects), len(scene.Objects))
		}
		for i := range got.Objects {
			shapesEqual(t, got.Objects[i], scene.Objects[i])
		}
	}
}

func TestNormalizeResizeStability(t *testing.T) {
	// Normalizing at one size, projecting to another, and normalizing back
	// must reproduce the original payload with no drift.
	stored := Normalize(sampleScene(), 800, 1100)
	projected := Denormalize(stored, 1600, 2200)
	back := Normalize(projected, 1600, 2200)

	if len(back.Objects) != len(stored.Objects) {
		t.Fatalf("%d objects, want %d", len(back.Objects), len(stored.Objects))
	}
	for i := range back.Objects {
		shapesEqual(t, back.Objects[i], stored.Objects[i])
	}
}

func TestNormalizeBakesScaleIntoSize(t *testing.T) {
	scene := Payload{Objects: []Shape{{
		ID: "b1", Kind: KindBox, Left: 0, Top: 0,
		Width: 100, Height: 50, ScaleX: 2, ScaleY: 3,
	}}}
	stored := Normalize(scene, 1000, 1000)
	s := stored.Objects[0]
	if s.ScaleX != 1 || s.ScaleY != 1 {
		t.Errorf("stored scale = (%v, %v), want (1, 1)", s.ScaleX, s.ScaleY)
	}
	if math.Abs(s.Width-0.2) > floatTol {
		t.Errorf("stored width = %v, want 0.2", s.Width)
	}
	if math.Abs(s.Height-0.15) > floatTol {
		t.Errorf("stored height = %v, want 0.15", s.Height)
	}
}

func TestNormalizeZeroExtentIsNoOp(t *testing.T) {
	scene := sampleScene()
	if got := Normalize(scene, 0, 1100); len(got.Objects) == 0 || got.Objects[0].Left != scene.Objects[0].Left {
		t.Error("normalize with zero width should return input unchanged")
	}
	if got := Denormalize(scene, 800, 0); len(got.Objects) == 0 || got.Objects[0].Left != scene.Objects[0].Left {
		t.Error("denormalize with zero height should return input unchanged")
	}
}

func TestDecodePayloadSkipsMalformedObjects(t *testing.T) {
	data := []byte(`{"objects":[
		{"id":"ok1","type":"box","left":10,"top":20,"width":30,"height":40},
		{"id":"bad1","type":"hexagon","left":1},
		{"left":"not a number"},
		{"id":"ok2","type":"stroke","points":[{"x":1,"y":2},{"x":3,"y":4}]}
	]}`)
	p, err := DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if len(p.Objects) != 2 {
		t.Fatalf("%d objects survived, want 2", len(p.Objects))
	}
	if p.Objects[0].ID != "ok1" || p.Objects[1].ID != "ok2" {
		t.Errorf("unexpected survivors: %q, %q", p.Objects[0].ID, p.Objects[1].ID)
	}
}

func TestDecodePayloadRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodePayload([]byte(`{"objects":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
