// Package canvas implements the annotation canvas engine: the shape model,
// resolution-independent normalization, boundary constraints, the per-tool
// drawing state machine, undo history, and the per-page / per-document
// sessions that tie them together.
package canvas

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind identifies a shape variant. The set is closed; behavior that differs
// per variant (recolor, bounds, translation) dispatches on Kind through
// exhaustive switches.
type Kind string

const (
	KindArrow  Kind = "arrow"
	KindBox    Kind = "box"
	KindText   Kind = "text"
	KindStroke Kind = "stroke"
)

func (k Kind) valid() bool {
	switch k {
	case KindArrow, KindBox, KindText, KindStroke:
		return true
	}
	return false
}

// Capabilities describes how a committed shape may be edited interactively.
type Capabilities struct {
	Resizable     bool
	LockedAspect  bool // corner handles scale uniformly
	EditableText  bool
	WidthOnly     bool // top/bottom handles disabled; left/right adjust width
	UniformStroke bool // stroke width does not distort under non-uniform resize
}

// Capabilities returns the editing capability set for the variant.
func (k Kind) Capabilities() Capabilities {
	switch k {
	case KindArrow:
		return Capabilities{Resizable: true}
	case KindBox:
		return Capabilities{Resizable: true, UniformStroke: true}
	case KindText:
		return Capabilities{Resizable: true, LockedAspect: true, EditableText: true, WidthOnly: true}
	case KindStroke:
		return Capabilities{Resizable: true}
	}
	return Capabilities{}
}

// Point is a position in device-pixel scene coordinates, or a dimensionless
// fraction of the canvas extent once normalized.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is one annotation object. It is a closed tagged variant: Kind selects
// which fields are meaningful. Geometry is in device pixels while the shape is
// live, and in canvas fractions inside a normalized payload.
//
// Field use per variant:
//
//	arrow:  X1,Y1,X2,Y2 (endpoints), HeadLength, Stroke, Fill, StrokeWidth
//	box:    Left, Top, Width, Height, Stroke, StrokeWidth
//	text:   Left, Top, Width, FontSize, Fill, Text (height derives from content)
//	stroke: Points, Stroke, StrokeWidth
type Shape struct {
	ID   string `json:"id"`
	Kind Kind   `json:"type"`

	Left   float64 `json:"left,omitempty"`
	Top    float64 `json:"top,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	ScaleX float64 `json:"scaleX,omitempty"`
	ScaleY float64 `json:"scaleY,omitempty"`

	Stroke      string  `json:"stroke,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	X1         float64 `json:"x1,omitempty"`
	Y1         float64 `json:"y1,omitempty"`
	X2         float64 `json:"x2,omitempty"`
	Y2         float64 `json:"y2,omitempty"`
	HeadLength float64 `json:"headLength,omitempty"`

	FontSize float64 `json:"fontSize,omitempty"`
	Text     string  `json:"text,omitempty"`

	Points []Point `json:"points,omitempty"`
}

// scaleX and scaleY treat the zero value as the identity scale, so payloads
// that omit the fields need no transform.
func (s *Shape) scaleX() float64 {
	if s.ScaleX == 0 {
		return 1
	}
	return s.ScaleX
}

func (s *Shape) scaleY() float64 {
	if s.ScaleY == 0 {
		return 1
	}
	return s.ScaleY
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Left, Top, Width, Height float64
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Bounds computes the shape's axis-aligned bounding box in scene coordinates.
func (s *Shape) Bounds() Rect {
	switch s.Kind {
	case KindArrow:
		left := math.Min(s.X1, s.X2)
		top := math.Min(s.Y1, s.Y2)
		return Rect{
			Left:   left,
			Top:    top,
			Width:  math.Abs(s.X2 - s.X1),
			Height: math.Abs(s.Y2 - s.Y1),
		}
	case KindText:
		// Height derives from content; a single line at the current font
		// size is the floor.
		h := s.Height * s.scaleY()
		if h == 0 {
			h = s.FontSize * 1.2
		}
		return Rect{Left: s.Left, Top: s.Top, Width: s.Width * s.scaleX(), Height: h}
	case KindStroke:
		if len(s.Points) == 0 {
			return Rect{Left: s.Left, Top: s.Top}
		}
		minX, minY := s.Points[0].X, s.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range s.Points[1:] {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
		return Rect{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
	default: // box
		return Rect{Left: s.Left, Top: s.Top, Width: s.Width * s.scaleX(), Height: s.Height * s.scaleY()}
	}
}

// Translate moves the shape by (dx, dy), including any embedded coordinates.
func (s *Shape) Translate(dx, dy float64) {
	s.Left += dx
	s.Top += dy
	switch s.Kind {
	case KindArrow:
		s.X1 += dx
		s.Y1 += dy
		s.X2 += dx
		s.Y2 += dy
	case KindStroke:
		for i := range s.Points {
			s.Points[i].X += dx
			s.Points[i].Y += dy
		}
	}
}

// Recolor applies a color to the variant's paintable parts: the arrow recolors
// both the line and the head fill, the box its stroke, text its fill, and the
// freehand stroke its stroke.
func (s *Shape) Recolor(color string) {
	switch s.Kind {
	case KindArrow:
		s.Stroke = color
		s.Fill = color
	case KindBox:
		s.Stroke = color
	case KindText:
		s.Fill = color
	case KindStroke:
		s.Stroke = color
	}
}

// Clone returns a deep copy of the shape.
func (s *Shape) Clone() Shape {
	out := *s
	if s.Points != nil {
		out.Points = make([]Point, len(s.Points))
		copy(out.Points, s.Points)
	}
	return out
}

func (s *Shape) validate() error {
	if s.ID == "" {
		return fmt.Errorf("shape without id")
	}
	if !s.Kind.valid() {
		return fmt.Errorf("unknown shape type %q", s.Kind)
	}
	return nil
}

// Payload is the serialized form of a scene: the ordered object list, with
// geometry either in device pixels (a plain snapshot) or in canvas fractions
// (the persisted, resolution-independent form).
type Payload struct {
	Objects []Shape `json:"objects"`
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	out := Payload{Objects: make([]Shape, len(p.Objects))}
	for i := range p.Objects {
		out.Objects[i] = p.Objects[i].Clone()
	}
	return out
}

// Encode serializes the payload to JSON.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses a stored payload. Malformed objects are skipped rather
// than failing the whole load; only a payload that is not valid JSON at all is
// an error.
func DecodePayload(data []byte) (Payload, error) {
	var raw struct {
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	out := Payload{Objects: make([]Shape, 0, len(raw.Objects))}
	for _, obj := range raw.Objects {
		var s Shape
		if err := json.Unmarshal(obj, &s); err != nil {
			continue
		}
		if err := s.validate(); err != nil {
			continue
		}
		out.Objects = append(out.Objects, s)
	}
	return out, nil
}
