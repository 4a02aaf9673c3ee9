package export

import (
	"fmt"
	"html"
	"math"
	"strings"

	"redink/api/internal/canvas"
)

func scaleOr1(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// renderSceneSVG draws page-space shapes as inline SVG markup.
func renderSceneSVG(payload canvas.Payload, width, height float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(width), num(height), num(width), num(height))
	for _, obj := range payload.Objects {
		b.WriteString(renderShapeSVG(obj))
	}
	b.WriteString("</svg>")
	return b.String()
}

func renderShapeSVG(s canvas.Shape) string {
	switch s.Kind {
	case canvas.KindArrow:
		return renderArrowSVG(s)
	case canvas.KindBox:
		return renderBoxSVG(s)
	case canvas.KindText:
		return renderTextSVG(s)
	case canvas.KindStroke:
		return renderStrokeSVG(s)
	default:
		return ""
	}
}

func renderArrowSVG(s canvas.Shape) string {
	head := s.HeadLength
	if head <= 0 {
		head = 10
	}
	angle := math.Atan2(s.Y2-s.Y1, s.X2-s.X1)*180/math.Pi + 90

	var b strings.Builder
	fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" stroke-linecap="round"/>`,
		num(s.X1), num(s.Y1), num(s.X2), num(s.Y2), html.EscapeString(s.Stroke), num(s.StrokeWidth))
	// Triangle tip sits at the line's end point, base trailing behind it.
	fmt.Fprintf(&b, `<polygon points="0,0 %s,%s %s,%s" fill="%s" transform="translate(%s,%s) rotate(%s)"/>`,
		num(-head/2), num(head), num(head/2), num(head),
		html.EscapeString(s.Fill), num(s.X2), num(s.Y2), num(angle))
	return b.String()
}

func renderBoxSVG(s canvas.Shape) string {
	w := s.Width * scaleOr1(s.ScaleX)
	h := s.Height * scaleOr1(s.ScaleY)
	return fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s" fill="none" stroke="%s" stroke-width="%s"/>`,
		num(s.Left), num(s.Top), num(w), num(h), html.EscapeString(s.Stroke), num(s.StrokeWidth))
}

func renderTextSVG(s canvas.Shape) string {
	size := s.FontSize
	if size <= 0 {
		size = 18
	}
	lineHeight := size * 1.2

	var b strings.Builder
	fmt.Fprintf(&b, `<text x="%s" y="%s" font-size="%s" font-family="Helvetica, Arial, sans-serif" fill="%s">`,
		num(s.Left), num(s.Top+size), num(size), html.EscapeString(s.Fill))
	for i, line := range strings.Split(s.Text, "\n") {
		fmt.Fprintf(&b, `<tspan x="%s" y="%s">%s</tspan>`,
			num(s.Left), num(s.Top+size+float64(i)*lineHeight), html.EscapeString(line))
	}
	b.WriteString("</text>")
	return b.String()
}

func renderStrokeSVG(s canvas.Shape) string {
	if len(s.Points) == 0 {
		return ""
	}
	pts := make([]string, 0, len(s.Points))
	for _, p := range s.Points {
		pts = append(pts, num(p.X)+","+num(p.Y))
	}
	return fmt.Sprintf(`<polyline points="%s" fill="none" stroke="%s" stroke-width="%s" stroke-linecap="round" stroke-linejoin="round"/>`,
		strings.Join(pts, " "), html.EscapeString(s.Stroke), num(s.StrokeWidth))
}
