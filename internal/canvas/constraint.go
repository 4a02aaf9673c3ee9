package canvas

// clampPoint restricts a pointer position to the canvas extent.
func clampPoint(p Point, width, height float64) Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.X > width {
		p.X = width
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.Y > height {
		p.Y = height
	}
	return p
}

// ClampToCanvas shifts a shape edge by edge until its bounding box lies fully
// inside [0,width] x [0,height]. It runs continuously during interactive moves
// and scales, not just at commit: an out-of-range edge is corrected by exactly
// its deficit, position is corrected rather than any scale factor rejected.
func ClampToCanvas(s *Shape, width, height float64) {
	b := s.Bounds()
	var dx, dy float64
	if b.Left < 0 {
		dx = -b.Left
	} else if b.Right() > width {
		dx = width - b.Right()
	}
	if b.Top < 0 {
		dy = -b.Top
	} else if b.Bottom() > height {
		dy = height - b.Bottom()
	}
	if dx != 0 || dy != 0 {
		s.Translate(dx, dy)
	}
}
