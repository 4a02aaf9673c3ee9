package canvas

// Normalize converts a snapshot taken at the given canvas pixel size into the
// resolution-independent persisted form. Positions divide by the axis extent
// they run along; size-valued fields, stroke width, and horizontal line
// coordinates divide by the width; font size and vertical line coordinates
// divide by the height. Any residual scale factor is baked into the size
// fields first, so a persisted record always carries scale 1.
//
// When either extent is zero the payload is returned unchanged: there is no
// meaningful fraction to produce, and the caller retries once real dimensions
// arrive. Fields a malformed object never carried stay at their zero value,
// which denormalization treats as "no transform needed".
func Normalize(p Payload, width, height float64) Payload {
	if width <= 0 || height <= 0 {
		return p
	}
	out := p.Clone()
	for i := range out.Objects {
		s := &out.Objects[i]
		s.Width = s.Width * s.scaleX() / width
		s.Height = s.Height * s.scaleY() / width
		s.ScaleX = 1
		s.ScaleY = 1
		s.Left /= width
		s.Top /= height
		s.StrokeWidth /= width
		s.HeadLength /= width
		s.FontSize /= height
		s.X1 /= width
		s.X2 /= width
		s.Y1 /= height
		s.Y2 /= height
		for j := range s.Points {
			s.Points[j].X /= width
			s.Points[j].Y /= height
		}
	}
	return out
}

// Denormalize is the exact inverse of Normalize at the same dimensions, and
// projects a persisted payload onto any other target size. Zero extents are a
// no-op, mirroring Normalize.
func Denormalize(p Payload, width, height float64) Payload {
	if width <= 0 || height <= 0 {
		return p
	}
	out := p.Clone()
	for i := range out.Objects {
		s := &out.Objects[i]
		s.Width = s.Width * s.scaleX() * width
		s.Height = s.Height * s.scaleY() * width
		s.ScaleX = 1
		s.ScaleY = 1
		s.Left *= width
		s.Top *= height
		s.StrokeWidth *= width
		s.HeadLength *= width
		s.FontSize *= height
		s.X1 *= width
		s.X2 *= width
		s.Y1 *= height
		s.Y2 *= height
		for j := range s.Points {
			s.Points[j].X *= width
			s.Points[j].Y *= height
		}
	}
	return out
}
