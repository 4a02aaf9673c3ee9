// Package pdfinfo probes uploaded PDFs for the page geometry the annotation
// engine needs: page count and per-page pixel dimensions at a rendering DPI.
package pdfinfo

import (
	"bytes"
	"fmt"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// pdfUnitsPerInch is the PDF user-space unit density (1/72 inch).
const pdfUnitsPerInch = 72.0

// PageSize is one page's extent in device pixels at the probe DPI.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Info describes a PDF well enough to drive per-page canvases.
type Info struct {
	PageCount int        `json:"pageCount"`
	Pages     []PageSize `json:"pages"`
}

// Probe parses the PDF bytes and returns page count and sizes. A page whose
// MediaBox is missing or malformed falls back to US Letter rather than
// failing the document.
func Probe(data []byte, dpi int) (Info, error) {
	if dpi <= 0 {
		dpi = 96
	}
	scale := float64(dpi) / pdfUnitsPerInch

	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return Info{}, fmt.Errorf("open pdf: %w", err)
	}

	count, err := pagetree.NumPages(r)
	if err != nil {
		return Info{}, fmt.Errorf("count pages: %w", err)
	}

	info := Info{PageCount: count, Pages: make([]PageSize, 0, count)}
	for i := 0; i < count; i++ {
		info.Pages = append(info.Pages, pageSize(r, i, scale))
	}
	return info, nil
}

func pageSize(r *pdf.Reader, pageNo int, scale float64) PageSize {
	letter := PageSize{Width: 612 * scale, Height: 792 * scale}

	_, page, err := pagetree.GetPage(r, pageNo)
	if err != nil {
		return letter
	}
	box, err := pdf.GetRectangle(r, page["MediaBox"])
	if err != nil || box == nil {
		return letter
	}
	w := (box.URx - box.LLx) * scale
	h := (box.URy - box.LLy) * scale
	if w <= 0 || h <= 0 {
		return letter
	}
	return PageSize{Width: w, Height: h}
}
