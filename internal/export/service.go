package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"redink/api/internal/canvas"
	"redink/api/internal/pdfinfo"
)

// DataStore defines the interface for data access.
type DataStore interface {
	GetDocument(ctx context.Context, id string) (DocumentInfo, error)
	GetDocumentFile(ctx context.Context, id string) ([]byte, error)
	ListAnnotations(ctx context.Context, documentID string) (map[int][]byte, error)
}

// DocumentInfo holds basic document metadata.
type DocumentInfo struct {
	ID               string
	OriginalFilename string
	PageCount        int
}

// Service renders annotation overlays to PDF.
type Service struct {
	store DataStore
	dpi   int
}

// NewService creates a new export service.
func NewService(store DataStore, dpi int) *Service {
	if dpi <= 0 {
		dpi = 96
	}
	return &Service{store: store, dpi: dpi}
}

// Export produces a PDF containing one page per document page, each showing
// that page's annotations at the page's true size.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	file, err := s.store.GetDocumentFile(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	info, err := pdfinfo.Probe(file, s.dpi)
	if err != nil {
		return nil, fmt.Errorf("probe pages: %w", err)
	}

	stored, err := s.store.ListAnnotations(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}

	html, err := s.renderHTML(doc, info, stored)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSuffix(doc.OriginalFilename, ".pdf")
	title = strings.TrimSuffix(title, ".docx")

	widthIn, heightIn := 8.5, 11.0
	if len(info.Pages) > 0 {
		widthIn = info.Pages[0].Width / float64(s.dpi)
		heightIn = info.Pages[0].Height / float64(s.dpi)
	}
	return printPDF(html, title+"-annotated", widthIn, heightIn)
}

func (s *Service) renderHTML(doc DocumentInfo, info pdfinfo.Info, stored map[int][]byte) (string, error) {
	data := TemplateData{Title: doc.OriginalFilename}
	if len(info.Pages) > 0 {
		data.WidthIn = info.Pages[0].Width / float64(s.dpi)
		data.HeightIn = info.Pages[0].Height / float64(s.dpi)
	}

	for i, size := range info.Pages {
		pageNo := i + 1
		payload := canvas.Payload{}
		if raw, ok := stored[pageNo]; ok {
			decoded, err := canvas.DecodePayload(raw)
			if err != nil {
				return "", fmt.Errorf("decode page %d annotations: %w", pageNo, err)
			}
			payload = canvas.Denormalize(decoded, size.Width, size.Height)
		}

		data.Pages = append(data.Pages, TemplatePage{
			Number:   pageNo,
			WidthIn:  size.Width / float64(s.dpi),
			HeightIn: size.Height / float64(s.dpi),
			SVG:      template.HTML(renderSceneSVG(payload, size.Width, size.Height)),
		})
	}

	return RenderPagesHTML(data)
}
