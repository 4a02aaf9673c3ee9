// Package export renders a document's annotations to a downloadable PDF.
package export

import "errors"

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Request contains parameters for an export operation.
type Request struct {
	DocumentID string
}

var (
	// ErrContentUnavailable indicates the document file or annotations could not be loaded.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
