package store

import "time"

// AnonymousUser is a cookie-less identity: created on first visit, referenced
// by uploads so a returning visitor sees their own documents.
type AnonymousUser struct {
	ID        string
	CreatedAt time.Time
}

// Document is one uploaded file. DOCX uploads are converted on ingest, so the
// stored object is always a PDF; OriginalType remembers what arrived.
type Document struct {
	ID                string
	UserID            *string
	OriginalFilename  string
	StoredFilename    string
	OriginalType      string // "pdf" or "docx"
	ShareHash         string
	SharePasswordHash *string
	PageCount         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Annotation is the one canonical scene snapshot persisted per document page:
// the normalized payload, serialized as JSON. Page history beyond this is
// in-memory only.
type Annotation struct {
	ID         string
	DocumentID string
	PageNumber int
	Data       []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
