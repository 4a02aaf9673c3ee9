package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"redink/api/internal/blob"
	"redink/api/internal/config"
	"redink/api/internal/convert"
	"redink/api/internal/export"
	"redink/api/internal/pdfinfo"
	"redink/api/internal/search"
	sessionpkg "redink/api/internal/session"
	"redink/api/internal/store"
	"redink/api/internal/util"
)

const maxUploadBytes = 50 << 20

type dataStore interface {
	CreateAnonymousUser(context.Context, store.AnonymousUser) error
	GetAnonymousUser(context.Context, string) (store.AnonymousUser, error)
	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	GetDocumentByShareHash(context.Context, string) (store.Document, error)
	ListDocumentsByUser(context.Context, string) ([]store.Document, error)
	DeleteDocument(context.Context, string) error
	SetSharePassword(context.Context, string, *string) error
	UpsertAnnotation(context.Context, store.Annotation) error
	ListAnnotations(context.Context, string) ([]store.Annotation, error)
	Ping(ctx context.Context) error
}

type converter interface {
	DocxToPDF(ctx context.Context, docx []byte) ([]byte, error)
}

type sessionStore interface {
	Save(ctx context.Context, token, userID string) error
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type searcher interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

// PageInfo describes one page's extent in device pixels.
type PageInfo struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Service struct {
	cfg      config.Config
	store    dataStore
	blobs    blob.Store
	conv     converter
	sessions sessionStore
	search   searcher
	exporter *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, blobs blob.Store, conv *convert.Service, sessions *sessionpkg.RedisStore, searchSvc *search.Service) *Service {
	s := &Service{
		cfg:   cfg,
		store: dataStore,
		blobs: blobs,
		conv:  conv,
	}
	if sessions != nil {
		s.sessions = sessions
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	s.exporter = export.NewService(&exportAdapter{service: s}, cfg.RenderDPI)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// EnsureUser returns the anonymous user for existingID, or mints a new one
// when the ID is blank or unknown.
func (s *Service) EnsureUser(ctx context.Context, existingID string) (store.AnonymousUser, error) {
	existingID = strings.TrimSpace(existingID)
	if existingID != "" {
		user, err := s.store.GetAnonymousUser(ctx, existingID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.AnonymousUser{}, err
		}
	}

	user := store.AnonymousUser{ID: util.NewID("user"), CreatedAt: time.Now()}
	if err := s.store.CreateAnonymousUser(ctx, user); err != nil {
		return store.AnonymousUser{}, err
	}
	return user, nil
}

// OpenSession binds a fresh session token to the user. Returns an empty token
// when no session store is configured.
func (s *Service) OpenSession(ctx context.Context, userID string) (string, error) {
	if s.sessions == nil {
		return "", nil
	}
	token := util.NewID("sess") + util.NewShareHash()
	if err := s.sessions.Save(ctx, token, userID); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveSession maps a session token back to its user ID.
func (s *Service) ResolveSession(ctx context.Context, token string) (string, error) {
	if s.sessions == nil {
		return "", errors.New("sessions not configured")
	}
	return s.sessions.Lookup(ctx, token)
}

// CloseSession revokes a session token.
func (s *Service) CloseSession(ctx context.Context, token string) error {
	if s.sessions == nil || token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// UploadDocument stores an uploaded file, converting DOCX to PDF first, and
// records its metadata. The caller owns validating that userID exists.
func (s *Service) UploadDocument(ctx context.Context, userID, filename string, data []byte) (store.Document, error) {
	if len(data) == 0 {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is empty", nil)
	}
	if len(data) > maxUploadBytes {
		return store.Document{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds 50MB limit", nil)
	}

	originalType, err := detectType(filename)
	if err != nil {
		return store.Document{}, err
	}

	pdfData := data
	if originalType == "docx" {
		converted, err := s.conv.DocxToPDF(ctx, data)
		if err != nil {
			if errors.Is(err, convert.ErrDependencyMissing) {
				return store.Document{}, domainError(http.StatusServiceUnavailable, "CONVERSION_UNAVAILABLE", "DOCX conversion is not available", nil)
			}
			return store.Document{}, domainError(http.StatusUnprocessableEntity, "CONVERSION_FAILED", "could not convert DOCX to PDF", nil)
		}
		pdfData = converted
	}

	info, err := pdfinfo.Probe(pdfData, s.cfg.RenderDPI)
	if err != nil {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "INVALID_PDF", "file is not a readable PDF", nil)
	}

	storedFilename := util.NewID("doc") + ".pdf"
	if err := s.blobs.Put(ctx, storedFilename, bytes.NewReader(pdfData), int64(len(pdfData)), "application/pdf"); err != nil {
		return store.Document{}, fmt.Errorf("store file: %w", err)
	}

	doc := store.Document{
		ID:               util.NewID("doc"),
		UserID:           &userID,
		OriginalFilename: filename,
		StoredFilename:   storedFilename,
		OriginalType:     originalType,
		ShareHash:        util.NewShareHash(),
		PageCount:        info.PageCount,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}

	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{
			ID:               doc.ID,
			OriginalFilename: doc.OriginalFilename,
			OriginalType:     doc.OriginalType,
			ShareHash:        doc.ShareHash,
			UserID:           userID,
		})
	}
	return doc, nil
}

func detectType(filename string) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return "pdf", nil
	case ".docx":
		return "docx", nil
	default:
		return "", domainError(http.StatusUnprocessableEntity, "UNSUPPORTED_TYPE", "only PDF and DOCX files are supported", nil)
	}
}

// GetDocumentForUser fetches a document and enforces ownership.
func (s *Service) GetDocumentForUser(ctx context.Context, userID, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
		}
		return store.Document{}, err
	}
	if doc.UserID == nil || *doc.UserID != userID {
		return store.Document{}, domainError(http.StatusForbidden, "FORBIDDEN", "document belongs to another user", nil)
	}
	return doc, nil
}

// ListDocuments lists a user's documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, userID string) ([]store.Document, error) {
	return s.store.ListDocumentsByUser(ctx, userID)
}

// DocumentFile streams the stored PDF for a document.
func (s *Service) DocumentFile(ctx context.Context, doc store.Document) ([]byte, error) {
	rc, err := s.blobs.Get(ctx, doc.StoredFilename)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// DocumentPages probes the stored PDF and returns per-page extents at the
// configured DPI.
func (s *Service) DocumentPages(ctx context.Context, doc store.Document) ([]PageInfo, error) {
	data, err := s.DocumentFile(ctx, doc)
	if err != nil {
		return nil, err
	}
	info, err := pdfinfo.Probe(data, s.cfg.RenderDPI)
	if err != nil {
		return nil, fmt.Errorf("probe pages: %w", err)
	}
	pages := make([]PageInfo, 0, len(info.Pages))
	for i, size := range info.Pages {
		pages = append(pages, PageInfo{Number: i + 1, Width: size.Width, Height: size.Height})
	}
	return pages, nil
}

// DeleteDocument removes a document, its stored file, and its search entry.
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) error {
	doc, err := s.GetDocumentForUser(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StoredFilename); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

// SaveAnnotation upserts the canonical annotation snapshot for one page.
func (s *Service) SaveAnnotation(ctx context.Context, documentID string, pageNumber int, data []byte) error {
	if pageNumber < 1 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pageNumber must be at least 1", nil)
	}
	return s.store.UpsertAnnotation(ctx, store.Annotation{
		ID:         util.NewID("ann"),
		DocumentID: documentID,
		PageNumber: pageNumber,
		Data:       data,
	})
}

// Annotations returns stored snapshots keyed by page number.
func (s *Service) Annotations(ctx context.Context, documentID string) (map[int][]byte, error) {
	items, err := s.store.ListAnnotations(ctx, documentID)
	if err != nil {
		return nil, err
	}
	byPage := make(map[int][]byte, len(items))
	for _, item := range items {
		byPage[item.PageNumber] = item.Data
	}
	return byPage, nil
}

// SetSharePassword protects (or unprotects, with an empty password) a
// document's share link.
func (s *Service) SetSharePassword(ctx context.Context, userID, documentID, password string) error {
	if _, err := s.GetDocumentForUser(ctx, userID, documentID); err != nil {
		return err
	}
	if strings.TrimSpace(password) == "" {
		return s.store.SetSharePassword(ctx, documentID, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)
	return s.store.SetSharePassword(ctx, documentID, &hashed)
}

// SharedDocument resolves a share link, verifying the password when one is set.
func (s *Service) SharedDocument(ctx context.Context, shareHash, password string) (store.Document, error) {
	doc, err := s.store.GetDocumentByShareHash(ctx, shareHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "share link not found", nil)
		}
		return store.Document{}, err
	}
	if doc.SharePasswordHash != nil {
		if password == "" {
			return store.Document{}, domainError(http.StatusUnauthorized, "PASSWORD_REQUIRED", "this share link is password protected", nil)
		}
		if bcrypt.CompareHashAndPassword([]byte(*doc.SharePasswordHash), []byte(password)) != nil {
			return store.Document{}, domainError(http.StatusUnauthorized, "WRONG_PASSWORD", "incorrect password", nil)
		}
	}
	return doc, nil
}

// Search finds documents by filename for one user.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Export renders the document's annotations to a downloadable PDF.
func (s *Service) Export(ctx context.Context, userID, documentID string) (*export.Result, error) {
	if _, err := s.GetDocumentForUser(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{DocumentID: documentID})
}

// exportAdapter feeds the export service from the app's store and blob layer.
type exportAdapter struct {
	service *Service
}

func (a *exportAdapter) GetDocument(ctx context.Context, id string) (export.DocumentInfo, error) {
	doc, err := a.service.store.GetDocument(ctx, id)
	if err != nil {
		return export.DocumentInfo{}, err
	}
	return export.DocumentInfo{
		ID:               doc.ID,
		OriginalFilename: doc.OriginalFilename,
		PageCount:        doc.PageCount,
	}, nil
}

func (a *exportAdapter) GetDocumentFile(ctx context.Context, id string) ([]byte, error) {
	doc, err := a.service.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.service.DocumentFile(ctx, doc)
}

func (a *exportAdapter) ListAnnotations(ctx context.Context, documentID string) (map[int][]byte, error) {
	return a.service.Annotations(ctx, documentID)
}
