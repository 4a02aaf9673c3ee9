package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"redink/api/internal/config"
	"redink/api/internal/store"
)

type fakeStore struct {
	createUserFn       func(context.Context, store.AnonymousUser) error
	getUserFn          func(context.Context, string) (store.AnonymousUser, error)
	insertDocumentFn   func(context.Context, store.Document) error
	getDocumentFn      func(context.Context, string) (store.Document, error)
	getByShareHashFn   func(context.Context, string) (store.Document, error)
	listByUserFn       func(context.Context, string) ([]store.Document, error)
	deleteDocumentFn   func(context.Context, string) error
	setSharePasswordFn func(context.Context, string, *string) error
	upsertAnnotationFn func(context.Context, store.Annotation) error
	listAnnotationsFn  func(context.Context, string) ([]store.Annotation, error)
	pingFn             func(context.Context) error
}

func (f *fakeStore) CreateAnonymousUser(ctx context.Context, user store.AnonymousUser) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeStore) GetAnonymousUser(ctx context.Context, userID string) (store.AnonymousUser, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, userID)
	}
	return store.AnonymousUser{}, store.ErrNotFound
}

func (f *fakeStore) InsertDocument(ctx context.Context, doc store.Document) error {
	if f.insertDocumentFn != nil {
		return f.insertDocumentFn(ctx, doc)
	}
	return nil
}

func (f *fakeStore) GetDocument(ctx context.Context, documentID string) (store.Document, error) {
	if f.getDocumentFn != nil {
		return f.getDocumentFn(ctx, documentID)
	}
	return store.Document{}, store.ErrNotFound
}

func (f *fakeStore) GetDocumentByShareHash(ctx context.Context, shareHash string) (store.Document, error) {
	if f.getByShareHashFn != nil {
		return f.getByShareHashFn(ctx, shareHash)
	}
	return store.Document{}, store.ErrNotFound
}

func (f *fakeStore) ListDocumentsByUser(ctx context.Context, userID string) ([]store.Document, error) {
	if f.listByUserFn != nil {
		return f.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, documentID string) error {
	if f.deleteDocumentFn != nil {
		return f.deleteDocumentFn(ctx, documentID)
	}
	return nil
}

func (f *fakeStore) SetSharePassword(ctx context.Context, documentID string, hash *string) error {
	if f.setSharePasswordFn != nil {
		return f.setSharePasswordFn(ctx, documentID, hash)
	}
	return nil
}

func (f *fakeStore) UpsertAnnotation(ctx context.Context, item store.Annotation) error {
	if f.upsertAnnotationFn != nil {
		return f.upsertAnnotationFn(ctx, item)
	}
	return nil
}

func (f *fakeStore) ListAnnotations(ctx context.Context, documentID string) ([]store.Annotation, error) {
	if f.listAnnotationsFn != nil {
		return f.listAnnotationsFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeBlob struct {
	putFn    func(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	getFn    func(ctx context.Context, name string) (io.ReadCloser, error)
	deleteFn func(ctx context.Context, name string) error
}

func (f *fakeBlob) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if f.putFn != nil {
		return f.putFn(ctx, name, r, size, contentType)
	}
	return nil
}

func (f *fakeBlob) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if f.getFn != nil {
		return f.getFn(ctx, name)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeBlob) Delete(ctx context.Context, name string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, name)
	}
	return nil
}

type fakeConverter struct {
	convertFn func(ctx context.Context, docx []byte) ([]byte, error)
}

func (f *fakeConverter) DocxToPDF(ctx context.Context, docx []byte) ([]byte, error) {
	if f.convertFn != nil {
		return f.convertFn(ctx, docx)
	}
	return docx, nil
}

func newTestService(fs *fakeStore, fb *fakeBlob) *Service {
	s := &Service{
		cfg:   config.Config{RenderDPI: 96},
		store: fs,
		blobs: fb,
		conv:  &fakeConverter{},
	}
	s.exporter = nil
	return s
}

func strPtr(s string) *string { return &s }

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Status
}

func TestEnsureUserReturnsExisting(t *testing.T) {
	fs := &fakeStore{
		getUserFn: func(_ context.Context, userID string) (store.AnonymousUser, error) {
			return store.AnonymousUser{ID: userID}, nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	user, err := svc.EnsureUser(context.Background(), "user-known")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if user.ID != "user-known" {
		t.Errorf("expected existing user id, got %s", user.ID)
	}
}

func TestEnsureUserMintsNewForUnknownID(t *testing.T) {
	var created store.AnonymousUser
	fs := &fakeStore{
		createUserFn: func(_ context.Context, user store.AnonymousUser) error {
			created = user
			return nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	user, err := svc.EnsureUser(context.Background(), "user-vanished")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if user.ID == "" || user.ID == "user-vanished" {
		t.Errorf("expected freshly minted id, got %q", user.ID)
	}
	if created.ID != user.ID {
		t.Errorf("new user was not persisted")
	}
}

func TestUploadDocumentRejectsUnsupportedType(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBlob{})

	_, err := svc.UploadDocument(context.Background(), "user-1", "photo.png", []byte("data"))
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", status)
	}
}

func TestUploadDocumentRejectsEmptyFile(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBlob{})

	_, err := svc.UploadDocument(context.Background(), "user-1", "doc.pdf", nil)
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", status)
	}
}

func TestUploadDocumentRejectsUnreadablePDF(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBlob{})

	_, err := svc.UploadDocument(context.Background(), "user-1", "doc.pdf", []byte("not a pdf"))
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", status)
	}
}

func TestGetDocumentForUserEnforcesOwnership(t *testing.T) {
	fs := &fakeStore{
		getDocumentFn: func(_ context.Context, documentID string) (store.Document, error) {
			return store.Document{ID: documentID, UserID: strPtr("user-owner")}, nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	if _, err := svc.GetDocumentForUser(context.Background(), "user-owner", "doc-1"); err != nil {
		t.Errorf("owner should see the document: %v", err)
	}

	_, err := svc.GetDocumentForUser(context.Background(), "user-other", "doc-1")
	if status := domainStatus(t, err); status != http.StatusForbidden {
		t.Errorf("expected 403 for another user, got %d", status)
	}
}

func TestGetDocumentForUserNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBlob{})

	_, err := svc.GetDocumentForUser(context.Background(), "user-1", "doc-missing")
	if status := domainStatus(t, err); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestDeleteDocumentRemovesBlobAndRow(t *testing.T) {
	var deletedBlob, deletedRow string
	fs := &fakeStore{
		getDocumentFn: func(_ context.Context, documentID string) (store.Document, error) {
			return store.Document{ID: documentID, UserID: strPtr("user-1"), StoredFilename: "stored.pdf"}, nil
		},
		deleteDocumentFn: func(_ context.Context, documentID string) error {
			deletedRow = documentID
			return nil
		},
	}
	fb := &fakeBlob{
		deleteFn: func(_ context.Context, name string) error {
			deletedBlob = name
			return nil
		},
	}
	svc := newTestService(fs, fb)

	if err := svc.DeleteDocument(context.Background(), "user-1", "doc-1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if deletedBlob != "stored.pdf" {
		t.Errorf("stored file was not deleted, got %q", deletedBlob)
	}
	if deletedRow != "doc-1" {
		t.Errorf("document row was not deleted, got %q", deletedRow)
	}
}

func TestSaveAnnotationRejectsLegacyPageZero(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBlob{})

	err := svc.SaveAnnotation(context.Background(), "doc-1", 0, []byte(`{"objects":[]}`))
	if status := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for page 0, got %d", status)
	}
}

func TestAnnotationsKeyedByPage(t *testing.T) {
	fs := &fakeStore{
		listAnnotationsFn: func(_ context.Context, documentID string) ([]store.Annotation, error) {
			return []store.Annotation{
				{DocumentID: documentID, PageNumber: 1, Data: []byte(`{"objects":[]}`)},
				{DocumentID: documentID, PageNumber: 3, Data: []byte(`{"objects":[]}`)},
			}, nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	byPage, err := svc.Annotations(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Annotations failed: %v", err)
	}
	if len(byPage) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(byPage))
	}
	if _, ok := byPage[3]; !ok {
		t.Errorf("page 3 missing from map")
	}
}

func TestSetSharePasswordHashesBeforeStoring(t *testing.T) {
	var storedHash *string
	fs := &fakeStore{
		getDocumentFn: func(_ context.Context, documentID string) (store.Document, error) {
			return store.Document{ID: documentID, UserID: strPtr("user-1")}, nil
		},
		setSharePasswordFn: func(_ context.Context, _ string, hash *string) error {
			storedHash = hash
			return nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	if err := svc.SetSharePassword(context.Background(), "user-1", "doc-1", "hunter2"); err != nil {
		t.Fatalf("SetSharePassword failed: %v", err)
	}
	if storedHash == nil {
		t.Fatal("expected a hash to be stored")
	}
	if *storedHash == "hunter2" {
		t.Error("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*storedHash), []byte("hunter2")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestSetSharePasswordEmptyClearsProtection(t *testing.T) {
	cleared := false
	fs := &fakeStore{
		getDocumentFn: func(_ context.Context, documentID string) (store.Document, error) {
			return store.Document{ID: documentID, UserID: strPtr("user-1")}, nil
		},
		setSharePasswordFn: func(_ context.Context, _ string, hash *string) error {
			cleared = hash == nil
			return nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	if err := svc.SetSharePassword(context.Background(), "user-1", "doc-1", "  "); err != nil {
		t.Fatalf("SetSharePassword failed: %v", err)
	}
	if !cleared {
		t.Error("expected protection to be cleared")
	}
}

func TestSharedDocumentPasswordFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	fs := &fakeStore{
		getByShareHashFn: func(_ context.Context, shareHash string) (store.Document, error) {
			return store.Document{ID: "doc-1", ShareHash: shareHash, SharePasswordHash: strPtr(string(hash))}, nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})
	ctx := context.Background()

	_, err = svc.SharedDocument(ctx, "hash-1", "")
	if status := domainStatus(t, err); status != http.StatusUnauthorized {
		t.Errorf("expected 401 without password, got %d", status)
	}

	_, err = svc.SharedDocument(ctx, "hash-1", "wrong")
	if status := domainStatus(t, err); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", status)
	}

	doc, err := svc.SharedDocument(ctx, "hash-1", "secret")
	if err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Errorf("unexpected document %s", doc.ID)
	}
}

func TestSharedDocumentWithoutPassword(t *testing.T) {
	fs := &fakeStore{
		getByShareHashFn: func(_ context.Context, shareHash string) (store.Document, error) {
			return store.Document{ID: "doc-1", ShareHash: shareHash}, nil
		},
	}
	svc := newTestService(fs, &fakeBlob{})

	if _, err := svc.SharedDocument(context.Background(), "hash-1", ""); err != nil {
		t.Errorf("unprotected share link should open: %v", err)
	}
}
