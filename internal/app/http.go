package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"redink/api/internal/search"
	"redink/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/users" {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.EnsureUser(r.Context(), body.UserID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		token, err := s.service.OpenSession(r.Context(), user.ID)
		if err != nil {
			log.Printf("http: open session for %s: %v", user.ID, err)
		}
		payload := map[string]any{"userId": user.ID}
		if token != "" {
			payload["sessionToken"] = token
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/users/logout" {
		if err := s.service.CloseSession(r.Context(), bearerToken(r)); err != nil {
			log.Printf("http: close session: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Public share links, no user identity required
	if parts := splitPath(r.URL.Path); len(parts) >= 3 && parts[0] == "api" && parts[1] == "share" {
		s.handleShare(w, r, parts[2:])
		return
	}

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		offset := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
				return
			}
			offset = parsed
		}
		resp := s.service.Search(search.Query{Text: q, UserID: userID, Limit: limit, Offset: offset})
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents" {
		s.handleUpload(w, r, userID)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/documents" {
		docs, err := s.service.ListDocuments(r.Context(), userID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": documentViews(docs)})
		return
	}

	if parts := splitPath(r.URL.Path); len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocument(w, r, userID, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form upload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read upload", nil)
		return
	}

	doc, err := s.service.UploadDocument(r.Context(), userID, header.Filename, data)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, documentView(doc))
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, userID, documentID string, rest []string) {
	doc, err := s.service.GetDocumentForUser(r.Context(), userID, documentID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, documentView(doc))
		case http.MethodDelete:
			if err := s.service.DeleteDocument(r.Context(), userID, documentID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch {
	case r.Method == http.MethodGet && rest[0] == "file" && len(rest) == 1:
		s.serveDocumentFile(w, r, doc)
	case r.Method == http.MethodGet && rest[0] == "pages" && len(rest) == 1:
		pages, err := s.service.DocumentPages(r.Context(), doc)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
	case r.Method == http.MethodGet && rest[0] == "annotations" && len(rest) == 1:
		s.serveAnnotations(w, r, doc.ID)
	case r.Method == http.MethodPut && rest[0] == "annotations" && len(rest) == 2:
		pageNumber, err := strconv.Atoi(rest[1])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "page number must be an integer", nil)
			return
		}
		var body struct {
			Data json.RawMessage `json:"data"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SaveAnnotation(r.Context(), doc.ID, pageNumber, body.Data); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case r.Method == http.MethodGet && rest[0] == "export" && len(rest) == 1:
		result, err := s.service.Export(r.Context(), userID, doc.ID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
	case r.Method == http.MethodPut && rest[0] == "share" && len(rest) == 2 && rest[1] == "password":
		var body struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetSharePassword(r.Context(), userID, doc.ID, body.Password); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case rest[0] == "annotate" && len(rest) == 1:
		s.handleAnnotate(w, r, doc)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleShare(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet || len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	shareHash := parts[0]
	password := strings.TrimSpace(r.Header.Get("X-Share-Password"))
	doc, err := s.service.SharedDocument(r.Context(), shareHash, password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, sharedDocumentView(doc))
		return
	}

	switch parts[1] {
	case "file":
		s.serveDocumentFile(w, r, doc)
	case "pages":
		pages, err := s.service.DocumentPages(r.Context(), doc)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
	case "annotations":
		s.serveAnnotations(w, r, doc.ID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) serveDocumentFile(w http.ResponseWriter, r *http.Request, doc store.Document) {
	data, err := s.service.DocumentFile(r.Context(), doc)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.OriginalFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *HTTPServer) serveAnnotations(w http.ResponseWriter, r *http.Request, documentID string) {
	byPage, err := s.service.Annotations(r.Context(), documentID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	annotations := make(map[string]json.RawMessage, len(byPage))
	for page, data := range byPage {
		annotations[strconv.Itoa(page)] = json.RawMessage(data)
	}
	writeJSON(w, http.StatusOK, map[string]any{"annotations": annotations})
}

// requireUser resolves the caller's anonymous user from the session token or
// the X-User-ID header.
func (s *HTTPServer) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if token := bearerToken(r); token != "" {
		userID, err := s.service.ResolveSession(r.Context(), token)
		if err == nil {
			return userID, true
		}
	}
	if userID := strings.TrimSpace(r.Header.Get("X-User-ID")); userID != "" {
		if _, err := s.service.EnsureUser(r.Context(), userID); err == nil {
			return userID, true
		}
	}
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	return "", false
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer so the annotate socket can
// upgrade through the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-User-ID, X-Share-Password")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func documentView(doc store.Document) map[string]any {
	return map[string]any{
		"id":               doc.ID,
		"originalFilename": doc.OriginalFilename,
		"originalType":     doc.OriginalType,
		"shareHash":        doc.ShareHash,
		"hasPassword":      doc.SharePasswordHash != nil,
		"pageCount":        doc.PageCount,
		"createdAt":        doc.CreatedAt,
		"updatedAt":        doc.UpdatedAt,
	}
}

func documentViews(docs []store.Document) []map[string]any {
	views := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		views = append(views, documentView(doc))
	}
	return views
}

func sharedDocumentView(doc store.Document) map[string]any {
	return map[string]any{
		"id":               doc.ID,
		"originalFilename": doc.OriginalFilename,
		"originalType":     doc.OriginalType,
		"pageCount":        doc.PageCount,
		"readOnly":         true,
	}
}
