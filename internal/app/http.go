package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pauta/api/internal/export"
	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
	"pauta/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	realtime   http.HandlerFunc
}

func NewHTTPServer(service *Service, corsOrigin string, realtimeHandler http.HandlerFunc) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, realtime: realtimeHandler}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/ready" {
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
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Public share links, no authentication.
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/share/") {
		token := strings.TrimPrefix(r.URL.Path, "/share/")
		if token != "" {
			payload, err := s.service.PublicShare(r.Context(), token, r.URL.Query().Get("password"))
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, payload)
			return
		}
	}

	// Post reads carry no auth requirement.
	if r.Method == http.MethodGet && r.URL.Path == "/posts" {
		s.handleGetPosts(w, r)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/realtime" {
		if s.realtime == nil {
			writeError(w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "realtime not configured", nil)
			return
		}
		s.realtime(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/send-email" {
		var body SendEmailInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SendCredentials(r.Context(), body); err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"sent": true})
		return
	}

	parts := splitPath(r.URL.Path)
	switch {
	case len(parts) >= 1 && parts[0] == "posts":
		s.handlePosts(w, r, session, parts)
	case len(parts) == 2 && parts[0] == "blocks":
		s.handleBlocks(w, r, session, parts[1])
	case len(parts) == 2 && parts[0] == "share":
		s.handleShareRevoke(w, r, session, parts[1])
	case len(parts) >= 1 && parts[0] == "users":
		s.handleUsers(w, r, session, parts)
	case len(parts) == 1 && parts[0] == "media":
		s.handleMedia(w, r, session)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleGetPosts serves both the by-id fetch (?id=) and the admin list.
func (s *HTTPServer) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("id") {
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id cannot be empty", nil)
			return
		}
		post, err := s.service.GetPost(r.Context(), id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, post)
		return
	}

	items, err := s.service.ListPosts(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeOK(w, http.StatusOK, items)
}

func (s *HTTPServer) handlePosts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body CreatePostInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		post, err := s.service.CreatePost(r.Context(), body, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusCreated, post)
		return
	}

	if len(parts) == 2 && parts[1] == "search" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionRead) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		q := search.Query{
			Text:   strings.TrimSpace(r.URL.Query().Get("q")),
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
		}
		var err error
		if q.Limit, err = queryInt(r, "limit", 20); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		if q.Offset, err = queryInt(r, "offset", 0); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		writeOK(w, http.StatusOK, s.service.SearchPosts(q))
		return
	}

	postID := parts[1]

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodPatch:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body UpdatePostInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			post, err := s.service.UpdatePost(r.Context(), postID, body, session)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, post)
		case http.MethodDelete:
			if !s.service.Can(session.Role, rbac.ActionWrite) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			if err := s.service.TrashPost(r.Context(), postID, session); err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, nil)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 {
		switch parts[2] {
		case "blocks":
			s.handlePostBlocks(w, r, session, postID)
			return
		case "history":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			if !s.service.Can(session.Role, rbac.ActionRead) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			limit, err := queryInt(r, "limit", 50)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			history, err := s.service.PostHistory(r.Context(), postID, limit)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, history)
			return
		case "export":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			if !s.service.Can(session.Role, rbac.ActionRead) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Format string `json:"format"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			result, err := s.service.ExportPost(r.Context(), postID, export.Format(body.Format))
			if err != nil {
				writeMappedError(w, err)
				return
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
			return
		case "share":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			if session.Role != rbac.RoleAdministrador {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body CreateShareInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateShareLink(r.Context(), postID, body, session)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusCreated, payload)
			return
		}
	}

	if len(parts) == 4 && parts[2] == "history" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionRead) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		snapshot, err := s.service.PostRevision(r.Context(), postID, parts[3])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, snapshot)
		return
	}

	if len(parts) == 4 && parts[2] == "blocks" && parts[3] == "reorder" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			BlockIDs []string `json:"blockIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		items, err := s.service.ReorderBlocks(r.Context(), postID, body.BlockIDs, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, items)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePostBlocks(w http.ResponseWriter, r *http.Request, session Session, postID string) {
	switch r.Method {
	case http.MethodGet:
		if !s.service.Can(session.Role, rbac.ActionRead) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		items, err := s.service.ListBlocks(r.Context(), postID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, items)
	case http.MethodPost:
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body CreateBlockInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block, err := s.service.CreateBlock(r.Context(), postID, body, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusCreated, block)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleBlocks(w http.ResponseWriter, r *http.Request, session Session, blockID string) {
	if !s.service.Can(session.Role, rbac.ActionWrite) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var body struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block, err := s.service.UpdateBlock(r.Context(), blockID, body.Payload, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, block)
	case http.MethodDelete:
		if err := s.service.DeleteBlock(r.Context(), blockID, session); err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, nil)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleShareRevoke(w http.ResponseWriter, r *http.Request, session Session, token string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if session.Role != rbac.RoleAdministrador {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}
	if err := s.service.RevokeShareLink(r.Context(), token); err != nil {
		writeMappedError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method == http.MethodDelete {
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Key string `json:"key"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.RemoveMedia(r.Context(), body.Key); err != nil {
			writeMappedError(w, err)
			return
		}
		writeOK(w, http.StatusOK, nil)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if !s.service.Can(session.Role, rbac.ActionWrite) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	upload, err := s.service.UploadMedia(r.Context(), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, upload)
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if session.Role != rbac.RoleAdministrador {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			users, err := s.service.ListUsers(r.Context())
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, users)
		case http.MethodDelete:
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.DeleteUser(r.Context(), body.UserID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, nil)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPatch {
		userID := parts[1]
		switch parts[2] {
		case "role":
			var body struct {
				Role string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			result, err := s.service.UpdateUserRole(r.Context(), userID, body.Role)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, result)
			return
		case "password":
			result, err := s.service.ResetUserPassword(r.Context(), userID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeOK(w, http.StatusOK, result)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, provider.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		if errors.Is(err, provider.ErrNotConfigured) {
			writeError(w, http.StatusInternalServerError, "BACKEND_UNAVAILABLE", "Auth provider not configured", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
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

// Hijack lets the websocket upgrade pass through the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack not supported")
	}
	return hijacker.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeOK wraps the payload in the success envelope. A nil data still
// reports ok for bodyless mutations.
func writeOK(w http.ResponseWriter, status int, data any) {
	response := map[string]any{"ok": true}
	if data != nil {
		response["data"] = data
	}
	writeJSON(w, status, response)
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

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
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
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// Websocket clients cannot set headers from the browser.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, provider.ErrUnauthorized) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, provider.ErrNotConfigured) {
		return http.StatusInternalServerError, "BACKEND_UNAVAILABLE", "Auth provider not configured", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
