package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/report"
)

type sessionRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *receipt.User `json:"user"`
}

// handleCreateSession issues a session token for the user with the given email
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, receipt.NewValidationError("email", "is required"))
		return
	}

	user, err := s.directory.UserByEmail(req.Email)
	if errors.Is(err, receipt.ErrNotFound) {
		writeJSONError(w, http.StatusUnauthorized, "Unknown user", nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	token, expires, err := s.sessions.Issue(user)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("Session created", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, ExpiresAt: expires.UTC(), User: user})
}

// handleGetSession returns the caller's user record
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	user, err := s.directory.User(identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	writeJSON(w, http.StatusOK, receipt.Categories())
}

// handleListReceipts returns the caller's visible receipts matching the query filters
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	filter, err := report.ParseFilter(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	receipts, err := s.service.Receipts(identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Apply(receipts, filter))
}

// handleSubmitReceipt creates a receipt from a JSON draft
func (s *Server) handleSubmitReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var draft receipt.Draft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.service.Submit(identity, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// uploadContentType determines the MIME type of an uploaded file, falling back to its extension
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleScanReceipt stores an uploaded image and returns suggested draft fields
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
	if err := r.ParseMultipartForm(s.config.MaxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "File is too large. Please compress or resize your image.", nil)
			return
		}
		writeError(w, receipt.NewValidationError("file", "expected a multipart upload"))
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, receipt.NewValidationError("file", "no file was selected"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, err)
		return
	}

	prefill, err := s.service.ScanReceipt(identity, header.Filename, data, uploadContentType(header.Header.Get("Content-Type"), header.Filename))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefill)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	rec, err := s.service.Receipt(identity, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetReceiptImage streams a stored receipt image
func (s *Server) handleGetReceiptImage(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	data, contentType, err := s.service.ReceiptImage(identity, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	if err := s.service.DeleteReceipt(identity, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reviewRequest is the optional body of approve, reject and flag calls
type reviewRequest struct {
	Comment  string `json:"comment"`
	Reason   string `json:"reason"`
	Revision int    `json:"revision"`
}

func (s *Server) handleApproveReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.service.Approve(identity, r.PathValue("id"), req.Comment, req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRejectReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.service.Reject(identity, r.PathValue("id"), req.Reason, req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFlagReceipt(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.service.ToggleFlag(identity, r.PathValue("id"), req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
