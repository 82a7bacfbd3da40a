package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/metrics"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/session"
)

// Config holds transport settings
type Config struct {
	// AllowedOrigins lists CORS origins; empty allows any origin
	AllowedOrigins []string

	// MaxUploadSize caps multipart uploads in bytes
	MaxUploadSize int64
}

const defaultMaxUploadSize = 50 << 20

// Server handles HTTP requests for receipts, reports and the directory
type Server struct {
	service   *receipt.Service
	directory *receipt.Directory
	sessions  *session.Manager
	config    Config
	mux       *http.ServeMux
	handler   http.Handler
	now       func() time.Time
}

// NewServer creates a new Server with default mux
func NewServer(service *receipt.Service, directory *receipt.Directory, sessions *session.Manager, cfg Config) *Server {
	return NewServerWithMux(service, directory, sessions, cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *receipt.Service, directory *receipt.Directory, sessions *session.Manager, cfg Config, mux *http.ServeMux) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	s := &Server{
		service:   service,
		directory: directory,
		sessions:  sessions,
		config:    cfg,
		mux:       mux,
		now:       time.Now,
	}
	s.registerRoutes()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         3600,
	})
	s.handler = instrument(c.Handler(s.mux))
	return s
}

// identityHandler is a handler that runs on behalf of an authenticated caller
type identityHandler func(w http.ResponseWriter, r *http.Request, identity receipt.Identity)

// requireIdentity resolves the bearer session token into an identity. The role
// is read from the directory on every request so demotions and deletions take
// effect before the token expires.
func (s *Server) requireIdentity(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSONError(w, http.StatusUnauthorized, "Missing session token", nil)
			return
		}
		identity, err := s.sessions.Parse(strings.TrimSpace(token))
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "Invalid or expired session", nil)
			return
		}
		user, err := s.directory.User(identity.UserID)
		if errors.Is(err, receipt.ErrNotFound) {
			writeJSONError(w, http.StatusUnauthorized, "Unknown user", nil)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		identity.Role = user.Role
		next(w, r, identity)
	}
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route pattern
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveHTTPRequest(r.Method, pattern, strconv.Itoa(rec.status), time.Since(start))
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/session", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/session", s.requireIdentity(s.handleGetSession))
	s.mux.HandleFunc("GET /api/categories", s.requireIdentity(s.handleListCategories))

	// Receipts
	s.mux.HandleFunc("POST /api/receipts/scan", s.requireIdentity(s.handleScanReceipt))
	s.mux.HandleFunc("GET /api/receipts/{id}/image", s.requireIdentity(s.handleGetReceiptImage))
	s.mux.HandleFunc("POST /api/receipts/{id}/approve", s.requireIdentity(s.handleApproveReceipt))
	s.mux.HandleFunc("POST /api/receipts/{id}/reject", s.requireIdentity(s.handleRejectReceipt))
	s.mux.HandleFunc("POST /api/receipts/{id}/flag", s.requireIdentity(s.handleFlagReceipt))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireIdentity(s.handleGetReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireIdentity(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireIdentity(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireIdentity(s.handleSubmitReceipt))

	// Reporting
	s.mux.HandleFunc("GET /api/dashboard", s.requireIdentity(s.handleDashboard))
	s.mux.HandleFunc("GET /api/reports/export", s.requireIdentity(s.handleExportReport))
	s.mux.HandleFunc("GET /api/reports", s.requireIdentity(s.handleReport))

	// Directory
	s.mux.HandleFunc("GET /api/users/{id}/spending", s.requireIdentity(s.handleUserSpending))
	s.mux.HandleFunc("GET /api/users/{id}", s.requireIdentity(s.handleGetUser))
	s.mux.HandleFunc("PATCH /api/users/{id}", s.requireIdentity(s.handleUpdateUser))
	s.mux.HandleFunc("DELETE /api/users/{id}", s.requireIdentity(s.handleDeleteUser))
	s.mux.HandleFunc("GET /api/users", s.requireIdentity(s.handleListUsers))
	s.mux.HandleFunc("POST /api/users", s.requireIdentity(s.handleCreateUser))
	s.mux.HandleFunc("GET /api/departments/{id}", s.requireIdentity(s.handleGetDepartment))
	s.mux.HandleFunc("DELETE /api/departments/{id}", s.requireIdentity(s.handleDeleteDepartment))
	s.mux.HandleFunc("GET /api/departments", s.requireIdentity(s.handleListDepartments))
	s.mux.HandleFunc("POST /api/departments", s.requireIdentity(s.handleCreateDepartment))

	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // scans can take as long as the scanner timeout
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
