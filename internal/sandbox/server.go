// Package sandbox runs a local registration API implementing the same REST
// contract as the production backend, for development and end-to-end tests.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/routes"
	"github.com/kingrea/onboard/internal/schema"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

var errServerDisabled = errors.New("sandbox: server disabled")

// Logger is the subset of logbook used by the server.
type Logger interface {
	Printf(format string, args ...any)
}

// ApprovalHook observes every issued approval link.
type ApprovalHook func(reg Registration, token, link string)

// Server wraps the HTTP listener and handlers backing the sandbox API.
type Server struct {
	settings Settings
	schemas  []schema.Schema
	store    *Store
	signer   *Signer
	logger   Logger
	onIssue  ApprovalHook
	clock    func() time.Time
	router   *mux.Router

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSchemas sets the forms a registration may satisfy, in priority order.
func WithSchemas(schemas ...schema.Schema) Option {
	return func(s *Server) {
		if len(schemas) > 0 {
			s.schemas = schemas
		}
	}
}

// WithApprovalHook registers a callback for issued approval links.
func WithApprovalHook(hook ApprovalHook) Option {
	return func(s *Server) {
		if hook != nil {
			s.onIssue = hook
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a sandbox server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		schemas:  []schema.Schema{schema.Business(), schema.Personal()},
		store:    NewStore(),
		logger:   nopLogger{},
		onIssue:  func(Registration, string, string) {},
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.signer = NewSigner(settings.Secret, settings.TokenTTL)
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(api.RegisterPath, s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(api.ApprovePathPrefix+"{token}", s.handleDecision).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	return r
}

// Handler exposes the routed handlers, for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Store exposes the registration store.
func (s *Server) Store() *Store { return s.store }

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("sandbox: server is nil")
	}
	if !s.settings.Enabled {
		return errServerDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("sandbox: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sandbox: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("sandbox: serve error: %v", err)
		}
	}()
	s.logger.Printf("sandbox: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.startTime).Seconds())
}

type healthResponse struct {
	Status        string `json:"status"`
	Pending       int    `json:"pending"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pending := 0
	for _, r := range s.store.List() {
		if r.Status == StatusPending {
			pending++
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Pending:       pending,
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.settings.MaxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Payload exceeds limit")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	reg := Registration{Fields: map[string]string{}, Files: map[string]StoredFile{}}
	for name, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			reg.Fields[name] = values[0]
		}
	}
	for name, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		h := headers[0]
		att := &documents.Attachment{Filename: h.Filename, ContentType: h.Header.Get("Content-Type"), Size: h.Size}
		if !att.Accepted() {
			writeMessage(w, http.StatusUnsupportedMediaType, fmt.Sprintf("Only image or PDF files are accepted (%s)", name))
			return
		}
		reg.Files[name] = StoredFile{Filename: att.Filename, ContentType: att.ContentType, Size: att.Size}
	}

	form, missing := match(reg, s.schemas)
	if len(missing) > 0 {
		writeMessage(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}
	reg.SchemaID = form.ID

	now := s.now()
	stored, err := s.store.Add(reg, now)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			writeMessage(w, http.StatusConflict, "Email already registered")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	token, err := s.signer.Sign(stored, now)
	if err != nil {
		s.logger.Printf("sandbox: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	link, err := routes.Path(routes.ScreenApproval, token)
	if err != nil {
		s.logger.Printf("sandbox: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	s.logger.Printf("sandbox: registration %s (%s) pending, approval link %s", stored.ID, stored.SchemaID, link)
	s.onIssue(stored, token, link)
	writeMessage(w, http.StatusCreated, "Registration submitted, awaiting approval")
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	now := s.now()
	id, err := s.signer.Verify(token, now)
	if err != nil {
		s.logger.Printf("sandbox: %v", err)
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	var decision api.Decision
	if err := json.NewDecoder(reader).Decode(&decision); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := decision.Validate(); err != nil {
		if decision.Action == api.ActionReject {
			writeMessage(w, http.StatusBadRequest, "Reject reason is required")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Unknown action")
		return
	}
	status := StatusApproved
	if decision.Action == api.ActionReject {
		status = StatusRejected
	}
	reg, err := s.store.Decide(id, status, strings.TrimSpace(decision.RejectReason), now)
	if err != nil {
		if reg.ID == "" {
			writeMessage(w, http.StatusNotFound, "Registration not found")
			return
		}
		writeMessage(w, http.StatusConflict, fmt.Sprintf("Registration already %s", reg.Status))
		return
	}
	s.logger.Printf("sandbox: registration %s %s", reg.ID, reg.Status)
	if status == StatusApproved {
		writeMessage(w, http.StatusOK, "Registration approved")
		return
	}
	writeMessage(w, http.StatusOK, "Registration rejected")
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
