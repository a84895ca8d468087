package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"evsched/internal/config"
	"evsched/internal/events"
	appLog "evsched/internal/log"
)

// Server serves the event UI, the /api proxy and the calendar endpoints.
type Server struct {
	cfg    *config.Config
	svc    *events.Service
	loc    *time.Location
	router *mux.Router
	tmpl   *template.Template
	now    func() time.Time
}

//go:embed templates/*.html
var embeddedTemplates embed.FS

// NewServer constructs a new Server. loc is the zone form input is read in
// and times are rendered in.
func NewServer(cfg *config.Config, svc *events.Service, loc *time.Location) (*Server, error) {
	if loc == nil {
		loc = time.Local
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		loc:    loc,
		router: mux.NewRouter(),
		tmpl:   tmpl,
		now:    time.Now,
	}
	proxy, err := newAPIProxy(cfg)
	if err != nil {
		return nil, err
	}
	s.registerRoutes(proxy)
	return s, nil
}

// Handler returns the root handler with logging, recovery and, when
// configured, basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return loggingMiddleware(recoveryMiddleware(h))
}

func (s *Server) registerRoutes(proxy http.Handler) {
	r := s.router

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/events/more", s.handleMore).Methods(http.MethodPost)
	r.HandleFunc("/events/{id}", s.handleEdit).Methods(http.MethodPost)
	r.HandleFunc("/events/{id}/delete", s.handleDelete).Methods(http.MethodPost)

	r.HandleFunc("/calendar.ics", s.handleCalendar).Methods(http.MethodGet)
	r.HandleFunc("/agenda.json", s.handleAgenda).Methods(http.MethodGet)
	r.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	r.PathPrefix("/api/").Handler(proxy)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
