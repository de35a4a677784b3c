// Package web provides the HTTP control surface: a status page, the volume
// form, a JSON control API and a server-sent event stream.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/pibox/internal/app/control"
	"github.com/osa030/pibox/internal/app/notification"
	"github.com/osa030/pibox/internal/app/playback"
)

//go:embed templates/*.html
var templateFS embed.FS

// Player is the playback surface the web layer needs.
type Player interface {
	control.Player
	Snapshot() playback.Snapshot
	RefreshIndicator() error
}

// Server serves the network control surface.
type Server struct {
	player     Player
	dispatcher *control.Dispatcher
	notifier   *notification.Manager
	tmpl       *template.Template
	startedAt  time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// NewServer creates a web server for player. notifier may be nil, in which
// case /events is not served.
func NewServer(player Player, notifier *notification.Manager) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse templates")
	}

	return &Server{
		player:     player,
		dispatcher: control.NewDispatcher(player, nil),
		notifier:   notifier,
		tmpl:       tmpl,
		startedAt:  time.Now(),
		closed:     make(chan struct{}),
	}, nil
}

// Router returns the request router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/volume", s.handleVolumeForm).Methods(http.MethodPost)
	r.HandleFunc("/volume", s.handleVolumeRefresh).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/volume", s.handleVolumeJSON).Methods(http.MethodPost)
	api.HandleFunc("/{action:previous|next|pause|restart}", s.handleAction).Methods(http.MethodPost)

	if s.notifier != nil {
		r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	}

	return r
}

// NewHTTPServer wraps the router in an h2c handler (HTTP/2 cleartext).
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.Router(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close ends all open event streams so the HTTP server can shut down.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets event streams flush through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zlog.Debug().Msgf("web: method=%s uri=%s status=%d duration=%v",
			r.Method, r.RequestURI, rec.status, time.Since(start))
	})
}
