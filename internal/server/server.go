// Package server exposes the render pipeline over HTTP.
//
// Diagrams are addressed by the same compressed, URL-safe keys the CLI
// prints: GET routes decode the key back into source and hand it to the
// shared pipeline, so anything rendered once (from either surface) is
// served from the cache. POST accepts raw diagram source and redirects to
// the canonical key URL.
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/plantpipe/plantpipe/pkg/observability"
	"github.com/plantpipe/plantpipe/pkg/pipeline"
)

// maxSourceBytes caps POSTed diagram source. PlantUML sources are small
// text files; anything near this limit is not a diagram.
const maxSourceBytes = 1 << 20

// Options configures the HTTP facade.
type Options struct {
	// WorkDir anchors relative renderer paths and include directives for
	// renders triggered over HTTP. Empty means the server's working
	// directory.
	WorkDir string
}

// Server serves rendered diagrams through a shared pipeline.
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	workDir string
	router  chi.Router
}

// New creates a Server around an assembled pipeline. The caller owns the
// pipeline and closes it after the server stops.
func New(runner *pipeline.Runner, logger *log.Logger, opts Options) *Server {
	s := &Server{
		runner:  runner,
		logger:  logger,
		workDir: opts.WorkDir,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/render", func(r chi.Router) {
		r.Get("/{format}/{key}", s.handleRender)
		r.Post("/{format}", s.handleSubmit)
	})
	r.Get("/map/{key}", s.handleMap)
	r.Get("/html/{key}", s.handleHTML)

	return r
}

// requestLogger emits one debug line per request and feeds the server
// observability hooks.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.Server().OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		observability.Server().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debugf("%s %s -> %d (%s, %d bytes)",
			r.Method, r.URL.Path, ww.Status(), elapsed.Round(time.Millisecond), ww.BytesWritten())
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
