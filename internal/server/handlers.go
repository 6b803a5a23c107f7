package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/plantpipe/plantpipe/pkg/cache"
	"github.com/plantpipe/plantpipe/pkg/encoder"
	"github.com/plantpipe/plantpipe/pkg/pipeline"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// handleRender serves the artifact for an encoded diagram key.
//
// Keys are content-addressed: identical key means identical source, so the
// ETag derives from key and format alone and conditional requests are
// answered without touching the cache.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format, err := plantuml.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "key")
	source, err := encoder.Decode(key)
	if err != nil {
		http.Error(w, "invalid diagram key", http.StatusBadRequest)
		return
	}

	etag := artifactETag(key, format)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	res, err := s.render(r.Context(), source, format)
	if err != nil {
		s.renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(res.Artifact)
}

// handleSubmit accepts raw diagram source and redirects to the canonical
// key URL. The render happens here, so the redirected GET is a cache hit.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	format, err := plantuml.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSourceBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "diagram source too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	source := string(body)
	if strings.TrimSpace(source) == "" {
		http.Error(w, "empty diagram source", http.StatusBadRequest)
		return
	}

	res, err := s.render(r.Context(), source, format)
	if err != nil {
		s.renderError(w, err)
		return
	}

	http.Redirect(w, r, "/render/"+string(format)+"/"+res.Key, http.StatusSeeOther)
}

// handleMap serves the clickable image map paired with a diagram's PNG.
// Diagrams without link regions yield an empty body.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	source, err := encoder.Decode(chi.URLParam(r, "key"))
	if err != nil {
		http.Error(w, "invalid diagram key", http.StatusBadRequest)
		return
	}

	res, err := s.render(r.Context(), source, plantuml.FormatPNG)
	if err != nil {
		s.renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, res.Map)
}

// handleHTML serves a standalone page embedding the artifact. PNG pages
// carry the image map inline, keeping diagram links clickable.
func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	format := plantuml.FormatSVG
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := plantuml.ParseFormat(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}
	source, err := encoder.Decode(chi.URLParam(r, "key"))
	if err != nil {
		http.Error(w, "invalid diagram key", http.StatusBadRequest)
		return
	}

	// The presenter writes straight to the response, but only after the
	// render succeeded, so error responses below still go out clean.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = s.runner.RenderTo(r.Context(), pipeline.Request{
		Source:  source,
		Format:  format,
		WorkDir: s.workDir,
	}, pipeline.HTMLPresenter{W: w})
	if err != nil {
		s.renderError(w, err)
	}
}

// render funnels every handler through the shared pipeline with the
// server's work directory.
func (s *Server) render(ctx context.Context, source string, format plantuml.Format) (*pipeline.Result, error) {
	return s.runner.Render(ctx, pipeline.Request{
		Source:  source,
		Format:  format,
		WorkDir: s.workDir,
	})
}

// renderError maps pipeline failures onto HTTP status codes: diagram
// problems are the client's, renderer problems are ours.
func (s *Server) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	case errors.Is(err, plantuml.ErrRender):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, plantuml.ErrLaunch), errors.Is(err, plantuml.ErrConfiguration):
		s.logger.Errorf("Renderer unavailable: %v", err)
		http.Error(w, "renderer unavailable", http.StatusServiceUnavailable)
	default:
		s.logger.Errorf("Render failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// artifactETag derives a strong validator from the content-addressed key.
func artifactETag(key string, format plantuml.Format) string {
	return `"` + cache.Hash([]byte(string(format)+":"+key))[:32] + `"`
}

// contentType maps a render format to its media type.
func contentType(f plantuml.Format) string {
	switch f {
	case plantuml.FormatPNG:
		return "image/png"
	case plantuml.FormatSVG:
		return "image/svg+xml"
	default:
		return "text/plain; charset=utf-8"
	}
}
