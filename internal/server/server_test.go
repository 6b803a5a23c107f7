package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/plantpipe/plantpipe/pkg/cache"
	"github.com/plantpipe/plantpipe/pkg/encoder"
	"github.com/plantpipe/plantpipe/pkg/pipeline"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

const sampleSource = "@startuml\nAlice -> Bob: hello\n@enduml"

// stubRenderer satisfies pipeline.Renderer without launching processes.
type stubRenderer struct {
	artifact  []byte
	imageMap  string
	renderErr error
	renders   int
	lastDir   string
}

func (s *stubRenderer) Render(ctx context.Context, source string, format plantuml.Format, workDir string) ([]byte, error) {
	s.renders++
	s.lastDir = workDir
	if s.renderErr != nil {
		return nil, s.renderErr
	}
	if s.artifact != nil {
		return s.artifact, nil
	}
	return []byte("rendered:" + source), nil
}

func (s *stubRenderer) RenderMap(ctx context.Context, source, workDir string) (string, error) {
	return s.imageMap, nil
}

func newTestServer(t *testing.T, stub *stubRenderer, opts Options) *Server {
	t.Helper()
	runner := pipeline.NewRunner(cache.NewMemoryCache(), stub, log.New(io.Discard))
	t.Cleanup(func() { runner.Close() })
	return New(runner, log.New(io.Discard), opts)
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRenderArtifact(t *testing.T) {
	stub := &stubRenderer{}
	srv := newTestServer(t, stub, Options{})
	key := encoder.Encode(sampleSource)

	rec := get(t, srv, "/render/svg/"+key)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Errorf("unexpected content type %q", got)
	}
	if rec.Body.String() != "rendered:"+sampleSource {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("expected an ETag header")
	}

	// Identical key is served from the cache.
	get(t, srv, "/render/svg/"+key)
	if stub.renders != 1 {
		t.Errorf("expected 1 render after repeat request, got %d", stub.renders)
	}
}

func TestRenderContentTypes(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"ascii", "text/plain; charset=utf-8"},
		{"png", "image/png"},
		{"svg", "image/svg+xml"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			srv := newTestServer(t, &stubRenderer{}, Options{})
			rec := get(t, srv, "/render/"+tt.format+"/"+encoder.Encode(sampleSource))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.want {
				t.Errorf("expected content type %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderInvalidKey(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	rec := get(t, srv, "/render/svg/@@@@")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRenderInvalidFormat(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	rec := get(t, srv, "/render/pdf/"+encoder.Encode(sampleSource))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRenderNotModified(t *testing.T) {
	stub := &stubRenderer{}
	srv := newTestServer(t, stub, Options{})
	key := encoder.Encode(sampleSource)

	first := get(t, srv, "/render/svg/"+key)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/render/svg/"+key, nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected status 304, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if stub.renders != 1 {
		t.Errorf("expected conditional request to skip rendering, got %d renders", stub.renders)
	}
}

func TestSubmitRedirectsToKey(t *testing.T) {
	stub := &stubRenderer{}
	srv := newTestServer(t, stub, Options{})

	req := httptest.NewRequest(http.MethodPost, "/render/svg", strings.NewReader(sampleSource))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d: %s", rec.Code, rec.Body.String())
	}
	want := "/render/svg/" + encoder.Encode(sampleSource)
	loc := rec.Header().Get("Location")
	if loc != want {
		t.Errorf("expected Location %q, got %q", want, loc)
	}

	// The submit already rendered, so the redirect target is a cache hit.
	follow := get(t, srv, loc)
	if follow.Code != http.StatusOK {
		t.Fatalf("expected status 200 on redirect target, got %d", follow.Code)
	}
	if stub.renders != 1 {
		t.Errorf("expected 1 render total, got %d", stub.renders)
	}
}

func TestSubmitEmptySource(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/render/svg", strings.NewReader("   \n"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestSubmitSourceTooLarge(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/render/svg", strings.NewReader(strings.Repeat("a", maxSourceBytes+1)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
}

func TestMapRoute(t *testing.T) {
	imageMap := `<map id="plantuml_map" name="plantuml_map"><area href="https://example.com"/></map>`
	srv := newTestServer(t, &stubRenderer{imageMap: imageMap}, Options{})

	rec := get(t, srv, "/map/"+encoder.Encode(sampleSource))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("unexpected content type %q", got)
	}
	if rec.Body.String() != imageMap {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestHTMLRoute(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	rec := get(t, srv, "/html/"+encoder.Encode(sampleSource))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "<!DOCTYPE html>") {
		t.Errorf("expected an HTML document, got %q", body[:min(len(body), 40)])
	}
	if !strings.Contains(body, "rendered:") {
		t.Error("expected the artifact inlined in the page")
	}
}

func TestHTMLRouteFormatQuery(t *testing.T) {
	srv := newTestServer(t, &stubRenderer{}, Options{})

	rec := get(t, srv, "/html/"+encoder.Encode(sampleSource)+"?format=pdf")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRenderFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"diagram error", fmt.Errorf("%w: syntax error", plantuml.ErrRender), http.StatusUnprocessableEntity},
		{"launch failure", fmt.Errorf("%w: no such file", plantuml.ErrLaunch), http.StatusServiceUnavailable},
		{"misconfiguration", fmt.Errorf("%w: executable path is empty", plantuml.ErrConfiguration), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubRenderer{renderErr: tt.err}, Options{})
			rec := get(t, srv, "/render/svg/"+encoder.Encode(sampleSource))
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestWorkDirOption(t *testing.T) {
	stub := &stubRenderer{}
	srv := newTestServer(t, stub, Options{WorkDir: "/tmp/diagrams"})

	get(t, srv, "/render/svg/"+encoder.Encode(sampleSource))
	if stub.lastDir != "/tmp/diagrams" {
		t.Errorf("expected work dir to reach the renderer, got %q", stub.lastDir)
	}
}
