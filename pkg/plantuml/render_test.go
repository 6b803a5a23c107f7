package plantuml

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeRenderer writes a shell script standing in for the real renderer and
// returns settings pointing at it.
func fakeRenderer(t *testing.T, script string) Settings {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake renderer scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakeuml")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake renderer: %v", err)
	}
	return Settings{JarPath: path}
}

func newTestRenderer(t *testing.T, script string) *Renderer {
	t.Helper()
	return NewRenderer(fakeRenderer(t, script), log.New(io.Discard))
}

func TestRenderFeedsSourceAndCollectsOutput(t *testing.T) {
	ctx := context.Background()
	// cat terminates only once stdin is closed, so this also proves the
	// end-of-input signal.
	r := newTestRenderer(t, "cat")

	source := "@startuml\nAlice -> Bob: hello\n@enduml"
	out, err := r.Render(ctx, source, FormatSVG, t.TempDir())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if string(out) != source {
		t.Errorf("Render output = %q, want the echoed source", out)
	}
}

func TestRenderEmptyOutputIsError(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "exit 0")

	_, err := r.Render(ctx, "@startuml\n@enduml", FormatSVG, t.TempDir())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
	if !strings.Contains(err.Error(), "no output") {
		t.Errorf("err = %v, want a no-output message", err)
	}
}

func TestRenderNonZeroExitWithOutput(t *testing.T) {
	ctx := context.Background()
	script := "printf 'error-as-image'; exit 1"

	// PNG keeps the partial output: PlantUML renders some errors as an
	// image, and that picture is the most useful diagnostic available.
	r := newTestRenderer(t, script)
	out, err := r.Render(ctx, "@startuml\nbad\n@enduml", FormatPNG, t.TempDir())
	if err != nil {
		t.Fatalf("PNG render error: %v, want partial output", err)
	}
	if string(out) != "error-as-image" {
		t.Errorf("PNG output = %q, want the partial output", out)
	}

	// Any other format fails, carrying the output as diagnostic.
	r = newTestRenderer(t, script)
	_, err = r.Render(ctx, "@startuml\nbad\n@enduml", FormatSVG, t.TempDir())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("SVG err = %v, want ErrRender", err)
	}
	if !strings.Contains(err.Error(), "error-as-image") {
		t.Errorf("SVG err = %v, want the stdout diagnostic", err)
	}
}

func TestRenderNonZeroExitEmptyOutput(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "exit 3")

	_, err := r.Render(ctx, "@startuml\n@enduml", FormatPNG, t.TempDir())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
	if !strings.Contains(err.Error(), "code 3") {
		t.Errorf("err = %v, want the exit code named", err)
	}
}

func TestRenderPrefersStderrDiagnostics(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "printf 'partial' ; echo 'syntax error on line 2' >&2; exit 1")

	_, err := r.Render(ctx, "@startuml\nbad\n@enduml", FormatSVG, t.TempDir())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
	if !strings.Contains(err.Error(), "syntax error on line 2") {
		t.Errorf("err = %v, want the stderr diagnostic preferred", err)
	}
}

func TestRenderLaunchFailure(t *testing.T) {
	ctx := context.Background()
	r := NewRenderer(Settings{
		JarPath: filepath.Join(t.TempDir(), "does-not-exist"),
	}, log.New(io.Discard))

	_, err := r.Render(ctx, "@startuml\n@enduml", FormatSVG, t.TempDir())
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	r := newTestRenderer(t, "cat")
	if _, err := r.Render(context.Background(), "x", Format("pdf"), t.TempDir()); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRenderWorkingDirectory(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "cat > /dev/null; pwd")

	workDir := t.TempDir()
	out, err := r.Render(ctx, "@startuml\n@enduml", FormatASCII, workDir)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	got, err := filepath.EvalSymlinks(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	want, err := filepath.EvalSymlinks(workDir)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	if got != want {
		t.Errorf("renderer ran in %q, want %q", got, want)
	}
}

func TestRenderRelativeExecutable(t *testing.T) {
	ctx := context.Background()
	settings := fakeRenderer(t, "cat > /dev/null; printf 'ran'")
	workDir := filepath.Dir(settings.JarPath)

	// A bare executable name resolves against the working directory.
	r := NewRenderer(Settings{JarPath: filepath.Base(settings.JarPath)}, log.New(io.Discard))
	out, err := r.Render(ctx, "@startuml\n@enduml", FormatASCII, workDir)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if string(out) != "ran" {
		t.Errorf("output = %q, want %q", out, "ran")
	}
}

func TestRenderArgumentOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, `cat > /dev/null; printf '%s\n' "$@"`)

	out, err := r.Render(ctx, "@startuml\n@enduml", FormatSVG, t.TempDir())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	got := strings.Split(strings.TrimSpace(string(out)), "\n")
	want := []string{"-Djava.awt.headless=true", "-charset", "utf-8", "-tsvg", "-pipe"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderMapArguments(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, `cat > /dev/null; printf '%s\n' "$@"`)

	out, err := r.RenderMap(ctx, "@startuml\n@enduml", t.TempDir())
	if err != nil {
		t.Fatalf("RenderMap error: %v", err)
	}
	if !strings.Contains(out, "-pipemap") {
		t.Errorf("args %q missing -pipemap", out)
	}
	if strings.Contains(out, "-pipe\n") || strings.Contains(out, "-tpng") {
		t.Errorf("map invocation must not carry artifact flags: %q", out)
	}
}

func TestRenderMapEmptyOutputOK(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "exit 0")

	// Not every diagram has clickable regions; empty map is a result,
	// not a failure.
	out, err := r.RenderMap(ctx, "@startuml\nA -> B\n@enduml", t.TempDir())
	if err != nil {
		t.Fatalf("RenderMap error: %v", err)
	}
	if out != "" {
		t.Errorf("map = %q, want empty", out)
	}
}

func TestRenderMapFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "echo 'map exploded' >&2; exit 2")

	_, err := r.RenderMap(ctx, "@startuml\n@enduml", t.TempDir())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
	if !strings.Contains(err.Error(), "map exploded") {
		t.Errorf("err = %v, want the stderr diagnostic", err)
	}
}

func TestRenderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := newTestRenderer(t, "exec sleep 5")

	_, err := r.Render(ctx, "@startuml\n@enduml", FormatSVG, t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestRenderNoDeadlockOnInterleavedIO(t *testing.T) {
	ctx := context.Background()
	// The script floods both output channels past the OS pipe buffer
	// before touching stdin, while the render call is still trying to
	// write a large source. Without concurrent draining this wedges.
	script := `
i=0
while [ $i -lt 5000 ]; do echo "stdout filler line"; i=$((i+1)); done
i=0
while [ $i -lt 5000 ]; do echo "stderr filler line" >&2; i=$((i+1)); done
cat > /dev/null
printf 'done'`
	r := newTestRenderer(t, script)

	source := strings.Repeat("@startuml\nA -> B : filler edge\n@enduml\n", 4096)
	out, err := r.Render(ctx, source, FormatSVG, t.TempDir())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.HasSuffix(string(out), "done") {
		t.Error("renderer output truncated")
	}
	if len(out) < 5000*len("stdout filler line") {
		t.Errorf("stdout not fully collected: %d bytes", len(out))
	}
}
