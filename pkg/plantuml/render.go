package plantuml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Renderer runs the external renderer process, one invocation per call.
// Safe for concurrent use; concurrent renders each own their process.
type Renderer struct {
	Settings Settings
	Logger   *log.Logger
}

// NewRenderer creates a renderer with the given settings.
// A nil logger falls back to the default logger.
func NewRenderer(settings Settings, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{Settings: settings, Logger: logger}
}

// invocation captures one finished renderer run.
type invocation struct {
	stdout   []byte
	stderr   string
	exitCode int
}

// Render produces one artifact for the given source and format. workDir is
// the process's working directory, so includes referenced by the source
// resolve relative to it.
//
// Exit handling: a clean exit with output succeeds; a clean exit with no
// output fails (PlantUML goes silent when Graphviz is missing, not when a
// diagram is empty); a non-zero exit fails, except for PNG where partial
// output is kept because PlantUML draws some errors as an image.
func (r *Renderer) Render(ctx context.Context, source string, format Format, workDir string) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	res, err := r.run(ctx, source, workDir, format.flag(), "-pipe")
	if err != nil {
		return nil, err
	}

	switch {
	case res.exitCode == 0 && len(res.stdout) > 0:
		return res.stdout, nil
	case res.exitCode == 0:
		return nil, renderFailure(res, "renderer produced no output; install Graphviz or set renderer.dot")
	case format == FormatPNG && len(res.stdout) > 0:
		return res.stdout, nil
	default:
		return nil, renderFailure(res, fmt.Sprintf("renderer exited with code %d", res.exitCode))
	}
}

// RenderMap produces the clickable image-map markup paired with a PNG
// artifact. Empty output is a valid result; not every diagram has link
// regions.
func (r *Renderer) RenderMap(ctx context.Context, source string, workDir string) (string, error) {
	res, err := r.run(ctx, source, workDir, "-pipemap")
	if err != nil {
		return "", err
	}
	if res.exitCode != 0 {
		return "", renderFailure(res, fmt.Sprintf("map renderer exited with code %d", res.exitCode))
	}
	return string(res.stdout), nil
}

// run performs one process invocation: resolve the command, spawn with the
// mode-specific flags appended, feed the source on stdin, drain stdout and
// stderr, wait for exit. stdout and stderr are collected concurrently, so a
// renderer that writes before consuming all of its input cannot deadlock.
func (r *Renderer) run(ctx context.Context, source, workDir string, modeArgs ...string) (*invocation, error) {
	command, err := ResolveCommand(r.Settings, workDir)
	if err != nil {
		return nil, err
	}
	args := append(command.Args, modeArgs...)

	cmd := exec.CommandContext(ctx, command.Path, args...)
	cmd.Dir = workDir
	// Bounds pipe draining when the process is killed on cancellation or
	// leaks its stdio to a child on exit. Not a render timeout; a slow
	// renderer may take as long as it needs.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	start := time.Now()
	r.Logger.Debug("launching renderer", "path", command.Path, "args", strings.Join(args, " "), "dir", workDir)
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	// Feed the source, then close stdin so the renderer sees end of input.
	// Write errors are ignored: a renderer that exits before draining its
	// input already has its verdict in the exit code.
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		_, _ = io.WriteString(stdin, source)
		_ = stdin.Close()
	}()

	waitErr := cmd.Wait()
	<-fed

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// The renderer exited but left its output pipe open in a
			// child. Whatever was collected stands.
			exitCode = cmd.ProcessState.ExitCode()
		default:
			return nil, fmt.Errorf("%w: %v", ErrRender, waitErr)
		}
	}

	r.Logger.Debug("renderer finished",
		"exit_code", exitCode,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"duration", time.Since(start))
	return &invocation{stdout: stdout.Bytes(), stderr: stderr.String(), exitCode: exitCode}, nil
}

// renderFailure builds an ErrRender with the best diagnostic available:
// stderr first, then stdout text, then the fallback message.
func renderFailure(res *invocation, fallback string) error {
	msg := strings.TrimSpace(res.stderr)
	if msg == "" {
		msg = strings.TrimSpace(string(res.stdout))
	}
	if msg == "" {
		msg = fallback
	}
	return fmt.Errorf("%w: %s", ErrRender, msg)
}
