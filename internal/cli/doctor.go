package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/pkg/pipeline"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// doctorSource is a minimal diagram that exercises the renderer end to end.
const doctorSource = "@startuml\nBob -> Alice : hello\n@enduml\n"

// doctorCommand creates the doctor command for diagnosing the installation.
func (c *CLI) doctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the renderer installation end to end",
		Long: `Diagnose the local renderer setup.

Doctor resolves the configured renderer command, verifies the java runtime
and Graphviz availability, and performs a real test render. Failures are
reported with the piece of configuration that fixes them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

// runDoctor walks the checks in dependency order: a renderer command that
// does not resolve makes the remaining checks meaningless.
func (c *CLI) runDoctor(ctx context.Context) error {
	settings := c.Config.Renderer.Settings()

	fmt.Println(StyleTitle.Render("Configuration"))
	printKeyValue("renderer", settings.JarPath)
	printKeyValue("java", orDefault(settings.JavaPath, plantuml.DefaultJavaPath))
	printKeyValue("dot", orDefault(settings.DotPath, "auto-detect"))
	printKeyValue("cache", c.Config.Cache.Backend)
	printNewline()

	fmt.Println(StyleTitle.Render("Checks"))

	command, err := plantuml.ResolveCommand(settings, ".")
	if err != nil {
		printError("Renderer command: %v", err)
		printNextStep("Point the renderer at your PlantUML install", appName+" --config with renderer.jar set")
		return fmt.Errorf("renderer is not configured")
	}
	printSuccess("Renderer command resolves")
	printDetail("%s", command.String())

	failures := 0
	if jar := jarPath(command); jar != "" {
		failures += c.checkJava(ctx, command.Path)
		failures += c.checkJar(jar)
	} else {
		failures += c.checkExecutable(command.Path)
	}
	c.checkDot(settings.DotPath)
	failures += c.checkRender(ctx)

	printNewline()
	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	printSuccess("Everything looks good")
	return nil
}

// checkJava verifies the java runtime that will host a .jar renderer.
func (c *CLI) checkJava(ctx context.Context, java string) int {
	path, err := exec.LookPath(java)
	if err != nil {
		printError("Java runtime %q not found", java)
		printNextStep("Install a java runtime or set renderer.java", "apt install default-jre")
		return 1
	}

	out, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		printError("Java runtime %q failed to run: %v", path, err)
		return 1
	}
	printSuccess("Java runtime works")
	printDetail("%s", firstLine(string(out)))
	return 0
}

// checkJar verifies the renderer archive exists and is a regular file.
func (c *CLI) checkJar(jar string) int {
	info, err := os.Stat(jar)
	if err != nil {
		printError("Renderer archive %s: %v", jar, err)
		printNextStep("Download PlantUML and set renderer.jar", "https://plantuml.com/download")
		return 1
	}
	if info.IsDir() {
		printError("Renderer archive %s is a directory", jar)
		return 1
	}
	printSuccess("Renderer archive present")
	printDetail("%s (%s)", jar, formatBytes(int(info.Size())))
	return 0
}

// checkExecutable verifies a non-jar renderer binary is runnable.
func (c *CLI) checkExecutable(path string) int {
	resolved, err := exec.LookPath(path)
	if err != nil {
		printError("Renderer binary %q not found: %v", path, err)
		return 1
	}
	printSuccess("Renderer binary present")
	printDetail("%s", resolved)
	return 0
}

// checkDot reports Graphviz availability. Missing dot is only a warning:
// sequence diagrams render without it, everything else needs it.
func (c *CLI) checkDot(dot string) {
	if dot == "" || dot == plantuml.DefaultDotPath {
		dot = plantuml.DefaultDotPath
	}
	path, err := exec.LookPath(dot)
	if err != nil {
		printWarning("Graphviz %q not found; only sequence diagrams will render", dot)
		return
	}
	printSuccess("Graphviz present")
	printDetail("%s", path)
}

// checkRender performs a real render of a tiny diagram, bypassing the cache.
func (c *CLI) checkRender(ctx context.Context) int {
	runner, err := c.newRunner(ctx, true)
	if err != nil {
		printError("Pipeline setup failed: %v", err)
		return 1
	}
	defer runner.Close()

	start := time.Now()
	res, err := runner.Render(ctx, pipeline.Request{
		Source: doctorSource,
		Format: plantuml.FormatASCII,
	})
	if err != nil {
		printError("Test render failed: %v", err)
		return 1
	}
	printSuccess("Test render works")
	printDetail("%s in %s", formatBytes(len(res.Artifact)), time.Since(start).Round(time.Millisecond))
	return 0
}

// jarPath extracts the archive path from a resolved command, or "" when the
// renderer is a plain binary.
func jarPath(command plantuml.Command) string {
	for i, arg := range command.Args {
		if arg == "-jar" && i+1 < len(command.Args) {
			return command.Args[i+1]
		}
	}
	return ""
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// orDefault substitutes a display default for empty settings.
func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
