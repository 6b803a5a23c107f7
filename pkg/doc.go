// Package pkg provides the core libraries for plantpipe diagram rendering.
//
// # Overview
//
// Plantpipe pipes PlantUML diagram source through a locally installed
// renderer and caches every artifact under a deterministic, URL-safe key.
// The pkg directory is organized as:
//
//  1. [encoder] - Deterministic source-to-key compression
//  2. [cache] - Tagged artifact storage with interchangeable backends
//  3. [plantuml] - Renderer process resolution and supervision
//  4. [pipeline] - Orchestration (encode → lookup → render → store)
//  5. [config] - TOML configuration with XDG defaults
//
// # Architecture
//
// The typical data flow through plantpipe:
//
//	PlantUML source
//	         ↓
//	    [encoder] package (DEFLATE + URL-safe alphabet → cache key)
//	         ↓
//	    [cache] package (lookup by key and format namespace)
//	         ↓ miss
//	    [plantuml] package (launch renderer, feed stdin, collect stdout)
//	         ↓
//	    ascii/PNG/SVG artifact + image map
//
// # Quick Start
//
// Render a diagram through the cached pipeline:
//
//	import (
//	    "context"
//	    "github.com/charmbracelet/log"
//	    "github.com/plantpipe/plantpipe/pkg/cache"
//	    "github.com/plantpipe/plantpipe/pkg/pipeline"
//	    "github.com/plantpipe/plantpipe/pkg/plantuml"
//	)
//
//	// 1. Open a cache backend
//	store, _ := cache.NewFileCache("/tmp/diagrams")
//
//	// 2. Point at a local renderer
//	renderer := plantuml.NewRenderer(plantuml.Settings{JarPath: "plantuml.jar"}, log.Default())
//
//	// 3. Assemble and run the pipeline
//	runner := pipeline.NewRunner(store, renderer, log.Default())
//	res, _ := runner.Render(context.Background(), pipeline.Request{
//	    Source: "@startuml\nAlice -> Bob\n@enduml",
//	    Format: plantuml.FormatSVG,
//	})
//
// # Main Packages
//
// [encoder] - The key codec. Compresses diagram source with raw DEFLATE and
// encodes it in a 64-character URL-safe alphabet. Encoding is deterministic
// and reversible, so keys double as a compact transport form of the source.
//
// [cache] - Artifact storage keyed by (namespace, diagram ID). One diagram's
// artifacts, image map and access stamp share an ID across namespaces and
// are pruned together. Backends: memory, file, SQLite, Redis, MongoDB, and
// a null cache for bypass.
//
// [plantuml] - Renderer supervision. Resolves the configured executable
// (.jar archives get a java runtime prefix), launches it headless per
// render, and maps exit conditions onto ErrConfiguration, ErrLaunch, and
// ErrRender.
//
// [pipeline] - The render orchestrator used by CLI and server. Guarantees
// cache-hit-or-render semantics, pairs PNG artifacts with their image maps,
// and stamps diagram access times for pruning. Presenters turn results into
// raw bytes or standalone HTML pages.
//
// [config] - TOML configuration resolved from an explicit path,
// $PLANTPIPE_CONFIG, or ~/.config/plantpipe/config.toml.
//
// [observability] - Optional hooks for metrics and tracing, no-op by
// default, registered at startup by the binary.
//
// [buildinfo] - Version, commit, and build date injected via ldflags.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/cache/...              # Specific package
//	go test -tags integration ./pkg/...  # Include Redis/MongoDB tests
//
// [encoder]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/encoder
// [cache]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/cache
// [plantuml]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/plantuml
// [pipeline]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/pipeline
// [config]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/config
// [observability]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/plantpipe/plantpipe/pkg/buildinfo
package pkg
