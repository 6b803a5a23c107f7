// Package pipeline provides the render-and-cache pipeline for plantpipe.
//
// This package implements the key → cache → render → populate flow that can
// be used by CLI and server components. By centralizing this logic, we ensure
// consistent behavior across all entry points and avoid code duplication.
//
// # Architecture
//
// A render request moves through four steps:
//
//  1. Key: derive the deterministic cache key from the diagram source
//  2. Lookup: check the cache for an existing artifact (and image map)
//  3. Render: on a miss, invoke the external renderer, map included for PNG
//  4. Populate: write artifact, map and access stamp back to the cache
//
// Cache hits are unconditional: a stored artifact is served as-is even if
// the renderer configuration changed after it was written. Eviction is a
// separate janitorial concern, driven by the access stamps this pipeline
// refreshes on every hit and write.
//
// # Usage
//
// Create a Runner and render:
//
//	runner := pipeline.NewRunner(cache, renderer, logger)
//	result, err := runner.Render(ctx, pipeline.Request{
//	    Source: "@startuml\nA -> B\n@enduml",
//	    Format: plantuml.FormatSVG,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifact
package pipeline

import (
	"fmt"
	"time"

	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// Request describes one render call.
// The zero value is not usable; Source and Format are required.
type Request struct {
	// Source is the diagram definition to render.
	Source string `json:"source"`

	// Format selects the output kind.
	Format plantuml.Format `json:"format"`

	// WorkDir is the renderer process's working directory, so relative
	// includes in the source resolve correctly. Defaults to ".".
	WorkDir string `json:"workdir,omitempty"`

	// Refresh skips the cache lookup and re-renders, overwriting the
	// cached entries.
	Refresh bool `json:"refresh,omitempty"`
}

// validateAndSetDefaults checks required fields and applies defaults.
func (req *Request) validateAndSetDefaults() error {
	if !req.Format.Valid() {
		return fmt.Errorf("invalid format %q (must be one of: ascii, png, svg)", req.Format)
	}
	if req.WorkDir == "" {
		req.WorkDir = "."
	}
	return nil
}

// Result contains the outputs of one render call.
type Result struct {
	// Key is the cache key derived from the request's source.
	Key string

	// Format is the output kind that was rendered.
	Format plantuml.Format

	// Artifact is the rendered output: UTF-8 text for ascii and svg,
	// raw image bytes for png.
	Artifact []byte

	// Map is the clickable image-map markup paired with a PNG artifact.
	// Empty for other formats and for diagrams without link regions.
	Map string

	// CacheHit reports whether the artifact came from the cache.
	CacheHit bool

	// Stats contains timing information for the miss path.
	Stats Stats
}

// Stats contains render timing information.
type Stats struct {
	RenderTime time.Duration
	MapTime    time.Duration
}
