package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/plantpipe/plantpipe/pkg/cache"
	"github.com/plantpipe/plantpipe/pkg/encoder"
	"github.com/plantpipe/plantpipe/pkg/observability"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// Renderer produces artifacts for diagram source. *plantuml.Renderer is the
// production implementation; tests substitute stubs.
type Renderer interface {
	Render(ctx context.Context, source string, format plantuml.Format, workDir string) ([]byte, error)
	RenderMap(ctx context.Context, source string, workDir string) (string, error)
}

// Runner encapsulates render execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store render results. Multiple goroutines can safely use the same Runner;
// concurrent misses for the same source are not coordinated and may each
// spawn a renderer, which is wasteful but benign since identical source
// produces identical cache writes.
type Runner struct {
	Cache    cache.Cache
	Renderer Renderer
	Logger   *log.Logger
}

// NewRunner creates a runner with the given cache and renderer.
// If c is nil, a NullCache is used (caching disabled).
// If logger is nil, the default logger is used.
// The renderer must be non-nil.
func NewRunner(c cache.Cache, renderer Renderer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:    c,
		Renderer: renderer,
		Logger:   logger,
	}
}

// Render runs one request through the full key → cache → render → populate
// flow. Renderer failures propagate unmodified, with nothing written to the
// cache; cache I/O failures propagate as well.
func (r *Runner) Render(ctx context.Context, req Request) (*Result, error) {
	if err := req.validateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	key := encoder.Encode(req.Source)
	artifactKey := cache.Key{Namespace: artifactNamespace(req.Format), ID: key}
	logger := r.Logger.With("render_id", uuid.NewString(), "format", req.Format)

	if !req.Refresh {
		result, hit, err := r.fromCache(ctx, artifactKey, req.Format)
		if err != nil {
			return nil, err
		}
		if hit {
			if err := r.touch(ctx, key); err != nil {
				return nil, err
			}
			observability.Cache().OnCacheHit(ctx, string(artifactKey.Namespace))
			logger.Debug("cache hit", "bytes", len(result.Artifact))
			return result, nil
		}
		observability.Cache().OnCacheMiss(ctx, string(artifactKey.Namespace))
	}

	result := &Result{Key: key, Format: req.Format}

	renderStart := time.Now()
	observability.Render().OnRenderStart(ctx, string(req.Format))
	artifact, err := r.Renderer.Render(ctx, req.Source, req.Format, req.WorkDir)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Render().OnRenderComplete(ctx, string(req.Format), result.Stats.RenderTime, err)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact

	if req.Format == plantuml.FormatPNG {
		mapStart := time.Now()
		observability.Render().OnRenderStart(ctx, "map")
		imageMap, err := r.Renderer.RenderMap(ctx, req.Source, req.WorkDir)
		result.Stats.MapTime = time.Since(mapStart)
		observability.Render().OnRenderComplete(ctx, "map", result.Stats.MapTime, err)
		if err != nil {
			return nil, err
		}
		result.Map = imageMap
	}

	// Artifact before map: a crash in between leaves a present artifact
	// with a missing map, which the next lookup detects and re-renders.
	// The reverse order could leave a stale map paired silently with a
	// newer artifact.
	if err := r.store(ctx, artifactKey, artifact); err != nil {
		return nil, err
	}
	if req.Format == plantuml.FormatPNG {
		mapKey := cache.Key{Namespace: cache.NamespaceMap, ID: key}
		if err := r.store(ctx, mapKey, []byte(result.Map)); err != nil {
			return nil, err
		}
	}
	if err := r.touch(ctx, key); err != nil {
		return nil, err
	}

	logger.Info("rendered diagram",
		"bytes", len(artifact),
		"map_bytes", len(result.Map),
		"duration", result.Stats.RenderTime)
	return result, nil
}

// fromCache attempts to serve the request from the cache. For PNG a present
// artifact with a missing map counts as a miss: the pair is written artifact
// first, so that state marks an interrupted write and a re-render repairs it.
func (r *Runner) fromCache(ctx context.Context, artifactKey cache.Key, format plantuml.Format) (*Result, bool, error) {
	artifact, hit, err := r.Cache.Get(ctx, artifactKey)
	if err != nil {
		return nil, false, fmt.Errorf("cache read: %w", err)
	}
	if !hit {
		return nil, false, nil
	}

	result := &Result{
		Key:      artifactKey.ID,
		Format:   format,
		Artifact: artifact,
		CacheHit: true,
	}
	if format == plantuml.FormatPNG {
		mapData, mapHit, err := r.Cache.Get(ctx, cache.Key{Namespace: cache.NamespaceMap, ID: artifactKey.ID})
		if err != nil {
			return nil, false, fmt.Errorf("cache read: %w", err)
		}
		if !mapHit {
			return nil, false, nil
		}
		result.Map = string(mapData)
	}
	return result, true, nil
}

// store writes one cache entry and reports it to the cache hooks.
func (r *Runner) store(ctx context.Context, key cache.Key, data []byte) error {
	if err := r.Cache.Set(ctx, key, data); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	observability.Cache().OnCacheSet(ctx, string(key.Namespace), len(data))
	return nil
}

// touch refreshes the diagram's last-access stamp. Stamps never move
// backward: a concurrent render may already have written a newer one.
func (r *Runner) touch(ctx context.Context, id string) error {
	key := cache.Key{Namespace: cache.NamespaceAccess, ID: id}
	now := time.Now()
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		if last, perr := cache.ParseAccessTime(data); perr == nil && last.After(now) {
			return nil
		}
	}
	return r.store(ctx, key, cache.FormatAccessTime(now))
}

// artifactNamespace maps an output format to its cache namespace.
func artifactNamespace(format plantuml.Format) cache.Namespace {
	switch format {
	case plantuml.FormatASCII:
		return cache.NamespaceASCII
	case plantuml.FormatPNG:
		return cache.NamespacePNG
	case plantuml.FormatSVG:
		return cache.NamespaceSVG
	}
	return cache.Namespace(format)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
