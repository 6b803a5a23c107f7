// Package cache provides pluggable byte storage for rendered diagram
// artifacts.
//
// Values are opaque byte slices addressed by a tagged Key: a namespace naming
// the kind of value (one per output format, plus image maps and access
// stamps) and the diagram's encoded source as the ID. Entries never expire on
// their own; a stored artifact is served unconditionally until an external
// janitor removes it. Backends that support bulk removal additionally
// implement Janitor.
package cache

import (
	"context"
	"strings"
	"time"
)

// Namespace partitions cache entries by the kind of value they hold.
type Namespace string

// Namespaces used by the render pipeline. One per output format, plus the
// image map that accompanies PNG output and the last-access stamp consulted
// by Prune.
const (
	NamespaceASCII  Namespace = "ascii"
	NamespacePNG    Namespace = "png"
	NamespaceSVG    Namespace = "svg"
	NamespaceMap    Namespace = "map"
	NamespaceAccess Namespace = "ts"
)

// allNamespaces lists every namespace a single diagram may have entries
// under. Backends use it to drop a diagram's full record set.
var allNamespaces = []Namespace{
	NamespaceASCII,
	NamespacePNG,
	NamespaceSVG,
	NamespaceMap,
	NamespaceAccess,
}

// Key identifies one cached value. Entries for the same diagram share an ID
// and differ only in namespace.
type Key struct {
	Namespace Namespace
	ID        string
}

// String renders the key in its flat "<namespace>-<id>" form.
func (k Key) String() string {
	return string(k.Namespace) + "-" + k.ID
}

// Cache stores rendered artifacts keyed by namespace and diagram ID.
//
// Get reports a miss with hit=false and a nil error; errors are reserved for
// storage failures. Implementations must be safe for concurrent use and must
// return values byte-for-byte as stored.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, data []byte) error
	Delete(ctx context.Context, key Key) error
	Close() error
}

// Janitor is implemented by backends that support bulk janitorial
// operations. Prune removes every diagram whose access stamp is older than
// the cutoff and returns the number of diagrams removed; Wipe empties the
// cache and returns the number of individual entries removed.
type Janitor interface {
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	Wipe(ctx context.Context) (int, error)
}

// FormatAccessTime renders an access stamp for storage. Stamps are UTC
// RFC 3339 strings, so lexical order matches chronological order and
// backends can compare them bytewise.
func FormatAccessTime(t time.Time) []byte {
	return []byte(t.UTC().Format(time.RFC3339))
}

// ParseAccessTime parses a stored access stamp.
func ParseAccessTime(data []byte) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
}
