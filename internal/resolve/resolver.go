// Package resolve translates opaque item identifiers into the
// representation a provider's listing API actually accepts, via bounded
// breadth-first search over the remote directory tree.
//
// The tree being walked is mutable remote state: it can change between
// listing calls. "Not found after a full traversal" is therefore a normal
// outcome, not a bug, and callers fall back to treating the target as the
// root rather than failing the surrounding workflow.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pansave/pansave/internal/drive"
)

// Depth bounds guarantee termination on pathological trees. Shares get a
// tighter bound than the user's own drive because share trees are listed
// with a slower, token-scoped API.
const (
	OwnDriveDepth = 10
	ShareDepth    = 5

	// maxWorkers bounds concurrent listing calls within one BFS level.
	// Provider rate limits make wider fan-out counterproductive.
	maxWorkers = 4
)

// RefKind classifies an identifier before any network round-trip.
type RefKind int

const (
	RefRoot RefKind = iota
	RefPath
	RefNumeric
	RefMalformed
)

// ClassifyRef inspects an identifier: root markers short-circuit to the
// root, path-shaped ids (leading separator) short-circuit to themselves,
// numeric ids need BFS resolution, anything else is malformed.
func ClassifyRef(ref string) RefKind {
	if drive.IsRootRef(ref) {
		return RefRoot
	}

	if strings.HasPrefix(ref, "/") {
		return RefPath
	}

	for _, r := range ref {
		if r < '0' || r > '9' {
			return RefMalformed
		}
	}

	return RefNumeric
}

// Lister lists the complete contents of one directory. The dirRef argument
// is whatever the provider's listing API accepts for that scope.
type Lister func(ctx context.Context, dirRef string) ([]drive.FileEntry, error)

// Node is one frontier element: a listable directory reference plus the
// breadcrumb accumulated from the root down to it.
type Node struct {
	Ref        string
	Breadcrumb []drive.Crumb
}

// Target is a resolved item: the matched entry and its root-to-target
// breadcrumb in strict order.
type Target struct {
	Entry      drive.FileEntry
	Breadcrumb []drive.Crumb
}

// Options configure one resolution.
type Options struct {
	// Scope keys the cache, separating own-drive from per-share lookups.
	Scope string

	// MaxDepth bounds the BFS. Zero means OwnDriveDepth.
	MaxDepth int

	// Match reports whether a listed entry is the target.
	Match func(e drive.FileEntry) bool

	// ChildRef derives the listable reference for a sub-directory entry.
	// Nil means the entry's ID is used directly.
	ChildRef func(e drive.FileEntry) string

	// KeyOf derives the cache key for a walked entry. It must produce the
	// same identifier space callers pass to Resolve and Lookup, or sibling
	// lookups will never hit the cache. Nil means the entry's ID.
	KeyOf func(e drive.FileEntry) string
}

// Resolver performs cached, bounded BFS lookups. One Resolver belongs to
// one adapter instance; the cache is transient and guarded by a mutex so
// an adapter shared across goroutines stays consistent.
type Resolver struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]Target
}

// New creates a Resolver.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		logger: logger,
		cache:  make(map[string]Target),
	}
}

// Lookup returns a previously resolved target for (scope, id).
func (r *Resolver) Lookup(scope, id string) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.cache[scope+"\x00"+id]

	return t, ok
}

// Store caches a resolved target. Resolve stores every entry it walks;
// callers that list a directory outside a walk can seed the cache here so
// sibling lookups within the same workflow cost nothing. An empty id is
// ignored.
func (r *Resolver) Store(scope, id string, t Target) {
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[scope+"\x00"+id] = t
}

// Resolve searches the tree reachable from the given frontier for an entry
// matching opts.Match, identified externally by id (used for caching and
// logging only). It returns the target and true on success. Exhausting the
// depth bound, or any listing failure along the way, degrades to (zero,
// false): the caller treats the target as the root.
func (r *Resolver) Resolve(ctx context.Context, id string, list Lister, frontier []Node, opts Options) (Target, bool) {
	if opts.Match == nil {
		return Target{}, false
	}

	if cached, ok := r.Lookup(opts.Scope, id); ok {
		return cached, true
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = OwnDriveDepth
	}

	childRef := opts.ChildRef
	if childRef == nil {
		childRef = func(e drive.FileEntry) string { return e.ID }
	}

	keyOf := opts.KeyOf
	if keyOf == nil {
		keyOf = func(e drive.FileEntry) string { return e.ID }
	}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		listings := r.listLevel(ctx, list, frontier)

		var next []Node

		for i, node := range frontier {
			for _, entry := range listings[i] {
				crumb := append(append([]drive.Crumb{}, node.Breadcrumb...), drive.Crumb{ID: entry.ID, Name: entry.Name})
				target := Target{Entry: entry, Breadcrumb: crumb}

				r.Store(opts.Scope, keyOf(entry), target)

				if opts.Match(entry) {
					r.Store(opts.Scope, id, target)
					r.logger.Debug("resolved reference",
						slog.String("scope", opts.Scope),
						slog.String("id", id),
						slog.Int("depth", depth),
					)

					return target, true
				}

				if entry.IsDir {
					next = append(next, Node{Ref: childRef(entry), Breadcrumb: crumb})
				}
			}
		}

		frontier = next
	}

	r.logger.Warn("reference not found within depth bound, falling back to root",
		slog.String("scope", opts.Scope),
		slog.String("id", id),
		slog.Int("max_depth", maxDepth),
	)

	return Target{}, false
}

// listLevel lists every frontier directory, fanning out across directories
// with a bounded worker pool. Results are positionally aligned with the
// frontier so discovery order across siblings stays deterministic even
// though the listing calls themselves race. A directory that fails to list
// contributes no entries; the walk continues with its siblings.
func (r *Resolver) listLevel(ctx context.Context, list Lister, frontier []Node) [][]drive.FileEntry {
	listings := make([][]drive.FileEntry, len(frontier))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, node := range frontier {
		g.Go(func() error {
			entries, err := list(gctx, node.Ref)
			if err != nil {
				r.logger.Debug("listing failed during resolution",
					slog.String("ref", node.Ref),
					slog.String("error", err.Error()),
				)

				return nil //nolint:nilerr // a failed branch must not abort the walk
			}

			listings[i] = entries

			return nil
		})
	}

	// Workers only return nil; Wait is for synchronization.
	_ = g.Wait()

	return listings
}

// Invalidate drops all cached resolutions. Called when the adapter's view
// of the remote tree is known to be stale (after renames or deletes).
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]Target)
}
