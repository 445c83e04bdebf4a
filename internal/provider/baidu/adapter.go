package baidu

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/panhttp"
	"github.com/pansave/pansave/internal/reconcile"
	"github.com/pansave/pansave/internal/resolve"
)

// Adapter implements drive.Adapter for Baidu Netdisk.
//
// Identity model: listing calls take absolute paths, so entries are handed
// out with their path as the ID. Numeric fs_id references arriving from
// share URLs or older callers are translated by bounded BFS over the tree.
type Adapter struct {
	backend    *backend
	resolver   *resolve.Resolver
	reconciler *reconcile.Reconciler
	logger     *slog.Logger

	active   bool
	nickname string
}

// New creates an adapter bound to one account's cookie credential.
func New(credential string, logger *slog.Logger) *Adapter {
	return NewWithClient(DefaultBaseURL, nil, credential, logger)
}

// NewWithClient is New with an explicit base URL and HTTP client, for tests
// and proxied deployments.
func NewWithClient(baseURL string, httpClient *http.Client, credential string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("provider", string(drive.KindBaidu)))

	return &Adapter{
		backend:    &backend{http: panhttp.NewClient(baseURL, httpClient, panhttp.CookieAuth(credential), logger)},
		resolver:   resolve.New(logger),
		reconciler: reconcile.New(reconcile.DefaultConfig(), logger),
		logger:     logger,
	}
}

// Kind implements drive.Adapter.
func (a *Adapter) Kind() drive.Kind {
	return drive.KindBaidu
}

// Authenticate validates the cookie. Failure leaves the adapter inactive
// and is a normal, reportable outcome rather than an error.
func (a *Adapter) Authenticate(ctx context.Context) (drive.AccountInfo, error) {
	info, err := a.backend.userInfo(ctx)
	if err != nil {
		a.active = false
		a.logger.Warn("authentication failed, account inactive",
			slog.String("error", err.Error()),
		)

		return drive.AccountInfo{}, nil
	}

	a.active = true
	a.nickname = info.Nickname

	return info, nil
}

// Active implements drive.Adapter.
func (a *Adapter) Active() bool {
	return a.active
}

// DisplayName implements drive.Adapter.
func (a *Adapter) DisplayName() string {
	if a.nickname != "" {
		return a.nickname
	}

	return drive.KindBaidu.Label() + " (inactive)"
}

// ListDirectory implements drive.Adapter, translating the reference to a
// path first.
func (a *Adapter) ListDirectory(ctx context.Context, dirRef string) (drive.Listing, error) {
	entries, err := a.backend.list(ctx, a.ownRefToPath(ctx, dirRef))
	if err != nil {
		return drive.Listing{}, err
	}

	return drive.Listing{Entries: entries, Total: len(entries)}, nil
}

// GetShareToken implements drive.Adapter. The returned token is the share
// session key; the provider does not expire it while the share lives.
func (a *Adapter) GetShareToken(ctx context.Context, shareID, passcode string) (drive.ShareToken, error) {
	sekey, err := a.backend.verifyShare(ctx, shareID, passcode)
	if err != nil {
		return drive.ShareToken{}, err
	}

	return drive.ShareToken{Value: sekey}, nil
}

// ListSharedDirectory implements drive.Adapter. Root requests list the
// share's own root directly; numeric references are resolved by BFS over
// the share tree, with the share's top level reused as the initial
// frontier rather than re-derived.
func (a *Adapter) ListSharedDirectory(ctx context.Context, share drive.ShareRef, token drive.ShareToken, dirRef string) (drive.Listing, error) {
	dirPath, breadcrumb, err := a.shareRefToPath(ctx, share, token, dirRef)
	if err != nil {
		return drive.Listing{}, err
	}

	entries, err := a.backend.listShared(ctx, share.ShareID, token.Value, dirPath)
	if err != nil {
		return drive.Listing{}, err
	}

	return drive.Listing{Entries: entries, Breadcrumb: breadcrumb, Total: len(entries)}, nil
}

// TransferToOwnDrive implements drive.Adapter. The provider's transfer call
// is synchronous but returns no identifiers, so the new ids are recovered
// by the snapshot/settle/diff protocol.
func (a *Adapter) TransferToOwnDrive(ctx context.Context, req drive.TransferRequest) (drive.TransferResult, error) {
	const op = "baidu.TransferToOwnDrive"

	if len(req.Sources) == 0 {
		return drive.TransferResult{}, drive.Errf(drive.ErrMalformedReference, op, "no source items")
	}

	destPath := a.ownRefToPath(ctx, req.DestDir)

	before, err := a.backend.list(ctx, destPath)
	if err != nil {
		return drive.TransferResult{}, err
	}

	fsIDs := make([]string, 0, len(req.Sources))
	names := make([]string, 0, len(req.Sources))

	for _, src := range req.Sources {
		fsIDs = append(fsIDs, src.TransferToken)
		names = append(names, src.Name)
	}

	for start := 0; start < len(fsIDs); start += transferBatchSize {
		end := min(start+transferBatchSize, len(fsIDs))

		if err := a.backend.transfer(ctx, req.Share.ShareID, req.Token.Value, destPath, fsIDs[start:end]); err != nil {
			return drive.TransferResult{}, err
		}
	}

	result := drive.TransferResult{
		TaskID:      uuid.NewString(),
		Synchronous: true,
	}

	saved, err := a.reconciler.Reconcile(ctx, reconcile.Take(before), names, func(ctx context.Context) ([]drive.FileEntry, error) {
		return a.backend.list(ctx, destPath)
	})

	switch {
	case errors.Is(err, reconcile.ErrSkipped):
		// The transfer already completed remotely; the workflow was
		// cancelled during the settle wait, so the new ids stay unresolved.
		a.logger.Warn("reconciliation skipped, saved ids unresolved",
			slog.Int("items", len(names)),
		)

		result.SavedIDs = make([]string, len(names))
	case err != nil:
		return drive.TransferResult{}, err
	default:
		result.SavedIDs = saved
	}

	return result, nil
}

// CreateDirectory implements drive.Adapter, creating missing segments one
// by one and reusing the ones that already exist.
func (a *Adapter) CreateDirectory(ctx context.Context, path string) (drive.FileEntry, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return drive.FileEntry{ID: "/", Name: "/", IsDir: true}, nil
	}

	current := ""
	for _, seg := range segments {
		current += "/" + seg

		if _, err := a.backend.mkdir(ctx, current); err != nil {
			if errors.Is(err, drive.ErrAlreadyExists) {
				continue
			}

			return drive.FileEntry{}, err
		}
	}

	return drive.FileEntry{
		ID:    current,
		Name:  segments[len(segments)-1],
		IsDir: true,
	}, nil
}

// Rename implements drive.Adapter.
func (a *Adapter) Rename(ctx context.Context, id, newName string) error {
	const op = "baidu.Rename"

	itemPath := a.ownRefToPath(ctx, id)
	if itemPath == "/" {
		return drive.Errf(drive.ErrUnresolvedReference, op, "could not resolve %q to a path", id)
	}

	if err := a.backend.rename(ctx, itemPath, newName); err != nil {
		return err
	}

	// Cached resolutions now point at stale paths.
	a.resolver.Invalidate()

	return nil
}

// Delete implements drive.Adapter, best-effort: references that cannot be
// resolved are skipped, everything resolvable goes in one batch.
func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	const op = "baidu.Delete"

	paths := make([]string, 0, len(ids))

	for _, id := range ids {
		if p := a.ownRefToPath(ctx, id); p != "/" {
			paths = append(paths, p)
		}
	}

	if len(paths) == 0 {
		return drive.Errf(drive.ErrNotFound, op, "no resolvable items to delete")
	}

	if err := a.backend.remove(ctx, paths); err != nil {
		return err
	}

	a.resolver.Invalidate()

	return nil
}

// ResolvePaths implements drive.Adapter. Identifiers are paths on this
// provider, so resolution is an existence check against the parent
// directory; missing paths are omitted.
func (a *Adapter) ResolvePaths(ctx context.Context, paths []string) ([]drive.PathID, error) {
	var out []drive.PathID

	for _, p := range paths {
		if drive.IsRootRef(p) {
			out = append(out, drive.PathID{Path: "/", ID: "/"})
			continue
		}

		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}

		parent, name := parentAndName(p)

		entries, err := a.backend.list(ctx, parent)
		if err != nil {
			if drive.Retryable(err) {
				return nil, err
			}

			continue
		}

		for _, e := range entries {
			if e.Name == name {
				out = append(out, drive.PathID{Path: p, ID: e.ID})
				break
			}
		}
	}

	return out, nil
}

// ownRefToPath translates a directory reference into the path the listing
// API accepts. Resolution failures degrade to the root with a logged
// warning: operating on a best-guess directory beats failing the workflow.
func (a *Adapter) ownRefToPath(ctx context.Context, ref string) string {
	switch resolve.ClassifyRef(ref) {
	case resolve.RefRoot:
		return "/"
	case resolve.RefPath:
		return ref
	case resolve.RefMalformed:
		a.logger.Warn("unrecognized reference format, treating as root",
			slog.String("ref", ref),
		)

		return "/"
	}

	target, ok := a.resolver.Resolve(ctx, ref,
		func(ctx context.Context, dirRef string) ([]drive.FileEntry, error) {
			return a.backend.list(ctx, dirRef)
		},
		[]resolve.Node{{Ref: "/"}},
		resolve.Options{
			Scope:    "own",
			MaxDepth: resolve.OwnDriveDepth,
			Match:    func(e drive.FileEntry) bool { return e.TransferToken == ref },
			KeyOf:    func(e drive.FileEntry) string { return e.TransferToken },
		},
	)
	if !ok {
		return "/"
	}

	return target.Entry.ID
}

// shareRefToPath translates a share-scoped directory reference into a
// listable path plus its breadcrumb. The share's top-level listing seeds
// the BFS frontier.
func (a *Adapter) shareRefToPath(ctx context.Context, share drive.ShareRef, token drive.ShareToken, ref string) (string, []drive.Crumb, error) {
	switch resolve.ClassifyRef(ref) {
	case resolve.RefRoot:
		return "", nil, nil
	case resolve.RefPath:
		return ref, nil, nil
	case resolve.RefMalformed:
		a.logger.Warn("unrecognized share reference format, using share root",
			slog.String("ref", ref),
		)

		return "", nil, nil
	}

	scope := "share:" + share.ShareID

	if cached, ok := a.resolver.Lookup(scope, ref); ok {
		return cached.Entry.ID, cached.Breadcrumb, nil
	}

	top, err := a.backend.listShared(ctx, share.ShareID, token.Value, "")
	if err != nil {
		return "", nil, err
	}

	// The top level may already hold the target. Every entry is cached so
	// later sibling lookups skip the walk entirely.
	frontier := make([]resolve.Node, 0, len(top))

	var hit *resolve.Target

	for _, e := range top {
		crumb := []drive.Crumb{{ID: e.ID, Name: e.Name}}

		a.resolver.Store(scope, e.TransferToken, resolve.Target{Entry: e, Breadcrumb: crumb})

		if e.TransferToken == ref && hit == nil {
			hit = &resolve.Target{Entry: e, Breadcrumb: crumb}
		}

		if e.IsDir {
			frontier = append(frontier, resolve.Node{Ref: e.ID, Breadcrumb: crumb})
		}
	}

	if hit != nil {
		return hit.Entry.ID, hit.Breadcrumb, nil
	}

	target, ok := a.resolver.Resolve(ctx, ref,
		func(ctx context.Context, dirRef string) ([]drive.FileEntry, error) {
			return a.backend.listShared(ctx, share.ShareID, token.Value, dirRef)
		},
		frontier,
		resolve.Options{
			Scope:    scope,
			MaxDepth: resolve.ShareDepth,
			Match:    func(e drive.FileEntry) bool { return e.TransferToken == ref },
			KeyOf:    func(e drive.FileEntry) string { return e.TransferToken },
		},
	)
	if !ok {
		return "", nil, nil
	}

	return target.Entry.ID, target.Breadcrumb, nil
}

// splitPath breaks an absolute path into its non-empty segments.
func splitPath(path string) []string {
	var segments []string

	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return segments
}

// lastSegment returns the final segment of an absolute path.
func lastSegment(path string) string {
	_, name := parentAndName(path)
	return name
}

// parentAndName splits a cleaned absolute path into its parent directory
// and final segment.
func parentAndName(path string) (string, string) {
	trimmed := strings.TrimRight(path, "/")

	idx := strings.LastIndexByte(trimmed, '/')
	if idx <= 0 {
		return "/", strings.TrimPrefix(trimmed, "/")
	}

	return trimmed[:idx], trimmed[idx+1:]
}
