package aliyun

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/panhttp"
)

// Adapter implements drive.Adapter for Aliyun Drive. The credential is a
// refresh token; access tokens are minted and renewed on demand through
// golang.org/x/oauth2.
type Adapter struct {
	backend *backend
	logger  *slog.Logger

	active   bool
	nickname string
}

// New creates an adapter bound to one account's refresh token.
func New(refreshToken string, logger *slog.Logger) *Adapter {
	return NewWithClient(DefaultBaseURL, DefaultTokenURL, nil, refreshToken, logger)
}

// NewWithClient is New with explicit API and token endpoints and an HTTP
// client, for tests and proxied deployments.
func NewWithClient(baseURL, tokenURL string, httpClient *http.Client, refreshToken string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("provider", string(drive.KindAliyun)))

	cfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tokCtx := context.Background()
	if httpClient != nil {
		tokCtx = context.WithValue(tokCtx, oauth2.HTTPClient, httpClient)
	}

	ts := cfg.TokenSource(tokCtx, &oauth2.Token{RefreshToken: refreshToken})

	auth := panhttp.AuthorizerFunc(func(req *http.Request) error {
		tok, err := ts.Token()
		if err != nil {
			return err
		}

		tok.SetAuthHeader(req)

		return nil
	})

	return &Adapter{
		backend: &backend{http: panhttp.NewClient(baseURL, httpClient, auth, logger)},
		logger:  logger,
	}
}

// Kind implements drive.Adapter.
func (a *Adapter) Kind() drive.Kind {
	return drive.KindAliyun
}

// Authenticate exchanges the refresh token and loads the account profile,
// including the default drive id used by every subsequent call. Failure
// leaves the adapter inactive and is a normal, reportable outcome.
func (a *Adapter) Authenticate(ctx context.Context) (drive.AccountInfo, error) {
	user, err := a.backend.userGet(ctx)
	if err != nil {
		a.active = false
		a.logger.Warn("authentication failed, account inactive",
			slog.String("error", err.Error()),
		)

		return drive.AccountInfo{}, nil
	}

	a.active = true
	a.nickname = user.NickName
	a.backend.driveID = user.DefaultDriveID

	return drive.AccountInfo{UserID: user.UserID, Nickname: user.NickName}, nil
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

	return drive.KindAliyun.Label() + " (inactive)"
}

// ListDirectory implements drive.Adapter. References are already file ids
// on this provider; only the root aliases need translation.
func (a *Adapter) ListDirectory(ctx context.Context, dirRef string) (drive.Listing, error) {
	entries, err := a.backend.list(ctx, ownRef(dirRef))
	if err != nil {
		return drive.Listing{}, err
	}

	return drive.Listing{Entries: entries, Total: len(entries)}, nil
}

// GetShareToken implements drive.Adapter. The provider's share tokens
// expire; the deadline travels with the token.
func (a *Adapter) GetShareToken(ctx context.Context, shareID, passcode string) (drive.ShareToken, error) {
	resp, err := a.backend.shareToken(ctx, shareID, passcode)
	if err != nil {
		return drive.ShareToken{}, err
	}

	token := drive.ShareToken{Value: resp.ShareToken}
	if resp.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	return token, nil
}

// ListSharedDirectory implements drive.Adapter.
func (a *Adapter) ListSharedDirectory(ctx context.Context, share drive.ShareRef, token drive.ShareToken, dirRef string) (drive.Listing, error) {
	entries, err := a.backend.listShared(ctx, share.ShareID, token.Value, ownRef(dirRef))
	if err != nil {
		return drive.Listing{}, err
	}

	return drive.Listing{Entries: entries, Total: len(entries)}, nil
}

// TransferToOwnDrive implements drive.Adapter. The provider's save call is
// synchronous and returns the new file id, so the result carries the saved
// ids directly with no settle protocol. A file that already exists in the
// destination counts as saved, with its slot left unresolved.
func (a *Adapter) TransferToOwnDrive(ctx context.Context, req drive.TransferRequest) (drive.TransferResult, error) {
	const op = "aliyun.TransferToOwnDrive"

	if len(req.Sources) == 0 {
		return drive.TransferResult{}, drive.Errf(drive.ErrMalformedReference, op, "no source items")
	}

	destID := ownRef(req.DestDir)
	saved := make([]string, len(req.Sources))

	for i, src := range req.Sources {
		id, err := a.backend.saveTo(ctx, req.Share.ShareID, req.Token.Value, src.TransferToken, destID)
		if err != nil {
			if errors.Is(err, drive.ErrAlreadyExists) {
				a.logger.Info("item already present in destination, skipping",
					slog.String("name", src.Name),
				)

				continue
			}

			return drive.TransferResult{}, err
		}

		saved[i] = id
	}

	return drive.TransferResult{
		TaskID:      uuid.NewString(),
		Synchronous: true,
		SavedIDs:    saved,
	}, nil
}

// CreateDirectory implements drive.Adapter, walking the path segment by
// segment from the root. The provider reuses an existing directory when
// the name collides, which makes the walk idempotent.
func (a *Adapter) CreateDirectory(ctx context.Context, path string) (drive.FileEntry, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return drive.FileEntry{ID: drive.Root, Name: "/", IsDir: true}, nil
	}

	current := drive.Root

	for _, seg := range segments {
		id, err := a.backend.createFolder(ctx, current, seg)
		if err != nil {
			return drive.FileEntry{}, err
		}

		current = id
	}

	return drive.FileEntry{
		ID:    current,
		Name:  segments[len(segments)-1],
		IsDir: true,
	}, nil
}

// Rename implements drive.Adapter.
func (a *Adapter) Rename(ctx context.Context, id, newName string) error {
	const op = "aliyun.Rename"

	if drive.IsRootRef(id) {
		return drive.Errf(drive.ErrMalformedReference, op, "cannot rename the drive root")
	}

	return a.backend.rename(ctx, id, newName)
}

// Delete implements drive.Adapter, moving items to the recycle bin one by
// one. Root references are skipped.
func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	const op = "aliyun.Delete"

	targets := make([]string, 0, len(ids))

	for _, id := range ids {
		if !drive.IsRootRef(id) {
			targets = append(targets, id)
		}
	}

	if len(targets) == 0 {
		return drive.Errf(drive.ErrNotFound, op, "no resolvable items to delete")
	}

	for _, id := range targets {
		if err := a.backend.trash(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

// ResolvePaths implements drive.Adapter, descending one listing per
// segment. Paths that do not exist are omitted.
func (a *Adapter) ResolvePaths(ctx context.Context, paths []string) ([]drive.PathID, error) {
	var out []drive.PathID

nextPath:
	for _, p := range paths {
		if drive.IsRootRef(p) {
			out = append(out, drive.PathID{Path: "/", ID: drive.Root})
			continue
		}

		current := drive.Root
		segments := splitPath(p)

		for _, seg := range segments {
			entries, err := a.backend.list(ctx, current)
			if err != nil {
				if drive.Retryable(err) {
					return nil, err
				}

				continue nextPath
			}

			found := ""

			for _, e := range entries {
				if e.Name == seg {
					found = e.ID
					break
				}
			}

			if found == "" {
				continue nextPath
			}

			current = found
		}

		out = append(out, drive.PathID{Path: "/" + strings.Join(segments, "/"), ID: current})
	}

	return out, nil
}

// ownRef maps the root aliases to the provider's root sentinel and passes
// opaque ids through.
func ownRef(ref string) string {
	if drive.IsRootRef(ref) {
		return drive.Root
	}

	return ref
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
