package drive

import (
	"time"
)

// Root is the unified root directory reference. Each adapter translates it
// to whatever its backend expects ("/" for path-addressed providers, the
// provider's own root sentinel for id-addressed ones).
const Root = "root"

// IsRootRef reports whether a directory reference means the root. The empty
// string and the legacy "0" marker are accepted alongside Root and "/"
// because share URLs and older configs encode root all four ways.
func IsRootRef(ref string) bool {
	return ref == "" || ref == "0" || ref == "/" || ref == Root
}

// FileEntry is the unified record every listing operation returns.
// ID is the stable reference for subsequent calls against the same adapter
// instance; it is opaque and must not be assumed numeric, path-like, or
// comparable across providers.
type FileEntry struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsDir         bool      `json:"is_dir"`
	Size          int64     `json:"size"`
	ModifiedAt    time.Time `json:"modified_at"`
	TransferToken string    `json:"transfer_token,omitempty"`
}

// Crumb is one step of a breadcrumb, ordered root to target.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Listing is the complete contents of one directory. Adapters paginate
// internally; Entries is never a partial page. Total carries the provider's
// own count metadata and always equals len(Entries).
type Listing struct {
	Entries    []FileEntry `json:"list"`
	Breadcrumb []Crumb     `json:"breadcrumb,omitempty"`
	Total      int         `json:"_total"`
}

// ShareRef identifies a share and a starting directory within it, as parsed
// from a share URL. The zero value is the "unrecognized URL" result.
type ShareRef struct {
	ShareID    string  `json:"share_id"`
	Passcode   string  `json:"passcode,omitempty"`
	StartDir   string  `json:"start_dir"`
	Breadcrumb []Crumb `json:"breadcrumb,omitempty"`
}

// Recognized reports whether the URL matched the provider's grammar.
func (s ShareRef) Recognized() bool {
	return s.ShareID != ""
}

// ShareToken is a provider-issued token granting access to a share's
// contents. Some providers never expire theirs; ExpiresAt is zero then.
type ShareToken struct {
	Value     string    `json:"stoken"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// AccountInfo describes the authenticated user behind an adapter.
type AccountInfo struct {
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Nickname string `json:"nickname"`
}

// TransferRequest asks an adapter to copy shared items into the caller's
// own drive. Sources come from a shared-directory listing of the same share.
type TransferRequest struct {
	Sources []FileEntry
	DestDir string // destination directory reference in the caller's drive
	Share   ShareRef
	Token   ShareToken
}

// TransferResult reports the outcome of a transfer. When Synchronous is
// true, the caller may list the destination immediately; otherwise it must
// poll the task identified by TaskID. SavedIDs is aligned index-by-index
// with the request's Sources; an empty string marks a slot whose new
// identifier could not be determined.
type TransferResult struct {
	TaskID      string   `json:"task_id,omitempty"`
	Synchronous bool     `json:"sync"`
	SavedIDs    []string `json:"saved_ids"`
}

// PathID pairs a drive path with the identifier the provider resolved it to.
type PathID struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}
