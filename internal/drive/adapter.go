package drive

import (
	"context"
)

// Kind identifies a provider family. The set is closed at compile time;
// the registry selects a concrete adapter by Kind at construction, never
// by reflecting on runtime types.
type Kind string

const (
	KindBaidu  Kind = "baidu"
	KindAliyun Kind = "aliyun"
	KindXunlei Kind = "xunlei"
)

// Label returns a human-readable provider name for user-facing messages.
func (k Kind) Label() string {
	switch k {
	case KindBaidu:
		return "Baidu Netdisk"
	case KindAliyun:
		return "Aliyun Drive"
	case KindXunlei:
		return "Xunlei Pan"
	default:
		return string(k)
	}
}

// Account is one configured provider credential, owned by the configuration
// layer. Adapters consume it at construction time and never mutate it.
type Account struct {
	Name       string
	Kind       Kind
	Credential string
	Enabled    bool
	Default    bool
}

// Adapter is the capability contract every provider backend satisfies.
//
// Every operation returns a taxonomy-classified error (*Error) on failure;
// raw transport or SDK errors never escape. Operations that need network
// access take a context and honor its cancellation.
//
// An adapter instance is bound to one Account's credential and owns a
// transient resolution cache. It is not safe for concurrent mutation;
// confine an instance to one logical workflow at a time.
type Adapter interface {
	// Kind reports which provider family this adapter talks to.
	Kind() Kind

	// Authenticate validates the credential. On success the adapter becomes
	// active and exposes the account's display name. An invalid or expired
	// credential yields an inactive adapter and a nil error: callers treat
	// inactive as a normal, reportable outcome, not a failure.
	Authenticate(ctx context.Context) (AccountInfo, error)

	// Active reports whether the last Authenticate succeeded.
	Active() bool

	// DisplayName returns the authenticated account's nickname, or a
	// placeholder while inactive.
	DisplayName() string

	// ListDirectory returns the complete contents of a directory in the
	// caller's own drive, following pagination until exhausted.
	ListDirectory(ctx context.Context, dirRef string) (Listing, error)

	// GetShareToken validates that a share is reachable and returns the
	// token required to list and transfer its contents.
	GetShareToken(ctx context.Context, shareID, passcode string) (ShareToken, error)

	// ListSharedDirectory lists a directory inside a share. A root dirRef
	// uses the share's own root without any resolution round-trip.
	ListSharedDirectory(ctx context.Context, share ShareRef, token ShareToken, dirRef string) (Listing, error)

	// TransferToOwnDrive copies the requested shared items into the
	// caller's drive and reports, per request, whether completion was
	// synchronous or must be polled via the returned task handle.
	TransferToOwnDrive(ctx context.Context, req TransferRequest) (TransferResult, error)

	// CreateDirectory ensures the given absolute path exists, reusing any
	// segments already present, and returns the final directory's entry.
	CreateDirectory(ctx context.Context, path string) (FileEntry, error)

	// Rename gives the item a new display name.
	Rename(ctx context.Context, id, newName string) error

	// Delete removes the given items, best-effort where the provider
	// supports batching.
	Delete(ctx context.Context, ids []string) error

	// ResolvePaths maps absolute drive paths to provider identifiers.
	// Paths that do not exist are omitted from the result.
	ResolvePaths(ctx context.Context, paths []string) ([]PathID, error)

	// ParseShareURL extracts a ShareRef from a share URL using the
	// provider's grammar. Pure: no network calls, total over all inputs.
	// Unrecognized URLs yield the zero ShareRef.
	ParseShareURL(url string) ShareRef
}
