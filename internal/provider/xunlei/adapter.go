// Package xunlei is a placeholder adapter for Xunlei Pan. The share URL
// grammar is recognized so links route to the right provider, but every
// drive capability reports not-implemented until the API integration
// lands.
package xunlei

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/pansave/pansave/internal/drive"
)

// Adapter implements drive.Adapter with stubbed capabilities.
type Adapter struct {
	logger *slog.Logger
}

// New creates the placeholder adapter. The credential is accepted and
// ignored so configured accounts validate.
func New(_ string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{logger: logger.With(slog.String("provider", string(drive.KindXunlei)))}
}

// Kind implements drive.Adapter.
func (a *Adapter) Kind() drive.Kind {
	return drive.KindXunlei
}

// Authenticate implements drive.Adapter. The adapter is always inactive.
func (a *Adapter) Authenticate(context.Context) (drive.AccountInfo, error) {
	a.logger.Warn("provider support is not implemented, account inactive")
	return drive.AccountInfo{}, nil
}

// Active implements drive.Adapter.
func (a *Adapter) Active() bool {
	return false
}

// DisplayName implements drive.Adapter.
func (a *Adapter) DisplayName() string {
	return drive.KindXunlei.Label() + " (not implemented)"
}

func (a *Adapter) notImplemented(op string) error {
	return drive.Errf(drive.ErrNotImplemented, op, "provider support is not implemented")
}

// ListDirectory implements drive.Adapter.
func (a *Adapter) ListDirectory(context.Context, string) (drive.Listing, error) {
	return drive.Listing{}, a.notImplemented("xunlei.ListDirectory")
}

// GetShareToken implements drive.Adapter.
func (a *Adapter) GetShareToken(context.Context, string, string) (drive.ShareToken, error) {
	return drive.ShareToken{}, a.notImplemented("xunlei.GetShareToken")
}

// ListSharedDirectory implements drive.Adapter.
func (a *Adapter) ListSharedDirectory(context.Context, drive.ShareRef, drive.ShareToken, string) (drive.Listing, error) {
	return drive.Listing{}, a.notImplemented("xunlei.ListSharedDirectory")
}

// TransferToOwnDrive implements drive.Adapter.
func (a *Adapter) TransferToOwnDrive(context.Context, drive.TransferRequest) (drive.TransferResult, error) {
	return drive.TransferResult{}, a.notImplemented("xunlei.TransferToOwnDrive")
}

// CreateDirectory implements drive.Adapter.
func (a *Adapter) CreateDirectory(context.Context, string) (drive.FileEntry, error) {
	return drive.FileEntry{}, a.notImplemented("xunlei.CreateDirectory")
}

// Rename implements drive.Adapter.
func (a *Adapter) Rename(context.Context, string, string) error {
	return a.notImplemented("xunlei.Rename")
}

// Delete implements drive.Adapter.
func (a *Adapter) Delete(context.Context, []string) error {
	return a.notImplemented("xunlei.Delete")
}

// ResolvePaths implements drive.Adapter.
func (a *Adapter) ResolvePaths(context.Context, []string) ([]drive.PathID, error) {
	return nil, a.notImplemented("xunlei.ResolvePaths")
}

var (
	shareIDPattern  = regexp.MustCompile(`pan\.xunlei\.com/s/([a-zA-Z0-9_-]+)`)
	passcodePattern = regexp.MustCompile(`(?:pwd|password)=([a-zA-Z0-9]+)`)
	startDirPattern = regexp.MustCompile(`#/list/([a-zA-Z0-9_-]+)`)
)

// ParseShareURL implements drive.Adapter. Recognized forms:
//
//	https://pan.xunlei.com/s/{share_id}
//	https://pan.xunlei.com/s/{share_id}?pwd=xxxx
//	https://pan.xunlei.com/s/{share_id}#/list/{folder_id}
func (a *Adapter) ParseShareURL(rawURL string) drive.ShareRef {
	m := shareIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return drive.ShareRef{}
	}

	ref := drive.ShareRef{ShareID: m[1], StartDir: "0"}

	if m := passcodePattern.FindStringSubmatch(rawURL); m != nil {
		ref.Passcode = m[1]
	}

	if m := startDirPattern.FindStringSubmatch(rawURL); m != nil {
		ref.StartDir = m[1]
	}

	return ref
}
