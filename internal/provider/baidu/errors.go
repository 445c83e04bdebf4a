// Package baidu implements the drive.Adapter contract for Baidu Netdisk,
// a path-addressed provider: the listing API takes path strings, while
// items also carry a numeric fs_id. Identifiers handed to callers are
// paths; numeric references are resolved by bounded BFS.
package baidu

import (
	"github.com/pansave/pansave/internal/drive"
)

// errnoEntry maps one provider errno to a taxonomy sentinel and the message
// shown to users.
type errnoEntry struct {
	sentinel error
	message  string
}

// errnoTable is the provider's error vocabulary. Anything not listed maps
// to drive.ErrUnknown with the raw errno in the message.
var errnoTable = map[int]errnoEntry{
	-6:     {drive.ErrCredentialInvalid, "authentication failed, check that the cookie is valid"},
	-21:    {drive.ErrCredentialInvalid, "account is locked"},
	-65:    {drive.ErrRateLimited, "request rate too high, retry later"},
	2:      {drive.ErrMalformedReference, "invalid request parameter"},
	-1:     {drive.ErrShareNotFound, "share link does not exist"},
	105:    {drive.ErrShareExpired, "share link has expired"},
	145:    {drive.ErrShareExpired, "share link is no longer valid"},
	4:      {drive.ErrSharePasscodeInvalid, "share passcode is wrong"},
	200025: {drive.ErrSharePasscodeInvalid, "share passcode is wrong"},
	-7:     {drive.ErrShareNotFound, "shared directory is pending review"},
	-9:     {drive.ErrNotFound, "file does not exist or was deleted"},
	31066:  {drive.ErrNotFound, "directory does not exist"},
	31061:  {drive.ErrAlreadyExists, "file already exists"},
	31299:  {drive.ErrPermissionOrQuota, "directory creation failed"},
	-10:    {drive.ErrPermissionOrQuota, "drive quota exhausted"},
	-3:     {drive.ErrPermissionOrQuota, "transfer exceeds the per-call file limit"},
	111:    {drive.ErrRateLimited, "another asynchronous task is still running"},
	12:     {drive.ErrUnknown, "transfer failed"},
}

// errnoError converts a non-zero provider errno into a taxonomy error.
func errnoError(errno int, op string) error {
	if errno == 0 {
		return nil
	}

	if entry, ok := errnoTable[errno]; ok {
		return drive.Errf(entry.sentinel, op, "%s (errno=%d)", entry.message, errno)
	}

	return drive.Errf(drive.ErrUnknown, op, "unexpected provider error (errno=%d)", errno)
}
