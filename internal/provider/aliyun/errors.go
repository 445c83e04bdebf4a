// Package aliyun implements the drive.Adapter contract for Aliyun Drive, an
// id-addressed provider: every file and directory is referenced by an opaque
// file_id and "root" names the drive root. The API reports failures as HTTP
// errors with a machine code in the body, so classification refines the
// transport-level mapping by code substring.
package aliyun

import (
	"strings"

	"github.com/pansave/pansave/internal/drive"
)

// codeEntry maps one provider error code to a taxonomy sentinel and the
// message shown to users.
type codeEntry struct {
	substr   string
	sentinel error
	message  string
}

// codeTable is scanned in order; the first matching substring wins. More
// specific codes come before generic ones.
var codeTable = []codeEntry{
	{"ShareLink is cancelled", drive.ErrShareExpired, "share link was cancelled by its owner"},
	{"ShareLink is expired", drive.ErrShareExpired, "share link has expired"},
	{"NotFound.ShareLink", drive.ErrShareNotFound, "share link does not exist"},
	{"InvalidResource.SharePwd", drive.ErrSharePasscodeInvalid, "share passcode is wrong"},
	{"share_pwd", drive.ErrSharePasscodeInvalid, "share passcode is wrong"},
	{"ShareLinkTokenInvalid", drive.ErrSharePasscodeInvalid, "share token is no longer valid"},
	{"QuotaExhausted", drive.ErrPermissionOrQuota, "drive quota exhausted"},
	{"FileAlreadyExists", drive.ErrAlreadyExists, "file already exists"},
	{"AccessTokenInvalid", drive.ErrCredentialInvalid, "access token is invalid"},
	{"RefreshTokenExpired", drive.ErrCredentialInvalid, "refresh token has expired, re-authorize the account"},
	{"UserNotLogin", drive.ErrCredentialInvalid, "account is not logged in"},
	{"NotFound.File", drive.ErrNotFound, "file does not exist"},
	{"NotFound.FileId", drive.ErrNotFound, "file id does not exist"},
	{"TooManyRequests", drive.ErrRateLimited, "request rate too high, retry later"},
}

// refineError re-classifies a transport error using the provider code echoed
// in its message. Errors without a known code pass through unchanged.
func refineError(err error, op string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	for _, entry := range codeTable {
		if strings.Contains(msg, entry.substr) {
			return drive.Errf(entry.sentinel, op, "%s", entry.message)
		}
	}

	return err
}
