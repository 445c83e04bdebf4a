// Package drive defines the unified capability contract that every cloud
// storage provider backend implements, along with the shared data model
// and the error taxonomy providers map their native failures into.
package drive

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider failure classification.
// Use errors.Is(err, drive.ErrNotFound) to check.
var (
	ErrCredentialInvalid    = errors.New("drive: credential invalid")
	ErrNotFound             = errors.New("drive: not found")
	ErrAlreadyExists        = errors.New("drive: already exists")
	ErrPermissionOrQuota    = errors.New("drive: permission denied or quota exhausted")
	ErrRateLimited          = errors.New("drive: rate limited")
	ErrMalformedReference   = errors.New("drive: malformed reference")
	ErrUnresolvedReference  = errors.New("drive: unresolved reference")
	ErrNotImplemented       = errors.New("drive: not implemented")
	ErrTransientNetwork     = errors.New("drive: transient network failure")
	ErrShareExpired         = errors.New("drive: share link expired")
	ErrSharePasscodeInvalid = errors.New("drive: share passcode invalid")
	ErrShareNotFound        = errors.New("drive: share not found")
	ErrUnknown              = errors.New("drive: unknown provider error")
)

// Stable envelope codes, one per sentinel. These are part of the caller-facing
// contract: surfaces render them directly, so they must not be renumbered.
const (
	codeOK                   = 0
	codeUnknown              = 1
	codeCredentialInvalid    = 10
	codeNotFound             = 11
	codeAlreadyExists        = 12
	codePermissionOrQuota    = 13
	codeRateLimited          = 14
	codeMalformedReference   = 15
	codeUnresolvedReference  = 16
	codeTransientNetwork     = 17
	codeShareExpired         = 20
	codeSharePasscodeInvalid = 21
	codeShareNotFound        = 22
	codeNotImplemented       = 99
)

// Error wraps a taxonomy sentinel with the operation that failed and the
// provider's own message, preserved for diagnostics. Providers return *Error
// from every operation so callers can rely on errors.Is across backends.
type Error struct {
	Op      string // operation name, e.g. "baidu.ListDirectory"
	Message string // provider-native detail, may be empty
	Err     error  // taxonomy sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errf builds a taxonomy error for the given operation with a formatted
// provider message.
func Errf(sentinel error, op, format string, args ...any) *Error {
	return &Error{
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// Code maps an error to its stable envelope code. nil maps to 0.
// Errors carrying no taxonomy sentinel map to the unknown code.
func Code(err error) int {
	switch {
	case err == nil:
		return codeOK
	case errors.Is(err, ErrCredentialInvalid):
		return codeCredentialInvalid
	case errors.Is(err, ErrNotFound):
		return codeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return codeAlreadyExists
	case errors.Is(err, ErrPermissionOrQuota):
		return codePermissionOrQuota
	case errors.Is(err, ErrRateLimited):
		return codeRateLimited
	case errors.Is(err, ErrMalformedReference):
		return codeMalformedReference
	case errors.Is(err, ErrUnresolvedReference):
		return codeUnresolvedReference
	case errors.Is(err, ErrTransientNetwork):
		return codeTransientNetwork
	case errors.Is(err, ErrShareExpired):
		return codeShareExpired
	case errors.Is(err, ErrSharePasscodeInvalid):
		return codeSharePasscodeInvalid
	case errors.Is(err, ErrShareNotFound):
		return codeShareNotFound
	case errors.Is(err, ErrNotImplemented):
		return codeNotImplemented
	default:
		return codeUnknown
	}
}

// Retryable reports whether an error is worth retrying at the backend level.
// Rate limiting and transient network failures are; everything else is a
// definitive answer from the provider.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransientNetwork)
}
