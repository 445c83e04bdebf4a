package aliyun

import (
	"regexp"

	"github.com/pansave/pansave/internal/drive"
)

var (
	shareIDPattern  = regexp.MustCompile(`(?:aliyundrive|alipan)\.com/s/([a-zA-Z0-9]+)`)
	passcodePattern = regexp.MustCompile(`(?:pwd|password|code)=([a-zA-Z0-9]+)`)
	startDirPattern = regexp.MustCompile(`/folder/([a-zA-Z0-9]+)`)
)

// ParseShareURL implements drive.Adapter. Recognized forms:
//
//	https://www.aliyundrive.com/s/{share_id}
//	https://www.alipan.com/s/{share_id}
//	https://www.aliyundrive.com/s/{share_id}/folder/{folder_id}
//
// A pwd, password or code query parameter carries the passcode.
// Unrecognized input yields a zero ShareRef, never an error.
func (a *Adapter) ParseShareURL(rawURL string) drive.ShareRef {
	m := shareIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return drive.ShareRef{}
	}

	ref := drive.ShareRef{ShareID: m[1], StartDir: drive.Root}

	if m := passcodePattern.FindStringSubmatch(rawURL); m != nil {
		ref.Passcode = m[1]
	}

	if m := startDirPattern.FindStringSubmatch(rawURL); m != nil {
		ref.StartDir = m[1]
	}

	return ref
}
