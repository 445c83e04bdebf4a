package baidu

import (
	"regexp"

	"github.com/pansave/pansave/internal/drive"
)

var (
	shareIDPattern  = regexp.MustCompile(`pan\.baidu\.com/s/([a-zA-Z0-9_-]+)`)
	surlPattern     = regexp.MustCompile(`surl=([a-zA-Z0-9_-]+)`)
	passcodePattern = regexp.MustCompile(`(?:pwd|password)=([a-zA-Z0-9]+)`)
	hashPassPattern = regexp.MustCompile(`#([a-zA-Z0-9]{4})\b`)
	startDirPattern = regexp.MustCompile(`#/list/share/(\w+)`)
)

// ParseShareURL implements drive.Adapter. Recognized forms:
//
//	https://pan.baidu.com/s/1ABCdefGHI
//	https://pan.baidu.com/s/1ABCdefGHI?pwd=xxxx
//	https://pan.baidu.com/share/init?surl=ABCdefGHI
//
// A trailing #xxxx carries the passcode and #/list/share/{fid} pins the
// starting directory. Unrecognized input yields a zero ShareRef, never an
// error.
func (a *Adapter) ParseShareURL(rawURL string) drive.ShareRef {
	ref := drive.ShareRef{StartDir: "/"}

	if m := shareIDPattern.FindStringSubmatch(rawURL); m != nil {
		ref.ShareID = m[1]
	} else if m := surlPattern.FindStringSubmatch(rawURL); m != nil {
		// The short form drops the leading "1" of the share id.
		ref.ShareID = "1" + m[1]
	}

	if m := passcodePattern.FindStringSubmatch(rawURL); m != nil {
		ref.Passcode = m[1]
	} else if m := hashPassPattern.FindStringSubmatch(rawURL); m != nil {
		ref.Passcode = m[1]
	}

	if m := startDirPattern.FindStringSubmatch(rawURL); m != nil {
		ref.StartDir = m[1]
	}

	if !ref.Recognized() {
		return drive.ShareRef{}
	}

	return ref
}
