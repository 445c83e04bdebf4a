package baidu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pansave/pansave/internal/drive"
)

func TestParseShareURL(t *testing.T) {
	a := New("BDUSS=test", nil)

	cases := []struct {
		name string
		url  string
		want drive.ShareRef
	}{
		{
			name: "plain link",
			url:  "https://pan.baidu.com/s/1AbC-def_GHI",
			want: drive.ShareRef{ShareID: "1AbC-def_GHI", StartDir: "/"},
		},
		{
			name: "pwd query",
			url:  "https://pan.baidu.com/s/1AbCdefGHI?pwd=ab12",
			want: drive.ShareRef{ShareID: "1AbCdefGHI", Passcode: "ab12", StartDir: "/"},
		},
		{
			name: "password query",
			url:  "https://pan.baidu.com/s/1AbCdefGHI?password=xy9z",
			want: drive.ShareRef{ShareID: "1AbCdefGHI", Passcode: "xy9z", StartDir: "/"},
		},
		{
			name: "short form restores leading digit",
			url:  "https://pan.baidu.com/share/init?surl=AbCdefGHI",
			want: drive.ShareRef{ShareID: "1AbCdefGHI", StartDir: "/"},
		},
		{
			name: "hash passcode",
			url:  "https://pan.baidu.com/s/1AbCdefGHI#ab12",
			want: drive.ShareRef{ShareID: "1AbCdefGHI", Passcode: "ab12", StartDir: "/"},
		},
		{
			name: "pinned starting directory",
			url:  "https://pan.baidu.com/s/1AbCdefGHI#/list/share/123456",
			want: drive.ShareRef{ShareID: "1AbCdefGHI", StartDir: "123456"},
		},
		{
			name: "unrecognized host path",
			url:  "https://example.com/watch?v=123",
			want: drive.ShareRef{},
		},
		{
			name: "empty input",
			url:  "",
			want: drive.ShareRef{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := a.ParseShareURL(tc.url)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.ShareID != "", got.Recognized())
		})
	}
}
