package baidu

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/panhttp"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://pan.baidu.com"

// listPageSize is the page size for listing calls. The API caps pages at
// 1000 entries; 200 keeps response sizes reasonable.
const listPageSize = 200

// transferBatchSize caps fs_ids per transfer call. Larger batches trip the
// provider's per-call limit (errno -3).
const transferBatchSize = 50

// itemJSON mirrors one entry in the provider's listing responses.
type itemJSON struct {
	FsID           uint64 `json:"fs_id"`
	Path           string `json:"path"`
	ServerFilename string `json:"server_filename"`
	IsDir          int    `json:"isdir"`
	Size           int64  `json:"size"`
	ServerMtime    int64  `json:"server_mtime"`
}

// toEntry converts a provider item into the unified record. The entry's ID
// is its path so subsequent listing calls can use it directly; the numeric
// fs_id travels in the transfer token.
func (it *itemJSON) toEntry() drive.FileEntry {
	name := it.ServerFilename
	if name == "" {
		name = lastSegment(it.Path)
	}

	return drive.FileEntry{
		ID:            it.Path,
		Name:          name,
		IsDir:         it.IsDir == 1,
		Size:          it.Size,
		ModifiedAt:    time.Unix(it.ServerMtime, 0),
		TransferToken: fmt.Sprintf("%d", it.FsID),
	}
}

type listResponse struct {
	Errno   int        `json:"errno"`
	List    []itemJSON `json:"list"`
	HasMore int        `json:"has_more"`
}

type uinfoResponse struct {
	Errno     int    `json:"errno"`
	BaiduName string `json:"baidu_name"`
	UK        int64  `json:"uk"`
}

type verifyResponse struct {
	Errno  int    `json:"errno"`
	Randsk string `json:"randsk"`
}

type createResponse struct {
	Errno int    `json:"errno"`
	Path  string `json:"path"`
	FsID  uint64 `json:"fs_id"`
}

type opResponse struct {
	Errno int `json:"errno"`
}

// backend wraps the raw provider endpoints behind typed calls. It is the
// leaf I/O layer; all identity-model translation lives in Adapter.
type backend struct {
	http *panhttp.Client
}

// list returns one directory's complete contents, following pagination
// until the provider reports no more entries.
func (b *backend) list(ctx context.Context, dirPath string) ([]drive.FileEntry, error) {
	const op = "baidu.list"

	var entries []drive.FileEntry

	for start := 0; ; start += listPageSize {
		path := fmt.Sprintf("/rest/2.0/xpan/file?method=list&dir=%s&start=%d&limit=%d",
			url.QueryEscape(dirPath), start, listPageSize)

		var resp listResponse
		if err := b.http.GetJSON(ctx, path, &resp); err != nil {
			return nil, err
		}

		if err := errnoError(resp.Errno, op); err != nil {
			return nil, err
		}

		for i := range resp.List {
			entries = append(entries, resp.List[i].toEntry())
		}

		if resp.HasMore == 0 {
			return entries, nil
		}
	}
}

// listShared lists one directory inside a share. An empty dirPath means the
// share's root.
func (b *backend) listShared(ctx context.Context, shareID, sekey, dirPath string) ([]drive.FileEntry, error) {
	const op = "baidu.listShared"

	var entries []drive.FileEntry

	for page := 1; ; page++ {
		path := fmt.Sprintf("/share/list?shorturl=%s&sekey=%s&dir=%s&page=%d&num=%d",
			url.QueryEscape(shareID), url.QueryEscape(sekey), url.QueryEscape(dirPath), page, listPageSize)

		var resp listResponse
		if err := b.http.GetJSON(ctx, path, &resp); err != nil {
			return nil, err
		}

		if err := errnoError(resp.Errno, op); err != nil {
			return nil, err
		}

		for i := range resp.List {
			entries = append(entries, resp.List[i].toEntry())
		}

		if resp.HasMore == 0 {
			return entries, nil
		}
	}
}

// verifyShare checks share reachability and unlocks passcode-protected
// shares, returning the session key required by listShared and transfer.
func (b *backend) verifyShare(ctx context.Context, shareID, passcode string) (string, error) {
	const op = "baidu.verifyShare"

	body := map[string]string{"pwd": passcode}

	var resp verifyResponse

	err := b.http.PostJSON(ctx, "/share/verify?surl="+url.QueryEscape(shareID), body, &resp)
	if err != nil {
		return "", err
	}

	if err := errnoError(resp.Errno, op); err != nil {
		return "", err
	}

	return resp.Randsk, nil
}

// transfer copies the given shared fs_ids into destPath. The response does
// not include the new items' identifiers; callers reconcile afterwards.
func (b *backend) transfer(ctx context.Context, shareID, sekey, destPath string, fsIDs []string) error {
	const op = "baidu.transfer"

	body := map[string]any{
		"fsidlist": fsIDs,
		"path":     destPath,
	}

	var resp opResponse

	err := b.http.PostJSON(ctx,
		"/share/transfer?shorturl="+url.QueryEscape(shareID)+"&sekey="+url.QueryEscape(sekey),
		body, &resp)
	if err != nil {
		return err
	}

	return errnoError(resp.Errno, op)
}

// mkdir creates one directory at the given absolute path. Parents must
// already exist; Adapter.CreateDirectory walks the segments.
func (b *backend) mkdir(ctx context.Context, dirPath string) (string, error) {
	const op = "baidu.mkdir"

	body := map[string]any{
		"path":  dirPath,
		"isdir": 1,
	}

	var resp createResponse
	if err := b.http.PostJSON(ctx, "/rest/2.0/xpan/file?method=create", body, &resp); err != nil {
		return "", err
	}

	if err := errnoError(resp.Errno, op); err != nil {
		return "", err
	}

	if resp.Path != "" {
		return resp.Path, nil
	}

	return dirPath, nil
}

// rename changes one item's display name in place.
func (b *backend) rename(ctx context.Context, itemPath, newName string) error {
	const op = "baidu.rename"

	body := map[string]any{
		"filelist": []map[string]string{{"path": itemPath, "newname": newName}},
	}

	var resp opResponse
	if err := b.http.PostJSON(ctx, "/rest/2.0/xpan/file?method=filemanager&opera=rename", body, &resp); err != nil {
		return err
	}

	return errnoError(resp.Errno, op)
}

// remove deletes the given paths in one batch.
func (b *backend) remove(ctx context.Context, paths []string) error {
	const op = "baidu.remove"

	body := map[string]any{"filelist": paths}

	var resp opResponse
	if err := b.http.PostJSON(ctx, "/rest/2.0/xpan/file?method=filemanager&opera=delete", body, &resp); err != nil {
		return err
	}

	return errnoError(resp.Errno, op)
}

// userInfo validates the credential and returns the account's display name.
func (b *backend) userInfo(ctx context.Context) (drive.AccountInfo, error) {
	const op = "baidu.userInfo"

	var resp uinfoResponse
	if err := b.http.GetJSON(ctx, "/rest/2.0/xpan/nas?method=uinfo", &resp); err != nil {
		return drive.AccountInfo{}, err
	}

	if err := errnoError(resp.Errno, op); err != nil {
		return drive.AccountInfo{}, err
	}

	return drive.AccountInfo{
		UserID:   fmt.Sprintf("%d", resp.UK),
		Nickname: resp.BaiduName,
	}, nil
}
