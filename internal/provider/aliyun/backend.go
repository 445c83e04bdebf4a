package aliyun

import (
	"context"
	"net/http"
	"time"

	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/panhttp"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.alipan.com"

// DefaultTokenURL is the endpoint that exchanges a refresh token for an
// access token.
const DefaultTokenURL = "https://auth.alipan.com/v2/account/token"

// listPageSize is the page size for listing calls; the API caps it at 200.
const listPageSize = 100

// itemJSON mirrors one entry in the provider's listing responses.
type itemJSON struct {
	FileID    string `json:"file_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	UpdatedAt string `json:"updated_at"`
}

// toEntry converts a provider item into the unified record. file_id serves
// as both the ID and the transfer token on this provider.
func (it *itemJSON) toEntry() drive.FileEntry {
	modified, _ := time.Parse(time.RFC3339, it.UpdatedAt)

	return drive.FileEntry{
		ID:            it.FileID,
		Name:          it.Name,
		IsDir:         it.Type == "folder",
		Size:          it.Size,
		ModifiedAt:    modified,
		TransferToken: it.FileID,
	}
}

type listResponse struct {
	Items      []itemJSON `json:"items"`
	NextMarker string     `json:"next_marker"`
}

type userResponse struct {
	UserID         string `json:"user_id"`
	NickName       string `json:"nick_name"`
	DefaultDriveID string `json:"default_drive_id"`
}

type shareTokenResponse struct {
	ShareToken string `json:"share_token"`
	ExpiresIn  int    `json:"expires_in"`
}

type saveToResponse struct {
	FileID string `json:"file_id"`
}

type createResponse struct {
	FileID string `json:"file_id"`
	Exist  bool   `json:"exist"`
}

// backend wraps the raw provider endpoints behind typed calls. driveID is
// learned from userGet and scopes every drive-side request.
type backend struct {
	http    *panhttp.Client
	driveID string
}

// shareHeader builds the per-request header carrying the share session
// token.
func shareHeader(token string) http.Header {
	return http.Header{"X-Share-Token": {token}}
}

// userGet validates the credential and returns the account profile along
// with its default drive id.
func (b *backend) userGet(ctx context.Context) (userResponse, error) {
	const op = "aliyun.userGet"

	var resp userResponse
	if err := b.http.PostJSON(ctx, "/v2/user/get", map[string]string{}, &resp); err != nil {
		return userResponse{}, refineError(err, op)
	}

	return resp, nil
}

// list returns one directory's complete contents, following the marker
// until the provider stops returning one.
func (b *backend) list(ctx context.Context, parentID string) ([]drive.FileEntry, error) {
	const op = "aliyun.list"

	var entries []drive.FileEntry

	marker := ""

	for {
		body := map[string]any{
			"drive_id":       b.driveID,
			"parent_file_id": parentID,
			"limit":          listPageSize,
		}
		if marker != "" {
			body["marker"] = marker
		}

		var resp listResponse
		if err := b.http.PostJSON(ctx, "/adrive/v3/file/list", body, &resp); err != nil {
			return nil, refineError(err, op)
		}

		for i := range resp.Items {
			entries = append(entries, resp.Items[i].toEntry())
		}

		if resp.NextMarker == "" {
			return entries, nil
		}

		marker = resp.NextMarker
	}
}

// shareToken unlocks a share and returns its session token.
func (b *backend) shareToken(ctx context.Context, shareID, passcode string) (shareTokenResponse, error) {
	const op = "aliyun.shareToken"

	body := map[string]string{
		"share_id":  shareID,
		"share_pwd": passcode,
	}

	var resp shareTokenResponse
	if err := b.http.PostJSON(ctx, "/v2/share_link/get_share_token", body, &resp); err != nil {
		return shareTokenResponse{}, refineError(err, op)
	}

	return resp, nil
}

// listShared lists one directory inside a share, following the marker.
func (b *backend) listShared(ctx context.Context, shareID, token, parentID string) ([]drive.FileEntry, error) {
	const op = "aliyun.listShared"

	var entries []drive.FileEntry

	marker := ""

	for {
		body := map[string]any{
			"share_id":       shareID,
			"parent_file_id": parentID,
			"limit":          listPageSize,
		}
		if marker != "" {
			body["marker"] = marker
		}

		var resp listResponse
		if err := b.http.PostJSONHeaders(ctx, "/adrive/v2/file/list_by_share", shareHeader(token), body, &resp); err != nil {
			return nil, refineError(err, op)
		}

		for i := range resp.Items {
			entries = append(entries, resp.Items[i].toEntry())
		}

		if resp.NextMarker == "" {
			return entries, nil
		}

		marker = resp.NextMarker
	}
}

// saveTo copies one shared file into the destination directory and returns
// the new file's id. The call is synchronous.
func (b *backend) saveTo(ctx context.Context, shareID, token, fileID, destID string) (string, error) {
	const op = "aliyun.saveTo"

	body := map[string]string{
		"share_id":          shareID,
		"file_id":           fileID,
		"to_drive_id":       b.driveID,
		"to_parent_file_id": destID,
	}

	var resp saveToResponse
	if err := b.http.PostJSONHeaders(ctx, "/adrive/v2/file/saveto", shareHeader(token), body, &resp); err != nil {
		return "", refineError(err, op)
	}

	return resp.FileID, nil
}

// createFolder creates one directory under parentID, reusing an existing
// one with the same name.
func (b *backend) createFolder(ctx context.Context, parentID, name string) (string, error) {
	const op = "aliyun.createFolder"

	body := map[string]string{
		"drive_id":        b.driveID,
		"parent_file_id":  parentID,
		"name":            name,
		"type":            "folder",
		"check_name_mode": "refuse",
	}

	var resp createResponse
	if err := b.http.PostJSON(ctx, "/adrive/v2/file/createWithFolders", body, &resp); err != nil {
		return "", refineError(err, op)
	}

	return resp.FileID, nil
}

// rename changes one item's display name in place.
func (b *backend) rename(ctx context.Context, fileID, newName string) error {
	const op = "aliyun.rename"

	body := map[string]string{
		"drive_id": b.driveID,
		"file_id":  fileID,
		"name":     newName,
	}

	if err := b.http.PostJSON(ctx, "/v3/file/update", body, nil); err != nil {
		return refineError(err, op)
	}

	return nil
}

// trash moves one item to the recycle bin.
func (b *backend) trash(ctx context.Context, fileID string) error {
	const op = "aliyun.trash"

	body := map[string]string{
		"drive_id": b.driveID,
		"file_id":  fileID,
	}

	if err := b.http.PostJSON(ctx, "/v2/recyclebin/trash", body, nil); err != nil {
		return refineError(err, op)
	}

	return nil
}
