package aliyun

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pansave/pansave/internal/drive"
)

// newTestAdapter wires an adapter against a fake API server that also
// serves the token endpoint, so the oauth2 refresh flow runs for real.
func newTestAdapter(t *testing.T, api http.HandlerFunc) *Adapter {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt-test", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-test","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-test", r.Header.Get("Authorization"))
		api(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewWithClient(srv.URL, srv.URL+"/token", srv.Client(), "rt-test", logger)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

	return body
}

func TestAuthenticate(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/user/get", r.URL.Path)
		writeJSON(t, w, userResponse{UserID: "u1", NickName: "bob", DefaultDriveID: "d1"})
	})

	info, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	assert.True(t, a.Active())
	assert.Equal(t, "bob", a.DisplayName())
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, "d1", a.backend.driveID)
}

func TestAuthenticateExpiredRefreshToken(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"AccessTokenInvalid"}`))
	})

	_, err := a.Authenticate(context.Background())

	// A dead credential is a reportable state, not an error.
	require.NoError(t, err)
	assert.False(t, a.Active())
	assert.Contains(t, a.DisplayName(), "inactive")
}

func TestListDirectoryMarkerPagination(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adrive/v3/file/list", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, "root", body["parent_file_id"])

		if body["marker"] == nil {
			writeJSON(t, w, listResponse{
				Items:      []itemJSON{{FileID: "f1", Name: "docs", Type: "folder"}},
				NextMarker: "page2",
			})
			return
		}

		assert.Equal(t, "page2", body["marker"])
		writeJSON(t, w, listResponse{
			Items: []itemJSON{{FileID: "f2", Name: "movie.mp4", Type: "file", Size: 9000}},
		})
	})

	listing, err := a.ListDirectory(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, listing.Entries, 2)
	assert.Equal(t, 2, listing.Total)
	assert.Equal(t, "f1", listing.Entries[0].ID)
	assert.True(t, listing.Entries[0].IsDir)
	assert.Equal(t, "f2", listing.Entries[1].ID)
	assert.False(t, listing.Entries[1].IsDir)
}

func TestGetShareToken(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/share_link/get_share_token", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, "shareA", body["share_id"])
		assert.Equal(t, "ab12", body["share_pwd"])

		writeJSON(t, w, shareTokenResponse{ShareToken: "stok", ExpiresIn: 7200})
	})

	token, err := a.GetShareToken(context.Background(), "shareA", "ab12")
	require.NoError(t, err)

	assert.Equal(t, "stok", token.Value)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), token.ExpiresAt, time.Minute)
}

func TestGetShareTokenCancelledShare(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NotFound.ShareLink","message":"ShareLink is cancelled"}`))
	})

	_, err := a.GetShareToken(context.Background(), "shareA", "")
	assert.ErrorIs(t, err, drive.ErrShareExpired)
}

func TestListSharedDirectory(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adrive/v2/file/list_by_share", r.URL.Path)
		assert.Equal(t, "stok", r.Header.Get("X-Share-Token"))

		body := decodeBody(t, r)
		assert.Equal(t, "sub1", body["parent_file_id"])

		writeJSON(t, w, listResponse{
			Items: []itemJSON{{FileID: "s1", Name: "ep1.mkv", Type: "file"}},
		})
	})

	share := drive.ShareRef{ShareID: "shareA"}
	token := drive.ShareToken{Value: "stok"}

	listing, err := a.ListSharedDirectory(context.Background(), share, token, "sub1")
	require.NoError(t, err)

	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "ep1.mkv", listing.Entries[0].Name)
}

func TestTransferToOwnDrive(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adrive/v2/file/saveto", r.URL.Path)
		assert.Equal(t, "stok", r.Header.Get("X-Share-Token"))

		body := decodeBody(t, r)

		switch body["file_id"] {
		case "src1":
			writeJSON(t, w, saveToResponse{FileID: "new1"})
		case "src2":
			// Already present in the destination.
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"FileAlreadyExists"}`))
		default:
			t.Errorf("unexpected file_id %v", body["file_id"])
		}
	})

	result, err := a.TransferToOwnDrive(context.Background(), drive.TransferRequest{
		Sources: []drive.FileEntry{
			{ID: "src1", Name: "a.mkv", TransferToken: "src1"},
			{ID: "src2", Name: "b.mkv", TransferToken: "src2"},
		},
		DestDir: "dest1",
		Share:   drive.ShareRef{ShareID: "shareA"},
		Token:   drive.ShareToken{Value: "stok"},
	})
	require.NoError(t, err)

	assert.True(t, result.Synchronous)
	assert.NotEmpty(t, result.TaskID)
	assert.Equal(t, []string{"new1", ""}, result.SavedIDs)
}

func TestTransferToOwnDriveQuotaExhausted(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"QuotaExhausted"}`))
	})

	_, err := a.TransferToOwnDrive(context.Background(), drive.TransferRequest{
		Sources: []drive.FileEntry{{TransferToken: "src1"}},
		Share:   drive.ShareRef{ShareID: "shareA"},
	})
	assert.ErrorIs(t, err, drive.ErrPermissionOrQuota)
}

func TestCreateDirectoryWalksSegments(t *testing.T) {
	ids := map[string]string{"media": "m1", "shows": "m2"}

	var parents []string

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adrive/v2/file/createWithFolders", r.URL.Path)

		body := decodeBody(t, r)
		parents = append(parents, body["parent_file_id"].(string))

		writeJSON(t, w, createResponse{FileID: ids[body["name"].(string)]})
	})

	entry, err := a.CreateDirectory(context.Background(), "/media/shows")
	require.NoError(t, err)

	assert.Equal(t, "m2", entry.ID)
	assert.Equal(t, "shows", entry.Name)
	assert.True(t, entry.IsDir)
	assert.Equal(t, []string{"root", "m1"}, parents)
}

func TestCreateDirectoryIdempotent(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		// The provider reuses the existing folder under refuse mode.
		writeJSON(t, w, createResponse{FileID: "m1", Exist: true})
	})

	first, err := a.CreateDirectory(context.Background(), "/media")
	require.NoError(t, err)

	second, err := a.CreateDirectory(context.Background(), "/media")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestRenameRootRejected(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := a.Rename(context.Background(), "root", "new")
	assert.ErrorIs(t, err, drive.ErrMalformedReference)
}

func TestDelete(t *testing.T) {
	var trashed []string

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/recyclebin/trash", r.URL.Path)

		body := decodeBody(t, r)
		trashed = append(trashed, body["file_id"].(string))

		writeJSON(t, w, map[string]any{})
	})

	err := a.Delete(context.Background(), []string{"f1", "root", "f2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"f1", "f2"}, trashed)
}

func TestDeleteNothingResolvable(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := a.Delete(context.Background(), []string{"", "root"})
	assert.ErrorIs(t, err, drive.ErrNotFound)
}

func TestResolvePaths(t *testing.T) {
	tree := map[string][]itemJSON{
		"root": {{FileID: "m1", Name: "media", Type: "folder"}},
		"m1":   {{FileID: "v1", Name: "clip.mp4", Type: "file"}},
	}

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		writeJSON(t, w, listResponse{Items: tree[body["parent_file_id"].(string)]})
	})

	got, err := a.ResolvePaths(context.Background(), []string{"/", "/media/clip.mp4", "/media/missing.bin"})
	require.NoError(t, err)

	assert.Equal(t, []drive.PathID{
		{Path: "/", ID: "root"},
		{Path: "/media/clip.mp4", ID: "v1"},
	}, got)
}

var _ drive.Adapter = (*Adapter)(nil)
