package panhttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pansave/pansave/internal/drive"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// newTestClient creates a Client pointing at the given httptest server
// with instant retry sleeps for fast tests.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c := NewClient(url, http.DefaultClient, CookieAuth("SESSION=abc"), slog.Default())
	c.sleepFunc = noopSleep

	return c
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SESSION=abc", r.Header.Get("Cookie"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Do(context.Background(), http.MethodGet, "/list", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"value":"ok"}`, string(body))
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, drive.ErrCredentialInvalid},
		{"forbidden", http.StatusForbidden, drive.ErrPermissionOrQuota},
		{"not found", http.StatusNotFound, drive.ErrNotFound},
		{"conflict", http.StatusConflict, drive.ErrAlreadyExists},
		{"teapot", http.StatusTeapot, drive.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.Do(context.Background(), http.MethodGet, "/x", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Do(context.Background(), http.MethodGet, "/flaky", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RateLimitedAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Do(context.Background(), http.MethodGet, "/limited", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, drive.ErrRateLimited)
	assert.True(t, drive.Retryable(err))
}

func TestDo_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())

	client := newTestClient(t, srv.URL)
	client.sleepFunc = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := client.Do(ctx, http.MethodGet, "/never", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"dir","count":2}`))
	}))
	defer srv.Close()

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.GetJSON(context.Background(), "/meta", &out))
	assert.Equal(t, "dir", out.Name)
	assert.Equal(t, 2, out.Count)
}

func TestPostJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"fid_list":["1","2"]}`, string(body))

		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	in := map[string][]string{"fid_list": {"1", "2"}}

	var out struct {
		Code int `json:"code"`
	}

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.PostJSON(context.Background(), "/save", in, &out))
	assert.Zero(t, out.Code)
}

func TestCalcBackoff_Bounded(t *testing.T) {
	client := newTestClient(t, "http://unused")

	for attempt := range 10 {
		b := client.calcBackoff(attempt)
		assert.Greater(t, b, time.Duration(0))
		assert.LessOrEqual(t, b, maxBackoff+maxBackoff/4)
	}
}

func TestPostJSONHeaders_ExtraHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "share-token-xyz", r.Header.Get("X-Share-Token"))
		assert.Equal(t, "SESSION=abc", r.Header.Get("Cookie"))

		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	header := http.Header{"X-Share-Token": {"share-token-xyz"}}
	err := client.PostJSONHeaders(context.Background(), "/shared", header, map[string]string{}, nil)
	require.NoError(t, err)
}

func TestDo_AuthApplyFailureNotRetried(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.auth = AuthorizerFunc(func(*http.Request) error {
		return errors.New("refresh token expired")
	})

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil)
	assert.ErrorIs(t, err, drive.ErrCredentialInvalid)
	assert.Zero(t, calls)
}
