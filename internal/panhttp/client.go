// Package panhttp provides the shared HTTP core for provider backends:
// request construction, credential injection, retry with exponential
// backoff, and classification of transport failures into the drive
// error taxonomy.
package panhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/pansave/pansave/internal/drive"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "pansave/0.1"
)

// Authorizer injects a provider credential into an outgoing request.
// Cookie-based providers set a Cookie header, token-based ones a bearer.
type Authorizer interface {
	Apply(req *http.Request) error
}

// CookieAuth is an Authorizer that sends a raw cookie string.
type CookieAuth string

func (c CookieAuth) Apply(req *http.Request) error {
	req.Header.Set("Cookie", string(c))
	return nil
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(req *http.Request) error

func (f AuthorizerFunc) Apply(req *http.Request) error {
	return f(req)
}

// errAuthApply marks a failure to inject the credential into a request.
// It short-circuits the retry loop.
var errAuthApply = errors.New("applying credential")

// Client is a retrying HTTP client bound to one provider API base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authorizer
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a provider HTTP client.
func NewClient(baseURL string, httpClient *http.Client, auth Authorizer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		auth:       auth,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// Do executes an HTTP request against the provider API. The path is appended
// to the client's base URL. Non-2xx responses and exhausted retries come back
// as taxonomy-classified errors; the caller closes the body on success.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.DoHeaders(ctx, method, path, nil, body)
}

// DoHeaders is Do with extra request headers, for provider calls that carry
// per-request tokens outside the account credential.
func (c *Client) DoHeaders(ctx context.Context, method, path string, header http.Header, body []byte) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, url, header, body)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("panhttp: request canceled: %w", ctx.Err())
			}

			// A credential that cannot be materialized will not start
			// working on retry.
			if errors.Is(err, errAuthApply) {
				return nil, drive.Errf(drive.ErrCredentialInvalid, "panhttp.Do", "%v", err)
			}

			// Network errors are retryable.
			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("panhttp: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, drive.Errf(drive.ErrTransientNetwork, "panhttp.Do",
				"%s %s failed after %d retries: %v", method, path, maxRetries, err)
		}

		// 2xx is success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("panhttp: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, classifyStatus(resp.StatusCode, method+" "+path, string(errBody))
	}
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return drive.Errf(drive.ErrUnknown, "panhttp.GetJSON", "decoding response: %v", err)
	}

	return nil
}

// PostJSON performs a POST with a JSON body and decodes the response into
// out. A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.PostJSONHeaders(ctx, path, nil, in, out)
}

// PostJSONHeaders is PostJSON with extra request headers.
func (c *Client) PostJSONHeaders(ctx context.Context, path string, header http.Header, in, out any) error {
	var body []byte

	if in != nil {
		var err error

		body, err = json.Marshal(in)
		if err != nil {
			return drive.Errf(drive.ErrMalformedReference, "panhttp.PostJSON", "encoding request: %v", err)
		}
	}

	resp, err := c.DoHeaders(ctx, http.MethodPost, path, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
			return drive.Errf(drive.ErrTransientNetwork, "panhttp.PostJSON", "draining response: %v", copyErr)
		}

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return drive.Errf(drive.ErrUnknown, "panhttp.PostJSON", "decoding response: %v", err)
	}

	return nil
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.auth != nil {
		if err := c.auth.Apply(req); err != nil {
			return nil, fmt.Errorf("%w: %v", errAuthApply, err)
		}
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// classifyStatus maps a non-2xx HTTP status to a taxonomy error.
func classifyStatus(code int, op, body string) error {
	var sentinel error

	switch {
	case code == http.StatusUnauthorized:
		sentinel = drive.ErrCredentialInvalid
	case code == http.StatusForbidden:
		sentinel = drive.ErrPermissionOrQuota
	case code == http.StatusNotFound:
		sentinel = drive.ErrNotFound
	case code == http.StatusConflict:
		sentinel = drive.ErrAlreadyExists
	case code == http.StatusTooManyRequests:
		sentinel = drive.ErrRateLimited
	case code >= http.StatusInternalServerError:
		sentinel = drive.ErrTransientNetwork
	default:
		sentinel = drive.ErrUnknown
	}

	return drive.Errf(sentinel, op, "HTTP %d: %s", code, body)
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
