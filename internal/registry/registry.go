// Package registry maps configured accounts to live provider adapters. It
// owns adapter construction and caching: building an adapter is cheap but
// authenticated adapters accumulate session state, so one instance per
// credential is reused until the configuration changes.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/provider/aliyun"
	"github.com/pansave/pansave/internal/provider/baidu"
	"github.com/pansave/pansave/internal/provider/xunlei"
)

// ErrNoAccount reports that no configured, enabled account can serve the
// request.
var ErrNoAccount = errors.New("registry: no usable account configured")

// NoAccountError is an ErrNoAccount carrying the provider the request
// needed, so callers can tell the user which account to add. Kind is empty
// when the lookup was not provider-specific.
type NoAccountError struct {
	Kind drive.Kind
}

func (e *NoAccountError) Error() string {
	if e.Kind == "" {
		return ErrNoAccount.Error()
	}

	return fmt.Sprintf("registry: no usable %s account configured", e.Kind.Label())
}

func (e *NoAccountError) Unwrap() error { return ErrNoAccount }

// ErrUnrecognizedURL reports that no provider's share URL grammar matched.
var ErrUnrecognizedURL = errors.New("registry: share URL not recognized by any provider")

// adapterTTL bounds how long an idle adapter stays cached. A fresh
// instance re-authenticates, which heals silently expired sessions.
const adapterTTL = 30 * time.Minute

// Factory builds an adapter for one credential.
type Factory func(credential string, logger *slog.Logger) drive.Adapter

// detectionOrder fixes the order providers are probed for URL detection so
// results do not depend on map iteration.
var detectionOrder = []drive.Kind{drive.KindBaidu, drive.KindAliyun, drive.KindXunlei}

// Registry resolves accounts to adapters.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	factories map[drive.Kind]Factory
	accounts  []drive.Account

	cache *ttlcache.Cache[string, drive.Adapter]
}

// New creates a Registry with the built-in providers registered.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		logger: logger,
		factories: map[drive.Kind]Factory{
			drive.KindBaidu: func(cred string, l *slog.Logger) drive.Adapter {
				return baidu.New(cred, l)
			},
			drive.KindAliyun: func(cred string, l *slog.Logger) drive.Adapter {
				return aliyun.New(cred, l)
			},
			drive.KindXunlei: func(cred string, l *slog.Logger) drive.Adapter {
				return xunlei.New(cred, l)
			},
		},
		cache: ttlcache.New(
			ttlcache.WithTTL[string, drive.Adapter](adapterTTL),
		),
	}

	return r
}

// Register installs or replaces the factory for one provider kind. Tests
// use it to substitute fake adapters.
func (r *Registry) Register(kind drive.Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = f
}

// SetAccounts replaces the account list, typically after a configuration
// reload. All cached adapters are dropped: a config write may have changed
// any credential.
func (r *Registry) SetAccounts(accounts []drive.Account) {
	r.mu.Lock()
	r.accounts = accounts
	r.mu.Unlock()

	r.Invalidate()

	r.logger.Debug("account list updated", slog.Int("accounts", len(accounts)))
}

// Invalidate drops every cached adapter. The next lookup reconstructs from
// the current account list.
func (r *Registry) Invalidate() {
	r.cache.DeleteAll()
}

// ByAccount returns the adapter for the named account. An empty name picks
// the default account, or the first enabled one when no default is marked.
func (r *Registry) ByAccount(name string) (drive.Adapter, drive.Account, error) {
	acc, ok := r.pickAccount(name, "")
	if !ok {
		return nil, drive.Account{}, &NoAccountError{}
	}

	return r.adapter(acc), acc, nil
}

// ByShareURL detects which provider a share URL belongs to and returns an
// adapter for an account of that provider along with the parsed reference.
func (r *Registry) ByShareURL(rawURL string) (drive.Adapter, drive.Account, drive.ShareRef, error) {
	kind, ref, ok := r.DetectProvider(rawURL)
	if !ok {
		return nil, drive.Account{}, drive.ShareRef{}, ErrUnrecognizedURL
	}

	acc, ok := r.pickAccount("", kind)
	if !ok {
		return nil, drive.Account{}, drive.ShareRef{}, &NoAccountError{Kind: kind}
	}

	return r.adapter(acc), acc, ref, nil
}

// DetectProvider runs the share URL through each provider's grammar in a
// fixed order and returns the first match.
func (r *Registry) DetectProvider(rawURL string) (drive.Kind, drive.ShareRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, kind := range detectionOrder {
		f, ok := r.factories[kind]
		if !ok {
			continue
		}

		// URL parsing is pure, so a credential-less probe suffices.
		if ref := f("", nil).ParseShareURL(rawURL); ref.Recognized() {
			return kind, ref, true
		}
	}

	return "", drive.ShareRef{}, false
}

// Accounts returns a copy of the current account list.
func (r *Registry) Accounts() []drive.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]drive.Account, len(r.accounts))
	copy(out, r.accounts)

	return out
}

// pickAccount selects an account by name, or by kind, or the overall
// default. Disabled accounts are never selected.
func (r *Registry) pickAccount(name string, kind drive.Kind) (drive.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		for _, acc := range r.accounts {
			if acc.Name == name && acc.Enabled {
				return acc, true
			}
		}

		return drive.Account{}, false
	}

	var fallback *drive.Account

	for i, acc := range r.accounts {
		if !acc.Enabled {
			continue
		}

		if kind != "" && acc.Kind != kind {
			continue
		}

		if acc.Default {
			return acc, true
		}

		if fallback == nil {
			fallback = &r.accounts[i]
		}
	}

	if fallback != nil {
		return *fallback, true
	}

	return drive.Account{}, false
}

// adapter returns the cached adapter for the account, constructing one on
// miss. The cache key fingerprints the credential so a changed credential
// is never served a stale adapter.
func (r *Registry) adapter(acc drive.Account) drive.Adapter {
	key := cacheKey(acc)

	if item := r.cache.Get(key); item != nil {
		return item.Value()
	}

	r.mu.RLock()
	f := r.factories[acc.Kind]
	r.mu.RUnlock()

	a := f(acc.Credential, r.logger.With(slog.String("account", acc.Name)))

	r.cache.Set(key, a, ttlcache.DefaultTTL)

	return a
}

// cacheKey is (kind, credential fingerprint). The raw credential never
// appears in the key.
func cacheKey(acc drive.Account) string {
	sum := sha256.Sum256([]byte(acc.Credential))
	return string(acc.Kind) + ":" + hex.EncodeToString(sum[:8])
}
