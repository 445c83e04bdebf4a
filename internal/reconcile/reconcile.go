// Package reconcile recovers the identifiers of freshly transferred items
// when a provider's "save to my drive" call does not return them.
//
// The protocol: snapshot the destination before the transfer, wait a
// provider-appropriate settle delay, re-list, diff by id, then align the new
// entries to the request by name. The window between transfer and re-list is
// racy by nature; another writer adding a same-named file in that window can
// mis-pair a slot. That is an accepted, documented limitation handled by
// escalating the delay, not an error.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/sethvargo/go-retry"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pansave/pansave/internal/drive"
)

// ErrSkipped reports that reconciliation was abandoned because the
// surrounding workflow was cancelled during the settle wait. The remote
// transfer has already been issued and completes server-side regardless;
// the caller must not retry reconciliation on a cancelled context.
var ErrSkipped = errors.New("reconcile: skipped, context cancelled")

// errNothingNew drives the escalation loop when the destination has not
// settled yet.
var errNothingNew = errors.New("reconcile: no new entries visible yet")

// Config tunes one provider's reconciliation behavior.
type Config struct {
	// SettleDelay is the wait before the first re-list, and the base for
	// the exponential escalation of subsequent waits.
	SettleDelay time.Duration

	// MaxAttempts caps re-list attempts when nothing new is visible.
	MaxAttempts int
}

// DefaultConfig matches the slowest known provider: five seconds to settle,
// escalating twice before giving up.
func DefaultConfig() Config {
	return Config{
		SettleDelay: 5 * time.Second,
		MaxAttempts: 3,
	}
}

// Snapshot is a destination directory's state before a transfer, id to name.
type Snapshot map[string]string

// Take builds a Snapshot from a directory listing.
func Take(entries []drive.FileEntry) Snapshot {
	s := make(Snapshot, len(entries))
	for _, e := range entries {
		s[e.ID] = e.Name
	}

	return s
}

// Lister re-lists the destination directory.
type Lister func(ctx context.Context) ([]drive.FileEntry, error)

// Reconciler runs the settle-and-diff protocol.
type Reconciler struct {
	cfg    Config
	logger *slog.Logger

	// sleepFunc waits between attempts. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a Reconciler.
func New(cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultConfig().SettleDelay
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		cfg:       cfg,
		logger:    logger,
		sleepFunc: sleepCtx,
	}
}

// Reconcile determines the destination-side ids of the transferred items.
// requested holds the source names in request order; the result is aligned
// positionally with it, with empty strings marking slots whose new id could
// not be determined. Unresolved slots are per-item soft failures, never an
// aggregate error.
//
// A context cancellation during any wait returns ErrSkipped.
func (r *Reconciler) Reconcile(ctx context.Context, before Snapshot, requested []string, list Lister) ([]string, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	// The transfer call has just returned; the provider needs time before
	// the new entries show up in listings.
	if err := r.sleepFunc(ctx, r.cfg.SettleDelay); err != nil {
		return nil, ErrSkipped
	}

	var aligned []string

	backoff := retry.WithMaxRetries(uint64(r.cfg.MaxAttempts-1), retry.NewExponential(r.cfg.SettleDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		entries, err := list(ctx)
		if err != nil {
			if drive.Retryable(err) {
				return retry.RetryableError(err)
			}

			return err
		}

		fresh := diff(before, entries)
		if len(fresh) == 0 {
			r.logger.Debug("destination not settled yet, escalating delay",
				slog.Int("requested", len(requested)),
			)

			return retry.RetryableError(errNothingNew)
		}

		aligned = Align(requested, fresh)

		return nil
	})

	switch {
	case err == nil:
		return aligned, nil
	case ctx.Err() != nil:
		return nil, ErrSkipped
	case errors.Is(err, errNothingNew):
		// Nothing surfaced within the escalation budget: every slot is an
		// explicit empty marker so downstream consumers see the partial
		// failure per item.
		r.logger.Warn("no new entries after transfer, leaving all slots unresolved",
			slog.Int("requested", len(requested)),
			slog.Int("attempts", r.cfg.MaxAttempts),
		)

		return make([]string, len(requested)), nil
	default:
		return nil, err
	}
}

// diff returns the entries present now but absent from the snapshot,
// preserving listing order.
func diff(before Snapshot, after []drive.FileEntry) []drive.FileEntry {
	var fresh []drive.FileEntry

	for _, e := range after {
		if _, seen := before[e.ID]; !seen {
			fresh = append(fresh, e)
		}
	}

	return fresh
}

// Align pairs request names with new destination entries: exact name match
// first, then normalized-name match for names the provider altered
// (illegal-character stripping, duplicate counters). Each destination entry
// satisfies at most one slot. Unmatched slots stay empty.
func Align(requested []string, fresh []drive.FileEntry) []string {
	ids := make([]string, len(requested))
	used := make([]bool, len(fresh))

	// Exact pass.
	for i, name := range requested {
		for j, e := range fresh {
			if !used[j] && e.Name == name {
				ids[i] = e.ID
				used[j] = true

				break
			}
		}
	}

	// Normalized pass for the remainder.
	for i, name := range requested {
		if ids[i] != "" {
			continue
		}

		want := NormalizeName(name)

		for j, e := range fresh {
			if !used[j] && NormalizeName(e.Name) == want {
				ids[i] = e.ID
				used[j] = true

				break
			}
		}
	}

	return ids
}

// dedupSuffix strips trailing duplicate counters like " (1)" before the
// extension, which providers append when the destination already holds a
// same-named file.
func dedupSuffix(name string) string {
	ext := ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		ext = name[dot:]
		name = name[:dot]
	}

	for {
		trimmed := strings.TrimRight(name, " ")
		if !strings.HasSuffix(trimmed, ")") {
			break
		}

		open := strings.LastIndexByte(trimmed, '(')
		if open <= 0 {
			break
		}

		inner := trimmed[open+1 : len(trimmed)-1]
		if inner == "" || strings.TrimFunc(inner, unicode.IsDigit) != "" {
			break
		}

		name = strings.TrimRight(trimmed[:open], " ")
	}

	return name + ext
}

// stripMarks removes Unicode combining marks so accented and plain spellings
// of the same name compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName reduces a filename to its comparable core: duplicate
// counters dropped, marks stripped, lowercased, and every character that is
// neither alphanumeric nor a separator removed.
func NormalizeName(name string) string {
	name = dedupSuffix(name)

	if stripped, _, err := transform.String(stripMarks, name); err == nil {
		name = stripped
	}

	var b strings.Builder

	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '/':
			b.WriteRune(r)
		}
	}

	return b.String()
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
