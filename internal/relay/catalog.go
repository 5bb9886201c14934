package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/smolnikov/domofon-core/internal/cloud"
	"github.com/smolnikov/domofon-core/internal/token"
)

// Fetcher is the relay-listing subset of the cloud client.
type Fetcher interface {
	Relays(ctx context.Context, bearer string, userID, profileID int, q cloud.RelayQuery) ([]map[string]any, error)
}

// TokenSource supplies the mobile credential for listing fetches.
type TokenSource interface {
	EnsureMobileToken(ctx context.Context) (*token.Mobile, error)
}

// Snapshots persists the last good catalog for the total-failure
// fallback.
type Snapshots interface {
	Replace(ctx context.Context, records []Record) error
	Load(ctx context.Context) ([]Record, error)
}

// Logger is the logging interface for the catalog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Catalog.
type Options struct {
	Fetcher Fetcher
	Tokens  TokenSource

	// Snapshots is optional; without it a total fetch failure has no
	// fallback.
	Snapshots Snapshots

	// ScopeID namespaces door uids, typically the account phone.
	ScopeID string

	// DefaultBuyerID is the contract id CoerceBuyerID always returns.
	DefaultBuyerID int
}

// Catalog is the in-memory door registry, replaced wholesale on every
// refresh. All methods are safe for concurrent use.
type Catalog struct {
	fetcher        Fetcher
	tokens         TokenSource
	snapshots      Snapshots
	scopeID        string
	defaultBuyerID int
	logger         Logger

	mu      sync.RWMutex
	records []Record
	byUID   map[string]Record
}

// NewCatalog creates a relay catalog. The catalog is empty until the
// first Refresh.
func NewCatalog(opts Options) *Catalog {
	if opts.DefaultBuyerID == 0 {
		opts.DefaultBuyerID = 1
	}
	return &Catalog{
		fetcher:        opts.Fetcher,
		tokens:         opts.Tokens,
		snapshots:      opts.Snapshots,
		scopeID:        opts.ScopeID,
		defaultBuyerID: opts.DefaultBuyerID,
		logger:         noopLogger{},
		byUID:          map[string]Record{},
	}
}

// SetLogger sets the logger for the catalog.
func (c *Catalog) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Refresh fetches both relay categories, merges them and replaces the
// catalog. A single failed category is skipped; when both fail the last
// persisted snapshot is served, and only with no snapshot does Refresh
// return an error.
func (c *Catalog) Refresh(ctx context.Context) ([]Record, error) {
	mobile, err := c.tokens.EnsureMobileToken(ctx)
	if err != nil {
		return nil, err
	}

	var (
		merged   []Record
		seen     = map[string]struct{}{}
		failures int
		lastErr  error
	)

	for _, category := range []struct {
		isShared int
		label    string
	}{
		{0, "own"},
		{1, "shared"},
	} {
		q := cloud.DefaultRelayQuery()
		q.IsShared = category.isShared

		items, err := c.fetcher.Relays(ctx, mobile.Token, mobile.UserID, mobile.ProfileID, q)
		if err != nil {
			c.logger.Warn("relay category fetch failed", "category", category.label, "error", err)
			failures++
			lastErr = err
			continue
		}

		for _, item := range items {
			rec, ok := parseRecord(item)
			if !ok {
				c.logger.Debug("dropping relay without mac", "category", category.label)
				continue
			}
			key := rec.dedupeKey()
			if _, dup := seen[key]; dup {
				c.logger.Debug("dropping duplicate relay", "category", category.label, "mac", rec.MAC)
				continue
			}
			seen[key] = struct{}{}
			rec.UID = makeUID(c.scopeID, rec.MAC, rec.DoorID)
			merged = append(merged, rec)
		}
	}

	if failures == 2 {
		return c.fallbackToSnapshot(ctx, lastErr)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].IsMain != merged[j].IsMain {
			return merged[i].IsMain
		}
		return strings.ToLower(merged[i].Address) < strings.ToLower(merged[j].Address)
	})

	c.install(merged)
	c.logger.Info("relay catalog refreshed", "doors", len(merged))

	if c.snapshots != nil {
		if err := c.snapshots.Replace(ctx, merged); err != nil {
			c.logger.Error("persisting relay snapshot failed", "error", err)
		}
	}
	return c.Doors(), nil
}

// fallbackToSnapshot serves the last persisted catalog after a total
// fetch failure.
func (c *Catalog) fallbackToSnapshot(ctx context.Context, cause error) ([]Record, error) {
	if c.snapshots == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRelays, cause)
	}
	records, err := c.snapshots.Load(ctx)
	if err != nil {
		c.logger.Error("loading relay snapshot failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoRelays, cause)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoRelays, cause)
	}

	c.install(records)
	c.logger.Warn("serving relay snapshot after total fetch failure", "doors", len(records), "error", cause)
	return c.Doors(), nil
}

func (c *Catalog) install(records []Record) {
	byUID := make(map[string]Record, len(records))
	for _, rec := range records {
		byUID[rec.UID] = rec
	}

	c.mu.Lock()
	c.records = records
	c.byUID = byUID
	c.mu.Unlock()
}

// Doors returns the current catalog in its stable order.
func (c *Catalog) Doors() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Get resolves a door uid to its record.
func (c *Catalog) Get(uid string) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byUID[uid]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	return rec, nil
}

// CoerceBuyerID resolves the buyer id for CRM authorization. The cloud
// occasionally reports per-relay and per-token buyer ids that do not
// work against the CRM, so the configured default always wins; a
// disagreement is logged for diagnosis.
func (c *Catalog) CoerceBuyerID(rec Record, mobile *token.Mobile) int {
	return c.coerceBuyerID(rec, mobile)
}

// ResolveBuyerID resolves the buyer id for a CRM authorization from the
// catalog's current contents. The first record carrying a contract hint
// is consulted; an empty catalog still yields the configured default.
func (c *Catalog) ResolveBuyerID(mobile *token.Mobile) int {
	var rec Record
	c.mu.RLock()
	for _, r := range c.records {
		if r.BuyerID != nil {
			rec = r
			break
		}
	}
	c.mu.RUnlock()
	return c.coerceBuyerID(rec, mobile)
}

func (c *Catalog) coerceBuyerID(rec Record, mobile *token.Mobile) int {
	candidates := map[string]*int{"relay": rec.BuyerID}
	if mobile != nil {
		candidates["token"] = intAt(mobile.Raw, "BUYER_ID", "buyerId")
	}
	for source, candidate := range candidates {
		if candidate != nil && *candidate != c.defaultBuyerID {
			c.logger.Warn("buyer id disagreement, using default",
				"source", source,
				"candidate", *candidate,
				"default", c.defaultBuyerID,
			)
		}
	}
	return c.defaultBuyerID
}
