// Package history keeps a bounded, per-collection record of the source items
// that most recently produced each collection's cover.
package history

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/covergen/internal/domain"
)

// KeyPrefix namespaces history blobs in the key-value store
const KeyPrefix = "cover_history/"

type key struct {
	server     string
	collection string
}

func (k key) storeKey() string {
	return KeyPrefix + url.PathEscape(k.server) + "/" + url.PathEscape(k.collection)
}

// Cache is the HistoryCache. Mutations for the same (server, collection) are
// serialized; different keys proceed in parallel.
type Cache struct {
	store  domain.KeyValueStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex // Protects locks and entries maps
	locks   map[key]*sync.Mutex
	entries map[key][]domain.HistoryEntry
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the timestamp source used by Record
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache backed by store
func New(store domain.KeyValueStore, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		store:   store,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[key]*sync.Mutex),
		entries: make(map[key][]domain.HistoryEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) lockFor(k key) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[k]
	if !ok {
		l = &sync.Mutex{}
		c.locks[k] = l
	}
	return l
}

// load returns the entries for k; callers must hold k's lock
func (c *Cache) load(k key) ([]domain.HistoryEntry, error) {
	c.mu.Lock()
	cached, ok := c.entries[k]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	if c.store == nil {
		return nil, nil
	}
	data, found, err := c.store.Get(k.storeKey())
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []domain.HistoryEntry
	if found {
		var dropped int
		entries, dropped = decode(data, k)
		if dropped > 0 {
			c.logger.Warn("dropped malformed history entries",
				"server", k.server, "library", k.collection, "dropped", dropped)
		}
	}

	c.mu.Lock()
	c.entries[k] = entries
	c.mu.Unlock()
	return entries, nil
}

// Entries returns a copy of the stored entries, newest first
func (c *Cache) Entries(server, collectionID string) ([]domain.HistoryEntry, error) {
	k := key{server: server, collection: collectionID}
	l := c.lockFor(k)
	l.Lock()
	defer l.Unlock()

	entries, err := c.load(k)
	if err != nil {
		return nil, err
	}
	return append([]domain.HistoryEntry(nil), entries...), nil
}

// Latest returns the newest entry for the collection
func (c *Cache) Latest(server, collectionID string) (domain.HistoryEntry, bool, error) {
	entries, err := c.Entries(server, collectionID)
	if err != nil || len(entries) == 0 {
		return domain.HistoryEntry{}, false, err
	}
	return entries[0], true, nil
}

// ShouldSkip reports whether the newest recorded source item for the collection
// is candidateItemID, meaning a resynthesis would reproduce the current cover.
func (c *Cache) ShouldSkip(server, collectionID, candidateItemID string) (bool, error) {
	latest, ok, err := c.Latest(server, collectionID)
	if err != nil || !ok {
		return false, err
	}
	return latest.ItemID == candidateItemID, nil
}

// Record notes that itemID contributed to the collection's cover now
func (c *Cache) Record(server, collectionID, itemID string) ([]domain.HistoryEntry, error) {
	return c.RecordAt(server, collectionID, itemID, c.now())
}

// RecordAt notes that itemID contributed at ts. An existing entry only moves
// forward in time; the key keeps at most domain.HistoryLimit entries.
func (c *Cache) RecordAt(server, collectionID, itemID string, ts time.Time) ([]domain.HistoryEntry, error) {
	k := key{server: server, collection: collectionID}
	l := c.lockFor(k)
	l.Lock()
	defer l.Unlock()

	current, err := c.load(k)
	if err != nil {
		return nil, err
	}

	next, changed := apply(current, domain.HistoryEntry{
		Server:       server,
		CollectionID: collectionID,
		ItemID:       itemID,
		Timestamp:    ts,
	})
	if !changed {
		return append([]domain.HistoryEntry(nil), current...), nil
	}

	if c.store != nil {
		data, err := encode(next)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersist, err)
		}
		if err := c.store.Set(k.storeKey(), data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersist, err)
		}
	}

	c.mu.Lock()
	c.entries[k] = next
	c.mu.Unlock()

	return append([]domain.HistoryEntry(nil), next...), nil
}

// Clear forgets every entry of the collection
func (c *Cache) Clear(server, collectionID string) error {
	k := key{server: server, collection: collectionID}
	l := c.lockFor(k)
	l.Lock()
	defer l.Unlock()

	if c.store != nil {
		if err := c.store.Delete(k.storeKey()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersist, err)
		}
	}
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
	return nil
}

// Ref names one collection with stored history
type Ref struct {
	Server       string
	CollectionID string
}

// Collections lists every collection with stored history, ordered by store key
func (c *Cache) Collections() ([]Ref, error) {
	if c.store == nil {
		return nil, nil
	}
	keys, err := c.store.Keys(KeyPrefix)
	if err != nil {
		return nil, err
	}

	refs := make([]Ref, 0, len(keys))
	for _, k := range keys {
		ref, ok := parseStoreKey(k)
		if !ok {
			c.logger.Warn("ignoring malformed history key", "key", k)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// parseStoreKey reverses key.storeKey
func parseStoreKey(k string) (Ref, bool) {
	rest, ok := strings.CutPrefix(k, KeyPrefix)
	if !ok {
		return Ref{}, false
	}
	server, collection, ok := strings.Cut(rest, "/")
	if !ok {
		return Ref{}, false
	}
	server, err := url.PathUnescape(server)
	if err != nil {
		return Ref{}, false
	}
	collection, err = url.PathUnescape(collection)
	if err != nil || server == "" || collection == "" {
		return Ref{}, false
	}
	return Ref{Server: server, CollectionID: collection}, true
}

// apply inserts or refreshes e without mutating entries
func apply(entries []domain.HistoryEntry, e domain.HistoryEntry) ([]domain.HistoryEntry, bool) {
	next := append([]domain.HistoryEntry(nil), entries...)

	found := false
	for i := range next {
		if next[i].ItemID != e.ItemID {
			continue
		}
		if !e.Timestamp.After(next[i].Timestamp) {
			return entries, false
		}
		next[i].Timestamp = uniqueTimestamp(next, i, e.Timestamp)
		found = true
		break
	}
	if !found {
		next = append(next, e)
		last := len(next) - 1
		next[last].Timestamp = uniqueTimestamp(next, last, e.Timestamp)
	}

	return normalize(next), true
}

// uniqueTimestamp nudges ts forward until no other entry shares it, keeping the
// descending order strict
func uniqueTimestamp(entries []domain.HistoryEntry, self int, ts time.Time) time.Time {
	for {
		clash := false
		for i := range entries {
			if i != self && entries[i].Timestamp.Equal(ts) {
				clash = true
				break
			}
		}
		if !clash {
			return ts
		}
		ts = ts.Add(time.Nanosecond)
	}
}

// normalize sorts newest first, drops duplicate items and bounds the length
func normalize(entries []domain.HistoryEntry) []domain.HistoryEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, dup := seen[e.ItemID]; dup {
			continue
		}
		seen[e.ItemID] = struct{}{}
		out = append(out, e)
	}
	if len(out) > domain.HistoryLimit {
		out = out[:domain.HistoryLimit]
	}
	return out
}
