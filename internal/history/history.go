// Package history implements the bounded, deduplicated, newest-first
// event logs kept on the device: one log per app for posted
// notifications, one global log for call entries.
//
// Each owner's full list is one value in the key-value store and every
// mutation is a single atomic overwrite, so a crash can lose at most the
// in-flight write, never corrupt an entry. A list that fails to parse is
// treated as empty rather than surfaced as an error; the capture path
// must never fail on bad persisted state.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MaxHistory bounds every owner's list. Appends evict the oldest entries.
const MaxHistory = 1000

// DedupPolicy selects which existing entries a candidate is compared to.
type DedupPolicy int

const (
	// DedupConsecutive rejects a candidate equal to the current head
	// entry only. Repeated notifications reissue rapidly; only the
	// immediate repeat is noise.
	DedupConsecutive DedupPolicy = iota

	// DedupAll rejects a candidate equal to any stored entry. Call
	// entries arrive in scan bursts that may overlap earlier scans.
	DedupAll
)

// Log is an ordered newest-first event log partitioned by owner id.
type Log[E any] struct {
	kv     KV
	prefix string
	policy DedupPolicy
	equal  func(a, b E) bool
	timeOf func(E) int64

	mu    sync.Mutex
	owner map[string]*sync.Mutex
}

// KV is the subset of the store contract the log needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// New creates a log over kv. prefix namespaces the owner keys. equal
// defines entry identity for dedup; timeOf orders entries for watermark
// sync and may be nil for logs that never bulk-sync.
func New[E any](kv KV, prefix string, policy DedupPolicy, equal func(a, b E) bool, timeOf func(E) int64) *Log[E] {
	return &Log[E]{
		kv:     kv,
		prefix: prefix,
		policy: policy,
		equal:  equal,
		timeOf: timeOf,
		owner:  make(map[string]*sync.Mutex),
	}
}

func (l *Log[E]) key(owner string) string { return l.prefix + owner }

// lockOwner returns the mutex serializing writes for one owner.
// Different owners proceed in parallel.
func (l *Log[E]) lockOwner(owner string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.owner[owner]
	if !ok {
		m = &sync.Mutex{}
		l.owner[owner] = m
	}
	return m
}

func (l *Log[E]) load(ctx context.Context, owner string) []E {
	data, ok, err := l.kv.Get(ctx, l.key(owner))
	if err != nil || !ok {
		return nil
	}
	var entries []E
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt value: behave as empty, do not fail the capture path.
		return nil
	}
	return entries
}

func (l *Log[E]) save(ctx context.Context, owner string, entries []E) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history for %s: %w", owner, err)
	}
	return l.kv.Put(ctx, l.key(owner), data)
}

func (l *Log[E]) isDuplicate(entries []E, e E) bool {
	switch l.policy {
	case DedupConsecutive:
		return len(entries) > 0 && l.equal(entries[0], e)
	case DedupAll:
		for _, old := range entries {
			if l.equal(old, e) {
				return true
			}
		}
	}
	return false
}

// Append inserts e as the new head unless the dedup policy rejects it.
// Returns whether the entry was inserted.
func (l *Log[E]) Append(ctx context.Context, owner string, e E) (bool, error) {
	m := l.lockOwner(owner)
	m.Lock()
	defer m.Unlock()

	entries := l.load(ctx, owner)
	if l.isDuplicate(entries, e) {
		return false, nil
	}

	next := make([]E, 0, min(len(entries)+1, MaxHistory))
	next = append(next, e)
	next = append(next, entries[:min(len(entries), MaxHistory-1)]...)

	if err := l.save(ctx, owner, next); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the owner's entries, newest first. Missing or corrupt
// state yields an empty slice.
func (l *Log[E]) List(ctx context.Context, owner string) []E {
	m := l.lockOwner(owner)
	m.Lock()
	defer m.Unlock()
	return l.load(ctx, owner)
}

// Clear removes the owner's whole list.
func (l *Log[E]) Clear(ctx context.Context, owner string) error {
	m := l.lockOwner(owner)
	m.Lock()
	defer m.Unlock()
	return l.kv.Delete(ctx, l.key(owner))
}

// Owners lists every owner id with stored history.
func (l *Log[E]) Owners(ctx context.Context) ([]string, error) {
	keys, err := l.kv.List(ctx, l.prefix)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(keys))
	for _, k := range keys {
		owners = append(owners, strings.TrimPrefix(k, l.prefix))
	}
	return owners, nil
}

// SyncDescending pulls entries from next, which must yield them in
// descending time order, and prepends every entry newer than the stored
// watermark (the head entry's time). The scan stops at the first entry
// at or below the watermark; the source is assumed append-only, so
// nothing older can be new. Returns how many entries were added.
func (l *Log[E]) SyncDescending(ctx context.Context, owner string, next func() (E, bool)) (int, error) {
	if l.timeOf == nil {
		return 0, fmt.Errorf("history: log %q has no time accessor", l.prefix)
	}

	m := l.lockOwner(owner)
	m.Lock()
	defer m.Unlock()

	entries := l.load(ctx, owner)
	var watermark int64
	if len(entries) > 0 {
		watermark = l.timeOf(entries[0])
	}

	var fresh []E
	for {
		e, ok := next()
		if !ok {
			break
		}
		if l.timeOf(e) <= watermark {
			break
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	merged := make([]E, 0, min(len(fresh)+len(entries), MaxHistory))
	merged = append(merged, fresh...)
	if keep := MaxHistory - len(fresh); keep > 0 {
		merged = append(merged, entries[:min(len(entries), keep)]...)
	} else {
		merged = merged[:MaxHistory]
	}

	if err := l.save(ctx, owner, merged); err != nil {
		return 0, err
	}
	return len(fresh), nil
}
