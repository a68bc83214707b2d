package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

const allowedAppsKey = "notirelay:allowed_apps"

// Allowlist is the set of apps the operator relays notifications for.
// It is independent of stored history: an app can have history without
// being allowed and the other way round.
type Allowlist struct {
	kv store.KV
	mu sync.Mutex
}

func NewAllowlist(kv store.KV) *Allowlist {
	return &Allowlist{kv: kv}
}

func (al *Allowlist) load(ctx context.Context) []string {
	data, ok, err := al.kv.Get(ctx, allowedAppsKey)
	if err != nil || !ok {
		return nil
	}
	var apps []string
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil
	}
	return apps
}

func (al *Allowlist) save(ctx context.Context, apps []string) error {
	data, err := json.Marshal(apps)
	if err != nil {
		return fmt.Errorf("marshal allowlist: %w", err)
	}
	return al.kv.Put(ctx, allowedAppsKey, data)
}

// List returns the allowed packages, unordered.
func (al *Allowlist) List(ctx context.Context) []string {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.load(ctx)
}

// Contains reports whether pkg is allowed.
func (al *Allowlist) Contains(ctx context.Context, pkg string) bool {
	return slices.Contains(al.List(ctx), pkg)
}

// Add inserts pkg; already-present is a no-op.
func (al *Allowlist) Add(ctx context.Context, pkg string) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	apps := al.load(ctx)
	if slices.Contains(apps, pkg) {
		return nil
	}
	return al.save(ctx, append(apps, pkg))
}

// Remove deletes pkg; absent is a no-op.
func (al *Allowlist) Remove(ctx context.Context, pkg string) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	apps := al.load(ctx)
	kept := slices.DeleteFunc(apps, func(p string) bool { return p == pkg })
	if len(kept) == 0 {
		return al.kv.Delete(ctx, allowedAppsKey)
	}
	return al.save(ctx, kept)
}

// Clear drops the whole set.
func (al *Allowlist) Clear(ctx context.Context) error {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.kv.Delete(ctx, allowedAppsKey)
}
