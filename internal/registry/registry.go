// Package registry tracks which push endpoints belong to which chat.
//
// Two kinds of entries share one shape (a list of endpoint tokens):
//
//   - pending, keyed by (scope, nickname): written when a device starts
//     pairing, consumed exactly once by the chat-side confirm command;
//   - confirmed, keyed by (scope, chat id): the lists the dispatcher
//     fans out to. Multiple devices may pair into one chat.
//
// Every method is total: an absent entry reads as an empty token list,
// never as an error. Mutations for one scope are serialized so the
// load-modify-store sequences cannot lose updates.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

const (
	pendingPrefix   = "nickmap:"
	confirmedPrefix = "fcm:"
)

// Outcome reports what ConfirmPairing did, so the caller can word the
// user-facing reply.
type Outcome int

const (
	// Merged: at least one new token was bound to the chat.
	Merged Outcome = iota
	// AlreadyPaired: the union added nothing; the chat was already set up.
	AlreadyPaired
	// NoDevice: no tokens were resolvable for the nickname or the chat.
	NoDevice
)

func (o Outcome) String() string {
	switch o {
	case Merged:
		return "merged"
	case AlreadyPaired:
		return "already_paired"
	case NoDevice:
		return "no_device"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Directory is the registration directory over the KV repository.
type Directory struct {
	kv store.KV

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

func New(kv store.KV) *Directory {
	return &Directory{kv: kv, scopes: make(map[string]*sync.Mutex)}
}

func (d *Directory) scopeLock(scope string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.scopes[scope]
	if !ok {
		m = &sync.Mutex{}
		d.scopes[scope] = m
	}
	return m
}

func pendingKey(scope, nickname string) string { return pendingPrefix + scope + ":" + nickname }
func confirmedKey(scope, chatID string) string { return confirmedPrefix + scope + ":" + chatID }

// loadTokens reads a token list; missing or unparsable values read empty.
func (d *Directory) loadTokens(ctx context.Context, key string) []string {
	data, ok, err := d.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil
	}
	return tokens
}

func (d *Directory) saveTokens(ctx context.Context, key string, tokens []string) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	return d.kv.Put(ctx, key, data)
}

// BeginPairing appends token to the pending list for (scope, nickname).
// Idempotent: a token already present is left alone.
func (d *Directory) BeginPairing(ctx context.Context, scope, nickname, token string) error {
	m := d.scopeLock(scope)
	m.Lock()
	defer m.Unlock()

	key := pendingKey(scope, nickname)
	tokens := d.loadTokens(ctx, key)
	if slices.Contains(tokens, token) {
		return nil
	}
	tokens = append(tokens, token)
	if err := d.saveTokens(ctx, key, tokens); err != nil {
		return err
	}
	slog.Info("pairing started", "scope", scope, "nickname", nickname, "tokens", len(tokens))
	return nil
}

// RegisterEndpoint is the one-shot external registration entry point.
// Same contract as BeginPairing.
func (d *Directory) RegisterEndpoint(ctx context.Context, scope, nickname, token string) error {
	return d.BeginPairing(ctx, scope, nickname, token)
}

// ConfirmPairing unions the pending tokens for nickname into the
// confirmed list for chatID (existing tokens first) and deletes the
// pending entry. An empty union reports NoDevice and leaves nothing
// behind.
func (d *Directory) ConfirmPairing(ctx context.Context, scope, nickname, chatID string) (Outcome, error) {
	m := d.scopeLock(scope)
	m.Lock()
	defer m.Unlock()

	pKey := pendingKey(scope, nickname)
	cKey := confirmedKey(scope, chatID)

	existing := d.loadTokens(ctx, cKey)
	pending := d.loadTokens(ctx, pKey)

	union := slices.Clone(existing)
	added := false
	for _, t := range pending {
		if !slices.Contains(union, t) {
			union = append(union, t)
			added = true
		}
	}

	if len(union) == 0 {
		// Nothing resolvable at all; also drop the (empty) pending entry.
		if err := d.kv.Delete(ctx, pKey); err != nil {
			return NoDevice, err
		}
		return NoDevice, nil
	}

	if added {
		if err := d.saveTokens(ctx, cKey, union); err != nil {
			return Merged, err
		}
	}
	if err := d.kv.Delete(ctx, pKey); err != nil {
		return Merged, err
	}

	if added {
		slog.Info("pairing confirmed", "scope", scope, "nickname", nickname, "chat_id", chatID, "tokens", len(union))
		return Merged, nil
	}
	return AlreadyPaired, nil
}

// TokensFor returns the confirmed tokens for a chat, empty when none.
func (d *Directory) TokensFor(ctx context.Context, scope, chatID string) []string {
	return d.loadTokens(ctx, confirmedKey(scope, chatID))
}

// EvictToken removes a permanently invalid token from the chat's
// confirmed list and from every pending entry in the same scope (a
// device may have re-paired before its old token was reported dead).
// Entries whose list empties are deleted; no empty-list entry survives.
func (d *Directory) EvictToken(ctx context.Context, scope, chatID, token string) error {
	m := d.scopeLock(scope)
	m.Lock()
	defer m.Unlock()

	cKey := confirmedKey(scope, chatID)
	confirmed := d.loadTokens(ctx, cKey)
	kept := slices.DeleteFunc(slices.Clone(confirmed), func(t string) bool { return t == token })
	if len(kept) != len(confirmed) {
		var err error
		if len(kept) == 0 {
			err = d.kv.Delete(ctx, cKey)
		} else {
			err = d.saveTokens(ctx, cKey, kept)
		}
		if err != nil {
			return err
		}
		slog.Info("endpoint evicted", "scope", scope, "chat_id", chatID, "remaining", len(kept))
	}

	pendingKeys, err := d.kv.List(ctx, pendingPrefix+scope+":")
	if err != nil {
		return fmt.Errorf("list pending entries: %w", err)
	}
	for _, key := range pendingKeys {
		tokens := d.loadTokens(ctx, key)
		keptP := slices.DeleteFunc(slices.Clone(tokens), func(t string) bool { return t == token })
		if len(keptP) == len(tokens) {
			continue
		}
		if len(keptP) == 0 {
			err = d.kv.Delete(ctx, key)
		} else {
			err = d.saveTokens(ctx, key, keptP)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PendingNicknames lists nicknames with pending registrations in scope.
func (d *Directory) PendingNicknames(ctx context.Context, scope string) ([]string, error) {
	keys, err := d.kv.List(ctx, pendingPrefix+scope+":")
	if err != nil {
		return nil, err
	}
	nicks := make([]string, 0, len(keys))
	for _, k := range keys {
		nicks = append(nicks, k[len(pendingPrefix+scope+":"):])
	}
	return nicks, nil
}
