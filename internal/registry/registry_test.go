package registry

import (
	"context"
	"slices"
	"testing"

	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

const scope = "12345:testbot"

func TestConfirmPairing_MergesPendingTokens(t *testing.T) {
	ctx := context.Background()
	dir := New(store.NewMemoryKV())

	dir.BeginPairing(ctx, scope, "phone1", "tok-a")
	dir.BeginPairing(ctx, scope, "phone1", "tok-b")
	dir.BeginPairing(ctx, scope, "phone1", "tok-a") // idempotent

	outcome, err := dir.ConfirmPairing(ctx, scope, "phone1", "chat-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if outcome != Merged {
		t.Errorf("outcome = %v, want merged", outcome)
	}

	tokens := dir.TokensFor(ctx, scope, "chat-1")
	if !slices.Equal(tokens, []string{"tok-a", "tok-b"}) {
		t.Errorf("tokens = %v", tokens)
	}

	// Pending entry is consumed.
	nicks, _ := dir.PendingNicknames(ctx, scope)
	if len(nicks) != 0 {
		t.Errorf("pending left behind: %v", nicks)
	}
}

func TestConfirmPairing_Idempotent(t *testing.T) {
	ctx := context.Background()
	dir := New(store.NewMemoryKV())

	dir.BeginPairing(ctx, scope, "phone1", "tok-a")
	if outcome, _ := dir.ConfirmPairing(ctx, scope, "phone1", "chat-1"); outcome != Merged {
		t.Fatalf("first confirm = %v, want merged", outcome)
	}

	// Device re-announces the same token, operator confirms again.
	dir.BeginPairing(ctx, scope, "phone1", "tok-a")
	outcome, err := dir.ConfirmPairing(ctx, scope, "phone1", "chat-1")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if outcome != AlreadyPaired {
		t.Errorf("second confirm = %v, want already_paired", outcome)
	}
	if tokens := dir.TokensFor(ctx, scope, "chat-1"); !slices.Equal(tokens, []string{"tok-a"}) {
		t.Errorf("tokens changed: %v", tokens)
	}
}

func TestConfirmPairing_NoDevice(t *testing.T) {
	ctx := context.Background()
	dir := New(store.NewMemoryKV())

	outcome, err := dir.ConfirmPairing(ctx, scope, "phone1", "chat-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if outcome != NoDevice {
		t.Errorf("outcome = %v, want no_device", outcome)
	}
	if tokens := dir.TokensFor(ctx, scope, "chat-1"); len(tokens) != 0 {
		t.Errorf("confirmed list changed: %v", tokens)
	}
	nicks, _ := dir.PendingNicknames(ctx, scope)
	if len(nicks) != 0 {
		t.Errorf("pending left behind: %v", nicks)
	}
}

func TestConfirmPairing_ExistingTokensKeepOrder(t *testing.T) {
	ctx := context.Background()
	dir := New(store.NewMemoryKV())

	dir.BeginPairing(ctx, scope, "phone1", "tok-old")
	dir.ConfirmPairing(ctx, scope, "phone1", "chat-1")

	dir.BeginPairing(ctx, scope, "phone2", "tok-new")
	outcome, _ := dir.ConfirmPairing(ctx, scope, "phone2", "chat-1")
	if outcome != Merged {
		t.Fatalf("outcome = %v, want merged", outcome)
	}

	// Union order: existing first, then new.
	tokens := dir.TokensFor(ctx, scope, "chat-1")
	if !slices.Equal(tokens, []string{"tok-old", "tok-new"}) {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestEvictToken_RemovesEverywhere(t *testing.T) {
	ctx := context.Background()
	dir := New(store.NewMemoryKV())

	dir.BeginPairing(ctx, scope, "phone1", "tok-a")
	dir.BeginPairing(ctx, scope, "phone1", "tok-b")
	dir.ConfirmPairing(ctx, scope, "phone1", "chat-1")

	// Device re-paired under a new nickname before tok-a was known dead.
	dir.BeginPairing(ctx, scope, "phone1-again", "tok-a")

	if err := dir.EvictToken(ctx, scope, "chat-1", "tok-a"); err != nil {
		t.Fatalf("evict: %v", err)
	}

	if tokens := dir.TokensFor(ctx, scope, "chat-1"); !slices.Equal(tokens, []string{"tok-b"}) {
		t.Errorf("confirmed = %v, want [tok-b]", tokens)
	}
	// The pending entry held only tok-a, so it must be gone entirely.
	nicks, _ := dir.PendingNicknames(ctx, scope)
	if len(nicks) != 0 {
		t.Errorf("pending left behind after evict: %v", nicks)
	}
}

func TestEvictToken_DeletesEmptyConfirmedEntry(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	dir := New(kv)

	dir.BeginPairing(ctx, scope, "phone1", "tok-a")
	dir.ConfirmPairing(ctx, scope, "phone1", "chat-1")

	if err := dir.EvictToken(ctx, scope, "chat-1", "tok-a"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if tokens := dir.TokensFor(ctx, scope, "chat-1"); len(tokens) != 0 {
		t.Errorf("tokens = %v, want empty", tokens)
	}
	// No empty-list entry may survive.
	keys, _ := kv.List(ctx, "fcm:")
	if len(keys) != 0 {
		t.Errorf("empty confirmed entry left behind: %v", keys)
	}
}

func TestTokensFor_MissingReadsEmpty(t *testing.T) {
	dir := New(store.NewMemoryKV())
	if tokens := dir.TokensFor(context.Background(), scope, "nope"); len(tokens) != 0 {
		t.Errorf("tokens = %v, want empty", tokens)
	}
}
