package dispatch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/pushclaw/internal/command"
	"github.com/nextlevelbuilder/pushclaw/internal/push"
	"github.com/nextlevelbuilder/pushclaw/internal/registry"
	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

const scope = "12345:testbot"

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, token string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[token]; ok {
		return err
	}
	f.sent = append(f.sent, token)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, _, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func pairedDirectory(t *testing.T, tokens ...string) *registry.Directory {
	t.Helper()
	ctx := context.Background()
	dir := registry.New(store.NewMemoryKV())
	for _, tok := range tokens {
		if err := dir.BeginPairing(ctx, scope, "phone1", tok); err != nil {
			t.Fatalf("begin pairing: %v", err)
		}
	}
	if _, err := dir.ConfirmPairing(ctx, scope, "phone1", "chat-1"); err != nil {
		t.Fatalf("confirm pairing: %v", err)
	}
	return dir
}

func ringCommand() *command.Command {
	return &command.Command{Kind: command.Ring, ChatID: "chat-1", Scope: scope}
}

func TestDispatch_NotRegistered(t *testing.T) {
	dir := registry.New(store.NewMemoryKV())
	sender := &fakeSender{}
	notifier := &fakeNotifier{}

	out := New(dir, sender, notifier).Dispatch(context.Background(), ringCommand())

	if out.Tokens != 0 || out.Sent != 0 {
		t.Errorf("outcome = %+v, want zero", out)
	}
	if len(sender.sent) != 0 {
		t.Errorf("push attempted with no registration: %v", sender.sent)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != MsgNotRegistered {
		t.Errorf("messages = %v, want one not-registered notice", notifier.messages)
	}
}

func TestDispatch_EvictsInvalidTokenKeepsSibling(t *testing.T) {
	ctx := context.Background()
	dir := pairedDirectory(t, "tok-a", "tok-b")
	sender := &fakeSender{fail: map[string]error{"tok-a": push.ErrUnregistered}}
	notifier := &fakeNotifier{}

	out := New(dir, sender, notifier).Dispatch(ctx, ringCommand())

	if out.Sent != 1 {
		t.Errorf("sent = %d, want 1", out.Sent)
	}
	if !slices.Equal(out.Evicted, []string{"tok-a"}) {
		t.Errorf("evicted = %v, want [tok-a]", out.Evicted)
	}
	if !slices.Contains(sender.sent, "tok-b") {
		t.Errorf("sibling token not delivered: %v", sender.sent)
	}
	if tokens := dir.TokensFor(ctx, scope, "chat-1"); !slices.Equal(tokens, []string{"tok-b"}) {
		t.Errorf("confirmed = %v, want [tok-b]", tokens)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != MsgEvicted {
		t.Errorf("messages = %v, want exactly one eviction notice", notifier.messages)
	}
}

func TestDispatch_OneNoticeForManyDeadTokens(t *testing.T) {
	dir := pairedDirectory(t, "tok-a", "tok-b", "tok-c")
	sender := &fakeSender{fail: map[string]error{
		"tok-a": push.ErrUnregistered,
		"tok-b": push.ErrUnregistered,
	}}
	notifier := &fakeNotifier{}

	out := New(dir, sender, notifier).Dispatch(context.Background(), ringCommand())

	if len(out.Evicted) != 2 {
		t.Errorf("evicted = %v, want 2 tokens", out.Evicted)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("notices = %d, want exactly 1", len(notifier.messages))
	}
}

func TestDispatch_TransientFailureDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	dir := pairedDirectory(t, "tok-a", "tok-b")
	sender := &fakeSender{fail: map[string]error{"tok-a": errors.New("timeout")}}
	notifier := &fakeNotifier{}

	out := New(dir, sender, notifier).Dispatch(ctx, ringCommand())

	if out.Sent != 1 || len(out.Evicted) != 0 {
		t.Errorf("outcome = %+v, want 1 sent and no evictions", out)
	}
	if tokens := dir.TokensFor(ctx, scope, "chat-1"); len(tokens) != 2 {
		t.Errorf("tokens = %v, want both retained", tokens)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("unexpected notices: %v", notifier.messages)
	}
}

func TestDispatch_PayloadCarriesTypeAndRouting(t *testing.T) {
	dir := pairedDirectory(t, "tok-a")
	var captured map[string]string
	sender := senderFunc(func(_ context.Context, _ string, payload map[string]string) error {
		captured = payload
		return nil
	})

	New(dir, sender, &fakeNotifier{}).Dispatch(context.Background(), &command.Command{
		Kind: command.List, ChatID: "chat-1", Scope: scope,
		Sort: "date", Order: "desc", Path: "/sdcard/DCIM",
	})

	for k, want := range map[string]string{
		"type": "list", "chat_id": "chat-1", "bot_token": scope,
		"sort": "date", "order": "desc", "path": "/sdcard/DCIM",
	} {
		if captured[k] != want {
			t.Errorf("payload[%q] = %q, want %q", k, captured[k], want)
		}
	}
	if strings.Contains(captured["type"], ":") {
		t.Errorf("wire prefix leaked into payload type: %q", captured["type"])
	}
}

type senderFunc func(ctx context.Context, token string, payload map[string]string) error

func (f senderFunc) Send(ctx context.Context, token string, payload map[string]string) error {
	return f(ctx, token, payload)
}
