// Package dispatch resolves a command's chat to its registered device
// endpoints and fans the push payload out, one send per token.
//
// Fan-out is concurrent and per-token isolated: a transient failure is
// logged and skipped, a permanently invalid token is evicted from the
// registry, and neither outcome touches delivery to sibling tokens. The
// inbound chat event is acknowledged by the caller regardless of what
// happens here.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/pushclaw/internal/command"
	"github.com/nextlevelbuilder/pushclaw/internal/push"
	"github.com/nextlevelbuilder/pushclaw/internal/registry"
)

// User-facing notices. Worded once here so the relay and tests agree.
const (
	MsgNotRegistered = "No device registered for this chat. Please complete registration in your device app and then use /register <nickname> again."
	MsgEvicted       = "Your device is no longer registered for receiving commands (possibly due to app uninstall/reinstall). Please re-register from your device app and then use /register <nickname> again."
)

// Notifier sends a plain text reply back to the originating chat.
type Notifier interface {
	Notify(ctx context.Context, scope, chatID, text string) error
}

// Outcome summarizes one dispatch for logging and tests.
type Outcome struct {
	Tokens  int      // registered tokens at dispatch time
	Sent    int      // successful sends
	Evicted []string // tokens removed as permanently invalid
}

// Dispatcher turns Commands into pushes.
type Dispatcher struct {
	dir      *registry.Directory
	sender   push.Sender
	notifier Notifier
}

func New(dir *registry.Directory, sender push.Sender, notifier Notifier) *Dispatcher {
	return &Dispatcher{dir: dir, sender: sender, notifier: notifier}
}

// Dispatch sends cmd to every endpoint registered for its chat.
// It never returns an error: delivery problems are handled in place and
// the chat event has already been acknowledged.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *command.Command) Outcome {
	tokens := d.dir.TokensFor(ctx, cmd.Scope, cmd.ChatID)
	if len(tokens) == 0 {
		if err := d.notifier.Notify(ctx, cmd.Scope, cmd.ChatID, MsgNotRegistered); err != nil {
			slog.Warn("not-registered notice failed", "chat_id", cmd.ChatID, "error", err)
		}
		return Outcome{}
	}

	payload := cmd.Payload()

	var (
		mu         sync.Mutex
		out        = Outcome{Tokens: len(tokens)}
		noticeOnce sync.Once
	)

	var g errgroup.Group
	for _, token := range tokens {
		g.Go(func() error {
			err := d.sender.Send(ctx, token, payload)
			switch {
			case err == nil:
				mu.Lock()
				out.Sent++
				mu.Unlock()
			case errors.Is(err, push.ErrUnregistered):
				if evictErr := d.dir.EvictToken(ctx, cmd.Scope, cmd.ChatID, token); evictErr != nil {
					slog.Error("evict failed", "chat_id", cmd.ChatID, "error", evictErr)
				}
				mu.Lock()
				out.Evicted = append(out.Evicted, token)
				mu.Unlock()
				// One re-pair notice per dispatch, however many tokens died.
				noticeOnce.Do(func() {
					if nErr := d.notifier.Notify(ctx, cmd.Scope, cmd.ChatID, MsgEvicted); nErr != nil {
						slog.Warn("eviction notice failed", "chat_id", cmd.ChatID, "error", nErr)
					}
				})
			default:
				slog.Warn("push send failed", "type", cmd.Kind, "chat_id", cmd.ChatID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	slog.Debug("dispatched", "type", cmd.Kind, "chat_id", cmd.ChatID,
		"tokens", out.Tokens, "sent", out.Sent, "evicted", len(out.Evicted))
	return out
}
