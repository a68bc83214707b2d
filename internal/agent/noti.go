package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/pushclaw/internal/history"
	"github.com/nextlevelbuilder/pushclaw/internal/present"
)

// pickerKind distinguishes the four app-picker flows. They differ only
// in where the app list comes from and which callback the buttons fire.
type pickerKind int

const (
	pickerAdd pickerKind = iota
	pickerRemove
	pickerClear
	pickerExport
)

type pickerSpec struct {
	callback    string
	firstText   string
	moreText    string
	emptyText   string
	fromHistory bool // list apps with stored history instead of the allowlist
}

var pickers = map[pickerKind]pickerSpec{
	pickerAdd: {
		callback:    "notiaddpick",
		firstText:   "Select an app to add for notification relay:",
		moreText:    "More apps to add for notification relay:",
		emptyText:   "No apps have posted notifications yet.",
		fromHistory: true,
	},
	pickerRemove: {
		callback:  "notiremovepick",
		firstText: "Select an app to remove from notification relay:",
		moreText:  "More apps to remove from notification relay:",
		emptyText: "No apps are being relayed.",
	},
	pickerClear: {
		callback:  "noticlearpick",
		firstText: "Select an app to clear notifications:",
		moreText:  "More apps to clear notifications:",
		emptyText: "No apps to clear notifications for.",
	},
	pickerExport: {
		callback:  "notiexportpick",
		firstText: "Select an app to export notifications:",
		moreText:  "More apps to export notifications:",
		emptyText: "No apps to export notifications for.",
	},
}

// appPicker builds the batched app-selection keyboards for one flow.
// page < 0 sends every batch in order; page >= 0 sends only that batch
// (clamped to the last one).
func (a *Agent) appPicker(ctx context.Context, kind pickerKind, page int) ([]Message, error) {
	spec := pickers[kind]

	var pkgs []string
	var err error
	if spec.fromHistory {
		pkgs, err = a.notiLog.Owners(ctx)
		if err != nil {
			return nil, fmt.Errorf("list apps with history: %w", err)
		}
	} else {
		pkgs = a.allow.List(ctx)
	}
	a.sortByLabel(pkgs)

	items := make([]present.Item, 0, len(pkgs))
	for _, pkg := range pkgs {
		items = append(items, present.Item{
			Label: a.label(pkg),
			Data:  spec.callback + ":" + pkg,
		})
	}

	pg := present.Paginate(items, present.AppsPerBatch)
	if pg.Empty {
		return []Message{{Text: spec.emptyText}}, nil
	}

	if page >= 0 {
		if page >= len(pg.Pages) {
			page = len(pg.Pages) - 1
		}
		text := spec.firstText
		if page > 0 {
			text = spec.moreText
		}
		return []Message{{Text: text, Keyboard: present.Keyboard(pg.Pages[page])}}, nil
	}

	msgs := make([]Message, 0, len(pg.Pages))
	for i, p := range pg.Pages {
		text := spec.firstText
		if i > 0 {
			text = spec.moreText
		}
		msgs = append(msgs, Message{Text: text, Keyboard: present.Keyboard(p)})
	}
	return msgs, nil
}

// notiMenu summarizes the relayed apps with their notification counts
// and always offers the call-log and contact dumps.
func (a *Agent) notiMenu(ctx context.Context) ([]Message, error) {
	pkgs := a.allow.List(ctx)
	a.sortByLabel(pkgs)

	items := make([]present.Item, 0, len(pkgs)+2)
	for _, pkg := range pkgs {
		items = append(items, present.Item{Label: a.label(pkg), Data: "notipick:" + pkg})
	}
	items = append(items,
		present.Item{Label: "📞 Call Logs", Data: "calllogs"},
		present.Item{Label: "👥 Contacts", Data: "contacts"},
	)
	kb := present.Keyboard(items)

	if len(pkgs) == 0 {
		return []Message{{
			Text:     "No apps are being relayed. Use /notiadd to add.\n\nYou can also request call logs or contacts:",
			Keyboard: kb,
		}}, nil
	}

	var sb strings.Builder
	sb.WriteString("Relaying notifications for:\n")
	for i, pkg := range pkgs {
		count := len(a.notiLog.List(ctx, pkg))
		sb.WriteString(fmt.Sprintf("%d. %s (%s) %d\n", i+1, a.label(pkg), pkg, count))
	}
	sb.WriteString("\nYou may also request call logs or contacts below:")

	return []Message{{Text: sb.String(), Keyboard: kb}}, nil
}

func (a *Agent) addApp(ctx context.Context, pkg string) ([]Message, error) {
	if pkg == "" {
		return []Message{{Text: "No app selected."}}, nil
	}
	if err := a.allow.Add(ctx, pkg); err != nil {
		return nil, fmt.Errorf("add allowed app: %w", err)
	}
	return []Message{{Text: fmt.Sprintf("Added app: %s (%s)", a.label(pkg), pkg)}}, nil
}

func (a *Agent) removeApp(ctx context.Context, pkg string) ([]Message, error) {
	if pkg == "" {
		return []Message{{Text: "No app selected."}}, nil
	}
	if err := a.allow.Remove(ctx, pkg); err != nil {
		return nil, fmt.Errorf("remove allowed app: %w", err)
	}
	return []Message{{Text: fmt.Sprintf("Removed app: %s (%s)", a.label(pkg), pkg)}}, nil
}

func (a *Agent) clearApp(ctx context.Context, pkg string) ([]Message, error) {
	if err := a.notiLog.Clear(ctx, pkg); err != nil {
		return nil, fmt.Errorf("clear history: %w", err)
	}
	return []Message{{Text: fmt.Sprintf("Cleared notifications for %s.", a.label(pkg))}}, nil
}

// sendNotifications renders a package's history in chunks and clears it
// afterwards: picking a package drains it.
func (a *Agent) sendNotifications(ctx context.Context, pkg string) ([]Message, error) {
	label := a.label(pkg)
	notis := a.notiLog.List(ctx, pkg)
	if len(notis) == 0 {
		return []Message{{Text: fmt.Sprintf("No notifications for %s.", label)}}, nil
	}

	chunks := present.Chunker{
		Header: fmt.Sprintf("Recent notifications for %s:\n\n", label),
		Continuation: func(part int) string {
			return fmt.Sprintf("Cont'd notifications for %s (part %d):\n\n", label, part)
		},
		Empty: fmt.Sprintf("No notifications for %s.", label),
	}.Chunk(renderNotifications(collapseConsecutive(notis)))

	if err := a.notiLog.Clear(ctx, pkg); err != nil {
		return nil, fmt.Errorf("clear history after send: %w", err)
	}

	msgs := make([]Message, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, Message{Text: c})
	}
	return msgs, nil
}

// exportNotifications renders a package's history without clearing it
// and records the export.
func (a *Agent) exportNotifications(ctx context.Context, pkg string) ([]Message, error) {
	notis := a.notiLog.List(ctx, pkg)
	if len(notis) == 0 {
		return []Message{{Text: fmt.Sprintf("No notifications to export for %s.", pkg)}}, nil
	}
	label := a.label(pkg)
	deduped := collapseConsecutive(notis)

	chunks := present.Chunker{
		Header: fmt.Sprintf("Notification export for %s (%s):\n\n", label, pkg),
		Continuation: func(part int) string {
			return fmt.Sprintf("Cont'd export for %s (part %d):\n\n", label, part)
		},
		Empty: fmt.Sprintf("No notifications to export for %s.", pkg),
	}.Chunk(renderNotifications(deduped))

	if err := a.exports.Add(ctx, pkg, len(deduped)); err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}

	msgs := make([]Message, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, Message{Text: c})
	}
	return msgs, nil
}

// collapseConsecutive drops adjacent repeats at presentation time. The
// store already suppresses head repeats, but eviction and clears can
// re-introduce adjacency.
func collapseConsecutive(notis []history.Notification) []history.Notification {
	var out []history.Notification
	for i, n := range notis {
		if i > 0 && history.SameNotification(notis[i-1], n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func renderNotifications(notis []history.Notification) []string {
	entries := make([]string, 0, len(notis))
	for i, n := range notis {
		entries = append(entries, fmt.Sprintf("%d. %s\n%s\n%s\n\n",
			i+1, n.Title, n.Text, formatMillis(n.Time)))
	}
	return entries
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
