// Package present turns item lists into inline-keyboard pages and long
// reports into transport-safe message chunks. Everything here is pure
// and deterministic; the caller owns sending.
package present

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	// ButtonsPerRow is the fixed keyboard grid width.
	ButtonsPerRow = 2
	// AppsPerBatch is how many selectable apps ride one message.
	AppsPerBatch = 30
	// MaxMessageLen is Telegram's hard per-message limit.
	MaxMessageLen = 4096
)

// Item is one selectable entry: a button label and its callback data.
type Item struct {
	Label string
	Data  string
}

// Pagination is the result of splitting items into fixed-size pages.
// Empty is the explicit zero-items state; Pages is never an empty
// non-nil slice.
type Pagination struct {
	Pages [][]Item
	Empty bool
}

// Paginate splits items into pages of at most pageSize entries.
func Paginate(items []Item, pageSize int) Pagination {
	if len(items) == 0 {
		return Pagination{Empty: true}
	}
	if pageSize <= 0 {
		pageSize = AppsPerBatch
	}
	var pages [][]Item
	for start := 0; start < len(items); start += pageSize {
		end := min(start+pageSize, len(items))
		pages = append(pages, items[start:end])
	}
	return Pagination{Pages: pages}
}

// Keyboard lays one page out as an inline-keyboard grid, ButtonsPerRow
// buttons per row.
func Keyboard(page []Item) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for start := 0; start < len(page); start += ButtonsPerRow {
		end := min(start+ButtonsPerRow, len(page))
		row := make([]telego.InlineKeyboardButton, 0, ButtonsPerRow)
		for _, item := range page[start:end] {
			row = append(row, tu.InlineKeyboardButton(item.Label).WithCallbackData(item.Data))
		}
		rows = append(rows, row)
	}
	return tu.InlineKeyboard(rows...)
}

// Chunker splits a report into messages of at most MaxLen characters,
// breaking only between entries. Every chunk after the first opens with
// Continuation(part), part counting from 2.
type Chunker struct {
	Header       string
	Continuation func(part int) string
	Empty        string // sent when there are no entries at all
	MaxLen       int    // defaults to MaxMessageLen
}

// Chunk renders entries into ordered message bodies. Zero entries yield
// exactly the Empty message; the result is never an empty slice.
func (c Chunker) Chunk(entries []string) []string {
	maxLen := c.MaxLen
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}
	if len(entries) == 0 {
		return []string{c.Empty}
	}

	var (
		out  []string
		body = c.Header
		part = 1
	)
	for _, entry := range entries {
		// A single entry that can never fit is truncated rather than
		// split; the ≤ maxLen guarantee wins.
		if len(entry) > maxLen {
			entry = entry[:maxLen]
		}
		if len(body)+len(entry) > maxLen {
			out = append(out, body)
			part++
			body = ""
			if c.Continuation != nil {
				body = c.Continuation(part)
			}
			if len(body)+len(entry) > maxLen {
				entry = entry[:maxLen-len(body)]
			}
		}
		body += entry
	}
	if body != "" {
		out = append(out, body)
	}
	return out
}
