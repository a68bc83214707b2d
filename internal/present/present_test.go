package present

import (
	"fmt"
	"strings"
	"testing"
)

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Label: fmt.Sprintf("app %d", i), Data: fmt.Sprintf("pick:%d", i)}
	}
	return out
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, AppsPerBatch)
	if !p.Empty {
		t.Error("zero items should report Empty")
	}
	if p.Pages != nil {
		t.Errorf("Pages = %v, want nil", p.Pages)
	}
}

func TestPaginate_PageSizes(t *testing.T) {
	p := Paginate(items(65), AppsPerBatch)
	if p.Empty {
		t.Fatal("non-empty input reported Empty")
	}
	if len(p.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(p.Pages))
	}
	if len(p.Pages[0]) != 30 || len(p.Pages[1]) != 30 || len(p.Pages[2]) != 5 {
		t.Errorf("page sizes = %d/%d/%d", len(p.Pages[0]), len(p.Pages[1]), len(p.Pages[2]))
	}
	if p.Pages[2][4].Data != "pick:64" {
		t.Errorf("last item = %+v", p.Pages[2][4])
	}
}

func TestPaginate_ExactMultiple(t *testing.T) {
	p := Paginate(items(60), 30)
	if len(p.Pages) != 2 {
		t.Errorf("pages = %d, want 2", len(p.Pages))
	}
}

func TestKeyboard_GridShape(t *testing.T) {
	kb := Keyboard(items(5))
	if len(kb.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want 3", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != 2 || len(kb.InlineKeyboard[2]) != 1 {
		t.Errorf("row widths = %d/%d/%d",
			len(kb.InlineKeyboard[0]), len(kb.InlineKeyboard[1]), len(kb.InlineKeyboard[2]))
	}
	btn := kb.InlineKeyboard[1][0]
	if btn.Text != "app 2" || btn.CallbackData != "pick:2" {
		t.Errorf("button = %+v", btn)
	}
}

func TestChunk_EmptyState(t *testing.T) {
	c := Chunker{Header: "Logs:\n", Empty: "No logs found."}
	out := c.Chunk(nil)
	if len(out) != 1 || out[0] != "No logs found." {
		t.Errorf("out = %q", out)
	}
}

func TestChunk_SingleMessage(t *testing.T) {
	c := Chunker{Header: "Logs:\n", Empty: "none"}
	out := c.Chunk([]string{"a\n", "b\n"})
	if len(out) != 1 || out[0] != "Logs:\na\nb\n" {
		t.Errorf("out = %q", out)
	}
}

func TestChunk_BreaksBetweenEntries(t *testing.T) {
	c := Chunker{
		Header:       "head:",
		Continuation: func(part int) string { return fmt.Sprintf("cont %d:", part) },
		Empty:        "none",
		MaxLen:       20,
	}
	entries := []string{
		strings.Repeat("a", 10),
		strings.Repeat("b", 10),
		strings.Repeat("c", 10),
	}
	out := c.Chunk(entries)
	if len(out) != 3 {
		t.Fatalf("chunks = %d, want 3: %q", len(out), out)
	}
	if out[0] != "head:"+strings.Repeat("a", 10) {
		t.Errorf("chunk 0 = %q", out[0])
	}
	if !strings.HasPrefix(out[1], "cont 2:") || !strings.Contains(out[1], "bbb") {
		t.Errorf("chunk 1 = %q", out[1])
	}
	if !strings.HasPrefix(out[2], "cont 3:") {
		t.Errorf("chunk 2 = %q", out[2])
	}
	for i, chunk := range out {
		if len(chunk) > c.MaxLen {
			t.Errorf("chunk %d length %d exceeds limit", i, len(chunk))
		}
	}
}

func TestChunk_OversizedEntryTruncated(t *testing.T) {
	c := Chunker{Header: "h:", Empty: "none", MaxLen: 16}
	out := c.Chunk([]string{strings.Repeat("x", 100)})
	for i, chunk := range out {
		if len(chunk) > 16 {
			t.Errorf("chunk %d length %d exceeds limit", i, len(chunk))
		}
	}
	if !strings.Contains(strings.Join(out, ""), "x") {
		t.Error("entry content lost entirely")
	}
}

func TestChunk_DefaultLimit(t *testing.T) {
	c := Chunker{Header: "h:", Empty: "none"}
	out := c.Chunk([]string{strings.Repeat("x", MaxMessageLen*2)})
	for i, chunk := range out {
		if len(chunk) > MaxMessageLen {
			t.Errorf("chunk %d length %d exceeds default limit", i, len(chunk))
		}
	}
}
