package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/pushclaw/internal/history"
	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

const exportHistoryKey = "notirelay:noti_export"

// ExportRecord notes one completed notification export.
type ExportRecord struct {
	ID      string `json:"id"`
	Package string `json:"pkg"`
	Entries int    `json:"entries"`
	Time    int64  `json:"time"` // unix millis
}

// ExportRing is an append-bounded record of export operations. Unlike
// the capture logs it appends at the tail and drops the oldest record
// once full.
type ExportRing struct {
	kv store.KV
	mu sync.Mutex
}

func NewExportRing(kv store.KV) *ExportRing {
	return &ExportRing{kv: kv}
}

func (r *ExportRing) load(ctx context.Context) []ExportRecord {
	data, ok, err := r.kv.Get(ctx, exportHistoryKey)
	if err != nil || !ok {
		return nil
	}
	var records []ExportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// Add appends a record for an export of n entries from pkg.
func (r *ExportRing) Add(ctx context.Context, pkg string, entries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.load(ctx)
	records = append(records, ExportRecord{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Package: pkg,
		Entries: entries,
		Time:    time.Now().UnixMilli(),
	})
	if len(records) > history.MaxHistory {
		records = records[len(records)-history.MaxHistory:]
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal export history: %w", err)
	}
	return r.kv.Put(ctx, exportHistoryKey, data)
}

// List returns the export records, oldest first.
func (r *ExportRing) List(ctx context.Context) []ExportRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Clear drops the whole record.
func (r *ExportRing) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kv.Delete(ctx, exportHistoryKey)
}
