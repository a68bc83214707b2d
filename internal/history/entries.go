package history

// Notification is one captured posted notification. Field names on the
// wire match the persisted JSON the device has always written.
type Notification struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Time      int64  `json:"time"` // unix millis as posted
	ChannelID string `json:"channelId"`
	IsOngoing bool   `json:"isOngoing"`
}

// Call is one call log entry.
type Call struct {
	Number   string `json:"number"`
	Type     int    `json:"type"`
	Date     int64  `json:"date"` // unix millis
	Duration int    `json:"duration"`
	Name     string `json:"name"`
}

// CallOwner is the single owner id of the global call log.
const CallOwner = "calls"

const (
	notificationPrefix = "notihistory:"
	callPrefix         = "calllog:"
)

// SameNotification is notification identity for dedup: title, text and
// post time. Channel and ongoing state are display-only.
func SameNotification(a, b Notification) bool {
	return a.Title == b.Title && a.Text == b.Text && a.Time == b.Time
}

// SameCall is call identity for dedup: number, date, duration and type.
// The cached display name may change between scans.
func SameCall(a, b Call) bool {
	return a.Number == b.Number && a.Date == b.Date && a.Duration == b.Duration && a.Type == b.Type
}

// NewNotificationLog creates the per-app notification log with
// consecutive-duplicate suppression.
func NewNotificationLog(kv KV) *Log[Notification] {
	return New(kv, notificationPrefix, DedupConsecutive, SameNotification, func(n Notification) int64 { return n.Time })
}

// NewCallLog creates the global call log with set-style dedup and
// watermark sync support.
func NewCallLog(kv KV) *Log[Call] {
	return New(kv, callPrefix, DedupAll, SameCall, func(c Call) int64 { return c.Date })
}
