package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

// Parse outcomes that are not commands. Callers reply directly and never
// dispatch.
var (
	// ErrNotCommand: the update carries nothing addressed to us.
	ErrNotCommand = errors.New("not a command")
	// ErrUnknownCommand: a /command we do not recognize.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoFile: a /send caption without any attached media.
	ErrNoFile = errors.New("no file attached to /send")
)

// FileResolver turns a transport file id into a retrieval URL.
// Implemented by the Telegram channel (getFile + download URL).
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// ParseUpdate converts one inbound Telegram update into a Command.
// scope is the bot token namespace the update arrived under. resolver
// is only consulted for captioned /send uploads.
func ParseUpdate(ctx context.Context, upd telego.Update, scope string, resolver FileResolver) (*Command, error) {
	switch {
	case upd.CallbackQuery != nil:
		return parseCallback(upd.CallbackQuery, scope)
	case upd.Message != nil && upd.Message.Caption != "" && strings.HasPrefix(strings.TrimSpace(upd.Message.Caption), "/send"):
		return parseSendUpload(ctx, upd.Message, scope, resolver)
	case upd.Message != nil && upd.Message.Text != "":
		return parseText(upd.Message, scope)
	}
	return nil, ErrNotCommand
}

// parseCallback decodes the "kind:data" string carried by an inline
// button press. The kind prefix selects the variant; the remainder is
// positional (path, package id, or page index).
func parseCallback(cq *telego.CallbackQuery, scope string) (*Command, error) {
	if cq.Message == nil {
		return nil, ErrNotCommand
	}
	chatID := strconv.FormatInt(cq.Message.GetChat().ID, 10)
	data := cq.Data

	kind, rest, _ := strings.Cut(data, ":")

	cmd := &Command{ChatID: chatID, Scope: scope}
	switch {
	case kind == "sendnav" || kind == "sendplace":
		cmd.Kind = Send
		cmd.CallbackData = data
	case kind == "list" || kind == "nav":
		cmd.Kind = List
		cmd.Path = rest
	case kind == "file":
		cmd.Kind = File
		cmd.File = rest
	case kind == "recv":
		cmd.Kind = Recv
		cmd.File = rest
	case kind == "del":
		cmd.Kind = Del
		cmd.File = rest
	case kind == "notiaddpick":
		cmd.Kind = NotiAddPick
		cmd.Package = rest
	case kind == "notiremovepick":
		cmd.Kind = NotiRemovePick
		cmd.Package = rest
	case kind == "notipick":
		cmd.Kind = NotiPick
		cmd.Package = rest
	case kind == "noticlearpick":
		cmd.Kind = NotiClearPick
		cmd.Package = rest
	case kind == "notiexportpick":
		cmd.Kind = NotiExportPick
		cmd.Package = rest
	case kind == "notiaddpicknav":
		cmd.Kind = NotiAddPickNav
		cmd.Page = parsePage(rest)
	case kind == "notiremovepicknav":
		cmd.Kind = NotiRemovePickNav
		cmd.Page = parsePage(rest)
	case kind == "noticlearpicknav":
		cmd.Kind = NotiClearPickNav
		cmd.Page = parsePage(rest)
	case kind == "notiexportpicknav":
		cmd.Kind = NotiExportPickNav
		cmd.Page = parsePage(rest)
	case data == "calllogs":
		cmd.Kind = CallLogs
	case data == "contacts":
		cmd.Kind = Contacts
	default:
		return nil, ErrNotCommand
	}
	return cmd, nil
}

// parsePage never fails: a non-numeric page index means page 0.
func parsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseSendUpload handles "/send <path>" as a caption on a media upload.
// When several media types ride one message the first match wins:
// document, then the largest photo variant, then video, then audio.
func parseSendUpload(ctx context.Context, msg *telego.Message, scope string, resolver FileResolver) (*Command, error) {
	parts := strings.Fields(strings.TrimSpace(msg.Caption))
	targetPath := ""
	if len(parts) > 1 {
		targetPath = strings.Join(parts[1:], " ")
	}

	var fileID, fileName string
	switch {
	case msg.Document != nil:
		fileID = msg.Document.FileID
		fileName = msg.Document.FileName
		if fileName == "" {
			fileName = "file"
		}
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		fileID = best.FileID
		fileName = "photo.jpg"
	case msg.Video != nil:
		fileID = msg.Video.FileID
		fileName = "video.mp4"
	case msg.Audio != nil:
		fileID = msg.Audio.FileID
		fileName = "audio.mp3"
	default:
		return nil, ErrNoFile
	}

	fileURL, err := resolver.FileURL(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	return &Command{
		Kind:       Send,
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		Scope:      scope,
		FileURL:    fileURL,
		FileName:   fileName,
		TargetPath: targetPath,
	}, nil
}

var listSortModes = map[string]bool{"name": true, "size": true, "date": true, "type": true}

// parseText handles plain "/command arg1 arg2 ..." messages. Command
// names are matched exactly; arguments are positional with per-command
// defaults.
func parseText(msg *telego.Message, scope string) (*Command, error) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil, ErrNotCommand
	}
	fields := strings.Fields(text)
	name, args := fields[0], fields[1:]

	cmd := &Command{ChatID: strconv.FormatInt(msg.Chat.ID, 10), Scope: scope}
	switch name {
	case "/photo":
		cmd.Kind = Photo
		cmd.Camera = argOr(args, 0, DefaultCamera)
		cmd.Flash = len(args) > 1 && strings.EqualFold(args[1], "flash_on")
		cmd.Quality = PhotoQuality
	case "/video":
		cmd.Kind = Video
		cmd.Camera = argOr(args, 0, DefaultCamera)
		cmd.Flash = len(args) > 1 && strings.EqualFold(args[1], "flash_on")
		cmd.Duration = argOr(args, 2, DefaultVideoLength)
		cmd.Quality = argOr(args, 3, DefaultVideoQuality)
	case "/audio":
		cmd.Kind = Audio
		cmd.Duration = argOr(args, 0, DefaultAudioLength)
	case "/location":
		cmd.Kind = Location
	case "/ring":
		cmd.Kind = Ring
	case "/vibrate":
		cmd.Kind = Vibrate
	case "/list":
		cmd.Kind = List
		cmd.Sort, cmd.Order, cmd.Path = parseListArgs(args)
	case "/noti":
		cmd.Kind = NotiMenu
	case "/notiadd":
		cmd.Kind = NotiAdd
	case "/notiaddpick":
		cmd.Kind = NotiAddPick
		cmd.Package = argOr(args, 0, "")
	case "/notiremove":
		cmd.Kind = NotiRemove
	case "/notiremovepick":
		cmd.Kind = NotiRemovePick
		cmd.Package = argOr(args, 0, "")
	case "/notipick":
		cmd.Kind = NotiPick
		cmd.Package = argOr(args, 0, "")
	case "/noticlear":
		cmd.Kind = NotiClear
	case "/noticlearpick":
		cmd.Kind = NotiClearPick
		cmd.Package = argOr(args, 0, "")
	case "/notiexport":
		cmd.Kind = NotiExport
	case "/notiexportpick":
		cmd.Kind = NotiExportPick
		cmd.Package = argOr(args, 0, "")
	case "/calllogs":
		cmd.Kind = CallLogs
	case "/contacts":
		cmd.Kind = Contacts
	default:
		return nil, ErrUnknownCommand
	}

	cmd.Camera = strings.ToLower(cmd.Camera)
	return cmd, nil
}

// parseListArgs peels an optional sort key and an optional order off the
// front of the argument list, then joins whatever remains back into a
// path. Paths containing spaces survive as long as their first word is
// not a sort/order keyword.
func parseListArgs(args []string) (sort, order, path string) {
	sort, order = DefaultSort, DefaultOrder
	if len(args) > 0 && listSortModes[strings.ToLower(args[0])] {
		sort = strings.ToLower(args[0])
		args = args[1:]
	}
	if len(args) > 0 {
		if o := strings.ToLower(args[0]); o == "asc" || o == "desc" {
			order = o
			args = args[1:]
		}
	}
	if len(args) > 0 {
		path = strings.Join(args, " ")
	}
	return sort, order, path
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}
