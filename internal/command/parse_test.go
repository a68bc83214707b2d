package command

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
)

const scope = "12345:testbot"

type fakeResolver struct {
	urls map[string]string
}

func (f *fakeResolver) FileURL(_ context.Context, fileID string) (string, error) {
	if url, ok := f.urls[fileID]; ok {
		return url, nil
	}
	return "", errors.New("unknown file id")
}

func textUpdate(text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		Chat: telego.Chat{ID: 77},
		Text: text,
	}}
}

func callbackUpdate(data string) telego.Update {
	return telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &telego.Message{Chat: telego.Chat{ID: 77}},
	}}
}

func mustParse(t *testing.T, upd telego.Update) *Command {
	t.Helper()
	cmd, err := ParseUpdate(context.Background(), upd, scope, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cmd
}

func TestParseText_PhotoDefaults(t *testing.T) {
	cmd := mustParse(t, textUpdate("/photo"))
	if cmd.Kind != Photo {
		t.Fatalf("kind = %v", cmd.Kind)
	}
	if cmd.Camera != "front" || cmd.Flash || cmd.Quality != "1080" {
		t.Errorf("defaults wrong: %+v", cmd)
	}
	if cmd.ChatID != "77" || cmd.Scope != scope {
		t.Errorf("routing wrong: chat=%q scope=%q", cmd.ChatID, cmd.Scope)
	}
}

func TestParseText_VideoArgs(t *testing.T) {
	cmd := mustParse(t, textUpdate("/video BACK Flash_On 10 720"))
	if cmd.Camera != "back" {
		t.Errorf("camera = %q, want lowercased back", cmd.Camera)
	}
	if !cmd.Flash {
		t.Error("flash should be on")
	}
	if cmd.Duration != "10" || cmd.Quality != "720" {
		t.Errorf("duration/quality = %q/%q", cmd.Duration, cmd.Quality)
	}
}

func TestParseText_VideoDefaults(t *testing.T) {
	cmd := mustParse(t, textUpdate("/video"))
	if cmd.Camera != "front" || cmd.Flash || cmd.Duration != "1" || cmd.Quality != "480" {
		t.Errorf("defaults wrong: %+v", cmd)
	}
}

func TestParseText_ListKeywordPeeling(t *testing.T) {
	tests := []struct {
		text              string
		sort, order, path string
	}{
		{"/list", "date", "desc", ""},
		{"/list name", "name", "desc", ""},
		{"/list name asc", "name", "asc", ""},
		{"/list asc", "date", "asc", ""},
		{"/list size desc /sdcard/My Files", "size", "desc", "/sdcard/My Files"},
		{"/list /sdcard/Download", "date", "desc", "/sdcard/Download"},
		{"/list name /a b c", "name", "desc", "/a b c"},
	}
	for _, tt := range tests {
		cmd := mustParse(t, textUpdate(tt.text))
		if cmd.Sort != tt.sort || cmd.Order != tt.order || cmd.Path != tt.path {
			t.Errorf("%q → sort=%q order=%q path=%q, want %q/%q/%q",
				tt.text, cmd.Sort, cmd.Order, cmd.Path, tt.sort, tt.order, tt.path)
		}
	}
}

func TestParseText_UnknownCommand(t *testing.T) {
	_, err := ParseUpdate(context.Background(), textUpdate("/selfdestruct"), scope, nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}

func TestParseText_CaseSensitiveName(t *testing.T) {
	_, err := ParseUpdate(context.Background(), textUpdate("/Photo"), scope, nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}

func TestParseText_NotACommand(t *testing.T) {
	_, err := ParseUpdate(context.Background(), textUpdate("hello there"), scope, nil)
	if !errors.Is(err, ErrNotCommand) {
		t.Errorf("err = %v, want ErrNotCommand", err)
	}
}

func TestParseCallback_PackagePick(t *testing.T) {
	cmd := mustParse(t, callbackUpdate("notiaddpick:com.example.app"))
	if cmd.Kind != NotiAddPick || cmd.Package != "com.example.app" {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestParseCallback_PathWithColons(t *testing.T) {
	cmd := mustParse(t, callbackUpdate("list:/sdcard/a:b/c"))
	if cmd.Kind != List || cmd.Path != "/sdcard/a:b/c" {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestParseCallback_PageIndex(t *testing.T) {
	cmd := mustParse(t, callbackUpdate("notiaddpicknav:3"))
	if cmd.Kind != NotiAddPickNav || cmd.Page != 3 {
		t.Errorf("cmd = %+v", cmd)
	}

	// Non-numeric page indices default to 0, never fail.
	cmd = mustParse(t, callbackUpdate("notiexportpicknav:bogus"))
	if cmd.Kind != NotiExportPickNav || cmd.Page != 0 {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestParseCallback_BareKinds(t *testing.T) {
	if cmd := mustParse(t, callbackUpdate("calllogs")); cmd.Kind != CallLogs {
		t.Errorf("kind = %v", cmd.Kind)
	}
	if cmd := mustParse(t, callbackUpdate("contacts")); cmd.Kind != Contacts {
		t.Errorf("kind = %v", cmd.Kind)
	}
}

func TestParseCallback_SendPassThrough(t *testing.T) {
	cmd := mustParse(t, callbackUpdate("sendplace:3"))
	if cmd.Kind != Send || cmd.CallbackData != "sendplace:3" {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestParseCallback_UnknownIgnored(t *testing.T) {
	_, err := ParseUpdate(context.Background(), callbackUpdate("mystery:data"), scope, nil)
	if !errors.Is(err, ErrNotCommand) {
		t.Errorf("err = %v, want ErrNotCommand", err)
	}
}

func TestParseSend_DocumentWins(t *testing.T) {
	resolver := &fakeResolver{urls: map[string]string{"doc-1": "https://files/doc-1"}}
	upd := telego.Update{Message: &telego.Message{
		Chat:     telego.Chat{ID: 77},
		Caption:  "/send /sdcard/My Docs",
		Document: &telego.Document{FileID: "doc-1", FileName: "report.pdf"},
		Photo:    []telego.PhotoSize{{FileID: "ph-1", Width: 100, Height: 100}},
	}}

	cmd, err := ParseUpdate(context.Background(), upd, scope, resolver)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Kind != Send {
		t.Fatalf("kind = %v", cmd.Kind)
	}
	if cmd.FileURL != "https://files/doc-1" || cmd.FileName != "report.pdf" {
		t.Errorf("file = %q %q", cmd.FileURL, cmd.FileName)
	}
	if cmd.TargetPath != "/sdcard/My Docs" {
		t.Errorf("target path = %q", cmd.TargetPath)
	}
}

func TestParseSend_LargestPhotoVariant(t *testing.T) {
	resolver := &fakeResolver{urls: map[string]string{"big": "https://files/big"}}
	upd := telego.Update{Message: &telego.Message{
		Chat:    telego.Chat{ID: 77},
		Caption: "/send",
		Photo: []telego.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "big", Width: 1280, Height: 1280},
			{FileID: "mid", Width: 320, Height: 320},
		},
	}}

	cmd, err := ParseUpdate(context.Background(), upd, scope, resolver)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.FileURL != "https://files/big" || cmd.FileName != "photo.jpg" {
		t.Errorf("file = %q %q", cmd.FileURL, cmd.FileName)
	}
}

func TestParseSend_NoMedia(t *testing.T) {
	upd := telego.Update{Message: &telego.Message{
		Chat:    telego.Chat{ID: 77},
		Caption: "/send /tmp",
	}}
	_, err := ParseUpdate(context.Background(), upd, scope, &fakeResolver{})
	if !errors.Is(err, ErrNoFile) {
		t.Errorf("err = %v, want ErrNoFile", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	orig := &Command{
		Kind: Video, ChatID: "77", Scope: scope,
		Camera: "back", Flash: true, Duration: "5", Quality: "720",
	}
	decoded, err := FromPayload(orig.Payload())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *orig {
		t.Errorf("round trip changed command:\n got %+v\nwant %+v", decoded, orig)
	}
}

func TestPayload_StringifiesEverything(t *testing.T) {
	p := (&Command{Kind: NotiAddPickNav, ChatID: "77", Scope: scope, Page: 2}).Payload()
	if p["page"] != "2" {
		t.Errorf("page = %q, want stringified", p["page"])
	}
	p = (&Command{Kind: Photo, ChatID: "77", Scope: scope, Flash: true, Camera: "front", Quality: "1080"}).Payload()
	if p["flash"] != "true" {
		t.Errorf("flash = %q, want %q", p["flash"], "true")
	}
}
