// Package relay is the webhook side of the system: it receives Telegram
// updates and one-shot device registrations, turns updates into
// commands and hands them to the dispatcher.
//
// Every webhook response is success-shaped. Failing the HTTP exchange
// would only provoke the transport's retry storm; real problems are
// answered in-band as chat messages or swallowed after logging.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/pushclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/pushclaw/internal/command"
	"github.com/nextlevelbuilder/pushclaw/internal/dispatch"
	"github.com/nextlevelbuilder/pushclaw/internal/registry"
)

// botPathRe matches /bot<token> webhook paths; the token shape is the
// Bot API's "<digits>:<35+ url chars>".
var botPathRe = regexp.MustCompile(`^/bot([0-9]+:[A-Za-z0-9_-]{30,})/?$`)

// Registration confirm replies, worded per outcome.
const (
	msgPairingMerged  = "✅ Registration complete! Your device is now paired and ready to receive commands."
	msgPairingAlready = "✅ Your device is already paired and ready."
	msgPairingNoDev   = "❌ Registration failed: no device found for this nickname. Please click Save & Continue from app settings and use correct /register <nickname> again"
	msgRegisterUsage  = "Usage: /register <nickname>"
)

// Server handles the relay's two HTTP surfaces.
type Server struct {
	botToken   string
	channel    *telegram.Channel
	dir        *registry.Directory
	dispatcher *dispatch.Dispatcher
	dedupe     *DedupeCache
	limiter    *RateLimiter

	// dispatchTimeout bounds the background push work per update.
	dispatchTimeout time.Duration
}

func NewServer(botToken string, channel *telegram.Channel, dir *registry.Directory, dispatcher *dispatch.Dispatcher, rpm int) *Server {
	return &Server{
		botToken:        botToken,
		channel:         channel,
		dir:             dir,
		dispatcher:      dispatcher,
		dedupe:          NewDedupeCache(0, 0),
		limiter:         NewRateLimiter(rpm, 10),
		dispatchTimeout: 60 * time.Second,
	}
}

// Handler builds the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/register_nickname", s.handleRegisterNickname)
	mux.HandleFunc("/", s.handleWebhook)
	return mux
}

// handleRegisterNickname is the one-shot device registration entry
// point, called from the device before chat-side pairing.
func (s *Server) handleRegisterNickname(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		BotToken string `json:"bot_token"`
		Nickname string `json:"nickname"`
		FCMToken string `json:"fcm_token"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if body.BotToken == "" || body.Nickname == "" || body.FCMToken == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}
	if err := s.dir.RegisterEndpoint(r.Context(), body.BotToken, body.Nickname, body.FCMToken); err != nil {
		slog.Error("register endpoint failed", "nickname", body.Nickname, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Write([]byte("OK"))
}

// handleWebhook processes one Telegram update. The response is always
// 200: the transport must never retry on our behalf.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer w.Write([]byte("OK"))

	if r.Method != http.MethodPost {
		return
	}
	m := botPathRe.FindStringSubmatch(r.URL.Path)
	if m == nil || m[1] != s.botToken {
		return
	}
	scope := m[1]

	var upd telego.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&upd); err != nil {
		slog.Debug("unparsable webhook body", "error", err)
		return
	}

	if s.dedupe.IsDuplicate(strconv.Itoa(upd.UpdateID)) {
		slog.Debug("duplicate update", "update_id", upd.UpdateID)
		return
	}

	if chatID := updateChatID(upd); chatID != "" && !s.limiter.Allow(chatID) {
		slog.Warn("chat rate limited", "chat_id", chatID)
		return
	}

	// Button presses get their spinner stopped regardless of what the
	// command turns out to be.
	if upd.CallbackQuery != nil {
		if err := s.channel.AnswerCallback(r.Context(), upd.CallbackQuery.ID); err != nil {
			slog.Debug("answer callback failed", "error", err)
		}
	}

	// Chat-side pairing confirmation is handled here, not dispatched.
	if upd.Message != nil && strings.HasPrefix(strings.TrimSpace(upd.Message.Text), "/register") {
		s.handleRegisterCommand(r.Context(), scope, upd.Message)
		return
	}

	cmd, err := command.ParseUpdate(r.Context(), upd, scope, s.channel)
	switch {
	case err == nil:
	case errors.Is(err, command.ErrNotCommand):
		return
	case errors.Is(err, command.ErrUnknownCommand):
		slog.Debug("unknown command", "chat_id", updateChatID(upd))
		return
	case errors.Is(err, command.ErrNoFile):
		if chatID := updateChatID(upd); chatID != "" {
			s.reply(r.Context(), chatID, "No file attached to /send.")
		}
		return
	default:
		slog.Warn("parse update failed", "error", err)
		return
	}

	// The update is acknowledged now; delivery runs on its own clock.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		s.dispatcher.Dispatch(ctx, cmd)
	}()
}

// handleRegisterCommand consumes "/register <nickname>".
func (s *Server) handleRegisterCommand(ctx context.Context, scope string, msg *telego.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	fields := strings.Fields(msg.Text)
	if len(fields) < 2 {
		s.reply(ctx, chatID, msgRegisterUsage)
		return
	}
	nickname := fields[1]

	outcome, err := s.dir.ConfirmPairing(ctx, scope, nickname, chatID)
	if err != nil {
		slog.Error("confirm pairing failed", "nickname", nickname, "chat_id", chatID, "error", err)
		return
	}
	switch outcome {
	case registry.Merged:
		s.reply(ctx, chatID, msgPairingMerged)
	case registry.AlreadyPaired:
		s.reply(ctx, chatID, msgPairingAlready)
	case registry.NoDevice:
		s.reply(ctx, chatID, msgPairingNoDev)
	}
}

func (s *Server) reply(ctx context.Context, chatID, text string) {
	if err := s.channel.SendMessage(ctx, chatID, text); err != nil {
		slog.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

// updateChatID extracts the originating chat id, "" when absent.
func updateChatID(upd telego.Update) string {
	switch {
	case upd.Message != nil:
		return strconv.FormatInt(upd.Message.Chat.ID, 10)
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		return strconv.FormatInt(upd.CallbackQuery.Message.GetChat().ID, 10)
	}
	return ""
}
