package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/eigo-sensei/server/internal/bot/model"
	logx "github.com/eigo-sensei/server/pkg/logger"
)

// Dispatcher routes one inbound text message and returns exactly one reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, text string) model.Reply
}

// Sender delivers replies and downloads message content.
type Sender interface {
	Reply(ctx context.Context, replyToken string, reply model.Reply) error
	MessageContent(ctx context.Context, messageID string) ([]byte, error)
}

// Transcriber converts audio input into text before dispatch.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Handler is the webhook endpoint. Signature failures are rejected before
// any dispatch runs.
type Handler struct {
	channelSecret string
	sender        Sender
	dispatcher    Dispatcher
	transcriber   Transcriber
}

func NewHandler(channelSecret string, sender Sender, dispatcher Dispatcher, transcriber Transcriber) *Handler {
	return &Handler{
		channelSecret: channelSecret,
		sender:        sender,
		dispatcher:    dispatcher,
		transcriber:   transcriber,
	}
}

// Callback handles POST /callback.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !ValidateSignature(h.channelSecret, body, r.Header.Get("X-Line-Signature")) {
		logx.Warn().Msg("webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "decode body", http.StatusBadRequest)
		return
	}

	for _, ev := range req.Events {
		h.handleEvent(r.Context(), ev)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) handleEvent(ctx context.Context, ev Event) {
	if ev.Type != "message" {
		return
	}

	var text string
	switch ev.Message.Type {
	case "text":
		text = strings.TrimSpace(ev.Message.Text)
	case "audio":
		transcribed, err := h.transcribeEvent(ctx, ev)
		if err != nil {
			logx.Error().Err(err).Str("message_id", ev.Message.ID).Msg("audio transcription failed")
			h.reply(ctx, ev.ReplyToken, model.TextReply(err.Error()))
			return
		}
		text = transcribed
	default:
		return
	}

	h.reply(ctx, ev.ReplyToken, h.dispatcher.Dispatch(ctx, ev.Source.UserID, text))
}

func (h *Handler) transcribeEvent(ctx context.Context, ev Event) (string, error) {
	audio, err := h.sender.MessageContent(ctx, ev.Message.ID)
	if err != nil {
		return "", err
	}
	return h.transcriber.Transcribe(ctx, ev.Message.ID+".m4a", audio)
}

func (h *Handler) reply(ctx context.Context, replyToken string, reply model.Reply) {
	if err := h.sender.Reply(ctx, replyToken, reply); err != nil {
		logx.Error().Err(err).Msg("failed to deliver reply")
	}
}
