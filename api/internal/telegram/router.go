package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"foodbot/api/internal/engines"
	"foodbot/api/internal/store"
)

// Bot is the part of *tgbotapi.BotAPI the router needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// History is the optional analysis log. *store.AnalysisRepo implements it.
type History interface {
	Insert(ctx context.Context, a *store.Analysis) error
	Recent(ctx context.Context, chatID int64, limit int) ([]store.Analysis, error)
}

type Router struct {
	Bot        Bot
	EngManager *engines.Manager
	History    History // nil disables /history and recording

	HTTPClient *http.Client
	Timeout    time.Duration
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	switch {
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.analyzeFile(msg.Chat.ID, ph.FileID)
	case msg.Document != nil:
		if !isImageDocument(msg.Document) {
			r.send(msg.Chat.ID, textUnsupported)
			return
		}
		r.analyzeFile(msg.Chat.ID, msg.Document.FileID)
	case strings.TrimSpace(msg.Text) != "":
		r.send(msg.Chat.ID, textSendPhoto)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, textWelcome)
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	case "history":
		r.handleHistory(cid)
	default:
		r.send(cid, "Comando desconhecido. Use /help.")
	}
}

// handleEngineCommand shows or switches the chat's provider:
//
//	/engine
//	/engine gemini
func (r *Router) handleEngineCommand(chatID int64, args string) {
	reg := r.EngManager.Registry()
	fields := strings.Fields(args)
	if len(fields) == 0 {
		r.send(chatID, fmt.Sprintf("Provedor atual: %s\nDisponíveis: %s\nUso: /engine <nome>",
			r.EngManager.Get(chatID).Name(), strings.Join(reg.Names(), " | ")))
		return
	}
	a, err := r.EngManager.Set(chatID, fields[0])
	if err != nil {
		r.send(chatID, "Provedor desconhecido. Disponíveis: "+strings.Join(reg.Names(), " | "))
		return
	}
	c := a.Config()
	r.send(chatID, fmt.Sprintf("✅ Provedor: %s (%s / %s).", a.Name(), c.VisionModel, c.TextModel))
}

func (r *Router) handleHistory(chatID int64) {
	if r.History == nil {
		r.send(chatID, "O histórico não está habilitado.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := r.History.Recent(ctx, chatID, 5)
	if err != nil {
		r.send(chatID, "Não consegui ler o histórico: "+err.Error())
		return
	}
	r.send(chatID, formatHistory(rows))
}

func (r *Router) send(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLen) {
		_, _ = r.Bot.Send(tgbotapi.NewMessage(chatID, part))
	}
}
