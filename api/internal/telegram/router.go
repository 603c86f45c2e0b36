package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rice-grader/api/internal/analyze"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analyze.Request) (*analyze.Report, error)
}

type Router struct {
	Bot      *tgbotapi.BotAPI
	Analyzer Analyzer
	Schemas  *SchemaManager
	Health   func(ctx context.Context) error
	Timeout  time.Duration
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(*upd.Message)
		return
	}
	if len(upd.Message.Photo) > 0 || isImageDocument(upd.Message.Document) {
		r.acceptPhoto(*upd.Message)
		return
	}
	r.send(upd.Message.Chat.ID, "Send a photo of a rice sample to grade it.")
}

func (r *Router) HandleCommand(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, "Send a photo of rice grains spread on a plain background and I will grade it.\n"+
			"Commands: /schema [v1|v2], /health")
	case "health":
		if r.Health == nil {
			r.send(cid, "✅ OK")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Health(ctx); err != nil {
			r.send(cid, "⚠️ detector unavailable: "+err.Error())
			return
		}
		r.send(cid, "✅ OK")
	case "schema":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			r.send(cid, fmt.Sprintf("Current schema: %s\nUsage: /schema v1 (physical) | /schema v2 (NCT)", r.Schemas.Get(cid)))
			return
		}
		schema, ok := NormalizeSchema(arg)
		if !ok {
			r.send(cid, "Unknown schema. Available: v1 | v2")
			return
		}
		r.Schemas.Set(cid, schema)
		r.send(cid, "✅ Schema: "+schema)
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) send(chatID int64, text string) {
	_, _ = r.Bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Grading failed: %v", err))
}
