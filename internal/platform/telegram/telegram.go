// Package telegram connects the turn processor to Telegram via long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/datachat-ai/datachat/internal/platform"
	"github.com/datachat-ai/datachat/internal/render"
)

// Type identifies the Telegram channel.
const Type = "telegram"

const maxMessageLength = 4096

// Adapter implements platform.Adapter for Telegram.
type Adapter struct {
	logger *slog.Logger
	token  string
}

// NewAdapter creates a Telegram adapter with the given bot token.
func NewAdapter(log *slog.Logger, token string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", Type)),
		token:  token,
	}
}

// Type implements platform.Adapter.
func (a *Adapter) Type() string { return Type }

// Capabilities implements platform.Adapter. Telegram edits text in place;
// card payloads are down-rendered to text, so they are editable too.
func (a *Adapter) Capabilities() platform.Capabilities {
	return platform.Capabilities{CanUpdateText: true, CanUpdateCard: true}
}

// Connect starts long-polling for updates and forwards messages to the
// handler with a messenger bound to the originating chat.
func (a *Adapter) Connect(ctx context.Context, handler platform.Handler) (platform.Connection, error) {
	if strings.TrimSpace(a.token) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(a.token)
	if err != nil {
		a.logger.Error("create bot failed", slog.Any("error", err))
		return nil, err
	}
	a.logger.Info("start", slog.String("bot", bot.Self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				ev, ok := a.toEvent(update, bot.Self.ID)
				if !ok {
					continue
				}
				m := &messenger{bot: bot, chatID: update.Message.Chat.ID}
				go func() {
					if err := handler(connCtx, ev, m); err != nil {
						a.logger.Error("handle inbound failed",
							slog.String("conversation_id", ev.ConversationID),
							slog.Any("error", err),
						)
					}
				}()
			}
		}
	}()

	stop := func(context.Context) error {
		a.logger.Info("stop")
		bot.StopReceivingUpdates()
		cancel()
		// Drain remaining updates so the library's polling goroutine can
		// finish writing and exit.
		for range updates {
		}
		return nil
	}
	return platform.StopFunc(stop), nil
}

func (a *Adapter) toEvent(update tgbotapi.Update, botID int64) (platform.Event, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return platform.Event{}, false
	}
	if msg.NewChatMembers != nil {
		for _, member := range msg.NewChatMembers {
			if member.ID == botID {
				return platform.Event{
					Kind:           platform.EventMemberJoined,
					ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
					ReceivedAt:     msg.Time().UTC(),
				}, true
			}
		}
		return platform.Event{}, false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return platform.Event{}, false
	}
	ev := platform.Event{
		Kind:           platform.EventMessage,
		Text:           text,
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		ReceivedAt:     msg.Time().UTC(),
	}
	if msg.From != nil {
		ev.PrincipalID = Type + ":" + strconv.FormatInt(msg.From.ID, 10)
	}
	if command(text) == "clear" {
		ev.SpecialAction = platform.ActionClearHistory
	}
	return ev, true
}

func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	cmd = strings.TrimPrefix(cmd, "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd
}

// messenger sends into one Telegram chat.
type messenger struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func (m *messenger) SendMessage(_ context.Context, p platform.Payload) (string, error) {
	msg := tgbotapi.NewMessage(m.chatID, renderText(p))
	sent, err := m.bot.Send(msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (m *messenger) UpdateMessage(_ context.Context, messageID string, p platform.Payload) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("parse message id %q: %w", messageID, err)
	}
	edit := tgbotapi.NewEditMessageText(m.chatID, id, renderText(p))
	_, err = m.bot.Send(edit)
	return err
}

func (m *messenger) DeleteMessage(_ context.Context, messageID string) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("parse message id %q: %w", messageID, err)
	}
	_, err = m.bot.Request(tgbotapi.NewDeleteMessage(m.chatID, id))
	return err
}

func (m *messenger) SendTyping(context.Context) error {
	_, err := m.bot.Request(tgbotapi.NewChatAction(m.chatID, tgbotapi.ChatTyping))
	return err
}

func (m *messenger) Capabilities() platform.Capabilities {
	return platform.Capabilities{CanUpdateText: true, CanUpdateCard: true}
}

// renderText flattens a payload to Telegram text, truncating to the API
// limit.
func renderText(p platform.Payload) string {
	text := p.Text
	if p.IsCard() {
		text = render.FlattenCard(p.Card)
	}
	runes := []rune(text)
	if len(runes) > maxMessageLength {
		return string(runes[:maxMessageLength])
	}
	return text
}
