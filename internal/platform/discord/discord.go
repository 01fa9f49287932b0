// Package discord connects the turn processor to Discord over the gateway.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/datachat-ai/datachat/internal/platform"
)

// Type identifies the Discord channel.
const Type = "discord"

const maxEmbedDescription = 4096

// Adapter implements platform.Adapter for Discord.
type Adapter struct {
	logger *slog.Logger
	token  string
}

// NewAdapter creates a Discord adapter with the given bot token.
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

// Capabilities implements platform.Adapter. Discord edits both plain
// messages and embeds in place.
func (a *Adapter) Capabilities() platform.Capabilities {
	return platform.Capabilities{CanUpdateText: true, CanUpdateCard: true}
}

// Connect opens a gateway session and forwards messages to the handler with
// a messenger bound to the originating channel.
func (a *Adapter) Connect(ctx context.Context, handler platform.Handler) (platform.Connection, error) {
	if strings.TrimSpace(a.token) == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.logger.Error("create session failed", slog.Any("error", err))
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	connCtx, cancel := context.WithCancel(ctx)

	removeMessage := session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if connCtx.Err() != nil {
			return
		}
		if m.Author == nil || m.Author.Bot {
			return
		}
		ev, ok := toEvent(m)
		if !ok {
			return
		}
		msgr := &messenger{session: s, channelID: m.ChannelID}
		go func() {
			if err := handler(connCtx, ev, msgr); err != nil {
				a.logger.Error("handle inbound failed",
					slog.String("conversation_id", ev.ConversationID),
					slog.Any("error", err),
				)
			}
		}()
	})

	removeJoin := session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if connCtx.Err() != nil {
			return
		}
		if m.User == nil || m.User.ID != s.State.User.ID {
			return
		}
		guild, err := s.State.Guild(m.GuildID)
		if err != nil || guild.SystemChannelID == "" {
			return
		}
		ev := platform.Event{
			Kind:           platform.EventMemberJoined,
			ConversationID: guild.SystemChannelID,
			ReceivedAt:     time.Now().UTC(),
		}
		msgr := &messenger{session: s, channelID: guild.SystemChannelID}
		go func() {
			if err := handler(connCtx, ev, msgr); err != nil {
				a.logger.Error("handle join failed",
					slog.String("conversation_id", ev.ConversationID),
					slog.Any("error", err),
				)
			}
		}()
	})

	if err := session.Open(); err != nil {
		removeMessage()
		removeJoin()
		cancel()
		a.logger.Error("open session failed", slog.Any("error", err))
		return nil, err
	}
	a.logger.Info("start")

	stop := func(context.Context) error {
		a.logger.Info("stop")
		cancel()
		removeMessage()
		removeJoin()
		return session.Close()
	}
	return platform.StopFunc(stop), nil
}

func toEvent(m *discordgo.MessageCreate) (platform.Event, bool) {
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return platform.Event{}, false
	}
	ev := platform.Event{
		Kind:           platform.EventMessage,
		Text:           text,
		ConversationID: m.ChannelID,
		PrincipalID:    Type + ":" + m.Author.ID,
		ReceivedAt:     time.Now().UTC(),
	}
	if strings.EqualFold(strings.TrimSpace(stripMentions(text)), "!clear") {
		ev.SpecialAction = platform.ActionClearHistory
	}
	return ev, true
}

func stripMentions(text string) string {
	for {
		start := strings.Index(text, "<@")
		if start < 0 {
			return text
		}
		end := strings.Index(text[start:], ">")
		if end < 0 {
			return text
		}
		text = text[:start] + text[start+end+1:]
	}
}

// messenger sends into one Discord channel.
type messenger struct {
	session   *discordgo.Session
	channelID string
}

func (m *messenger) SendMessage(_ context.Context, p platform.Payload) (string, error) {
	sent, err := m.session.ChannelMessageSendComplex(m.channelID, toMessageSend(p))
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (m *messenger) UpdateMessage(_ context.Context, messageID string, p platform.Payload) error {
	edit := discordgo.NewMessageEdit(m.channelID, messageID)
	if p.IsCard() {
		edit.SetContent("")
		edit.SetEmbeds([]*discordgo.MessageEmbed{toEmbed(p)})
	} else {
		edit.SetContent(p.Text)
		edit.SetEmbeds(nil)
	}
	_, err := m.session.ChannelMessageEditComplex(edit)
	return err
}

func (m *messenger) DeleteMessage(_ context.Context, messageID string) error {
	return m.session.ChannelMessageDelete(m.channelID, messageID)
}

func (m *messenger) SendTyping(context.Context) error {
	return m.session.ChannelTyping(m.channelID)
}

func (m *messenger) Capabilities() platform.Capabilities {
	return platform.Capabilities{CanUpdateText: true, CanUpdateCard: true}
}

func toMessageSend(p platform.Payload) *discordgo.MessageSend {
	if p.IsCard() {
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{toEmbed(p)}}
	}
	return &discordgo.MessageSend{Content: p.Text}
}
