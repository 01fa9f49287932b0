package discord

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datachat-ai/datachat/internal/chat"
	"github.com/datachat-ai/datachat/internal/platform"
	"github.com/datachat-ai/datachat/internal/render"
)

func messageCreate(channelID, userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-1",
			ChannelID: channelID,
			Content:   content,
			Author:    &discordgo.User{ID: userID},
		},
	}
}

func TestToEvent_Message(t *testing.T) {
	ev, ok := toEvent(messageCreate("chan-1", "user-1", "hello"))
	require.True(t, ok)
	assert.Equal(t, platform.EventMessage, ev.Kind)
	assert.Equal(t, "hello", ev.Text)
	assert.Equal(t, "chan-1", ev.ConversationID)
	assert.Equal(t, "discord:user-1", ev.PrincipalID)
	assert.Empty(t, ev.SpecialAction)
}

func TestToEvent_ClearCommand(t *testing.T) {
	for _, content := range []string{"!clear", "!CLEAR", "<@12345> !clear"} {
		ev, ok := toEvent(messageCreate("chan-1", "user-1", content))
		require.True(t, ok, content)
		assert.Equal(t, platform.ActionClearHistory, ev.SpecialAction, content)
	}
}

func TestToEvent_EmptyIgnored(t *testing.T) {
	_, ok := toEvent(messageCreate("chan-1", "user-1", "   "))
	assert.False(t, ok)
}

func TestStripMentions(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<@123> hi", " hi"},
		{"no mention", "no mention"},
		{"<@!456>ping<@789>", "ping"},
		{"<@ unterminated", "<@ unterminated"},
	}
	for _, tc := range cases {
		if got := stripMentions(tc.in); got != tc.want {
			t.Fatalf("stripMentions(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToEmbed_Truncates(t *testing.T) {
	card := render.BuildCard(nil, strings.Repeat("ü", maxEmbedDescription+100), 1)
	embed := toEmbed(platform.Payload{Card: card})
	assert.LessOrEqual(t, len([]rune(embed.Description)), maxEmbedDescription)
}

func TestToEmbed_CarriesCitations(t *testing.T) {
	card := render.BuildCard([]chat.Citation{
		{Title: "Q3 Report", Content: "revenue up", URL: "https://example.com/q3"},
	}, "Revenue grew.", 2)
	embed := toEmbed(platform.Payload{Card: card})
	assert.Contains(t, embed.Description, "Revenue grew.")
	assert.Contains(t, embed.Description, "Q3 Report")
}
