package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/datachat-ai/datachat/internal/platform"
	"github.com/datachat-ai/datachat/internal/render"
)

// toEmbed down-renders a card payload into a Discord embed, truncating the
// flattened text to the embed description limit.
func toEmbed(p platform.Payload) *discordgo.MessageEmbed {
	text := render.FlattenCard(p.Card)
	runes := []rune(text)
	if len(runes) > maxEmbedDescription {
		text = string(runes[:maxEmbedDescription])
	}
	return &discordgo.MessageEmbed{Description: text}
}
