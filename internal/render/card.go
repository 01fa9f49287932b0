package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datachat-ai/datachat/internal/chat"
)

const (
	cardSchema  = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardVersion = "1.5"
)

type cardElement struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	Wrap     bool          `json:"wrap,omitempty"`
	Weight   string        `json:"weight,omitempty"`
	Size     string        `json:"size,omitempty"`
	IsSubtle bool          `json:"isSubtle,omitempty"`
	Items    []cardElement `json:"items,omitempty"`
	URL      string        `json:"url,omitempty"`
	Title    string        `json:"title,omitempty"`
}

type cardAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type adaptiveCard struct {
	Type    string        `json:"type"`
	Schema  string        `json:"$schema"`
	Version string        `json:"version"`
	Body    []cardElement `json:"body"`
	Actions []cardAction  `json:"actions,omitempty"`
}

// BuildCard renders an answer with its citations into an adaptive-card
// payload: the answer text, one container per citation, and a footer with
// the running turn counter and the disclaimer.
func BuildCard(citations []chat.Citation, answer string, userTurns int) json.RawMessage {
	body := []cardElement{
		{Type: "TextBlock", Text: answer, Wrap: true},
	}
	var actions []cardAction
	for n, citation := range citations {
		title := citation.Title
		if title == "" {
			title = fmt.Sprintf("Reference %d", n+1)
		}
		body = append(body, cardElement{
			Type: "Container",
			Items: []cardElement{
				{Type: "TextBlock", Text: fmt.Sprintf("[%d] %s", n+1, title), Wrap: true, Weight: "Bolder"},
				{Type: "TextBlock", Text: citation.Content, Wrap: true, IsSubtle: true},
			},
		})
		if citation.URL != "" {
			actions = append(actions, cardAction{
				Type:  "Action.OpenUrl",
				Title: fmt.Sprintf("Open [%d] %s", n+1, title),
				URL:   citation.URL,
			})
		}
	}
	body = append(body, cardElement{
		Type:     "TextBlock",
		Text:     fmt.Sprintf("Turn %d · AI-generated content may be incorrect", userTurns),
		Wrap:     true,
		IsSubtle: true,
		Size:     "Small",
	})

	card := adaptiveCard{
		Type:    "AdaptiveCard",
		Schema:  cardSchema,
		Version: cardVersion,
		Body:    body,
		Actions: actions,
	}
	raw, err := json.Marshal(card)
	if err != nil {
		raw, _ = json.Marshal(adaptiveCard{
			Type: "AdaptiveCard", Schema: cardSchema, Version: cardVersion,
			Body: []cardElement{{Type: "TextBlock", Text: answer, Wrap: true}},
		})
	}
	return raw
}

// FlattenCard reduces a card payload to plain text for platforms without
// card support: text blocks line by line, then one line per link action.
func FlattenCard(raw json.RawMessage) string {
	var card adaptiveCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return string(raw)
	}
	var lines []string
	var walk func(elements []cardElement)
	walk = func(elements []cardElement) {
		for _, el := range elements {
			if el.Text != "" {
				lines = append(lines, el.Text)
			}
			if len(el.Items) > 0 {
				walk(el.Items)
			}
		}
	}
	walk(card.Body)
	for _, action := range card.Actions {
		lines = append(lines, fmt.Sprintf("%s: %s", action.Title, action.URL))
	}
	return strings.Join(lines, "\n")
}
