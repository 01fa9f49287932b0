// Package render maps an accumulated turn result into exactly one outbound
// action: a plain-text answer, a citation card, or an error notice, plus the
// choice between updating the provisional notice in place and replacing it.
package render

import (
	"strings"

	"github.com/datachat-ai/datachat/internal/chat"
	"github.com/datachat-ai/datachat/internal/platform"
)

// Fixed user-facing texts.
const (
	ProvisionalText    = "Searching ..."
	EmptyResponseText  = "Sorry, I do not have an answer. Please try again."
	ErrorNoticePrefix  = "Sorry, an error occurred. Try waiting a few minutes. If the issue persists, contact your system administrator. Error: "
	DisclaimerSuffix   = "\n\nAI-generated content may be incorrect"
	GreetingText       = "Greetings! I am the Chat with your data bot. How can I help you today?"
	HistoryClearedText = "Chat history has been cleared."
)

// NoAnswerMarker prefixes assistant content when the endpoint found no
// grounded answer and leaked a bare document reference instead.
const NoAnswerMarker = "[doc"

// Action is the single outbound decision for a turn. Resend means the
// provisional notice is deleted and the payload sent as a new message
// instead of edited in place.
type Action struct {
	Payload platform.Payload
	Resend  bool
}

// Policy renders turn results. resendCards forces delete-and-resend for
// card payloads regardless of platform capabilities, for surfaces whose
// cards render wrong when edited into an existing message.
type Policy struct {
	resendCards bool
}

// NewPolicy creates a render policy.
func NewPolicy(resendCards bool) *Policy {
	return &Policy{resendCards: resendCards}
}

// Decide walks the turn result in order and produces exactly one action;
// later assistant/error entries win over earlier ones. Citations for an
// assistant entry come from the immediately preceding tool entry. A turn
// with no assistant or error entry at all still yields one action: the
// no-answer fallback.
func (p *Policy) Decide(turn []chat.Message, userTurns int, caps platform.Capabilities) Action {
	action := Action{
		Payload: platform.Payload{Text: EmptyResponseText + DisclaimerSuffix},
	}
	action.Resend = !caps.CanUpdate(action.Payload)

	for i, entry := range turn {
		switch entry.Role {
		case chat.RoleAssistant:
			action = p.decideAssistant(turn, i, userTurns, caps)
		case chat.RoleError:
			payload := platform.Payload{Text: ErrorNoticePrefix + entry.Content}
			action = Action{Payload: payload, Resend: !caps.CanUpdate(payload)}
		}
	}
	return action
}

func (p *Policy) decideAssistant(turn []chat.Message, i, userTurns int, caps platform.Capabilities) Action {
	answer := turn[i].Content
	if strings.HasPrefix(answer, NoAnswerMarker) {
		payload := platform.Payload{Text: EmptyResponseText + DisclaimerSuffix}
		return Action{Payload: payload, Resend: !caps.CanUpdate(payload)}
	}

	var citations []chat.Citation
	if i > 0 {
		citations = chat.ParseCitations(turn[i-1])
	}
	if len(citations) == 0 {
		payload := platform.Payload{Text: answer + DisclaimerSuffix}
		return Action{Payload: payload, Resend: !caps.CanUpdate(payload)}
	}

	payload := platform.Payload{Card: BuildCard(citations, answer, userTurns)}
	resend := p.resendCards || !caps.CanUpdate(payload)
	return Action{Payload: payload, Resend: resend}
}
