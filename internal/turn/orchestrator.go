// Package turn drives one inbound-message-to-outbound-message cycle: it
// updates history, calls the answer endpoint, consumes the streamed frames,
// and executes the render decision against the originating platform.
package turn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/datachat-ai/datachat/internal/chat"
	"github.com/datachat-ai/datachat/internal/platform"
	"github.com/datachat-ai/datachat/internal/render"
	"github.com/datachat-ai/datachat/internal/stream"
)

// State labels the orchestrator's position within a turn.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateHistoryAppended  State = "HISTORY_APPENDED"
	StateAwaitingEndpoint State = "AWAITING_ENDPOINT"
	StateStreaming        State = "STREAMING"
	StateRendering        State = "RENDERING"
	StateComplete         State = "COMPLETE"
	StateErrored          State = "ERRORED"
)

// Endpoint is the remote answer-generation service.
type Endpoint interface {
	Converse(ctx context.Context, req chat.ConversationRequest) (io.ReadCloser, error)
}

// History is the dual-backed conversation memory consumed by the
// orchestrator.
type History interface {
	Append(ctx context.Context, conversationID, principalID string, msg chat.Message) error
	Get(conversationID string) []chat.Message
	GetDurable(ctx context.Context, principalID string) ([]chat.Message, error)
	Clear(ctx context.Context, conversationID, principalID string) error
	CountByRole(conversationID, role string) int
}

// Orchestrator processes turns. The calling platform delivers events for a
// given conversation one at a time; the history store additionally holds a
// per-conversation lock in case that assumption is ever violated.
type Orchestrator struct {
	logger   *slog.Logger
	history  History
	endpoint Endpoint
	policy   *render.Policy
}

// NewOrchestrator creates a turn orchestrator.
func NewOrchestrator(log *slog.Logger, history History, endpoint Endpoint, policy *render.Policy) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		logger:   log.With(slog.String("service", "turn")),
		history:  history,
		endpoint: endpoint,
		policy:   policy,
	}
}

var (
	mentionPattern = regexp.MustCompile(`<at[^>]*>.*?</at>`)
	newlinePattern = regexp.MustCompile(`[\r\n]+`)
)

// Normalize strips platform mention markup, collapses newlines, trims, and
// lowercases. Case and exact whitespace are not preserved in the transcript
// sent onward.
func Normalize(text string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	text = newlinePattern.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// HandleEvent is the platform.Handler entry point.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev platform.Event, m platform.Messenger) error {
	if ev.Kind == platform.EventMemberJoined {
		_, err := m.SendMessage(ctx, platform.Payload{Text: render.GreetingText})
		return err
	}
	if ev.SpecialAction == platform.ActionClearHistory {
		return o.clearHistory(ctx, ev, m)
	}
	return o.ProcessTurn(ctx, ev, m)
}

func (o *Orchestrator) clearHistory(ctx context.Context, ev platform.Event, m platform.Messenger) error {
	if err := o.history.Clear(ctx, ev.ConversationID, ev.PrincipalID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	o.logger.Info("history cleared",
		slog.String("conversation_id", ev.ConversationID),
		slog.String("principal_id", ev.PrincipalID),
	)
	if _, err := m.SendMessage(ctx, platform.Payload{Text: render.HistoryClearedText}); err != nil {
		return fmt.Errorf("send clear confirmation: %w", err)
	}
	return nil
}

// ProcessTurn runs the full state machine for one inbound message. Exactly
// one visible outbound message results, except when the final render/send
// step itself fails; that failure is logged and the turn ends silently.
func (o *Orchestrator) ProcessTurn(ctx context.Context, ev platform.Event, m platform.Messenger) error {
	log := o.logger.With(
		slog.String("conversation_id", ev.ConversationID),
		slog.String("principal_id", ev.PrincipalID),
	)
	var state State
	o.transition(log, &state, StateReceived)

	userMsg := chat.Message{Role: chat.RoleUser, Content: Normalize(ev.Text)}
	if err := o.history.Append(ctx, ev.ConversationID, ev.PrincipalID, userMsg); err != nil {
		log.Warn("durable append failed", slog.Any("error", err))
	}
	o.transition(log, &state, StateHistoryAppended)

	provisionalID, err := m.SendMessage(ctx, platform.Payload{Text: render.ProvisionalText})
	if err != nil {
		o.transition(log, &state, StateErrored)
		return fmt.Errorf("send provisional notice: %w", err)
	}
	if err := m.SendTyping(ctx); err != nil {
		log.Warn("typing indicator failed", slog.Any("error", err))
	}

	transcript := o.buildContext(ctx, ev, log)

	o.transition(log, &state, StateAwaitingEndpoint)
	var turnResult []chat.Message
	body, err := o.endpoint.Converse(ctx, chat.ConversationRequest{
		Messages:       transcript,
		ConversationID: ev.ConversationID,
	})
	if err != nil {
		// Single endpoint call per turn, fail-fast, no retry.
		o.transition(log, &state, StateErrored)
		turnResult = append(turnResult, chat.Message{Role: chat.RoleError, Content: err.Error()})
	} else {
		o.transition(log, &state, StateStreaming)
		turnResult = o.consumeStream(ctx, body, ev, userMsg, log)
		if err := body.Close(); err != nil {
			log.Warn("close response body failed", slog.Any("error", err))
		}
	}

	o.transition(log, &state, StateRendering)
	userTurns := o.history.CountByRole(ev.ConversationID, chat.RoleUser)
	action := o.policy.Decide(turnResult, userTurns, m.Capabilities())
	if err := o.dispatch(ctx, m, provisionalID, action, log); err != nil {
		o.transition(log, &state, StateErrored)
		log.Error("render dispatch failed", slog.Any("error", err))
		return fmt.Errorf("dispatch render action: %w", err)
	}
	o.transition(log, &state, StateComplete)
	return nil
}

// buildContext assembles the outbound transcript: the durable record when a
// principal exists, else the volatile cache.
func (o *Orchestrator) buildContext(ctx context.Context, ev platform.Event, log *slog.Logger) []chat.Message {
	if ev.PrincipalID != "" {
		transcript, err := o.history.GetDurable(ctx, ev.PrincipalID)
		if err != nil {
			log.Warn("durable read failed, using volatile history", slog.Any("error", err))
		} else if len(transcript) > 0 {
			return transcript
		}
	}
	return o.history.Get(ev.ConversationID)
}

// consumeStream feeds arriving chunks to a frame decoder and accumulates
// the turn result in frame-arrival order. Decoding for a single stream is
// sequential; chunks are never processed in parallel.
func (o *Orchestrator) consumeStream(ctx context.Context, body io.Reader, ev platform.Event, userMsg chat.Message, log *slog.Logger) []chat.Message {
	var result []chat.Message
	userAppended := false
	dec := stream.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, r := range dec.Feed(buf[:n]) {
				result = o.applyFrame(ctx, result, r.Frame, ev, userMsg, &userAppended, log)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("stream read failed", slog.Any("error", err))
			result = append(result, chat.Message{Role: chat.RoleError, Content: err.Error()})
			break
		}
	}
	if r, ok := dec.Flush(); ok {
		if r.Err != nil {
			result = append(result, chat.Message{Role: chat.RoleError, Content: r.Err.Error()})
		} else {
			result = o.applyFrame(ctx, result, r.Frame, ev, userMsg, &userAppended, log)
		}
	}
	return result
}

// applyFrame folds one decoded frame into the turn result. An error frame
// short-circuits answer accumulation for that frame only; later frames are
// still processed. Error entries go to the turn result, never to history.
func (o *Orchestrator) applyFrame(ctx context.Context, result []chat.Message, frame chat.Frame, ev platform.Event, userMsg chat.Message, userAppended *bool, log *slog.Logger) []chat.Message {
	if frame.Error != "" {
		return append(result, chat.Message{
			Role:    chat.RoleError,
			Content: "ERROR: " + frame.Error + " | " + render.EmptyResponseText,
		})
	}
	if len(frame.Choices) == 0 || len(frame.Choices[0].Messages) == 0 {
		return result
	}
	if !*userAppended {
		result = append(result, userMsg)
		*userAppended = true
	}
	msgs := frame.Choices[0].Messages
	result = append(result, msgs...)

	// The last message of the first choice is the authoritative output for
	// this turn and joins both history backends.
	last := msgs[len(msgs)-1]
	if err := o.history.Append(ctx, ev.ConversationID, ev.PrincipalID, last); err != nil {
		log.Warn("append endpoint message failed", slog.Any("error", err))
	}
	return result
}

// dispatch executes the single outbound action: update the provisional
// notice in place, or delete it and send the payload as a new message.
func (o *Orchestrator) dispatch(ctx context.Context, m platform.Messenger, provisionalID string, action render.Action, log *slog.Logger) error {
	if !action.Resend {
		return m.UpdateMessage(ctx, provisionalID, action.Payload)
	}
	if err := m.DeleteMessage(ctx, provisionalID); err != nil {
		log.Warn("delete provisional notice failed", slog.Any("error", err))
	}
	_, err := m.SendMessage(ctx, action.Payload)
	return err
}

func (o *Orchestrator) transition(log *slog.Logger, state *State, next State) {
	*state = next
	log.Debug("turn state", slog.String("state", string(next)))
}
