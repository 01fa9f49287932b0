package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/datachat-ai/datachat/internal/auth"
	"github.com/datachat-ai/datachat/internal/platform"
	"github.com/datachat-ai/datachat/internal/platform/local"
)

// ChatHandler drives a full turn through the local channel and returns the
// resulting visible messages synchronously.
type ChatHandler struct {
	logger *slog.Logger
	hub    *local.Hub
}

type chatPayload struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
	Action         string `json:"action,omitempty"`
}

type messageView struct {
	Text string          `json:"text,omitempty"`
	Card json.RawMessage `json:"card,omitempty"`
}

type chatResponse struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []messageView `json:"messages"`
}

func NewChatHandler(log *slog.Logger, hub *local.Hub) *ChatHandler {
	return &ChatHandler{
		logger: log.With(slog.String("handler", "chat")),
		hub:    hub,
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat", h.Chat)
}

func (h *ChatHandler) Chat(c echo.Context) error {
	var payload chatPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(payload.ConversationID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	if strings.TrimSpace(payload.Text) == "" && payload.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	// The authenticated principal keys the durable record.
	principalID, err := auth.PrincipalFromContext(c)
	if err != nil {
		principalID = ""
	}

	ev := platform.Event{
		Kind:           platform.EventMessage,
		Text:           payload.Text,
		ConversationID: payload.ConversationID,
		PrincipalID:    principalID,
		SpecialAction:  payload.Action,
	}
	rec, err := h.hub.Dispatch(c.Request().Context(), ev)
	if err != nil {
		h.logger.Error("turn failed",
			slog.String("conversation_id", payload.ConversationID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "turn failed")
	}

	resp := chatResponse{ConversationID: payload.ConversationID, Messages: []messageView{}}
	for _, p := range rec.Visible() {
		resp.Messages = append(resp.Messages, messageView{Text: p.Text, Card: p.Card})
	}
	return c.JSON(http.StatusOK, resp)
}
