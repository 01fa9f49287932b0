package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/datachat-ai/datachat/internal/chat"
	"github.com/datachat-ai/datachat/internal/history"
)

// HistoryHandler exposes the conversation memory for inspection and reset.
type HistoryHandler struct {
	logger *slog.Logger
	store  *history.Store
}

type historyResponse struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	PrincipalID    string         `json:"principal_id,omitempty"`
	Messages       []chat.Message `json:"messages"`
}

type turnsResponse struct {
	ConversationID string `json:"conversation_id"`
	UserTurns      int    `json:"user_turns"`
}

func NewHistoryHandler(log *slog.Logger, store *history.Store) *HistoryHandler {
	return &HistoryHandler{
		logger: log.With(slog.String("handler", "history")),
		store:  store,
	}
}

func (h *HistoryHandler) Register(e *echo.Echo) {
	group := e.Group("/history")
	group.GET("/durable/:principal_id", h.GetDurable)
	group.GET("/:conversation_id", h.Get)
	group.GET("/:conversation_id/turns", h.Turns)
	group.DELETE("/:conversation_id", h.Clear)
}

func (h *HistoryHandler) Get(c echo.Context) error {
	conversationID := strings.TrimSpace(c.Param("conversation_id"))
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	messages := h.store.Get(conversationID)
	if messages == nil {
		messages = []chat.Message{}
	}
	return c.JSON(http.StatusOK, historyResponse{
		ConversationID: conversationID,
		Messages:       messages,
	})
}

func (h *HistoryHandler) GetDurable(c echo.Context) error {
	principalID := strings.TrimSpace(c.Param("principal_id"))
	if principalID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "principal_id is required")
	}
	messages, err := h.store.GetDurable(c.Request().Context(), principalID)
	if err != nil {
		h.logger.Error("durable read failed",
			slog.String("principal_id", principalID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "durable read failed")
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return c.JSON(http.StatusOK, historyResponse{
		PrincipalID: principalID,
		Messages:    messages,
	})
}

func (h *HistoryHandler) Turns(c echo.Context) error {
	conversationID := strings.TrimSpace(c.Param("conversation_id"))
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	return c.JSON(http.StatusOK, turnsResponse{
		ConversationID: conversationID,
		UserTurns:      h.store.CountByRole(conversationID, chat.RoleUser),
	})
}

func (h *HistoryHandler) Clear(c echo.Context) error {
	conversationID := strings.TrimSpace(c.Param("conversation_id"))
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	principalID := strings.TrimSpace(c.QueryParam("principal_id"))
	if err := h.store.Clear(c.Request().Context(), conversationID, principalID); err != nil {
		h.logger.Error("clear failed",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "clear failed")
	}
	return c.NoContent(http.StatusNoContent)
}
