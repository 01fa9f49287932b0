package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datachat-ai/datachat/internal/chat"
	"github.com/datachat-ai/datachat/internal/history"
)

type stubDurable struct {
	mu      sync.Mutex
	records map[string]history.Record
}

func newStubDurable() *stubDurable {
	return &stubDurable{records: make(map[string]history.Record)}
}

func (d *stubDurable) Read(_ context.Context, principalID string) (history.Record, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[principalID]
	return r, ok, nil
}

func (d *stubDurable) Write(_ context.Context, principalID string, record history.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[principalID] = record
	return nil
}

func newHistoryStack(t *testing.T) (*echo.Echo, *history.Store) {
	t.Helper()
	store := history.NewStore(slog.Default(), newStubDurable(), 0)
	e := echo.New()
	NewHistoryHandler(slog.Default(), store).Register(e)
	return e, store
}

func TestHistoryHandler_GetAndTurns(t *testing.T) {
	e, store := newHistoryStack(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "conv-1", "", chat.Message{Role: chat.RoleUser, Content: "q1"}))
	require.NoError(t, store.Append(ctx, "conv-1", "", chat.Message{Role: chat.RoleAssistant, Content: "a1"}))
	require.NoError(t, store.Append(ctx, "conv-1", "", chat.Message{Role: chat.RoleUser, Content: "q2"}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/conv-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.ConversationID)
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "q1", resp.Messages[0].Content)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/conv-1/turns", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var turns turnsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
	assert.Equal(t, 2, turns.UserTurns)
}

func TestHistoryHandler_GetUnknownConversation(t *testing.T) {
	e, _ := newHistoryStack(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/no-such", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Messages)
	assert.Empty(t, resp.Messages)
}

func TestHistoryHandler_GetDurable(t *testing.T) {
	e, store := newHistoryStack(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "conv-1", "principal-9", chat.Message{Role: chat.RoleUser, Content: "hello"}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/durable/principal-9", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "principal-9", resp.PrincipalID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hello", resp.Messages[0].Content)
}

func TestHistoryHandler_Clear(t *testing.T) {
	e, store := newHistoryStack(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "conv-1", "principal-9", chat.Message{Role: chat.RoleUser, Content: "hello"}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/history/conv-1?principal_id=principal-9", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Empty(t, store.Get("conv-1"))
	durable, err := store.GetDurable(ctx, "principal-9")
	require.NoError(t, err)
	assert.Empty(t, durable)
}
