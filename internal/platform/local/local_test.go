package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datachat-ai/datachat/internal/platform"
)

func TestHub_DispatchUnconnected(t *testing.T) {
	hub := NewHub()
	_, err := hub.Dispatch(context.Background(), platform.Event{ConversationID: "c1"})
	require.Error(t, err)
}

func TestHub_DispatchRunsHandler(t *testing.T) {
	hub := NewHub()
	adapter := NewAdapter(hub)

	handler := func(ctx context.Context, ev platform.Event, m platform.Messenger) error {
		id, err := m.SendMessage(ctx, platform.Payload{Text: "working"})
		if err != nil {
			return err
		}
		return m.UpdateMessage(ctx, id, platform.Payload{Text: "done: " + ev.Text})
	}
	conn, err := adapter.Connect(context.Background(), handler)
	require.NoError(t, err)

	rec, err := hub.Dispatch(context.Background(), platform.Event{Kind: platform.EventMessage, Text: "task", ConversationID: "c1"})
	require.NoError(t, err)
	assert.False(t, rec.Actions()[0].Payload.IsCard())

	visible := rec.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "done: task", visible[0].Text)

	require.NoError(t, conn.Stop(context.Background()))
	_, err = hub.Dispatch(context.Background(), platform.Event{ConversationID: "c1"})
	require.Error(t, err)
}

func TestRecorder_DeleteRemovesVisible(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	id, err := rec.SendMessage(ctx, platform.Payload{Text: "first"})
	require.NoError(t, err)
	_, err = rec.SendMessage(ctx, platform.Payload{Text: "second"})
	require.NoError(t, err)

	require.NoError(t, rec.DeleteMessage(ctx, id))
	visible := rec.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "second", visible[0].Text)

	assert.Error(t, rec.UpdateMessage(ctx, id, platform.Payload{Text: "ghost"}))
}
