package platform

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAdapter struct {
	name       string
	connectErr error

	mu      sync.Mutex
	stopped bool
}

func (a *fakeAdapter) Type() string { return a.name }

func (a *fakeAdapter) Capabilities() Capabilities {
	return Capabilities{CanUpdateText: true, CanUpdateCard: true}
}

func (a *fakeAdapter) Connect(_ context.Context, _ Handler) (Connection, error) {
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	return StopFunc(func(context.Context) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.stopped = true
		return nil
	}), nil
}

func (a *fakeAdapter) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func noopHandler(context.Context, Event, Messenger) error { return nil }

func TestManager_StartSkipsFailingAdapter(t *testing.T) {
	good := &fakeAdapter{name: "good"}
	bad := &fakeAdapter{name: "bad", connectErr: errors.New("no token")}
	m := NewManager(slog.Default(), noopHandler, good, bad)

	m.Start(context.Background())

	assert.NoError(t, m.Shutdown(context.Background()))
	assert.True(t, good.isStopped())
	assert.False(t, bad.isStopped())
}

func TestManager_ShutdownIsIdempotent(t *testing.T) {
	adapter := &fakeAdapter{name: "only"}
	m := NewManager(slog.Default(), noopHandler, adapter)
	m.Start(context.Background())

	assert.NoError(t, m.Shutdown(context.Background()))
	assert.NoError(t, m.Shutdown(context.Background()))
}
