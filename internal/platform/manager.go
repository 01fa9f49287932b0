package platform

import (
	"context"
	"log/slog"
	"sync"
)

// Manager owns the registered adapters and their live connections.
type Manager struct {
	logger   *slog.Logger
	handler  Handler
	adapters []Adapter

	mu    sync.Mutex
	conns map[string]Connection
}

// NewManager creates a manager dispatching inbound events to handler.
func NewManager(log *slog.Logger, handler Handler, adapters ...Adapter) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		logger:   log.With(slog.String("component", "platform_manager")),
		handler:  handler,
		adapters: adapters,
		conns:    make(map[string]Connection),
	}
}

// Start connects every adapter. A failing adapter is logged and skipped so
// one misconfigured surface does not take the others down.
func (m *Manager) Start(ctx context.Context) {
	for _, adapter := range m.adapters {
		conn, err := adapter.Connect(ctx, m.handler)
		if err != nil {
			m.logger.Error("adapter connect failed", slog.String("adapter", adapter.Type()), slog.Any("error", err))
			continue
		}
		m.mu.Lock()
		m.conns[adapter.Type()] = conn
		m.mu.Unlock()
		m.logger.Info("adapter connected", slog.String("adapter", adapter.Type()))
	}
}

// Shutdown stops all live connections.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]Connection)
	m.mu.Unlock()

	var firstErr error
	for name, conn := range conns {
		if err := conn.Stop(ctx); err != nil {
			m.logger.Error("adapter stop failed", slog.String("adapter", name), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
