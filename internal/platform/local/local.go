// Package local provides an in-process chat surface: the HTTP chat endpoint
// and the test suites drive turns through it synchronously.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datachat-ai/datachat/internal/platform"
)

// Type identifies the local channel.
const Type = "local"

// ActionKind labels one recorded outbound call.
type ActionKind string

const (
	ActionSend   ActionKind = "send"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
	ActionTyping ActionKind = "typing"
)

// Action is one outbound call captured by the recorder.
type Action struct {
	Kind      ActionKind
	MessageID string
	Payload   platform.Payload
}

// Recorder is a Messenger that captures the outbound call sequence and
// tracks the surviving visible message.
type Recorder struct {
	mu      sync.Mutex
	actions []Action
	caps    platform.Capabilities
	current map[string]platform.Payload // live messages by id
}

// NewRecorder creates a recorder with full edit capabilities.
func NewRecorder() *Recorder {
	return &Recorder{
		caps:    platform.Capabilities{CanUpdateText: true, CanUpdateCard: true},
		current: make(map[string]platform.Payload),
	}
}

// SetCapabilities overrides the advertised edit capabilities.
func (r *Recorder) SetCapabilities(caps platform.Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = caps
}

// SendMessage records a send and returns a fresh message id.
func (r *Recorder) SendMessage(_ context.Context, p platform.Payload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.actions = append(r.actions, Action{Kind: ActionSend, MessageID: id, Payload: p})
	r.current[id] = p
	return id, nil
}

// UpdateMessage records an in-place edit.
func (r *Recorder) UpdateMessage(_ context.Context, messageID string, p platform.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.current[messageID]; !ok {
		return fmt.Errorf("update unknown message %s", messageID)
	}
	r.actions = append(r.actions, Action{Kind: ActionUpdate, MessageID: messageID, Payload: p})
	r.current[messageID] = p
	return nil
}

// DeleteMessage records a delete.
func (r *Recorder) DeleteMessage(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.current[messageID]; !ok {
		return fmt.Errorf("delete unknown message %s", messageID)
	}
	r.actions = append(r.actions, Action{Kind: ActionDelete, MessageID: messageID})
	delete(r.current, messageID)
	return nil
}

// SendTyping records a typing indicator.
func (r *Recorder) SendTyping(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, Action{Kind: ActionTyping})
	return nil
}

// Capabilities implements platform.Messenger.
func (r *Recorder) Capabilities() platform.Capabilities {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps
}

// Actions returns the captured call sequence.
func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// Visible returns the payloads of messages still visible, in action order.
func (r *Recorder) Visible() []platform.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []platform.Payload
	for _, a := range r.actions {
		if a.Kind == ActionSend || a.Kind == ActionUpdate {
			if p, live := r.current[a.MessageID]; live && !seen[a.MessageID] {
				seen[a.MessageID] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Hub dispatches locally injected events through the configured handler.
type Hub struct {
	mu      sync.RWMutex
	handler platform.Handler
}

// NewHub creates an unbound hub; the manager binds the handler on connect.
func NewHub() *Hub {
	return &Hub{}
}

// Dispatch runs one turn synchronously and returns the recorder holding the
// outbound actions it produced.
func (h *Hub) Dispatch(ctx context.Context, ev platform.Event) (*Recorder, error) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return nil, fmt.Errorf("local channel not connected")
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	rec := NewRecorder()
	if err := handler(ctx, ev, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// Adapter exposes the hub as a platform adapter.
type Adapter struct {
	hub *Hub
}

// NewAdapter creates the local adapter.
func NewAdapter(hub *Hub) *Adapter {
	return &Adapter{hub: hub}
}

// Type implements platform.Adapter.
func (a *Adapter) Type() string { return Type }

// Capabilities implements platform.Adapter.
func (a *Adapter) Capabilities() platform.Capabilities {
	return platform.Capabilities{CanUpdateText: true, CanUpdateCard: true}
}

// Connect binds the handler to the hub.
func (a *Adapter) Connect(_ context.Context, handler platform.Handler) (platform.Connection, error) {
	a.hub.mu.Lock()
	a.hub.handler = handler
	a.hub.mu.Unlock()
	return platform.StopFunc(func(context.Context) error {
		a.hub.mu.Lock()
		a.hub.handler = nil
		a.hub.mu.Unlock()
		return nil
	}), nil
}
