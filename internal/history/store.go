// Package history keeps per-conversation transcripts in a bounded in-process
// cache and, when a durable identity exists, a per-principal durable record.
// The durable record is authoritative for the context sent to the answer
// endpoint; the cache is local bookkeeping only.
package history

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/datachat-ai/datachat/internal/chat"
)

// DefaultCapacity bounds the number of cached conversations when the
// configured capacity is zero or negative.
const DefaultCapacity = 1024

// Record is the durable per-principal history document.
type Record struct {
	Chat []chat.Message `json:"chat"`
}

// Durable reads and writes per-principal history records.
type Durable interface {
	Read(ctx context.Context, principalID string) (Record, bool, error)
	Write(ctx context.Context, principalID string, record Record) error
}

type entry struct {
	mu       sync.Mutex
	messages []chat.Message
	touched  time.Time
	elem     *list.Element
}

// Store is the dual-backed conversation memory. It is always constructed and
// injected, never a package-level singleton, so concurrency assumptions stay
// testable in isolation.
type Store struct {
	logger   *slog.Logger
	durable  Durable
	capacity int

	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently touched conversation id
}

// NewStore creates a history store. durable may be nil when no durable
// backend is configured; principal-scoped operations then become no-ops.
func NewStore(log *slog.Logger, durable Durable, capacity int) *Store {
	if log == nil {
		log = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		logger:   log.With(slog.String("service", "history")),
		durable:  durable,
		capacity: capacity,
		entries:  make(map[string]*entry),
		lru:      list.New(),
	}
}

// touch returns the conversation entry, creating it if absent, and refreshes
// its eviction order. Caller must not hold s.mu.
func (s *Store) touch(conversationID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[conversationID]
	if !ok {
		e = &entry{}
		e.elem = s.lru.PushFront(conversationID)
		s.entries[conversationID] = e
		s.evictLocked()
	} else {
		s.lru.MoveToFront(e.elem)
	}
	e.touched = time.Now()
	return e
}

func (s *Store) evictLocked() {
	for len(s.entries) > s.capacity {
		oldest := s.lru.Back()
		if oldest == nil {
			return
		}
		id := oldest.Value.(string)
		s.lru.Remove(oldest)
		delete(s.entries, id)
		s.logger.Warn("evicted conversation from volatile cache", slog.String("conversation_id", id))
	}
}

// Append adds a message to the conversation's volatile transcript and, when
// principalID is non-empty, to that principal's durable record. Existing
// entries are never reordered. A durable failure leaves the volatile append
// in place and is returned for the caller to log as a warning; the turn
// still completes on whatever history is available.
func (s *Store) Append(ctx context.Context, conversationID, principalID string, msg chat.Message) error {
	e := s.touch(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages = append(e.messages, msg)

	if principalID == "" || s.durable == nil {
		return nil
	}
	record, _, err := s.durable.Read(ctx, principalID)
	if err != nil {
		return fmt.Errorf("read durable history for %s: %w", principalID, err)
	}
	record.Chat = append(record.Chat, msg)
	if err := s.durable.Write(ctx, principalID, record); err != nil {
		return fmt.Errorf("write durable history for %s: %w", principalID, err)
	}
	return nil
}

// Get returns the volatile transcript for a conversation in append order,
// or nil when the conversation is unknown.
func (s *Store) Get(conversationID string) []chat.Message {
	s.mu.Lock()
	e, ok := s.entries[conversationID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]chat.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// GetDurable returns the principal's durable transcript, the sequence sent
// as context to the answer endpoint. Unknown principals yield an empty slice.
func (s *Store) GetDurable(ctx context.Context, principalID string) ([]chat.Message, error) {
	if principalID == "" || s.durable == nil {
		return nil, nil
	}
	record, ok, err := s.durable.Read(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("read durable history for %s: %w", principalID, err)
	}
	if !ok {
		return nil, nil
	}
	return record.Chat, nil
}

// Clear removes the volatile entry and resets the durable record to empty.
// It serializes against concurrent Append calls for the same conversation.
func (s *Store) Clear(ctx context.Context, conversationID, principalID string) error {
	e := s.touch(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages = nil
	s.mu.Lock()
	if cur, ok := s.entries[conversationID]; ok && cur == e {
		s.lru.Remove(e.elem)
		delete(s.entries, conversationID)
	}
	s.mu.Unlock()

	if principalID == "" || s.durable == nil {
		return nil
	}
	if err := s.durable.Write(ctx, principalID, Record{Chat: []chat.Message{}}); err != nil {
		return fmt.Errorf("clear durable history for %s: %w", principalID, err)
	}
	return nil
}

// CountByRole counts volatile entries with the given role, used to derive
// the per-conversation turn counter shown on citation cards.
func (s *Store) CountByRole(conversationID, role string) int {
	s.mu.Lock()
	e, ok := s.entries[conversationID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, msg := range e.messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}

// SweepIdle drops volatile entries untouched for at least maxIdle and
// returns how many were dropped. Durable records are never swept.
func (s *Store) SweepIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, e := range s.entries {
		if e.touched.Before(cutoff) {
			s.lru.Remove(e.elem)
			delete(s.entries, id)
			dropped++
		}
	}
	return dropped
}
