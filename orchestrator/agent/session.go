// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package agent

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is one conversation between a user and the agent.
type Session struct {
	ID        string
	UserID    string
	History   []*genai.Content
	CreatedAt time.Time
	UpdatedAt time.Time

	// pending holds the tool calls of the last model reply while some of
	// them wait for the user to authorize access.
	pending *toolBatch

	mu sync.Mutex
}

// toolBatch pairs the function calls of one model reply with their
// responses. A nil response marks a call that has not completed yet.
type toolBatch struct {
	calls     []*genai.FunctionCall
	responses []*genai.Part
}

func newToolBatch(calls []*genai.FunctionCall) *toolBatch {
	return &toolBatch{calls: calls, responses: make([]*genai.Part, len(calls))}
}

// waiting returns the calls without a response, in reply order.
func (b *toolBatch) waiting() []*genai.FunctionCall {
	var out []*genai.FunctionCall
	for i, call := range b.calls {
		if b.responses[i] == nil {
			out = append(out, call)
		}
	}
	return out
}

// content returns one user content answering every call of the reply.
// Calls still waiting are answered as not authorized.
func (b *toolBatch) content() *genai.Content {
	parts := make([]*genai.Part, len(b.calls))
	for i, call := range b.calls {
		parts[i] = b.responses[i]
		if parts[i] == nil {
			parts[i] = functionResponse(call, map[string]interface{}{
				"pending": true,
				"message": "Authentication was not completed",
			})
		}
	}
	return genai.NewContentFromParts(parts, genai.RoleUser)
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Messages    int       `json:"messages"`
	PendingAuth bool      `json:"pending_auth"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSession creates an empty session for the user.
func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:          s.ID,
		UserID:      s.UserID,
		Messages:    len(s.History),
		PendingAuth: s.pending != nil,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// SessionStore keeps sessions between turns.
type SessionStore interface {
	Create(userID string) *Session
	Get(id string) (*Session, error)
	Delete(id string)
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (m *MemorySessionStore) Create(userID string) *Session {
	s := NewSession(userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

func (m *MemorySessionStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessionStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
