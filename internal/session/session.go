// Package session keeps the client-local identity of a player: who they are,
// which room they sit in and how far they got. It survives restarts by
// being persisted to a file.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/vovakirdan/ito-server/internal/ito"
)

// State is the persisted session. The zero value is the empty session.
type State struct {
	URName       string           `json:"urName,omitempty"`
	RoomID       string           `json:"roomId,omitempty"`
	URNum        int              `json:"urNum,omitempty"`
	IsOwner      bool             `json:"isOwner,omitempty"`
	UserGameStep ito.UserGameStep `json:"userGameStep"`

	// PendingStep is the player step a just-sent write is expected to reach.
	// It only disables the control until the room snapshot confirms it.
	PendingStep *ito.UserGameStep `json:"pendingStep,omitempty"`

	Token      string `json:"token,omitempty"`
	OwnerToken string `json:"ownerToken,omitempty"`
}

// Empty reports whether the session is not attached to any room.
func (s State) Empty() bool {
	return s.RoomID == "" && s.URName == ""
}

// Joined reports whether the session has a registered name in a room.
func (s State) Joined() bool {
	return s.RoomID != "" && s.URName != ""
}

// Pending reports whether a write for this player is still awaiting its echo.
func (s State) Pending() bool {
	return s.PendingStep != nil
}

// Persister loads and saves the session.
type Persister interface {
	Load() (State, error)
	Save(State) error
}

// RoomChecker answers whether a room still exists.
type RoomChecker interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// Manager owns the in-memory session and writes it back on every change.
type Manager struct {
	mu    sync.Mutex
	store Persister
	state State
}

// NewManager reads the persisted session once.
func NewManager(p Persister) (*Manager, error) {
	st, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Manager{store: p, state: st}, nil
}

// State returns a copy of the current session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Update applies fn and persists the result. The in-memory state is only
// replaced once the write succeeded.
func (m *Manager) Update(fn func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state
	fn(&next)
	if err := m.store.Save(next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.state = next
	return nil
}

// Reset clears the session to its empty default.
func (m *Manager) Reset() error {
	return m.Update(func(s *State) { *s = State{} })
}

// Rehydrate drops a session whose room no longer exists. It reports whether
// the session was reset.
func (m *Manager) Rehydrate(ctx context.Context, checker RoomChecker) (bool, error) {
	roomID := m.State().RoomID
	if roomID == "" {
		return false, nil
	}

	exists, err := checker.RoomExists(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("check room %s: %w", roomID, err)
	}
	if exists {
		return false, nil
	}
	return true, m.Reset()
}

// MarkPending records that a write moving this player to step was sent.
func (m *Manager) MarkPending(step ito.UserGameStep) error {
	return m.Update(func(s *State) { s.PendingStep = &step })
}

// ApplySnapshot treats the pushed room as the source of truth for this
// player. A nil room means the room is gone.
func (m *Manager) ApplySnapshot(room *ito.Room) error {
	return m.Update(func(s *State) {
		applySnapshot(s, room)
	})
}

func applySnapshot(s *State, room *ito.Room) {
	if s.RoomID == "" {
		return
	}
	if room == nil {
		*s = State{}
		return
	}
	if s.URName == "" {
		return
	}

	rec, ok := room.Players[s.URName]
	if !ok {
		*s = State{}
		return
	}
	s.URNum = rec.Num
	s.UserGameStep = rec.Step
	if s.PendingStep != nil && rec.Step >= *s.PendingStep {
		s.PendingStep = nil
	}
}
