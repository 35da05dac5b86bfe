// Package ito implements the rules of the ito party game: room bootstrap,
// the shared phase machine, per-player progress and the final answer view.
package ito

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/ito-server/internal/store"
)

// RoomsRoot is the store subtree holding every room.
const RoomsRoot = "rooms"

// GameStep is the shared phase of a room.
type GameStep int

const (
	StepWaiting GameStep = iota
	StepOpenNumber
	StepChoiceWord
	StepPredictOrder
	StepShowAnswer
)

// Valid reports whether s is one of the five phases.
func (s GameStep) Valid() bool {
	return s >= StepWaiting && s <= StepShowAnswer
}

func (s GameStep) String() string {
	switch s {
	case StepWaiting:
		return "waiting"
	case StepOpenNumber:
		return "openNumber"
	case StepChoiceWord:
		return "choiceWord"
	case StepPredictOrder:
		return "predictOrder"
	case StepShowAnswer:
		return "showAnswer"
	default:
		return fmt.Sprintf("GameStep(%d)", int(s))
	}
}

// MarshalJSON encodes the step as its integer value.
func (s GameStep) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid game step %d", int(s))
	}
	return json.Marshal(int(s))
}

// UnmarshalJSON rejects integers outside the enumerated phases.
func (s *GameStep) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode game step: %w", err)
	}
	step := GameStep(n)
	if !step.Valid() {
		return fmt.Errorf("invalid game step %d", n)
	}
	*s = step
	return nil
}

// UserGameStep is a single player's progress within the current phase.
type UserGameStep int

const (
	UserWaiting UserGameStep = iota
	UserOpenedNumber
	UserChoicedWord
)

// Valid reports whether s is one of the three player states.
func (s UserGameStep) Valid() bool {
	return s >= UserWaiting && s <= UserChoicedWord
}

func (s UserGameStep) String() string {
	switch s {
	case UserWaiting:
		return "waiting"
	case UserOpenedNumber:
		return "openedNumber"
	case UserChoicedWord:
		return "choicedWord"
	default:
		return fmt.Sprintf("UserGameStep(%d)", int(s))
	}
}

// MarshalJSON encodes the step as its integer value.
func (s UserGameStep) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid user game step %d", int(s))
	}
	return json.Marshal(int(s))
}

// UnmarshalJSON rejects integers outside the enumerated player states.
func (s *UserGameStep) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode user game step: %w", err)
	}
	step := UserGameStep(n)
	if !step.Valid() {
		return fmt.Errorf("invalid user game step %d", n)
	}
	*s = step
	return nil
}

// PlayerRecord is one joined player, keyed by display name within a room.
type PlayerRecord struct {
	Num    int          `json:"num"`
	Step   UserGameStep `json:"step"`
	Word   string       `json:"word,omitempty"`
	Prenum int          `json:"prenum,omitempty"`
}

// ChatEntry is a single chat line.
type ChatEntry struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Room is the value stored under rooms/{roomId}.
type Room struct {
	Owner   string                  `json:"owner"`
	Step    GameStep                `json:"step"`
	Players map[string]PlayerRecord `json:"players,omitempty"`
	Chat    []ChatEntry             `json:"chat,omitempty"`
}

// RoomPath returns the store path of a room.
func RoomPath(roomID string) string {
	return store.Join(RoomsRoot, roomID)
}

// PlayerPath returns the store path of one player record.
func PlayerPath(roomID, name string) string {
	return store.Join(RoomsRoot, roomID, "players", name)
}

// DecodeRoom converts a snapshot of rooms/{roomId} into a Room.
// A missing room yields ErrRoomNotFound.
func DecodeRoom(snap store.Snapshot) (Room, error) {
	var room Room
	if err := snap.Decode(&room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("decode room: %w", err)
	}
	if room.Players == nil {
		room.Players = make(map[string]PlayerRecord)
	}
	return room, nil
}
