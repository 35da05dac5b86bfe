package ito

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ito-server/internal/store"
)

const (
	roomIDMin = 100000
	roomIDMax = 999999

	// DefaultMaxRoomIDAttempts bounds CreateRoom's collision retries.
	DefaultMaxRoomIDAttempts = 64

	maxMessageRunes = 500
)

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Service is the authoritative coordinator for every room mutation.
// Read-modify-write sequences run inside store transactions so concurrent
// players cannot collide on numbers or double-advance a phase.
type Service struct {
	store       store.Store
	rng         Rand
	log         *zerolog.Logger
	maxAttempts int
}

// Option configures a Service.
type Option func(*Service)

// WithRand replaces the random source.
func WithRand(r Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithLogger sets the service logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxRoomIDAttempts bounds room id generation.
func WithMaxRoomIDAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService builds a game service over st.
func NewService(st store.Store, opts ...Option) *Service {
	nop := zerolog.Nop()
	s := &Service{
		store:       st,
		rng:         globalRand{},
		log:         &nop,
		maxAttempts: DefaultMaxRoomIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom picks a 6-digit room id that no existing room uses. The room
// record itself is written by the owner's JoinName.
func (s *Service) CreateRoom(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		id := fmt.Sprintf("%06d", roomIDMin+s.rng.IntN(roomIDMax-roomIDMin+1))
		exists, err := s.store.Exists(ctx, RoomPath(id))
		if err != nil {
			return "", fmt.Errorf("check room %s: %w", id, err)
		}
		if !exists {
			s.log.Info().Str("room_id", id).Int("attempt", attempt).Msg("room id allocated")
			return id, nil
		}
		s.log.Debug().Str("room_id", id).Msg("room id collision")
	}
	s.log.Warn().Int("attempts", s.maxAttempts).Msg("room id allocation exhausted")
	return "", ErrRoomIDExhausted
}

// RoomExists reports whether a room record is stored under id.
func (s *Service) RoomExists(ctx context.Context, id string) (bool, error) {
	if err := ValidateRoomID(id); err != nil {
		return false, err
	}
	exists, err := s.store.Exists(ctx, RoomPath(id))
	if err != nil {
		return false, fmt.Errorf("check room %s: %w", id, err)
	}
	return exists, nil
}

// Room returns the current state of a room.
func (s *Service) Room(ctx context.Context, id string) (Room, error) {
	if err := ValidateRoomID(id); err != nil {
		return Room{}, err
	}
	snap, err := s.store.Get(ctx, RoomPath(id))
	if err != nil {
		return Room{}, fmt.Errorf("get room %s: %w", id, err)
	}
	return DecodeRoom(snap)
}

// JoinName registers name in the room. The owner's join creates the room
// record; everybody else joins an existing room under a unique name.
func (s *Service) JoinName(ctx context.Context, id, name string, asOwner bool) (PlayerRecord, error) {
	if err := ValidateRoomID(id); err != nil {
		return PlayerRecord{}, err
	}
	name, err := NormalizeName(name)
	if err != nil {
		return PlayerRecord{}, err
	}

	var rec PlayerRecord
	err = s.store.Transact(ctx, RoomPath(id), func(current store.Snapshot) (any, error) {
		if asOwner {
			if current.Exists() {
				return nil, ErrRoomExists
			}
			num, err := DrawNumber(s.rng, nil)
			if err != nil {
				return nil, err
			}
			rec = PlayerRecord{Num: num, Step: UserWaiting}
			return Room{
				Owner:   name,
				Step:    StepWaiting,
				Players: map[string]PlayerRecord{name: rec},
			}, nil
		}

		room, err := DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		// A departed owner's name stays reserved.
		if _, taken := room.Players[name]; taken || name == room.Owner {
			return nil, ErrNameTaken
		}
		num, err := DrawNumber(s.rng, room.Players)
		if err != nil {
			return nil, err
		}
		rec = PlayerRecord{Num: num, Step: UserWaiting}
		room.Players[name] = rec
		return room, nil
	})
	if err != nil {
		return PlayerRecord{}, err
	}

	s.log.Info().Str("room_id", id).Str("player", name).Bool("owner", asOwner).Msg("player joined")
	return rec, nil
}

// Advance moves the room from the step the owner observed to the next one.
func (s *Service) Advance(ctx context.Context, id, actor string, from GameStep) (GameStep, error) {
	if err := ValidateRoomID(id); err != nil {
		return from, err
	}

	next := from
	err := s.mutateRoom(ctx, id, func(room *Room) error {
		var err error
		next, err = Transition(room, actor, from)
		return err
	})
	if err != nil {
		return from, err
	}

	s.log.Info().Str("room_id", id).Str("from", from.String()).Str("step", next.String()).Msg("room advanced")
	return next, nil
}

// SeeNumber marks the player's number as opened and returns it.
func (s *Service) SeeNumber(ctx context.Context, id, name string) (int, error) {
	var num int
	err := s.mutatePlayer(ctx, id, name, StepOpenNumber, func(_ *Room, rec *PlayerRecord) error {
		if rec.Step < UserOpenedNumber {
			rec.Step = UserOpenedNumber
		}
		num = rec.Num
		return nil
	})
	if err != nil {
		return 0, err
	}
	return num, nil
}

// SendWord stores the player's word. Sending again replaces it.
func (s *Service) SendWord(ctx context.Context, id, name, word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return ErrEmptyWord
	}
	if utf8.RuneCountInString(word) > MaxWordLength {
		return ErrWordTooLong
	}
	return s.mutatePlayer(ctx, id, name, StepChoiceWord, func(_ *Room, rec *PlayerRecord) error {
		rec.Word = word
		rec.Step = UserChoicedWord
		return nil
	})
}

// SubmitGuess records the player's predicted position in the final order.
func (s *Service) SubmitGuess(ctx context.Context, id, name string, prenum int) error {
	return s.mutatePlayer(ctx, id, name, StepPredictOrder, func(room *Room, rec *PlayerRecord) error {
		if prenum < 1 || prenum > len(room.Players) {
			return ErrInvalidGuess
		}
		rec.Prenum = prenum
		return nil
	})
}

// Chat appends a line to the room chat, keeping the newest MaxChatEntries.
func (s *Service) Chat(ctx context.Context, id, name, message string) error {
	if err := ValidateRoomID(id); err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		message = string([]rune(message)[:maxMessageRunes])
	}

	return s.mutateRoom(ctx, id, func(room *Room) error {
		if _, ok := room.Players[name]; !ok {
			return ErrPlayerNotFound
		}
		room.Chat = append(room.Chat, ChatEntry{Name: name, Message: message})
		if len(room.Chat) > MaxChatEntries {
			room.Chat = room.Chat[len(room.Chat)-MaxChatEntries:]
		}
		return nil
	})
}

// LogOut removes the player. The last player leaving deletes the room.
func (s *Service) LogOut(ctx context.Context, id, name string) (bool, error) {
	if err := ValidateRoomID(id); err != nil {
		return false, err
	}

	deleted := false
	err := s.store.Transact(ctx, RoomPath(id), func(current store.Snapshot) (any, error) {
		room, err := DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if _, ok := room.Players[name]; !ok {
			return nil, ErrPlayerNotFound
		}
		if len(room.Players) <= 1 {
			deleted = true
			return nil, nil
		}
		delete(room.Players, name)
		return room, nil
	})
	if err != nil {
		return false, err
	}

	s.log.Info().Str("room_id", id).Str("player", name).Bool("room_deleted", deleted).Msg("player left")
	return deleted, nil
}

// QuitGame deletes the room once the answer has been shown.
func (s *Service) QuitGame(ctx context.Context, id, actor string) error {
	if err := ValidateRoomID(id); err != nil {
		return err
	}

	err := s.store.Transact(ctx, RoomPath(id), func(current store.Snapshot) (any, error) {
		room, err := DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if !IsOwner(room, actor) {
			return nil, ErrNotOwner
		}
		if room.Step != StepShowAnswer {
			return nil, ErrWrongStep
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("room_id", id).Msg("room closed")
	return nil
}

func (s *Service) mutateRoom(ctx context.Context, id string, fn func(room *Room) error) error {
	return s.store.Transact(ctx, RoomPath(id), func(current store.Snapshot) (any, error) {
		room, err := DecodeRoom(current)
		if err != nil {
			return nil, err
		}
		if err := fn(&room); err != nil {
			return nil, err
		}
		return room, nil
	})
}

// mutatePlayer applies fn to one player's record while the room is in step.
func (s *Service) mutatePlayer(ctx context.Context, id, name string, step GameStep, fn func(room *Room, rec *PlayerRecord) error) error {
	if err := ValidateRoomID(id); err != nil {
		return err
	}
	return s.mutateRoom(ctx, id, func(room *Room) error {
		if room.Step != step {
			return ErrWrongStep
		}
		rec, ok := room.Players[name]
		if !ok {
			return ErrPlayerNotFound
		}
		if err := fn(room, &rec); err != nil {
			return err
		}
		room.Players[name] = rec
		return nil
	})
}
