package ito

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ito-server/internal/store"
	"github.com/vovakirdan/ito-server/internal/store/memory"
)

// seqRand replays scripted values, then counts upwards.
type seqRand struct {
	mu   sync.Mutex
	vals []int
	next int
}

func (r *seqRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.vals) > 0 {
		v := r.vals[0]
		r.vals = r.vals[1:]
		return v % n
	}
	v := r.next % n
	r.next++
	return v
}

func newTestService(t *testing.T, opts ...Option) (*Service, store.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, opts...), st
}

func TestScenarioTwoPlayers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithRand(&seqRand{vals: []int{382913, 41, 41, 6}}))

	id, err := svc.CreateRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, "482913", id)

	exists, err := svc.RoomExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists, "room record is written by the owner's join")

	alice, err := svc.JoinName(ctx, id, "Alice", true)
	require.NoError(t, err)
	assert.Equal(t, 42, alice.Num)

	bob, err := svc.JoinName(ctx, id, "Bob", false)
	require.NoError(t, err)
	assert.Equal(t, 7, bob.Num, "colliding draw must be redrawn")

	room, err := svc.Room(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", room.Owner)
	assert.Equal(t, StepWaiting, room.Step)
	require.Len(t, room.Players, 2)

	step, err := svc.Advance(ctx, id, "Alice", StepWaiting)
	require.NoError(t, err)
	assert.Equal(t, StepOpenNumber, step)

	_, err = svc.Advance(ctx, id, "Alice", StepOpenNumber)
	assert.ErrorIs(t, err, ErrGuardNotMet)

	num, err := svc.SeeNumber(ctx, id, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 42, num)
	_, err = svc.SeeNumber(ctx, id, "Bob")
	require.NoError(t, err)

	step, err = svc.Advance(ctx, id, "Alice", StepOpenNumber)
	require.NoError(t, err)
	assert.Equal(t, StepChoiceWord, step)

	assert.ErrorIs(t, svc.SendWord(ctx, id, "Alice", strings.Repeat("あ", MaxWordLength+1)), ErrWordTooLong)
	require.NoError(t, svc.SendWord(ctx, id, "Alice", strings.Repeat("あ", MaxWordLength)))
	require.NoError(t, svc.SendWord(ctx, id, "Alice", "ぞう"))
	_, err = svc.Advance(ctx, id, "Alice", StepChoiceWord)
	assert.ErrorIs(t, err, ErrGuardNotMet)
	require.NoError(t, svc.SendWord(ctx, id, "Bob", "ねずみ"))

	step, err = svc.Advance(ctx, id, "Alice", StepChoiceWord)
	require.NoError(t, err)
	assert.Equal(t, StepPredictOrder, step)

	require.NoError(t, svc.SubmitGuess(ctx, id, "Alice", 1))
	require.NoError(t, svc.SubmitGuess(ctx, id, "Bob", 2))

	step, err = svc.Advance(ctx, id, "Alice", StepPredictOrder)
	require.NoError(t, err)
	assert.Equal(t, StepShowAnswer, step)

	room, err = svc.Room(ctx, id)
	require.NoError(t, err)
	answer := BuildAnswer(room)
	require.Len(t, answer.ByNum, 2)
	assert.Equal(t, "Alice", answer.ByNum[0].Name)
	assert.Equal(t, "ぞう", answer.ByNum[0].Word)
	assert.Equal(t, "Bob", answer.ByPrenum[0].Name)

	require.NoError(t, svc.QuitGame(ctx, id, "Alice"))
	_, err = svc.Room(ctx, id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinNumbersAreUnique(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	const id = "123456"
	_, err := svc.JoinName(ctx, id, "owner", true)
	require.NoError(t, err)

	for i := range 60 {
		_, err := svc.JoinName(ctx, id, fmt.Sprintf("p%d", i), false)
		require.NoError(t, err)

		room, err := svc.Room(ctx, id)
		require.NoError(t, err)
		assert.Len(t, UsedNumbers(room.Players), len(room.Players), "numbers must stay pairwise distinct")
	}
}

func TestConcurrentJoinsNeverShareNumber(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	const id = "654321"
	_, err := svc.JoinName(ctx, id, "owner", true)
	require.NoError(t, err)

	const players = 40
	var wg sync.WaitGroup
	errs := make(chan error, players)
	for i := range players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.JoinName(ctx, id, fmt.Sprintf("p%d", i), false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	room, err := svc.Room(ctx, id)
	require.NoError(t, err)
	require.Len(t, room.Players, players+1)
	assert.Len(t, UsedNumbers(room.Players), players+1)
}

func TestRoomFullWhenNumbersExhausted(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	players := make(map[string]any, MaxNumber)
	for n := MinNumber; n <= MaxNumber; n++ {
		players[fmt.Sprintf("p%d", n)] = map[string]any{"num": n, "step": 0}
	}
	require.NoError(t, st.Set(ctx, RoomPath("111111"), map[string]any{
		"owner":   "p1",
		"step":    0,
		"players": players,
	}))

	_, err := svc.JoinName(ctx, "111111", "late", false)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, WithRand(&seqRand{vals: []int{382913, 0}}))

	require.NoError(t, st.Set(ctx, RoomPath("482913"), map[string]any{"owner": "Zed", "step": 0}))

	id, err := svc.CreateRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100000", id)
}

func TestCreateRoomGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t,
		WithRand(&seqRand{vals: []int{5, 5, 5}}),
		WithMaxRoomIDAttempts(3),
	)

	require.NoError(t, st.Set(ctx, RoomPath("100005"), map[string]any{"owner": "Zed", "step": 0}))

	_, err := svc.CreateRoom(ctx)
	assert.ErrorIs(t, err, ErrRoomIDExhausted)
}

func TestOwnerJoinFailsWhenRoomTaken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "222222", "Alice", true)
	require.NoError(t, err)
	_, err = svc.JoinName(ctx, "222222", "Mallory", true)
	assert.ErrorIs(t, err, ErrRoomExists)
}

func TestJoinRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "333333", "Alice", false)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.JoinName(ctx, "333333", "Alice", true)
	require.NoError(t, err)

	_, err = svc.JoinName(ctx, "333333", " Alice ", false)
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.JoinName(ctx, "333333", "   ", false)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.JoinName(ctx, "333333", "a.b", false)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.JoinName(ctx, "12ab56", "Bob", false)
	assert.ErrorIs(t, err, ErrInvalidRoomID)
}

func TestLogOutLastPlayerDeletesRoom(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "444444", "Alice", true)
	require.NoError(t, err)

	deleted, err := svc.LogOut(ctx, "444444", "Alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	exists, err := svc.RoomExists(ctx, "444444")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLogOutKeepsRoomForOthers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "555555", "Alice", true)
	require.NoError(t, err)
	_, err = svc.JoinName(ctx, "555555", "Bob", false)
	require.NoError(t, err)

	deleted, err := svc.LogOut(ctx, "555555", "Alice")
	require.NoError(t, err)
	assert.False(t, deleted)

	room, err := svc.Room(ctx, "555555")
	require.NoError(t, err)
	assert.Equal(t, "Alice", room.Owner)
	assert.NotContains(t, room.Players, "Alice")
	assert.Contains(t, room.Players, "Bob")

	_, err = svc.LogOut(ctx, "555555", "Alice")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestDepartedOwnerLosesControl(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "565656", "Alice", true)
	require.NoError(t, err)
	_, err = svc.JoinName(ctx, "565656", "Bob", false)
	require.NoError(t, err)
	_, err = svc.LogOut(ctx, "565656", "Alice")
	require.NoError(t, err)

	_, err = svc.Advance(ctx, "565656", "Alice", StepWaiting)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.JoinName(ctx, "565656", "Alice", false)
	assert.ErrorIs(t, err, ErrNameTaken)

	room, err := svc.Room(ctx, "565656")
	require.NoError(t, err)
	assert.Equal(t, StepWaiting, room.Step)
	assert.Empty(t, Actions(room, "Alice"))
}

func TestAdvanceIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "666666", "Alice", true)
	require.NoError(t, err)
	_, err = svc.JoinName(ctx, "666666", "Bob", false)
	require.NoError(t, err)

	_, err = svc.Advance(ctx, "666666", "Bob", StepWaiting)
	assert.ErrorIs(t, err, ErrNotOwner)

	room, err := svc.Room(ctx, "666666")
	require.NoError(t, err)
	assert.Equal(t, StepWaiting, room.Step)
}

func TestDoubleAdvanceAppliesOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "777777", "Alice", true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Advance(ctx, "777777", "Alice", StepWaiting)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, stale int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStaleStep):
			stale++
		default:
			t.Fatalf("unexpected advance error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, stale)

	room, err := svc.Room(ctx, "777777")
	require.NoError(t, err)
	assert.Equal(t, StepOpenNumber, room.Step)
}

func TestPlayerActionsRequireMatchingStep(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "888888", "Alice", true)
	require.NoError(t, err)

	_, err = svc.SeeNumber(ctx, "888888", "Alice")
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.ErrorIs(t, svc.SendWord(ctx, "888888", "Alice", "いぬ"), ErrWrongStep)
	assert.ErrorIs(t, svc.SubmitGuess(ctx, "888888", "Alice", 1), ErrWrongStep)
	assert.ErrorIs(t, svc.QuitGame(ctx, "888888", "Alice"), ErrWrongStep)

	_, err = svc.Advance(ctx, "888888", "Alice", StepWaiting)
	require.NoError(t, err)

	_, err = svc.SeeNumber(ctx, "888888", "Ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestSubmitGuessRange(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	require.NoError(t, st.Set(ctx, RoomPath("999999"), map[string]any{
		"owner": "Alice",
		"step":  int(StepPredictOrder),
		"players": map[string]any{
			"Alice": map[string]any{"num": 10, "step": 2, "word": "a"},
			"Bob":   map[string]any{"num": 20, "step": 2, "word": "b"},
		},
	}))

	assert.ErrorIs(t, svc.SubmitGuess(ctx, "999999", "Bob", 0), ErrInvalidGuess)
	assert.ErrorIs(t, svc.SubmitGuess(ctx, "999999", "Bob", 3), ErrInvalidGuess)
	require.NoError(t, svc.SubmitGuess(ctx, "999999", "Bob", 2))

	room, err := svc.Room(ctx, "999999")
	require.NoError(t, err)
	assert.Equal(t, 2, room.Players["Bob"].Prenum)
}

func TestQuitGameOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	require.NoError(t, st.Set(ctx, RoomPath("121212"), map[string]any{
		"owner":   "Alice",
		"step":    int(StepShowAnswer),
		"players": map[string]any{"Alice": map[string]any{"num": 1, "step": 2}, "Bob": map[string]any{"num": 2, "step": 2}},
	}))

	assert.ErrorIs(t, svc.QuitGame(ctx, "121212", "Bob"), ErrNotOwner)
	require.NoError(t, svc.QuitGame(ctx, "121212", "Alice"))
	assert.ErrorIs(t, svc.QuitGame(ctx, "121212", "Alice"), ErrRoomNotFound)
}

func TestChatKeepsNewestEntries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.JoinName(ctx, "131313", "Alice", true)
	require.NoError(t, err)

	for i := range MaxChatEntries + 5 {
		require.NoError(t, svc.Chat(ctx, "131313", "Alice", fmt.Sprintf("msg %d", i)))
	}
	assert.ErrorIs(t, svc.Chat(ctx, "131313", "Alice", "  "), ErrEmptyMessage)
	assert.ErrorIs(t, svc.Chat(ctx, "131313", "Ghost", "hi"), ErrPlayerNotFound)

	room, err := svc.Room(ctx, "131313")
	require.NoError(t, err)
	require.Len(t, room.Chat, MaxChatEntries)
	assert.Equal(t, "msg 5", room.Chat[0].Message)
	assert.Equal(t, fmt.Sprintf("msg %d", MaxChatEntries+4), room.Chat[MaxChatEntries-1].Message)
}

func TestErrorCodesAndNotices(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", ErrNameTaken)
	assert.Equal(t, CodeNameTaken, Code(wrapped))
	assert.Equal(t, "その名前はすでに使われています", Notice(wrapped))
	assert.True(t, IsDomainError(wrapped))

	assert.Equal(t, CodeInternal, Code(fmt.Errorf("disk on fire")))
	assert.False(t, IsDomainError(fmt.Errorf("disk on fire")))
}

func TestFromCode(t *testing.T) {
	assert.ErrorIs(t, FromCode(CodeStaleStep), ErrStaleStep)
	assert.NoError(t, FromCode(CodeInternal))
	assert.NoError(t, FromCode("rate_limited"))
}
