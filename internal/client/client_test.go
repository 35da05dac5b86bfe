package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ito-server/internal/auth"
	"github.com/vovakirdan/ito-server/internal/config"
	"github.com/vovakirdan/ito-server/internal/core"
	"github.com/vovakirdan/ito-server/internal/ito"
	"github.com/vovakirdan/ito-server/internal/session"
	"github.com/vovakirdan/ito-server/internal/store/memory"
	transporthttp "github.com/vovakirdan/ito-server/internal/transport/http"
)

func newServer(t *testing.T) *Client {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.AllowedOrigins = nil
	cfg.WS.RatePerSecond = 0

	logger := zerolog.Nop()
	st := memory.New()
	hub := core.NewHub(st, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	game := ito.NewService(core.Observe(st, hub), ito.WithLogger(&logger))
	jwtCfg := &auth.JWTConfig{Secret: []byte("client-test"), Issuer: "test", Audience: "test", TTL: time.Hour}

	ts := httptest.NewServer(transporthttp.NewRouter(hub, game, jwtCfg, &cfg, &logger))
	t.Cleanup(ts.Close)

	return New(ts.URL, WithHTTPClient(ts.Client()))
}

func TestClientGameRoundTrip(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	created, err := c.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, ito.ValidateRoomID(created.RoomID))

	exists, err := c.RoomExists(ctx, created.RoomID)
	require.NoError(t, err)
	assert.False(t, exists, "room is only stored once the owner joins")

	alice, err := c.Join(ctx, created.RoomID, "Alice", created.OwnerToken)
	require.NoError(t, err)
	assert.True(t, alice.Owner)

	bob, err := c.Join(ctx, created.RoomID, " Bob ", "")
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob.Name)
	assert.NotEqual(t, alice.Num, bob.Num)

	_, err = c.Join(ctx, created.RoomID, "Bob", "")
	require.ErrorIs(t, err, ito.ErrNameTaken)
	assert.Equal(t, "その名前はすでに使われています", NoticeOf(err))

	step, err := c.Advance(ctx, created.RoomID, alice.Token, ito.StepWaiting)
	require.NoError(t, err)
	assert.Equal(t, ito.StepOpenNumber, step)

	_, err = c.Advance(ctx, created.RoomID, alice.Token, ito.StepWaiting)
	require.ErrorIs(t, err, ito.ErrStaleStep)

	num, err := c.SeeNumber(ctx, created.RoomID, bob.Token)
	require.NoError(t, err)
	assert.Equal(t, bob.Num, num)

	require.NoError(t, c.Chat(ctx, created.RoomID, bob.Token, "hi"))

	view, err := c.Room(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, ito.UserOpenedNumber, view.Players["Bob"].Step)
	assert.Len(t, view.Chat, 1)

	deleted, err := c.LogOut(ctx, created.RoomID, bob.Token)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = c.LogOut(ctx, created.RoomID, alice.Token)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = c.Room(ctx, created.RoomID)
	require.ErrorIs(t, err, ito.ErrRoomNotFound)
}

func TestClientWatchFollowsRoom(t *testing.T) {
	c := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := c.CreateRoom(ctx)
	require.NoError(t, err)
	alice, err := c.Join(ctx, created.RoomID, "Alice", created.OwnerToken)
	require.NoError(t, err)

	snapshots := make(chan *ito.Room, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, created.RoomID, func(room *ito.Room) error {
			select {
			case snapshots <- room:
			case <-ctx.Done():
				return ctx.Err()
			}
			if room == nil {
				return ErrStopWatch
			}
			return nil
		})
	}()

	waitFor := func(desc string, ok func(*ito.Room) bool) {
		t.Helper()
		for {
			select {
			case room := <-snapshots:
				if ok(room) {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %s", desc)
			}
		}
	}

	waitFor("initial snapshot", func(r *ito.Room) bool { return r != nil && len(r.Players) == 1 })

	bob, err := c.Join(ctx, created.RoomID, "Bob", "")
	require.NoError(t, err)
	waitFor("bob joined", func(r *ito.Room) bool { return r != nil && len(r.Players) == 2 })

	_, err = c.LogOut(ctx, created.RoomID, bob.Token)
	require.NoError(t, err)
	deleted, err := c.LogOut(ctx, created.RoomID, alice.Token)
	require.NoError(t, err)
	require.True(t, deleted)
	waitFor("room deleted", func(r *ito.Room) bool { return r == nil })

	require.NoError(t, <-done)
}

func TestWatchReportsServerErrors(t *testing.T) {
	c := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Watch(ctx, "12", func(*ito.Room) error { return nil })
	require.ErrorIs(t, err, ito.ErrInvalidRoomID)
}

func TestRehydrateThroughClient(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	mgr, err := session.NewManager(session.NewFileStore(t.TempDir() + "/session.json"))
	require.NoError(t, err)
	require.NoError(t, mgr.Update(func(s *session.State) {
		s.RoomID = "654321"
		s.URName = "Alice"
	}))

	reset, err := mgr.Rehydrate(ctx, c)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.True(t, mgr.State().Empty())
}
