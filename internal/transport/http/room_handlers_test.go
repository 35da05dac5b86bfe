package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/vovakirdan/ito-server/internal/auth"
	"github.com/vovakirdan/ito-server/internal/ito"
)

func expectStatus(t *testing.T, got, want int, body []byte) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d: %s", want, got, body)
	}
}

func expectCode(t *testing.T, body []byte, code string) {
	t.Helper()
	resp := decode[ErrorResponse](t, body)
	if resp.Code != code {
		t.Fatalf("expected error code %q, got %+v", code, resp)
	}
	if resp.Notice == "" {
		t.Fatalf("expected a notice in %+v", resp)
	}
}

func createAndJoin(t *testing.T, env *testEnv, owner string, others ...string) (string, map[string]string) {
	t.Helper()

	status, body := env.do(t, http.MethodPost, "/api/rooms", "", nil)
	expectStatus(t, status, http.StatusCreated, body)
	created := decode[CreateRoomResponse](t, body)

	tokens := make(map[string]string)
	status, body = env.do(t, http.MethodPost, "/api/rooms/"+created.RoomID+"/players", created.OwnerToken, JoinRequest{Name: owner})
	expectStatus(t, status, http.StatusCreated, body)
	joined := decode[JoinResponse](t, body)
	if !joined.Owner {
		t.Fatalf("owner join should be flagged as owner: %+v", joined)
	}
	tokens[owner] = joined.Token

	for _, name := range others {
		status, body = env.do(t, http.MethodPost, "/api/rooms/"+created.RoomID+"/players", "", JoinRequest{Name: name})
		expectStatus(t, status, http.StatusCreated, body)
		p := decode[JoinResponse](t, body)
		if p.Owner {
			t.Fatalf("%s must not be owner", name)
		}
		tokens[name] = p.Token
	}
	return created.RoomID, tokens
}

func advance(t *testing.T, env *testEnv, roomID, token string, from ito.GameStep) (int, []byte) {
	t.Helper()
	f := int(from)
	return env.do(t, http.MethodPost, "/api/rooms/"+roomID+"/step", token, AdvanceRequest{From: &f})
}

func TestRESTGameFlow(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/rooms/482913", "", nil)
	expectStatus(t, status, http.StatusNotFound, body)
	expectCode(t, body, ito.CodeRoomNotFound)

	id, tokens := createAndJoin(t, env, "Alice", "Bob")
	base := "/api/rooms/" + id

	status, body = env.do(t, http.MethodPost, base+"/players", "", JoinRequest{Name: "Bob"})
	expectStatus(t, status, http.StatusConflict, body)
	expectCode(t, body, ito.CodeNameTaken)

	status, body = advance(t, env, id, tokens["Bob"], ito.StepWaiting)
	expectStatus(t, status, http.StatusForbidden, body)

	status, body = advance(t, env, id, tokens["Alice"], ito.StepWaiting)
	expectStatus(t, status, http.StatusOK, body)
	if got := decode[StepResponse](t, body).Step; got != ito.StepOpenNumber {
		t.Fatalf("expected openNumber, got %v", got)
	}

	status, body = advance(t, env, id, tokens["Alice"], ito.StepWaiting)
	expectStatus(t, status, http.StatusConflict, body)
	expectCode(t, body, ito.CodeStaleStep)

	status, body = advance(t, env, id, tokens["Alice"], ito.StepOpenNumber)
	expectStatus(t, status, http.StatusConflict, body)
	expectCode(t, body, ito.CodeGuardNotMet)

	for _, name := range []string{"Alice", "Bob"} {
		status, body = env.do(t, http.MethodPost, base+"/number", tokens[name], nil)
		expectStatus(t, status, http.StatusOK, body)
		if n := decode[NumberResponse](t, body).Num; n < ito.MinNumber || n > ito.MaxNumber {
			t.Fatalf("number out of range: %d", n)
		}
	}

	status, body = advance(t, env, id, tokens["Alice"], ito.StepOpenNumber)
	expectStatus(t, status, http.StatusOK, body)

	status, body = env.do(t, http.MethodPost, base+"/word", tokens["Alice"], WordRequest{Word: strings.Repeat("ぞ", ito.MaxWordLength+1)})
	expectStatus(t, status, http.StatusBadRequest, body)
	expectCode(t, body, ito.CodeWordTooLong)
	status, body = env.do(t, http.MethodPost, base+"/word", tokens["Alice"], WordRequest{Word: ""})
	expectStatus(t, status, http.StatusBadRequest, body)
	expectCode(t, body, ito.CodeEmptyWord)
	status, body = env.do(t, http.MethodPost, base+"/word", tokens["Alice"], WordRequest{Word: "ぞう"})
	expectStatus(t, status, http.StatusNoContent, body)
	status, body = env.do(t, http.MethodPost, base+"/word", tokens["Bob"], WordRequest{Word: "ねこ"})
	expectStatus(t, status, http.StatusNoContent, body)

	status, body = advance(t, env, id, tokens["Alice"], ito.StepChoiceWord)
	expectStatus(t, status, http.StatusOK, body)

	status, body = env.do(t, http.MethodPost, base+"/guess", tokens["Bob"], GuessRequest{Prenum: 5})
	expectStatus(t, status, http.StatusBadRequest, body)
	expectCode(t, body, ito.CodeInvalidGuess)
	status, body = env.do(t, http.MethodPost, base+"/guess", tokens["Bob"], GuessRequest{Prenum: 2})
	expectStatus(t, status, http.StatusNoContent, body)

	status, body = advance(t, env, id, tokens["Alice"], ito.StepPredictOrder)
	expectStatus(t, status, http.StatusOK, body)

	status, body = env.do(t, http.MethodGet, base, "", nil)
	expectStatus(t, status, http.StatusOK, body)
	room := decode[RoomResponse](t, body)
	if room.Step != ito.StepShowAnswer || room.Answer == nil || len(room.Answer.ByNum) != 2 {
		t.Fatalf("unexpected room after reveal: %+v", room)
	}

	status, body = env.do(t, http.MethodDelete, base, tokens["Bob"], nil)
	expectStatus(t, status, http.StatusForbidden, body)

	status, body = env.do(t, http.MethodDelete, base, tokens["Alice"], nil)
	expectStatus(t, status, http.StatusNoContent, body)

	status, body = env.do(t, http.MethodGet, base, "", nil)
	expectStatus(t, status, http.StatusNotFound, body)
}

func TestOwnerTokenCannotRecreateRoom(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/rooms", "", nil)
	expectStatus(t, status, http.StatusCreated, body)
	created := decode[CreateRoomResponse](t, body)

	status, body = env.do(t, http.MethodPost, "/api/rooms/"+created.RoomID+"/players", created.OwnerToken, JoinRequest{Name: "Alice"})
	expectStatus(t, status, http.StatusCreated, body)

	status, body = env.do(t, http.MethodPost, "/api/rooms/"+created.RoomID+"/players", created.OwnerToken, JoinRequest{Name: "Mallory"})
	expectStatus(t, status, http.StatusConflict, body)
	expectCode(t, body, ito.CodeRoomExists)
}

func TestJoinRequiresExistingRoom(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/rooms/123456/players", "", JoinRequest{Name: "Bob"})
	expectStatus(t, status, http.StatusNotFound, body)
	expectCode(t, body, ito.CodeRoomNotFound)

	status, body = env.do(t, http.MethodPost, "/api/rooms/123456/players", "", map[string]string{})
	expectStatus(t, status, http.StatusBadRequest, body)
	expectCode(t, body, ito.CodeInvalidName)

	status, body = env.do(t, http.MethodGet, "/api/rooms/abc", "", nil)
	expectStatus(t, status, http.StatusBadRequest, body)
	expectCode(t, body, ito.CodeInvalidRoomID)
}

func TestPlayerRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	id, tokens := createAndJoin(t, env, "Alice")

	status, body := env.do(t, http.MethodPost, "/api/rooms/"+id+"/number", "", nil)
	expectStatus(t, status, http.StatusUnauthorized, body)

	status, body = env.do(t, http.MethodPost, "/api/rooms/"+id+"/number", "garbage", nil)
	expectStatus(t, status, http.StatusUnauthorized, body)

	foreign, err := auth.GeneratePlayerToken(env.jwt, "999999", "Alice", true)
	if err != nil {
		t.Fatalf("sign foreign token: %v", err)
	}
	status, body = env.do(t, http.MethodPost, "/api/rooms/"+id+"/number", foreign, nil)
	expectStatus(t, status, http.StatusForbidden, body)

	ownerClaim, err := auth.GenerateOwnerToken(env.jwt, id)
	if err != nil {
		t.Fatalf("sign owner token: %v", err)
	}
	status, body = env.do(t, http.MethodPost, "/api/rooms/"+id+"/number", ownerClaim, nil)
	expectStatus(t, status, http.StatusForbidden, body)

	status, body = env.do(t, http.MethodPost, "/api/rooms/"+id+"/number", tokens["Alice"], nil)
	expectStatus(t, status, http.StatusConflict, body)
	expectCode(t, body, ito.CodeWrongStep)
}

func TestLogOutAndChat(t *testing.T) {
	env := newTestEnv(t)
	id, tokens := createAndJoin(t, env, "Alice", "Bob")
	base := "/api/rooms/" + id

	status, body := env.do(t, http.MethodPost, base+"/chat", tokens["Bob"], ChatRequest{Message: "よろしく"})
	expectStatus(t, status, http.StatusNoContent, body)

	status, body = env.do(t, http.MethodGet, base, "", nil)
	expectStatus(t, status, http.StatusOK, body)
	room := decode[RoomResponse](t, body)
	if len(room.Chat) != 1 || room.Chat[0].Name != "Bob" {
		t.Fatalf("unexpected chat: %+v", room.Chat)
	}

	status, body = env.do(t, http.MethodDelete, base+"/players/me", tokens["Bob"], nil)
	expectStatus(t, status, http.StatusOK, body)
	if decode[LogOutResponse](t, body).RoomDeleted {
		t.Fatalf("room must survive while Alice remains")
	}

	status, body = env.do(t, http.MethodDelete, base+"/players/me", tokens["Alice"], nil)
	expectStatus(t, status, http.StatusOK, body)
	if !decode[LogOutResponse](t, body).RoomDeleted {
		t.Fatalf("last player leaving must delete the room")
	}

	status, body = env.do(t, http.MethodGet, base, "", nil)
	expectStatus(t, status, http.StatusNotFound, body)
}
