package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ito-server/internal/auth"
	"github.com/vovakirdan/ito-server/internal/ito"
)

// RoomHandlers provides HTTP handlers for the game endpoints.
type RoomHandlers struct {
	game *ito.Service
	jwt  *auth.JWTConfig
	log  *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(game *ito.Service, jwtCfg *auth.JWTConfig, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		game: game,
		jwt:  jwtCfg,
		log:  logger,
	}
}

// ErrorResponse represents an error response body. Notice is the fixed
// text shown to players.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Notice string `json:"notice,omitempty"`
}

// CreateRoomResponse carries a fresh room id and the proof of ownership
// needed to register as its owner.
type CreateRoomResponse struct {
	RoomID     string `json:"room_id"`
	OwnerToken string `json:"owner_token"`
}

// RoomResponse is a room snapshot. Answer is filled once the answer is shown.
type RoomResponse struct {
	RoomID string `json:"room_id"`
	ito.Room
	Answer *ito.Answer `json:"answer,omitempty"`
}

// JoinRequest registers a display name.
type JoinRequest struct {
	Name string `json:"name" binding:"required,min=1,max=32"`
}

// JoinResponse identifies the joined player.
type JoinResponse struct {
	Token string           `json:"token"`
	Name  string           `json:"name"`
	Num   int              `json:"num"`
	Step  ito.UserGameStep `json:"step"`
	Owner bool             `json:"owner"`
}

// AdvanceRequest names the step the owner is advancing from.
type AdvanceRequest struct {
	From *int `json:"from" binding:"required"`
}

// StepResponse reports the room step after an advance.
type StepResponse struct {
	Step ito.GameStep `json:"step"`
}

// NumberResponse reveals the caller's own number.
type NumberResponse struct {
	Num int `json:"num"`
}

// WordRequest carries the word chosen for the caller's number.
type WordRequest struct {
	Word string `json:"word" binding:"required"`
}

// GuessRequest carries the caller's predicted position.
type GuessRequest struct {
	Prenum int `json:"prenum" binding:"required"`
}

// ChatRequest carries one chat line.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// LogOutResponse reports whether the room went away with the caller.
type LogOutResponse struct {
	RoomDeleted bool `json:"room_deleted"`
}

// CreateRoom allocates a room id.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	id, err := h.game.CreateRoom(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := auth.GenerateOwnerToken(h.jwt, id)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to sign owner token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: ito.CodeInternal})
		return
	}

	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: id, OwnerToken: token})
}

// GetRoom returns the room snapshot.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")
	room, err := h.game.Room(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := RoomResponse{RoomID: id, Room: room}
	if room.Step == ito.StepShowAnswer {
		answer := ito.BuildAnswer(room)
		resp.Answer = &answer
	}
	c.JSON(http.StatusOK, resp)
}

// JoinName registers a player. A valid owner token for the room makes the
// caller its owner and creates the room record.
// POST /api/rooms/:id/players
func (h *RoomHandlers) JoinName(c *gin.Context) {
	id := c.Param("id")

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid join request")
		h.writeError(c, ito.ErrInvalidName)
		return
	}

	asOwner := false
	if token, ok := bearerToken(c); ok {
		claims, err := auth.ValidateForRoom(h.jwt, token, id)
		if err != nil {
			h.log.Debug().Err(err).Str("room_id", id).Msg("rejected owner token")
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid owner token", Code: "forbidden"})
			return
		}
		asOwner = claims.Owner && !claims.IsPlayer()
	}

	rec, err := h.game.JoinName(c.Request.Context(), id, req.Name, asOwner)
	if err != nil {
		h.writeError(c, err)
		return
	}

	name, _ := ito.NormalizeName(req.Name)
	token, err := auth.GeneratePlayerToken(h.jwt, id, name, asOwner)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to sign player token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: ito.CodeInternal})
		return
	}

	c.JSON(http.StatusCreated, JoinResponse{
		Token: token,
		Name:  name,
		Num:   rec.Num,
		Step:  rec.Step,
		Owner: asOwner,
	})
}

// Advance moves the room to its next step.
// POST /api/rooms/:id/step
func (h *RoomHandlers) Advance(c *gin.Context) {
	claims := claimsFrom(c)
	if !claims.Owner {
		h.writeError(c, ito.ErrNotOwner)
		return
	}

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || !ito.GameStep(*req.From).Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "bad_request"})
		return
	}

	step, err := h.game.Advance(c.Request.Context(), c.Param("id"), claims.Name, ito.GameStep(*req.From))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, StepResponse{Step: step})
}

// SeeNumber opens the caller's number.
// POST /api/rooms/:id/number
func (h *RoomHandlers) SeeNumber(c *gin.Context) {
	claims := claimsFrom(c)
	num, err := h.game.SeeNumber(c.Request.Context(), c.Param("id"), claims.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NumberResponse{Num: num})
}

// SendWord stores the caller's word.
// POST /api/rooms/:id/word
func (h *RoomHandlers) SendWord(c *gin.Context) {
	var req WordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, ito.ErrEmptyWord)
		return
	}
	if err := h.game.SendWord(c.Request.Context(), c.Param("id"), claimsFrom(c).Name, req.Word); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitGuess stores the caller's predicted position.
// POST /api/rooms/:id/guess
func (h *RoomHandlers) SubmitGuess(c *gin.Context) {
	var req GuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, ito.ErrInvalidGuess)
		return
	}
	if err := h.game.SubmitGuess(c.Request.Context(), c.Param("id"), claimsFrom(c).Name, req.Prenum); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Chat appends a chat line.
// POST /api/rooms/:id/chat
func (h *RoomHandlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, ito.ErrEmptyMessage)
		return
	}
	if err := h.game.Chat(c.Request.Context(), c.Param("id"), claimsFrom(c).Name, req.Message); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogOut removes the caller from the room.
// DELETE /api/rooms/:id/players/me
func (h *RoomHandlers) LogOut(c *gin.Context) {
	deleted, err := h.game.LogOut(c.Request.Context(), c.Param("id"), claimsFrom(c).Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, LogOutResponse{RoomDeleted: deleted})
}

// QuitGame closes the room after the answer.
// DELETE /api/rooms/:id
func (h *RoomHandlers) QuitGame(c *gin.Context) {
	claims := claimsFrom(c)
	if !claims.Owner {
		h.writeError(c, ito.ErrNotOwner)
		return
	}
	if err := h.game.QuitGame(c.Request.Context(), c.Param("id"), claims.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: ito.CodeInternal, Notice: ito.Notice(err)})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: ito.Code(err), Notice: ito.Notice(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ito.ErrRoomNotFound), errors.Is(err, ito.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ito.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ito.ErrNameTaken),
		errors.Is(err, ito.ErrRoomExists),
		errors.Is(err, ito.ErrRoomFull),
		errors.Is(err, ito.ErrWrongStep),
		errors.Is(err, ito.ErrStaleStep),
		errors.Is(err, ito.ErrGuardNotMet):
		return http.StatusConflict
	case errors.Is(err, ito.ErrInvalidRoomID),
		errors.Is(err, ito.ErrInvalidName),
		errors.Is(err, ito.ErrEmptyWord),
		errors.Is(err, ito.ErrWordTooLong),
		errors.Is(err, ito.ErrInvalidGuess),
		errors.Is(err, ito.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, ito.ErrRoomIDExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
