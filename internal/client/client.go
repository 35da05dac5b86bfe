// Package client talks to an ito server over its REST and WebSocket surfaces.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vovakirdan/ito-server/internal/ito"
)

// APIError is a non-2xx response from the server. It unwraps to the
// matching ito sentinel when the server sent a known code.
type APIError struct {
	Status  int
	Code    string
	Message string
	Notice  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ito api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ito api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ito.FromCode(e.Code)
}

// NoticeOf returns the player-facing text carried by err, if any.
func NoticeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Notice != "" {
		return apiErr.Notice
	}
	return ito.Notice(err)
}

// Created is the result of allocating a room.
type Created struct {
	RoomID     string `json:"room_id"`
	OwnerToken string `json:"owner_token"`
}

// Joined identifies a registered player.
type Joined struct {
	Token string           `json:"token"`
	Name  string           `json:"name"`
	Num   int              `json:"num"`
	Step  ito.UserGameStep `json:"step"`
	Owner bool             `json:"owner"`
}

// RoomView is a room snapshot as served by GET /api/rooms/:id.
type RoomView struct {
	RoomID string `json:"room_id"`
	ito.Room
	Answer *ito.Answer `json:"answer,omitempty"`
}

// Client is a thin REST client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateRoom allocates a fresh room id.
func (c *Client) CreateRoom(ctx context.Context) (Created, error) {
	var out Created
	err := c.do(ctx, http.MethodPost, "/api/rooms", "", nil, &out)
	return out, err
}

// Room fetches the current room snapshot.
func (c *Client) Room(ctx context.Context, roomID string) (RoomView, error) {
	var out RoomView
	err := c.do(ctx, http.MethodGet, roomPath(roomID), "", nil, &out)
	return out, err
}

// RoomExists reports whether roomID currently exists.
func (c *Client) RoomExists(ctx context.Context, roomID string) (bool, error) {
	_, err := c.Room(ctx, roomID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ito.ErrRoomNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Join registers name in roomID. ownerToken is the token returned by
// CreateRoom, or empty for a regular player.
func (c *Client) Join(ctx context.Context, roomID, name, ownerToken string) (Joined, error) {
	var out Joined
	err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/players", ownerToken, map[string]string{"name": name}, &out)
	return out, err
}

// Advance moves the room past from. Only the owner may call it.
func (c *Client) Advance(ctx context.Context, roomID, token string, from ito.GameStep) (ito.GameStep, error) {
	var out struct {
		Step ito.GameStep `json:"step"`
	}
	err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/step", token, map[string]int{"from": int(from)}, &out)
	return out.Step, err
}

// SeeNumber reveals the caller's own number.
func (c *Client) SeeNumber(ctx context.Context, roomID, token string) (int, error) {
	var out struct {
		Num int `json:"num"`
	}
	err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/number", token, nil, &out)
	return out.Num, err
}

// SendWord submits the word for the caller's number.
func (c *Client) SendWord(ctx context.Context, roomID, token, word string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID)+"/word", token, map[string]string{"word": word}, nil)
}

// SubmitGuess records the caller's predicted position.
func (c *Client) SubmitGuess(ctx context.Context, roomID, token string, prenum int) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID)+"/guess", token, map[string]int{"prenum": prenum}, nil)
}

// Chat posts a chat line.
func (c *Client) Chat(ctx context.Context, roomID, token, message string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID)+"/chat", token, map[string]string{"message": message}, nil)
}

// LogOut leaves the room and reports whether it was deleted.
func (c *Client) LogOut(ctx context.Context, roomID, token string) (bool, error) {
	var out struct {
		RoomDeleted bool `json:"room_deleted"`
	}
	err := c.do(ctx, http.MethodDelete, roomPath(roomID)+"/players/me", token, nil, &out)
	return out.RoomDeleted, err
}

// QuitGame deletes the room after the answer was shown.
func (c *Client) QuitGame(ctx context.Context, roomID, token string) error {
	return c.do(ctx, http.MethodDelete, roomPath(roomID), token, nil, nil)
}

func roomPath(roomID string) string {
	return "/api/rooms/" + roomID
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Error  string `json:"error"`
			Code   string `json:"code"`
			Notice string `json:"notice"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Code = body.Code
			apiErr.Notice = body.Notice
			if body.Error != "" {
				apiErr.Message = body.Error
			}
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
