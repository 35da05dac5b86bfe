package ito

import "errors"

var (
	ErrInvalidRoomID   = errors.New("invalid room id")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExists      = errors.New("room already exists")
	ErrRoomIDExhausted = errors.New("no free room id found")
	ErrInvalidName     = errors.New("invalid player name")
	ErrNameTaken       = errors.New("name already taken")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrRoomFull        = errors.New("no free number left in room")
	ErrNotOwner        = errors.New("only the room owner may do this")
	ErrWrongStep       = errors.New("action not allowed in current step")
	ErrStaleStep       = errors.New("room step has already changed")
	ErrGuardNotMet     = errors.New("not every player is ready")
	ErrEmptyWord       = errors.New("word is empty")
	ErrWordTooLong     = errors.New("word is too long")
	ErrInvalidGuess    = errors.New("guess out of range")
	ErrEmptyMessage    = errors.New("message is empty")
)

// Error codes exposed on the wire.
const (
	CodeInvalidRoomID   = "invalid_room_id"
	CodeRoomNotFound    = "room_not_found"
	CodeRoomExists      = "room_exists"
	CodeRoomIDExhausted = "room_id_exhausted"
	CodeInvalidName     = "invalid_name"
	CodeNameTaken       = "name_taken"
	CodePlayerNotFound  = "player_not_found"
	CodeRoomFull        = "room_full"
	CodeNotOwner        = "not_owner"
	CodeWrongStep       = "wrong_step"
	CodeStaleStep       = "stale_step"
	CodeGuardNotMet     = "guard_not_met"
	CodeEmptyWord       = "empty_word"
	CodeWordTooLong     = "word_too_long"
	CodeInvalidGuess    = "invalid_guess"
	CodeEmptyMessage    = "empty_message"
	CodeInternal        = "internal"
)

type errorInfo struct {
	code   string
	notice string
}

var errorTable = []struct {
	err  error
	info errorInfo
}{
	{ErrInvalidRoomID, errorInfo{CodeInvalidRoomID, "ルームIDは6桁の数字で入力してください"}},
	{ErrRoomNotFound, errorInfo{CodeRoomNotFound, "ルームが存在しません"}},
	{ErrRoomExists, errorInfo{CodeRoomExists, "このルームはすでに作成されています"}},
	{ErrRoomIDExhausted, errorInfo{CodeRoomIDExhausted, "ルームを作成できませんでした。もう一度お試しください"}},
	{ErrInvalidName, errorInfo{CodeInvalidName, "名前を入力してください(記号 / . # $ [ ] は使えません)"}},
	{ErrNameTaken, errorInfo{CodeNameTaken, "その名前はすでに使われています"}},
	{ErrPlayerNotFound, errorInfo{CodePlayerNotFound, "プレイヤーが見つかりません"}},
	{ErrRoomFull, errorInfo{CodeRoomFull, "このルームは満員です"}},
	{ErrNotOwner, errorInfo{CodeNotOwner, "ルームの作成者のみ操作できます"}},
	{ErrWrongStep, errorInfo{CodeWrongStep, "今はその操作はできません"}},
	{ErrStaleStep, errorInfo{CodeStaleStep, "ゲームはすでに進んでいます"}},
	{ErrGuardNotMet, errorInfo{CodeGuardNotMet, "まだ全員の準備ができていません"}},
	{ErrEmptyWord, errorInfo{CodeEmptyWord, "言葉を入力してください"}},
	{ErrWordTooLong, errorInfo{CodeWordTooLong, "言葉は64文字以内で入力してください"}},
	{ErrInvalidGuess, errorInfo{CodeInvalidGuess, "予想した順番が正しくありません"}},
	{ErrEmptyMessage, errorInfo{CodeEmptyMessage, "メッセージを入力してください"}},
}

func lookup(err error) (errorInfo, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.info, true
		}
	}
	return errorInfo{}, false
}

// Code returns the stable wire code for err, or CodeInternal.
func Code(err error) string {
	if info, ok := lookup(err); ok {
		return info.code
	}
	return CodeInternal
}

// Notice returns the fixed user-facing text for err.
func Notice(err error) string {
	if info, ok := lookup(err); ok {
		return info.notice
	}
	return "エラーが発生しました"
}

// IsDomainError reports whether err is one of the game's sentinel errors.
func IsDomainError(err error) bool {
	_, ok := lookup(err)
	return ok
}

// FromCode returns the sentinel error for a wire code, or nil.
func FromCode(code string) error {
	for _, e := range errorTable {
		if e.info.code == code {
			return e.err
		}
	}
	return nil
}
