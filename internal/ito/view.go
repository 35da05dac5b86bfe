package ito

import "sort"

// Action is something a viewer may do in the current state.
type Action string

const (
	ActionStart  Action = "start"
	ActionSee    Action = "see"
	ActionNext   Action = "next"
	ActionWord   Action = "word"
	ActionGuess  Action = "guess"
	ActionReveal Action = "reveal"
	ActionQuit   Action = "quit"
	ActionLogOut Action = "logout"
	ActionChat   Action = "chat"
	ActionWait   Action = "wait"
)

// Actions lists what viewer may do in room. Owner-only advances appear
// only while their guard holds; player actions only while the viewer's own
// step allows them.
func Actions(room Room, viewer string) []Action {
	rec, joined := room.Players[viewer]
	if !joined {
		return nil
	}
	isOwner := IsOwner(room, viewer)

	var actions []Action
	switch room.Step {
	case StepWaiting:
		if isOwner && CheckGuard(room) == nil {
			actions = append(actions, ActionStart)
		}
	case StepOpenNumber:
		if rec.Step < UserOpenedNumber {
			actions = append(actions, ActionSee)
		}
		if isOwner && OpenNumberAll(room.Players) {
			actions = append(actions, ActionNext)
		}
	case StepChoiceWord:
		if rec.Step < UserChoicedWord {
			actions = append(actions, ActionWord)
		}
		if isOwner && SendWordAll(room.Players) {
			actions = append(actions, ActionNext)
		}
	case StepPredictOrder:
		actions = append(actions, ActionGuess)
		if isOwner {
			actions = append(actions, ActionReveal)
		}
	case StepShowAnswer:
		if isOwner {
			actions = append(actions, ActionQuit)
		}
	}

	if len(actions) == 0 {
		actions = append(actions, ActionWait)
	}
	return append(actions, ActionChat, ActionLogOut)
}

// AnswerRow is one line of the final answer.
type AnswerRow struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Num    int    `json:"num"`
	Word   string `json:"word,omitempty"`
	Prenum int    `json:"prenum,omitempty"`
}

// Answer is the showAnswer view: the predicted order and the real one.
type Answer struct {
	ByPrenum []AnswerRow `json:"by_prenum"`
	ByNum    []AnswerRow `json:"by_num"`
}

// BuildAnswer sorts the roster by prenum and by num, both descending.
// Ranks are 1-based positions in each list; ties break by name.
func BuildAnswer(room Room) Answer {
	rows := make([]AnswerRow, 0, len(room.Players))
	for name, p := range room.Players {
		rows = append(rows, AnswerRow{Name: name, Num: p.Num, Word: p.Word, Prenum: p.Prenum})
	}

	byPrenum := append([]AnswerRow(nil), rows...)
	sort.SliceStable(byPrenum, func(i, j int) bool {
		if byPrenum[i].Prenum != byPrenum[j].Prenum {
			return byPrenum[i].Prenum > byPrenum[j].Prenum
		}
		return byPrenum[i].Name < byPrenum[j].Name
	})

	byNum := append([]AnswerRow(nil), rows...)
	sort.SliceStable(byNum, func(i, j int) bool {
		if byNum[i].Num != byNum[j].Num {
			return byNum[i].Num > byNum[j].Num
		}
		return byNum[i].Name < byNum[j].Name
	})

	for i := range byPrenum {
		byPrenum[i].Rank = i + 1
	}
	for i := range byNum {
		byNum[i].Rank = i + 1
	}
	return Answer{ByPrenum: byPrenum, ByNum: byNum}
}

// RevealSet is the per-row reveal toggle of the answer list. It is local
// view state and never stored.
type RevealSet map[int]bool

// Toggle flips row i and returns its new state.
func (r RevealSet) Toggle(i int) bool {
	r[i] = !r[i]
	return r[i]
}

// Revealed reports whether row i is shown in full.
func (r RevealSet) Revealed(i int) bool {
	return r[i]
}
