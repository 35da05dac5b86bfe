package ito

// Next returns the phase that follows s. showAnswer has no successor:
// the room is deleted instead.
func Next(s GameStep) (GameStep, bool) {
	switch s {
	case StepWaiting:
		return StepOpenNumber, true
	case StepOpenNumber:
		return StepChoiceWord, true
	case StepChoiceWord:
		return StepPredictOrder, true
	case StepPredictOrder:
		return StepShowAnswer, true
	case StepShowAnswer:
		return s, false
	default:
		return s, false
	}
}

// OpenNumberAll reports whether every player has opened their number.
// An empty roster satisfies it.
func OpenNumberAll(players map[string]PlayerRecord) bool {
	return allAt(players, UserOpenedNumber)
}

// SendWordAll reports whether every player has sent a word.
// An empty roster satisfies it.
func SendWordAll(players map[string]PlayerRecord) bool {
	return allAt(players, UserChoicedWord)
}

func allAt(players map[string]PlayerRecord, target UserGameStep) bool {
	for _, p := range players {
		if p.Step != target {
			return false
		}
	}
	return true
}

// CheckGuard returns nil when the room may leave its current phase.
func CheckGuard(room Room) error {
	switch room.Step {
	case StepWaiting:
		if len(room.Players) == 0 {
			return ErrGuardNotMet
		}
		return nil
	case StepOpenNumber:
		if !OpenNumberAll(room.Players) {
			return ErrGuardNotMet
		}
		return nil
	case StepChoiceWord:
		if !SendWordAll(room.Players) {
			return ErrGuardNotMet
		}
		return nil
	case StepPredictOrder:
		return nil
	case StepShowAnswer:
		return ErrWrongStep
	default:
		return ErrWrongStep
	}
}

// IsOwner reports whether name owns room and is still seated in it.
func IsOwner(room Room, name string) bool {
	_, seated := room.Players[name]
	return seated && room.Owner == name
}

// Transition validates and applies one owner-triggered advance from the
// step the actor observed. It returns the new step.
func Transition(room *Room, actor string, from GameStep) (GameStep, error) {
	if !IsOwner(*room, actor) {
		return room.Step, ErrNotOwner
	}
	if room.Step != from {
		return room.Step, ErrStaleStep
	}
	next, ok := Next(from)
	if !ok {
		return room.Step, ErrWrongStep
	}
	if err := CheckGuard(*room); err != nil {
		return room.Step, err
	}
	room.Step = next
	return next, nil
}
