package ito

import (
	"regexp"
	"strings"

	"github.com/vovakirdan/ito-server/internal/store"
)

const (
	// MinNumber and MaxNumber bound the secret number dealt to each player.
	MinNumber = 1
	MaxNumber = 100

	// MaxWordLength caps a word in characters.
	MaxWordLength = 64

	// MaxChatEntries is how many chat lines a room keeps.
	MaxChatEntries = 100
)

var roomIDPattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// ValidateRoomID checks the 6-digit room id format.
func ValidateRoomID(id string) error {
	if !roomIDPattern.MatchString(id) {
		return ErrInvalidRoomID
	}
	return nil
}

// NormalizeName trims a display name and checks that it can be used as a key.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if err := store.ValidateKey(name); err != nil {
		return "", ErrInvalidName
	}
	return name, nil
}

// UsedNumbers collects the numbers dealt to the current roster.
func UsedNumbers(players map[string]PlayerRecord) map[int]struct{} {
	used := make(map[int]struct{}, len(players))
	for _, p := range players {
		used[p.Num] = struct{}{}
	}
	return used
}

// Rand is the random source used to deal room ids and numbers.
type Rand interface {
	IntN(n int) int
}

// DrawNumber deals a number in [MinNumber, MaxNumber] that no current
// player holds, redrawing on collision.
func DrawNumber(rng Rand, players map[string]PlayerRecord) (int, error) {
	used := UsedNumbers(players)
	if len(used) >= MaxNumber-MinNumber+1 {
		return 0, ErrRoomFull
	}
	for {
		n := MinNumber + rng.IntN(MaxNumber-MinNumber+1)
		if _, taken := used[n]; !taken {
			return n, nil
		}
	}
}
