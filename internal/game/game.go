// Package game holds the domain types shared by the listening-quiz packages:
// difficulties, languages, assets and the persisted per-user records.
package game

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is a CEFR-style level. Levels are ordered from easiest to hardest.
type Difficulty string

const (
	A1   Difficulty = "A1"
	A2   Difficulty = "A2"
	B1   Difficulty = "B1"
	B2   Difficulty = "B2"
	C1C2 Difficulty = "C1-C2"
)

// Difficulties lists every level in ascending order.
var Difficulties = []Difficulty{A1, A2, B1, B2, C1C2}

// ParseDifficulty accepts a level name case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	up := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	for _, d := range Difficulties {
		if d == up {
			return d, nil
		}
	}
	return "", fmt.Errorf("game: unknown difficulty %q; valid values: A1, A2, B1, B2, C1-C2", s)
}

// Rank returns the position of d in [Difficulties], or -1.
func (d Difficulty) Rank() int {
	for i, v := range Difficulties {
		if v == d {
			return i
		}
	}
	return -1
}

// Language is the language a clip is spoken in.
type Language string

const (
	French  Language = "fr"
	English Language = "en"
)

// Languages lists the supported languages.
var Languages = []Language{French, English}

// ParseLanguage accepts a language code or its English name.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fr", "french", "français", "francais":
		return French, nil
	case "en", "english":
		return English, nil
	}
	return "", fmt.Errorf("game: unknown language %q; valid values: fr, en", s)
}

// Name returns the English name of the language.
func (l Language) Name() string {
	switch l {
	case French:
		return "French"
	case English:
		return "English"
	}
	return string(l)
}

// Asset is one playable clip bundle. ID is the bundle's folder name and is
// unique within a language and difficulty.
type Asset struct {
	ID         string
	Language   Language
	Difficulty Difficulty

	// Dir is the bundle directory relative to the content root.
	Dir string
}

// CooldownRecord is the last time a user was served an asset.
type CooldownRecord struct {
	UserID     string
	AssetID    string
	Language   Language
	Difficulty Difficulty
	PlayedAt   time.Time
}

// Profile is a player's persisted wallet.
type Profile struct {
	UserID         string
	Money          int
	GamesPlayed    int
	LastTimePlayed time.Time
}

// RoundTally counts a player's won and lost rounds across all sessions.
type RoundTally struct {
	UserID string
	Wins   int
	Losses int
}
