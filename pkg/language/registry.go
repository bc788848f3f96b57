// Package language holds the ordered catalog of natural languages a soul
// can speak and the heuristic classifier used by the chat gate. Unlocks
// are a pure function of level; classification is best-effort and
// advisory only.
package language

import "github.com/soulmint/soulmint/pkg/progression"

// Language is one entry of the unlock catalog.
type Language struct {
	Code        string             `json:"code"`
	DisplayName string             `json:"display_name"`
	UnlockLevel int                `json:"unlock_level"`
	Rarity      progression.Rarity `json:"rarity"`
}

// catalog is ordered by UnlockLevel. The Rarity column mirrors the band
// the unlock level falls into and is what rejection messages name.
var catalog = []Language{
	{Code: "en", DisplayName: "English", UnlockLevel: 1, Rarity: progression.Common},
	{Code: "es", DisplayName: "Spanish", UnlockLevel: 4, Rarity: progression.Common},
	{Code: "id", DisplayName: "Indonesian", UnlockLevel: 6, Rarity: progression.Rare},
	{Code: "fr", DisplayName: "French", UnlockLevel: 8, Rarity: progression.Rare},
	{Code: "ja", DisplayName: "Japanese", UnlockLevel: 10, Rarity: progression.Rare},
	{Code: "zh", DisplayName: "Chinese", UnlockLevel: 15, Rarity: progression.Epic},
	{Code: "ko", DisplayName: "Korean", UnlockLevel: 20, Rarity: progression.Epic},
	{Code: "ar", DisplayName: "Arabic", UnlockLevel: 30, Rarity: progression.Legendary},
}

// All returns the full catalog in unlock order.
func All() []Language {
	out := make([]Language, len(catalog))
	copy(out, catalog)
	return out
}

// UnlockedFor returns the languages available at the given level.
func UnlockedFor(level int) []Language {
	var out []Language
	for _, l := range catalog {
		if l.UnlockLevel <= level {
			out = append(out, l)
		}
	}
	return out
}

// LockedFor returns the languages not yet available at the given level.
func LockedFor(level int) []Language {
	var out []Language
	for _, l := range catalog {
		if l.UnlockLevel > level {
			out = append(out, l)
		}
	}
	return out
}

// CodesFor returns the unlocked language codes for a level. This is the
// canonical value of a soul's unlocked-languages field.
func CodesFor(level int) []string {
	unlocked := UnlockedFor(level)
	out := make([]string, 0, len(unlocked))
	for _, l := range unlocked {
		out = append(out, l.Code)
	}
	return out
}

// IsUnlocked reports whether the language is available at the level.
// Unknown codes are never unlocked.
func IsUnlocked(code string, level int) bool {
	for _, l := range catalog {
		if l.Code == code {
			return l.UnlockLevel <= level
		}
	}
	return false
}

// NextUnlock returns the first language still locked at the given level.
func NextUnlock(level int) (Language, bool) {
	for _, l := range catalog {
		if l.UnlockLevel > level {
			return l, true
		}
	}
	return Language{}, false
}

// Lookup finds a catalog entry by code.
func Lookup(code string) (Language, bool) {
	for _, l := range catalog {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}
