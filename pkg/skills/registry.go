// Package skills holds the static catalog of companion capabilities and
// the level at which each one unlocks. A soul's skill set is strictly a
// function of its level; nothing outside this package ever mutates it.
package skills

// Skill is one entry of the unlock catalog.
type Skill struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	UnlockLevel int    `json:"unlock_level"`
}

// catalog is ordered by UnlockLevel. Order matters: NextUnlock returns
// the first locked entry.
var catalog = []Skill{
	{ID: "small-talk", DisplayName: "Small Talk", Category: "social", UnlockLevel: 1},
	{ID: "storytelling", DisplayName: "Storytelling", Category: "creative", UnlockLevel: 2},
	{ID: "memory-recall", DisplayName: "Memory Recall", Category: "knowledge", UnlockLevel: 3},
	{ID: "jokes", DisplayName: "Jokes & Wordplay", Category: "social", UnlockLevel: 4},
	{ID: "poetry", DisplayName: "Poetry", Category: "creative", UnlockLevel: 6},
	{ID: "roleplay", DisplayName: "Roleplay", Category: "creative", UnlockLevel: 8},
	{ID: "trivia", DisplayName: "Trivia", Category: "knowledge", UnlockLevel: 10},
	{ID: "dream-journal", DisplayName: "Dream Journal", Category: "mystic", UnlockLevel: 12},
	{ID: "philosophy", DisplayName: "Philosophy", Category: "knowledge", UnlockLevel: 15},
	{ID: "worldbuilding", DisplayName: "Worldbuilding", Category: "creative", UnlockLevel: 20},
	{ID: "divination", DisplayName: "Divination", Category: "mystic", UnlockLevel: 30},
}

// All returns the full catalog in unlock order.
func All() []Skill {
	out := make([]Skill, len(catalog))
	copy(out, catalog)
	return out
}

// UnlockedFor returns the skills available at the given level.
func UnlockedFor(level int) []Skill {
	var out []Skill
	for _, s := range catalog {
		if s.UnlockLevel <= level {
			out = append(out, s)
		}
	}
	return out
}

// LockedFor returns the skills not yet available at the given level.
func LockedFor(level int) []Skill {
	var out []Skill
	for _, s := range catalog {
		if s.UnlockLevel > level {
			out = append(out, s)
		}
	}
	return out
}

// NextUnlock returns the first skill still locked at the given level.
func NextUnlock(level int) (Skill, bool) {
	for _, s := range catalog {
		if s.UnlockLevel > level {
			return s, true
		}
	}
	return Skill{}, false
}

// IDsFor returns the unlocked skill IDs for a level. This is the
// canonical value of a soul's skills field.
func IDsFor(level int) []string {
	unlocked := UnlockedFor(level)
	out := make([]string, 0, len(unlocked))
	for _, s := range unlocked {
		out = append(out, s.ID)
	}
	return out
}

// Lookup finds a catalog entry by ID.
func Lookup(id string) (Skill, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}
