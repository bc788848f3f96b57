package progression

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rarity is one of four ordered capability bands. The ordering is load
// bearing: tier comparisons drive evolution triggering and the pin rule
// (a stored tier above the level-derived one is never downgraded).
type Rarity int

const (
	Common Rarity = iota
	Rare
	Epic
	Legendary
)

var rarityNames = [...]string{"common", "rare", "epic", "legendary"}

func (r Rarity) String() string {
	if r < Common || r > Legendary {
		return fmt.Sprintf("rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// DisplayName returns the capitalized marketplace-facing name.
func (r Rarity) DisplayName() string {
	name := r.String()
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Valid reports whether r is one of the four defined tiers.
func (r Rarity) Valid() bool {
	return r >= Common && r <= Legendary
}

// ParseRarity converts a stored string into a Rarity.
func ParseRarity(s string) (Rarity, error) {
	for i, name := range rarityNames {
		if strings.EqualFold(s, name) {
			return Rarity(i), nil
		}
	}
	return Common, fmt.Errorf("unknown rarity %q", s)
}

func (r Rarity) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rarity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRarity(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
