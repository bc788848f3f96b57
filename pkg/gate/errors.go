package gate

import (
	"errors"
	"fmt"

	"github.com/soulmint/soulmint/pkg/progression"
)

// ErrListed rejects chat for a soul whose token sits on the marketplace.
// Listings freeze the companion until the token is delisted or sold.
var ErrListed = errors.New("soul is listed on the marketplace; chat is frozen")

// LanguageLockedError rejects a chat turn in a language the soul has not
// unlocked. It names the requirement so the caller can show the player
// what to aim for.
type LanguageLockedError struct {
	Code           string
	DisplayName    string
	RequiredLevel  int
	RequiredRarity progression.Rarity
}

func (e *LanguageLockedError) Error() string {
	name := e.DisplayName
	if name == "" {
		name = e.Code
	}
	return fmt.Sprintf("%s unlocks at level %d (%s tier)",
		name, e.RequiredLevel, e.RequiredRarity.DisplayName())
}

// IsPolicyRejection reports whether err is an expected user-facing
// rejection (listing conflict or language lock) rather than a failure.
func IsPolicyRejection(err error) bool {
	var lle *LanguageLockedError
	return errors.Is(err, ErrListed) || errors.As(err, &lle)
}
