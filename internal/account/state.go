package account

import "hotride/internal/models"

// State is derived from the account record, never stored. The main path is
// RegisteredUnverified -> EmailVerified -> ProfileComplete; phone
// verification is a side branch that does not gate it.
type State int

const (
	StateRegisteredUnverified State = iota
	StateEmailVerified
	StateProfileComplete
)

func (s State) String() string {
	switch s {
	case StateRegisteredUnverified:
		return "registered-unverified"
	case StateEmailVerified:
		return "email-verified"
	case StateProfileComplete:
		return "profile-complete"
	default:
		return "unknown"
	}
}

func StateOf(a *models.Account) State {
	switch {
	case a.ProfileCompleted:
		return StateProfileComplete
	case a.EmailVerified:
		return StateEmailVerified
	default:
		return StateRegisteredUnverified
	}
}

// SessionEligible reports whether the account may receive a session token.
// Provider accounts are vouched for at creation; password accounts must
// redeem their email code first.
func SessionEligible(a *models.Account) bool {
	if a.Provider != models.ProviderEmail {
		return true
	}
	return StateOf(a) >= StateEmailVerified
}
