package payments

import (
	"strings"
	"time"
)

// AccountState is the cached provider account snapshot persisted on the
// local User record.
type AccountState struct {
	AccountID    string
	Enabled      bool
	OnboardedAt  *time.Time
	Capabilities string
}

// StateFromAccount derives the persisted snapshot from a provider
// account. OnboardedAt is stamped only when onboarding is complete.
func StateFromAccount(account *ConnectedAccount, now time.Time) AccountState {
	state := AccountState{}
	if account == nil {
		return state
	}
	state.AccountID = account.ID
	state.Enabled = account.OnboardingComplete()
	state.Capabilities = strings.Join(account.Capabilities, ",")
	if state.Enabled {
		onboardedAt := now
		state.OnboardedAt = &onboardedAt
	}
	return state
}
