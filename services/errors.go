package services

import (
	"errors"
	"fmt"
)

// State-conflict and validation sentinels. Handlers map these to HTTP codes;
// nothing in the service layer retries them.
var (
	ErrAlreadyEliminated    = errors.New("participant has been eliminated")
	ErrRoundNotOpen         = errors.New("round is not open for picks")
	ErrDuplicatePick        = errors.New("pick already made for this round")
	ErrTeamAlreadyUsed      = errors.New("team already picked in a previous round")
	ErrTeamRequired         = errors.New("a team must be selected")
	ErrTeamNotOffered       = errors.New("team is not playing in this round")
	ErrRecipientUnreachable = errors.New("recipient is marked unreachable")
	ErrJobNotFound          = errors.New("queue job not found")
	ErrInvalidJobStatus     = errors.New("status must be \"sent\" or \"failed\"")
)

// UndecidedFixturesError blocks a round close until every fixture is decided
// or abandoned.
type UndecidedFixturesError struct {
	Count int
}

func (e *UndecidedFixturesError) Error() string {
	return fmt.Sprintf("%d fixtures are still undecided", e.Count)
}
