package services

import (
	"github.com/gosimple/slug"

	"github.com/sevy71/lms-automation/models"
)

// Decision is which side a completed fixture went to.
type Decision string

const (
	DecisionHome      Decision = "HOME"
	DecisionAway      Decision = "AWAY"
	DecisionDraw      Decision = "DRAW"
	DecisionUndecided Decision = "UNDECIDED"
)

// Outcome is what a decision means for a single pick.
type Outcome string

const (
	OutcomeWin     Outcome = "WIN"
	OutcomeLose    Outcome = "LOSE"
	OutcomePending Outcome = "PENDING"
)

// Fixture statuses counted as final. Covers our internal "completed" plus the
// football-data short codes (full time, extra time, penalties).
var finalStatuses = map[string]bool{
	"completed": true,
	"FT":        true,
	"AET":       true,
	"PEN":       true,
}

// Statuses for matches that will never finish. A round may close over these.
var abandonedStatuses = map[string]bool{
	"PST":       true,
	"P":         true,
	"postponed": true,
	"cancelled": true,
}

// NormalizeTeam reduces a team name to a stable comparison key, insensitive
// to case, surrounding whitespace and diacritics ("Man City " == "man city").
func NormalizeTeam(name string) string {
	return slug.Make(name)
}

// FixtureAbandoned reports whether the fixture carries a recognized
// postponed/cancelled status.
func FixtureAbandoned(f *models.Fixture) bool {
	return f != nil && abandonedStatuses[f.Status]
}

// Decide maps a fixture to HOME/AWAY/DRAW, or UNDECIDED unless the status is
// final and both scores are present.
func Decide(f *models.Fixture) Decision {
	if f == nil || !finalStatuses[f.Status] {
		return DecisionUndecided
	}
	if f.HomeScore == nil || f.AwayScore == nil {
		return DecisionUndecided
	}
	switch {
	case *f.HomeScore > *f.AwayScore:
		return DecisionHome
	case *f.AwayScore > *f.HomeScore:
		return DecisionAway
	default:
		return DecisionDraw
	}
}

// Judge applies the classic must-win rule to one pick: a draw eliminates just
// like a loss. Pure; safe to call repeatedly.
func Judge(teamPicked string, f *models.Fixture) Outcome {
	result := Decide(f)
	if result == DecisionUndecided {
		return OutcomePending
	}
	team := NormalizeTeam(teamPicked)
	if result == DecisionHome && team == NormalizeTeam(f.HomeTeam) {
		return OutcomeWin
	}
	if result == DecisionAway && team == NormalizeTeam(f.AwayTeam) {
		return OutcomeWin
	}
	return OutcomeLose
}
