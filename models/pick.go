package models

import "time"

// Pick is a participant's team selection for a round. The two composite
// unique indexes are load-bearing: they make a duplicate submission and a
// repeated team fail atomically at the database rather than racing a
// read-then-write check.
//
// TeamKey holds the normalized form of TeamPicked (see services.NormalizeTeam)
// so the no-repeat-ever rule is enforced per participant across all rounds.
type Pick struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ParticipantID uint   `json:"participant_id" gorm:"not null;uniqueIndex:idx_picks_participant_round;uniqueIndex:idx_picks_participant_team"`
	RoundID       uint   `json:"round_id" gorm:"not null;uniqueIndex:idx_picks_participant_round"`
	TeamPicked    string `json:"team_picked" gorm:"size:100;not null"`
	TeamKey       string `json:"-" gorm:"size:100;not null;uniqueIndex:idx_picks_participant_team"`

	// IsWinner stays nil until the round is processed, then is written
	// exactly once. nil = undecided / pending.
	IsWinner *bool `json:"is_winner"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Participant Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`
	Round       Round       `json:"round,omitempty" gorm:"foreignKey:RoundID"`
}
