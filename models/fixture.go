package models

import "time"

// Fixture is a single match. EventID comes from the football-data API, or is
// synthesized ("manual-<uuid>") for manually entered matches. A fixture may
// exist before being assigned to a round (RoundID nil).
type Fixture struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RoundID   *uint     `json:"round_id,omitempty" gorm:"index"`
	EventID   string    `json:"event_id" gorm:"size:50;not null;uniqueIndex"`
	HomeTeam  string    `json:"home_team" gorm:"size:100;not null"`
	AwayTeam  string    `json:"away_team" gorm:"size:100;not null"`
	KickoffAt time.Time `json:"kickoff_at"`
	HomeScore *int      `json:"home_score,omitempty"`
	AwayScore *int      `json:"away_score,omitempty"`
	// Either our internal "completed"/"scheduled", or an API short code
	// such as FT, AET, PEN, PST.
	Status    string    `json:"status" gorm:"size:20;not null;default:'scheduled'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
