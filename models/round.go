package models

import "time"

// Round statuses. Closing a round is terminal; there is no reopen.
const (
	RoundOpen      = "open"
	RoundCompleted = "completed"
)

// Round is one judging cycle of the pool. RoundNumber is a single global
// counter, unique and monotonic by creation.
type Round struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RoundNumber int       `json:"round_number" gorm:"not null;uniqueIndex"`
	Status      string    `json:"status" gorm:"size:20;not null;default:'open'"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Fixtures []Fixture `json:"fixtures,omitempty" gorm:"foreignKey:RoundID"`
	Picks    []Pick    `json:"picks,omitempty" gorm:"foreignKey:RoundID"`
}
