package models

import "time"

// Participant statuses
const (
	ParticipantActive     = "active"
	ParticipantEliminated = "eliminated"
)

// Participant is a pool entrant. Status moves to eliminated only through
// round processing; an admin reset moves it back. Unreachable is owned by
// the delivery circuit breaker and cleared manually.
type Participant struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	Name           string `json:"name" gorm:"size:80;not null;uniqueIndex"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty" gorm:"size:20"`
	Status         string `json:"status" gorm:"size:20;not null;default:'active'"`
	Unreachable    bool   `json:"unreachable" gorm:"not null;default:false"`

	// Rolling count of consecutive failed deliveries, maintained in the same
	// transaction as each queue report. Reset to zero on a successful send
	// or an admin clear.
	ConsecutiveFailures int `json:"consecutive_failures" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Picks []Pick `json:"picks,omitempty" gorm:"foreignKey:ParticipantID"`
}
