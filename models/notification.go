package models

import "time"

// NotificationJob statuses. pending -> in_progress -> {sent | failed}.
// Terminal jobs are never retried by the queue itself; a retry is a fresh
// enqueue decided by the caller. Jobs are never deleted (audit trail).
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobSent       = "sent"
	JobFailed     = "failed"
)

// NotificationJob is one queued outbound message awaiting pickup by the
// external delivery agent.
type NotificationJob struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	ParticipantID *uint   `json:"participant_id,omitempty" gorm:"index"`
	Destination   string  `json:"destination" gorm:"type:text;not null"`
	Payload       string  `json:"payload" gorm:"type:text;not null"`
	Status        string  `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Attempts      int     `json:"attempts" gorm:"not null;default:0"`
	LastError     *string `json:"last_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Participant *Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`
}
