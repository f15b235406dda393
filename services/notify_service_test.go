package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/models"
	"github.com/sevy71/lms-automation/token"
)

func newNotify(db *gorm.DB) (*NotifyService, *token.Codec) {
	queue := NewQueueService(db, 5, 10)
	codec := token.New("test-secret", token.PurposePickLink)
	return NewNotifyService(db, queue, codec, "https://lms.example.com"), codec
}

func TestSendPickLinksQueuesActiveParticipants(t *testing.T) {
	db := testDB(t)
	svc, codec := newNotify(db)

	alice := newParticipant(t, db, "Alice", "+44 7000 000001")
	bob := newParticipant(t, db, "Bob", "447000000002")
	require.NoError(t, db.Model(bob).Update("status", models.ParticipantEliminated).Error)
	carol := newParticipant(t, db, "Carol", "447000000003")
	require.NoError(t, db.Model(carol).Update("unreachable", true).Error)
	newParticipant(t, db, "Dave", "") // no number

	r := newRound(t, db, 1, models.RoundOpen)

	summary, err := svc.SendPickLinks(r.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Queued)
	require.Equal(t, 2, summary.Skipped) // Carol unreachable, Dave no number

	var jobs []models.NotificationJob
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	job := jobs[0]
	require.Equal(t, alice.ID, *job.ParticipantID)
	require.Equal(t, "447000000001", job.Destination)
	require.Contains(t, job.Payload, "Alice")
	require.Contains(t, job.Payload, "Round 1")

	// The embedded link carries a token that decodes back to (Alice, round).
	idx := strings.Index(job.Payload, "https://lms.example.com/l/")
	require.GreaterOrEqual(t, idx, 0)
	link := job.Payload[idx:]
	link = strings.Fields(link)[0]
	tok := strings.TrimPrefix(link, "https://lms.example.com/l/")
	participantID, roundID, err := codec.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, alice.ID, participantID)
	require.Equal(t, r.ID, roundID)
}

func TestSendPickLinksRefusesClosedRound(t *testing.T) {
	db := testDB(t)
	svc, _ := newNotify(db)
	newParticipant(t, db, "Alice", "447000000001")
	r := newRound(t, db, 1, models.RoundCompleted)

	_, err := svc.SendPickLinks(r.ID)
	require.ErrorIs(t, err, ErrRoundNotOpen)

	var count int64
	require.NoError(t, db.Model(&models.NotificationJob{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestBuildPickMessage(t *testing.T) {
	msg := BuildPickMessage("Alice", 3, "https://lms.example.com/l/abc")
	require.Contains(t, msg, "Alice")
	require.Contains(t, msg, "Round 3")
	require.Contains(t, msg, "https://lms.example.com/l/abc")
}
