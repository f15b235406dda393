package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevy71/lms-automation/models"
)

func TestEnqueueRespectsUnreachableFlag(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)
	p := newParticipant(t, db, "Alice", "447000000001")
	require.NoError(t, db.Model(p).Update("unreachable", true).Error)

	_, err := svc.Enqueue(&p.ID, "447000000001", "hello", false)
	require.ErrorIs(t, err, ErrRecipientUnreachable)

	// Admin override still gets through.
	job, err := svc.Enqueue(&p.ID, "447000000001", "hello", true)
	require.NoError(t, err)
	require.Equal(t, models.JobPending, job.Status)
	require.Equal(t, 0, job.Attempts)
}

func TestClaimTransitionsAndCounts(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)

	for i := 0; i < 3; i++ {
		_, err := svc.Enqueue(nil, fmt.Sprintf("4470000000%02d", i), "msg", false)
		require.NoError(t, err)
	}

	jobs, err := svc.Claim(2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		require.Equal(t, models.JobInProgress, j.Status)
		require.Equal(t, 1, j.Attempts)
	}

	// Claimed jobs are not handed out again.
	rest, err := svc.Claim(10)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	empty, err := svc.Claim(10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestClaimConcurrentConsumersAreDisjoint(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)

	for i := 0; i < 5; i++ {
		_, err := svc.Enqueue(nil, fmt.Sprintf("4470000000%02d", i), "msg", false)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	batches := make([][]models.NotificationJob, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jobs, err := svc.Claim(5)
			require.NoError(t, err)
			batches[i] = jobs
		}(i)
	}
	wg.Wait()

	seen := map[uint]bool{}
	total := 0
	for _, batch := range batches {
		for _, j := range batch {
			require.False(t, seen[j.ID], "job %d claimed twice", j.ID)
			seen[j.ID] = true
			total++
		}
	}
	require.Equal(t, 5, total)
}

func TestReportOutcomes(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)
	job, err := svc.Enqueue(nil, "447000000001", "msg", false)
	require.NoError(t, err)
	_, err = svc.Claim(1)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Report(99999, models.JobSent, ""), ErrJobNotFound)
	require.ErrorIs(t, svc.Report(job.ID, "bogus", ""), ErrInvalidJobStatus)

	require.NoError(t, svc.Report(job.ID, models.JobFailed, "number not on whatsapp"))
	var got models.NotificationJob
	require.NoError(t, db.First(&got, job.ID).Error)
	require.Equal(t, models.JobFailed, got.Status)
	require.NotNil(t, got.LastError)
	require.Equal(t, "number not on whatsapp", *got.LastError)

	// Reporting a terminal job again is accepted, last write wins, and the
	// stale failure message goes with it.
	require.NoError(t, svc.Report(job.ID, models.JobSent, ""))
	require.NoError(t, db.First(&got, job.ID).Error)
	require.Equal(t, models.JobSent, got.Status)
	require.Nil(t, got.LastError)
}

// reportRun enqueues, claims and reports a sequence of outcomes for one
// participant, oldest first.
func reportRun(t *testing.T, svc *QueueService, participantID uint, outcomes []string) {
	t.Helper()
	for _, outcome := range outcomes {
		job, err := svc.Enqueue(&participantID, "447000000001", "msg", true)
		require.NoError(t, err)
		_, err = svc.Claim(1)
		require.NoError(t, err)
		require.NoError(t, svc.Report(job.ID, outcome, ""))
	}
}

func TestCircuitBreakerFlagsAfterFiveConsecutiveFailures(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)
	p := newParticipant(t, db, "Alice", "447000000001")

	reportRun(t, svc, p.ID, []string{
		models.JobFailed, models.JobFailed, models.JobFailed, models.JobFailed,
	})
	var participant models.Participant
	require.NoError(t, db.First(&participant, p.ID).Error)
	require.False(t, participant.Unreachable)

	reportRun(t, svc, p.ID, []string{models.JobFailed})
	require.NoError(t, db.First(&participant, p.ID).Error)
	require.True(t, participant.Unreachable)
	require.Equal(t, 5, participant.ConsecutiveFailures)

	count, err := svc.ConsecutiveFailures(p.ID, 10)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestCircuitBreakerSentResetsTheRun(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)
	p := newParticipant(t, db, "Alice", "447000000001")

	reportRun(t, svc, p.ID, []string{
		models.JobFailed, models.JobFailed, models.JobFailed, models.JobFailed,
		models.JobSent,
	})

	var participant models.Participant
	require.NoError(t, db.First(&participant, p.ID).Error)
	require.False(t, participant.Unreachable)
	require.Equal(t, 0, participant.ConsecutiveFailures)

	count, err := svc.ConsecutiveFailures(p.ID, 10)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestResetUnreachable(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)
	p := newParticipant(t, db, "Alice", "447000000001")

	reportRun(t, svc, p.ID, []string{
		models.JobFailed, models.JobFailed, models.JobFailed, models.JobFailed, models.JobFailed,
	})
	var participant models.Participant
	require.NoError(t, db.First(&participant, p.ID).Error)
	require.True(t, participant.Unreachable)

	require.NoError(t, svc.ResetUnreachable(p.ID))
	require.NoError(t, db.First(&participant, p.ID).Error)
	require.False(t, participant.Unreachable)
	require.Equal(t, 0, participant.ConsecutiveFailures)

	// Enqueue works again after the manual clear.
	_, err := svc.Enqueue(&p.ID, "447000000001", "msg", false)
	require.NoError(t, err)
}

func TestConsecutiveFailuresWindowBound(t *testing.T) {
	db := testDB(t)
	svc := NewQueueService(db, 5, 10)
	p := newParticipant(t, db, "Alice", "447000000001")

	outcomes := make([]string, 8)
	for i := range outcomes {
		outcomes[i] = models.JobFailed
	}
	reportRun(t, svc, p.ID, outcomes)

	count, err := svc.ConsecutiveFailures(p.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
