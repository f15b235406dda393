package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/models"
)

// QueueService is the durable notification queue plus the delivery circuit
// breaker. The external delivery agent drives it through the /api/queue
// endpoints; the web tier only ever enqueues.
type QueueService struct {
	DB *gorm.DB

	// UnreachableThreshold consecutive failed deliveries flip a participant
	// to unreachable. FailureWindow bounds the audit scan.
	UnreachableThreshold int
	FailureWindow        int
}

func NewQueueService(db *gorm.DB, threshold, window int) *QueueService {
	return &QueueService{DB: db, UnreachableThreshold: threshold, FailureWindow: window}
}

// Enqueue inserts a pending job. Unless force is set (admin override), a
// recipient currently flagged unreachable is refused.
func (s *QueueService) Enqueue(participantID *uint, destination, payload string, force bool) (*models.NotificationJob, error) {
	if destination == "" || payload == "" {
		return nil, errors.New("destination and payload are required")
	}
	if participantID != nil && !force {
		var participant models.Participant
		if err := s.DB.First(&participant, *participantID).Error; err != nil {
			return nil, err
		}
		if participant.Unreachable {
			return nil, ErrRecipientUnreachable
		}
	}
	job := models.NotificationJob{
		ParticipantID: participantID,
		Destination:   destination,
		Payload:       payload,
		Status:        models.JobPending,
	}
	if err := s.DB.Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Claim atomically moves up to max pending jobs to in_progress and returns
// them, oldest first. Each job is taken with a conditional update keyed on
// its current status, so two concurrent claimers can never receive the same
// job. There is no lease expiry: a job stuck in_progress needs an admin.
func (s *QueueService) Claim(max int) ([]models.NotificationJob, error) {
	if max <= 0 {
		max = 1
	}
	var candidates []models.NotificationJob
	if err := s.DB.Where("status = ?", models.JobPending).
		Order("created_at").Limit(max).Find(&candidates).Error; err != nil {
		return nil, err
	}

	claimed := make([]models.NotificationJob, 0, len(candidates))
	for i := range candidates {
		job := candidates[i]
		res := s.DB.Model(&models.NotificationJob{}).
			Where("id = ? AND status = ?", job.ID, models.JobPending).
			Updates(map[string]interface{}{
				"status":   models.JobInProgress,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost to a concurrent claimer.
			continue
		}
		job.Status = models.JobInProgress
		job.Attempts++
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// Report records the delivery outcome for a claimed job. A report against an
// already-terminal job is accepted, last write wins. On failure the
// recipient's rolling failure counter is advanced in the same transaction and
// the unreachable flag is set once it reaches the threshold.
func (s *QueueService) Report(jobID uint, status string, errMsg string) error {
	if status != models.JobSent && status != models.JobFailed {
		return ErrInvalidJobStatus
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var job models.NotificationJob
		if err := tx.First(&job, jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		updates := map[string]interface{}{"status": status}
		if status == models.JobFailed && errMsg != "" {
			updates["last_error"] = errMsg
		}
		if status == models.JobSent {
			// A sent overwrite of an earlier failure must not keep the stale
			// error around.
			updates["last_error"] = nil
		}
		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}

		if job.ParticipantID == nil {
			return nil
		}
		switch status {
		case models.JobSent:
			return tx.Model(&models.Participant{}).
				Where("id = ?", *job.ParticipantID).
				Update("consecutive_failures", 0).Error
		case models.JobFailed:
			if err := tx.Model(&models.Participant{}).
				Where("id = ?", *job.ParticipantID).
				Update("consecutive_failures", gorm.Expr("consecutive_failures + 1")).Error; err != nil {
				return err
			}
			res := tx.Model(&models.Participant{}).
				Where("id = ? AND consecutive_failures >= ? AND unreachable = ?",
					*job.ParticipantID, s.UnreachableThreshold, false).
				Update("unreachable", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				log.WithField("participant_id", *job.ParticipantID).
					Warn("participant flagged unreachable after repeated delivery failures")
			}
		}
		return nil
	})
}

// ConsecutiveFailures scans the recipient's most recent jobs (newest first,
// bounded by window) and counts back from the head until the first sent job.
// This is the audit-trail definition of the breaker; the live flag is driven
// by the rolling counter kept on the participant row.
func (s *QueueService) ConsecutiveFailures(participantID uint, window int) (int, error) {
	if window <= 0 {
		window = s.FailureWindow
	}
	var jobs []models.NotificationJob
	if err := s.DB.Where("participant_id = ? AND status IN ?",
		participantID, []string{models.JobSent, models.JobFailed}).
		Order("updated_at DESC, id DESC").Limit(window).Find(&jobs).Error; err != nil {
		return 0, err
	}
	count := 0
	for _, j := range jobs {
		if j.Status == models.JobSent {
			break
		}
		count++
	}
	return count, nil
}

// ResetUnreachable clears the unreachable flag and the failure counter.
// Manual recovery only; the breaker never closes by itself.
func (s *QueueService) ResetUnreachable(participantID uint) error {
	res := s.DB.Model(&models.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{"unreachable": false, "consecutive_failures": 0})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ---- Fiber endpoints ----

// claimedJob is the wire shape handed to the delivery agent.
type claimedJob struct {
	ID          uint   `json:"id"`
	Destination string `json:"destination"`
	Payload     string `json:"payload"`
}

// NextJobsEndpoint handles GET /api/queue/next?limit=N for the worker.
func (s *QueueService) NextJobsEndpoint(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	jobs, err := s.Claim(limit)
	if err != nil {
		log.Errorf("queue claim failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to claim jobs"})
	}
	out := make([]claimedJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, claimedJob{ID: j.ID, Destination: j.Destination, Payload: j.Payload})
	}
	return c.JSON(out)
}

type markJobRequest struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// MarkJobEndpoint handles POST /api/queue/mark from the worker.
func (s *QueueService) MarkJobEndpoint(c *fiber.Ctx) error {
	var req markJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.Report(req.ID, req.Status, req.Error); err != nil {
		switch {
		case errors.Is(err, ErrInvalidJobStatus):
			return c.Status(400).JSON(fiber.Map{"error": ErrInvalidJobStatus.Error()})
		case errors.Is(err, ErrJobNotFound):
			return c.Status(404).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
		}
		log.Errorf("queue mark failed for job %d: %v", req.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to mark job"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

type forceEnqueueRequest struct {
	ParticipantID *uint  `json:"participant_id"`
	Destination   string `json:"destination"`
	Payload       string `json:"payload"`
}

// ForceEnqueueEndpoint lets an admin enqueue past the unreachable flag.
func (s *QueueService) ForceEnqueueEndpoint(c *fiber.Ctx) error {
	var req forceEnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	job, err := s.Enqueue(req.ParticipantID, req.Destination, req.Payload, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "participant not found"})
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(job)
}

// StatsEndpoint reports queue depth by status.
func (s *QueueService) StatsEndpoint(c *fiber.Ctx) error {
	type row struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var rows []row
	if err := s.DB.Model(&models.NotificationJob{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	out := fiber.Map{}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return c.JSON(out)
}
