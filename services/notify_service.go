package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/models"
	"github.com/sevy71/lms-automation/token"
	"github.com/sevy71/lms-automation/utils"
)

// NotifyService turns round events into queued messages. It only produces
// jobs; delivery belongs to the external agent polling the queue API.
type NotifyService struct {
	DB      *gorm.DB
	Queue   *QueueService
	Tokens  *token.Codec
	BaseURL string
}

func NewNotifyService(db *gorm.DB, queue *QueueService, tokens *token.Codec, baseURL string) *NotifyService {
	return &NotifyService{DB: db, Queue: queue, Tokens: tokens, BaseURL: baseURL}
}

// BuildPickMessage is the message body sent with each pick link.
func BuildPickMessage(name string, roundNumber int, link string) string {
	return fmt.Sprintf("Hello %s! It's time to make your pick for LMS Round %d.\n%s\n(Deadline: 1 hour before first kick-off)", name, roundNumber, link)
}

// SendSummary reports what SendPickLinks queued and what it skipped.
type SendSummary struct {
	Queued  int      `json:"queued"`
	Skipped int      `json:"skipped"`
	Details []string `json:"details"`
}

// SendPickLinks enqueues a tokenised pick link for every active participant
// in the round. Participants without a number, or flagged unreachable, are
// skipped and reported rather than treated as errors.
func (s *NotifyService) SendPickLinks(roundID uint) (*SendSummary, error) {
	var round models.Round
	if err := s.DB.First(&round, roundID).Error; err != nil {
		return nil, err
	}
	if round.Status != models.RoundOpen {
		return nil, ErrRoundNotOpen
	}

	var participants []models.Participant
	if err := s.DB.Where("status = ?", models.ParticipantActive).
		Order("name").Find(&participants).Error; err != nil {
		return nil, err
	}

	summary := &SendSummary{}
	for _, p := range participants {
		if p.WhatsAppNumber == "" {
			summary.Skipped++
			summary.Details = append(summary.Details, p.Name+": no number")
			continue
		}
		if p.Unreachable {
			summary.Skipped++
			summary.Details = append(summary.Details, p.Name+": unreachable")
			continue
		}
		tok, err := s.Tokens.Encode(p.ID, round.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to build pick token for participant %d: %w", p.ID, err)
		}
		link := fmt.Sprintf("%s/l/%s", s.BaseURL, tok)
		body := BuildPickMessage(p.Name, round.RoundNumber, link)

		participantID := p.ID
		if _, err := s.Queue.Enqueue(&participantID, utils.ToE164Digits(p.WhatsAppNumber), body, false); err != nil {
			if errors.Is(err, ErrRecipientUnreachable) {
				summary.Skipped++
				summary.Details = append(summary.Details, p.Name+": unreachable")
				continue
			}
			return nil, err
		}
		summary.Queued++
	}

	log.WithFields(log.Fields{
		"round":   round.RoundNumber,
		"queued":  summary.Queued,
		"skipped": summary.Skipped,
	}).Info("pick links queued")
	return summary, nil
}

// SendRoundLinksEndpoint handles POST /admin/rounds/:id/send-links.
func (s *NotifyService) SendRoundLinksEndpoint(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid round id"})
	}
	summary, err := s.SendPickLinks(uint(roundID))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "round not found"})
		case errors.Is(err, ErrRoundNotOpen):
			return c.Status(409).JSON(fiber.Map{"error": ErrRoundNotOpen.Error()})
		}
		log.Errorf("failed to queue pick links for round %d: %v", roundID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to queue pick links"})
	}
	return c.JSON(summary)
}
