package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/models"
	"github.com/sevy71/lms-automation/token"
)

// ParticipantService covers registration and the administrative resets that
// are the only other writers of participant state.
type ParticipantService struct {
	DB         *gorm.DB
	Queue      *QueueService
	ViewTokens *token.Codec
	BaseURL    string
}

func NewParticipantService(db *gorm.DB, queue *QueueService, viewTokens *token.Codec, baseURL string) *ParticipantService {
	return &ParticipantService{DB: db, Queue: queue, ViewTokens: viewTokens, BaseURL: baseURL}
}

type registerRequest struct {
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

func (s *ParticipantService) RegisterEndpoint(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	participant := models.Participant{
		Name:           req.Name,
		WhatsAppNumber: strings.TrimSpace(req.WhatsAppNumber),
		Status:         models.ParticipantActive,
	}
	if err := s.DB.Create(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(409).JSON(fiber.Map{"error": "a participant with that name already exists"})
		}
		log.Errorf("failed to register participant: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to register participant"})
	}
	return c.Status(201).JSON(participant)
}

func (s *ParticipantService) ListEndpoint(c *fiber.Ctx) error {
	var participants []models.Participant
	if err := s.DB.Order("name").Find(&participants).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(participants)
}

// ReinstateEndpoint puts an eliminated participant back to active.
func (s *ParticipantService) ReinstateEndpoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid participant id"})
	}
	res := s.DB.Model(&models.Participant{}).
		Where("id = ?", id).
		Update("status", models.ParticipantActive)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "participant not found"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// ClearUnreachableEndpoint is the manual circuit-breaker reset.
func (s *ParticipantService) ClearUnreachableEndpoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid participant id"})
	}
	if err := s.Queue.ResetUnreachable(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "participant not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	log.WithField("participant_id", id).Info("unreachable flag cleared")
	return c.JSON(fiber.Map{"ok": true})
}

// ViewLinkEndpoint mints a shareable read-only pick-history link for a
// participant. The embedded round is the latest one at mint time.
func (s *ParticipantService) ViewLinkEndpoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid participant id"})
	}
	var participant models.Participant
	if err := s.DB.First(&participant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "participant not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	var round models.Round
	if err := s.DB.Order("round_number DESC").First(&round).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(409).JSON(fiber.Map{"error": "no rounds exist yet"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	tok, err := s.ViewTokens.Encode(participant.ID, round.ID)
	if err != nil {
		log.Errorf("failed to build view token for participant %d: %v", participant.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to build view link"})
	}
	return c.JSON(fiber.Map{"link": fmt.Sprintf("%s/v/%s", s.BaseURL, tok)})
}

// PicksEndpoint lists a participant's pick history.
func (s *ParticipantService) PicksEndpoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid participant id"})
	}
	var participant models.Participant
	if err := s.DB.First(&participant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "participant not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	var picks []models.Pick
	if err := s.DB.Preload("Round").Where("participant_id = ?", participant.ID).
		Order("round_id").Find(&picks).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"participant": participant, "picks": picks})
}
