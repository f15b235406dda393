package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/models"
	"github.com/sevy71/lms-automation/token"
)

// LinkService serves the tokenised pick-submission surface (/l/:token). The
// token authorizes exactly one participant for exactly one round; there is no
// session. A failed decode says nothing beyond "invalid or expired link".
type LinkService struct {
	DB         *gorm.DB
	Tokens     *token.Codec
	ViewTokens *token.Codec
	Rounds     *RoundService
}

func NewLinkService(db *gorm.DB, tokens, viewTokens *token.Codec, rounds *RoundService) *LinkService {
	return &LinkService{DB: db, Tokens: tokens, ViewTokens: viewTokens, Rounds: rounds}
}

// resolve decodes the token and loads both ends of it.
func (s *LinkService) resolve(c *fiber.Ctx) (*models.Participant, *models.Round, error) {
	participantID, roundID, err := s.Tokens.Decode(c.Params("token"))
	if err != nil {
		return nil, nil, token.ErrInvalidToken
	}
	var participant models.Participant
	if err := s.DB.First(&participant, participantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, token.ErrInvalidToken
		}
		return nil, nil, err
	}
	var round models.Round
	if err := s.DB.First(&round, roundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, token.ErrInvalidToken
		}
		return nil, nil, err
	}
	return &participant, &round, nil
}

// ShowEndpoint handles GET /l/:token — the round's fixtures plus the teams
// this participant has already burned.
func (s *LinkService) ShowEndpoint(c *fiber.Ctx) error {
	participant, round, err := s.resolve(c)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired link"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var fixtures []models.Fixture
	if err := s.DB.Where("round_id = ?", round.ID).
		Order("kickoff_at").Find(&fixtures).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	previous, err := s.Rounds.PreviousTeams(participant.ID, round.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var current *models.Pick
	var existing models.Pick
	if err := s.DB.Where("participant_id = ? AND round_id = ?", participant.ID, round.ID).
		First(&existing).Error; err == nil {
		current = &existing
	}

	return c.JSON(fiber.Map{
		"participant": fiber.Map{"id": participant.ID, "name": participant.Name, "status": participant.Status},
		"round":       fiber.Map{"id": round.ID, "round_number": round.RoundNumber, "status": round.Status},
		"fixtures":    fixtures,
		"previously_picked_teams": previous,
		"current_pick":            current,
	})
}

// ViewPicksEndpoint handles GET /v/:token — a read-only history of every pick
// the participant has made. View tokens live in their own purpose namespace,
// so a pick-link token replayed here is refused.
func (s *LinkService) ViewPicksEndpoint(c *fiber.Ctx) error {
	participantID, _, err := s.ViewTokens.Decode(c.Params("token"))
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "invalid or expired link"})
	}
	var participant models.Participant
	if err := s.DB.First(&participant, participantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired link"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	var picks []models.Pick
	if err := s.DB.Preload("Round").Where("participant_id = ?", participant.ID).
		Order("round_id").Find(&picks).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	type pickLine struct {
		RoundNumber int    `json:"round_number"`
		Team        string `json:"team"`
		Outcome     string `json:"outcome"`
	}
	lines := make([]pickLine, 0, len(picks))
	for _, p := range picks {
		outcome := "pending"
		if p.IsWinner != nil {
			if *p.IsWinner {
				outcome = "win"
			} else {
				outcome = "out"
			}
		}
		lines = append(lines, pickLine{RoundNumber: p.Round.RoundNumber, Team: p.TeamPicked, Outcome: outcome})
	}
	return c.JSON(fiber.Map{
		"participant": fiber.Map{"name": participant.Name, "status": participant.Status},
		"picks":       lines,
	})
}

type submitPickRequest struct {
	Team string `json:"team" form:"team"`
}

// SubmitEndpoint handles POST /l/:token with a team field.
func (s *LinkService) SubmitEndpoint(c *fiber.Ctx) error {
	participant, round, err := s.resolve(c)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired link"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var req submitPickRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	pick, err := s.Rounds.SubmitPick(participant.ID, round.ID, req.Team)
	if err != nil {
		switch {
		case errors.Is(err, ErrTeamRequired), errors.Is(err, ErrTeamNotOffered):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrAlreadyEliminated),
			errors.Is(err, ErrRoundNotOpen),
			errors.Is(err, ErrDuplicatePick),
			errors.Is(err, ErrTeamAlreadyUsed):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to submit pick"})
	}
	return c.Status(201).JSON(pick)
}
