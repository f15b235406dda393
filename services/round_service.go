package services

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sevy71/lms-automation/models"
)

// RoundService owns the round/pick lifecycle: pick acceptance under the
// no-repeat rules, and the judging pass that closes a round.
type RoundService struct {
	DB *gorm.DB
}

func NewRoundService(db *gorm.DB) *RoundService {
	return &RoundService{DB: db}
}

// CreateRound allocates the next global round number and optionally pulls a
// set of fixtures (by event id) into the new round.
func (s *RoundService) CreateRound(startDate, endDate time.Time, eventIDs []string) (*models.Round, error) {
	var round models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var maxNumber int
		if err := tx.Model(&models.Round{}).
			Select("COALESCE(MAX(round_number), 0)").Scan(&maxNumber).Error; err != nil {
			return err
		}
		round = models.Round{
			RoundNumber: maxNumber + 1,
			Status:      models.RoundOpen,
			StartDate:   startDate,
			EndDate:     endDate,
		}
		if err := tx.Create(&round).Error; err != nil {
			return err
		}
		if len(eventIDs) > 0 {
			if err := tx.Model(&models.Fixture{}).
				Where("event_id IN ?", eventIDs).
				Update("round_id", round.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// SubmitPick records a participant's team for a round. The friendly
// pre-checks run inside the transaction; the two composite unique indexes on
// picks are what actually make concurrent duplicates fail, and a constraint
// violation is re-diagnosed into the matching sentinel afterwards.
func (s *RoundService) SubmitPick(participantID, roundID uint, team string) (*models.Pick, error) {
	team = strings.TrimSpace(team)
	if team == "" {
		return nil, ErrTeamRequired
	}
	key := NormalizeTeam(team)

	var pick models.Pick
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Writing the participant row takes its lock, so a concurrent
		// round-close elimination is serialized against this submission
		// instead of racing a plain read of the status.
		res := tx.Model(&models.Participant{}).
			Where("id = ? AND status = ?", participantID, models.ParticipantActive).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var participant models.Participant
			if err := tx.First(&participant, participantID).Error; err != nil {
				return err
			}
			return ErrAlreadyEliminated
		}

		var round models.Round
		if err := tx.First(&round, roundID).Error; err != nil {
			return err
		}
		if round.Status != models.RoundOpen {
			return ErrRoundNotOpen
		}

		var fixtures []models.Fixture
		if err := tx.Where("round_id = ?", round.ID).Find(&fixtures).Error; err != nil {
			return err
		}
		offered := false
		for i := range fixtures {
			if NormalizeTeam(fixtures[i].HomeTeam) == key || NormalizeTeam(fixtures[i].AwayTeam) == key {
				offered = true
				break
			}
		}
		if !offered {
			return ErrTeamNotOffered
		}

		var count int64
		if err := tx.Model(&models.Pick{}).
			Where("participant_id = ? AND round_id = ?", participantID, roundID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicatePick
		}
		if err := tx.Model(&models.Pick{}).
			Where("participant_id = ? AND team_key = ?", participantID, key).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrTeamAlreadyUsed
		}

		pick = models.Pick{
			ParticipantID: participantID,
			RoundID:       roundID,
			TeamPicked:    team,
			TeamKey:       key,
		}
		return tx.Create(&pick).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.diagnosePickConflict(participantID, roundID, key)
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"participant_id": participantID,
		"round_id":       roundID,
		"team":           team,
	}).Info("pick submitted")
	return &pick, nil
}

// diagnosePickConflict runs after a rolled-back unique violation and works
// out which rule the concurrent winner hit.
func (s *RoundService) diagnosePickConflict(participantID, roundID uint, key string) error {
	var count int64
	if err := s.DB.Model(&models.Pick{}).
		Where("participant_id = ? AND round_id = ?", participantID, roundID).
		Count(&count).Error; err == nil && count > 0 {
		return ErrDuplicatePick
	}
	if err := s.DB.Model(&models.Pick{}).
		Where("participant_id = ? AND team_key = ?", participantID, key).
		Count(&count).Error; err == nil && count > 0 {
		return ErrTeamAlreadyUsed
	}
	return ErrDuplicatePick
}

// PreviousTeams returns the team names a participant has used in rounds other
// than the given one, for display alongside the pick form.
func (s *RoundService) PreviousTeams(participantID, excludeRoundID uint) ([]string, error) {
	var picks []models.Pick
	if err := s.DB.Where("participant_id = ? AND round_id <> ?", participantID, excludeRoundID).
		Order("round_id").Find(&picks).Error; err != nil {
		return nil, err
	}
	teams := make([]string, 0, len(picks))
	for _, p := range picks {
		teams = append(teams, p.TeamPicked)
	}
	return teams, nil
}

// RoundCloseSummary reports what a close pass did.
type RoundCloseSummary struct {
	RoundNumber int `json:"round_number"`
	Survived    int `json:"survived"`
	Eliminated  int `json:"eliminated"`
	Pending     int `json:"pending"`
}

// CloseRound judges every still-unjudged pick in the round and flips the
// round to completed. Fails with UndecidedFixturesError (and mutates nothing)
// while any non-abandoned fixture lacks a result. Safe to re-run after a
// partial pass: judged picks are skipped via the is_winner IS NULL guard and
// eliminations are conditional updates.
func (s *RoundService) CloseRound(roundID uint) (*RoundCloseSummary, error) {
	var summary RoundCloseSummary
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.First(&round, roundID).Error; err != nil {
			return err
		}
		if round.Status != models.RoundOpen {
			return ErrRoundNotOpen
		}
		summary.RoundNumber = round.RoundNumber

		var fixtures []models.Fixture
		if err := tx.Where("round_id = ?", round.ID).Find(&fixtures).Error; err != nil {
			return err
		}

		undecided := 0
		byTeam := make(map[string]*models.Fixture, len(fixtures)*2)
		for i := range fixtures {
			f := &fixtures[i]
			if Decide(f) == DecisionUndecided && !FixtureAbandoned(f) {
				undecided++
			}
			byTeam[NormalizeTeam(f.HomeTeam)] = f
			byTeam[NormalizeTeam(f.AwayTeam)] = f
		}
		if undecided > 0 {
			return &UndecidedFixturesError{Count: undecided}
		}

		var picks []models.Pick
		if err := tx.Where("round_id = ? AND is_winner IS NULL", round.ID).
			Find(&picks).Error; err != nil {
			return err
		}

		for i := range picks {
			pick := &picks[i]
			fix, ok := byTeam[pick.TeamKey]
			if !ok {
				// No matching fixture: a data gap, not an error. Leave pending.
				summary.Pending++
				continue
			}
			switch Judge(pick.TeamPicked, fix) {
			case OutcomeWin:
				res := tx.Model(&models.Pick{}).
					Where("id = ? AND is_winner IS NULL", pick.ID).
					Update("is_winner", true)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 1 {
					summary.Survived++
				}
			case OutcomeLose:
				res := tx.Model(&models.Pick{}).
					Where("id = ? AND is_winner IS NULL", pick.ID).
					Update("is_winner", false)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 1 {
					if err := tx.Model(&models.Participant{}).
						Where("id = ? AND status <> ?", pick.ParticipantID, models.ParticipantEliminated).
						Update("status", models.ParticipantEliminated).Error; err != nil {
						return err
					}
					summary.Eliminated++
				}
			default:
				// Abandoned fixture: the pick stays pending.
				summary.Pending++
			}
		}

		res := tx.Model(&models.Round{}).
			Where("id = ? AND status = ?", round.ID, models.RoundOpen).
			Update("status", models.RoundCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another closer won the race.
			return ErrRoundNotOpen
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"round":      summary.RoundNumber,
		"survived":   summary.Survived,
		"eliminated": summary.Eliminated,
		"pending":    summary.Pending,
	}).Info("round processed")
	return &summary, nil
}

// ---- Fiber endpoints (admin) ----

type createRoundRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	EventIDs  []string  `json:"event_ids"`
}

func (s *RoundService) CreateRoundEndpoint(c *fiber.Ctx) error {
	var req createRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	round, err := s.CreateRound(req.StartDate, req.EndDate, req.EventIDs)
	if err != nil {
		log.Errorf("failed to create round: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create round"})
	}
	return c.Status(201).JSON(round)
}

func (s *RoundService) CloseRoundEndpoint(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid round id"})
	}
	summary, err := s.CloseRound(uint(roundID))
	if err != nil {
		var undecided *UndecidedFixturesError
		switch {
		case errors.As(err, &undecided):
			return c.Status(409).JSON(fiber.Map{"error": undecided.Error(), "undecided": undecided.Count})
		case errors.Is(err, ErrRoundNotOpen):
			return c.Status(409).JSON(fiber.Map{"error": ErrRoundNotOpen.Error()})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "round not found"})
		}
		log.Errorf("failed to close round %d: %v", roundID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to close round"})
	}
	return c.JSON(summary)
}

func (s *RoundService) RoundSummaryEndpoint(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid round id"})
	}
	var round models.Round
	if err := s.DB.Preload("Fixtures").First(&round, roundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "round not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	var picks []models.Pick
	if err := s.DB.Preload("Participant").Where("round_id = ?", round.ID).
		Order("created_at").Find(&picks).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	type pickLine struct {
		Participant string `json:"participant"`
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
		lines = append(lines, pickLine{Participant: p.Participant.Name, Team: p.TeamPicked, Outcome: outcome})
	}
	return c.JSON(fiber.Map{
		"round":    round,
		"picks":    lines,
		"fixtures": round.Fixtures,
	})
}

func (s *RoundService) StandingsEndpoint(c *fiber.Ctx) error {
	var participants []models.Participant
	if err := s.DB.Preload("Picks").Order("name").Find(&participants).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	type standing struct {
		ID       uint   `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Survived int    `json:"survived"`
	}
	out := make([]standing, 0, len(participants))
	for _, p := range participants {
		survived := 0
		for _, pick := range p.Picks {
			if pick.IsWinner != nil && *pick.IsWinner {
				survived++
			}
		}
		out = append(out, standing{ID: p.ID, Name: p.Name, Status: p.Status, Survived: survived})
	}
	return c.JSON(out)
}

func (s *RoundService) ListRoundsEndpoint(c *fiber.Ctx) error {
	var rounds []models.Round
	if err := s.DB.Order("round_number").Find(&rounds).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(rounds)
}
