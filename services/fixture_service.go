package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sevy71/lms-automation/models"
)

// FixtureService handles fixture ingestion from the football-data API,
// manual entry and correction, and round assignment. Fixtures are mutated by
// ingestion or correction only; they are never deleted.
type FixtureService struct {
	DB       *gorm.DB
	Football *FootballClient
}

func NewFixtureService(db *gorm.DB, football *FootballClient) *FixtureService {
	return &FixtureService{DB: db, Football: football}
}

func (s *FixtureService) apiConfigured() bool {
	return s.Football != nil && s.Football.Token != ""
}

// upsertMatches writes API matches into the fixtures table, keyed on
// event_id. Round assignment is never touched here.
func (s *FixtureService) upsertMatches(matches []APIMatch) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	fixtures := make([]models.Fixture, 0, len(matches))
	for _, m := range matches {
		fixtures = append(fixtures, models.Fixture{
			EventID:   strconv.FormatInt(m.ID, 10),
			HomeTeam:  m.HomeTeam.Name,
			AwayTeam:  m.AwayTeam.Name,
			KickoffAt: m.KickoffTime(),
			HomeScore: m.Score.FullTime.Home,
			AwayScore: m.Score.FullTime.Away,
			Status:    m.StatusCode(),
		})
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"home_team", "away_team", "kickoff_at",
			"home_score", "away_score", "status", "updated_at",
		}),
	}).Create(&fixtures).Error
	if err != nil {
		return 0, err
	}
	return len(fixtures), nil
}

// ImportSeason pulls a whole season of fixtures into the store.
func (s *FixtureService) ImportSeason(ctx context.Context, seasonYear int) (int, error) {
	matches, err := s.Football.SeasonMatches(ctx, seasonYear)
	if err != nil {
		return 0, err
	}
	return s.upsertMatches(matches)
}

// RefreshResults re-fetches a window around now and updates scores/statuses
// for fixtures we already hold. Used by the scheduler while rounds are open.
func (s *FixtureService) RefreshResults(ctx context.Context) (int, error) {
	var open int64
	if err := s.DB.Model(&models.Round{}).
		Where("status = ?", models.RoundOpen).Count(&open).Error; err != nil {
		return 0, err
	}
	if open == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	matches, err := s.Football.MatchesBetween(ctx, now.AddDate(0, 0, -7), now.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}
	return s.upsertMatches(matches)
}

// StartResultsScheduler runs RefreshResults on an interval while the service
// is up. No-op when no API token is configured.
func (s *FixtureService) StartResultsScheduler(interval time.Duration) {
	if !s.apiConfigured() {
		log.Info("football-data token not set, results scheduler disabled")
		return
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Errorf("failed to create results scheduler: %v", err)
		return
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := s.RefreshResults(ctx)
			if err != nil {
				log.Errorf("results refresh failed: %v", err)
				return
			}
			if n > 0 {
				log.Infof("results refresh updated %d fixtures", n)
			}
		}),
	)
	if err != nil {
		log.Errorf("failed to schedule results refresh: %v", err)
		return
	}
	sched.Start()
	log.Infof("results scheduler running every %s", interval)
}

// ---- Fiber endpoints (admin) ----

func (s *FixtureService) ImportSeasonEndpoint(c *fiber.Ctx) error {
	if !s.apiConfigured() {
		return c.Status(409).JSON(fiber.Map{"error": "football-data API token not configured"})
	}
	season, err := c.ParamsInt("season")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid season year"})
	}
	n, err := s.ImportSeason(c.Context(), season)
	if err != nil {
		log.Errorf("season import failed: %v", err)
		return c.Status(502).JSON(fiber.Map{"error": "fixture import failed"})
	}
	return c.JSON(fiber.Map{"imported": n})
}

type manualFixtureRequest struct {
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	KickoffAt time.Time `json:"kickoff_at"`
	RoundID   *uint     `json:"round_id"`
}

// ManualAddEndpoint inserts a hand-entered fixture under a synthetic event id.
func (s *FixtureService) ManualAddEndpoint(c *fiber.Ctx) error {
	var req manualFixtureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.HomeTeam == "" || req.AwayTeam == "" {
		return c.Status(400).JSON(fiber.Map{"error": "home_team and away_team are required"})
	}
	fixture := models.Fixture{
		EventID:   "manual-" + uuid.NewString(),
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		KickoffAt: req.KickoffAt,
		RoundID:   req.RoundID,
		Status:    "scheduled",
	}
	if err := s.DB.Create(&fixture).Error; err != nil {
		log.Errorf("failed to add manual fixture: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to add fixture"})
	}
	return c.Status(201).JSON(fixture)
}

type assignFixturesRequest struct {
	EventIDs []string `json:"event_ids"`
}

// AssignEndpoint moves fixtures (by event id) into a round.
func (s *FixtureService) AssignEndpoint(c *fiber.Ctx) error {
	roundID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid round id"})
	}
	var req assignFixturesRequest
	if err := c.BodyParser(&req); err != nil || len(req.EventIDs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "event_ids are required"})
	}
	var round models.Round
	if err := s.DB.First(&round, roundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "round not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	res := s.DB.Model(&models.Fixture{}).
		Where("event_id IN ?", req.EventIDs).
		Update("round_id", round.ID)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"assigned": res.RowsAffected})
}

type resultRequest struct {
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
	Status    string `json:"status"`
}

// ResultEndpoint is the manual correction path for a single fixture.
func (s *FixtureService) ResultEndpoint(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	var req resultRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	updates := map[string]interface{}{
		"home_score": req.HomeScore,
		"away_score": req.AwayScore,
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	res := s.DB.Model(&models.Fixture{}).
		Where("event_id = ?", eventID).
		Updates(updates)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "fixture not found"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// UnassignedEndpoint lists fixtures not yet attached to a round.
func (s *FixtureService) UnassignedEndpoint(c *fiber.Ctx) error {
	var fixtures []models.Fixture
	if err := s.DB.Where("round_id IS NULL").
		Order("kickoff_at").Find(&fixtures).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fixtures)
}
