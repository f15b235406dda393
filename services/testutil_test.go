package services

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sevy71/lms-automation/models"
)

// testDB opens a throwaway sqlite database with the full schema. The
// busy_timeout and immediate transactions keep the concurrency tests from
// tripping over sqlite's single-writer model.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_txlock=immediate",
		filepath.Join(t.TempDir(), "lms.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Participant{},
		&models.Round{},
		&models.Fixture{},
		&models.Pick{},
		&models.NotificationJob{},
	))
	return db
}

func newParticipant(t *testing.T, db *gorm.DB, name, number string) *models.Participant {
	t.Helper()
	p := &models.Participant{Name: name, WhatsAppNumber: number, Status: models.ParticipantActive}
	require.NoError(t, db.Create(p).Error)
	return p
}

func newRound(t *testing.T, db *gorm.DB, number int, status string) *models.Round {
	t.Helper()
	r := &models.Round{RoundNumber: number, Status: status}
	require.NoError(t, db.Create(r).Error)
	return r
}

func newFixture(t *testing.T, db *gorm.DB, roundID *uint, home, away, status string, homeScore, awayScore *int) *models.Fixture {
	t.Helper()
	f := &models.Fixture{
		EventID:   fmt.Sprintf("test-%s-%s", NormalizeTeam(home), NormalizeTeam(away)),
		RoundID:   roundID,
		HomeTeam:  home,
		AwayTeam:  away,
		Status:    status,
		HomeScore: homeScore,
		AwayScore: awayScore,
	}
	require.NoError(t, db.Create(f).Error)
	return f
}
