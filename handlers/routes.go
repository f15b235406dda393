package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sevy71/lms-automation/middleware"
	"github.com/sevy71/lms-automation/services"
)

// SetupPickRoutes registers the tokenised pick-submission surface. The token
// in the path is the only credential.
func SetupPickRoutes(app *fiber.App, links *services.LinkService) {
	app.Get("/l/:token", links.ShowEndpoint)
	app.Post("/l/:token", links.SubmitEndpoint)
	app.Get("/v/:token", links.ViewPicksEndpoint)
}

// SetupQueueRoutes registers the delivery agent's polling API behind the
// worker bearer token.
func SetupQueueRoutes(app *fiber.App, queue *services.QueueService, workerToken string) {
	api := app.Group("/api/queue", middleware.WorkerAuth(workerToken))
	api.Get("/next", queue.NextJobsEndpoint)
	api.Post("/mark", queue.MarkJobEndpoint)
}

// SetupAdminRoutes registers the administrative surface behind the admin
// bearer token.
func SetupAdminRoutes(
	app *fiber.App,
	adminToken string,
	participants *services.ParticipantService,
	rounds *services.RoundService,
	fixtures *services.FixtureService,
	notify *services.NotifyService,
	queue *services.QueueService,
) {
	app.Get("/standings", rounds.StandingsEndpoint)

	admin := app.Group("/admin", middleware.AdminAuth(adminToken))

	admin.Post("/participants", participants.RegisterEndpoint)
	admin.Get("/participants", participants.ListEndpoint)
	admin.Get("/participants/:id/picks", participants.PicksEndpoint)
	admin.Get("/participants/:id/view-link", participants.ViewLinkEndpoint)
	admin.Post("/participants/:id/reinstate", participants.ReinstateEndpoint)
	admin.Post("/participants/:id/clear-unreachable", participants.ClearUnreachableEndpoint)

	admin.Get("/rounds", rounds.ListRoundsEndpoint)
	admin.Post("/rounds", rounds.CreateRoundEndpoint)
	admin.Post("/rounds/:id/close", rounds.CloseRoundEndpoint)
	admin.Get("/rounds/:id/summary", rounds.RoundSummaryEndpoint)
	admin.Post("/rounds/:id/send-links", notify.SendRoundLinksEndpoint)
	admin.Post("/rounds/:id/fixtures", fixtures.AssignEndpoint)

	admin.Post("/fixtures", fixtures.ManualAddEndpoint)
	admin.Get("/fixtures/unassigned", fixtures.UnassignedEndpoint)
	admin.Patch("/fixtures/:event_id/result", fixtures.ResultEndpoint)
	admin.Post("/fixtures/import/:season", fixtures.ImportSeasonEndpoint)

	admin.Post("/queue/enqueue", queue.ForceEnqueueEndpoint)
	admin.Get("/queue/stats", queue.StatsEndpoint)
}
