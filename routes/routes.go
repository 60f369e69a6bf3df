package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clubkit/tournament-engine/handlers"
	"github.com/clubkit/tournament-engine/middleware"
)

// SetupRoutes mounts the whole HTTP surface on the router. Read endpoints
// require any authenticated club member; mutating endpoints require the
// organizer role. Websocket and health endpoints stay open for the gateway.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	tournamentHandler *handlers.TournamentHandler,
	scheduleHandler *handlers.ScheduleHandler,
	resultHandler *handlers.ResultHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler.Healthz)
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Get("/", tournamentHandler.GetByIDHandler)
			r.Get("/rounds", tournamentHandler.GetTournamentRoundsHandler)
			r.Get("/divisions", tournamentHandler.ListDivisionsHandler)
			r.Get("/divisions/{divisionID}/rounds", tournamentHandler.GetRoundsHandler)

			r.Route("/matches/{matchID}", func(r chi.Router) {
				r.Post("/result", resultHandler.SubmitHandler)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOrganizer)
					r.Post("/resolve-conflict", resultHandler.ResolveHandler)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrganizer)
				r.Post("/generate", tournamentHandler.GenerateHandler)
				r.Post("/schedule/auto-assign", scheduleHandler.AutoAssignHandler)
			})
		})

		r.Route("/courts", func(r chi.Router) {
			r.Get("/", scheduleHandler.ListCourtsHandler)
			r.Get("/ledger", scheduleHandler.DayViewHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrganizer)
				r.Post("/blocks", scheduleHandler.BlockCourtHandler)
			})
		})
	})
}
