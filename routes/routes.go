package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/knockoutlab/bracket-engine/handlers"
	"github.com/knockoutlab/bracket-engine/middleware"
	"github.com/knockoutlab/bracket-engine/models"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	registrationHandler *handlers.RegistrationHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Post("/users/signup", authHandler.SignUpHandler)
	router.Post("/users/signin", authHandler.SignInHandler)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListTournamentsHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetTournamentHandler)
		r.Get("/{tournamentID}/matches", tournamentHandler.ListTournamentMatchesHandler)
		r.Get("/{tournamentID}/registrations", registrationHandler.ListRegistrationsHandler)

		// Registration intake is called by the payment flow, not by
		// browsers, so it stays outside the JWT group.
		r.Post("/{tournamentID}/registrations", registrationHandler.CreateRegistrationHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin))

			r.Post("/", tournamentHandler.CreateTournamentHandler)
			r.Patch("/{tournamentID}/settings", tournamentHandler.UpdateSettingsHandler)
			r.Post("/{tournamentID}/force-advance", tournamentHandler.ForceAdvanceHandler)
			r.Put("/{tournamentID}/banner", tournamentHandler.UploadBannerHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetMatchHandler)
		r.Post("/{matchID}/reports", matchHandler.SubmitReportHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin))

			r.Put("/{matchID}/result", matchHandler.SetResultHandler)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
