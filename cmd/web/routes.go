package main

import (
	"net/http"

	"github.com/Exanteros/darts-sub002/internal/config"
	"github.com/Exanteros/darts-sub002/internal/httputil"
	"github.com/Exanteros/darts-sub002/internal/middleware"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/service"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type application struct {
	cfg            *config.Config
	sessionManager *scs.SessionManager
	adminHash      []byte
	hub            *notify.Hub

	boards      *service.BoardService
	generator   *service.BracketGeneration
	matches     *service.MatchService
	shootout    *service.ShootoutService
	tournaments *service.TournamentService
}

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.BoardCodeHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// live feeds are public and must reach the hijackable writer
	r.Get("/ws/tournaments/{id}", app.serveTournamentWS)
	r.Get("/ws/boards/{id}", app.serveBoardWS)

	r.Group(func(r chi.Router) {
		r.Use(app.sessionManager.LoadAndSave)
		r.Use(middleware.LoadCaller(app.sessionManager, app.cfg.JWTSecret))

		r.Post("/admin/login", app.adminLogin)
		r.Post("/admin/logout", app.adminLogout)

		r.Route("/api", func(r chi.Router) {
			r.Get("/tournaments", app.listTournaments)
			r.Route("/tournaments/{id}", func(r chi.Router) {
				r.Get("/", app.getTournament)
				r.Get("/players", app.listPlayers)
				r.Get("/boards", app.listBoards)
				r.Get("/config", app.getBracketConfig)
				r.Get("/bracket", app.getBracketState)
				r.Get("/shootout", app.shootoutStatus)
				r.Get("/shootout/board-check", app.checkShootoutBoard)

				// the shootout board drives these too
				r.Post("/shootout/select", app.shootoutSelect)
				r.Post("/shootout/throwing", app.shootoutStep((*service.ShootoutService).StartThrowing))
				r.Post("/shootout/complete", app.shootoutStep((*service.ShootoutService).CompleteThrowing))
				r.Post("/shootout/cancel", app.shootoutStep((*service.ShootoutService).CancelSelection))
				r.Post("/shootout/finish", app.shootoutFinish)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/players", app.addPlayer)
					r.Post("/close-registration", app.closeRegistration)
					r.Put("/config", app.updateBracketConfig)
					r.Post("/boards", app.createBoard)
					r.Post("/schedule", app.autoSchedule)
					r.Post("/bracket/generate", app.generateBracket)
					r.Post("/rounds/{round}/start", app.startRound)
					r.Post("/rounds/{round}/reset", app.resetRound)
					r.Post("/shootout/start", app.shootoutStart)
					r.Post("/shootout/finalize", app.shootoutFinalize)
					r.Post("/shootout/reset", app.shootoutReset)
				})
			})

			r.Route("/matches/{id}", func(r chi.Router) {
				r.Get("/", app.getMatch)
				r.Get("/current-throw", app.getCurrentThrow)
				r.Get("/board-check", app.checkMatchBoard)
				r.Post("/throws", app.submitThrow)
				r.Patch("/throws", app.editThrow)
				r.Put("/current-throw", app.setCurrentThrow)
				r.Delete("/current-throw", app.clearCurrentThrow)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/start", app.startMatch)
					r.Post("/reset", app.resetMatch)
					r.Post("/promote", app.repromote)
					r.Post("/board", app.assignBoard)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/tournaments", app.createTournament)
				r.Patch("/players/{id}/status", app.setPlayerStatus)
				r.Post("/players/{id}/token", app.issuePlayerToken)
				r.Post("/boards/{id}/main", app.setMainBoard)
				r.Patch("/boards/{id}/active", app.setBoardActive)
			})
		})
	})

	return r
}
