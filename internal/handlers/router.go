package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 30 * time.Second

// Routes mounts every endpoint on a chi router. Requests from the listed
// origins are allowed cross-origin; an empty list allows any origin.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.Instrument)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.Config)

		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.ListGames)
			r.Get("/{id}", h.GetGame)
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.ListPlayers)
			r.Get("/{handle}", h.GetPlayer)
			r.Get("/{handle}/games", h.PlayerGames)
			r.Get("/{handle}/performance", h.PlayerPerformance)
		})

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", h.ListServers)
			r.Get("/{handle}", h.GetServer)
			r.Get("/{handle}/games", h.ServerGames)
		})

		r.Route("/maps", func(r chi.Router) {
			r.Get("/", h.ListMaps)
			r.Get("/{name}", h.GetMap)
			r.Get("/{name}/games", h.MapGames)
			r.Get("/{name}/topraces", h.MapTopRaces)
		})

		r.Route("/modes", func(r chi.Router) {
			r.Get("/", h.ListModes)
			r.Get("/{name}", h.GetMode)
			r.Get("/{name}/games", h.ModeGames)
		})

		r.Route("/mutators", func(r chi.Router) {
			r.Get("/", h.ListMutators)
			r.Get("/{name}", h.GetMutator)
			r.Get("/{name}/games", h.MutatorGames)
		})

		r.Route("/weapons", func(r chi.Router) {
			r.Get("/", h.ListWeapons)
			r.Get("/{name}", h.GetWeapon)
		})

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/weapons", h.WeaponRankings)
			r.Get("/weapons/{metric}", h.WeaponRanking)
			r.Get("/players", h.PlayerRankings)
			r.Get("/players/{metric}", h.PlayerRanking)
			r.Get("/modes", h.ModeRankings)
			r.Get("/mutators", h.MutatorRankings)
			r.Get("/maps", h.MapRankings)
			r.Get("/servers", h.ServerRankings)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Get("/hours", h.ActivityHours)
			r.Get("/weekdays", h.ActivityWeekdays)
			r.Get("/weekdayhours", h.ActivityWeekdayHours)
		})
	})

	return r
}
