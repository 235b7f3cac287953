package handlers

import (
	"net/http"
)

type playerMetric struct {
	Metric string `validate:"oneof=dpm dpf kdr games"`
}

type weaponMetric struct {
	Metric string `validate:"oneof=wielded dpm"`
}

// WeaponRankings returns every weapon leaderboard of a window
// @Summary Weapon rankings
// @Tags Rankings
// @Produce json
// @Param days query int false "Lookback in days, 0 for all time"
// @Success 200 {object} models.WeaponRankings
// @Router /api/rankings/weapons [get]
func (h *Handler) WeaponRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.WeaponRankings(r.Context(), q.Days)
	h.respond(w, r, res, err)
}

// WeaponRanking returns one weapon leaderboard
// @Summary Weapon ranking by metric
// @Tags Rankings
// @Produce json
// @Param metric path string true "wielded or dpm"
// @Param days query int false "Lookback in days, 0 for all time"
// @Success 200 {array} object
// @Failure 400 {object} map[string]string
// @Router /api/rankings/weapons/{metric} [get]
func (h *Handler) WeaponRanking(w http.ResponseWriter, r *http.Request) {
	m := weaponMetric{Metric: urlParam(r, "metric")}
	if err := h.validate(m); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.parseWindow(r, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	switch m.Metric {
	case "wielded":
		res, err := h.rankings.WeaponsByWielded(ctx, q.Days)
		h.respond(w, r, res, err)
	default:
		res, err := h.rankings.WeaponsByDPM(ctx, q.Days)
		h.respond(w, r, res, err)
	}
}

// PlayerRankings returns every player leaderboard of a window
// @Summary Player rankings
// @Tags Rankings
// @Produce json
// @Param days query int false "Lookback in days, 0 for all time"
// @Param limit query int false "Entries in the games leaderboard"
// @Success 200 {object} models.PlayerRankings
// @Router /api/rankings/players [get]
func (h *Handler) PlayerRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, h.api.HighscoreResults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.PlayerRankings(r.Context(), q.Days, q.Limit)
	h.respond(w, r, res, err)
}

// PlayerRanking returns one player leaderboard
// @Summary Player ranking by metric
// @Tags Rankings
// @Produce json
// @Param metric path string true "dpm, dpf, kdr or games"
// @Param days query int false "Lookback in days, 0 for all time"
// @Param limit query int false "Entries for the games metric"
// @Success 200 {array} object
// @Failure 400 {object} map[string]string
// @Router /api/rankings/players/{metric} [get]
func (h *Handler) PlayerRanking(w http.ResponseWriter, r *http.Request) {
	m := playerMetric{Metric: urlParam(r, "metric")}
	if err := h.validate(m); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.parseWindow(r, h.api.HighscoreResults)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	switch m.Metric {
	case "dpm":
		res, err := h.rankings.PlayersByDPM(ctx, q.Days)
		h.respond(w, r, res, err)
	case "dpf":
		res, err := h.rankings.PlayersByDPF(ctx, q.Days)
		h.respond(w, r, res, err)
	case "kdr":
		res, err := h.rankings.PlayersByKDR(ctx, q.Days)
		h.respond(w, r, res, err)
	default:
		res, err := h.rankings.PlayersByGames(ctx, q.Days, q.Limit)
		h.respond(w, r, res, err)
	}
}

// ModeRankings counts games per mode
// @Summary Modes by games played
// @Tags Rankings
// @Produce json
// @Param days query int false "Lookback in days, 0 for all time"
// @Success 200 {array} models.ModeCount
// @Router /api/rankings/modes [get]
func (h *Handler) ModeRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.ModesByGames(r.Context(), q.Days)
	h.respond(w, r, res, err)
}

// MutatorRankings counts games per mutator
// @Summary Mutators by games played
// @Tags Rankings
// @Produce json
// @Param days query int false "Lookback in days, 0 for all time"
// @Success 200 {array} models.MutatorCount
// @Router /api/rankings/mutators [get]
func (h *Handler) MutatorRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.MutatorsByGames(r.Context(), q.Days)
	h.respond(w, r, res, err)
}

// MapRankings orders maps by total player time
// @Summary Maps by player time
// @Tags Rankings
// @Produce json
// @Param days query int false "Lookback in days, 0 for all time"
// @Param limit query int false "Number of maps"
// @Success 200 {array} models.MapPlaytime
// @Router /api/rankings/maps [get]
func (h *Handler) MapRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, h.api.HighscoreResults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.MapsByPlayertime(r.Context(), q.Days, q.Limit)
	h.respond(w, r, res, err)
}

// ServerRankings orders servers by games hosted
// @Summary Servers by games hosted
// @Tags Rankings
// @Produce json
// @Param days query int false "Lookback in days, 0 for all time"
// @Param limit query int false "Number of servers"
// @Success 200 {array} models.HandleGames
// @Router /api/rankings/servers [get]
func (h *Handler) ServerRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, h.api.HighscoreResults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.ServersByGames(r.Context(), q.Days, q.Limit)
	h.respond(w, r, res, err)
}

// MapTopRaces lists the best race times on a map
// @Summary Best race times of a map
// @Tags Rankings
// @Produce json
// @Param name path string true "Map name"
// @Param endurance query bool false "Only endurance races"
// @Param limit query int false "Number of times"
// @Success 200 {array} models.RaceTime
// @Failure 404 {object} map[string]string
// @Router /api/maps/{name}/topraces [get]
func (h *Handler) MapTopRaces(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseWindow(r, h.api.HighscoreResults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	endurance, err := boolParam(r, "endurance")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.rankings.MapTopRaces(r.Context(), urlParam(r, "name"), endurance, q.Limit)
	h.respond(w, r, res, err)
}
