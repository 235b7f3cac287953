package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/redeclipse/stats-api/internal/models"
)

type performanceQuery struct {
	Games int `validate:"min=0,max=1000"`
}

type gamesFunc func(ctx context.Context, key string, page int) (models.Page[models.Game], error)

// gamesOf serves the paged games of the entity named by the path parameter
func (h *Handler) gamesOf(param string, list gamesFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := h.parsePage(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		res, err := list(r.Context(), urlParam(r, param), q.Page)
		h.respond(w, r, res, err)
	}
}

// ListGames returns a page of games, newest first
// @Summary List games
// @Tags Games
// @Produce json
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.Game]
// @Router /api/games [get]
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	q, err := h.parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.browse.Games(r.Context(), q.Page)
	h.respond(w, r, res, err)
}

// GetGame returns a game with its players, teams and rounds
// @Summary Game detail
// @Tags Games
// @Produce json
// @Param id path int true "Game id"
// @Success 200 {object} models.GameDetail
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/games/{id} [get]
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(urlParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errorResponse(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	res, err := h.browse.Game(r.Context(), id)
	h.respond(w, r, res, err)
}

// ListPlayers returns a page of players
// @Summary List players
// @Tags Players
// @Produce json
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.PlayerSummary]
// @Router /api/players [get]
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	q, err := h.parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.browse.Players(r.Context(), q.Page)
	h.respond(w, r, res, err)
}

// GetPlayer returns a player's summary and recent games
// @Summary Player detail
// @Tags Players
// @Produce json
// @Param handle path string true "Player handle"
// @Success 200 {object} models.PlayerSummary
// @Failure 404 {object} map[string]string
// @Router /api/players/{handle} [get]
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Player(r.Context(), urlParam(r, "handle"))
	h.respond(w, r, res, err)
}

// PlayerGames returns a page of a player's games
// @Summary Player games
// @Tags Players
// @Produce json
// @Param handle path string true "Player handle"
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.Game]
// @Failure 404 {object} map[string]string
// @Router /api/players/{handle}/games [get]
func (h *Handler) PlayerGames(w http.ResponseWriter, r *http.Request) {
	h.gamesOf("handle", h.browse.PlayerGames)(w, r)
}

// PlayerPerformance summarises a player's recent games
// @Summary Player performance
// @Tags Players
// @Produce json
// @Param handle path string true "Player handle"
// @Param games query int false "Number of recent games, 0 for all"
// @Success 200 {object} models.PlayerPerformance
// @Failure 404 {object} map[string]string
// @Router /api/players/{handle}/performance [get]
func (h *Handler) PlayerPerformance(w http.ResponseWriter, r *http.Request) {
	games, err := intParam(r, "games", h.api.DisplayRecent)
	if err == nil {
		err = h.validate(performanceQuery{Games: games})
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.browse.PlayerPerformance(r.Context(), urlParam(r, "handle"), games)
	h.respond(w, r, res, err)
}

// ListServers returns a page of servers
// @Summary List servers
// @Tags Servers
// @Produce json
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.ServerSummary]
// @Router /api/servers [get]
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	q, err := h.parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.browse.Servers(r.Context(), q.Page)
	h.respond(w, r, res, err)
}

// GetServer returns a server's summary and recent games
// @Summary Server detail
// @Tags Servers
// @Produce json
// @Param handle path string true "Server handle"
// @Success 200 {object} models.ServerSummary
// @Failure 404 {object} map[string]string
// @Router /api/servers/{handle} [get]
func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Server(r.Context(), urlParam(r, "handle"))
	h.respond(w, r, res, err)
}

// ServerGames returns a page of a server's games
// @Summary Server games
// @Tags Servers
// @Produce json
// @Param handle path string true "Server handle"
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.Game]
// @Router /api/servers/{handle}/games [get]
func (h *Handler) ServerGames(w http.ResponseWriter, r *http.Request) {
	h.gamesOf("handle", h.browse.ServerGames)(w, r)
}

// ListMaps returns a page of maps
// @Summary List maps
// @Tags Maps
// @Produce json
// @Param page query int false "Page number from 0"
// @Param race query bool false "Only maps that hosted races"
// @Success 200 {object} models.Page[models.MapSummary]
// @Router /api/maps [get]
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	q, err := h.parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	race, err := boolParam(r, "race")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.browse.Maps(r.Context(), q.Page, race)
	h.respond(w, r, res, err)
}

// GetMap returns a map's summary, recent games and best races
// @Summary Map detail
// @Tags Maps
// @Produce json
// @Param name path string true "Map name"
// @Success 200 {object} models.MapSummary
// @Failure 404 {object} map[string]string
// @Router /api/maps/{name} [get]
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Map(r.Context(), urlParam(r, "name"))
	h.respond(w, r, res, err)
}

// MapGames returns a page of games played on a map
// @Summary Map games
// @Tags Maps
// @Produce json
// @Param name path string true "Map name"
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.Game]
// @Router /api/maps/{name}/games [get]
func (h *Handler) MapGames(w http.ResponseWriter, r *http.Request) {
	h.gamesOf("name", h.browse.MapGames)(w, r)
}

// ListModes returns every mode of the default ruleset
// @Summary List modes
// @Tags Modes
// @Produce json
// @Success 200 {array} models.ModeSummary
// @Router /api/modes [get]
func (h *Handler) ListModes(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Modes(r.Context())
	h.respond(w, r, res, err)
}

// GetMode returns a mode and its recent games
// @Summary Mode detail
// @Tags Modes
// @Produce json
// @Param name path string true "Mode name"
// @Success 200 {object} models.ModeSummary
// @Failure 404 {object} map[string]string
// @Router /api/modes/{name} [get]
func (h *Handler) GetMode(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Mode(r.Context(), urlParam(r, "name"))
	h.respond(w, r, res, err)
}

// ModeGames returns a page of games played in a mode
// @Summary Mode games
// @Tags Modes
// @Produce json
// @Param name path string true "Mode name"
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.Game]
// @Router /api/modes/{name}/games [get]
func (h *Handler) ModeGames(w http.ResponseWriter, r *http.Request) {
	h.gamesOf("name", h.browse.ModeGames)(w, r)
}

// ListMutators returns every mutator of the default ruleset
// @Summary List mutators
// @Tags Mutators
// @Produce json
// @Success 200 {array} models.MutatorSummary
// @Router /api/mutators [get]
func (h *Handler) ListMutators(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Mutators(r.Context())
	h.respond(w, r, res, err)
}

// GetMutator returns a mutator and its recent games
// @Summary Mutator detail
// @Tags Mutators
// @Produce json
// @Param name path string true "Mutator link, such as insta or race-timed"
// @Success 200 {object} models.MutatorSummary
// @Failure 404 {object} map[string]string
// @Router /api/mutators/{name} [get]
func (h *Handler) GetMutator(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Mutator(r.Context(), urlParam(r, "name"))
	h.respond(w, r, res, err)
}

// MutatorGames returns a page of games played with a mutator
// @Summary Mutator games
// @Tags Mutators
// @Produce json
// @Param name path string true "Mutator link"
// @Param page query int false "Page number from 0"
// @Success 200 {object} models.Page[models.Game]
// @Router /api/mutators/{name}/games [get]
func (h *Handler) MutatorGames(w http.ResponseWriter, r *http.Request) {
	h.gamesOf("name", h.browse.MutatorGames)(w, r)
}

// ListWeapons returns the totals of every weapon
// @Summary List weapons
// @Tags Weapons
// @Produce json
// @Success 200 {array} models.WeaponSummary
// @Router /api/weapons [get]
func (h *Handler) ListWeapons(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Weapons(r.Context())
	h.respond(w, r, res, err)
}

// GetWeapon returns one weapon's totals
// @Summary Weapon detail
// @Tags Weapons
// @Produce json
// @Param name path string true "Weapon name"
// @Success 200 {object} models.WeaponSummary
// @Failure 404 {object} map[string]string
// @Router /api/weapons/{name} [get]
func (h *Handler) GetWeapon(w http.ResponseWriter, r *http.Request) {
	res, err := h.browse.Weapon(r.Context(), urlParam(r, "name"))
	h.respond(w, r, res, err)
}
