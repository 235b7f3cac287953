package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/redeclipse/stats-api/internal/models"
)

// GameFilter narrows game listings. Zero fields do not filter.
type GameFilter struct {
	Map          string
	ServerHandle string
	PlayerHandle string
	IDs          []int64
}

var gameColumns = []string{
	"g.id", `g."time"`, "g.map", "g.mode", "g.mutators", "g.timeplayed",
	"g.uniqueplayers", "g.normalweapons",
	"s.handle", "s.flags", `s."desc"`, "s.version", "s.host", "s.port",
}

func (f GameFilter) apply(b sq.SelectBuilder) sq.SelectBuilder {
	if f.Map != "" {
		b = b.Where(sq.Eq{"g.map": f.Map})
	}
	if f.ServerHandle != "" {
		b = b.Where(sq.Eq{"s.handle": f.ServerHandle})
	}
	if f.PlayerHandle != "" {
		b = b.Where(sq.Expr("g.id IN (SELECT game FROM game_players WHERE handle = ?)", f.PlayerHandle))
	}
	if f.IDs != nil {
		b = b.Where(sq.Eq{"g.id": f.IDs})
	}
	return b
}

func scanGame(rows Row) (models.Game, error) {
	var g models.Game
	var srv models.GameServer
	var normal int
	err := rows.Scan(
		&g.ID, &g.Time, &g.Map, &g.Mode, &g.Mutators, &g.TimePlayed,
		&g.UniquePlayers, &normal,
		&srv.Handle, &srv.Flags, &srv.Desc, &srv.Version, &srv.Host, &srv.Port,
	)
	if err != nil {
		return g, err
	}
	g.NormalWeapons = normal != 0
	srv.GameID = g.ID
	g.Server = &srv
	return g, nil
}

// CountGames counts games matching the filter.
func (s *Store) CountGames(ctx context.Context, f GameFilter) (int64, error) {
	q := f.apply(s.sb.Select("COUNT(*)").From("games g").Join("game_servers s ON s.game = g.id"))
	n, err := s.count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

// ListGames returns one page of games matching the filter, newest first.
func (s *Store) ListGames(ctx context.Context, f GameFilter, page, perPage int) ([]models.Game, error) {
	q := f.apply(s.sb.Select(gameColumns...).From("games g").Join("game_servers s ON s.game = g.id")).
		OrderBy("g.id DESC")
	if perPage > 0 {
		q = q.Limit(uint64(perPage)).Offset(offset(page, perPage))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	games := []models.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GetGame returns one game with its server.
func (s *Store) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	q := s.sb.Select(gameColumns...).From("games g").
		Join("game_servers s ON s.game = g.id").
		Where(sq.Eq{"g.id": id})
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	g, err := scanGame(s.db.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query game: %w", err)
	}
	return &g, nil
}

// GamePlayers returns the players of a game with their captures and bombings.
func (s *Store) GamePlayers(ctx context.Context, gameID int64) ([]models.GamePlayer, error) {
	q := s.sb.Select("game", "name", "handle", "score", "timealive", "frags", "deaths", "wid", "timeactive").
		From("game_players").
		Where(sq.Eq{"game": gameID}).
		OrderBy("wid")
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query game players: %w", err)
	}
	defer rows.Close()

	players := []models.GamePlayer{}
	for rows.Next() {
		var p models.GamePlayer
		if err := rows.Scan(&p.GameID, &p.Name, &p.Handle, &p.Score, &p.TimeAlive, &p.Frags, &p.Deaths, &p.WID, &p.TimeActive); err != nil {
			return nil, fmt.Errorf("failed to scan game player: %w", err)
		}
		p.Captures = []models.GameCapture{}
		p.Bombings = []models.GameBombing{}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	captures, err := s.GameCaptures(ctx, gameID)
	if err != nil {
		return nil, err
	}
	bombings, err := s.GameBombings(ctx, gameID)
	if err != nil {
		return nil, err
	}
	byWID := make(map[int]int, len(players))
	for i, p := range players {
		byWID[p.WID] = i
	}
	for _, c := range captures {
		if i, ok := byWID[c.Player]; ok {
			players[i].Captures = append(players[i].Captures, c)
		}
	}
	for _, b := range bombings {
		if i, ok := byWID[b.Player]; ok {
			players[i].Bombings = append(players[i].Bombings, b)
		}
	}
	return players, nil
}

// GameTeams returns the teams of a game.
func (s *Store) GameTeams(ctx context.Context, gameID int64) ([]models.GameTeam, error) {
	rows, err := s.query(ctx, s.sb.Select("game", "team", "score", "name").
		From("game_teams").Where(sq.Eq{"game": gameID}).OrderBy("team"))
	if err != nil {
		return nil, fmt.Errorf("failed to query game teams: %w", err)
	}
	defer rows.Close()

	teams := []models.GameTeam{}
	for rows.Next() {
		var t models.GameTeam
		if err := rows.Scan(&t.GameID, &t.Team, &t.Score, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan game team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// GameFFARounds returns the free-for-all round rows of a game.
func (s *Store) GameFFARounds(ctx context.Context, gameID int64) ([]models.GameFFARound, error) {
	rows, err := s.query(ctx, s.sb.Select("game", "player", "playerhandle", "round", "winner").
		From("game_ffarounds").Where(sq.Eq{"game": gameID}).OrderBy("round", "player"))
	if err != nil {
		return nil, fmt.Errorf("failed to query ffa rounds: %w", err)
	}
	defer rows.Close()

	out := []models.GameFFARound{}
	for rows.Next() {
		var r models.GameFFARound
		if err := rows.Scan(&r.GameID, &r.Player, &r.PlayerHandle, &r.Round, &r.Winner); err != nil {
			return nil, fmt.Errorf("failed to scan ffa round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GameCaptures returns the flag captures of a game.
func (s *Store) GameCaptures(ctx context.Context, gameID int64) ([]models.GameCapture, error) {
	rows, err := s.query(ctx, s.sb.Select("game", "player", "playerhandle", "capturing", "captured").
		From("game_captures").Where(sq.Eq{"game": gameID}))
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	out := []models.GameCapture{}
	for rows.Next() {
		var c models.GameCapture
		if err := rows.Scan(&c.GameID, &c.Player, &c.PlayerHandle, &c.Capturing, &c.Captured); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GameBombings returns the bomber ball scores of a game.
func (s *Store) GameBombings(ctx context.Context, gameID int64) ([]models.GameBombing, error) {
	rows, err := s.query(ctx, s.sb.Select("game", "player", "playerhandle", "bombing", "bombed").
		From("game_bombings").Where(sq.Eq{"game": gameID}))
	if err != nil {
		return nil, fmt.Errorf("failed to query bombings: %w", err)
	}
	defer rows.Close()

	out := []models.GameBombing{}
	for rows.Next() {
		var b models.GameBombing
		if err := rows.Scan(&b.GameID, &b.Player, &b.PlayerHandle, &b.Bombing, &b.Bombed); err != nil {
			return nil, fmt.Errorf("failed to scan bombing: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

var weaponSumColumns = []string{
	"weapon",
	sum("timewielded"), sum("timeloadout"),
	sum("damage1"), sum("frags1"), sum("hits1"), sum("flakhits1"), sum("shots1"), sum("flakshots1"),
	sum("damage2"), sum("frags2"), sum("hits2"), sum("flakhits2"), sum("shots2"), sum("flakshots2"),
}

// WeaponFilter narrows weapon sums. Zero fields do not filter.
type WeaponFilter struct {
	GameID       int64
	PlayerHandle string
	Weapons      []string
	// NormalOnly keeps games the server flagged as having normal weapons.
	NormalOnly bool
}

// WeaponSums sums the weapon counters matching the filter, one row per weapon.
func (s *Store) WeaponSums(ctx context.Context, f WeaponFilter) ([]models.WeaponStats, error) {
	q := s.sb.Select(weaponSumColumns...).From("game_weapons").GroupBy("weapon").OrderBy("weapon")
	if f.GameID != 0 {
		q = q.Where(sq.Eq{"game": f.GameID})
	}
	if f.PlayerHandle != "" {
		q = q.Where(sq.Eq{"playerhandle": f.PlayerHandle})
	}
	if f.Weapons != nil {
		q = q.Where(sq.Eq{"weapon": f.Weapons})
	}
	if f.NormalOnly {
		q = q.Join("games g ON g.id = game_weapons.game").Where(sq.Eq{"g.normalweapons": 1})
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query weapon sums: %w", err)
	}
	defer rows.Close()

	out := []models.WeaponStats{}
	for rows.Next() {
		var w models.WeaponStats
		if err := rows.Scan(&w.Name, &w.TimeWielded, &w.TimeLoadout,
			&w.Damage1, &w.Frags1, &w.Hits1, &w.FlakHits1, &w.Shots1, &w.FlakShots1,
			&w.Damage2, &w.Frags2, &w.Hits2, &w.FlakHits2, &w.Shots2, &w.FlakShots2); err != nil {
			return nil, fmt.Errorf("failed to scan weapon sums: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
