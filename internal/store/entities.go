package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/redeclipse/stats-api/internal/models"
)

var hasHandle = sq.And{sq.NotEq{"handle": nil}, sq.NotEq{"handle": ""}}

// CountPlayers counts distinct player handles.
func (s *Store) CountPlayers(ctx context.Context) (int64, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(DISTINCT handle)").From("game_players").Where(hasHandle))
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

// ListPlayers returns one page of players, most recently active first.
func (s *Store) ListPlayers(ctx context.Context, page, perPage int) ([]models.PlayerSummary, error) {
	q := s.sb.Select("handle", "COUNT(*)", "MIN(game)", "MAX(game)").
		From("game_players").
		Where(hasHandle).
		GroupBy("handle").
		OrderBy("MAX(game) DESC", "handle")
	if perPage > 0 {
		q = q.Limit(uint64(perPage)).Offset(offset(page, perPage))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	out := []models.PlayerSummary{}
	for rows.Next() {
		var p models.PlayerSummary
		if err := rows.Scan(&p.Handle, &p.Games, &p.FirstGame, &p.LatestGame); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPlayer returns a player's summary with the name used in their latest game.
func (s *Store) GetPlayer(ctx context.Context, handle string) (*models.PlayerSummary, error) {
	p := &models.PlayerSummary{Handle: handle}
	q := s.sb.Select("COUNT(*)", "CAST(COALESCE(MIN(game), 0) AS BIGINT)", "CAST(COALESCE(MAX(game), 0) AS BIGINT)").
		From("game_players").
		Where(sq.Eq{"handle": handle})
	if err := s.queryRow(ctx, q, &p.Games, &p.FirstGame, &p.LatestGame); err != nil {
		return nil, fmt.Errorf("failed to query player: %w", err)
	}
	if p.Games == 0 {
		return nil, fmt.Errorf("player %q: %w", handle, ErrNotFound)
	}

	q = s.sb.Select("p.name", `g."time"`).
		From("game_players p").
		Join("games g ON g.id = p.game").
		Where(sq.Eq{"p.handle": handle, "p.game": p.LatestGame})
	if err := s.queryRow(ctx, q, &p.Name, &p.LatestTime); err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("failed to query player name: %w", err)
	}
	return p, nil
}

// PlayerGame is one game of a player, with the damage they dealt.
type PlayerGame struct {
	GameID     int64
	Map        string
	TimeAlive  int64
	TimeActive int64
	Frags      int64
	Deaths     int64
	Damage     int64
}

// RecentPlayerGames returns the last limit games of a player, newest first.
func (s *Store) RecentPlayerGames(ctx context.Context, handle string, limit int) ([]PlayerGame, error) {
	q := s.sb.Select("p.game", "g.map", "p.timealive", "p.timeactive", "p.frags", "p.deaths").
		From("game_players p").
		Join("games g ON g.id = p.game").
		Where(sq.Eq{"p.handle": handle}).
		OrderBy("p.game DESC").
		Limit(uint64(limit))
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query player games: %w", err)
	}
	defer rows.Close()

	games := []PlayerGame{}
	for rows.Next() {
		var g PlayerGame
		if err := rows.Scan(&g.GameID, &g.Map, &g.TimeAlive, &g.TimeActive, &g.Frags, &g.Deaths); err != nil {
			return nil, fmt.Errorf("failed to scan player game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return games, nil
	}

	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.GameID
	}
	q = s.sb.Select("game", sum("damage1 + damage2")).
		From("game_weapons").
		Where(sq.Eq{"playerhandle": handle, "game": ids}).
		GroupBy("game")
	rows, err = s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query player damage: %w", err)
	}
	defer rows.Close()

	damage := make(map[int64]int64, len(games))
	for rows.Next() {
		var id, d int64
		if err := rows.Scan(&id, &d); err != nil {
			return nil, fmt.Errorf("failed to scan player damage: %w", err)
		}
		damage[id] = d
	}
	for i := range games {
		games[i].Damage = damage[games[i].GameID]
	}
	return games, rows.Err()
}

// PlayerGameWeapons returns a player's weapon counters in one game.
func (s *Store) PlayerGameWeapons(ctx context.Context, handle string, gameID int64) ([]models.WeaponStats, error) {
	return s.WeaponSums(ctx, WeaponFilter{GameID: gameID, PlayerHandle: handle})
}

// CountServers counts distinct server handles.
func (s *Store) CountServers(ctx context.Context) (int64, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(DISTINCT handle)").From("game_servers").Where(sq.NotEq{"handle": ""}))
	if err != nil {
		return 0, fmt.Errorf("failed to count servers: %w", err)
	}
	return n, nil
}

// ListServers returns one page of servers, most recently active first.
func (s *Store) ListServers(ctx context.Context, page, perPage int) ([]models.ServerSummary, error) {
	q := s.sb.Select("handle", "COUNT(*)", "MIN(game)", "MAX(game)").
		From("game_servers").
		Where(sq.NotEq{"handle": ""}).
		GroupBy("handle").
		OrderBy("MAX(game) DESC", "handle")
	if perPage > 0 {
		q = q.Limit(uint64(perPage)).Offset(offset(page, perPage))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query servers: %w", err)
	}
	defer rows.Close()

	out := []models.ServerSummary{}
	for rows.Next() {
		var srv models.ServerSummary
		if err := rows.Scan(&srv.Handle, &srv.Games, &srv.FirstGame, &srv.LatestGame); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		out = append(out, srv)
	}
	return out, rows.Err()
}

// GetServer returns a server's summary with the details it last reported.
func (s *Store) GetServer(ctx context.Context, handle string) (*models.ServerSummary, error) {
	srv := &models.ServerSummary{Handle: handle}
	q := s.sb.Select("COUNT(*)", "CAST(COALESCE(MIN(game), 0) AS BIGINT)", "CAST(COALESCE(MAX(game), 0) AS BIGINT)").
		From("game_servers").
		Where(sq.Eq{"handle": handle})
	if err := s.queryRow(ctx, q, &srv.Games, &srv.FirstGame, &srv.LatestGame); err != nil {
		return nil, fmt.Errorf("failed to query server: %w", err)
	}
	if srv.Games == 0 {
		return nil, fmt.Errorf("server %q: %w", handle, ErrNotFound)
	}

	q = s.sb.Select(`"desc"`, "version", "host", "port").
		From("game_servers").
		Where(sq.Eq{"game": srv.LatestGame})
	if err := s.queryRow(ctx, q, &srv.Desc, &srv.Version, &srv.Host, &srv.Port); err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("failed to query server details: %w", err)
	}
	return srv, nil
}

// CountMaps counts distinct maps.
func (s *Store) CountMaps(ctx context.Context) (int64, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(DISTINCT map)").From("games"))
	if err != nil {
		return 0, fmt.Errorf("failed to count maps: %w", err)
	}
	return n, nil
}

// MapNames lists every map name, sorted.
func (s *Store) MapNames(ctx context.Context) ([]string, error) {
	names, err := s.queryStrings(ctx, s.sb.Select("DISTINCT map").From("games").OrderBy("map"))
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	return names, nil
}

// ListMaps returns one page of maps ordered by name.
func (s *Store) ListMaps(ctx context.Context, page, perPage int) ([]models.MapSummary, error) {
	q := s.sb.Select("map", "COUNT(*)", sum("timeplayed"), "MIN(id)", "MAX(id)").
		From("games").
		GroupBy("map").
		OrderBy("map")
	if perPage > 0 {
		q = q.Limit(uint64(perPage)).Offset(offset(page, perPage))
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	defer rows.Close()

	out := []models.MapSummary{}
	for rows.Next() {
		var m models.MapSummary
		if err := rows.Scan(&m.Name, &m.Games, &m.GameTime, &m.FirstGame, &m.LatestGame); err != nil {
			return nil, fmt.Errorf("failed to scan map: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMap returns a map's summary including the time players spent on it.
func (s *Store) GetMap(ctx context.Context, name string) (*models.MapSummary, error) {
	m := &models.MapSummary{Name: name}
	q := s.sb.Select("COUNT(*)", sum("timeplayed"), "CAST(COALESCE(MIN(id), 0) AS BIGINT)", "CAST(COALESCE(MAX(id), 0) AS BIGINT)").
		From("games").
		Where(sq.Eq{"map": name})
	if err := s.queryRow(ctx, q, &m.Games, &m.GameTime, &m.FirstGame, &m.LatestGame); err != nil {
		return nil, fmt.Errorf("failed to query map: %w", err)
	}
	if m.Games == 0 {
		return nil, fmt.Errorf("map %q: %w", name, ErrNotFound)
	}

	q = s.sb.Select(sum("p.timeactive")).
		From("game_players p").
		Join("games g ON g.id = p.game").
		Where(sq.Eq{"g.map": name})
	if err := s.queryRow(ctx, q, &m.PlayerTime); err != nil {
		return nil, fmt.Errorf("failed to query map player time: %w", err)
	}
	return m, nil
}

// MapExists reports whether any game was played on the map.
func (s *Store) MapExists(ctx context.Context, name string) (bool, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(*)").From("games").Where(sq.Eq{"map": name}))
	if err != nil {
		return false, fmt.Errorf("failed to query map: %w", err)
	}
	return n > 0, nil
}
