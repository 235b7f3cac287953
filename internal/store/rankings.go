package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/redeclipse/stats-api/internal/models"
)

// RaceRows returns every completed race result on a map, best score first.
// Ties keep the earlier game first.
func (s *Store) RaceRows(ctx context.Context, mapName string) ([]models.RaceTime, error) {
	q := s.sb.Select("g.id", `g."time"`, "p.score", "p.name", "p.handle").
		From("games g").
		Join("game_players p ON p.game = g.id").
		Where(sq.Eq{"g.map": mapName}).
		Where(sq.Gt{"p.score": 0}).
		OrderBy("p.score ASC", "g.id ASC")
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query races: %w", err)
	}
	defer rows.Close()

	out := []models.RaceTime{}
	for rows.Next() {
		var r models.RaceTime
		if err := rows.Scan(&r.GameID, &r.Time, &r.Score, &r.Name, &r.Handle); err != nil {
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WeaponGameRow sums one weapon's counters within one game.
type WeaponGameRow struct {
	GameID      int64
	Weapon      string
	TimeWielded int64
	TimeLoadout int64
	Damage      int64
}

// WeaponGameRows sums the listed weapons per game from firstGame on.
func (s *Store) WeaponGameRows(ctx context.Context, firstGame int64, weapons []string) ([]WeaponGameRow, error) {
	q := s.sb.Select("game", "weapon", sum("timewielded"), sum("timeloadout"), sum("damage1 + damage2")).
		From("game_weapons").
		Where(sq.GtOrEq{"game": firstGame}).
		Where(sq.Eq{"weapon": weapons}).
		GroupBy("game", "weapon")
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query weapon rows: %w", err)
	}
	defer rows.Close()

	out := []WeaponGameRow{}
	for rows.Next() {
		var r WeaponGameRow
		if err := rows.Scan(&r.GameID, &r.Weapon, &r.TimeWielded, &r.TimeLoadout, &r.Damage); err != nil {
			return nil, fmt.Errorf("failed to scan weapon row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PlayerGameRow is one handle's line in one multiplayer game.
type PlayerGameRow struct {
	GameID    int64
	Handle    string
	TimeAlive int64
	Frags     int64
	Deaths    int64
}

// PlayerGameRows returns the registered players of games with more than one
// unique player, from firstGame on.
func (s *Store) PlayerGameRows(ctx context.Context, firstGame int64) ([]PlayerGameRow, error) {
	q := s.sb.Select("p.game", "p.handle", "p.timealive", "p.frags", "p.deaths").
		From("game_players p").
		Join("games g ON g.id = p.game").
		Where(sq.GtOrEq{"p.game": firstGame}).
		Where(sq.And{sq.NotEq{"p.handle": nil}, sq.NotEq{"p.handle": ""}}).
		Where(sq.Gt{"g.uniqueplayers": 1})
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query player rows: %w", err)
	}
	defer rows.Close()

	out := []PlayerGameRow{}
	for rows.Next() {
		var r PlayerGameRow
		if err := rows.Scan(&r.GameID, &r.Handle, &r.TimeAlive, &r.Frags, &r.Deaths); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PlayerDamageRow is the damage one handle dealt in one game.
type PlayerDamageRow struct {
	GameID int64
	Handle string
	Damage int64
}

// PlayerDamageRows sums damage per game and handle for games with more than
// one unique player, leaving out the excluded weapons.
func (s *Store) PlayerDamageRows(ctx context.Context, firstGame int64, exclude []string) ([]PlayerDamageRow, error) {
	q := s.sb.Select("w.game", "w.playerhandle", sum("w.damage1 + w.damage2")).
		From("game_weapons w").
		Join("games g ON g.id = w.game").
		Where(sq.GtOrEq{"w.game": firstGame}).
		Where(sq.And{sq.NotEq{"w.playerhandle": nil}, sq.NotEq{"w.playerhandle": ""}}).
		Where(sq.Gt{"g.uniqueplayers": 1}).
		GroupBy("w.game", "w.playerhandle")
	if len(exclude) > 0 {
		q = q.Where(sq.NotEq{"w.weapon": exclude})
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query player damage rows: %w", err)
	}
	defer rows.Close()

	out := []PlayerDamageRow{}
	for rows.Next() {
		var r PlayerDamageRow
		if err := rows.Scan(&r.GameID, &r.Handle, &r.Damage); err != nil {
			return nil, fmt.Errorf("failed to scan player damage row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MapsByPlayertime ranks maps by the time players were active on them.
func (s *Store) MapsByPlayertime(ctx context.Context, firstGame int64, limit int) ([]models.MapPlaytime, error) {
	return s.mapPlaytime(ctx, sq.GtOrEq{"g.id": firstGame}, limit)
}

// PlayerTopMaps ranks the maps of the listed games by a player's active time.
func (s *Store) PlayerTopMaps(ctx context.Context, handle string, gameIDs []int64, limit int) ([]models.MapPlaytime, error) {
	return s.mapPlaytime(ctx, sq.Eq{"p.handle": handle, "g.id": gameIDs}, limit)
}

func (s *Store) mapPlaytime(ctx context.Context, where sq.Sqlizer, limit int) ([]models.MapPlaytime, error) {
	q := s.sb.Select("g.map", sum("p.timeactive"), "COUNT(DISTINCT g.id)").
		From("games g").
		Join("game_players p ON p.game = g.id").
		Where(where).
		GroupBy("g.map").
		OrderBy("2 DESC", "g.map")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query map playtime: %w", err)
	}
	defer rows.Close()

	out := []models.MapPlaytime{}
	for rows.Next() {
		var m models.MapPlaytime
		if err := rows.Scan(&m.Map, &m.PlayerTime, &m.Games); err != nil {
			return nil, fmt.Errorf("failed to scan map playtime: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PlayersByGames ranks player handles by games played.
func (s *Store) PlayersByGames(ctx context.Context, firstGame int64, limit int) ([]models.HandleGames, error) {
	q := s.sb.Select("handle", "COUNT(*)").
		From("game_players").
		Where(sq.GtOrEq{"game": firstGame}).
		Where(hasHandle).
		GroupBy("handle").
		OrderBy("2 DESC", "handle")
	return s.handleGames(ctx, q, limit)
}

// ServersByGames ranks server handles by games hosted.
func (s *Store) ServersByGames(ctx context.Context, firstGame int64, limit int) ([]models.HandleGames, error) {
	q := s.sb.Select("handle", "COUNT(*)").
		From("game_servers").
		Where(sq.GtOrEq{"game": firstGame}).
		GroupBy("handle").
		OrderBy("2 DESC", "handle")
	return s.handleGames(ctx, q, limit)
}

func (s *Store) handleGames(ctx context.Context, q sq.SelectBuilder, limit int) ([]models.HandleGames, error) {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query handle ranking: %w", err)
	}
	defer rows.Close()

	out := []models.HandleGames{}
	for rows.Next() {
		var h models.HandleGames
		if err := rows.Scan(&h.Handle, &h.Games); err != nil {
			return nil, fmt.Errorf("failed to scan handle ranking: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ActivityRows returns the end time, duration and player count of every game
// that ended at or after since.
func (s *Store) ActivityRows(ctx context.Context, since int64) ([]models.ActivityRow, error) {
	q := s.sb.Select(`"time"`, "timeplayed", "uniqueplayers").
		From("games").
		Where(sq.GtOrEq{`"time"`: since}).
		OrderBy(`"time"`)
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	out := []models.ActivityRow{}
	for rows.Next() {
		var r models.ActivityRow
		if err := rows.Scan(&r.Time, &r.TimePlayed, &r.UniquePlayers); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
