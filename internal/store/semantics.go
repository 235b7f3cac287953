package store

import (
	"context"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"

	"github.com/redeclipse/stats-api/internal/ruleset"
)

// MaxGameID returns the highest game id, or 0 for an empty database.
func (s *Store) MaxGameID(ctx context.Context) (int64, error) {
	var id int64
	err := s.queryRow(ctx, s.sb.Select("CAST(COALESCE(MAX(id), 0) AS BIGINT)").From("games"), &id)
	if err != nil {
		return 0, fmt.Errorf("failed to query max game id: %w", err)
	}
	return id, nil
}

// FirstGameSince returns the lowest id of games recorded at or after since.
// Without such games it returns math.MaxInt64 so that id >= filters match
// nothing.
func (s *Store) FirstGameSince(ctx context.Context, since int64) (int64, error) {
	var id *int64
	q := s.sb.Select("MIN(id)").From("games").Where(sq.GtOrEq{`"time"`: since})
	if err := s.queryRow(ctx, q, &id); err != nil {
		return 0, fmt.Errorf("failed to query first game: %w", err)
	}
	if id == nil {
		return math.MaxInt64, nil
	}
	return *id, nil
}

// GameIDsSince lists game ids from firstGame on, ascending.
func (s *Store) GameIDsSince(ctx context.Context, firstGame int64) ([]int64, error) {
	ids, err := s.queryIDs(ctx, s.sb.Select("id").From("games").
		Where(sq.GtOrEq{"id": firstGame}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query game ids: %w", err)
	}
	return ids, nil
}

// GameVersions maps every game to the version its server reported.
func (s *Store) GameVersions(ctx context.Context) (map[int64]string, error) {
	rows, err := s.query(ctx, s.sb.Select("game", "version").From("game_servers"))
	if err != nil {
		return nil, fmt.Errorf("failed to query game versions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var version string
		if err := rows.Scan(&id, &version); err != nil {
			return nil, fmt.Errorf("failed to scan game version: %w", err)
		}
		out[id] = version
	}
	return out, rows.Err()
}

// GameVersion returns the server version of one game.
func (s *Store) GameVersion(ctx context.Context, gameID int64) (string, error) {
	var version string
	err := s.queryRow(ctx, s.sb.Select("version").From("game_servers").Where(sq.Eq{"game": gameID}), &version)
	if isNoRows(err) {
		return "", fmt.Errorf("version of game %d: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query game version: %w", err)
	}
	return version, nil
}

// GameModeMutators returns the raw mode and mutator mask of one game.
func (s *Store) GameModeMutators(ctx context.Context, gameID int64) (int, int, error) {
	var mode, mutators int
	err := s.queryRow(ctx, s.sb.Select("mode", "mutators").From("games").Where(sq.Eq{"id": gameID}), &mode, &mutators)
	if isNoRows(err) {
		return 0, 0, fmt.Errorf("game %d: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query game mode: %w", err)
	}
	return mode, mutators, nil
}

// GameIDsByMode lists games played under one of versions with the raw mode.
func (s *Store) GameIDsByMode(ctx context.Context, versions []string, mode int) ([]int64, error) {
	q := s.sb.Select("g.id").From("games g").
		Join("game_servers s ON s.game = g.id").
		Where(sq.Eq{"s.version": versions}).
		Where(sq.Eq{"g.mode": mode})
	ids, err := s.queryIDs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games by mode: %w", err)
	}
	return ids, nil
}

// GameIDsByMutator lists games played under one of versions where any of the
// conditions holds.
func (s *Store) GameIDsByMutator(ctx context.Context, versions []string, conds []ruleset.MutatorCondition) ([]int64, error) {
	if len(conds) == 0 {
		return []int64{}, nil
	}

	match := sq.Or{}
	for _, c := range conds {
		bit := sq.Expr("(g.mutators & ?) <> 0", c.Mask)
		if c.Mode == ruleset.AnyMode {
			match = append(match, bit)
		} else {
			match = append(match, sq.And{sq.Eq{"g.mode": c.Mode}, bit})
		}
	}

	q := s.sb.Select("g.id").From("games g").
		Join("game_servers s ON s.game = g.id").
		Where(sq.Eq{"s.version": versions}).
		Where(match)
	ids, err := s.queryIDs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games by mutator: %w", err)
	}
	return ids, nil
}
