package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/redeclipse/stats-api/internal/models"
)

// PlayerWeapon is one player's counters for one weapon in one game.
type PlayerWeapon struct {
	Player       int
	PlayerHandle *string
	models.WeaponStats
}

// GameRecord is everything a game server writes for one game.
type GameRecord struct {
	Game      models.Game
	Server    models.GameServer
	Players   []models.GamePlayer
	Teams     []models.GameTeam
	FFARounds []models.GameFFARound
	Weapons   []PlayerWeapon
}

// InsertGame writes a game record in one transaction. It exists for the
// seeder and for tests; the API itself never writes.
func (d *SQLite) InsertGame(ctx context.Context, rec GameRecord) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(tx)
	exec := func(b sq.InsertBuilder) error {
		_, err := b.ExecContext(ctx)
		return err
	}

	g := rec.Game
	normal := 0
	if g.NormalWeapons {
		normal = 1
	}
	if err := exec(sb.Insert("games").
		Columns("id", `"time"`, "map", "mode", "mutators", "timeplayed", "uniqueplayers", "normalweapons").
		Values(g.ID, g.Time, g.Map, g.Mode, g.Mutators, g.TimePlayed, g.UniquePlayers, normal)); err != nil {
		return fmt.Errorf("failed to insert game %d: %w", g.ID, err)
	}

	srv := rec.Server
	if err := exec(sb.Insert("game_servers").
		Columns("game", "handle", "flags", `"desc"`, "version", "host", "port").
		Values(g.ID, srv.Handle, srv.Flags, srv.Desc, srv.Version, srv.Host, srv.Port)); err != nil {
		return fmt.Errorf("failed to insert server of game %d: %w", g.ID, err)
	}

	for _, p := range rec.Players {
		if err := exec(sb.Insert("game_players").
			Columns("game", "name", "handle", "score", "timealive", "frags", "deaths", "wid", "timeactive").
			Values(g.ID, p.Name, p.Handle, p.Score, p.TimeAlive, p.Frags, p.Deaths, p.WID, p.TimeActive)); err != nil {
			return fmt.Errorf("failed to insert player of game %d: %w", g.ID, err)
		}
		for _, c := range p.Captures {
			if err := exec(sb.Insert("game_captures").
				Columns("game", "player", "playerhandle", "capturing", "captured").
				Values(g.ID, p.WID, p.Handle, c.Capturing, c.Captured)); err != nil {
				return fmt.Errorf("failed to insert capture of game %d: %w", g.ID, err)
			}
		}
		for _, b := range p.Bombings {
			if err := exec(sb.Insert("game_bombings").
				Columns("game", "player", "playerhandle", "bombing", "bombed").
				Values(g.ID, p.WID, p.Handle, b.Bombing, b.Bombed)); err != nil {
				return fmt.Errorf("failed to insert bombing of game %d: %w", g.ID, err)
			}
		}
	}

	for _, t := range rec.Teams {
		if err := exec(sb.Insert("game_teams").
			Columns("game", "team", "score", "name").
			Values(g.ID, t.Team, t.Score, t.Name)); err != nil {
			return fmt.Errorf("failed to insert team of game %d: %w", g.ID, err)
		}
	}

	for _, r := range rec.FFARounds {
		if err := exec(sb.Insert("game_ffarounds").
			Columns("game", "player", "playerhandle", "round", "winner").
			Values(g.ID, r.Player, r.PlayerHandle, r.Round, r.Winner)); err != nil {
			return fmt.Errorf("failed to insert ffa round of game %d: %w", g.ID, err)
		}
	}

	for _, w := range rec.Weapons {
		if err := exec(sb.Insert("game_weapons").
			Columns("game", "player", "playerhandle", "weapon", "timewielded", "timeloadout",
				"damage1", "frags1", "hits1", "flakhits1", "shots1", "flakshots1",
				"damage2", "frags2", "hits2", "flakhits2", "shots2", "flakshots2").
			Values(g.ID, w.Player, w.PlayerHandle, w.Name, w.TimeWielded, w.TimeLoadout,
				w.Damage1, w.Frags1, w.Hits1, w.FlakHits1, w.Shots1, w.FlakShots1,
				w.Damage2, w.Frags2, w.Hits2, w.FlakHits2, w.Shots2, w.FlakShots2)); err != nil {
			return fmt.Errorf("failed to insert weapon of game %d: %w", g.ID, err)
		}
	}

	return tx.Commit()
}
