// Package storetest provides an in-memory stats database with a small,
// fixed set of games for tests.
package storetest

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/store"
)

// BaseTime is the reference unix time of the fixtures, a Tuesday 22:13 UTC.
// Game n ends at BaseTime + n hours.
const BaseTime int64 = 1700000000

// Raw mode ids and mutator bits of the Red Eclipse 1.5 ruleset.
const (
	ModeBB   = 1
	ModeCTF  = 2
	ModeDAC  = 3
	ModeDM   = 5
	ModeRace = 7

	MutFFA       = 1 << 1
	MutInsta     = 1 << 3
	MutFreestyle = 1 << 10
	MutGSP1      = 1 << 15 // race timed, dm gladiator, ctf quick
	MutGSP2      = 1 << 16 // race endurance
)

// Open returns a store over a fresh in-memory database holding Fixtures().
func Open(t testing.TB) (*store.Store, *store.SQLite) {
	t.Helper()
	db := OpenEmpty(t)
	for _, rec := range Fixtures() {
		Insert(t, db, rec)
	}
	return store.New(db, sq.Question, zap.NewNop()), db
}

// OpenEmpty returns a fresh in-memory database with the schema applied.
func OpenEmpty(t testing.TB) *store.SQLite {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return db
}

// Insert writes one game record or fails the test.
func Insert(t testing.TB, db *store.SQLite, rec store.GameRecord) {
	t.Helper()
	if err := db.InsertGame(context.Background(), rec); err != nil {
		t.Fatalf("InsertGame(%d) error = %v", rec.Game.ID, err)
	}
}

func handle(h string) *string { return &h }

// Player builds a registered player line; an empty handle leaves it anonymous.
func Player(wid int, name, h string, score, timeAlive, frags, deaths int64) models.GamePlayer {
	p := models.GamePlayer{
		Name:       name,
		Score:      score,
		TimeAlive:  timeAlive,
		TimeActive: timeAlive,
		Frags:      frags,
		Deaths:     deaths,
		WID:        wid,
	}
	if h != "" {
		p.Handle = handle(h)
	}
	return p
}

// Weapon builds one player's weapon line.
func Weapon(wid int, h, weapon string, wielded, loadout, damage1, damage2 int64) store.PlayerWeapon {
	return store.PlayerWeapon{
		Player:       wid,
		PlayerHandle: handle(h),
		WeaponStats: models.WeaponStats{
			Name:        weapon,
			TimeWielded: wielded,
			TimeLoadout: loadout,
			Damage1:     damage1,
			Damage2:     damage2,
		},
	}
}

// Game builds a game record ending n hours after BaseTime.
func Game(id int64, mapName string, mode, mutators int, timePlayed int64, version, server string, players ...models.GamePlayer) store.GameRecord {
	return store.GameRecord{
		Game: models.Game{
			ID:            id,
			Time:          BaseTime + id*3600,
			Map:           mapName,
			Mode:          mode,
			Mutators:      mutators,
			TimePlayed:    timePlayed,
			UniquePlayers: len(players),
			NormalWeapons: true,
		},
		Server: models.GameServer{
			Handle:  server,
			Flags:   "",
			Desc:    server + " server",
			Version: version,
			Host:    "127.0.0.1",
			Port:    28801,
		},
		Players: players,
	}
}

// Fixtures returns nine games over three maps and four server versions,
// one of them unknown to every ruleset.
func Fixtures() []store.GameRecord {
	g1 := Game(1, "bath", ModeDM, 0, 600, "1.5.8", "alpha",
		Player(0, "Alice", "alice", 10, 600, 10, 5),
		Player(1, "Bob", "bob", 5, 600, 5, 10),
		Player(2, "Carol", "carol", 3, 300, 3, 3),
	)
	g1.Weapons = []store.PlayerWeapon{
		Weapon(0, "alice", "smg", 300, 600, 1000, 200),
		Weapon(0, "alice", "melee", 0, 600, 100, 0),
		Weapon(1, "bob", "rifle", 400, 600, 600, 0),
		Weapon(2, "carol", "smg", 200, 300, 300, 0),
	}

	g2 := Game(2, "bath", ModeCTF, MutInsta, 600, "1.5.5", "beta",
		Player(0, "Alice", "alice", 3, 600, 20, 2),
		Player(1, "Bob", "bob", 1, 600, 2, 20),
	)
	g2.Players[0].Captures = []models.GameCapture{{Capturing: 1, Captured: 2}}
	g2.Teams = []models.GameTeam{{Team: 1, Score: 3, Name: "alpha"}, {Team: 2, Score: 1, Name: "omega"}}
	g2.Weapons = []store.PlayerWeapon{
		Weapon(0, "alice", "rifle", 600, 600, 5000, 0),
		Weapon(1, "bob", "rifle", 600, 600, 500, 0),
	}

	g3 := Game(3, "speedway", ModeRace, MutGSP1, 300, "1.5.6", "alpha",
		Player(0, "Alice", "alice", 5000, 300, 0, 0),
		Player(1, "Bob", "bob", 4000, 300, 0, 0),
		Player(2, "Zed", "", 4500, 300, 0, 0),
	)
	g4 := Game(4, "speedway", ModeRace, MutGSP1, 300, "1.5.6", "alpha",
		Player(0, "Alice", "alice", 3900, 300, 0, 0),
		Player(1, "Carol", "carol", 0, 300, 0, 0),
	)
	g5 := Game(5, "speedway", ModeRace, MutGSP1|MutFreestyle, 300, "1.5.6", "alpha",
		Player(0, "Bob", "bob", 100, 300, 0, 0),
	)
	g6 := Game(6, "speedway", ModeRace, MutGSP1|MutGSP2, 300, "1.5.6", "alpha",
		Player(0, "Carol", "carol", 6000, 300, 0, 0),
	)
	for _, g := range []*store.GameRecord{&g3, &g4, &g5, &g6} {
		g.Game.NormalWeapons = false
	}
	g2.Game.NormalWeapons = false

	g7 := Game(7, "bath", ModeDM, MutGSP1, 600, "0.9", "gamma",
		Player(0, "Alice", "alice", 8, 600, 8, 2),
		Player(1, "Bob", "bob", 2, 600, 2, 8),
	)
	g7.Game.NormalWeapons = false
	g7.Weapons = []store.PlayerWeapon{Weapon(0, "alice", "sword", 600, 600, 9000, 0)}

	g8 := Game(8, "dust", ModeDAC, 0, 900, "1.5.8", "alpha",
		Player(0, "Dave", "dave", 0, 900, 0, 0),
	)
	g8.Weapons = []store.PlayerWeapon{Weapon(0, "dave", "pistol", 900, 900, 50, 0)}

	g9 := Game(9, "dust", ModeDM, MutFFA, 300, "1.5.7", "beta",
		Player(0, "Alice", "alice", 4, 300, 4, 1),
		Player(1, "Bob", "bob", 1, 300, 1, 4),
	)
	g9.FFARounds = []models.GameFFARound{
		{Player: 0, PlayerHandle: handle("alice"), Round: 1, Winner: true},
		{Player: 1, PlayerHandle: handle("bob"), Round: 1},
		{Player: 0, PlayerHandle: handle("alice"), Round: 2},
		{Player: 1, PlayerHandle: handle("bob"), Round: 2, Winner: true},
	}
	g9.Weapons = []store.PlayerWeapon{
		Weapon(0, "alice", "shotgun", 300, 300, 800, 0),
		Weapon(1, "bob", "shotgun", 300, 300, 200, 0),
	}

	return []store.GameRecord{g1, g2, g3, g4, g5, g6, g7, g8, g9}
}
