package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
)

// Config
var (
	maps    = []string{"bath", "dust", "speedway", "canyon", "deadsimple", "echo", "ghost", "mist"}
	servers = []string{"alpha", "beta", "gamma", "delta"}
	players = []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi", "ivan", "judy"}
)

func main() {
	out := flag.String("out", "stats.sqlite", "SQLite file to write")
	games := flag.Int("games", 500, "number of games to generate")
	days := flag.Int("days", 60, "spread the games over this many days before now")
	seed := flag.Uint64("seed", 1, "random seed")
	version := flag.String("version", "1.5.8", "server version written into every game")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(*out, *games, *days, *seed, *version, sugar); err != nil {
		sugar.Errorw("Seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(out string, games, days int, seed uint64, version string, logger *zap.SugaredLogger) error {
	ctx := context.Background()

	reg, err := ruleset.NewDefaultRegistry(version, zap.NewNop())
	if err != nil {
		return err
	}
	rs, err := reg.Default()
	if err != nil {
		return err
	}

	db, err := store.OpenSQLite(out)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	g := &generator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		rs:      rs,
		version: version,
		end:     time.Now().Unix(),
		span:    int64(days) * 86400,
	}
	for i := 1; i <= games; i++ {
		if err := db.InsertGame(ctx, g.game(int64(i), games)); err != nil {
			return err
		}
		if i%100 == 0 {
			logger.Infow("Seeding progress", "games", i)
		}
	}
	logger.Infow("Seeded stats database", "path", out, "games", games, "days", days)
	return nil
}

type generator struct {
	rng     *rand.Rand
	rs      *ruleset.Ruleset
	version string
	end     int64
	span    int64
}

func (g *generator) pick(list []string) string { return list[g.rng.IntN(len(list))] }

// game builds record id of n. Games are spread evenly over the span so ids
// grow with end time.
func (g *generator) game(id int64, n int) store.GameRecord {
	modeName := g.pick(g.rs.ModeNames())
	mode, _ := g.rs.ModeID(modeName)

	mutators := 0
	for _, m := range g.rs.BaseMutators() {
		if g.rng.IntN(8) == 0 {
			mutators |= m.Mask
		}
	}
	if gsp := g.rs.GSPMutators(modeName); len(gsp) > 0 && g.rng.IntN(3) == 0 {
		mutators |= gsp[g.rng.IntN(len(gsp))].Mask
	}

	played := int64(300 + g.rng.IntN(900))
	end := g.end - g.span + g.span*id/int64(n)
	roster := g.rng.Perm(len(players))[:2+g.rng.IntN(5)]

	rec := store.GameRecord{
		Game: models.Game{
			ID:            id,
			Time:          end,
			Map:           g.pick(maps),
			Mode:          mode,
			Mutators:      mutators,
			TimePlayed:    played,
			UniquePlayers: len(roster),
			NormalWeapons: g.rs.IsNormalWeapons(mode, mutators),
		},
		Server: models.GameServer{
			Handle:  g.pick(servers),
			Desc:    "Seeded server",
			Version: g.version,
			Host:    "127.0.0.1",
			Port:    28801,
		},
	}

	for wid, idx := range roster {
		handle := players[idx]
		alive := played - int64(g.rng.IntN(60))
		frags := int64(g.rng.IntN(30))
		rec.Players = append(rec.Players, models.GamePlayer{
			Name:       handle,
			Handle:     &handle,
			Score:      frags + int64(g.rng.IntN(10)),
			TimeAlive:  alive,
			TimeActive: alive,
			Frags:      frags,
			Deaths:     int64(g.rng.IntN(30)),
			WID:        wid,
		})
		for _, w := range g.rs.Weapons() {
			if g.rng.IntN(3) != 0 {
				continue
			}
			wielded := int64(g.rng.IntN(int(alive) + 1))
			if g.rs.IsNotWielded(w) {
				wielded = 0
			}
			rec.Weapons = append(rec.Weapons, store.PlayerWeapon{
				Player:       wid,
				PlayerHandle: &handle,
				WeaponStats: models.WeaponStats{
					Name:        w,
					TimeWielded: wielded,
					TimeLoadout: alive,
					Damage1:     int64(g.rng.IntN(2000)),
					Frags1:      int64(g.rng.IntN(10)),
					Shots1:      int64(g.rng.IntN(200)),
					Hits1:       int64(g.rng.IntN(100)),
					Damage2:     int64(g.rng.IntN(500)),
				},
			})
		}
	}

	if g.rs.IsMutatorActive(mode, mutators, "ffa") || modeName == "race" {
		return rec
	}
	for team := 1; team <= 2; team++ {
		rec.Teams = append(rec.Teams, models.GameTeam{
			Team:  team,
			Score: int64(g.rng.IntN(10)),
			Name:  fmt.Sprintf("team%d", team),
		})
	}
	return rec
}
