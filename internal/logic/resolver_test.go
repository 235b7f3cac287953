package logic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
	"github.com/redeclipse/stats-api/internal/store/storetest"
)

// countingStore records how often the per-game lookups reach the database
type countingStore struct {
	*store.Store
	versionCalls atomic.Int64
	fieldCalls   atomic.Int64
}

func (c *countingStore) GameVersion(ctx context.Context, id int64) (string, error) {
	c.versionCalls.Add(1)
	return c.Store.GameVersion(ctx, id)
}

func (c *countingStore) GameModeMutators(ctx context.Context, id int64) (int, int, error) {
	c.fieldCalls.Add(1)
	return c.Store.GameModeMutators(ctx, id)
}

// Red Eclipse 1.4 numbered its modes differently: raw mode 2 is deathmatch
// there and capture the flag in 1.5.
const (
	oldModeDM   = 2
	oldModeRace = 6
)

func oldRuleset(t testing.TB) *ruleset.Ruleset {
	t.Helper()
	def := ruleset.RedEclipse15()
	def.Name = "Red Eclipse 1.4"
	def.Start = "1.4.0"
	def.End = "1.4.9"
	def.Modes = map[string]int{"demo": 0, "edit": 1, "dm": 2, "ctf": 3, "dac": 4, "bb": 5, "race": 6}
	rs, err := ruleset.New(def)
	if err != nil {
		t.Fatalf("ruleset.New() error = %v", err)
	}
	return rs
}

func testRegistry(t testing.TB) *ruleset.Registry {
	t.Helper()
	reg, err := ruleset.NewDefaultRegistry(ruleset.DefaultVersion, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	reg.Register(oldRuleset(t))
	return reg
}

// newResolverFixture returns a resolver over the fixtures plus game 10, a
// 1.4 deathmatch with insta. The precache is not built yet.
func newResolverFixture(t testing.TB) (*Resolver, *countingStore, *store.SQLite) {
	t.Helper()
	s, db := storetest.Open(t)
	storetest.Insert(t, db, storetest.Game(10, "bath", oldModeDM, storetest.MutInsta, 600, "1.4.2", "alpha",
		storetest.Player(0, "Alice", "alice", 1, 600, 1, 1),
	))
	cs := &countingStore{Store: s}
	return NewResolver(cs, testRegistry(t), 2, zap.NewNop()), cs, db
}

var predicateCases = []struct {
	name    string
	gameID  int64
	mode    string
	mutator string
	want    bool
}{
	{"dm game is dm", 1, "dm", "", true},
	{"dm game is not ctf", 1, "ctf", "", false},
	{"ctf insta", 2, "", "insta", true},
	{"race timed", 3, "", "timed", true},
	{"race not endurance", 3, "", "endurance", false},
	{"race freestyle", 5, "", "freestyle", true},
	{"race endurance", 6, "", "endurance", true},
	{"unknown version uses default", 7, "dm", "", true},
	{"dm gladiator shares the timed bit", 7, "", "gladiator", true},
	{"gladiator is scoped to dm", 3, "", "gladiator", false},
	{"timed is scoped to race", 7, "", "timed", false},
	{"dac", 8, "dac", "", true},
	{"ffa", 9, "", "ffa", true},
	{"old raw mode 2 is dm", 10, "dm", "", true},
	{"old raw mode 2 is not ctf", 10, "ctf", "", false},
	{"old insta", 10, "", "insta", true},
	{"undefined mode", 1, "tdm", "", false},
	{"undefined mutator", 1, "", "zombies", false},
}

func evaluate(ctx context.Context, r *Resolver, gameID int64, mode, mutator string) (bool, error) {
	if mode != "" {
		return r.IsModeActive(ctx, gameID, mode)
	}
	return r.IsMutatorActive(ctx, gameID, mutator)
}

func TestResolverPrecacheAndColdPathAgree(t *testing.T) {
	ctx := context.Background()
	warm, warmStore, _ := newResolverFixture(t)
	if err := warm.BuildPrecache(ctx); err != nil {
		t.Fatalf("BuildPrecache() error = %v", err)
	}
	if warm.Watermark() != 10 {
		t.Errorf("Watermark() = %d, want 10", warm.Watermark())
	}
	cold, _, _ := newResolverFixture(t)

	for _, tt := range predicateCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluate(ctx, warm, tt.gameID, tt.mode, tt.mutator)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("precache = %v, want %v", got, tt.want)
			}
			got, err = evaluate(ctx, cold, tt.gameID, tt.mode, tt.mutator)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("cold path = %v, want %v", got, tt.want)
			}
		})
	}

	// Only the two undefined predicates on game 1 fall through, and the
	// second of those is served from the per-game cache
	if n := warmStore.fieldCalls.Load(); n != 1 {
		t.Errorf("precached resolver made %d GameModeMutators calls, want 1", n)
	}
}

func TestResolverAboveWatermark(t *testing.T) {
	ctx := context.Background()
	r, cs, db := newResolverFixture(t)
	if err := r.BuildPrecache(ctx); err != nil {
		t.Fatal(err)
	}

	storetest.Insert(t, db, storetest.Game(11, "speedway", oldModeRace, storetest.MutGSP1, 300, "1.4.2", "alpha",
		storetest.Player(0, "Alice", "alice", 3000, 300, 0, 0),
	))

	isRace, err := r.IsModeActive(ctx, 11, "race")
	if err != nil || !isRace {
		t.Fatalf("IsModeActive(11, race) = %v, %v; want true", isRace, err)
	}
	if cs.fieldCalls.Load() != 1 || cs.versionCalls.Load() != 1 {
		t.Errorf("cold path calls = %d fields, %d versions; want 1, 1", cs.fieldCalls.Load(), cs.versionCalls.Load())
	}

	timed, err := r.IsMutatorActive(ctx, 11, "timed")
	if err != nil || !timed {
		t.Errorf("IsMutatorActive(11, timed) = %v, %v; want true", timed, err)
	}
	if cs.fieldCalls.Load() != 1 || cs.versionCalls.Load() != 1 {
		t.Errorf("second lookup reached the database: %d fields, %d versions", cs.fieldCalls.Load(), cs.versionCalls.Load())
	}

	normal, err := r.IsNormalWeapons(ctx, 11)
	if err != nil || normal {
		t.Errorf("IsNormalWeapons(11) = %v, %v; want false", normal, err)
	}
}

func TestResolverIsNormalWeapons(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newResolverFixture(t)
	if err := r.BuildPrecache(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		gameID int64
		want   bool
	}{
		{1, true},   // plain dm
		{2, false},  // insta
		{3, false},  // race
		{7, false},  // gladiator
		{8, true},   // dac
		{9, true},   // ffa is not a weapon mutator
		{10, false}, // 1.4 insta
	}
	for _, tt := range tests {
		got, err := r.IsNormalWeapons(ctx, tt.gameID)
		if err != nil {
			t.Fatalf("IsNormalWeapons(%d) error = %v", tt.gameID, err)
		}
		if got != tt.want {
			t.Errorf("IsNormalWeapons(%d) = %v, want %v", tt.gameID, got, tt.want)
		}
	}
}

func TestResolverUnresolvable(t *testing.T) {
	ctx := context.Background()

	t.Run("missing game", func(t *testing.T) {
		r, _, _ := newResolverFixture(t)
		if err := r.BuildPrecache(ctx); err != nil {
			t.Fatal(err)
		}
		_, err := r.IsModeActive(ctx, 99, "dm")
		if !errors.Is(err, ErrUnresolvable) || !errors.Is(err, ErrNotFound) {
			t.Errorf("IsModeActive(99) error = %v, want ErrUnresolvable and ErrNotFound", err)
		}
	})

	t.Run("game without server row", func(t *testing.T) {
		r, _, db := newResolverFixture(t)
		if _, err := db.DB.ExecContext(ctx,
			`INSERT INTO games (id, "time", map, mode, mutators, timeplayed, uniqueplayers) VALUES (12, 0, 'bath', 5, 0, 60, 1)`,
		); err != nil {
			t.Fatal(err)
		}
		if err := r.BuildPrecache(ctx); err != nil {
			t.Fatal(err)
		}
		_, err := r.IsModeActive(ctx, 12, "dm")
		if !errors.Is(err, ErrUnresolvable) {
			t.Errorf("IsModeActive(12) error = %v, want ErrUnresolvable", err)
		}
	})

	t.Run("default version unmatched", func(t *testing.T) {
		s, _ := storetest.Open(t)
		reg := ruleset.NewRegistry("9.9", zap.NewNop())
		rs, err := ruleset.New(ruleset.RedEclipse15())
		if err != nil {
			t.Fatal(err)
		}
		reg.Register(rs)
		r := NewResolver(s, reg, 1, zap.NewNop())

		if ok, err := r.IsModeActive(ctx, 1, "dm"); err != nil || !ok {
			t.Errorf("IsModeActive(1) = %v, %v; want true", ok, err)
		}
		_, err = r.IsModeActive(ctx, 7, "dm")
		if !errors.Is(err, ErrUnresolvable) || !errors.Is(err, ruleset.ErrNoRuleset) {
			t.Errorf("IsModeActive(7) error = %v, want ErrUnresolvable", err)
		}
		if err := r.BuildPrecache(ctx); !errors.Is(err, ruleset.ErrNoRuleset) {
			t.Errorf("BuildPrecache() error = %v, want ErrNoRuleset", err)
		}
	})
}

func TestResolverDescribe(t *testing.T) {
	ctx := context.Background()
	r, cs, _ := newResolverFixture(t)

	g, err := cs.GetGame(ctx, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Describe(ctx, g); err != nil {
		t.Fatal(err)
	}
	if g.ModeName != "race" || g.ModeLongName != "Race" {
		t.Errorf("mode = %q (%q)", g.ModeName, g.ModeLongName)
	}
	if len(g.MutatorNames) != 2 || g.MutatorNames[0] != "timed" || g.MutatorNames[1] != "endurance" {
		t.Errorf("MutatorNames = %v", g.MutatorNames)
	}
	if cs.fieldCalls.Load() != 0 || cs.versionCalls.Load() != 0 {
		t.Errorf("Describe reached the database for a loaded game")
	}

	short, err := r.Mutators(ctx, 2, true)
	if err != nil || len(short) != 1 || short[0] != "in" {
		t.Errorf("Mutators(2, short) = %v, %v", short, err)
	}
	name, err := r.ModeName(ctx, 10)
	if err != nil || name != "dm" {
		t.Errorf("ModeName(10) = %q, %v", name, err)
	}
}

func TestResolverRemember(t *testing.T) {
	ctx := context.Background()
	r, cs, _ := newResolverFixture(t)
	r.Remember(models.Game{ID: 4, Mode: storetest.ModeRace, Mutators: storetest.MutGSP1, Server: &models.GameServer{Version: "1.5.6"}})

	ok, err := r.IsMutatorActive(ctx, 4, "timed")
	if err != nil || !ok {
		t.Errorf("IsMutatorActive(4, timed) = %v, %v", ok, err)
	}
	if cs.fieldCalls.Load() != 0 || cs.versionCalls.Load() != 0 {
		t.Errorf("remembered game reached the database")
	}
}

// cancellingStore cancels the build context once the versions are loaded
type cancellingStore struct {
	*store.Store
	cancel context.CancelFunc
}

func (c *cancellingStore) GameVersions(ctx context.Context) (map[int64]string, error) {
	versions, err := c.Store.GameVersions(ctx)
	c.cancel()
	return versions, err
}

func TestResolverPrecacheCancelled(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewResolver(&cancellingStore{Store: s, cancel: cancel}, testRegistry(t), 2, zap.NewNop())
	err := r.BuildPrecache(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("BuildPrecache() error = %v, want context.Canceled", err)
	}
	if w := r.Watermark(); w != 0 {
		t.Errorf("Watermark() = %d after a failed build, want 0", w)
	}
}
