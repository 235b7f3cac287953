package store_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
	"github.com/redeclipse/stats-api/internal/store/storetest"
)

func TestSemanticQueries(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	maxID, err := s.MaxGameID(ctx)
	if err != nil || maxID != 9 {
		t.Fatalf("MaxGameID() = %d, %v; want 9", maxID, err)
	}

	versions, err := s.GameVersions(ctx)
	if err != nil {
		t.Fatalf("GameVersions() error = %v", err)
	}
	if len(versions) != 9 || versions[7] != "0.9" {
		t.Errorf("GameVersions() = %v", versions)
	}

	if _, err := s.GameVersion(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GameVersion(42) error = %v, want ErrNotFound", err)
	}

	mode, muts, err := s.GameModeMutators(ctx, 6)
	if err != nil || mode != storetest.ModeRace || muts != storetest.MutGSP1|storetest.MutGSP2 {
		t.Errorf("GameModeMutators(6) = %d, %d, %v", mode, muts, err)
	}

	all := []string{"1.5.5", "1.5.6", "1.5.7", "1.5.8", "0.9"}
	ids, err := s.GameIDsByMode(ctx, all, storetest.ModeRace)
	if err != nil {
		t.Fatal(err)
	}
	sortIDs(ids)
	if !reflect.DeepEqual(ids, []int64{3, 4, 5, 6}) {
		t.Errorf("GameIDsByMode(race) = %v", ids)
	}

	ids, err = s.GameIDsByMode(ctx, []string{"1.5.8"}, storetest.ModeDM)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []int64{1}) {
		t.Errorf("GameIDsByMode(dm, 1.5.8) = %v", ids)
	}

	tests := []struct {
		name  string
		conds []ruleset.MutatorCondition
		want  []int64
	}{
		{"base bit", []ruleset.MutatorCondition{{Mode: ruleset.AnyMode, Mask: storetest.MutInsta}}, []int64{2}},
		{"scoped bit", []ruleset.MutatorCondition{{Mode: storetest.ModeDM, Mask: storetest.MutGSP1}}, []int64{7}},
		{"either", []ruleset.MutatorCondition{
			{Mode: storetest.ModeDM, Mask: storetest.MutGSP1},
			{Mode: storetest.ModeRace, Mask: storetest.MutGSP2},
		}, []int64{6, 7}},
		{"none", nil, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := s.GameIDsByMutator(ctx, all, tt.conds)
			if err != nil {
				t.Fatal(err)
			}
			sortIDs(ids)
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("GameIDsByMutator() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestFirstGameSince(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		since int64
		want  int64
	}{
		{"everything", 0, 1},
		{"from game four", storetest.BaseTime + 4*3600, 4},
		{"future", storetest.BaseTime + 100*3600, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FirstGameSince(ctx, tt.since)
			if err != nil || got != tt.want {
				t.Errorf("FirstGameSince() = %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}

func TestGames(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	n, err := s.CountGames(ctx, store.GameFilter{Map: "bath"})
	if err != nil || n != 3 {
		t.Errorf("CountGames(bath) = %d, %v; want 3", n, err)
	}

	games, err := s.ListGames(ctx, store.GameFilter{}, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 4 || games[0].ID != 9 || games[3].ID != 6 {
		t.Errorf("ListGames() page 0 = %v", gameIDs(games))
	}

	games, err = s.ListGames(ctx, store.GameFilter{PlayerHandle: "carol"}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gameIDs(games), []int64{6, 4, 1}) {
		t.Errorf("ListGames(carol) = %v", gameIDs(games))
	}

	games, err = s.ListGames(ctx, store.GameFilter{ServerHandle: "beta"}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gameIDs(games), []int64{9, 2}) {
		t.Errorf("ListGames(beta) = %v", gameIDs(games))
	}

	g, err := s.GetGame(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if g.Map != "bath" || g.NormalWeapons || g.Server == nil || g.Server.Version != "1.5.5" {
		t.Errorf("GetGame(2) = %+v", g)
	}

	if _, err := s.GetGame(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetGame(99) error = %v, want ErrNotFound", err)
	}
}

func TestGameRecords(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	players, err := s.GamePlayers(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 2 || len(players[0].Captures) != 1 || players[0].Captures[0].Captured != 2 {
		t.Errorf("GamePlayers(2) = %+v", players)
	}

	teams, err := s.GameTeams(ctx, 2)
	if err != nil || len(teams) != 2 || teams[0].Name != "alpha" {
		t.Errorf("GameTeams(2) = %+v, %v", teams, err)
	}

	rounds, err := s.GameFFARounds(ctx, 9)
	if err != nil || len(rounds) != 4 || !rounds[0].Winner || rounds[1].Winner {
		t.Errorf("GameFFARounds(9) = %+v, %v", rounds, err)
	}

	weapons, err := s.WeaponSums(ctx, store.WeaponFilter{GameID: 1})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, w := range weapons {
		got[w.Name] = w.Damage()
	}
	want := map[string]int64{"smg": 1500, "melee": 100, "rifle": 600}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WeaponSums(game 1) damage = %v, want %v", got, want)
	}
}

func TestEntities(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	if n, err := s.CountPlayers(ctx); err != nil || n != 4 {
		t.Errorf("CountPlayers() = %d, %v; want 4", n, err)
	}
	players, err := s.ListPlayers(ctx, 0, 0)
	if err != nil || len(players) != 4 || players[0].Handle != "alice" || players[2].Handle != "dave" {
		t.Errorf("ListPlayers() = %+v, %v", players, err)
	}

	p, err := s.GetPlayer(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Games != 6 || p.FirstGame != 1 || p.LatestGame != 9 || p.Name != "Alice" {
		t.Errorf("GetPlayer(alice) = %+v", p)
	}
	if _, err := s.GetPlayer(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetPlayer(nobody) error = %v", err)
	}

	recent, err := s.RecentPlayerGames(ctx, "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].GameID != 9 || recent[0].Damage != 800 || recent[1].GameID != 7 || recent[1].Damage != 9000 {
		t.Errorf("RecentPlayerGames(alice) = %+v", recent)
	}

	if n, err := s.CountServers(ctx); err != nil || n != 3 {
		t.Errorf("CountServers() = %d, %v", n, err)
	}
	srv, err := s.GetServer(ctx, "beta")
	if err != nil || srv.Games != 2 || srv.Version != "1.5.7" {
		t.Errorf("GetServer(beta) = %+v, %v", srv, err)
	}

	if n, err := s.CountMaps(ctx); err != nil || n != 3 {
		t.Errorf("CountMaps() = %d, %v", n, err)
	}
	m, err := s.GetMap(ctx, "bath")
	if err != nil {
		t.Fatal(err)
	}
	if m.Games != 3 || m.GameTime != 1800 || m.PlayerTime != 3900 {
		t.Errorf("GetMap(bath) = %+v", m)
	}
	if _, err := s.GetMap(ctx, "nowhere"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetMap(nowhere) error = %v", err)
	}
}

func TestRankingQueries(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	races, err := s.RaceRows(ctx, "speedway")
	if err != nil {
		t.Fatal(err)
	}
	scores := []int64{}
	for _, r := range races {
		scores = append(scores, r.Score)
	}
	if !reflect.DeepEqual(scores, []int64{100, 3900, 4000, 4500, 5000, 6000}) {
		t.Errorf("RaceRows() scores = %v", scores)
	}

	maps, err := s.MapsByPlayertime(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 3 || maps[0].Map != "bath" || maps[0].PlayerTime != 3900 || maps[1].Map != "speedway" {
		t.Errorf("MapsByPlayertime() = %+v", maps)
	}

	byGames, err := s.PlayersByGames(ctx, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(byGames) != 3 || byGames[0].Handle != "alice" || byGames[0].Games != 6 || byGames[2].Handle != "carol" {
		t.Errorf("PlayersByGames() = %+v", byGames)
	}

	servers, err := s.ServersByGames(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 3 || servers[0].Handle != "alpha" || servers[0].Games != 6 {
		t.Errorf("ServersByGames() = %+v", servers)
	}

	dmg, err := s.PlayerDamageRows(ctx, 0, []string{"melee"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range dmg {
		if r.GameID == 1 && r.Handle == "alice" && r.Damage != 1200 {
			t.Errorf("alice damage in game 1 = %d, want 1200", r.Damage)
		}
		if r.GameID == 8 {
			t.Errorf("single player game 8 should be excluded")
		}
	}

	activity, err := s.ActivityRows(ctx, storetest.BaseTime+8*3600)
	if err != nil || len(activity) != 2 || activity[1].UniquePlayers != 2 {
		t.Errorf("ActivityRows() = %+v, %v", activity, err)
	}
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func gameIDs(games []models.Game) []int64 {
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	if _, err := store.Open(ctx, "mysql", "root@/stats", zap.NewNop()); err == nil {
		t.Error("Open(mysql) succeeded, want unsupported driver error")
	}

	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "stats.sqlite"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
