package logic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/cache"
	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
)

// Cache lifetimes of the leaderboards. Weapon sums move slowly.
const (
	weaponsTTL       = 15 * time.Minute
	mapsTTL          = 3 * time.Minute
	playerDamageTTL  = 5 * time.Minute
	defaultRankedTTL = time.Minute
)

// Modes whose games count towards kill/death ratios
var competitiveModes = []string{"bb", "ctf", "dac", "dm"}

// Modes left out of popularity counts
var administrativeModes = map[string]bool{"demo": true, "edit": true}

type raceQuery struct {
	Map       string
	Endurance bool
	Limit     int
}

type limitQuery struct {
	Days  int
	Limit int
}

type weaponSum struct {
	Weapon  string
	Wielded int64
	Time    int64
	Damage  int64
}

type playerDamage struct {
	DPM []models.PlayerRank
	DPF []models.PlayerRank
}

type rankingService struct {
	store     RankingStore
	semantics GameSemantics
	registry  *ruleset.Registry
	logger    *zap.SugaredLogger
	now       func() time.Time

	topRaces      func(context.Context, raceQuery) ([]models.RaceTime, error)
	weaponSums    func(context.Context, int) ([]weaponSum, error)
	playerDamage  func(context.Context, int) (*playerDamage, error)
	playersKDR    func(context.Context, int) ([]models.PlayerRank, error)
	modeCounts    func(context.Context, int) ([]models.ModeCount, error)
	mutatorCounts func(context.Context, int) ([]models.MutatorCount, error)
	mapPlaytime   func(context.Context, limitQuery) ([]models.MapPlaytime, error)
	playerGames   func(context.Context, limitQuery) ([]models.HandleGames, error)
	serverGames   func(context.Context, limitQuery) ([]models.HandleGames, error)
}

func daysKey(days int) string      { return fmt.Sprint(days) }
func limitKey(q limitQuery) string { return fmt.Sprintf("%d:%d", q.Days, q.Limit) }
func raceKey(q raceQuery) string   { return fmt.Sprintf("%s:%t:%d", q.Map, q.Endurance, q.Limit) }

// NewRankingService creates the leaderboard service. Results are memoized in
// c; a nil cache computes every call.
func NewRankingService(s RankingStore, semantics GameSemantics, registry *ruleset.Registry, c *cache.Cache, logger *zap.Logger) RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &rankingService{
		store:     s,
		semantics: semantics,
		registry:  registry,
		logger:    logger.Sugar(),
		now:       time.Now,
	}
	r.topRaces = cache.Wrap(c, "topraces", defaultRankedTTL, raceKey, r.computeTopRaces)
	r.weaponSums = cache.Wrap(c, "weapons", weaponsTTL, daysKey, r.computeWeaponSums)
	r.playerDamage = cache.Wrap(c, "player_damage", playerDamageTTL, daysKey, r.computePlayerDamage)
	r.playersKDR = cache.Wrap(c, "player_kdr", defaultRankedTTL, daysKey, r.computePlayersKDR)
	r.modeCounts = cache.Wrap(c, "modes", defaultRankedTTL, daysKey, r.computeModeCounts)
	r.mutatorCounts = cache.Wrap(c, "mutators", defaultRankedTTL, daysKey, r.computeMutatorCounts)
	r.mapPlaytime = cache.Wrap(c, "maps", mapsTTL, limitKey, func(ctx context.Context, q limitQuery) ([]models.MapPlaytime, error) {
		first, err := r.window(ctx, q.Days)
		if err != nil {
			return nil, err
		}
		return r.store.MapsByPlayertime(ctx, first, q.Limit)
	})
	r.playerGames = cache.Wrap(c, "player_games", defaultRankedTTL, limitKey, func(ctx context.Context, q limitQuery) ([]models.HandleGames, error) {
		first, err := r.window(ctx, q.Days)
		if err != nil {
			return nil, err
		}
		return r.store.PlayersByGames(ctx, first, q.Limit)
	})
	r.serverGames = cache.Wrap(c, "server_games", defaultRankedTTL, limitKey, func(ctx context.Context, q limitQuery) ([]models.HandleGames, error) {
		first, err := r.window(ctx, q.Days)
		if err != nil {
			return nil, err
		}
		return r.store.ServersByGames(ctx, first, q.Limit)
	})
	return r
}

// window returns the first game id of the last days days; 0 for all time.
func (r *rankingService) window(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	since := r.now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	return r.store.FirstGameSince(ctx, since)
}

// verdicts memoizes a per-game predicate for the length of one computation
type verdicts struct {
	fn   func(ctx context.Context, gameID int64) (bool, error)
	seen map[int64]bool
}

func newVerdicts(fn func(ctx context.Context, gameID int64) (bool, error)) *verdicts {
	return &verdicts{fn: fn, seen: make(map[int64]bool)}
}

func (v *verdicts) check(ctx context.Context, gameID int64) (bool, error) {
	if ok, done := v.seen[gameID]; done {
		return ok, nil
	}
	ok, err := v.fn(ctx, gameID)
	if err != nil {
		return false, err
	}
	v.seen[gameID] = ok
	return ok, nil
}

// MapTopRaces returns the best timed race per player on a map
func (r *rankingService) MapTopRaces(ctx context.Context, mapName string, endurance bool, limit int) ([]models.RaceTime, error) {
	return r.topRaces(ctx, raceQuery{Map: mapName, Endurance: endurance, Limit: limit})
}

func (r *rankingService) computeTopRaces(ctx context.Context, q raceQuery) ([]models.RaceTime, error) {
	exists, err := r.store.MapExists(ctx, q.Map)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("map %q: %w", q.Map, ErrNotFound)
	}

	rows, err := r.store.RaceRows(ctx, q.Map)
	if err != nil {
		return nil, err
	}

	qualifies := newVerdicts(func(ctx context.Context, id int64) (bool, error) {
		required := []string{"timed"}
		if q.Endurance {
			required = append(required, "endurance")
		}
		race, err := r.semantics.IsModeActive(ctx, id, "race")
		if err != nil || !race {
			return false, err
		}
		for _, m := range required {
			active, err := r.semantics.IsMutatorActive(ctx, id, m)
			if err != nil || !active {
				return false, err
			}
		}
		freestyle, err := r.semantics.IsMutatorActive(ctx, id, "freestyle")
		return !freestyle, err
	})

	// Rows arrive best first, so the first row of each player is their best
	races := []models.RaceTime{}
	players := make(map[string]bool)
	for _, row := range rows {
		if q.Limit > 0 && len(races) >= q.Limit {
			break
		}
		ok, err := qualifies.check(ctx, row.GameID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		player := row.Name
		if row.Handle != nil && *row.Handle != "" {
			player = *row.Handle
		}
		if players[player] {
			continue
		}
		players[player] = true
		races = append(races, row)
	}
	return races, nil
}

func (r *rankingService) computeWeaponSums(ctx context.Context, days int) ([]weaponSum, error) {
	rs, err := r.registry.Default()
	if err != nil {
		return nil, err
	}
	first, err := r.window(ctx, days)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.WeaponGameRows(ctx, first, rs.StandardWeapons())
	if err != nil {
		return nil, err
	}

	normal := newVerdicts(r.semantics.IsNormalWeapons)
	byName := make(map[string]*weaponSum)
	var order []string
	for _, row := range rows {
		ok, err := normal.check(ctx, row.GameID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		w, seen := byName[row.Weapon]
		if !seen {
			w = &weaponSum{Weapon: row.Weapon}
			byName[row.Weapon] = w
			order = append(order, row.Weapon)
		}
		w.Wielded += row.TimeWielded
		w.Damage += row.Damage
		if rs.IsNotWielded(row.Weapon) {
			w.Time += row.TimeLoadout
		} else {
			w.Time += row.TimeWielded
		}
	}

	sort.Strings(order)
	out := make([]weaponSum, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// WeaponsByWielded ranks standard weapons by their share of wielded time
func (r *rankingService) WeaponsByWielded(ctx context.Context, days int) ([]models.WeaponShare, error) {
	sums, err := r.weaponSums(ctx, days)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, w := range sums {
		total += w.Wielded
	}

	out := make([]models.WeaponShare, 0, len(sums))
	for _, w := range sums {
		share := 0.0
		if total > 0 {
			share = float64(w.Wielded) / float64(total)
		}
		out = append(out, models.WeaponShare{Weapon: w.Weapon, TimeWielded: w.Wielded, Share: share})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Share > out[j].Share })
	return out, nil
}

// WeaponsByDPM ranks standard weapons by damage per minute of use
func (r *rankingService) WeaponsByDPM(ctx context.Context, days int) ([]models.WeaponDPM, error) {
	sums, err := r.weaponSums(ctx, days)
	if err != nil {
		return nil, err
	}
	out := make([]models.WeaponDPM, 0, len(sums))
	for _, w := range sums {
		out = append(out, models.WeaponDPM{
			Weapon: w.Weapon,
			Damage: w.Damage,
			Time:   w.Time,
			DPM:    perMinute(w.Damage, w.Time),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DPM > out[j].DPM })
	return out, nil
}

// perMinute divides by minutes, never by less than one second
func perMinute(amount, seconds int64) float64 {
	if seconds < 1 {
		seconds = 1
	}
	return float64(amount) / (float64(seconds) / 60)
}

// minimumGames is half the average game count of the candidates
func minimumGames(players []*models.PlayerRank) float64 {
	if len(players) == 0 {
		return 0
	}
	var total int64
	for _, p := range players {
		total += p.Games
	}
	return float64(total) / float64(len(players)) / 2
}

func (r *rankingService) computePlayerDamage(ctx context.Context, days int) (*playerDamage, error) {
	rs, err := r.registry.Default()
	if err != nil {
		return nil, err
	}
	first, err := r.window(ctx, days)
	if err != nil {
		return nil, err
	}

	players, err := r.store.PlayerGameRows(ctx, first)
	if err != nil {
		return nil, err
	}
	damage, err := r.store.PlayerDamageRows(ctx, first, rs.NotWielded())
	if err != nil {
		return nil, err
	}

	normal := newVerdicts(r.semantics.IsNormalWeapons)
	byHandle := make(map[string]*models.PlayerRank)
	var order []string
	for _, row := range players {
		ok, err := normal.check(ctx, row.GameID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p, seen := byHandle[row.Handle]
		if !seen {
			p = &models.PlayerRank{Handle: row.Handle}
			byHandle[row.Handle] = p
			order = append(order, row.Handle)
		}
		p.Games++
		p.TimeAlive += row.TimeAlive
		p.Frags += row.Frags
	}
	for _, row := range damage {
		ok, err := normal.check(ctx, row.GameID)
		if err != nil {
			return nil, err
		}
		if p, seen := byHandle[row.Handle]; ok && seen {
			p.Damage += row.Damage
		}
	}

	sort.Strings(order)
	candidates := make([]*models.PlayerRank, 0, len(order))
	for _, h := range order {
		candidates = append(candidates, byHandle[h])
	}
	threshold := minimumGames(candidates)

	out := &playerDamage{DPM: []models.PlayerRank{}, DPF: []models.PlayerRank{}}
	for _, p := range candidates {
		if float64(p.Games) < threshold {
			continue
		}
		if p.TimeAlive > 0 {
			row := *p
			row.DPM = float64(p.Damage) / (float64(p.TimeAlive) / 60)
			out.DPM = append(out.DPM, row)
		}
		if p.Frags > 0 {
			row := *p
			row.DPF = float64(p.Damage) / float64(p.Frags)
			out.DPF = append(out.DPF, row)
		}
	}
	sort.SliceStable(out.DPM, func(i, j int) bool { return out.DPM[i].DPM > out.DPM[j].DPM })
	sort.SliceStable(out.DPF, func(i, j int) bool { return out.DPF[i].DPF < out.DPF[j].DPF })
	return out, nil
}

// PlayersByDPM ranks players by damage per minute alive, highest first
func (r *rankingService) PlayersByDPM(ctx context.Context, days int) ([]models.PlayerRank, error) {
	d, err := r.playerDamage(ctx, days)
	if err != nil {
		return nil, err
	}
	return d.DPM, nil
}

// PlayersByDPF ranks players by damage per frag, lowest first
func (r *rankingService) PlayersByDPF(ctx context.Context, days int) ([]models.PlayerRank, error) {
	d, err := r.playerDamage(ctx, days)
	if err != nil {
		return nil, err
	}
	return d.DPF, nil
}

// PlayersByKDR ranks players by frags per death in competitive modes
func (r *rankingService) PlayersByKDR(ctx context.Context, days int) ([]models.PlayerRank, error) {
	return r.playersKDR(ctx, days)
}

func (r *rankingService) computePlayersKDR(ctx context.Context, days int) ([]models.PlayerRank, error) {
	first, err := r.window(ctx, days)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.PlayerGameRows(ctx, first)
	if err != nil {
		return nil, err
	}

	competitive := newVerdicts(func(ctx context.Context, id int64) (bool, error) {
		for _, mode := range competitiveModes {
			active, err := r.semantics.IsModeActive(ctx, id, mode)
			if err != nil || active {
				return active, err
			}
		}
		return false, nil
	})

	byHandle := make(map[string]*models.PlayerRank)
	var order []string
	for _, row := range rows {
		ok, err := competitive.check(ctx, row.GameID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p, seen := byHandle[row.Handle]
		if !seen {
			p = &models.PlayerRank{Handle: row.Handle}
			byHandle[row.Handle] = p
			order = append(order, row.Handle)
		}
		p.Games++
		p.Frags += row.Frags
		p.Deaths += row.Deaths
	}

	sort.Strings(order)
	candidates := make([]*models.PlayerRank, 0, len(order))
	for _, h := range order {
		candidates = append(candidates, byHandle[h])
	}
	threshold := minimumGames(candidates)

	out := []models.PlayerRank{}
	for _, p := range candidates {
		if p.Deaths == 0 || float64(p.Games) < threshold {
			continue
		}
		row := *p
		row.KDR = float64(p.Frags) / float64(p.Deaths)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].KDR > out[j].KDR })
	return out, nil
}

// ModesByGames counts games per mode, most played first
func (r *rankingService) ModesByGames(ctx context.Context, days int) ([]models.ModeCount, error) {
	return r.modeCounts(ctx, days)
}

func (r *rankingService) computeModeCounts(ctx context.Context, days int) ([]models.ModeCount, error) {
	rs, err := r.registry.Default()
	if err != nil {
		return nil, err
	}
	ids, err := r.windowGames(ctx, days)
	if err != nil {
		return nil, err
	}

	out := []models.ModeCount{}
	for _, name := range rs.ModeNames() {
		if administrativeModes[name] {
			continue
		}
		n, err := countGames(ctx, ids, func(ctx context.Context, id int64) (bool, error) {
			return r.semantics.IsModeActive(ctx, id, name)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, models.ModeCount{Name: name, LongName: rs.ModeLongName(name), Games: n})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Games > out[j].Games })
	return out, nil
}

// MutatorsByGames counts games per mutator, most played first. Mutators no
// game used are left out.
func (r *rankingService) MutatorsByGames(ctx context.Context, days int) ([]models.MutatorCount, error) {
	return r.mutatorCounts(ctx, days)
}

func (r *rankingService) computeMutatorCounts(ctx context.Context, days int) ([]models.MutatorCount, error) {
	rs, err := r.registry.Default()
	if err != nil {
		return nil, err
	}
	ids, err := r.windowGames(ctx, days)
	if err != nil {
		return nil, err
	}

	out := []models.MutatorCount{}
	for _, m := range rs.Mutators() {
		n, err := countGames(ctx, ids, mutatorPredicate(r.semantics, m))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		out = append(out, models.MutatorCount{
			Name:      m.Name,
			ShortName: m.Short,
			Link:      m.Link(),
			Mode:      m.Mode,
			Games:     n,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Games > out[j].Games })
	return out, nil
}

// mutatorPredicate tests a mutator, restricted to its mode when it is scoped
func mutatorPredicate(semantics GameSemantics, m ruleset.Mutator) func(context.Context, int64) (bool, error) {
	return func(ctx context.Context, id int64) (bool, error) {
		if m.Mode != "" {
			inMode, err := semantics.IsModeActive(ctx, id, m.Mode)
			if err != nil || !inMode {
				return false, err
			}
		}
		return semantics.IsMutatorActive(ctx, id, m.Name)
	}
}

func (r *rankingService) windowGames(ctx context.Context, days int) ([]int64, error) {
	first, err := r.window(ctx, days)
	if err != nil {
		return nil, err
	}
	return r.store.GameIDsSince(ctx, first)
}

func countGames(ctx context.Context, ids []int64, pred func(context.Context, int64) (bool, error)) (int64, error) {
	var n int64
	for _, id := range ids {
		ok, err := pred(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// MapsByPlayertime ranks maps by the time players spent on them
func (r *rankingService) MapsByPlayertime(ctx context.Context, days, limit int) ([]models.MapPlaytime, error) {
	return r.mapPlaytime(ctx, limitQuery{Days: days, Limit: limit})
}

// PlayersByGames ranks players by games played
func (r *rankingService) PlayersByGames(ctx context.Context, days, limit int) ([]models.HandleGames, error) {
	return r.playerGames(ctx, limitQuery{Days: days, Limit: limit})
}

// ServersByGames ranks servers by games hosted
func (r *rankingService) ServersByGames(ctx context.Context, days, limit int) ([]models.HandleGames, error) {
	return r.serverGames(ctx, limitQuery{Days: days, Limit: limit})
}

// WeaponRankings bundles both weapon leaderboards
func (r *rankingService) WeaponRankings(ctx context.Context, days int) (*models.WeaponRankings, error) {
	wielded, err := r.WeaponsByWielded(ctx, days)
	if err != nil {
		return nil, err
	}
	dpm, err := r.WeaponsByDPM(ctx, days)
	if err != nil {
		return nil, err
	}
	return &models.WeaponRankings{Days: days, Wielded: wielded, DPM: dpm}, nil
}

// PlayerRankings bundles the player leaderboards, each cut to limit entries
func (r *rankingService) PlayerRankings(ctx context.Context, days, limit int) (*models.PlayerRankings, error) {
	d, err := r.playerDamage(ctx, days)
	if err != nil {
		return nil, err
	}
	kdr, err := r.PlayersByKDR(ctx, days)
	if err != nil {
		return nil, err
	}
	games, err := r.PlayersByGames(ctx, days, limit)
	if err != nil {
		return nil, err
	}
	return &models.PlayerRankings{
		Days:  days,
		DPM:   head(d.DPM, limit),
		DPF:   head(d.DPF, limit),
		KDR:   head(kdr, limit),
		Games: games,
	}, nil
}

// head returns at most n leading elements; n <= 0 keeps everything
func head[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
