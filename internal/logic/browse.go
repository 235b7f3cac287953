package logic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/redeclipse/stats-api/internal/cache"
	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
)

const (
	vocabularyTTL = time.Minute

	// Largest id list sent in one IN clause
	idChunk = 500
)

// BrowseConfig holds the listing sizes of the browse service.
type BrowseConfig struct {
	PerPage    int
	Recent     int
	Highscores int
}

type browseService struct {
	store     BrowseStore
	semantics GameSemantics
	rankings  RankingService
	registry  *ruleset.Registry
	config    BrowseConfig
	logger    *zap.SugaredLogger

	modeGames    func(context.Context, string) ([]int64, error)
	mutatorGames func(context.Context, ruleset.Mutator) ([]int64, error)
	modeMaps     func(context.Context, string) ([]string, error)
}

// NewBrowseService creates the listing and detail service. The games and
// maps of every mode and mutator are memoized in c.
func NewBrowseService(s BrowseStore, semantics GameSemantics, rankings RankingService, registry *ruleset.Registry, c *cache.Cache, cfg BrowseConfig, logger *zap.Logger) BrowseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 25
	}
	if cfg.Recent <= 0 {
		cfg.Recent = 10
	}
	if cfg.Highscores <= 0 {
		cfg.Highscores = 10
	}
	b := &browseService{
		store:     s,
		semantics: semantics,
		rankings:  rankings,
		registry:  registry,
		config:    cfg,
		logger:    logger.Sugar(),
	}
	b.modeGames = cache.Wrap(c, "mode_games", vocabularyTTL, identity, b.computeModeGames)
	b.mutatorGames = cache.Wrap(c, "mutator_games", vocabularyTTL, ruleset.Mutator.Link, b.computeMutatorGames)
	b.modeMaps = cache.Wrap(c, "mode_maps", mapsTTL, identity, b.computeModeMaps)
	return b
}

func identity(s string) string { return s }

// pageOf cuts one page out of items
func pageOf[T any](items []T, page, perPage int) []T {
	from := page * perPage
	if from >= len(items) {
		return nil
	}
	return items[from:min(from+perPage, len(items))]
}

func clampPage(page int) int { return max(page, 0) }

func (b *browseService) describeAll(ctx context.Context, games []models.Game) error {
	for i := range games {
		if err := b.semantics.Describe(ctx, &games[i]); err != nil {
			return err
		}
	}
	return nil
}

// gamePage lists one page of games matching f
func (b *browseService) gamePage(ctx context.Context, f store.GameFilter, page int) (models.Page[models.Game], error) {
	page = clampPage(page)
	total, err := b.store.CountGames(ctx, f)
	if err != nil {
		return models.Page[models.Game]{}, err
	}
	games, err := b.store.ListGames(ctx, f, page, b.config.PerPage)
	if err != nil {
		return models.Page[models.Game]{}, err
	}
	if err := b.describeAll(ctx, games); err != nil {
		return models.Page[models.Game]{}, err
	}
	return models.NewPage(page, b.config.PerPage, total, games), nil
}

// idPage lists one page of the given games, which are sorted newest first
func (b *browseService) idPage(ctx context.Context, ids []int64, page int) (models.Page[models.Game], error) {
	page = clampPage(page)
	total := int64(len(ids))
	ids = pageOf(ids, page, b.config.PerPage)
	games := []models.Game{}
	if len(ids) > 0 {
		var err error
		games, err = b.store.ListGames(ctx, store.GameFilter{IDs: ids}, 0, 0)
		if err != nil {
			return models.Page[models.Game]{}, err
		}
		if err := b.describeAll(ctx, games); err != nil {
			return models.Page[models.Game]{}, err
		}
	}
	return models.NewPage(page, b.config.PerPage, total, games), nil
}

func gameIDs(games []models.Game) []int64 {
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids
}

// recentGames returns the ids of the newest games matching f
func (b *browseService) recentGames(ctx context.Context, f store.GameFilter) ([]int64, error) {
	games, err := b.store.ListGames(ctx, f, 0, b.config.Recent)
	if err != nil {
		return nil, err
	}
	return gameIDs(games), nil
}

// matching returns the games satisfying pred, newest first
func (b *browseService) matching(ctx context.Context, pred func(context.Context, int64) (bool, error)) ([]int64, error) {
	ids, err := b.store.GameIDsSince(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := []int64{}
	for i := len(ids) - 1; i >= 0; i-- {
		ok, err := pred(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

func (b *browseService) Games(ctx context.Context, page int) (models.Page[models.Game], error) {
	return b.gamePage(ctx, store.GameFilter{}, page)
}

// Game loads a game with its players, teams, rounds and weapon totals.
func (b *browseService) Game(ctx context.Context, id int64) (*models.GameDetail, error) {
	g, err := b.store.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.semantics.Describe(ctx, g); err != nil {
		return nil, err
	}

	detail := &models.GameDetail{Game: *g}
	var rounds []models.GameFFARound
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		detail.Players, err = b.store.GamePlayers(egCtx, id)
		return err
	})
	eg.Go(func() error {
		var err error
		detail.Teams, err = b.store.GameTeams(egCtx, id)
		return err
	})
	eg.Go(func() error {
		var err error
		rounds, err = b.store.GameFFARounds(egCtx, id)
		return err
	})
	eg.Go(func() error {
		var err error
		detail.Weapons, err = b.store.WeaponSums(egCtx, store.WeaponFilter{GameID: id})
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("game %d: %w", id, err)
	}

	timed, err := b.isTimedRace(ctx, id)
	if err != nil {
		return nil, err
	}
	orderPlayers(detail.Players, timed)
	orderTeams(detail.Teams, timed)
	detail.FFARounds = combineRounds(rounds)
	return detail, nil
}

func (b *browseService) isTimedRace(ctx context.Context, id int64) (bool, error) {
	race, err := b.semantics.IsModeActive(ctx, id, "race")
	if err != nil || !race {
		return false, err
	}
	return b.semantics.IsMutatorActive(ctx, id, "timed")
}

// byScore orders scores ascending with unfinished (zero) scores last when
// timed, otherwise descending. It reports whether the order is decided.
func byScore(a, b int64, timed bool) (less, decided bool) {
	if a == b {
		return false, false
	}
	if !timed {
		return a > b, true
	}
	switch {
	case a == 0:
		return false, true
	case b == 0:
		return true, true
	}
	return a < b, true
}

func orderPlayers(players []models.GamePlayer, timed bool) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if less, ok := byScore(a.Score, b.Score, timed); ok || timed {
			return less
		}
		if a.Frags != b.Frags {
			return a.Frags > b.Frags
		}
		return a.Deaths < b.Deaths
	})
}

func orderTeams(teams []models.GameTeam, timed bool) {
	sort.SliceStable(teams, func(i, j int) bool {
		a, b := teams[i], teams[j]
		if less, ok := byScore(a.Score, b.Score, timed); ok || timed {
			return less
		}
		return a.Team < b.Team
	})
}

// combineRounds folds the per-player round rows into one entry per round
func combineRounds(rows []models.GameFFARound) []models.FFARound {
	out := []models.FFARound{}
	index := make(map[int]int)
	for _, r := range rows {
		i, seen := index[r.Round]
		if !seen {
			i = len(out)
			index[r.Round] = i
			out = append(out, models.FFARound{Round: r.Round, Players: []int{}})
		}
		if r.Winner {
			winner := r.Player
			out[i].Winner = &winner
		}
		out[i].Players = append(out[i].Players, r.Player)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

func (b *browseService) Players(ctx context.Context, page int) (models.Page[models.PlayerSummary], error) {
	page = clampPage(page)
	total, err := b.store.CountPlayers(ctx)
	if err != nil {
		return models.Page[models.PlayerSummary]{}, err
	}
	players, err := b.store.ListPlayers(ctx, page, b.config.PerPage)
	if err != nil {
		return models.Page[models.PlayerSummary]{}, err
	}
	return models.NewPage(page, b.config.PerPage, total, players), nil
}

func (b *browseService) Player(ctx context.Context, handle string) (*models.PlayerSummary, error) {
	p, err := b.store.GetPlayer(ctx, handle)
	if err != nil {
		return nil, err
	}
	if p.RecentGames, err = b.recentGames(ctx, store.GameFilter{PlayerHandle: handle}); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *browseService) PlayerGames(ctx context.Context, handle string, page int) (models.Page[models.Game], error) {
	if _, err := b.store.GetPlayer(ctx, handle); err != nil {
		return models.Page[models.Game]{}, err
	}
	return b.gamePage(ctx, store.GameFilter{PlayerHandle: handle}, page)
}

// PlayerPerformance summarises a player's last games; games <= 0 covers all
// of them. Rates only count games with normal weapons.
func (b *browseService) PlayerPerformance(ctx context.Context, handle string, games int) (*models.PlayerPerformance, error) {
	p, err := b.store.GetPlayer(ctx, handle)
	if err != nil {
		return nil, err
	}
	if games <= 0 {
		games = int(p.Games)
	}
	recent, err := b.store.RecentPlayerGames(ctx, handle, games)
	if err != nil {
		return nil, err
	}

	perf := &models.PlayerPerformance{Handle: handle, Games: len(recent)}
	var alive int64
	ids := make([]int64, 0, len(recent))
	for _, g := range recent {
		ids = append(ids, g.GameID)
		normal, err := b.semantics.IsNormalWeapons(ctx, g.GameID)
		if err != nil {
			return nil, err
		}
		if !normal {
			continue
		}
		perf.Damage += g.Damage
		perf.Frags += g.Frags
		perf.Deaths += g.Deaths
		alive += g.TimeAlive
	}
	perf.DPM = perMinute(perf.Damage, alive)
	perf.FPM = perMinute(perf.Frags, alive)
	perf.KDR = float64(perf.Frags) / float64(max(1, perf.Deaths))
	perf.DFR = float64(perf.Damage) / float64(max(1, perf.Frags))

	perf.TopMaps = []models.MapPlaytime{}
	if len(ids) > 0 {
		if perf.TopMaps, err = b.store.PlayerTopMaps(ctx, handle, ids, b.config.Highscores); err != nil {
			return nil, err
		}
	}
	return perf, nil
}

func (b *browseService) Servers(ctx context.Context, page int) (models.Page[models.ServerSummary], error) {
	page = clampPage(page)
	total, err := b.store.CountServers(ctx)
	if err != nil {
		return models.Page[models.ServerSummary]{}, err
	}
	servers, err := b.store.ListServers(ctx, page, b.config.PerPage)
	if err != nil {
		return models.Page[models.ServerSummary]{}, err
	}
	return models.NewPage(page, b.config.PerPage, total, servers), nil
}

func (b *browseService) Server(ctx context.Context, handle string) (*models.ServerSummary, error) {
	srv, err := b.store.GetServer(ctx, handle)
	if err != nil {
		return nil, err
	}
	if srv.RecentGames, err = b.recentGames(ctx, store.GameFilter{ServerHandle: handle}); err != nil {
		return nil, err
	}
	return srv, nil
}

func (b *browseService) ServerGames(ctx context.Context, handle string, page int) (models.Page[models.Game], error) {
	if _, err := b.store.GetServer(ctx, handle); err != nil {
		return models.Page[models.Game]{}, err
	}
	return b.gamePage(ctx, store.GameFilter{ServerHandle: handle}, page)
}

// Maps lists maps by name. With raceOnly only maps that hosted a race are
// listed.
func (b *browseService) Maps(ctx context.Context, page int, raceOnly bool) (models.Page[models.MapSummary], error) {
	page = clampPage(page)
	if !raceOnly {
		total, err := b.store.CountMaps(ctx)
		if err != nil {
			return models.Page[models.MapSummary]{}, err
		}
		maps, err := b.store.ListMaps(ctx, page, b.config.PerPage)
		if err != nil {
			return models.Page[models.MapSummary]{}, err
		}
		return models.NewPage(page, b.config.PerPage, total, maps), nil
	}

	names, err := b.modeMaps(ctx, "race")
	if err != nil {
		return models.Page[models.MapSummary]{}, err
	}
	race := make(map[string]bool, len(names))
	for _, n := range names {
		race[n] = true
	}
	all, err := b.store.ListMaps(ctx, 0, 0)
	if err != nil {
		return models.Page[models.MapSummary]{}, err
	}
	maps := []models.MapSummary{}
	for _, m := range all {
		if race[m.Name] {
			maps = append(maps, m)
		}
	}
	return models.NewPage(page, b.config.PerPage, int64(len(maps)), pageOf(maps, page, b.config.PerPage)), nil
}

// computeModeMaps lists the maps that hosted a game of the mode
func (b *browseService) computeModeMaps(ctx context.Context, mode string) ([]string, error) {
	ids, err := b.modeGames(ctx, mode)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	names := []string{}
	for from := 0; from < len(ids); from += idChunk {
		games, err := b.store.ListGames(ctx, store.GameFilter{IDs: ids[from:min(from+idChunk, len(ids))]}, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, g := range games {
			if !seen[g.Map] {
				seen[g.Map] = true
				names = append(names, g.Map)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *browseService) Map(ctx context.Context, name string) (*models.MapSummary, error) {
	m, err := b.store.GetMap(ctx, name)
	if err != nil {
		return nil, err
	}
	if m.RecentGames, err = b.recentGames(ctx, store.GameFilter{Map: name}); err != nil {
		return nil, err
	}
	if m.TopRaces, err = b.rankings.MapTopRaces(ctx, name, false, b.config.Highscores); err != nil {
		return nil, err
	}
	if m.EnduranceRaces, err = b.rankings.MapTopRaces(ctx, name, true, b.config.Highscores); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *browseService) MapGames(ctx context.Context, name string, page int) (models.Page[models.Game], error) {
	if _, err := b.store.GetMap(ctx, name); err != nil {
		return models.Page[models.Game]{}, err
	}
	return b.gamePage(ctx, store.GameFilter{Map: name}, page)
}

func (b *browseService) computeModeGames(ctx context.Context, name string) ([]int64, error) {
	return b.matching(ctx, func(ctx context.Context, id int64) (bool, error) {
		return b.semantics.IsModeActive(ctx, id, name)
	})
}

func (b *browseService) computeMutatorGames(ctx context.Context, m ruleset.Mutator) ([]int64, error) {
	return b.matching(ctx, mutatorPredicate(b.semantics, m))
}

func (b *browseService) vocabulary() (*ruleset.Ruleset, error) {
	return b.registry.Default()
}

func (b *browseService) modeSummary(ctx context.Context, rs *ruleset.Ruleset, name string) (*models.ModeSummary, error) {
	ids, err := b.modeGames(ctx, name)
	if err != nil {
		return nil, err
	}
	return &models.ModeSummary{
		Name:        name,
		LongName:    rs.ModeLongName(name),
		Games:       int64(len(ids)),
		RecentGames: head(ids, b.config.Recent),
	}, nil
}

func (b *browseService) Modes(ctx context.Context) ([]models.ModeSummary, error) {
	rs, err := b.vocabulary()
	if err != nil {
		return nil, err
	}
	out := []models.ModeSummary{}
	for _, name := range rs.ModeNames() {
		m, err := b.modeSummary(ctx, rs, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (b *browseService) Mode(ctx context.Context, name string) (*models.ModeSummary, error) {
	rs, err := b.vocabulary()
	if err != nil {
		return nil, err
	}
	if !rs.HasMode(name) {
		return nil, fmt.Errorf("mode %q: %w", name, ErrNotFound)
	}
	return b.modeSummary(ctx, rs, name)
}

func (b *browseService) ModeGames(ctx context.Context, name string, page int) (models.Page[models.Game], error) {
	if _, err := b.Mode(ctx, name); err != nil {
		return models.Page[models.Game]{}, err
	}
	ids, err := b.modeGames(ctx, name)
	if err != nil {
		return models.Page[models.Game]{}, err
	}
	return b.idPage(ctx, ids, page)
}

// findMutator looks a mutator up by its link
func (b *browseService) findMutator(link string) (ruleset.Mutator, error) {
	rs, err := b.vocabulary()
	if err != nil {
		return ruleset.Mutator{}, err
	}
	for _, m := range rs.Mutators() {
		if m.Link() == link {
			return m, nil
		}
	}
	return ruleset.Mutator{}, fmt.Errorf("mutator %q: %w", link, ErrNotFound)
}

func (b *browseService) mutatorSummary(ctx context.Context, m ruleset.Mutator) (*models.MutatorSummary, error) {
	ids, err := b.mutatorGames(ctx, m)
	if err != nil {
		return nil, err
	}
	return &models.MutatorSummary{
		Name:        m.Name,
		ShortName:   m.Short,
		Link:        m.Link(),
		Mode:        m.Mode,
		Games:       int64(len(ids)),
		RecentGames: head(ids, b.config.Recent),
	}, nil
}

func (b *browseService) Mutators(ctx context.Context) ([]models.MutatorSummary, error) {
	rs, err := b.vocabulary()
	if err != nil {
		return nil, err
	}
	out := []models.MutatorSummary{}
	for _, m := range rs.Mutators() {
		s, err := b.mutatorSummary(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func (b *browseService) Mutator(ctx context.Context, link string) (*models.MutatorSummary, error) {
	m, err := b.findMutator(link)
	if err != nil {
		return nil, err
	}
	return b.mutatorSummary(ctx, m)
}

func (b *browseService) MutatorGames(ctx context.Context, link string, page int) (models.Page[models.Game], error) {
	m, err := b.findMutator(link)
	if err != nil {
		return models.Page[models.Game]{}, err
	}
	ids, err := b.mutatorGames(ctx, m)
	if err != nil {
		return models.Page[models.Game]{}, err
	}
	return b.idPage(ctx, ids, page)
}

// Weapons sums every weapon of the roster over normal-weapon games.
func (b *browseService) Weapons(ctx context.Context) ([]models.WeaponSummary, error) {
	rs, err := b.vocabulary()
	if err != nil {
		return nil, err
	}
	return b.weaponSummaries(ctx, rs, rs.Weapons())
}

func (b *browseService) Weapon(ctx context.Context, name string) (*models.WeaponSummary, error) {
	rs, err := b.vocabulary()
	if err != nil {
		return nil, err
	}
	if !rs.HasWeapon(name) {
		return nil, fmt.Errorf("weapon %q: %w", name, ErrNotFound)
	}
	out, err := b.weaponSummaries(ctx, rs, []string{name})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (b *browseService) weaponSummaries(ctx context.Context, rs *ruleset.Ruleset, names []string) ([]models.WeaponSummary, error) {
	sums, err := b.store.WeaponSums(ctx, store.WeaponFilter{Weapons: names, NormalOnly: true})
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.WeaponStats, len(sums))
	for _, w := range sums {
		byName[w.Name] = w
	}
	loadout := make(map[string]bool)
	for _, w := range rs.LoadoutWeapons() {
		loadout[w] = true
	}

	out := make([]models.WeaponSummary, 0, len(names))
	for _, name := range names {
		stats, ok := byName[name]
		if !ok {
			stats = models.WeaponStats{Name: name}
		}
		w := models.WeaponSummary{
			WeaponStats: stats,
			Loadout:     loadout[name],
			NotWielded:  rs.IsNotWielded(name),
		}
		used := stats.TimeWielded
		if w.NotWielded {
			used = stats.TimeLoadout
		}
		w.DPM = perMinute(stats.Damage(), used)
		out = append(out, w)
	}
	return out, nil
}
